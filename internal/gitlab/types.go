package gitlab

// Project represents the subset of GitLab project fields the bridge uses.
type Project struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	Path              string `json:"path"`
	PathWithNamespace string `json:"path_with_namespace"`
	DefaultBranch     string `json:"default_branch"`
	WebURL            string `json:"web_url"`
}

// FileChange represents a single file change in an MR
type FileChange struct {
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	AMode       string `json:"a_mode"`
	BMode       string `json:"b_mode"`
	NewFile     bool   `json:"new_file"`
	RenamedFile bool   `json:"renamed_file"`
	DeletedFile bool   `json:"deleted_file"`
	Diff        string `json:"diff"`
}

// ChangeSet is the changed-file set of one merge request, fetched once per
// review and shared read-only across analysis tasks.
type ChangeSet struct {
	MRIID        int          `json:"iid"`
	Title        string       `json:"title"`
	SourceBranch string       `json:"source_branch"`
	TargetBranch string       `json:"target_branch"`
	Changes      []FileChange `json:"changes"`
}

// Paths returns the ordered list of changed file paths.
func (cs *ChangeSet) Paths() []string {
	paths := make([]string, 0, len(cs.Changes))
	for _, c := range cs.Changes {
		paths = append(paths, c.NewPath)
	}
	return paths
}

// TreeEntry is one entry of a recursive repository tree listing.
type TreeEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // "blob" for files, "tree" for directories
	Mode string `json:"mode"`
}

// IsFile reports whether the entry is a regular file (blob).
func (e TreeEntry) IsFile() bool {
	return e.Type == "blob"
}

// FileContent represents a file fetched from the repository files API.
// Content is decoded text by the time callers see it.
type FileContent struct {
	FileName string `json:"file_name"`
	FilePath string `json:"file_path"`
	Size     int    `json:"size"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
	Ref      string `json:"ref"`
	BlobID   string `json:"blob_id"`
	CommitID string `json:"commit_id"`
}

// Commit represents the fields commit search filters on.
type Commit struct {
	ID          string `json:"id"`
	ShortID     string `json:"short_id"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
	CreatedAt   string `json:"created_at"`
	WebURL      string `json:"web_url"`
}

// CreateMROptions are the arguments for creating a merge request.
type CreateMROptions struct {
	SourceBranch       string
	TargetBranch       string
	Title              string
	Description        string
	RemoveSourceBranch bool
}

// MergeMROptions are the arguments for merging a merge request.
type MergeMROptions struct {
	MergeCommitMessage        string
	ShouldRemoveSourceBranch  bool
	MergeWhenPipelineSucceeds bool
}

// CommitListOptions filter the commit listing endpoint.
type CommitListOptions struct {
	RefName string
	Since   string
	Until   string
}
