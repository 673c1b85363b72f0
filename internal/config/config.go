package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings file location, relative to the project root for the local layer
// and to the user home for the global layer.
const (
	LocalDir   = ".glbridge"
	FileName   = "config"
	globalPath = ".config/glbridge"
)

// ErrConfigMissing is returned when no configuration layer contains both an
// endpoint URL and a credential token.
var ErrConfigMissing = errors.New(
	"no GitLab configuration found: run 'glbridge setup' or set GITLAB_URL and GITLAB_TOKEN")

// Config holds application configuration
type Config struct {
	GitLab GitLabConfig
	Server ServerConfig
	Review ReviewConfig

	// Source names the layer the configuration was resolved from
	// (project, global or environment).
	Source string
}

// GitLabConfig holds GitLab API configuration
type GitLabConfig struct {
	BaseURL     string
	Token       string
	ProjectID   int    // Numeric project ID, 0 until resolved
	ProjectName string // Display name of the configured project
	ProjectPath string // Full namespace path (group/project)
	CreatedAt   string // When this configuration was persisted
	InsecureTLS bool   // Skip TLS certificate verification (self-signed internal hosts)
	CACertPath  string // Path to custom CA certificate file

	ConnectTimeout time.Duration // Dial timeout, short
	RequestTimeout time.Duration // Overall per-attempt timeout
	MaxRetries     int           // Attempts per invocation
	// RetryDelay is a fixed inter-attempt delay. Fixed rather than
	// exponential: the retry budget is 3 attempts against a single
	// internal host, so backoff buys nothing.
	RetryDelay time.Duration
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
}

// ReviewConfig holds review orchestration configuration
type ReviewConfig struct {
	TasksFile     string // Optional YAML task catalogue
	AgentEndpoint string // Analysis agent HTTP endpoint
}

// layer is one configuration source in priority order.
type layer struct {
	name string
	load func() (map[string]string, error)
}

// Resolve loads configuration from the highest-priority layer that contains
// both an endpoint URL and a credential token. Layers are never merged
// field-by-field; the winning layer supplies every value, so credentials
// from different sources cannot be silently combined.
func Resolve() (*Config, error) {
	home, _ := os.UserHomeDir()
	layers := []layer{
		{name: "project", load: fileLayer(filepath.Join(LocalDir, FileName))},
		{name: "global", load: fileLayer(filepath.Join(home, globalPath, FileName))},
		{name: "environment", load: envLayer},
	}
	return resolveLayers(layers)
}

func resolveLayers(layers []layer) (*Config, error) {
	for _, l := range layers {
		values, err := l.load()
		if err != nil {
			continue
		}
		if values["GITLAB_URL"] == "" || values["GITLAB_TOKEN"] == "" {
			continue
		}
		return fromValues(values, l.name), nil
	}
	return nil, ErrConfigMissing
}

// fileLayer reads a key=value settings file.
func fileLayer(path string) func() (map[string]string, error) {
	return func() (map[string]string, error) {
		return godotenv.Read(path)
	}
}

// envLayer exposes the process environment as a settings map.
func envLayer() (map[string]string, error) {
	keys := []string{
		"GITLAB_URL", "GITLAB_TOKEN", "PROJECT_ID", "PROJECT_NAME",
		"PROJECT_PATH", "CREATED_AT", "GITLAB_INSECURE_TLS",
		"GITLAB_CA_CERT_PATH", "GITLAB_CONNECT_TIMEOUT",
		"GITLAB_REQUEST_TIMEOUT", "GITLAB_MAX_RETRIES",
		"GITLAB_RETRY_DELAY", "PORT", "REVIEW_TASKS_FILE",
		"REVIEW_AGENT_ENDPOINT",
	}
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			values[k] = v
		}
	}
	return values, nil
}

func fromValues(values map[string]string, source string) *Config {
	return &Config{
		GitLab: GitLabConfig{
			BaseURL:        strings.TrimRight(values["GITLAB_URL"], "/"),
			Token:          values["GITLAB_TOKEN"],
			ProjectID:      getInt(values, "PROJECT_ID", 0),
			ProjectName:    values["PROJECT_NAME"],
			ProjectPath:    values["PROJECT_PATH"],
			CreatedAt:      values["CREATED_AT"],
			InsecureTLS:    values["GITLAB_INSECURE_TLS"] == "true",
			CACertPath:     values["GITLAB_CA_CERT_PATH"],
			ConnectTimeout: getDuration(values, "GITLAB_CONNECT_TIMEOUT", 10*time.Second),
			RequestTimeout: getDuration(values, "GITLAB_REQUEST_TIMEOUT", 20*time.Second),
			MaxRetries:     getInt(values, "GITLAB_MAX_RETRIES", 3),
			RetryDelay:     getDuration(values, "GITLAB_RETRY_DELAY", 2*time.Second),
		},
		Server: ServerConfig{
			Port: getString(values, "PORT", "3000"),
		},
		Review: ReviewConfig{
			TasksFile:     values["REVIEW_TASKS_FILE"],
			AgentEndpoint: values["REVIEW_AGENT_ENDPOINT"],
		},
		Source: source,
	}
}

// Save persists the configuration as a key=value settings file readable only
// by the owning user. When global is false the file lands in the
// project-local settings directory and that directory is appended to
// .gitignore if one exists. Returns the path written.
func (c *Config) Save(global bool) (string, error) {
	var dir string
	if global {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = filepath.Join(home, globalPath)
	} else {
		dir = LocalDir
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create settings directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, FileName)
	var b strings.Builder
	b.WriteString("GITLAB_URL=" + c.GitLab.BaseURL + "\n")
	b.WriteString("GITLAB_TOKEN=" + c.GitLab.Token + "\n")
	b.WriteString("PROJECT_ID=" + strconv.Itoa(c.GitLab.ProjectID) + "\n")
	b.WriteString("PROJECT_NAME=" + c.GitLab.ProjectName + "\n")
	b.WriteString("PROJECT_PATH=" + c.GitLab.ProjectPath + "\n")
	b.WriteString("CREATED_AT=" + c.GitLab.CreatedAt + "\n")
	if c.GitLab.InsecureTLS {
		b.WriteString("GITLAB_INSECURE_TLS=true\n")
	}
	if c.GitLab.CACertPath != "" {
		b.WriteString("GITLAB_CA_CERT_PATH=" + c.GitLab.CACertPath + "\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return "", fmt.Errorf("failed to write settings file %s: %w", path, err)
	}

	if !global {
		if err := EnsureIgnored(".gitignore", LocalDir+"/"); err != nil {
			return path, fmt.Errorf("settings saved but .gitignore update failed: %w", err)
		}
	}
	return path, nil
}

// EnsureIgnored appends entry to the ignore file if the file exists and does
// not already contain it. Existing content and order are preserved.
func EnsureIgnored(ignoreFile, entry string) error {
	data, err := os.ReadFile(ignoreFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == entry {
			return nil
		}
	}

	out := string(data)
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	out += entry + "\n"
	return os.WriteFile(ignoreFile, []byte(out), 0o644)
}

// MaskToken renders a short non-reversible preview of a credential for
// diagnostics. The full token must never appear in logs or CLI output.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}

// HasProject returns true when a numeric project ID has been resolved.
func (c *Config) HasProject() bool {
	return c.GitLab.ProjectID > 0
}

func getString(values map[string]string, key, fallback string) string {
	if v := values[key]; v != "" {
		return v
	}
	return fallback
}

func getInt(values map[string]string, key string, fallback int) int {
	if v := values[key]; v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(values map[string]string, key string, fallback time.Duration) time.Duration {
	if v := values[key]; v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
