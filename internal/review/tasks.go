package review

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Task is one independent analysis unit: a name, the instruction handed to
// the analysis capability, and the tool subset the task may call.
type Task struct {
	Name        string   `yaml:"name"`
	Instruction string   `yaml:"instruction"`
	Tools       []string `yaml:"tools"`
}

type taskCatalogue struct {
	Tasks []Task `yaml:"tasks"`
}

// DefaultTasks is the built-in three-way review split.
func DefaultTasks() []Task {
	return []Task{
		{
			Name: "code-quality",
			Instruction: "Review the changed files for correctness, readability and " +
				"maintainability issues. Flag anything that would not pass a careful human review.",
			Tools: []string{"get-file", "find-paths", "grep-contents", "get-merge-request-changes"},
		},
		{
			Name: "security",
			Instruction: "Review the changed files for security problems: injected input, " +
				"credential handling, unsafe deserialization, missing validation.",
			Tools: []string{"get-file", "grep-contents", "search-commits", "get-merge-request-changes"},
		},
		{
			Name: "test-coverage",
			Instruction: "Check whether the changed behavior is covered by tests and " +
				"point out untested paths.",
			Tools: []string{"get-file", "find-paths", "grep-contents", "list-pipelines", "list-jobs", "get-job-log"},
		},
	}
}

// LoadTasks reads a task catalogue from a YAML file. An empty path returns
// the built-in catalogue.
func LoadTasks(path string) ([]Task, error) {
	if path == "" {
		return DefaultTasks(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task catalogue %s: %w", path, err)
	}

	var catalogue taskCatalogue
	if err := yaml.Unmarshal(data, &catalogue); err != nil {
		return nil, fmt.Errorf("failed to parse task catalogue %s: %w", path, err)
	}

	if len(catalogue.Tasks) == 0 {
		return nil, fmt.Errorf("task catalogue %s defines no tasks", path)
	}
	for i, t := range catalogue.Tasks {
		if t.Name == "" {
			return nil, fmt.Errorf("task catalogue %s: task %d has no name", path, i)
		}
	}

	return catalogue.Tasks, nil
}
