package e2e

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ScenarioConfig describes one end-to-end review scenario: a merge request
// simulated by a before/ and after/ directory pair, plus the expected
// synthesis outcome.
type ScenarioConfig struct {
	Name      string `yaml:"-"`
	BeforeDir string `yaml:"-"`
	AfterDir  string `yaml:"-"`

	MR struct {
		IID          int    `yaml:"iid"`
		Title        string `yaml:"title"`
		SourceBranch string `yaml:"source_branch"`
		TargetBranch string `yaml:"target_branch"`
	} `yaml:"mr"`

	Expected struct {
		// Overall report status: success, partial or failed.
		Status string `yaml:"status"`
		// Per-task phrases the payload must contain.
		PayloadContains map[string][]string `yaml:"payload_contains"`
	} `yaml:"expected"`
}

// LoadScenarios reads every scenario under <testdataPath>/scenarios. Each
// scenario directory holds a scenario.yaml plus before/ and after/ trees.
func LoadScenarios(testdataPath string) ([]ScenarioConfig, error) {
	scenariosDir := filepath.Join(testdataPath, "scenarios")
	entries, err := os.ReadDir(scenariosDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios dir: %w", err)
	}

	var scenarios []ScenarioConfig
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(scenariosDir, entry.Name())
		data, err := os.ReadFile(filepath.Join(dir, "scenario.yaml")) // #nosec G304 - reading test fixture files
		if err != nil {
			return nil, fmt.Errorf("scenario %s has no scenario.yaml: %w", entry.Name(), err)
		}

		var scenario ScenarioConfig
		if err := yaml.Unmarshal(data, &scenario); err != nil {
			return nil, fmt.Errorf("scenario %s: invalid scenario.yaml: %w", entry.Name(), err)
		}

		scenario.Name = entry.Name()
		scenario.BeforeDir = filepath.Join(dir, "before")
		scenario.AfterDir = filepath.Join(dir, "after")
		if scenario.MR.IID == 0 {
			scenario.MR.IID = 123
		}
		if scenario.MR.SourceBranch == "" {
			scenario.MR.SourceBranch = "feature/test"
		}
		if scenario.MR.TargetBranch == "" {
			scenario.MR.TargetBranch = "main"
		}

		scenarios = append(scenarios, scenario)
	}

	return scenarios, nil
}
