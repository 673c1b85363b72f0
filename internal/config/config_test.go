package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors t.Chdir (testing.T.Chdir requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(prev)
	})
}

func staticLayer(name string, values map[string]string) layer {
	return layer{name: name, load: func() (map[string]string, error) {
		return values, nil
	}}
}

func TestResolveLayers_HighestPriorityCompleteLayerWins(t *testing.T) {
	layers := []layer{
		staticLayer("project", map[string]string{
			"GITLAB_URL":   "https://git.project",
			"GITLAB_TOKEN": "project-token",
			"PROJECT_ID":   "11",
		}),
		staticLayer("global", map[string]string{
			"GITLAB_URL":   "https://git.global",
			"GITLAB_TOKEN": "global-token",
		}),
	}

	cfg, err := resolveLayers(layers)
	require.NoError(t, err)
	assert.Equal(t, "project", cfg.Source)
	assert.Equal(t, "https://git.project", cfg.GitLab.BaseURL)
	assert.Equal(t, "project-token", cfg.GitLab.Token)
	assert.Equal(t, 11, cfg.GitLab.ProjectID)
}

func TestResolveLayers_IncompleteLayerIsSkippedEntirely(t *testing.T) {
	// The project layer has a URL but no token; its URL must not leak into
	// the result. The global layer supplies every value.
	layers := []layer{
		staticLayer("project", map[string]string{
			"GITLAB_URL": "https://git.project",
		}),
		staticLayer("global", map[string]string{
			"GITLAB_URL":   "https://git.example",
			"GITLAB_TOKEN": "abc",
		}),
	}

	cfg, err := resolveLayers(layers)
	require.NoError(t, err)
	assert.Equal(t, "global", cfg.Source)
	assert.Equal(t, "https://git.example", cfg.GitLab.BaseURL)
	assert.Equal(t, "abc", cfg.GitLab.Token)
}

func TestResolveLayers_NoUsableLayer(t *testing.T) {
	layers := []layer{
		staticLayer("project", map[string]string{}),
		staticLayer("global", map[string]string{"GITLAB_TOKEN": "abc"}),
	}

	_, err := resolveLayers(layers)
	assert.ErrorIs(t, err, ErrConfigMissing)
}

func TestResolveLayers_Defaults(t *testing.T) {
	cfg, err := resolveLayers([]layer{
		staticLayer("environment", map[string]string{
			"GITLAB_URL":   "https://git.example/",
			"GITLAB_TOKEN": "abc",
		}),
	})
	require.NoError(t, err)

	// Trailing slash trimmed, tuning knobs defaulted.
	assert.Equal(t, "https://git.example", cfg.GitLab.BaseURL)
	assert.Equal(t, 3, cfg.GitLab.MaxRetries)
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.False(t, cfg.GitLab.InsecureTLS)
	assert.False(t, cfg.HasProject())
}

func TestSaveAndResolveRoundTrip(t *testing.T) {
	chdir(t, t.TempDir())

	cfg := &Config{}
	cfg.GitLab.BaseURL = "https://git.example"
	cfg.GitLab.Token = "secret-token-12345"
	cfg.GitLab.ProjectID = 42
	cfg.GitLab.ProjectName = "app"
	cfg.GitLab.ProjectPath = "group/app"
	cfg.GitLab.CreatedAt = "2026-01-01T00:00:00Z"

	path, err := cfg.Save(false)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := resolveLayers([]layer{
		{name: "project", load: fileLayer(filepath.Join(LocalDir, FileName))},
	})
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.GitLab.ProjectID)
	assert.Equal(t, "group/app", loaded.GitLab.ProjectPath)
	assert.Equal(t, "secret-token-12345", loaded.GitLab.Token)
}

func TestSave_AppendsToGitignoreOnce(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile(".gitignore", []byte("bin/\n*.log\n"), 0o644))

	cfg := &Config{}
	cfg.GitLab.BaseURL = "https://git.example"
	cfg.GitLab.Token = "tok"

	_, err := cfg.Save(false)
	require.NoError(t, err)
	_, err = cfg.Save(false)
	require.NoError(t, err)

	data, err := os.ReadFile(".gitignore")
	require.NoError(t, err)
	// Order preserved, entry appended exactly once.
	assert.Equal(t, "bin/\n*.log\n"+LocalDir+"/\n", string(data))
}

func TestSave_NoGitignoreNoError(t *testing.T) {
	chdir(t, t.TempDir())

	cfg := &Config{}
	cfg.GitLab.BaseURL = "https://git.example"
	cfg.GitLab.Token = "tok"

	_, err := cfg.Save(false)
	require.NoError(t, err)
	_, err = os.Stat(".gitignore")
	assert.True(t, os.IsNotExist(err))
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected string
	}{
		{"empty", "", "****"},
		{"short", "abc", "****"},
		{"boundary", "12345678", "****"},
		{"long", "glpat-1234567890abcd", "glpa****abcd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			masked := MaskToken(tt.token)
			assert.Equal(t, tt.expected, masked)
			if len(tt.token) > 8 {
				assert.NotContains(t, masked, tt.token)
			}
		})
	}
}
