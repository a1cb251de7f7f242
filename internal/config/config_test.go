package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mergelens/pkg/models"
)

func TestResolveDefaults(t *testing.T) {
	s, err := Resolve("")
	require.NoError(t, err)

	assert.Equal(t, 50, s.Review.MaxFiles)
	assert.Equal(t, "medium", s.Review.SeverityThreshold)
	assert.Equal(t, "diff", s.Review.Scope)
	assert.Equal(t, 3, s.Review.Concurrency)
	assert.Equal(t, 3, s.Server.MaxConcurrentRuns)
	assert.Equal(t, "gemini", s.AI.Provider)
	assert.True(t, s.Review.SecurityScan)
	assert.True(t, s.Review.PostComments)
	assert.True(t, s.Report.Enabled)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mergelens.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestResolveFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[review]
max_files = 10
severity_threshold = "high"
languages = ["python", "go"]
exclude_patterns = ["vendor/*"]

[ai]
provider = "ollama"
base_url = "http://localhost:11434"
model = "qwen2.5-coder"
`)

	s, err := Resolve(path)
	require.NoError(t, err)

	assert.Equal(t, 10, s.Review.MaxFiles)
	assert.Equal(t, models.SeverityHigh, s.Threshold())
	assert.Equal(t, []string{"python", "go"}, s.Review.Languages)
	assert.Equal(t, []string{"vendor/*"}, s.Review.ExcludePatterns)
	assert.Equal(t, "ollama", s.AI.Provider)
}

func TestResolveEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[review]
max_files = 10
`)
	t.Setenv("MERGELENS_REVIEW_MAX_FILES", "25")
	t.Setenv("MERGELENS_REVIEW_SEVERITY_THRESHOLD", "low")
	t.Setenv("MERGELENS_GITLAB_TOKEN", "glpat-test")

	s, err := Resolve(path)
	require.NoError(t, err)

	assert.Equal(t, 25, s.Review.MaxFiles)
	assert.Equal(t, "low", s.Review.SeverityThreshold)
	assert.Equal(t, "glpat-test", s.GitLab.Token)
}

func TestValidateAggregatesAllProblems(t *testing.T) {
	path := writeConfig(t, `
[review]
max_files = 500
severity_threshold = "critical"
scope = "everything"
concurrency = 0

[ai]
provider = "claude"
`)

	_, err := Resolve(path)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 5)
	assert.Contains(t, verr.Error(), "max_files")
	assert.Contains(t, verr.Error(), "severity_threshold")
	assert.Contains(t, verr.Error(), "scope")
	assert.Contains(t, verr.Error(), "concurrency")
	assert.Contains(t, verr.Error(), "provider")
}

func TestMaxFilesCeiling(t *testing.T) {
	ok := writeConfig(t, "[review]\nmax_files = 200\n")
	s, err := Resolve(ok)
	require.NoError(t, err)
	assert.Equal(t, 200, s.Review.MaxFiles)

	over := writeConfig(t, "[review]\nmax_files = 201\n")
	_, err = Resolve(over)
	require.Error(t, err)
}

func TestRequireGitLab(t *testing.T) {
	var s Settings
	err := s.RequireGitLab()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 2)

	s.GitLab.URL = "https://gitlab.example.com"
	s.GitLab.Token = "tok"
	assert.NoError(t, s.RequireGitLab())
}

func TestInitRefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mergelens.toml")
	require.NoError(t, Init(path))

	_, err := Resolve(path)
	require.NoError(t, err)

	assert.Error(t, Init(path))
}
