package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/mergelens/pkg/models"
)

// Settings is the resolved configuration for one process. Layering is
// defaults < TOML file < MERGELENS_* environment variables.
type Settings struct {
	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`

	Server struct {
		Addr              string `koanf:"addr"`
		WebhookSecret     string `koanf:"webhook_secret"`
		MaxConcurrentRuns int    `koanf:"max_concurrent_runs"`
	} `koanf:"server"`

	GitLab struct {
		URL   string `koanf:"url"`
		Token string `koanf:"token"`
	} `koanf:"gitlab"`

	AI struct {
		Provider       string        `koanf:"provider"` // gemini, openai, or ollama
		APIKey         string        `koanf:"api_key"`
		Model          string        `koanf:"model"`
		BaseURL        string        `koanf:"base_url"`
		Temperature    float64       `koanf:"temperature"`
		MaxTokens      int           `koanf:"max_tokens"`
		RequestTimeout time.Duration `koanf:"request_timeout"`
	} `koanf:"ai"`

	Review struct {
		Scope             string        `koanf:"scope"` // diff or full
		MaxFiles          int           `koanf:"max_files"`
		Languages         []string      `koanf:"languages"`
		SeverityThreshold string        `koanf:"severity_threshold"`
		IncludePatterns   []string      `koanf:"include_patterns"`
		ExcludePatterns   []string      `koanf:"exclude_patterns"`
		SecurityScan      bool          `koanf:"security_scan"`
		PerformanceHints  bool          `koanf:"performance_hints"`
		PostComments      bool          `koanf:"post_comments"`
		Concurrency       int           `koanf:"concurrency"`
		RunTimeout        time.Duration `koanf:"run_timeout"`
		MaxContentBytes   int           `koanf:"max_content_bytes"`
	} `koanf:"review"`

	Report struct {
		Enabled bool   `koanf:"enabled"`
		Dir     string `koanf:"dir"`
	} `koanf:"report"`
}

// MaxFilesCeiling is the hard upper bound on files per review; values
// above it are a configuration error, not a silent clamp.
const MaxFilesCeiling = 200

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"log.level":                  "info",
		"server.addr":                ":8080",
		"server.max_concurrent_runs": 3,
		"ai.provider":                "gemini",
		"ai.model":                   "gemini-2.5-flash",
		"ai.temperature":             0.2,
		"ai.max_tokens":              4096,
		"ai.request_timeout":         "120s",
		"review.scope":               "diff",
		"review.max_files":           50,
		"review.severity_threshold":  "medium",
		"review.security_scan":       true,
		"review.performance_hints":   true,
		"review.post_comments":       true,
		"review.concurrency":         3,
		"review.run_timeout":         "10m",
		"review.max_content_bytes":   48 * 1024,
		"report.enabled":             true,
		"report.dir":                 ".",
	}
}

// Resolve loads settings from defaults, configPath (or the default
// locations when empty), and the environment, then validates them.
func Resolve(configPath string) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	} else {
		for _, path := range []string{"./mergelens.toml", "$HOME/.mergelens.toml"} {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// MERGELENS_REVIEW_MAX_FILES -> review.max_files: the first
	// underscore after the prefix separates section from key.
	if err := k.Load(env.Provider("MERGELENS_", ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, "MERGELENS_"))
		return strings.Replace(s, "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var settings Settings
	if err := k.Unmarshal("", &settings); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// ValidationError collects every violation found in one pass so the
// operator fixes the whole file at once instead of iterating.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

// Validate checks every field and aggregates all violations.
func (s *Settings) Validate() error {
	var problems []string
	addf := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch s.Review.Scope {
	case "diff", "full":
	default:
		addf("review.scope must be diff or full, got %q", s.Review.Scope)
	}

	if s.Review.MaxFiles < 1 || s.Review.MaxFiles > MaxFilesCeiling {
		addf("review.max_files must be between 1 and %d, got %d", MaxFilesCeiling, s.Review.MaxFiles)
	}

	if !models.Severity(s.Review.SeverityThreshold).Valid() {
		addf("review.severity_threshold must be low, medium, or high, got %q", s.Review.SeverityThreshold)
	}

	if s.Review.Concurrency < 1 {
		addf("review.concurrency must be at least 1, got %d", s.Review.Concurrency)
	}

	if s.Review.RunTimeout <= 0 {
		addf("review.run_timeout must be positive, got %s", s.Review.RunTimeout)
	}

	if s.Review.MaxContentBytes < 1 {
		addf("review.max_content_bytes must be positive, got %d", s.Review.MaxContentBytes)
	}

	switch s.AI.Provider {
	case "gemini", "openai", "ollama":
	default:
		addf("ai.provider must be gemini, openai, or ollama, got %q", s.AI.Provider)
	}

	if s.AI.Temperature < 0 || s.AI.Temperature > 2 {
		addf("ai.temperature must be between 0 and 2, got %g", s.AI.Temperature)
	}

	if s.AI.MaxTokens < 1 {
		addf("ai.max_tokens must be positive, got %d", s.AI.MaxTokens)
	}

	if s.Server.MaxConcurrentRuns < 1 {
		addf("server.max_concurrent_runs must be at least 1, got %d", s.Server.MaxConcurrentRuns)
	}

	for _, pat := range append(append([]string{}, s.Review.IncludePatterns...), s.Review.ExcludePatterns...) {
		if strings.TrimSpace(pat) == "" {
			addf("file patterns must not be empty strings")
			break
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// RequireGitLab checks the fields only commands that talk to GitLab need.
func (s *Settings) RequireGitLab() error {
	var problems []string
	if s.GitLab.URL == "" {
		problems = append(problems, "gitlab.url is required")
	}
	if s.GitLab.Token == "" {
		problems = append(problems, "gitlab.token is required")
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Threshold returns the severity threshold as a typed value.
func (s *Settings) Threshold() models.Severity {
	return models.Severity(s.Review.SeverityThreshold)
}

// Init writes a commented sample configuration to configPath.
func Init(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sample := `# MergeLens configuration

[server]
addr = ":8080"
webhook_secret = "change-me"
max_concurrent_runs = 3

[gitlab]
url = "https://gitlab.example.com"
token = "your-gitlab-token"

[ai]
provider = "gemini"
api_key = "your-api-key"
model = "gemini-2.5-flash"
temperature = 0.2

[review]
scope = "diff"
max_files = 50
severity_threshold = "medium"
languages = []
include_patterns = []
exclude_patterns = []
security_scan = true
performance_hints = true
post_comments = true
concurrency = 3
run_timeout = "10m"

[report]
enabled = true
dir = "."
`
	return os.WriteFile(configPath, []byte(sample), 0644)
}
