// Package selector turns a merge request's change list into the
// deterministic, bounded set of files the reviewer will look at.
package selector

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mergelens/internal/config"
	"github.com/mergelens/internal/gitlab"
	"github.com/mergelens/pkg/models"
)

// Host is the slice of the GitLab client selection needs.
type Host interface {
	ListChanges(ctx context.Context, projectID string, mrIID int) ([]gitlab.Change, error)
	GetRawFile(ctx context.Context, projectID, filePath, ref string) (string, error)
}

// SelectionError marks a failure to enumerate changed files. It is
// fatal to the run: without a file list there is nothing to review.
type SelectionError struct {
	Err error
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("selecting files: %v", e.Err)
}

func (e *SelectionError) Unwrap() error { return e.Err }

// languageExtensions maps configured language names to the extensions
// they claim. A file whose extension appears nowhere gets language "".
var languageExtensions = map[string][]string{
	"python":     {".py", ".pyw"},
	"javascript": {".js", ".mjs", ".jsx"},
	"typescript": {".ts", ".tsx"},
	"java":       {".java"},
	"go":         {".go"},
	"rust":       {".rs"},
	"cpp":        {".cpp", ".cc", ".cxx", ".hpp", ".h"},
	"csharp":     {".cs"},
	"php":        {".php"},
	"ruby":       {".rb"},
	"html":       {".html", ".htm"},
	"css":        {".css", ".scss", ".less"},
	"yaml":       {".yaml", ".yml"},
	"json":       {".json"},
	"xml":        {".xml"},
	"sql":        {".sql"},
	"shell":      {".sh", ".bash"},
}

// extensionLanguage is the inverse lookup, built once at init.
var extensionLanguage = func() map[string]string {
	m := make(map[string]string)
	for lang, exts := range languageExtensions {
		for _, ext := range exts {
			m[ext] = lang
		}
	}
	return m
}()

// DetectLanguage returns the language for a file path, or "" when the
// extension is not recognized.
func DetectLanguage(filePath string) string {
	ext := strings.ToLower(path.Ext(filePath))
	return extensionLanguage[ext]
}

// Select lists the MR's changes and applies filtering, ordering, and
// the file-count bound. When scope is "full" it also fetches file
// content at headSHA; fetch failures are recorded per file, never
// fatal. The returned slice is sorted by path and stable for a given
// change list and settings.
func Select(ctx context.Context, host Host, logger zerolog.Logger, req models.ReviewRequest, settings *config.Settings) ([]models.CandidateFile, error) {
	changes, err := host.ListChanges(ctx, req.ProjectID, req.MRIID)
	if err != nil {
		return nil, &SelectionError{Err: err}
	}

	candidates := make([]models.CandidateFile, 0, len(changes))
	for _, ch := range changes {
		if ch.DeletedFile {
			continue
		}
		filePath := ch.NewPath

		if matchesAny(filePath, settings.Review.ExcludePatterns) {
			logger.Debug().Str("file", filePath).Msg("excluded by pattern")
			continue
		}
		if len(settings.Review.IncludePatterns) > 0 && !matchesAny(filePath, settings.Review.IncludePatterns) {
			continue
		}

		lang := DetectLanguage(filePath)
		if len(settings.Review.Languages) > 0 && !containsLanguage(settings.Review.Languages, lang) {
			continue
		}

		diff := ch.Diff
		cut := false
		if len(diff) > settings.Review.MaxContentBytes {
			diff = diff[:settings.Review.MaxContentBytes]
			cut = true
		}
		candidates = append(candidates, models.CandidateFile{
			Path:      filePath,
			Language:  lang,
			Diff:      diff,
			Truncated: cut,
		})
	}

	// Lexicographic order plus a fixed cap makes truncation
	// reproducible across runs of the same MR state.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Path < candidates[j].Path
	})
	if len(candidates) > settings.Review.MaxFiles {
		logger.Info().
			Int("selected", len(candidates)).
			Int("cap", settings.Review.MaxFiles).
			Msg("truncating file list to max_files")
		candidates = candidates[:settings.Review.MaxFiles]
	}

	if settings.Review.Scope == "full" {
		for i := range candidates {
			content, err := host.GetRawFile(ctx, req.ProjectID, candidates[i].Path, req.HeadSHA)
			if err != nil {
				candidates[i].FetchErr = err
				logger.Warn().Str("file", candidates[i].Path).Err(err).Msg("could not fetch file content")
				continue
			}
			candidates[i].Size = len(content)
			if len(content) > settings.Review.MaxContentBytes {
				content = content[:settings.Review.MaxContentBytes]
				candidates[i].Truncated = true
			}
			candidates[i].Content = content
		}
	}

	return candidates, nil
}

// matchesAny reports whether filePath matches any glob pattern. A
// pattern without a slash is also tried against the base name, so
// "*.md" excludes markdown anywhere in the tree.
func matchesAny(filePath string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, filePath); ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, _ := path.Match(pattern, path.Base(filePath)); ok {
				return true
			}
		}
	}
	return false
}

func containsLanguage(langs []string, lang string) bool {
	if lang == "" {
		return false
	}
	for _, l := range langs {
		if strings.EqualFold(l, lang) {
			return true
		}
	}
	return false
}
