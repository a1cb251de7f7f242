package selector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mergelens/internal/config"
	"github.com/mergelens/internal/gitlab"
	"github.com/mergelens/pkg/models"
)

type fakeHost struct {
	changes   []gitlab.Change
	changeErr error
	files     map[string]string
	fileErrs  map[string]error
}

func (f *fakeHost) ListChanges(ctx context.Context, projectID string, mrIID int) ([]gitlab.Change, error) {
	return f.changes, f.changeErr
}

func (f *fakeHost) GetRawFile(ctx context.Context, projectID, filePath, ref string) (string, error) {
	if err, ok := f.fileErrs[filePath]; ok {
		return "", err
	}
	if content, ok := f.files[filePath]; ok {
		return content, nil
	}
	return "", errors.New("404 file not found")
}

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	s, err := config.Resolve("")
	require.NoError(t, err)
	return s
}

func req() models.ReviewRequest {
	return models.ReviewRequest{ProjectID: "42", MRIID: 7, HeadSHA: "abc123"}
}

func change(path string) gitlab.Change {
	return gitlab.Change{NewPath: path, OldPath: path, Diff: "@@ -1 +1 @@\n+x\n"}
}

func TestSelectFiltersByLanguage(t *testing.T) {
	host := &fakeHost{changes: []gitlab.Change{
		change("a.py"),
		change("b.md"),
		change("c.js"),
	}}
	s := testSettings(t)
	s.Review.Languages = []string{"python"}

	files, err := Select(context.Background(), host, zerolog.Nop(), req(), s)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.py", files[0].Path)
	assert.Equal(t, "python", files[0].Language)
}

func TestSelectExcludeWinsOverInclude(t *testing.T) {
	host := &fakeHost{changes: []gitlab.Change{
		change("src/app.py"),
		change("src/generated.py"),
	}}
	s := testSettings(t)
	s.Review.IncludePatterns = []string{"src/*"}
	s.Review.ExcludePatterns = []string{"*generated*"}

	files, err := Select(context.Background(), host, zerolog.Nop(), req(), s)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "src/app.py", files[0].Path)
}

func TestSelectBasenamePatterns(t *testing.T) {
	host := &fakeHost{changes: []gitlab.Change{
		change("docs/readme.md"),
		change("pkg/util.go"),
	}}
	s := testSettings(t)
	s.Review.ExcludePatterns = []string{"*.md"}

	files, err := Select(context.Background(), host, zerolog.Nop(), req(), s)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "pkg/util.go", files[0].Path)
}

func TestSelectDropsDeletedFiles(t *testing.T) {
	host := &fakeHost{changes: []gitlab.Change{
		change("keep.go"),
		{NewPath: "gone.go", OldPath: "gone.go", DeletedFile: true},
	}}

	files, err := Select(context.Background(), host, zerolog.Nop(), req(), testSettings(t))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "keep.go", files[0].Path)
}

func TestSelectTruncationIsDeterministic(t *testing.T) {
	// Changes arrive unsorted; the cap must keep the lexicographically
	// first max_files paths no matter the input order.
	host := &fakeHost{changes: []gitlab.Change{
		change("z.go"), change("a.go"), change("m.go"), change("b.go"),
	}}
	s := testSettings(t)
	s.Review.MaxFiles = 2

	first, err := Select(context.Background(), host, zerolog.Nop(), req(), s)
	require.NoError(t, err)

	host.changes = []gitlab.Change{change("b.go"), change("z.go"), change("a.go"), change("m.go")}
	second, err := Select(context.Background(), host, zerolog.Nop(), req(), s)
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.Equal(t, "a.go", first[0].Path)
	assert.Equal(t, "b.go", first[1].Path)
	assert.Equal(t, first, second)
}

func TestSelectZeroChanges(t *testing.T) {
	host := &fakeHost{}
	files, err := Select(context.Background(), host, zerolog.Nop(), req(), testSettings(t))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestSelectChangeListFailureIsFatal(t *testing.T) {
	host := &fakeHost{changeErr: errors.New("401 unauthorized")}

	_, err := Select(context.Background(), host, zerolog.Nop(), req(), testSettings(t))
	var serr *SelectionError
	require.ErrorAs(t, err, &serr)
}

func TestSelectFullScopeFetchesContent(t *testing.T) {
	host := &fakeHost{
		changes: []gitlab.Change{change("ok.py"), change("broken.py")},
		files:   map[string]string{"ok.py": "print('x')\n"},
		fileErrs: map[string]error{
			"broken.py": errors.New("503 service unavailable"),
		},
	}
	s := testSettings(t)
	s.Review.Scope = "full"

	files, err := Select(context.Background(), host, zerolog.Nop(), req(), s)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Error(t, files[0].FetchErr) // broken.py sorts first
	assert.Equal(t, "print('x')\n", files[1].Content)
	assert.NoError(t, files[1].FetchErr)
}

func TestSelectTruncatesOversizedContent(t *testing.T) {
	big := strings.Repeat("x", 100)
	host := &fakeHost{
		changes: []gitlab.Change{change("big.py")},
		files:   map[string]string{"big.py": big},
	}
	s := testSettings(t)
	s.Review.Scope = "full"
	s.Review.MaxContentBytes = 10

	files, err := Select(context.Background(), host, zerolog.Nop(), req(), s)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, files[0].Truncated)
	assert.Len(t, files[0].Content, 10)
	assert.Equal(t, 100, files[0].Size)
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]string{
		"app.py":      "python",
		"web/main.ts": "typescript",
		"x.go":        "go",
		"notes.txt":   "",
		"Makefile":    "",
	}
	for file, want := range cases {
		assert.Equal(t, want, DetectLanguage(file), fmt.Sprintf("file %s", file))
	}
}
