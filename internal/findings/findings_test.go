package findings

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mergelens/pkg/models"
)

func finding(file string, line int, sev models.Severity, msg string) models.Finding {
	return models.Finding{
		File:     file,
		Line:     line,
		Severity: sev,
		Category: models.CategoryQuality,
		Message:  msg,
	}
}

func TestThresholdHighKeepsOnlyHigh(t *testing.T) {
	fs := []models.Finding{
		finding("a.go", 1, models.SeverityLow, "nit"),
		finding("a.go", 2, models.SeverityMedium, "questionable"),
		finding("a.go", 3, models.SeverityHigh, "broken"),
	}

	kept := Threshold(fs, models.SeverityHigh)
	require.Len(t, kept, 1)
	assert.Equal(t, "broken", kept[0].Message)
}

func TestThresholdMonotonic(t *testing.T) {
	fs := []models.Finding{
		finding("a.go", 1, models.SeverityLow, "nit"),
		finding("a.go", 2, models.SeverityMedium, "questionable"),
		finding("a.go", 3, models.SeverityHigh, "broken"),
		finding("b.go", 9, models.SeverityMedium, "also questionable"),
	}

	low := Threshold(fs, models.SeverityLow)
	medium := Threshold(fs, models.SeverityMedium)
	high := Threshold(fs, models.SeverityHigh)

	// Raising the threshold can only shrink the set, and every survivor
	// of a stricter filter survives the looser ones too.
	assert.GreaterOrEqual(t, len(low), len(medium))
	assert.GreaterOrEqual(t, len(medium), len(high))
	for _, f := range high {
		assert.Contains(t, medium, f)
		assert.Contains(t, low, f)
	}

	assert.Len(t, low, 4)
	assert.Len(t, medium, 3)
	assert.Len(t, high, 1)
}

func TestThresholdDoesNotMutateInput(t *testing.T) {
	fs := []models.Finding{
		finding("a.go", 1, models.SeverityLow, "nit"),
		finding("a.go", 2, models.SeverityHigh, "broken"),
	}
	snapshot := append([]models.Finding(nil), fs...)

	Threshold(fs, models.SeverityHigh)
	assert.Empty(t, cmp.Diff(snapshot, fs))
}

func TestDedupMergesByFingerprint(t *testing.T) {
	a := finding("a.go", 10, models.SeverityMedium, "Unchecked error return")
	b := finding("a.go", 10, models.SeverityHigh, "unchecked  ERROR return") // same after normalization
	b.Suggestion = "check the error"
	c := finding("a.go", 11, models.SeverityMedium, "unchecked error return") // different line

	out := Dedup([]models.Finding{a, b, c})
	require.Len(t, out, 2)

	// Survivor sits at the first occurrence and keeps the max severity
	// plus the first non-empty suggestion.
	assert.Equal(t, models.SeverityHigh, out[0].Severity)
	assert.Equal(t, "check the error", out[0].Suggestion)
	assert.Equal(t, 10, out[0].Line)
	assert.Equal(t, 11, out[1].Line)
}

func TestDedupIdempotent(t *testing.T) {
	fs := []models.Finding{
		finding("a.go", 1, models.SeverityLow, "dup"),
		finding("a.go", 1, models.SeverityHigh, "dup"),
		finding("b.go", 2, models.SeverityMedium, "unique"),
	}

	once := Dedup(fs)
	twice := Dedup(once)
	assert.Empty(t, cmp.Diff(once, twice))
}

func TestDedupEmpty(t *testing.T) {
	assert.Empty(t, Dedup(nil))
	assert.Empty(t, Dedup([]models.Finding{}))
}

func TestSortForReport(t *testing.T) {
	fs := []models.Finding{
		finding("b.go", 5, models.SeverityLow, "z"),
		finding("a.go", 9, models.SeverityMedium, "y"),
		finding("a.go", 2, models.SeverityLow, "x"),
		finding("a.go", 2, models.SeverityHigh, "w"),
	}

	SortForReport(fs)

	assert.Equal(t, "a.go", fs[0].File)
	assert.Equal(t, 2, fs[0].Line)
	assert.Equal(t, models.SeverityHigh, fs[0].Severity)
	assert.Equal(t, models.SeverityLow, fs[1].Severity)
	assert.Equal(t, 9, fs[2].Line)
	assert.Equal(t, "b.go", fs[3].File)
}
