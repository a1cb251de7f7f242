// Package findings holds the pure filtering stage between review and
// publishing: severity thresholding and duplicate collapse. Both
// functions are deterministic and never touch the network.
package findings

import (
	"sort"

	"github.com/mergelens/pkg/models"
)

// Threshold keeps findings at or above min severity. Input order is
// preserved; the input slice is never mutated.
func Threshold(fs []models.Finding, min models.Severity) []models.Finding {
	kept := make([]models.Finding, 0, len(fs))
	for _, f := range fs {
		if f.Severity.Rank() >= min.Rank() {
			kept = append(kept, f)
		}
	}
	return kept
}

// Dedup collapses findings that share a fingerprint. The survivor keeps
// the highest severity seen across the group and the first non-empty
// suggestion; the first occurrence fixes its position in the output.
// Dedup is idempotent: Dedup(Dedup(x)) == Dedup(x).
func Dedup(fs []models.Finding) []models.Finding {
	index := make(map[string]int, len(fs))
	out := make([]models.Finding, 0, len(fs))

	for _, f := range fs {
		fp := f.Fingerprint()
		i, seen := index[fp]
		if !seen {
			index[fp] = len(out)
			out = append(out, f)
			continue
		}
		if f.Severity.Rank() > out[i].Severity.Rank() {
			out[i].Severity = f.Severity
		}
		if out[i].Suggestion == "" && f.Suggestion != "" {
			out[i].Suggestion = f.Suggestion
		}
		out[i].Partial = out[i].Partial || f.Partial
	}
	return out
}

// SortForReport orders findings by (file, line, severity desc, message)
// so reports and published comments come out in a stable order.
func SortForReport(fs []models.Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].File != fs[j].File {
			return fs[i].File < fs[j].File
		}
		if fs[i].Line != fs[j].Line {
			return fs[i].Line < fs[j].Line
		}
		if fs[i].Severity.Rank() != fs[j].Severity.Rank() {
			return fs[i].Severity.Rank() > fs[j].Severity.Rank()
		}
		return fs[i].Message < fs[j].Message
	})
}
