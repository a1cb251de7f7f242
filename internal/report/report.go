// Package report renders the run's terminal artifacts: a JSON summary
// for machines, an HTML page for humans, and a JUnit XML file so CI can
// fail a pipeline on high-severity findings.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mergelens/internal/findings"
	"github.com/mergelens/pkg/models"
)

const (
	SummaryFile = "ai-review-summary.json"
	HTMLFile    = "ai-review-report.html"
	JUnitFile   = "ai-review-results.xml"
)

// Data is everything the writers need for one run.
type Data struct {
	Summary        models.RunSummary `json:"summary"`
	ReviewedFiles  []string          `json:"reviewed_files,omitempty"`
	Findings       []models.Finding  `json:"findings"`
	SeverityCounts map[string]int    `json:"severity_counts"`
	CategoryCounts map[string]int    `json:"category_counts"`
}

// Write renders all three artifacts into dir. Findings are sorted
// first so output is stable. Writers run independently: one failed
// artifact does not stop the others, and the first error is returned.
func Write(dir string, summary models.RunSummary, reviewedFiles []string, found []models.Finding) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	sorted := append([]models.Finding(nil), found...)
	findings.SortForReport(sorted)

	files := append([]string(nil), reviewedFiles...)
	sort.Strings(files)

	data := Data{
		Summary:        summary,
		ReviewedFiles:  files,
		Findings:       sorted,
		SeverityCounts: map[string]int{},
		CategoryCounts: map[string]int{},
	}
	for _, f := range sorted {
		data.SeverityCounts[string(f.Severity)]++
		data.CategoryCounts[string(f.Category)]++
	}

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keep(writeJSON(filepath.Join(dir, SummaryFile), data))
	keep(writeHTML(filepath.Join(dir, HTMLFile), data))
	keep(writeJUnit(filepath.Join(dir, JUnitFile), data))
	return firstErr
}

func writeJSON(path string, data Data) error {
	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
