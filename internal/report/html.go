package report

import (
	"fmt"
	"html/template"
	"os"

	"github.com/mergelens/pkg/models"
)

type htmlData struct {
	Summary  models.RunSummary
	Findings []htmlFinding
	Counts   map[string]int
}

type htmlFinding struct {
	Location   string
	Severity   models.Severity
	BadgeClass string
	Category   models.Category
	Message    string
	Suggestion string
	Partial    bool
}

var htmlTmpl = template.Must(template.New("report").Parse(htmlTemplate))

func writeHTML(path string, data Data) error {
	page := htmlData{
		Summary: data.Summary,
		Counts:  data.SeverityCounts,
	}
	for _, f := range data.Findings {
		location := f.File
		if f.Line > 0 {
			location = fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		page.Findings = append(page.Findings, htmlFinding{
			Location:   location,
			Severity:   f.Severity,
			BadgeClass: "badge-" + string(f.Severity),
			Category:   f.Category,
			Message:    f.Message,
			Suggestion: f.Suggestion,
			Partial:    f.Partial,
		})
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer out.Close()

	if err := htmlTmpl.Execute(out, page); err != nil {
		return fmt.Errorf("rendering HTML report: %w", err)
	}
	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Code Review {{.Summary.Request.ProjectID}}!{{.Summary.Request.MRIID}}</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem auto; max-width: 960px; color: #2e2e2e; }
  h1 { font-size: 1.4rem; }
  table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
  th, td { border: 1px solid #dbdbdb; padding: 0.5rem 0.75rem; text-align: left; vertical-align: top; }
  th { background: #fafafa; }
  code { background: #f0f0f0; padding: 0.1rem 0.3rem; border-radius: 3px; }
  .badge { padding: 0.15rem 0.5rem; border-radius: 3px; color: #fff; font-size: 0.8rem; }
  .badge-high { background: #dd2b0e; }
  .badge-medium { background: #c17d10; }
  .badge-low { background: #1f75cb; }
  .meta { color: #737278; font-size: 0.9rem; }
  .suggestion { color: #24663b; }
</style>
</head>
<body>
<h1>AI Code Review &mdash; {{.Summary.Request.ProjectID}}!{{.Summary.Request.MRIID}}</h1>
<p class="meta">
  Run {{.Summary.RunID}} &middot; status {{.Summary.Status}} &middot;
  {{.Summary.FilesReviewed}}/{{.Summary.FilesSelected}} files reviewed
  {{- if .Summary.FilesFailed}} ({{.Summary.FilesFailed}} failed){{end}} &middot;
  {{len .Findings}} findings
  {{- with index .Counts "high"}} &middot; {{.}} high{{end}}
</p>
{{if .Findings}}
<table>
  <tr><th>Location</th><th>Severity</th><th>Category</th><th>Finding</th></tr>
  {{range .Findings}}
  <tr>
    <td><code>{{.Location}}</code></td>
    <td><span class="badge {{.BadgeClass}}">{{.Severity}}</span></td>
    <td>{{.Category}}</td>
    <td>
      {{.Message}}
      {{if .Suggestion}}<br><span class="suggestion">Suggestion: {{.Suggestion}}</span>{{end}}
      {{if .Partial}}<br><span class="meta">reviewed from truncated content</span>{{end}}
    </td>
  </tr>
  {{end}}
</table>
{{else}}
<p>No findings at or above the configured severity threshold.</p>
{{end}}
</body>
</html>
`
