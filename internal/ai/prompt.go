package ai

import (
	"fmt"
	"strings"

	"github.com/mergelens/internal/config"
	"github.com/mergelens/pkg/models"
)

const responseSchema = `{
  "comments": [
    {
      "line_number": <int, 0 for file-level remarks>,
      "severity": "low" | "medium" | "high",
      "category": "security" | "performance" | "quality" | "logic" | "docs",
      "title": "<short summary>",
      "description": "<what is wrong and why it matters>",
      "suggestion": "<concrete fix, may be empty>"
    }
  ]
}`

// BuildPrompt renders the review prompt for one file. Diff-scope runs
// see only the unified diff; full-scope runs also get file content.
func BuildPrompt(file models.CandidateFile, settings *config.Settings) string {
	var b strings.Builder

	b.WriteString("You are a senior code reviewer for a GitLab merge request.\n")
	if file.Language != "" {
		fmt.Fprintf(&b, "The file is written in %s.\n", file.Language)
	}
	b.WriteString("Report genuine problems only; do not restate the diff or praise the code.\n")
	if settings.Review.SecurityScan {
		b.WriteString("Flag security problems: injection, secrets in source, unsafe deserialization, missing auth checks.\n")
	} else {
		b.WriteString("Do not report security concerns.\n")
	}
	if settings.Review.PerformanceHints {
		b.WriteString("Include performance concerns where the change makes things measurably slower.\n")
	} else {
		b.WriteString("Do not report performance concerns.\n")
	}
	b.WriteString("Line numbers refer to the new version of the file.\n\n")

	fmt.Fprintf(&b, "File: %s\n\n", file.Path)
	if file.Truncated {
		b.WriteString("Note: the input below was truncated; only comment on what you can see.\n\n")
	}

	if file.Content != "" {
		b.WriteString("Full file content:\n```\n")
		b.WriteString(file.Content)
		b.WriteString("\n```\n\n")
	}
	if file.Diff != "" {
		b.WriteString("Unified diff of this change:\n```diff\n")
		b.WriteString(file.Diff)
		b.WriteString("\n```\n\n")
	}

	b.WriteString("Respond with ONLY a JSON object matching this schema, no prose before or after:\n")
	b.WriteString(responseSchema)
	b.WriteString("\nReturn {\"comments\": []} when there is nothing worth raising.\n")

	return b.String()
}
