package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/mergelens/pkg/models"
)

// ParseResult is the tagged outcome of parsing a model response:
// either findings or the raw text that defeated the parser. Exactly
// one branch is meaningful, discriminated by OK.
type ParseResult struct {
	OK       bool
	Findings []models.Finding
	Raw      string
}

// ParseError reports a response that stayed unparseable after repair.
// It carries a bounded slice of the raw text for the logs.
type ParseError struct {
	File string
	Raw  string
}

func (e *ParseError) Error() string {
	raw := e.Raw
	if len(raw) > 200 {
		raw = raw[:200] + "..."
	}
	return fmt.Sprintf("unparseable model response for %s: %s", e.File, raw)
}

// wire shapes of the model's JSON response
type rawReview struct {
	Comments []rawComment `json:"comments"`
}

type rawComment struct {
	LineNumber  int    `json:"line_number"`
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion"`
}

// Parse extracts findings from a raw model response. Fenced JSON is
// unwrapped first; responses that fail strict parsing get one repair
// pass before being declared unparseable. A truncated input file marks
// every resulting finding as partial.
func Parse(file string, truncated bool, response string) ParseResult {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return ParseResult{Raw: response}
	}

	var review rawReview
	if err := json.Unmarshal([]byte(jsonStr), &review); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(jsonStr)
		if repairErr != nil || json.Unmarshal([]byte(repaired), &review) != nil {
			return ParseResult{Raw: response}
		}
	}

	findings := make([]models.Finding, 0, len(review.Comments))
	for _, c := range review.Comments {
		msg := strings.TrimSpace(c.Title)
		if desc := strings.TrimSpace(c.Description); desc != "" {
			if msg == "" {
				msg = desc
			} else {
				msg = msg + ": " + desc
			}
		}
		if msg == "" {
			continue
		}

		line := c.LineNumber
		if line < 0 {
			line = 0
		}

		findings = append(findings, models.Finding{
			File:       file,
			Line:       line,
			Severity:   models.ParseSeverity(c.Severity),
			Category:   models.ParseCategory(c.Category),
			Message:    msg,
			Suggestion: strings.TrimSpace(c.Suggestion),
			Partial:    truncated,
		})
	}

	return ParseResult{OK: true, Findings: findings}
}

// extractJSON pulls the JSON payload out of a response that may wrap
// it in markdown fences or surrounding prose.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		return raw
	}

	if strings.Contains(raw, "```") {
		var jsonLines []string
		inFence := false
		for _, line := range strings.Split(raw, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				inFence = !inFence
				continue
			}
			if inFence {
				jsonLines = append(jsonLines, line)
			}
		}
		if len(jsonLines) > 0 {
			return strings.TrimSpace(strings.Join(jsonLines, "\n"))
		}
	}

	// Fall back to the first balanced object or array.
	start := strings.IndexAny(raw, "{[")
	if start == -1 {
		return ""
	}
	open := raw[start]
	closing := byte('}')
	if open == '[' {
		closing = ']'
	}

	depth := 0
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return raw[start:]
}
