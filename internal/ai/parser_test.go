package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mergelens/pkg/models"
)

func TestParseCleanJSON(t *testing.T) {
	response := `{
		"comments": [
			{"line_number": 12, "severity": "high", "category": "security", "title": "SQL injection", "description": "query is built by string concatenation", "suggestion": "use parameterized queries"}
		]
	}`

	result := Parse("db.py", false, response)
	require.True(t, result.OK)
	require.Len(t, result.Findings, 1)

	f := result.Findings[0]
	assert.Equal(t, "db.py", f.File)
	assert.Equal(t, 12, f.Line)
	assert.Equal(t, models.SeverityHigh, f.Severity)
	assert.Equal(t, models.CategorySecurity, f.Category)
	assert.Equal(t, "SQL injection: query is built by string concatenation", f.Message)
	assert.Equal(t, "use parameterized queries", f.Suggestion)
	assert.False(t, f.Partial)
}

func TestParseFencedJSON(t *testing.T) {
	response := "Here is my review:\n```json\n{\"comments\": [{\"line_number\": 3, \"severity\": \"low\", \"category\": \"docs\", \"title\": \"missing docstring\"}]}\n```\nHope that helps!"

	result := Parse("a.py", false, response)
	require.True(t, result.OK)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, models.CategoryDocs, result.Findings[0].Category)
}

func TestParseRepairsTrailingComma(t *testing.T) {
	response := `{"comments": [{"line_number": 1, "severity": "medium", "category": "quality", "title": "dead code",},]}`

	result := Parse("a.py", false, response)
	require.True(t, result.OK)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, models.SeverityMedium, result.Findings[0].Severity)
}

func TestParseUnparseableKeepsRaw(t *testing.T) {
	response := "I'm sorry, I can't review this file."

	result := Parse("a.py", false, response)
	assert.False(t, result.OK)
	assert.Empty(t, result.Findings)
	assert.Equal(t, response, result.Raw)
}

func TestParseNormalizesSloppyEnums(t *testing.T) {
	response := `{"comments": [
		{"line_number": 2, "severity": "CRITICAL", "category": "style", "title": "long line"},
		{"line_number": -5, "severity": "Low", "category": "documentation", "title": "typo in comment"}
	]}`

	result := Parse("a.py", false, response)
	require.True(t, result.OK)
	require.Len(t, result.Findings, 2)

	// Unknown severities fold to medium, aliases fold to the canonical
	// category, and negative lines clamp to file-level.
	assert.Equal(t, models.SeverityMedium, result.Findings[0].Severity)
	assert.Equal(t, models.CategoryQuality, result.Findings[0].Category)
	assert.Equal(t, models.SeverityLow, result.Findings[1].Severity)
	assert.Equal(t, models.CategoryDocs, result.Findings[1].Category)
	assert.Equal(t, 0, result.Findings[1].Line)
}

func TestParseTruncatedInputMarksPartial(t *testing.T) {
	response := `{"comments": [{"line_number": 900, "severity": "high", "category": "logic", "title": "off by one"}]}`

	result := Parse("big.py", true, response)
	require.True(t, result.OK)
	require.Len(t, result.Findings, 1)
	assert.True(t, result.Findings[0].Partial)
}

func TestParseEmptyComments(t *testing.T) {
	result := Parse("a.py", false, `{"comments": []}`)
	require.True(t, result.OK)
	assert.Empty(t, result.Findings)
}

func TestParseSkipsMessagelessComments(t *testing.T) {
	response := `{"comments": [
		{"line_number": 1, "severity": "low", "category": "quality", "title": "", "description": ""},
		{"line_number": 2, "severity": "low", "category": "quality", "title": "real finding"}
	]}`

	result := Parse("a.py", false, response)
	require.True(t, result.OK)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "real finding", result.Findings[0].Message)
}
