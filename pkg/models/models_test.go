package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityOrdering(t *testing.T) {
	assert.Less(t, SeverityLow.Rank(), SeverityMedium.Rank())
	assert.Less(t, SeverityMedium.Rank(), SeverityHigh.Rank())
	assert.Zero(t, Severity("bogus").Rank())
	assert.False(t, Severity("bogus").Valid())
}

func TestParseSeverityDefaultsToMedium(t *testing.T) {
	assert.Equal(t, SeverityHigh, ParseSeverity(" HIGH "))
	assert.Equal(t, SeverityLow, ParseSeverity("low"))
	assert.Equal(t, SeverityMedium, ParseSeverity("critical"))
	assert.Equal(t, SeverityMedium, ParseSeverity(""))
}

func TestParseCategoryAliases(t *testing.T) {
	assert.Equal(t, CategoryLogic, ParseCategory("bug"))
	assert.Equal(t, CategoryDocs, ParseCategory("Documentation"))
	assert.Equal(t, CategoryQuality, ParseCategory("style"))
	assert.Equal(t, CategoryPerformance, ParseCategory("perf"))
}

func TestFingerprintIgnoresCosmeticMessageDifferences(t *testing.T) {
	a := Finding{File: "a.py", Line: 3, Category: CategoryLogic, Message: "Possible nil  deref"}
	b := Finding{File: "a.py", Line: 3, Category: CategoryLogic, Message: "possible nil deref "}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	// Suggestion and severity are not part of the identity.
	b.Severity = SeverityHigh
	b.Suggestion = "guard the pointer"
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprintDistinguishesLocationAndCategory(t *testing.T) {
	base := Finding{File: "a.py", Line: 3, Category: CategoryLogic, Message: "possible nil deref"}

	moved := base
	moved.Line = 4
	assert.NotEqual(t, base.Fingerprint(), moved.Fingerprint())

	recategorized := base
	recategorized.Category = CategorySecurity
	assert.NotEqual(t, base.Fingerprint(), recategorized.Fingerprint())
}

func TestReviewRequestKey(t *testing.T) {
	req := ReviewRequest{ProjectID: "42", MRIID: 7}
	assert.Equal(t, "42!7", req.Key())
}
