package violation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintStability(t *testing.T) {
	a := New(KindPosition, High, "app.py", 10, 4, "too many parameters")
	b := New(KindPosition, High, "app.py", 10, 4, "too many parameters")
	c := New(KindPosition, High, "app.py", 11, 4, "too many parameters")

	assert.Equal(t, a.ID, b.ID, "identical findings share a fingerprint")
	assert.NotEqual(t, a.ID, c.ID, "location changes the fingerprint")
	assert.Len(t, a.ID, 12)

	// Severity reassignment must not move the identity.
	b.Severity = Critical
	assert.Equal(t, a.ID, b.fingerprint())
}

func TestFingerprintUsesDescriptionPrefix(t *testing.T) {
	long := "prefix that is exactly the same for both findings up to fifty characters, then diverges A"
	other := "prefix that is exactly the same for both findings up to fifty characters, then diverges B"

	a := New(KindMeaning, Medium, "app.py", 3, 0, long)
	b := New(KindMeaning, Medium, "app.py", 3, 0, other)
	assert.Equal(t, a.ID, b.ID, "only the first fifty description characters count")
}

func TestSeverityOrderingAndWeights(t *testing.T) {
	assert.True(t, Critical > High && High > Medium && Medium > Low)
	assert.Equal(t, 10.0, Critical.Weight())
	assert.Equal(t, 5.0, High.Weight())
	assert.Equal(t, 2.0, Medium.Weight())
	assert.Equal(t, 1.0, Low.Weight())
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, Critical, ParseSeverity("critical"))
	assert.Equal(t, Low, ParseSeverity("low"))
	assert.Equal(t, Medium, ParseSeverity("nonsense"))
}

func TestKindNames(t *testing.T) {
	assert.Equal(t, "connascence_of_position", KindPosition.String())
	assert.Equal(t, "god_object", KindGodObject.String())
	assert.Equal(t, "safety_rule_violation", KindSafetyRule.String())
	assert.True(t, KindAlgorithm.IsConnascence())
	assert.False(t, KindGodFunction.IsConnascence())
	assert.False(t, KindSyntaxError.IsConnascence())
}

func TestTagDeduplicatesAndSorts(t *testing.T) {
	v := New(KindSafetyRule, High, "app.py", 1, 0, "finding")
	v.Tag(RuleCheckedReturns)
	v.Tag(RuleControlFlow)
	v.Tag(RuleCheckedReturns)

	require.Len(t, v.SafetyRules, 2)
	assert.Equal(t, []RuleID{RuleControlFlow, RuleCheckedReturns}, v.SafetyRules)
	assert.True(t, v.HasRule(RuleControlFlow))
	assert.False(t, v.HasRule(RuleLoopBounds))
}

func TestToRecord(t *testing.T) {
	v := New(KindGodFunction, High, "app.py", 12, 4, "function too long")
	v.Weight = 7.0

	rec := v.ToRecord()
	assert.Equal(t, v.ID, rec.ID)
	assert.Equal(t, "god_function", rec.Type)
	assert.Equal(t, "god_function", rec.RuleID, "rule id falls back to the kind")
	assert.Equal(t, "high", rec.Severity)
	assert.Equal(t, 12, rec.LineNumber)
	assert.Equal(t, 7.0, rec.Weight)

	v.Tag(RuleFunctionSize)
	assert.Equal(t, "rule_4", v.ToRecord().RuleID)
}

func TestSARIFLevels(t *testing.T) {
	assert.Equal(t, "error", Critical.SARIFLevel())
	assert.Equal(t, "error", High.SARIFLevel())
	assert.Equal(t, "warning", Medium.SARIFLevel())
	assert.Equal(t, "note", Low.SARIFLevel())
}
