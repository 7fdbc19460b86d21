package severity

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/config"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/violation"
)

func testEngine() *Engine {
	return NewEngine(config.Default())
}

func makeViolation(kind violation.Kind, sev violation.Severity, line int) *violation.Violation {
	return violation.New(kind, sev, "app.py", line, 0, fmt.Sprintf("finding at line %d", line))
}

func TestBaseGrades(t *testing.T) {
	e := testEngine()

	cases := []struct {
		kind violation.Kind
		want violation.Severity
	}{
		{violation.KindName, violation.Low},
		{violation.KindPosition, violation.Medium},
		{violation.KindTiming, violation.High},
		{violation.KindGodObject, violation.Critical},
		{violation.KindSyntaxError, violation.Critical},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			res := e.Score(makeViolation(tc.kind, violation.Low, 1), nil)
			assert.Equal(t, tc.want, res.Calculated)
			assert.NotEmpty(t, res.Reasoning)
		})
	}
}

func TestComplexityEscalation(t *testing.T) {
	e := testEngine()

	v := makeViolation(violation.KindPosition, violation.Medium, 1)
	v.Context.Complexity = 12
	assert.Equal(t, violation.High, e.Score(v, nil).Calculated)

	v = makeViolation(violation.KindPosition, violation.Medium, 2)
	v.Context.Complexity = 16
	assert.Equal(t, violation.Critical, e.Score(v, nil).Calculated)
}

func TestParameterEscalation(t *testing.T) {
	e := testEngine()

	v := makeViolation(violation.KindPosition, violation.Medium, 1)
	v.Context.ParameterCount = 6
	assert.Equal(t, violation.High, e.Score(v, nil).Calculated)

	v = makeViolation(violation.KindPosition, violation.Medium, 2)
	v.Context.ParameterCount = 9
	assert.Equal(t, violation.Critical, e.Score(v, nil).Calculated)
}

func TestContextFlagsEscalateMeaning(t *testing.T) {
	e := testEngine()

	t.Run("conditional literal grades high", func(t *testing.T) {
		v := makeViolation(violation.KindMeaning, violation.Low, 1)
		v.Context.InConditional = true
		assert.Equal(t, violation.High, e.Score(v, nil).Calculated)
	})

	t.Run("security-related literal grades critical", func(t *testing.T) {
		v := makeViolation(violation.KindMeaning, violation.Low, 2)
		v.Context.SecurityRelated = true
		assert.Equal(t, violation.Critical, e.Score(v, nil).Calculated)
	})

	t.Run("security-related timing grades critical", func(t *testing.T) {
		v := makeViolation(violation.KindTiming, violation.Low, 3)
		v.Context.SecurityRelated = true
		assert.Equal(t, violation.Critical, e.Score(v, nil).Calculated)
	})
}

func TestBusinessImpactAdjustment(t *testing.T) {
	e := testEngine()
	at := func(sev violation.Severity, impact string) violation.Severity {
		res := Result{Calculated: sev}
		e.stage4Context(makeViolation(violation.KindPosition, sev, 1), &res, impact, 0)
		return res.Calculated
	}

	t.Run("high impact lifts medium only", func(t *testing.T) {
		assert.Equal(t, violation.High, at(violation.Medium, "high"))
		assert.Equal(t, violation.High, at(violation.High, "high"))
		assert.Equal(t, violation.Low, at(violation.Low, "high"))
	})

	t.Run("critical impact lifts medium and high", func(t *testing.T) {
		assert.Equal(t, violation.Critical, at(violation.Medium, "critical"))
		assert.Equal(t, violation.Critical, at(violation.High, "critical"))
		assert.Equal(t, violation.Low, at(violation.Low, "critical"))
	})
}

func TestSafetyRuleFloors(t *testing.T) {
	e := testEngine()

	t.Run("control flow imposes critical", func(t *testing.T) {
		v := makeViolation(violation.KindSafetyRule, violation.High, 1)
		v.Tag(violation.RuleControlFlow)
		assert.Equal(t, violation.Critical, e.Score(v, nil).Calculated)
	})

	t.Run("scope imposes medium on low base", func(t *testing.T) {
		v := makeViolation(violation.KindName, violation.Low, 2)
		v.Tag(violation.RuleScope)
		assert.Equal(t, violation.Medium, e.Score(v, nil).Calculated)
	})

	t.Run("two high-floor rules escalate to critical", func(t *testing.T) {
		v := makeViolation(violation.KindSafetyRule, violation.High, 3)
		v.Tag(violation.RuleAssertions)
		v.Tag(violation.RuleCheckedReturns)
		assert.Equal(t, violation.Critical, e.Score(v, nil).Calculated)
	})
}

func TestConsensusUpgrade(t *testing.T) {
	e := testEngine()

	agree := []ToolReport{
		{Tool: "linter_a", Severity: violation.Critical, Confidence: 0.9},
		{Tool: "linter_b", Severity: violation.High, Confidence: 0.8},
	}

	t.Run("two confident tools upgrade one step", func(t *testing.T) {
		res := e.Score(makeViolation(violation.KindPosition, violation.Medium, 1), agree)
		assert.Equal(t, violation.High, res.Calculated)
		assert.True(t, res.Upgraded)
	})

	t.Run("one tool is not consensus", func(t *testing.T) {
		res := e.Score(makeViolation(violation.KindPosition, violation.Medium, 2), agree[:1])
		assert.Equal(t, violation.Medium, res.Calculated)
		assert.False(t, res.Upgraded)
	})

	t.Run("low confidence blocks the upgrade", func(t *testing.T) {
		weak := []ToolReport{
			{Tool: "a", Severity: violation.Critical, Confidence: 0.5},
			{Tool: "b", Severity: violation.Critical, Confidence: 0.6},
		}
		res := e.Score(makeViolation(violation.KindPosition, violation.Medium, 3), weak)
		assert.Equal(t, violation.Medium, res.Calculated)
	})
}

func TestApplyNeverDowngrades(t *testing.T) {
	e := testEngine()

	// Detector escalated a magic literal to critical on security grounds; the
	// rescoring pipeline alone would grade it medium.
	v := makeViolation(violation.KindMeaning, violation.Critical, 1)
	res := e.Apply(v, nil)
	assert.Equal(t, violation.Critical, v.Severity)
	assert.Equal(t, violation.Critical, res.Calculated)
}

func TestApplyIdempotent(t *testing.T) {
	e := testEngine()

	v := makeViolation(violation.KindGodFunction, violation.High, 1)
	v.Context.Complexity = 12
	first := e.Apply(v, nil)
	second := e.Apply(v, nil)
	assert.Equal(t, first.Calculated, second.Calculated)
	assert.Equal(t, first.Confidence, second.Confidence)
}

func TestConfidenceAccumulates(t *testing.T) {
	e := testEngine()

	bare := makeViolation(violation.KindMeaning, violation.Medium, 1)
	assert.InDelta(t, 0.5, e.Score(bare, nil).Confidence, 1e-9)

	rich := makeViolation(violation.KindGodFunction, violation.High, 2)
	rich.Context.Complexity = 12
	rich.Context.ParameterCount = 4
	rich.Tag(violation.RuleFunctionSize)
	assert.InDelta(t, 0.95, e.Score(rich, nil).Confidence, 1e-9)

	tools := []ToolReport{{Tool: "a", Severity: violation.High, Confidence: 1.0}}
	assert.InDelta(t, 1.0, e.Score(rich, tools).Confidence, 1e-9, "confidence is capped at 1.0")
}

func TestApplyBatchTechnicalDebt(t *testing.T) {
	e := testEngine()

	var vs []*violation.Violation
	for i := 1; i <= 4; i++ {
		v := violation.New(violation.KindName, violation.Low, "util.py", i, 0, "shadowed name")
		vs = append(vs, v)
	}

	results := e.ApplyBatch(vs, nil)
	require.Len(t, results, 4)
	for _, v := range vs {
		assert.Equal(t, violation.Medium, v.Severity,
			"more than three findings of one kind in a file impose a medium floor")
	}
}

func TestApplyBatchBusinessImpact(t *testing.T) {
	e := testEngine()

	vs := []*violation.Violation{
		makeViolation(violation.KindPosition, violation.Medium, 1),
		makeViolation(violation.KindAlgorithm, violation.Medium, 2),
		makeViolation(violation.KindMeaning, violation.Medium, 3),
		makeViolation(violation.KindType, violation.Medium, 4),
	}

	e.ApplyBatch(vs, nil)
	assert.Equal(t, violation.High, vs[0].Severity,
		"co-occurring related kinds in one file raise each finding one step")
}

func TestApplyBatchSmallBucketsUntouched(t *testing.T) {
	e := testEngine()

	vs := []*violation.Violation{
		violation.New(violation.KindName, violation.Low, "a.py", 1, 0, "shadowed name"),
		violation.New(violation.KindName, violation.Low, "a.py", 2, 0, "shadowed name"),
	}
	e.ApplyBatch(vs, nil)
	for _, v := range vs {
		assert.Equal(t, violation.Low, v.Severity)
	}
}
