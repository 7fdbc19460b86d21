package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/duplication"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/violation"
)

func vio(kind violation.Kind, sev violation.Severity, file string, line int) *violation.Violation {
	return violation.New(kind, sev, file, line, 0, "finding")
}

func TestCorrelateGroupsByFile(t *testing.T) {
	vs := []*violation.Violation{
		vio(violation.KindPosition, violation.Medium, "a.py", 1),
		vio(violation.KindMeaning, violation.Medium, "a.py", 5),
		vio(violation.KindTiming, violation.Medium, "b.py", 3),
	}

	report := NewEngine().Correlate(vs, nil)

	require.Len(t, report.Clusters, 2)
	byFile := map[string]*RiskCluster{}
	for _, c := range report.Clusters {
		byFile[c.FilePath] = c
	}
	assert.Equal(t, 2, byFile["a.py"].ConnascenceCount)
	assert.Equal(t, 1, byFile["b.py"].ConnascenceCount)
	assert.Len(t, byFile["a.py"].Violations, 2)
}

func TestClusterStrength(t *testing.T) {
	t.Run("coupling alone", func(t *testing.T) {
		vs := []*violation.Violation{
			vio(violation.KindPosition, violation.Medium, "a.py", 1),
			vio(violation.KindMeaning, violation.Medium, "a.py", 2),
		}
		report := NewEngine().Correlate(vs, nil)
		assert.InDelta(t, 0.3, report.Clusters[0].Strength, 1e-9)
	})

	t.Run("safety amplifies coupling", func(t *testing.T) {
		safety := vio(violation.KindSafetyRule, violation.Critical, "a.py", 3)
		safety.Tag(violation.RuleControlFlow)
		vs := []*violation.Violation{
			vio(violation.KindPosition, violation.Medium, "a.py", 1),
			vio(violation.KindMeaning, violation.Medium, "a.py", 2),
			safety,
		}
		report := NewEngine().Correlate(vs, nil)
		assert.InDelta(t, 0.7, report.Clusters[0].Strength, 1e-9)
	})

	t.Run("duplication completes the triad", func(t *testing.T) {
		safety := vio(violation.KindSafetyRule, violation.Critical, "a.py", 3)
		vs := []*violation.Violation{
			vio(violation.KindPosition, violation.Medium, "a.py", 1),
			vio(violation.KindMeaning, violation.Medium, "a.py", 2),
			safety,
		}
		dup := &duplication.Result{Clusters: []*duplication.Cluster{
			{Kind: duplication.ClusterExact, MemberFiles: []string{"a.py", "b.py"}},
		}}
		report := NewEngine().Correlate(vs, dup)
		assert.InDelta(t, 1.0, report.Clusters[0].Strength, 1e-9)
	})
}

func TestFailureRiskGrading(t *testing.T) {
	t.Run("god object with magic literals is critical", func(t *testing.T) {
		vs := []*violation.Violation{
			vio(violation.KindGodObject, violation.Critical, "hub.py", 1),
			vio(violation.KindMeaning, violation.Medium, "hub.py", 40),
		}
		report := NewEngine().Correlate(vs, nil)

		require.Len(t, report.Clusters, 1)
		c := report.Clusters[0]
		assert.Equal(t, violation.Critical, c.FailureRisk)
		assert.Contains(t, c.Patterns, "god_object_magic_literals")
		assert.Equal(t, violation.Critical, report.OverallRisk)
	})

	t.Run("unbounded loop plus recursion is critical", func(t *testing.T) {
		loop := vio(violation.KindSafetyRule, violation.Critical, "worker.py", 3)
		loop.Tag(violation.RuleLoopBounds)
		recur := vio(violation.KindSafetyRule, violation.Critical, "worker.py", 20)
		recur.Tag(violation.RuleControlFlow)

		report := NewEngine().Correlate([]*violation.Violation{loop, recur}, nil)
		require.Len(t, report.Clusters, 1)
		assert.Equal(t, violation.Critical, report.Clusters[0].FailureRisk)
		assert.Contains(t, report.Clusters[0].Patterns, "runaway_control_flow")
	})

	t.Run("missing assertions plus unchecked returns is high", func(t *testing.T) {
		density := vio(violation.KindSafetyRule, violation.High, "io.py", 5)
		density.Tag(violation.RuleAssertions)
		unchecked := vio(violation.KindSafetyRule, violation.High, "io.py", 9)
		unchecked.Tag(violation.RuleCheckedReturns)

		report := NewEngine().Correlate([]*violation.Violation{density, unchecked}, nil)
		require.Len(t, report.Clusters, 1)
		assert.Equal(t, violation.High, report.Clusters[0].FailureRisk)
	})

	t.Run("repeated duplication with poor naming is high", func(t *testing.T) {
		vs := []*violation.Violation{vio(violation.KindName, violation.Low, "copies.py", 2)}
		dup := &duplication.Result{Clusters: []*duplication.Cluster{
			{Kind: duplication.ClusterExact, MemberFiles: []string{"copies.py", "x.py"}},
			{Kind: duplication.ClusterExact, MemberFiles: []string{"copies.py", "y.py"}},
			{Kind: duplication.ClusterSimilar, MemberFiles: []string{"copies.py", "z.py"}},
		}}
		report := NewEngine().Correlate(vs, dup)

		var c *RiskCluster
		for _, rc := range report.Clusters {
			if rc.FilePath == "copies.py" {
				c = rc
			}
		}
		require.NotNil(t, c)
		assert.Equal(t, violation.High, c.FailureRisk)
		assert.Contains(t, c.Patterns, "duplicated_naming_drift")
	})

	t.Run("two critical safety rules without a named pattern are high", func(t *testing.T) {
		recur := vio(violation.KindSafetyRule, violation.Critical, "alloc.py", 3)
		recur.Tag(violation.RuleControlFlow)
		heap := vio(violation.KindSafetyRule, violation.High, "alloc.py", 8)
		heap.Tag(violation.RuleHeapUsage)

		report := NewEngine().Correlate([]*violation.Violation{recur, heap}, nil)
		require.Len(t, report.Clusters, 1)
		assert.Equal(t, violation.High, report.Clusters[0].FailureRisk)
	})

	t.Run("two high-risk kinds are high", func(t *testing.T) {
		vs := []*violation.Violation{
			vio(violation.KindAlgorithm, violation.Medium, "calc.py", 1),
			vio(violation.KindTiming, violation.Medium, "calc.py", 7),
		}
		report := NewEngine().Correlate(vs, nil)
		require.Len(t, report.Clusters, 1)
		assert.Equal(t, violation.High, report.Clusters[0].FailureRisk)
	})

	t.Run("any lone finding floors at medium", func(t *testing.T) {
		report := NewEngine().Correlate([]*violation.Violation{
			vio(violation.KindName, violation.Low, "tidy.py", 1),
		}, nil)
		require.Len(t, report.Clusters, 1)
		assert.Equal(t, violation.Medium, report.Clusters[0].FailureRisk)
		assert.Equal(t, violation.Medium, report.OverallRisk)
	})

	t.Run("clean tree is low risk", func(t *testing.T) {
		report := NewEngine().Correlate(nil, nil)
		assert.Equal(t, violation.Low, report.OverallRisk)
	})
}

func TestDuplicationOnlyFileGetsCluster(t *testing.T) {
	vs := []*violation.Violation{vio(violation.KindPosition, violation.Medium, "main.py", 1)}
	dup := &duplication.Result{Clusters: []*duplication.Cluster{
		{Kind: duplication.ClusterExact, MemberFiles: []string{"main.py", "only_dup.py"}},
	}}

	report := NewEngine().Correlate(vs, dup)

	require.Len(t, report.Clusters, 2)
	var c *RiskCluster
	for _, rc := range report.Clusters {
		if rc.FilePath == "only_dup.py" {
			c = rc
		}
	}
	require.NotNil(t, c, "a file known only through a duplication cluster still gets graded")
	assert.Equal(t, 1, c.DuplicationCount)
	assert.Empty(t, c.Violations)
	assert.Equal(t, violation.Medium, c.FailureRisk)
}

func TestPatternsAndPredictions(t *testing.T) {
	safety := vio(violation.KindSafetyRule, violation.Critical, "core.py", 3)
	vs := []*violation.Violation{
		vio(violation.KindPosition, violation.Medium, "core.py", 1),
		vio(violation.KindAlgorithm, violation.Medium, "core.py", 2),
		safety,
	}
	dup := &duplication.Result{Clusters: []*duplication.Cluster{
		{Kind: duplication.ClusterExact, MemberFiles: []string{"core.py", "util.py"}},
	}}

	report := NewEngine().Correlate(vs, dup)

	require.Len(t, report.Clusters, 2)
	c := report.Clusters[0]
	assert.Equal(t, "core.py", c.FilePath)
	assert.Equal(t, []string{"coupling_cascade", "unsafe_coupling", "copy_paste_decay"}, c.Patterns,
		"patterns report in table order")
	assert.Equal(t, []string{"copy_paste_decay"}, report.Clusters[1].Patterns,
		"the other duplication member only decays by copy-paste")
	assert.Len(t, report.Predictions, 4)
	assert.Len(t, report.Recommendations, 4)
	assert.Contains(t, report.Predictions[0], "core.py")
}

func TestErrorPronePattern(t *testing.T) {
	vs := []*violation.Violation{
		vio(violation.KindSyntaxError, violation.Critical, "broken.py", 1),
		vio(violation.KindGodObject, violation.Critical, "broken.py", 10),
	}

	report := NewEngine().Correlate(vs, nil)
	require.Len(t, report.Clusters, 1)
	assert.Contains(t, report.Clusters[0].Patterns, "error_prone_file")
}

func TestQualityScore(t *testing.T) {
	t.Run("clean tree scores one", func(t *testing.T) {
		report := NewEngine().Correlate(nil, nil)
		assert.Equal(t, 1.0, report.QualityScore)
		assert.Empty(t, report.Clusters)
	})

	t.Run("weighted penalties", func(t *testing.T) {
		vs := []*violation.Violation{
			vio(violation.KindGodObject, violation.Critical, "a.py", 1), // 0.3
			vio(violation.KindGodFunction, violation.High, "a.py", 2),   // 0.1
			vio(violation.KindMeaning, violation.Medium, "a.py", 3),     // 0.05
			vio(violation.KindName, violation.Low, "a.py", 4),           // 0.01
		}
		report := NewEngine().Correlate(vs, nil)
		assert.InDelta(t, 0.54, report.QualityScore, 1e-9)
	})

	t.Run("floor at zero", func(t *testing.T) {
		var vs []*violation.Violation
		for i := 0; i < 5; i++ {
			vs = append(vs, vio(violation.KindGodObject, violation.Critical, "a.py", i+1))
		}
		report := NewEngine().Correlate(vs, nil)
		assert.Equal(t, 0.0, report.QualityScore)
	})
}

func TestPhaseReachesDone(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, PhaseIdle, e.Phase())
	e.Correlate(nil, nil)
	assert.Equal(t, PhaseDone, e.Phase())
	assert.Equal(t, "done", PhaseDone.String())
}

func TestClustersSortedByStrength(t *testing.T) {
	safety := vio(violation.KindSafetyRule, violation.Critical, "risky.py", 3)
	vs := []*violation.Violation{
		vio(violation.KindPosition, violation.Medium, "risky.py", 1),
		vio(violation.KindMeaning, violation.Medium, "risky.py", 2),
		safety,
		vio(violation.KindName, violation.Low, "calm.py", 1),
	}

	report := NewEngine().Correlate(vs, nil)
	require.Len(t, report.Clusters, 2)
	assert.Equal(t, "risky.py", report.Clusters[0].FilePath)
	assert.Equal(t, "calm.py", report.Clusters[1].FilePath)
}
