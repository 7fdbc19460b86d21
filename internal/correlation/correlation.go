// Package correlation joins the per-file findings, safety results, and
// duplication clusters into file-level risk clusters, then matches known
// decay patterns against them to predict likely failure modes.
package correlation

import (
	"fmt"
	"sort"
	"sync"

	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/duplication"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/violation"
)

// Phase tracks where the engine is in its pipeline. Observable while a
// correlation run is in flight.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCollecting
	PhaseCorrelating
	PhasePredicting
	PhaseRecommending
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseCollecting:
		return "collecting"
	case PhaseCorrelating:
		return "correlating"
	case PhasePredicting:
		return "predicting"
	case PhaseRecommending:
		return "recommending"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// RiskCluster aggregates everything known about one file.
type RiskCluster struct {
	FilePath         string
	Violations       []*violation.Violation
	ConnascenceCount int
	SafetyCount      int
	DuplicationCount int
	FailureRisk      violation.Severity
	Strength         float64
	Patterns         []string
}

func (c *RiskCluster) hasKind(k violation.Kind) bool {
	for _, v := range c.Violations {
		if v.Kind == k {
			return true
		}
	}
	return false
}

func (c *RiskCluster) hasRule(r violation.RuleID) bool {
	for _, v := range c.Violations {
		if v.HasRule(r) {
			return true
		}
	}
	return false
}

// pattern is one entry of the ordered decay-pattern table. Earlier entries
// are reported first when several match; entries carrying a fixed risk also
// drive the failure-risk grade.
type pattern struct {
	name           string
	matches        func(c *RiskCluster) bool
	risk           violation.Severity
	prediction     string
	recommendation string
}

var patterns = []pattern{
	{
		name: "god_object_magic_literals",
		matches: func(c *RiskCluster) bool {
			return c.hasKind(violation.KindGodObject) && c.hasKind(violation.KindMeaning)
		},
		risk:           violation.Critical,
		prediction:     "The god object in %s hides its behavior behind unexplained literals",
		recommendation: "Split the god object in %s and name its magic literals",
	},
	{
		name: "runaway_control_flow",
		matches: func(c *RiskCluster) bool {
			return c.hasRule(violation.RuleControlFlow) && c.hasRule(violation.RuleLoopBounds)
		},
		risk:           violation.Critical,
		prediction:     "Unbounded loops and recursion in %s can run away at runtime",
		recommendation: "Bound every loop and remove the recursion in %s",
	},
	{
		name: "duplicated_naming_drift",
		matches: func(c *RiskCluster) bool {
			return c.DuplicationCount >= 3 && c.hasKind(violation.KindName)
		},
		risk:           violation.High,
		prediction:     "Copies of %s are drifting apart behind inconsistent names",
		recommendation: "Consolidate the copies of %s under one well-named implementation",
	},
	{
		name: "unverified_error_paths",
		matches: func(c *RiskCluster) bool {
			return c.hasRule(violation.RuleAssertions) && c.hasRule(violation.RuleCheckedReturns)
		},
		risk:           violation.High,
		prediction:     "Failures in %s pass silently through unchecked, unasserted calls",
		recommendation: "Check every return value and add assertions in %s",
	},
	{
		name:           "coupling_cascade",
		matches:        func(c *RiskCluster) bool { return c.ConnascenceCount > 1 },
		prediction:     "Edits to %s will ripple into coupled call sites",
		recommendation: "Reduce coupling in %s before extending it",
	},
	{
		name:           "unsafe_coupling",
		matches:        func(c *RiskCluster) bool { return c.SafetyCount > 0 && c.ConnascenceCount > 0 },
		prediction:     "Safety violations in %s are amplified by its coupling",
		recommendation: "Fix the safety violations in %s first, then decouple",
	},
	{
		name:           "copy_paste_decay",
		matches:        func(c *RiskCluster) bool { return c.DuplicationCount > 0 },
		prediction:     "Fixes in %s will be missed in its duplicated copies",
		recommendation: "Consolidate the duplicated implementations around %s",
	},
	{
		name: "error_prone_file",
		matches: func(c *RiskCluster) bool {
			critical := 0
			for _, v := range c.Violations {
				if v.Severity == violation.Critical {
					critical++
				}
			}
			return critical >= 2
		},
		prediction:     "%s concentrates critical findings and will keep producing defects",
		recommendation: "Schedule a focused refactoring pass over %s",
	},
}

// Report is the cross-analysis result for one run. OverallRisk is the worst
// cluster's failure risk; Low for a clean tree.
type Report struct {
	Clusters        []*RiskCluster
	Predictions     []string
	Recommendations []string
	OverallRisk     violation.Severity
	QualityScore    float64
}

// Engine runs the correlation pipeline. Phase is observable concurrently;
// the rest of the state lives in the returned report.
type Engine struct {
	mu    sync.Mutex
	phase Phase
}

func NewEngine() *Engine {
	return &Engine{phase: PhaseIdle}
}

func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) setPhase(p Phase) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
}

// Correlate groups violations by file, scores each cluster, and matches the
// pattern table. A nil duplication result means no duplication data.
func (e *Engine) Correlate(violations []*violation.Violation, dup *duplication.Result) *Report {
	e.setPhase(PhaseCollecting)
	clusters := collect(violations, dup)

	e.setPhase(PhaseCorrelating)
	for _, c := range clusters {
		c.Strength = strength(c)
		c.FailureRisk = failureRisk(c)
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		a, b := clusters[i], clusters[j]
		if a.FailureRisk != b.FailureRisk {
			return a.FailureRisk > b.FailureRisk
		}
		if a.Strength != b.Strength {
			return a.Strength > b.Strength
		}
		return a.FilePath < b.FilePath
	})

	report := &Report{Clusters: clusters, OverallRisk: violation.Low, QualityScore: qualityScore(violations)}
	for _, c := range clusters {
		if c.FailureRisk > report.OverallRisk {
			report.OverallRisk = c.FailureRisk
		}
	}

	e.setPhase(PhasePredicting)
	for _, c := range clusters {
		for _, p := range patterns {
			if p.matches(c) {
				c.Patterns = append(c.Patterns, p.name)
				report.Predictions = append(report.Predictions, fmt.Sprintf(p.prediction, c.FilePath))
			}
		}
	}

	e.setPhase(PhaseRecommending)
	for _, c := range clusters {
		for _, p := range patterns {
			if p.matches(c) {
				report.Recommendations = append(report.Recommendations, fmt.Sprintf(p.recommendation, c.FilePath))
			}
		}
	}

	e.setPhase(PhaseDone)
	return report
}

func collect(violations []*violation.Violation, dup *duplication.Result) []*RiskCluster {
	byFile := make(map[string]*RiskCluster)
	cluster := func(file string) *RiskCluster {
		c, ok := byFile[file]
		if !ok {
			c = &RiskCluster{FilePath: file}
			byFile[file] = c
		}
		return c
	}

	for _, v := range violations {
		c := cluster(v.FilePath)
		c.Violations = append(c.Violations, v)
		if v.Kind.IsConnascence() {
			c.ConnascenceCount++
		}
		if v.Kind == violation.KindSafetyRule || len(v.SafetyRules) > 0 {
			c.SafetyCount++
		}
	}

	// A file can surface through a duplication cluster alone; it still gets
	// a risk cluster of its own.
	if dup != nil {
		for _, dc := range dup.Clusters {
			for _, file := range dc.MemberFiles {
				cluster(file).DuplicationCount++
			}
		}
	}

	clusters := make([]*RiskCluster, 0, len(byFile))
	for _, c := range byFile {
		clusters = append(clusters, c)
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].FilePath < clusters[j].FilePath })
	return clusters
}

// criticalRules is the safety-rule subset whose repeated presence alone marks
// a file as high failure risk.
var criticalRules = []violation.RuleID{
	violation.RuleControlFlow,
	violation.RuleLoopBounds,
	violation.RuleHeapUsage,
	violation.RuleWarnings,
}

// highRiskKinds are the violation kinds whose co-occurrence marks a file as
// high failure risk.
var highRiskKinds = []violation.Kind{
	violation.KindAlgorithm,
	violation.KindTiming,
	violation.KindExecution,
}

// failureRisk grades one cluster through an ordered rule table, most specific
// first: a known dangerous co-occurrence pattern fixes the risk outright, then
// repeated critical safety rules or co-occurring high-risk kinds grade High,
// then any finding at all grades Medium.
func failureRisk(c *RiskCluster) violation.Severity {
	for _, p := range patterns {
		if p.risk != 0 && p.matches(c) {
			return p.risk
		}
	}

	rules := 0
	for _, r := range criticalRules {
		if c.hasRule(r) {
			rules++
		}
	}
	if rules >= 2 {
		return violation.High
	}

	kinds := 0
	for _, k := range highRiskKinds {
		if c.hasKind(k) {
			kinds++
		}
	}
	if kinds >= 2 {
		return violation.High
	}

	if len(c.Violations) > 0 || c.DuplicationCount > 0 {
		return violation.Medium
	}
	return violation.Low
}

// strength accumulates the risk signals of one cluster, capped at 1.0.
func strength(c *RiskCluster) float64 {
	s := 0.0
	if c.ConnascenceCount > 1 {
		s += 0.3
	}
	if c.SafetyCount > 0 && c.ConnascenceCount > 0 {
		s += 0.4
	}
	if c.DuplicationCount > 0 {
		s += 0.3
	}
	if s > 1.0 {
		s = 1.0
	}
	return s
}

// qualityScore is 1.0 for a clean tree, degraded by severity-weighted counts.
func qualityScore(violations []*violation.Violation) float64 {
	penalty := 0.0
	for _, v := range violations {
		switch v.Severity {
		case violation.Critical:
			penalty += 0.3
		case violation.High:
			penalty += 0.1
		case violation.Medium:
			penalty += 0.05
		default:
			penalty += 0.01
		}
	}
	score := 1.0 - penalty
	if score < 0 {
		return 0
	}
	return score
}
