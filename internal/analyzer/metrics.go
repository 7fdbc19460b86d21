package analyzer

import (
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/duplication"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/violation"
)

// Metrics are the roll-up scores of one run. All scores sit in [0, 1]; the
// index is an open-ended weighted sum.
type Metrics struct {
	ConnascenceIndex float64        `json:"connascence_index"`
	ConnascenceScore float64        `json:"connascence_score"`
	SafetyCompliance float64        `json:"safety_compliance"`
	DuplicationScore float64        `json:"duplication_score"`
	OverallScore     float64        `json:"overall_score"`
	TotalViolations  int            `json:"total_violations"`
	BySeverity       map[string]int `json:"by_severity"`
}

func computeMetrics(violations []*violation.Violation, dup *duplication.Result) Metrics {
	m := Metrics{
		TotalViolations: len(violations),
		BySeverity:      map[string]int{"critical": 0, "high": 0, "medium": 0, "low": 0},
	}

	safetyPenalty := 0.0
	for _, v := range violations {
		m.BySeverity[v.Severity.String()]++
		m.ConnascenceIndex += v.Severity.Weight() * v.Weight
		if v.Kind == violation.KindSafetyRule || len(v.SafetyRules) > 0 {
			safetyPenalty += v.Severity.Weight()
		}
	}

	m.ConnascenceScore = clampScore(1.0 - m.ConnascenceIndex*0.01)
	m.SafetyCompliance = clampScore(1.0 - safetyPenalty/100.0)

	clusters := 0
	if dup != nil {
		clusters = len(dup.Clusters)
	}
	m.DuplicationScore = clampScore(1.0 - 0.1*float64(clusters))

	m.OverallScore = 0.4*m.ConnascenceScore + 0.3*m.SafetyCompliance + 0.3*m.DuplicationScore
	return m
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
