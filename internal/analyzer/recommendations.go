package analyzer

import (
	"fmt"

	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/violation"
)

// maxRecommendations bounds the top-level action list; the full detail stays
// in the correlation and duplication sections.
const maxRecommendations = 8

// buildRecommendations distills the report into a short, ordered action list:
// critical findings first, then consolidation plans, then the correlation
// engine's file-level advice.
func buildRecommendations(r *Report) []string {
	var recs []string

	if n := r.Metrics.BySeverity[violation.Critical.String()]; n > 0 {
		recs = append(recs, fmt.Sprintf("Resolve the %d critical findings before anything else", n))
	}

	for i, plan := range r.Duplication.Consolidations {
		if i >= 3 {
			break
		}
		recs = append(recs, fmt.Sprintf("%s (start with %s)", plan.Strategy, plan.TargetFile))
	}

	for _, rec := range r.Correlation.Recommendations {
		recs = append(recs, rec)
	}

	return dedupe(recs, maxRecommendations)
}

func dedupe(recs []string, limit int) []string {
	seen := make(map[string]struct{}, len(recs))
	var out []string
	for _, rec := range recs {
		if _, ok := seen[rec]; ok {
			continue
		}
		seen[rec] = struct{}{}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out
}
