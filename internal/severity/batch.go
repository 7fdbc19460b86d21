package severity

import (
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/violation"
)

// relatedPairs are violation kinds whose co-occurrence in one file signals a
// deeper structural problem than either kind alone.
var relatedPairs = [][2]violation.Kind{
	{violation.KindPosition, violation.KindAlgorithm},
	{violation.KindMeaning, violation.KindType},
	{violation.KindTiming, violation.KindAlgorithm},
}

// debtBucketSize is the per-file, per-kind count past which repeated findings
// read as accumulated technical debt.
const debtBucketSize = 3

type bucketKey struct {
	file string
	kind violation.Kind
}

// ApplyBatch rescores a whole run at once. Beyond the per-violation pipeline,
// it derives batch context: a file that repeats the same kind more than
// debtBucketSize times carries a technical-debt floor, and a file where more
// than two related kinds co-occur is graded as high business impact. Grades
// and confidences are written back; results are keyed by violation ID.
func (e *Engine) ApplyBatch(violations []*violation.Violation, tools map[string][]ToolReport) map[string]Result {
	buckets := make(map[bucketKey]int)
	fileKinds := make(map[string]map[violation.Kind]bool)
	for _, v := range violations {
		buckets[bucketKey{v.FilePath, v.Kind}]++
		if fileKinds[v.FilePath] == nil {
			fileKinds[v.FilePath] = make(map[violation.Kind]bool)
		}
		fileKinds[v.FilePath][v.Kind] = true
	}

	impact := make(map[string]string)
	for file, kinds := range fileKinds {
		related := make(map[violation.Kind]bool)
		for _, pair := range relatedPairs {
			if kinds[pair[0]] && kinds[pair[1]] {
				related[pair[0]] = true
				related[pair[1]] = true
			}
		}
		if len(related) > 2 {
			impact[file] = "high"
		}
	}

	results := make(map[string]Result, len(violations))
	for _, v := range violations {
		techDebt := 0.0
		if buckets[bucketKey{v.FilePath, v.Kind}] > debtBucketSize {
			techDebt = 0.7
		}

		var res Result
		res.Calculated = e.stage1Base(v, &res)
		e.stage2SafetyFloor(v, &res)
		e.stage3Consensus(v, &res, tools[v.ID])
		e.stage4Context(v, &res, impact[v.FilePath], techDebt)
		res.Confidence = e.confidence(v, tools[v.ID])

		if res.Calculated > v.Severity {
			v.Severity = res.Calculated
		} else {
			res.Calculated = v.Severity
		}
		v.Confidence = res.Confidence
		results[v.ID] = res
	}
	return results
}
