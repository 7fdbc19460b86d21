// Package severity rescores violations through a staged pipeline: a base
// grade from the violation type and its measured context, floors from tagged
// safety rules, cross-tool consensus, and finally business-impact context.
// Each stage can only raise or hold the grade; identity never changes.
package severity

import (
	"fmt"

	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/config"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/violation"
)

// ToolReport is one external tool's opinion about a finding, used for the
// consensus stage.
type ToolReport struct {
	Tool       string
	Severity   violation.Severity
	Confidence float64
}

// Result explains one scoring run. Reasoning lists the stages that moved the
// grade, in order.
type Result struct {
	Calculated violation.Severity
	Confidence float64
	Reasoning  []string
	Upgraded   bool
}

// Engine scores violations against the configured thresholds. Stateless and
// safe for concurrent use.
type Engine struct {
	thresholds config.Thresholds
	consensus  float64
}

func NewEngine(cfg *config.Config) *Engine {
	return &Engine{thresholds: cfg.Thresholds, consensus: cfg.Consensus.Threshold}
}

// baseSeverity is the type-intrinsic grade before any context is considered.
var baseSeverity = map[violation.Kind]violation.Severity{
	violation.KindName:           violation.Low,
	violation.KindType:           violation.Medium,
	violation.KindMeaning:        violation.Medium,
	violation.KindPosition:       violation.Medium,
	violation.KindAlgorithm:      violation.Medium,
	violation.KindValue:          violation.Medium,
	violation.KindTiming:         violation.High,
	violation.KindExecution:      violation.High,
	violation.KindIdentity:       violation.High,
	violation.KindGodFunction:    violation.High,
	violation.KindSafetyRule:     violation.High,
	violation.KindGodObject:      violation.Critical,
	violation.KindSyntaxError:    violation.Critical,
	violation.KindUnreadableFile: violation.Critical,
}

// ruleFloor is the minimum grade a tagged safety rule imposes.
var ruleFloor = map[violation.RuleID]violation.Severity{
	violation.RuleControlFlow:    violation.Critical,
	violation.RuleLoopBounds:     violation.Critical,
	violation.RuleHeapUsage:      violation.Critical,
	violation.RuleWarnings:       violation.Critical,
	violation.RuleFunctionSize:   violation.High,
	violation.RuleAssertions:     violation.High,
	violation.RuleCheckedReturns: violation.High,
	violation.RulePointers:       violation.High,
	violation.RuleScope:          violation.Medium,
	violation.RulePreprocessor:   violation.Medium,
}

// Score runs the full pipeline for one violation. The violation itself is not
// mutated; use Apply to write the result back.
func (e *Engine) Score(v *violation.Violation, tools []ToolReport) Result {
	var res Result
	res.Calculated = e.stage1Base(v, &res)
	e.stage2SafetyFloor(v, &res)
	e.stage3Consensus(v, &res, tools)
	e.stage4Context(v, &res, "", 0)
	res.Confidence = e.confidence(v, tools)
	return res
}

// Apply scores a violation and writes the calculated grade and confidence
// back onto it. The prior grade from the detector acts as a floor.
func (e *Engine) Apply(v *violation.Violation, tools []ToolReport) Result {
	res := e.Score(v, tools)
	if res.Calculated > v.Severity {
		v.Severity = res.Calculated
	} else {
		res.Calculated = v.Severity
	}
	v.Confidence = res.Confidence
	return res
}

// stage1Base grades from the violation type, then raises for measured
// complexity and parameter counts.
func (e *Engine) stage1Base(v *violation.Violation, r *Result) violation.Severity {
	sev, ok := baseSeverity[v.Kind]
	if !ok {
		sev = violation.Medium
	}
	r.Reasoning = append(r.Reasoning[:0], fmt.Sprintf("base %s for %s", sev, v.Kind))

	switch v.Kind {
	case violation.KindMeaning:
		if v.Context.SecurityRelated {
			sev = violation.Critical
			r.Reasoning = append(r.Reasoning, "security-related literal")
		} else if v.Context.InConditional && sev < violation.High {
			sev = violation.High
			r.Reasoning = append(r.Reasoning, "literal controls a conditional")
		}
	case violation.KindType, violation.KindTiming:
		if v.Context.SecurityRelated && sev < violation.Critical {
			sev = violation.Critical
			r.Reasoning = append(r.Reasoning, "security-related finding")
		}
	}

	switch {
	case v.Context.Complexity > e.thresholds.ComplexityCritical:
		sev = raise(sev, 2)
		r.Reasoning = append(r.Reasoning, fmt.Sprintf("complexity %d exceeds critical threshold", v.Context.Complexity))
	case v.Context.Complexity > e.thresholds.ComplexityHigh:
		sev = raise(sev, 1)
		r.Reasoning = append(r.Reasoning, fmt.Sprintf("complexity %d exceeds high threshold", v.Context.Complexity))
	}

	switch {
	case v.Context.ParameterCount > e.thresholds.ParametersCritical:
		sev = raise(sev, 2)
		r.Reasoning = append(r.Reasoning, fmt.Sprintf("%d parameters exceeds critical threshold", v.Context.ParameterCount))
	case v.Context.ParameterCount > e.thresholds.ParametersHigh:
		sev = raise(sev, 1)
		r.Reasoning = append(r.Reasoning, fmt.Sprintf("%d parameters exceeds high threshold", v.Context.ParameterCount))
	}
	return sev
}

// stage2SafetyFloor raises to each tagged rule's floor; two or more tagged
// rules at High escalate to Critical.
func (e *Engine) stage2SafetyFloor(v *violation.Violation, r *Result) {
	for _, rule := range v.SafetyRules {
		if floor, ok := ruleFloor[rule]; ok && floor > r.Calculated {
			r.Calculated = floor
			r.Reasoning = append(r.Reasoning, fmt.Sprintf("%s imposes %s floor", rule, floor))
		}
	}
	if len(v.SafetyRules) >= 2 && r.Calculated == violation.High {
		r.Calculated = violation.Critical
		r.Reasoning = append(r.Reasoning, "multiple safety rules escalate high to critical")
	}
}

// stage3Consensus upgrades one step when at least two external tools agree,
// with enough confidence, that the finding is graver than calculated.
func (e *Engine) stage3Consensus(v *violation.Violation, r *Result, tools []ToolReport) {
	var agreeing int
	var confSum float64
	for _, t := range tools {
		if t.Severity > r.Calculated {
			agreeing++
			confSum += t.Confidence
		}
	}
	if agreeing < 2 {
		return
	}
	if confSum/float64(agreeing) < e.consensus {
		return
	}
	r.Calculated = raise(r.Calculated, 1)
	r.Upgraded = true
	r.Reasoning = append(r.Reasoning, fmt.Sprintf("%d tools agree on a higher grade", agreeing))
}

// stage4Context applies batch-derived business context. Critical business
// impact lifts Medium and High findings to Critical; high impact lifts Medium
// to High only. Heavy tech debt imposes a Medium floor.
func (e *Engine) stage4Context(v *violation.Violation, r *Result, businessImpact string, techDebt float64) {
	switch businessImpact {
	case "critical":
		if r.Calculated == violation.Medium || r.Calculated == violation.High {
			r.Calculated = violation.Critical
			r.Reasoning = append(r.Reasoning, "critical business impact")
		}
	case "high":
		if r.Calculated == violation.Medium {
			r.Calculated = violation.High
			r.Reasoning = append(r.Reasoning, "high business impact")
		}
	}
	if techDebt >= 0.7 && r.Calculated < violation.Medium {
		r.Calculated = violation.Medium
		r.Reasoning = append(r.Reasoning, "accumulated technical debt imposes medium floor")
	}
}

// confidence is additive from the evidence the stages actually saw.
func (e *Engine) confidence(v *violation.Violation, tools []ToolReport) float64 {
	conf := 0.5
	if v.Context.Complexity > 0 {
		conf += 0.15
	}
	if v.Context.ParameterCount > 0 {
		conf += 0.10
	}
	if len(v.SafetyRules) > 0 {
		conf += 0.20
	}
	if len(tools) > 0 {
		conf += 0.10
		var sum float64
		for _, t := range tools {
			sum += t.Confidence
		}
		conf += 0.20 * (sum / float64(len(tools)))
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}

func raise(s violation.Severity, steps int) violation.Severity {
	s += violation.Severity(steps)
	if s > violation.Critical {
		return violation.Critical
	}
	return s
}
