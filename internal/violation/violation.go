// Package violation defines the findings emitted by the analysis engine:
// typed connascence violations, severity levels, and safety rule identifiers.
package violation

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Severity grades a violation. Ordered so that comparisons work directly.
type Severity int

const (
	Low Severity = iota + 1
	Medium
	High
	Critical
)

func (s Severity) String() string {
	switch s {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity maps a lowercase severity name to its level, defaulting to Medium.
func ParseSeverity(s string) Severity {
	switch s {
	case "low":
		return Low
	case "medium":
		return Medium
	case "high":
		return High
	case "critical":
		return Critical
	default:
		return Medium
	}
}

// Weight returns the metric weight used for the connascence index.
func (s Severity) Weight() float64 {
	switch s {
	case Critical:
		return 10
	case High:
		return 5
	case Medium:
		return 2
	default:
		return 1
	}
}

// Kind is the closed set of violation categories the detector can emit.
type Kind int

const (
	KindName Kind = iota
	KindType
	KindMeaning
	KindPosition
	KindAlgorithm
	KindTiming
	KindExecution
	KindValue
	KindIdentity
	KindGodObject
	KindGodFunction
	KindSafetyRule
	KindSyntaxError
	KindUnreadableFile
)

func (k Kind) String() string {
	switch k {
	case KindName:
		return "connascence_of_name"
	case KindType:
		return "connascence_of_type"
	case KindMeaning:
		return "connascence_of_meaning"
	case KindPosition:
		return "connascence_of_position"
	case KindAlgorithm:
		return "connascence_of_algorithm"
	case KindTiming:
		return "connascence_of_timing"
	case KindExecution:
		return "connascence_of_execution"
	case KindValue:
		return "connascence_of_value"
	case KindIdentity:
		return "connascence_of_identity"
	case KindGodObject:
		return "god_object"
	case KindGodFunction:
		return "god_function"
	case KindSafetyRule:
		return "safety_rule_violation"
	case KindSyntaxError:
		return "syntax_error"
	case KindUnreadableFile:
		return "unreadable_file"
	default:
		return "unknown"
	}
}

// RuleID identifies one of the ten safety-discipline rules.
type RuleID int

const (
	RuleControlFlow    RuleID = iota + 1 // recursion, goto-like constructs
	RuleLoopBounds                       // loops without a fixed upper bound
	RuleHeapUsage                        // dynamic allocation after initialization
	RuleFunctionSize                     // functions over the line limit
	RuleAssertions                       // insufficient assertion density
	RuleScope                            // objects declared wider than needed
	RuleCheckedReturns                   // unchecked return values
	RulePreprocessor                     // complex macro-style expansion
	RulePointers                         // multiple levels of indirection
	RuleWarnings                         // compiler/linter warnings unresolved
)

func (r RuleID) String() string {
	if r < RuleControlFlow || r > RuleWarnings {
		return "rule_unknown"
	}
	return fmt.Sprintf("rule_%d", int(r))
}

// Context carries the structured facts a detector knew when it raised a
// violation. Downstream severity scoring reads from here; nothing is guessed
// from missing fields.
type Context struct {
	FunctionName    string
	ClassName       string
	ParameterCount  int
	Complexity      int
	LineCount       int
	MethodCount     int
	GlobalCount     int
	DuplicateCount  int
	LiteralValue    string
	InConditional   bool
	SecurityRelated bool
	SimilarTo       []string
}

// Violation is one finding at one source location. Identity is fixed at
// creation; only Severity and RelatedDuplications may be reassigned by later
// pipeline stages.
type Violation struct {
	ID                  string
	Kind                Kind
	Severity            Severity
	FilePath            string
	Line                int
	Column              int
	Description         string
	Recommendation      string
	Snippet             string
	Weight              float64
	SafetyRules         []RuleID
	RelatedDuplications []string
	Confidence          float64
	Context             Context
}

// New builds a violation and assigns its stable fingerprint.
func New(kind Kind, sev Severity, file string, line, col int, desc string) *Violation {
	v := &Violation{
		Kind:        kind,
		Severity:    sev,
		FilePath:    file,
		Line:        line,
		Column:      col,
		Description: desc,
		Weight:      1.0,
		Confidence:  1.0,
	}
	v.ID = v.fingerprint()
	return v
}

// fingerprint hashes the location and category of the finding. The description
// prefix disambiguates multiple findings of the same kind on one line.
func (v *Violation) fingerprint() string {
	d := xxhash.New()
	desc := v.Description
	if len(desc) > 50 {
		desc = desc[:50]
	}
	fmt.Fprintf(d, "%s|%s|%d|%d|%s", v.Kind, v.FilePath, v.Line, v.Column, desc)
	return fmt.Sprintf("%012x", d.Sum64()&0xffffffffffff)
}

// Tag records that a safety rule applies to this violation. Duplicate tags
// are ignored; the rule list stays sorted for deterministic output.
func (v *Violation) Tag(rule RuleID) {
	for _, r := range v.SafetyRules {
		if r == rule {
			return
		}
	}
	v.SafetyRules = append(v.SafetyRules, rule)
	sort.Slice(v.SafetyRules, func(i, j int) bool { return v.SafetyRules[i] < v.SafetyRules[j] })
}

// HasRule reports whether the violation carries the given safety rule.
func (v *Violation) HasRule(rule RuleID) bool {
	for _, r := range v.SafetyRules {
		if r == rule {
			return true
		}
	}
	return false
}

// IsConnascence reports whether the kind is one of the nine coupling
// categories, as opposed to a size, safety, or file-level failure finding.
func (k Kind) IsConnascence() bool {
	switch k {
	case KindName, KindType, KindMeaning, KindPosition, KindAlgorithm,
		KindTiming, KindExecution, KindValue, KindIdentity:
		return true
	default:
		return false
	}
}
