package detector

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/syntax"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/violation"
)

// checkSafetyRules runs the function-level safety checks that complement the
// coupling detectors: recursion, unbounded loops, assertion density, and
// ignored return values.
func (v *fileVisitor) checkSafetyRules(funcs []*syntax.Function) {
	uncheckedBudget := maxUncheckedPerFile
	for _, fn := range funcs {
		v.checkRecursion(fn)
		v.checkLoopBounds(fn)
		v.checkAssertionDensity(fn)
		uncheckedBudget = v.checkUncheckedReturns(fn, uncheckedBudget)
	}
}

// checkRecursion flags direct self-calls. Indirect cycles need cross-function
// call graphs and are out of scope for a per-file pass.
func (v *fileVisitor) checkRecursion(fn *syntax.Function) {
	found := false
	syntax.Walk(fn.Body, func(n *sitter.Node) bool {
		if found {
			return false
		}
		if n.Type() == "function_definition" && n != fn.Node {
			return false
		}
		if n.Type() != "call" {
			return true
		}
		callee := n.ChildByFieldName("function")
		if callee != nil && callee.Type() == "identifier" && v.ix.Content(callee) == fn.Name {
			found = true
			return false
		}
		return true
	})
	if !found {
		return
	}

	vl := violation.New(violation.KindSafetyRule, violation.Critical, v.ix.Path, fn.Line, fn.Column,
		fmt.Sprintf("Function '%s' calls itself recursively", fn.Name))
	vl.Recommendation = "Rewrite as an iterative loop with an explicit bound"
	vl.Context.FunctionName = fn.Name
	vl.Tag(violation.RuleControlFlow)
	v.add(vl)
}

// checkLoopBounds flags `while True` loops that contain no break statement in
// their own body.
func (v *fileVisitor) checkLoopBounds(fn *syntax.Function) {
	syntax.Walk(fn.Body, func(n *sitter.Node) bool {
		if n.Type() == "function_definition" && n != fn.Node {
			return false
		}
		if n.Type() != "while_statement" {
			return true
		}
		cond := n.ChildByFieldName("condition")
		if cond == nil || cond.Type() != "true" {
			return true
		}
		if loopHasBreak(n) {
			return true
		}

		vl := violation.New(violation.KindSafetyRule, violation.Critical, v.ix.Path,
			syntax.Line(n), syntax.Column(n),
			fmt.Sprintf("Unbounded 'while True' loop in '%s' has no break", fn.Name))
		vl.Recommendation = "Add an explicit loop bound or break condition"
		vl.Context.FunctionName = fn.Name
		vl.Tag(violation.RuleLoopBounds)
		v.add(vl)
		return true
	})
}

func loopHasBreak(loop *sitter.Node) bool {
	body := loop.ChildByFieldName("body")
	if body == nil {
		return false
	}
	found := false
	syntax.Walk(body, func(n *sitter.Node) bool {
		if found {
			return false
		}
		switch n.Type() {
		case "break_statement":
			found = true
			return false
		case "while_statement", "for_statement", "function_definition":
			// A break in a nested loop does not terminate this one.
			return false
		}
		return true
	})
	return found
}

// checkAssertionDensity flags non-trivial functions with fewer assertions
// than the configured minimum.
func (v *fileVisitor) checkAssertionDensity(fn *syntax.Function) {
	if int(fn.Complexity.Lines) <= 5 {
		return
	}

	asserts := 0
	syntax.Walk(fn.Body, func(n *sitter.Node) bool {
		if n.Type() == "function_definition" && n != fn.Node {
			return false
		}
		if n.Type() == "assert_statement" || n.Type() == "raise_statement" {
			asserts++
		}
		return true
	})
	if asserts >= v.cfg.MinAssertions {
		return
	}

	vl := violation.New(violation.KindSafetyRule, violation.High, v.ix.Path, fn.Line, fn.Column,
		fmt.Sprintf("Function '%s' has %d assertions (minimum: %d)", fn.Name, asserts, v.cfg.MinAssertions))
	vl.Recommendation = "Assert preconditions and postconditions on entry and exit"
	vl.Context.FunctionName = fn.Name
	vl.Tag(violation.RuleAssertions)
	v.add(vl)
}

// maxUncheckedPerFile caps unchecked-return findings so one sloppy file does
// not drown the report.
const maxUncheckedPerFile = 5

// ignoredReturnCallees are conventionally called for effect only.
var ignoredReturnCallees = map[string]struct{}{
	"print": {}, "exit": {}, "setattr": {}, "delattr": {},
	"append": {}, "extend": {}, "insert": {}, "remove": {}, "clear": {},
	"add": {}, "update": {}, "pop": {}, "discard": {}, "sort": {},
	"write": {}, "close": {}, "flush": {}, "seek": {},
	"info": {}, "debug": {}, "warning": {}, "error": {}, "critical": {}, "exception": {},
	"super": {}, "sleep": {}, "mkdir": {}, "makedirs": {},
}

// checkUncheckedReturns flags expression-statement calls whose result is
// discarded, up to the remaining per-file budget. Returns the budget left.
func (v *fileVisitor) checkUncheckedReturns(fn *syntax.Function, budget int) int {
	if budget <= 0 {
		return 0
	}

	syntax.Walk(fn.Body, func(n *sitter.Node) bool {
		if budget <= 0 {
			return false
		}
		if n.Type() == "function_definition" && n != fn.Node {
			return false
		}
		if n.Type() != "expression_statement" || n.NamedChildCount() == 0 {
			return true
		}
		call := n.NamedChild(0)
		if call.Type() != "call" {
			return true
		}
		name := calleeName(v.ix, call)
		if name == "" {
			return false
		}
		if _, ignored := ignoredReturnCallees[name]; ignored {
			return false
		}

		vl := violation.New(violation.KindSafetyRule, violation.High, v.ix.Path,
			syntax.Line(call), syntax.Column(call),
			fmt.Sprintf("Return value of '%s' is ignored", name))
		vl.Recommendation = "Check the return value or explicitly discard it via assignment to _"
		vl.Context.FunctionName = fn.Name
		vl.Tag(violation.RuleCheckedReturns)
		v.add(vl)
		budget--
		return false
	})
	return budget
}

// calleeName resolves the trailing name of a call target: `f(...)` and
// `obj.f(...)` both yield "f".
func calleeName(ix *syntax.Index, call *sitter.Node) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case "identifier":
		return ix.Content(fn)
	case "attribute":
		if attr := fn.ChildByFieldName("attribute"); attr != nil {
			return ix.Content(attr)
		}
	}
	return ""
}
