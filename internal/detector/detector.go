// Package detector runs the single-pass syntax visitors that turn one parsed
// file into typed violations. All state is per-file and discarded after the
// pass; cross-file concerns live in the registry and duplication engine.
package detector

import (
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/config"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/syntax"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/violation"
)

// Detector finds coupling and safety violations in a single file. Safe for
// concurrent use; all mutable state is scoped to one Detect call.
type Detector struct {
	cfg config.Thresholds
}

func New(cfg config.Thresholds) *Detector {
	return &Detector{cfg: cfg}
}

// Detect runs every per-file rule over an already-parsed index.
func (d *Detector) Detect(ix *syntax.Index) []*violation.Violation {
	v := &fileVisitor{cfg: d.cfg, ix: ix}

	funcs := ix.Functions()
	for _, fn := range funcs {
		v.checkPosition(fn)
		v.checkFunctionSize(fn)
		v.trackShape(fn)
	}
	for _, cls := range ix.Classes() {
		v.checkGodObject(cls)
	}

	v.walkExpressions()
	v.finalize(funcs)
	v.checkSafetyRules(funcs)

	sort.SliceStable(v.violations, func(i, j int) bool {
		a, b := v.violations[i], v.violations[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Kind < b.Kind
	})
	return v.violations
}

// fileVisitor carries the running per-file sets. Nothing leaks between files.
type fileVisitor struct {
	cfg config.Thresholds
	ix  *syntax.Index

	violations       []*violation.Violation
	globalStatements int
	firstGlobal      *sitter.Node
	shapeGroups      map[string][]*syntax.Function
}

func (v *fileVisitor) add(vl *violation.Violation) {
	vl.Snippet = v.ix.Snippet(vl.Line, 2)
	v.violations = append(v.violations, vl)
}

// checkPosition flags functions with too many positional parameters.
// Underscore-prefixed parameters and self/cls receivers do not count.
func (v *fileVisitor) checkPosition(fn *syntax.Function) {
	count := 0
	for i, p := range fn.Params {
		if i == 0 && (p == "self" || p == "cls") {
			continue
		}
		if strings.HasPrefix(p, "_") || strings.HasPrefix(p, "*") {
			continue
		}
		count++
	}
	if count <= v.cfg.MaxPositionalParams {
		return
	}

	sev := violation.Medium
	if count > v.cfg.ParamsPointerRule {
		sev = violation.High
	}
	vl := violation.New(violation.KindPosition, sev, v.ix.Path, fn.Line, fn.Column,
		fmt.Sprintf("Function '%s' has %d positional parameters (>%d)", fn.Name, count, v.cfg.MaxPositionalParams))
	vl.Recommendation = "Use keyword arguments, data classes, or parameter objects"
	vl.Weight = float64(count) * 0.2
	vl.Context.FunctionName = fn.Name
	vl.Context.ParameterCount = count
	vl.Context.Complexity = int(fn.Complexity.Cyclomatic)
	if count > v.cfg.ParamsPointerRule {
		vl.Tag(violation.RulePointers)
	}
	v.add(vl)
}

// checkFunctionSize applies the function-length limit.
func (v *fileVisitor) checkFunctionSize(fn *syntax.Function) {
	lines := int(fn.Complexity.Lines)
	if lines <= v.cfg.MaxFunctionLines {
		return
	}

	sev := violation.High
	if lines > v.cfg.CriticalFuncLines {
		sev = violation.Critical
	}
	vl := violation.New(violation.KindGodFunction, sev, v.ix.Path, fn.Line, fn.Column,
		fmt.Sprintf("Function '%s' is %d lines (limit: %d)", fn.Name, lines, v.cfg.MaxFunctionLines))
	vl.Recommendation = "Break into smaller, focused functions"
	vl.Weight = float64(lines) * 0.1
	vl.Context.FunctionName = fn.Name
	vl.Context.LineCount = lines
	vl.Context.Complexity = int(fn.Complexity.Cyclomatic)
	vl.Tag(violation.RuleFunctionSize)
	v.add(vl)
}

func (v *fileVisitor) checkGodObject(cls *syntax.Class) {
	byMethods := cls.MethodCount > v.cfg.GodClassMethods
	byLines := cls.Lines > v.cfg.GodClassLines
	if !byMethods && !byLines {
		return
	}

	vl := violation.New(violation.KindGodObject, violation.Critical, v.ix.Path, cls.Line, cls.Column,
		fmt.Sprintf("Class '%s' is a God Object: %d methods, ~%d lines", cls.Name, cls.MethodCount, cls.Lines))
	vl.Recommendation = "Split into smaller, focused classes following Single Responsibility Principle"
	vl.Weight = float64(cls.MethodCount)
	vl.Context.ClassName = cls.Name
	vl.Context.MethodCount = cls.MethodCount
	vl.Context.LineCount = cls.Lines
	if byLines {
		vl.Tag(violation.RuleFunctionSize)
	}
	v.add(vl)
}

func (v *fileVisitor) trackShape(fn *syntax.Function) {
	if fn.StatementCount <= 3 {
		return
	}
	if v.shapeGroups == nil {
		v.shapeGroups = make(map[string][]*syntax.Function)
	}
	v.shapeGroups[fn.Shape] = append(v.shapeGroups[fn.Shape], fn)
}

// walkExpressions covers the node-level rules: magic literals, sleep calls,
// zero-argument collection constructors, and global statements.
func (v *fileVisitor) walkExpressions() {
	syntax.Walk(v.ix.Root(), func(n *sitter.Node) bool {
		switch n.Type() {
		case "integer", "float":
			v.checkNumericLiteral(n)
		case "string":
			v.checkStringLiteral(n)
			return false
		case "call":
			v.checkCall(n)
		case "global_statement":
			v.trackGlobals(n)
		}
		return true
	})
}

var safeNumbers = map[string]struct{}{
	"0": {}, "1": {}, "-1": {}, "2": {}, "10": {}, "100": {}, "1000": {},
	"0.0": {}, "1.0": {},
}

var safeStrings = map[string]struct{}{
	"": {}, " ": {}, "\n": {}, "\t": {}, "utf-8": {}, "ascii": {},
	"r": {}, "w": {}, "rb": {}, "wb": {},
}

// conditionalKeywords drive the in-conditional escalation. This is a raw
// substring check on the source line, as in the original heuristic; it can
// over-trigger on literals that merely contain a keyword.
var conditionalKeywords = []string{"if ", "elif ", "while ", "assert "}

var securityKeywords = []string{"password", "secret", "key", "token", "auth", "crypto"}

func (v *fileVisitor) checkNumericLiteral(n *sitter.Node) {
	text := v.ix.Content(n)
	if _, safe := safeNumbers[text]; safe {
		return
	}
	v.reportMagicLiteral(n, text)
}

func (v *fileVisitor) checkStringLiteral(n *sitter.Node) {
	// Docstrings are documentation, not configuration values.
	if parent := n.Parent(); parent != nil && parent.Type() == "expression_statement" {
		return
	}
	text := strings.Trim(v.ix.Content(n), "\"'")
	if len(text) <= 1 {
		return
	}
	if _, safe := safeStrings[text]; safe {
		return
	}
	v.reportMagicLiteral(n, text)
}

func (v *fileVisitor) reportMagicLiteral(n *sitter.Node, value string) {
	line := syntax.Line(n)
	lineContent := v.ix.LineContent(line)

	inConditional := false
	for _, kw := range conditionalKeywords {
		if strings.Contains(lineContent, kw) {
			inConditional = true
			break
		}
	}

	contextText := strings.ToLower(v.contextAround(line))
	securityRelated := false
	for _, kw := range securityKeywords {
		if strings.Contains(contextText, kw) {
			securityRelated = true
			break
		}
	}

	sev := violation.Medium
	switch {
	case securityRelated:
		sev = violation.Critical
	case inConditional:
		sev = violation.High
	}

	display := value
	if len(display) > 40 {
		display = display[:40] + "..."
	}
	vl := violation.New(violation.KindMeaning, sev, v.ix.Path, line, syntax.Column(n),
		fmt.Sprintf("Magic literal '%s' should be a named constant", display))
	vl.Recommendation = "Replace with a well-named constant or configuration value"
	vl.Context.LiteralValue = display
	vl.Context.InConditional = inConditional
	vl.Context.SecurityRelated = securityRelated
	v.add(vl)
}

func (v *fileVisitor) contextAround(line int) string {
	var b strings.Builder
	for l := line - 2; l <= line+2; l++ {
		b.WriteString(v.ix.LineContent(l))
		b.WriteString("\n")
	}
	return b.String()
}

// allocationConstructors trigger the dynamic-allocation safety rule when
// called with no arguments inside a function body.
var allocationConstructors = map[string]struct{}{
	"list": {}, "dict": {}, "set": {}, "bytearray": {},
}

func (v *fileVisitor) checkCall(n *sitter.Node) {
	fnNode := n.ChildByFieldName("function")
	if fnNode == nil {
		return
	}

	switch fnNode.Type() {
	case "identifier":
		name := v.ix.Content(fnNode)
		if name == "sleep" {
			v.reportSleep(n)
			return
		}
		if _, ok := allocationConstructors[name]; ok && v.argCount(n) == 0 && insideFunction(n) {
			v.reportAllocation(n, name)
		}
	case "attribute":
		if attr := fnNode.ChildByFieldName("attribute"); attr != nil && v.ix.Content(attr) == "sleep" {
			v.reportSleep(n)
		}
	}
}

func (v *fileVisitor) argCount(call *sitter.Node) int {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return 0
	}
	return int(args.NamedChildCount())
}

func insideFunction(n *sitter.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() == "function_definition" {
			return true
		}
	}
	return false
}

func (v *fileVisitor) reportSleep(n *sitter.Node) {
	vl := violation.New(violation.KindTiming, violation.Medium, v.ix.Path, syntax.Line(n), syntax.Column(n),
		"Sleep-based timing dependency detected")
	vl.Recommendation = "Use proper synchronization primitives, events, or async patterns"
	v.add(vl)
}

func (v *fileVisitor) reportAllocation(n *sitter.Node, name string) {
	vl := violation.New(violation.KindSafetyRule, violation.High, v.ix.Path, syntax.Line(n), syntax.Column(n),
		fmt.Sprintf("Dynamic allocation: bare %s() call inside function body", name))
	vl.Recommendation = "Pre-allocate during initialization or use literals with known contents"
	vl.Tag(violation.RuleHeapUsage)
	v.add(vl)
}

// trackGlobals counts global statements; re-declaring a name in another
// statement still counts.
func (v *fileVisitor) trackGlobals(n *sitter.Node) {
	if v.firstGlobal == nil {
		v.firstGlobal = n
	}
	v.globalStatements++
}

// finalize emits the rules that need the complete file: intra-file algorithm
// duplicates and excessive globals.
func (v *fileVisitor) finalize(funcs []*syntax.Function) {
	var shapes []string
	for shape := range v.shapeGroups {
		shapes = append(shapes, shape)
	}
	sort.Strings(shapes)

	for _, shape := range shapes {
		group := v.shapeGroups[shape]
		if len(group) < 2 {
			continue
		}
		for _, fn := range group {
			var similar []string
			for _, other := range group {
				if other != fn {
					similar = append(similar, other.Name)
				}
			}
			vl := violation.New(violation.KindAlgorithm, violation.Medium, v.ix.Path, fn.Line, fn.Column,
				fmt.Sprintf("Function '%s' appears to duplicate algorithm from: %s", fn.Name, strings.Join(similar, ", ")))
			vl.Recommendation = "Extract common algorithm into shared function or module"
			vl.Weight = float64(len(group)) * 0.5
			vl.Context.FunctionName = fn.Name
			vl.Context.DuplicateCount = len(group)
			vl.Context.SimilarTo = similar
			v.add(vl)
		}
	}

	if v.globalStatements > v.cfg.MaxGlobals && v.firstGlobal != nil {
		vl := violation.New(violation.KindIdentity, violation.High, v.ix.Path,
			syntax.Line(v.firstGlobal), syntax.Column(v.firstGlobal),
			fmt.Sprintf("Excessive global variable usage: %d global statements", v.globalStatements))
		vl.Recommendation = "Use dependency injection, configuration objects, or class attributes"
		vl.Context.GlobalCount = v.globalStatements
		vl.Tag(violation.RuleScope)
		v.add(vl)
	}
}
