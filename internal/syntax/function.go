package syntax

import (
	"strings"

	"github.com/cespare/xxhash/v2"
	sitter "github.com/smacker/go-tree-sitter"
)

// Complexity captures the per-function size metrics used for severity
// thresholds and similarity scoring.
type Complexity struct {
	Cyclomatic uint32
	Lines      uint32
	Params     uint32
	MaxNesting uint32
}

// Function is one function or method definition extracted from an Index.
type Function struct {
	Name           string
	Line           int
	Column         int
	Params         []string
	Doc            string
	StatementCount int
	Shape          string
	StructuralHash uint64
	BodyHash       uint64
	Complexity     Complexity

	Node *sitter.Node
	Body *sitter.Node
}

// Class is one class definition with the counts god-object detection needs.
type Class struct {
	Name        string
	Line        int
	Column      int
	MethodCount int
	Lines       int
	Node        *sitter.Node
}

// Functions extracts every function and method definition in source order.
func (ix *Index) Functions() []*Function {
	var funcs []*Function
	Walk(ix.root, func(n *sitter.Node) bool {
		if n.Type() != "function_definition" {
			return true
		}
		if f := ix.extractFunction(n); f != nil {
			funcs = append(funcs, f)
		}
		return true
	})
	return funcs
}

// Classes extracts every class definition in source order.
func (ix *Index) Classes() []*Class {
	var classes []*Class
	Walk(ix.root, func(n *sitter.Node) bool {
		if n.Type() != "class_definition" {
			return true
		}
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}
		c := &Class{
			Name:   ix.Content(nameNode),
			Line:   Line(n),
			Column: Column(n),
			Lines:  LineSpan(n),
			Node:   n,
		}
		if body := n.ChildByFieldName("body"); body != nil {
			for i := 0; i < int(body.NamedChildCount()); i++ {
				child := body.NamedChild(i)
				if child.Type() == "function_definition" {
					c.MethodCount++
				} else if child.Type() == "decorated_definition" {
					if def := child.ChildByFieldName("definition"); def != nil && def.Type() == "function_definition" {
						c.MethodCount++
					}
				}
			}
		}
		classes = append(classes, c)
		return true
	})
	return classes
}

// Imports collects the imported module names of the file.
func (ix *Index) Imports() []string {
	seen := make(map[string]struct{})
	var imports []string
	add := func(name string) {
		if name == "" {
			return
		}
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		imports = append(imports, name)
	}

	Walk(ix.root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				switch child.Type() {
				case "dotted_name":
					add(ix.Content(child))
				case "aliased_import":
					if name := child.ChildByFieldName("name"); name != nil {
						add(ix.Content(name))
					}
				}
			}
			return false
		case "import_from_statement":
			if mod := n.ChildByFieldName("module_name"); mod != nil {
				add(ix.Content(mod))
			}
			return false
		case "function_definition", "class_definition":
			// Imports inside definitions still count for the file.
			return true
		}
		return true
	})
	return imports
}

func (ix *Index) extractFunction(n *sitter.Node) *Function {
	nameNode := n.ChildByFieldName("name")
	body := n.ChildByFieldName("body")
	if nameNode == nil || body == nil {
		return nil
	}

	f := &Function{
		Name:   ix.Content(nameNode),
		Line:   Line(n),
		Column: Column(n),
		Params: ix.parameterNames(n),
		Doc:    ix.docstring(body),
		Node:   n,
		Body:   body,
	}

	stmts := bodyStatements(body)
	f.StatementCount = len(stmts)
	f.Shape = shapeString(stmts)
	f.StructuralHash = structuralHash(body)
	f.BodyHash = ix.bodyHash(stmts)
	f.Complexity = Complexity{
		Cyclomatic: cyclomaticComplexity(body),
		Lines:      uint32(LineSpan(n)),
		Params:     uint32(len(f.Params)),
		MaxNesting: maxNesting(body, 0),
	}
	return f
}

func (ix *Index) parameterNames(fn *sitter.Node) []string {
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		var name string
		switch p.Type() {
		case "identifier":
			name = ix.Content(p)
		case "typed_parameter":
			if id := firstChildOfType(p, "identifier"); id != nil {
				name = ix.Content(id)
			}
		case "default_parameter", "typed_default_parameter":
			if id := p.ChildByFieldName("name"); id != nil {
				name = ix.Content(id)
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			if id := firstChildOfType(p, "identifier"); id != nil {
				name = "*" + ix.Content(id)
			}
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// docstring returns the leading string-expression of a body, cleaned of quotes.
func (ix *Index) docstring(body *sitter.Node) string {
	if body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Type() != "string" {
		return ""
	}
	doc := ix.Content(str)
	doc = strings.Trim(doc, "\"'")
	return strings.TrimSpace(doc)
}

// bodyStatements returns the body's top-level statements, skipping a leading
// docstring so that doc changes do not affect body identity.
func bodyStatements(body *sitter.Node) []*sitter.Node {
	var stmts []*sitter.Node
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		if i == 0 && child.Type() == "expression_statement" &&
			child.NamedChildCount() > 0 && child.NamedChild(0).Type() == "string" {
			continue
		}
		stmts = append(stmts, child)
	}
	return stmts
}

func firstChildOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

// shapeString reduces each top-level statement to its kind tag. Two functions
// with the same tag sequence share control-flow shape at statement level.
func shapeString(stmts []*sitter.Node) string {
	tags := make([]string, 0, len(stmts))
	for _, stmt := range stmts {
		tags = append(tags, statementTag(stmt))
	}
	return strings.Join(tags, "|")
}

func statementTag(stmt *sitter.Node) string {
	switch stmt.Type() {
	case "return_statement":
		if stmt.NamedChildCount() > 0 {
			return "return_value"
		}
		return "return"
	case "if_statement":
		return "if"
	case "for_statement":
		return "for"
	case "while_statement":
		return "while"
	case "expression_statement":
		if stmt.NamedChildCount() > 0 {
			inner := stmt.NamedChild(0)
			switch inner.Type() {
			case "call":
				return "call"
			case "assignment", "augmented_assignment":
				return "assign"
			}
		}
		return "expr"
	default:
		return stmt.Type()
	}
}

// literalKinds are excluded from the structural hash so that two functions
// with identical control-flow shape but different names and constants hash
// identically.
var literalKinds = map[string]struct{}{
	"identifier": {}, "integer": {}, "float": {}, "string": {},
	"string_content": {}, "string_start": {}, "string_end": {},
	"true": {}, "false": {}, "none": {}, "comment": {},
}

func structuralHash(body *sitter.Node) uint64 {
	d := xxhash.New()
	Walk(body, func(n *sitter.Node) bool {
		if _, skip := literalKinds[n.Type()]; skip {
			return false
		}
		d.WriteString(n.Type())
		d.WriteString("/")
		return true
	})
	return d.Sum64()
}

// bodyHash digests the body's statement text with indentation and blank
// lines normalized away.
func (ix *Index) bodyHash(stmts []*sitter.Node) uint64 {
	d := xxhash.New()
	for _, stmt := range stmts {
		for _, line := range strings.Split(ix.Content(stmt), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			d.WriteString(line)
			d.WriteString("\n")
		}
	}
	return d.Sum64()
}

func cyclomaticComplexity(body *sitter.Node) uint32 {
	var c uint32 = 1
	Walk(body, func(n *sitter.Node) bool {
		switch n.Type() {
		case "if_statement", "elif_clause", "for_statement", "while_statement",
			"except_clause", "conditional_expression", "boolean_operator":
			c++
		case "function_definition":
			// Nested definitions count toward their own complexity only.
			if n != body.Parent() {
				return false
			}
		}
		return true
	})
	return c
}

var nestingKinds = map[string]struct{}{
	"if_statement": {}, "for_statement": {}, "while_statement": {},
	"with_statement": {}, "try_statement": {}, "match_statement": {},
}

func maxNesting(n *sitter.Node, depth uint32) uint32 {
	max := depth
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		d := depth
		if _, ok := nestingKinds[child.Type()]; ok {
			d++
		}
		if m := maxNesting(child, d); m > max {
			max = m
		}
	}
	return max
}
