// Package syntax parses one source unit into a tree-sitter tree and exposes
// the line-indexed text, function fingerprints, and complexity metrics the
// detectors and the duplication engine work from.
package syntax

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrUnparsable is reported when the tree contains parse errors. The caller
// converts it into a finding rather than aborting the scan.
type ErrUnparsable struct {
	Path string
	Line int
}

func (e *ErrUnparsable) Error() string {
	return fmt.Sprintf("%s: source contains syntax errors near line %d", e.Path, e.Line)
}

// Index owns the parsed tree and source text for one file. Immutable once
// built; discarded after the file's analysis pass.
type Index struct {
	Path   string
	Source []byte
	Lines  []string

	tree *sitter.Tree
	root *sitter.Node
}

// Parse builds an Index for a single Python source unit. A tree containing
// error nodes yields both the index (for snippet extraction) and ErrUnparsable.
func Parse(ctx context.Context, path string, source []byte) (*Index, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	idx := &Index{
		Path:   path,
		Source: source,
		Lines:  strings.Split(string(source), "\n"),
		tree:   tree,
		root:   tree.RootNode(),
	}

	if idx.root.HasError() {
		return idx, &ErrUnparsable{Path: path, Line: firstErrorLine(idx.root)}
	}
	return idx, nil
}

// Root exposes the parse tree root for visitors.
func (ix *Index) Root() *sitter.Node { return ix.root }

// Content returns the source text of a node.
func (ix *Index) Content(n *sitter.Node) string {
	return n.Content(ix.Source)
}

// LineContent returns the 1-based source line, or "" when out of range.
func (ix *Index) LineContent(line int) string {
	if line < 1 || line > len(ix.Lines) {
		return ""
	}
	return ix.Lines[line-1]
}

// Snippet extracts the source around a 1-based line, marking the target line.
func (ix *Index) Snippet(line, contextLines int) string {
	start := line - contextLines - 1
	if start < 0 {
		start = 0
	}
	end := line + contextLines
	if end > len(ix.Lines) {
		end = len(ix.Lines)
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		marker := "   "
		if i == line-1 {
			marker = ">>>"
		}
		fmt.Fprintf(&b, "%s %3d: %s\n", marker, i+1, strings.TrimRight(ix.Lines[i], " \t"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Line converts a node position to a 1-based line number.
func Line(n *sitter.Node) int { return int(n.StartPoint().Row) + 1 }

// Column returns the 0-based column of a node.
func Column(n *sitter.Node) int { return int(n.StartPoint().Column) }

// LineSpan returns the number of source lines the node covers, inclusive.
func LineSpan(n *sitter.Node) int {
	return int(n.EndPoint().Row) - int(n.StartPoint().Row) + 1
}

func firstErrorLine(root *sitter.Node) int {
	line := 1
	var walk func(n *sitter.Node) bool
	walk = func(n *sitter.Node) bool {
		if n.IsError() {
			line = Line(n)
			return true
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if walk(n.NamedChild(i)) {
				return true
			}
		}
		return false
	}
	walk(root)
	return line
}

// Walk visits every named node in depth-first order until fn returns false
// for a subtree, which prunes its children.
func Walk(n *sitter.Node, fn func(*sitter.Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		Walk(n.NamedChild(i), fn)
	}
}
