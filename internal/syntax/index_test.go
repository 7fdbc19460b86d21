package syntax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *Index {
	t.Helper()
	ix, err := Parse(context.Background(), "test.py", []byte(src))
	require.NoError(t, err)
	return ix
}

func TestParseReportsSyntaxErrors(t *testing.T) {
	ix, err := Parse(context.Background(), "bad.py", []byte("def broken(:\n    pass\n"))

	var perr *ErrUnparsable
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "bad.py", perr.Path)
	assert.GreaterOrEqual(t, perr.Line, 1)
	require.NotNil(t, ix, "the index is still usable for snippet extraction")
	assert.NotEmpty(t, ix.Snippet(perr.Line, 1))
}

func TestSnippetMarksTargetLine(t *testing.T) {
	ix := parse(t, "a = 1\nb = 2\nc = 3\nd = 4\n")

	snippet := ix.Snippet(2, 1)
	assert.Contains(t, snippet, ">>>   2: b = 2")
	assert.Contains(t, snippet, "    1: a = 1")
	assert.Contains(t, snippet, "    3: c = 3")
}

func TestLineContentBounds(t *testing.T) {
	ix := parse(t, "only = 1\n")
	assert.Equal(t, "only = 1", ix.LineContent(1))
	assert.Equal(t, "", ix.LineContent(0))
	assert.Equal(t, "", ix.LineContent(99))
}

func TestFunctionsExtraction(t *testing.T) {
	ix := parse(t, `def outer(a, b=1, *args, **kwargs):
    """Docstring here."""
    x = a
    if x:
        return x
    return b

class Widget:
    def method(self, value):
        return value
`)

	funcs := ix.Functions()
	require.Len(t, funcs, 2)

	outer := funcs[0]
	assert.Equal(t, "outer", outer.Name)
	assert.Equal(t, 1, outer.Line)
	assert.Equal(t, []string{"a", "b", "*args", "*kwargs"}, outer.Params)
	assert.Equal(t, "Docstring here.", outer.Doc)
	assert.Equal(t, 3, outer.StatementCount, "docstring is not a statement")
	assert.Equal(t, "assign|if|return_value", outer.Shape)

	method := funcs[1]
	assert.Equal(t, "method", method.Name)
	assert.Equal(t, []string{"self", "value"}, method.Params)
}

func TestClassExtraction(t *testing.T) {
	ix := parse(t, `class Service:
    def start(self):
        return 1

    def stop(self):
        return 0

    attr = "idle"
`)

	classes := ix.Classes()
	require.Len(t, classes, 1)
	assert.Equal(t, "Service", classes[0].Name)
	assert.Equal(t, 2, classes[0].MethodCount)
	assert.Equal(t, 8, classes[0].Lines)
}

func TestImports(t *testing.T) {
	ix := parse(t, `import os
import numpy as np
from collections import OrderedDict
import os
`)

	assert.Equal(t, []string{"os", "numpy", "collections"}, ix.Imports())
}

func TestHashesIgnoreNamesButNotShape(t *testing.T) {
	a := parse(t, "def f(x):\n    y = x\n    if y:\n        return y\n    return 0\n")
	b := parse(t, "def g(v):\n    w = v\n    if w:\n        return w\n    return 1\n")
	c := parse(t, "def h(v):\n    for i in v:\n        return i\n    return 2\n")

	fa, fb, fc := a.Functions()[0], b.Functions()[0], c.Functions()[0]

	assert.Equal(t, fa.StructuralHash, fb.StructuralHash, "identifiers and literals are normalized away")
	assert.NotEqual(t, fa.StructuralHash, fc.StructuralHash, "control flow differences change the hash")
	assert.NotEqual(t, fa.BodyHash, fb.BodyHash, "body hash keeps identifier text")
}

func TestBodyHashNormalizesWhitespace(t *testing.T) {
	a := parse(t, "def f(x):\n    y = x\n    return y\n")
	b := parse(t, "if True:\n    def f(x):\n        y = x\n        return y\n")

	assert.Equal(t, a.Functions()[0].BodyHash, b.Functions()[0].BodyHash,
		"indentation depth does not affect body identity")
}

func TestComplexityMetrics(t *testing.T) {
	ix := parse(t, `def gnarly(a, b):
    if a and b:
        for i in a:
            while i:
                i = step(i)
    elif b:
        return b
    try:
        risky()
    except ValueError:
        pass
    return a
`)

	fn := ix.Functions()[0]
	// 1 base + if + boolean_operator + for + while + elif + except
	assert.Equal(t, uint32(7), fn.Complexity.Cyclomatic)
	assert.Equal(t, uint32(3), fn.Complexity.MaxNesting)
	assert.Equal(t, uint32(2), fn.Complexity.Params)
}

func TestNestedFunctionComplexityExcluded(t *testing.T) {
	ix := parse(t, `def outer(a):
    def inner(b):
        if b:
            return b
        return 0
    x = inner(a)
    return x
`)

	funcs := ix.Functions()
	require.Len(t, funcs, 2)
	assert.Equal(t, uint32(1), funcs[0].Complexity.Cyclomatic, "inner branches belong to inner")
	assert.Equal(t, uint32(2), funcs[1].Complexity.Cyclomatic)
}
