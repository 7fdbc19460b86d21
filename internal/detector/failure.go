package detector

import (
	"fmt"

	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/syntax"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/violation"
)

// SyntaxError converts a failed parse into the single Critical finding the
// report carries for that file. The scan continues past it.
func SyntaxError(ix *syntax.Index, perr *syntax.ErrUnparsable) *violation.Violation {
	vl := violation.New(violation.KindSyntaxError, violation.Critical,
		perr.Path, perr.Line, 0,
		fmt.Sprintf("File contains syntax errors near line %d and cannot be analyzed", perr.Line))
	vl.Recommendation = "Fix the syntax errors before re-running the analysis"
	vl.Weight = 10.0
	if ix != nil {
		vl.Snippet = ix.Snippet(perr.Line, 2)
	}
	return vl
}

// Unreadable covers files the scanner could not bring to the parser at all:
// read failures, binary content, or sources over the size limit.
func Unreadable(path string, reason error) *violation.Violation {
	vl := violation.New(violation.KindUnreadableFile, violation.Critical, path, 1, 0,
		fmt.Sprintf("File could not be analyzed: %v", reason))
	vl.Recommendation = "Verify the file is readable, text-encoded, and within the size limit"
	vl.Weight = 10.0
	return vl
}
