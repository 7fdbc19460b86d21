package duplication

import "strings"

// levenshteinSimilarity returns 1 - editDistance/maxLen on the two strings.
// Identical strings score 1.0; fully disjoint strings approach 0.
func levenshteinSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return 1.0 - float64(prev[len(rb)])/float64(maxLen)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// parameterSimilarity is the normalized edit distance over the joined
// parameter sequences. Order matters: reordered parameter lists are not a
// free match.
func parameterSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	return levenshteinSimilarity(strings.Join(a, ","), strings.Join(b, ","))
}

// jaccard computes set overlap for two string slices. Two empty sets are
// treated as identical.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		setA[s] = struct{}{}
	}
	union := make(map[string]struct{}, len(a)+len(b))
	for s := range setA {
		union[s] = struct{}{}
	}
	intersection := 0
	for _, s := range b {
		if _, ok := union[s]; !ok {
			union[s] = struct{}{}
		}
	}
	setB := make(map[string]struct{}, len(b))
	for _, s := range b {
		setB[s] = struct{}{}
	}
	for s := range setA {
		if _, ok := setB[s]; ok {
			intersection++
		}
	}
	return float64(intersection) / float64(len(union))
}

// complexitySimilarity compares cyclomatic complexity on a 0..1 scale.
func complexitySimilarity(a, b uint32) float64 {
	if a == b {
		return 1.0
	}
	max := a
	if b > max {
		max = b
	}
	diff := int64(a) - int64(b)
	if diff < 0 {
		diff = -diff
	}
	return 1.0 - float64(diff)/float64(max)
}

// verbPrefixes are stripped before comparing function name stems, so that
// load_config and fetch_config land in the same candidate bucket.
var verbPrefixes = []string{
	"get_", "set_", "load_", "fetch_", "read_", "write_",
	"compute_", "calc_", "calculate_", "make_", "build_", "create_",
	"process_", "handle_", "do_", "run_",
}

func nameStem(name string) string {
	stem := strings.ToLower(name)
	for _, p := range verbPrefixes {
		if strings.HasPrefix(stem, p) {
			stem = strings.TrimPrefix(stem, p)
			break
		}
	}
	return strings.ReplaceAll(stem, "_", "")
}

// docWords tokenizes a docstring into its lowercase word set.
func docWords(doc string) []string {
	fields := strings.Fields(strings.ToLower(doc))
	seen := make(map[string]struct{}, len(fields))
	var words []string
	for _, f := range fields {
		f = strings.Trim(f, ".,:;()[]'\"")
		if len(f) < 3 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		words = append(words, f)
	}
	return words
}
