// Package duplication clusters duplicated implementations across the scanned
// tree. The phases are mutually exclusive and run in order of certainty: a
// function claimed by an earlier phase is never reconsidered by a later one.
package duplication

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/config"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/registry"
)

// ClusterKind names the phase that produced a cluster.
type ClusterKind string

const (
	ClusterExact          ClusterKind = "exact_duplicate"
	ClusterSimilar        ClusterKind = "similar_implementation"
	ClusterFunctional     ClusterKind = "functional_overlap"
	ClusterResponsibility ClusterKind = "responsibility_overlap"
)

// Cluster is one group of duplicated functions (or, for responsibility
// overlap, modules). Members are sorted by file then line.
type Cluster struct {
	ID             string
	Kind           ClusterKind
	Confidence     float64
	Similarity     float64
	Members        []registry.Ref
	MemberFiles    []string
	Recommendation string
}

// Consolidation is an actionable merge plan derived from a high-confidence
// cluster. Priority scales with both certainty and blast radius.
type Consolidation struct {
	ClusterID  string
	Kind       ClusterKind
	Strategy   string
	TargetFile string
	Priority   float64
	Members    []registry.Ref
}

// Result is the duplication report for one snapshot.
type Result struct {
	Clusters            []*Cluster
	Consolidations      []*Consolidation
	TotalFunctions      int
	DuplicatedFunctions int
	DuplicationRatio    float64
}

// Engine runs the phased duplication analysis over a frozen registry snapshot.
type Engine struct {
	cfg config.Similarity
}

func NewEngine(cfg config.Similarity) *Engine {
	return &Engine{cfg: cfg}
}

// Analyze runs all phases. The snapshot is sorted, so results are identical
// regardless of the order files were indexed in.
func (e *Engine) Analyze(snap *registry.Snapshot) *Result {
	res := &Result{TotalFunctions: snap.Len()}
	claimed := make([]bool, snap.Len())

	res.Clusters = append(res.Clusters, e.exactClusters(snap, claimed)...)
	res.Clusters = append(res.Clusters, e.similarClusters(snap, claimed)...)
	res.Clusters = append(res.Clusters, e.functionalClusters(snap, claimed)...)
	res.Clusters = append(res.Clusters, e.responsibilityClusters(snap)...)

	for _, c := range claimed {
		if c {
			res.DuplicatedFunctions++
		}
	}
	if res.TotalFunctions > 0 {
		res.DuplicationRatio = float64(res.DuplicatedFunctions) / float64(res.TotalFunctions)
	}

	res.Consolidations = e.consolidations(res.Clusters)
	return res
}

func (e *Engine) eligible(sig *registry.Signature) bool {
	return sig.StatementCount >= e.cfg.MinStatements
}

// exactClusters groups functions whose normalized bodies hash identically.
func (e *Engine) exactClusters(snap *registry.Snapshot, claimed []bool) []*Cluster {
	var clusters []*Cluster
	for _, group := range sortedGroups(snap.BodyGroups()) {
		var members []int
		for _, i := range group {
			if !claimed[i] && e.eligible(snap.Functions[i]) {
				members = append(members, i)
			}
		}
		if len(members) < 2 {
			continue
		}
		for _, i := range members {
			claimed[i] = true
		}
		c := newCluster(ClusterExact, snap, members, 1.0, 1.0)
		c.Recommendation = "Extract the duplicated body into a single shared function"
		clusters = append(clusters, c)
	}
	return sortClusters(clusters)
}

// similarClusters scores candidate pairs drawn from structural-hash groups
// and statement-count buckets, then merges pairs above the threshold. The
// bucketing keeps the pass near-linear in the number of functions.
func (e *Engine) similarClusters(snap *registry.Snapshot, claimed []bool) []*Cluster {
	pairs := e.candidatePairs(snap, claimed)

	uf := newUnionFind(snap.Len())
	edgeScores := make(map[[2]int]float64)
	for _, p := range pairs {
		score := e.similarScore(snap.Functions[p[0]], snap.Functions[p[1]])
		if score > e.cfg.Threshold {
			uf.union(p[0], p[1])
			edgeScores[p] = score
		}
	}

	clusters := clustersFromComponents(ClusterSimilar, snap, claimed, uf, edgeScores)
	for _, c := range clusters {
		c.Recommendation = "Unify the implementations via parameterization"
	}
	return clusters
}

// candidatePairs returns deduplicated (i, j) pairs worth scoring: same
// structural hash, or same top-level statement count.
func (e *Engine) candidatePairs(snap *registry.Snapshot, claimed []bool) [][2]int {
	seen := make(map[[2]int]struct{})
	var pairs [][2]int
	addGroup := func(group []int) {
		for a := 0; a < len(group); a++ {
			for b := a + 1; b < len(group); b++ {
				i, j := group[a], group[b]
				if i > j {
					i, j = j, i
				}
				key := [2]int{i, j}
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				pairs = append(pairs, key)
			}
		}
	}

	for _, group := range sortedGroups(snap.StructuralGroups()) {
		addGroup(e.filterEligible(snap, claimed, group))
	}

	byCount := make(map[int][]int)
	for i, sig := range snap.Functions {
		if !claimed[i] && e.eligible(sig) {
			byCount[sig.StatementCount] = append(byCount[sig.StatementCount], i)
		}
	}
	var counts []int
	for c := range byCount {
		counts = append(counts, c)
	}
	sort.Ints(counts)
	for _, c := range counts {
		addGroup(byCount[c])
	}

	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a][0] != pairs[b][0] {
			return pairs[a][0] < pairs[b][0]
		}
		return pairs[a][1] < pairs[b][1]
	})
	return pairs
}

func (e *Engine) filterEligible(snap *registry.Snapshot, claimed []bool, group []int) []int {
	var out []int
	for _, i := range group {
		if !claimed[i] && e.eligible(snap.Functions[i]) {
			out = append(out, i)
		}
	}
	return out
}

// similarScore weighs structural identity heaviest, then naming, parameters,
// complexity, and shared imports.
func (e *Engine) similarScore(a, b *registry.Signature) float64 {
	structural := 0.0
	if a.StructuralHash == b.StructuralHash {
		structural = 1.0
	}
	return 0.40*structural +
		0.20*levenshteinSimilarity(a.Name, b.Name) +
		0.15*parameterSimilarity(a.Parameters, b.Parameters) +
		0.10*complexitySimilarity(a.Complexity.Cyclomatic, b.Complexity.Cyclomatic) +
		0.15*jaccard(a.ImportsUsed, b.ImportsUsed)
}

// functionalClusters catches functions that do the same job without sharing
// structure: same name stem, overlapping documentation and parameters.
func (e *Engine) functionalClusters(snap *registry.Snapshot, claimed []bool) []*Cluster {
	byStem := make(map[string][]int)
	for i, sig := range snap.Functions {
		if claimed[i] || !e.eligible(sig) {
			continue
		}
		byStem[nameStem(sig.Name)] = append(byStem[nameStem(sig.Name)], i)
	}

	uf := newUnionFind(snap.Len())
	edgeScores := make(map[[2]int]float64)
	for _, group := range sortedGroups(byStem) {
		for a := 0; a < len(group); a++ {
			for b := a + 1; b < len(group); b++ {
				i, j := group[a], group[b]
				score := functionalScore(snap.Functions[i], snap.Functions[j])
				if score > e.cfg.FunctionalThreshold {
					uf.union(i, j)
					edgeScores[[2]int{i, j}] = score
				}
			}
		}
	}

	clusters := clustersFromComponents(ClusterFunctional, snap, claimed, uf, edgeScores)
	for _, c := range clusters {
		c.Recommendation = "Merge overlapping behavior behind one implementation"
	}
	return clusters
}

func functionalScore(a, b *registry.Signature) float64 {
	return 0.45*levenshteinSimilarity(strings.ToLower(a.Name), strings.ToLower(b.Name)) +
		0.35*jaccardNonEmpty(docWords(a.Doc), docWords(b.Doc)) +
		0.20*jaccard(a.Parameters, b.Parameters)
}

// jaccardNonEmpty is jaccard but treats two empty sets as zero overlap: two
// undocumented functions say nothing about shared purpose.
func jaccardNonEmpty(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	return jaccard(a, b)
}

// responsibilityClusters finds modules with overlapping responsibilities:
// near-identical import sets and at least two shared function name stems.
// Module-level, so it does not claim individual functions.
func (e *Engine) responsibilityClusters(snap *registry.Snapshot) []*Cluster {
	const importOverlap = 0.6
	const minSharedStems = 2

	fileImports := make(map[string][]string)
	fileStems := make(map[string]map[string]struct{})
	for _, sig := range snap.Functions {
		if _, ok := fileImports[sig.FilePath]; !ok {
			fileImports[sig.FilePath] = sig.ImportsUsed
			fileStems[sig.FilePath] = make(map[string]struct{})
		}
		fileStems[sig.FilePath][nameStem(sig.Name)] = struct{}{}
	}

	files := snap.Files
	uf := newUnionFind(len(files))
	pairSimilarity := make(map[[2]int]float64)
	for a := 0; a < len(files); a++ {
		for b := a + 1; b < len(files); b++ {
			overlap := jaccardNonEmpty(fileImports[files[a]], fileImports[files[b]])
			if overlap < importOverlap {
				continue
			}
			if sharedStems(fileStems[files[a]], fileStems[files[b]]) < minSharedStems {
				continue
			}
			uf.union(a, b)
			pairSimilarity[[2]int{a, b}] = overlap
		}
	}

	components := make(map[int][]int)
	for i := range files {
		root := uf.find(i)
		components[root] = append(components[root], i)
	}

	var roots []int
	for root, members := range components {
		if len(members) >= 2 {
			roots = append(roots, root)
		}
	}
	sort.Ints(roots)

	var clusters []*Cluster
	for _, root := range roots {
		fileIdx := components[root]
		memberFiles := make([]string, 0, len(fileIdx))
		inCluster := make(map[string]struct{})
		for _, fi := range fileIdx {
			memberFiles = append(memberFiles, files[fi])
			inCluster[files[fi]] = struct{}{}
		}
		sort.Strings(memberFiles)

		similarity, edges := 0.0, 0
		for pair, s := range pairSimilarity {
			if uf.find(pair[0]) == root {
				similarity += s
				edges++
			}
		}
		if edges > 0 {
			similarity /= float64(edges)
		}

		// Members are the functions whose stems recur across cluster files.
		stemFiles := make(map[string]map[string]struct{})
		for _, sig := range snap.Functions {
			if _, ok := inCluster[sig.FilePath]; !ok {
				continue
			}
			stem := nameStem(sig.Name)
			if stemFiles[stem] == nil {
				stemFiles[stem] = make(map[string]struct{})
			}
			stemFiles[stem][sig.FilePath] = struct{}{}
		}
		var members []registry.Ref
		for _, sig := range snap.Functions {
			if _, ok := inCluster[sig.FilePath]; !ok {
				continue
			}
			if len(stemFiles[nameStem(sig.Name)]) > 1 {
				members = append(members, sig.Ref())
			}
		}

		c := &Cluster{
			Kind:        ClusterResponsibility,
			Confidence:  0.8,
			Similarity:  similarity,
			Members:     members,
			MemberFiles: memberFiles,
		}
		c.ID = clusterID(c.Kind, memberFiles)
		c.Recommendation = "Reassign overlapping responsibilities between modules"
		clusters = append(clusters, c)
	}
	return sortClusters(clusters)
}

func sharedStems(a, b map[string]struct{}) int {
	n := 0
	for stem := range a {
		if _, ok := b[stem]; ok {
			n++
		}
	}
	return n
}

// consolidations turns high-confidence clusters into prioritized merge plans.
func (e *Engine) consolidations(clusters []*Cluster) []*Consolidation {
	const confidenceFloor = 0.70

	var plans []*Consolidation
	for _, c := range clusters {
		if c.Confidence <= confidenceFloor {
			continue
		}
		size := len(c.Members)
		if c.Kind == ClusterResponsibility {
			size = len(c.MemberFiles)
		}
		plan := &Consolidation{
			ClusterID: c.ID,
			Kind:      c.Kind,
			Priority:  c.Confidence * float64(size),
			Members:   c.Members,
		}
		if len(c.MemberFiles) > 0 {
			plan.TargetFile = c.MemberFiles[0]
		}
		switch c.Kind {
		case ClusterExact:
			plan.Strategy = "Move the shared body into one function and delete the copies"
		case ClusterSimilar:
			plan.Strategy = "Parameterize the differences and collapse into one implementation"
		case ClusterFunctional:
			plan.Strategy = "Pick one implementation as canonical and route callers to it"
		case ClusterResponsibility:
			plan.Strategy = "Split or merge the modules so each owns one responsibility"
		}
		plans = append(plans, plan)
	}

	sort.SliceStable(plans, func(i, j int) bool { return plans[i].Priority > plans[j].Priority })
	return plans
}

// newCluster builds a function-member cluster with sorted members and a
// content-derived ID.
func newCluster(kind ClusterKind, snap *registry.Snapshot, members []int, confidence, similarity float64) *Cluster {
	sort.Ints(members)
	refs := make([]registry.Ref, 0, len(members))
	fileSet := make(map[string]struct{})
	for _, i := range members {
		refs = append(refs, snap.Functions[i].Ref())
		fileSet[snap.Functions[i].FilePath] = struct{}{}
	}
	files := make([]string, 0, len(fileSet))
	for f := range fileSet {
		files = append(files, f)
	}
	sort.Strings(files)

	keys := make([]string, 0, len(refs))
	for _, r := range refs {
		keys = append(keys, fmt.Sprintf("%s:%d:%s", r.FilePath, r.Line, r.Name))
	}
	c := &Cluster{
		Kind:        kind,
		Confidence:  confidence,
		Similarity:  similarity,
		Members:     refs,
		MemberFiles: files,
	}
	c.ID = clusterID(kind, keys)
	return c
}

// clusterID derives a stable UUID from the cluster's kind and sorted member
// keys, so reruns over the same tree produce the same identifiers.
func clusterID(kind ClusterKind, keys []string) string {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	name := string(kind) + "|" + strings.Join(sorted, ",")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// clustersFromComponents materializes union-find components of two or more
// members into clusters, claiming the members. Confidence and similarity are
// the mean score of the edges inside each component.
func clustersFromComponents(kind ClusterKind, snap *registry.Snapshot, claimed []bool, uf *unionFind, edges map[[2]int]float64) []*Cluster {
	components := make(map[int][]int)
	for pair := range edges {
		for _, i := range pair {
			root := uf.find(i)
			components[root] = appendUnique(components[root], i)
		}
	}

	var roots []int
	for root := range components {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	var clusters []*Cluster
	for _, root := range roots {
		members := components[root]
		if len(members) < 2 {
			continue
		}
		score, n := 0.0, 0
		for pair, s := range edges {
			if uf.find(pair[0]) == root {
				score += s
				n++
			}
		}
		score /= float64(n)

		for _, i := range members {
			claimed[i] = true
		}
		clusters = append(clusters, newCluster(kind, snap, members, score, score))
	}
	return sortClusters(clusters)
}

func appendUnique(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

// sortedGroups returns the multi-member groups of a hash-keyed index, ordered
// by their smallest member so map iteration order cannot leak into results.
func sortedGroups[K comparable](groups map[K][]int) [][]int {
	var out [][]int
	for _, g := range groups {
		if len(g) < 2 {
			continue
		}
		sorted := append([]int(nil), g...)
		sort.Ints(sorted)
		out = append(out, sorted)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func sortClusters(clusters []*Cluster) []*Cluster {
	sort.SliceStable(clusters, func(i, j int) bool {
		a, b := clusters[i], clusters[j]
		if len(a.Members) > 0 && len(b.Members) > 0 {
			if a.Members[0].FilePath != b.Members[0].FilePath {
				return a.Members[0].FilePath < b.Members[0].FilePath
			}
			return a.Members[0].Line < b.Members[0].Line
		}
		if len(a.MemberFiles) > 0 && len(b.MemberFiles) > 0 {
			return a.MemberFiles[0] < b.MemberFiles[0]
		}
		return len(a.Members) > len(b.Members)
	})
	return clusters
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	// Smaller index wins the root, keeping component ids deterministic.
	u.parent[rb] = ra
}
