// Package registry keeps the cross-file catalog of function signatures built
// during the indexing phase. Writers insert whole per-file entries
// concurrently; the duplication engine reads a frozen snapshot taken after
// indexing completes.
package registry

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/syntax"
)

// Signature is the registry's record of one function. Created at indexing
// time and never mutated; re-indexing a file replaces its entries wholesale.
type Signature struct {
	Name           string
	FilePath       string
	Line           int
	Parameters     []string
	Doc            string
	StructuralHash uint64
	BodyHash       uint64
	Complexity     syntax.Complexity
	ImportsUsed    []string
	StatementCount int
}

// Ref identifies a signature without carrying its payload.
type Ref struct {
	Name     string
	FilePath string
	Line     int
}

func (s *Signature) Ref() Ref {
	return Ref{Name: s.Name, FilePath: s.FilePath, Line: s.Line}
}

const shardCount = 16

type shard struct {
	mu    sync.Mutex
	files map[string][]*Signature
}

// Registry is safe for concurrent per-file insertion.
type Registry struct {
	shards [shardCount]shard
}

func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].files = make(map[string][]*Signature)
	}
	return r
}

func (r *Registry) shardFor(file string) *shard {
	return &r.shards[xxhash.Sum64String(file)%shardCount]
}

// AddFile records the signatures extracted from one file, replacing any
// previous entries for that path.
func (r *Registry) AddFile(file string, funcs []*syntax.Function, imports []string) {
	sigs := make([]*Signature, 0, len(funcs))
	for _, f := range funcs {
		sigs = append(sigs, &Signature{
			Name:           f.Name,
			FilePath:       file,
			Line:           f.Line,
			Parameters:     f.Params,
			Doc:            f.Doc,
			StructuralHash: f.StructuralHash,
			BodyHash:       f.BodyHash,
			Complexity:     f.Complexity,
			ImportsUsed:    imports,
			StatementCount: f.StatementCount,
		})
	}

	s := r.shardFor(file)
	s.mu.Lock()
	s.files[file] = sigs
	s.mu.Unlock()
}

// RemoveFile drops all entries for a path.
func (r *Registry) RemoveFile(file string) {
	s := r.shardFor(file)
	s.mu.Lock()
	delete(s.files, file)
	s.mu.Unlock()
}

// Snapshot is the frozen, order-independent view the duplication engine
// consumes. Functions are arena-indexed: clusters reference positions into
// the flat slice rather than re-hashing lookups.
type Snapshot struct {
	Functions []*Signature
	Files     []string

	byBody       map[uint64][]int
	byStructural map[uint64][]int
}

// Snapshot freezes the registry. Entries are sorted by file then line so two
// scans of the same tree produce identical snapshots regardless of file
// discovery order.
func (r *Registry) Snapshot() *Snapshot {
	snap := &Snapshot{
		byBody:       make(map[uint64][]int),
		byStructural: make(map[uint64][]int),
	}

	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		for file, sigs := range s.files {
			snap.Files = append(snap.Files, file)
			snap.Functions = append(snap.Functions, sigs...)
		}
		s.mu.Unlock()
	}

	sort.Strings(snap.Files)
	sort.Slice(snap.Functions, func(i, j int) bool {
		a, b := snap.Functions[i], snap.Functions[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		return a.Line < b.Line
	})

	for i, sig := range snap.Functions {
		snap.byBody[sig.BodyHash] = append(snap.byBody[sig.BodyHash], i)
		snap.byStructural[sig.StructuralHash] = append(snap.byStructural[sig.StructuralHash], i)
	}
	return snap
}

// BodyGroups returns the indices of functions sharing each body hash.
func (s *Snapshot) BodyGroups() map[uint64][]int { return s.byBody }

// StructuralGroups returns the indices of functions sharing each structural hash.
func (s *Snapshot) StructuralGroups() map[uint64][]int { return s.byStructural }

// Len reports the number of catalogued functions.
func (s *Snapshot) Len() int { return len(s.Functions) }
