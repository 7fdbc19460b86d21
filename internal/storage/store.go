package storage

import (
	"context"
	"time"
)

// Run is one persisted analysis run summary.
type Run struct {
	ID            int64
	Root          string
	CreatedAt     time.Time
	FilesAnalyzed int
	Violations    int
	Critical      int
	High          int
	Medium        int
	Low           int
	QualityScore  float64
	OverallScore  float64
}

// Finding is the persisted identity of one violation within a run, enough to
// diff runs without re-reading full reports.
type Finding struct {
	Fingerprint string
	Kind        string
	Severity    string
	FilePath    string
	Line        int
}

// BaselineDiff compares the latest run of a root against the previous one.
type BaselineDiff struct {
	Baseline Run
	Latest   Run
	New      []Finding
	Resolved []Finding
}

// Store persists run history for trend and baseline comparison.
type Store interface {
	// SaveRun records a run summary, its findings, and the full report JSON.
	SaveRun(ctx context.Context, run *Run, findings []Finding, report []byte) (int64, error)

	// ListRuns returns the most recent runs for a root, newest first.
	ListRuns(ctx context.Context, root string, limit int) ([]Run, error)

	// LoadReport returns the stored report JSON of a run.
	LoadReport(ctx context.Context, runID int64) ([]byte, error)

	// CompareBaseline diffs the two most recent runs of a root.
	CompareBaseline(ctx context.Context, root string) (*BaselineDiff, error)

	Close() error
}
