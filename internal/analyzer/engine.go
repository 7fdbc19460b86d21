// Package analyzer orchestrates a full run: crawl, parse, detect, cluster
// duplication, rescore severity, correlate, and roll up metrics.
package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/config"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/correlation"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/crawler"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/detector"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/duplication"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/registry"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/severity"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/syntax"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/violation"
)

// FileError records a file the run could not fully analyze. The scan itself
// continues; these surface in the report next to the findings.
type FileError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// Report is the complete result of one run.
type Report struct {
	Root            string                 `json:"root"`
	StartedAt       time.Time              `json:"started_at"`
	Duration        time.Duration          `json:"duration"`
	FilesAnalyzed   int                    `json:"files_analyzed"`
	Violations      []*violation.Violation `json:"violations"`
	Duplication     *duplication.Result    `json:"duplication"`
	Correlation     *correlation.Report    `json:"correlation"`
	Metrics         Metrics                `json:"metrics"`
	Errors          []FileError            `json:"errors,omitempty"`
	Recommendations []string               `json:"recommendations,omitempty"`
}

// Records flattens the violations into the stable export shape.
func (r *Report) Records() []violation.Record {
	records := make([]violation.Record, 0, len(r.Violations))
	for _, v := range r.Violations {
		records = append(records, v.ToRecord())
	}
	return records
}

// Engine wires the pipeline stages together.
type Engine struct {
	cfg      *config.Config
	log      *slog.Logger
	crawl    *crawler.Crawler
	detect   *detector.Detector
	severity *severity.Engine
}

func New(cfg *config.Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg:      cfg,
		log:      log,
		crawl:    crawler.New(cfg),
		detect:   detector.New(cfg.Thresholds),
		severity: severity.NewEngine(cfg),
	}
}

// AnalyzeTree runs the full pipeline over every source file under root.
// Per-file work runs on a bounded worker pool; the report is identical
// regardless of completion order.
func (e *Engine) AnalyzeTree(ctx context.Context, root string) (*Report, error) {
	started := time.Now()

	var (
		files      []crawler.File
		violations []*violation.Violation
		fileErrors []FileError
	)
	if err := e.crawl.Scan(ctx, root, func(f crawler.File) error {
		files = append(files, f)
		return nil
	}, func(path string, err error) {
		// Unreadable entries degrade to findings; the scan itself goes on.
		e.log.Warn("skipping unreadable path", "path", path, "error", err)
		violations = append(violations, detector.Unreadable(path, err))
		fileErrors = append(fileErrors, FileError{Path: path, Err: err.Error()})
	}); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	e.log.Info("scan complete", "root", root, "files", len(files))

	reg := registry.New()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	results := make([][]*violation.Violation, len(files))
	errResults := make([]*FileError, len(files))

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], errResults[i] = e.analyzeOne(gctx, reg, f)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range files {
		violations = append(violations, results[i]...)
		if errResults[i] != nil {
			fileErrors = append(fileErrors, *errResults[i])
		}
	}

	report := e.finish(violations, reg.Snapshot())
	report.Root = root
	report.StartedAt = started
	report.Duration = time.Since(started)
	report.FilesAnalyzed = len(files)
	report.Errors = fileErrors

	e.log.Info("analysis complete",
		"files", report.FilesAnalyzed,
		"violations", len(report.Violations),
		"overall_score", report.Metrics.OverallScore)
	return report, nil
}

// AnalyzeFile runs the pipeline over a single file. Cross-file phases still
// run; they just see one file's functions.
func (e *Engine) AnalyzeFile(ctx context.Context, path string) (*Report, error) {
	started := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	reg := registry.New()
	vs, ferr := e.analyzeOne(ctx, reg, crawler.File{Path: path, Size: info.Size()})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := e.finish(vs, reg.Snapshot())
	report.Root = path
	report.StartedAt = started
	report.Duration = time.Since(started)
	report.FilesAnalyzed = 1
	if ferr != nil {
		report.Errors = []FileError{*ferr}
	}
	return report, nil
}

// analyzeOne brings one file through read, parse, and detection. Failures
// become findings rather than run errors.
func (e *Engine) analyzeOne(ctx context.Context, reg *registry.Registry, f crawler.File) ([]*violation.Violation, *FileError) {
	if f.Size > e.cfg.MaxFileBytes {
		err := fmt.Errorf("file size %d exceeds limit %d", f.Size, e.cfg.MaxFileBytes)
		return []*violation.Violation{detector.Unreadable(f.Path, err)}, &FileError{Path: f.Path, Err: err.Error()}
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return []*violation.Violation{detector.Unreadable(f.Path, err)}, &FileError{Path: f.Path, Err: err.Error()}
	}
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		err := errors.New("binary or non-UTF-8 content")
		return []*violation.Violation{detector.Unreadable(f.Path, err)}, &FileError{Path: f.Path, Err: err.Error()}
	}

	ix, err := syntax.Parse(ctx, f.Path, data)
	if err != nil {
		var perr *syntax.ErrUnparsable
		if errors.As(err, &perr) {
			e.log.Debug("unparsable file", "path", f.Path, "line", perr.Line)
			return []*violation.Violation{detector.SyntaxError(ix, perr)}, &FileError{Path: f.Path, Err: err.Error()}
		}
		return []*violation.Violation{detector.Unreadable(f.Path, err)}, &FileError{Path: f.Path, Err: err.Error()}
	}

	vs := e.detect.Detect(ix)
	reg.AddFile(f.Path, ix.Functions(), ix.Imports())
	return vs, nil
}

// finish runs the cross-file stages over the collected findings.
func (e *Engine) finish(violations []*violation.Violation, snap *registry.Snapshot) *Report {
	dup := duplication.NewEngine(e.cfg.Similarity).Analyze(snap)
	linkDuplications(violations, dup)

	e.severity.ApplyBatch(violations, nil)

	sort.SliceStable(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Kind < b.Kind
	})

	corr := correlation.NewEngine().Correlate(violations, dup)

	report := &Report{
		Violations:  violations,
		Duplication: dup,
		Correlation: corr,
		Metrics:     computeMetrics(violations, dup),
	}
	report.Recommendations = buildRecommendations(report)
	return report
}

// linkDuplications attaches cluster ids to violations raised on functions
// that are members of a duplication cluster.
func linkDuplications(violations []*violation.Violation, dup *duplication.Result) {
	type key struct {
		file string
		fn   string
	}
	members := make(map[key][]string)
	for _, c := range dup.Clusters {
		for _, m := range c.Members {
			k := key{m.FilePath, m.Name}
			members[k] = append(members[k], c.ID)
		}
	}
	for _, v := range violations {
		if v.Context.FunctionName == "" {
			continue
		}
		ids := members[key{v.FilePath, v.Context.FunctionName}]
		if len(ids) > 0 {
			v.RelatedDuplications = append([]string(nil), ids...)
			sort.Strings(v.RelatedDuplications)
		}
	}
}

func (e *Engine) workers() int {
	if e.cfg.Workers > 0 {
		return e.cfg.Workers
	}
	return runtime.GOMAXPROCS(0)
}
