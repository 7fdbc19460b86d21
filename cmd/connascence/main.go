package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/analyzer"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/config"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/storage"
	"github.com/DNYoussef/connascence-safety-analyzer-sub001/internal/violation"
)

var (
	rootCmd = &cobra.Command{
		Use:   "connascence",
		Short: "Connascence and safety-rule analyzer for Python codebases",
	}

	dbPath      string
	configPath  string
	verbose     bool
	jsonOutput  bool
	minSeverity string
	failOn      string
	saveRun     bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "connascence.db", "Path to the run-history database (SQLite)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "connascence.yaml", "Path to the analysis policy file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	for _, cmd := range []*cobra.Command{scanCmd, fileCmd} {
		cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the full report as JSON")
		cmd.Flags().StringVar(&minSeverity, "min-severity", "low", "Lowest severity to report (low|medium|high|critical)")
		cmd.Flags().StringVar(&failOn, "fail-on", "critical", "Exit non-zero when findings at or above this severity exist (empty disables)")
	}
	scanCmd.Flags().BoolVar(&saveRun, "save", false, "Record this run in the history database")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(compareCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newEngine() (*analyzer.Engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return analyzer.New(cfg, newLogger()), nil
}

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Analyze a source tree for coupling and safety violations",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) > 0 {
			root = args[0]
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return err
		}

		eng, err := newEngine()
		if err != nil {
			return err
		}
		report, err := eng.AnalyzeTree(cmd.Context(), abs)
		if err != nil {
			return err
		}

		if saveRun {
			if err := persistRun(cmd.Context(), report); err != nil {
				return fmt.Errorf("saving run: %w", err)
			}
		}

		if err := render(report); err != nil {
			return err
		}
		return checkFailOn(report)
	},
}

var fileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Analyze a single Python file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		report, err := eng.AnalyzeFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := render(report); err != nil {
			return err
		}
		return checkFailOn(report)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [path]",
	Short: "Show recorded runs for a source tree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveRoot(args)
		if err != nil {
			return err
		}
		store, err := storage.NewSQLiteStore(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(cmd.Context(), root, 20)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Printf("No recorded runs for %s\n", root)
			return nil
		}
		for _, r := range runs {
			fmt.Printf("#%d  %s  files=%d violations=%d (crit=%d high=%d) score=%.2f\n",
				r.ID, r.CreatedAt.Format(time.RFC3339), r.FilesAnalyzed,
				r.Violations, r.Critical, r.High, r.OverallScore)
		}
		return nil
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare [path]",
	Short: "Diff the two most recent runs of a source tree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveRoot(args)
		if err != nil {
			return err
		}
		store, err := storage.NewSQLiteStore(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		diff, err := store.CompareBaseline(cmd.Context(), root)
		if err != nil {
			return err
		}

		fmt.Printf("Baseline #%d (%s) -> latest #%d (%s)\n",
			diff.Baseline.ID, diff.Baseline.CreatedAt.Format(time.RFC3339),
			diff.Latest.ID, diff.Latest.CreatedAt.Format(time.RFC3339))
		fmt.Printf("%d new, %d resolved\n", len(diff.New), len(diff.Resolved))
		for _, f := range diff.New {
			fmt.Printf("  + [%s] %s %s:%d\n", f.Severity, f.Kind, f.FilePath, f.Line)
		}
		for _, f := range diff.Resolved {
			fmt.Printf("  - [%s] %s %s:%d\n", f.Severity, f.Kind, f.FilePath, f.Line)
		}
		return nil
	},
}

func resolveRoot(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	return filepath.Abs(root)
}

func persistRun(ctx context.Context, report *analyzer.Report) error {
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	run := &storage.Run{
		Root:          report.Root,
		CreatedAt:     report.StartedAt.UTC(),
		FilesAnalyzed: report.FilesAnalyzed,
		Violations:    len(report.Violations),
		Critical:      report.Metrics.BySeverity["critical"],
		High:          report.Metrics.BySeverity["high"],
		Medium:        report.Metrics.BySeverity["medium"],
		Low:           report.Metrics.BySeverity["low"],
		QualityScore:  report.Correlation.QualityScore,
		OverallScore:  report.Metrics.OverallScore,
	}

	findings := make([]storage.Finding, 0, len(report.Violations))
	for _, v := range report.Violations {
		findings = append(findings, storage.Finding{
			Fingerprint: v.ID,
			Kind:        v.Kind.String(),
			Severity:    v.Severity.String(),
			FilePath:    v.FilePath,
			Line:        v.Line,
		})
	}

	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	id, err := store.SaveRun(ctx, run, findings, raw)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Run recorded as #%d in %s\n", id, dbPath)
	return nil
}

func render(report *analyzer.Report) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	floor := violation.ParseSeverity(minSeverity)
	shown := 0
	for _, v := range report.Violations {
		if v.Severity < floor {
			continue
		}
		shown++
		fmt.Printf("[%s] %s %s:%d:%d %s\n",
			v.Severity, v.Kind, v.FilePath, v.Line, v.Column, v.Description)
		if v.Recommendation != "" {
			fmt.Printf("    -> %s\n", v.Recommendation)
		}
	}

	m := report.Metrics
	fmt.Printf("\n%d files, %d violations shown (%d total: crit=%d high=%d med=%d low=%d)\n",
		report.FilesAnalyzed, shown, m.TotalViolations,
		m.BySeverity["critical"], m.BySeverity["high"], m.BySeverity["medium"], m.BySeverity["low"])
	fmt.Printf("connascence index %.1f | safety %.2f | duplication %.2f | overall %.2f | quality %.2f\n",
		m.ConnascenceIndex, m.SafetyCompliance, m.DuplicationScore, m.OverallScore,
		report.Correlation.QualityScore)
	for _, err := range report.Errors {
		fmt.Printf("error: %s: %s\n", err.Path, err.Err)
	}
	for _, rec := range report.Recommendations {
		fmt.Printf("recommendation: %s\n", rec)
	}
	return nil
}

// checkFailOn makes the process exit non-zero for CI gates.
func checkFailOn(report *analyzer.Report) error {
	if failOn == "" {
		return nil
	}
	floor := violation.ParseSeverity(failOn)
	count := 0
	for _, v := range report.Violations {
		if v.Severity >= floor {
			count++
		}
	}
	if count > 0 {
		return fmt.Errorf("%d findings at or above %s severity", count, floor)
	}
	return nil
}
