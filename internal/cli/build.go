package cli

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/retracite/internal/cache"
	"github.com/ppiankov/retracite/internal/model"
	"github.com/ppiankov/retracite/internal/pipeline"
	"github.com/ppiankov/retracite/internal/store"
)

var (
	resumeFrom string
	noCache    bool
	noRefill   bool
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the labeled feature table",
	Long: `Build runs the full dataset pipeline:
- Load the unknowing corpus and keep post-retraction citations
- Sample N rows with the configured seed
- Resolve each sentence to its paragraph in the citing article's NXML
- Load the knowing corpus and drop rows without context
- Refill unusable unknowing rows from the remaining pool
- Balance both classes, merge, shuffle and min-max normalize year columns
- Write the feature table and run_report.json

Intermediate tables are checkpointed; a failed or interrupted build can
continue with --resume-from sampled|resolved.

Example:
  retracite build
  retracite build --size 724 --seed 43 --threshold 85
  retracite build --resume-from resolved`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	defaults := model.DefaultConfig()

	buildCmd.Flags().Int("size", defaults.Dataset.Size, "rows per class")
	buildCmd.Flags().Int64("seed", defaults.Dataset.Seed, "random seed for sampling, balancing and shuffling")
	buildCmd.Flags().Int("threshold", defaults.Match.Threshold, "matcher confidence threshold (0-100, strictly greater wins)")
	buildCmd.Flags().Int("workers", defaults.Resolve.Workers, "concurrent resolution workers")
	buildCmd.Flags().StringVar(&resumeFrom, "resume-from", "", "resume from a checkpoint: sampled or resolved")
	buildCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the resolution memo cache")
	buildCmd.Flags().BoolVar(&noRefill, "no-refill", false, "do not replace unusable unknowing rows")

	bindFlag(buildCmd, "size", "dataset.size")
	bindFlag(buildCmd, "seed", "dataset.seed")
	bindFlag(buildCmd, "threshold", "match.threshold")
	bindFlag(buildCmd, "workers", "resolve.workers")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noRefill {
		cfg.Dataset.Refill = false
	}
	cfg.Resolve.Progress = showProgress(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	assembler, err := newAssembler(cfg, logger)
	if err != nil {
		return err
	}

	logger.Info("build started",
		zap.String("run_id", assembler.RunID()),
		zap.Int("size", cfg.Dataset.Size),
		zap.Int64("seed", cfg.Dataset.Seed),
		zap.Int("threshold", cfg.Match.Threshold),
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.String("resume_from", resumeFrom))

	report, err := assembler.Run(cmd.Context(), pipeline.Options{ResumeFrom: resumeFrom})
	printReport(cmd.ErrOrStderr(), report)
	if err != nil {
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) && cfg.Data.CheckpointDir != "" && stageErr.Stage != pipeline.StageSample {
			fmt.Fprintf(cmd.ErrOrStderr(), "Checkpoints kept in %s; rerun with --resume-from to continue.\n", cfg.Data.CheckpointDir)
		}
		return fmt.Errorf("build failed: %w", err)
	}
	return nil
}

func newAssembler(cfg *model.Config, logger *zap.Logger) (*pipeline.Assembler, error) {
	st := store.New(cfg.Data.DocumentsDir, cfg.Data.DocumentSuffix)

	var memo *cache.MatchMemo
	if cfg.Cache.Enabled {
		layered := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		memo = cache.NewMatchMemo(layered, cfg.Cache.DiskTTL)
	}

	resolver, err := pipeline.NewResolver(cfg.Match, cfg.Resolve, st, memo, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.NewAssembler(cfg, resolver, logger), nil
}

// printReport writes a human summary of a build
func printReport(w io.Writer, report *model.RunReport) {
	if report == nil {
		return
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Build %s\n", report.RunID)
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  Size:       %d per class (seed %d, threshold %d)\n", report.Size, report.Seed, report.Threshold)
	if report.ResumedFrom != "" {
		fmt.Fprintf(w, "  Resumed:    from %s checkpoint\n", report.ResumedFrom)
	}
	fmt.Fprintf(w, "\n")

	for _, s := range report.Stages {
		fmt.Fprintf(w, "  %-16s %d\n", s.Stage, s.Rows)
	}
	fmt.Fprintf(w, "\n")

	for _, status := range []model.ResolveStatus{
		model.StatusMatched, model.StatusNoMatch, model.StatusNotFound, model.StatusParseError, model.StatusInvalid,
	} {
		if n := report.Count(status); n > 0 {
			fmt.Fprintf(w, "  %-16s %d\n", status, n)
		}
	}
	if len(report.Skipped) > 0 {
		keys := make([]string, 0, len(report.Skipped))
		for k := range report.Skipped {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  skipped %-8s %d\n", k, report.Skipped[k])
		}
	}
	if report.Cache.Enabled {
		fmt.Fprintf(w, "  cache            %d hits, %d misses\n", report.Cache.Hits, report.Cache.Misses)
	}
	fmt.Fprintf(w, "\n")

	if report.Error != "" {
		fmt.Fprintf(w, "  ✗ %s\n\n", report.Error)
		return
	}
	if report.ClassSize < report.Size {
		fmt.Fprintf(w, "  ⚠ class size %d < %d\n", report.ClassSize, report.Size)
	}
	fmt.Fprintf(w, "  ✓ %d rows per class written to %s\n\n", report.ClassSize, report.Output)
}
