// Package pipeline assembles the labeled post-retraction citation dataset.
//
// A build runs these stages in order:
//
//	load_unknowing -> filter -> sample -> resolve -> load_knowing ->
//	drop_missing -> refill -> balance -> merge_shuffle -> normalize -> emit
//
// Unknowing rows only carry a citation sentence, so each sampled row is
// resolved to its paragraph of origin with the matcher. Knowing rows carry an
// annotated context and are used as-is. Every random step draws from its own
// stream derived from the configured seed.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/retracite/internal/corpus"
	"github.com/ppiankov/retracite/internal/features"
	"github.com/ppiankov/retracite/internal/logging"
	"github.com/ppiankov/retracite/internal/model"
	"github.com/ppiankov/retracite/internal/sample"
)

// ReportFile is the run report's name inside the output directory
const ReportFile = "run_report.json"

// Options control a single build
type Options struct {
	ResumeFrom string // "", "sampled" or "resolved"
}

// Assembler runs dataset builds
type Assembler struct {
	cfg         *model.Config
	resolver    *Resolver
	checkpoints *Checkpoints
	logger      *zap.Logger
	runID       string
	now         func() time.Time
}

// NewAssembler creates an assembler. Every build it runs is tagged with a
// fresh run ID in logs and the report.
func NewAssembler(cfg *model.Config, resolver *Resolver, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = logging.Nop()
	}
	runID := uuid.NewString()
	return &Assembler{
		cfg:         cfg,
		resolver:    resolver,
		checkpoints: NewCheckpoints(cfg.Data.CheckpointDir),
		logger:      logger.With(zap.String("run_id", runID)),
		runID:       runID,
		now:         time.Now,
	}
}

// RunID returns the identifier stamped on this assembler's builds
func (a *Assembler) RunID() string {
	return a.runID
}

// Run executes a build and writes the feature table and run report. On
// failure the returned error is a *StageError and the report, also written
// to disk, holds whatever was counted before the failure.
func (a *Assembler) Run(ctx context.Context, opts Options) (report *model.RunReport, err error) {
	report = model.NewRunReport(a.runID, a.now().UTC())
	report.Size = a.cfg.Dataset.Size
	report.Seed = a.cfg.Dataset.Seed
	report.Threshold = a.cfg.Match.Threshold
	report.Cache.Enabled = a.cfg.Cache.Enabled

	defer func() {
		report.FinishedAt = a.now().UTC()
		report.Cache.Hits, report.Cache.Misses = a.resolver.Memo().Stats()
		if err != nil {
			report.Error = err.Error()
		}
		if werr := a.writeReport(report); werr != nil {
			a.logger.Warn("could not write run report", zap.Error(werr))
		}
	}()

	resume, err := ParseResumePoint(opts.ResumeFrom)
	if err != nil {
		return report, &StageError{Stage: StageSample, Err: err}
	}
	report.ResumedFrom = resume

	b := &build{Assembler: a, ctx: ctx, report: report, sources: sample.NewSources(a.cfg.Dataset.Seed)}
	for _, step := range []struct {
		stage Stage
		run   func() (int, error)
	}{
		{StageLoadUnknowing, b.loadUnknowing},
		{StageFilter, b.filter},
		{StageSample, func() (int, error) { return b.sample(resume) }},
		{StageResolve, func() (int, error) { return b.resolve(resume) }},
		{StageLoadKnowing, b.loadKnowing},
		{StageDropMissing, b.dropMissing},
		{StageRefill, b.refill},
		{StageBalance, b.balance},
		{StageMergeShuffle, b.mergeShuffle},
		{StageNormalize, b.normalize},
		{StageEmit, b.emit},
	} {
		if err := ctx.Err(); err != nil {
			return report, &StageError{Stage: step.stage, Counts: slices.Clone(report.Stages), Err: err}
		}
		rows, err := step.run()
		if err != nil {
			return report, &StageError{Stage: step.stage, Counts: slices.Clone(report.Stages), Err: err}
		}
		report.AddStage(string(step.stage), rows)
		a.logger.Info("stage complete", zap.String("stage", string(step.stage)), zap.Int("rows", rows))
	}

	return report, nil
}

// build carries one run's intermediate tables between stages
type build struct {
	*Assembler
	ctx     context.Context
	report  *model.RunReport
	sources sample.Sources

	unknowing []model.CitationRecord
	pool      []model.CitationRecord
	sampler   *sample.Sampler[model.CitationRecord]
	sampled   []model.CitationRecord
	resolved  []model.ResolvedCitation
	knowing   []model.CitationRecord
	usable    []model.ResolvedCitation
	rows      []model.DatasetRow
	table     []model.FeatureRow
}

func (b *build) loadUnknowing() (int, error) {
	table, err := corpus.ReadFile(b.corpusPath(b.cfg.Data.UnknowingFile), b.cfg.Data.UnknowingCols)
	if err != nil {
		return 0, err
	}
	b.noteSkipped("unknowing", table.Skipped)
	b.unknowing = table.Records
	return len(b.unknowing), nil
}

// filter keeps citations made after the retraction notice
func (b *build) filter() (int, error) {
	for _, rec := range b.unknowing {
		if rec.PostRetraction {
			b.pool = append(b.pool, rec)
		}
	}
	return len(b.pool), nil
}

func (b *build) sample(resume string) (int, error) {
	size := b.cfg.Dataset.Size
	b.sampler = sample.NewSampler(b.pool, b.sources.Rand(sample.StreamSample))
	b.sampled = b.sampler.Draw(size)
	if len(b.sampled) < size {
		b.logger.Warn("filtered pool smaller than dataset size",
			zap.Int("pool", len(b.pool)),
			zap.Int("size", size))
	}

	if resume != "" {
		if resume == ResumeSampled {
			sampled, err := b.checkpoints.ReadSampled()
			if err != nil {
				return 0, err
			}
			b.sampled = sampled
		}
		return len(b.sampled), nil
	}

	if err := b.checkpoint(b.checkpoints.WriteSampled(b.sampled)); err != nil {
		return 0, err
	}
	return len(b.sampled), nil
}

func (b *build) resolve(resume string) (int, error) {
	if resume == ResumeResolved {
		resolved, err := b.checkpoints.ReadResolved()
		if err != nil {
			return 0, err
		}
		b.resolved = resolved
	} else {
		resolved, err := b.resolver.Resolve(b.ctx, b.sampled)
		if err != nil {
			return 0, err
		}
		b.resolved = resolved
		if err := b.checkpoint(b.checkpoints.WriteResolved(b.resolved)); err != nil {
			return 0, err
		}
	}

	for _, rc := range b.resolved {
		b.report.Tally(rc)
	}
	return len(b.resolved), nil
}

func (b *build) loadKnowing() (int, error) {
	table, err := corpus.ReadFile(b.corpusPath(b.cfg.Data.KnowingFile), b.cfg.Data.KnowingCols)
	if err != nil {
		return 0, err
	}
	b.noteSkipped("knowing", table.Skipped)
	b.knowing = table.Records
	return len(b.knowing), nil
}

// dropMissing discards rows without paragraph context from both classes
func (b *build) dropMissing() (int, error) {
	b.usable = withContext(b.resolved)

	knowing := b.knowing[:0:0]
	for _, rec := range b.knowing {
		if strings.TrimSpace(rec.Context) != "" {
			knowing = append(knowing, rec)
		}
	}
	if dropped := len(b.knowing) - len(knowing); dropped > 0 {
		b.report.Skipped["knowing_without_context"] = dropped
		b.logger.Debug("dropped knowing rows without context", zap.Int("rows", dropped))
	}
	b.knowing = knowing

	b.logger.Info("context coverage",
		zap.Int("unknowing_resolved", len(b.resolved)),
		zap.Int("unknowing_with_context", len(b.usable)),
		zap.Int("knowing_with_context", len(b.knowing)))
	return len(b.usable), nil
}

// refill replaces dropped unknowing rows with further draws from the
// filtered pool until the class reaches the dataset size or the pool runs out
func (b *build) refill() (int, error) {
	size := b.cfg.Dataset.Size
	if !b.cfg.Dataset.Refill || len(b.usable) >= size {
		return len(b.usable), nil
	}

	seen := make(map[string]bool, len(b.sampled)+len(b.resolved))
	for _, rec := range b.sampled {
		seen[rowKey(rec)] = true
	}
	for _, rc := range b.resolved {
		seen[rowKey(rc.Record)] = true
	}

	added := 0
	for len(b.usable) < size && b.sampler.Remaining() > 0 {
		batch := drawFresh(b.sampler, size-len(b.usable), seen)
		if len(batch) == 0 {
			break
		}
		more, err := b.resolver.Resolve(b.ctx, batch)
		if err != nil {
			return 0, err
		}
		for _, rc := range more {
			b.report.Tally(rc)
		}
		b.resolved = append(b.resolved, more...)
		b.usable = append(b.usable, withContext(more)...)
		added += len(more)
	}

	if added > 0 {
		b.logger.Info("refilled unknowing class",
			zap.Int("drawn", added),
			zap.Int("usable", len(b.usable)),
			zap.Int("pool_drawn", b.sampler.Drawn()),
			zap.Int("pool_remaining", b.sampler.Remaining()))
		if err := b.checkpoint(b.checkpoints.WriteResolved(b.resolved)); err != nil {
			return 0, err
		}
	}
	return len(b.usable), nil
}

// balance downsamples the larger class so both have the same size
func (b *build) balance() (int, error) {
	classSize := min(len(b.usable), len(b.knowing))
	if classSize < b.cfg.Dataset.MinClassSize {
		return 0, fmt.Errorf("%w: %d rows per class, need at least %d (unknowing %d, knowing %d)",
			ErrInsufficientRows, classSize, b.cfg.Dataset.MinClassSize, len(b.usable), len(b.knowing))
	}
	if classSize < b.cfg.Dataset.Size {
		b.logger.Warn("classes smaller than dataset size",
			zap.Int("class_size", classSize),
			zap.Int("size", b.cfg.Dataset.Size))
	}

	rng := b.sources.Rand(sample.StreamBalance)
	b.knowing = sample.Downsample(b.knowing, classSize, rng)
	b.usable = sample.Downsample(b.usable, classSize, rng)
	b.report.ClassSize = classSize

	paths, err := b.checkpoints.WriteBalanced(b.usable, b.knowing)
	if err != nil {
		return 0, err
	}
	b.report.Checkpoints = append(b.report.Checkpoints, paths...)

	return len(b.usable) + len(b.knowing), nil
}

// mergeShuffle labels both classes and interleaves them
func (b *build) mergeShuffle() (int, error) {
	b.rows = make([]model.DatasetRow, 0, len(b.usable)+len(b.knowing))
	for _, rc := range b.usable {
		b.rows = append(b.rows, model.UnknowingRow(rc))
	}
	for _, rec := range b.knowing {
		b.rows = append(b.rows, model.KnowingRow(rec))
	}
	sample.Shuffle(b.rows, b.sources.Rand(sample.StreamShuffle))
	return len(b.rows), nil
}

func (b *build) normalize() (int, error) {
	b.table = features.Build(b.rows)
	return len(b.table), nil
}

func (b *build) emit() (int, error) {
	path := filepath.Join(b.cfg.Data.OutputDir, b.cfg.Data.OutputFile)
	err := corpus.WriteFileAtomic(path, func(w io.Writer) error {
		return corpus.WriteFeatures(w, b.table)
	})
	if err != nil {
		return 0, err
	}
	b.report.Output = path
	return len(b.table), nil
}

// checkpoint records a written checkpoint path
func (b *build) checkpoint(path string, err error) error {
	if err != nil {
		return err
	}
	if path != "" && !slices.Contains(b.report.Checkpoints, path) {
		b.report.Checkpoints = append(b.report.Checkpoints, path)
	}
	return nil
}

func (b *build) noteSkipped(source string, issues []corpus.RowIssue) {
	if len(issues) == 0 {
		return
	}
	b.report.Skipped[source] = len(issues)
	for _, issue := range issues {
		b.logger.Debug("skipped input row",
			zap.String("corpus", source),
			zap.Int("line", issue.Line),
			zap.String("reason", issue.Reason))
	}
}

// corpusPath resolves a corpus file against the data root
func (a *Assembler) corpusPath(name string) string {
	if filepath.IsAbs(name) || a.cfg.Data.Root == "" {
		return name
	}
	return filepath.Join(a.cfg.Data.Root, name)
}

func (a *Assembler) writeReport(report *model.RunReport) error {
	if a.cfg.Data.OutputDir == "" {
		return nil
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return corpus.WriteFileAtomic(filepath.Join(a.cfg.Data.OutputDir, ReportFile), func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
}

func withContext(rows []model.ResolvedCitation) []model.ResolvedCitation {
	var out []model.ResolvedCitation
	for _, rc := range rows {
		if rc.HasContext() {
			out = append(out, rc)
		}
	}
	return out
}

// rowKey identifies a citation within the filtered pool
func rowKey(rec model.CitationRecord) string {
	return rec.CitingPMCID + "\x00" + rec.CitedPMID + "\x00" + rec.Sentence
}

// drawFresh draws up to k records whose key is not in seen, marking them seen
func drawFresh(s *sample.Sampler[model.CitationRecord], k int, seen map[string]bool) []model.CitationRecord {
	var out []model.CitationRecord
	for len(out) < k && s.Remaining() > 0 {
		for _, rec := range s.Draw(k - len(out)) {
			key := rowKey(rec)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, rec)
		}
	}
	return out
}
