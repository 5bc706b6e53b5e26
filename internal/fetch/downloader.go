package fetch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/retracite/internal/corpus"
	"github.com/ppiankov/retracite/internal/store"
	"github.com/ppiankov/retracite/internal/util"
	"github.com/ppiankov/retracite/internal/worker"
)

// Outcome classifies what happened to one identifier
type Outcome string

const (
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeSkipped    Outcome = "skipped" // Already in the store
	OutcomeFailed     Outcome = "failed"
)

// Result is the outcome for one PMCID
type Result struct {
	PMCID   string
	Outcome Outcome
	Bytes   int
	Err     error
}

// GetError returns the fetch error, if any
func (r *Result) GetError() error {
	return r.Err
}

// Summary aggregates a download run
type Summary struct {
	Requested  int
	Downloaded int
	Skipped    int
	Failed     int
	Results    []*Result
}

// Failures returns the failed results in request order
func (s *Summary) Failures() []*Result {
	var failed []*Result
	for _, r := range s.Results {
		if r.Outcome == OutcomeFailed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Downloader fills a store from PMC
type Downloader struct {
	client    *Client
	store     *store.Store
	workers   int
	overwrite bool
	progress  bool
	logger    *zap.Logger
}

// NewDownloader creates a downloader writing into st
func NewDownloader(client *Client, st *store.Store, workers int, overwrite, progress bool, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		client:    client,
		store:     st,
		workers:   workers,
		overwrite: overwrite,
		progress:  progress,
		logger:    logger,
	}
}

// DownloadAll fetches every identifier not already stored. Per-ID failures
// are collected in the summary; only cancellation returns an error.
func (d *Downloader) DownloadAll(ctx context.Context, pmcids []string) (*Summary, error) {
	ids := dedupe(pmcids)
	summary := &Summary{Requested: len(ids)}

	jobs := make([]worker.Job, len(ids))
	for i, id := range ids {
		jobs[i] = worker.Func(func(ctx context.Context) worker.Result {
			return d.downloadOne(ctx, id)
		})
	}

	bar := util.NewProgress(len(jobs), "fetching", d.progress)
	results, err := worker.Run(ctx, d.workers, jobs, worker.WithOnResult(func(worker.Result) {
		_ = bar.Add(1)
	}))
	_ = bar.Finish()

	for i, res := range results {
		r, ok := res.(*Result)
		if !ok {
			r = &Result{PMCID: ids[i], Outcome: OutcomeFailed, Err: context.Canceled}
		}
		summary.Results = append(summary.Results, r)
		switch r.Outcome {
		case OutcomeDownloaded:
			summary.Downloaded++
		case OutcomeSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	d.logger.Info("fetch finished",
		zap.Int("requested", summary.Requested),
		zap.Int("downloaded", summary.Downloaded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))

	if err != nil {
		return summary, fmt.Errorf("fetch interrupted: %w", err)
	}
	return summary, nil
}

func (d *Downloader) downloadOne(ctx context.Context, pmcid string) *Result {
	if !d.overwrite && d.store.Exists(pmcid) {
		return &Result{PMCID: pmcid, Outcome: OutcomeSkipped}
	}

	body, err := d.client.Fetch(ctx, pmcid)
	if err != nil {
		level := zap.WarnLevel
		if errors.Is(err, ErrNotAvailable) {
			level = zap.DebugLevel
		}
		d.logger.Log(level, "fetch failed", zap.String("pmcid", pmcid), zap.Error(err))
		return &Result{PMCID: pmcid, Outcome: OutcomeFailed, Err: err}
	}

	if err := d.store.Put(pmcid, body); err != nil {
		return &Result{PMCID: pmcid, Outcome: OutcomeFailed, Err: err}
	}
	return &Result{PMCID: pmcid, Outcome: OutcomeDownloaded, Bytes: len(body)}
}

// dedupe normalizes identifiers and drops blanks and repeats, keeping order
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = corpus.NormalizePMCID(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
