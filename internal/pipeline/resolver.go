package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ppiankov/retracite/internal/cache"
	"github.com/ppiankov/retracite/internal/logging"
	"github.com/ppiankov/retracite/internal/match"
	"github.com/ppiankov/retracite/internal/model"
	"github.com/ppiankov/retracite/internal/store"
	"github.com/ppiankov/retracite/internal/util"
	"github.com/ppiankov/retracite/internal/worker"
)

// Resolver finds the paragraph of origin for each citation sentence
type Resolver struct {
	matcher   *match.Matcher
	segmenter string
	store     *store.Store
	memo      *cache.MatchMemo
	workers   int
	progress  bool
	logger    *zap.Logger
}

// NewResolver creates a resolver from the match and resolve settings.
// A nil memo disables memoization.
func NewResolver(matchCfg model.MatchConfig, resolveCfg model.ResolveConfig, st *store.Store, memo *cache.MatchMemo, logger *zap.Logger) (*Resolver, error) {
	segment, err := match.SegmenterByName(matchCfg.Segmenter)
	if err != nil {
		return nil, err
	}
	matcher, err := match.NewMatcher(matchCfg.Threshold, match.WithSegmenter(segment))
	if err != nil {
		return nil, err
	}
	if memo == nil {
		memo = cache.NewMatchMemo(nil, 0)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	segmenter := matchCfg.Segmenter
	if segmenter == "" {
		segmenter = match.SegmenterPeriod
	}

	return &Resolver{
		matcher:   matcher,
		segmenter: segmenter,
		store:     st,
		memo:      memo,
		workers:   resolveCfg.Workers,
		progress:  resolveCfg.Progress,
		logger:    logger,
	}, nil
}

// Memo returns the resolution memo
func (r *Resolver) Memo() *cache.MatchMemo {
	return r.memo
}

// resolveJob resolves one row
type resolveJob struct {
	resolver *Resolver
	record   model.CitationRecord
}

func (j *resolveJob) Execute(ctx context.Context) worker.Result {
	return j.resolver.resolveOne(j.record)
}

// resolveResult wraps a resolved row for the worker pool
type resolveResult struct {
	model.ResolvedCitation
}

// GetError is nil: per-row failures are statuses, not errors
func (r *resolveResult) GetError() error {
	return nil
}

// Resolve resolves every record, returning rows in input order. Rows that
// cannot be resolved keep their fields with a non-matched status. Only
// cancellation is returned as an error, along with the rows finished so far.
func (r *Resolver) Resolve(ctx context.Context, records []model.CitationRecord) ([]model.ResolvedCitation, error) {
	jobs := make([]worker.Job, len(records))
	for i, rec := range records {
		jobs[i] = &resolveJob{resolver: r, record: rec}
	}

	bar := util.NewProgress(len(jobs), "resolving", r.progress)
	results, err := worker.Run(ctx, r.workers, jobs, worker.WithOnResult(func(worker.Result) {
		_ = bar.Add(1)
	}))
	_ = bar.Finish()

	out := make([]model.ResolvedCitation, 0, len(results))
	for _, res := range results {
		if rr, ok := res.(*resolveResult); ok {
			out = append(out, rr.ResolvedCitation)
		}
	}
	return out, err
}

// resolveOne classifies a single row
func (r *Resolver) resolveOne(rec model.CitationRecord) *resolveResult {
	resolved := model.ResolvedCitation{Record: rec, Match: model.NoMatch(0, 0)}
	fail := func(status model.ResolveStatus, err error) *resolveResult {
		resolved.Status = status
		resolved.Error = err.Error()
		return &resolveResult{resolved}
	}

	version := r.store.Version(rec.CitingPMCID)
	key := cache.MatchKey(rec.CitingPMCID, version, r.matcher.Threshold(), r.segmenter, rec.Sentence)
	if hit, ok := r.memo.Get(key); ok {
		resolved.Status = hit.Status
		resolved.Match = hit.Match
		return &resolveResult{resolved}
	}

	doc, err := r.store.Open(rec.CitingPMCID)
	if err != nil {
		return fail(model.StatusInvalid, err)
	}

	result, err := r.matcher.Match(doc, rec.Sentence)
	switch {
	case errors.Is(err, match.ErrEmptySentence):
		return fail(model.StatusInvalid, err)
	case errors.Is(err, match.ErrMalformedDocument):
		r.logger.Debug("unparsable document",
			zap.String("pmcid", rec.CitingPMCID),
			zap.Error(err))
		return fail(model.StatusParseError, err)
	case err != nil:
		// ErrDocumentNotFound and unreadable files alike; the run report
		// carries the counts and examples
		r.logger.Debug("document unavailable",
			zap.String("pmcid", rec.CitingPMCID),
			zap.Error(err))
		return fail(model.StatusNotFound, err)
	}

	resolved.Match = result
	resolved.Status = model.StatusNoMatch
	if result.Found {
		resolved.Status = model.StatusMatched
	}

	if err := r.memo.Put(key, cache.Resolution{Status: resolved.Status, Match: resolved.Match}); err != nil {
		r.logger.Debug("memo write failed", zap.Error(err))
	}
	return &resolveResult{resolved}
}
