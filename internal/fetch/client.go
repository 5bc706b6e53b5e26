// Package fetch downloads JATS full text from PubMed Central E-utilities
// into the document store.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/retracite/internal/corpus"
	"github.com/ppiankov/retracite/internal/extract"
	"github.com/ppiankov/retracite/internal/model"
	"github.com/ppiankov/retracite/internal/util"
	"github.com/ppiankov/retracite/internal/worker"
)

var (
	// ErrNotAvailable means PMC answered but has no full-text body for the
	// article, usually because the publisher withholds XML
	ErrNotAvailable = errors.New("full text not available")
	// ErrDisallowed means robots.txt forbids the request
	ErrDisallowed = errors.New("disallowed by robots.txt")
	// ErrTooLarge means the response exceeded the configured size limit
	ErrTooLarge = errors.New("response too large")
)

// StatusError is a non-2xx HTTP response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

// Retryable reports whether the server may answer differently later
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// sleepFunc waits between retries; tests replace it
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Client fetches single articles
type Client struct {
	httpClient *http.Client
	cfg        model.FetchConfig
	limiter    *worker.Limiter
	robots     *util.RobotsChecker
	logger     *zap.Logger
}

// NewClient creates a client from cfg. With an API key E-utilities allows
// 10 requests per second instead of 3; the configured rate is used as given.
func NewClient(cfg model.FetchConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}

	httpClient := util.NewHTTPClient(cfg.Timeout, cfg.HTTPProxy, cfg.HTTPSProxy)

	c := &Client{
		httpClient: httpClient,
		cfg:        cfg,
		limiter:    worker.NewLimiter(cfg.RequestsPerSecond, cfg.BurstSize),
		logger:     logger,
	}
	if cfg.RespectRobots {
		c.robots = util.NewRobotsChecker(httpClient, cfg.UserAgent)
	}
	return c
}

// ArticleURL returns the efetch URL for a PMCID
func (c *Client) ArticleURL(pmcid string) (string, error) {
	id := strings.TrimPrefix(corpus.NormalizePMCID(pmcid), "PMC")
	if id == "" {
		return "", fmt.Errorf("empty PMCID")
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("PMCID %q is not numeric", pmcid)
		}
	}

	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}

	q := base.Query()
	q.Set("db", "pmc")
	q.Set("id", id)
	if c.cfg.Tool != "" {
		q.Set("tool", c.cfg.Tool)
	}
	if c.cfg.Email != "" {
		q.Set("email", c.cfg.Email)
	}
	if c.cfg.APIKey != "" {
		q.Set("api_key", c.cfg.APIKey)
	}
	base.RawQuery = q.Encode()

	return base.String(), nil
}

// Fetch downloads the article for pmcid, retrying transient failures, and
// checks that the result carries a parsable body
func (c *Client) Fetch(ctx context.Context, pmcid string) ([]byte, error) {
	target, err := c.ArticleURL(pmcid)
	if err != nil {
		return nil, err
	}

	if c.robots != nil {
		allowed, delay, err := c.robots.CanFetch(ctx, target)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, ErrDisallowed
		}
		if delay > 0 {
			if err := sleepFunc(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	var body []byte
	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx, target); err != nil {
			return nil, err
		}

		body, err = c.get(ctx, target)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt >= c.cfg.MaxRetries || !isRetryable(err) {
			return nil, err
		}

		backoff := time.Duration(attempt) * time.Second
		c.logger.Debug("retrying fetch",
			zap.String("pmcid", pmcid),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		if err := sleepFunc(ctx, backoff); err != nil {
			return nil, err
		}
	}

	if err := checkArticle(body); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/xml,text/xml;q=0.9,*/*;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	limit := c.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = 20_000_000
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return body, nil
}

// checkArticle rejects responses the matcher could not use
func checkArticle(body []byte) error {
	_, err := extract.Paragraphs(bytes.NewReader(body))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, extract.ErrNoBody):
		return ErrNotAvailable
	default:
		return err
	}
}

// isRetryable reports whether a fetch error is worth another attempt
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return strings.HasPrefix(err.Error(), "fetch: ")
}
