package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/retracite/internal/model"
	"github.com/ppiankov/retracite/internal/store"
)

const articleXML = `<?xml version="1.0"?>
<pmc-articleset><article><front><article-meta/></front>
<body><sec><title>Introduction</title><p>Smith et al. later retracted this work. However, the findings were reused in later studies.</p></sec></body>
</article></pmc-articleset>`

const withheldXML = `<?xml version="1.0"?>
<pmc-articleset><article><front><article-meta/></front>
<!--The publisher of this article does not allow downloading of the full text in XML form.-->
</article></pmc-articleset>`

func noSleep(t *testing.T) {
	t.Helper()
	orig := sleepFunc
	sleepFunc = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { sleepFunc = orig })
}

func testConfig(baseURL string) model.FetchConfig {
	cfg := model.DefaultConfig().Fetch
	cfg.BaseURL = baseURL
	cfg.RequestsPerSecond = 0
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestArticleURL(t *testing.T) {
	cfg := testConfig("https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi")
	cfg.APIKey = "secret"
	cfg.Email = "ops@example.org"
	c := NewClient(cfg, nil)

	raw, err := c.ArticleURL("pmc12345")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "eutils.ncbi.nlm.nih.gov", u.Host)
	assert.Equal(t, "pmc", u.Query().Get("db"))
	assert.Equal(t, "12345", u.Query().Get("id"))
	assert.Equal(t, "retracite", u.Query().Get("tool"))
	assert.Equal(t, "ops@example.org", u.Query().Get("email"))
	assert.Equal(t, "secret", u.Query().Get("api_key"))

	_, err = c.ArticleURL("")
	assert.Error(t, err)
	_, err = c.ArticleURL("PMC12a")
	assert.Error(t, err)
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("id"))
		assert.Contains(t, r.Header.Get("User-Agent"), "retracite")
		w.Header().Set("Content-Type", "text/xml")
		_, _ = fmt.Fprint(w, articleXML)
	}))
	defer server.Close()

	body, err := NewClient(testConfig(server.URL), nil).Fetch(context.Background(), "PMC42")
	require.NoError(t, err)
	assert.Equal(t, articleXML, string(body))
}

func TestFetch_TransientThenSuccess(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, articleXML)
	}))
	defer server.Close()

	_, err := NewClient(testConfig(server.URL), nil).Fetch(context.Background(), "PMC1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestFetch_RetriesExhausted(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewClient(testConfig(server.URL), nil).Fetch(context.Background(), "PMC1")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestFetch_PermanentFailureNotRetried(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewClient(testConfig(server.URL), nil).Fetch(context.Background(), "PMC1")
	require.Error(t, err)
	assert.Equal(t, "unexpected status: 400 Bad Request", err.Error())
	assert.Equal(t, int32(1), attempts.Load())
}

func TestFetch_Withheld(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, withheldXML)
	}))
	defer server.Close()

	_, err := NewClient(testConfig(server.URL), nil).Fetch(context.Background(), "PMC1")
	assert.True(t, errors.Is(err, ErrNotAvailable))
}

func TestFetch_TooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, articleXML)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.MaxBodyBytes = 16
	_, err := NewClient(cfg, nil).Fetch(context.Background(), "PMC1")
	assert.True(t, errors.Is(err, ErrTooLarge))
}

func TestFetch_RobotsDisallowed(t *testing.T) {
	var fetched atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /\n")
			return
		}
		fetched.Add(1)
		_, _ = fmt.Fprint(w, articleXML)
	}))
	defer server.Close()

	cfg := testConfig(server.URL + "/efetch.fcgi")
	cfg.RespectRobots = true
	_, err := NewClient(cfg, nil).Fetch(context.Background(), "PMC1")
	assert.True(t, errors.Is(err, ErrDisallowed))
	assert.Zero(t, fetched.Load())
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, isRetryable(nil))
	assert.True(t, isRetryable(&StatusError{Code: 503, Status: "503 Service Unavailable"}))
	assert.True(t, isRetryable(&StatusError{Code: 500}))
	assert.True(t, isRetryable(&StatusError{Code: 429}))
	assert.False(t, isRetryable(&StatusError{Code: 404}))
	assert.False(t, isRetryable(&StatusError{Code: 403}))
	assert.True(t, isRetryable(errors.New("fetch: connection refused")))
	assert.False(t, isRetryable(errors.New("read body: unexpected EOF")))
	assert.False(t, isRetryable(ErrNotAvailable))
}

func TestDownloader_DownloadAll(t *testing.T) {
	noSleep(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "3":
			_, _ = fmt.Fprint(w, withheldXML)
		case "4":
			w.WriteHeader(http.StatusNotFound)
		default:
			_, _ = fmt.Fprint(w, articleXML)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	st := store.New(dir, ".nxml")
	require.NoError(t, st.Put("PMC2", []byte(articleXML)))

	d := NewDownloader(NewClient(testConfig(server.URL), nil), st, 2, false, false, nil)
	summary, err := d.DownloadAll(context.Background(), []string{"PMC1", "2", "PMC3", "pmc4", "PMC1", " "})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Requested)
	assert.Equal(t, 1, summary.Downloaded)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 2, summary.Failed)

	require.Len(t, summary.Results, 4)
	assert.Equal(t, "PMC1", summary.Results[0].PMCID)
	assert.Equal(t, OutcomeDownloaded, summary.Results[0].Outcome)
	assert.Equal(t, OutcomeSkipped, summary.Results[1].Outcome)

	failures := summary.Failures()
	require.Len(t, failures, 2)
	assert.True(t, errors.Is(failures[0].GetError(), ErrNotAvailable))
	assert.Equal(t, "PMC4", failures[1].PMCID)

	data, err := os.ReadFile(filepath.Join(dir, "PMC1.nxml"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "findings were reused"))
	assert.False(t, st.Exists("PMC3"), "withheld articles are not stored")
}

func TestDownloader_Overwrite(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = fmt.Fprint(w, articleXML)
	}))
	defer server.Close()

	st := store.New(t.TempDir(), ".nxml")
	require.NoError(t, st.Put("PMC7", []byte("<article><body><p>old</p></body></article>")))

	d := NewDownloader(NewClient(testConfig(server.URL), nil), st, 1, true, false, nil)
	summary, err := d.DownloadAll(context.Background(), []string{"PMC7"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Downloaded)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDownloader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := store.New(t.TempDir(), ".nxml")
	d := NewDownloader(NewClient(testConfig("http://127.0.0.1:1"), nil), st, 1, false, false, nil)
	summary, err := d.DownloadAll(ctx, []string{"PMC1", "PMC2"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 2, summary.Failed)
}
