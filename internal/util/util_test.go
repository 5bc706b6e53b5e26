package util

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func TestNormalizeUserAgent(t *testing.T) {
	tests := map[string]string{
		"retracite/0.1 (+https://example.org)": "retracite",
		"curl":                                 "curl",
		"":                                     "",
	}
	for in, want := range tests {
		if got := NormalizeUserAgent(in); got != want {
			t.Errorf("NormalizeUserAgent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRobotsChecker(t *testing.T) {
	var robotsHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits.Add(1)
			_, _ = fmt.Fprint(w, "User-agent: retracite\nDisallow: /private\nCrawl-delay: 2\n\nUser-agent: *\nDisallow: /\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewRobotsChecker(server.Client(), "retracite/0.1")
	ctx := context.Background()

	allowed, delay, err := checker.CanFetch(ctx, server.URL+"/entrez/efetch")
	if err != nil {
		t.Fatalf("CanFetch failed: %v", err)
	}
	if !allowed {
		t.Error("expected /entrez to be allowed for retracite")
	}
	if delay != 2*time.Second {
		t.Errorf("expected 2s crawl delay, got %v", delay)
	}

	allowed, _, err = checker.CanFetch(ctx, server.URL+"/private/doc")
	if err != nil {
		t.Fatalf("CanFetch failed: %v", err)
	}
	if allowed {
		t.Error("expected /private to be disallowed")
	}

	if robotsHits.Load() != 1 {
		t.Errorf("expected robots.txt fetched once, got %d", robotsHits.Load())
	}

	checker.Clear()
	_, _, _ = checker.CanFetch(ctx, server.URL+"/x")
	if robotsHits.Load() != 2 {
		t.Errorf("expected refetch after Clear, got %d fetches", robotsHits.Load())
	}
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	checker := NewRobotsChecker(server.Client(), "retracite")
	allowed, _, err := checker.CanFetch(context.Background(), server.URL+"/anything")
	if err != nil {
		t.Fatalf("CanFetch failed: %v", err)
	}
	if !allowed {
		t.Error("expected a missing robots.txt to allow everything")
	}
}

func TestRobotsChecker_BadURL(t *testing.T) {
	checker := NewRobotsChecker(nil, "retracite")
	if _, _, err := checker.CanFetch(context.Background(), "::bad"); err == nil {
		t.Error("expected error for unparsable URL")
	}
}

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy:3128", "http://secure-proxy:3128")

	req := &http.Request{URL: &url.URL{Scheme: "https", Host: "eutils.ncbi.nlm.nih.gov"}}
	got, err := proxy(req)
	if err != nil {
		t.Fatal(err)
	}
	if got.Host != "secure-proxy:3128" {
		t.Errorf("expected https proxy, got %v", got)
	}

	req.URL.Scheme = "http"
	got, err = proxy(req)
	if err != nil {
		t.Fatal(err)
	}
	if got.Host != "proxy:3128" {
		t.Errorf("expected http proxy, got %v", got)
	}
}

func TestNewHTTPClient_RedirectCap(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, "/again", http.StatusFound)
	}))
	defer server.Close()

	client := NewHTTPClient(5*time.Second, "", "")
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Errorf("expected the last redirect response, got %d", resp.StatusCode)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", hits.Load())
	}
}

func TestProgress(t *testing.T) {
	silent := NewProgress(10, "resolving", false)
	if err := silent.Add(3); err != nil {
		t.Errorf("silent Add failed: %v", err)
	}
	if err := silent.Finish(); err != nil {
		t.Errorf("silent Finish failed: %v", err)
	}

	var buf bytes.Buffer
	bar := newProgress(&buf, 2, "fetching", true)
	if err := bar.Add(2); err != nil {
		t.Errorf("Add failed: %v", err)
	}
	if err := bar.Finish(); err != nil {
		t.Errorf("Finish failed: %v", err)
	}
	if _, ok := bar.(nopProgress); ok {
		t.Error("expected a real progress bar when visible")
	}
}
