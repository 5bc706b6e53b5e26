package worker

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(3, 2)
	if limiter.defaultBurst != 2 {
		t.Errorf("expected burst 2, got %d", limiter.defaultBurst)
	}
	if limiter.defaultRate != 3 {
		t.Errorf("expected rate 3, got %v", limiter.defaultRate)
	}

	l2 := NewLimiter(3, 0)
	if l2.defaultBurst != 1 {
		t.Errorf("expected default burst 1, got %d", l2.defaultBurst)
	}

	l3 := NewLimiter(0, 1)
	if l3.defaultRate != rate.Inf {
		t.Errorf("expected unlimited rate for 0 rps, got %v", l3.defaultRate)
	}
}

func TestLimiter_PerHost(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ncbi := "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi?id=1"

	if err := limiter.Wait(context.Background(), ncbi); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	// Burst of one is spent for this host
	if limiter.Allow(ncbi) {
		t.Error("expected second request to the same host to be throttled")
	}

	if !limiter.Allow("https://www.ncbi.nlm.nih.gov/robots.txt") {
		t.Error("expected another host to have its own budget")
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	target := "http://example.com/a"
	if !limiter.Allow(target) {
		t.Fatal("first request should pass")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, target); err == nil {
		t.Error("expected wait to fail when the context ends before a token is available")
	}
}

func TestLimiter_SetHostRate(t *testing.T) {
	limiter := NewLimiter(100, 10)
	limiter.SetHostRate("slow.example", 0.1, 1)

	if !limiter.Allow("http://slow.example/x") {
		t.Error("first request should pass")
	}
	if limiter.Allow("http://slow.example/y") {
		t.Error("second request should be throttled")
	}
	if !limiter.Allow("http://fast.example") {
		t.Error("other host should pass")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !limiter.Allow("http://example.com") {
			t.Fatalf("request %d throttled with rate limiting disabled", i)
		}
	}
}

func TestExtractHost(t *testing.T) {
	host, err := extractHost("http://127.0.0.1:8080/efetch")
	if err != nil {
		t.Fatalf("extractHost failed: %v", err)
	}
	if host != "127.0.0.1:8080" {
		t.Errorf("expected 127.0.0.1:8080, got %s", host)
	}

	if _, err := extractHost("::invalid"); err == nil {
		t.Error("expected error for invalid URL")
	}
	if _, err := extractHost("/relative/path"); err == nil {
		t.Error("expected error for URL without host")
	}
}
