package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const articleHTML = `<html><head><title>Edge AI</title></head><body><article>
<h1>Edge AI</h1>
<p>Edge AI moves inference close to the sensor so decisions happen without a round trip to the cloud. This cuts latency and keeps raw data on the device.</p>
<p>Typical deployments pair a small accelerator with a quantized model. Power budgets dominate the design, so every milliwatt spent on compute must earn its keep.</p>
</article></body></html>`

func TestExecRetriesOnServerError(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	f := New(5*time.Second, 15000, 3, time.Millisecond)
	res, err := f.Exec(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if res.Status != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Status)
	}
	if strings.Contains(res.Text, "\n") {
		t.Fatalf("text should have collapsed whitespace: %q", res.Text)
	}
}

func TestExecDoesNotRetryClientError(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(5*time.Second, 15000, 3, time.Millisecond)
	if _, err := f.Exec(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404")
	}
	if attempts != 1 {
		t.Fatalf("404 must not be retried, got %d attempts", attempts)
	}
}

func TestExecRetriesOnTooManyRequests(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	f := New(5*time.Second, 15000, 3, time.Millisecond)
	if _, err := f.Exec(context.Background(), srv.URL); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected retry after 429, got %d attempts", attempts)
	}
}

func TestExecTruncatesLongContent(t *testing.T) {
	long := strings.Repeat("<p>A paragraph of filler content for the truncation check, long enough to matter.</p>", 400)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><head><title>Long</title></head><body><article>" + long + "</article></body></html>"))
	}))
	defer srv.Close()

	f := New(5*time.Second, 1000, 1, time.Millisecond)
	res, err := f.Exec(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if len(res.Text) > 1000 {
		t.Fatalf("text not truncated: %d chars", len(res.Text))
	}
}
