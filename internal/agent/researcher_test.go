package agent

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	fetchmodels "github.com/pressgen/pressgen/tools/web_fetch/models"
	searchmodels "github.com/pressgen/pressgen/tools/web_search/models"
)

type fakeSearcher struct {
	results map[string][]searchmodels.Result
	calls   []string
}

func (f *fakeSearcher) Search(ctx context.Context, q string, k int) ([]searchmodels.Result, error) {
	f.calls = append(f.calls, q)
	return f.results[q], nil
}

type fakeFetcher struct {
	pages map[string]string
	fails map[string]bool
	calls int
}

func (f *fakeFetcher) Exec(ctx context.Context, url string) (fetchmodels.Result, error) {
	f.calls++
	if f.fails[url] {
		return fetchmodels.Result{}, errors.New("unreachable")
	}
	return fetchmodels.Result{URL: url, Text: f.pages[url]}, nil
}

func longText(n int) string {
	return strings.Repeat("Edge computing moves inference close to the device. ", n)
}

func TestResearchDedupCapAndFilters(t *testing.T) {
	body := longText(20)
	searcher := &fakeSearcher{results: map[string][]searchmodels.Result{
		"edge ai overview": {
			{Title: "A", URL: "https://a.example/post?utm=1"},
			{Title: "A again", URL: "https://a.example/post#section"},
			{Title: "Thin", URL: "https://thin.example/page"},
			{Title: "Broken", URL: "https://broken.example/page"},
			{Title: "B", URL: "https://b.example/post"},
		},
		"edge ai latest news": {
			{Title: "C", URL: "https://c.example/post"},
			{Title: "D", URL: "https://d.example/post"},
		},
	}}
	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://a.example/post?utm=1": body,
			"https://thin.example/page":    "too short",
			"https://b.example/post":       body,
			"https://c.example/post":       body,
			"https://d.example/post":       body,
		},
		fails: map[string]bool{"https://broken.example/page": true},
	}
	r := NewResearcher(searcher, fetcher, 500, 15000, log.New(io.Discard, "", 0))

	sources, err := r.Research(context.Background(), "edge ai", 3)
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
	seen := map[string]bool{}
	for _, s := range sources {
		key := strings.SplitN(s.URL, "?", 2)[0]
		key = strings.SplitN(key, "#", 2)[0]
		if seen[key] {
			t.Fatalf("duplicate normalized url: %s", s.URL)
		}
		seen[key] = true
		if len(s.Content) < 500 {
			t.Fatalf("thin source accepted: %s (%d chars)", s.URL, len(s.Content))
		}
		if len(s.Content) > 15000 {
			t.Fatalf("content over cap: %d", len(s.Content))
		}
	}
}

func TestResearchFallbackQuery(t *testing.T) {
	body := longText(20)
	searcher := &fakeSearcher{results: map[string][]searchmodels.Result{
		"edge ai": {
			{Title: "Fallback", URL: "https://fb.example/post"},
		},
	}}
	fetcher := &fakeFetcher{pages: map[string]string{"https://fb.example/post": body}}
	r := NewResearcher(searcher, fetcher, 500, 15000, log.New(io.Discard, "", 0))

	sources, err := r.Research(context.Background(), "edge ai", 5)
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if len(sources) != 1 || sources[0].Title != "Fallback" {
		t.Fatalf("expected the fallback source, got %+v", sources)
	}
	if got := searcher.calls[len(searcher.calls)-1]; got != "edge ai" {
		t.Fatalf("expected raw topic as last query, got %q", got)
	}
}

func TestResearchEmptyResultIsNotAnError(t *testing.T) {
	r := NewResearcher(&fakeSearcher{}, &fakeFetcher{}, 500, 15000, log.New(io.Discard, "", 0))
	sources, err := r.Research(context.Background(), "nothing out there", 3)
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if len(sources) != 0 {
		t.Fatalf("expected no sources, got %d", len(sources))
	}
}

func TestResearchDefaultsToSixSources(t *testing.T) {
	body := longText(20)
	results := make([]searchmodels.Result, 0, 9)
	pages := map[string]string{}
	for i := 0; i < 9; i++ {
		url := "https://site.example/" + strings.Repeat("x", i+1)
		results = append(results, searchmodels.Result{Title: "S", URL: url})
		pages[url] = body
	}
	searcher := &fakeSearcher{results: map[string][]searchmodels.Result{"big topic overview": results}}
	fetcher := &fakeFetcher{pages: pages}
	r := NewResearcher(searcher, fetcher, 500, 15000, log.New(io.Discard, "", 0))

	// A caller that does not pick a limit gets six sources, not one.
	sources, err := r.Research(context.Background(), "big topic", 0)
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if len(sources) != 6 {
		t.Fatalf("expected the default of 6 sources, got %d", len(sources))
	}
}

func TestResearchClampsMaxSources(t *testing.T) {
	body := longText(20)
	results := make([]searchmodels.Result, 0, 12)
	pages := map[string]string{}
	for i := 0; i < 12; i++ {
		url := "https://site.example/" + strings.Repeat("x", i+1)
		results = append(results, searchmodels.Result{Title: "S", URL: url})
		pages[url] = body
	}
	searcher := &fakeSearcher{results: map[string][]searchmodels.Result{"big topic overview": results}}
	fetcher := &fakeFetcher{pages: pages}
	r := NewResearcher(searcher, fetcher, 500, 15000, log.New(io.Discard, "", 0))

	sources, err := r.Research(context.Background(), "big topic", 50)
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if len(sources) > 10 {
		t.Fatalf("cap not enforced: %d", len(sources))
	}
}
