package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pressgen/pressgen/internal/helpers"
	web_fetch "github.com/pressgen/pressgen/tools/web_fetch"
	web_search "github.com/pressgen/pressgen/tools/web_search"
)

// Researcher assembles a deduplicated list of sources for a topic by running
// a set of derived queries through the search provider and pulling readable
// text from each hit.
type Researcher struct {
	searcher web_search.WebSearcher
	fetcher  web_fetch.WebFetcher
	minChars int
	maxChars int
	logger   *log.Logger
	now      func() time.Time
}

func NewResearcher(searcher web_search.WebSearcher, fetcher web_fetch.WebFetcher, minChars, maxChars int, logger *log.Logger) *Researcher {
	if minChars <= 0 {
		minChars = 500
	}
	if maxChars <= 0 {
		maxChars = 15000
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[RESEARCH] ", log.LstdFlags)
	}
	return &Researcher{
		searcher: searcher,
		fetcher:  fetcher,
		minChars: minChars,
		maxChars: maxChars,
		logger:   logger,
		now:      time.Now,
	}
}

const defaultMaxSources = 6

// Research gathers up to maxSources sources for the topic. A maxSources of
// zero or less means the caller did not ask for a limit and gets the default
// of 6; explicit values are clamped to [1,10]. Per-URL failures are skipped;
// fewer sources than asked for (including zero) is a valid outcome.
func (r *Researcher) Research(ctx context.Context, topic string, maxSources int) ([]Source, error) {
	limit := maxSources
	if limit <= 0 {
		limit = defaultMaxSources
	}
	if limit > 10 {
		limit = 10
	}

	queries := []string{
		fmt.Sprintf("%s overview", topic),
		fmt.Sprintf("%s latest news", topic),
		fmt.Sprintf("%s research analysis", topic),
		fmt.Sprintf("%s trends %d", topic, r.now().Year()),
	}

	seen := map[string]bool{}
	var sources []Source

	for _, q := range queries {
		if len(sources) >= limit {
			break
		}
		if err := r.collect(ctx, q, limit, seen, &sources); err != nil {
			return nil, err
		}
	}

	// Thin result sets get one more pass with the raw topic.
	want := 3
	if limit < want {
		want = limit
	}
	if len(sources) < want {
		if err := r.collect(ctx, topic, limit, seen, &sources); err != nil {
			return nil, err
		}
	}

	return sources, nil
}

func (r *Researcher) collect(ctx context.Context, query string, limit int, seen map[string]bool, sources *[]Source) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	results, err := r.searcher.Search(ctx, query, limit)
	if err != nil {
		r.logger.Printf("search failed for %q: %v", query, err)
		return nil
	}
	for _, res := range results {
		if len(*sources) >= limit {
			break
		}
		if res.URL == "" || res.Title == "" {
			continue
		}
		key := helpers.NormalizeURL(res.URL)
		if seen[key] {
			continue
		}
		seen[key] = true

		fetched, err := r.fetcher.Exec(ctx, res.URL)
		if err != nil {
			r.logger.Printf("fetch failed for %s: %v", res.URL, err)
			continue
		}
		body := helpers.CollapseWhitespace(fetched.Text)
		if len(body) < r.minChars {
			continue
		}
		if len(body) > r.maxChars {
			body = body[:r.maxChars]
		}
		*sources = append(*sources, Source{
			Title:   res.Title,
			URL:     res.URL,
			Snippet: res.Snippet,
			Content: body,
		})
	}
	return nil
}
