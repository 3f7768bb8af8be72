package duckduckgo

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/pressgen/pressgen/tools/web_search/models"
)

// rateLimit enforces a global limit of one query per second so the lite
// endpoint does not throttle us across goroutines.
var rateLimit struct {
	mu   sync.Mutex
	last time.Time
}

// Search scrapes DuckDuckGo's lite HTML interface. It needs no API key,
// which makes it the default provider.
type Search struct {
	client     *http.Client
	maxResults int
}

func New(maxResults int, timeout time.Duration) *Search {
	if maxResults <= 0 {
		maxResults = 10
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Search{client: &http.Client{Timeout: timeout}, maxResults: maxResults}
}

func (s *Search) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	if strings.TrimSpace(q) == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if k > s.maxResults {
		k = s.maxResults
	}

	rateLimit.mu.Lock()
	if wait := time.Until(rateLimit.last.Add(time.Second)); wait > 0 {
		rateLimit.mu.Unlock()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		rateLimit.mu.Lock()
	}
	rateLimit.last = time.Now()
	rateLimit.mu.Unlock()

	form := url.Values{}
	form.Set("q", q)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://lite.duckduckgo.com/lite/", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "pressgen-bot/1.0")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	results := parseLiteResults(string(body))
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

var (
	linkPattern    = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	linkPatternAlt = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)
	snippetPattern = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>([^<]+)</td>`)
)

// parseLiteResults extracts results from the lite HTML page. The lite page
// is a plain table of result links and snippet cells.
func parseLiteResults(page string) []models.Result {
	matches := linkPattern.FindAllStringSubmatch(page, -1)
	if len(matches) == 0 {
		matches = linkPatternAlt.FindAllStringSubmatch(page, -1)
	}
	snippets := snippetPattern.FindAllStringSubmatch(page, -1)

	var out []models.Result
	for i, m := range matches {
		if len(m) < 3 {
			continue
		}
		u := html.UnescapeString(strings.TrimSpace(m[1]))
		title := html.UnescapeString(strings.TrimSpace(m[2]))
		// Lite wraps redirects as //duckduckgo.com/l/?uddg=<encoded>
		if idx := strings.Index(u, "uddg="); idx >= 0 {
			enc := u[idx+len("uddg="):]
			if amp := strings.Index(enc, "&"); amp >= 0 {
				enc = enc[:amp]
			}
			if decoded, err := url.QueryUnescape(enc); err == nil {
				u = decoded
			}
		}
		if u == "" || title == "" {
			continue
		}
		r := models.Result{Title: title, URL: u}
		if i < len(snippets) && len(snippets[i]) > 1 {
			r.Snippet = html.UnescapeString(strings.TrimSpace(snippets[i][1]))
		}
		out = append(out, r)
	}
	return out
}
