package httpfetch

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"context"

	readability "github.com/go-shiori/go-readability"
	"github.com/pressgen/pressgen/tools/web_fetch/models"
)

const userAgent = "pressgen-bot/1.0"

// Fetch retrieves a page over plain HTTP and extracts readable article text.
type Fetch struct {
	client   *http.Client
	maxChars int
	retries  int
	backoff  time.Duration
}

func New(timeout time.Duration, maxChars, retries int, backoff time.Duration) *Fetch {
	if retries <= 0 {
		retries = 3
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	return &Fetch{
		client:   &http.Client{Timeout: timeout},
		maxChars: maxChars,
		retries:  retries,
		backoff:  backoff,
	}
}

type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string { return fmt.Sprintf("http %d", e.status) }

// retryable reports whether a fetch failure is worth another attempt:
// transport errors, 5xx responses and 429 qualify; other 4xx do not.
func retryable(err error) bool {
	var se *httpStatusError
	if errors.As(err, &se) {
		return se.status >= 500 || se.status == http.StatusTooManyRequests
	}
	return true
}

func (f *Fetch) Exec(ctx context.Context, rawURL string) (models.Result, error) {
	if strings.TrimSpace(rawURL) == "" {
		return models.Result{}, errors.New("invalid url")
	}
	t0 := time.Now()

	html, status, err := f.fetchHTML(ctx, rawURL)
	if err != nil {
		return models.Result{}, err
	}

	// Extraction is best-effort: a page readability cannot parse yields an
	// empty text, not an error.
	title, text := extract(html, rawURL)
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > f.maxChars {
		text = text[:f.maxChars]
	}

	return models.Result{
		URL:      rawURL,
		Title:    title,
		Text:     text,
		Status:   status,
		RenderMS: int(time.Since(t0) / time.Millisecond),
	}, nil
}

func (f *Fetch) fetchHTML(ctx context.Context, rawURL string) (string, int, error) {
	var lastErr error
	for attempt := 0; attempt < f.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(f.backoff * time.Duration(1<<(attempt-1))):
			case <-ctx.Done():
				return "", 0, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return "", 0, err
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			lastErr = &httpStatusError{status: resp.StatusCode}
			if !retryable(lastErr) {
				return "", resp.StatusCode, lastErr
			}
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return string(body), resp.StatusCode, nil
	}
	return "", 0, lastErr
}

func extract(html, rawURL string) (title, text string) {
	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(rawURL))
	if err != nil {
		return "", ""
	}
	return strings.TrimSpace(article.Title), strings.TrimSpace(article.TextContent)
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
