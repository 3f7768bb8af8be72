package web_fetch

import (
	"context"
	"time"

	"github.com/pressgen/pressgen/tools/web_fetch/chromedp"
	"github.com/pressgen/pressgen/tools/web_fetch/httpfetch"
	"github.com/pressgen/pressgen/tools/web_fetch/models"
)

const (
	DefaultTimeout  = 15 * time.Second
	MaxCharsDefault = 15000
)

type WebFetcher interface {
	Exec(ctx context.Context, url string) (models.Result, error)
}

type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

// Options configures the fetcher transport. Retries/Backoff apply to the
// plain HTTP fetcher only; chromedp drives its own browser lifecycle.
type Options struct {
	Timeout  time.Duration
	MaxChars int
	Retries  int
	Backoff  time.Duration
}

func NewWebFetcher(fetcherType FetcherType, opts Options) (WebFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = MaxCharsDefault
	}

	switch fetcherType {
	case HTTPFetcherType:
		return httpfetch.New(opts.Timeout, opts.MaxChars, opts.Retries, opts.Backoff), nil
	case ChromedpFetcherType:
		return &chromedp.Fetch{Timeout: opts.Timeout, MaxChars: opts.MaxChars}, nil
	default:
		return nil, &Error{"unsupported fetcher type"}
	}
}
