package web_search

import (
	"context"
	"net/http"
	"time"

	"github.com/pressgen/pressgen/tools/web_search/brave"
	"github.com/pressgen/pressgen/tools/web_search/duckduckgo"
	"github.com/pressgen/pressgen/tools/web_search/models"
	"github.com/pressgen/pressgen/tools/web_search/serper"
)

type WebSearcher interface {
	Search(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	SerperProvider     Provider = "serper"
	BraveProvider      Provider = "brave"
	DuckDuckGoProvider Provider = "duckduckgo"
)

type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

var ErrUnsupportedProvider = &Error{"unsupported provider"}

// NewWebSearcher builds the configured search client. maxResults caps how
// many results a single query may return and timeout bounds each HTTP call;
// zero values fall back to 10 results and 15 seconds.
func NewWebSearcher(provider Provider, apiKey string, maxResults int, timeout time.Duration) (WebSearcher, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	switch provider {
	case SerperProvider:
		return serper.Search{ApiKey: apiKey, MaxResults: maxResults, Client: client}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey, MaxResults: maxResults, Client: client}, nil
	case DuckDuckGoProvider:
		return duckduckgo.New(maxResults, timeout), nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
