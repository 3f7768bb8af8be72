package serper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pressgen/pressgen/tools/web_search/models"
)

type Search struct {
	ApiKey     string
	MaxResults int
	Client     *http.Client
}

func (s Search) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	if s.MaxResults > 0 && k > s.MaxResults {
		k = s.MaxResults
	}
	// https://serper.dev/ docs
	payload := map[string]any{"q": q, "num": k}
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, "POST", "https://google.serper.dev/search", strings.NewReader(string(body)))
	req.Header.Set("X-API-KEY", s.ApiKey)
	req.Header.Set("Content-Type", "application/json")
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper http %d", resp.StatusCode)
	}
	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var out []models.Result
	for i, it := range raw.Organic {
		if i >= k {
			break
		}
		if it.Link == "" || it.Title == "" {
			continue
		}
		out = append(out, models.Result{Title: it.Title, URL: it.Link, Snippet: it.Snippet})
	}
	return out, nil
}
