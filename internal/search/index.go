package search

import (
	"strings"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/pressgen/pressgen/internal/store"
)

// Hit is one full-text search result over the post corpus.
type Hit struct {
	Slug    string  `json:"slug"`
	Title   string  `json:"title"`
	Topic   string  `json:"topic"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
	Rank    int     `json:"rank"`
}

type postDoc struct {
	Title   string `json:"title"`
	Topic   string `json:"topic"`
	Content string `json:"content"`
}

// Index is a full-text index over generated posts. It is rebuilt from the
// database on startup and kept current as posts are created.
type Index struct {
	bleve bleve.Index
	meta  map[string]store.PostRecord
	mu    sync.RWMutex
}

// NewIndex opens the index at path, creating it on first use. An empty path
// keeps the index in memory only.
func NewIndex(path string) (*Index, error) {
	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(bleve.NewIndexMapping())
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, bleve.NewIndexMapping())
		}
	}
	if err != nil {
		return nil, err
	}
	return &Index{bleve: idx, meta: make(map[string]store.PostRecord)}, nil
}

// IndexPost adds or replaces one post, keyed by slug.
func (i *Index) IndexPost(rec store.PostRecord) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.meta[rec.Slug] = rec
	return i.bleve.Index(rec.Slug, postDoc{
		Title:   rec.Title,
		Topic:   rec.Topic,
		Content: rec.Content,
	})
}

// Rebuild replaces the corpus with the given posts.
func (i *Index) Rebuild(posts []store.PostRecord) error {
	for _, p := range posts {
		if err := i.IndexPost(p); err != nil {
			return err
		}
	}
	return nil
}

// Search runs a query-string search and returns up to k ranked hits.
func (i *Index) Search(q string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, k, 0, false)
	res, err := i.bleve.Search(req)
	if err != nil {
		return nil, err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	var out []Hit
	for n, hit := range res.Hits {
		rec, ok := i.meta[hit.ID]
		if !ok {
			continue
		}
		out = append(out, Hit{
			Slug:    rec.Slug,
			Title:   rec.Title,
			Topic:   rec.Topic,
			Snippet: snippet(rec.Content),
			Score:   hit.Score,
			Rank:    n + 1,
		})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

// Len reports how many posts the index holds.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.meta)
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}
