package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pressgen/pressgen/internal/cache"
	"github.com/pressgen/pressgen/internal/search"
	"github.com/pressgen/pressgen/internal/store"
	"github.com/pressgen/pressgen/internal/telemetry"
)

// PostsHandler serves stored posts, search and per-post analytics.
type PostsHandler struct {
	Store   *store.Store
	Cache   *cache.MultiTierCache
	Index   *search.Index
	Metrics *telemetry.Metrics
	Logger  *log.Logger
}

func (h *PostsHandler) Register(g *echo.Group) {
	if h.Logger == nil {
		h.Logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}
	g.GET("", h.list)
	g.GET("/search", h.search)
	g.GET("/:slug", h.get)
	g.POST("/:slug/view", h.trackView)
	g.GET("/:slug/analytics", h.analytics)
}

func (h *PostsHandler) list(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 {
		limit = 20
	}

	ctx := c.Request().Context()
	key := cache.Keys.PostList(page, limit)
	var posts []store.PostRecord
	if h.Cache != nil {
		if ok, err := h.Cache.Get(ctx, key, &posts); err == nil && ok {
			return c.JSON(http.StatusOK, posts)
		}
	}

	posts, err := h.Store.ListPosts(ctx, limit, (page-1)*limit)
	if err != nil {
		return err
	}
	if h.Cache != nil {
		if err := h.Cache.Set(ctx, key, posts, cache.Options{TTL: 5 * time.Minute, Tags: []string{cache.TagPosts}}); err != nil {
			h.Logger.Printf("post list cache write failed: %v", err)
		}
	}
	return c.JSON(http.StatusOK, posts)
}

func (h *PostsHandler) get(c echo.Context) error {
	slug := c.Param("slug")
	ctx := c.Request().Context()
	key := cache.Keys.Post(slug)

	var post store.PostRecord
	if h.Cache != nil {
		if ok, err := h.Cache.Get(ctx, key, &post); err == nil && ok {
			return c.JSON(http.StatusOK, post)
		}
	}

	post, err := h.Store.GetPostBySlug(ctx, slug)
	if errors.Is(err, store.ErrPostNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "post not found")
	}
	if err != nil {
		return err
	}
	if h.Cache != nil {
		if err := h.Cache.Set(ctx, key, post, cache.Options{TTL: time.Hour, Tags: []string{cache.TagPost, cache.TagPosts}}); err != nil {
			h.Logger.Printf("post cache write failed: %v", err)
		}
	}
	return c.JSON(http.StatusOK, post)
}

func (h *PostsHandler) search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	if h.Index == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search index disabled")
	}
	k, _ := strconv.Atoi(c.QueryParam("limit"))
	if k < 1 || k > 50 {
		k = 10
	}
	hits, err := h.Index.Search(q, k)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"query": q, "hits": hits})
}

// trackView records one page view. Tracking failures are logged, never
// surfaced, so a broken analytics table cannot break post pages.
func (h *PostsHandler) trackView(c echo.Context) error {
	slug := c.Param("slug")
	ctx := c.Request().Context()

	post, err := h.Store.GetPostBySlug(ctx, slug)
	if errors.Is(err, store.ErrPostNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "post not found")
	}
	if err != nil {
		return err
	}

	req := c.Request()
	if err := h.Store.TrackView(ctx, post.ID, req.Referer(), req.UserAgent()); err != nil {
		h.Logger.Printf("view tracking failed for %s: %v", slug, err)
	} else if h.Metrics != nil {
		h.Metrics.PostViews.Inc()
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (h *PostsHandler) analytics(c echo.Context) error {
	slug := c.Param("slug")
	ctx := c.Request().Context()

	post, err := h.Store.GetPostBySlug(ctx, slug)
	if errors.Is(err, store.ErrPostNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "post not found")
	}
	if err != nil {
		return err
	}

	total, recent, err := h.Store.PostAnalytics(ctx, post.ID, 20)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"slug":        slug,
		"viewCount":   total,
		"recentViews": recent,
	})
}
