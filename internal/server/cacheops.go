package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pressgen/pressgen/internal/cache"
)

// CacheHandler exposes cache stats and maintenance operations.
type CacheHandler struct {
	Cache *cache.MultiTierCache
}

func (h *CacheHandler) Register(g *echo.Group) {
	g.GET("", h.stats)
	g.DELETE("", h.invalidate)
	g.POST("/cleanup", h.cleanup)
}

func (h *CacheHandler) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Cache.GetStats())
}

// invalidate removes entries carrying any of the comma-separated tags from
// every tier.
func (h *CacheHandler) invalidate(c echo.Context) error {
	raw := c.QueryParam("tags")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "tags required")
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "tags required")
	}
	h.Cache.InvalidateByTags(c.Request().Context(), tags)
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "tags": tags})
}

func (h *CacheHandler) cleanup(c echo.Context) error {
	removed, err := h.Cache.Cleanup(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true, "removed": removed})
}
