package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pressgen/pressgen/internal/store"
)

// AnalyticsHandler serves aggregate performance metrics.
type AnalyticsHandler struct {
	Store *store.Store
}

func (h *AnalyticsHandler) Register(g *echo.Group) {
	g.GET("/performance", h.performance)
}

// performance returns metric aggregates, optionally filtered by operation
// and a lookback window in days (default 7, max 90).
func (h *AnalyticsHandler) performance(c echo.Context) error {
	operation := c.QueryParam("operation")
	days := 7
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be numeric")
		}
		days = n
	}
	if days < 1 || days > 90 {
		days = 7
	}

	since := time.Now().AddDate(0, 0, -days)
	stats, err := h.Store.MetricStats(c.Request().Context(), operation, since)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}
