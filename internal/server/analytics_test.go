package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/pressgen/pressgen/internal/store"
)

func TestPerformanceStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	h := &AnalyticsHandler{Store: &store.Store{DB: db}}
	h.Register(echo.New().Group("/api/analytics"))

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT operation, duration_ms, status, created_at FROM performance_metrics WHERE created_at >= \$1 AND operation = \$2`).
		WithArgs(sqlmock.AnyArg(), "research").
		WillReturnRows(sqlmock.NewRows([]string{"operation", "duration_ms", "status", "created_at"}).
			AddRow("research", int64(1000), "success", now).
			AddRow("research", int64(3000), "error", now))

	ctx, rec := getRequest("/api/analytics/performance?operation=research&days=30")
	if err := h.performance(ctx); err != nil {
		t.Fatalf("performance: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var stats store.PerformanceStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalOperations != 2 || stats.AvgDurationMS != 2000 || stats.SuccessRate != 0.5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPerformanceRejectsBadDays(t *testing.T) {
	h := &AnalyticsHandler{}
	h.Register(echo.New().Group("/api/analytics"))

	ctx, _ := getRequest("/api/analytics/performance?days=soon")
	err := h.performance(ctx)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
