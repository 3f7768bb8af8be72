package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/pressgen/pressgen/config"
	"github.com/pressgen/pressgen/internal/agent"
	"github.com/pressgen/pressgen/internal/cache"
	"github.com/pressgen/pressgen/internal/search"
	"github.com/pressgen/pressgen/internal/store"
	"github.com/pressgen/pressgen/internal/telemetry"
	"github.com/pressgen/pressgen/provider"
	"github.com/pressgen/pressgen/tools/web_fetch"
	"github.com/pressgen/pressgen/tools/web_search"
)

// Run wires the full service and blocks serving HTTP. addr overrides
// cfg.Server.Address when non-empty.
func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	if cfg.General.Debug || strings.EqualFold(cfg.General.LogLevel, "debug") {
		e.Debug = true
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code, msg := statusForError(err)
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })

	ctx := context.Background()

	dsn := cfg.Storage.Postgres.DSN()
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		baseLogger.Printf("migrate: %v", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	metrics := telemetry.NewMetrics()
	if cfg.Telemetry.Enabled {
		path := cfg.Telemetry.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		e.GET(path, echo.WrapHandler(metrics.Handler()))
	}
	monitor := telemetry.NewMonitor(st, metrics, nil)

	mem := cache.NewMemoryTier(cfg.Cache.Memory.MaxEntries, cfg.Cache.Memory.TTL)
	var middle, durable cache.Tier
	var rdb *redis.Client
	if cfg.Cache.Redis.Enabled {
		rt, err := cache.NewRedisTier(ctx, cfg.Cache.Redis)
		if err != nil {
			return fmt.Errorf("redis tier: %w", err)
		}
		middle = rt
		rdb = rt.Client()
	}
	if cfg.Cache.Database.Enabled {
		durable = cache.NewDatabaseTier(st)
	}
	multi := cache.New(mem, middle, durable, nil)
	multi.SetRecorder(metrics)

	llm, err := provider.NewProvider(provider.OpenAI, cfg.LLM)
	if err != nil {
		return err
	}

	searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Search.Provider), cfg.Search.APIKey, cfg.Search.MaxResults, cfg.Search.Timeout)
	if err != nil {
		return err
	}
	fetcher, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(cfg.Fetch.Fetcher), web_fetch.Options{
		Timeout:  cfg.Fetch.Timeout,
		MaxChars: cfg.Fetch.MaxChars,
		Retries:  cfg.Fetch.Retries,
		Backoff:  cfg.Fetch.Backoff,
	})
	if err != nil {
		return err
	}

	researcher := agent.NewResearcher(searcher, fetcher, cfg.Fetch.MinChars, cfg.Fetch.MaxChars, nil)
	analyst := agent.NewAnalyst(llm, nil)
	strategist := agent.NewStrategist(llm, nil)

	var idx *search.Index
	if cfg.SearchIndex.Enabled {
		idx, err = search.NewIndex(cfg.SearchIndex.Path)
		if err != nil {
			return err
		}
		posts, err := st.ListPosts(ctx, 100, 0)
		if err != nil {
			baseLogger.Printf("index rebuild: %v", err)
		} else if err := idx.Rebuild(posts); err != nil {
			baseLogger.Printf("index rebuild: %v", err)
		}
	}

	orchOpts := agent.OrchestratorOptions{
		Researcher:  researcher,
		Analyst:     analyst,
		Strategist:  strategist,
		Cache:       multi,
		Posts:       st,
		Monitor:     monitor,
		OutputDir:   filepath.Join(cfg.General.DataDir, "posts"),
		ResearchTTL: cfg.Cache.ResearchTTL,
		AnalysisTTL: cfg.Cache.AnalysisTTL,
	}
	if idx != nil {
		orchOpts.Index = idx
	}
	orch := agent.NewOrchestrator(orchOpts)

	limiter := NewRateLimiter(cfg.Server.RateLimitMax, cfg.Server.RateLimitWindow)

	api := e.Group("/api")
	gh := &GenerateHandler{Orch: orch, Limiter: limiter, Metrics: metrics}
	gh.Register(api.Group("/generate"))
	ph := &PostsHandler{Store: st, Cache: multi, Index: idx, Metrics: metrics}
	ph.Register(api.Group("/posts"))
	ah := &AnalyticsHandler{Store: st}
	ah.Register(api.Group("/analytics"))
	ch := &CacheHandler{Cache: multi}
	ch.Register(api.Group("/cache"))

	sched := &Scheduler{Cache: multi, Rdb: rdb, Cron: cfg.Cache.CleanupCron, Stop: make(chan struct{})}
	sched.Start()
	defer sched.Shutdown()

	if addr == "" {
		addr = cfg.Server.Address
		if addr == "" {
			addr = ":9100"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// statusForError maps pipeline error kinds onto HTTP status codes and a
// client-safe message. Internal errors never leak detail to the client.
func statusForError(err error) (int, string) {
	if he, ok := err.(*echo.HTTPError); ok {
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, msg
	}
	switch agent.KindOf(err) {
	case agent.KindValidation:
		return http.StatusBadRequest, err.Error()
	case agent.KindRateLimit:
		return http.StatusTooManyRequests, err.Error()
	case agent.KindExternal:
		return http.StatusBadGateway, err.Error()
	case agent.KindNetwork:
		return http.StatusInternalServerError, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
