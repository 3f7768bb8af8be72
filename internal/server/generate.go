package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pressgen/pressgen/internal/agent"
	"github.com/pressgen/pressgen/internal/telemetry"
)

// Generator runs the generation pipeline. *agent.Orchestrator satisfies it.
type Generator interface {
	GeneratePost(ctx context.Context, in agent.GenerateInput) (agent.GenerateResult, error)
	GeneratePostStream(ctx context.Context, in agent.GenerateInput, progress agent.ProgressFunc) (agent.GenerateResult, error)
}

// GenerateHandler serves the generation endpoints.
type GenerateHandler struct {
	Orch    Generator
	Limiter *RateLimiter
	Metrics *telemetry.Metrics
}

func (h *GenerateHandler) Register(g *echo.Group) {
	g.POST("", h.generate)
	g.POST("/stream", h.stream)
}

type generateResponse struct {
	OK             bool     `json:"ok"`
	Slug           string   `json:"slug"`
	Title          string   `json:"title"`
	FilePath       string   `json:"filePath,omitempty"`
	WordCount      int      `json:"wordCount"`
	ReadingTime    int      `json:"readingTime"`
	GenerationTime int64    `json:"generationTime"`
	Mode           string   `json:"mode"`
	CacheHits      []string `json:"cacheHits"`
	CacheMisses    []string `json:"cacheMisses"`
}

func (h *GenerateHandler) generate(c echo.Context) error {
	in, err := h.decode(c)
	if err != nil {
		h.count("/api/generate", http.StatusBadRequest)
		return err
	}
	if !h.Limiter.Allow(c.RealIP()) {
		h.count("/api/generate", http.StatusTooManyRequests)
		return agent.NewRateLimitError("too many generation requests, retry later")
	}

	res, err := h.Orch.GeneratePost(c.Request().Context(), in)
	if err != nil {
		code, _ := statusForError(err)
		h.count("/api/generate", code)
		return err
	}
	h.count("/api/generate", http.StatusOK)
	return c.JSON(http.StatusOK, generateResponse{
		OK:             true,
		Slug:           res.Post.Slug,
		Title:          res.Post.Title,
		FilePath:       res.FilePath,
		WordCount:      res.WordCount,
		ReadingTime:    res.ReadingTime,
		GenerationTime: res.Metadata.GenerationTime.Milliseconds(),
		Mode:           string(res.Post.Mode),
		CacheHits:      res.Metadata.CacheHits,
		CacheMisses:    res.Metadata.CacheMisses,
	})
}

// stream runs the pipeline while emitting one SSE event per phase, then a
// terminal done or error event. Events are flushed as they happen.
func (h *GenerateHandler) stream(c echo.Context) error {
	in, err := h.decode(c)
	if err != nil {
		h.count("/api/generate/stream", http.StatusBadRequest)
		return err
	}
	if !h.Limiter.Allow(c.RealIP()) {
		h.count("/api/generate/stream", http.StatusTooManyRequests)
		return agent.NewRateLimitError("too many generation requests, retry later")
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	send := func(event string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(resp, "event: %s\n", event)
		fmt.Fprintf(resp, "data: %s\n\n", data)
		flusher.Flush()
	}

	res, err := h.Orch.GeneratePostStream(c.Request().Context(), in, func(phase, message string) {
		send(phase, map[string]string{"message": message})
	})
	if err != nil {
		code, msg := statusForError(err)
		h.count("/api/generate/stream", code)
		send("error", map[string]string{"message": msg})
		return nil
	}
	h.count("/api/generate/stream", http.StatusOK)
	send("done", map[string]string{"slug": res.Post.Slug, "title": res.Post.Title})
	return nil
}

func (h *GenerateHandler) decode(c echo.Context) (agent.GenerateInput, error) {
	var in agent.GenerateInput
	if err := c.Bind(&in); err != nil {
		return in, agent.NewValidationError("body", "invalid JSON body")
	}
	in.Topic = strings.TrimSpace(in.Topic)
	if err := validateGenerateInput(in); err != nil {
		return in, err
	}
	return in, nil
}

// validateGenerateInput enforces the request limits: topic 3-200 characters,
// 1-10 target questions of 5-500 characters each, optional maxSources 3-10.
func validateGenerateInput(in agent.GenerateInput) error {
	if n := len(in.Topic); n < 3 || n > 200 {
		return agent.NewValidationError("topic", "must be between 3 and 200 characters")
	}
	if n := len(in.TargetQuestions); n < 1 || n > 10 {
		return agent.NewValidationError("targetQuestions", "must contain between 1 and 10 questions")
	}
	for i, q := range in.TargetQuestions {
		if n := len(strings.TrimSpace(q)); n < 5 || n > 500 {
			return agent.NewValidationError("targetQuestions["+strconv.Itoa(i)+"]", "each question must be between 5 and 500 characters")
		}
	}
	if in.MaxSources != 0 && (in.MaxSources < 3 || in.MaxSources > 10) {
		return agent.NewValidationError("maxSources", "must be between 3 and 10")
	}
	return nil
}

func (h *GenerateHandler) count(route string, status int) {
	if h.Metrics == nil {
		return
	}
	h.Metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
