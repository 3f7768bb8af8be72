package agent

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/pressgen/pressgen/internal/cache"
	"github.com/pressgen/pressgen/internal/helpers"
	"github.com/pressgen/pressgen/internal/store"
	"github.com/pressgen/pressgen/internal/telemetry"
)

// PostWriter persists a finished post. *store.Store satisfies it.
type PostWriter interface {
	CreatePost(ctx context.Context, rec store.PostRecord) (store.PostRecord, error)
}

// Indexer receives every persisted post for full-text search.
type Indexer interface {
	IndexPost(rec store.PostRecord) error
}

// ProgressFunc receives phase transitions from a streaming generation run.
type ProgressFunc func(phase, message string)

// Orchestrator sequences research, analysis and strategy, wrapping the first
// two stages in cache-aside reads and writes and timing every stage.
type Orchestrator struct {
	researcher *Researcher
	analyst    *Analyst
	strategist *Strategist
	cache      *cache.MultiTierCache
	posts      PostWriter
	index      Indexer
	monitor    *telemetry.Monitor
	logger     *log.Logger

	outputDir   string
	researchTTL time.Duration
	analysisTTL time.Duration

	flights flightGroup
	now     func() time.Time
}

// OrchestratorOptions wires the orchestrator's collaborators. Cache, posts,
// index and monitor may each be nil; the pipeline runs without them.
type OrchestratorOptions struct {
	Researcher  *Researcher
	Analyst     *Analyst
	Strategist  *Strategist
	Cache       *cache.MultiTierCache
	Posts       PostWriter
	Index       Indexer
	Monitor     *telemetry.Monitor
	Logger      *log.Logger
	OutputDir   string
	ResearchTTL time.Duration
	AnalysisTTL time.Duration
}

func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	researchTTL := opts.ResearchTTL
	if researchTTL <= 0 {
		researchTTL = 24 * time.Hour
	}
	analysisTTL := opts.AnalysisTTL
	if analysisTTL <= 0 {
		analysisTTL = 12 * time.Hour
	}
	return &Orchestrator{
		researcher:  opts.Researcher,
		analyst:     opts.Analyst,
		strategist:  opts.Strategist,
		cache:       opts.Cache,
		posts:       opts.Posts,
		index:       opts.Index,
		monitor:     opts.Monitor,
		logger:      logger,
		outputDir:   opts.OutputDir,
		researchTTL: researchTTL,
		analysisTTL: analysisTTL,
		now:         time.Now,
	}
}

// GeneratePost runs the full pipeline for one request.
func (o *Orchestrator) GeneratePost(ctx context.Context, in GenerateInput) (GenerateResult, error) {
	return o.generate(ctx, in, nil)
}

// GeneratePostStream runs the pipeline, emitting a progress event per phase
// in fixed order: research, analysis, strategy, save. A cache hit still
// emits its phase, just faster.
func (o *Orchestrator) GeneratePostStream(ctx context.Context, in GenerateInput, progress ProgressFunc) (GenerateResult, error) {
	return o.generate(ctx, in, progress)
}

func (o *Orchestrator) generate(ctx context.Context, in GenerateInput, progress ProgressFunc) (GenerateResult, error) {
	start := o.now()
	emit := func(phase, message string) {
		if progress != nil {
			progress(phase, message)
		}
	}
	meta := Metadata{CacheHits: []string{}, CacheMisses: []string{}}

	emit("research", "Starting research...")
	sources, err := o.researchStage(ctx, in, &meta)
	if err != nil {
		return GenerateResult{}, err
	}
	emit("research", fmt.Sprintf("Found %d sources", len(sources)))

	emit("analysis", "Analyzing sources...")
	analyzed, err := o.analysisStage(ctx, in, sources, &meta)
	if err != nil {
		return GenerateResult{}, err
	}
	emit("analysis", fmt.Sprintf("Analyzed %d sources", len(analyzed)))

	// Strategy depends on caller-supplied questions, audience and tone, so
	// it always runs fresh.
	emit("strategy", "Drafting post...")
	sample := o.startSample("strategy")
	post, err := o.strategist.Compose(ctx, StrategyInput{
		Topic:           in.Topic,
		TargetQuestions: in.TargetQuestions,
		Analyzed:        analyzed,
		Audience:        in.Audience,
		Tone:            in.Tone,
		UseLLM:          in.UseLLM,
		Model:           in.Model,
	})
	o.endSample(ctx, sample, err)
	if err != nil {
		return GenerateResult{}, err
	}

	emit("save", "Saving markdown...")
	words := helpers.WordCount(post.Markdown)
	reading := helpers.ReadingTime(post.Markdown)
	meta.GenerationTime = o.now().Sub(start)
	path := o.persist(ctx, in, post, words, reading, meta.GenerationTime)

	return GenerateResult{
		Post:        post,
		Metadata:    meta,
		WordCount:   words,
		ReadingTime: reading,
		FilePath:    path,
	}, nil
}

func (o *Orchestrator) researchStage(ctx context.Context, in GenerateInput, meta *Metadata) ([]Source, error) {
	key := cache.Keys.Research(in.Topic)
	var cached []Source
	if o.cache != nil {
		if ok, err := o.cache.Get(ctx, key, &cached); err == nil && ok {
			meta.CacheHits = append(meta.CacheHits, "research")
			return cached, nil
		}
	}
	meta.CacheMisses = append(meta.CacheMisses, "research")

	val, err, _ := o.flights.Do(key, func() (any, error) {
		sample := o.startSample("research")
		sources, err := o.researcher.Research(ctx, in.Topic, in.MaxSources)
		o.endSample(ctx, sample, err)
		if err != nil {
			return nil, err
		}
		if o.cache != nil {
			if err := o.cache.Set(ctx, key, sources, cache.Options{TTL: o.researchTTL, Tags: []string{cache.TagResearch}}); err != nil {
				o.logger.Printf("research cache write failed: %v", err)
			}
		}
		return sources, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]Source), nil
}

func (o *Orchestrator) analysisStage(ctx context.Context, in GenerateInput, sources []Source, meta *Metadata) ([]AnalyzedSource, error) {
	urls := make([]string, 0, len(sources))
	for _, s := range sources {
		urls = append(urls, s.URL)
	}
	key := cache.Keys.Analysis(helpers.SourcesHash(urls))

	var cached []AnalyzedSource
	if o.cache != nil {
		if ok, err := o.cache.Get(ctx, key, &cached); err == nil && ok {
			meta.CacheHits = append(meta.CacheHits, "analysis")
			return cached, nil
		}
	}
	meta.CacheMisses = append(meta.CacheMisses, "analysis")

	val, err, _ := o.flights.Do(key, func() (any, error) {
		sample := o.startSample("analysis")
		analyzed, err := o.analyst.Analyze(ctx, sources, in.UseLLM, in.Model)
		o.endSample(ctx, sample, err)
		if err != nil {
			return nil, err
		}
		if o.cache != nil {
			if err := o.cache.Set(ctx, key, analyzed, cache.Options{TTL: o.analysisTTL, Tags: []string{cache.TagAnalysis}}); err != nil {
				o.logger.Printf("analysis cache write failed: %v", err)
			}
		}
		return analyzed, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]AnalyzedSource), nil
}

// persist saves the post to storage, the search index and the content
// directory, returning the markdown file path when the file write succeeds.
// All three are best-effort: a failure is logged and the caller still
// receives the generated markdown.
func (o *Orchestrator) persist(ctx context.Context, in GenerateInput, post GeneratedPost, words, reading int, took time.Duration) string {
	if o.posts != nil {
		rec := store.PostRecord{
			Title:           post.Title,
			Slug:            post.Slug,
			Topic:           in.Topic,
			Content:         post.Markdown,
			TargetQuestions: in.TargetQuestions,
			Audience:        in.Audience,
			Tone:            in.Tone,
			Model:           in.Model,
			WordCount:       words,
			ReadingTime:     reading,
			GenerationMS:    took.Milliseconds(),
		}
		for _, s := range post.Sources {
			rec.Sources = append(rec.Sources, store.PostSource{Title: s.Title, URL: s.URL})
		}
		stored, err := o.posts.CreatePost(ctx, rec)
		if err != nil {
			o.logger.Printf("post persistence failed for %s: %v", post.Slug, err)
		} else if o.index != nil {
			if err := o.index.IndexPost(stored); err != nil {
				o.logger.Printf("post indexing failed for %s: %v", post.Slug, err)
			}
		}
		if o.cache != nil {
			o.cache.InvalidateByTags(ctx, []string{cache.TagPosts})
		}
	}
	if o.outputDir == "" {
		return ""
	}
	if err := os.MkdirAll(o.outputDir, 0o755); err != nil {
		o.logger.Printf("content dir create failed: %v", err)
		return ""
	}
	path := filepath.Join(o.outputDir, post.Slug+".md")
	if err := os.WriteFile(path, []byte(post.Markdown), 0o644); err != nil {
		o.logger.Printf("markdown write failed for %s: %v", path, err)
		return ""
	}
	return path
}

func (o *Orchestrator) startSample(stage string) *telemetry.Sample {
	if o.monitor == nil {
		return nil
	}
	return o.monitor.Start(stage)
}

func (o *Orchestrator) endSample(ctx context.Context, sample *telemetry.Sample, err error) {
	if sample == nil {
		return
	}
	sample.End(ctx, telemetry.StatusForErr(err))
}
