package agent

import "time"

// ResultMode tells whether a stage produced its output heuristically or
// through the language model. Degraded LLM runs are reported as heuristic so
// callers can tell the two apart.
type ResultMode string

const (
	ModeHeuristic ResultMode = "heuristic"
	ModeLLM       ResultMode = "llm"
)

// Source is one piece of fetched evidence for a topic.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
	Content string `json:"content,omitempty"`
}

// AnalyzedSource is a Source with its summary and key takeaways attached.
type AnalyzedSource struct {
	Source
	Summary      string     `json:"summary"`
	KeyTakeaways []string   `json:"key_takeaways"`
	Mode         ResultMode `json:"mode"`
}

// OutlineSection is one rendered section of the post. Order is significant.
type OutlineSection struct {
	Heading string   `json:"heading"`
	Points  []string `json:"points"`
}

// SourceRef is the citation form of a source.
type SourceRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// GeneratedPost is the terminal artifact of the pipeline.
type GeneratedPost struct {
	Title    string           `json:"title"`
	Slug     string           `json:"slug"`
	Markdown string           `json:"markdown"`
	Outline  []OutlineSection `json:"outline"`
	Sources  []SourceRef      `json:"sources"`
	Mode     ResultMode       `json:"mode"`
}

// GenerateInput is the single entry point's request shape.
type GenerateInput struct {
	Topic           string   `json:"topic"`
	TargetQuestions []string `json:"targetQuestions"`
	MaxSources      int      `json:"maxSources,omitempty"`
	Audience        string   `json:"audience,omitempty"`
	Tone            string   `json:"tone,omitempty"`
	UseLLM          bool     `json:"useLLM,omitempty"`
	Model           string   `json:"model,omitempty"`
}

// Metadata describes how a generation run went.
type Metadata struct {
	GenerationTime time.Duration `json:"generation_time"`
	CacheHits      []string      `json:"cache_hits"`
	CacheMisses    []string      `json:"cache_misses"`
}

// GenerateResult is the post plus its run metadata. FilePath is empty when
// no output directory is configured or the write failed.
type GenerateResult struct {
	Post        GeneratedPost `json:"post"`
	Metadata    Metadata      `json:"metadata"`
	WordCount   int           `json:"word_count"`
	ReadingTime int           `json:"reading_time"`
	FilePath    string        `json:"file_path,omitempty"`
}
