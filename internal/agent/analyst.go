package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/pressgen/pressgen/internal/helpers"
	"github.com/pressgen/pressgen/provider"
)

// Analyst turns fetched sources into summaries and key takeaways. It works
// heuristically by default and can route each source through the language
// model; a per-source LLM failure falls back to the heuristic result for
// that source only.
type Analyst struct {
	provider provider.Provider
	logger   *log.Logger
}

func NewAnalyst(p provider.Provider, logger *log.Logger) *Analyst {
	if logger == nil {
		logger = log.New(log.Writer(), "[ANALYST] ", log.LstdFlags)
	}
	return &Analyst{provider: p, logger: logger}
}

const (
	maxTakeaways     = 5
	takeawayMinChars = 60
	analystPromptCap = 8000
)

// Analyze produces exactly one AnalyzedSource per input Source, in order.
func (a *Analyst) Analyze(ctx context.Context, sources []Source, useLLM bool, model string) ([]AnalyzedSource, error) {
	analyzed := make([]AnalyzedSource, 0, len(sources))
	llm := useLLM && a.provider != nil && a.provider.Available()
	for _, src := range sources {
		if llm {
			if out, err := a.analyzeLLM(ctx, src, model); err == nil {
				analyzed = append(analyzed, out)
				continue
			} else {
				a.logger.Printf("llm analysis failed for %s, using heuristic: %v", src.URL, err)
			}
		}
		analyzed = append(analyzed, analyzeHeuristic(src))
	}
	return analyzed, nil
}

func analyzeHeuristic(src Source) AnalyzedSource {
	text := src.Content
	if text == "" {
		text = src.Snippet
	}
	summary := summarize(text, 3)
	if summary == "" {
		summary = src.Title
	}
	takeaways := extractBullets(text, maxTakeaways)
	if len(takeaways) == 0 {
		takeaways = []string{summary}
	}
	return AnalyzedSource{Source: src, Summary: summary, KeyTakeaways: takeaways, Mode: ModeHeuristic}
}

func (a *Analyst) analyzeLLM(ctx context.Context, src Source, model string) (AnalyzedSource, error) {
	text := src.Content
	if text == "" {
		text = src.Snippet
	}
	if len(text) > analystPromptCap {
		text = text[:analystPromptCap]
	}
	prompt := fmt.Sprintf(`Summarize the following source into a concise paragraph (<=120 words) and extract 3-5 key takeaways as short bullet points. Respond in JSON with keys summary (string) and takeaways (string[]).

TITLE: %s
URL: %s
CONTENT:
%s
`, src.Title, src.URL, text)

	content, err := a.provider.ChatCompletion(ctx, []provider.Message{
		{Role: "system", Content: "You are an expert content analyst who writes concise, actionable summaries."},
		{Role: "user", Content: prompt},
	}, model, 0.3)
	if err != nil {
		return AnalyzedSource{}, err
	}

	var parsed struct {
		Summary   string   `json:"summary"`
		Takeaways []string `json:"takeaways"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &parsed); err != nil {
		return AnalyzedSource{}, fmt.Errorf("parse analysis response: %w", err)
	}

	out := AnalyzedSource{Source: src, Summary: parsed.Summary, KeyTakeaways: parsed.Takeaways, Mode: ModeLLM}
	if out.Summary == "" {
		out.Summary = summarize(text, 3)
	}
	if len(out.KeyTakeaways) == 0 {
		out.KeyTakeaways = extractBullets(text, maxTakeaways)
	}
	if out.Summary == "" {
		out.Summary = src.Title
	}
	if len(out.KeyTakeaways) == 0 {
		out.KeyTakeaways = []string{out.Summary}
	}
	return out, nil
}

// summarize joins the first maxSentences sentences of text.
func summarize(text string, maxSentences int) string {
	text = helpers.CollapseWhitespace(text)
	if text == "" {
		return ""
	}
	sentences := helpers.SplitSentences(text)
	if len(sentences) > maxSentences {
		sentences = sentences[:maxSentences]
	}
	return strings.TrimSpace(strings.Join(sentences, " "))
}

// extractBullets picks up to max sentences long enough to stand alone.
func extractBullets(text string, max int) []string {
	var out []string
	for _, s := range helpers.SplitSentences(helpers.CollapseWhitespace(text)) {
		s = strings.TrimSpace(s)
		if len(s) <= takeawayMinChars {
			continue
		}
		out = append(out, s)
		if len(out) >= max {
			break
		}
	}
	if len(out) == 0 {
		if s := summarize(text, 1); s != "" {
			out = []string{s}
		}
	}
	return out
}

// stripCodeFence unwraps a ```json ... ``` block if the model added one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
