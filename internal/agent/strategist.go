package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/pressgen/pressgen/internal/helpers"
	"github.com/pressgen/pressgen/provider"
)

// Strategist builds the outline and renders the final Markdown document. It
// never fails because of LLM trouble: both the outline refinement and the
// prose rewrite fall back to the heuristic rendering silently.
type Strategist struct {
	provider provider.Provider
	logger   *log.Logger
	now      func() time.Time
}

func NewStrategist(p provider.Provider, logger *log.Logger) *Strategist {
	if logger == nil {
		logger = log.New(log.Writer(), "[STRATEGIST] ", log.LstdFlags)
	}
	return &Strategist{provider: p, logger: logger, now: time.Now}
}

// StrategyInput carries everything the strategist needs for one post.
type StrategyInput struct {
	Topic           string
	TargetQuestions []string
	Analyzed        []AnalyzedSource
	Audience        string
	Tone            string
	UseLLM          bool
	Model           string
}

const (
	defaultAudience = "General tech audience"
	defaultTone     = "Informative and concise"
)

// Compose produces the GeneratedPost for the given input.
func (s *Strategist) Compose(ctx context.Context, in StrategyInput) (GeneratedPost, error) {
	audience := in.Audience
	if audience == "" {
		audience = defaultAudience
	}
	tone := in.Tone
	if tone == "" {
		tone = defaultTone
	}

	date := s.now().Format("2006-01-02")
	title := fmt.Sprintf("%s: Answers to %d Key Questions", in.Topic, len(in.TargetQuestions))
	slug := helpers.Slugify(date + "-" + title)

	outline := buildOutline(in.Topic, in.TargetQuestions, in.Analyzed)
	llm := in.UseLLM && s.provider != nil && s.provider.Available()
	if llm {
		if refined, err := s.refineOutline(ctx, in, audience, tone); err == nil && len(refined) > 0 {
			outline = refined
		} else if err != nil {
			s.logger.Printf("outline refinement failed, keeping heuristic outline: %v", err)
		}
	}

	refs := make([]SourceRef, 0, len(in.Analyzed))
	for _, a := range in.Analyzed {
		refs = append(refs, SourceRef{Title: a.Title, URL: a.URL})
	}

	front := frontMatter(title, date, slug, in.Topic, audience, tone)
	markdown := front + "\n\n" + renderBody(title, outline, refs)
	mode := ModeHeuristic
	if llm {
		if body, err := s.writeProse(ctx, in, title, outline, audience, tone); err == nil && body != "" {
			markdown = front + "\n\n" + strings.TrimSpace(body) + "\n"
			mode = ModeLLM
		} else if err != nil {
			s.logger.Printf("prose generation failed, keeping heuristic markdown: %v", err)
		}
	}

	return GeneratedPost{
		Title:    title,
		Slug:     slug,
		Markdown: markdown,
		Outline:  outline,
		Sources:  refs,
		Mode:     mode,
	}, nil
}

// buildOutline gives every question section access to the takeaways of all
// analyzed sources rather than pairing question i with source i, which
// couples two unrelated orderings.
func buildOutline(topic string, questions []string, analyzed []AnalyzedSource) []OutlineSection {
	var pool []string
	seen := map[string]bool{}
	for _, a := range analyzed {
		for _, t := range a.KeyTakeaways {
			if seen[t] {
				continue
			}
			seen[t] = true
			pool = append(pool, t)
		}
	}

	outline := []OutlineSection{{
		Heading: "Introduction to " + topic,
		Points: []string{
			"Why " + topic + " matters",
			"What this post covers",
		},
	}}
	for i, q := range questions {
		points := sectionPoints(pool, i, len(questions))
		outline = append(outline, OutlineSection{Heading: q, Points: points})
	}
	outline = append(outline, OutlineSection{
		Heading: "Conclusion",
		Points: []string{
			"Key takeaways",
			"Next steps and further reading",
		},
	})
	return outline
}

// sectionPoints deals the pooled takeaways across question sections so each
// gets a distinct slice of the evidence, capped at five points.
func sectionPoints(pool []string, idx, sections int) []string {
	if len(pool) == 0 || sections == 0 {
		return nil
	}
	var points []string
	for i := idx; i < len(pool); i += sections {
		points = append(points, pool[i])
		if len(points) >= maxTakeaways {
			break
		}
	}
	if len(points) == 0 {
		points = pool
		if len(points) > maxTakeaways {
			points = points[:maxTakeaways]
		}
	}
	return points
}

func frontMatter(title, date, slug, topic, audience, tone string) string {
	lines := []string{
		"---",
		"title: " + strconv.Quote(title),
		"date: " + strconv.Quote(date),
		"slug: " + strconv.Quote(slug),
		"topic: " + strconv.Quote(topic),
		"audience: " + strconv.Quote(audience),
		"tone: " + strconv.Quote(tone),
		"---",
	}
	return strings.Join(lines, "\n")
}

func renderBody(title string, outline []OutlineSection, refs []SourceRef) string {
	var b strings.Builder
	b.WriteString("# " + title + "\n\n")
	for _, sec := range outline {
		b.WriteString("## " + sec.Heading + "\n")
		for _, p := range sec.Points {
			b.WriteString("- " + p + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("## Sources\n")
	for _, r := range refs {
		b.WriteString(fmt.Sprintf("- [%s](%s)\n", r.Title, r.URL))
	}
	return b.String()
}

func (s *Strategist) refineOutline(ctx context.Context, in StrategyInput, audience, tone string) ([]OutlineSection, error) {
	type evidence struct {
		Title        string   `json:"title"`
		KeyTakeaways []string `json:"keyTakeaways"`
	}
	ev := make([]evidence, 0, len(in.Analyzed))
	for _, a := range in.Analyzed {
		t := a.KeyTakeaways
		if len(t) > maxTakeaways {
			t = t[:maxTakeaways]
		}
		ev = append(ev, evidence{Title: a.Title, KeyTakeaways: t})
	}
	questionsJSON, _ := json.Marshal(in.TargetQuestions)
	evidenceJSON, _ := json.Marshal(ev)

	prompt := fmt.Sprintf(`You are a senior content strategist. Build a high-signal outline that answers the target questions and flows logically.
Return strict JSON with this shape: { "outline": [ { "heading": string, "points": [string] } ] }.
Guidelines:
- Prioritize clarity and a logical progression.
- Use 4-7 sections total (incl. Intro and Conclusion).
- Each section should have 3-6 bullet points that will be expanded later.

Topic: %s
Audience: %s
Tone: %s
Target Questions: %s
Evidence (summarized): %s
`, in.Topic, audience, tone, questionsJSON, evidenceJSON)

	content, err := s.provider.ChatCompletion(ctx, []provider.Message{
		{Role: "system", Content: "You are a senior content strategist."},
		{Role: "user", Content: prompt},
	}, in.Model, 0.4)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Outline []OutlineSection `json:"outline"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &parsed); err != nil {
		return nil, fmt.Errorf("parse outline response: %w", err)
	}
	return parsed.Outline, nil
}

func (s *Strategist) writeProse(ctx context.Context, in StrategyInput, title string, outline []OutlineSection, audience, tone string) (string, error) {
	type indexed struct {
		Index int    `json:"index"`
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	idx := make([]indexed, 0, len(in.Analyzed))
	for i, a := range in.Analyzed {
		idx = append(idx, indexed{Index: i + 1, Title: a.Title, URL: a.URL})
	}
	outlineJSON, _ := json.Marshal(outline)
	sourcesJSON, _ := json.Marshal(idx)

	prompt := fmt.Sprintf(`Write an original blog post in clean Markdown.
Must:
- Include a "## Table of Contents" after the H1 with anchor links to sections.
- Use clear headings, short paragraphs, bullet lists, and occasional callouts.
- Paraphrase; do not copy source passages. Limit quotations to <2 short lines each.
- Use numbered in-text citations like [1], [2] when referencing facts, mapping to the Sources section.
- Keep a helpful, %s tone for %s.
- Avoid hallucinatory claims; stick to the provided evidence.

Return only Markdown (no frontmatter, no JSON).

TITLE: %s
OUTLINE: %s
SOURCES (indexed): %s
`, tone, audience, title, outlineJSON, sourcesJSON)

	return s.provider.ChatCompletion(ctx, []provider.Message{
		{Role: "system", Content: "You are an expert blog writer who produces clean Markdown."},
		{Role: "user", Content: prompt},
	}, in.Model, 0.5)
}
