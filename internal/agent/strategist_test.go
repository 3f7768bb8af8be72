package agent

import (
	"context"
	"io"
	"log"
	"regexp"
	"strings"
	"testing"
	"time"
)

func testAnalyzed() []AnalyzedSource {
	return []AnalyzedSource{
		{
			Source:       Source{Title: "Edge AI Primer", URL: "https://a.example/primer"},
			Summary:      "A primer.",
			KeyTakeaways: []string{"Edge inference keeps data on the device which helps privacy a lot.", "Model quantization trades accuracy for footprint in predictable ways."},
			Mode:         ModeHeuristic,
		},
		{
			Source:       Source{Title: "IoT Trends", URL: "https://b.example/trends"},
			Summary:      "Trends.",
			KeyTakeaways: []string{"Battery budgets dominate hardware selection for remote sensor fleets."},
			Mode:         ModeHeuristic,
		},
	}
}

func TestComposeHeuristicMarkdown(t *testing.T) {
	s := NewStrategist(nil, log.New(io.Discard, "", 0))
	s.now = func() time.Time { return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC) }

	post, err := s.Compose(context.Background(), StrategyInput{
		Topic:           "Edge AI for IoT",
		TargetQuestions: []string{"What is Edge AI?", "Why does it matter?"},
		Analyzed:        testAnalyzed(),
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if post.Title != "Edge AI for IoT: Answers to 2 Key Questions" {
		t.Fatalf("unexpected title: %q", post.Title)
	}
	if !regexp.MustCompile(`^2026-09-01-edge-ai-for-iot`).MatchString(post.Slug) {
		t.Fatalf("unexpected slug: %q", post.Slug)
	}
	if post.Mode != ModeHeuristic {
		t.Fatalf("unexpected mode: %s", post.Mode)
	}

	md := post.Markdown
	if !strings.HasPrefix(md, "---\n") {
		t.Fatalf("missing front-matter:\n%s", md)
	}
	if strings.Count(md, "\n# ") != 1 {
		t.Fatalf("expected exactly one H1:\n%s", md)
	}
	// One H2 per outline section, in outline order, plus the Sources block.
	last := 0
	for _, sec := range post.Outline {
		idx := strings.Index(md, "## "+sec.Heading)
		if idx < 0 {
			t.Fatalf("missing section %q", sec.Heading)
		}
		if idx < last {
			t.Fatalf("section %q out of order", sec.Heading)
		}
		last = idx
	}
	if !strings.Contains(md, "## Sources") {
		t.Fatalf("missing sources section")
	}
	for _, ref := range post.Sources {
		link := "- [" + ref.Title + "](" + ref.URL + ")"
		if strings.Count(md, link) != 1 {
			t.Fatalf("source %q not listed exactly once", ref.Title)
		}
	}

	if post.Outline[0].Heading != "Introduction to Edge AI for IoT" {
		t.Fatalf("unexpected intro heading: %q", post.Outline[0].Heading)
	}
	if post.Outline[len(post.Outline)-1].Heading != "Conclusion" {
		t.Fatalf("unexpected final heading")
	}
}

func TestComposeOutlineSharesAllTakeaways(t *testing.T) {
	s := NewStrategist(nil, log.New(io.Discard, "", 0))
	analyzed := testAnalyzed()

	post, err := s.Compose(context.Background(), StrategyInput{
		Topic:           "Edge AI",
		TargetQuestions: []string{"Q1", "Q2", "Q3"},
		Analyzed:        analyzed,
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	// Three question sections between intro and conclusion, each non-empty
	// even though only two sources exist.
	for i := 1; i <= 3; i++ {
		sec := post.Outline[i]
		if len(sec.Points) == 0 {
			t.Fatalf("question section %q has no points", sec.Heading)
		}
		if len(sec.Points) > maxTakeaways {
			t.Fatalf("section %q over the point cap", sec.Heading)
		}
	}
}

func TestComposeLLMOutlineFallback(t *testing.T) {
	p := &fakeProvider{available: true, responses: []string{"nonsense", "also nonsense"}}
	s := NewStrategist(p, log.New(io.Discard, "", 0))

	post, err := s.Compose(context.Background(), StrategyInput{
		Topic:           "Edge AI",
		TargetQuestions: []string{"What is it?"},
		Analyzed:        testAnalyzed(),
		UseLLM:          true,
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if post.Outline[0].Heading != "Introduction to Edge AI" {
		t.Fatalf("heuristic outline not kept: %+v", post.Outline[0])
	}
}

func TestComposeLLMProse(t *testing.T) {
	outlineJSON := `{"outline":[{"heading":"Intro","points":["p1"]},{"heading":"Deep Dive","points":["p2"]}]}`
	prose := "# Edge AI\n\n## Table of Contents\n\n## Intro\n\nBody [1]."
	p := &fakeProvider{available: true, responses: []string{outlineJSON, prose}}
	s := NewStrategist(p, log.New(io.Discard, "", 0))

	post, err := s.Compose(context.Background(), StrategyInput{
		Topic:           "Edge AI",
		TargetQuestions: []string{"What is it?"},
		Analyzed:        testAnalyzed(),
		UseLLM:          true,
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if post.Mode != ModeLLM {
		t.Fatalf("expected llm mode, got %s", post.Mode)
	}
	if len(post.Outline) != 2 || post.Outline[1].Heading != "Deep Dive" {
		t.Fatalf("refined outline not used: %+v", post.Outline)
	}
	if !strings.HasPrefix(post.Markdown, "---\n") {
		t.Fatalf("front-matter missing on llm markdown")
	}
	if !strings.Contains(post.Markdown, "## Table of Contents") {
		t.Fatalf("llm body not used")
	}
}
