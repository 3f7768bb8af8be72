package helpers

import (
	"strings"
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"https://example.com/a?utm_source=x":  "https://example.com/a",
		"https://example.com/a#section":       "https://example.com/a",
		"https://example.com/a?q=1#frag":      "https://example.com/a",
		"  https://example.com/b  ":           "https://example.com/b",
		"https://example.com/plain":           "https://example.com/plain",
	}
	for in, want := range cases {
		if got := NormalizeURL(in); got != want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSourcesHashOrderIndependent(t *testing.T) {
	a := SourcesHash([]string{"https://a.com/x?p=1", "https://b.com/y"})
	b := SourcesHash([]string{"https://b.com/y#top", "https://a.com/x"})
	if a != b {
		t.Fatalf("expected identical hashes for same normalized set, got %s vs %s", a, b)
	}
	c := SourcesHash([]string{"https://c.com/z"})
	if a == c {
		t.Fatalf("different sets must not collide")
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Edge AI for IoT: Answers to 1 Key Questions": "edge-ai-for-iot-answers-to-1-key-questions",
		"  Hello,   World!  ":                         "hello-world",
		"already-slugged":                             "already-slugged",
		"MiXeD CaSe 42":                               "mixed-case-42",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("First one. Second one! Third one? Tail without end")
	if len(got) != 4 {
		t.Fatalf("expected 4 sentences, got %d: %v", len(got), got)
	}
	if !strings.HasSuffix(got[0], ".") || !strings.HasSuffix(got[1], "!") || !strings.HasSuffix(got[2], "?") {
		t.Fatalf("terminators not preserved: %v", got)
	}
	if got[3] != "Tail without end" {
		t.Fatalf("tail sentence mangled: %q", got[3])
	}
}

func TestReadingTime(t *testing.T) {
	if rt := ReadingTime(""); rt != 0 {
		t.Fatalf("empty text should read in 0 minutes, got %d", rt)
	}
	if rt := ReadingTime("one two three"); rt != 1 {
		t.Fatalf("short text should floor to 1 minute, got %d", rt)
	}
	long := strings.Repeat("word ", 450)
	if rt := ReadingTime(long); rt != 3 {
		t.Fatalf("450 words should read in 3 minutes, got %d", rt)
	}
}
