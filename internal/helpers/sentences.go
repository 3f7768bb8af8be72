package helpers

import "strings"

// SplitSentences breaks text into sentences on '.', '!' and '?' terminators.
// Trailing text without a terminator is returned as a final sentence.
func SplitSentences(text string) []string {
	var (
		sentences []string
		start     int
	)
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(text[start : i+1])
			if s != "" && s != "." && s != "!" && s != "?" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// ReadingTime estimates minutes to read at roughly 200 words per minute,
// with a floor of one minute for non-empty text.
func ReadingTime(text string) int {
	words := WordCount(text)
	if words == 0 {
		return 0
	}
	minutes := (words + 199) / 200
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
