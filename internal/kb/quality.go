// File path: internal/kb/quality.go
package kb

import (
	"strings"
	"unicode"
)

// MinQuality is the hard ingestion filter: chunks scoring below it are never
// indexed. It is not a ranking signal.
const MinQuality = 0.3

const minChunkLength = 50

// Score rates a normalized chunk's textual coherence in [0,1]. The score
// starts at 1.0 and is multiplied down for short length, low informative
// character ratio, high punctuation density, and repeated lines.
func Score(text string) float64 {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) == 0 {
		return 0
	}

	score := 1.0
	if len(runes) < minChunkLength {
		score *= 0.8
	}

	var informative, punct int
	for _, r := range runes {
		switch {
		case isCJK(r) || unicode.IsLetter(r) || unicode.IsDigit(r):
			informative++
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			punct++
		}
	}
	ratio := float64(informative) / float64(len(runes))
	switch {
	case ratio < 0.6:
		score *= 0.6
	case ratio < 0.8:
		score *= 0.8
	}
	if float64(punct)/float64(len(runes)) > 0.3 {
		score *= 0.7
	}

	if uniq := lineUniqueness(trimmed); uniq < 0.7 {
		score *= 0.8
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// lineUniqueness is the ratio of distinct non-blank lines to total non-blank
// lines; low values indicate boilerplate or repetition.
func lineUniqueness(text string) float64 {
	lines := strings.Split(text, "\n")
	seen := make(map[string]struct{})
	total := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		total++
		seen[trimmed] = struct{}{}
	}
	if total <= 1 {
		return 1
	}
	return float64(len(seen)) / float64(total)
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
