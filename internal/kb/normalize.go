// File path: internal/kb/normalize.go
package kb

import (
	"regexp"
	"strings"
	"unicode"
)

// Normalization passes selected by document provenance.
const (
	PassStandard     = "standard"
	PassPDFOptimized = "pdf_optimized"
	PassOCREnhanced  = "ocr_enhanced"
)

// PassForMetadata selects the normalization pass from extraction provenance
// flags. OCR output gets the aggressive pass; text-layer PDFs get the
// layout-aware pass; everything else is treated as plain text.
func PassForMetadata(metadata map[string]string) string {
	if metadata == nil {
		return PassStandard
	}
	if isTruthy(metadata["is_ocr_processed"]) {
		return PassOCREnhanced
	}
	if isTruthy(metadata["is_pdf"]) || isTruthy(metadata["is_text_pdf"]) {
		return PassPDFOptimized
	}
	return PassStandard
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

var (
	blankRunPattern  = regexp.MustCompile(`\n{3,}`)
	pageNumPattern   = regexp.MustCompile(`^\s*(?:-\s*)?\d{1,4}(?:\s*-)?\s*$`)
	pageLabelPattern = regexp.MustCompile(`(?i)^\s*page\s+\d+(\s+of\s+\d+)?\s*$`)
	isolatedZero     = regexp.MustCompile(`(^|\s)0(\s|$)`)
)

// Normalize routes text through the named pass. An empty result falls back to
// the original text so a bad transform never drops a chunk outright.
func Normalize(text, pass string) string {
	var out string
	switch pass {
	case PassOCREnhanced:
		out = normalizeOCR(text)
	case PassPDFOptimized:
		out = normalizePDF(text)
	default:
		out = normalizeStandard(text)
	}
	if strings.TrimSpace(out) == "" {
		return strings.TrimSpace(text)
	}
	return out
}

// normalizeStandard strips control characters, tidies per-line whitespace and
// collapses runs of three or more blank lines down to two.
func normalizeStandard(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(stripControl(line), " \t")
	}
	joined := strings.Join(lines, "\n")
	joined = blankRunPattern.ReplaceAllString(joined, "\n\n")
	return strings.TrimSpace(joined)
}

// normalizePDF additionally drops page-number and header artifacts and merges
// lines broken by end-of-line hyphenation.
func normalizePDF(text string) string {
	lines := strings.Split(normalizeStandard(text), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if pageNumPattern.MatchString(line) || pageLabelPattern.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	merged := make([]string, 0, len(kept))
	for i := 0; i < len(kept); i++ {
		line := kept[i]
		for strings.HasSuffix(line, "-") && i+1 < len(kept) {
			next := strings.TrimLeft(kept[i+1], " \t")
			if next == "" || !startsLower(next) {
				break
			}
			line = strings.TrimSuffix(line, "-") + next
			i++
		}
		merged = append(merged, line)
	}
	return strings.TrimSpace(strings.Join(merged, "\n"))
}

// normalizeOCR strips scanner noise: very short lines, repeated punctuation
// runs, and common character confusions such as an isolated "0" read for "O".
func normalizeOCR(text string) string {
	lines := strings.Split(normalizeStandard(text), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			kept = append(kept, "")
			continue
		}
		if len([]rune(trimmed)) <= 3 {
			continue
		}
		trimmed = isolatedZero.ReplaceAllString(trimmed, "${1}O${2}")
		kept = append(kept, trimmed)
	}
	joined := blankRunPattern.ReplaceAllString(strings.Join(kept, "\n"), "\n\n")
	return strings.TrimSpace(joined)
}

func stripControl(line string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, line)
}

func startsLower(s string) bool {
	for _, r := range s {
		return unicode.IsLower(r)
	}
	return false
}
