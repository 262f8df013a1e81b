// File path: internal/analyzer/reduce.go
package analyzer

import (
	"math/rand"
	"strings"
)

// Size bands selecting the reduction strategy, in characters.
const (
	fullTextLimit  = 5_000
	headTailLimit  = 20_000
	blockScanLimit = 100_000
)

// Strategy labels carried into the recommendation prompt.
const (
	StrategyFullText  = "full_text"
	StrategyHeadTail  = "head_tail"
	StrategyBlockScan = "block_scan"
	StrategySampled   = "sampled"
)

const (
	blockSize      = 1_000
	maxMarkedBlock = 5

	sampledHead    = 2_000
	sampledTail    = 1_000
	sampleCount    = 10
	sampleSize     = 500
	headingMaxLen  = 60
	maxHeadingHits = 15
)

// Output caps per strategy. Reduction exists only to fit a prompt budget; it
// neither ranks nor filters for quality.
var outputCaps = map[string]int{
	StrategyFullText:  6_000,
	StrategyHeadTail:  7_000,
	StrategyBlockScan: 7_000,
	StrategySampled:   8_000,
}

var summaryMarkers = []string{
	"summary", "abstract", "overview", "introduction", "conclusion",
	"keywords", "key words", "目的", "概要", "摘要", "结论", "总结",
}

// Reduce shrinks document content to a prompt-sized excerpt. The strategy is
// chosen purely by character length; the returned label names the strategy
// used. Mid-document sampling is deliberately non-deterministic.
func Reduce(content string) (string, string) {
	runes := []rune(content)
	var reduced, strategy string
	switch {
	case len(runes) < fullTextLimit:
		strategy = StrategyFullText
		reduced = content
	case len(runes) < headTailLimit:
		strategy = StrategyHeadTail
		reduced = reduceHeadTail(runes)
	case len(runes) < blockScanLimit:
		strategy = StrategyBlockScan
		reduced = reduceBlocks(runes)
	default:
		strategy = StrategySampled
		reduced = reduceSampled(runes)
	}
	return capRunes(reduced, outputCaps[strategy]), strategy
}

// reduceHeadTail keeps the head 20% and tail 10% plus any paragraph carrying
// a summary marker.
func reduceHeadTail(runes []rune) string {
	head := string(runes[:len(runes)/5])
	tail := string(runes[len(runes)-len(runes)/10:])

	var marked []string
	for _, para := range strings.Split(string(runes), "\n\n") {
		if hasMarker(para) {
			marked = append(marked, strings.TrimSpace(para))
		}
	}
	parts := []string{head}
	parts = append(parts, marked...)
	parts = append(parts, tail)
	return strings.Join(parts, "\n\n")
}

// reduceBlocks segments the text into ~1000-character blocks and keeps the
// first, the last, and marker-bearing blocks up to a limit; short selections
// are padded with random interior blocks.
func reduceBlocks(runes []rune) string {
	var blocks []string
	for i := 0; i < len(runes); i += blockSize {
		end := i + blockSize
		if end > len(runes) {
			end = len(runes)
		}
		blocks = append(blocks, string(runes[i:end]))
	}
	if len(blocks) <= 2 {
		return strings.Join(blocks, "\n")
	}

	selected := map[int]struct{}{0: {}, len(blocks) - 1: {}}
	for i, block := range blocks {
		if len(selected) >= maxMarkedBlock+2 {
			break
		}
		if hasMarker(block) {
			selected[i] = struct{}{}
		}
	}
	for len(selected) < maxMarkedBlock && len(selected) < len(blocks) {
		selected[rand.Intn(len(blocks))] = struct{}{}
	}

	var parts []string
	for i := range blocks {
		if _, ok := selected[i]; ok {
			parts = append(parts, blocks[i])
		}
	}
	return strings.Join(parts, "\n...\n")
}

// reduceSampled covers very large documents: fixed head and tail, up to ten
// evenly spaced mid-document samples, and short lines that look like
// structural headings. The middle is capped separately so head and tail
// always survive the overall budget.
func reduceSampled(runes []rune) string {
	head := string(runes[:sampledHead])
	tail := string(runes[len(runes)-sampledTail:])

	var parts []string
	body := runes[sampledHead : len(runes)-sampledTail]
	stride := len(body) / (sampleCount + 1)
	if stride > 0 {
		for i := 1; i <= sampleCount; i++ {
			start := i * stride
			end := start + sampleSize
			if end > len(body) {
				end = len(body)
			}
			parts = append(parts, string(body[start:end]))
		}
	}

	headings := 0
	for _, line := range strings.Split(string(runes), "\n") {
		trimmed := strings.TrimSpace(line)
		if looksLikeHeading(trimmed) {
			parts = append(parts, trimmed)
			headings++
			if headings >= maxHeadingHits {
				break
			}
		}
	}

	budget := outputCaps[StrategySampled] - sampledHead - sampledTail - 10
	middle := capRunes(strings.Join(parts, "\n...\n"), budget)
	return head + "\n...\n" + middle + "\n...\n" + tail
}

func hasMarker(text string) bool {
	lowered := strings.ToLower(text)
	for _, marker := range summaryMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// looksLikeHeading accepts short lines with no terminal punctuation, the
// shape of section titles and numbered headings.
func looksLikeHeading(line string) bool {
	if line == "" || len([]rune(line)) > headingMaxLen {
		return false
	}
	if strings.HasSuffix(line, ".") || strings.HasSuffix(line, ",") ||
		strings.HasSuffix(line, "。") || strings.HasSuffix(line, "，") {
		return false
	}
	if strings.HasPrefix(line, "#") {
		return true
	}
	words := strings.Fields(line)
	return len(words) > 0 && len(words) <= 8
}

func capRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
