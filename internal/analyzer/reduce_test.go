// File path: internal/analyzer/reduce_test.go
package analyzer

import (
	"strings"
	"testing"
)

func TestReduceFullText(t *testing.T) {
	content := strings.Repeat("Short document paragraph. ", 50)
	reduced, strategy := Reduce(content)
	if strategy != StrategyFullText {
		t.Fatalf("strategy = %s, want %s", strategy, StrategyFullText)
	}
	if len([]rune(reduced)) > outputCaps[StrategyFullText] {
		t.Fatalf("reduced length %d exceeds cap", len([]rune(reduced)))
	}
}

func TestReduceHeadTail(t *testing.T) {
	head := "OPENING STATEMENT anchors the beginning of this document. "
	tail := " CLOSING STATEMENT anchors the end of this document."
	body := strings.Repeat("Filler paragraph with ordinary content repeated many times over. ", 160)
	content := head + body + tail
	if len([]rune(content)) < fullTextLimit || len([]rune(content)) >= headTailLimit {
		t.Fatalf("test document size %d outside the head/tail band", len([]rune(content)))
	}

	reduced, strategy := Reduce(content)
	if strategy != StrategyHeadTail {
		t.Fatalf("strategy = %s, want %s", strategy, StrategyHeadTail)
	}
	if !strings.Contains(reduced, "OPENING STATEMENT") {
		t.Fatal("head content missing from reduction")
	}
	if len([]rune(reduced)) > outputCaps[StrategyHeadTail] {
		t.Fatalf("reduced length %d exceeds cap", len([]rune(reduced)))
	}
}

func TestReduceBlockScan(t *testing.T) {
	content := strings.Repeat("Block scan filler sentence with steady ordinary prose inside. ", 800)
	if len([]rune(content)) < headTailLimit || len([]rune(content)) >= blockScanLimit {
		t.Fatalf("test document size %d outside the block-scan band", len([]rune(content)))
	}
	reduced, strategy := Reduce(content)
	if strategy != StrategyBlockScan {
		t.Fatalf("strategy = %s, want %s", strategy, StrategyBlockScan)
	}
	if len([]rune(reduced)) > outputCaps[StrategyBlockScan] {
		t.Fatalf("reduced length %d exceeds cap", len([]rune(reduced)))
	}
}

func TestReduceSampled(t *testing.T) {
	head := "VERY FIRST WORDS of the giant document. "
	tail := " VERY LAST WORDS of the giant document."
	content := head + strings.Repeat("Giant document filler prose keeps going and going without end. ", 2000) + tail
	if len([]rune(content)) < blockScanLimit {
		t.Fatalf("test document size %d below the sampled band", len([]rune(content)))
	}

	reduced, strategy := Reduce(content)
	if strategy != StrategySampled {
		t.Fatalf("strategy = %s, want %s", strategy, StrategySampled)
	}
	if !strings.Contains(reduced, "VERY FIRST WORDS") {
		t.Fatal("head sample missing from reduction")
	}
	if !strings.Contains(reduced, "VERY LAST WORDS") {
		t.Fatal("tail sample missing from reduction")
	}
	if len([]rune(reduced)) > outputCaps[StrategySampled] {
		t.Fatalf("reduced length %d exceeds cap", len([]rune(reduced)))
	}
}

func TestReduceCapsAreHard(t *testing.T) {
	for _, size := range []int{4_000, 15_000, 60_000, 200_000} {
		content := strings.Repeat("a", size)
		reduced, strategy := Reduce(content)
		if limit, ok := outputCaps[strategy]; !ok || len([]rune(reduced)) > limit {
			t.Fatalf("size %d strategy %s produced %d runes", size, strategy, len([]rune(reduced)))
		}
	}
}
