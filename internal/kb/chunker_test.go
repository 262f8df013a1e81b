// File path: internal/kb/chunker_test.go
package kb

import (
	"strings"
	"testing"
)

func TestSplitEmptyContent(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{})
	if got := chunker.Split("   \n\t  "); got != nil {
		t.Fatalf("expected nil for blank content, got %d chunks", len(got))
	}
}

func TestSplitShortContentSingleChunk(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{})
	chunks := chunker.Split("AI is transforming industries. Machine learning enables this.")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Index != 0 {
		t.Fatalf("expected index 0, got %d", chunks[0].Index)
	}
}

func TestSplitLongContentOrdered(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("Each paragraph in this document carries a few sentences of content.\n\n")
	}
	chunker := NewChunker(ChunkerConfig{Size: 500, Overlap: 50})
	chunks := chunker.Split(sb.String())
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Fatalf("chunk %d has index %d", i, chunk.Index)
		}
		if strings.TrimSpace(chunk.Text) == "" {
			t.Fatalf("chunk %d is blank", i)
		}
	}
}

func TestNewChunkerRejectsOversizedOverlap(t *testing.T) {
	chunker := NewChunker(ChunkerConfig{Size: 100, Overlap: 150})
	cfg := chunker.Config()
	if cfg.Overlap >= cfg.Size {
		t.Fatalf("overlap %d not reduced below size %d", cfg.Overlap, cfg.Size)
	}
}

func TestDocIDDeterministic(t *testing.T) {
	a := DocID("content", "a.txt")
	b := DocID("content", "a.txt")
	if a != b {
		t.Fatalf("same inputs produced different ids: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if DocID("content", "b.txt") == a {
		t.Fatal("different filename produced the same id")
	}
	if DocID("other", "a.txt") == a {
		t.Fatal("different content produced the same id")
	}
}
