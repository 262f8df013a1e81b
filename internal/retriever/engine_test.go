// File path: internal/retriever/engine_test.go
package retriever

import (
	"context"
	"fmt"
	"testing"

	"github.com/corpusworks/knowledgehub/internal/kb"
	"github.com/corpusworks/knowledgehub/internal/vector"
)

type stubEmbedder struct {
	calls int
}

func (s *stubEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	return []float32{1, 0, 0}, nil
}

// stubIndex serves canned matches regardless of the query vector.
type stubIndex struct {
	chunks  map[string]kb.Chunk
	matches []vector.Match
	queries int
}

func newStubIndex(distances ...float64) *stubIndex {
	s := &stubIndex{chunks: make(map[string]kb.Chunk)}
	for i, d := range distances {
		id := fmt.Sprintf("chunk-%d", i)
		s.chunks[id] = kb.Chunk{ID: id, DocID: "doc", Content: "content " + id, Index: i}
		s.matches = append(s.matches, vector.Match{ChunkID: id, Distance: d})
	}
	return s
}

func (s *stubIndex) Query(embedding []float32, k int, allowDocs []string) []vector.Match {
	s.queries++
	if len(s.matches) > k {
		return s.matches[:k]
	}
	return s.matches
}

func (s *stubIndex) Get(chunkID string) (kb.Chunk, bool) {
	chunk, ok := s.chunks[chunkID]
	return chunk, ok
}

func (s *stubIndex) Count() int { return len(s.chunks) }

func TestSearchEmptyQuery(t *testing.T) {
	embedder := &stubEmbedder{}
	engine := NewEngine(embedder, newStubIndex(0.1))
	results, err := engine.Search(context.Background(), "   ", nil, 5, 0.7)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results for empty query, got %d", len(results))
	}
	if embedder.calls != 0 {
		t.Fatal("empty query was embedded")
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	engine := NewEngine(&stubEmbedder{}, newStubIndex())
	results, err := engine.Search(context.Background(), "query", nil, 5, 0.7)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %d", len(results))
	}
}

func TestSearchFiltersAndOrders(t *testing.T) {
	// Similarities 0.95, 0.8, 0.4.
	engine := NewEngine(&stubEmbedder{}, newStubIndex(0.05, 0.2, 0.6))
	results, err := engine.Search(context.Background(), "query", nil, 5, 0.7)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Similarity < results[1].Similarity {
		t.Fatal("results not ordered by descending similarity")
	}
	for _, r := range results {
		if r.Similarity < 0.7 {
			t.Fatalf("result %s below threshold: %f", r.ChunkID, r.Similarity)
		}
	}
}

func TestSearchTruncatesToTopK(t *testing.T) {
	engine := NewEngine(&stubEmbedder{}, newStubIndex(0.01, 0.02, 0.03, 0.04))
	results, err := engine.Search(context.Background(), "query", nil, 2, 0.7)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
}

func TestSearchNegativeDistanceIsPerfectMatch(t *testing.T) {
	engine := NewEngine(&stubEmbedder{}, newStubIndex(-0.001))
	results, err := engine.Search(context.Background(), "query", nil, 5, 0.9)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Similarity != 1.0 {
		t.Fatalf("similarity = %f, want 1.0", results[0].Similarity)
	}
}

func TestSearchRelaxesOnceWhenEvidenceExists(t *testing.T) {
	// Best similarity 0.65 misses the initial 0.7 threshold but is credible
	// evidence; one relaxation step to 0.6 recovers it.
	engine := NewEngine(&stubEmbedder{}, newStubIndex(0.35))
	results, err := engine.Search(context.Background(), "query", nil, 5, 0.7)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 after relaxation", len(results))
	}
}

func TestSearchRelaxationBounded(t *testing.T) {
	// Best similarity 0.4: above the evidence gate but unreachable within two
	// relaxation steps from 0.9 (0.8, then 0.7).
	engine := NewEngine(&stubEmbedder{}, newStubIndex(0.6))
	results, err := engine.Search(context.Background(), "query", nil, 5, 0.9)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0 from bounded relaxation", len(results))
	}
}

func TestSearchNoRelaxationBelowEvidenceGate(t *testing.T) {
	embedder := &stubEmbedder{}
	// Best similarity 0.1: a topical mismatch, no relaxation attempted.
	index := newStubIndex(0.9)
	engine := NewEngine(embedder, index)
	results, err := engine.Search(context.Background(), "query", nil, 5, 0.7)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
	if embedder.calls != 1 {
		t.Fatalf("query embedded %d times, want 1", embedder.calls)
	}
}

func TestSearchNeverRelaxesBelowFloor(t *testing.T) {
	// Best similarity 0.45, below the 0.5 floor but above the evidence gate:
	// relaxation from 0.6 stops at 0.5 and stays empty.
	engine := NewEngine(&stubEmbedder{}, newStubIndex(0.55))
	results, err := engine.Search(context.Background(), "query", nil, 5, 0.6)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0 below the floor", len(results))
	}
}

func TestSearchThresholdMonotonicity(t *testing.T) {
	distances := []float64{0.1, 0.25, 0.45, 0.6}
	prev := -1
	for _, threshold := range []float64{0.9, 0.7, 0.52} {
		engine := NewEngine(&stubEmbedder{}, newStubIndex(distances...))
		results, err := engine.Search(context.Background(), "query", nil, 10, threshold)
		if err != nil {
			t.Fatalf("search at %f: %v", threshold, err)
		}
		if prev >= 0 && len(results) < prev {
			t.Fatalf("lowering threshold to %f shrank results from %d to %d", threshold, prev, len(results))
		}
		prev = len(results)
	}
}
