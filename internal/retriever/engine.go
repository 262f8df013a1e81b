// File path: internal/retriever/engine.go
package retriever

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/corpusworks/knowledgehub/internal/common"
	"github.com/corpusworks/knowledgehub/internal/common/telemetry"
	"github.com/corpusworks/knowledgehub/internal/kb"
	"github.com/corpusworks/knowledgehub/internal/vector"
)

const (
	// DefaultMinSimilarity is the starting similarity threshold for a search.
	DefaultMinSimilarity = 0.7
	// DefaultTopK is the result count used when the caller passes topK <= 0.
	DefaultTopK = 5

	relaxationFloor  = 0.5
	relaxationStep   = 0.1
	maxRelaxAttempts = 2
	// evidenceGate is the best-candidate similarity below which relaxation is
	// pointless: the corpus holds nothing related to the query.
	evidenceGate = 0.25

	minOverfetch = 20
)

// Embedder produces unit-normalized query vectors.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the slice of the vector index the engine needs.
type Searcher interface {
	Query(embedding []float32, k int, allowDocs []string) []vector.Match
	Get(chunkID string) (kb.Chunk, bool)
	Count() int
}

// Engine runs similarity search with adaptive threshold relaxation. It is
// stateless between calls and safe for concurrent use.
type Engine struct {
	embedder Embedder
	index    Searcher
}

// NewEngine wires a retrieval engine over an embedder and a vector index.
func NewEngine(embedder Embedder, index Searcher) *Engine {
	return &Engine{embedder: embedder, index: index}
}

// Search embeds the query and returns the topK chunks at or above
// minSimilarity, highest similarity first. When the initial threshold yields
// nothing and the corpus shows at least weak evidence for the query, the
// threshold is lowered stepwise (never below the floor, at most twice). An
// empty docIDs slice searches the whole index.
func (e *Engine) Search(ctx context.Context, query string, docIDs []string, topK int, minSimilarity float64) ([]kb.ScoredChunk, error) {
	if e == nil || e.embedder == nil || e.index == nil {
		return nil, fmt.Errorf("retriever not configured")
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}

	start := time.Now()
	embedding, err := e.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates := e.collect(embedding, topK, docIDs)
	logger := common.Logger()

	threshold := minSimilarity
	attempts := 0
	for {
		results := selectAbove(candidates, threshold, topK)
		if len(results) > 0 {
			telemetry.RecordSearch(len(results), attempts, time.Since(start))
			return results, nil
		}
		best := 0.0
		if len(candidates) > 0 {
			best = candidates[0].Similarity
		}
		if best < evidenceGate || threshold <= relaxationFloor || attempts >= maxRelaxAttempts {
			logger.Debug("retriever: no results", "threshold", threshold, "best", best, "attempts", attempts)
			telemetry.RecordSearch(0, attempts, time.Since(start))
			return nil, nil
		}
		next := threshold - relaxationStep
		if next < relaxationFloor {
			next = relaxationFloor
		}
		logger.Debug("retriever: relaxing threshold", "from", threshold, "to", next, "best", best)
		threshold = next
		attempts++
	}
}

// collect over-fetches nearest neighbors and converts distances to clamped
// similarities, sorted highest first. Candidates arrive from the index in
// distance order, so the stable sort keeps insertion order among ties.
func (e *Engine) collect(embedding []float32, topK int, docIDs []string) []kb.ScoredChunk {
	fetch := topK * 2
	if fetch < minOverfetch {
		fetch = minOverfetch
	}
	if total := e.index.Count(); fetch > total {
		fetch = total
	}
	if fetch == 0 {
		return nil
	}

	matches := e.index.Query(embedding, fetch, docIDs)
	candidates := make([]kb.ScoredChunk, 0, len(matches))
	for _, match := range matches {
		chunk, ok := e.index.Get(match.ChunkID)
		if !ok {
			continue
		}
		candidates = append(candidates, kb.ScoredChunk{
			ChunkID:    chunk.ID,
			Content:    chunk.Content,
			Metadata:   chunk.Metadata,
			Similarity: similarityFromDistance(match.Distance),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	return candidates
}

func selectAbove(candidates []kb.ScoredChunk, threshold float64, topK int) []kb.ScoredChunk {
	var results []kb.ScoredChunk
	for _, c := range candidates {
		if c.Similarity >= threshold {
			results = append(results, c)
			if len(results) == topK {
				break
			}
		}
	}
	return results
}

// similarityFromDistance maps a squared L2 distance to [0, 1]. A negative
// distance is a backend rounding artifact and counts as a perfect match.
func similarityFromDistance(distance float64) float64 {
	if distance < 0 {
		return 1.0
	}
	sim := 1.0 - distance
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
