// File path: internal/retriever/ingest.go
package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/corpusworks/knowledgehub/internal/common"
	"github.com/corpusworks/knowledgehub/internal/common/telemetry"
	"github.com/corpusworks/knowledgehub/internal/embedding"
	"github.com/corpusworks/knowledgehub/internal/kb"
)

// Indexer is the slice of the vector index the ingestion pipeline needs.
type Indexer interface {
	Upsert(ctx context.Context, chunks []kb.Chunk) error
	HasDoc(docID string) bool
}

// DocumentInput is one document submitted for ingestion.
type DocumentInput struct {
	Content  string            `json:"content"`
	Filename string            `json:"filename"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IngestResult reports what happened to one document.
type IngestResult struct {
	DocID           string `json:"doc_id"`
	ChunkCount      int    `json:"chunk_count"`
	DroppedChunks   int    `json:"dropped_chunks"`
	AlreadyIngested bool   `json:"already_ingested"`
	Skipped         bool   `json:"skipped"`
}

// BatchItemError pairs a batch position with the error that stopped it.
type BatchItemError struct {
	Position int
	Err      error
}

func (e BatchItemError) Error() string {
	return fmt.Sprintf("document %d: %v", e.Position, e.Err)
}

func (e BatchItemError) Unwrap() error { return e.Err }

// Pipeline turns raw documents into indexed chunks: normalization pass
// selection, splitting, quality filtering, embedding, then the index write.
type Pipeline struct {
	chunker  *kb.Chunker
	embedder *embedding.Provider
	index    Indexer
}

// NewPipeline wires an ingestion pipeline.
func NewPipeline(chunker *kb.Chunker, embedder *embedding.Provider, index Indexer) *Pipeline {
	return &Pipeline{chunker: chunker, embedder: embedder, index: index}
}

// ProcessDocument ingests one document. Ingestion is idempotent: the document
// id is derived from content and filename, and a document already present in
// the index is acknowledged without re-processing. Empty content is a no-op.
func (p *Pipeline) ProcessDocument(ctx context.Context, input DocumentInput) (IngestResult, error) {
	if p == nil || p.chunker == nil || p.embedder == nil || p.index == nil {
		return IngestResult{}, fmt.Errorf("ingestion pipeline not configured")
	}
	if strings.TrimSpace(input.Content) == "" {
		return IngestResult{Skipped: true}, nil
	}

	docID := kb.DocID(input.Content, input.Filename)
	if p.index.HasDoc(docID) {
		common.Logger().Debug("ingest: document already indexed", "doc", docID)
		return IngestResult{DocID: docID, AlreadyIngested: true}, nil
	}

	ctx, done := telemetry.StartSpan(ctx, "ingest.document")
	defer done("doc", docID)

	pass := kb.PassForMetadata(input.Metadata)
	raw := p.chunker.Split(input.Content)

	chunks := make([]kb.Chunk, 0, len(raw))
	texts := make([]string, 0, len(raw))
	dropped := 0
	for _, segment := range raw {
		content := kb.Normalize(segment.Text, pass)
		quality := kb.Score(content)
		if quality < kb.MinQuality {
			dropped++
			continue
		}
		metadata := cloneMetadata(input.Metadata)
		metadata["filename"] = input.Filename
		metadata["normalization_pass"] = pass
		chunks = append(chunks, kb.Chunk{
			ID:       kb.NewChunkID(),
			DocID:    docID,
			Content:  content,
			Index:    segment.Index,
			Quality:  quality,
			Metadata: metadata,
		})
		texts = append(texts, content)
	}

	if len(chunks) == 0 {
		common.Logger().Warn("ingest: all chunks filtered", "doc", docID, "dropped", dropped)
		telemetry.RecordIngest(0, dropped)
		return IngestResult{DocID: docID, DroppedChunks: dropped, Skipped: true}, nil
	}

	vectors, err := p.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return IngestResult{}, fmt.Errorf("embed document %s: %w", docID, err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}

	if err := p.index.Upsert(ctx, chunks); err != nil {
		return IngestResult{}, fmt.Errorf("index document %s: %w", docID, err)
	}

	telemetry.RecordIngest(len(chunks), dropped)
	common.Logger().Info("ingest: document indexed", "doc", docID, "chunks", len(chunks), "dropped", dropped, "pass", pass)
	return IngestResult{DocID: docID, ChunkCount: len(chunks), DroppedChunks: dropped}, nil
}

// ProcessBatch ingests documents sequentially. A failing document does not
// stop the batch; its error is collected with its position and the remaining
// documents still run.
func (p *Pipeline) ProcessBatch(ctx context.Context, inputs []DocumentInput) ([]IngestResult, []BatchItemError) {
	results := make([]IngestResult, 0, len(inputs))
	var failures []BatchItemError
	for i, input := range inputs {
		result, err := p.ProcessDocument(ctx, input)
		if err != nil {
			failures = append(failures, BatchItemError{Position: i, Err: err})
			results = append(results, IngestResult{Skipped: true})
			continue
		}
		results = append(results, result)
	}
	return results, failures
}

func cloneMetadata(metadata map[string]string) map[string]string {
	out := make(map[string]string, len(metadata)+2)
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
