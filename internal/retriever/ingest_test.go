// File path: internal/retriever/ingest_test.go
package retriever

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/corpusworks/knowledgehub/internal/embedding"
	"github.com/corpusworks/knowledgehub/internal/kb"
	"github.com/corpusworks/knowledgehub/internal/llm"
)

type stubLLM struct{}

func (stubLLM) Name() string { return "stub" }

func (stubLLM) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return "", errors.New("not implemented")
}

func (stubLLM) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 2, 3}
	}
	return vectors, nil
}

// fakeIndexer records upserts in memory.
type fakeIndexer struct {
	chunks  []kb.Chunk
	docs    map[string]struct{}
	failure error
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{docs: make(map[string]struct{})}
}

func (f *fakeIndexer) Upsert(ctx context.Context, chunks []kb.Chunk) error {
	if f.failure != nil {
		return f.failure
	}
	f.chunks = append(f.chunks, chunks...)
	for _, chunk := range chunks {
		f.docs[chunk.DocID] = struct{}{}
	}
	return nil
}

func (f *fakeIndexer) HasDoc(docID string) bool {
	_, ok := f.docs[docID]
	return ok
}

func newTestPipeline(t *testing.T, index Indexer) *Pipeline {
	t.Helper()
	embedder, err := embedding.New(context.Background(), stubLLM{}, nil)
	if err != nil {
		t.Fatalf("embedding provider: %v", err)
	}
	return NewPipeline(kb.NewChunker(kb.ChunkerConfig{}), embedder, index)
}

func TestProcessDocumentEmptyContent(t *testing.T) {
	pipeline := newTestPipeline(t, newFakeIndexer())
	result, err := pipeline.ProcessDocument(context.Background(), DocumentInput{Content: "  ", Filename: "a.txt"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !result.Skipped {
		t.Fatal("empty content not reported as skipped")
	}
	if result.DocID != "" {
		t.Fatalf("empty content assigned doc id %s", result.DocID)
	}
}

func TestProcessDocumentIngests(t *testing.T) {
	index := newFakeIndexer()
	pipeline := newTestPipeline(t, index)
	input := DocumentInput{
		Content:  "AI is transforming industries. Machine learning enables this.",
		Filename: "a.txt",
	}
	result, err := pipeline.ProcessDocument(context.Background(), input)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.DocID != kb.DocID(input.Content, input.Filename) {
		t.Fatalf("doc id %s does not match content address", result.DocID)
	}
	if result.ChunkCount < 1 {
		t.Fatalf("chunk count = %d, want >= 1", result.ChunkCount)
	}
	for _, chunk := range index.chunks {
		if chunk.Quality < kb.MinQuality {
			t.Fatalf("chunk %s indexed with quality %f", chunk.ID, chunk.Quality)
		}
		if len(chunk.Embedding) == 0 {
			t.Fatalf("chunk %s indexed without embedding", chunk.ID)
		}
		if chunk.Metadata["filename"] != "a.txt" {
			t.Fatalf("chunk %s missing filename metadata", chunk.ID)
		}
	}
}

func TestProcessDocumentIdempotent(t *testing.T) {
	index := newFakeIndexer()
	pipeline := newTestPipeline(t, index)
	input := DocumentInput{
		Content:  "AI is transforming industries. Machine learning enables this.",
		Filename: "a.txt",
	}
	first, err := pipeline.ProcessDocument(context.Background(), input)
	if err != nil {
		t.Fatalf("first process: %v", err)
	}
	stored := len(index.chunks)

	second, err := pipeline.ProcessDocument(context.Background(), input)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if second.DocID != first.DocID {
		t.Fatalf("doc ids differ: %s vs %s", first.DocID, second.DocID)
	}
	if !second.AlreadyIngested {
		t.Fatal("second call not reported as already ingested")
	}
	if len(index.chunks) != stored {
		t.Fatalf("chunk count changed from %d to %d", stored, len(index.chunks))
	}
}

func TestProcessDocumentFiltersNoise(t *testing.T) {
	index := newFakeIndexer()
	pipeline := newTestPipeline(t, index)
	result, err := pipeline.ProcessDocument(context.Background(), DocumentInput{
		Content:  strings.Repeat("!?$%\n", 5),
		Filename: "noise.txt",
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !result.Skipped {
		t.Fatal("all-noise document not reported as skipped")
	}
	if result.DroppedChunks == 0 {
		t.Fatal("no dropped chunks reported")
	}
	if len(index.chunks) != 0 {
		t.Fatalf("noise chunks reached the index: %d", len(index.chunks))
	}
}

func TestProcessBatchCollectsFailures(t *testing.T) {
	index := newFakeIndexer()
	pipeline := newTestPipeline(t, index)

	good := DocumentInput{
		Content:  "A perfectly reasonable document about machine learning systems.",
		Filename: "good.txt",
	}
	results, failures := pipeline.ProcessBatch(context.Background(), []DocumentInput{good, {}, good})
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if len(failures) != 0 {
		t.Fatalf("empty document treated as failure: %v", failures)
	}
	if results[0].ChunkCount < 1 {
		t.Fatal("first document not ingested")
	}
	if !results[1].Skipped {
		t.Fatal("empty document not skipped")
	}
	if !results[2].AlreadyIngested {
		t.Fatal("duplicate document not reported as already ingested")
	}
}

func TestProcessBatchContinuesPastErrors(t *testing.T) {
	index := newFakeIndexer()
	index.failure = errors.New("disk full")
	pipeline := newTestPipeline(t, index)

	doc := func(name string) DocumentInput {
		return DocumentInput{
			Content:  "Document body for " + name + " with enough prose to pass the quality filter.",
			Filename: name,
		}
	}
	_, failures := pipeline.ProcessBatch(context.Background(), []DocumentInput{doc("x.txt"), doc("y.txt")})
	if len(failures) != 2 {
		t.Fatalf("got %d failures, want 2", len(failures))
	}
	if failures[0].Position != 0 || failures[1].Position != 1 {
		t.Fatalf("failure positions wrong: %+v", failures)
	}
}
