// File path: internal/vector/index.go
package vector

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/corpusworks/knowledgehub/internal/common"
	"github.com/corpusworks/knowledgehub/internal/common/telemetry"
	"github.com/corpusworks/knowledgehub/internal/kb"
	"github.com/corpusworks/knowledgehub/internal/sqlite"
)

// Match is a nearest-neighbor candidate: squared L2 distance between the
// query and the chunk embedding, over unit-normalized vectors.
type Match struct {
	ChunkID  string
	Distance float64
}

// Index is the persistent chunk store. Vectors are held in memory for
// scanning and written through to SQLite; Open rehydrates from the chunks
// table. All methods are safe for concurrent use, and a query never observes
// a partially registered chunk.
type Index struct {
	mu    sync.RWMutex
	store *sqlite.Store

	chunks map[string]kb.Chunk
	byDoc  map[string][]string
}

// Open loads the index from the backing store.
func Open(ctx context.Context, store *sqlite.Store) (*Index, error) {
	if store == nil {
		return nil, errors.New("sqlite store required")
	}
	loaded, err := store.AllChunks(ctx)
	if err != nil {
		return nil, err
	}
	ix := &Index{
		store:  store,
		chunks: make(map[string]kb.Chunk, len(loaded)),
		byDoc:  make(map[string][]string),
	}
	for _, chunk := range loaded {
		ix.chunks[chunk.ID] = chunk
		ix.byDoc[chunk.DocID] = append(ix.byDoc[chunk.DocID], chunk.ID)
	}
	common.Logger().Info("vector: index loaded", "chunks", len(ix.chunks), "documents", len(ix.byDoc))
	return ix, nil
}

// Upsert adds new chunks. Chunks whose id is already present are skipped
// (idempotent by id, not by content). The durable write happens before the
// in-memory registration, so a failed write leaves the index unchanged.
func (ix *Index) Upsert(ctx context.Context, chunks []kb.Chunk) error {
	if ix == nil {
		return errors.New("vector index not configured")
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := telemetry.CheckMemoryBudget("vector"); err != nil {
		return err
	}

	ix.mu.RLock()
	fresh := make([]kb.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if _, exists := ix.chunks[chunk.ID]; !exists {
			fresh = append(fresh, chunk)
		}
	}
	ix.mu.RUnlock()
	if len(fresh) == 0 {
		return nil
	}

	if err := ix.store.InsertChunks(ctx, fresh); err != nil {
		return err
	}

	ix.mu.Lock()
	for _, chunk := range fresh {
		if _, exists := ix.chunks[chunk.ID]; exists {
			continue
		}
		ix.chunks[chunk.ID] = chunk
		ix.byDoc[chunk.DocID] = append(ix.byDoc[chunk.DocID], chunk.ID)
	}
	ix.mu.Unlock()
	return nil
}

// Query returns up to k nearest neighbors by squared L2 distance. A non-nil
// allow list restricts candidates to chunks of the listed documents.
func (ix *Index) Query(embedding []float32, k int, allowDocs []string) []Match {
	if ix == nil || k <= 0 || len(embedding) == 0 {
		return nil
	}
	var allow map[string]struct{}
	if len(allowDocs) > 0 {
		allow = make(map[string]struct{}, len(allowDocs))
		for _, doc := range allowDocs {
			allow[doc] = struct{}{}
		}
	}

	ix.mu.RLock()
	matches := make([]Match, 0, len(ix.chunks))
	for id, chunk := range ix.chunks {
		if allow != nil {
			if _, ok := allow[chunk.DocID]; !ok {
				continue
			}
		}
		matches = append(matches, Match{ChunkID: id, Distance: squaredL2(embedding, chunk.Embedding)})
	}
	ix.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Get returns the chunk for an id.
func (ix *Index) Get(chunkID string) (kb.Chunk, bool) {
	if ix == nil {
		return kb.Chunk{}, false
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	chunk, ok := ix.chunks[chunkID]
	return chunk, ok
}

// GetByDoc returns a document's chunks ordered by chunk index.
func (ix *Index) GetByDoc(docID string) []kb.Chunk {
	if ix == nil {
		return nil
	}
	ix.mu.RLock()
	ids := ix.byDoc[docID]
	chunks := make([]kb.Chunk, 0, len(ids))
	for _, id := range ids {
		if chunk, ok := ix.chunks[id]; ok {
			chunks = append(chunks, chunk)
		}
	}
	ix.mu.RUnlock()
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks
}

// DeleteByDoc removes all chunks for a document and reports whether any
// existed.
func (ix *Index) DeleteByDoc(ctx context.Context, docID string) (bool, error) {
	if ix == nil {
		return false, errors.New("vector index not configured")
	}
	if _, err := ix.store.DeleteChunksByDoc(ctx, docID); err != nil {
		return false, err
	}
	ix.mu.Lock()
	ids, existed := ix.byDoc[docID]
	for _, id := range ids {
		delete(ix.chunks, id)
	}
	delete(ix.byDoc, docID)
	ix.mu.Unlock()
	return existed && len(ids) > 0, nil
}

// HasDoc reports whether any chunk of the document is indexed.
func (ix *Index) HasDoc(docID string) bool {
	if ix == nil {
		return false
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byDoc[docID]) > 0
}

// Count returns the total number of indexed chunks.
func (ix *Index) Count() int {
	if ix == nil {
		return 0
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Documents aggregates the per-document view (filename, chunk count) from the
// indexed chunks; no separate document record exists.
func (ix *Index) Documents() []kb.DocumentInfo {
	if ix == nil {
		return nil
	}
	ix.mu.RLock()
	docs := make([]kb.DocumentInfo, 0, len(ix.byDoc))
	for docID, ids := range ix.byDoc {
		info := kb.DocumentInfo{DocID: docID, ChunkCount: len(ids)}
		for _, id := range ids {
			if chunk, ok := ix.chunks[id]; ok {
				if name := chunk.Metadata["filename"]; name != "" {
					info.Filename = name
					break
				}
			}
		}
		docs = append(docs, info)
	}
	ix.mu.RUnlock()
	sort.Slice(docs, func(i, j int) bool { return docs[i].DocID < docs[j].DocID })
	return docs
}

func squaredL2(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	// Dimension mismatch (mixed models) counts the missing components as
	// maximal disagreement instead of silently truncating.
	for i := n; i < len(a); i++ {
		sum += float64(a[i]) * float64(a[i])
	}
	for i := n; i < len(b); i++ {
		sum += float64(b[i]) * float64(b[i])
	}
	return sum
}
