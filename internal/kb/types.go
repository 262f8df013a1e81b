// File path: internal/kb/types.go
package kb

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// RawChunk is a split segment before normalization and quality filtering.
type RawChunk struct {
	Text  string `json:"text"`
	Index int    `json:"index"`
}

// Chunk is the unit stored in the vector index. Chunks are immutable once
// stored; re-ingesting a document never rewrites existing chunk rows.
type Chunk struct {
	ID        string            `json:"id"`
	DocID     string            `json:"doc_id"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"-"`
	Index     int               `json:"chunk_index"`
	Quality   float64           `json:"quality"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// KnowledgeBase is a user-named grouping of documents. DocumentCount is a
// denormalized counter kept transactionally in step with the association
// table.
type KnowledgeBase struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Description   string    `db:"description" json:"description,omitempty"`
	Color         string    `db:"color" json:"color"`
	DocumentCount int       `db:"document_count" json:"document_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Association links a document to a knowledge base; unique on the pair.
type Association struct {
	KnowledgeBaseID string    `db:"knowledge_base_id" json:"knowledge_base_id"`
	DocID           string    `db:"doc_id" json:"doc_id"`
	AddedAt         time.Time `db:"added_at" json:"added_at"`
}

// DocumentInfo is the document-level view derived by aggregating a document's
// chunks; no separate document record exists.
type DocumentInfo struct {
	DocID      string `json:"doc_id"`
	Filename   string `json:"filename,omitempty"`
	ChunkCount int    `json:"chunk_count"`
}

// ScoredChunk is a retrieval result.
type ScoredChunk struct {
	ChunkID    string            `json:"chunk_id"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Similarity float64           `json:"similarity"`
}

// DocID derives the content-addressed document identifier. Identical
// (content, filename) pairs always map to the same document.
func DocID(content, filename string) string {
	sum := sha256.Sum256([]byte(content + filename))
	return hex.EncodeToString(sum[:])
}

// NewChunkID returns a fresh chunk identifier.
func NewChunkID() string {
	return uuid.NewString()
}
