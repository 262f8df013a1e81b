// File path: internal/sqlite/chunks.go
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/corpusworks/knowledgehub/internal/kb"
)

type chunkRow struct {
	ID         string  `db:"id"`
	DocID      string  `db:"doc_id"`
	ChunkIndex int     `db:"chunk_index"`
	Content    string  `db:"content"`
	Embedding  []byte  `db:"embedding"`
	Quality    float64 `db:"quality"`
	Metadata   []byte  `db:"metadata"`
}

// InsertChunks persists chunk rows in one transaction. Rows whose id already
// exists are left untouched (idempotent by chunk id).
func (s *Store) InsertChunks(ctx context.Context, chunks []kb.Chunk) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store not initialised")
	}
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin chunk insert: %w", err)
	}
	const stmt = `INSERT OR IGNORE INTO chunks (id, doc_id, chunk_index, content, embedding, quality, metadata)
                VALUES (?, ?, ?, ?, ?, ?, ?)`
	for _, chunk := range chunks {
		metadata, err := json.Marshal(chunk.Metadata)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, stmt,
			chunk.ID, chunk.DocID, chunk.Index, chunk.Content,
			encodeVector(chunk.Embedding), chunk.Quality, metadata,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert chunk %q: %w", chunk.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk insert: %w", err)
	}
	return nil
}

// AllChunks loads every stored chunk, ordered by document and chunk index.
func (s *Store) AllChunks(ctx context.Context) ([]kb.Chunk, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlite store not initialised")
	}
	var rows []chunkRow
	const query = `SELECT id, doc_id, chunk_index, content, embedding, quality, metadata
                FROM chunks ORDER BY doc_id, chunk_index`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	chunks := make([]kb.Chunk, 0, len(rows))
	for _, row := range rows {
		chunk, err := row.toChunk()
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// DeleteChunksByDoc removes all chunk rows for a document and reports how
// many were deleted.
func (s *Store) DeleteChunksByDoc(ctx context.Context, docID string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("sqlite store not initialised")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID)
	if err != nil {
		return 0, fmt.Errorf("delete chunks for %q: %w", docID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

func (r chunkRow) toChunk() (kb.Chunk, error) {
	embedding, err := decodeVector(r.Embedding)
	if err != nil {
		return kb.Chunk{}, fmt.Errorf("decode embedding for chunk %q: %w", r.ID, err)
	}
	var metadata map[string]string
	if len(r.Metadata) > 0 {
		if err := json.Unmarshal(r.Metadata, &metadata); err != nil {
			metadata = nil
		}
	}
	return kb.Chunk{
		ID:        r.ID,
		DocID:     r.DocID,
		Content:   r.Content,
		Embedding: embedding,
		Index:     r.ChunkIndex,
		Quality:   r.Quality,
		Metadata:  metadata,
	}, nil
}

// Embeddings are stored as little-endian float32 blobs.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}
