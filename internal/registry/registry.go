// File path: internal/registry/registry.go
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/corpusworks/knowledgehub/internal/common"
	"github.com/corpusworks/knowledgehub/internal/kb"
	"github.com/corpusworks/knowledgehub/internal/sqlite"
)

var (
	// ErrNotFound reports a knowledge-base id with no record.
	ErrNotFound = errors.New("knowledge base not found")
	// ErrNameTaken reports a create or rename that collides with an existing
	// knowledge-base name.
	ErrNameTaken = errors.New("knowledge base name already in use")
	// ErrUnknownDocument reports an association request naming a document that
	// is not in the index.
	ErrUnknownDocument = errors.New("document not indexed")
)

const defaultColor = "#2563eb"

// DocumentChecker validates that a document exists before it can be
// associated with a knowledge base.
type DocumentChecker interface {
	HasDoc(docID string) bool
}

// Registry manages knowledge bases and their document associations. Metadata
// lives in SQLite; membership is mirrored by a write-through cache so lookup
// paths stay off the database. Mutations on the same knowledge base are
// serialized by a per-id mutex.
type Registry struct {
	store *sqlite.Store
	docs  DocumentChecker
	cache *associationCache

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs a Registry over the store. docs may be nil, which disables
// document existence validation.
func New(store *sqlite.Store, docs DocumentChecker) *Registry {
	r := &Registry{
		store: store,
		docs:  docs,
		locks: make(map[string]*sync.Mutex),
	}
	r.cache = newAssociationCache(r.loadAssociations)
	return r
}

func (r *Registry) lockKB(kbID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[kbID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[kbID] = lock
	}
	return lock
}

func (r *Registry) loadAssociations(ctx context.Context) (map[string][]string, error) {
	var rows []kb.Association
	const query = `SELECT knowledge_base_id, doc_id, added_at FROM knowledge_base_documents`
	if err := r.store.DB().SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load associations: %w", err)
	}
	assocs := make(map[string][]string)
	for _, row := range rows {
		assocs[row.KnowledgeBaseID] = append(assocs[row.KnowledgeBaseID], row.DocID)
	}
	return assocs, nil
}

// Create registers a new knowledge base. Names are unique; an empty color
// gets the default.
func (r *Registry) Create(ctx context.Context, name, description, color string) (kb.KnowledgeBase, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return kb.KnowledgeBase{}, errors.New("knowledge base name required")
	}
	if strings.TrimSpace(color) == "" {
		color = defaultColor
	}
	if err := r.cache.ensureLoaded(ctx); err != nil {
		return kb.KnowledgeBase{}, err
	}

	now := time.Now().UTC()
	record := kb.KnowledgeBase{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Color:       color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	const stmt = `INSERT INTO knowledge_bases (id, name, description, color, document_count, created_at, updated_at)
                VALUES (?, ?, ?, ?, 0, ?, ?)`
	if _, err := r.store.DB().ExecContext(ctx, stmt,
		record.ID, record.Name, record.Description, record.Color, record.CreatedAt, record.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return kb.KnowledgeBase{}, fmt.Errorf("%w: %s", ErrNameTaken, name)
		}
		return kb.KnowledgeBase{}, fmt.Errorf("create knowledge base: %w", err)
	}
	common.Logger().Info("registry: knowledge base created", "id", record.ID, "name", record.Name)
	return record, nil
}

// Get returns a knowledge base by id.
func (r *Registry) Get(ctx context.Context, kbID string) (kb.KnowledgeBase, error) {
	var record kb.KnowledgeBase
	const query = `SELECT id, name, description, color, document_count, created_at, updated_at
                FROM knowledge_bases WHERE id = ?`
	if err := r.store.DB().GetContext(ctx, &record, query, kbID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kb.KnowledgeBase{}, fmt.Errorf("%w: %s", ErrNotFound, kbID)
		}
		return kb.KnowledgeBase{}, fmt.Errorf("get knowledge base: %w", err)
	}
	return record, nil
}

// List returns all knowledge bases ordered by name.
func (r *Registry) List(ctx context.Context) ([]kb.KnowledgeBase, error) {
	var records []kb.KnowledgeBase
	const query = `SELECT id, name, description, color, document_count, created_at, updated_at
                FROM knowledge_bases ORDER BY name`
	if err := r.store.DB().SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list knowledge bases: %w", err)
	}
	return records, nil
}

// GetByName returns a knowledge base by its unique name.
func (r *Registry) GetByName(ctx context.Context, name string) (kb.KnowledgeBase, error) {
	var record kb.KnowledgeBase
	const query = `SELECT id, name, description, color, document_count, created_at, updated_at
                FROM knowledge_bases WHERE name = ?`
	if err := r.store.DB().GetContext(ctx, &record, query, strings.TrimSpace(name)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kb.KnowledgeBase{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return kb.KnowledgeBase{}, fmt.Errorf("get knowledge base by name: %w", err)
	}
	return record, nil
}

// Update changes name, description, or color. Nil fields are left untouched.
func (r *Registry) Update(ctx context.Context, kbID string, name, description, color *string) (kb.KnowledgeBase, error) {
	lock := r.lockKB(kbID)
	lock.Lock()
	defer lock.Unlock()

	record, err := r.Get(ctx, kbID)
	if err != nil {
		return kb.KnowledgeBase{}, err
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return kb.KnowledgeBase{}, errors.New("knowledge base name required")
		}
		record.Name = trimmed
	}
	if description != nil {
		record.Description = strings.TrimSpace(*description)
	}
	if color != nil && strings.TrimSpace(*color) != "" {
		record.Color = strings.TrimSpace(*color)
	}
	record.UpdatedAt = time.Now().UTC()

	const stmt = `UPDATE knowledge_bases SET name = ?, description = ?, color = ?, updated_at = ? WHERE id = ?`
	if _, err := r.store.DB().ExecContext(ctx, stmt,
		record.Name, record.Description, record.Color, record.UpdatedAt, kbID,
	); err != nil {
		if isUniqueViolation(err) {
			return kb.KnowledgeBase{}, fmt.Errorf("%w: %s", ErrNameTaken, record.Name)
		}
		return kb.KnowledgeBase{}, fmt.Errorf("update knowledge base: %w", err)
	}
	return record, nil
}

// Delete removes a knowledge base and cascades its associations. Indexed
// chunks are untouched: documents outlive any knowledge base. Deleting a
// missing id is reported via ErrNotFound.
func (r *Registry) Delete(ctx context.Context, kbID string) error {
	lock := r.lockKB(kbID)
	lock.Lock()
	defer lock.Unlock()

	if err := r.cache.ensureLoaded(ctx); err != nil {
		return err
	}
	res, err := r.store.DB().ExecContext(ctx, `DELETE FROM knowledge_bases WHERE id = ?`, kbID)
	if err != nil {
		return fmt.Errorf("delete knowledge base: %w", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, kbID)
	}
	r.cache.dropKB(kbID)
	common.Logger().Info("registry: knowledge base deleted", "id", kbID)
	return nil
}

// AddDocuments associates documents with a knowledge base. Already-present
// documents are ignored (set semantics); unknown documents fail the whole
// call before any write. The denormalized document_count is recomputed inside
// the same transaction as the association rows.
func (r *Registry) AddDocuments(ctx context.Context, kbID string, docIDs []string) (kb.KnowledgeBase, error) {
	lock := r.lockKB(kbID)
	lock.Lock()
	defer lock.Unlock()

	if err := r.cache.ensureLoaded(ctx); err != nil {
		return kb.KnowledgeBase{}, err
	}
	if _, err := r.Get(ctx, kbID); err != nil {
		return kb.KnowledgeBase{}, err
	}
	if r.docs != nil {
		for _, doc := range docIDs {
			if !r.docs.HasDoc(doc) {
				return kb.KnowledgeBase{}, fmt.Errorf("%w: %s", ErrUnknownDocument, doc)
			}
		}
	}

	fresh := make([]string, 0, len(docIDs))
	seen := make(map[string]struct{}, len(docIDs))
	for _, doc := range docIDs {
		if _, dup := seen[doc]; dup {
			continue
		}
		seen[doc] = struct{}{}
		if !r.cache.contains(kbID, doc) {
			fresh = append(fresh, doc)
		}
	}
	if len(fresh) == 0 {
		return r.Get(ctx, kbID)
	}

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, doc := range fresh {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO knowledge_base_documents (knowledge_base_id, doc_id) VALUES (?, ?)`,
				kbID, doc,
			); err != nil {
				return fmt.Errorf("associate document %q: %w", doc, err)
			}
		}
		return r.refreshCount(ctx, tx, kbID)
	})
	if err != nil {
		return kb.KnowledgeBase{}, err
	}

	r.cache.add(kbID, fresh)
	common.Logger().Info("registry: documents added", "id", kbID, "added", len(fresh))
	return r.Get(ctx, kbID)
}

// RemoveDocuments dissociates documents from a knowledge base. Documents not
// associated are ignored.
func (r *Registry) RemoveDocuments(ctx context.Context, kbID string, docIDs []string) (kb.KnowledgeBase, error) {
	lock := r.lockKB(kbID)
	lock.Lock()
	defer lock.Unlock()

	if err := r.cache.ensureLoaded(ctx); err != nil {
		return kb.KnowledgeBase{}, err
	}
	if _, err := r.Get(ctx, kbID); err != nil {
		return kb.KnowledgeBase{}, err
	}

	present := make([]string, 0, len(docIDs))
	for _, doc := range docIDs {
		if r.cache.contains(kbID, doc) {
			present = append(present, doc)
		}
	}
	if len(present) == 0 {
		return r.Get(ctx, kbID)
	}

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, doc := range present {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM knowledge_base_documents WHERE knowledge_base_id = ? AND doc_id = ?`,
				kbID, doc,
			); err != nil {
				return fmt.Errorf("dissociate document %q: %w", doc, err)
			}
		}
		return r.refreshCount(ctx, tx, kbID)
	})
	if err != nil {
		return kb.KnowledgeBase{}, err
	}

	r.cache.remove(kbID, present)
	common.Logger().Info("registry: documents removed", "id", kbID, "removed", len(present))
	return r.Get(ctx, kbID)
}

// RemoveDocumentEverywhere drops a deleted document's associations from every
// knowledge base it belongs to, keeping each document_count in step.
func (r *Registry) RemoveDocumentEverywhere(ctx context.Context, docID string) error {
	if err := r.cache.ensureLoaded(ctx); err != nil {
		return err
	}
	for _, kbID := range r.cache.knowledgeBasesOf(docID) {
		if _, err := r.RemoveDocuments(ctx, kbID, []string{docID}); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// DocumentsOf returns the document ids associated with a knowledge base,
// sorted for stable output. The boolean reports whether the knowledge base
// exists, distinguishing "empty" from "unknown id".
func (r *Registry) DocumentsOf(ctx context.Context, kbID string) ([]string, bool, error) {
	if err := r.cache.ensureLoaded(ctx); err != nil {
		return nil, false, err
	}
	if _, err := r.Get(ctx, kbID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	docs := r.cache.documentsOf(kbID)
	sort.Strings(docs)
	return docs, true, nil
}

// KnowledgeBasesOf returns the ids of knowledge bases containing a document.
func (r *Registry) KnowledgeBasesOf(ctx context.Context, docID string) ([]string, error) {
	if err := r.cache.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	kbs := r.cache.knowledgeBasesOf(docID)
	sort.Strings(kbs)
	return kbs, nil
}

func (r *Registry) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.store.DB().BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin registry transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registry transaction: %w", err)
	}
	return nil
}

// refreshCount recomputes document_count from the association table inside
// the caller's transaction. Counting beats arithmetic here: the counter can
// never drift from the rows it summarizes.
func (r *Registry) refreshCount(ctx context.Context, tx *sqlx.Tx, kbID string) error {
	const stmt = `UPDATE knowledge_bases
                SET document_count = (SELECT COUNT(*) FROM knowledge_base_documents WHERE knowledge_base_id = ?),
                    updated_at = ?
                WHERE id = ?`
	if _, err := tx.ExecContext(ctx, stmt, kbID, time.Now().UTC(), kbID); err != nil {
		return fmt.Errorf("refresh document count: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}
