// File path: internal/registry/cache.go
package registry

import (
	"context"
	"sync"

	"github.com/corpusworks/knowledgehub/internal/common"
)

// associationCache mirrors the knowledge_base_documents table in memory so
// membership reads never touch the database. Mutations are applied only after
// the corresponding transaction commits, so the cache never runs ahead of
// durable state.
type associationCache struct {
	mu     sync.RWMutex
	loaded bool
	byKB   map[string]map[string]struct{}
	byDoc  map[string]map[string]struct{}

	load func(ctx context.Context) (map[string][]string, error)
}

func newAssociationCache(load func(ctx context.Context) (map[string][]string, error)) *associationCache {
	return &associationCache{
		byKB:  make(map[string]map[string]struct{}),
		byDoc: make(map[string]map[string]struct{}),
		load:  load,
	}
}

// ensureLoaded lazily hydrates the cache from the database on first use.
func (c *associationCache) ensureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	assocs, err := c.load(ctx)
	if err != nil {
		return err
	}
	c.byKB = make(map[string]map[string]struct{}, len(assocs))
	c.byDoc = make(map[string]map[string]struct{})
	total := 0
	for kbID, docs := range assocs {
		set := make(map[string]struct{}, len(docs))
		for _, doc := range docs {
			set[doc] = struct{}{}
			if c.byDoc[doc] == nil {
				c.byDoc[doc] = make(map[string]struct{})
			}
			c.byDoc[doc][kbID] = struct{}{}
			total++
		}
		c.byKB[kbID] = set
	}
	c.loaded = true
	common.Logger().Debug("registry: association cache loaded", "knowledge_bases", len(c.byKB), "associations", total)
	return nil
}

func (c *associationCache) add(kbID string, docIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byKB[kbID] == nil {
		c.byKB[kbID] = make(map[string]struct{}, len(docIDs))
	}
	for _, doc := range docIDs {
		c.byKB[kbID][doc] = struct{}{}
		if c.byDoc[doc] == nil {
			c.byDoc[doc] = make(map[string]struct{})
		}
		c.byDoc[doc][kbID] = struct{}{}
	}
}

func (c *associationCache) remove(kbID string, docIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range docIDs {
		delete(c.byKB[kbID], doc)
		if kbs := c.byDoc[doc]; kbs != nil {
			delete(kbs, kbID)
			if len(kbs) == 0 {
				delete(c.byDoc, doc)
			}
		}
	}
}

func (c *associationCache) dropKB(kbID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for doc := range c.byKB[kbID] {
		if kbs := c.byDoc[doc]; kbs != nil {
			delete(kbs, kbID)
			if len(kbs) == 0 {
				delete(c.byDoc, doc)
			}
		}
	}
	delete(c.byKB, kbID)
}

func (c *associationCache) documentsOf(kbID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set := c.byKB[kbID]
	docs := make([]string, 0, len(set))
	for doc := range set {
		docs = append(docs, doc)
	}
	return docs
}

func (c *associationCache) knowledgeBasesOf(docID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set := c.byDoc[docID]
	kbs := make([]string, 0, len(set))
	for kbID := range set {
		kbs = append(kbs, kbID)
	}
	return kbs
}

func (c *associationCache) contains(kbID, docID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byKB[kbID][docID]
	return ok
}
