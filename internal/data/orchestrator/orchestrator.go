// File path: internal/data/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/corpusworks/knowledgehub/internal/analyzer"
	"github.com/corpusworks/knowledgehub/internal/common"
	"github.com/corpusworks/knowledgehub/internal/embedding"
	"github.com/corpusworks/knowledgehub/internal/kb"
	"github.com/corpusworks/knowledgehub/internal/llm"
	"github.com/corpusworks/knowledgehub/internal/registry"
	"github.com/corpusworks/knowledgehub/internal/retriever"
	"github.com/corpusworks/knowledgehub/internal/sqlite"
	"github.com/corpusworks/knowledgehub/internal/vector"
)

// Config carries the orchestrator's startup settings. Zero values defer to
// the per-component environment configuration.
type Config struct {
	SQLitePath string
	Chunker    kb.ChunkerConfig
}

// Orchestrator owns the shared service graph: store, index, embedding
// provider, retrieval engine, ingestion pipeline, registry, and analyzer.
type Orchestrator struct {
	store    *sqlite.Store
	index    *vector.Index
	embedder *embedding.Provider
	engine   *retriever.Engine
	pipeline *retriever.Pipeline
	registry *registry.Registry
	analyzer *analyzer.Analyzer
	chat     llm.Provider
}

// New builds the full service graph. A failed embedding probe (both primary
// and fallback) is fatal: neither ingestion nor search can run without one.
func New(ctx context.Context, cfg Config) (*Orchestrator, error) {
	logger := common.Logger()

	store, err := sqlite.Open(strings.TrimSpace(cfg.SQLitePath))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	index, err := vector.Open(ctx, store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open vector index: %w", err)
	}

	chat := llm.NewProvider()
	embedder, err := embedding.New(ctx, chat, llm.NewFallbackProvider())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init embedding provider: %w", err)
	}

	chunkerCfg := cfg.Chunker
	if chunkerCfg.Size <= 0 {
		chunkerCfg = kb.LoadChunkerConfig()
	}
	chunker := kb.NewChunker(chunkerCfg)

	orch := &Orchestrator{
		store:    store,
		index:    index,
		embedder: embedder,
		engine:   retriever.NewEngine(embedder, index),
		pipeline: retriever.NewPipeline(chunker, embedder, index),
		registry: registry.New(store, index),
		analyzer: analyzer.New(chat),
		chat:     chat,
	}
	logger.Info("orchestrator: services ready",
		"chunks", index.Count(), "embedding_backend", embedder.Backend())
	return orch, nil
}

// Engine returns the retrieval engine.
func (o *Orchestrator) Engine() *retriever.Engine { return o.engine }

// Pipeline returns the ingestion pipeline.
func (o *Orchestrator) Pipeline() *retriever.Pipeline { return o.pipeline }

// Index returns the vector index.
func (o *Orchestrator) Index() *vector.Index { return o.index }

// Registry returns the knowledge-base registry.
func (o *Orchestrator) Registry() *registry.Registry { return o.registry }

// Analyzer returns the document analyzer.
func (o *Orchestrator) Analyzer() *analyzer.Analyzer { return o.analyzer }

// Close releases the durable store.
func (o *Orchestrator) Close() error {
	if o == nil || o.store == nil {
		return nil
	}
	return o.store.Close()
}
