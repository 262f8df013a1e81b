// File path: internal/embedding/provider.go
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/corpusworks/knowledgehub/internal/common"
	"github.com/corpusworks/knowledgehub/internal/common/telemetry"
	"github.com/corpusworks/knowledgehub/internal/llm"
)

// ErrUnavailable reports that no embedding backend passed its probe. Without
// one the engine can neither ingest nor search, so this is fatal at startup.
var ErrUnavailable = errors.New("no usable embedding backend")

// Provider wraps a language-model backend and guarantees every vector it
// returns is L2-normalized. A zero vector normalizes to itself.
//
// The request path is stateless; Provider is safe for concurrent use.
type Provider struct {
	backend llm.Provider
	cache   *vectorCache
}

// New verifies the primary backend with a one-time probe embedding and falls
// back to the secondary on failure. If both backends fail, the engine cannot
// ingest or query and the error is fatal to the caller.
func New(ctx context.Context, primary, fallback llm.Provider) (*Provider, error) {
	logger := common.Logger()
	if primary != nil {
		if err := probe(ctx, primary); err == nil {
			logger.Info("embedding: provider ready", "backend", primary.Name())
			return &Provider{backend: primary, cache: newVectorCache(cacheSize())}, nil
		} else {
			logger.Warn("embedding: primary backend failed, trying fallback", "backend", primary.Name(), "error", err)
		}
	}
	if fallback != nil {
		if err := probe(ctx, fallback); err == nil {
			logger.Info("embedding: fallback provider ready", "backend", fallback.Name())
			return &Provider{backend: fallback, cache: newVectorCache(cacheSize())}, nil
		} else {
			logger.Error("embedding: fallback backend failed", "backend", fallback.Name(), "error", err)
		}
	}
	return nil, ErrUnavailable
}

func probe(ctx context.Context, provider llm.Provider) error {
	vectors, err := provider.Embed(ctx, []string{"ping"})
	if err != nil {
		return err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return fmt.Errorf("backend %s returned an empty probe vector", provider.Name())
	}
	return nil
}

func cacheSize() int {
	if raw := strings.TrimSpace(os.Getenv("KHUB_EMBED_CACHE_SIZE")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			return value
		}
	}
	return 128
}

// Backend reports the active backend name.
func (p *Provider) Backend() string {
	return p.backend.Name()
}

// EmbedOne embeds a single text, consulting the query cache first.
func (p *Provider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := p.cache.Get(text); ok {
		telemetry.RecordEmbedCache(true)
		return vec, nil
	}
	telemetry.RecordEmbedCache(false)
	vectors, err := p.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	p.cache.Set(text, vectors[0])
	return vectors[0], nil
}

// EmbedMany embeds a batch of texts. The cache is bypassed: ingestion batches
// are effectively unique.
func (p *Provider) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return p.embed(ctx, texts)
}

func (p *Provider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := p.backend.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("backend returned %d vectors for %d inputs", len(vectors), len(texts))
	}
	for i := range vectors {
		vectors[i] = Normalize(vectors[i])
	}
	return vectors, nil
}

// Normalize scales v to unit L2 norm in place and returns it. The zero vector
// is returned unchanged to avoid a divide by zero.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
