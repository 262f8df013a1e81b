// File path: internal/kb/chunker.go
package kb

import (
	"os"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/corpusworks/knowledgehub/internal/common"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// chunkSeparators is the priority order used for recursive splitting:
// paragraph breaks first, then line breaks, then sentence-ending punctuation
// (CJK and Latin), then whitespace, then hard character cuts.
var chunkSeparators = []string{"\n\n", "\n", "。", "！", "？", ". ", "! ", "? ", " ", ""}

// ChunkerConfig controls segment size and overlap, both measured in
// characters.
type ChunkerConfig struct {
	Size    int
	Overlap int
}

// LoadChunkerConfig reads chunker settings from the environment.
func LoadChunkerConfig() ChunkerConfig {
	cfg := ChunkerConfig{Size: defaultChunkSize, Overlap: defaultChunkOverlap}
	if raw := strings.TrimSpace(os.Getenv("KHUB_CHUNK_SIZE")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.Size = value
		}
	}
	if raw := strings.TrimSpace(os.Getenv("KHUB_CHUNK_OVERLAP")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value >= 0 {
			cfg.Overlap = value
		}
	}
	if cfg.Overlap >= cfg.Size {
		cfg.Overlap = cfg.Size / 5
	}
	return cfg
}

// Chunker splits raw document text into overlapping segments suitable for
// embedding.
type Chunker struct {
	cfg      ChunkerConfig
	splitter textsplitter.RecursiveCharacter
}

// NewChunker constructs a Chunker for the given configuration. Zero values
// fall back to the defaults (1000/200).
func NewChunker(cfg ChunkerConfig) *Chunker {
	if cfg.Size <= 0 {
		cfg.Size = defaultChunkSize
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		cfg.Overlap = defaultChunkOverlap
		if cfg.Overlap >= cfg.Size {
			cfg.Overlap = cfg.Size / 5
		}
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.Size),
		textsplitter.WithChunkOverlap(cfg.Overlap),
		textsplitter.WithSeparators(chunkSeparators),
	)
	return &Chunker{cfg: cfg, splitter: splitter}
}

// Config reports the effective chunker configuration.
func (c *Chunker) Config() ChunkerConfig {
	return c.cfg
}

// Split breaks content into ordered RawChunks. Splitter failures degrade to a
// single chunk holding the full text rather than failing the document.
func (c *Chunker) Split(content string) []RawChunk {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}
	parts, err := c.splitter.SplitText(trimmed)
	if err != nil || len(parts) == 0 {
		if err != nil {
			common.Logger().Warn("chunker: split failed, keeping whole document", "error", err)
		}
		parts = []string{trimmed}
	}
	chunks := make([]RawChunk, 0, len(parts))
	for _, part := range parts {
		text := strings.TrimSpace(part)
		if text == "" {
			continue
		}
		chunks = append(chunks, RawChunk{Text: text, Index: len(chunks)})
	}
	return chunks
}
