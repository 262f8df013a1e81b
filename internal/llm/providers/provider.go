// File path: internal/llm/providers/provider.go
package providers

import "context"

// Message is a single chat turn.
type Message struct {
	Role    string
	Content string
}

// Provider is the narrow contract the engine needs from a language-model
// backend: free-text chat plus batch embeddings.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Embed(ctx context.Context, input []string) ([][]float32, error)
	Name() string
}
