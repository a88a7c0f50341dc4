// Package provider talks to the external LLM and embedding capability
// providers over the OpenAI-compatible wire format.
package provider

import (
	"context"
	"errors"
)

// Sentinel errors for provider failures. Callers classify with errors.Is to
// distinguish "fix your credentials" from "try again later".
var (
	// ErrAuth indicates the provider rejected the supplied credentials.
	ErrAuth = errors.New("provider rejected credentials")

	// ErrQuota indicates the provider reported rate or quota exhaustion.
	ErrQuota = errors.New("provider quota exhausted")

	// ErrUnavailable indicates a transport-level failure or timeout.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts in one batch.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChatModel generates a completion for a grounded prompt.
type ChatModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Provider is the combined external capability surface. WithAPIKey returns a
// view of the provider using a caller-supplied key for the lifetime of that
// view only; the key is never stored beyond it.
type Provider interface {
	Embedder
	ChatModel
	WithAPIKey(key string) Provider
}
