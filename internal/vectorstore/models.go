package vectorstore

import "errors"

// Sentinel errors for vector store operations.
var (
	// ErrEmptyChunks indicates empty or nil chunks.
	ErrEmptyChunks = errors.New("empty or nil chunks")

	// ErrDimensionMismatch is returned when an embedding's dimension does not
	// match the store's dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrStoreClosed is returned when operating on a dropped store.
	ErrStoreClosed = errors.New("vector store closed")
)

// Chunk is a stored passage with its embedding. Chunks are immutable once
// inserted.
type Chunk struct {
	// ID is the unique chunk identifier.
	ID string

	// DocumentID identifies the owning document.
	DocumentID string

	// DocumentName is the owning document's display name, carried here so
	// search results can attribute sources without a catalog lookup.
	DocumentName string

	// Index is the chunk's position within its document's reading order.
	Index int

	// Text is the raw chunk text.
	Text string

	// Start and End are byte offsets into the extracted source text.
	Start int
	End   int

	// Embedding is the chunk's vector. All chunks in a store share one
	// dimension, fixed by the first insert.
	Embedding []float32
}

// SearchResult is one retrieved chunk with its similarity score.
type SearchResult struct {
	Chunk

	// Score is cosine similarity clamped to [0, 1].
	Score float32
}
