// Package vectorstore provides per-session vector storage on top of the
// embedded chromem-go database.
//
// Each session owns one collection. Embeddings are computed by the caller
// and handed in precomputed, so the store itself never talks to a provider.
// Search is exact: every stored vector is scored and results are re-ranked
// with a deterministic tie-break (descending similarity, then ascending
// insertion order) before truncating to k.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("finbotd.vectorstore")

// Engine owns the embedded chromem database. Stores created from one engine
// are fully isolated from each other: a chunk inserted into one store can
// never appear in another store's results.
type Engine struct {
	db     *chromem.DB
	logger *zap.Logger

	mu     sync.Mutex
	stores map[string]*Store
}

// NewEngine creates an in-memory engine. Nothing is persisted; dropping a
// store releases its vectors immediately.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		db:     chromem.NewDB(),
		logger: logger,
		stores: make(map[string]*Store),
	}
}

// noEmbeddingFunc satisfies chromem's collection contract. All embeddings in
// this engine are precomputed, so it must never be invoked.
func noEmbeddingFunc(context.Context, string) ([]float32, error) {
	return nil, errors.New("embeddings must be precomputed")
}

// CreateStore creates (or reopens) the store for the named collection.
func (e *Engine) CreateStore(name string) (*Store, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.stores[name]; ok {
		return s, nil
	}
	col, err := e.db.GetOrCreateCollection(name, nil, noEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", name, err)
	}
	s := &Store{
		name:   name,
		col:    col,
		logger: e.logger.With(zap.String("collection", name)),
	}
	e.stores[name] = s
	return s, nil
}

// DropStore deletes the named collection and all its vectors. The store
// handle becomes unusable; dropping an unknown collection is a no-op.
func (e *Engine) DropStore(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.stores[name]; ok {
		s.close()
		delete(e.stores, name)
	}
	if err := e.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	return nil
}

// Store is one session's vector index.
//
// Insert holds the write lock for its whole critical section, so concurrent
// readers see either none or all of a batch, never a partial set. Reads run
// concurrently with each other.
type Store struct {
	name   string
	col    *chromem.Collection
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	dim    int // fixed by the first insert
	seq    int // monotonically increasing insertion counter
	count  int
}

// Count returns the number of stored chunks.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Dimension returns the store's embedding dimension, or 0 before the first
// insert.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Insert adds a batch of chunks atomically with respect to readers.
//
// All chunks must carry embeddings of the store's dimension (the first batch
// fixes it). On any failure no chunk from the batch remains visible.
func (s *Store) Insert(ctx context.Context, chunks []Chunk) error {
	ctx, span := tracer.Start(ctx, "Store.Insert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", s.name),
		attribute.Int("chunk_count", len(chunks)),
	)

	if len(chunks) == 0 {
		return ErrEmptyChunks
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	dim := s.dim
	if dim == 0 {
		dim = len(chunks[0].Embedding)
	}
	for i, c := range chunks {
		if len(c.Embedding) == 0 || len(c.Embedding) != dim {
			err := fmt.Errorf("%w: chunk %d has dimension %d, store dimension is %d",
				ErrDimensionMismatch, i, len(c.Embedding), dim)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	docs := make([]chromem.Document, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Embedding: c.Embedding,
			Metadata: map[string]string{
				"doc_id":   c.DocumentID,
				"doc_name": c.DocumentName,
				"index":    strconv.Itoa(c.Index),
				"start":    strconv.Itoa(c.Start),
				"end":      strconv.Itoa(c.End),
				"seq":      strconv.Itoa(s.seq + i),
			},
		}
	}

	if err := s.col.AddDocuments(ctx, docs, 1); err != nil {
		// Roll back whatever part of the batch made it in. The write lock is
		// still held, so no reader observes the intermediate state.
		for _, id := range ids {
			_ = s.col.Delete(ctx, nil, nil, id)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding chunks: %w", err)
	}

	s.dim = dim
	s.seq += len(chunks)
	s.count = s.col.Count()

	span.SetStatus(codes.Ok, "success")
	s.logger.Debug("inserted chunks",
		zap.Int("count", len(chunks)),
		zap.Int("total", s.count),
	)
	return nil
}

// Search returns the k stored chunks most similar to queryVector, ordered by
// descending cosine similarity with ties broken by ascending insertion order.
// Searching an empty store returns an empty result.
func (s *Store) Search(ctx context.Context, queryVector []float32, k int) ([]SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Store.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", s.name),
		attribute.Int("k", k),
	)

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	total := s.col.Count()
	if total == 0 {
		return []SearchResult{}, nil
	}
	if s.dim != 0 && len(queryVector) != s.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, store dimension is %d",
			ErrDimensionMismatch, len(queryVector), s.dim)
	}

	// Score every stored vector so exact ties can be re-ranked by insertion
	// order; chromem's own ordering for equal similarities is unspecified.
	raw, err := s.col.QueryEmbedding(ctx, queryVector, total, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.name, err)
	}

	type ranked struct {
		res SearchResult
		seq int
	}
	scored := make([]ranked, len(raw))
	for i, r := range raw {
		scored[i] = ranked{
			res: SearchResult{
				Chunk: Chunk{
					ID:           r.ID,
					DocumentID:   r.Metadata["doc_id"],
					DocumentName: r.Metadata["doc_name"],
					Index:        atoi(r.Metadata["index"]),
					Text:         r.Content,
					Start:        atoi(r.Metadata["start"]),
					End:          atoi(r.Metadata["end"]),
				},
				Score: clampScore(r.Similarity),
			},
			seq: atoi(r.Metadata["seq"]),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].res.Score != scored[j].res.Score {
			return scored[i].res.Score > scored[j].res.Score
		}
		return scored[i].seq < scored[j].seq
	})

	if k > len(scored) {
		k = len(scored)
	}
	results := make([]SearchResult, k)
	for i := range results {
		results[i] = scored[i].res
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// close marks the store unusable after its collection is dropped.
func (s *Store) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// clampScore clips cosine similarity into [0, 1]; opposite-direction vectors
// report zero relevance rather than a negative score.
func clampScore(sim float32) float32 {
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
