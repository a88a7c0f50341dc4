// Package session manages per-session state: the session's vector store,
// its document catalog, and activity tracking for TTL eviction.
//
// Sessions are fully isolated from each other. Each owns a dedicated vector
// store, so documents ingested into one session are never visible to another.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/fyrsmithlabs/finbotd/internal/vectorstore"
)

// SourceKind identifies how a document entered the session.
type SourceKind string

const (
	SourceUpload SourceKind = "upload"
	SourceURL    SourceKind = "url"
	SourceSeed   SourceKind = "seed"
)

// Document is one catalog entry. The catalog records what was ingested; the
// chunk text itself lives in the vector store.
type Document struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Source     SourceKind `json:"source"`
	Kind       string     `json:"kind"`
	ChunkCount int        `json:"chunk_count"`
	IngestedAt time.Time  `json:"ingested_at"`
}

// Session is one conversation's ingestion and retrieval state.
//
// The session mutex covers the document catalog and makes an ingest visible
// atomically: readers see the catalog entry and its chunks together or not
// at all.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.RWMutex
	store      *vectorstore.Store
	docs       []Document
	lastActive time.Time
}

func newSession(id string, store *vectorstore.Store, now time.Time) *Session {
	return &Session{
		ID:         id,
		CreatedAt:  now,
		store:      store,
		lastActive: now,
	}
}

// AddDocument inserts a document's chunks and its catalog entry as one
// atomic step. If the store rejects the chunks, the catalog is unchanged and
// no chunk from the batch is searchable.
func (s *Session) AddDocument(ctx context.Context, doc Document, chunks []vectorstore.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Insert(ctx, chunks); err != nil {
		return err
	}
	now := time.Now()
	doc.ChunkCount = len(chunks)
	doc.IngestedAt = now
	s.docs = append(s.docs, doc)
	s.lastActive = now
	return nil
}

// Search returns the k most similar chunks for the query embedding.
func (s *Session) Search(ctx context.Context, queryVector []float32, k int) ([]vectorstore.SearchResult, error) {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()

	s.Touch()
	return store.Search(ctx, queryVector, k)
}

// Documents returns a copy of the catalog in ingestion order.
func (s *Session) Documents() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// ChunkCount returns the number of chunks stored in the session.
func (s *Session) ChunkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Count()
}

// Touch records activity, deferring TTL eviction.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// LastActive returns the time of the most recent activity.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}
