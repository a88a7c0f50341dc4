// Package rag implements the retrieval-augmented answering pipeline:
// document ingestion (extract, chunk, embed, index), per-session retrieval,
// and answer synthesis against an LLM provider.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/finbotd/internal/chunk"
	"github.com/fyrsmithlabs/finbotd/internal/config"
	"github.com/fyrsmithlabs/finbotd/internal/extract"
	"github.com/fyrsmithlabs/finbotd/internal/provider"
	"github.com/fyrsmithlabs/finbotd/internal/session"
	"github.com/fyrsmithlabs/finbotd/internal/vectorstore"
)

var tracer = otel.Tracer("finbotd.rag")

// ErrValidation marks malformed caller input, such as an empty question.
var ErrValidation = errors.New("invalid request")

// Service wires the ingestion and query pipelines together. Provider calls
// run outside any session lock; only the final index insert and catalog
// append happen inside the session's critical section.
type Service struct {
	registry  *session.Registry
	extractor *extract.Extractor
	chunker   *chunk.Chunker
	provider  provider.Provider
	retrieval config.RetrievalConfig
	seedFAQ   bool
	logger    *zap.Logger
}

// New creates the service. The chunker is built from cfg.Chunking.
func New(
	registry *session.Registry,
	extractor *extract.Extractor,
	prov provider.Provider,
	cfg *config.Config,
	logger *zap.Logger,
) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	chunker, err := chunk.New(chunk.Config{
		Size:     cfg.Chunking.Size,
		Overlap:  cfg.Chunking.Overlap,
		MinChars: cfg.Chunking.MinChars,
	})
	if err != nil {
		return nil, fmt.Errorf("building chunker: %w", err)
	}
	return &Service{
		registry:  registry,
		extractor: extractor,
		chunker:   chunker,
		provider:  prov,
		retrieval: cfg.Retrieval,
		seedFAQ:   cfg.Ingest.SeedFAQ,
		logger:    logger,
	}, nil
}

// IngestResult reports a completed ingestion.
type IngestResult struct {
	SessionID string
	Document  session.Document
}

// Ingest runs the full pipeline for one input: extract, chunk, embed, then
// insert atomically into the session's store. An empty sessionID mints a new
// session. On any failure nothing from the document is indexed.
func (s *Service) Ingest(ctx context.Context, sessionID string, in extract.Input, apiKey string) (*IngestResult, error) {
	ctx, span := tracer.Start(ctx, "Service.Ingest")
	defer span.End()

	sess, err := s.getOrCreate(ctx, sessionID, apiKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("session_id", sess.ID))

	source := session.SourceUpload
	if in.URL != "" {
		source = session.SourceURL
	}

	doc, err := s.ingestDocument(ctx, sess, in, source, apiKey)
	if err != nil {
		IngestsTotal.WithLabelValues(string(source), "error").Inc()
		recordProviderFailure(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	IngestsTotal.WithLabelValues(string(source), "success").Inc()
	IngestedChunks.Add(float64(doc.ChunkCount))

	span.SetAttributes(
		attribute.String("document_kind", doc.Kind),
		attribute.Int("chunk_count", doc.ChunkCount),
	)
	span.SetStatus(codes.Ok, "success")
	return &IngestResult{SessionID: sess.ID, Document: doc}, nil
}

// ingestDocument runs extract through index insert for one input. Provider
// embedding happens before the session lock is taken.
func (s *Service) ingestDocument(ctx context.Context, sess *session.Session, in extract.Input, source session.SourceKind, apiKey string) (session.Document, error) {
	var none session.Document

	res, err := s.extractor.Extract(ctx, in)
	if err != nil {
		return none, err
	}

	spans, err := s.chunker.Chunk(res.Text)
	if err != nil {
		if errors.Is(err, chunk.ErrEmptyContent) {
			return none, extract.ErrEmptyContent
		}
		return none, fmt.Errorf("chunking %s: %w", res.SourceName, err)
	}

	texts := make([]string, len(spans))
	for i, sp := range spans {
		texts[i] = sp.Text
	}
	embeddings, err := s.embedder(apiKey).EmbedDocuments(ctx, texts)
	if err != nil {
		return none, fmt.Errorf("embedding %s: %w", res.SourceName, err)
	}
	if len(embeddings) != len(spans) {
		return none, fmt.Errorf("embedding %s: got %d vectors for %d chunks", res.SourceName, len(embeddings), len(spans))
	}

	docID := uuid.NewString()
	chunks := make([]vectorstore.Chunk, len(spans))
	for i, sp := range spans {
		chunks[i] = vectorstore.Chunk{
			ID:           fmt.Sprintf("%s-%d", docID, i),
			DocumentID:   docID,
			DocumentName: res.SourceName,
			Index:        i,
			Text:         sp.Text,
			Start:        sp.Start,
			End:          sp.End,
			Embedding:    embeddings[i],
		}
	}

	doc := session.Document{
		ID:     docID,
		Name:   res.SourceName,
		Source: source,
		Kind:   string(res.Kind),
	}
	if err := sess.AddDocument(ctx, doc, chunks); err != nil {
		return none, fmt.Errorf("indexing %s: %w", res.SourceName, err)
	}
	doc.ChunkCount = len(chunks)

	s.logger.Info("document ingested",
		zap.String("session_id", sess.ID),
		zap.String("document", res.SourceName),
		zap.String("kind", string(res.Kind)),
		zap.Int("chunks", len(chunks)),
	)
	return doc, nil
}

// QueryResult is the response to a question.
type QueryResult struct {
	SessionID  string
	Answer     string
	Sources    []string
	Confidence float32
}

// Query answers a question against the session's knowledge base. An empty
// sessionID mints a new session; the caller must return the ID to the client.
func (s *Service) Query(ctx context.Context, sessionID, question string, k int, apiKey string) (*QueryResult, error) {
	ctx, span := tracer.Start(ctx, "Service.Query")
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question must not be empty", ErrValidation)
	}
	if k == 0 {
		k = s.retrieval.DefaultK
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: max_results must be at least 1", ErrValidation)
	}
	if k > s.retrieval.MaxK {
		k = s.retrieval.MaxK
	}

	sess, err := s.getOrCreate(ctx, sessionID, apiKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("session_id", sess.ID), attribute.Int("k", k))

	results, err := s.retrieveFrom(ctx, sess, question, k, apiKey)
	if err != nil {
		QueriesTotal.WithLabelValues("error").Inc()
		recordProviderFailure(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	answer, err := s.synthesize(ctx, question, results, apiKey)
	if err != nil {
		QueriesTotal.WithLabelValues("error").Inc()
		recordProviderFailure(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	answer.SessionID = sess.ID
	if len(results) == 0 {
		QueriesTotal.WithLabelValues("empty").Inc()
	} else {
		QueriesTotal.WithLabelValues("success").Inc()
	}

	span.SetAttributes(attribute.Int("retrieved", len(results)))
	span.SetStatus(codes.Ok, "success")
	return answer, nil
}

// Retrieve embeds the question and returns the k closest chunks from an
// existing session. Unseen sessions fail with session.ErrNotFound.
func (s *Service) Retrieve(ctx context.Context, sessionID, question string, k int, apiKey string) ([]vectorstore.SearchResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question must not be empty", ErrValidation)
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1", ErrValidation)
	}
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.retrieveFrom(ctx, sess, question, k, apiKey)
}

func (s *Service) retrieveFrom(ctx context.Context, sess *session.Session, question string, k int, apiKey string) ([]vectorstore.SearchResult, error) {
	if sess.ChunkCount() == 0 {
		// An existing but empty session yields empty retrieval, not an
		// error, and costs no provider call.
		return []vectorstore.SearchResult{}, nil
	}
	queryVector, err := s.embedder(apiKey).EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}
	return sess.Search(ctx, queryVector, k)
}

// Documents lists the session's catalog. Unseen sessions fail with
// session.ErrNotFound.
func (s *Service) Documents(sessionID string) ([]session.Document, error) {
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Documents(), nil
}

// getOrCreate resolves the session, running first-touch seeding on creation.
func (s *Service) getOrCreate(ctx context.Context, sessionID, apiKey string) (*session.Session, error) {
	sess, created, err := s.registry.GetOrCreate(sessionID)
	if err != nil {
		return nil, err
	}
	if created && s.seedFAQ {
		if err := s.seedSession(ctx, sess, apiKey); err != nil {
			s.logger.Warn("starter FAQ seeding failed",
				zap.String("session_id", sess.ID),
				zap.Error(err),
			)
		}
	}
	return sess, nil
}

// embedder returns the provider bound to a per-request API key, if one was
// supplied. The key lives only for the duration of the request.
func (s *Service) embedder(apiKey string) provider.Provider {
	if apiKey == "" {
		return s.provider
	}
	return s.provider.WithAPIKey(apiKey)
}
