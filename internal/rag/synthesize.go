package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/finbotd/internal/vectorstore"
)

// insufficientContextAnswer is returned when retrieval finds nothing. It is a
// valid answer, not an error, and the LLM is never invoked for it.
const insufficientContextAnswer = "I don't have enough information in this session's documents to answer that. Try uploading a document or adding a URL first."

// synthesize builds the grounded prompt from the retrieved chunks and asks
// the chat model for an answer. Confidence is the top retrieval similarity.
func (s *Service) synthesize(ctx context.Context, question string, results []vectorstore.SearchResult, apiKey string) (*QueryResult, error) {
	if len(results) == 0 {
		return &QueryResult{
			Answer:     insufficientContextAnswer,
			Sources:    []string{},
			Confidence: 0,
		}, nil
	}

	answer, err := s.embedder(apiKey).Complete(ctx, buildPrompt(question, results))
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &QueryResult{
		Answer:     strings.TrimSpace(answer),
		Sources:    sourceNames(results),
		Confidence: results[0].Score,
	}, nil
}

// buildPrompt embeds the retrieved chunk texts, most similar first, followed
// by the question and an instruction to stay within the given context.
func buildPrompt(question string, results []vectorstore.SearchResult) string {
	var b strings.Builder
	b.WriteString("Based on the following financial information, answer the user's question accurately and helpfully.\n\n")
	b.WriteString("Context:\n")
	for _, r := range results {
		b.WriteString(r.Text)
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer: Provide a clear, accurate response based on the context. If the context doesn't contain enough information, say so.")
	return b.String()
}

// sourceNames returns the distinct document display names backing the
// results, in first-seen order.
func sourceNames(results []vectorstore.SearchResult) []string {
	seen := make(map[string]struct{}, len(results))
	names := make([]string, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.DocumentName]; ok {
			continue
		}
		seen[r.DocumentName] = struct{}{}
		names = append(names, r.DocumentName)
	}
	return names
}
