package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/finbotd/internal/session"
	"github.com/fyrsmithlabs/finbotd/internal/vectorstore"
)

// seedDocumentName is the catalog display name of the starter document.
const seedDocumentName = "Starter FAQ"

// starterFAQ is a small built-in finance FAQ used to seed fresh sessions
// when seeding is enabled, so a new session can answer basic questions
// before any document is uploaded.
var starterFAQ = []string{
	"What is a savings account? A savings account is a deposit account that earns interest and provides easy access to your money.",
	"How do I apply for a credit card? You can apply for a credit card online, by phone, or at a branch location.",
	"What is compound interest? Compound interest is interest calculated on the initial principal and accumulated interest.",
	"How do I check my account balance? You can check your balance online, through mobile app, ATM, or by calling customer service.",
	"What are the fees for wire transfers? Domestic wire transfers typically cost $15-30, international transfers cost $35-50.",
	"How do I set up direct deposit? Contact your employer's HR department and provide your bank routing and account numbers.",
	"What is the difference between checking and savings? Checking accounts are for daily transactions, savings accounts earn interest.",
	"How do I report a lost or stolen card? Call the customer service number immediately or use the mobile app to report it.",
	"What is APR? Annual Percentage Rate includes interest rate plus other fees expressed as a yearly rate.",
	"How do I dispute a transaction? Contact customer service within 60 days or use online banking to file a dispute.",
}

// seedSession ingests the starter FAQ into a freshly created session. Each
// FAQ entry becomes one chunk; the whole document appears in the catalog
// like any other ingestion.
func (s *Service) seedSession(ctx context.Context, sess *session.Session, apiKey string) error {
	embeddings, err := s.embedder(apiKey).EmbedDocuments(ctx, starterFAQ)
	if err != nil {
		return fmt.Errorf("embedding starter FAQ: %w", err)
	}
	if len(embeddings) != len(starterFAQ) {
		return fmt.Errorf("embedding starter FAQ: got %d vectors for %d entries", len(embeddings), len(starterFAQ))
	}

	docID := uuid.NewString()
	chunks := make([]vectorstore.Chunk, len(starterFAQ))
	offset := 0
	for i, entry := range starterFAQ {
		chunks[i] = vectorstore.Chunk{
			ID:           fmt.Sprintf("%s-%d", docID, i),
			DocumentID:   docID,
			DocumentName: seedDocumentName,
			Index:        i,
			Text:         entry,
			Start:        offset,
			End:          offset + len(entry),
			Embedding:    embeddings[i],
		}
		offset += len(entry) + len("\n")
	}

	doc := session.Document{
		ID:     docID,
		Name:   seedDocumentName,
		Source: session.SourceSeed,
		Kind:   "text",
	}
	if err := sess.AddDocument(ctx, doc, chunks); err != nil {
		return fmt.Errorf("indexing starter FAQ: %w", err)
	}
	return nil
}

// SeedText returns the starter FAQ as one document body. Exposed for tests
// and for operators inspecting what seeding adds to a session.
func SeedText() string {
	return strings.Join(starterFAQ, "\n")
}
