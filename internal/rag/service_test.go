package rag_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/finbotd/internal/config"
	"github.com/fyrsmithlabs/finbotd/internal/extract"
	"github.com/fyrsmithlabs/finbotd/internal/provider"
	"github.com/fyrsmithlabs/finbotd/internal/rag"
	"github.com/fyrsmithlabs/finbotd/internal/session"
	"github.com/fyrsmithlabs/finbotd/internal/vectorstore"
)

// fakeProvider embeds text into a small keyword-count space so similarity is
// deterministic and roughly topical, and answers every completion with a
// fixed string. Error fields force failures for specific calls.
type fakeProvider struct {
	mu            sync.Mutex
	apiKey        string
	embedCalls    int
	completeCalls int
	lastPrompt    string

	embedErr    error
	completeErr error
}

var keywords = []string{"savings", "credit", "interest", "wire", "deposit"}

func embedText(text string) []float32 {
	lower := strings.ToLower(text)
	vec := make([]float32, len(keywords)+1)
	for i, kw := range keywords {
		vec[i] = float32(strings.Count(lower, kw))
	}
	vec[len(keywords)] = 0.1 // keeps the vector nonzero
	return vec
}

func (f *fakeProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedText(t)
	}
	return out, nil
}

func (f *fakeProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeProvider) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeCalls++
	f.lastPrompt = prompt
	if f.completeErr != nil {
		return "", f.completeErr
	}
	return "Here is what the documents say.", nil
}

func (f *fakeProvider) WithAPIKey(key string) provider.Provider {
	f.mu.Lock()
	f.apiKey = key
	f.mu.Unlock()
	return f
}

func (f *fakeProvider) calls() (embeds, completes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embedCalls, f.completeCalls
}

func newTestService(t *testing.T, fake *fakeProvider, mutate ...func(*config.Config)) *rag.Service {
	t.Helper()
	cfg := config.Default()
	cfg.Chunking.Size = 200
	cfg.Chunking.Overlap = 20
	cfg.Chunking.MinChars = 10
	for _, m := range mutate {
		m(cfg)
	}
	engine := vectorstore.NewEngine(zap.NewNop())
	registry := session.NewRegistry(engine, cfg.Session, zap.NewNop())
	extractor := extract.New(time.Second, zap.NewNop())
	svc, err := rag.New(registry, extractor, fake, cfg, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func uploadInput(name, text string) extract.Input {
	return extract.Input{Data: []byte(text), Filename: name}
}

const savingsText = "Savings accounts earn interest on deposited funds. " +
	"Interest compounds monthly and is credited to the savings balance. " +
	"A minimum deposit may be required to open a savings account."

const wireText = "Wire transfers move money between banks the same day. " +
	"Domestic wire transfers cost less than international wire transfers. " +
	"A wire requires the recipient's routing and account numbers."

func TestService_QueryEmptySessionSkipsProvider(t *testing.T) {
	fake := &fakeProvider{}
	svc := newTestService(t, fake)

	res, err := svc.Query(context.Background(), "", "What is a savings account?", 0, "")
	require.NoError(t, err)

	assert.NotEmpty(t, res.SessionID)
	assert.Contains(t, res.Answer, "enough information")
	assert.Empty(t, res.Sources)
	assert.Zero(t, res.Confidence)

	embeds, completes := fake.calls()
	assert.Zero(t, embeds, "empty retrieval must not embed")
	assert.Zero(t, completes, "empty retrieval must not invoke the LLM")
}

func TestService_IngestAndQuery(t *testing.T) {
	fake := &fakeProvider{}
	svc := newTestService(t, fake)
	ctx := context.Background()

	ing, err := svc.Ingest(ctx, "", uploadInput("savings.txt", savingsText), "")
	require.NoError(t, err)
	assert.NotEmpty(t, ing.SessionID)
	assert.Equal(t, "savings.txt", ing.Document.Name)
	assert.Equal(t, "text", ing.Document.Kind)
	assert.Greater(t, ing.Document.ChunkCount, 0)

	res, err := svc.Query(ctx, ing.SessionID, "How does savings interest work?", 3, "")
	require.NoError(t, err)
	assert.Equal(t, ing.SessionID, res.SessionID)
	assert.Equal(t, "Here is what the documents say.", res.Answer)
	assert.Equal(t, []string{"savings.txt"}, res.Sources)
	assert.Greater(t, res.Confidence, float32(0))
	assert.LessOrEqual(t, res.Confidence, float32(1))

	fake.mu.Lock()
	prompt := fake.lastPrompt
	fake.mu.Unlock()
	assert.Contains(t, prompt, "Context:")
	assert.Contains(t, prompt, "How does savings interest work?")
	assert.Contains(t, prompt, "Savings accounts earn interest")
}

func TestService_RetrievalPrefersTopicalDocument(t *testing.T) {
	fake := &fakeProvider{}
	svc := newTestService(t, fake)
	ctx := context.Background()

	ing, err := svc.Ingest(ctx, "", uploadInput("savings.txt", savingsText), "")
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, ing.SessionID, uploadInput("wires.txt", wireText), "")
	require.NoError(t, err)

	res, err := svc.Query(ctx, ing.SessionID, "How much does a wire transfer cost?", 2, "")
	require.NoError(t, err)
	require.NotEmpty(t, res.Sources)
	assert.Equal(t, "wires.txt", res.Sources[0])
}

func TestService_IngestEmbeddingFailureLeavesNoTrace(t *testing.T) {
	fake := &fakeProvider{embedErr: provider.ErrUnavailable}
	svc := newTestService(t, fake)
	ctx := context.Background()

	ing, err := svc.Ingest(ctx, "broken", uploadInput("savings.txt", savingsText), "")
	assert.ErrorIs(t, err, provider.ErrUnavailable)
	assert.Nil(t, ing)

	docs, err := svc.Documents("broken")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestService_IngestUnsupportedFormat(t *testing.T) {
	fake := &fakeProvider{}
	svc := newTestService(t, fake)

	_, err := svc.Ingest(context.Background(), "", extract.Input{
		Data:     []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10},
		Filename: "photo.jpg",
	}, "")
	assert.ErrorIs(t, err, extract.ErrUnsupportedFormat)

	embeds, _ := fake.calls()
	assert.Zero(t, embeds)
}

// Success and error outcomes of the same upload must land on the same kind
// label so the two series stay comparable.
func TestService_IngestCounterUsesSourceKind(t *testing.T) {
	fake := &fakeProvider{}
	svc := newTestService(t, fake)
	ctx := context.Background()

	successBefore := testutil.ToFloat64(rag.IngestsTotal.WithLabelValues("upload", "success"))
	errorBefore := testutil.ToFloat64(rag.IngestsTotal.WithLabelValues("upload", "error"))

	_, err := svc.Ingest(ctx, "", uploadInput("savings.txt", savingsText), "")
	require.NoError(t, err)

	_, err = svc.Ingest(ctx, "", extract.Input{
		Data:     []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10},
		Filename: "photo.jpg",
	}, "")
	require.Error(t, err)

	successAfter := testutil.ToFloat64(rag.IngestsTotal.WithLabelValues("upload", "success"))
	errorAfter := testutil.ToFloat64(rag.IngestsTotal.WithLabelValues("upload", "error"))
	assert.Equal(t, successBefore+1, successAfter)
	assert.Equal(t, errorBefore+1, errorAfter)
}

func TestService_QueryValidation(t *testing.T) {
	fake := &fakeProvider{}
	svc := newTestService(t, fake)
	ctx := context.Background()

	_, err := svc.Query(ctx, "", "   ", 3, "")
	assert.ErrorIs(t, err, rag.ErrValidation)

	_, err = svc.Query(ctx, "", "valid question", -1, "")
	assert.ErrorIs(t, err, rag.ErrValidation)
}

func TestService_RetrieveUnknownSession(t *testing.T) {
	fake := &fakeProvider{}
	svc := newTestService(t, fake)

	_, err := svc.Retrieve(context.Background(), "never-seen", "question", 3, "")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestService_DocumentsUnknownSession(t *testing.T) {
	fake := &fakeProvider{}
	svc := newTestService(t, fake)

	_, err := svc.Documents("never-seen")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestService_ReingestCreatesNewDocument(t *testing.T) {
	fake := &fakeProvider{}
	svc := newTestService(t, fake)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, "", uploadInput("savings.txt", savingsText), "")
	require.NoError(t, err)
	second, err := svc.Ingest(ctx, first.SessionID, uploadInput("savings.txt", savingsText), "")
	require.NoError(t, err)

	assert.NotEqual(t, first.Document.ID, second.Document.ID)
	docs, err := svc.Documents(first.SessionID)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestService_ConcurrentIngestsSameSession(t *testing.T) {
	fake := &fakeProvider{}
	svc := newTestService(t, fake)
	ctx := context.Background()

	seed, err := svc.Ingest(ctx, "", uploadInput("seed.txt", savingsText), "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("doc%d.txt", i)
			_, errs[i] = svc.Ingest(ctx, seed.SessionID, uploadInput(name, wireText), "")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "ingest %d", i)
	}
	docs, err := svc.Documents(seed.SessionID)
	require.NoError(t, err)
	assert.Len(t, docs, 9)
}

func TestService_SeedFAQ(t *testing.T) {
	fake := &fakeProvider{}
	svc := newTestService(t, fake, func(cfg *config.Config) {
		cfg.Ingest.SeedFAQ = true
	})

	res, err := svc.Query(context.Background(), "", "What is compound interest?", 3, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"Starter FAQ"}, res.Sources)
	assert.Greater(t, res.Confidence, float32(0))

	docs, err := svc.Documents(res.SessionID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Starter FAQ", docs[0].Name)
	assert.Equal(t, session.SourceSeed, docs[0].Source)
	assert.Equal(t, 10, docs[0].ChunkCount)
}

func TestService_ProviderErrorsPropagate(t *testing.T) {
	fake := &fakeProvider{completeErr: provider.ErrQuota}
	svc := newTestService(t, fake)
	ctx := context.Background()

	ing, err := svc.Ingest(ctx, "", uploadInput("savings.txt", savingsText), "")
	require.NoError(t, err)

	_, err = svc.Query(ctx, ing.SessionID, "What is a savings account?", 3, "")
	assert.ErrorIs(t, err, provider.ErrQuota)
}

func TestService_PerRequestAPIKey(t *testing.T) {
	fake := &fakeProvider{}
	svc := newTestService(t, fake)

	_, err := svc.Ingest(context.Background(), "", uploadInput("savings.txt", savingsText), "sk-per-request")
	require.NoError(t, err)

	fake.mu.Lock()
	key := fake.apiKey
	fake.mu.Unlock()
	assert.Equal(t, "sk-per-request", key)
}
