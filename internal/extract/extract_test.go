package extract_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/finbotd/internal/extract"
)

func newExtractor(t *testing.T) *extract.Extractor {
	t.Helper()
	return extract.New(5*time.Second, zap.NewNop())
}

func TestExtractPlainText(t *testing.T) {
	e := newExtractor(t)

	res, err := e.Extract(context.Background(), extract.Input{
		Data:     []byte("Compound interest is interest calculated on the initial principal and accumulated interest."),
		Filename: "notes.txt",
	})
	require.NoError(t, err)

	assert.Equal(t, extract.KindText, res.Kind)
	assert.Equal(t, "notes.txt", res.SourceName)
	assert.Contains(t, res.Text, "Compound interest")
}

func TestExtractNormalizesWhitespace(t *testing.T) {
	e := newExtractor(t)

	res, err := e.Extract(context.Background(), extract.Input{
		Data:     []byte("first   line\t here\n\n\n\n\nsecond paragraph\n   indented"),
		Filename: "messy.txt",
	})
	require.NoError(t, err)

	assert.Equal(t, "first line here\n\nsecond paragraph\nindented", res.Text)
}

func TestExtractUnsupportedBinary(t *testing.T) {
	e := newExtractor(t)

	// JPEG signature followed by binary junk.
	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, []byte{0x00, 0x10, 0x4A, 0x46, 0x49, 0x46, 0x00, 0x01}...)

	_, err := e.Extract(context.Background(), extract.Input{Data: jpeg, Filename: "photo.jpg"})
	require.ErrorIs(t, err, extract.ErrUnsupportedFormat)
}

func TestExtractEmptyInput(t *testing.T) {
	e := newExtractor(t)

	_, err := e.Extract(context.Background(), extract.Input{Data: nil, Filename: "empty.txt"})
	require.ErrorIs(t, err, extract.ErrEmptyContent)

	_, err = e.Extract(context.Background(), extract.Input{Data: []byte("   \n\t  "), Filename: "blank.txt"})
	require.ErrorIs(t, err, extract.ErrEmptyContent)
}

func TestExtractCSV(t *testing.T) {
	e := newExtractor(t)

	res, err := e.Extract(context.Background(), extract.Input{
		Data:     []byte("account,rate\nsavings,4.5%\nchecking,0.1%\n"),
		Filename: "rates.csv",
	})
	require.NoError(t, err)

	assert.Equal(t, extract.KindSpreadsheet, res.Kind)
	assert.Contains(t, res.Text, "savings, 4.5%")
	assert.Contains(t, res.Text, "checking, 0.1%")
}

func TestExtractHTMLUpload(t *testing.T) {
	e := newExtractor(t)

	html := `<!DOCTYPE html><html><head><title>Rates</title>
<script>alert("nope")</script><style>p { color: red }</style></head>
<body><nav>Home | About</nav><p>Savings accounts earn compound interest.</p>
<footer>Copyright</footer></body></html>`

	res, err := e.Extract(context.Background(), extract.Input{Data: []byte(html), Filename: "rates.html"})
	require.NoError(t, err)

	assert.Equal(t, extract.KindHTML, res.Kind)
	assert.Contains(t, res.Text, "compound interest")
	assert.NotContains(t, res.Text, "alert")
	assert.NotContains(t, res.Text, "color: red")
}

func TestExtractURL(t *testing.T) {
	page := `<!DOCTYPE html><html><head><title>FAQ</title><script>var x=1;</script></head>
<body><article><h1>Wire transfers</h1>
<p>Domestic wire transfers typically cost fifteen to thirty dollars.</p>
<p>International transfers cost more and take longer to settle.</p></article></body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	e := newExtractor(t)
	res, err := e.Extract(context.Background(), extract.Input{URL: srv.URL})
	require.NoError(t, err)

	assert.Equal(t, extract.KindURL, res.Kind)
	assert.Equal(t, srv.URL, res.SourceName)
	assert.Contains(t, res.Text, "Wire transfers")
	assert.Contains(t, res.Text, "fifteen to thirty dollars")
	assert.NotContains(t, res.Text, "var x=1")
}

func TestExtractURLPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("APR includes interest rate plus other fees."))
	}))
	defer srv.Close()

	e := newExtractor(t)
	res, err := e.Extract(context.Background(), extract.Input{URL: srv.URL})
	require.NoError(t, err)
	assert.Contains(t, res.Text, "APR includes")
}

func TestExtractURLFailures(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer notFound.Close()

	binary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{0x00, 0x01})
	}))
	defer binary.Close()

	e := newExtractor(t)

	_, err := e.Extract(context.Background(), extract.Input{URL: notFound.URL})
	require.ErrorIs(t, err, extract.ErrFetchFailed)

	_, err = e.Extract(context.Background(), extract.Input{URL: binary.URL})
	require.ErrorIs(t, err, extract.ErrFetchFailed)

	_, err = e.Extract(context.Background(), extract.Input{URL: "ftp://example.com/doc"})
	require.ErrorIs(t, err, extract.ErrFetchFailed)

	_, err = e.Extract(context.Background(), extract.Input{URL: "http://127.0.0.1:1/unreachable"})
	require.ErrorIs(t, err, extract.ErrFetchFailed)
}

func TestExtractPDFSignatureButCorrupt(t *testing.T) {
	e := newExtractor(t)

	_, err := e.Extract(context.Background(), extract.Input{
		Data:     []byte("%PDF-1.7 not actually a pdf"),
		Filename: "broken.pdf",
	})
	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "panic"))
}
