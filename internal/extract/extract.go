// Package extract normalizes raw document inputs into UTF-8 text.
//
// Supported inputs are PDF bytes, spreadsheet bytes (xlsx, csv), Word
// documents, HTML, plain text, and fetched URLs. Every arm returns the same
// contract: the extracted visible text plus a source name for attribution.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Sentinel errors for extraction failures.
var (
	// ErrUnsupportedFormat is returned when the input bytes or content type
	// are not a recognized document format.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrFetchFailed is returned when a URL cannot be retrieved or serves a
	// non-text content type.
	ErrFetchFailed = errors.New("failed to fetch URL")

	// ErrEmptyContent is returned when extraction yields no usable text.
	ErrEmptyContent = errors.New("no usable text content")
)

// Kind identifies the detected input format.
type Kind string

const (
	KindPDF         Kind = "pdf"
	KindSpreadsheet Kind = "spreadsheet"
	KindWord        Kind = "word"
	KindHTML        Kind = "html"
	KindText        Kind = "text"
	KindURL         Kind = "url"
)

// Input is a tagged variant over the supported input sources. Exactly one of
// Data (with Filename) or URL must be set.
type Input struct {
	Data     []byte
	Filename string
	URL      string
}

// Result is the normalized output of extraction.
type Result struct {
	Text       string
	SourceName string
	Kind       Kind
}

// Extractor dispatches on the detected input kind and normalizes the output.
type Extractor struct {
	client *http.Client
	logger *zap.Logger
}

// New creates an Extractor. fetchTimeout bounds URL retrieval.
func New(fetchTimeout time.Duration, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &Extractor{
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger,
	}
}

// Extract normalizes the input into UTF-8 text with a source name.
func (e *Extractor) Extract(ctx context.Context, in Input) (*Result, error) {
	if in.URL != "" {
		return e.fromURL(ctx, in.URL)
	}
	return e.fromBytes(in.Data, in.Filename)
}

// fromBytes sniffs the byte signature (falling back to the file extension)
// and dispatches to the matching extraction arm.
func (e *Extractor) fromBytes(data []byte, filename string) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrEmptyContent)
	}

	name := filename
	if name == "" {
		name = "upload"
	}
	ext := strings.ToLower(filepath.Ext(filename))

	var (
		text string
		kind Kind
		err  error
	)
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		kind = KindPDF
		text, err = extractPDF(data)
	case bytes.HasPrefix(data, []byte("PK\x03\x04")) && (ext == ".xlsx" || ext == ".xls"):
		kind = KindSpreadsheet
		text, err = extractOffice(data, mimeXLSX)
	case ext == ".csv":
		kind = KindSpreadsheet
		text, err = extractCSV(data)
	case bytes.HasPrefix(data, []byte("PK\x03\x04")) && (ext == ".docx" || ext == ".doc"):
		kind = KindWord
		text, err = extractOffice(data, mimeDOCX)
	case looksLikeHTML(data):
		kind = KindHTML
		text, err = stripHTML(bytes.NewReader(data))
	case utf8.Valid(data) && isTextContent(data):
		kind = KindText
		text = string(data)
	default:
		e.logger.Warn("rejecting unrecognized upload",
			zap.String("filename", filename),
			zap.String("sniffed_type", http.DetectContentType(data)),
		)
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, http.DetectContentType(data))
	}
	if err != nil {
		return nil, err
	}

	text = Normalize(text)
	if text == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyContent, name)
	}

	e.logger.Debug("extracted document",
		zap.String("source", name),
		zap.String("kind", string(kind)),
		zap.Int("chars", len(text)),
	)

	return &Result{Text: text, SourceName: name, Kind: kind}, nil
}

// isTextContent reports whether the sniffed content type is textual.
func isTextContent(data []byte) bool {
	ct := http.DetectContentType(data)
	return strings.HasPrefix(ct, "text/") || strings.HasPrefix(ct, "application/json")
}

// looksLikeHTML checks for an HTML document prefix, ignoring leading whitespace.
func looksLikeHTML(data []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(data))
	if len(head) > 256 {
		head = head[:256]
	}
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

var (
	spaceRuns   = regexp.MustCompile(`[ \t\r\f]+`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
	lineSpaces  = regexp.MustCompile(`\n[ \t]+`)
)

// Normalize collapses whitespace runs while preserving paragraph breaks.
func Normalize(text string) string {
	text = spaceRuns.ReplaceAllString(text, " ")
	text = lineSpaces.ReplaceAllString(text, "\n")
	text = newlineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
