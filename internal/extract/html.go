package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"
)

// maxFetchBytes caps how much of a remote document is read.
const maxFetchBytes = 10 << 20

// fromURL retrieves a URL and extracts its visible text content.
//
// HTML responses go through readability first to isolate the main article;
// when that yields nothing (index pages, unusual markup) the whole document
// is stripped of boilerplate instead. Plain-text responses pass through.
func (e *Extractor) fromURL(ctx context.Context, rawURL string) (*Result, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("%w: invalid URL %q", ErrFetchFailed, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", "finbotd/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrFetchFailed, rawURL, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	body := io.LimitReader(resp.Body, maxFetchBytes)

	var text string
	switch {
	case strings.Contains(contentType, "text/html"), strings.Contains(contentType, "application/xhtml"):
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("%w: reading body: %v", ErrFetchFailed, err)
		}
		text, err = extractArticle(raw, parsed)
		if err != nil {
			return nil, err
		}
	case strings.Contains(contentType, "text/plain"):
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("%w: reading body: %v", ErrFetchFailed, err)
		}
		text = string(raw)
	default:
		return nil, fmt.Errorf("%w: %s served unsupported content type %q", ErrFetchFailed, rawURL, contentType)
	}

	text = Normalize(text)
	if text == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyContent, rawURL)
	}

	e.logger.Debug("fetched document",
		zap.String("url", rawURL),
		zap.String("content_type", contentType),
		zap.Int("chars", len(text)),
	)

	return &Result{Text: text, SourceName: rawURL, Kind: KindURL}, nil
}

// extractArticle isolates the main content of an HTML page.
func extractArticle(raw []byte, pageURL *url.URL) (string, error) {
	article, err := readability.FromReader(strings.NewReader(string(raw)), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return article.TextContent, nil
	}
	return stripHTML(strings.NewReader(string(raw)))
}

// stripHTML removes script, style, and navigation boilerplate and returns the
// remaining visible text.
func stripHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("%w: parsing HTML: %v", ErrUnsupportedFormat, err)
	}

	doc.Find("script, style, noscript, template, nav, header, footer, aside, form, iframe").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		return doc.Text(), nil
	}

	var sb strings.Builder
	root.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, blockquote, pre, article, section, div").Each(func(_ int, s *goquery.Selection) {
		// Leaf-ish nodes only; containers repeat their children's text.
		if s.Children().Length() > 0 && s.ChildrenFiltered("p, div, li, section, article, table, ul, ol").Length() > 0 {
			return
		}
		t := strings.TrimSpace(s.Text())
		if t != "" {
			sb.WriteString(t)
			sb.WriteString("\n")
		}
	})
	if sb.Len() == 0 {
		return root.Text(), nil
	}
	return sb.String(), nil
}
