// Package chunk splits normalized document text into overlapping passages
// suitable for embedding.
package chunk

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrEmptyContent is returned when the input text is empty after trimming.
var ErrEmptyContent = errors.New("no text to chunk")

// Span is one passage of the source text. Offsets are byte positions into
// the text handed to Chunk, so callers can trace a chunk back to its source.
type Span struct {
	Text  string
	Start int
	End   int
}

// Config holds chunking parameters.
type Config struct {
	// Size is the target chunk length in bytes.
	Size int
	// Overlap is how many bytes adjacent chunks share. Must be < Size so
	// every step makes forward progress.
	Overlap int
	// MinChars is the minimum usable chunk length. A tail shorter than this
	// is folded into the preceding chunk instead of emitted on its own.
	MinChars int
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("overlap %d must be in [0, %d)", c.Overlap, c.Size)
	}
	if c.MinChars < 0 {
		return fmt.Errorf("min chars cannot be negative, got %d", c.MinChars)
	}
	return nil
}

// Chunker splits text into overlapping spans, preferring sentence and word
// boundaries and falling back to fixed-size windows.
type Chunker struct {
	cfg Config
}

// New creates a Chunker. Returns an error if the config is invalid.
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunker config: %w", err)
	}
	return &Chunker{cfg: cfg}, nil
}

// Chunk splits text into spans in reading order. The returned slice is
// finite and non-empty; span index equals position in the slice.
func (c *Chunker) Chunk(text string) ([]Span, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyContent
	}

	// Offsets reference the original text, so locate the trimmed region.
	base := strings.Index(text, trimmed)
	limit := base + len(trimmed)

	if len(trimmed) <= c.cfg.Size {
		return []Span{{Text: trimmed, Start: base, End: limit}}, nil
	}

	var spans []Span
	start := base
	for {
		end := start + c.cfg.Size
		if end >= limit {
			spans = append(spans, c.span(text, start, limit))
			break
		}

		cut := snap(text, start, end, c.cfg.Overlap)

		// The next window starts at cut-Overlap, so cut must clear the
		// overlap or the loop stalls. The backward rune adjustment can eat
		// the whole step when Overlap is within a rune-width of Size; step
		// forward past the split rune instead.
		if cut-start <= c.cfg.Overlap {
			cut = end
			for cut < limit && !utf8.RuneStart(text[cut]) {
				cut++
			}
		}

		// A tiny remainder would duplicate the overlap region or fall below
		// the usable minimum; extend the final window to the end instead.
		rest := limit - cut
		if rest <= c.cfg.Overlap || rest < c.cfg.MinChars {
			spans = append(spans, c.span(text, start, limit))
			break
		}

		spans = append(spans, c.span(text, start, cut))
		start = cut - c.cfg.Overlap
		for start < limit && !utf8.RuneStart(text[start]) {
			start++
		}
	}

	return spans, nil
}

// span builds a Span with whitespace-trimmed text but source-true offsets.
func (c *Chunker) span(text string, start, end int) Span {
	return Span{Text: strings.TrimSpace(text[start:end]), Start: start, End: end}
}

// snap moves a window cut point back onto a semantic boundary: the end of a
// sentence if one falls in the second half of the window, otherwise the last
// word break. A boundary is only taken if the next window still starts past
// the current one, so overlapping never stalls. With no boundary at all the
// cut is only adjusted to avoid splitting a multi-byte rune.
func snap(text string, start, end, overlap int) int {
	window := text[start:end]
	floor := len(window) / 2
	if overlap >= floor {
		floor = overlap + 1
	}

	if i := lastSentenceEnd(window); i > floor {
		return start + i
	}
	if i := strings.LastIndexAny(window, " \n"); i > floor {
		return start + i
	}

	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}

// lastSentenceEnd returns the position just past the last sentence terminator
// in s that is followed by whitespace, or -1.
func lastSentenceEnd(s string) int {
	for i := len(s) - 1; i > 0; i-- {
		if s[i] != ' ' && s[i] != '\n' {
			continue
		}
		switch s[i-1] {
		case '.', '!', '?':
			return i
		}
	}
	return -1
}
