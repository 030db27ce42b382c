// Package chunker splits parsed units into bounded, overlapping text
// chunks.
//
// The splitter is recursive and boundary-preferring: it tries paragraph
// breaks first, then line breaks, then word breaks, and only falls back
// to arbitrary character offsets when a piece has no usable boundary.
// No chunk exceeds the configured size, and consecutive chunks share up
// to the configured overlap so context survives chunk boundaries.
package chunker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kestrel0/ragdex/internal/parser"
)

// Defaults match the indexing pipeline's contract.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// ErrInvalidConfig indicates an unusable size/overlap pair.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// defaultSeparators order boundary preference: paragraph, line, word,
// then arbitrary character offsets.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunk is one bounded slice of a parsed unit's content, ready for
// embedding. Metadata is rebuilt per chunk: type and filename carry over
// from parse time, chunk_size reflects the actual chunk length. Page and
// row provenance is deliberately not forwarded past chunking.
type Chunk struct {
	Content  string
	Metadata map[string]string
}

// Chunker splits text into bounded overlapping chunks.
type Chunker struct {
	size       int
	overlap    int
	separators []string
}

// New creates a Chunker.
//
// The splitter's behavior is undefined for overlap >= size, so the pair
// is validated here instead of being silently normalized.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, size), got %d with size %d",
			ErrInvalidConfig, overlap, size)
	}

	return &Chunker{
		size:       size,
		overlap:    overlap,
		separators: defaultSeparators,
	}, nil
}

// Size returns the maximum chunk length in characters.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the declared overlap between consecutive chunks.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits a parsed unit into chunk records. Empty or whitespace-only
// content yields zero chunks.
func (c *Chunker) Chunk(unit parser.Unit) []Chunk {
	if strings.TrimSpace(unit.Content) == "" {
		return nil
	}

	pieces := c.SplitText(unit.Content)
	chunks := make([]Chunk, 0, len(pieces))
	for _, piece := range pieces {
		chunks = append(chunks, Chunk{
			Content: piece,
			Metadata: map[string]string{
				"chunk_size": strconv.Itoa(utf8.RuneCountInString(piece)),
				"filename":   unit.Metadata["filename"],
				"type":       unit.Metadata["type"],
			},
		})
	}
	return chunks
}

// SplitText splits raw text into pieces of at most the configured size.
func (c *Chunker) SplitText(text string) []string {
	return c.split(text, c.separators)
}

// split recursively breaks text on the strongest separator present,
// merging small fragments back together up to the size limit.
func (c *Chunker) split(text string, separators []string) []string {
	// Pick the first separator that occurs in the text; "" always matches
	// and means character-offset splitting.
	separator := ""
	var remaining []string
	for i, sep := range separators {
		if sep == "" {
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	if separator == "" {
		return c.splitByWidth(text)
	}

	splits := make([]string, 0, 8)
	for _, piece := range strings.Split(text, separator) {
		if piece != "" {
			splits = append(splits, piece)
		}
	}

	var final []string
	var good []string
	for _, piece := range splits {
		if utf8.RuneCountInString(piece) < c.size {
			good = append(good, piece)
			continue
		}
		// Oversized piece: flush accumulated fragments, then recurse into
		// the weaker separators.
		if len(good) > 0 {
			final = append(final, c.merge(good, separator)...)
			good = nil
		}
		final = append(final, c.split(piece, remaining)...)
	}
	if len(good) > 0 {
		final = append(final, c.merge(good, separator)...)
	}
	return final
}

// splitByWidth is the character-offset fallback for boundary-free text:
// fixed windows of size runes advancing by size-overlap. Windows are
// placed on rune boundaries so multibyte text never splits mid-rune.
func (c *Chunker) splitByWidth(text string) []string {
	runes := []rune(text)
	if len(runes) <= c.size {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	stride := c.size - c.overlap
	pieces := make([]string, 0, len(runes)/stride+1)
	for start := 0; start < len(runes); start += stride {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[start:end]))
	}
	return pieces
}

// merge combines adjacent fragments into chunks close to (never above)
// the size limit, carrying up to overlap characters of trailing
// fragments into the next chunk.
func (c *Chunker) merge(splits []string, separator string) []string {
	sepLen := utf8.RuneCountInString(separator)

	var docs []string
	var current []string
	total := 0

	join := func(parts []string) string {
		return strings.TrimSpace(strings.Join(parts, separator))
	}

	for _, piece := range splits {
		pieceLen := utf8.RuneCountInString(piece)
		extra := 0
		if len(current) > 0 {
			extra = sepLen
		}

		if total+pieceLen+extra > c.size && len(current) > 0 {
			if doc := join(current); doc != "" {
				docs = append(docs, doc)
			}
			// Drop leading fragments until the carried tail fits in the
			// overlap budget and leaves room for the incoming piece.
			for total > c.overlap || (total+pieceLen+sepLen > c.size && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}

		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, piece)
		total += pieceLen
	}

	if doc := join(current); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}
