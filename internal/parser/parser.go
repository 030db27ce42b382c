// Package parser converts source files into parsed text units ready for
// chunking.
//
// Each supported file kind has one parser; dispatch is a closed enumeration
// keyed by normalized file extension. Unknown extensions map to
// KindUnsupported instead of failing, so callers can filter cheaply.
//
// A parsed unit carries the extracted text plus open key-value metadata
// (type, filename, source path, and kind-specific fields such as page or
// row numbers).
package parser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kestrel0/ragdex/internal/log"
)

var (
	// ErrNotFound indicates the source file vanished before parsing.
	ErrNotFound = errors.New("source file not found")

	// ErrUnsupported indicates no parser exists for the file's extension.
	ErrUnsupported = errors.New("unsupported file type")
)

// Kind identifies a parser variant. The set is closed: every supported
// extension maps to exactly one Kind, everything else to KindUnsupported.
type Kind int

const (
	KindUnsupported Kind = iota
	KindText
	KindPDF
	KindWord
	KindImage
	KindCSV
	KindURL
)

// String returns the metadata "type" value recorded for units of this kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPDF:
		return "pdf"
	case KindWord:
		return "docx"
	case KindImage:
		return "image_ocr"
	case KindCSV:
		return "csv"
	case KindURL:
		return "url"
	default:
		return "unsupported"
	}
}

// kindByExt is the closed extension lookup table. Extensions are stored
// normalized: lowercase, with leading dot.
var kindByExt = map[string]Kind{
	".txt":  KindText,
	".pdf":  KindPDF,
	".docx": KindWord,
	".doc":  KindWord,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".gif":  KindImage,
	".bmp":  KindImage,
	".tiff": KindImage,
	".csv":  KindCSV,
}

// KindForExt returns the parser kind for a file extension.
// Matching is case-insensitive; a missing leading dot is tolerated.
// Unknown extensions return KindUnsupported.
func KindForExt(ext string) Kind {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return kindByExt[ext]
}

// KindForPath returns the parser kind for a file path.
func KindForPath(path string) Kind {
	return KindForExt(filepath.Ext(path))
}

// Supported reports whether a parser exists for the path's extension.
func Supported(path string) bool {
	return KindForPath(path) != KindUnsupported
}

// Unit is one parser output item: extracted text plus metadata, prior to
// chunking. A source file produces an ordered sequence of zero or more
// units (one per page, row, or whole file depending on the parser).
type Unit struct {
	Content  string
	Metadata map[string]string
}

// Transcriber converts an image file into text. The production
// implementation calls a vision model; tests substitute a fake.
// A transcription failure fails the whole file's indexing.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Parser parses source files into units, dispatching on file extension.
type Parser struct {
	transcriber Transcriber
	client      *http.Client
	logger      log.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithTranscriber sets the image transcription collaborator.
// Without one, image files fail to parse.
func WithTranscriber(t Transcriber) Option {
	return func(p *Parser) { p.transcriber = t }
}

// WithHTTPClient sets the client used by ParseURL.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Parser) { p.client = c }
}

// New creates a Parser. logger must not be nil in production; tests may
// pass log.NewNop().
func New(logger log.Logger, opts ...Option) *Parser {
	p := &Parser{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse converts the file at path into parsed units.
//
// A missing file returns an error wrapping ErrNotFound. Any transformation
// failure (malformed document, unreadable image, transcription error)
// propagates so the caller can log it and count the file as zero indexed
// chunks; nothing here is fatal to a watch loop.
func (p *Parser) Parse(ctx context.Context, path string) ([]Unit, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupported, path)
	}

	switch KindForPath(path) {
	case KindText:
		return p.parseText(path)
	case KindPDF:
		return p.parsePDF(path)
	case KindWord:
		return p.parseDocx(path)
	case KindImage:
		return p.parseImage(ctx, path)
	case KindCSV:
		return p.parseCSV(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
}

// parseText reads a plain text file as a single unit.
func (p *Parser) parseText(path string) ([]Unit, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file %s: %w", path, err)
	}

	return []Unit{{
		Content:  string(content),
		Metadata: baseMetadata(path, KindText),
	}}, nil
}

// baseMetadata builds the metadata fields shared by every unit.
func baseMetadata(path string, kind Kind) map[string]string {
	return map[string]string{
		"source":   path,
		"type":     kind.String(),
		"filename": filepath.Base(path),
	}
}
