package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// parsePDF extracts text page by page, producing one unit per page that
// yields non-empty text. Pages without extractable text are skipped
// silently; scanned PDFs without a text layer can therefore produce zero
// units without error.
func (p *Parser) parsePDF(path string) ([]Unit, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	totalPages := reader.NumPage()
	units := make([]Unit, 0, totalPages)

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		content, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting text from %s page %d: %w", path, pageNum, err)
		}
		if strings.TrimSpace(content) == "" {
			continue
		}

		meta := baseMetadata(path, KindPDF)
		meta["page"] = strconv.Itoa(pageNum)
		meta["total_pages"] = strconv.Itoa(totalPages)

		units = append(units, Unit{Content: content, Metadata: meta})
	}

	p.logger.Debug("parsed PDF", "path", path, "pages", totalPages, "units", len(units))
	return units, nil
}
