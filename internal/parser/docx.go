package parser

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Minimal WordprocessingML mapping: enough structure to recover paragraph
// text and table cells from word/document.xml. Namespace prefixes are
// ignored by encoding/xml, so "p" matches "w:p".
type docxDocument struct {
	XMLName    xml.Name        `xml:"document"`
	Paragraphs []docxParagraph `xml:"body>p"`
	Tables     []docxTable     `xml:"body>tbl"`
}

type docxParagraph struct {
	Texts []string `xml:"r>t"`
}

type docxTable struct {
	Rows []docxTableRow `xml:"tr"`
}

type docxTableRow struct {
	Cells []docxTableCell `xml:"tc"`
}

type docxTableCell struct {
	Paragraphs []docxParagraph `xml:"p"`
}

// parseDocx extracts a Word document as a single unit: all non-empty
// paragraphs joined with blank-line separators, followed by table rows
// rendered as pipe-joined cells.
//
// Legacy .doc files share this path; they are not ZIP archives, so they
// fail with a parse error that the orchestrator logs as zero chunks.
func (p *Parser) parseDocx(path string) ([]Unit, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening Word document %s: %w", path, err)
	}
	defer func() {
		_ = archive.Close()
	}()

	doc, err := decodeDocumentXML(&archive.Reader)
	if err != nil {
		return nil, fmt.Errorf("parsing Word document %s: %w", path, err)
	}

	paragraphs := make([]string, 0, len(doc.Paragraphs))
	for _, para := range doc.Paragraphs {
		if text := para.text(); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	content := strings.Join(paragraphs, "\n\n")

	var tableRows []string
	for _, table := range doc.Tables {
		for _, row := range table.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.text())
			}
			rowText := strings.Join(cells, " | ")
			if strings.TrimSpace(rowText) != "" {
				tableRows = append(tableRows, rowText)
			}
		}
	}
	if len(tableRows) > 0 {
		content += "\n\n" + strings.Join(tableRows, "\n")
	}

	meta := baseMetadata(path, KindWord)
	meta["paragraph_count"] = strconv.Itoa(len(paragraphs))
	meta["table_count"] = strconv.Itoa(len(doc.Tables))

	return []Unit{{Content: content, Metadata: meta}}, nil
}

// decodeDocumentXML locates word/document.xml in the archive and decodes it.
func decodeDocumentXML(archive *zip.Reader) (*docxDocument, error) {
	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("opening document.xml: %w", err)
		}
		defer func() {
			_ = rc.Close()
		}()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("reading document.xml: %w", err)
		}

		var doc docxDocument
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding document.xml: %w", err)
		}
		return &doc, nil
	}

	return nil, fmt.Errorf("word/document.xml not found in archive")
}

// text joins a paragraph's run texts and trims surrounding whitespace.
func (para docxParagraph) text() string {
	return strings.TrimSpace(strings.Join(para.Texts, ""))
}

// text joins a cell's paragraph texts with spaces, matching how table
// cells read when flattened to a single row line.
func (cell docxTableCell) text() string {
	parts := make([]string, 0, len(cell.Paragraphs))
	for _, para := range cell.Paragraphs {
		if text := para.text(); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
