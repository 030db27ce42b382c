package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// parseCSV produces one unit per data row with the first record as a
// header. Headerless parsing is available programmatically via ParseCSV.
func (p *Parser) parseCSV(path string) ([]Unit, error) {
	return p.ParseCSV(path, true)
}

// ParseCSV parses a CSV file into one unit per row.
//
// With hasHeader, the first record names the columns and each row renders
// as "key: value" lines in column order, empty values omitted. Without a
// header, rows render as comma-joined cell values. Row numbering starts
// at 1 for the first data row either way.
func (p *Parser) ParseCSV(path string, hasHeader bool) ([]Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening CSV %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // ragged rows are data, not errors

	var header []string
	if hasHeader {
		header, err = reader.Read()
		if err != nil {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("reading CSV header %s: %w", path, err)
		}
	}

	var units []Unit
	for rowNum := 1; ; rowNum++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV %s row %d: %w", path, rowNum, err)
		}

		content := strings.Join(record, ", ")
		if hasHeader {
			content = renderCSVRow(header, record)
		}

		meta := baseMetadata(path, KindCSV)
		meta["row"] = strconv.Itoa(rowNum)

		units = append(units, Unit{Content: content, Metadata: meta})
	}

	p.logger.Debug("parsed CSV", "path", path, "rows", len(units))
	return units, nil
}

// renderCSVRow formats a record as "key: value" lines against the header.
// Cells beyond the header and empty values are dropped.
func renderCSVRow(header, record []string) string {
	lines := make([]string, 0, len(record))
	for i, value := range record {
		if i >= len(header) || value == "" {
			continue
		}
		lines = append(lines, header[i]+": "+value)
	}
	return strings.Join(lines, "\n")
}
