// Package importer converts between tabular files and the product catalog.
//
// Every source format (JSON, CSV, XLSX) is first decoded into Rows keyed by
// lower-cased header, then mapped to product drafts and written through one
// upsert policy, so the formats differ only in how they are read.
package importer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const bom = "\ufeff"

var (
	ErrMalformed = errors.New("malformed import file")
	ErrEmpty     = errors.New("import file contains no rows")
)

// Row is one record of an import file. Line is the 1-based position in the
// source, counting the header for tabular formats.
type Row struct {
	Line   int
	Fields map[string]string
}

// Get returns the trimmed value of column key, matched case-insensitively.
func (r Row) Get(key string) string {
	return strings.TrimSpace(r.Fields[strings.ToLower(key)])
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, bom)
	h = strings.TrimSpace(strings.ToLower(h))
	return strings.TrimSpace(strings.TrimSuffix(h, "*"))
}

func blank(fields map[string]string) bool {
	for _, v := range fields {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// tableRows turns a header line plus records into Rows, dropping records
// that are entirely empty.
func tableRows(records [][]string) []Row {
	if len(records) == 0 {
		return nil
	}
	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = normalizeHeader(h)
	}

	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		fields := make(map[string]string, len(headers))
		for j, value := range rec {
			if j < len(headers) && headers[j] != "" {
				fields[headers[j]] = value
			}
		}
		if blank(fields) {
			continue
		}
		rows = append(rows, Row{Line: i + 2, Fields: fields})
	}
	return rows
}

// ParseJSON reads an array of product-like objects. Nested values such as
// a specs object or an images array are kept as compact JSON text.
func ParseJSON(data []byte) ([]Row, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	rows := make([]Row, 0, len(items))
	for i, item := range items {
		fields := make(map[string]string, len(item))
		for k, raw := range item {
			fields[strings.ToLower(strings.TrimSpace(k))] = jsonCell(raw)
		}
		if blank(fields) {
			continue
		}
		rows = append(rows, Row{Line: i + 1, Fields: fields})
	}
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	return rows, nil
}

func jsonCell(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// ParseCSV reads comma or semicolon separated text with a header line.
// Quoted fields may contain separators, doubled quotes and line breaks.
func ParseCSV(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte(bom))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmpty
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	rows := tableRows(records)
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	return rows, nil
}

// detectDelimiter picks ';' when the header line uses it more than ','.
// Spreadsheet programs with a Ukrainian locale export that way.
func detectDelimiter(data []byte) rune {
	header := data
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		header = data[:i]
	}
	if bytes.Count(header, []byte(";")) > bytes.Count(header, []byte(",")) {
		return ';'
	}
	return ','
}

// ParseXLSX reads the first sheet of a workbook, preferring one named
// "Products".
func ParseXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no sheets found", ErrMalformed)
	}
	sheet := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, productsSheet) {
			sheet = name
			break
		}
	}

	records, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	rows := tableRows(records)
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	return rows, nil
}
