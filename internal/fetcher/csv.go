package fetcher

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is a parsed CSV extract: a header row plus data rows. Provider
// extracts are small enough (low millions of cells) to materialize fully,
// which the wide-to-long reshaping needs anyway.
type Table struct {
	Header []string
	Rows   [][]string
}

// Col returns the index of the named header column, or -1 when absent.
// Matching is case-insensitive and ignores surrounding whitespace.
func (t *Table) Col(name string) int {
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// ReadTable parses a CSV document with a header row. Rows with a differing
// field count are tolerated (the provider extracts occasionally carry ragged
// trailing columns); fields are whitespace-trimmed.
func ReadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("csv: empty document")
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		rows = append(rows, record)
	}

	return &Table{Header: header, Rows: rows}, nil
}
