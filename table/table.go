// Package table reads spreadsheet-like files into a plain header + rows
// structure. Workbooks are flattened by concatenating sheets that share the
// first sheet's header; CSV files are read through a string-typed dataframe.
package table

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned by Read for file extensions it cannot load.
var ErrUnsupported = errors.New("unsupported file type")

// ErrEmpty is returned when a file has no header row.
var ErrEmpty = errors.New("no header row")

// Table is a loaded file. Every row has exactly len(Header) cells.
type Table struct {
	Source string
	Header []string
	Rows   [][]string
}

var readers = map[string]func(string) (*Table, error){
	".xlsx": readXLSX,
	".xlsm": readXLSX,
	".csv":  readCSV,
}

// Extensions lists the file extensions Read understands, in lookup order.
var Extensions = []string{".xlsx", ".xlsm", ".csv"}

// IsTabular reports whether name has an extension Read can load. Lock files
// written by spreadsheet editors ("~$...") are rejected.
func IsTabular(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return false
	}
	_, ok := readers[strings.ToLower(filepath.Ext(base))]
	return ok
}

// Read loads path according to its extension.
func Read(path string) (*Table, error) {
	read, ok := readers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
	}
	return read(path)
}

// Index returns the position of col in the header, or -1. An exact match
// wins; otherwise the first case-insensitive match is used, since the same
// logical column is spelled "Cod_Comuna" in some files and "cod_comuna" in
// others.
func (t *Table) Index(col string) int {
	col = strings.TrimSpace(col)
	if col == "" {
		return -1
	}
	for i, h := range t.Header {
		if h == col {
			return i
		}
	}
	for i, h := range t.Header {
		if strings.EqualFold(h, col) {
			return i
		}
	}
	return -1
}

// Has reports whether col is in the header.
func (t *Table) Has(col string) bool { return t.Index(col) >= 0 }

// Missing returns the columns among cols that are absent from the header,
// in the order given. Empty names are ignored.
func (t *Table) Missing(cols ...string) []string {
	var missing []string
	for _, c := range cols {
		if c == "" {
			continue
		}
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// ColumnsWithPrefix returns header names starting with prefix (case
// insensitive), in header order.
func (t *Table) ColumnsWithPrefix(prefix string) []string {
	var cols []string
	p := strings.ToLower(prefix)
	for _, h := range t.Header {
		if strings.HasPrefix(strings.ToLower(h), p) {
			cols = append(cols, h)
		}
	}
	return cols
}

func normalizeHeader(cells []string) []string {
	header := make([]string, len(cells))
	for i, c := range cells {
		c = strings.TrimPrefix(c, "\ufeff")
		header[i] = strings.TrimSpace(c)
	}
	// Trailing unnamed columns are artifacts of formatted-but-empty cells.
	for len(header) > 0 && header[len(header)-1] == "" {
		header = header[:len(header)-1]
	}
	return header
}

func sameHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

// fitRow pads or truncates row to n cells and trims whitespace.
func fitRow(row []string, n int) []string {
	out := make([]string, n)
	for i := 0; i < n && i < len(row); i++ {
		out[i] = strings.TrimSpace(row[i])
	}
	return out
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
