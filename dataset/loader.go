package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalepa/indicadores/logger"
	"github.com/zalepa/indicadores/table"
)

// ErrNotFound means no file exists for the requested region and indicator.
var ErrNotFound = errors.New("dataset not found")

// ErrSchemaMismatch matches any *SchemaMismatchError via errors.Is.
var ErrSchemaMismatch = errors.New("schema mismatch")

// SchemaMismatchError lists the required columns a file lacks.
type SchemaMismatchError struct {
	File    string
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s: missing columns %s", e.File, strings.Join(e.Missing, ", "))
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// Cache stores loaded records by file path. Callers own invalidation.
// Cached records are shared; treat them as read-only.
type Cache interface {
	Get(key string) ([]Record, bool)
	Add(key string, recs []Record)
	Remove(key string)
	Purge()
}

// Loader reads indicator files, optionally through a caller-supplied cache.
type Loader struct {
	cache Cache
}

// NewLoader returns a loader. A nil cache disables caching.
func NewLoader(cache Cache) *Loader {
	return &Loader{cache: cache}
}

// Locate returns the path of the file for region code, trying each
// supported extension in order.
func (l *Loader) Locate(s Schema, code int) (string, error) {
	for _, ext := range table.Extensions {
		path := filepath.Join(s.Dir, s.FileName(code, ext))
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("%s (%s): %w", s.FileName(code, ".*"), s.Name, ErrNotFound)
}

// Load returns the records of indicator s for region code. It fails with
// ErrNotFound when no file exists and with *SchemaMismatchError when
// required columns are absent; no partial result is returned on error.
func (l *Loader) Load(s Schema, code int) ([]Record, error) {
	path, err := l.Locate(s, code)
	if err != nil {
		return nil, err
	}
	if l.cache != nil {
		if recs, ok := l.cache.Get(path); ok {
			logger.L().Debug("dataset_cache_hit", "file", filepath.Base(path))
			return append([]Record(nil), recs...), nil
		}
	}

	t, err := table.Read(path)
	if err != nil {
		return nil, err
	}
	recs, err := s.records(t)
	if err != nil {
		return nil, err
	}
	logger.L().Debug("dataset_loaded", "indicator", s.Name, "file", filepath.Base(path), "records", len(recs))

	if l.cache != nil {
		l.cache.Add(path, recs)
	}
	return append([]Record(nil), recs...), nil
}

// Invalidate drops any cached records for region code.
func (l *Loader) Invalidate(s Schema, code int) {
	if l.cache == nil {
		return
	}
	for _, ext := range table.Extensions {
		l.cache.Remove(filepath.Join(s.Dir, s.FileName(code, ext)))
	}
}

// Purge empties the cache.
func (l *Loader) Purge() {
	if l.cache != nil {
		l.cache.Purge()
	}
}

func (s Schema) records(t *table.Table) ([]Record, error) {
	file := filepath.Base(t.Source)
	missing := t.Missing(s.Required()...)
	years := s.yearColumns(t)
	if len(years) == 0 {
		missing = append(missing, s.YearPrefix+"<yyyy>")
	}
	if len(missing) > 0 {
		return nil, &SchemaMismatchError{File: file, Missing: missing}
	}

	col := func(row []string, name string) string {
		if i := t.Index(name); i >= 0 {
			return row[i]
		}
		return ""
	}

	recs := make([]Record, 0, len(t.Rows))
	var skipped, unparsed int
	for _, row := range t.Rows {
		rec := Record{
			RegionName:   col(row, s.RegionName),
			ProvinceName: col(row, s.ProvinceName),
			CommuneName:  col(row, s.CommuneName),
			Values:       make(map[int]float64, len(years)),
		}
		if s.CommuneCode != "" {
			rec.CommuneCode, _ = table.ParseCode(col(row, s.CommuneCode))
		}
		if rec.CommuneName == "" && !rec.HasCode() {
			skipped++
			continue
		}
		if s.SexSplit() {
			rec.SexLabel = col(row, s.Sex)
			rec.Sex = ParseSex(rec.SexLabel)
		}
		for i, year := range years {
			if v, ok := table.ParseDecimal(row[i]); ok {
				rec.Values[year] = v
			} else if row[i] != "" {
				unparsed++
			}
		}
		for _, name := range s.Extra {
			if v, ok := table.ParseDecimal(col(row, name)); ok {
				if rec.Extra == nil {
					rec.Extra = make(map[string]float64, len(s.Extra))
				}
				rec.Extra[name] = v
			}
		}
		recs = append(recs, rec)
	}
	if skipped > 0 || unparsed > 0 {
		logger.L().Debug("dataset_rows_coerced", "file", file, "skipped_rows", skipped, "unparsed_cells", unparsed)
	}
	return recs, nil
}
