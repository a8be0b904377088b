// Package catalog maps human-readable region names to region codes by
// scanning the per-region files of an indicator directory.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zalepa/indicadores/logger"
	"github.com/zalepa/indicadores/table"
)

// ErrUnavailable means no file in the directory yielded a region mapping.
var ErrUnavailable = errors.New("catalog unavailable")

// Entry is one resolved region.
type Entry struct {
	Name string `json:"name"`
	Code int    `json:"code"`
}

// Catalog maps display name to region code. Names are unique.
type Catalog map[string]int

// Resolve scans every tabular file in dir and collects the distinct
// (name, code) pairs found under nameColumn and idColumn. Files that cannot
// be read or lack either column are skipped. A missing directory is an
// error; an empty result is not.
//
// When files disagree, the pair read last replaces any earlier pair sharing
// its name or its code. Files are scanned in lexical order.
func Resolve(dir, idColumn, nameColumn string) (Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog directory: %s is not a directory", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog directory: %w", err)
	}

	c := make(Catalog)
	byCode := make(map[int]string)
	var scanned, used int
	for _, ent := range entries {
		if ent.IsDir() || !table.IsTabular(ent.Name()) {
			continue
		}
		scanned++
		path := filepath.Join(dir, ent.Name())
		t, err := table.Read(path)
		if err != nil {
			logger.L().Warn("catalog_file_skipped", "file", ent.Name(), "err", err)
			continue
		}
		idIdx, nameIdx := t.Index(idColumn), t.Index(nameColumn)
		if idIdx < 0 || nameIdx < 0 {
			logger.L().Debug("catalog_file_skipped", "file", ent.Name(),
				"missing", strings.Join(t.Missing(idColumn, nameColumn), ","))
			continue
		}
		used++
		for _, row := range t.Rows {
			code, ok := table.ParseCode(row[idIdx])
			name := strings.TrimSpace(row[nameIdx])
			if !ok || name == "" {
				continue
			}
			c.put(byCode, name, code)
		}
	}
	logger.L().Debug("catalog_resolved", "dir", dir, "files", scanned, "used", used, "entries", len(c))
	return c, nil
}

func (c Catalog) put(byCode map[int]string, name string, code int) {
	if old, ok := byCode[code]; ok && old != name {
		logger.L().Warn("catalog_name_conflict", "code", code, "previous", old, "name", name)
		delete(c, old)
	}
	if old, ok := c[name]; ok && old != code {
		logger.L().Warn("catalog_code_conflict", "name", name, "previous", old, "code", code)
		delete(byCode, old)
	}
	c[name] = code
	byCode[code] = name
}

// Require returns ErrUnavailable when the catalog is empty.
func (c Catalog) Require() error {
	if len(c) == 0 {
		return ErrUnavailable
	}
	return nil
}

// Code looks up a region by name. An exact match wins, then a
// case-insensitive match ignoring surrounding whitespace, taking the first
// name in Names order.
func (c Catalog) Code(name string) (int, bool) {
	if code, ok := c[name]; ok {
		return code, true
	}
	name = strings.TrimSpace(name)
	for _, n := range c.Names() {
		if strings.EqualFold(n, name) {
			return c[n], true
		}
	}
	return 0, false
}

// Name returns the display name of code.
func (c Catalog) Name(code int) (string, bool) {
	for n, cc := range c {
		if cc == code {
			return n, true
		}
	}
	return "", false
}

// Names returns the display names sorted alphabetically.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Entries returns the catalog ordered by region code.
func (c Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(c))
	for n, code := range c {
		out = append(out, Entry{Name: n, Code: code})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
