// Package gap reshapes sex-split indicator records into one row per commune
// with per-year male, female and gap (male minus female) values.
//
// A gap is computed only when both sexes have a value for the year. Missing
// data stays missing: it is never replaced by zero.
package gap

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zalepa/indicadores/dataset"
	"github.com/zalepa/indicadores/logger"
)

var (
	// ErrInvalidYearRange means a requested year has no value in any record.
	ErrInvalidYearRange = errors.New("invalid year range")
	// ErrEmptyInput means no record carries a male or female label.
	ErrEmptyInput = errors.New("no male or female records")
)

// Row is the comparative view of one commune. Maps hold only years with
// data; GapFor reports whether a gap was computable.
type Row struct {
	CommuneName  string          `json:"commune"`
	CommuneCode  int             `json:"communeCode,omitempty"`
	ProvinceName string          `json:"province,omitempty"`
	Male         map[int]float64 `json:"male"`
	Female       map[int]float64 `json:"female"`
	Gap          map[int]float64 `json:"gap"`
	// Total and Other keep aggregate and unrecognized sex rows for display;
	// they never enter the gap. Other is keyed by the trimmed source label.
	Total map[int]float64            `json:"total,omitempty"`
	Other map[string]map[int]float64 `json:"other,omitempty"`
}

// GapFor returns the gap for year and whether it could be computed.
func (r Row) GapFor(year int) (float64, bool) {
	v, ok := r.Gap[year]
	return v, ok
}

// Normalize groups records by commune and computes per-year gaps for the
// requested years. An empty years slice selects every available year.
// Rows are ordered by the default Order unless an OrderBy option is given.
func Normalize(records []dataset.Record, years []int, opts ...Option) ([]Row, error) {
	o := options{order: DefaultOrder}
	for _, opt := range opts {
		opt(&o)
	}

	var sexed int
	for _, r := range records {
		if r.Sex == dataset.SexMale || r.Sex == dataset.SexFemale {
			sexed++
		}
	}
	if sexed == 0 {
		return nil, ErrEmptyInput
	}

	years, err := checkYears(records, years)
	if err != nil {
		return nil, err
	}
	sortYear := o.order.Year
	if sortYear == 0 {
		sortYear = years[len(years)-1]
	} else if !containsYear(years, sortYear) {
		return nil, fmt.Errorf("%w: sort year %d was not requested", ErrInvalidYearRange, sortYear)
	}

	for _, name := range AmbiguousNames(records) {
		logger.L().Warn("gap_ambiguous_name", "commune", name,
			"detail", "records without a commune code share this name across provinces")
	}

	rows := group(records, years)
	for i := range rows {
		r := &rows[i]
		for _, y := range years {
			m, okM := r.Male[y]
			f, okF := r.Female[y]
			if okM && okF {
				r.Gap[y] = m - f
			}
		}
	}

	sortRows(rows, o.order, sortYear)
	return rows, nil
}

// checkYears validates the requested years against the years present in
// records and returns them deduplicated and ascending. group keeps a value
// of every record, so these are also the years RowYears reports.
func checkYears(records []dataset.Record, years []int) ([]int, error) {
	available := dataset.Years(records)
	if len(years) == 0 {
		if len(available) == 0 {
			return nil, fmt.Errorf("%w: records carry no values", ErrInvalidYearRange)
		}
		return available, nil
	}
	seen := make(map[int]bool, len(years))
	out := make([]int, 0, len(years))
	for _, y := range years {
		if seen[y] {
			continue
		}
		seen[y] = true
		if !containsYear(available, y) {
			return nil, fmt.Errorf("%w: %d not in available years %s", ErrInvalidYearRange, y, formatYears(available))
		}
		out = append(out, y)
	}
	sort.Ints(out)
	return out, nil
}

// communeKey identifies a commune by code when present, else by its folded
// name.
func communeKey(r dataset.Record) string {
	if r.HasCode() {
		return fmt.Sprintf("code:%d", r.CommuneCode)
	}
	return "name:" + foldName(r.CommuneName)
}

func foldName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func group(records []dataset.Record, years []int) []Row {
	index := make(map[string]int)
	var rows []Row
	var other, dup int
	for _, rec := range records {
		var target func(*Row) map[int]float64
		switch rec.Sex {
		case dataset.SexMale:
			target = func(r *Row) map[int]float64 { return r.Male }
		case dataset.SexFemale:
			target = func(r *Row) map[int]float64 { return r.Female }
		case dataset.SexTotal:
			target = func(r *Row) map[int]float64 {
				if r.Total == nil {
					r.Total = make(map[int]float64)
				}
				return r.Total
			}
		default:
			other++
			label := otherLabel(rec.SexLabel)
			target = func(r *Row) map[int]float64 {
				if r.Other == nil {
					r.Other = make(map[string]map[int]float64)
				}
				if r.Other[label] == nil {
					r.Other[label] = make(map[int]float64)
				}
				return r.Other[label]
			}
		}

		key := communeKey(rec)
		i, ok := index[key]
		if !ok {
			i = len(rows)
			index[key] = i
			rows = append(rows, Row{
				CommuneName:  strings.TrimSpace(rec.CommuneName),
				CommuneCode:  rec.CommuneCode,
				ProvinceName: strings.TrimSpace(rec.ProvinceName),
				Male:         make(map[int]float64),
				Female:       make(map[int]float64),
				Gap:          make(map[int]float64),
			})
		}
		row := &rows[i]
		if row.CommuneName == "" {
			row.CommuneName = strings.TrimSpace(rec.CommuneName)
		}
		dst := target(row)
		for _, y := range years {
			v, ok := rec.Values[y]
			if !ok {
				continue
			}
			if _, exists := dst[y]; exists {
				dup++
				continue
			}
			dst[y] = v
		}
	}
	if other > 0 {
		logger.L().Debug("gap_unrecognized_sex", "records", other, "detail", "kept for display only")
	}
	if dup > 0 {
		logger.L().Warn("gap_duplicate_values", "cells", dup, "detail", "kept first value per commune, sex and year")
	}
	return rows
}

// otherLabel names the display series of an unrecognized sex label.
func otherLabel(label string) string {
	label = strings.Join(strings.Fields(label), " ")
	if label == "" {
		return "Sin sexo"
	}
	return label
}

// AmbiguousNames returns the commune names, among records without a commune
// code, that appear under more than one province. Grouping such records by
// name would merge distinct communes.
func AmbiguousNames(records []dataset.Record) []string {
	provinces := make(map[string]map[string]bool)
	display := make(map[string]string)
	for _, r := range records {
		if r.HasCode() {
			continue
		}
		key := foldName(r.CommuneName)
		if key == "" {
			continue
		}
		if provinces[key] == nil {
			provinces[key] = make(map[string]bool)
			display[key] = strings.TrimSpace(r.CommuneName)
		}
		provinces[key][foldName(r.ProvinceName)] = true
	}
	var names []string
	for key, ps := range provinces {
		if len(ps) > 1 {
			names = append(names, display[key])
		}
	}
	sort.Strings(names)
	return names
}

func containsYear(years []int, y int) bool {
	for _, v := range years {
		if v == y {
			return true
		}
	}
	return false
}

func formatYears(years []int) string {
	switch len(years) {
	case 0:
		return "(none)"
	case 1:
		return fmt.Sprint(years[0])
	}
	return fmt.Sprintf("%d-%d", years[0], years[len(years)-1])
}
