package gap

import (
	"fmt"
	"sort"
)

// TotalLabel names the aggregate series among a row's display series.
const TotalLabel = "Total"

// Header returns the column names of the wide comparative table for years.
// Each display series in extras adds one column per year after the gap.
func Header(years []int, extras ...string) []string {
	h := []string{"Comuna", "Codigo", "Provincia"}
	for _, y := range years {
		h = append(h,
			fmt.Sprintf("%d Hombres", y),
			fmt.Sprintf("%d Mujeres", y),
			fmt.Sprintf("%d Brecha", y))
		for _, e := range extras {
			h = append(h, fmt.Sprintf("%d %s", y, e))
		}
	}
	return h
}

// Cells returns the row laid out as Header(years, extras...). Missing values
// are nil.
func (r Row) Cells(years []int, extras ...string) []any {
	cells := []any{r.CommuneName, nil, r.ProvinceName}
	if r.CommuneCode != 0 {
		cells[1] = r.CommuneCode
	}
	for _, y := range years {
		cells = append(cells, lookup(r.Male, y), lookup(r.Female, y), lookup(r.Gap, y))
		for _, e := range extras {
			cells = append(cells, lookup(r.Series(e), y))
		}
	}
	return cells
}

// Series returns the display-only values kept under label: the totals for
// TotalLabel, otherwise the unrecognized sex label's values.
func (r Row) Series(label string) map[int]float64 {
	if label == TotalLabel {
		return r.Total
	}
	return r.Other[label]
}

// ExtraLabels returns the display series present in rows, TotalLabel first
// and then the other labels in alphabetical order.
func ExtraLabels(rows []Row) []string {
	var total bool
	seen := make(map[string]bool)
	for _, r := range rows {
		if len(r.Total) > 0 {
			total = true
		}
		for label := range r.Other {
			seen[label] = true
		}
	}
	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	if total {
		labels = append([]string{TotalLabel}, labels...)
	}
	return labels
}

func lookup(m map[int]float64, y int) any {
	if v, ok := m[y]; ok {
		return v
	}
	return nil
}

// RowYears returns the sorted set of years that appear in any of the rows'
// series, display-only ones included.
func RowYears(rows []Row) []int {
	seen := make(map[int]bool)
	mark := func(m map[int]float64) {
		for y := range m {
			seen[y] = true
		}
	}
	for _, r := range rows {
		mark(r.Male)
		mark(r.Female)
		mark(r.Total)
		for _, m := range r.Other {
			mark(m)
		}
	}
	var years []int
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
