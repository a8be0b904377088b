package gap

import (
	"math"
	"sort"
	"strings"
)

// SortKey selects how rows are ordered.
type SortKey int

const (
	// ByMagnitude orders by the absolute gap.
	ByMagnitude SortKey = iota
	// ByGap orders by the signed gap.
	ByGap
	// ByName orders alphabetically by commune name.
	ByName
	// ByCode orders by commune code.
	ByCode
)

// ParseSortKey accepts "magnitude", "gap", "name" and "code".
func ParseSortKey(s string) (SortKey, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "magnitude":
		return ByMagnitude, true
	case "gap":
		return ByGap, true
	case "name":
		return ByName, true
	case "code":
		return ByCode, true
	}
	return 0, false
}

// Order is a presentation choice, not a property of the data. Year 0
// means the most recent requested year. Rows without a gap for the sort
// year always come last.
type Order struct {
	Key       SortKey
	Year      int
	Ascending bool
}

// DefaultOrder is descending gap magnitude for the most recent year.
var DefaultOrder = Order{Key: ByMagnitude}

type options struct {
	order Order
}

// Option configures Normalize.
type Option func(*options)

// OrderBy overrides DefaultOrder.
func OrderBy(o Order) Option {
	return func(opts *options) { opts.order = o }
}

func sortRows(rows []Row, o Order, year int) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch o.Key {
		case ByName:
			if c := compareNames(a, b); c != 0 {
				return (c < 0) == o.Ascending
			}
			return tieBreak(a, b)
		case ByCode:
			if a.CommuneCode != b.CommuneCode {
				return (a.CommuneCode < b.CommuneCode) == o.Ascending
			}
			return tieBreak(a, b)
		}

		va, okA := a.GapFor(year)
		vb, okB := b.GapFor(year)
		if okA != okB {
			return okA
		}
		if okA {
			if o.Key == ByMagnitude {
				va, vb = math.Abs(va), math.Abs(vb)
			}
			if va != vb {
				return (va < vb) == o.Ascending
			}
		}
		return tieBreak(a, b)
	})
}

func compareNames(a, b Row) int {
	return strings.Compare(foldName(a.CommuneName), foldName(b.CommuneName))
}

func tieBreak(a, b Row) bool {
	if c := compareNames(a, b); c != 0 {
		return c < 0
	}
	return a.CommuneCode < b.CommuneCode
}
