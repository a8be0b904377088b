package geo

import (
	"sort"

	"github.com/zalepa/indicadores/dataset"
	"github.com/zalepa/indicadores/gap"
)

// Shaded is a boundary with the value it should be colored by. OK is false
// when the commune has no value; such communes render as "no data".
type Shaded struct {
	Boundary
	Value float64
	OK    bool
}

// Join attaches values keyed by commune code to boundaries. It also returns
// the codes present in values that have no boundary, ascending.
func Join(bs []Boundary, values map[int]float64) ([]Shaded, []int) {
	seen := make(map[int]bool, len(bs))
	out := make([]Shaded, len(bs))
	for i, b := range bs {
		v, ok := values[b.Code]
		out[i] = Shaded{Boundary: b, Value: v, OK: ok}
		seen[b.Code] = true
	}
	var unmatched []int
	for code := range values {
		if !seen[code] {
			unmatched = append(unmatched, code)
		}
	}
	sort.Ints(unmatched)
	return out, unmatched
}

// GapValues keys the computable gaps for year by commune code. Rows without
// a code cannot be joined and are left out.
func GapValues(rows []gap.Row, year int) map[int]float64 {
	out := make(map[int]float64)
	for _, r := range rows {
		if r.CommuneCode == 0 {
			continue
		}
		if v, ok := r.GapFor(year); ok {
			out[r.CommuneCode] = v
		}
	}
	return out
}

// RecordValues keys the measure of each coded record by commune code. For
// sex-split indicators pass the sex to keep; SexOther keeps every record.
func RecordValues(recs []dataset.Record, m dataset.Measure, sex dataset.Sex) map[int]float64 {
	out := make(map[int]float64)
	for _, r := range recs {
		if !r.HasCode() || (sex != dataset.SexOther && r.Sex != sex) {
			continue
		}
		if v, ok := m.Of(r); ok {
			out[r.CommuneCode] = v
		}
	}
	return out
}
