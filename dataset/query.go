package dataset

import (
	"sort"
	"strings"
)

// Provinces returns the distinct non-empty province names, sorted.
func Provinces(recs []Record) []string {
	seen := make(map[string]bool)
	for _, r := range recs {
		if p := strings.TrimSpace(r.ProvinceName); p != "" {
			seen[p] = true
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// FilterProvince keeps the records of one province (case-insensitive).
func FilterProvince(recs []Record, province string) []Record {
	province = strings.TrimSpace(province)
	var out []Record
	for _, r := range recs {
		if strings.EqualFold(strings.TrimSpace(r.ProvinceName), province) {
			out = append(out, r)
		}
	}
	return out
}

// Years returns every year that has at least one value, ascending.
func Years(recs []Record) []int {
	seen := make(map[int]bool)
	for _, r := range recs {
		for y := range r.Values {
			seen[y] = true
		}
	}
	out := make([]int, 0, len(seen))
	for y := range seen {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

// Measure selects what Rank orders by: a year value, or an extra column
// such as a year-over-year variation when Column is set.
type Measure struct {
	Year   int
	Column string
}

// Of returns the measure's value for r.
func (m Measure) Of(r Record) (float64, bool) {
	if m.Column != "" {
		v, ok := r.Extra[m.Column]
		return v, ok
	}
	return r.Value(m.Year)
}

// Rank returns a copy of recs ordered by m. Records without a value sort
// last regardless of direction; ties keep commune-name order.
func Rank(recs []Record, m Measure, descending bool) []Record {
	out := append([]Record(nil), recs...)
	sort.SliceStable(out, func(i, j int) bool {
		vi, oki := m.Of(out[i])
		vj, okj := m.Of(out[j])
		if oki != okj {
			return oki
		}
		if !oki || vi == vj {
			return out[i].CommuneName < out[j].CommuneName
		}
		if descending {
			return vi > vj
		}
		return vi < vj
	})
	return out
}
