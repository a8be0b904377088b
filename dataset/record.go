// Package dataset loads one indicator file for one region into records,
// validating columns against a per-indicator Schema and normalizing numeric
// cells.
package dataset

import (
	"fmt"
	"strings"
)

// Sex is the canonical form of a record's sex label.
type Sex int

const (
	SexOther Sex = iota
	SexMale
	SexFemale
	SexTotal
)

var sexNames = map[Sex]string{
	SexOther:  "Other",
	SexMale:   "Male",
	SexFemale: "Female",
	SexTotal:  "Total",
}

var sexLabels = map[string]Sex{
	"hombre": SexMale, "hombres": SexMale, "h": SexMale, "masculino": SexMale,
	"varón": SexMale, "varones": SexMale, "male": SexMale, "m": SexMale,
	"mujer": SexFemale, "mujeres": SexFemale, "f": SexFemale, "femenino": SexFemale,
	"female": SexFemale,
	"total": SexTotal, "ambos sexos": SexTotal, "ambos": SexTotal,
}

// ParseSex trims and case-folds label. Unrecognized labels map to SexOther.
func ParseSex(label string) Sex {
	fold := strings.Join(strings.Fields(strings.ToLower(label)), " ")
	if s, ok := sexLabels[fold]; ok {
		return s
	}
	return SexOther
}

func (s Sex) String() string { return sexNames[s] }

func (s Sex) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Sex) UnmarshalText(b []byte) error {
	for k, v := range sexNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown sex %q", b)
}

// Record is one row of a loaded indicator file. Values holds only the years
// whose cell parsed as a number; an absent year means "no data".
type Record struct {
	RegionName   string             `json:"region,omitempty"`
	ProvinceName string             `json:"province,omitempty"`
	CommuneName  string             `json:"commune"`
	CommuneCode  int                `json:"communeCode,omitempty"`
	Sex          Sex                `json:"sex"`
	SexLabel     string             `json:"sexLabel,omitempty"`
	Values       map[int]float64    `json:"values"`
	Extra        map[string]float64 `json:"extra,omitempty"`
}

// HasCode reports whether the record carries a commune code.
func (r Record) HasCode() bool { return r.CommuneCode != 0 }

// Value returns the value for year.
func (r Record) Value(year int) (float64, bool) {
	v, ok := r.Values[year]
	return v, ok
}
