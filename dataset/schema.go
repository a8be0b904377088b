package dataset

import (
	"errors"
	"strconv"
	"strings"

	"github.com/zalepa/indicadores/table"
)

// Schema maps the logical fields of an indicator to the physical column
// names used in its files. Column spellings drift between indicators
// ("codregion" vs "Codigo_Region"), so every loader call carries one.
type Schema struct {
	Name       string `yaml:"name" json:"name"`
	Slug       string `yaml:"slug" json:"slug"`
	Dir        string `yaml:"dir" json:"-"`
	FilePrefix string `yaml:"file_prefix" json:"-"`

	RegionCode   string `yaml:"region_code" json:"-"`
	RegionName   string `yaml:"region_name" json:"-"`
	ProvinceName string `yaml:"province_name" json:"-"`
	CommuneName  string `yaml:"commune_name" json:"-"`
	CommuneCode  string `yaml:"commune_code" json:"-"`
	// Sex is empty for indicators that are not split by sex.
	Sex string `yaml:"sex" json:"-"`

	YearPrefix string   `yaml:"year_prefix" json:"-"`
	Extra      []string `yaml:"extra" json:"extra,omitempty"`
}

// SexSplit reports whether records of this indicator carry a sex label.
func (s Schema) SexSplit() bool { return s.Sex != "" }

// Required lists the configured physical columns that every file must have.
func (s Schema) Required() []string {
	var cols []string
	for _, c := range []string{s.RegionCode, s.RegionName, s.ProvinceName, s.CommuneName, s.CommuneCode, s.Sex} {
		if c != "" {
			cols = append(cols, c)
		}
	}
	return append(cols, s.Extra...)
}

// FileName builds the expected file name for a region: prefix + code + ext.
func (s Schema) FileName(code int, ext string) string {
	return s.FilePrefix + strconv.Itoa(code) + ext
}

// Validate checks that the descriptor names the columns the loader and the
// catalog resolver depend on.
func (s Schema) Validate() error {
	var problems []string
	if strings.TrimSpace(s.Name) == "" {
		problems = append(problems, "name is required")
	}
	if s.Dir == "" {
		problems = append(problems, "dir is required")
	}
	if s.RegionCode == "" || s.RegionName == "" {
		problems = append(problems, "region_code and region_name are required")
	}
	if s.CommuneName == "" && s.CommuneCode == "" {
		problems = append(problems, "commune_name or commune_code is required")
	}
	if s.YearPrefix == "" {
		problems = append(problems, "year_prefix is required")
	}
	if len(problems) > 0 {
		return errors.New(s.Name + ": " + strings.Join(problems, "; "))
	}
	return nil
}

// yearColumns maps header positions to the year encoded after YearPrefix.
// Columns such as "YEAR_2022_pct" that do not end in a year are ignored.
func (s Schema) yearColumns(t *table.Table) map[int]int {
	cols := make(map[int]int)
	for _, name := range t.ColumnsWithPrefix(s.YearPrefix) {
		year, err := strconv.Atoi(strings.TrimSpace(name[len(s.YearPrefix):]))
		if err != nil || year < 1000 || year > 9999 {
			continue
		}
		cols[t.Index(name)] = year
	}
	return cols
}
