package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/zalepa/indicadores/dataset"
	"github.com/zalepa/indicadores/gap"
)

type valueQuery struct {
	Region     string
	Province   string
	Measure    dataset.Measure
	Sex        dataset.Sex
	Descending bool
}

type valueResult struct {
	RegionCode int
	RegionName string
	Years      []int
	Measure    dataset.Measure
	Records    []dataset.Record
}

// values loads one region and ranks its communes by a year value or an
// extra column. A zero measure ranks by the latest year.
func (s *session) values(q valueQuery) (*valueResult, error) {
	if q.Measure.Column != "" && !contains(s.schema.Extra, q.Measure.Column) {
		return nil, badRequest(fmt.Errorf("%s has no column %q; available: %s", s.schema.Name, q.Measure.Column, strings.Join(s.schema.Extra, ", ")))
	}
	recs, code, name, err := s.loadRegion(q.Region, q.Province)
	if err != nil {
		return nil, err
	}
	if s.schema.SexSplit() {
		var kept []dataset.Record
		for _, r := range recs {
			if r.Sex == q.Sex {
				kept = append(kept, r)
			}
		}
		recs = kept
	}
	years := dataset.Years(recs)
	m := q.Measure
	if m.Column == "" {
		if m.Year == 0 && len(years) > 0 {
			m.Year = years[len(years)-1]
		}
		if !slices.Contains(years, m.Year) {
			return nil, fmt.Errorf("year %d: %w", m.Year, gap.ErrInvalidYearRange)
		}
	}
	return &valueResult{
		RegionCode: code,
		RegionName: name,
		Years:      years,
		Measure:    m,
		Records:    dataset.Rank(recs, m, q.Descending),
	}, nil
}

func measureLabel(m dataset.Measure) string {
	if m.Column != "" {
		return m.Column
	}
	return strconv.Itoa(m.Year)
}

func parseSexFlag(s string) (dataset.Sex, error) {
	sex := dataset.ParseSex(s)
	if sex == dataset.SexOther {
		return sex, fmt.Errorf("invalid --sex %q; valid options: hombres, mujeres, total", s)
	}
	return sex, nil
}

// Values implements the "values" subcommand: rank communes of a region by
// one indicator value.
func Values(args []string) {
	fs := flag.NewFlagSet("values", flag.ExitOnError)
	cf := addCommonFlags(fs, "Dependencia")
	region := fs.String("region", "", "region name or code")
	province := fs.String("province", "", "province filter")
	year := fs.Int("year", 0, "year to rank by (default: latest)")
	column := fs.String("column", "", "rank by an extra column instead of a year, e.g. Var_Porc")
	sexFlag := fs.String("sex", "total", "sex to show for sex-split indicators: hombres, mujeres, total")
	asc := fs.Bool("asc", false, "lowest first")
	limit := fs.Int("limit", 0, "show at most N communes (0 = all)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: indicadores values [region] [flags]

Rank the communes of a region by an indicator value.

Flags:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  indicadores values 13 --year 2022
  indicadores values Valparaíso --province "San Antonio" --column Var_Porc
  indicadores values 8 --indicator ingresos --sex mujeres
`)
	}
	fs.Parse(reorderArgs(args))
	if fs.NArg() > 0 {
		*region = strings.Join(fs.Args(), " ")
	}

	sex, err := parseSexFlag(*sexFlag)
	if err != nil {
		fail(err)
	}
	s, err := openSession(cf)
	if err != nil {
		fail(err)
	}
	res, err := s.values(valueQuery{
		Region:     *region,
		Province:   *province,
		Measure:    dataset.Measure{Year: *year, Column: *column},
		Sex:        sex,
		Descending: !*asc,
	})
	if err != nil {
		fail(err)
	}
	title := s.schema.Name + " - " + res.RegionName
	if *province != "" {
		title += " / " + *province
	}
	renderValues(os.Stdout, title, res, *limit)
}

func renderValues(w io.Writer, title string, res *valueResult, limit int) {
	fmt.Fprintln(w, color.CyanString(title))
	label := measureLabel(res.Measure)

	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader([]string{"#", "Comuna", "Provincia", label, "Tendencia"})
	tw.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
	})
	rank := 0
	for i, r := range res.Records {
		if limit > 0 && i >= limit {
			break
		}
		v, ok := res.Measure.Of(r)
		pos := ""
		if ok {
			rank++
			pos = strconv.Itoa(rank)
		}
		tw.Append([]string{pos, r.CommuneName, r.ProvinceName, formatValue(v, ok), sparkline(yearValues(r.Values, res.Years))})
	}
	tw.Render()
}
