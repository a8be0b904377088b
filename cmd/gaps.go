package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/zalepa/indicadores/gap"
	"github.com/zalepa/indicadores/table"
)

// gapQuery selects the rows of one comparative table.
type gapQuery struct {
	Region   string
	Province string
	Years    []int
	Order    gap.Order
}

// gapResult is a normalized region together with what was used to build it.
type gapResult struct {
	RegionCode int
	RegionName string
	Years      []int
	SortYear   int
	Rows       []gap.Row
}

// gaps loads one region and normalizes it. Years is resolved to the years
// actually shown, so callers can lay out columns without a second pass.
func (s *session) gaps(q gapQuery) (*gapResult, error) {
	recs, code, name, err := s.loadRegion(q.Region, q.Province)
	if err != nil {
		return nil, err
	}
	rows, err := gap.Normalize(recs, q.Years, gap.OrderBy(q.Order))
	if err != nil {
		return nil, err
	}
	years := q.Years
	if len(years) == 0 {
		years = gap.RowYears(rows)
	}
	sortYear := q.Order.Year
	if sortYear == 0 && len(years) > 0 {
		sortYear = years[len(years)-1]
	}
	return &gapResult{RegionCode: code, RegionName: name, Years: years, SortYear: sortYear, Rows: rows}, nil
}

func addOrderFlags(fs *flag.FlagSet) (key *string, year *int, asc *bool) {
	key = fs.String("sort", "magnitude", "order rows by: magnitude, gap, name, code")
	year = fs.Int("sort-year", 0, "year to order by (default: latest requested year)")
	asc = fs.Bool("asc", false, "ascending order")
	return key, year, asc
}

func parseOrder(key string, year int, asc bool) (gap.Order, error) {
	k, ok := gap.ParseSortKey(key)
	if !ok {
		return gap.Order{}, fmt.Errorf("invalid --sort %q; valid options: magnitude, gap, name, code", key)
	}
	// Names and codes read naturally ascending; the flag then flips them.
	if k == gap.ByName || k == gap.ByCode {
		asc = !asc
	}
	return gap.Order{Key: k, Year: year, Ascending: asc}, nil
}

// Gaps implements the "gaps" subcommand.
func Gaps(args []string) {
	fs := flag.NewFlagSet("gaps", flag.ExitOnError)
	cf := addCommonFlags(fs, "Brechas de Ingresos")
	region := fs.String("region", "", "region name or code")
	province := fs.String("province", "", "province filter")
	years := fs.String("years", "", "years to show, e.g. 2017,2020 or 2015-2022 (default: all)")
	sortKey, sortYear, asc := addOrderFlags(fs)
	limit := fs.Int("limit", 0, "show at most N communes (0 = all)")
	xlsxOut := fs.String("xlsx", "", "also write the wide comparative table to this .xlsx file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: indicadores gaps [region] [flags]

Compare male and female values per commune for one region.
The gap is male minus female; communes missing either sex show "- -".

Flags:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  indicadores gaps "Región Metropolitana de Santiago"
  indicadores gaps 13 --years 2017,2022 --sort gap
  indicadores gaps 5 --province Valparaíso --xlsx valparaiso.xlsx
`)
	}
	fs.Parse(reorderArgs(args))
	if fs.NArg() > 0 {
		*region = strings.Join(fs.Args(), " ")
	}

	yrs, err := parseYears(*years)
	if err != nil {
		fail(err)
	}
	order, err := parseOrder(*sortKey, *sortYear, *asc)
	if err != nil {
		fail(err)
	}
	s, err := openSession(cf)
	if err != nil {
		fail(err)
	}
	res, err := s.gaps(gapQuery{Region: *region, Province: *province, Years: yrs, Order: order})
	if err != nil {
		fail(err)
	}

	title := s.schema.Name + " - " + res.RegionName
	if *province != "" {
		title += " / " + *province
	}
	renderGaps(os.Stdout, title, res, *limit)

	if *xlsxOut != "" {
		if err := writeGapsXLSX(*xlsxOut, res); err != nil {
			fail(fmt.Errorf("writing %s: %w", *xlsxOut, err))
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", *xlsxOut)
	}
}

func renderGaps(w io.Writer, title string, res *gapResult, limit int) {
	y := res.SortYear
	fmt.Fprintln(w, color.CyanString(title))
	if len(res.Years) > 0 {
		fmt.Fprintf(w, "Years: %d to %d (%d)\n", res.Years[0], res.Years[len(res.Years)-1], len(res.Years))
	}

	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	extras := gap.ExtraLabels(res.Rows)
	header := []string{"Comuna", "Provincia",
		fmt.Sprintf("Hombres %d", y), fmt.Sprintf("Mujeres %d", y), fmt.Sprintf("Brecha %d", y)}
	align := []int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
	}
	for _, e := range extras {
		header = append(header, fmt.Sprintf("%s %d", e, y))
		align = append(align, tablewriter.ALIGN_RIGHT)
	}
	tw.SetHeader(append(header, "Tendencia"))
	tw.SetColumnAlignment(append(align, tablewriter.ALIGN_LEFT))

	var noGap int
	for i, r := range res.Rows {
		if limit > 0 && i >= limit {
			break
		}
		male, okM := r.Male[y]
		female, okF := r.Female[y]
		g, okG := r.GapFor(y)
		if !okG {
			noGap++
		}
		gs := formatValue(g, okG)
		if okG && g < 0 {
			gs = color.RedString(gs)
		}
		line := []string{
			r.CommuneName, r.ProvinceName,
			formatValue(male, okM), formatValue(female, okF), gs,
		}
		for _, e := range extras {
			v, ok := r.Series(e)[y]
			line = append(line, formatValue(v, ok))
		}
		tw.Append(append(line, sparkline(yearValues(r.Gap, res.Years))))
	}
	tw.Render()
	if noGap > 0 {
		fmt.Fprintf(w, "%d commune(s) without a gap for %d\n", noGap, y)
	}
}

func writeGapsXLSX(path string, res *gapResult) error {
	extras := gap.ExtraLabels(res.Rows)
	rows := make([][]any, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = r.Cells(res.Years, extras...)
	}
	return table.WriteXLSX(path, table.Sheet{
		Name:   sheetName(res.RegionName),
		Header: gap.Header(res.Years, extras...),
		Rows:   rows,
		Width:  14,
	})
}

// sheetName fits s to Excel's sheet-name rules.
func sheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" {
		return "Brechas"
	}
	if r := []rune(s); len(r) > 31 {
		s = string(r[:31])
	}
	return s
}
