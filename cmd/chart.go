package cmd

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/zalepa/indicadores/dataset"
	"github.com/zalepa/indicadores/gap"
	"github.com/zalepa/indicadores/logger"
)

var (
	chartBlue = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	chartRed  = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

type bar struct {
	label string
	value float64
}

// gapBars returns the computable gaps for the sort year, in row order.
func gapBars(res *gapResult, limit int) []bar {
	var bars []bar
	for _, r := range res.Rows {
		if v, ok := r.GapFor(res.SortYear); ok {
			bars = append(bars, bar{label: r.CommuneName, value: v})
		}
		if limit > 0 && len(bars) == limit {
			break
		}
	}
	return bars
}

// valueBars returns the ranked values, skipping communes without one.
func valueBars(res *valueResult, limit int) []bar {
	var bars []bar
	for _, r := range res.Records {
		if v, ok := res.Measure.Of(r); ok {
			bars = append(bars, bar{label: r.CommuneName, value: v})
		}
		if limit > 0 && len(bars) == limit {
			break
		}
	}
	return bars
}

// barPlot draws bars horizontally with the first bar on top. Negative
// values are drawn in red.
func barPlot(title, xLabel string, bars []bar) (*plot.Plot, error) {
	if len(bars) == 0 {
		return nil, errors.New("nothing to chart")
	}
	n := len(bars)
	pos := make(plotter.Values, n)
	neg := make(plotter.Values, n)
	labels := make([]string, n)
	// The y axis grows upward, so the first bar goes last.
	for i, b := range bars {
		j := n - 1 - i
		labels[j] = b.label
		if b.value < 0 {
			neg[j] = b.value
		} else {
			pos[j] = b.value
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(12)
	p.X.Label.Text = xLabel
	p.X.Tick.Marker = numTicks{}
	p.BackgroundColor = color.White

	width := vg.Points(10)
	posBars, err := plotter.NewBarChart(pos, width)
	if err != nil {
		return nil, err
	}
	posBars.Horizontal = true
	posBars.Color = chartBlue
	posBars.LineStyle.Width = 0

	negBars, err := plotter.NewBarChart(neg, width)
	if err != nil {
		return nil, err
	}
	negBars.Horizontal = true
	negBars.Color = chartRed
	negBars.LineStyle.Width = 0

	p.Add(plotter.NewGrid(), posBars, negBars)
	p.NominalY(labels...)
	return p, nil
}

func chartHeight(bars int) vg.Length {
	h := vg.Length(bars)*0.22*vg.Inch + 1.5*vg.Inch
	if h < 4*vg.Inch {
		h = 4 * vg.Inch
	}
	return h
}

// Chart implements the "chart" subcommand: a horizontal bar chart of gaps
// (sex-split indicators) or values, saved as PNG, SVG or PDF.
func Chart(args []string) {
	fs := flag.NewFlagSet("chart", flag.ExitOnError)
	cf := addCommonFlags(fs, "Brechas de Ingresos")
	region := fs.String("region", "", "region name or code")
	province := fs.String("province", "", "province filter")
	year := fs.Int("year", 0, "year to chart (default: latest)")
	column := fs.String("column", "", "chart an extra column instead of a year")
	sexFlag := fs.String("sex", "", "chart one sex instead of the gap: hombres, mujeres, total")
	limit := fs.Int("limit", 30, "chart at most N communes (0 = all)")
	out := fs.String("o", "chart.png", "output file (.png, .svg or .pdf)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: indicadores chart [region] [flags]

Draw a horizontal bar chart, largest first.

Flags:
`)
		fs.PrintDefaults()
	}
	fs.Parse(reorderArgs(args))
	if fs.NArg() > 0 {
		*region = strings.Join(fs.Args(), " ")
	}

	switch strings.ToLower(filepath.Ext(*out)) {
	case ".png", ".svg", ".pdf":
	default:
		fail(fmt.Errorf("unsupported output %q; use .png, .svg or .pdf", *out))
	}

	s, err := openSession(cf)
	if err != nil {
		fail(err)
	}
	p, bars, err := s.chart(*region, *province, *year, *column, *sexFlag, *limit)
	if err != nil {
		fail(err)
	}
	if err := p.Save(8*vg.Inch, chartHeight(bars), *out); err != nil {
		fail(fmt.Errorf("writing %s: %w", *out, err))
	}
	fmt.Printf("wrote %s\n", *out)
}

// chart builds the bar plot for a region. It returns the number of bars so
// callers can size the page.
func (s *session) chart(region, province string, year int, column, sexFlag string, limit int) (*plot.Plot, int, error) {
	var (
		bars   []bar
		title  string
		xLabel string
	)
	if s.schema.SexSplit() && sexFlag == "" && column == "" {
		res, err := s.gaps(gapQuery{Region: region, Province: province, Years: yearList(year), Order: gapOrder(year)})
		if err != nil {
			return nil, 0, err
		}
		bars = gapBars(res, limit)
		title = fmt.Sprintf("%s - %s, %d", s.schema.Name, res.RegionName, res.SortYear)
		xLabel = "Brecha (hombres - mujeres)"
		if skipped := len(res.Rows) - len(bars); skipped > 0 && limit == 0 {
			logger.L().Info("chart_rows_without_gap", "region", res.RegionName, "year", res.SortYear, "count", skipped)
		}
	} else {
		sex := dataset.SexTotal
		if sexFlag != "" {
			var err error
			if sex, err = parseSexFlag(sexFlag); err != nil {
				return nil, 0, err
			}
		}
		res, err := s.values(valueQuery{
			Region:     region,
			Province:   province,
			Measure:    dataset.Measure{Year: year, Column: column},
			Sex:        sex,
			Descending: true,
		})
		if err != nil {
			return nil, 0, err
		}
		bars = valueBars(res, limit)
		title = fmt.Sprintf("%s - %s", s.schema.Name, res.RegionName)
		xLabel = measureLabel(res.Measure)
	}
	if province != "" {
		title += " / " + province
	}
	p, err := barPlot(pdfText(title), xLabel, bars)
	return p, len(bars), err
}

func yearList(year int) []int {
	if year == 0 {
		return nil
	}
	return []int{year}
}

func gapOrder(year int) gap.Order {
	o := gap.DefaultOrder
	o.Year = year
	return o
}
