package cmd

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgpdf"

	"github.com/zalepa/indicadores/catalog"
	"github.com/zalepa/indicadores/dataset"
	"github.com/zalepa/indicadores/logger"
)

const (
	pageWidth  = 8.5 * vg.Inch
	pageHeight = 11 * vg.Inch
	pdfMargin  = 0.75 * vg.Inch
)

// summaryRow is one line of a report's summary table.
type summaryRow struct {
	name   string
	value  float64
	ok     bool
	values []float64
}

// Report implements the "report" subcommand: one PDF per region with a
// summary table and a bar chart, optionally merged into a single booklet.
func Report(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	cf := addCommonFlags(fs, "Brechas de Ingresos")
	regions := fs.String("regions", "", "comma-separated region names or codes (default: every region)")
	year := fs.Int("year", 0, "year to report (default: latest)")
	limit := fs.Int("limit", 30, "communes per bar chart (0 = all)")
	outDir := fs.String("dir", "reports", "output directory for per-region PDFs")
	merge := fs.String("merge", "", "also merge all region PDFs into this file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: indicadores report [flags]

Write a PDF report per region: a summary table with trends and a bar chart.

Flags:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  indicadores report --dir out
  indicadores report --regions 5,13 --merge brechas.pdf
`)
	}
	fs.Parse(reorderArgs(args))

	s, err := openSession(cf)
	if err != nil {
		fail(err)
	}
	codes, err := s.reportRegions(*regions)
	if err != nil {
		fail(err)
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fail(fmt.Errorf("creating output directory: %w", err))
	}

	var written []string
	var pages int
	for _, code := range codes {
		path := filepath.Join(*outDir, fmt.Sprintf("%s_region_%d.pdf", s.schema.Slug, code))
		if err := s.writeRegionReport(path, strconv.Itoa(code), *year, *limit); err != nil {
			fmt.Fprintf(os.Stderr, "skip region %d: %s\n", code, describe(err))
			continue
		}
		n, err := pdfPageCount(path)
		if err != nil {
			fail(fmt.Errorf("checking %s: %w", path, err))
		}
		pages += n
		written = append(written, path)
		fmt.Fprintf(os.Stderr, "wrote %s (%d pages)\n", path, n)
	}
	if len(written) == 0 {
		fail(errors.New("no region report could be written"))
	}

	if *merge != "" {
		if err := mergeReports(written, *merge, pages); err != nil {
			fail(err)
		}
		fmt.Printf("wrote %s (%d regions, %d pages)\n", *merge, len(written), pages)
	}
	fmt.Fprintf(os.Stderr, "Done: %d of %d regions\n", len(written), len(codes))
}

// reportRegions resolves the --regions list, or every catalog region.
func (s *session) reportRegions(list string) ([]int, error) {
	if strings.TrimSpace(list) == "" {
		cat, err := catalog.Resolve(s.schema.Dir, s.schema.RegionCode, s.schema.RegionName)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", catalog.ErrUnavailable, err)
		}
		if err := cat.Require(); err != nil {
			return nil, err
		}
		var codes []int
		for _, e := range cat.Entries() {
			codes = append(codes, e.Code)
		}
		return codes, nil
	}
	var codes []int
	for _, part := range strings.Split(list, ",") {
		code, _, err := resolveRegion(s.schema, part)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func (s *session) writeRegionReport(path, region string, year, limit int) error {
	title, sub, rows, err := s.summary(region, year)
	if err != nil {
		return err
	}
	p, bars, err := s.chart(region, "", year, "", "", limit)
	if err != nil {
		return err
	}

	c := vgpdf.New(pageWidth, pageHeight)
	drawSummaryPages(c, pdfText(title), sub, rows)
	c.NextPage()
	dc := draw.New(c)
	area := draw.Crop(dc, pdfMargin, -pdfMargin, pdfMargin, -pdfMargin)
	// Short charts keep their natural height at the top of the page.
	if h := chartHeight(bars); h < area.Max.Y-area.Min.Y {
		area.Min.Y = area.Max.Y - h
	}
	p.Draw(area)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := c.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// summary collects the table rows of a region: gaps with their trend for
// sex-split indicators, values otherwise.
func (s *session) summary(region string, year int) (title, sub string, rows []summaryRow, err error) {
	if s.schema.SexSplit() {
		res, err := s.gaps(gapQuery{Region: region, Order: gapOrder(year)})
		if err != nil {
			return "", "", nil, err
		}
		for _, r := range res.Rows {
			v, ok := r.GapFor(res.SortYear)
			rows = append(rows, summaryRow{name: r.CommuneName, value: v, ok: ok, values: yearValues(r.Gap, res.Years)})
		}
		return fmt.Sprintf("%s - %s", s.schema.Name, res.RegionName), yearsCaption("Brecha", res.SortYear, res.Years), rows, nil
	}
	res, err := s.values(valueQuery{Region: region, Measure: dataset.Measure{Year: year}, Descending: true})
	if err != nil {
		return "", "", nil, err
	}
	for _, r := range res.Records {
		v, ok := res.Measure.Of(r)
		rows = append(rows, summaryRow{name: r.CommuneName, value: v, ok: ok, values: yearValues(r.Values, res.Years)})
	}
	return fmt.Sprintf("%s - %s", s.schema.Name, res.RegionName), yearsCaption("Valor", res.Measure.Year, res.Years), rows, nil
}

func yearsCaption(what string, year int, years []int) string {
	if len(years) == 0 {
		return fmt.Sprintf("%s %d", what, year)
	}
	return fmt.Sprintf("%s %d; tendencia %d to %d (%d years)", what, year, years[0], years[len(years)-1], len(years))
}

const (
	summaryRowHeight = 0.30 * vg.Inch
	nameColWidth     = 2.2 * vg.Inch
	valueColWidth    = 0.9 * vg.Inch
)

func drawSummaryPages(c *vgpdf.Canvas, title, sub string, rows []summaryRow) {
	usableW := pageWidth - 2*pdfMargin
	usableH := pageHeight - 2*pdfMargin
	sparkColWidth := usableW - nameColWidth - valueColWidth

	headerHeight := 1.0 * vg.Inch
	maxRowsPerPage := int((usableH - headerHeight) / summaryRowHeight)

	pageNum := 0
	rowIdx := 0
	for pageNum == 0 || rowIdx < len(rows) {
		if pageNum > 0 {
			c.NextPage()
		}
		pageNum++

		dc := draw.New(c)
		area := draw.Crop(dc, pdfMargin, -pdfMargin, pdfMargin, -pdfMargin)

		var yTop vg.Length
		if pageNum == 1 {
			yTop = area.Max.Y
			fillText(area, title, vg.Points(14), area.Min.X, yTop-vg.Points(14), color.Black)
			fillText(area, sub, vg.Points(10), area.Min.X, yTop-0.35*vg.Inch, color.Gray{Y: 100})

			headerY := yTop - 0.6*vg.Inch
			fillText(area, "Comuna", vg.Points(10), area.Min.X, headerY, color.Gray{Y: 80})
			fillText(area, "Valor", vg.Points(10), area.Min.X+nameColWidth, headerY, color.Gray{Y: 80})
			fillText(area, "Tendencia", vg.Points(10), area.Min.X+nameColWidth+valueColWidth, headerY, color.Gray{Y: 80})

			sepY := headerY - vg.Points(6)
			strokeHLine(area, area.Min.X, area.Min.X+usableW, sepY, color.Gray{Y: 180})

			yTop = sepY - vg.Points(4)
		} else {
			yTop = area.Max.Y - vg.Points(8)
			fillText(area, title+" (cont.)", vg.Points(10), area.Min.X, yTop, color.Gray{Y: 100})
			yTop -= 0.25 * vg.Inch
		}

		rowsThisPage := maxRowsPerPage
		if pageNum == 1 {
			rowsThisPage = int((yTop - area.Min.Y) / summaryRowHeight)
		}

		for drawn := 0; rowIdx < len(rows) && drawn < rowsThisPage; drawn++ {
			r := rows[rowIdx]
			rowIdx++
			y := yTop - vg.Length(drawn)*summaryRowHeight - summaryRowHeight*0.65
			fillText(area, pdfText(r.name), vg.Points(9), area.Min.X, y, color.Black)

			valColor := color.Color(color.Black)
			if !r.ok {
				valColor = color.Gray{Y: 140}
			} else if r.value < 0 {
				valColor = chartRed
			}
			fillText(area, formatValue(r.value, r.ok), vg.Points(9), area.Min.X+nameColWidth, y, valColor)

			sparkX := area.Min.X + nameColWidth + valueColWidth
			sparkY := yTop - vg.Length(drawn)*summaryRowHeight - summaryRowHeight + vg.Points(2)
			sparkArea := draw.Canvas{
				Canvas: area.Canvas,
				Rectangle: vg.Rectangle{
					Min: vg.Point{X: sparkX, Y: sparkY},
					Max: vg.Point{X: sparkX + sparkColWidth, Y: sparkY + summaryRowHeight - vg.Points(3)},
				},
			}
			drawSparkline(sparkArea, r.values)
		}
	}
}

func drawSparkline(c draw.Canvas, vals []float64) {
	var pts plotter.XYs
	for i, v := range vals {
		if !math.IsNaN(v) {
			pts = append(pts, plotter.XY{X: float64(i), Y: v})
		}
	}
	if len(pts) < 2 {
		return
	}

	p := plot.New()
	p.HideAxes()
	p.BackgroundColor = color.Transparent

	line, err := plotter.NewLine(pts)
	if err != nil {
		return
	}
	line.Color = chartBlue
	line.Width = vg.Points(1.5)
	p.Add(line)

	p.X.Min = 0
	p.X.Max = float64(len(vals) - 1)
	minY, maxY := pts[0].Y, pts[0].Y
	for _, pt := range pts {
		minY = math.Min(minY, pt.Y)
		maxY = math.Max(maxY, pt.Y)
	}
	pad := (maxY - minY) * 0.1
	if pad == 0 {
		pad = 1
	}
	p.Y.Min = minY - pad
	p.Y.Max = maxY + pad

	p.Draw(c)
}

type numTicks struct{}

func (numTicks) Ticks(min, max float64) []plot.Tick {
	t := plot.DefaultTicks{}
	ticks := t.Ticks(min, max)
	for i := range ticks {
		if ticks[i].Label != "" {
			ticks[i].Label = formatCompact(ticks[i].Value)
		}
	}
	return ticks
}

func fillText(c draw.Canvas, txt string, size vg.Length, x, y vg.Length, clr color.Color) {
	sty := draw.TextStyle{
		Color:   clr,
		Font:    plot.DefaultFont,
		Handler: plot.DefaultTextHandler,
	}
	sty.Font.Size = size
	c.FillText(sty, vg.Point{X: x, Y: y}, txt)
}

func strokeHLine(c draw.Canvas, x0, x1, y vg.Length, clr color.Color) {
	c.StrokeLine2(draw.LineStyle{
		Color: clr,
		Width: vg.Points(0.5),
	}, x0, y, x1, y)
}

// pdfPageCount opens a PDF with pdfcpu and returns its page count.
func pdfPageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	ctx, err := pdfcpu.Read(f, model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return 0, fmt.Errorf("page count: %w", err)
	}
	return ctx.PageCount, nil
}

// mergeReports concatenates the region PDFs and checks that no page was
// lost.
func mergeReports(files []string, out string, wantPages int) error {
	if err := api.MergeCreateFile(files, out, false, model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("merging into %s: %w", out, err)
	}
	got, err := pdfPageCount(out)
	if err != nil {
		return fmt.Errorf("checking %s: %w", out, err)
	}
	if got != wantPages {
		return fmt.Errorf("%s has %d pages, want %d", out, got, wantPages)
	}
	logger.L().Info("report_merged", "file", out, "inputs", len(files), "pages", got)
	return nil
}
