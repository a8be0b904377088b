package cmd

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"math"
	"os"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/zalepa/indicadores/dataset"
	"github.com/zalepa/indicadores/geo"
	"github.com/zalepa/indicadores/logger"
)

var noDataGray = color.Gray{Y: 200}

// layer is what a choropleth colors: values by commune code, plus the codes
// that belong to the region whether or not they have a value.
type layer struct {
	title    string
	values   map[int]float64
	codes    map[int]bool
	diverge  bool
	hasLabel bool
}

// shade maps v onto a color. Diverging layers run red (negative) through
// white to blue (positive) scaled by the largest magnitude; others run from
// white to blue between lo and hi.
func shade(v, lo, hi float64, diverge bool) color.Color {
	var t float64
	base := chartBlue
	if diverge {
		m := math.Max(math.Abs(lo), math.Abs(hi))
		if m > 0 {
			t = math.Abs(v) / m
		}
		if v < 0 {
			base = chartRed
		}
	} else if hi > lo {
		t = (v - lo) / (hi - lo)
	} else {
		t = 1
	}
	t = 0.15 + 0.85*math.Min(math.Max(t, 0), 1)
	mix := func(c uint8) uint8 { return uint8(255 - t*(255-float64(c))) }
	return color.RGBA{R: mix(base.R), G: mix(base.G), B: mix(base.B), A: 255}
}

func valueRange(values map[int]float64) (lo, hi float64) {
	first := true
	for _, v := range values {
		if first {
			lo, hi, first = v, v, false
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	return lo, hi
}

// choropleth draws the boundaries of the region's communes. Communes with
// no value are drawn gray and listed as "Sin datos" in the legend.
func choropleth(bs []geo.Boundary, l layer) (*plot.Plot, error) {
	var region []geo.Boundary
	for _, b := range bs {
		if l.codes[b.Code] {
			region = append(region, b)
		}
	}
	if len(region) == 0 {
		return nil, errors.New("no boundary matches the region's commune codes; check the boundary code property")
	}
	shaded, unmatched := geo.Join(region, l.values)
	if len(unmatched) > 0 {
		logger.L().Warn("map_codes_without_boundary", "codes", unmatched)
	}
	lo, hi := valueRange(l.values)

	p := plot.New()
	p.Title.Text = pdfText(l.title)
	p.HideAxes()
	p.BackgroundColor = color.White

	var noData int
	var labels plotter.XYLabels
	for _, s := range shaded {
		fill := color.Color(noDataGray)
		if s.OK {
			fill = shade(s.Value, lo, hi, l.diverge)
		} else {
			noData++
		}
		for _, ring := range s.Outlines() {
			xys := make(plotter.XYs, len(ring))
			for i, c := range ring {
				xys[i] = plotter.XY{X: c[0], Y: c[1]}
			}
			poly, err := plotter.NewPolygon(xys)
			if err != nil {
				return nil, err
			}
			poly.Color = fill
			poly.LineStyle = draw.LineStyle{Color: color.White, Width: vg.Points(0.4)}
			p.Add(poly)
		}
		if l.hasLabel && s.Name != "" {
			if c, err := s.Centroid(); err == nil {
				labels.XYs = append(labels.XYs, plotter.XY{X: c[0], Y: c[1]})
				labels.Labels = append(labels.Labels, s.Name)
			}
		}
	}
	if len(labels.Labels) > 0 {
		lbl, err := plotter.NewLabels(labels)
		if err != nil {
			return nil, err
		}
		for i := range lbl.TextStyle {
			lbl.TextStyle[i].Font.Size = vg.Points(5)
			lbl.TextStyle[i].XAlign = draw.XCenter
		}
		p.Add(lbl)
	}

	if len(l.values) > 0 {
		p.Legend.Add(formatNum(lo), legendSwatch(shade(lo, lo, hi, l.diverge)))
		p.Legend.Add(formatNum(hi), legendSwatch(shade(hi, lo, hi, l.diverge)))
	}
	if noData > 0 {
		p.Legend.Add(fmt.Sprintf("Sin datos (%d)", noData), legendSwatch(noDataGray))
	}
	p.Legend.Top = true

	minX, minY, maxX, maxY := geo.Extent(region)
	p.X.Min, p.X.Max = minX, maxX
	p.Y.Min, p.Y.Max = minY, maxY
	return p, nil
}

func legendSwatch(c color.Color) plot.Thumbnailer {
	poly, _ := plotter.NewPolygon(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}})
	poly.Color = c
	poly.LineStyle.Width = 0
	return poly
}

// mapSize keeps the map's aspect ratio within a width of w.
func mapSize(p *plot.Plot, w vg.Length) vg.Length {
	dx, dy := p.X.Max-p.X.Min, p.Y.Max-p.Y.Min
	if dx <= 0 || dy <= 0 {
		return w
	}
	h := w * vg.Length(dy/dx)
	return vg.Length(math.Min(math.Max(float64(h), float64(4*vg.Inch)), float64(14*vg.Inch)))
}

// mapLayer builds the choropleth layer for a region: gaps for sex-split
// indicators unless a sex is chosen, values otherwise.
func (s *session) mapLayer(region, province string, year int, column, sexFlag string) (layer, error) {
	if s.schema.SexSplit() && sexFlag == "" && column == "" {
		res, err := s.gaps(gapQuery{Region: region, Province: province, Years: yearList(year), Order: gapOrder(year)})
		if err != nil {
			return layer{}, err
		}
		codes := make(map[int]bool)
		for _, r := range res.Rows {
			if r.CommuneCode != 0 {
				codes[r.CommuneCode] = true
			}
		}
		return layer{
			title:   fmt.Sprintf("%s - %s, brecha %d", s.schema.Name, res.RegionName, res.SortYear),
			values:  geo.GapValues(res.Rows, res.SortYear),
			codes:   codes,
			diverge: true,
		}, nil
	}

	sex := dataset.SexTotal
	if sexFlag != "" {
		var err error
		if sex, err = parseSexFlag(sexFlag); err != nil {
			return layer{}, err
		}
	}
	res, err := s.values(valueQuery{Region: region, Province: province, Measure: dataset.Measure{Year: year, Column: column}, Sex: sex})
	if err != nil {
		return layer{}, err
	}
	codes := make(map[int]bool)
	for _, r := range res.Records {
		if r.HasCode() {
			codes[r.CommuneCode] = true
		}
	}
	keep := dataset.SexOther
	if s.schema.SexSplit() {
		keep = sex
	}
	return layer{
		title:   fmt.Sprintf("%s - %s, %s", s.schema.Name, res.RegionName, measureLabel(res.Measure)),
		values:  geo.RecordValues(res.Records, res.Measure, keep),
		codes:   codes,
		diverge: res.Measure.Column != "",
	}, nil
}

// Map implements the "map" subcommand: a choropleth of one region.
func Map(args []string) {
	fs := flag.NewFlagSet("map", flag.ExitOnError)
	cf := addCommonFlags(fs, "Brechas de Ingresos")
	region := fs.String("region", "", "region name or code")
	province := fs.String("province", "", "province filter")
	year := fs.Int("year", 0, "year to map (default: latest)")
	column := fs.String("column", "", "map an extra column instead of a year")
	sexFlag := fs.String("sex", "", "map one sex instead of the gap: hombres, mujeres, total")
	boundary := fs.String("boundary", "", "GeoJSON commune boundaries (default $BOUNDARY_FILE)")
	labels := fs.Bool("labels", false, "print commune names at their centroids")
	out := fs.String("o", "map.png", "output file (.png, .svg or .pdf)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: indicadores map [region] [flags]

Draw a choropleth of a region's communes. Communes without data are gray.

Flags:
`)
		fs.PrintDefaults()
	}
	fs.Parse(reorderArgs(args))
	if fs.NArg() > 0 {
		*region = strings.Join(fs.Args(), " ")
	}

	s, err := openSession(cf)
	if err != nil {
		fail(err)
	}
	if *boundary == "" {
		*boundary = s.cfg.BoundaryFile
	}
	if *boundary == "" {
		fail(errors.New("no boundary file; pass --boundary or set BOUNDARY_FILE"))
	}
	bs, err := geo.LoadBoundaries(*boundary, s.cfg.BoundaryCode, s.cfg.BoundaryName)
	if err != nil {
		fail(err)
	}
	l, err := s.mapLayer(*region, *province, *year, *column, *sexFlag)
	if err != nil {
		fail(err)
	}
	l.hasLabel = *labels
	p, err := choropleth(bs, l)
	if err != nil {
		fail(err)
	}
	w := 8 * vg.Inch
	if err := p.Save(w, mapSize(p, w), *out); err != nil {
		fail(fmt.Errorf("writing %s: %w", *out, err))
	}
	fmt.Printf("wrote %s\n", *out)
}
