package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/zalepa/indicadores/catalog"
	"github.com/zalepa/indicadores/dataset"
	"github.com/zalepa/indicadores/gap"
	"github.com/zalepa/indicadores/geo"
	"github.com/zalepa/indicadores/table"
)

func init() {
	color.NoColor = true
}

var ingresosHeader = []string{"codregion", "Nombre_Region", "Nombre_Provincia", "Nombre_comuna", "Cod_Comuna", "Sexo", "YEAR_2020", "YEAR_2022"}

var dependenciaHeader = []string{"Codigo_Region", "Nombre_Region", "Nombre_Provincia", "Nombre_comuna", "cod_comuna", "YEAR_2021", "YEAR_2022", "Var_Porc"}

// writeFixtures lays out a data directory with two indicators for the
// Valparaíso region (code 5) and ingresos for Antofagasta (code 2).
func writeFixtures(t *testing.T, dir string) {
	t.Helper()
	for _, sub := range []string{"ingresos", "dependencia"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			t.Fatal(err)
		}
	}
	ingresos := map[int][][]any{
		5: {
			{5, "Valparaíso", "Valparaíso", "Viña del Mar", 5109, "Hombre", 500, 600},
			{5, "Valparaíso", "Valparaíso", "Viña del Mar", 5109, "Mujer", 400, 450},
			{5, "Valparaíso", "Valparaíso", "Valparaíso", 5101, "Hombre", 300, nil},
			{5, "Valparaíso", "Valparaíso", "Valparaíso", 5101, "Mujer", 350, 380},
			{5, "Valparaíso", "San Antonio", "Cartagena", 5603, "Hombre", 200, 260},
			{5, "Valparaíso", "San Antonio", "Cartagena", 5603, "Mujer", 210, 200},
			{5, "Valparaíso", "San Antonio", "Cartagena", 5603, "Total", 205, 230},
		},
		2: {
			{2, "Antofagasta", "Tocopilla", "Tocopilla", 2301, "Hombre", 100, 120},
			{2, "Antofagasta", "Tocopilla", "Tocopilla", 2301, "Mujer", 110, 100},
		},
	}
	for code, rows := range ingresos {
		path := filepath.Join(dir, "ingresos", fmt.Sprintf("Region_%d.xlsx", code))
		if err := table.WriteXLSX(path, table.Sheet{Name: "Datos", Header: ingresosHeader, Rows: rows}); err != nil {
			t.Fatal(err)
		}
	}
	dep := [][]any{
		{5, "Valparaíso", "Valparaíso", "Viña del Mar", 5109, 48.2, 50.1, 3.9},
		{5, "Valparaíso", "Valparaíso", "Valparaíso", 5101, 52.0, 51.0, -1.9},
		{5, "Valparaíso", "San Antonio", "Cartagena", 5603, 60.5, nil, nil},
	}
	path := filepath.Join(dir, "dependencia", "Region_5.xlsx")
	if err := table.WriteXLSX(path, table.Sheet{Name: "Datos", Header: dependenciaHeader, Rows: dep}); err != nil {
		t.Fatal(err)
	}
}

func testSession(t *testing.T, indicator string) *session {
	t.Helper()
	dir := t.TempDir()
	writeFixtures(t, dir)
	t.Setenv("DATA_DIR", dir)
	t.Setenv("REDIS_ADDR", "")
	cfgPath := filepath.Join(dir, "indicators.yaml")
	data := ""
	s, err := openSession(commonFlags{config: &cfgPath, data: &data, indicator: &indicator})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestReorderArgs(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{[]string{"13", "--years", "2017"}, []string{"--years", "2017", "13"}},
		{[]string{"--asc", "13"}, []string{"--asc", "13"}},
		{[]string{"Los", "Ríos", "-sort=name"}, []string{"-sort=name", "Los", "Ríos"}},
		{[]string{"-o", "out.png", "--", "-5"}, []string{"-o", "out.png", "-5"}},
	}
	for _, tt := range tests {
		if got := reorderArgs(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("reorderArgs(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseYears(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"", nil, false},
		{"2022", []int{2022}, false},
		{"2022, 2017,2022", []int{2017, 2022}, false},
		{"2015-2017,2020", []int{2015, 2016, 2017, 2020}, false},
		{"2020-2017", nil, true},
		{"veinte", nil, true},
	}
	for _, tt := range tests {
		got, err := parseYears(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseYears(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseYears(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatNum(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
		{1234.56, "1,234.6"},
		{-0.04, "0.0"},
		{-150.25, "-150.2"},
		{math.NaN(), "- -"},
	}
	for _, tt := range tests {
		if got := formatNum(tt.in); got != tt.want {
			t.Errorf("formatNum(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := formatValue(0, false); got != "- -" {
		t.Errorf("formatValue(missing) = %q, want %q", got, "- -")
	}
}

func TestSparkline(t *testing.T) {
	if got := sparkline([]float64{1, math.NaN(), 8}); got != "▁ █" {
		t.Errorf("sparkline = %q", got)
	}
	if got := sparkline([]float64{math.NaN(), math.NaN()}); got != "  " {
		t.Errorf("sparkline(all missing) = %q", got)
	}
	if got := sparkline([]float64{3, 3}); got != "▅▅" {
		t.Errorf("sparkline(flat) = %q", got)
	}
}

func TestYearValues(t *testing.T) {
	vals := yearValues(map[int]float64{2020: 1, 2022: 3}, []int{2020, 2021, 2022})
	if vals[0] != 1 || !math.IsNaN(vals[1]) || vals[2] != 3 {
		t.Errorf("yearValues = %v", vals)
	}
	ptrs := nullables(vals)
	if ptrs[0] == nil || *ptrs[0] != 1 || ptrs[1] != nil {
		t.Errorf("nullables = %v", ptrs)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{catalog.ErrUnavailable, http.StatusNotFound, "no region could be read"},
		{fmt.Errorf("Region_9.* (Dependencia): %w", dataset.ErrNotFound), http.StatusNotFound, "no data file"},
		{&dataset.SchemaMismatchError{File: "Region_5.xlsx", Missing: []string{"Sexo"}}, http.StatusUnprocessableEntity, "missing columns: Sexo"},
		{fmt.Errorf("2031: %w", gap.ErrInvalidYearRange), http.StatusBadRequest, "requested year has no data"},
		{gap.ErrEmptyInput, http.StatusBadRequest, "split by sex"},
		{fmt.Errorf("%q: %w", "Atlantis", errUnknownRegion), http.StatusNotFound, "unknown region"},
		{badRequest(errors.New("invalid --sort")), http.StatusBadRequest, "invalid --sort"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "disk on fire"},
	}
	for _, tt := range tests {
		if got := statusOf(tt.err); got != tt.status {
			t.Errorf("statusOf(%v) = %d, want %d", tt.err, got, tt.status)
		}
		if got := describe(tt.err); !strings.Contains(got, tt.msg) {
			t.Errorf("describe(%v) = %q, want it to contain %q", tt.err, got, tt.msg)
		}
	}
}

func TestParseOrder(t *testing.T) {
	o, err := parseOrder("name", 0, false)
	if err != nil || o.Key != gap.ByName || !o.Ascending {
		t.Errorf("parseOrder(name) = %+v, %v", o, err)
	}
	o, err = parseOrder("", 2020, false)
	if err != nil || o.Key != gap.ByMagnitude || o.Ascending || o.Year != 2020 {
		t.Errorf("parseOrder(\"\") = %+v, %v", o, err)
	}
	if _, err := parseOrder("size", 0, false); err == nil {
		t.Error("parseOrder accepted an unknown key")
	}
}

func TestSheetName(t *testing.T) {
	tests := map[string]string{
		"Valparaíso": "Valparaíso",
		"A/B: C?":    "A-B- C-",
		"":           "Brechas",
		"Región del Libertador General Bernardo O'Higgins": "Región del Libertador General B",
	}
	for in, want := range tests {
		if got := sheetName(in); got != want {
			t.Errorf("sheetName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveRegion(t *testing.T) {
	s := testSession(t, "ingresos")
	tests := []struct {
		arg      string
		code     int
		name     string
		notFound bool
	}{
		{"Valparaíso", 5, "Valparaíso", false},
		{" valparaíso ", 5, "Valparaíso", false},
		{"2", 2, "Antofagasta", false},
		{"9", 9, "9", false},
		{"Atlantis", 0, "", true},
		{"", 0, "", true},
	}
	for _, tt := range tests {
		code, name, err := resolveRegion(s.schema, tt.arg)
		if tt.notFound {
			if !errors.Is(err, errUnknownRegion) {
				t.Errorf("resolveRegion(%q) error = %v, want errUnknownRegion", tt.arg, err)
			}
			continue
		}
		if err != nil || code != tt.code || name != tt.name {
			t.Errorf("resolveRegion(%q) = %d, %q, %v; want %d, %q", tt.arg, code, name, err, tt.code, tt.name)
		}
	}
}

func TestSessionGaps(t *testing.T) {
	s := testSession(t, "Brechas de Ingresos")
	res, err := s.gaps(gapQuery{Region: "Valparaíso", Order: gap.DefaultOrder})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Years, []int{2020, 2022}) || res.SortYear != 2022 {
		t.Errorf("years = %v, sort year = %d", res.Years, res.SortYear)
	}
	var order []string
	for _, r := range res.Rows {
		order = append(order, r.CommuneName)
	}
	// Valparaíso has no male value for 2022, so no gap, so it sorts last.
	if want := []string{"Viña del Mar", "Cartagena", "Valparaíso"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
	if _, ok := res.Rows[2].GapFor(2022); ok {
		t.Error("Valparaíso has a 2022 gap without a male value")
	}
	if g, _ := res.Rows[2].GapFor(2020); g != -50 {
		t.Errorf("Valparaíso 2020 gap = %v, want -50", g)
	}

	var buf bytes.Buffer
	renderGaps(&buf, "Brechas - Valparaíso", res, 0)
	out := buf.String()
	for _, want := range []string{"Viña del Mar", "150", "- -", "Total 2022", "230", "1 commune(s) without a gap for 2022"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered table missing %q:\n%s", want, out)
		}
	}

	province, err := s.gaps(gapQuery{Region: "5", Province: "san antonio", Order: gap.DefaultOrder})
	if err != nil {
		t.Fatal(err)
	}
	if len(province.Rows) != 1 || province.Rows[0].CommuneName != "Cartagena" {
		t.Errorf("province filter rows = %+v", province.Rows)
	}

	if _, err := s.gaps(gapQuery{Region: "5", Years: []int{2031}, Order: gap.DefaultOrder}); !errors.Is(err, gap.ErrInvalidYearRange) {
		t.Errorf("year 2031 error = %v, want ErrInvalidYearRange", err)
	}
}

func TestGapsXLSX(t *testing.T) {
	s := testSession(t, "ingresos")
	res, err := s.gaps(gapQuery{Region: "5", Order: gap.DefaultOrder})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "brechas.xlsx")
	if err := writeGapsXLSX(path, res); err != nil {
		t.Fatal(err)
	}
	tab, err := table.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tab.Header, gap.Header(res.Years, gap.TotalLabel)) {
		t.Errorf("header = %v", tab.Header)
	}
	if len(tab.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(tab.Rows))
	}
	// Totals are exported for display next to the gap.
	if row := tab.Rows[1]; row[0] != "Cartagena" || row[tab.Index("2022 Total")] != "230" {
		t.Errorf("Cartagena row = %q", row)
	}
	// Missing cells stay blank instead of zero.
	last := tab.Rows[2]
	if last[0] != "Valparaíso" || last[tab.Index("2022 Hombres")] != "" || last[tab.Index("2022 Brecha")] != "" {
		t.Errorf("Valparaíso row = %q", last)
	}
}

func TestSessionValues(t *testing.T) {
	s := testSession(t, "dependencia")
	res, err := s.values(valueQuery{Region: "Valparaíso", Descending: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Measure.Year != 2022 {
		t.Errorf("measure year = %d, want latest 2022", res.Measure.Year)
	}
	var order []string
	for _, r := range res.Records {
		order = append(order, r.CommuneName)
	}
	if want := []string{"Valparaíso", "Viña del Mar", "Cartagena"}; !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}

	res, err = s.values(valueQuery{Region: "5", Measure: dataset.Measure{Column: "Var_Porc"}, Descending: false})
	if err != nil {
		t.Fatal(err)
	}
	if res.Records[0].CommuneName != "Valparaíso" || res.Records[2].CommuneName != "Cartagena" {
		t.Errorf("Var_Porc ascending order = %v", res.Records)
	}

	var buf bytes.Buffer
	renderValues(&buf, "Dependencia", res, 0)
	if !strings.Contains(buf.String(), "-1.9") || !strings.Contains(buf.String(), "- -") {
		t.Errorf("rendered values:\n%s", buf.String())
	}

	if _, err := s.values(valueQuery{Region: "5", Measure: dataset.Measure{Column: "Poblacion"}}); statusOf(err) != http.StatusBadRequest {
		t.Errorf("unknown column error = %v", err)
	}
	if _, err := s.values(valueQuery{Region: "5", Measure: dataset.Measure{Year: 1999}}); !errors.Is(err, gap.ErrInvalidYearRange) {
		t.Errorf("year 1999 error = %v", err)
	}
}

func TestSessionValuesSexSplit(t *testing.T) {
	s := testSession(t, "ingresos")
	res, err := s.values(valueQuery{Region: "5", Sex: dataset.SexFemale, Descending: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 3 {
		t.Fatalf("female records = %d, want 3", len(res.Records))
	}
	if res.Records[0].CommuneName != "Viña del Mar" {
		t.Errorf("top female value = %q", res.Records[0].CommuneName)
	}
}

func TestGapsNotSexSplit(t *testing.T) {
	s := testSession(t, "dependencia")
	if _, err := s.gaps(gapQuery{Region: "5", Order: gap.DefaultOrder}); !errors.Is(err, gap.ErrEmptyInput) {
		t.Errorf("gaps on dependencia error = %v, want ErrEmptyInput", err)
	}
}

func TestLoadRegionNotFound(t *testing.T) {
	s := testSession(t, "ingresos")
	if _, _, _, err := s.loadRegion("13", ""); !errors.Is(err, dataset.ErrNotFound) {
		t.Errorf("region 13 error = %v, want ErrNotFound", err)
	}
}

func TestBarPlot(t *testing.T) {
	s := testSession(t, "ingresos")
	p, n, err := s.chart("5", "", 0, "", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("bars = %d, want 2 (one commune has no gap)", n)
	}
	path := filepath.Join(t.TempDir(), "chart.svg")
	if err := p.Save(chartHeight(n), chartHeight(n), path); err != nil {
		t.Fatal(err)
	}
	if _, err := barPlot("vacío", "x", nil); err == nil {
		t.Error("barPlot accepted no bars")
	}
}

func TestGapBarsOrder(t *testing.T) {
	res := &gapResult{SortYear: 2022, Rows: []gap.Row{
		{CommuneName: "A", Gap: map[int]float64{2022: -300}},
		{CommuneName: "B", Gap: map[int]float64{}},
		{CommuneName: "C", Gap: map[int]float64{2022: 100}},
	}}
	got := gapBars(res, 0)
	want := []bar{{"A", -300}, {"C", 100}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("gapBars = %v, want %v", got, want)
	}
	if got := gapBars(res, 1); len(got) != 1 {
		t.Errorf("gapBars limit 1 = %v", got)
	}
}

const valparaisoGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"cod_comuna": 5109, "Comuna": "Viña del Mar"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[2,0],[2,2],[0,2],[0,0]]]}},
    {"type": "Feature", "properties": {"cod_comuna": 5101, "Comuna": "Valparaíso"},
     "geometry": {"type": "Polygon", "coordinates": [[[2,0],[4,0],[4,2],[2,2],[2,0]]]}},
    {"type": "Feature", "properties": {"cod_comuna": 5603, "Comuna": "Cartagena"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,-3],[2,-3],[2,0],[0,0],[0,-3]]]}},
    {"type": "Feature", "properties": {"cod_comuna": 2301, "Comuna": "Tocopilla"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,40],[1,40],[1,41],[0,41],[0,40]]]}}
  ]
}`

func TestChoropleth(t *testing.T) {
	s := testSession(t, "ingresos")
	path := filepath.Join(t.TempDir(), "comunas.geojson")
	if err := os.WriteFile(path, []byte(valparaisoGeoJSON), 0644); err != nil {
		t.Fatal(err)
	}
	bs, err := geo.LoadBoundaries(path, s.cfg.BoundaryCode, s.cfg.BoundaryName)
	if err != nil {
		t.Fatal(err)
	}
	l, err := s.mapLayer("5", "", 2022, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := l.values[5101]; ok {
		t.Error("Valparaíso has a map value without a 2022 gap")
	}
	if len(l.codes) != 3 {
		t.Errorf("region codes = %v", l.codes)
	}
	l.hasLabel = true
	p, err := choropleth(bs, l)
	if err != nil {
		t.Fatal(err)
	}
	// Tocopilla is outside the region and must not widen the extent.
	if p.Y.Max != 2 || p.Y.Min != -3 {
		t.Errorf("extent Y = [%v, %v], want [-3, 2]", p.Y.Min, p.Y.Max)
	}
	if err := p.Save(mapSize(p, 400), 400, filepath.Join(t.TempDir(), "map.png")); err != nil {
		t.Fatal(err)
	}

	if _, err := choropleth(bs, layer{codes: map[int]bool{9999: true}}); err == nil {
		t.Error("choropleth accepted a region with no boundary")
	}
}

func TestShade(t *testing.T) {
	if shade(-10, -10, 5, true) == shade(10, -10, 5, true) {
		t.Error("diverging shade ignores sign")
	}
	lo := shade(0, 0, 10, false)
	hi := shade(10, 0, 10, false)
	if hi == lo {
		t.Error("sequential shade does not vary")
	}
	r, g, b, _ := hi.RGBA()
	wr, wg, wb, _ := chartBlue.RGBA()
	if r != wr || g != wg || b != wb {
		t.Errorf("shade(max) = %v, want %v", hi, chartBlue)
	}
}
