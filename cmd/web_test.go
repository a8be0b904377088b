package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/zalepa/indicadores/catalog"
	"github.com/zalepa/indicadores/gap"
)

func testServer(t *testing.T) http.Handler {
	t.Helper()
	s := testSession(t, "ingresos")
	srv := &server{cfg: s.cfg, loader: s.loader}
	return srv.routes()
}

func get(t *testing.T, h http.Handler, url string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("GET %s: %v\n%s", url, err, rec.Body.String())
		}
	}
	return rec.Code
}

func TestWebIndex(t *testing.T) {
	h := testServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<title>Indicadores") {
		t.Errorf("GET / = %d", rec.Code)
	}
}

func TestWebMetadata(t *testing.T) {
	h := testServer(t)

	var inds []indicatorInfo
	if code := get(t, h, "/api/indicators", &inds); code != http.StatusOK || len(inds) != 2 {
		t.Fatalf("indicators = %d %+v", code, inds)
	}
	if !inds[0].SexSplit || inds[1].SexSplit || !reflect.DeepEqual(inds[1].Extra, []string{"Var_Porc"}) {
		t.Errorf("indicators = %+v", inds)
	}

	var entries []catalog.Entry
	get(t, h, "/api/catalog?indicator=ingresos", &entries)
	want := []catalog.Entry{{Name: "Antofagasta", Code: 2}, {Name: "Valparaíso", Code: 5}}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("catalog = %+v, want %+v", entries, want)
	}

	var provinces []string
	get(t, h, "/api/provinces?indicator=ingresos&region=5", &provinces)
	if !reflect.DeepEqual(provinces, []string{"San Antonio", "Valparaíso"}) {
		t.Errorf("provinces = %v", provinces)
	}
}

func TestWebGaps(t *testing.T) {
	h := testServer(t)
	var resp gapsResponse
	if code := get(t, h, "/api/gaps?indicator=ingresos&region=5", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.SortYear != 2022 || len(resp.Rows) != 3 {
		t.Fatalf("response = %+v", resp)
	}
	last := resp.Rows[2]
	if last.Commune != "Valparaíso" || last.Gap[0] == nil || *last.Gap[0] != -50 || last.Gap[1] != nil || last.Male[1] != nil {
		t.Errorf("Valparaíso row = %+v", last)
	}
	if tot := resp.Rows[1].Extra[gap.TotalLabel]; len(tot) != 2 || tot[1] == nil || *tot[1] != 230 {
		t.Errorf("Cartagena totals = %v", tot)
	}
	if resp.Rows[0].Extra != nil {
		t.Errorf("Viña del Mar extra = %v, want none", resp.Rows[0].Extra)
	}

	get(t, h, "/api/gaps?indicator=ingresos&region=5&sort=name", &resp)
	if resp.Rows[0].Commune != "Cartagena" {
		t.Errorf("sort=name first row = %q", resp.Rows[0].Commune)
	}
}

func TestWebErrors(t *testing.T) {
	h := testServer(t)
	tests := []struct {
		url    string
		status int
	}{
		{"/api/gaps?indicator=ingresos&region=13", http.StatusNotFound},
		{"/api/gaps?indicator=ingresos&region=Atlantis", http.StatusNotFound},
		{"/api/gaps?indicator=dependencia&region=5", http.StatusBadRequest},
		{"/api/gaps?indicator=ingresos&region=5&years=2031", http.StatusBadRequest},
		{"/api/gaps?indicator=ingresos&region=5&years=abc", http.StatusBadRequest},
		{"/api/gaps?indicator=ingresos&region=5&sort=size", http.StatusBadRequest},
		{"/api/gaps?indicator=ingresos&region=5&sortYear=latest", http.StatusBadRequest},
		{"/api/values?indicator=dependencia&region=5&year=2o22", http.StatusBadRequest},
		{"/api/values?indicator=nope&region=5", http.StatusNotFound},
		{"/api/values?indicator=ingresos&region=5&sex=otro", http.StatusBadRequest},
	}
	for _, tt := range tests {
		var body map[string]string
		if got := get(t, h, tt.url, &body); got != tt.status || body["error"] == "" {
			t.Errorf("GET %s = %d %v, want %d with an error message", tt.url, got, body, tt.status)
		}
	}
}

func TestWebValues(t *testing.T) {
	h := testServer(t)
	var resp valuesResponse
	if code := get(t, h, "/api/values?indicator=dependencia&region=5&column=Var_Porc", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Measure != "Var_Porc" || len(resp.Rows) != 3 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.Rows[0].Commune != "Viña del Mar" || resp.Rows[2].Value != nil {
		t.Errorf("rows = %+v", resp.Rows)
	}
}
