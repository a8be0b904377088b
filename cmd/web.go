package cmd

import (
	"embed"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"

	"github.com/zalepa/indicadores/catalog"
	"github.com/zalepa/indicadores/config"
	"github.com/zalepa/indicadores/dataset"
	"github.com/zalepa/indicadores/gap"
	"github.com/zalepa/indicadores/logger"
)

//go:embed web.html
var htmlContent embed.FS

type indicatorInfo struct {
	Name     string   `json:"name"`
	Slug     string   `json:"slug"`
	SexSplit bool     `json:"sexSplit"`
	Extra    []string `json:"extra,omitempty"`
}

type gapsResponse struct {
	Title    string    `json:"title"`
	Region   string    `json:"region"`
	Years    []int     `json:"years"`
	SortYear int       `json:"sortYear"`
	Rows     []gapData `json:"rows"`
}

type gapData struct {
	Commune  string     `json:"commune"`
	Code     int        `json:"code,omitempty"`
	Province string     `json:"province,omitempty"`
	Male     []*float64 `json:"male"`
	Female   []*float64 `json:"female"`
	Gap      []*float64 `json:"gap"`
	// Display-only series keyed by label, such as Total or "No informado".
	Extra map[string][]*float64 `json:"extra,omitempty"`
}

type valuesResponse struct {
	Title   string      `json:"title"`
	Region  string      `json:"region"`
	Measure string      `json:"measure"`
	Years   []int       `json:"years"`
	Rows    []valueData `json:"rows"`
}

type valueData struct {
	Commune  string     `json:"commune"`
	Code     int        `json:"code,omitempty"`
	Province string     `json:"province,omitempty"`
	Value    *float64   `json:"value"`
	Values   []*float64 `json:"values"`
}

// server answers the dashboard API from one configuration and a shared
// loader, so repeated requests for a region hit the cache.
type server struct {
	cfg    *config.Config
	loader *dataset.Loader
}

// Web implements the "web" subcommand.
func Web(args []string) {
	fs := flag.NewFlagSet("web", flag.ExitOnError)
	configPath := fs.String("config", "", "indicators YAML file (default $INDICATORS_FILE or indicators.yaml)")
	data := fs.String("data", "", "data directory (default $DATA_DIR or data)")
	port := fs.String("port", "", "HTTP server port (default $PORT or 8080)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: indicadores web [--port 8080]\n\nStart the interactive gap dashboard.\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.Parse(reorderArgs(args))

	if *data != "" {
		os.Setenv("DATA_DIR", *data)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(err)
	}
	if *port == "" {
		*port = cfg.Port
	}
	srv := &server{cfg: cfg, loader: newLoader(cfg)}

	l := logger.L()
	addr := ":" + *port
	s := &http.Server{Addr: addr, Handler: logger.AccessMiddleware(l)(srv.routes())}
	l.Info("listening", "addr", addr, "indicators", len(cfg.Indicators))
	fmt.Printf("serving on http://localhost%s\n", addr)
	if err := s.ListenAndServe(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func (srv *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		data, _ := htmlContent.ReadFile("web.html")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(data)
	})
	mux.HandleFunc("GET /api/indicators", srv.handleIndicators)
	mux.HandleFunc("GET /api/catalog", srv.handleCatalog)
	mux.HandleFunc("GET /api/provinces", srv.handleProvinces)
	mux.HandleFunc("GET /api/gaps", srv.handleGaps)
	mux.HandleFunc("GET /api/values", srv.handleValues)
	return mux
}

// session resolves the indicator query parameter, defaulting to the first
// configured indicator.
func (srv *server) session(r *http.Request) (*session, error) {
	name := r.URL.Query().Get("indicator")
	if name == "" && len(srv.cfg.Indicators) > 0 {
		name = srv.cfg.Indicators[0].Name
	}
	s, ok := srv.cfg.Indicator(name)
	if !ok {
		return nil, fmt.Errorf("indicator %q: %w", name, errUnknownIndicator)
	}
	return &session{cfg: srv.cfg, schema: s, loader: srv.loader}, nil
}

func (srv *server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	out := make([]indicatorInfo, len(srv.cfg.Indicators))
	for i, s := range srv.cfg.Indicators {
		out[i] = indicatorInfo{Name: s.Name, Slug: s.Slug, SexSplit: s.SexSplit(), Extra: s.Extra}
	}
	writeJSON(w, http.StatusOK, out)
}

func (srv *server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	s, err := srv.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	cat, err := catalog.Resolve(s.schema.Dir, s.schema.RegionCode, s.schema.RegionName)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", catalog.ErrUnavailable, err))
		return
	}
	if err := cat.Require(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cat.Entries())
}

func (srv *server) handleProvinces(w http.ResponseWriter, r *http.Request) {
	s, err := srv.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	recs, _, _, err := s.loadRegion(r.URL.Query().Get("region"), "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dataset.Provinces(recs))
}

func (srv *server) handleGaps(w http.ResponseWriter, r *http.Request) {
	s, err := srv.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	years, err := parseYears(q.Get("years"))
	if err != nil {
		writeError(w, badRequest(err))
		return
	}
	var sortYear int
	if v := q.Get("sortYear"); v != "" {
		if sortYear, err = strconv.Atoi(v); err != nil {
			writeError(w, badRequest(fmt.Errorf("invalid sortYear %q", v)))
			return
		}
	}
	order, err := parseOrder(q.Get("sort"), sortYear, q.Get("asc") == "true")
	if err != nil {
		writeError(w, badRequest(err))
		return
	}
	res, err := s.gaps(gapQuery{Region: q.Get("region"), Province: q.Get("province"), Years: years, Order: order})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := gapsResponse{
		Title:    s.schema.Name + " - " + res.RegionName,
		Region:   res.RegionName,
		Years:    res.Years,
		SortYear: res.SortYear,
		Rows:     make([]gapData, 0, len(res.Rows)),
	}
	for _, row := range res.Rows {
		d := gapData{
			Commune:  row.CommuneName,
			Code:     row.CommuneCode,
			Province: row.ProvinceName,
			Male:     nullables(yearValues(row.Male, res.Years)),
			Female:   nullables(yearValues(row.Female, res.Years)),
			Gap:      nullables(yearValues(row.Gap, res.Years)),
		}
		for _, e := range gap.ExtraLabels([]gap.Row{row}) {
			if d.Extra == nil {
				d.Extra = make(map[string][]*float64)
			}
			d.Extra[e] = nullables(yearValues(row.Series(e), res.Years))
		}
		resp.Rows = append(resp.Rows, d)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (srv *server) handleValues(w http.ResponseWriter, r *http.Request) {
	s, err := srv.session(r)
	if err != nil {
		writeError(w, err)
		return
	}
	q := r.URL.Query()
	var year int
	if v := q.Get("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			writeError(w, badRequest(fmt.Errorf("invalid year %q", v)))
			return
		}
	}
	sex := dataset.SexTotal
	if v := q.Get("sex"); v != "" {
		if sex, err = parseSexFlag(v); err != nil {
			writeError(w, badRequest(err))
			return
		}
	}
	res, err := s.values(valueQuery{
		Region:     q.Get("region"),
		Province:   q.Get("province"),
		Measure:    dataset.Measure{Year: year, Column: q.Get("column")},
		Sex:        sex,
		Descending: q.Get("asc") != "true",
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := valuesResponse{
		Title:   s.schema.Name + " - " + res.RegionName,
		Region:  res.RegionName,
		Measure: measureLabel(res.Measure),
		Years:   res.Years,
		Rows:    make([]valueData, 0, len(res.Records)),
	}
	for _, rec := range res.Records {
		v, ok := res.Measure.Of(rec)
		d := valueData{
			Commune:  rec.CommuneName,
			Code:     rec.CommuneCode,
			Province: rec.ProvinceName,
			Values:   nullables(yearValues(rec.Values, res.Years)),
		}
		if ok {
			d.Value = &v
		}
		resp.Rows = append(resp.Rows, d)
	}
	writeJSON(w, http.StatusOK, resp)
}

// nullables converts NaN placeholders to JSON nulls.
func nullables(vals []float64) []*float64 {
	out := make([]*float64, len(vals))
	for i, v := range vals {
		if !math.IsNaN(v) {
			f := v
			out[i] = &f
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.L().Error("http_error", "err", err)
	}
	writeJSON(w, status, map[string]string{"error": describe(err)})
}
