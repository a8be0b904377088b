package cmd

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/zalepa/indicadores/catalog"
	"github.com/zalepa/indicadores/config"
	"github.com/zalepa/indicadores/dataset"
	"github.com/zalepa/indicadores/dataset/rediscache"
	"github.com/zalepa/indicadores/logger"
)

var errUnknownRegion = errors.New("unknown region")

// commonFlags are shared by every subcommand that reads indicator files.
type commonFlags struct {
	config    *string
	data      *string
	indicator *string
}

func addCommonFlags(fs *flag.FlagSet, defaultIndicator string) commonFlags {
	return commonFlags{
		config:    fs.String("config", "", "indicators YAML file (default $INDICATORS_FILE or indicators.yaml)"),
		data:      fs.String("data", "", "data directory (default $DATA_DIR or data)"),
		indicator: fs.String("indicator", defaultIndicator, "indicator name or slug"),
	}
}

// session is what a subcommand needs once flags are parsed.
type session struct {
	cfg    *config.Config
	schema dataset.Schema
	loader *dataset.Loader
}

func openSession(f commonFlags) (*session, error) {
	if *f.data != "" {
		os.Setenv("DATA_DIR", *f.data)
	}
	cfg, err := config.Load(*f.config)
	if err != nil {
		return nil, err
	}
	s, ok := cfg.Indicator(*f.indicator)
	if !ok {
		return nil, fmt.Errorf("unknown --indicator %q; valid options: %s", *f.indicator, strings.Join(cfg.IndicatorNames(), ", "))
	}
	return &session{cfg: cfg, schema: s, loader: newLoader(cfg)}, nil
}

func newLoader(cfg *config.Config) *dataset.Loader {
	if rc := rediscache.OpenFromEnv(); rc != nil {
		logger.L().Info("dataset_cache", "backend", "redis", "addr", cfg.RedisAddr)
		return dataset.NewLoader(rediscache.New(rc, cfg.CacheTTL))
	}
	return dataset.NewLoader(dataset.NewMemoryCache(cfg.CacheSize, cfg.CacheTTL))
}

// resolveRegion accepts a region name or a numeric code and returns the
// code with its display name.
func resolveRegion(s dataset.Schema, arg string) (int, string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0, "", fmt.Errorf("a region is required: %w", errUnknownRegion)
	}
	cat, err := catalog.Resolve(s.Dir, s.RegionCode, s.RegionName)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", catalog.ErrUnavailable, err)
	}
	if err := cat.Require(); err != nil {
		return 0, "", err
	}
	if code, err := strconv.Atoi(arg); err == nil {
		if name, ok := cat.Name(code); ok {
			return code, name, nil
		}
		return code, arg, nil
	}
	code, ok := cat.Code(arg)
	if !ok {
		return 0, "", fmt.Errorf("%q: %w", arg, errUnknownRegion)
	}
	name, _ := cat.Name(code)
	return code, name, nil
}

// loadRegion resolves arg and loads its records, applying the province
// filter when one is given.
func (s *session) loadRegion(arg, province string) ([]dataset.Record, int, string, error) {
	code, name, err := resolveRegion(s.schema, arg)
	if err != nil {
		return nil, 0, "", err
	}
	recs, err := s.loader.Load(s.schema, code)
	if err != nil {
		return nil, 0, "", err
	}
	if province != "" {
		recs = dataset.FilterProvince(recs, province)
	}
	return recs, code, name, nil
}

// parseYears accepts "", "2022", "2017,2020,2022" and "2017-2022".
func parseYears(s string) ([]int, error) { return parseIntList(s, "year") }

// parseIntList parses a comma-separated list of integers and ranges,
// returning the sorted distinct values.
func parseIntList(s, what string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	seen := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		a, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", what, part)
		}
		b := a
		if isRange {
			if b, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil || b < a {
				return nil, fmt.Errorf("invalid %s range %q", what, part)
			}
		}
		for y := a; y <= b; y++ {
			seen[y] = true
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

// reorderArgs moves positional arguments to the end so that Go's flag package
// can parse all flags regardless of where a positional argument appears.
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if strings.HasPrefix(args[i], "-") {
			flags = append(flags, args[i])
			// Consume the next arg as the flag's value unless it looks like a flag itself.
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") && !strings.Contains(args[i], "=") && !boolFlags[strings.TrimLeft(args[i], "-")] {
				flags = append(flags, args[i+1])
				i++
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}

// boolFlags never take a separate value argument.
var boolFlags = map[string]bool{
	"asc": true, "json": true, "labels": true, "force": true,
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
