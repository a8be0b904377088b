// Package config gathers settings from a .env file, the environment and an
// optional YAML file describing the column layout of each indicator.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/zalepa/indicadores/dataset"
	"github.com/zalepa/indicadores/logger"
)

// Config is the resolved configuration. Indicator directories are absolute
// or relative to the working directory after Load.
type Config struct {
	DataDir      string
	BoundaryFile string
	BoundaryCode string
	BoundaryName string
	CacheSize    int
	CacheTTL     time.Duration
	RedisAddr    string
	ExportDriver string
	ExportDSN    string
	FetchBaseURL string
	Port         string
	Indicators   []dataset.Schema
}

type fileConfig struct {
	Boundary struct {
		File string `yaml:"file"`
		Code string `yaml:"code_property"`
		Name string `yaml:"name_property"`
	} `yaml:"boundary"`
	Indicators []dataset.Schema `yaml:"indicators"`
}

// DefaultIndicators describes the two indicator families shipped with the
// dashboards.
func DefaultIndicators() []dataset.Schema {
	return []dataset.Schema{
		{
			Name:         "Brechas de Ingresos",
			Slug:         "ingresos",
			Dir:          "ingresos",
			FilePrefix:   "Region_",
			RegionCode:   "codregion",
			RegionName:   "Nombre_Region",
			ProvinceName: "Nombre_Provincia",
			CommuneName:  "Nombre_comuna",
			CommuneCode:  "Cod_Comuna",
			Sex:          "Sexo",
			YearPrefix:   "YEAR_",
		},
		{
			Name:         "Dependencia",
			Slug:         "dependencia",
			Dir:          "dependencia",
			FilePrefix:   "Region_",
			RegionCode:   "Codigo_Region",
			RegionName:   "Nombre_Region",
			ProvinceName: "Nombre_Provincia",
			CommuneName:  "Nombre_comuna",
			CommuneCode:  "cod_comuna",
			YearPrefix:   "YEAR_",
			Extra:        []string{"Var_Porc"},
		},
	}
}

// Load reads .env (if present) and the environment, then the indicators
// file named by path, INDICATORS_FILE, or "indicators.yaml". A missing
// indicators file falls back to DefaultIndicators.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	c := &Config{
		DataDir:      getEnv("DATA_DIR", "data"),
		BoundaryFile: os.Getenv("BOUNDARY_FILE"),
		BoundaryCode: getEnv("BOUNDARY_CODE_PROPERTY", "cod_comuna"),
		BoundaryName: getEnv("BOUNDARY_NAME_PROPERTY", "Comuna"),
		CacheSize:    getEnvAsInt("CACHE_SIZE", 64),
		CacheTTL:     getEnvAsDuration("CACHE_TTL", 10*time.Minute),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		ExportDriver: getEnv("EXPORT_DRIVER", "sqlite"),
		ExportDSN:    getEnv("EXPORT_DSN", "indicadores.db"),
		FetchBaseURL: os.Getenv("FETCH_BASE_URL"),
		Port:         getEnv("PORT", "8080"),
	}

	if path == "" {
		path = getEnv("INDICATORS_FILE", "indicators.yaml")
	}
	indicators, err := c.readFile(path)
	if err != nil {
		return nil, err
	}
	if len(indicators) == 0 {
		indicators = DefaultIndicators()
	}
	for i := range indicators {
		s := &indicators[i]
		if s.YearPrefix == "" {
			s.YearPrefix = "YEAR_"
		}
		if s.Slug == "" {
			s.Slug = slugify(s.Name)
		}
		if !filepath.IsAbs(s.Dir) {
			s.Dir = filepath.Join(c.DataDir, s.Dir)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("indicator %d: %w", i+1, err)
		}
	}
	c.Indicators = indicators
	logger.L().Debug("config_loaded", "data_dir", c.DataDir, "indicators", len(indicators), "boundary", c.BoundaryFile)
	return c, nil
}

func (c *Config) readFile(path string) ([]dataset.Schema, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.UnmarshalStrict(data, &fc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if fc.Boundary.File != "" && c.BoundaryFile == "" {
		c.BoundaryFile = fc.Boundary.File
	}
	if fc.Boundary.Code != "" {
		c.BoundaryCode = fc.Boundary.Code
	}
	if fc.Boundary.Name != "" {
		c.BoundaryName = fc.Boundary.Name
	}
	return fc.Indicators, nil
}

// Indicator finds an indicator by name or slug, ignoring case.
func (c *Config) Indicator(name string) (dataset.Schema, bool) {
	name = strings.TrimSpace(name)
	for _, s := range c.Indicators {
		if strings.EqualFold(s.Name, name) || strings.EqualFold(s.Slug, name) {
			return s, true
		}
	}
	return dataset.Schema{}, false
}

// IndicatorNames lists the configured indicator names in file order.
func (c *Config) IndicatorNames() []string {
	names := make([]string, len(c.Indicators))
	for i, s := range c.Indicators {
		names[i] = s.Name
	}
	return names
}

func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
