// Package store exports computed gap tables to a SQL database. It is an
// optional sink for the presentation layer; the pipeline never reads it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/zalepa/indicadores/gap"
	"github.com/zalepa/indicadores/logger"
)

// Drivers lists the accepted driver names.
var Drivers = []string{"sqlite", "postgres", "mysql"}

// Store wraps a database handle and the placeholder style of its driver.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects with one of Drivers.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case "sqlite", "postgres", "mysql":
	default:
		return nil, fmt.Errorf("unsupported driver %q; valid options: %s", driver, strings.Join(Drivers, ", "))
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db, driver: driver}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// EnsureSchema creates the export table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	text := "TEXT"
	if s.driver == "mysql" {
		text = "VARCHAR(191)"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS indicator_gaps (
			indicator ` + text + ` NOT NULL,
			region_code INT NOT NULL,
			commune_code INT NOT NULL,
			commune_name ` + text + ` NOT NULL,
			province_name ` + text + ` NOT NULL,
			year INT NOT NULL,
			male_value DOUBLE PRECISION NULL,
			female_value DOUBLE PRECISION NULL,
			gap_value DOUBLE PRECISION NULL,
			exported_at ` + text + ` NOT NULL,
			PRIMARY KEY (indicator, region_code, commune_code, commune_name, year)
		)`,
	}
	for i, stmt := range stmts {
		logger.L().Debug("store_schema_exec", "idx", i)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// SaveGaps replaces the stored rows of one indicator and region with rows.
// Years without a value are written as NULL, never as zero. It returns the
// number of rows written.
func (s *Store) SaveGaps(ctx context.Context, indicator string, regionCode int, rows []gap.Row) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	del := s.rebind(`DELETE FROM indicator_gaps WHERE indicator = ? AND region_code = ?`)
	if _, err := tx.ExecContext(ctx, del, indicator, regionCode); err != nil {
		return 0, fmt.Errorf("clear previous export: %w", err)
	}

	ins, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO indicator_gaps
		(indicator, region_code, commune_code, commune_name, province_name, year, male_value, female_value, gap_value, exported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return 0, err
	}
	defer ins.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	written := 0
	for _, r := range rows {
		for _, y := range rowYears(r) {
			_, err := ins.ExecContext(ctx, indicator, regionCode, r.CommuneCode, r.CommuneName, r.ProvinceName, y,
				nullable(r.Male, y), nullable(r.Female, y), nullable(r.Gap, y), now)
			if err != nil {
				return written, fmt.Errorf("insert %s %d: %w", r.CommuneName, y, err)
			}
			written++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	logger.L().Debug("store_gaps_saved", "indicator", indicator, "region", regionCode, "rows", written)
	return written, nil
}

// StoredGap is one exported cell read back by LoadGaps.
type StoredGap struct {
	CommuneCode int
	CommuneName string
	Year        int
	Male        sql.NullFloat64
	Female      sql.NullFloat64
	Gap         sql.NullFloat64
}

// LoadGaps reads the exported rows of one indicator and region.
func (s *Store) LoadGaps(ctx context.Context, indicator string, regionCode int) ([]StoredGap, error) {
	q := s.rebind(`SELECT commune_code, commune_name, year, male_value, female_value, gap_value
		FROM indicator_gaps WHERE indicator = ? AND region_code = ?
		ORDER BY commune_code, commune_name, year`)
	rows, err := s.db.QueryContext(ctx, q, indicator, regionCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StoredGap
	for rows.Next() {
		var g StoredGap
		if err := rows.Scan(&g.CommuneCode, &g.CommuneName, &g.Year, &g.Male, &g.Female, &g.Gap); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// rebind rewrites '?' placeholders to '$n' for postgres.
func (s *Store) rebind(q string) string {
	if s.driver != "postgres" {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func rowYears(r gap.Row) []int {
	seen := make(map[int]bool)
	for _, m := range []map[int]float64{r.Male, r.Female} {
		for y := range m {
			seen[y] = true
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func nullable(m map[int]float64, y int) sql.NullFloat64 {
	v, ok := m[y]
	return sql.NullFloat64{Float64: v, Valid: ok}
}
