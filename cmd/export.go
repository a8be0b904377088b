package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/zalepa/indicadores/store"
)

// Export implements the "export" subcommand: write the gap tables of one or
// more regions to a SQL database.
func Export(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	cf := addCommonFlags(fs, "Brechas de Ingresos")
	regions := fs.String("regions", "", "comma-separated region names or codes (default: every region)")
	years := fs.String("years", "", "years to export (default: all)")
	driver := fs.String("driver", "", "database driver: "+strings.Join(store.Drivers, ", ")+" (default $EXPORT_DRIVER or sqlite)")
	dsn := fs.String("dsn", "", "data source name (default $EXPORT_DSN or indicadores.db)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: indicadores export [flags]

Store per-commune male, female and gap values in a SQL table
(indicator_gaps). Missing values are stored as NULL.

Flags:
`)
		fs.PrintDefaults()
	}
	fs.Parse(reorderArgs(args))

	yrs, err := parseYears(*years)
	if err != nil {
		fail(err)
	}
	s, err := openSession(cf)
	if err != nil {
		fail(err)
	}
	if !s.schema.SexSplit() {
		fail(fmt.Errorf("%s is not split by sex; only gap tables can be exported", s.schema.Name))
	}
	if *driver == "" {
		*driver = s.cfg.ExportDriver
	}
	if *dsn == "" {
		*dsn = s.cfg.ExportDSN
	}
	codes, err := s.reportRegions(*regions)
	if err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := store.Open(*driver, *dsn)
	if err != nil {
		fail(err)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		fail(err)
	}

	var exported, total int
	for _, code := range codes {
		res, err := s.gaps(gapQuery{Region: strconv.Itoa(code), Years: yrs, Order: gapOrder(0)})
		if err != nil {
			fmt.Fprintf(os.Stderr, "skip region %d: %s\n", code, describe(err))
			continue
		}
		n, err := db.SaveGaps(ctx, s.schema.Name, code, res.Rows)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fail(err)
			}
			fmt.Fprintf(os.Stderr, "error exporting region %d: %v\n", code, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "%s: %d communes, %d rows\n", res.RegionName, len(res.Rows), n)
		exported++
		total += n
	}
	fmt.Fprintf(os.Stderr, "Done: %d of %d regions, %d rows (%s)\n", exported, len(codes), total, *driver)
	if exported == 0 {
		os.Exit(1)
	}
}
