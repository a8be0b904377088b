package cmd

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/zalepa/indicadores/catalog"
)

// Catalog implements the "catalog" subcommand: list the regions available
// for an indicator.
func Catalog(args []string) {
	fs := flag.NewFlagSet("catalog", flag.ExitOnError)
	cf := addCommonFlags(fs, "Brechas de Ingresos")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: indicadores catalog [flags]

List the regions found in an indicator directory.

Flags:
`)
		fs.PrintDefaults()
	}
	fs.Parse(reorderArgs(args))

	s, err := openSession(cf)
	if err != nil {
		fail(err)
	}
	cat, err := catalog.Resolve(s.schema.Dir, s.schema.RegionCode, s.schema.RegionName)
	if err != nil {
		fail(fmt.Errorf("%w: %v", catalog.ErrUnavailable, err))
	}
	if err := cat.Require(); err != nil {
		fail(err)
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(cat.Entries())
		return
	}
	renderCatalog(os.Stdout, s.schema.Name, cat)
}

func renderCatalog(w io.Writer, title string, cat catalog.Catalog) {
	fmt.Fprintln(w, color.CyanString(title))
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Codigo", "Region"})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT})
	for _, e := range cat.Entries() {
		table.Append([]string{strconv.Itoa(e.Code), e.Name})
	}
	table.Render()
}
