package main

import (
	"fmt"
	"os"

	"github.com/zalepa/indicadores/cmd"
	"github.com/zalepa/indicadores/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	logger.Setup()

	switch os.Args[1] {
	case "catalog":
		cmd.Catalog(os.Args[2:])
	case "gaps":
		cmd.Gaps(os.Args[2:])
	case "values":
		cmd.Values(os.Args[2:])
	case "chart":
		cmd.Chart(os.Args[2:])
	case "map":
		cmd.Map(os.Args[2:])
	case "report":
		cmd.Report(os.Args[2:])
	case "export":
		cmd.Export(os.Args[2:])
	case "fetch":
		cmd.Fetch(os.Args[2:])
	case "web":
		cmd.Web(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: indicadores <command>

Commands:
  catalog    List the regions available for an indicator
  gaps       Male/female gap per commune for one region
  values     Rank communes by an indicator value
  chart      Horizontal bar chart (PNG, SVG or PDF)
  map        Choropleth of a region's communes
  report     PDF report per region, optionally merged
  export     Store gap tables in a SQL database
  fetch      Download per-region indicator files
  web        Start the interactive dashboard
`)
}
