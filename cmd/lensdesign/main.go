// Command lensdesign evaluates a lens design document against its
// requirements, optionally optimises the variables and writes plots.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/banshee-data/lens.design/internal/version"
)

var (
	designPath   = flag.String("design", "", "Design document (JSON)")
	reqPath      = flag.String("requirements", "", "Requirements list (JSON)")
	configPath   = flag.String("config", "", "Engine config (JSON); defaults when empty")
	configID     = flag.String("configuration", "", "Configuration id or name; the active one when empty")
	scenario     = flag.String("scenario", "", "Scenario id to apply before evaluating")
	glassFiles   = flag.String("glass", "", "Comma-separated extra glass catalogs (.agf or .json)")
	doOptimize   = flag.Bool("optimize", false, "Optimise the document variables")
	method       = flag.String("method", "nelder-mead", "Optimiser: nelder-mead or lbfgs")
	maxEvals     = flag.Int("evals", 0, "Merit evaluation budget (0 = 200 per variable)")
	outPath      = flag.String("out", "", "Write the (optimised) document here")
	plotDir      = flag.String("plots", "", "Write PNG and HTML plots into this directory")
	dbPath       = flag.String("db", "", "Record the document and evaluation run in this SQLite file")
	lengthUnit   = flag.String("units", "mm", "Length unit of the first-order report: mm, cm, m or in")
	verbose      = flag.Bool("verbose", false, "Log analysis progress")
	printVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	log.SetPrefix("[lensdesign] ")

	if *printVersion {
		fmt.Printf("lensdesign %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *designPath == "" {
		log.Fatal("-design is required")
	}

	var catalogs []string
	for _, p := range strings.Split(*glassFiles, ",") {
		if p = strings.TrimSpace(p); p != "" {
			catalogs = append(catalogs, p)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{
		DesignPath:       *designPath,
		RequirementsPath: *reqPath,
		ConfigPath:       *configPath,
		ConfigID:         *configID,
		Scenario:         *scenario,
		Catalogs:         catalogs,
		Optimize:         *doOptimize,
		Method:           *method,
		Evaluations:      *maxEvals,
		OutPath:          *outPath,
		PlotDir:          *plotDir,
		DBPath:           *dbPath,
		Verbose:          *verbose,
		LengthUnit:       *lengthUnit,
	}
	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}
