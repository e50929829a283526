// Command metricsreport prints the ODS/OIS/AP line of every experiment found
// under results/*/result_mat/eval_output/*/metrics.csv.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"edgebench/internal/cli"
	"edgebench/internal/config"
	"edgebench/internal/metrics"
	"edgebench/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("metricsreport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to edgebench.toml")
	root := fs.String("root", "", "Results root (overrides config)")
	pattern := fs.String("pattern", "", "Glob below the root (overrides config)")
	csvPath := fs.String("csv", "", "Also write the collected rows to this CSV file")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if code := cli.Parse(fs, args); code >= 0 {
		return code
	}

	if *showVersion {
		fmt.Fprintln(stdout, version.String("metricsreport"))
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return cli.Errorf(stderr, "%v", err)
	}
	agg := cfg.Metrics
	if *root != "" {
		agg.Root = *root
	}
	if *pattern != "" {
		agg.Pattern = *pattern
	}

	rows, err := agg.Report(stdout, stderr)
	if err != nil {
		return cli.Errorf(stderr, "%v", err)
	}
	if *csvPath != "" {
		if err := metrics.WriteCSV(*csvPath, rows); err != nil {
			return cli.Errorf(stderr, "%v", err)
		}
		fmt.Fprintf(stderr, "Wrote %d rows to %s\n", len(rows), *csvPath)
	}
	return 0
}
