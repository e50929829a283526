// Command benchrun runs inference and evaluation for every (trained model,
// test dataset) pair and writes the ODS/OIS scores to a JSON report.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"edgebench/internal/bench"
	"edgebench/internal/cli"
	"edgebench/internal/config"
	"edgebench/internal/evaltool"
	"edgebench/internal/logging"
	"edgebench/internal/procexec"
	"edgebench/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("benchrun", flag.ContinueOnError)
	fs.SetOutput(stderr)
	models := fs.String("models", bench.DefaultModels, "Comma-separated list of models to evaluate")
	datasets := fs.String("test", bench.DefaultDatasets, "Comma-separated list of test datasets")
	dryRun := fs.Bool("dry-run", false, "Print commands without executing them")
	strict := fs.Bool("strict", false, "Drop experiments whose output lacks ODS/OIS scores instead of recording 0")
	configPath := fs.String("config", "", "Path to edgebench.toml")
	output := fs.String("output", "", "Report path (overrides config)")
	verbose := fs.Bool("v", false, "Verbose logging")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if code := cli.Parse(fs, args); code >= 0 {
		return code
	}

	if *showVersion {
		fmt.Fprintln(stdout, version.String("benchrun"))
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return cli.Errorf(stderr, "%v", err)
	}
	if *output != "" {
		cfg.Bench.ReportPath = *output
	}

	var runner procexec.Runner = procexec.ExecRunner{Stdout: stdout, Stderr: stderr}
	if *dryRun {
		runner = procexec.DryRunner{}
	}

	r := &bench.Runner{
		Config: cfg.Bench,
		Exec:   runner,
		Parser: evaltool.RegexParser{Strict: *strict},
		Out:    stdout,
		Log:    logging.New(stderr, logging.Level(*verbose)),
	}
	report := r.Run(ctx, bench.Plan(bench.SplitList(*models), bench.SplitList(*datasets)))

	if *dryRun {
		preview, err := report.Indented()
		if err != nil {
			return cli.Errorf(stderr, "%v", err)
		}
		fmt.Fprintf(stdout, "[Dry Run] Would save results to %s\n", cfg.Bench.ReportPath)
		fmt.Fprintln(stdout, string(preview))
		return 0
	}
	if err := report.Save(cfg.Bench.ReportPath); err != nil {
		return cli.Errorf(stderr, "failed to save results: %v", err)
	}
	fmt.Fprintf(stdout, "\nSaved final results to %s\n", cfg.Bench.ReportPath)
	return 0
}
