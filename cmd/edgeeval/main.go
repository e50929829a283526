// Command edgeeval converts edge predictions to MAT-files and scores them
// with the external edge_eval_python benchmark (ODS/OIS/AP).
//
// Usage: edgeeval --results_dir results/uded_bsds --gt_dir data/UDED/gt_mat [--model bsds]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"edgebench/internal/cli"
	"edgebench/internal/config"
	"edgebench/internal/edgemap"
	"edgebench/internal/evaltool"
	"edgebench/internal/logging"
	"edgebench/internal/procexec"
	"edgebench/internal/version"

	"github.com/schollz/progressbar/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("edgeeval", flag.ContinueOnError)
	fs.SetOutput(stderr)
	resultsDir := fs.String("results_dir", "", "Directory containing PNG edge detection results (required)")
	gtDir := fs.String("gt_dir", "", "Directory containing ground truth .mat files (required)")
	model := fs.String("model", "model", "Model name for output labeling")
	configPath := fs.String("config", "", "Path to edgebench.toml")
	toolDir := fs.String("tool_dir", "", "edge_eval_python checkout (overrides config)")
	decoder := fs.String("decoder", cli.DecoderOpenCV, "Image decoder: opencv or go")
	verbose := fs.Bool("v", false, "Verbose logging")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if code := cli.Parse(fs, args); code >= 0 {
		return code
	}

	if *showVersion {
		fmt.Fprintln(stdout, version.String("edgeeval"))
		return 0
	}
	if *resultsDir == "" || *gtDir == "" {
		fmt.Fprintln(stderr, "Usage: edgeeval --results_dir <dir> --gt_dir <dir> [--model name]")
		fs.PrintDefaults()
		return 1
	}
	if !isDir(*resultsDir) {
		return cli.Errorf(stderr, "Results directory not found: %s", *resultsDir)
	}
	if !isDir(*gtDir) {
		return cli.Errorf(stderr, "GT directory not found: %s", *gtDir)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return cli.Errorf(stderr, "%v", err)
	}
	if *toolDir != "" {
		cfg.EvalTool.ToolDir = *toolDir
	}
	log := logging.New(stderr, logging.Level(*verbose))

	loader, err := cli.NewLoader(*decoder)
	if err != nil {
		return cli.Errorf(stderr, "%v", err)
	}
	conv := edgemap.NewConverter(loader, log)
	var bar *progressbar.ProgressBar
	if inputs, err := edgemap.Inputs(*resultsDir, false); err == nil && len(inputs) > 0 {
		bar = cli.NewProgress(len(inputs), "[cyan][MAT][reset] Converting")
		conv.Progress = func(string, error) { bar.Add(1) }
	}
	matDir, count, err := conv.ResultDir(*resultsDir, "", cfg.EvalTool.Key)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return cli.Errorf(stderr, "%v", err)
	}
	fmt.Fprintf(stdout, "%d files converted to MAT format in %s\n", count, matDir)

	req, err := evaltool.Request{
		Model:   *model,
		MatDir:  matDir,
		SaveDir: evaltool.SaveDirFor(matDir),
		GTDir:   *gtDir,
	}.Abs()
	if err != nil {
		return cli.Errorf(stderr, "%v", err)
	}
	fmt.Fprintln(stdout, "\nRunning edge evaluation...")
	fmt.Fprintf(stdout, "  Result dir: %s\n", req.MatDir)
	fmt.Fprintf(stdout, "  GT dir: %s\n", req.GTDir)

	evaluator := &evaltool.Evaluator{
		Config: cfg.EvalTool,
		Runner: procexec.ExecRunner{Stdout: stdout, Stderr: stderr},
		Log:    log,
	}
	res, path, err := evaluator.Evaluate(ctx, req)
	if errors.Is(err, evaltool.ErrToolNotFound) {
		fmt.Fprintf(stderr, "Error: edge_eval Python not found at %s\n", cfg.EvalTool.Executable())
		fmt.Fprintln(stderr, "Please set up the edge_eval_python virtual environment.")
		return 1
	}
	if err != nil {
		return cli.Errorf(stderr, "%v", err)
	}
	if res != nil {
		res.WriteReport(stdout, path)
	}
	return 0
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
