// Command gtconvert converts ground-truth edge PNGs into groundTruth MAT-files
// laid out like the UDED/BSDS ground truth, so the boundary benchmark can read
// datasets that only ship images (e.g. BIPED).
//
// Usage: gtconvert --gt_dir data/BIPED/gt --output_dir data/BIPED/gt_mat [--verify ref.mat]
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"edgebench/internal/cli"
	"edgebench/internal/edgemap"
	"edgebench/internal/imageio"
	"edgebench/internal/logging"
	"edgebench/internal/version"

	"github.com/schollz/progressbar/v3"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gtconvert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	gtDir := fs.String("gt_dir", filepath.Join("data", "BIPED", "gt"), "Directory of ground-truth PNG images")
	outputDir := fs.String("output_dir", filepath.Join("data", "BIPED", "gt_mat"), "Directory for the generated MAT-files")
	verify := fs.String("verify", "", "Reference groundTruth MAT-file to compare the converted layout against")
	decoder := fs.String("decoder", cli.DecoderOpenCV, "Image decoder: opencv or go")
	compress := fs.Bool("compress", false, "Write zlib-compressed variables")
	verbose := fs.Bool("v", false, "Verbose logging")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if code := cli.Parse(fs, args); code >= 0 {
		return code
	}

	if *showVersion {
		fmt.Fprintln(stdout, version.String("gtconvert"))
		return 0
	}

	log := logging.New(stderr, logging.Level(*verbose))
	loader, err := cli.NewLoader(*decoder)
	if err != nil {
		return cli.Errorf(stderr, "%v", err)
	}

	inputs, err := edgemap.Inputs(*gtDir, true)
	if err != nil {
		return cli.Errorf(stderr, "GT directory not readable: %v", err)
	}

	conv := edgemap.NewConverter(loader, log)
	conv.Compress = *compress
	var bar *progressbar.ProgressBar
	if len(inputs) > 0 {
		bar = cli.NewProgress(len(inputs), "[cyan][GT][reset] Converting")
		conv.Progress = func(string, error) { bar.Add(1) }
	}

	count, err := conv.GroundTruthDir(*gtDir, *outputDir)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return cli.Errorf(stderr, "%v", err)
	}
	fmt.Fprintf(stdout, "Converted %d files to %s\n", count, *outputDir)

	if *verify != "" && !verifyLayout(stdout, stderr, *verify, *outputDir, inputs) {
		return 1
	}
	return 0
}

// verifyLayout prints the reference summary next to the first converted file
// and reports whether the container layouts agree.
func verifyLayout(stdout, stderr io.Writer, refPath, outputDir string, inputs []string) bool {
	fmt.Fprintln(stdout, "\n--- Verification ---")
	ref, err := edgemap.Inspect(refPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to read reference: %v\n", err)
		return false
	}
	ref.Write(stdout, "Reference")

	for _, in := range inputs {
		path := filepath.Join(outputDir, imageio.Basename(in)+".mat")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		got, err := edgemap.Inspect(path)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to read %s: %v\n", path, err)
			return false
		}
		got.Write(stdout, "Converted")
		if !ref.SameLayout(got) {
			fmt.Fprintln(stderr, "Layout mismatch between reference and converted files")
			return false
		}
		fmt.Fprintln(stdout, "Layout matches reference")
		return true
	}
	fmt.Fprintln(stderr, "No converted file to verify")
	return false
}
