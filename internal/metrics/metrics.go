// Package metrics collects the per-experiment metrics.csv files written by
// the boundary benchmark and prints one summary line per experiment.
package metrics

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
)

// Defaults for the results tree layout results/<experiment>/result_mat/eval_output/<model>/metrics.csv.
const (
	DefaultRoot    = "results"
	DefaultPattern = "*/result_mat/eval_output/*/metrics.csv"
)

var (
	// ErrNoData means the file holds a header and nothing else.
	ErrNoData = errors.New("no data")
	// ErrMalformed means the data row has fewer than three columns.
	ErrMalformed = errors.New("malformed data")
)

// Row is one experiment's headline metrics.
type Row struct {
	Experiment string  `csv:"experiment"`
	ODS        float64 `csv:"ODS"`
	OIS        float64 `csv:"OIS"`
	AP         float64 `csv:"AP"`
	Path       string  `csv:"path"`
}

// Aggregator finds metrics files below Root matching Pattern.
type Aggregator struct {
	Root    string `toml:"root"`
	Pattern string `toml:"pattern"`
}

// New returns an Aggregator over the default layout.
func New() *Aggregator {
	return &Aggregator{Root: DefaultRoot, Pattern: DefaultPattern}
}

// Glob is the full search pattern.
func (a *Aggregator) Glob() string {
	return filepath.Join(a.Root, a.Pattern)
}

// Find returns the matching files sorted lexicographically.
func (a *Aggregator) Find() ([]string, error) {
	files, err := filepath.Glob(a.Glob())
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Experiment is the first path element below Root, e.g. "BIPED_biped".
func (a *Aggregator) Experiment(path string) string {
	rel, err := filepath.Rel(a.Root, path)
	if err != nil {
		rel = path
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	return parts[0]
}

// ParseFile reads a metrics.csv whose first line is the ODS,OIS,AP,R50
// header. Only the first data row is used, positionally.
func ParseFile(path string) (Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Row{}, err
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 2 {
		return Row{}, ErrNoData
	}
	vals := strings.Split(strings.TrimSpace(lines[1]), ",")
	if len(vals) < 3 {
		return Row{}, ErrMalformed
	}
	var nums [3]float64
	for i := range nums {
		v, err := strconv.ParseFloat(strings.TrimSpace(vals[i]), 64)
		if err != nil {
			return Row{}, fmt.Errorf("could not parse %q: %w", vals[i], err)
		}
		nums[i] = v
	}
	return Row{ODS: nums[0], OIS: nums[1], AP: nums[2], Path: path}, nil
}

// Line formats a row the way Report prints it.
func (r Row) Line() string {
	return fmt.Sprintf("%s: ODS=%.3f, OIS=%.3f, AP=%.3f", r.Experiment, r.ODS, r.OIS, r.AP)
}

// Report prints one line per parsable file to stdout and one diagnostic per
// problem file to stderr. A bad file never stops the remaining ones. The
// returned rows are the ones printed to stdout.
func (a *Aggregator) Report(stdout, stderr io.Writer) ([]Row, error) {
	files, err := a.Find()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		fmt.Fprintf(stderr, "No metrics files found in %s\n", a.Glob())
		return nil, nil
	}

	var rows []Row
	for _, path := range files {
		name := a.Experiment(path)
		row, err := ParseFile(path)
		switch {
		case err == nil:
			row.Experiment = name
			rows = append(rows, row)
			fmt.Fprintln(stdout, row.Line())
		case errors.Is(err, ErrNoData):
			fmt.Fprintf(stderr, "%s: No Data\n", name)
		case errors.Is(err, ErrMalformed):
			fmt.Fprintf(stderr, "%s: Malformed data\n", name)
		case errors.Is(err, strconv.ErrSyntax), errors.Is(err, strconv.ErrRange):
			fmt.Fprintf(stderr, "%s: Error parsing values\n", name)
		default:
			fmt.Fprintf(stderr, "Error reading %s: %v\n", path, err)
		}
	}
	return rows, nil
}

// WriteCSV exports rows with an experiment,ODS,OIS,AP,path header.
func WriteCSV(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
