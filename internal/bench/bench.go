// Package bench runs every (trained model, test dataset) pair through
// inference and evaluation and collects the headline scores.
package bench

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"edgebench/internal/procexec"
)

// Defaults for the experiment grid.
const (
	DefaultModels   = "bsds,nyud,biped"
	DefaultDatasets = "BIPED,UDED,BSDS,NYUD"
	DefaultReport   = "final_results.json"
)

// Config holds the paths and commands the runner uses.
type Config struct {
	DataRoot    string           `toml:"data_root"`
	ResultsRoot string           `toml:"results_root"`
	ReportPath  string           `toml:"report"`
	Inference   InferenceConfig  `toml:"inference"`
	Evaluation  EvaluationConfig `toml:"evaluation"`
}

// InferenceConfig describes the edge detector's demo script.
type InferenceConfig struct {
	Command           []string `toml:"command"`
	SamplingTimesteps int      `toml:"sampling_timesteps"`
	SkipSmall         bool     `toml:"skip_small"`
}

// EvaluationConfig is the command that runs edgeeval.
type EvaluationConfig struct {
	Command []string `toml:"command"`
}

// DefaultConfig returns the layout used by the benchmark checkout.
func DefaultConfig() Config {
	return Config{
		DataRoot:    "data",
		ResultsRoot: "results",
		ReportPath:  DefaultReport,
		Inference: InferenceConfig{
			Command:           []string{"python3", "demo.py"},
			SamplingTimesteps: 5,
			SkipSmall:         true,
		},
		Evaluation: EvaluationConfig{
			Command: []string{"edgeeval"},
		},
	}
}

// Pair is one experiment.
type Pair struct {
	Model   string
	Dataset string
}

// Key identifies the pair in the report.
func (p Pair) Key() string {
	return p.Model + "/" + p.Dataset
}

// SplitList splits a comma-separated flag value, trimming blanks and
// dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Plan returns the cross-product, models in the outer loop.
func Plan(models, datasets []string) []Pair {
	pairs := make([]Pair, 0, len(models)*len(datasets))
	for _, m := range models {
		for _, d := range datasets {
			pairs = append(pairs, Pair{Model: m, Dataset: d})
		}
	}
	return pairs
}

// ImagesDir is the dataset's input image directory.
func (c Config) ImagesDir(dataset string) string {
	return filepath.Join(c.DataRoot, dataset, "imgs")
}

// GTDir is the dataset's ground-truth MAT directory.
func (c Config) GTDir(dataset string) string {
	return filepath.Join(c.DataRoot, dataset, "gt_mat")
}

// OutDir is where inference writes predictions for p.
func (c Config) OutDir(p Pair) string {
	return filepath.Join(c.ResultsRoot, p.Dataset+"_"+p.Model)
}

// CheckDataset verifies that both input directories exist.
func (c Config) CheckDataset(dataset string) error {
	if !isDir(c.ImagesDir(dataset)) {
		return fmt.Errorf("image directory not found: %s", c.ImagesDir(dataset))
	}
	if !isDir(c.GTDir(dataset)) {
		return fmt.Errorf("GT directory not found: %s", c.GTDir(dataset))
	}
	return nil
}

// InferenceCommand runs the detector over the dataset's images.
func (c Config) InferenceCommand(p Pair) (procexec.Command, error) {
	if len(c.Inference.Command) == 0 {
		return procexec.Command{}, fmt.Errorf("no inference command configured")
	}
	args := append([]string{}, c.Inference.Command[1:]...)
	args = append(args,
		"--model", p.Model,
		"--input_dir", c.ImagesDir(p.Dataset),
		"--out_dir", c.OutDir(p),
	)
	if c.Inference.SkipSmall {
		args = append(args, "--skip_small")
	}
	if c.Inference.SamplingTimesteps > 0 {
		args = append(args, "--sampling_timesteps", strconv.Itoa(c.Inference.SamplingTimesteps))
	}
	return procexec.Command{Name: c.Inference.Command[0], Args: args}, nil
}

// EvaluationCommand runs edgeeval over the pair's predictions, capturing its
// output for score extraction.
func (c Config) EvaluationCommand(p Pair) (procexec.Command, error) {
	if len(c.Evaluation.Command) == 0 {
		return procexec.Command{}, fmt.Errorf("no evaluation command configured")
	}
	args := append([]string{}, c.Evaluation.Command[1:]...)
	args = append(args,
		"--results_dir", c.OutDir(p),
		"--gt_dir", c.GTDir(p.Dataset),
		"--model", p.Model,
	)
	return procexec.Command{Name: c.Evaluation.Command[0], Args: args, Capture: true}, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
