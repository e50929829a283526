// Package evaltool drives the external boundary benchmark (ODS/OIS/AP) that
// lives in its own Python environment, and reads back what it produces.
package evaltool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"edgebench/internal/procexec"

	"github.com/rs/zerolog"
)

// ErrToolNotFound is returned when the tool's interpreter is missing.
var ErrToolNotFound = errors.New("edge_eval python not found")

// Config locates the external tool and fixes the arguments it is given.
type Config struct {
	// ToolDir is the tool checkout; it is also the working directory.
	ToolDir string `toml:"dir"`
	// Python is the interpreter, relative to ToolDir unless absolute.
	Python     string `toml:"python"`
	Script     string `toml:"script"`
	Key        string `toml:"key"`
	FileFormat string `toml:"file_format"`
	Workers    int    `toml:"workers"`
}

// DefaultConfig matches the layout of a vendored edge_eval_python checkout.
func DefaultConfig() Config {
	return Config{
		ToolDir:    filepath.Join("external", "edge_eval_python"),
		Python:     filepath.Join(".venv", "bin", "python3"),
		Script:     "main.py",
		Key:        "result",
		FileFormat: ".mat",
		Workers:    1,
	}
}

// Executable returns the interpreter path.
func (c Config) Executable() string {
	if filepath.IsAbs(c.Python) {
		return c.Python
	}
	return filepath.Join(c.ToolDir, c.Python)
}

// Request names one evaluation run.
type Request struct {
	Model   string
	MatDir  string // converted predictions
	SaveDir string // where the tool writes <model>-eval/
	GTDir   string // ground-truth MAT-files
}

// SaveDirFor is the tool output directory used for a prediction MAT directory.
func SaveDirFor(matDir string) string {
	return filepath.Join(matDir, "eval_output")
}

// Abs returns req with every directory made absolute.
func (req Request) Abs() (Request, error) {
	out := req
	for _, dir := range []*string{&out.MatDir, &out.SaveDir, &out.GTDir} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return Request{}, fmt.Errorf("failed to resolve %s: %w", *dir, err)
		}
		*dir = abs
	}
	return out, nil
}

// Command builds the tool invocation. Directories are made absolute because
// the tool runs from its own directory.
func (c Config) Command(req Request) (procexec.Command, error) {
	req, err := req.Abs()
	if err != nil {
		return procexec.Command{}, err
	}
	exe, err := filepath.Abs(c.Executable())
	if err != nil {
		return procexec.Command{}, err
	}
	return procexec.Command{
		Name: exe,
		Args: []string{
			c.Script,
			"--alg", req.Model,
			"--model_name_list", req.Model,
			"--result_dir", req.MatDir,
			"--save_dir", req.SaveDir,
			"--gt_dir", req.GTDir,
			"--key", c.Key,
			"--file_format", c.FileFormat,
			"--workers", strconv.Itoa(c.Workers),
		},
		Dir: c.ToolDir,
	}, nil
}

// ResultsPath is the summary file the tool writes for model.
func ResultsPath(saveDir, model string) string {
	return filepath.Join(saveDir, model+"-eval", "eval_bdry.txt")
}

// Evaluator runs the external tool and loads its summary.
type Evaluator struct {
	Config Config
	Runner procexec.Runner
	Log    zerolog.Logger
}

// Evaluate runs the tool for req. The tool's exit status is not treated as a
// failure; the outcome is judged by whether the summary file appears. When it
// does not, Evaluate returns nil results and a nil error.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*BoundaryResults, string, error) {
	if _, err := os.Stat(e.Config.Executable()); err != nil {
		return nil, "", fmt.Errorf("%w at %s", ErrToolNotFound, e.Config.Executable())
	}
	req, err := req.Abs()
	if err != nil {
		return nil, "", err
	}
	cmd, err := e.Config.Command(req)
	if err != nil {
		return nil, "", err
	}

	e.Log.Debug().Str("cmd", cmd.String()).Msg("Running edge evaluation")
	if _, err := e.Runner.Run(ctx, cmd); err != nil {
		var exitErr *procexec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, "", err
		}
		e.Log.Warn().Int("status", exitErr.Result.ExitCode).Msg("Evaluation tool exited non-zero")
	}

	path := ResultsPath(req.SaveDir, req.Model)
	if _, err := os.Stat(path); err != nil {
		e.Log.Debug().Str("path", path).Msg("No evaluation summary written")
		return nil, path, nil
	}
	res, err := ReadBoundaryResults(path)
	if err != nil {
		return nil, path, err
	}
	return res, path, nil
}
