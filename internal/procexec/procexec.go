// Package procexec runs external programs behind a small interface so callers
// can be exercised without spawning real processes.
package procexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Command describes one external invocation.
type Command struct {
	Name string
	Args []string
	Dir  string

	// Capture collects stdout and stderr into the Result instead of
	// streaming them to the runner's writers.
	Capture bool
}

// String renders the command line the way it would be typed.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result is the outcome of a finished process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExitError reports a process that ran but exited non-zero.
type ExitError struct {
	Command Command
	Result  Result
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with status %d", e.Command.Name, e.Result.ExitCode)
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec. Streamed output goes to Stdout and
// Stderr, which default to the process's own streams.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Run implements Runner. A non-zero exit returns the Result together with an
// *ExitError; a process that could not start returns a plain error.
func (r ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir

	var stdout, stderr bytes.Buffer
	if c.Capture {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	} else {
		cmd.Stdout = orDefault(r.Stdout, os.Stdout)
		cmd.Stderr = orDefault(r.Stderr, os.Stderr)
	}

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, &ExitError{Command: c, Result: res}
		}
		return res, fmt.Errorf("failed to run %s: %w", c.Name, err)
	}
	return res, nil
}

// DryOutput is the evaluation text a dry run pretends to capture.
const DryOutput = "ODS: F=0.0 (P=0.0, R=0.0)\nOIS: F=0.0 (P=0.0, R=0.0)"

// DryRunner never executes anything. Callers print the command line
// themselves; captured commands report Output (DryOutput when empty) on
// stdout.
type DryRunner struct {
	Output string
}

// Run implements Runner.
func (r DryRunner) Run(_ context.Context, c Command) (Result, error) {
	if !c.Capture {
		return Result{}, nil
	}
	out := r.Output
	if out == "" {
		out = DryOutput
	}
	return Result{Stdout: out}, nil
}

func orDefault(w, def io.Writer) io.Writer {
	if w == nil {
		return def
	}
	return w
}
