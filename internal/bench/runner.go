package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"edgebench/internal/evaltool"
	"edgebench/internal/procexec"

	"github.com/fatih/color"
	"github.com/mitchellh/colorstring"
	"github.com/rs/zerolog"
)

const banner = "=================================================="

// Runner executes experiments one after another. Nothing is retried; a pair
// that cannot run is skipped and left out of the report.
type Runner struct {
	Config Config
	Exec   procexec.Runner
	Parser evaltool.ScoreParser
	Out    io.Writer
	Log    zerolog.Logger
}

// Run executes pairs in order and returns the collected report.
func (r *Runner) Run(ctx context.Context, pairs []Pair) *Report {
	report := NewReport()
	heading := color.New(color.FgCyan, color.Bold)
	colors := colorstring.Colorize{Colors: colorstring.DefaultColors, Disable: color.NoColor, Reset: true}

	for _, p := range pairs {
		if ctx.Err() != nil {
			r.Log.Warn().Err(ctx.Err()).Msg("Stopping before remaining experiments")
			break
		}
		fmt.Fprintf(r.Out, "\n%s\n", banner)
		heading.Fprintf(r.Out, "Experiment: Model=%s, Test=%s", p.Model, p.Dataset)
		fmt.Fprintf(r.Out, "\n%s\n", banner)

		rec, err := r.runPair(ctx, p)
		if errors.Is(err, errSkipped) {
			r.Log.Warn().Err(err).Str("experiment", p.Key()).Msg("Skipping experiment")
			continue
		}
		if err != nil {
			r.Log.Error().Err(err).Str("experiment", p.Key()).Msg("Experiment failed")
			continue
		}
		report.Add(p.Key(), rec)
		fmt.Fprintln(r.Out, colors.Color(fmt.Sprintf("[green]Result:[reset] %s -> ODS=%v, OIS=%v", p.Key(), rec.ODS, rec.OIS)))
	}
	return report
}

// errSkipped marks pairs that were deliberately not evaluated.
var errSkipped = errors.New("skipped")

func (r *Runner) runPair(ctx context.Context, p Pair) (Record, error) {
	if err := r.Config.CheckDataset(p.Dataset); err != nil {
		r.Log.Warn().Msg(err.Error())
		return Record{}, fmt.Errorf("%w: %s (missing files)", errSkipped, p.Dataset)
	}

	infer, err := r.Config.InferenceCommand(p)
	if err != nil {
		return Record{}, err
	}
	fmt.Fprintf(r.Out, "Running: %s\n", infer)
	if _, err := r.Exec.Run(ctx, infer); err != nil {
		return Record{}, fmt.Errorf("inference failed, skipping evaluation: %w", err)
	}

	eval, err := r.Config.EvaluationCommand(p)
	if err != nil {
		return Record{}, err
	}
	fmt.Fprintf(r.Out, "Running: %s\n", eval)
	res, err := r.Exec.Run(ctx, eval)
	if err != nil {
		var exitErr *procexec.ExitError
		if errors.As(err, &exitErr) {
			r.Log.Error().
				Str("stdout", strings.TrimSpace(exitErr.Result.Stdout)).
				Str("stderr", strings.TrimSpace(exitErr.Result.Stderr)).
				Msg("Evaluation command failed")
		}
		return Record{}, fmt.Errorf("evaluation failed: %w", err)
	}
	fmt.Fprintln(r.Out, res.Stdout)
	if res.Stderr != "" {
		r.Log.Warn().Str("stderr", strings.TrimSpace(res.Stderr)).Msg("Evaluation wrote to stderr")
	}
	if res.Stdout == "" {
		return Record{}, fmt.Errorf("%w: evaluation produced no output", errSkipped)
	}

	scores, err := r.Parser.Parse(res.Stdout)
	if err != nil {
		return Record{}, err
	}
	return Record{
		TrainModel:  p.Model,
		TestDataset: p.Dataset,
		ODS:         Score(scores.ODS),
		OIS:         Score(scores.OIS),
	}, nil
}
