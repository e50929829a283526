package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"edgebench/internal/evaltool"
	"edgebench/internal/procexec"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedRunner struct {
	calls []procexec.Command
	reply func(procexec.Command) (procexec.Result, error)
}

func (s *scriptedRunner) Run(_ context.Context, c procexec.Command) (procexec.Result, error) {
	s.calls = append(s.calls, c)
	if s.reply != nil {
		return s.reply(c)
	}
	if c.Capture {
		return procexec.Result{Stdout: "ODS: F=0.7123 (P=0.8, R=0.7)\nOIS: F=0.7301 (P=0.8, R=0.7)"}, nil
	}
	return procexec.Result{}, nil
}

func testConfig(t *testing.T, datasets ...string) Config {
	t.Helper()
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataRoot = filepath.Join(root, "data")
	cfg.ResultsRoot = filepath.Join(root, "results")
	cfg.ReportPath = filepath.Join(root, DefaultReport)
	for _, d := range datasets {
		require.NoError(t, os.MkdirAll(cfg.ImagesDir(d), 0755))
		require.NoError(t, os.MkdirAll(cfg.GTDir(d), 0755))
	}
	return cfg
}

func newRunner(cfg Config, exec procexec.Runner) (*Runner, *bytes.Buffer) {
	var out bytes.Buffer
	return &Runner{
		Config: cfg,
		Exec:   exec,
		Parser: evaltool.RegexParser{},
		Out:    &out,
		Log:    zerolog.Nop(),
	}, &out
}

func TestSplitListAndPlan(t *testing.T) {
	assert.Equal(t, []string{"bsds", "nyud", "biped"}, SplitList(DefaultModels))
	assert.Equal(t, []string{"a", "b"}, SplitList(" a, ,b ,"))

	pairs := Plan([]string{"m1", "m2"}, []string{"D1", "D2"})
	assert.Equal(t, []Pair{
		{"m1", "D1"}, {"m1", "D2"}, {"m2", "D1"}, {"m2", "D2"},
	}, pairs)
	assert.Equal(t, "m1/D2", pairs[1].Key())
}

func TestCommands(t *testing.T) {
	cfg := DefaultConfig()
	p := Pair{Model: "bsds", Dataset: "UDED"}

	infer, err := cfg.InferenceCommand(p)
	require.NoError(t, err)
	assert.Equal(t, "python3 demo.py --model bsds --input_dir "+filepath.Join("data", "UDED", "imgs")+
		" --out_dir "+filepath.Join("results", "UDED_bsds")+" --skip_small --sampling_timesteps 5", infer.String())
	assert.False(t, infer.Capture)

	eval, err := cfg.EvaluationCommand(p)
	require.NoError(t, err)
	assert.Equal(t, "edgeeval --results_dir "+filepath.Join("results", "UDED_bsds")+
		" --gt_dir "+filepath.Join("data", "UDED", "gt_mat")+" --model bsds", eval.String())
	assert.True(t, eval.Capture)

	cfg.Inference.Command = nil
	_, err = cfg.InferenceCommand(p)
	assert.Error(t, err)
}

func TestRunSkipsMissingDatasets(t *testing.T) {
	cfg := testConfig(t, "UDED")
	require.NoError(t, os.MkdirAll(cfg.ImagesDir("BSDS"), 0755)) // no gt_mat
	exec := &scriptedRunner{}
	r, _ := newRunner(cfg, exec)

	report := r.Run(context.Background(), Plan([]string{"bsds"}, []string{"BIPED", "UDED", "BSDS"}))
	assert.Equal(t, []string{"bsds/UDED"}, report.Keys())
	assert.Len(t, exec.calls, 2)

	rec, ok := report.Get("bsds/UDED")
	require.True(t, ok)
	assert.Equal(t, Record{TrainModel: "bsds", TestDataset: "UDED", ODS: 0.7123, OIS: 0.7301}, rec)
}

func TestRunInferenceFailureSkipsEvaluation(t *testing.T) {
	cfg := testConfig(t, "UDED")
	exec := &scriptedRunner{reply: func(c procexec.Command) (procexec.Result, error) {
		if !c.Capture {
			return procexec.Result{ExitCode: 2}, &procexec.ExitError{Command: c, Result: procexec.Result{ExitCode: 2}}
		}
		return procexec.Result{Stdout: "ODS: F=0.5"}, nil
	}}
	r, _ := newRunner(cfg, exec)

	report := r.Run(context.Background(), Plan([]string{"bsds", "nyud"}, []string{"UDED"}))
	assert.Equal(t, 0, report.Len())
	require.Len(t, exec.calls, 2)
	assert.False(t, exec.calls[0].Capture)
	assert.False(t, exec.calls[1].Capture)
}

func TestRunEvaluationFailureOmitsPair(t *testing.T) {
	cfg := testConfig(t, "UDED", "NYUD")
	exec := &scriptedRunner{reply: func(c procexec.Command) (procexec.Result, error) {
		if !c.Capture {
			return procexec.Result{}, nil
		}
		if strings.Contains(c.String(), "NYUD") {
			res := procexec.Result{ExitCode: 1, Stdout: "half", Stderr: "Traceback"}
			return res, &procexec.ExitError{Command: c, Result: res}
		}
		return procexec.Result{Stdout: "no scores printed"}, nil
	}}
	r, _ := newRunner(cfg, exec)

	report := r.Run(context.Background(), Plan([]string{"nyud"}, []string{"NYUD", "UDED"}))
	assert.Equal(t, []string{"nyud/UDED"}, report.Keys())
	rec, _ := report.Get("nyud/UDED")
	assert.Equal(t, Score(0), rec.ODS)
	assert.Equal(t, Score(0), rec.OIS)
}

func TestRunEmptyOutputOmitsPair(t *testing.T) {
	cfg := testConfig(t, "UDED")
	exec := &scriptedRunner{reply: func(procexec.Command) (procexec.Result, error) {
		return procexec.Result{}, nil
	}}
	r, _ := newRunner(cfg, exec)
	assert.Equal(t, 0, r.Run(context.Background(), []Pair{{"bsds", "UDED"}}).Len())
}

func TestRunStrictParserOmitsPair(t *testing.T) {
	cfg := testConfig(t, "UDED")
	exec := &scriptedRunner{reply: func(c procexec.Command) (procexec.Result, error) {
		return procexec.Result{Stdout: "ODS: F=0.6"}, nil
	}}
	r, _ := newRunner(cfg, exec)
	r.Parser = evaltool.RegexParser{Strict: true}
	assert.Equal(t, 0, r.Run(context.Background(), []Pair{{"bsds", "UDED"}}).Len())
}

func TestDryRunWritesNothing(t *testing.T) {
	cfg := testConfig(t, "UDED")
	r, out := newRunner(cfg, procexec.DryRunner{})

	report := r.Run(context.Background(), Plan([]string{"bsds", "biped"}, []string{"UDED", "BIPED"}))
	assert.Equal(t, []string{"bsds/UDED", "biped/UDED"}, report.Keys())
	assert.Contains(t, out.String(), "Experiment: Model=biped, Test=BIPED")
	// each command line appears once: two per available pair
	assert.Equal(t, 4, strings.Count(out.String(), "Running: "))
	assert.Equal(t, 2, strings.Count(out.String(), "Running: edgeeval --results_dir"))
	assert.Contains(t, out.String(), "bsds/UDED -> ODS=0.0, OIS=0.0")

	_, err := os.Stat(cfg.ResultsRoot)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(cfg.ReportPath)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	preview, err := report.Indented()
	require.NoError(t, err)
	assert.Equal(t, `{
    "bsds/UDED": {
        "train_model": "bsds",
        "test_dataset": "UDED",
        "ODS": 0.0,
        "OIS": 0.0
    },
    "biped/UDED": {
        "train_model": "biped",
        "test_dataset": "UDED",
        "ODS": 0.0,
        "OIS": 0.0
    }
}`, string(preview))
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, "UDED")
	exec := &scriptedRunner{}
	r, _ := newRunner(cfg, exec)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, r.Run(ctx, []Pair{{"bsds", "UDED"}}).Len())
	assert.Empty(t, exec.calls)
}

func TestReportSaveLoadKeepsOrder(t *testing.T) {
	report := NewReport()
	report.Add("z/B", Record{TrainModel: "z", TestDataset: "B", ODS: 0.5, OIS: 0.6})
	report.Add("a/A", Record{TrainModel: "a", TestDataset: "A", ODS: 0.7, OIS: 0.8})

	path := filepath.Join(t.TempDir(), DefaultReport)
	require.NoError(t, report.Save(path))
	loaded, err := LoadReport(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"z/B", "a/A"}, loaded.Keys())
	rec, ok := loaded.Get("a/A")
	require.True(t, ok)
	assert.Equal(t, Score(0.8), rec.OIS)

	empty, err := NewReport().Indented()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(empty))
}

func TestScoreFormatting(t *testing.T) {
	for _, tc := range []struct {
		in   Score
		want string
	}{
		{0, "0.0"},
		{1, "1.0"},
		{0.7123, "0.7123"},
		{0.5, "0.5"},
		{0.00001, "1e-05"},
		{-2, "-2.0"},
	} {
		assert.Equal(t, tc.want, tc.in.String())
		data, err := json.Marshal(Record{ODS: tc.in})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"ODS":`+tc.want+`,`)
	}

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"ODS": 0.0, "OIS": 0.75}`), &rec))
	assert.Equal(t, Score(0.75), rec.OIS)
}

func TestRunPrintsResultLine(t *testing.T) {
	cfg := testConfig(t, "UDED")
	r, out := newRunner(cfg, &scriptedRunner{})
	r.Run(context.Background(), []Pair{{"bsds", "UDED"}})
	assert.Contains(t, out.String(), "bsds/UDED -> ODS=0.7123, OIS=0.7301")
}
