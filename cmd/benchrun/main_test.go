package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"edgebench/internal/bench"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// workspace creates data/<dataset>/{imgs,gt_mat} in a fresh working directory.
func workspace(t *testing.T, datasets ...string) {
	t.Helper()
	chdir(t, t.TempDir())
	for _, d := range datasets {
		require.NoError(t, os.MkdirAll(filepath.Join("data", d, "imgs"), 0755))
		require.NoError(t, os.MkdirAll(filepath.Join("data", d, "gt_mat"), 0755))
	}
}

func TestDryRunPrintsPreview(t *testing.T) {
	workspace(t, "UDED")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--dry-run", "--models", "bsds", "--test", "UDED,NYUD"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := stdout.String()
	assert.Contains(t, out, "Running: python3 demo.py --model bsds --input_dir "+filepath.Join("data", "UDED", "imgs"))
	assert.Contains(t, out, "Experiment: Model=bsds, Test=NYUD")
	assert.Contains(t, out, `[Dry Run] Would save results to final_results.json
{
    "bsds/UDED": {
        "train_model": "bsds",
        "test_dataset": "UDED",
        "ODS": 0.0,
        "OIS": 0.0
    }
}
`)
	assert.NoFileExists(t, "final_results.json")
	assert.NoDirExists(t, "results")
}

func TestRunSavesReport(t *testing.T) {
	workspace(t, "BIPED")
	require.NoError(t, os.WriteFile("edgebench.toml", []byte(`
[bench.inference]
command = ["sh", "-c", "exit 0"]

[bench.evaluation]
command = ["sh", "-c", "echo 'ODS: F=0.8 (P=0.8, R=0.8)'; echo 'OIS: F=0.81 (P=0.8, R=0.8)'"]
`), 0644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--models", "biped", "--test", "BIPED", "--output", "scores.json"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "biped/BIPED -> ODS=0.8, OIS=0.81")
	assert.Contains(t, stdout.String(), "\nSaved final results to scores.json\n")

	report, err := bench.LoadReport("scores.json")
	require.NoError(t, err)
	rec, ok := report.Get("biped/BIPED")
	require.True(t, ok)
	assert.Equal(t, bench.Score(0.81), rec.OIS)
}

func TestBadFlagsAndConfig(t *testing.T) {
	workspace(t)
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), []string{"--nope"}, &stdout, &stderr))

	require.NoError(t, os.WriteFile("bad.toml", []byte("[bench]\nunknown = 1\n"), 0644))
	stderr.Reset()
	assert.Equal(t, 1, run(context.Background(), []string{"--config", "bad.toml"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Error: ")
	assert.Contains(t, stderr.String(), "unknown keys")
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
