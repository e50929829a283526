// Package config loads the optional edgebench.toml that replaces the
// hard-wired paths of the benchmark layout.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"edgebench/internal/bench"
	"edgebench/internal/evaltool"
	"edgebench/internal/metrics"

	"github.com/BurntSushi/toml"
)

// DefaultPath is read when no -config flag is given and the file exists.
const DefaultPath = "edgebench.toml"

// File is the on-disk configuration.
type File struct {
	Bench    bench.Config       `toml:"bench"`
	EvalTool evaltool.Config    `toml:"eval_tool"`
	Metrics  metrics.Aggregator `toml:"metrics"`
}

// Default returns the built-in configuration.
func Default() File {
	return File{
		Bench:    bench.DefaultConfig(),
		EvalTool: evaltool.DefaultConfig(),
		Metrics:  *metrics.New(),
	}
}

// Load overlays the TOML file at path on the defaults. An empty path reads
// DefaultPath if present. Unknown keys are rejected so typos do not silently
// fall back to defaults.
func Load(path string) (File, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return File{}, fmt.Errorf("failed to load config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return File{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}
