package edgemap

import (
	"fmt"
	"os"
	"path/filepath"

	"edgebench/internal/imageio"
	"edgebench/internal/matfile"

	"github.com/rs/zerolog"
)

// Converter batch-converts image directories to MAT-files. A file that
// cannot be read is logged and skipped; it never aborts the batch.
type Converter struct {
	Loader imageio.Loader
	Log    zerolog.Logger

	// Compress writes zlib-compressed variables.
	Compress bool

	// Progress, if set, is called once per input file after it is handled.
	// err is non-nil when the file was skipped.
	Progress func(path string, err error)
}

// NewConverter returns a Converter using loader and log.
func NewConverter(loader imageio.Loader, log zerolog.Logger) *Converter {
	return &Converter{Loader: loader, Log: log}
}

// GroundTruthDir converts every PNG in gtDir into a groundTruth MAT-file of
// the same basename in outDir, and returns the number of files written.
func (c *Converter) GroundTruthDir(gtDir, outDir string) (int, error) {
	return c.convertDir(gtDir, outDir, imageio.GroundTruthExts, func(path string) (matfile.Variable, error) {
		g, err := c.Loader.LoadGray(path)
		if err != nil {
			return matfile.Variable{}, err
		}
		return GroundTruth(Binarize(g)), nil
	})
}

// ResultDefaultDir is where ResultDir writes when no output directory is given.
func ResultDefaultDir(imageDir string) string {
	return filepath.Join(imageDir, "result_mat")
}

// ResultDir converts every PNG/JPEG prediction in imageDir into a MAT-file
// holding the normalized map under key. An empty outDir selects
// ResultDefaultDir(imageDir). It returns the output directory and the number
// of files written.
func (c *Converter) ResultDir(imageDir, outDir, key string) (string, int, error) {
	if outDir == "" {
		outDir = ResultDefaultDir(imageDir)
	}
	if key == "" {
		key = DefaultResultKey
	}
	n, err := c.convertDir(imageDir, outDir, imageio.PredictionExts, func(path string) (matfile.Variable, error) {
		g, err := c.Loader.LoadGray(path)
		if err != nil {
			return matfile.Variable{}, err
		}
		return Normalize(g).Variable(key), nil
	})
	return outDir, n, err
}

// Inputs lists the files GroundTruthDir or ResultDir would visit.
func Inputs(dir string, groundTruth bool) ([]string, error) {
	if groundTruth {
		return imageio.ListImages(dir, imageio.GroundTruthExts...)
	}
	return imageio.ListImages(dir, imageio.PredictionExts...)
}

func (c *Converter) convertDir(inDir, outDir string, exts []string, build func(string) (matfile.Variable, error)) (int, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}
	files, err := imageio.ListImages(inDir, exts...)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", inDir, err)
	}

	var opts []matfile.Option
	if c.Compress {
		opts = append(opts, matfile.WithCompression())
	}

	count := 0
	for _, path := range files {
		v, err := build(path)
		if err != nil {
			c.Log.Warn().Err(err).Str("file", filepath.Base(path)).Msg("Could not read image")
			c.progress(path, err)
			continue
		}
		out := filepath.Join(outDir, imageio.Basename(path)+".mat")
		if err := matfile.WriteFile(out, []matfile.Variable{v}, opts...); err != nil {
			return count, fmt.Errorf("failed to write %s: %w", out, err)
		}
		c.Log.Debug().Str("file", filepath.Base(path)).Str("out", out).Msg("Converted")
		c.progress(path, nil)
		count++
	}
	return count, nil
}

func (c *Converter) progress(path string, err error) {
	if c.Progress != nil {
		c.Progress(path, err)
	}
}
