package edgemap

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"edgebench/internal/matfile"

	"gonum.org/v1/gonum/mat"
)

// Summary describes the Boundaries mask of a ground-truth MAT-file.
type Summary struct {
	Path      string
	OuterDims []int
	Dims      []int
	Class     matfile.Class
	Unique    []float64
	// EdgePixels is the sum of the mask, Density its mean.
	EdgePixels float64
	Density    float64
}

// Inspect reads a ground-truth MAT-file and summarizes its Boundaries mask.
func Inspect(path string) (*Summary, error) {
	f, err := matfile.ReadFile(path)
	if err != nil {
		return nil, err
	}
	outer, _ := f.Lookup(GroundTruthVar)
	b, err := Boundaries(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s := &Summary{
		Path:      path,
		OuterDims: outer.Shape(),
		Dims:      b.Dims,
		Class:     b.Class(),
	}
	if b.Len() == 0 {
		return s, nil
	}
	m, err := b.Dense()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rows, cols := m.Dims()
	s.Unique = unique(m.RawMatrix().Data)
	s.EdgePixels = mat.Sum(m)
	s.Density = s.EdgePixels / float64(rows*cols)
	return s, nil
}

// Write prints the summary in the same shape for every file so a converted
// file can be compared line by line with a reference.
func (s *Summary) Write(w io.Writer, label string) {
	fmt.Fprintf(w, "%s groundTruth shape: %s\n", label, shape(s.OuterDims))
	fmt.Fprintf(w, "%s Boundaries shape: %s, dtype: %s\n", label, shape(s.Dims), s.Class)
	fmt.Fprintf(w, "%s Boundaries unique values: %v\n", label, s.Unique)
	fmt.Fprintf(w, "%s Boundaries edge pixels: %.0f, density: %.4f\n", label, s.EdgePixels, s.Density)
}

// SameLayout reports whether two summaries share the container layout and
// mask class. Image sizes may differ between datasets.
func (s *Summary) SameLayout(o *Summary) bool {
	return shape(s.OuterDims) == shape(o.OuterDims) &&
		len(s.Dims) == len(o.Dims) &&
		s.Class == o.Class
}

func shape(dims []int) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = fmt.Sprint(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func unique(vals []float64) []float64 {
	seen := make(map[float64]struct{})
	var out []float64
	for _, v := range vals {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}
