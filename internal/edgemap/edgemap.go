// Package edgemap converts edge images into the MAT-file layouts consumed by
// boundary benchmark tooling: binary ground-truth masks wrapped in the
// groundTruth cell/struct container, and normalized prediction maps.
package edgemap

import (
	"fmt"
	"image"

	"edgebench/internal/matfile"
)

// Threshold is the luma value above which a ground-truth pixel is an edge.
const Threshold = 127

// Names fixed by the legacy dataset layout.
const (
	GroundTruthVar   = "groundTruth"
	BoundariesField  = "Boundaries"
	DefaultResultKey = "result"
)

// Mask is a binary boundary map, 1 for edge pixels and 0 elsewhere.
// Pix is row-major.
type Mask struct {
	Width, Height int
	Pix           []uint8
}

// Binarize thresholds g so that values above Threshold become 1.
func Binarize(g *image.Gray) *Mask {
	b := g.Bounds()
	m := &Mask{Width: b.Dx(), Height: b.Dy(), Pix: make([]uint8, b.Dx()*b.Dy())}
	for y := 0; y < m.Height; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+m.Width]
		for x, v := range row {
			if v > Threshold {
				m.Pix[y*m.Width+x] = 1
			}
		}
	}
	return m
}

// At returns the mask value at (x, y).
func (m *Mask) At(x, y int) uint8 {
	return m.Pix[y*m.Width+x]
}

// Array returns the mask as an H x W uint8 MAT array.
func (m *Mask) Array() *matfile.Numeric {
	return matfile.NewUint8([]int{m.Height, m.Width}, columnMajor(m.Pix, m.Width, m.Height))
}

// Result is a prediction map scaled to [0, 1]. Pix is row-major.
type Result struct {
	Width, Height int
	Pix           []float32
}

// Normalize divides every pixel of g by 255.
func Normalize(g *image.Gray) *Result {
	b := g.Bounds()
	r := &Result{Width: b.Dx(), Height: b.Dy(), Pix: make([]float32, b.Dx()*b.Dy())}
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			r.Pix[y*r.Width+x] = float32(g.Pix[y*g.Stride+x]) / 255
		}
	}
	return r
}

// Variable returns the prediction as an H x W single-precision variable named key.
func (r *Result) Variable(key string) matfile.Variable {
	return matfile.Variable{
		Name:  key,
		Value: matfile.NewSingle([]int{r.Height, r.Width}, columnMajor(r.Pix, r.Width, r.Height)),
	}
}

// GroundTruth wraps m in the 1x1 cell of 1x1 struct{Boundaries} layout.
func GroundTruth(m *Mask) matfile.Variable {
	inner := matfile.NewStruct([]int{1, 1}, []string{BoundariesField}, []matfile.Array{m.Array()})
	return matfile.Variable{
		Name:  GroundTruthVar,
		Value: matfile.NewCell([]int{1, 1}, inner),
	}
}

// Boundaries follows groundTruth[0,0][0,0]["Boundaries"] in a decoded file.
func Boundaries(f *matfile.File) (*matfile.Numeric, error) {
	v, ok := f.Lookup(GroundTruthVar)
	if !ok {
		return nil, fmt.Errorf("no %s variable", GroundTruthVar)
	}
	cell, ok := v.(*matfile.Cell)
	if !ok || len(cell.Elems) == 0 {
		return nil, fmt.Errorf("%s is %s, want non-empty cell", GroundTruthVar, v.Class())
	}
	st, ok := cell.At(0, 0).(*matfile.Struct)
	if !ok {
		return nil, fmt.Errorf("%s{1} is %s, want struct", GroundTruthVar, cell.At(0, 0).Class())
	}
	field, ok := st.Field(0, BoundariesField)
	if !ok {
		return nil, fmt.Errorf("%s{1} has no %s field", GroundTruthVar, BoundariesField)
	}
	num, ok := field.(*matfile.Numeric)
	if !ok {
		return nil, fmt.Errorf("%s is %s, want numeric", BoundariesField, field.Class())
	}
	return num, nil
}

func columnMajor[T any](pix []T, width, height int) []T {
	out := make([]T, len(pix))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out[x*height+y] = pix[y*width+x]
		}
	}
	return out
}
