package edgemap

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"edgebench/internal/imageio"
	"edgebench/internal/matfile"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = uint8(i % 256)
	}
	return g
}

func TestBinarizeThreshold(t *testing.T) {
	g := gradient(16, 16) // every value 0..255 once
	m := Binarize(g)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			v := g.GrayAt(x, y).Y
			want := uint8(0)
			if v > 127 {
				want = 1
			}
			assert.Equal(t, want, m.At(x, y), "pixel value %d", v)
		}
	}
}

func TestBinarizeHonoursStride(t *testing.T) {
	parent := image.NewGray(image.Rect(0, 0, 4, 4))
	parent.SetGray(2, 2, color.Gray{Y: 255})
	sub := parent.SubImage(image.Rect(1, 1, 3, 3)).(*image.Gray)

	m := Binarize(imageio.ToGray(sub))
	assert.Equal(t, 2, m.Width)
	assert.Equal(t, []uint8{0, 0, 0, 1}, m.Pix)
}

func TestNormalizeEndpoints(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 3, 1))
	g.Pix = []uint8{0, 51, 255}
	r := Normalize(g)
	assert.Equal(t, float32(0), r.Pix[0])
	assert.Equal(t, float32(0.2), r.Pix[1])
	assert.Equal(t, float32(1), r.Pix[2])
}

func TestGroundTruthRoundTrip(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 5, 3))
	for i := range g.Pix {
		if i%3 == 0 {
			g.Pix[i] = 255
		}
	}
	mask := Binarize(g)

	var buf bytes.Buffer
	require.NoError(t, matfile.NewEncoder(&buf).Encode(GroundTruth(mask)))
	f, err := matfile.Decode(buf.Bytes())
	require.NoError(t, err)

	b, err := Boundaries(f)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5}, b.Dims)
	assert.Equal(t, matfile.ClassUint8, b.Class())
	assert.Equal(t, mask.Array().Data, b.Data)
	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			assert.Equal(t, float64(mask.At(x, y)), b.At(y, x))
		}
	}
}

func TestBoundariesRejectsOtherLayouts(t *testing.T) {
	f := &matfile.File{Vars: []matfile.Variable{{Name: GroundTruthVar, Value: matfile.NewDouble([]int{1, 1}, []float64{1})}}}
	_, err := Boundaries(f)
	assert.Error(t, err)

	_, err = Boundaries(&matfile.File{})
	assert.Error(t, err)
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestGroundTruthDir(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "gt_mat")
	writePNG(t, filepath.Join(in, "RGB_008.png"), gradient(4, 2))
	writePNG(t, filepath.Join(in, "upper.PNG"), gradient(2, 2))
	require.NoError(t, os.WriteFile(filepath.Join(in, "broken.png"), []byte("garbage"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "photo.jpg"), []byte("ignored"), 0644))

	var seen, failed int
	c := NewConverter(imageio.Decoder{}, zerolog.Nop())
	c.Progress = func(_ string, err error) {
		seen++
		if err != nil {
			failed++
		}
	}
	n, err := c.GroundTruthDir(in, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, seen)
	assert.Equal(t, 1, failed)

	assert.FileExists(t, filepath.Join(out, "RGB_008.mat"))
	assert.FileExists(t, filepath.Join(out, "upper.mat"))
	assert.NoFileExists(t, filepath.Join(out, "broken.mat"))

	s, err := Inspect(filepath.Join(out, "RGB_008.mat"))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, s.OuterDims)
	assert.Equal(t, []int{2, 4}, s.Dims)
	assert.Equal(t, []float64{0}, s.Unique) // gradient(4, 2) tops out at 7
}

func TestResultDirDefaultsAndKey(t *testing.T) {
	in := t.TempDir()
	g := image.NewGray(image.Rect(0, 0, 2, 1))
	g.Pix = []uint8{255, 0}
	writePNG(t, filepath.Join(in, "pred.png"), g)

	c := NewConverter(imageio.Decoder{}, zerolog.Nop())
	c.Compress = true
	outDir, n, err := c.ResultDir(in, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, filepath.Join(in, "result_mat"), outDir)

	f, err := matfile.ReadFile(filepath.Join(outDir, "pred.mat"))
	require.NoError(t, err)
	v, ok := f.Lookup(DefaultResultKey)
	require.True(t, ok)
	num := v.(*matfile.Numeric)
	assert.Equal(t, matfile.ClassSingle, num.Class())
	assert.Equal(t, []float32{1, 0}, num.Data)
}

func TestSummaryLayout(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mat")
	b := filepath.Join(dir, "b.mat")
	require.NoError(t, matfile.WriteFile(a, []matfile.Variable{GroundTruth(Binarize(gradient(3, 3)))}))
	require.NoError(t, matfile.WriteFile(b, []matfile.Variable{GroundTruth(Binarize(gradient(200, 2)))}))

	sa, err := Inspect(a)
	require.NoError(t, err)
	sb, err := Inspect(b)
	require.NoError(t, err)
	assert.True(t, sa.SameLayout(sb))
	assert.Equal(t, []float64{0, 1}, sb.Unique)
	// 128..255 in the first row, 128..143 in the second
	assert.Equal(t, 144.0, sb.EdgePixels)
	assert.InDelta(t, 0.36, sb.Density, 1e-12)

	var out bytes.Buffer
	sb.Write(&out, "BIPED")
	assert.Contains(t, out.String(), "BIPED Boundaries shape: (2, 200), dtype: uint8")
	assert.Contains(t, out.String(), "BIPED Boundaries edge pixels: 144, density: 0.3600")
}

func TestInspectEdgeDensity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.mat")
	mask := &Mask{Width: 3, Height: 2, Pix: []uint8{1, 0, 0, 1, 1, 0}}
	require.NoError(t, matfile.WriteFile(path, []matfile.Variable{GroundTruth(mask)}))

	s, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, s.Dims)
	assert.Equal(t, 3.0, s.EdgePixels)
	assert.InDelta(t, 0.5, s.Density, 1e-12)
}
