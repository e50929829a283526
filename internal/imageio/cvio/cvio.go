// Package cvio loads grayscale images through OpenCV.
package cvio

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Loader reads images with OpenCV's IMREAD_GRAYSCALE conversion.
type Loader struct{}

// LoadGray implements imageio.Loader.
func (Loader) LoadGray(path string) (*image.Gray, error) {
	mat := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("could not read %s", path)
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		return nil, fmt.Errorf("unexpected image type %T for %s", img, path)
	}
	return gray, nil
}
