// Package contour finds sub-photos with a classic OpenCV edge pipeline:
// grayscale, Gaussian blur, Canny edges, then the bounding boxes of the
// external contours.
package contour

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Params holds the pipeline thresholds
type Params struct {
	// BlurKernel is the odd Gaussian kernel size
	BlurKernel int
	CannyLow   float32
	CannyHigh  float32
}

// DefaultParams returns the empirically tuned thresholds
func DefaultParams() Params {
	return Params{BlurKernel: 5, CannyLow: 50, CannyHigh: 150}
}

// Finder implements extract.Finder using OpenCV
type Finder struct {
	params Params
}

// NewFinder creates a Finder; an even or non-positive kernel is rejected
func NewFinder(p Params) (*Finder, error) {
	if p.BlurKernel < 1 || p.BlurKernel%2 == 0 {
		return nil, fmt.Errorf("blur kernel must be a positive odd number, got %d", p.BlurKernel)
	}
	if p.CannyLow < 0 || p.CannyHigh < p.CannyLow {
		return nil, fmt.Errorf("invalid canny thresholds %v/%v", p.CannyLow, p.CannyHigh)
	}
	return &Finder{params: p}, nil
}

// Find returns the bounding box of every external contour in img.
// Boxes are not filtered or ordered.
func (f *Finder) Find(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := f.params.BlurKernel
	gocv.GaussianBlur(gray, &blurred, image.Point{X: k, Y: k}, 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, f.params.CannyLow, f.params.CannyHigh)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	offset := img.Bounds().Min
	boxes := make([]image.Rectangle, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		boxes = append(boxes, gocv.BoundingRect(contours.At(i)).Add(offset))
	}
	return boxes, nil
}
