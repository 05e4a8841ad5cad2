package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
)

// ErrInvalidROI is returned when a stored ROI is not a 4-element integer array
var ErrInvalidROI = errors.New("invalid roi")

// ROI is a region of interest in original-image pixel coordinates,
// stored as two opposite corners.
type ROI struct {
	X0 int
	Y0 int
	X1 int
	Y1 int
}

// Rectangle returns the ROI as an image.Rectangle
func (r ROI) Rectangle() image.Rectangle {
	return image.Rect(r.X0, r.Y0, r.X1, r.Y1)
}

// Width returns the horizontal extent of the ROI
func (r ROI) Width() int {
	return r.X1 - r.X0
}

// Height returns the vertical extent of the ROI
func (r ROI) Height() int {
	return r.Y1 - r.Y0
}

func (r ROI) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", r.X0, r.Y0, r.X1, r.Y1)
}

// MarshalJSON encodes the ROI as [x0,y0,x1,y1]
func (r ROI) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{r.X0, r.Y0, r.X1, r.Y1})
}

// UnmarshalJSON decodes an ROI from [x0,y0,x1,y1]
func (r *ROI) UnmarshalJSON(data []byte) error {
	var vals []int
	if err := json.Unmarshal(data, &vals); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidROI, err)
	}
	if len(vals) != 4 {
		return fmt.Errorf("%w: expected 4 coordinates, got %d", ErrInvalidROI, len(vals))
	}
	r.X0, r.Y0, r.X1, r.Y1 = vals[0], vals[1], vals[2], vals[3]
	return nil
}

// Rect is a rectangle in display space as drawn by the user
type Rect struct {
	X int
	Y int
	W int
	H int
}

// Empty reports whether the rectangle covers no pixels
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// RegionResult is what a vision model reports for a composite scan
type RegionResult struct {
	Regions     []Box  `json:"regions"`
	Description string `json:"description"`
}
