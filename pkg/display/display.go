// Package display maps between original-image coordinates and the scaled
// image shown to the user during selection.
package display

import (
	"fmt"
	"image"
	"regexp"
	"strconv"

	"github.com/vova616/screenshot"

	"github.com/menta2k/roi-cropper/pkg/types"
)

// Screen is the size of the monitor the selection window is shown on
type Screen struct {
	Width  int
	Height int
}

// ProbeScreen queries the size of the primary screen
func ProbeScreen() (Screen, error) {
	rect, err := screenshot.ScreenRect()
	if err != nil {
		return Screen{}, fmt.Errorf("failed to probe screen size: %w", err)
	}
	if rect.Dx() <= 0 || rect.Dy() <= 0 {
		return Screen{}, fmt.Errorf("screen probe returned empty bounds %v", rect)
	}
	return Screen{Width: rect.Dx(), Height: rect.Dy()}, nil
}

var screenRe = regexp.MustCompile(`^(\d+)x(\d+)$`)

// ParseScreen parses a "WIDTHxHEIGHT" string such as "1920x1080"
func ParseScreen(s string) (Screen, error) {
	m := screenRe.FindStringSubmatch(s)
	if len(m) != 3 {
		return Screen{}, fmt.Errorf("invalid screen size %q (want WIDTHxHEIGHT)", s)
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	if w <= 0 || h <= 0 {
		return Screen{}, fmt.Errorf("invalid screen size %q", s)
	}
	return Screen{Width: w, Height: h}, nil
}

func (s Screen) String() string {
	return fmt.Sprintf("%dw x %dh", s.Width, s.Height)
}

// Scale returns the display scale for an image of the given height.
// Images taller than the screen are fitted to ratio*screenHeight; all others
// are shown at ratio of their original size.
func Scale(imageHeight, screenHeight int, ratio float64) float64 {
	if imageHeight > screenHeight {
		return float64(screenHeight) / float64(imageHeight) * ratio
	}
	return ratio
}

// Size returns the truncated display size of a w x h image
func Size(w, h int, scale float64) (int, int) {
	return int(float64(w) * scale), int(float64(h) * scale)
}

// ToDisplay maps an ROI into display space
func ToDisplay(roi types.ROI, scale float64) image.Rectangle {
	return image.Rect(
		int(float64(roi.X0)*scale),
		int(float64(roi.Y0)*scale),
		int(float64(roi.X1)*scale),
		int(float64(roi.Y1)*scale),
	)
}

// ToImage maps a display-space rectangle back to original-image corners.
// It is the inverse of the forward scale, truncated to integers.
func ToImage(r types.Rect, scale float64) types.ROI {
	return types.ROI{
		X0: int(float64(r.X) / scale),
		Y0: int(float64(r.Y) / scale),
		X1: int(float64(r.X+r.W) / scale),
		Y1: int(float64(r.Y+r.H) / scale),
	}
}

// WindowOrigin returns where a w x h window should be placed: centered
// horizontally and a quarter of the free height from the top, leaving room
// for menu and task bars.
func WindowOrigin(screen Screen, w, h int) image.Point {
	return image.Point{
		X: max((screen.Width-w)/2, 0),
		Y: max((screen.Height-h)/2/2, 0),
	}
}
