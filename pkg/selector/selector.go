// Package selector defines the interactive rectangle-selection surface used
// by the cropper session.
package selector

import (
	"context"
	"image"

	"github.com/menta2k/roi-cropper/pkg/types"
)

// Request describes one selection session
type Request struct {
	// ImageID is the file name of the image being cropped
	ImageID string
	// Title is the window title
	Title string
	// Image is the scaled image with stored ROIs already drawn on it
	Image image.Image
	// Origin is the requested top-left window position on screen. It is a
	// hint: the fyne selector cannot place windows, so it centers the window
	// and only logs Origin at debug level.
	Origin image.Point
}

// Selector lets the user draw rectangles over an image.
// Select blocks until the user confirms or cancels. Confirmation returns the
// drawn rectangles in display coordinates; cancellation returns none.
type Selector interface {
	Select(ctx context.Context, req Request) ([]types.Rect, error)
}

// Scripted is a Selector that replays a fixed answer per image id.
// It backs tests and unattended re-export runs.
type Scripted struct {
	answers map[string][]types.Rect
	calls   []Request
}

// NewScripted creates a Scripted selector; images without an answer get none
func NewScripted(answers map[string][]types.Rect) *Scripted {
	if answers == nil {
		answers = make(map[string][]types.Rect)
	}
	return &Scripted{answers: answers}
}

// Select returns the scripted rectangles for req.ImageID
func (s *Scripted) Select(ctx context.Context, req Request) ([]types.Rect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.calls = append(s.calls, req)
	rects := s.answers[req.ImageID]
	out := make([]types.Rect, len(rects))
	copy(out, rects)
	return out, nil
}

// Calls returns the requests seen so far
func (s *Scripted) Calls() []Request {
	return s.calls
}
