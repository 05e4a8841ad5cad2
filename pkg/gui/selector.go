// Package gui provides the desktop selection window used by the cropper.
//
// Keys while a window is open:
//
//	Enter, Return, Space   confirm the drawn rectangles
//	Escape, window close   cancel, no new rectangles
//	Backspace, Delete, C   drop the last rectangle
package gui

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	"github.com/menta2k/roi-cropper/internal/logging"
	"github.com/menta2k/roi-cropper/pkg/selector"
	"github.com/menta2k/roi-cropper/pkg/types"
)

// AppID identifies the application to fyne (preferences, window class)
const AppID = "com.github.menta2k.roi-cropper"

// ErrClosed is returned when the application quit before the work finished
var ErrClosed = errors.New("application closed")

type action int

const (
	actionNone action = iota
	actionConfirm
	actionCancel
	actionUndo
)

func keyAction(name fyne.KeyName) action {
	switch name {
	case fyne.KeyReturn, fyne.KeyEnter, fyne.KeySpace:
		return actionConfirm
	case fyne.KeyEscape:
		return actionCancel
	case fyne.KeyBackspace, fyne.KeyDelete, fyne.KeyC:
		return actionUndo
	default:
		return actionNone
	}
}

// Selector implements selector.Selector with a single reusable fyne window.
// The window is hidden between images rather than closed so the application
// keeps running for the whole batch.
type Selector struct {
	window fyne.Window
	logger *slog.Logger

	mu     sync.Mutex
	picker *regionPicker
	done   chan []types.Rect

	// onShow is called once the window shows a new image
	onShow func(*regionPicker)
}

var _ selector.Selector = (*Selector)(nil)

// NewSelector creates the selection window on a
func NewSelector(a fyne.App, logger *slog.Logger) *Selector {
	s := &Selector{
		window: a.NewWindow("ROI Cropper"),
		logger: logging.OrDefault(logger),
	}
	s.window.SetFixedSize(true)
	s.window.SetPadded(false)
	s.window.SetCloseIntercept(func() { s.finish(nil) })
	s.window.Canvas().SetOnTypedKey(s.onKey)
	return s
}

// Select shows req.Image and blocks until the user confirms or cancels
func (s *Selector) Select(ctx context.Context, req selector.Request) ([]types.Rect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	picker := newRegionPicker(req.Image)
	done := make(chan []types.Rect, 1)

	s.mu.Lock()
	s.picker = picker
	s.done = done
	s.mu.Unlock()

	// fyne cannot place windows explicitly; the computed origin is logged
	// and the window manager centers the window instead
	s.logger.Debug("showing selection window",
		"image", req.ImageID,
		"origin_x", req.Origin.X,
		"origin_y", req.Origin.Y)

	s.window.SetTitle(req.Title)
	s.window.SetContent(picker)
	s.window.Resize(picker.MinSize())
	s.window.CenterOnScreen()
	s.window.Show()
	s.window.RequestFocus()
	if s.onShow != nil {
		s.onShow(picker)
	}

	select {
	case rects := <-done:
		return rects, nil
	case <-ctx.Done():
		s.finish(nil)
		return nil, ctx.Err()
	}
}

func (s *Selector) onKey(ev *fyne.KeyEvent) {
	s.mu.Lock()
	picker := s.picker
	s.mu.Unlock()
	if picker == nil {
		return
	}

	switch keyAction(ev.Name) {
	case actionConfirm:
		s.finish(picker.Regions())
	case actionCancel:
		s.finish(nil)
	case actionUndo:
		picker.Undo()
	}
}

// finish hands rects to the pending Select and hides the window
func (s *Selector) finish(rects []types.Rect) {
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.picker = nil
	s.mu.Unlock()

	if done == nil {
		return
	}
	done <- rects
	s.window.Hide()
}

// Run starts a fyne application, runs fn with a Selector bound to it and
// quits the application once fn returns. It must be called from the main
// goroutine.
func Run(logger *slog.Logger, fn func(*Selector) error) error {
	a := app.NewWithID(AppID)
	return runApp(a, logger, fn)
}

func runApp(a fyne.App, logger *slog.Logger, fn func(*Selector) error) error {
	sel := NewSelector(a, logger)
	errc := make(chan error, 1)

	a.Lifecycle().SetOnStarted(func() {
		go func() {
			errc <- fn(sel)
			a.Quit()
		}()
	})
	a.Run()

	select {
	case err := <-errc:
		return err
	default:
		return ErrClosed
	}
}
