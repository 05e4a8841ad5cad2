package main

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/menta2k/roi-cropper/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type noVisionFinder struct{}

func (noVisionFinder) Find(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	return nil, nil
}

// run parses the global flag set, so it is called once per test binary
func TestRunReturnsExitCode(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	cfg := config.Default()
	cfg.Extractor.Backend = config.BackendLlamaCpp
	if err := cfg.SaveToFile(cfgPath); err != nil {
		t.Fatal(err)
	}

	args := os.Args
	defer func() { os.Args = args }()
	os.Args = []string{"autoextract", "-config", cfgPath, "-in", filepath.Join(dir, "missing"), "-out", filepath.Join(dir, "out"), "-log-level", "error"}

	if code := run(); code != 1 {
		t.Errorf("Expected exit code 1 for a missing input directory, got %d", code)
	}
}

func TestPreflightSkipsNonVisionFinder(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	img.SetNRGBA(1, 1, color.NRGBA{255, 0, 0, 255})
	if err := imaging.Save(img, filepath.Join(dir, "a.jpg")); err != nil {
		t.Fatal(err)
	}

	if err := preflight(context.Background(), discardLogger(), noVisionFinder{}, dir); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestPreflightEmptyDir(t *testing.T) {
	if err := preflight(context.Background(), discardLogger(), noVisionFinder{}, t.TempDir()); err != nil {
		t.Errorf("Expected no error for an empty directory, got %v", err)
	}
}

func TestFailReturnsOne(t *testing.T) {
	slog.SetDefault(discardLogger())
	if code := fail(nil, "boom", errors.New("x")); code != 1 {
		t.Errorf("Expected 1, got %d", code)
	}
}
