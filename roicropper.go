// Package roicropper marks and exports rectangular regions of JPEG scans.
//
// Two batch tools share this library:
//
//   - the interactive cropper (cmd/cropper) shows every JPEG of a directory
//     scaled to the screen with earlier regions drawn on top, lets the user
//     drag new rectangles, stores all regions in rois.json next to the crops
//     and writes each region as <base>_<n>.<ext>;
//   - the auto extractor (cmd/autoextract) cuts individual photos out of
//     composite scans, either with an OpenCV contour pipeline or by asking a
//     vision model served by Ollama or llama.cpp.
//
// Basic usage:
//
//	cfg := config.Default()
//	err := gui.Run(logger, func(sel *gui.Selector) error {
//		_, err := roicropper.CropDirectory(ctx, cfg, sel, logger, "scans", "crops")
//		return err
//	})
//
// Coordinates stored in rois.json are always in original image pixels
// ([x0, y0, x1, y1]), independent of the display scale used while
// selecting.
package roicropper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/menta2k/roi-cropper/internal/config"
	"github.com/menta2k/roi-cropper/internal/logging"
	"github.com/menta2k/roi-cropper/pkg/client"
	"github.com/menta2k/roi-cropper/pkg/contour"
	"github.com/menta2k/roi-cropper/pkg/detection"
	"github.com/menta2k/roi-cropper/pkg/display"
	"github.com/menta2k/roi-cropper/pkg/extract"
	"github.com/menta2k/roi-cropper/pkg/llamacpp"
	"github.com/menta2k/roi-cropper/pkg/ollama"
	"github.com/menta2k/roi-cropper/pkg/processing"
	"github.com/menta2k/roi-cropper/pkg/selector"
	"github.com/menta2k/roi-cropper/pkg/session"
)

// ErrNotVision is returned by CheckVision for finders that do not use a model
var ErrNotVision = errors.New("finder does not use a vision model")

// Version of the roi-cropper library
const Version = "1.0.0"

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

// ResolveScreen returns the configured screen size, probing the primary
// display only when none is configured
func ResolveScreen(cfg config.CropperConfig) (display.Screen, error) {
	if cfg.ScreenWidth > 0 && cfg.ScreenHeight > 0 {
		return display.Screen{Width: cfg.ScreenWidth, Height: cfg.ScreenHeight}, nil
	}
	return display.ProbeScreen()
}

// CropDirectory runs the interactive cropper over inputDir, writing crops
// and rois.json into outputDir. Both directories must already exist.
func CropDirectory(ctx context.Context, cfg *config.Config, sel selector.Selector, logger *slog.Logger, inputDir, outputDir string) (session.Summary, error) {
	logger = logging.OrDefault(logger)
	if err := session.ValidateDirs(inputDir, outputDir); err != nil {
		return session.Summary{}, err
	}

	screen, err := ResolveScreen(cfg.Cropper)
	if err != nil {
		return session.Summary{}, fmt.Errorf("screen size unknown, set cropper.screen_width/height: %w", err)
	}

	proc := processing.NewProcessor(cfg.Cropper.Quality)
	proc.SetLossless(cfg.Cropper.Lossless)

	runner := session.New(session.Options{
		Screen:       screen,
		DisplayRatio: cfg.Cropper.DisplayRatio,
		OutputFormat: cfg.Cropper.OutputFormat,
		LabelROIs:    cfg.Cropper.LabelROIs,
	}, proc, sel, logger)

	return runner.Run(ctx, inputDir, outputDir)
}

// NewFinder builds the region finder selected by cfg.Extractor.Backend
func NewFinder(cfg *config.Config, logger *slog.Logger) (extract.Finder, error) {
	var visionClient client.VisionClient
	var err error

	switch cfg.Extractor.Backend {
	case config.BackendContour, "":
		return contour.NewFinder(contour.Params{
			BlurKernel: cfg.Extractor.BlurKernel,
			CannyLow:   float32(cfg.Extractor.CannyLow),
			CannyHigh:  float32(cfg.Extractor.CannyHigh),
		})
	case config.BackendOllama:
		visionClient, err = ollama.NewClient(cfg.Vision.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
	case config.BackendLlamaCpp:
		visionClient, err = llamacpp.NewClient(cfg.Vision.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown backend: %s (use contour, ollama or llamacpp)", cfg.Extractor.Backend)
	}

	return detection.NewDetector(visionClient, detection.Options{
		Model:       cfg.Vision.Model,
		SendFormat:  cfg.Vision.SendFormat,
		SendSize:    cfg.Vision.SendSize,
		SendQuality: cfg.Vision.SendQuality,
	}, logger), nil
}

// ExtractDirectory cuts the photos found by finder out of every JPEG in
// inputDir. A nil finder is built from cfg with NewFinder.
func ExtractDirectory(ctx context.Context, cfg *config.Config, finder extract.Finder, logger *slog.Logger, inputDir, outputDir string) (extract.Summary, error) {
	logger = logging.OrDefault(logger)
	if finder == nil {
		var err error
		if finder, err = NewFinder(cfg, logger); err != nil {
			return extract.Summary{}, err
		}
	}

	proc := processing.NewProcessor(cfg.Extractor.Quality)
	ex := extract.New(finder, extract.Options{
		MinWidth:  cfg.Extractor.MinWidth,
		MinHeight: cfg.Extractor.MinHeight,
	}, proc, logger)

	return ex.Run(ctx, inputDir, outputDir)
}

// CheckVision asks the model behind finder to describe the image at path,
// confirming the server is reachable and the model accepts images
func CheckVision(ctx context.Context, finder extract.Finder, path string) (string, error) {
	d, ok := finder.(*detection.Detector)
	if !ok {
		return "", ErrNotVision
	}
	img, err := processing.NewProcessor(0).LoadImage(path)
	if err != nil {
		return "", err
	}
	return d.TestVision(ctx, img)
}
