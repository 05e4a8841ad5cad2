// Package session runs the interactive cropping flow over a directory of
// JPEG images: show each image scaled to the screen, collect new regions
// from the user, persist them next to the crops and export every region.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/menta2k/roi-cropper/internal/logging"
	"github.com/menta2k/roi-cropper/internal/utils"
	"github.com/menta2k/roi-cropper/pkg/display"
	"github.com/menta2k/roi-cropper/pkg/processing"
	"github.com/menta2k/roi-cropper/pkg/roistore"
	"github.com/menta2k/roi-cropper/pkg/selector"
	"github.com/menta2k/roi-cropper/pkg/types"
)

// ErrInvalidDir is returned when the input or output directory is unusable
var ErrInvalidDir = errors.New("invalid directory")

// Options configures a Runner
type Options struct {
	// Screen is the monitor size used to compute the display scale
	Screen display.Screen
	// DisplayRatio is the share of screen height an image may take (0.7 by default)
	DisplayRatio float64
	// OutputFormat overrides the crop format (jpg, png, webp); empty keeps the source extension
	OutputFormat string
	// LabelROIs draws the 1-based index next to each stored ROI
	LabelROIs bool
}

// Summary reports what a Run did
type Summary struct {
	Processed   int
	Skipped     int
	Failed      int
	NoSelection int
	ROIsAdded   int
	CropsSaved  int
}

// Runner drives the interactive flow
type Runner struct {
	opts      Options
	processor *processing.Processor
	selector  selector.Selector
	logger    *slog.Logger
}

// New creates a Runner
func New(opts Options, proc *processing.Processor, sel selector.Selector, logger *slog.Logger) *Runner {
	if opts.DisplayRatio <= 0 {
		opts.DisplayRatio = 0.7
	}
	if proc == nil {
		proc = processing.NewProcessor(95)
	}
	return &Runner{
		opts:      opts,
		processor: proc,
		selector:  sel,
		logger:    logging.OrDefault(logger),
	}
}

// ValidateDirs checks that both directories are given and exist
func ValidateDirs(inputDir, outputDir string) error {
	if inputDir == "" || !utils.DirExists(inputDir) {
		return fmt.Errorf("%w: an input directory must be provided (got %q)", ErrInvalidDir, inputDir)
	}
	if outputDir == "" || !utils.DirExists(outputDir) {
		return fmt.Errorf("%w: an output directory must be provided (got %q)", ErrInvalidDir, outputDir)
	}
	return nil
}

// Run processes every JPEG in inputDir in filename order.
// Unreadable images are logged and skipped; a failure to persist the ROI
// store or a cancelled context stops the batch.
func (r *Runner) Run(ctx context.Context, inputDir, outputDir string) (Summary, error) {
	var sum Summary

	if err := ValidateDirs(inputDir, outputDir); err != nil {
		return sum, err
	}
	if r.opts.Screen.Width <= 0 || r.opts.Screen.Height <= 0 {
		return sum, fmt.Errorf("screen size must be known, got %v", r.opts.Screen)
	}

	store, err := roistore.Open(outputDir)
	if err != nil {
		if !errors.Is(err, roistore.ErrCorrupt) {
			return sum, err
		}
		r.logger.Warn("ignoring unreadable roi store, it will be rewritten", "path", store.Path(), "err", err)
	}

	files, others, err := utils.ListJPEGFiles(inputDir)
	if err != nil {
		return sum, fmt.Errorf("failed to list %s: %w", inputDir, err)
	}
	for _, name := range others {
		r.logger.Info("skipping non-JPEG file", "file", name)
		sum.Skipped++
	}

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := r.processFile(ctx, store, inputDir, outputDir, name, &sum); err != nil {
			return sum, err
		}
	}

	r.logger.Info("batch finished",
		"processed", sum.Processed,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"no_selection", sum.NoSelection,
		"rois_added", sum.ROIsAdded,
		"crops", sum.CropsSaved)
	return sum, nil
}

func (r *Runner) processFile(ctx context.Context, store *roistore.Store, inputDir, outputDir, name string, sum *Summary) error {
	log := r.logger.With("file", name)
	log.Info("processing")

	img, err := r.processor.LoadImage(filepath.Join(inputDir, name))
	if err != nil {
		log.Warn("failed to load image", "err", err)
		sum.Failed++
		return nil
	}
	sum.Processed++

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	scale := display.Scale(h, r.opts.Screen.Height, r.opts.DisplayRatio)
	dispW, dispH := display.Size(w, h, scale)
	log.Info("display geometry",
		"screen", r.opts.Screen.String(),
		"image", fmt.Sprintf("%dw x %dh", w, h),
		"scale", fmt.Sprintf("%.2f", scale),
		"scaled", fmt.Sprintf("%dw x %dh", dispW, dispH))

	rois := store.Get(name)
	disp := r.processor.ResizeForDisplay(img, dispW, dispH)
	prior := make([]image.Rectangle, len(rois))
	for i, roi := range rois {
		prior[i] = display.ToDisplay(roi, scale)
	}
	r.processor.DrawROIs(disp, prior, r.opts.LabelROIs)

	rects, err := r.selector.Select(ctx, selector.Request{
		ImageID: name,
		Title:   "Select ROIs - " + name,
		Image:   disp,
		Origin:  display.WindowOrigin(r.opts.Screen, disp.Bounds().Dx(), disp.Bounds().Dy()),
	})
	if err != nil {
		return fmt.Errorf("selection for %s: %w", name, err)
	}

	added := 0
	for _, rect := range rects {
		if rect.Empty() {
			continue
		}
		rois = append(rois, display.ToImage(rect, scale))
		added++
	}
	if added == 0 {
		log.Info("no new ROIs selected")
		sum.NoSelection++
		return nil
	}
	sum.ROIsAdded += added

	log.Info("saving ROIs", "count", len(rois))
	store.Set(name, rois)
	if err := store.Save(); err != nil {
		return err
	}

	r.exportCrops(log, img, name, outputDir, rois, sum)
	return nil
}

func (r *Runner) exportCrops(log *slog.Logger, img image.Image, name, outputDir string, rois []types.ROI, sum *Summary) {
	base, ext := utils.SplitName(name)
	format := processing.FormatFromExt(ext)
	if r.opts.OutputFormat != "" {
		format = processing.FormatFromExt(r.opts.OutputFormat)
		ext = "." + strings.ToLower(r.opts.OutputFormat)
	}

	for i, roi := range rois {
		idx := i + 1
		outName := utils.CropFilename(base, idx, ext)

		crop, err := r.processor.Crop(img, roi)
		if err != nil {
			log.Warn("skipping crop", "index", idx, "roi", roi.String(), "err", err)
			continue
		}
		if err := r.processor.SaveImage(crop, filepath.Join(outputDir, outName), format); err != nil {
			log.Warn("failed to save crop", "index", idx, "out", outName, "err", err)
			continue
		}
		sum.CropsSaved++
		log.Info("saved crop", "index", idx, "out", outName)
	}
}
