// Package extract cuts individual photos out of composite scans.
//
// A Finder proposes candidate boxes for an image; the Extractor orders them
// in reading order, drops boxes that are too small and writes the rest as
// separate JPEG files.
package extract

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/menta2k/roi-cropper/internal/logging"
	"github.com/menta2k/roi-cropper/internal/utils"
	"github.com/menta2k/roi-cropper/pkg/processing"
	"github.com/menta2k/roi-cropper/pkg/types"
)

// Finder proposes sub-photo bounding boxes in image pixel coordinates
type Finder interface {
	Find(ctx context.Context, img image.Image) ([]image.Rectangle, error)
}

// Options configures an Extractor
type Options struct {
	MinWidth  int
	MinHeight int
}

// Summary reports what a Run did
type Summary struct {
	Images  int
	Written int
	Failed  int
}

// Extractor runs a Finder over a directory of composites
type Extractor struct {
	finder    Finder
	opts      Options
	processor *processing.Processor
	logger    *slog.Logger
}

// New creates an Extractor
func New(finder Finder, opts Options, proc *processing.Processor, logger *slog.Logger) *Extractor {
	if proc == nil {
		proc = processing.NewProcessor(95)
	}
	return &Extractor{
		finder:    finder,
		opts:      opts,
		processor: proc,
		logger:    logging.OrDefault(logger),
	}
}

// SortReadingOrder orders boxes by top*imageWidth+left, keeping the
// relative order of ties
func SortReadingOrder(boxes []image.Rectangle, imageWidth int) {
	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].Min.Y*imageWidth+boxes[i].Min.X < boxes[j].Min.Y*imageWidth+boxes[j].Min.X
	})
}

// FilterBySize keeps boxes strictly wider than minW and taller than minH
func FilterBySize(boxes []image.Rectangle, minW, minH int) []image.Rectangle {
	out := make([]image.Rectangle, 0, len(boxes))
	for _, b := range boxes {
		if b.Dx() > minW && b.Dy() > minH {
			out = append(out, b)
		}
	}
	return out
}

// Run extracts every JPEG in inputDir into outputDir, creating outputDir
// if needed. Images that cannot be read or analysed are logged and skipped.
func (e *Extractor) Run(ctx context.Context, inputDir, outputDir string) (Summary, error) {
	var sum Summary

	if !utils.DirExists(inputDir) {
		return sum, fmt.Errorf("input directory %q does not exist", inputDir)
	}
	if err := utils.EnsureDir(outputDir); err != nil {
		return sum, fmt.Errorf("failed to create output directory: %w", err)
	}

	files, _, err := utils.ListJPEGFiles(inputDir)
	if err != nil {
		return sum, fmt.Errorf("failed to list %s: %w", inputDir, err)
	}

	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		n, err := e.extractFile(ctx, filepath.Join(inputDir, name), outputDir)
		if err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			e.logger.Warn("skipping image", "file", name, "err", err)
			sum.Failed++
			continue
		}
		sum.Images++
		sum.Written += n
	}

	e.logger.Info("extraction finished", "images", sum.Images, "photos", sum.Written, "failed", sum.Failed)
	return sum, nil
}

func (e *Extractor) extractFile(ctx context.Context, path, outputDir string) (int, error) {
	img, err := e.processor.LoadImage(path)
	if err != nil {
		return 0, err
	}

	boxes, err := e.finder.Find(ctx, img)
	if err != nil {
		return 0, fmt.Errorf("finder failed: %w", err)
	}
	SortReadingOrder(boxes, img.Bounds().Dx())
	kept := FilterBySize(boxes, e.opts.MinWidth, e.opts.MinHeight)
	e.logger.Debug("found boxes", "file", filepath.Base(path), "candidates", len(boxes), "kept", len(kept))

	base, _ := utils.SplitName(filepath.Base(path))
	written := 0
	for i, b := range kept {
		roi := types.ROI{X0: b.Min.X, Y0: b.Min.Y, X1: b.Max.X, Y1: b.Max.Y}
		crop, err := e.processor.Crop(img, roi)
		if err != nil {
			e.logger.Warn("skipping box", "file", filepath.Base(path), "box", roi.String(), "err", err)
			continue
		}
		out := filepath.Join(outputDir, utils.CropFilename(base, i+1, ".jpg"))
		if err := e.processor.SaveImage(crop, out, "jpg"); err != nil {
			return written, fmt.Errorf("failed to save %s: %w", out, err)
		}
		e.logger.Info("saved photo", "out", filepath.Base(out))
		written++
	}
	return written, nil
}
