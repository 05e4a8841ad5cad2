package detection

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/menta2k/roi-cropper/internal/logging"
	"github.com/menta2k/roi-cropper/pkg/client"
	"github.com/menta2k/roi-cropper/pkg/processing"
	"github.com/menta2k/roi-cropper/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks for the boxes of every separate photo on a scan
const DefaultPrompt = `You are a photo album scan splitter.

The image is a scan of several physical photographs laid out on a flatbed.
Return JSON only:
{
  "regions": [
    {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}
  ],
  "description": "short neutral sentence (≤ 20 words)"
}

HARD RULES
- One region per separate photograph, tightly enclosing its paper edges.
- All coordinates are normalized to [0,1] (NOT pixels); x,y is the top-left corner.
- Regions must not overlap.
- Ignore the scanner background, dust and small scraps.
- If there are no photographs, return {"regions":[],"description":"no photos"}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Options controls how images are sent to the model
type Options struct {
	Model string
	// Prompt overrides DefaultPrompt
	Prompt      string
	SendFormat  string
	SendSize    int
	SendQuality int
}

// Detector locates photos on a composite scan with a vision model.
// It implements extract.Finder.
type Detector struct {
	client    client.VisionClient
	processor *processing.Processor
	opts      Options
	logger    *slog.Logger
}

// NewDetector creates a new detector with a vision client
func NewDetector(c client.VisionClient, opts Options, logger *slog.Logger) *Detector {
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	if opts.SendFormat == "" {
		opts.SendFormat = "jpg"
	}
	if opts.SendQuality <= 0 {
		opts.SendQuality = 85
	}
	return &Detector{
		client:    c,
		processor: processing.NewProcessor(95),
		opts:      opts,
		logger:    logging.OrDefault(logger),
	}
}

// Find implements extract.Finder
func (d *Detector) Find(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	imgB64, sent, err := d.processor.PrepareImageForModel(img, d.opts.SendFormat, d.opts.SendSize, d.opts.SendQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare image: %w", err)
	}

	result, err := d.client.LocateRegions(ctx, d.opts.Model, d.opts.Prompt, imgB64)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("model answered", "regions", len(result.Regions), "description", result.Description)

	// pixel-valued answers refer to the downscaled copy the model saw
	b := img.Bounds()
	rects := make([]image.Rectangle, 0, len(result.Regions))
	for _, box := range result.Regions {
		r := toPixels(normalizeBox(box, sent.X, sent.Y), b)
		if r.Empty() {
			continue
		}
		rects = append(rects, r)
	}
	return rects, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, img image.Image) (string, error) {
	imgB64, _, err := d.processor.PrepareImageForModel(img, d.opts.SendFormat, d.opts.SendSize, d.opts.SendQuality)
	if err != nil {
		return "", err
	}
	return d.client.SimpleQuery(ctx, d.opts.Model, SimpleTestPrompt, imgB64)
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox ensures box coordinates are within [0,1] bounds.
// Boxes with any value above 1 are taken to be in pixels of the imgW x imgH
// image that was sent to the model.
func normalizeBox(b types.Box, imgW, imgH int) types.Box {
	if imgW > 0 && imgH > 0 && (b.X > 1 || b.Y > 1 || b.W > 1 || b.H > 1) {
		b = types.Box{
			X: b.X / float64(imgW),
			Y: b.Y / float64(imgH),
			W: b.W / float64(imgW),
			H: b.H / float64(imgH),
		}
	}

	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// toPixels maps a normalized box onto bounds
func toPixels(b types.Box, bounds image.Rectangle) image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	r := image.Rect(
		int(b.X*w),
		int(b.Y*h),
		int((b.X+b.W)*w),
		int((b.Y+b.H)*h),
	)
	return r.Add(bounds.Min).Intersect(bounds)
}
