package processing

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/roi-cropper/pkg/types"
)

// ErrEmptyCrop is returned when an ROI does not overlap the image
var ErrEmptyCrop = errors.New("empty crop rectangle")

// ROIColor is the stroke color used for stored ROIs on the display image
var ROIColor = color.NRGBA{0, 255, 0, 255}

// Processor handles image processing operations
type Processor struct {
	quality  int
	lossless bool
}

// NewProcessor creates a new image processor writing JPEG/WebP at quality
func NewProcessor(quality int) *Processor {
	if quality < 1 || quality > 100 {
		quality = 95
	}
	return &Processor{quality: quality}
}

// SetLossless toggles lossless WebP output
func (p *Processor) SetLossless(lossless bool) {
	p.lossless = lossless
}

// LoadImage decodes an image file, applying its EXIF orientation
func (p *Processor) LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return img, nil
}

// ResizeForDisplay scales img to exactly w x h
func (p *Processor) ResizeForDisplay(img image.Image, w, h int) *image.NRGBA {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return imaging.Resize(img, w, h, imaging.Linear)
}

// DrawROIs strokes each rectangle onto img with a 2px green border.
// When labels is set the 1-based index is written inside the top-left corner.
func (p *Processor) DrawROIs(img *image.NRGBA, rects []image.Rectangle, labels bool) {
	const stroke = 2
	for i, r := range rects {
		drawRect(img, r, ROIColor, stroke)
		if labels {
			drawLabel(img, strconv.Itoa(i+1), r.Min.X+stroke+2, r.Min.Y+stroke+13, ROIColor)
		}
	}
}

// Crop returns the part of img covered by roi.
// The ROI is intersected with the image bounds; no overlap yields ErrEmptyCrop.
func (p *Processor) Crop(img image.Image, roi types.ROI) (image.Image, error) {
	b := img.Bounds()
	rect := roi.Rectangle().Add(b.Min).Intersect(b)
	if rect.Empty() {
		return nil, fmt.Errorf("%w: roi %v outside %dx%d image", ErrEmptyCrop, roi, b.Dx(), b.Dy())
	}
	return imaging.Crop(img, rect), nil
}

// PrepareImageForModel converts an image to base64 for sending to vision models.
// Images larger than maxDim on either side are downscaled first; the size of
// the encoded image is returned alongside.
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, image.Point, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}
	size := img.Bounds().Size()

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", image.Point{}, err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", image.Point{}, err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), size, nil
}

// FormatFromExt maps a file extension (".JPG", "png", ...) to jpg, png or webp
func FormatFromExt(ext string) string {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "png":
		return "png"
	case "webp":
		return "webp"
	default:
		return "jpg"
	}
}

// SaveImage saves an image to a file in the given format (jpg, png or webp)
func (p *Processor) SaveImage(img image.Image, path, format string) error {
	switch strings.ToLower(format) {
	case "png":
		return imaging.Save(img, path)
	case "webp":
		return writeFile(path, func(w io.Writer) error {
			return webp.Encode(w, img, &webp.Options{Lossless: p.lossless, Quality: float32(p.quality)})
		})
	default: // jpg/jpeg
		// imaging.Save picks the encoder from the extension, which may be
		// absent or uppercase here
		return writeFile(path, func(w io.Writer) error {
			return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(p.quality))
		})
	}
}

// writeFile creates path and runs encode on it; a failed close is reported
// so an unflushed crop is not counted as written
func writeFile(path string, encode func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return encode(f)
}

func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	r = r.Canon()
	x0, y0, x1, y1 := r.Min.X, r.Min.Y, r.Max.X, r.Max.Y
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawLabel(img *image.NRGBA, text string, x, y int, c color.NRGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0, x1 = max(x0, b.Min.X), min(x1, b.Max.X)
	for x := x0; x < x1; x++ {
		img.SetNRGBA(x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	y0, y1 = max(y0, b.Min.Y), min(y1, b.Max.Y)
	for y := y0; y < y1; y++ {
		img.SetNRGBA(x, y, c)
	}
}
