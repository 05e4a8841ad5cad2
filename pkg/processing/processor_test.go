package processing

import (
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/menta2k/roi-cropper/pkg/types"
)

// createTestImage creates a simple gradient test image
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 255 / width), uint8(y * 255 / height), 128, 255})
		}
	}
	return img
}

func TestCropSize(t *testing.T) {
	p := NewProcessor(95)
	img := createTestImage(300, 200)

	crop, err := p.Crop(img, types.ROI{X0: 10, Y0: 10, X1: 110, Y1: 110})
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if b := crop.Bounds(); b.Dx() != 100 || b.Dy() != 100 {
		t.Errorf("Expected 100x100 crop, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestCropClampsStaleROI(t *testing.T) {
	p := NewProcessor(95)
	img := createTestImage(100, 100)

	crop, err := p.Crop(img, types.ROI{X0: 50, Y0: 50, X1: 400, Y1: 400})
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if b := crop.Bounds(); b.Dx() != 50 || b.Dy() != 50 {
		t.Errorf("Expected clamped 50x50 crop, got %dx%d", b.Dx(), b.Dy())
	}

	_, err = p.Crop(img, types.ROI{X0: 200, Y0: 200, X1: 300, Y1: 300})
	if !errors.Is(err, ErrEmptyCrop) {
		t.Errorf("Expected ErrEmptyCrop, got %v", err)
	}
}

func TestResizeForDisplay(t *testing.T) {
	p := NewProcessor(95)
	disp := p.ResizeForDisplay(createTestImage(1000, 800), 700, 560)
	if b := disp.Bounds(); b.Dx() != 700 || b.Dy() != 560 {
		t.Errorf("Expected 700x560, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestDrawROIs(t *testing.T) {
	p := NewProcessor(95)
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))

	p.DrawROIs(img, []image.Rectangle{image.Rect(10, 10, 60, 60)}, true)

	for _, pt := range []image.Point{{10, 10}, {11, 30}, {59, 59}, {30, 58}} {
		if got := img.NRGBAAt(pt.X, pt.Y); got != ROIColor {
			t.Errorf("Expected border at %v, got %v", pt, got)
		}
	}
	if got := img.NRGBAAt(40, 40); got == ROIColor {
		t.Error("Interior should not be painted")
	}

	// rectangles reaching past the image edge are clipped, not panicking
	p.DrawROIs(img, []image.Rectangle{image.Rect(90, 90, 300, 300)}, false)
	if got := img.NRGBAAt(90, 95); got != ROIColor {
		t.Errorf("Expected clipped border at (90,95), got %v", got)
	}
}

func TestSaveAndLoadImage(t *testing.T) {
	p := NewProcessor(90)
	dir := t.TempDir()
	img := createTestImage(64, 48)

	for _, tc := range []struct {
		name   string
		format string
	}{
		{"crop_1.JPG", "jpg"},
		{"crop_2.png", "png"},
		{"crop_3.webp", "webp"},
	} {
		path := filepath.Join(dir, tc.name)
		if err := p.SaveImage(img, path, tc.format); err != nil {
			t.Fatalf("SaveImage(%s) failed: %v", tc.name, err)
		}
		if tc.format == "webp" {
			if _, err := os.Stat(path); err != nil {
				t.Errorf("webp output missing: %v", err)
			}
			continue
		}
		loaded, err := p.LoadImage(path)
		if err != nil {
			t.Fatalf("LoadImage(%s) failed: %v", tc.name, err)
		}
		if b := loaded.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
			t.Errorf("%s: Expected 64x48, got %dx%d", tc.name, b.Dx(), b.Dy())
		}
	}
}

func TestWriteFileReportsCloseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crop_1.jpg")
	err := writeFile(path, func(w io.Writer) error {
		// closing early makes the final close fail like a failed flush would
		return w.(*os.File).Close()
	})
	if !errors.Is(err, os.ErrClosed) {
		t.Errorf("Expected close error, got %v", err)
	}
}

func TestWriteFileKeepsEncodeError(t *testing.T) {
	boom := errors.New("encode failed")
	err := writeFile(filepath.Join(t.TempDir(), "crop_1.webp"), func(io.Writer) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("Expected encode error, got %v", err)
	}
}

func TestSaveImageMissingDir(t *testing.T) {
	p := NewProcessor(90)
	path := filepath.Join(t.TempDir(), "missing", "crop_1.jpg")
	if err := p.SaveImage(createTestImage(8, 8), path, "jpg"); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestLoadImageRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	if err := os.WriteFile(path, []byte("not a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewProcessor(95).LoadImage(path); err == nil {
		t.Error("Expected decode error")
	}
}

func TestFormatFromExt(t *testing.T) {
	tests := map[string]string{
		".JPG":  "jpg",
		".jpeg": "jpg",
		"png":   "png",
		".WebP": "webp",
		"":      "jpg",
	}
	for ext, want := range tests {
		if got := FormatFromExt(ext); got != want {
			t.Errorf("FormatFromExt(%q) = %s, expected %s", ext, got, want)
		}
	}
}

func TestPrepareImageForModelDownscales(t *testing.T) {
	p := NewProcessor(95)
	b64, sent, err := p.PrepareImageForModel(createTestImage(800, 400), "png", 200, 85)
	if err != nil {
		t.Fatalf("PrepareImageForModel failed: %v", err)
	}
	if sent != image.Pt(200, 100) {
		t.Errorf("Expected sent size 200x100, got %v", sent)
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("invalid base64: %v", err)
	}

	path := filepath.Join(t.TempDir(), "model.png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Errorf("Expected 200x100, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestPrepareImageForModelKeepsSmallImages(t *testing.T) {
	p := NewProcessor(95)
	_, sent, err := p.PrepareImageForModel(createTestImage(120, 80), "jpg", 1536, 85)
	if err != nil {
		t.Fatalf("PrepareImageForModel failed: %v", err)
	}
	if sent != image.Pt(120, 80) {
		t.Errorf("Expected sent size 120x80, got %v", sent)
	}
}

func BenchmarkDrawROIs(b *testing.B) {
	p := NewProcessor(95)
	img := createTestImage(1344, 756)
	rects := []image.Rectangle{image.Rect(10, 10, 400, 300), image.Rect(500, 200, 1200, 700)}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.DrawROIs(img, rects, true)
	}
}
