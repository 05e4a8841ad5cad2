package roicropper

import (
	"context"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/menta2k/roi-cropper/internal/config"
	"github.com/menta2k/roi-cropper/pkg/contour"
	"github.com/menta2k/roi-cropper/pkg/detection"
	"github.com/menta2k/roi-cropper/pkg/roistore"
	"github.com/menta2k/roi-cropper/pkg/selector"
	"github.com/menta2k/roi-cropper/pkg/session"
	"github.com/menta2k/roi-cropper/pkg/types"
)

// createTestImage writes a flat grey JPEG
func createTestImage(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{64, 64, 64, 255})
		}
	}
	if err := imaging.Save(img, path); err != nil {
		t.Fatal(err)
	}
}

type staticFinder []image.Rectangle

func (f staticFinder) Find(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	return append([]image.Rectangle(nil), f...), nil
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Errorf("GetVersion() = %s, expected %s", GetVersion(), Version)
	}
}

func TestResolveScreenUsesConfig(t *testing.T) {
	s, err := ResolveScreen(config.CropperConfig{ScreenWidth: 1280, ScreenHeight: 720})
	if err != nil {
		t.Fatal(err)
	}
	if s.Width != 1280 || s.Height != 720 {
		t.Errorf("unexpected screen %v", s)
	}
}

func TestCropDirectory(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	createTestImage(t, filepath.Join(in, "page.jpg"), 400, 300)

	cfg := config.Default()
	cfg.Cropper.ScreenWidth, cfg.Cropper.ScreenHeight = 1920, 1080
	cfg.Cropper.DisplayRatio = 1.0

	sel := selector.NewScripted(map[string][]types.Rect{
		"page.jpg": {{X: 10, Y: 10, W: 100, H: 100}},
	})
	sum, err := CropDirectory(context.Background(), cfg, sel, nil, in, out)
	if err != nil {
		t.Fatalf("CropDirectory failed: %v", err)
	}
	if sum.CropsSaved != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}

	rois, _ := roistore.Load(out, "page.jpg")
	if len(rois) != 1 || rois[0] != (types.ROI{X0: 10, Y0: 10, X1: 110, Y1: 110}) {
		t.Errorf("unexpected rois %v", rois)
	}
}

func TestCropDirectoryInvalidDirs(t *testing.T) {
	_, err := CropDirectory(context.Background(), config.Default(), selector.NewScripted(nil), nil, "", "")
	if !errors.Is(err, session.ErrInvalidDir) {
		t.Errorf("expected ErrInvalidDir, got %v", err)
	}
}

func TestExtractDirectory(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "extracts")
	createTestImage(t, filepath.Join(in, "scan.jpg"), 500, 500)

	finder := staticFinder{image.Rect(250, 250, 480, 480), image.Rect(10, 10, 200, 200)}
	sum, err := ExtractDirectory(context.Background(), config.Default(), finder, nil, in, out)
	if err != nil {
		t.Fatalf("ExtractDirectory failed: %v", err)
	}
	if sum.Written != 2 {
		t.Errorf("unexpected summary %+v", sum)
	}
	img, err := imaging.Open(filepath.Join(out, "scan_1.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 190 {
		t.Errorf("first photo should be the top-left one, got width %d", b.Dx())
	}
	if _, err := os.Stat(filepath.Join(out, "scan_2.jpg")); err != nil {
		t.Error(err)
	}
}

func TestNewFinder(t *testing.T) {
	cfg := config.Default()
	f, err := NewFinder(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := f.(*contour.Finder); !ok {
		t.Errorf("default backend should be contour, got %T", f)
	}

	for _, backend := range []string{config.BackendOllama, config.BackendLlamaCpp} {
		cfg.Extractor.Backend = backend
		f, err := NewFinder(cfg, nil)
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if _, ok := f.(*detection.Detector); !ok {
			t.Errorf("%s: expected detector, got %T", backend, f)
		}
	}

	cfg.Extractor.Backend = "tesseract"
	if _, err := NewFinder(cfg, nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestCheckVision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"a grey square"}}]}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "page.jpg")
	createTestImage(t, path, 64, 64)

	cfg := config.Default()
	cfg.Extractor.Backend = config.BackendLlamaCpp
	cfg.Vision.URL = srv.URL
	finder, err := NewFinder(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	text, err := CheckVision(context.Background(), finder, path)
	if err != nil {
		t.Fatalf("CheckVision failed: %v", err)
	}
	if !strings.Contains(text, "grey") {
		t.Errorf("unexpected answer %q", text)
	}

	if _, err := CheckVision(context.Background(), staticFinder{}, path); !errors.Is(err, ErrNotVision) {
		t.Errorf("expected ErrNotVision, got %v", err)
	}
}
