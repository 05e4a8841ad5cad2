package display

import (
	"image"
	"math"
	"testing"

	"github.com/menta2k/roi-cropper/pkg/types"
)

func TestScaleFormula(t *testing.T) {
	// taller than the screen
	if got, want := Scale(4000, 1080, 0.7), 1080.0/4000.0*0.7; got != want {
		t.Errorf("Scale(4000, 1080) = %f, expected %f", got, want)
	}
	// shorter than or equal to the screen
	if got := Scale(800, 1080, 0.7); got != 0.7 {
		t.Errorf("Scale(800, 1080) = %f, expected 0.7", got)
	}
	if got := Scale(1080, 1080, 0.7); got != 0.7 {
		t.Errorf("Scale(1080, 1080) = %f, expected 0.7", got)
	}
}

func TestSize(t *testing.T) {
	w, h := Size(1001, 501, 0.5)
	if w != 500 || h != 250 {
		t.Errorf("Size = %dx%d, expected 500x250", w, h)
	}
}

func TestToImageIdentityScale(t *testing.T) {
	roi := ToImage(types.Rect{X: 10, Y: 10, W: 100, H: 100}, 1.0)
	if roi != (types.ROI{X0: 10, Y0: 10, X1: 110, Y1: 110}) {
		t.Errorf("unexpected roi %v", roi)
	}
}

func TestCoordinateRoundTrip(t *testing.T) {
	scales := []float64{0.7, 0.25, 1080.0 / 4000.0 * 0.7, 0.333, 1.0}
	rects := []types.Rect{
		{X: 0, Y: 0, W: 1, H: 1},
		{X: 7, Y: 13, W: 100, H: 55},
		{X: 123, Y: 456, W: 321, H: 99},
		{X: 999, Y: 1, W: 3, H: 700},
	}

	within := func(a, b int) bool { return math.Abs(float64(a-b)) <= 1 }

	for _, s := range scales {
		for _, r := range rects {
			back := ToDisplay(ToImage(r, s), s)
			want := image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
			if !within(back.Min.X, want.Min.X) || !within(back.Min.Y, want.Min.Y) ||
				!within(back.Max.X, want.Max.X) || !within(back.Max.Y, want.Max.Y) {
				t.Errorf("scale %f: %v round-tripped to %v", s, want, back)
			}
		}
	}
}

func TestWindowOrigin(t *testing.T) {
	screen := Screen{Width: 1920, Height: 1080}

	if p := WindowOrigin(screen, 920, 680); p != (image.Point{X: 500, Y: 100}) {
		t.Errorf("WindowOrigin = %v", p)
	}
	if p := WindowOrigin(screen, 2500, 1500); p != (image.Point{}) {
		t.Errorf("oversized window should clamp to 0,0, got %v", p)
	}
}

func TestParseScreen(t *testing.T) {
	s, err := ParseScreen("2560x1440")
	if err != nil || s != (Screen{Width: 2560, Height: 1440}) {
		t.Errorf("ParseScreen = %v, %v", s, err)
	}

	for _, bad := range []string{"", "1920", "0x1080", "axb", "1920x1080x2"} {
		if _, err := ParseScreen(bad); err == nil {
			t.Errorf("ParseScreen(%q) should fail", bad)
		}
	}
}

func BenchmarkRoundTrip(b *testing.B) {
	r := types.Rect{X: 123, Y: 45, W: 678, H: 901}
	for i := 0; i < b.N; i++ {
		ToDisplay(ToImage(r, 0.37), 0.37)
	}
}
