package gui

import (
	"image"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/menta2k/roi-cropper/pkg/types"
)

var (
	regionStroke = color.NRGBA{R: 255, G: 0, B: 0, A: 255}
	activeStroke = color.NRGBA{R: 0, G: 170, B: 255, A: 255}
)

// regionPicker shows an image and lets the user drag rectangles over it.
// Regions are kept in image pixel coordinates regardless of the widget size.
type regionPicker struct {
	widget.BaseWidget

	img        image.Image
	pixW, pixH int

	mu       sync.Mutex
	regions  []types.Rect
	dragging bool
	start    image.Point
	end      image.Point
}

func newRegionPicker(img image.Image) *regionPicker {
	b := img.Bounds()
	p := &regionPicker{
		img:  img,
		pixW: b.Dx(),
		pixH: b.Dy(),
	}
	p.ExtendBaseWidget(p)
	return p
}

func (p *regionPicker) CreateRenderer() fyne.WidgetRenderer {
	raster := canvas.NewImageFromImage(p.img)
	raster.FillMode = canvas.ImageFillStretch
	raster.ScaleMode = canvas.ImageScalePixels

	active := canvas.NewRectangle(color.Transparent)
	active.StrokeColor = activeStroke
	active.StrokeWidth = 1
	active.Hide()

	r := &pickerRenderer{picker: p, image: raster, active: active}
	r.rebuild()
	return r
}

func (p *regionPicker) MinSize() fyne.Size {
	return fyne.NewSize(float32(p.pixW), float32(p.pixH))
}

// Dragged tracks the rectangle under construction
func (p *regionPicker) Dragged(ev *fyne.DragEvent) {
	p.mu.Lock()
	if !p.dragging {
		p.dragging = true
		p.start = p.toPixels(fyne.NewPos(ev.Position.X-ev.Dragged.DX, ev.Position.Y-ev.Dragged.DY))
	}
	p.end = p.toPixels(ev.Position)
	p.mu.Unlock()
	p.Refresh()
}

// DragEnd commits the dragged rectangle; zero-area drags are dropped
func (p *regionPicker) DragEnd() {
	p.mu.Lock()
	if p.dragging {
		p.dragging = false
		if r := spanRect(p.start, p.end); !r.Empty() {
			p.regions = append(p.regions, r)
		}
	}
	p.mu.Unlock()
	p.Refresh()
}

// Regions returns the committed rectangles in drawing order
func (p *regionPicker) Regions() []types.Rect {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.Rect, len(p.regions))
	copy(out, p.regions)
	return out
}

// Undo drops the last committed rectangle
func (p *regionPicker) Undo() bool {
	p.mu.Lock()
	n := len(p.regions)
	if n > 0 {
		p.regions = p.regions[:n-1]
	}
	p.mu.Unlock()
	if n > 0 {
		p.Refresh()
	}
	return n > 0
}

// toPixels maps a widget position to a pixel inside the image
func (p *regionPicker) toPixels(pos fyne.Position) image.Point {
	size := p.Size()
	if size.Width <= 0 || size.Height <= 0 {
		size = p.MinSize()
	}
	x := int(pos.X * float32(p.pixW) / size.Width)
	y := int(pos.Y * float32(p.pixH) / size.Height)
	return image.Point{X: clamp(x, 0, p.pixW), Y: clamp(y, 0, p.pixH)}
}

func (p *regionPicker) snapshot() ([]types.Rect, *types.Rect) {
	p.mu.Lock()
	defer p.mu.Unlock()
	regions := make([]types.Rect, len(p.regions))
	copy(regions, p.regions)
	if !p.dragging {
		return regions, nil
	}
	r := spanRect(p.start, p.end)
	return regions, &r
}

func spanRect(a, b image.Point) types.Rect {
	r := image.Rectangle{Min: a, Max: b}.Canon()
	return types.Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

type pickerRenderer struct {
	picker  *regionPicker
	image   *canvas.Image
	active  *canvas.Rectangle
	boxes   []*canvas.Rectangle
	objects []fyne.CanvasObject
}

func (r *pickerRenderer) Layout(size fyne.Size) {
	r.image.Move(fyne.NewPos(0, 0))
	r.image.Resize(size)

	regions, active := r.picker.snapshot()
	for i, box := range r.boxes {
		if i < len(regions) {
			r.place(box, regions[i], size)
		}
	}
	if active != nil {
		r.place(r.active, *active, size)
		r.active.Show()
	} else {
		r.active.Hide()
	}
}

func (r *pickerRenderer) place(obj fyne.CanvasObject, rect types.Rect, size fyne.Size) {
	sx := size.Width / float32(r.picker.pixW)
	sy := size.Height / float32(r.picker.pixH)
	obj.Move(fyne.NewPos(float32(rect.X)*sx, float32(rect.Y)*sy))
	obj.Resize(fyne.NewSize(float32(rect.W)*sx, float32(rect.H)*sy))
}

func (r *pickerRenderer) MinSize() fyne.Size {
	return r.picker.MinSize()
}

func (r *pickerRenderer) Refresh() {
	r.rebuild()
	r.Layout(r.picker.Size())
	canvas.Refresh(r.picker)
}

// rebuild keeps one overlay rectangle per committed region
func (r *pickerRenderer) rebuild() {
	regions, _ := r.picker.snapshot()
	for len(r.boxes) < len(regions) {
		box := canvas.NewRectangle(color.Transparent)
		box.StrokeColor = regionStroke
		box.StrokeWidth = 2
		r.boxes = append(r.boxes, box)
	}
	r.boxes = r.boxes[:len(regions)]

	objects := make([]fyne.CanvasObject, 0, len(r.boxes)+2)
	objects = append(objects, r.image)
	for _, box := range r.boxes {
		objects = append(objects, box)
	}
	r.objects = append(objects, r.active)
}

func (r *pickerRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *pickerRenderer) Destroy() {}
