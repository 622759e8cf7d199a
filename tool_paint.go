package ggpaint

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"

	"github.com/gogpu/ggpaint/gpucore"
)

// ErrInvalidBrush is returned when a stroke starts with a non-positive
// radius or spacing.
var ErrInvalidBrush = errors.New("ggpaint: invalid brush")

// PaintLayerName is the name of layers created by [PaintTool].
const PaintLayerName = "Paint Layer"

// PaintTool paints soft elliptical dabs into a scratch layer above the
// selected layer and merges the scratch layer down when the stroke ends.
//
// A stroke fills the scratch layer with Color and accumulates dab coverage
// in its mask, so overlapping dabs never exceed Flow. The scratch layer
// composites with Opacity and BlendMode while the stroke is in progress and
// merges with the same parameters.
type PaintTool struct {
	Color color.NRGBA
	// Radius is the major semi-axis of a dab in pixels.
	Radius float64
	// Hardness is the normalized distance from the center where falloff
	// starts, in [0, 1].
	Hardness float64
	// Rotation of the major axis in radians.
	Rotation float64
	// Aspect is the minor to major axis ratio.
	Aspect float64
	// Flow is the peak coverage of one dab.
	Flow float64
	// Spacing is the distance between dabs as a fraction of Radius.
	Spacing   float64
	Opacity   float32
	BlendMode string

	active  bool
	scratch uint64 // uid of the scratch layer
	last    vec.Vec2
	since   float64 // path length since the last dab
}

// NewPaintTool returns an opaque black round brush.
func NewPaintTool() *PaintTool {
	return &PaintTool{
		Color:     color.NRGBA{A: 255},
		Radius:    8,
		Hardness:  0.5,
		Aspect:    1,
		Flow:      1,
		Spacing:   0.25,
		Opacity:   1,
		BlendMode: DefaultBlendMode,
	}
}

// Name implements Tool.
func (*PaintTool) Name() string { return "paint" }

// Active reports whether a stroke is in progress.
func (p *PaintTool) Active() bool { return p.active }

// Handle implements Tool.
func (p *PaintTool) Handle(w *Workspace, ev Event) (Mutation, error) {
	switch ev.Kind {
	case PointerDown:
		return p.begin(w, ev.Pos)
	case PointerMove:
		return p.move(w, ev.Pos)
	case PointerUp:
		m, err := p.move(w, ev.Pos)
		if err != nil {
			return m, err
		}
		return m.merge(p.commit(w)), nil
	default:
		return Mutation{}, nil
	}
}

// Cancel implements Canceler. The scratch layer is removed without
// touching the layer beneath.
func (p *PaintTool) Cancel(w *Workspace) Mutation {
	if !p.active {
		return Mutation{}
	}
	p.active = false
	i := w.indexOf(p.scratch)
	if i < 0 {
		return Mutation{}
	}
	w.removeLayer(i)
	return Mutation{Dirty: true, From: i}
}

func (p *PaintTool) begin(w *Workspace, pos vec.Vec2) (Mutation, error) {
	var m Mutation
	if p.active {
		m = p.commit(w)
	}
	if p.Radius <= 0 || p.Spacing <= 0 {
		return m, fmt.Errorf("%w: radius %g, spacing %g", ErrInvalidBrush, p.Radius, p.Spacing)
	}

	info := NewLayerInfo(PaintLayerName)
	info.Opacity = p.Opacity
	info.BlendMode = p.BlendMode
	info.ToolScratch = true
	fill := p.Color
	var zero uint8
	at := w.Selected() + 1
	if err := w.insertLayer(at, LayerSpec{Info: info, Fill: &fill, MaskFill: &zero}); err != nil {
		return m, err
	}
	m = m.merge(Mutation{Dirty: true, From: at})

	p.active = true
	p.scratch = w.layers[at].uid
	p.last = pos
	p.since = 0
	if err := p.stamp(w, at, pos); err != nil {
		return m.merge(p.Cancel(w)), err
	}
	return m, nil
}

// move stamps dabs every Spacing*Radius pixels along the segment from the
// previous position to pos. Path length left over after the last dab is
// carried into the next segment.
func (p *PaintTool) move(w *Workspace, pos vec.Vec2) (Mutation, error) {
	if !p.active {
		return Mutation{}, nil
	}
	i := w.indexOf(p.scratch)
	if i < 0 {
		p.active = false
		return Mutation{}, nil
	}

	seg := pos.Sub(p.last)
	dist := seg.Length()
	if dist == 0 {
		return Mutation{}, nil
	}
	step := max(1, p.Spacing*p.Radius)
	d := step - p.since
	var m Mutation
	for ; d <= dist; d += step {
		if err := p.stamp(w, i, p.last.Add(seg.Mul(d/dist))); err != nil {
			return m, err
		}
		m = Mutation{Dirty: true, From: i}
	}
	p.since = dist - (d - step)
	p.last = pos
	return m, nil
}

// commit ends the stroke: the scratch layer merges into the layer beneath,
// or becomes a regular layer at the bottom of the stack.
func (p *PaintTool) commit(w *Workspace) Mutation {
	p.active = false
	i := w.indexOf(p.scratch)
	switch {
	case i < 0:
		return Mutation{}
	case i == 0:
		w.layers[0].info.ToolScratch = false
		return Mutation{}
	default:
		w.mergeDown(i)
		return Mutation{Dirty: true, From: i - 1}
	}
}

// stampBox returns the pixel box a dab at c can touch, clipped to the
// canvas.
func (p *PaintTool) stampBox(w *Workspace, c vec.Vec2) (x0, y0, x1, y1 int) {
	aspect := p.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	ext := p.Radius * max(1, aspect)
	box := rect.Rect{LLx: c.X - ext, LLy: c.Y - ext, URx: c.X + ext, URy: c.Y + ext}
	x0 = max(0, int(math.Floor(box.LLx)))
	y0 = max(0, int(math.Floor(box.LLy)))
	x1 = min(w.width, int(math.Ceil(box.URx)))
	y1 = min(w.height, int(math.Ceil(box.URy)))
	return x0, y0, x1, y1
}

func (p *PaintTool) stamp(w *Workspace, i int, c vec.Vec2) error {
	x0, y0, x1, y1 := p.stampBox(w, c)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}
	pipe, err := w.program(gpucore.BrushProgram)
	if err != nil {
		return err
	}
	params := gpucore.BrushParams{
		Width:    uint32(w.width),  //nolint:gosec // validated positive in New
		Height:   uint32(w.height), //nolint:gosec // validated positive in New
		OriginX:  uint32(x0),       //nolint:gosec // clipped to the canvas
		OriginY:  uint32(y0),       //nolint:gosec // clipped to the canvas
		CenterX:  float32(c.X),
		CenterY:  float32(c.Y),
		Radius:   float32(p.Radius),
		Hardness: float32(p.Hardness),
		Rotation: float32(p.Rotation),
		Aspect:   float32(p.Aspect),
		Flow:     float32(p.Flow),
	}
	enc := w.dev.CreateCommandEncoder("brush stamp")
	enc.Dispatch(pipe,
		gpucore.Bindings{Textures: []gpucore.TextureID{w.layers[i].mask}, Params: params.Bytes()},
		gpucore.WorkgroupCount(x1-x0), gpucore.WorkgroupCount(y1-y0), 1)
	w.dev.Submit(enc.Finish())
	return nil
}
