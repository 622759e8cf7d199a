package ggpaint

import (
	"fmt"
	"math"

	"github.com/gogpu/ggpaint/gpucore"
	"github.com/gogpu/ggpaint/internal/filter"
)

// MaxBlurRadius is the largest accepted [GaussianBlur] radius.
const MaxBlurRadius = filter.MaxRadius

// Filter is an image operation on a layer's color, run on the device.
type Filter interface {
	// Name identifies the filter in logs and command labels.
	Name() string

	// encode records the filter of color into enc, using tmp as a
	// same-sized intermediate. It reports false when the filter is the
	// identity and nothing was recorded.
	encode(w *Workspace, enc gpucore.CommandEncoder, color, tmp gpucore.TextureID) (bool, error)
}

// GaussianBlur blurs with a Gaussian of standard deviation Radius pixels.
// Color is weighted by alpha, so transparent pixels do not darken or tint
// their neighbors. A zero radius leaves the layer unchanged.
type GaussianBlur struct {
	Radius float64
}

// Name returns "gaussian".
func (GaussianBlur) Name() string { return "gaussian" }

func (g GaussianBlur) encode(w *Workspace, enc gpucore.CommandEncoder, color, tmp gpucore.TextureID) (bool, error) {
	if math.IsNaN(g.Radius) || g.Radius < 0 || g.Radius > MaxBlurRadius {
		return false, fmt.Errorf("%w: gaussian radius %v not in [0,%d]", ErrInvalidFilter, g.Radius, MaxBlurRadius)
	}
	if g.Radius == 0 {
		return false, nil
	}
	pipe, err := w.program(gpucore.GaussianProgram)
	if err != nil {
		return false, err
	}
	pass := func(src, dst gpucore.TextureID, vertical bool) {
		p := gpucore.GaussianParams{
			Width:    uint32(w.width),  //nolint:gosec // validated positive in New
			Height:   uint32(w.height), //nolint:gosec // validated positive in New
			Radius:   float32(g.Radius),
			Vertical: vertical,
		}
		textures := make([]gpucore.TextureID, gpucore.FilterBindingCount)
		textures[gpucore.FilterBindingSrc] = src
		textures[gpucore.FilterBindingDst] = dst
		enc.Dispatch(pipe, gpucore.Bindings{Textures: textures, Params: p.Bytes()},
			gpucore.WorkgroupCount(w.width), gpucore.WorkgroupCount(w.height), 1)
	}
	pass(color, tmp, false)
	pass(tmp, color, true)
	return true, nil
}

// ApplyFilter runs f over the color of layer i and recomputes from i. The
// mask and the layer description are left as they are.
func (w *Workspace) ApplyFilter(i int, f Filter) error {
	if w.closed {
		return ErrClosed
	}
	l := w.at(i)
	enc := w.dev.CreateCommandEncoder("filter " + f.Name())
	ok, err := f.encode(w, enc, l.color, w.scratch)
	if err != nil || !ok {
		return err
	}
	w.dev.Submit(enc.Finish())
	l.gen++
	w.refresh(i)
	w.log.Debug("ggpaint: filter applied", "filter", f.Name(), "layer", i)
	return nil
}
