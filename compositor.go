package ggpaint

import (
	"fmt"

	"github.com/gogpu/ggpaint/gpucore"
	"github.com/gogpu/ggpaint/internal/blend"
)

// RegisterBlendMode adds a blend mode under name. mix is applied per RGB
// channel to base and layer color in [0, 1] by the software device; wgsl
// is the body of
//
//	fn blend_rgb(b: vec3<f32>, s: vec3<f32>) -> vec3<f32>
//
// used by GPU devices. Built-in modes cannot be replaced.
func RegisterBlendMode(name string, mix func(base, src float64) float64, wgsl string) error {
	return blend.Register(blend.Entry{Name: name, Mix: mix, WGSL: wgsl})
}

// BlendModes returns the names of every registered blend mode.
func BlendModes() []string { return blend.Names() }

// Recompute rebuilds the running totals of layers start and above, then
// refreshes the output texture. Totals below start are reused as they
// are, so start must not exceed the lowest layer that changed.
//
// start must index a layer. On an empty stack only 0 is valid and the
// output becomes transparent.
func (w *Workspace) Recompute(start int) {
	if start < 0 || (start >= len(w.layers) && (start != 0 || len(w.layers) != 0)) {
		panic(fmt.Sprintf("ggpaint: recompute start %d out of range [0,%d)", start, len(w.layers)))
	}
	w.refresh(start)
}

// Invalidate marks the running totals of layer i and above as stale
// without recomputing. [Workspace.Flush] rebuilds them.
func (w *Workspace) Invalidate(i int) {
	if i < 0 || i > len(w.layers) {
		panic(fmt.Sprintf("ggpaint: invalidate index %d out of range [0,%d]", i, len(w.layers)))
	}
	w.invalidate(i)
}

// Flush recomputes every running total marked stale since the last
// recompute. It does nothing when the stack is consistent.
func (w *Workspace) Flush() {
	if w.clean < len(w.layers) {
		w.refresh(w.clean)
	}
}

// Stale reports whether any running total is waiting for a recompute.
func (w *Workspace) Stale() bool { return w.clean < len(w.layers) }

func (w *Workspace) invalidate(i int) {
	w.clean = min(w.clean, i)
}

// refresh rebuilds running totals from start, or from the lowest stale
// layer if that is lower, and copies the topmost visible total to the
// output. A hidden layer's total is left untouched: it is never read.
func (w *Workspace) refresh(start int) {
	if w.closed {
		return
	}
	start = min(max(start, 0), w.clean, len(w.layers))

	enc := w.dev.CreateCommandEncoder("composite")
	below := w.baseFor(start)
	for _, l := range w.layers[start:] {
		if !l.info.Visible {
			continue
		}
		w.encodeBlend(enc, l.info, below, l.color, l.mask, l.total)
		below = l.total
	}
	enc.CopyTexture(below, w.output)
	w.dev.Submit(enc.Finish())

	w.clean = len(w.layers)
	w.thumbs.DeleteFunc(func(k thumbKey) bool { return k.output })
	w.log.Debug("ggpaint: recomputed", "start", start, "layers", len(w.layers))
}

// baseFor returns the texture layer i composites onto: the running total
// of the nearest visible layer below i, or the blank texture.
func (w *Workspace) baseFor(i int) gpucore.TextureID {
	for j := i - 1; j >= 0; j-- {
		if w.layers[j].info.Visible {
			return w.layers[j].total
		}
	}
	return w.blank
}

// encodeBlend records one blend of color through mask onto base, written
// to out.
func (w *Workspace) encodeBlend(enc gpucore.CommandEncoder, info LayerInfo, base, color, mask, out gpucore.TextureID) {
	textures := make([]gpucore.TextureID, gpucore.BlendBindingCount)
	textures[gpucore.BlendBindingBase] = base
	textures[gpucore.BlendBindingColor] = color
	textures[gpucore.BlendBindingMask] = mask
	textures[gpucore.BlendBindingOut] = out

	params := gpucore.BlendParams{
		Width:   uint32(w.width),  //nolint:gosec // validated positive in New
		Height:  uint32(w.height), //nolint:gosec // validated positive in New
		Opacity: info.Opacity,
	}
	enc.Dispatch(w.pipeline(info.BlendMode),
		gpucore.Bindings{Textures: textures, Params: params.Bytes()},
		gpucore.WorkgroupCount(w.width), gpucore.WorkgroupCount(w.height), 1)
}

// pipeline returns the blend pipeline for mode. Layer descriptions are
// validated on every write, so a device that cannot build the pipeline
// for a registered mode is broken and pipeline panics.
func (w *Workspace) pipeline(mode string) gpucore.PipelineID {
	program := gpucore.BlendProgram(mode)
	if id, ok := w.pipelines[program]; ok {
		return id
	}
	id, err := w.dev.CreatePipeline(program)
	if err != nil {
		panic(fmt.Sprintf("ggpaint: blend pipeline %q: %v", mode, err))
	}
	w.pipelines[program] = id
	return id
}

// program returns a non-blend pipeline, creating it on first use.
func (w *Workspace) program(name string) (gpucore.PipelineID, error) {
	if id, ok := w.pipelines[name]; ok {
		return id, nil
	}
	id, err := w.dev.CreatePipeline(name)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("ggpaint: pipeline %q: %w", name, err)
	}
	w.pipelines[name] = id
	return id, nil
}
