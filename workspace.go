package ggpaint

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/gogpu/ggpaint/gpucore"
	"github.com/gogpu/ggpaint/internal/cache"
)

// Workspace is an ordered stack of raster layers composited on a
// [gpucore.Device]. Index 0 is the bottom of the stack.
//
// A Workspace is not safe for concurrent use. It does not own its device:
// Close releases the workspace's textures and leaves the device open.
type Workspace struct {
	dev    gpucore.Device
	width  int
	height int
	view   View

	layers []*layer
	// clean is the lowest index whose running total may be stale.
	// Running totals of layers [0, clean) are consistent.
	clean int

	blank   gpucore.TextureID
	output  gpucore.TextureID
	scratch gpucore.TextureID

	pipelines map[string]gpucore.PipelineID

	selected uint64 // uid of the selected layer, 0 for none
	nextUID  uint64
	tool     Tool
	thumbs   *cache.Cache[thumbKey, *image.NRGBA]
	closed   bool
	log      *slog.Logger
}

// New creates an empty workspace of the given size on dev.
func New(dev gpucore.Device, width, height int, opts ...Option) (*Workspace, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	l := Logger()
	propagateLogger(dev, l)

	w := &Workspace{
		dev:       dev,
		width:     width,
		height:    height,
		view:      DefaultView(width, height),
		pipelines: make(map[string]gpucore.PipelineID),
		tool:      SelectTool{},
		thumbs:    cache.New[thumbKey, *image.NRGBA](o.thumbLimit),
		log:       l,
	}
	if o.view != nil {
		w.view = *o.view
	}
	if o.tool != nil {
		w.tool = o.tool
	}

	var err error
	if w.blank, err = w.newTexture("blank", gpucore.TextureFormatRGBA8Unorm); err != nil {
		return nil, err
	}
	if w.output, err = w.newTexture("output", gpucore.TextureFormatRGBA8Unorm); err != nil {
		w.Close()
		return nil, err
	}
	if w.scratch, err = w.newTexture("merge scratch", gpucore.TextureFormatRGBA8Unorm); err != nil {
		w.Close()
		return nil, err
	}
	w.log.Debug("ggpaint: workspace created", "width", width, "height", height, "device", dev.Name())
	return w, nil
}

func (w *Workspace) newTexture(label string, f gpucore.TextureFormat) (gpucore.TextureID, error) {
	id, err := w.dev.CreateTexture(gpucore.TextureDescriptor{
		Label: label, Width: w.width, Height: w.height, Format: f,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("ggpaint: create %s texture: %w", label, err)
	}
	return id, nil
}

// Close releases every texture owned by the workspace. It does not
// destroy the device. Close is safe to call multiple times.
func (w *Workspace) Close() {
	if w.closed {
		return
	}
	if c, ok := w.tool.(Canceler); ok {
		c.Cancel(w)
	}
	w.closed = true
	for _, l := range w.layers {
		w.destroyLayer(l)
	}
	w.layers = nil
	for _, id := range []gpucore.TextureID{w.blank, w.output, w.scratch} {
		if id != gpucore.InvalidID {
			w.dev.DestroyTexture(id)
		}
	}
	w.thumbs.Clear()
}

// Device returns the device the workspace composites on.
func (w *Workspace) Device() gpucore.Device { return w.dev }

// Width returns the canvas width in pixels.
func (w *Workspace) Width() int { return w.width }

// Height returns the canvas height in pixels.
func (w *Workspace) Height() int { return w.height }

// Bounds returns the canvas rectangle.
func (w *Workspace) Bounds() image.Rectangle { return image.Rect(0, 0, w.width, w.height) }

// View returns the presentation state.
func (w *Workspace) View() View { return w.view }

// SetView replaces the presentation state. It does not affect compositing.
func (w *Workspace) SetView(v View) { w.view = v }

// Output returns the texture holding the composite of all visible layers.
func (w *Workspace) Output() gpucore.TextureID { return w.output }

// Len returns the number of layers.
func (w *Workspace) Len() int { return len(w.layers) }

// Info returns a copy of the description of layer i.
func (w *Workspace) Info(i int) LayerInfo {
	return w.at(i).info
}

// Layers returns the layer descriptions in stack order.
func (w *Workspace) Layers() []LayerInfo {
	infos := make([]LayerInfo, len(w.layers))
	for i, l := range w.layers {
		infos[i] = l.info
	}
	return infos
}

// UserLayers returns the descriptions of layers that are not tool
// scratch layers, in stack order.
func (w *Workspace) UserLayers() []LayerInfo {
	infos := make([]LayerInfo, 0, len(w.layers))
	for _, l := range w.layers {
		if !l.info.ToolScratch {
			infos = append(infos, l.info)
		}
	}
	return infos
}

// MutableInfo returns the description of layer i for in-place edits.
// The caller must call [Workspace.Invalidate] or [Workspace.Recompute]
// with i after changing compositing fields.
func (w *Workspace) MutableInfo(i int) *LayerInfo {
	return &w.at(i).info
}

// ColorTexture returns the color texture of layer i.
func (w *Workspace) ColorTexture(i int) gpucore.TextureID { return w.at(i).color }

// MaskTexture returns the mask texture of layer i.
func (w *Workspace) MaskTexture(i int) gpucore.TextureID { return w.at(i).mask }

// RunningTotal returns the running total texture of layer i.
func (w *Workspace) RunningTotal(i int) gpucore.TextureID { return w.at(i).total }

// Selected returns the index of the layer tools act on, or -1 when the
// stack is empty.
func (w *Workspace) Selected() int {
	if i := w.indexOf(w.selected); i >= 0 {
		return i
	}
	return -1
}

// SetSelected selects layer i.
func (w *Workspace) SetSelected(i int) {
	w.selected = w.at(i).uid
}

// at returns layer i; out-of-range indices are caller errors.
func (w *Workspace) at(i int) *layer {
	if i < 0 || i >= len(w.layers) {
		panic(fmt.Sprintf("ggpaint: layer index %d out of range [0,%d)", i, len(w.layers)))
	}
	return w.layers[i]
}

func (w *Workspace) indexOf(uid uint64) int {
	if uid == 0 {
		return -1
	}
	for i, l := range w.layers {
		if l.uid == uid {
			return i
		}
	}
	return -1
}
