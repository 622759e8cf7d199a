package ggpaint

import (
	"fmt"
	"slices"

	"github.com/gogpu/ggpaint/gpucore"
)

// CreateLayer appends a layer to the top of the stack and returns its
// index. The composite is recomputed from the new layer.
//
// Conflicting sources in spec or pixel buffers of the wrong size panic.
// Device allocation failures and unknown blend modes are returned as
// errors and leave the stack unchanged.
func (w *Workspace) CreateLayer(spec LayerSpec) (int, error) {
	return w.InsertLayer(len(w.layers), spec)
}

// InsertLayer inserts a layer at index, shifting the layers at and above
// index up by one. index may equal Len to append.
func (w *Workspace) InsertLayer(index int, spec LayerSpec) (int, error) {
	if err := w.insertLayer(index, spec); err != nil {
		return -1, err
	}
	w.refresh(index)
	return index, nil
}

// insertLayer adds a layer and marks the stack stale from index without
// recomputing.
func (w *Workspace) insertLayer(index int, spec LayerSpec) error {
	if w.closed {
		return ErrClosed
	}
	if index < 0 || index > len(w.layers) {
		panic(fmt.Sprintf("ggpaint: insert index %d out of range [0,%d]", index, len(w.layers)))
	}
	info, err := spec.Info.normalize()
	if err != nil {
		return err
	}
	color := spec.colorPixels(w.width, w.height)
	mask := spec.maskPixels(w.width, w.height)

	l, err := w.allocLayer(info)
	if err != nil {
		return err
	}
	w.dev.WriteTexture(l.color, color)
	w.dev.WriteTexture(l.mask, mask)

	w.layers = slices.Insert(w.layers, index, l)
	if w.selected == 0 {
		w.selected = l.uid
	}
	w.invalidate(index)
	w.log.Debug("ggpaint: layer inserted", "index", index, "name", info.Name, "blend", info.BlendMode)
	return nil
}

// allocLayer creates the three textures of a layer. On failure nothing
// stays allocated.
func (w *Workspace) allocLayer(info LayerInfo) (*layer, error) {
	w.nextUID++
	l := &layer{uid: w.nextUID, gen: 1, info: info}

	var err error
	if l.color, err = w.newTexture("layer color", gpucore.TextureFormatRGBA8Unorm); err != nil {
		return nil, err
	}
	if l.mask, err = w.newTexture("layer mask", gpucore.TextureFormatR8Unorm); err != nil {
		w.destroyLayer(l)
		return nil, err
	}
	if l.total, err = w.newTexture("running total", gpucore.TextureFormatRGBA8Unorm); err != nil {
		w.destroyLayer(l)
		return nil, err
	}
	return l, nil
}

func (w *Workspace) destroyLayer(l *layer) {
	for _, id := range []gpucore.TextureID{l.color, l.mask, l.total} {
		if id != gpucore.InvalidID {
			w.dev.DestroyTexture(id)
		}
	}
	uid := l.uid
	w.thumbs.DeleteFunc(func(k thumbKey) bool { return k.uid == uid })
}

// MoveLayer moves the layer at from to index to, preserving the relative
// order of the other layers.
func (w *Workspace) MoveLayer(from, to int) {
	l := w.at(from)
	w.at(to)
	if from == to {
		return
	}
	w.layers = slices.Delete(w.layers, from, from+1)
	w.layers = slices.Insert(w.layers, to, l)
	w.refresh(min(from, to))
}

// RemoveLayer removes layer i and releases its textures.
func (w *Workspace) RemoveLayer(i int) {
	w.removeLayer(i)
	w.refresh(i)
}

func (w *Workspace) removeLayer(i int) {
	l := w.at(i)
	w.layers = slices.Delete(w.layers, i, i+1)
	w.destroyLayer(l)
	if w.selected == l.uid {
		w.selected = 0
		if len(w.layers) > 0 {
			w.selected = w.layers[max(i-1, 0)].uid
		}
	}
	w.invalidate(i)
	w.log.Debug("ggpaint: layer removed", "index", i, "name", l.info.Name)
}

// MergeDown blends layer i into layer i-1 with layer i's blend mode,
// opacity and mask, then removes layer i. A hidden layer is removed
// without changing the layer below.
func (w *Workspace) MergeDown(i int) {
	w.mergeDown(i)
	w.refresh(i - 1)
}

func (w *Workspace) mergeDown(i int) {
	if i < 1 || i >= len(w.layers) {
		panic(fmt.Sprintf("ggpaint: merge index %d out of range [1,%d)", i, len(w.layers)))
	}
	top, below := w.layers[i], w.layers[i-1]
	if top.info.Visible {
		enc := w.dev.CreateCommandEncoder("merge down")
		w.encodeBlend(enc, top.info, below.color, top.color, top.mask, w.scratch)
		enc.CopyTexture(w.scratch, below.color)
		w.dev.Submit(enc.Finish())
		below.gen++
	}
	selected := w.selected == top.uid
	w.removeLayer(i)
	if selected {
		w.selected = below.uid
	}
	w.invalidate(i - 1)
}

// Update applies fn to a copy of layer i's description and stores the
// result. The composite is recomputed when a compositing field changed.
// If the result names an unknown blend mode, the layer is left unchanged.
func (w *Workspace) Update(i int, fn func(*LayerInfo)) error {
	l := w.at(i)
	next := l.info
	fn(&next)
	next, err := next.normalize()
	if err != nil {
		return err
	}
	prev := l.info
	l.info = next
	if affectsComposite(prev, next) {
		w.refresh(i)
	}
	return nil
}

// SetVisible shows or hides layer i.
func (w *Workspace) SetVisible(i int, visible bool) {
	_ = w.Update(i, func(info *LayerInfo) { info.Visible = visible })
}

// SetOpacity sets the opacity of layer i, clamped to [0, 1]. A NaN
// opacity leaves the layer unchanged.
func (w *Workspace) SetOpacity(i int, opacity float32) {
	_ = w.Update(i, func(info *LayerInfo) { info.Opacity = opacity })
}

// SetBlendMode sets the blend mode of layer i.
func (w *Workspace) SetBlendMode(i int, mode string) error {
	return w.Update(i, func(info *LayerInfo) { info.BlendMode = mode })
}

// WritePixels replaces the color of layer i with straight-alpha RGBA8
// data of exactly width*height*4 bytes.
func (w *Workspace) WritePixels(i int, pix []byte) {
	l := w.at(i)
	if len(pix) != w.width*w.height*4 {
		panic(fmt.Sprintf("ggpaint: layer pixels are %d bytes, want %d", len(pix), w.width*w.height*4))
	}
	w.dev.WriteTexture(l.color, pix)
	l.gen++
	w.refresh(i)
}

// WriteMask replaces the mask of layer i with width*height bytes.
func (w *Workspace) WriteMask(i int, mask []byte) {
	l := w.at(i)
	if len(mask) != w.width*w.height {
		panic(fmt.Sprintf("ggpaint: layer mask is %d bytes, want %d", len(mask), w.width*w.height))
	}
	w.dev.WriteTexture(l.mask, mask)
	w.refresh(i)
}
