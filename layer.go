package ggpaint

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/ggpaint/gpucore"
	"github.com/gogpu/ggpaint/internal/blend"
	imageio "github.com/gogpu/ggpaint/internal/image"
)

// DefaultBlendMode is the blend mode of layers that do not name one.
const DefaultBlendMode = "normal"

// LayerInfo is the persisted description of a layer.
type LayerInfo struct {
	Name      string  `toml:"name"`
	Visible   bool    `toml:"visible"`
	Opacity   float32 `toml:"opacity"`
	BlendMode string  `toml:"blend_mode"`

	// ToolScratch marks a layer a tool is drawing into. It composites
	// like any other layer and is not persisted.
	ToolScratch bool `toml:"-"`
}

// NewLayerInfo returns a visible, fully opaque, normal layer description.
func NewLayerInfo(name string) LayerInfo {
	return LayerInfo{Name: name, Visible: true, Opacity: 1, BlendMode: DefaultBlendMode}
}

// normalize returns info with an NFC name, a clamped opacity and a
// resolved blend mode. A NaN opacity has no clamped value and is an error.
func (info LayerInfo) normalize() (LayerInfo, error) {
	info.Name = norm.NFC.String(info.Name)
	if math.IsNaN(float64(info.Opacity)) {
		return info, ErrInvalidOpacity
	}
	info.Opacity = min(max(info.Opacity, 0), 1)
	if info.BlendMode == "" {
		info.BlendMode = DefaultBlendMode
	}
	if _, ok := blend.Lookup(info.BlendMode); !ok {
		return info, fmt.Errorf("%w: %q", ErrUnknownBlendMode, info.BlendMode)
	}
	return info, nil
}

// affectsComposite reports whether changing from a to b changes the
// composited output.
func affectsComposite(a, b LayerInfo) bool {
	return a.Visible != b.Visible || a.Opacity != b.Opacity || a.BlendMode != b.BlendMode
}

// LayerSpec describes a layer to create.
//
// At most one color source (Pixels, Image, Fill) and at most one mask
// source (Mask, MaskImage, MaskFill) may be set. Without a color source the
// layer is transparent white; without a mask source the mask is 255.
type LayerSpec struct {
	Info LayerInfo

	// Pixels is straight-alpha RGBA8 data of exactly width*height*4 bytes.
	Pixels []byte
	// Image is resampled to the canvas when its size differs.
	Image image.Image
	// Fill paints every pixel one color.
	Fill *color.NRGBA

	// Mask is 8-bit data of exactly width*height bytes.
	Mask []byte
	// MaskImage is reduced to luma and resampled to the canvas.
	MaskImage image.Image
	// MaskFill sets every mask value.
	MaskFill *uint8
}

// transparentWhite is the color of a layer created without a color source.
var transparentWhite = color.NRGBA{R: 255, G: 255, B: 255, A: 0}

// colorPixels resolves the color source to RGBA8 bytes. Source conflicts
// and size mismatches are caller errors and panic.
func (s *LayerSpec) colorPixels(w, h int) []byte {
	n := 0
	for _, set := range []bool{s.Pixels != nil, s.Image != nil, s.Fill != nil} {
		if set {
			n++
		}
	}
	if n > 1 {
		panic("ggpaint: layer spec has more than one color source")
	}

	switch {
	case s.Pixels != nil:
		if len(s.Pixels) != w*h*4 {
			panic(fmt.Sprintf("ggpaint: layer pixels are %d bytes, want %d", len(s.Pixels), w*h*4))
		}
		return bytes.Clone(s.Pixels)
	case s.Image != nil:
		return imageio.Resize(s.Image, w, h, imageio.QualityHigh).Pix
	case s.Fill != nil:
		return fillRGBA(w, h, *s.Fill)
	default:
		return fillRGBA(w, h, transparentWhite)
	}
}

// maskPixels resolves the mask source to R8 bytes.
func (s *LayerSpec) maskPixels(w, h int) []byte {
	n := 0
	for _, set := range []bool{s.Mask != nil, s.MaskImage != nil, s.MaskFill != nil} {
		if set {
			n++
		}
	}
	if n > 1 {
		panic("ggpaint: layer spec has more than one mask source")
	}

	switch {
	case s.Mask != nil:
		if len(s.Mask) != w*h {
			panic(fmt.Sprintf("ggpaint: layer mask is %d bytes, want %d", len(s.Mask), w*h))
		}
		return bytes.Clone(s.Mask)
	case s.MaskImage != nil:
		b := s.MaskImage.Bounds()
		src := s.MaskImage
		if b.Dx() != w || b.Dy() != h {
			src = imageio.Resize(src, w, h, imageio.QualityHigh)
		}
		return imageio.ToGray(src).Pix
	case s.MaskFill != nil:
		return bytes.Repeat([]byte{*s.MaskFill}, w*h)
	default:
		return bytes.Repeat([]byte{255}, w*h)
	}
}

func fillRGBA(w, h int, c color.NRGBA) []byte {
	return bytes.Repeat([]byte{c.R, c.G, c.B, c.A}, w*h)
}

// layer is one entry of the stack: its description and the three textures
// it owns.
type layer struct {
	uid uint64
	// gen changes whenever color pixels change.
	gen  uint64
	info LayerInfo

	color gpucore.TextureID
	mask  gpucore.TextureID
	total gpucore.TextureID
}
