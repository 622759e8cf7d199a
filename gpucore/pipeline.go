package gpucore

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Program name prefixes.
const (
	// BlendProgramPrefix prefixes the blend mode name in blend programs.
	BlendProgramPrefix = "blend/"

	// BrushProgram stamps a soft elliptical dab into a mask.
	BrushProgram = "tools/brush"

	// GaussianProgram runs one pass of a separable Gaussian blur.
	GaussianProgram = "filters/gaussian"
)

// BlendProgram returns the program name for a blend mode.
func BlendProgram(mode string) string {
	return BlendProgramPrefix + mode
}

// ParseBlendProgram extracts the blend mode from a program name.
func ParseBlendProgram(program string) (string, bool) {
	mode, ok := strings.CutPrefix(program, BlendProgramPrefix)
	if !ok || mode == "" {
		return "", false
	}
	return mode, true
}

// Blend program binding slots.
const (
	BlendBindingBase = iota
	BlendBindingColor
	BlendBindingMask
	BlendBindingOut

	blendBindingCount
)

// BlendBindingCount is the number of textures a blend dispatch binds.
const BlendBindingCount = blendBindingCount

// BlendParams is the uniform block of a blend program.
//
// Per pixel, with a = Opacity * mask / 255:
//
//	rgb   = base.rgb*(1-a) + mix(base.rgb, color.rgb)*a
//	alpha = base.a*(1-a) + color.a*a
type BlendParams struct {
	Width   uint32
	Height  uint32
	Opacity float32
}

// BlendParamsSize is the packed size of [BlendParams], padded to 16 bytes.
const BlendParamsSize = 16

// Bytes packs the parameters little-endian.
func (p BlendParams) Bytes() []byte {
	buf := make([]byte, BlendParamsSize)
	binary.LittleEndian.PutUint32(buf[0:], p.Width)
	binary.LittleEndian.PutUint32(buf[4:], p.Height)
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(p.Opacity))
	return buf
}

// DecodeBlendParams unpacks a blend uniform block.
func DecodeBlendParams(b []byte) (BlendParams, error) {
	if len(b) < BlendParamsSize {
		return BlendParams{}, fmt.Errorf("gpucore: blend params: got %d bytes, want %d", len(b), BlendParamsSize)
	}
	return BlendParams{
		Width:   binary.LittleEndian.Uint32(b[0:]),
		Height:  binary.LittleEndian.Uint32(b[4:]),
		Opacity: math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}, nil
}

// Filter program binding slots. Source and destination must differ.
const (
	FilterBindingSrc = iota
	FilterBindingDst

	filterBindingCount
)

// FilterBindingCount is the number of textures a filter dispatch binds.
const FilterBindingCount = filterBindingCount

// GaussianParams is the uniform block of the Gaussian program. One
// dispatch convolves along rows, or along columns when Vertical is set,
// with a kernel of standard deviation Radius and 2*ceil(3*Radius)+1 taps.
type GaussianParams struct {
	Width    uint32
	Height   uint32
	Radius   float32
	Vertical bool
}

// GaussianParamsSize is the packed size of [GaussianParams].
const GaussianParamsSize = 16

// Bytes packs the parameters little-endian.
func (p GaussianParams) Bytes() []byte {
	buf := make([]byte, GaussianParamsSize)
	le := binary.LittleEndian
	le.PutUint32(buf[0:], p.Width)
	le.PutUint32(buf[4:], p.Height)
	le.PutUint32(buf[8:], math.Float32bits(p.Radius))
	if p.Vertical {
		le.PutUint32(buf[12:], 1)
	}
	return buf
}

// DecodeGaussianParams unpacks a Gaussian uniform block.
func DecodeGaussianParams(b []byte) (GaussianParams, error) {
	if len(b) < GaussianParamsSize {
		return GaussianParams{}, fmt.Errorf("gpucore: gaussian params: got %d bytes, want %d", len(b), GaussianParamsSize)
	}
	le := binary.LittleEndian
	return GaussianParams{
		Width:    le.Uint32(b[0:]),
		Height:   le.Uint32(b[4:]),
		Radius:   math.Float32frombits(le.Uint32(b[8:])),
		Vertical: le.Uint32(b[12:]) != 0,
	}, nil
}

// BrushParams is the uniform block of the brush program.
//
// The dispatch covers the pixel rectangle starting at (OriginX, OriginY);
// each pixel's mask value becomes max(mask, coverage*255).
type BrushParams struct {
	Width   uint32
	Height  uint32
	OriginX uint32
	OriginY uint32

	CenterX  float32
	CenterY  float32
	Radius   float32
	Hardness float32 // fraction of the radius at full strength
	Rotation float32 // radians
	Aspect   float32 // minor/major axis ratio
	Flow     float32
}

// BrushParamsSize is the packed size of [BrushParams], padded to 48 bytes.
const BrushParamsSize = 48

// Bytes packs the parameters little-endian.
func (p BrushParams) Bytes() []byte {
	buf := make([]byte, BrushParamsSize)
	le := binary.LittleEndian
	le.PutUint32(buf[0:], p.Width)
	le.PutUint32(buf[4:], p.Height)
	le.PutUint32(buf[8:], p.OriginX)
	le.PutUint32(buf[12:], p.OriginY)
	for i, f := range []float32{p.CenterX, p.CenterY, p.Radius, p.Hardness, p.Rotation, p.Aspect, p.Flow} {
		le.PutUint32(buf[16+4*i:], math.Float32bits(f))
	}
	return buf
}

// DecodeBrushParams unpacks a brush uniform block.
func DecodeBrushParams(b []byte) (BrushParams, error) {
	if len(b) < BrushParamsSize {
		return BrushParams{}, fmt.Errorf("gpucore: brush params: got %d bytes, want %d", len(b), BrushParamsSize)
	}
	le := binary.LittleEndian
	f := func(off int) float32 { return math.Float32frombits(le.Uint32(b[off:])) }
	return BrushParams{
		Width:    le.Uint32(b[0:]),
		Height:   le.Uint32(b[4:]),
		OriginX:  le.Uint32(b[8:]),
		OriginY:  le.Uint32(b[12:]),
		CenterX:  f(16),
		CenterY:  f(20),
		Radius:   f(24),
		Hardness: f(28),
		Rotation: f(32),
		Aspect:   f(36),
		Flow:     f(40),
	}, nil
}

// Coverage returns the dab strength in [0, Flow] at pixel (x, y), sampled
// at the pixel center.
//
// Inside Hardness*Radius the dab is at full strength; between there and the
// edge it falls off along a smoothstep curve.
func (p BrushParams) Coverage(x, y int) float64 {
	if p.Radius <= 0 {
		return 0
	}
	dx := float64(x) + 0.5 - float64(p.CenterX)
	dy := float64(y) + 0.5 - float64(p.CenterY)
	sin, cos := math.Sincos(float64(p.Rotation))
	u := dx*cos + dy*sin
	v := -dx*sin + dy*cos

	aspect := float64(p.Aspect)
	if aspect <= 0 {
		aspect = 1
	}
	r := float64(p.Radius)
	d := math.Hypot(u/r, v/(r*aspect))
	if d >= 1 {
		return 0
	}
	h := float64(p.Hardness)
	flow := float64(p.Flow)
	if d <= h {
		return flow
	}
	t := (d - h) / (1 - h)
	return (1 - t*t*(3-2*t)) * flow
}
