package wgpu

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/gogpu/naga"
)

//go:embed shaders/blend.wgsl
var blendTemplate string

//go:embed shaders/brush.wgsl
var brushShaderSource string

//go:embed shaders/gaussian.wgsl
var gaussianShaderSource string

// blendBodyMarker is replaced by the body of blend_rgb.
const blendBodyMarker = "{{BLEND_RGB}}"

// BlendShaderSource returns the compute shader for a blend mode whose
// blend_rgb body is body.
func BlendShaderSource(body string) string {
	return strings.Replace(blendTemplate, blendBodyMarker, body, 1)
}

// BrushShaderSource returns the dab stamping compute shader.
func BrushShaderSource() string { return brushShaderSource }

// GaussianShaderSource returns the separable Gaussian blur pass.
func GaussianShaderSource() string { return gaussianShaderSource }

// compileSPIRV compiles WGSL to SPIR-V words.
func compileSPIRV(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("compile shader: SPIR-V length %d is not word aligned", len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}
