package gpucore

import "fmt"

// Resource IDs
//
// These opaque IDs represent GPU resources. Each device implementation
// maintains a mapping between IDs and actual backend resources.

// TextureID is an opaque handle to a GPU texture.
type TextureID uint64

// PipelineID is an opaque handle to a compute pipeline.
type PipelineID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// TextureFormat specifies the format of texture data.
type TextureFormat uint32

// Texture formats.
const (
	// TextureFormatRGBA8Unorm is 8-bit RGBA, straight alpha.
	TextureFormatRGBA8Unorm TextureFormat = iota + 1

	// TextureFormatR8Unorm is a single 8-bit channel, used for masks.
	TextureFormatR8Unorm
)

// BytesPerPixel returns the host-side size of one texel.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case TextureFormatRGBA8Unorm:
		return 4
	case TextureFormatR8Unorm:
		return 1
	default:
		return 0
	}
}

// String returns the format name.
func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8Unorm:
		return "rgba8unorm"
	case TextureFormatR8Unorm:
		return "r8unorm"
	default:
		return fmt.Sprintf("TextureFormat(%d)", uint32(f))
	}
}

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	// Label is an optional debug label.
	Label string

	Width  int
	Height int
	Format TextureFormat
}

// Size returns the host-side byte size of the texture contents.
func (d TextureDescriptor) Size() int {
	return d.Width * d.Height * d.Format.BytesPerPixel()
}

// Validate reports whether the descriptor can be allocated.
func (d TextureDescriptor) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, d.Width, d.Height)
	}
	if d.Format.BytesPerPixel() == 0 {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, d.Format)
	}
	return nil
}

// Bindings lists the resources a dispatch reads and writes, in the binding
// order documented by the program, plus its packed uniform block.
type Bindings struct {
	Textures []TextureID
	Params   []byte
}

// WorkgroupSize is the edge length, in pixels, of every program's
// workgroup.
const WorkgroupSize = 8

// WorkgroupCount returns the number of workgroups needed to cover n pixels.
func WorkgroupCount(n int) uint32 {
	if n <= 0 {
		return 0
	}
	return uint32((n + WorkgroupSize - 1) / WorkgroupSize) //nolint:gosec // n is a texture dimension
}
