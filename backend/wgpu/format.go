package wgpu

import "github.com/gogpu/ggpaint/gpucore"

// texelSize is the device-side size of every pixel.
const texelSize = 4

// bufferSize returns the storage buffer size of a texture.
func bufferSize(desc gpucore.TextureDescriptor) uint64 {
	return uint64(desc.Width) * uint64(desc.Height) * texelSize //nolint:gosec // validated dimensions
}

// packTexels converts host texture contents to device words.
// RGBA8 bytes already are little-endian packed words.
func packTexels(format gpucore.TextureFormat, data []byte) []byte {
	if format == gpucore.TextureFormatRGBA8Unorm {
		return data
	}
	out := make([]byte, len(data)*texelSize)
	for i, v := range data {
		out[i*texelSize] = v
	}
	return out
}

// unpackTexels is the inverse of packTexels.
func unpackTexels(format gpucore.TextureFormat, words []byte) []byte {
	if format == gpucore.TextureFormatRGBA8Unorm {
		return words
	}
	out := make([]byte, len(words)/texelSize)
	for i := range out {
		out[i] = words[i*texelSize]
	}
	return out
}

// uniformSize rounds a uniform block up to 16 bytes.
func uniformSize(n int) uint64 {
	return uint64((max(n, 1) + 15) &^ 15) //nolint:gosec // small
}
