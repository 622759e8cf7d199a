// Package filter implements the image filters a workspace can apply to a
// layer's color.
//
// Blurs are separable: a horizontal pass into a temporary image followed
// by a vertical pass back. Images are straight-alpha RGBA8, so every pass
// weights color by alpha before averaging and divides it back out, keeping
// transparent pixels from bleeding their color into opaque neighbors.
// Samples past the image edge repeat the edge pixel.
package filter
