package image

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Quality selects the resampling kernel.
type Quality int

const (
	// QualityFast uses bilinear interpolation, for previews.
	QualityFast Quality = iota
	// QualityHigh uses Catmull-Rom, for content imported into layers.
	QualityHigh
)

// Resize scales src to width x height. A source that already has the
// requested size is copied without resampling.
func Resize(src image.Image, width, height int, q Quality) *image.NRGBA {
	b := src.Bounds()
	if b.Dx() == width && b.Dy() == height {
		out := image.NewNRGBA(image.Rect(0, 0, width, height))
		xdraw.Draw(out, out.Bounds(), src, b.Min, xdraw.Src)
		return out
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	var scaler xdraw.Scaler = xdraw.ApproxBiLinear
	if q == QualityHigh {
		scaler = xdraw.CatmullRom
	}
	scaler.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}

// Fit returns the largest width x height that fits within a size x size box
// while keeping the aspect ratio of a w x h image. Both results are at
// least 1.
func Fit(w, h, size int) (int, int) {
	if w <= 0 || h <= 0 || size <= 0 {
		return 1, 1
	}
	if w >= h {
		return size, max(1, h*size/w)
	}
	return max(1, w*size/h), size
}
