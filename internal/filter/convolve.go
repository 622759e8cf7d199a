package filter

import "math"

// Convolve runs one pass of a separable convolution over rows [y0, y1) of
// a width x height straight-alpha RGBA8 image, reading src and writing
// dst. kernel is centered on each pixel, along rows when vertical is false
// and along columns otherwise.
//
// Where the weighted alpha is zero the pixel keeps its own color, so a
// fully transparent region stays unchanged.
func Convolve(dst, src []byte, width, height int, kernel []float32, vertical bool, y0, y1 int) {
	half := len(kernel) / 2
	for y := y0; y < y1; y++ {
		for x := 0; x < width; x++ {
			var a, r, g, b float64
			for k, wt := range kernel {
				sx, sy := x, y
				if vertical {
					sy = min(max(y+k-half, 0), height-1)
				} else {
					sx = min(max(x+k-half, 0), width-1)
				}
				p := src[(sy*width+sx)*4:]
				wa := float64(wt) * float64(p[3])
				a += wa
				r += wa * float64(p[0])
				g += wa * float64(p[1])
				b += wa * float64(p[2])
			}

			i := (y*width + x) * 4
			if a <= 0 {
				copy(dst[i:i+3], src[i:i+3])
				dst[i+3] = 0
				continue
			}
			dst[i+0] = quantize(r / a)
			dst[i+1] = quantize(g / a)
			dst[i+2] = quantize(b / a)
			dst[i+3] = quantize(a)
		}
	}
}

// quantize rounds v in [0, 255] to the nearest byte.
func quantize(v float64) uint8 {
	return uint8(min(max(math.Floor(v+0.5), 0), 255))
}
