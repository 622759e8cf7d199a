package blend

// Coverage is the effective contribution of a layer at one pixel.
func Coverage(opacity float64, mask uint8) float64 {
	return clamp01(opacity) * unit(mask)
}

// Pixel blends one straight-alpha RGBA source pixel over a base pixel.
func Pixel(base, src [4]uint8, a float64, mix MixFunc) [4]uint8 {
	var out [4]uint8
	inv := 1 - a
	for c := range 3 {
		b := unit(base[c])
		m := clamp01(mix(b, unit(src[c])))
		out[c] = quantize(b*inv + m*a)
	}
	out[3] = quantize(unit(base[3])*inv + unit(src[3])*a)
	return out
}

// Rows blends rows [y0, y1) of an RGBA8 source into dst.
//
// base, src and dst are RGBA8 buffers of width*height pixels, mask is an R8
// buffer of the same dimensions. dst may alias base.
func Rows(dst, base, src, mask []byte, width, y0, y1 int, opacity float64, mix MixFunc) {
	for y := y0; y < y1; y++ {
		row := y * width
		for x := range width {
			i := row + x
			p := i * 4
			a := Coverage(opacity, mask[i])
			if a == 0 {
				copy(dst[p:p+4], base[p:p+4])
				continue
			}
			out := Pixel(
				[4]uint8{base[p], base[p+1], base[p+2], base[p+3]},
				[4]uint8{src[p], src[p+1], src[p+2], src[p+3]},
				a, mix,
			)
			copy(dst[p:p+4], out[:])
		}
	}
}
