package blend

import "testing"

func TestPixelNormalHalfOpacityMask128(t *testing.T) {
	white := [4]uint8{255, 255, 255, 255}
	red := [4]uint8{255, 0, 0, 255}
	got := Pixel(white, red, Coverage(0.5, 128), Normal.Entry().Mix)
	want := [4]uint8{255, 191, 191, 255}
	if got != want {
		t.Errorf("Pixel = %v, want %v", got, want)
	}
}

func TestPixelOpacityBoundaries(t *testing.T) {
	base := [4]uint8{10, 20, 30, 200}
	src := [4]uint8{200, 100, 50, 255}
	mix := Normal.Entry().Mix

	if got := Pixel(base, src, Coverage(0, 255), mix); got != base {
		t.Errorf("opacity 0: got %v, want base %v", got, base)
	}
	if got := Pixel(base, src, Coverage(1, 255), mix); got != src {
		t.Errorf("opacity 1, mask 255: got %v, want src %v", got, src)
	}
	if got := Pixel(base, src, Coverage(1, 0), mix); got != base {
		t.Errorf("mask 0: got %v, want base %v", got, base)
	}
}

func TestRows(t *testing.T) {
	const w, h = 3, 2
	base := make([]byte, w*h*4)
	src := make([]byte, w*h*4)
	mask := make([]byte, w*h)
	for i := range w * h {
		copy(base[i*4:], []byte{0, 0, 0, 255})
		copy(src[i*4:], []byte{255, 255, 255, 255})
		mask[i] = 255
	}
	mask[4] = 0

	dst := make([]byte, len(base))
	Rows(dst, base, src, mask, w, 0, h, 1, Multiply.Entry().Mix)
	for i := range w * h {
		got := dst[i*4 : i*4+4]
		if got[0] != 0 || got[3] != 255 {
			t.Errorf("pixel %d: multiply over black = %v", i, got)
		}
	}

	Rows(dst, base, src, mask, w, 1, h, 1, Screen.Entry().Mix)
	if dst[3*4] != 255 {
		t.Errorf("row 1 screen: got %d", dst[3*4])
	}
	if dst[4*4] != 0 {
		t.Errorf("masked pixel changed: %d", dst[4*4])
	}
}
