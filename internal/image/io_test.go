package image

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestEncodeDecodeRGBA(t *testing.T) {
	pix := []byte{
		255, 0, 0, 255, 0, 255, 0, 128,
		0, 0, 255, 0, 10, 20, 30, 40,
	}
	var buf bytes.Buffer
	if err := EncodeRGBA(&buf, 2, 2, pix); err != nil {
		t.Fatal(err)
	}
	img, err := DecodeRGBA(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 2 {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if !bytes.Equal(img.Pix, pix) {
		t.Errorf("pixels = %v, want %v", img.Pix, pix)
	}
}

func TestEncodeDecodeGray(t *testing.T) {
	pix := []byte{0, 64, 128, 255, 1, 2}
	var buf bytes.Buffer
	if err := EncodeGray(&buf, 3, 2, pix); err != nil {
		t.Fatal(err)
	}
	img, err := DecodeGray(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(img.Pix, pix) {
		t.Errorf("pixels = %v, want %v", img.Pix, pix)
	}
}

func TestEncodeSizeMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeRGBA(&buf, 2, 2, make([]byte, 15)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("EncodeRGBA short buffer: %v", err)
	}
	if err := EncodeGray(&buf, 2, 2, make([]byte, 5)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("EncodeGray long buffer: %v", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := DecodeRGBA(nil); !errors.Is(err, ErrEmptyData) {
		t.Errorf("empty: %v", err)
	}
	if _, err := DecodeGray([]byte("not a png")); err == nil {
		t.Error("garbage decoded")
	}
}

func TestEncodeFormats(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 255
	}
	src.SetNRGBA(1, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 255})

	for _, name := range []string{"png", ".bmp", "TIF"} {
		t.Run(name, func(t *testing.T) {
			f, err := ParseFormat(name)
			if err != nil {
				t.Fatal(err)
			}
			var buf bytes.Buffer
			if err := Encode(&buf, src, f); err != nil {
				t.Fatal(err)
			}
			img, _, err := Decode(&buf)
			if err != nil {
				t.Fatal(err)
			}
			if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
				t.Errorf("bounds = %v", img.Bounds())
			}
			r, g, b, _ := img.At(1, 1).RGBA()
			if r>>8 != 200 || g>>8 != 100 || b>>8 != 50 {
				t.Errorf("pixel = %d,%d,%d", r>>8, g>>8, b>>8)
			}
		})
	}

	if _, err := ParseFormat("gif"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("gif: %v", err)
	}
}

func TestToNRGBAOffsetOrigin(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 5, 7, 7))
	src.SetNRGBA(6, 6, color.NRGBA{R: 9, A: 255})
	got := ToNRGBA(src)
	if got.Bounds().Min != (image.Point{}) {
		t.Fatalf("origin = %v", got.Bounds().Min)
	}
	if c := got.NRGBAAt(1, 1); c.R != 9 {
		t.Errorf("pixel = %v", c)
	}
}

func TestResize(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	for i := range src.Pix {
		src.Pix[i] = 255
	}
	for _, q := range []Quality{QualityFast, QualityHigh} {
		dst := Resize(src, 4, 2, q)
		if dst.Bounds().Dx() != 4 || dst.Bounds().Dy() != 2 {
			t.Fatalf("bounds = %v", dst.Bounds())
		}
		if c := dst.NRGBAAt(2, 1); c.R != 255 || c.A != 255 {
			t.Errorf("quality %d: pixel = %v", q, c)
		}
	}
}

func TestFit(t *testing.T) {
	tests := []struct{ w, h, size, ww, wh int }{
		{200, 100, 64, 64, 32},
		{100, 200, 64, 32, 64},
		{1000, 1, 64, 64, 1},
		{0, 10, 64, 1, 1},
	}
	for _, tt := range tests {
		if w, h := Fit(tt.w, tt.h, tt.size); w != tt.ww || h != tt.wh {
			t.Errorf("Fit(%d,%d,%d) = %d,%d want %d,%d", tt.w, tt.h, tt.size, w, h, tt.ww, tt.wh)
		}
	}
}

func TestEncoderPool(t *testing.T) {
	p := NewEncoderPool(1)
	if p.Get() != nil {
		t.Fatal("empty pool returned a buffer")
	}
	p.Put(nil)
	p.Put(new(png.EncoderBuffer))
	p.Put(new(png.EncoderBuffer))
	if p.Len() != 1 {
		t.Errorf("Len() = %d, want 1", p.Len())
	}
}
