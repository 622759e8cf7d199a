// Package image holds the still-image codecs and resampling helpers used to
// move layer pixels between host memory and files.
package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/tiff"
)

// I/O errors.
var (
	// ErrUnsupportedFormat is returned when the image format is not supported.
	ErrUnsupportedFormat = errors.New("image: unsupported format")

	// ErrEmptyData is returned when image data is empty.
	ErrEmptyData = errors.New("image: empty data")

	// ErrSizeMismatch is returned when a pixel buffer does not match its
	// declared dimensions.
	ErrSizeMismatch = errors.New("image: pixel buffer size mismatch")
)

// Format is an export file format.
type Format string

// Supported export formats.
const (
	FormatPNG  Format = "png"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
	FormatJPEG Format = "jpeg"
)

// ParseFormat resolves a format name or file extension (".tif", "PNG").
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "png":
		return FormatPNG, nil
	case "bmp":
		return FormatBMP, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

var encoder = png.Encoder{
	CompressionLevel: png.BestCompression,
	BufferPool:       NewEncoderPool(4),
}

// EncodeRGBA encodes a straight-alpha RGBA8 buffer as PNG.
func EncodeRGBA(w io.Writer, width, height int, pix []byte) error {
	if len(pix) != width*height*4 {
		return fmt.Errorf("%w: %d bytes for %dx%d RGBA", ErrSizeMismatch, len(pix), width, height)
	}
	img := &image.NRGBA{Pix: pix, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}
	if err := encoder.Encode(w, img); err != nil {
		return fmt.Errorf("image: encode PNG: %w", err)
	}
	return nil
}

// EncodeGray encodes an 8-bit single channel buffer as a grayscale PNG.
func EncodeGray(w io.Writer, width, height int, pix []byte) error {
	if len(pix) != width*height {
		return fmt.Errorf("%w: %d bytes for %dx%d gray", ErrSizeMismatch, len(pix), width, height)
	}
	img := &image.Gray{Pix: pix, Stride: width, Rect: image.Rect(0, 0, width, height)}
	if err := encoder.Encode(w, img); err != nil {
		return fmt.Errorf("image: encode PNG: %w", err)
	}
	return nil
}

// DecodeRGBA decodes PNG data into a straight-alpha RGBA8 image.
func DecodeRGBA(data []byte) (*image.NRGBA, error) {
	img, err := decodePNG(data)
	if err != nil {
		return nil, err
	}
	return ToNRGBA(img), nil
}

// DecodeGray decodes PNG data into an 8-bit gray image. Color images are
// reduced to luma.
func DecodeGray(data []byte) (*image.Gray, error) {
	img, err := decodePNG(data)
	if err != nil {
		return nil, err
	}
	return ToGray(img), nil
}

func decodePNG(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image: decode PNG: %w", err)
	}
	return img, nil
}

// Decode decodes an image in any supported format (PNG, JPEG, BMP, TIFF).
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("image: decode: %w", err)
	}
	return img, format, nil
}

// LoadImage loads an image from the given file path, detecting the format
// from its content.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("image: open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, _, err := Decode(f)
	return img, err
}

// Encode writes img in the given format.
func Encode(w io.Writer, img image.Image, format Format) error {
	var err error
	switch format {
	case FormatPNG:
		err = encoder.Encode(w, img)
	case FormatBMP:
		err = bmp.Encode(w, img)
	case FormatTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return fmt.Errorf("image: encode %s: %w", format, err)
	}
	return nil
}

// ToNRGBA returns img as a straight-alpha RGBA image with its origin at
// (0, 0). NRGBA inputs with a zero origin and packed rows are returned
// as-is.
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) && n.Stride == b.Dx()*4 {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
	return dst
}

// ToGray returns img as an 8-bit gray image with its origin at (0, 0).
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) && g.Stride == b.Dx() {
		return g
	}
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		for x := range b.Dx() {
			dst.Pix[y*dst.Stride+x] = color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
		}
	}
	return dst
}
