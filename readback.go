package ggpaint

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/gogpu/ggpaint/gpucore"
	imageio "github.com/gogpu/ggpaint/internal/image"
)

// thumbKey identifies a cached thumbnail. Layer thumbnails are keyed by
// content generation, the output thumbnail is dropped on every recompute.
type thumbKey struct {
	uid    uint64
	gen    uint64
	size   int
	output bool
}

// ReadLayer returns a copy of the color of layer i. It waits for every
// queued operation.
func (w *Workspace) ReadLayer(ctx context.Context, i int) (*image.NRGBA, error) {
	return w.readRGBA(ctx, w.at(i).color)
}

// ReadMask returns a copy of the mask of layer i.
func (w *Workspace) ReadMask(ctx context.Context, i int) (*image.Gray, error) {
	data, err := w.read(ctx, w.at(i).mask)
	if err != nil {
		return nil, err
	}
	return &image.Gray{Pix: data, Stride: w.width, Rect: w.Bounds()}, nil
}

// ReadRunningTotal returns a copy of the running total of layer i. The
// running total of a hidden layer is not maintained.
func (w *Workspace) ReadRunningTotal(ctx context.Context, i int) (*image.NRGBA, error) {
	w.Flush()
	return w.readRGBA(ctx, w.at(i).total)
}

// Snapshot returns a copy of the composited output.
func (w *Workspace) Snapshot(ctx context.Context) (*image.NRGBA, error) {
	w.Flush()
	return w.readRGBA(ctx, w.output)
}

func (w *Workspace) read(ctx context.Context, id gpucore.TextureID) ([]byte, error) {
	if w.closed {
		return nil, ErrClosed
	}
	data, err := w.dev.ReadTexture(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ggpaint: read texture: %w", err)
	}
	return data, nil
}

func (w *Workspace) readRGBA(ctx context.Context, id gpucore.TextureID) (*image.NRGBA, error) {
	data, err := w.read(ctx, id)
	if err != nil {
		return nil, err
	}
	return &image.NRGBA{Pix: data, Stride: w.width * 4, Rect: w.Bounds()}, nil
}

// Export encodes the composited output. format is "png", "bmp", "tiff"
// or "jpeg"; JPEG drops alpha.
func (w *Workspace) Export(ctx context.Context, out io.Writer, format string) error {
	f, err := imageio.ParseFormat(format)
	if err != nil {
		return err
	}
	img, err := w.Snapshot(ctx)
	if err != nil {
		return err
	}
	return imageio.Encode(out, img, f)
}

// ExportFile writes the composited output to path in the format named by
// its extension.
func (w *Workspace) ExportFile(ctx context.Context, path string) (err error) {
	if _, err := imageio.ParseFormat(filepath.Ext(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return w.Export(ctx, f, filepath.Ext(path))
}

// Thumbnail returns layer i's color scaled to fit a size x size box.
// Thumbnails are cached until the layer's pixels change; the result must
// not be modified.
func (w *Workspace) Thumbnail(ctx context.Context, i, size int) (*image.NRGBA, error) {
	l := w.at(i)
	return w.thumbnail(ctx, thumbKey{uid: l.uid, gen: l.gen, size: size}, l.color)
}

// OutputThumbnail returns the composited output scaled to fit a
// size x size box.
func (w *Workspace) OutputThumbnail(ctx context.Context, size int) (*image.NRGBA, error) {
	w.Flush()
	return w.thumbnail(ctx, thumbKey{size: size, output: true}, w.output)
}

func (w *Workspace) thumbnail(ctx context.Context, key thumbKey, id gpucore.TextureID) (*image.NRGBA, error) {
	if size := key.size; size <= 0 {
		return nil, fmt.Errorf("ggpaint: thumbnail size %d", size)
	}
	if img, ok := w.thumbs.Get(key); ok {
		return img, nil
	}
	src, err := w.readRGBA(ctx, id)
	if err != nil {
		return nil, err
	}
	tw, th := imageio.Fit(w.width, w.height, key.size)
	img := imageio.Resize(src, tw, th, imageio.QualityFast)
	w.thumbs.Set(key, img)
	return img, nil
}
