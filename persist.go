package ggpaint

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/ggpaint/gpucore"
	imageio "github.com/gogpu/ggpaint/internal/image"
)

// FormatVersion is the workspace file version written by Save.
const FormatVersion = 1

// fileMeta is the metadata block of a workspace file.
type fileMeta struct {
	FormatVersion int         `toml:"format_version"`
	Width         int         `toml:"width"`
	Height        int         `toml:"height"`
	Zoom          float32     `toml:"zoom"`
	PixelAtCenter [2]float32  `toml:"pixel_at_center"`
	Layers        []LayerInfo `toml:"layers,omitempty"`
}

// Save writes the workspace:
//
//	[u32 LE length][metadata]
//	per layer, bottom first:
//	[u32 LE length][color PNG][u32 LE length][mask PNG]
//
// Metadata is TOML. Colors are 8-bit straight-alpha RGBA PNGs, masks are
// 8-bit gray PNGs. Tool scratch layers are written as regular layers.
//
// Every texture is read back and encoded before the first byte goes to
// out, so a failed readback leaves out untouched.
func (w *Workspace) Save(ctx context.Context, out io.Writer) error {
	if w.closed {
		return ErrClosed
	}
	meta := fileMeta{
		FormatVersion: FormatVersion,
		Width:         w.width,
		Height:        w.height,
		Zoom:          w.view.Zoom,
		PixelAtCenter: w.view.Center,
		Layers:        w.Layers(),
	}
	for i, info := range meta.Layers {
		if _, err := info.normalize(); err != nil {
			return fmt.Errorf("ggpaint: save layer %d: %w", i, err)
		}
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(meta); err != nil {
		return fmt.Errorf("ggpaint: encode metadata: %w", err)
	}
	blocks := make([][]byte, 0, 1+2*len(w.layers))
	blocks = append(blocks, buf.Bytes())

	for i, l := range w.layers {
		color, err := w.read(ctx, l.color)
		if err != nil {
			return fmt.Errorf("ggpaint: save layer %d: %w", i, err)
		}
		mask, err := w.read(ctx, l.mask)
		if err != nil {
			return fmt.Errorf("ggpaint: save layer %d: %w", i, err)
		}

		var cb, mb bytes.Buffer
		if err := imageio.EncodeRGBA(&cb, w.width, w.height, color); err != nil {
			return fmt.Errorf("ggpaint: save layer %d: %w", i, err)
		}
		if err := imageio.EncodeGray(&mb, w.width, w.height, mask); err != nil {
			return fmt.Errorf("ggpaint: save layer %d mask: %w", i, err)
		}
		blocks = append(blocks, cb.Bytes(), mb.Bytes())
	}

	for _, b := range blocks {
		if err := writeBlock(out, b); err != nil {
			return err
		}
	}
	w.log.Info("ggpaint: saved", "layers", len(w.layers))
	return nil
}

// SaveFile writes the workspace to path. The file is replaced atomically:
// on error the previous contents are left in place.
func (w *Workspace) SaveFile(ctx context.Context, path string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = w.Save(ctx, bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func writeBlock(out io.Writer, data []byte) error {
	if uint64(len(data)) > math.MaxUint32 {
		return fmt.Errorf("ggpaint: block of %d bytes exceeds the length prefix", len(data))
	}
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(data)))
	if _, err := out.Write(n[:]); err != nil {
		return err
	}
	_, err := out.Write(data)
	return err
}

// readBlock reads one length-prefixed block. The buffer grows with the
// bytes actually read, so a corrupt length cannot force a large
// allocation up front.
func readBlock(r io.Reader) ([]byte, error) {
	var n [4]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncated
		}
		return nil, err
	}
	size := int64(binary.LittleEndian.Uint32(n[:]))
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, size); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: block of %d bytes has %d", ErrTruncated, size, buf.Len())
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeMeta parses and validates the metadata block.
func decodeMeta(data []byte) (fileMeta, error) {
	var meta fileMeta
	md, err := toml.Decode(string(data), &meta)
	if err != nil {
		return meta, formatError(StepMetadata, -1, err)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		Logger().Warn("ggpaint: ignoring unknown metadata keys", "keys", fmt.Sprint(keys))
	}
	if meta.FormatVersion != FormatVersion {
		return meta, formatError(StepMetadata, -1,
			fmt.Errorf("%w: %d", ErrUnsupportedVersion, meta.FormatVersion))
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return meta, formatError(StepMetadata, -1,
			fmt.Errorf("%w: %dx%d", ErrInvalidSize, meta.Width, meta.Height))
	}
	for i, info := range meta.Layers {
		if math.IsNaN(float64(info.Opacity)) || info.Opacity < 0 || info.Opacity > 1 {
			return meta, formatError(StepMetadata, i, fmt.Errorf("opacity %g out of range [0,1]", info.Opacity))
		}
		info, err := info.normalize()
		if err != nil {
			return meta, formatError(StepMetadata, i, err)
		}
		meta.Layers[i] = info
	}
	return meta, nil
}

// decodedLayer is a layer decoded to host memory, before any GPU
// allocation.
type decodedLayer struct {
	info  LayerInfo
	color []byte
	mask  []byte
}

// Load reads a workspace written by [Workspace.Save] and creates it on
// dev. Every block is decoded and validated before GPU resources are
// allocated, and every running total is recomputed.
//
// Errors are *[FormatError]. On error nothing stays allocated on dev.
func Load(ctx context.Context, dev gpucore.Device, r io.Reader, opts ...Option) (*Workspace, error) {
	block, err := readBlock(r)
	if err != nil {
		return nil, formatError(StepIO, -1, err)
	}
	meta, err := decodeMeta(block)
	if err != nil {
		return nil, err
	}

	layers := make([]decodedLayer, 0, len(meta.Layers))
	for i, info := range meta.Layers {
		if err := ctx.Err(); err != nil {
			return nil, formatError(StepIO, i, err)
		}
		dl, err := decodeLayer(r, meta.Width, meta.Height, i)
		if err != nil {
			return nil, err
		}
		dl.info = info
		layers = append(layers, dl)
	}
	var extra [1]byte
	if n, _ := io.ReadFull(r, extra[:]); n > 0 {
		return nil, formatError(StepDecode, -1, ErrTrailingData)
	}

	opts = slices.Concat(opts, []Option{WithView(View{Zoom: meta.Zoom, Center: meta.PixelAtCenter})})
	w, err := New(dev, meta.Width, meta.Height, opts...)
	if err != nil {
		return nil, formatError(StepGPU, -1, err)
	}
	for i, dl := range layers {
		spec := LayerSpec{Info: dl.info, Pixels: dl.color, Mask: dl.mask}
		if err := w.insertLayer(i, spec); err != nil {
			w.Close()
			return nil, formatError(StepGPU, i, err)
		}
	}
	if n := len(w.layers); n > 0 {
		w.selected = w.layers[n-1].uid
	}
	w.invalidate(0)
	w.refresh(0)
	w.log.Info("ggpaint: loaded", "width", meta.Width, "height", meta.Height, "layers", len(layers))
	return w, nil
}

func decodeLayer(r io.Reader, width, height, i int) (decodedLayer, error) {
	var dl decodedLayer

	block, err := readBlock(r)
	if err != nil {
		return dl, formatError(StepIO, i, fmt.Errorf("color: %w", err))
	}
	color, err := imageio.DecodeRGBA(block)
	if err != nil {
		return dl, formatError(StepDecode, i, fmt.Errorf("color: %w", err))
	}
	if b := color.Bounds(); b.Dx() != width || b.Dy() != height {
		return dl, formatError(StepDecode, i,
			fmt.Errorf("%w: color is %dx%d, workspace is %dx%d", ErrSizeMismatch, b.Dx(), b.Dy(), width, height))
	}

	block, err = readBlock(r)
	if err != nil {
		return dl, formatError(StepIO, i, fmt.Errorf("mask: %w", err))
	}
	mask, err := imageio.DecodeGray(block)
	if err != nil {
		return dl, formatError(StepDecode, i, fmt.Errorf("mask: %w", err))
	}
	if b := mask.Bounds(); b.Dx() != width || b.Dy() != height {
		return dl, formatError(StepDecode, i,
			fmt.Errorf("%w: mask is %dx%d, workspace is %dx%d", ErrSizeMismatch, b.Dx(), b.Dy(), width, height))
	}

	dl.color = color.Pix
	dl.mask = mask.Pix
	return dl, nil
}

// LoadFile reads a workspace file from path.
func LoadFile(ctx context.Context, dev gpucore.Device, path string, opts ...Option) (*Workspace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, formatError(StepIO, -1, err)
	}
	defer f.Close()
	return Load(ctx, dev, bufio.NewReader(f), opts...)
}

// ImportImage creates a workspace sized to the image at path with the
// image as its only layer. PNG, JPEG, BMP and TIFF are accepted.
func ImportImage(ctx context.Context, dev gpucore.Device, path string, opts ...Option) (*Workspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := imageio.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("ggpaint: import %s: %w", path, err)
	}
	b := img.Bounds()
	w, err := New(dev, b.Dx(), b.Dy(), opts...)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if _, err := w.CreateLayer(LayerSpec{Info: NewLayerInfo(name), Image: img}); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}
