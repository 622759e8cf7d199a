package backend

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/ggpaint/gpucore"
	"github.com/gogpu/ggpaint/internal/filter"
)

func newTestDevice(t *testing.T) *SoftwareDevice {
	t.Helper()
	d := NewSoftwareDevice(WithWorkers(2))
	t.Cleanup(d.Destroy)
	return d
}

func mustTexture(t *testing.T, d gpucore.Device, w, h int, f gpucore.TextureFormat, fill []byte) gpucore.TextureID {
	t.Helper()
	id, err := d.CreateTexture(gpucore.TextureDescriptor{Label: "test", Width: w, Height: h, Format: f})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	if fill != nil {
		data := bytes.Repeat(fill, w*h)
		d.WriteTexture(id, data)
	}
	return id
}

func read(t *testing.T, d gpucore.Device, id gpucore.TextureID) []byte {
	t.Helper()
	data, err := d.ReadTexture(context.Background(), id)
	if err != nil {
		t.Fatalf("ReadTexture: %v", err)
	}
	return data
}

func TestSoftwareDeviceName(t *testing.T) {
	d := newTestDevice(t)
	if d.Name() != "software" {
		t.Errorf("Name() = %q, want %q", d.Name(), "software")
	}
}

func TestSoftwareTextureWriteRead(t *testing.T) {
	d := newTestDevice(t)
	id := mustTexture(t, d, 3, 2, gpucore.TextureFormatRGBA8Unorm, nil)

	if got := read(t, d, id); !bytes.Equal(got, make([]byte, 24)) {
		t.Errorf("new texture not zeroed: %v", got)
	}

	data := make([]byte, 24)
	for i := range data {
		data[i] = byte(i)
	}
	d.WriteTexture(id, data)
	data[0] = 99 // WriteTexture must have copied
	got := read(t, d, id)
	if got[0] != 0 || got[23] != 23 {
		t.Errorf("read back %v", got)
	}
}

func TestSoftwareCreateTextureInvalid(t *testing.T) {
	d := newTestDevice(t)
	_, err := d.CreateTexture(gpucore.TextureDescriptor{Width: 0, Height: 1, Format: gpucore.TextureFormatR8Unorm})
	if !errors.Is(err, gpucore.ErrInvalidSize) {
		t.Errorf("CreateTexture(0x1) = %v", err)
	}
}

func TestSoftwareBlendDispatch(t *testing.T) {
	d := newTestDevice(t)
	const w, h = 2, 2
	base := mustTexture(t, d, w, h, gpucore.TextureFormatRGBA8Unorm, []byte{255, 255, 255, 255})
	color := mustTexture(t, d, w, h, gpucore.TextureFormatRGBA8Unorm, []byte{255, 0, 0, 255})
	mask := mustTexture(t, d, w, h, gpucore.TextureFormatR8Unorm, []byte{128})
	out := mustTexture(t, d, w, h, gpucore.TextureFormatRGBA8Unorm, nil)

	pipe, err := d.CreatePipeline(gpucore.BlendProgram("normal"))
	if err != nil {
		t.Fatal(err)
	}
	again, _ := d.CreatePipeline(gpucore.BlendProgram("normal"))
	if again != pipe {
		t.Errorf("pipeline not cached: %d != %d", again, pipe)
	}

	enc := d.CreateCommandEncoder("blend")
	enc.Dispatch(pipe, gpucore.Bindings{
		Textures: []gpucore.TextureID{base, color, mask, out},
		Params:   gpucore.BlendParams{Width: w, Height: h, Opacity: 0.5}.Bytes(),
	}, gpucore.WorkgroupCount(w), gpucore.WorkgroupCount(h), 1)
	d.Submit(enc.Finish())

	got := read(t, d, out)
	want := bytes.Repeat([]byte{255, 191, 191, 255}, w*h)
	if !bytes.Equal(got, want) {
		t.Errorf("blend = %v, want %v", got, want)
	}
}

func TestSoftwareBrushDispatch(t *testing.T) {
	d := newTestDevice(t)
	const size = 32
	mask := mustTexture(t, d, size, size, gpucore.TextureFormatR8Unorm, nil)
	pipe, err := d.CreatePipeline(gpucore.BrushProgram)
	if err != nil {
		t.Fatal(err)
	}

	p := gpucore.BrushParams{
		Width: size, Height: size, OriginX: 8, OriginY: 8,
		CenterX: 16, CenterY: 16, Radius: 6, Hardness: 0.5, Aspect: 1, Flow: 1,
	}
	enc := d.CreateCommandEncoder("stamp")
	enc.Dispatch(pipe, gpucore.Bindings{Textures: []gpucore.TextureID{mask}, Params: p.Bytes()}, 2, 2, 1)
	d.Submit(enc.Finish())

	got := read(t, d, mask)
	if got[15*size+15] != 255 {
		t.Errorf("center = %d, want 255", got[15*size+15])
	}
	if got[0] != 0 || got[15*size+25] != 0 {
		t.Error("stamp leaked outside its radius")
	}
	if v := got[15*size+20]; v == 0 || v == 255 {
		t.Errorf("falloff pixel = %d, want partial", v)
	}
}

func TestSoftwareGaussianDispatch(t *testing.T) {
	d := newTestDevice(t)
	const w, h = 20, 12
	rgba := gpucore.TextureFormatRGBA8Unorm
	src := mustTexture(t, d, w, h, rgba, []byte{0, 0, 255, 0})
	tmp := mustTexture(t, d, w, h, rgba, nil)

	pixels := bytes.Repeat([]byte{0, 0, 255, 0}, w*h)
	copy(pixels[(5*w+9)*4:], []byte{255, 128, 0, 255})
	d.WriteTexture(src, pixels)

	pipe, err := d.CreatePipeline(gpucore.GaussianProgram)
	if err != nil {
		t.Fatal(err)
	}
	const radius = 1.5
	enc := d.CreateCommandEncoder("blur")
	for _, pass := range []struct {
		from, to gpucore.TextureID
		vertical bool
	}{{src, tmp, false}, {tmp, src, true}} {
		p := gpucore.GaussianParams{Width: w, Height: h, Radius: radius, Vertical: pass.vertical}
		enc.Dispatch(pipe, gpucore.Bindings{Textures: []gpucore.TextureID{pass.from, pass.to}, Params: p.Bytes()},
			gpucore.WorkgroupCount(w), gpucore.WorkgroupCount(h), 1)
	}
	d.Submit(enc.Finish())

	k := filter.GaussianKernel(radius)
	half := make([]byte, len(pixels))
	want := make([]byte, len(pixels))
	filter.Convolve(half, pixels, w, h, k, false, 0, h)
	filter.Convolve(want, half, w, h, k, true, 0, h)
	if got := read(t, d, src); !bytes.Equal(got, want) {
		t.Error("device blur differs from the host convolution")
	}
}

func TestSoftwareGaussianInPlaceLosesDevice(t *testing.T) {
	d := newTestDevice(t)
	tex := mustTexture(t, d, 4, 4, gpucore.TextureFormatRGBA8Unorm, nil)
	pipe, err := d.CreatePipeline(gpucore.GaussianProgram)
	if err != nil {
		t.Fatal(err)
	}
	enc := d.CreateCommandEncoder("in place")
	p := gpucore.GaussianParams{Width: 4, Height: 4, Radius: 1}
	enc.Dispatch(pipe, gpucore.Bindings{Textures: []gpucore.TextureID{tex, tex}, Params: p.Bytes()}, 1, 1, 1)
	d.Submit(enc.Finish())
	if err := d.WaitIdle(context.Background()); !errors.Is(err, gpucore.ErrDeviceLost) {
		t.Errorf("WaitIdle = %v, want ErrDeviceLost", err)
	}
}

func TestSoftwareCopyTexture(t *testing.T) {
	d := newTestDevice(t)
	src := mustTexture(t, d, 2, 2, gpucore.TextureFormatR8Unorm, []byte{7})
	dst := mustTexture(t, d, 2, 2, gpucore.TextureFormatR8Unorm, nil)

	enc := d.CreateCommandEncoder("copy")
	enc.CopyTexture(src, dst)
	d.Submit(enc.Finish())

	if got := read(t, d, dst); !bytes.Equal(got, []byte{7, 7, 7, 7}) {
		t.Errorf("copy = %v", got)
	}
}

func TestSoftwareUnknownProgram(t *testing.T) {
	d := newTestDevice(t)
	for _, p := range []string{"blend/bogus", "filters/blur"} {
		if _, err := d.CreatePipeline(p); !errors.Is(err, gpucore.ErrUnknownProgram) {
			t.Errorf("CreatePipeline(%q) = %v", p, err)
		}
	}
}

func TestSoftwareDeviceLost(t *testing.T) {
	d := newTestDevice(t)
	id := mustTexture(t, d, 2, 2, gpucore.TextureFormatR8Unorm, nil)
	d.WriteTexture(id, []byte{1, 2, 3})

	if err := d.WaitIdle(context.Background()); !errors.Is(err, gpucore.ErrDeviceLost) {
		t.Errorf("WaitIdle after bad write = %v", err)
	}
	if _, err := d.ReadTexture(context.Background(), id); !errors.Is(err, gpucore.ErrDeviceLost) {
		t.Errorf("ReadTexture after bad write = %v", err)
	}
}

func TestSoftwareDestroyTexture(t *testing.T) {
	d := newTestDevice(t)
	id := mustTexture(t, d, 1, 1, gpucore.TextureFormatR8Unorm, nil)
	d.DestroyTexture(id)

	n, err := d.TextureCount(context.Background())
	if err != nil || n != 0 {
		t.Errorf("TextureCount() = %d, %v", n, err)
	}
}

func TestSoftwareReadTextureContext(t *testing.T) {
	d := newTestDevice(t)
	id := mustTexture(t, d, 1, 1, gpucore.TextureFormatR8Unorm, nil)

	block := make(chan struct{})
	d.enqueue(func() { <-block })
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := d.ReadTexture(ctx, id); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ReadTexture with blocked queue = %v", err)
	}
}

func TestSoftwareDestroy(t *testing.T) {
	d := NewSoftwareDevice()
	d.Destroy()
	d.Destroy()

	if _, err := d.CreateTexture(gpucore.TextureDescriptor{Width: 1, Height: 1, Format: gpucore.TextureFormatR8Unorm}); !errors.Is(err, gpucore.ErrDeviceLost) {
		t.Errorf("CreateTexture after Destroy = %v", err)
	}
	if err := d.WaitIdle(context.Background()); !errors.Is(err, gpucore.ErrDeviceLost) {
		t.Errorf("WaitIdle after Destroy = %v", err)
	}
}

func TestSoftwareDestroyWhileSubmitting(t *testing.T) {
	for range 20 {
		d := NewSoftwareDevice(WithWorkers(1), WithQueueDepth(1))
		id := mustTexture(t, d, 4, 4, gpucore.TextureFormatR8Unorm, nil)

		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 50 {
					d.WriteTexture(id, make([]byte, 16))
				}
			}()
		}
		d.Destroy()
		wg.Wait()
	}
}
