package wgpu

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/ggpaint/gpucore"
)

// countingDevice tracks live buffers on top of the noop HAL device.
type countingDevice struct {
	hal.Device
	buffers   int
	waits     int
	destroyed bool
}

func (c *countingDevice) WaitIdle() error {
	c.waits++
	return c.Device.WaitIdle()
}

func (c *countingDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	b, err := c.Device.CreateBuffer(desc)
	if err == nil {
		c.buffers++
	}
	return b, err
}

func (c *countingDevice) DestroyBuffer(b hal.Buffer) {
	c.buffers--
	c.Device.DestroyBuffer(b)
}

func (c *countingDevice) Destroy() {
	c.destroyed = true
	c.Device.Destroy()
}

// pendingQueue reports no submission as complete, like a busy GPU.
type pendingQueue struct {
	hal.Queue
}

func (pendingQueue) PollCompleted() uint64 { return 0 }

// testProvider shares a HAL device the way a host window would.
type testProvider struct {
	device hal.Device
	queue  hal.Queue
}

func (p testProvider) Device() gpucontext.Device             { return p.device }
func (p testProvider) Queue() gpucontext.Queue               { return p.queue }
func (p testProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatUndefined }
func (p testProvider) Adapter() gpucontext.Adapter           { return nil }
func (p testProvider) HalDevice() any                        { return p.device }
func (p testProvider) HalQueue() any                         { return p.queue }
func (p testProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "Noop Adapter", Type: gpucontext.AdapterTypeSoftware}
}

// plainProvider has no HAL accessors.
type plainProvider struct{ testProvider }

func (plainProvider) HalDevice() {}

func newNoopDevice(t *testing.T) *Device {
	t.Helper()
	d, err := OpenBackend("noop", noop.API{})
	if err != nil {
		t.Fatalf("OpenBackend: %v", err)
	}
	t.Cleanup(d.Destroy)
	return d
}

// newSharedDevice returns a Device over a counting noop device.
func newSharedDevice(t *testing.T) (*Device, *countingDevice) {
	t.Helper()
	return openShared(t, func(q hal.Queue) hal.Queue { return q })
}

func openShared(t *testing.T, wrap func(hal.Queue) hal.Queue) (*Device, *countingDevice) {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatal(err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatal(err)
	}
	counting := &countingDevice{Device: openDev.Device}
	d, err := NewFromProvider(testProvider{device: counting, queue: wrap(openDev.Queue)})
	if err != nil {
		t.Fatalf("NewFromProvider: %v", err)
	}
	t.Cleanup(func() {
		d.Destroy()
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return d, counting
}

func mustTexture(t *testing.T, d *Device, w, h int, f gpucore.TextureFormat) gpucore.TextureID {
	t.Helper()
	id, err := d.CreateTexture(gpucore.TextureDescriptor{Label: "test", Width: w, Height: h, Format: f})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	return id
}

func TestOpenNoop(t *testing.T) {
	d := newNoopDevice(t)
	if d.Name() != "noop" {
		t.Errorf("Name() = %q", d.Name())
	}
	if err := d.WaitIdle(context.Background()); err != nil {
		t.Errorf("WaitIdle: %v", err)
	}
}

func TestTextureReadback(t *testing.T) {
	d := newNoopDevice(t)
	ctx := context.Background()

	for _, tt := range []struct {
		format gpucore.TextureFormat
		size   int
	}{
		{gpucore.TextureFormatRGBA8Unorm, 3 * 2 * 4},
		{gpucore.TextureFormatR8Unorm, 3 * 2},
	} {
		id := mustTexture(t, d, 3, 2, tt.format)
		d.WriteTexture(id, make([]byte, tt.size))
		got, err := d.ReadTexture(ctx, id)
		if err != nil {
			t.Fatalf("%v: ReadTexture: %v", tt.format, err)
		}
		if !bytes.Equal(got, make([]byte, tt.size)) {
			t.Errorf("%v: read %d bytes, want %d zero bytes", tt.format, len(got), tt.size)
		}
	}
	if d.TextureCount() != 2 {
		t.Errorf("TextureCount() = %d", d.TextureCount())
	}
}

func TestCreateTextureInvalid(t *testing.T) {
	d := newNoopDevice(t)
	_, err := d.CreateTexture(gpucore.TextureDescriptor{Width: 4, Height: 0, Format: gpucore.TextureFormatRGBA8Unorm})
	if !errors.Is(err, gpucore.ErrInvalidSize) {
		t.Errorf("error = %v, want ErrInvalidSize", err)
	}
}

func TestWriteTextureWrongSizeLosesDevice(t *testing.T) {
	d := newNoopDevice(t)
	id := mustTexture(t, d, 2, 2, gpucore.TextureFormatR8Unorm)
	d.WriteTexture(id, make([]byte, 3))

	if _, err := d.ReadTexture(context.Background(), id); !errors.Is(err, gpucore.ErrDeviceLost) {
		t.Errorf("ReadTexture error = %v, want ErrDeviceLost", err)
	}
	if _, err := d.CreateTexture(gpucore.TextureDescriptor{Width: 1, Height: 1, Format: gpucore.TextureFormatR8Unorm}); !errors.Is(err, gpucore.ErrDeviceLost) {
		t.Errorf("CreateTexture error = %v, want ErrDeviceLost", err)
	}
}

func TestCreatePipeline(t *testing.T) {
	d := newNoopDevice(t)

	a, err := d.CreatePipeline(gpucore.BlendProgram("multiply"))
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	b, err := d.CreatePipeline(gpucore.BlendProgram("multiply"))
	if err != nil || a != b {
		t.Errorf("second CreatePipeline = %d, %v; want cached %d", b, err, a)
	}
	if _, err := d.CreatePipeline(gpucore.BrushProgram); err != nil {
		t.Errorf("brush: %v", err)
	}
	if _, err := d.CreatePipeline(gpucore.GaussianProgram); err != nil {
		t.Errorf("gaussian: %v", err)
	}
	for _, name := range []string{gpucore.BlendProgram("sparkle"), "tools/eraser", ""} {
		if _, err := d.CreatePipeline(name); !errors.Is(err, gpucore.ErrUnknownProgram) {
			t.Errorf("CreatePipeline(%q) = %v, want ErrUnknownProgram", name, err)
		}
	}
}

func TestSubmitReleasesTransientBuffers(t *testing.T) {
	d, counting := newSharedDevice(t)
	ctx := context.Background()

	const w, h = 16, 8
	rgba := gpucore.TextureFormatRGBA8Unorm
	base := mustTexture(t, d, w, h, rgba)
	color := mustTexture(t, d, w, h, rgba)
	mask := mustTexture(t, d, w, h, gpucore.TextureFormatR8Unorm)
	out := mustTexture(t, d, w, h, rgba)
	output := mustTexture(t, d, w, h, rgba)
	if counting.buffers != 5 {
		t.Fatalf("live buffers = %d, want one per texture", counting.buffers)
	}

	blendPipe, err := d.CreatePipeline(gpucore.BlendProgram("normal"))
	if err != nil {
		t.Fatal(err)
	}
	brushPipe, err := d.CreatePipeline(gpucore.BrushProgram)
	if err != nil {
		t.Fatal(err)
	}

	enc := d.CreateCommandEncoder("frame")
	enc.Dispatch(brushPipe, gpucore.Bindings{
		Textures: []gpucore.TextureID{mask},
		Params:   gpucore.BrushParams{Width: w, Height: h, Radius: 3, Flow: 1, Aspect: 1}.Bytes(),
	}, 1, 1, 1)
	textures := make([]gpucore.TextureID, gpucore.BlendBindingCount)
	textures[gpucore.BlendBindingBase] = base
	textures[gpucore.BlendBindingColor] = color
	textures[gpucore.BlendBindingMask] = mask
	textures[gpucore.BlendBindingOut] = out
	enc.Dispatch(blendPipe, gpucore.Bindings{
		Textures: textures,
		Params:   gpucore.BlendParams{Width: w, Height: h, Opacity: 1}.Bytes(),
	}, gpucore.WorkgroupCount(w), gpucore.WorkgroupCount(h), 1)
	enc.Dispatch(blendPipe, gpucore.Bindings{Textures: textures}, 0, 1, 1)
	enc.CopyTexture(out, output)
	cmd := enc.Finish()
	if cmd.Label() != "frame" {
		t.Errorf("Label() = %q", cmd.Label())
	}
	d.Submit(cmd)

	if err := d.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	if _, err := d.ReadTexture(ctx, output); err != nil {
		t.Fatalf("ReadTexture: %v", err)
	}
	if counting.buffers != 5 {
		t.Errorf("live buffers = %d after submit, want 5", counting.buffers)
	}

	d.DestroyTexture(output)
	d.DestroyTexture(output)
	if counting.buffers != 4 || d.TextureCount() != 4 {
		t.Errorf("after DestroyTexture: buffers %d, textures %d", counting.buffers, d.TextureCount())
	}
}

func TestWriteTextureDoesNotWait(t *testing.T) {
	d, counting := openShared(t, func(q hal.Queue) hal.Queue { return pendingQueue{q} })

	src := mustTexture(t, d, 4, 4, gpucore.TextureFormatRGBA8Unorm)
	dst := mustTexture(t, d, 4, 4, gpucore.TextureFormatRGBA8Unorm)
	enc := d.CreateCommandEncoder("copy")
	enc.CopyTexture(src, dst)
	d.Submit(enc.Finish())

	d.WriteTexture(dst, bytes.Repeat([]byte{1, 2, 3, 4}, 16))
	d.WriteTexture(src, make([]byte, 64))
	if counting.waits != 0 {
		t.Errorf("WriteTexture waited for the queue %d times", counting.waits)
	}
	// Staging buffers live until their copies complete.
	if counting.buffers != 4 {
		t.Errorf("live buffers = %d, want 2 textures + 2 staging", counting.buffers)
	}

	if _, err := d.ReadTexture(context.Background(), dst); err != nil {
		t.Fatalf("ReadTexture: %v", err)
	}
	if counting.waits != 1 {
		t.Errorf("ReadTexture waits = %d, want 1", counting.waits)
	}
	if counting.buffers != 2 {
		t.Errorf("live buffers after readback = %d, want 2", counting.buffers)
	}
}

func TestSubmitInvalidCommandLosesDevice(t *testing.T) {
	tests := []struct {
		name   string
		record func(t *testing.T, d *Device, enc gpucore.CommandEncoder)
	}{
		{"binding count", func(t *testing.T, d *Device, enc gpucore.CommandEncoder) {
			p, _ := d.CreatePipeline(gpucore.BrushProgram)
			a := mustTexture(t, d, 2, 2, gpucore.TextureFormatR8Unorm)
			enc.Dispatch(p, gpucore.Bindings{Textures: []gpucore.TextureID{a, a}}, 1, 1, 1)
		}},
		{"unknown pipeline", func(_ *testing.T, _ *Device, enc gpucore.CommandEncoder) {
			enc.Dispatch(999, gpucore.Bindings{}, 1, 1, 1)
		}},
		{"copy mismatch", func(t *testing.T, d *Device, enc gpucore.CommandEncoder) {
			a := mustTexture(t, d, 2, 2, gpucore.TextureFormatR8Unorm)
			b := mustTexture(t, d, 2, 2, gpucore.TextureFormatRGBA8Unorm)
			enc.CopyTexture(a, b)
		}},
		{"unknown texture", func(t *testing.T, d *Device, enc gpucore.CommandEncoder) {
			a := mustTexture(t, d, 2, 2, gpucore.TextureFormatR8Unorm)
			enc.CopyTexture(a, 12345)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, counting := newSharedDevice(t)
			enc := d.CreateCommandEncoder(tt.name)
			tt.record(t, d, enc)
			live := counting.buffers
			d.Submit(enc.Finish())

			if err := d.WaitIdle(context.Background()); !errors.Is(err, gpucore.ErrDeviceLost) {
				t.Errorf("WaitIdle = %v, want ErrDeviceLost", err)
			}
			if counting.buffers != live {
				t.Errorf("failed submit leaked %d buffers", counting.buffers-live)
			}
		})
	}
}

func TestForeignCommandBufferPanics(t *testing.T) {
	d := newNoopDevice(t)
	defer func() {
		if recover() == nil {
			t.Error("Submit accepted a foreign command buffer")
		}
	}()
	d.Submit(foreign{})
}

type foreign struct{}

func (foreign) Label() string { return "foreign" }

func TestReadTextureContext(t *testing.T) {
	d := newNoopDevice(t)
	id := mustTexture(t, d, 1, 1, gpucore.TextureFormatR8Unorm)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.ReadTexture(ctx, id); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestNewFromProviderRejects(t *testing.T) {
	if _, err := NewFromProvider(plainProvider{}); !errors.Is(err, ErrNotHAL) {
		t.Errorf("provider without HAL accessors: %v", err)
	}
	if _, err := NewFromProvider(testProvider{}); !errors.Is(err, ErrNotHAL) {
		t.Errorf("provider with nil device: %v", err)
	}
}

func TestDestroy(t *testing.T) {
	d, counting := newSharedDevice(t)
	mustTexture(t, d, 4, 4, gpucore.TextureFormatRGBA8Unorm)
	if _, err := d.CreatePipeline(gpucore.BlendProgram("normal")); err != nil {
		t.Fatal(err)
	}

	d.Destroy()
	d.Destroy()
	if counting.buffers != 0 {
		t.Errorf("live buffers after Destroy = %d", counting.buffers)
	}
	if counting.destroyed {
		t.Error("Destroy released the shared HAL device")
	}
	if _, err := d.CreateTexture(gpucore.TextureDescriptor{Width: 1, Height: 1, Format: gpucore.TextureFormatR8Unorm}); !errors.Is(err, gpucore.ErrDeviceLost) {
		t.Errorf("CreateTexture after Destroy = %v", err)
	}
	if err := d.WaitIdle(context.Background()); !errors.Is(err, gpucore.ErrDeviceLost) {
		t.Errorf("WaitIdle after Destroy = %v", err)
	}
}
