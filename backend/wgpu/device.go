package wgpu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/ggpaint/backend"
	"github.com/gogpu/ggpaint/gpucore"
)

// ErrNoAdapter is returned when a HAL backend exposes no adapters.
var ErrNoAdapter = errors.New("wgpu: no GPU adapters found")

// ErrNotHAL is returned by NewFromProvider for providers that do not expose
// their HAL device and queue.
var ErrNotHAL = errors.New("wgpu: provider does not expose HAL types")

// Device is a [gpucore.Device] on a wgpu HAL device.
//
// Command buffers are encoded and submitted by Submit. Resources a
// submission uses stay alive until the queue reports it complete.
// WriteTexture stages its data in a fresh buffer and submits a copy, so
// uploads stay in queue order without waiting. Only ReadTexture and
// WaitIdle block.
type Device struct {
	mu sync.Mutex

	name     string
	instance hal.Instance // nil for shared devices
	device   hal.Device
	queue    hal.Queue
	shared   bool

	textures  map[gpucore.TextureID]*texture
	pipelines map[gpucore.PipelineID]*pipeline
	programs  map[string]gpucore.PipelineID
	nextID    uint64

	submitted uint64
	retired   []retired

	err       error
	destroyed bool

	logger atomic.Pointer[slog.Logger]
}

var _ gpucore.Device = (*Device)(nil)

type texture struct {
	desc gpucore.TextureDescriptor
	buf  hal.Buffer
}

// retired holds what a submission needs until it completes.
type retired struct {
	index   uint64
	encoder hal.CommandEncoder
	cmd     hal.CommandBuffer
	buffers []hal.Buffer
	groups  []hal.BindGroup
}

// Open opens the preferred adapter of the Vulkan HAL backend.
func Open() (*Device, error) {
	b, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan HAL not registered", backend.ErrBackendNotAvailable)
	}
	return OpenBackend(backend.BackendVulkan, b)
}

// OpenBackend creates an instance of a HAL backend and opens its preferred
// adapter: the first discrete or integrated GPU, else the first adapter.
func OpenBackend(name string, b hal.Backend) (*Device, error) {
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}
	d := newDevice(name, openDev.Device, openDev.Queue)
	d.instance = instance
	d.log().Info("wgpu: device opened", "backend", name, "adapter", selected.Info.Name)
	return d, nil
}

// NewFromProvider shares the device of a host application. The provider
// must implement HalDevice() any and HalQueue() any returning hal.Device
// and hal.Queue. Destroy releases only resources this Device created.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNotHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNotHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNotHAL)
	}
	d := newDevice("shared", device, queue)
	d.shared = true
	d.log().Info("wgpu: using shared device", "adapter", provider.AdapterInfo().Name)
	return d, nil
}

func newDevice(name string, device hal.Device, queue hal.Queue) *Device {
	d := &Device{
		name:      name,
		device:    device,
		queue:     queue,
		textures:  make(map[gpucore.TextureID]*texture),
		pipelines: make(map[gpucore.PipelineID]*pipeline),
		programs:  make(map[string]gpucore.PipelineID),
	}
	d.logger.Store(backend.NopLogger())
	return d
}

// Name returns the backend identifier.
func (d *Device) Name() string { return d.name }

// SetLogger sets the device logger. Nil restores silent logging.
func (d *Device) SetLogger(l *slog.Logger) {
	if l == nil {
		l = backend.NopLogger()
	}
	d.logger.Store(l)
}

func (d *Device) log() *slog.Logger { return d.logger.Load() }

// CreateTexture allocates a zero-filled storage buffer.
func (d *Device) CreateTexture(desc gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	if err := desc.Validate(); err != nil {
		return gpucore.InvalidID, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return gpucore.InvalidID, err
	}

	size := bufferSize(desc)
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create texture %q: %w", desc.Label, err)
	}
	if err := d.queue.WriteBuffer(buf, 0, make([]byte, size)); err != nil {
		d.device.DestroyBuffer(buf)
		return gpucore.InvalidID, fmt.Errorf("wgpu: clear texture %q: %w", desc.Label, err)
	}
	d.nextID++
	id := gpucore.TextureID(d.nextID)
	d.textures[id] = &texture{desc: desc, buf: buf}
	d.log().Debug("wgpu: texture created", "id", id, "label", desc.Label,
		"width", desc.Width, "height", desc.Height, "format", desc.Format)
	return id, nil
}

// DestroyTexture releases a texture once submissions that use it complete.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok {
		return
	}
	delete(d.textures, id)
	if d.destroyed {
		return
	}
	d.retire(retired{index: d.submitted, buffers: []hal.Buffer{t.buf}})
	d.reclaim()
}

// WriteTexture uploads the full texture contents.
func (d *Device) WriteTexture(id gpucore.TextureID, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.usable() != nil {
		return
	}
	t, ok := d.textures[id]
	if !ok {
		d.fail(fmt.Errorf("write texture %d: unknown texture", id))
		return
	}
	if len(data) != t.desc.Size() {
		d.fail(fmt.Errorf("write texture %d: got %d bytes, want %d", id, len(data), t.desc.Size()))
		return
	}
	if err := d.upload(t.buf, packTexels(t.desc.Format, data)); err != nil {
		d.fail(fmt.Errorf("write texture %d: %w", id, err))
	}
}

// CreatePipeline compiles a named program on first use.
func (d *Device) CreatePipeline(program string) (gpucore.PipelineID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return gpucore.InvalidID, err
	}
	if id, ok := d.programs[program]; ok {
		return id, nil
	}
	p, err := createPipeline(d.device, program)
	if err != nil {
		return gpucore.InvalidID, err
	}
	d.nextID++
	id := gpucore.PipelineID(d.nextID)
	d.pipelines[id] = p
	d.programs[program] = id
	d.log().Debug("wgpu: pipeline created", "program", program, "id", id)
	return id, nil
}

// CreateCommandEncoder starts recording a command buffer.
func (d *Device) CreateCommandEncoder(label string) gpucore.CommandEncoder {
	return &encoder{cmds: &commands{label: label}}
}

// Submit encodes a recorded command buffer and submits it to the queue.
// Failures mark the device lost.
func (d *Device) Submit(cmd gpucore.CommandBuffer) {
	cb, ok := cmd.(*commands)
	if !ok {
		panic(fmt.Sprintf("wgpu: foreign command buffer %T", cmd))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.usable() != nil {
		return
	}
	if err := d.submit(cb); err != nil {
		d.fail(fmt.Errorf("%s: %w", cb.label, err))
	}
}

// ReadTexture waits for submitted work and returns a copy of the texture.
func (d *Device) ReadTexture(ctx context.Context, id gpucore.TextureID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return nil, err
	}
	t, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("wgpu: unknown texture %d", id)
	}
	words, err := d.readBuffer(t.buf, bufferSize(t.desc))
	if err != nil {
		return nil, d.fail(fmt.Errorf("read texture %d: %w", id, err))
	}
	return unpackTexels(t.desc.Format, words), nil
}

// WaitIdle waits until every submission has completed.
func (d *Device) WaitIdle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usable(); err != nil {
		return err
	}
	return d.drain()
}

// Destroy waits for the queue and releases every resource created by the
// device. Shared HAL devices stay open. Destroy is safe to call multiple
// times.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	if err := d.device.WaitIdle(); err != nil {
		d.log().Warn("wgpu: wait idle on destroy", "err", err)
	}
	d.destroyed = true
	d.reclaimAll()
	for _, t := range d.textures {
		d.device.DestroyBuffer(t.buf)
	}
	for _, p := range d.pipelines {
		p.destroy(d.device)
	}
	n := len(d.textures)
	clear(d.textures)
	clear(d.pipelines)
	clear(d.programs)

	if !d.shared {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.log().Debug("wgpu: device destroyed", "leaked_textures", n)
}

// TextureCount returns the number of live textures. It is intended for leak
// checks in tests.
func (d *Device) TextureCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.textures)
}

func (d *Device) usable() error {
	if d.destroyed {
		return gpucore.ErrDeviceLost
	}
	return d.err
}

func (d *Device) fail(err error) error {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %w", gpucore.ErrDeviceLost, err)
		d.log().Error("wgpu: device lost", "err", err)
	}
	return d.err
}

// submit encodes cb into one HAL command buffer.
func (d *Device) submit(cb *commands) error {
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: cb.label})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	r := retired{encoder: enc}
	if err := enc.BeginEncoding(cb.label); err != nil {
		d.release(r)
		return fmt.Errorf("begin encoding: %w", err)
	}
	for _, c := range cb.cmds {
		if err := d.encode(enc, c, &r); err != nil {
			enc.DiscardEncoding()
			d.release(r)
			return err
		}
	}
	r.cmd, err = enc.EndEncoding()
	if err != nil {
		d.release(r)
		return fmt.Errorf("end encoding: %w", err)
	}
	r.index, err = d.queue.Submit([]hal.CommandBuffer{r.cmd})
	if err != nil {
		d.release(r)
		return fmt.Errorf("submit: %w", err)
	}
	d.submitted = max(d.submitted, r.index)
	d.retire(r)
	d.reclaim()
	return nil
}

func (d *Device) encode(enc hal.CommandEncoder, c command, r *retired) error {
	if c.copy {
		src, err := d.texture(c.src)
		if err != nil {
			return fmt.Errorf("copy: %w", err)
		}
		dst, err := d.texture(c.dst)
		if err != nil {
			return fmt.Errorf("copy: %w", err)
		}
		if src.desc.Width != dst.desc.Width || src.desc.Height != dst.desc.Height || src.desc.Format != dst.desc.Format {
			return fmt.Errorf("copy: texture %d and %d differ", c.src, c.dst)
		}
		enc.CopyBufferToBuffer(src.buf, dst.buf, []hal.BufferCopy{{Size: bufferSize(src.desc)}})
		enc.TransitionBuffers([]hal.BufferBarrier{{
			Buffer: dst.buf,
			Usage: hal.BufferUsageTransition{
				OldUsage: gputypes.BufferUsageCopyDst,
				NewUsage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
			},
		}})
		return nil
	}

	if c.x == 0 || c.y == 0 || c.z == 0 {
		return nil
	}
	p, ok := d.pipelines[c.pipeline]
	if !ok {
		return fmt.Errorf("dispatch: unknown pipeline %d", c.pipeline)
	}
	if len(c.textures) != len(p.writes) {
		return fmt.Errorf("dispatch %s: got %d bindings, want %d", p.program, len(c.textures), len(p.writes))
	}

	entries := make([]gputypes.BindGroupEntry, 0, len(c.textures)+1)
	var written []hal.Buffer
	for i, id := range c.textures {
		t, err := d.texture(id)
		if err != nil {
			return fmt.Errorf("dispatch %s: binding %d: %w", p.program, i, err)
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(i), //nolint:gosec // binding count is small
			Resource: gputypes.BufferBinding{Buffer: t.buf.NativeHandle(), Size: bufferSize(t.desc)},
		})
		if p.writes[i] {
			written = append(written, t.buf)
		}
	}

	size := uniformSize(len(c.params))
	uniform, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: p.program + " params",
		Size:  size,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("dispatch %s: create uniform buffer: %w", p.program, err)
	}
	r.buffers = append(r.buffers, uniform)
	params := make([]byte, size)
	copy(params, c.params)
	if err := d.queue.WriteBuffer(uniform, 0, params); err != nil {
		return fmt.Errorf("dispatch %s: write uniforms: %w", p.program, err)
	}
	entries = append(entries, gputypes.BindGroupEntry{
		Binding:  uint32(len(c.textures)), //nolint:gosec // binding count is small
		Resource: gputypes.BufferBinding{Buffer: uniform.NativeHandle(), Size: size},
	})

	group, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   p.program,
		Layout:  p.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("dispatch %s: create bind group: %w", p.program, err)
	}
	r.groups = append(r.groups, group)

	pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: p.program})
	pass.SetPipeline(p.compute)
	pass.SetBindGroup(0, group, nil)
	pass.Dispatch(c.x, c.y, c.z)
	pass.End()

	barriers := make([]hal.BufferBarrier, 0, len(written))
	for _, b := range written {
		barriers = append(barriers, hal.BufferBarrier{
			Buffer: b,
			Usage: hal.BufferUsageTransition{
				OldUsage: gputypes.BufferUsageStorage,
				NewUsage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
			},
		})
	}
	enc.TransitionBuffers(barriers)
	return nil
}

// readBuffer copies a storage buffer to a mappable staging buffer, waits
// for the copy and returns the contents.
func (d *Device) readBuffer(src hal.Buffer, size uint64) ([]byte, error) {
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	if err := d.submitCopy("readback", src, staging, size, retired{}, nil); err != nil {
		return nil, err
	}
	if err := d.drain(); err != nil {
		return nil, err
	}

	m, err := d.device.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, fmt.Errorf("map staging buffer: %w", err)
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(m.Ptr), size))
	if err := d.device.UnmapBuffer(staging); err != nil {
		return nil, fmt.Errorf("unmap staging buffer: %w", err)
	}
	return out, nil
}

// upload writes data to a new staging buffer and submits a copy into dst.
// The staging buffer is released with the submission.
func (d *Device) upload(dst hal.Buffer, data []byte) error {
	size := uint64(len(data))
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "upload staging",
		Size:  size,
		Usage: gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	r := retired{buffers: []hal.Buffer{staging}}
	if err := d.queue.WriteBuffer(staging, 0, data); err != nil {
		d.release(r)
		return fmt.Errorf("write staging buffer: %w", err)
	}
	return d.submitCopy("upload", staging, dst, size, r, []hal.BufferBarrier{{
		Buffer: dst,
		Usage: hal.BufferUsageTransition{
			OldUsage: gputypes.BufferUsageCopyDst,
			NewUsage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
		},
	}})
}

// submitCopy submits one buffer copy followed by barriers. r carries
// resources to release once the copy completes.
func (d *Device) submitCopy(label string, src, dst hal.Buffer, size uint64, r retired, barriers []hal.BufferBarrier) error {
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		d.release(r)
		return fmt.Errorf("create command encoder: %w", err)
	}
	r.encoder = enc
	if err := enc.BeginEncoding(label); err != nil {
		d.release(r)
		return fmt.Errorf("begin encoding: %w", err)
	}
	enc.CopyBufferToBuffer(src, dst, []hal.BufferCopy{{Size: size}})
	if len(barriers) > 0 {
		enc.TransitionBuffers(barriers)
	}
	if r.cmd, err = enc.EndEncoding(); err != nil {
		d.release(r)
		return fmt.Errorf("end encoding: %w", err)
	}
	if r.index, err = d.queue.Submit([]hal.CommandBuffer{r.cmd}); err != nil {
		d.release(r)
		return fmt.Errorf("submit: %w", err)
	}
	d.submitted = max(d.submitted, r.index)
	d.retire(r)
	d.reclaim()
	return nil
}

// drain waits for every submission and releases retired resources.
func (d *Device) drain() error {
	if d.queue.PollCompleted() < d.submitted {
		if err := d.device.WaitIdle(); err != nil {
			return d.fail(fmt.Errorf("wait idle: %w", err))
		}
	}
	d.reclaimAll()
	return nil
}

func (d *Device) retire(r retired) {
	d.retired = append(d.retired, r)
}

// reclaim releases resources of completed submissions.
func (d *Device) reclaim() {
	done := d.queue.PollCompleted()
	d.retired = slices.DeleteFunc(d.retired, func(r retired) bool {
		if r.index > done {
			return false
		}
		d.release(r)
		return true
	})
}

func (d *Device) reclaimAll() {
	for _, r := range d.retired {
		d.release(r)
	}
	d.retired = d.retired[:0]
}

func (d *Device) release(r retired) {
	for _, g := range r.groups {
		d.device.DestroyBindGroup(g)
	}
	for _, b := range r.buffers {
		d.device.DestroyBuffer(b)
	}
	if r.cmd != nil {
		d.device.FreeCommandBuffer(r.cmd)
	}
	if r.encoder != nil {
		r.encoder.Destroy()
	}
}

func (d *Device) texture(id gpucore.TextureID) (*texture, error) {
	t, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("unknown texture %d", id)
	}
	return t, nil
}

// command is one recorded dispatch or copy.
type command struct {
	copy     bool
	src, dst gpucore.TextureID

	pipeline gpucore.PipelineID
	textures []gpucore.TextureID
	params   []byte
	x, y, z  uint32
}

type commands struct {
	label string
	cmds  []command
}

func (c *commands) Label() string { return c.label }

type encoder struct {
	cmds *commands
}

func (e *encoder) Dispatch(p gpucore.PipelineID, b gpucore.Bindings, x, y, z uint32) {
	e.cmds.cmds = append(e.cmds.cmds, command{
		pipeline: p,
		textures: slices.Clone(b.Textures),
		params:   slices.Clone(b.Params),
		x:        x, y: y, z: z,
	})
}

func (e *encoder) CopyTexture(src, dst gpucore.TextureID) {
	e.cmds.cmds = append(e.cmds.cmds, command{copy: true, src: src, dst: dst})
}

func (e *encoder) Finish() gpucore.CommandBuffer { return e.cmds }
