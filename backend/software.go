package backend

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gogpu/ggpaint/gpucore"
	"github.com/gogpu/ggpaint/internal/blend"
	"github.com/gogpu/ggpaint/internal/filter"
	"github.com/gogpu/ggpaint/internal/parallel"
)

// init registers the software backend on package import.
func init() {
	Register(BackendSoftware, func() (gpucore.Device, error) {
		return NewSoftwareDevice(), nil
	})
}

// rowsPerBand is the number of pixel rows one worker processes at a time.
const rowsPerBand = 4 * gpucore.WorkgroupSize

// SoftwareDevice is a CPU implementation of [gpucore.Device].
//
// Queued operations run in order on a dedicated goroutine; each dispatch is
// split into row bands that run on a worker pool. The first failing command
// marks the device lost: later commands are dropped and ReadTexture and
// WaitIdle report the failure.
type SoftwareDevice struct {
	mu        sync.Mutex
	textures  map[gpucore.TextureID]*texture
	pipelines map[gpucore.PipelineID]*kernel
	programs  map[string]gpucore.PipelineID
	nextID    atomic.Uint64

	// sendMu orders sends on ops against its close in Destroy.
	sendMu sync.RWMutex
	ops    chan func()
	exited chan struct{}
	pool   *parallel.WorkerPool

	errMu     sync.Mutex
	err       error
	destroyed atomic.Bool

	logger atomic.Pointer[slog.Logger]
}

var _ gpucore.Device = (*SoftwareDevice)(nil)

type texture struct {
	desc gpucore.TextureDescriptor
	data []byte
}

type kernel struct {
	program string
	run     func(d *SoftwareDevice, tex []*texture, params []byte, x, y uint32) error
}

// SoftwareOption configures a SoftwareDevice.
type SoftwareOption func(*softwareOptions)

type softwareOptions struct {
	workers    int
	queueDepth int
}

// WithWorkers sets the number of pool workers. Zero uses GOMAXPROCS.
func WithWorkers(n int) SoftwareOption {
	return func(o *softwareOptions) { o.workers = n }
}

// WithQueueDepth sets how many operations may be queued before
// submission blocks.
func WithQueueDepth(n int) SoftwareOption {
	return func(o *softwareOptions) { o.queueDepth = n }
}

// NewSoftwareDevice creates a CPU device and starts its queue.
func NewSoftwareDevice(opts ...SoftwareOption) *SoftwareDevice {
	o := softwareOptions{queueDepth: 256}
	for _, opt := range opts {
		opt(&o)
	}
	d := &SoftwareDevice{
		textures:  make(map[gpucore.TextureID]*texture),
		pipelines: make(map[gpucore.PipelineID]*kernel),
		programs:  make(map[string]gpucore.PipelineID),
		ops:       make(chan func(), max(o.queueDepth, 1)),
		exited:    make(chan struct{}),
		pool:      parallel.NewWorkerPool(o.workers),
	}
	d.logger.Store(NopLogger())
	go d.run()
	return d
}

func (d *SoftwareDevice) run() {
	defer close(d.exited)
	for op := range d.ops {
		op()
	}
}

// Name returns the backend identifier.
func (d *SoftwareDevice) Name() string { return BackendSoftware }

// SetLogger sets the device logger. Nil restores silent logging.
func (d *SoftwareDevice) SetLogger(l *slog.Logger) {
	if l == nil {
		l = NopLogger()
	}
	d.logger.Store(l)
}

func (d *SoftwareDevice) log() *slog.Logger { return d.logger.Load() }

// CreateTexture allocates a zero-filled texture.
func (d *SoftwareDevice) CreateTexture(desc gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	if d.destroyed.Load() {
		return gpucore.InvalidID, gpucore.ErrDeviceLost
	}
	if err := desc.Validate(); err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.TextureID(d.nextID.Add(1))
	d.mu.Lock()
	d.textures[id] = &texture{desc: desc, data: make([]byte, desc.Size())}
	d.mu.Unlock()
	d.log().Debug("software: texture created", "id", id, "label", desc.Label,
		"width", desc.Width, "height", desc.Height, "format", desc.Format)
	return id, nil
}

// DestroyTexture releases a texture after queued work that uses it.
func (d *SoftwareDevice) DestroyTexture(id gpucore.TextureID) {
	d.enqueue(func() {
		d.mu.Lock()
		delete(d.textures, id)
		d.mu.Unlock()
	})
}

// WriteTexture queues an upload of the full texture contents.
func (d *SoftwareDevice) WriteTexture(id gpucore.TextureID, data []byte) {
	src := bytes.Clone(data)
	d.enqueue(func() {
		if d.lost() {
			return
		}
		t, err := d.texture(id)
		if err == nil && len(src) != len(t.data) {
			err = fmt.Errorf("software: write texture %d: got %d bytes, want %d", id, len(src), len(t.data))
		}
		if err != nil {
			d.fail(err)
			return
		}
		copy(t.data, src)
	})
}

// CreatePipeline resolves a named program.
func (d *SoftwareDevice) CreatePipeline(program string) (gpucore.PipelineID, error) {
	if d.destroyed.Load() {
		return gpucore.InvalidID, gpucore.ErrDeviceLost
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.programs[program]; ok {
		return id, nil
	}
	k, err := resolveKernel(program)
	if err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.PipelineID(d.nextID.Add(1))
	d.pipelines[id] = k
	d.programs[program] = id
	return id, nil
}

func resolveKernel(program string) (*kernel, error) {
	switch program {
	case gpucore.BrushProgram:
		return &kernel{program: program, run: runBrush}, nil
	case gpucore.GaussianProgram:
		return &kernel{program: program, run: runGaussian}, nil
	}
	if mode, ok := gpucore.ParseBlendProgram(program); ok {
		e, ok := blend.Lookup(mode)
		if !ok {
			return nil, fmt.Errorf("%w: %q", gpucore.ErrUnknownProgram, program)
		}
		mix := e.Mix
		return &kernel{
			program: program,
			run: func(d *SoftwareDevice, tex []*texture, params []byte, _, y uint32) error {
				return runBlend(d, tex, params, y, mix)
			},
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", gpucore.ErrUnknownProgram, program)
}

// CreateCommandEncoder starts recording a command buffer.
func (d *SoftwareDevice) CreateCommandEncoder(label string) gpucore.CommandEncoder {
	return &softwareEncoder{dev: d, cmds: &softwareCommands{label: label}}
}

// Submit queues a command buffer recorded by this device.
func (d *SoftwareDevice) Submit(cmd gpucore.CommandBuffer) {
	sc, ok := cmd.(*softwareCommands)
	if !ok {
		panic(fmt.Sprintf("software: foreign command buffer %T", cmd))
	}
	d.enqueue(func() {
		for _, c := range sc.cmds {
			if d.lost() {
				return
			}
			if err := c(); err != nil {
				d.fail(fmt.Errorf("%s: %w", sc.label, err))
				return
			}
		}
	})
}

// ReadTexture waits for queued work and returns a copy of the texture.
func (d *SoftwareDevice) ReadTexture(ctx context.Context, id gpucore.TextureID) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	res := make(chan result, 1)
	if !d.enqueue(func() {
		if err := d.failure(); err != nil {
			res <- result{err: err}
			return
		}
		t, err := d.texture(id)
		if err != nil {
			res <- result{err: err}
			return
		}
		res <- result{data: bytes.Clone(t.data)}
	}) {
		return nil, gpucore.ErrDeviceLost
	}

	select {
	case r := <-res:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitIdle waits until every queued operation has run.
func (d *SoftwareDevice) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	if !d.enqueue(func() { close(done) }) {
		return gpucore.ErrDeviceLost
	}
	select {
	case <-done:
		return d.failure()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Destroy drains the queue and releases all resources.
// Destroy is safe to call multiple times.
func (d *SoftwareDevice) Destroy() {
	d.sendMu.Lock()
	if !d.destroyed.CompareAndSwap(false, true) {
		d.sendMu.Unlock()
		return
	}
	close(d.ops)
	d.sendMu.Unlock()
	<-d.exited
	d.pool.Close()

	d.mu.Lock()
	n := len(d.textures)
	clear(d.textures)
	clear(d.pipelines)
	clear(d.programs)
	d.mu.Unlock()
	d.log().Debug("software: device destroyed", "leaked_textures", n)
}

// TextureCount returns the number of live textures once queued destroys
// have run. It is intended for leak checks in tests.
func (d *SoftwareDevice) TextureCount(ctx context.Context) (int, error) {
	if err := d.WaitIdle(ctx); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.textures), nil
}

// enqueue reports false once the device is destroyed. Queued operations
// must not enqueue.
func (d *SoftwareDevice) enqueue(op func()) bool {
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()
	if d.destroyed.Load() {
		return false
	}
	d.ops <- op
	return true
}

func (d *SoftwareDevice) texture(id gpucore.TextureID) (*texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.textures[id]
	if !ok {
		return nil, fmt.Errorf("software: unknown texture %d", id)
	}
	return t, nil
}

func (d *SoftwareDevice) fail(err error) {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	if d.err == nil {
		d.err = fmt.Errorf("%w: %w", gpucore.ErrDeviceLost, err)
		d.log().Error("software: device lost", "err", err)
	}
}

func (d *SoftwareDevice) failure() error {
	d.errMu.Lock()
	defer d.errMu.Unlock()
	return d.err
}

func (d *SoftwareDevice) lost() bool { return d.failure() != nil }

type softwareEncoder struct {
	dev  *SoftwareDevice
	cmds *softwareCommands
}

type softwareCommands struct {
	label string
	cmds  []func() error
}

func (c *softwareCommands) Label() string { return c.label }

func (e *softwareEncoder) Dispatch(pipeline gpucore.PipelineID, b gpucore.Bindings, x, y, z uint32) {
	ids := append([]gpucore.TextureID(nil), b.Textures...)
	params := bytes.Clone(b.Params)
	d := e.dev
	e.cmds.cmds = append(e.cmds.cmds, func() error {
		if x == 0 || y == 0 || z == 0 {
			return nil
		}
		d.mu.Lock()
		k, ok := d.pipelines[pipeline]
		d.mu.Unlock()
		if !ok {
			return fmt.Errorf("dispatch: unknown pipeline %d", pipeline)
		}
		tex := make([]*texture, len(ids))
		for i, id := range ids {
			t, err := d.texture(id)
			if err != nil {
				return fmt.Errorf("dispatch %s: binding %d: %w", k.program, i, err)
			}
			tex[i] = t
		}
		if err := k.run(d, tex, params, x, y); err != nil {
			return fmt.Errorf("dispatch %s: %w", k.program, err)
		}
		return nil
	})
}

func (e *softwareEncoder) CopyTexture(src, dst gpucore.TextureID) {
	d := e.dev
	e.cmds.cmds = append(e.cmds.cmds, func() error {
		s, err := d.texture(src)
		if err != nil {
			return fmt.Errorf("copy: %w", err)
		}
		t, err := d.texture(dst)
		if err != nil {
			return fmt.Errorf("copy: %w", err)
		}
		if s.desc.Width != t.desc.Width || s.desc.Height != t.desc.Height || s.desc.Format != t.desc.Format {
			return fmt.Errorf("copy: texture %d and %d differ", src, dst)
		}
		copy(t.data, s.data)
		return nil
	})
}

func (e *softwareEncoder) Finish() gpucore.CommandBuffer {
	return e.cmds
}

func runBlend(d *SoftwareDevice, tex []*texture, params []byte, y uint32, mix blend.MixFunc) error {
	if len(tex) != gpucore.BlendBindingCount {
		return fmt.Errorf("got %d bindings, want %d", len(tex), gpucore.BlendBindingCount)
	}
	p, err := gpucore.DecodeBlendParams(params)
	if err != nil {
		return err
	}
	base := tex[gpucore.BlendBindingBase]
	src := tex[gpucore.BlendBindingColor]
	mask := tex[gpucore.BlendBindingMask]
	out := tex[gpucore.BlendBindingOut]

	w, h := base.desc.Width, base.desc.Height
	for _, t := range []*texture{src, out} {
		if t.desc.Format != gpucore.TextureFormatRGBA8Unorm || t.desc.Width != w || t.desc.Height != h {
			return fmt.Errorf("color binding %q does not match base", t.desc.Label)
		}
	}
	if mask.desc.Format != gpucore.TextureFormatR8Unorm || mask.desc.Width != w || mask.desc.Height != h {
		return fmt.Errorf("mask binding %q does not match base", mask.desc.Label)
	}

	rows := min(h, int(y)*gpucore.WorkgroupSize)
	opacity := float64(p.Opacity)
	d.pool.ForRows(rows, rowsPerBand, func(y0, y1 int) {
		blend.Rows(out.data, base.data, src.data, mask.data, w, y0, y1, opacity, mix)
	})
	return nil
}

func runBrush(d *SoftwareDevice, tex []*texture, params []byte, x, y uint32) error {
	if len(tex) != 1 {
		return fmt.Errorf("got %d bindings, want 1", len(tex))
	}
	p, err := gpucore.DecodeBrushParams(params)
	if err != nil {
		return err
	}
	mask := tex[0]
	if mask.desc.Format != gpucore.TextureFormatR8Unorm {
		return fmt.Errorf("brush target %q is %v", mask.desc.Label, mask.desc.Format)
	}
	w, h := mask.desc.Width, mask.desc.Height
	x0, y0 := int(p.OriginX), int(p.OriginY)
	x1 := min(w, x0+int(x)*gpucore.WorkgroupSize)
	y1 := min(h, y0+int(y)*gpucore.WorkgroupSize)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}

	d.pool.ForRows(y1-y0, rowsPerBand, func(r0, r1 int) {
		for py := y0 + r0; py < y0+r1; py++ {
			row := mask.data[py*w : (py+1)*w]
			for px := x0; px < x1; px++ {
				v := uint8(math.Floor(min(1, p.Coverage(px, py))*255 + 0.5))
				if v > row[px] {
					row[px] = v
				}
			}
		}
	})
	return nil
}

func runGaussian(d *SoftwareDevice, tex []*texture, params []byte, _, y uint32) error {
	if len(tex) != gpucore.FilterBindingCount {
		return fmt.Errorf("got %d bindings, want %d", len(tex), gpucore.FilterBindingCount)
	}
	p, err := gpucore.DecodeGaussianParams(params)
	if err != nil {
		return err
	}
	src, dst := tex[gpucore.FilterBindingSrc], tex[gpucore.FilterBindingDst]
	if src == dst {
		return fmt.Errorf("source and destination are both %q", src.desc.Label)
	}
	for _, t := range []*texture{src, dst} {
		if t.desc.Format != gpucore.TextureFormatRGBA8Unorm {
			return fmt.Errorf("filter binding %q is %v", t.desc.Label, t.desc.Format)
		}
	}
	w, h := src.desc.Width, src.desc.Height
	if dst.desc.Width != w || dst.desc.Height != h {
		return fmt.Errorf("filter destination %q does not match source", dst.desc.Label)
	}

	kernel := filter.CachedGaussianKernel(float64(p.Radius))
	rows := min(h, int(y)*gpucore.WorkgroupSize)
	d.pool.ForRows(rows, rowsPerBand, func(y0, y1 int) {
		filter.Convolve(dst.data, src.data, w, h, kernel, p.Vertical, y0, y1)
	})
	return nil
}
