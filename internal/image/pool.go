package image

import (
	"image/png"
	"sync"
)

// EncoderPool retains PNG encoder scratch buffers between encodes.
// It implements png.EncoderBufferPool.
//
// Thread safety: All methods are safe for concurrent use.
type EncoderPool struct {
	mu      sync.Mutex
	free    []*png.EncoderBuffer
	maxSize int
}

var _ png.EncoderBufferPool = (*EncoderPool)(nil)

// NewEncoderPool creates a pool that retains at most maxSize buffers.
// A maxSize of 0 means unlimited.
func NewEncoderPool(maxSize int) *EncoderPool {
	return &EncoderPool{maxSize: maxSize}
}

// Get returns a retained buffer, or nil to let the encoder allocate one.
func (p *EncoderPool) Get() *png.EncoderBuffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.free)
	if n == 0 {
		return nil
	}
	buf := p.free[n-1]
	p.free[n-1] = nil
	p.free = p.free[:n-1]
	return buf
}

// Put returns a buffer to the pool. Buffers beyond the limit are dropped.
func (p *EncoderPool) Put(buf *png.EncoderBuffer) {
	if buf == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.maxSize > 0 && len(p.free) >= p.maxSize {
		return
	}
	p.free = append(p.free, buf)
}

// Len returns the number of retained buffers.
func (p *EncoderPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
