package gpucore

import (
	"context"
	"errors"
)

// Common device errors.
var (
	// ErrInvalidSize is returned when a texture has a non-positive dimension.
	ErrInvalidSize = errors.New("gpucore: invalid texture size")

	// ErrUnsupportedFormat is returned for texture formats a device cannot store.
	ErrUnsupportedFormat = errors.New("gpucore: unsupported texture format")

	// ErrUnknownProgram is returned by CreatePipeline for unregistered programs.
	ErrUnknownProgram = errors.New("gpucore: unknown program")

	// ErrDeviceLost is returned once a device has failed or been destroyed.
	ErrDeviceLost = errors.New("gpucore: device lost")
)

// Device is the GPU execution surface.
//
// Resource creation is synchronous. WriteTexture, DestroyTexture and Submit
// are queued and execute in call order. ReadTexture and WaitIdle block until
// every previously queued operation has completed.
//
// A Device is used from one goroutine at a time.
type Device interface {
	// Name returns the backend identifier (e.g., "software", "vulkan").
	Name() string

	// CreateTexture allocates a zero-filled texture.
	CreateTexture(desc TextureDescriptor) (TextureID, error)

	// DestroyTexture releases a texture after all queued work that uses it.
	DestroyTexture(id TextureID)

	// WriteTexture queues an upload of the full texture contents. The data
	// is copied before WriteTexture returns.
	WriteTexture(id TextureID, data []byte)

	// CreatePipeline returns the pipeline for a named program, creating it
	// on first use.
	CreatePipeline(program string) (PipelineID, error)

	// CreateCommandEncoder starts recording a command buffer.
	CreateCommandEncoder(label string) CommandEncoder

	// Submit queues a finished command buffer.
	Submit(cmd CommandBuffer)

	// ReadTexture waits for queued work and returns a copy of the texture
	// contents.
	ReadTexture(ctx context.Context, id TextureID) ([]byte, error)

	// WaitIdle waits until the queue is empty.
	WaitIdle(ctx context.Context) error

	// Destroy releases every resource owned by the device.
	Destroy()
}

// CommandEncoder records GPU work for later submission.
type CommandEncoder interface {
	// Dispatch runs a compute pipeline over x*y*z workgroups.
	Dispatch(pipeline PipelineID, bindings Bindings, x, y, z uint32)

	// CopyTexture copies src into dst. Both textures must have the same
	// descriptor.
	CopyTexture(src, dst TextureID)

	// Finish ends recording.
	Finish() CommandBuffer
}

// CommandBuffer is a recorded, device-specific list of commands.
type CommandBuffer interface {
	Label() string
}
