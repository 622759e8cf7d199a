// Package backend provides the GPU device implementations a workspace can
// composite on, selected through a name-keyed registry.
//
// # Backend Registration
//
// Backends are registered via init() functions and selected at runtime.
// The software device is registered when this package is imported; the
// Vulkan device registers itself from backend/wgpu:
//
//	import _ "github.com/gogpu/ggpaint/backend/wgpu"
//
// # Backend Selection
//
// Use Default to open the best available device, or Get to request one
// by name:
//
//	dev, err := backend.Default()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Destroy()
//
//	dev, err = backend.Get(backend.BackendSoftware)
//
// # Software Device
//
// [SoftwareDevice] executes the blend and brush programs on the CPU. Its
// queue runs on a dedicated goroutine and spreads each dispatch across a
// worker pool, so submission is asynchronous exactly like a GPU queue.
package backend
