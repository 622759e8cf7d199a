//go:build !nogpu

package wgpu

import (
	"github.com/gogpu/ggpaint/backend"
	"github.com/gogpu/ggpaint/gpucore"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// init registers the Vulkan device on package import.
func init() {
	backend.Register(backend.BackendVulkan, func() (gpucore.Device, error) {
		return Open()
	})
}
