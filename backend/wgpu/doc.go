// Package wgpu implements [gpucore.Device] on the gogpu/wgpu HAL.
//
// Every texture is a storage buffer holding one packed u32 per pixel:
// r | g<<8 | b<<16 | a<<24 for RGBA8 and the value in the low byte for R8.
// Blend, brush and filter programs are WGSL compute shaders compiled to
// SPIR-V with gogpu/naga when the pipeline is first requested. A blend
// program is the shared template in shaders/blend.wgsl with the mode's
// blend_rgb body spliced in, so modes registered with blend.Register run on
// the GPU too.
//
// Importing the package registers the "vulkan" backend:
//
//	import _ "github.com/gogpu/ggpaint/backend/wgpu"
//
//	dev, err := backend.Get(backend.BackendVulkan)
//
// Build with the nogpu tag to leave the registration out.
//
// A host application that already owns a wgpu device shares it with
// [NewFromProvider]; the shared device is not destroyed by [Device.Destroy].
package wgpu
