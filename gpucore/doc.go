// Package gpucore defines the GPU execution surface that the ggpaint
// workspace composites on.
//
// A [Device] owns textures and compute pipelines and executes recorded
// command buffers on its queue. Work is submitted asynchronously and in
// order; [Device.ReadTexture] and [Device.WaitIdle] are the only calls
// that block on the queue.
//
//	            +-------------------+
//	            |  ggpaint.Workspace |
//	            +---------+---------+
//	                      |
//	               gpucore.Device
//	                      |
//	       +--------------+--------------+
//	       |                             |
//	+------v-------+            +--------v-------+
//	|   software   |            |  backend/wgpu  |
//	| (CPU queue)  |            | (wgpu, Vulkan) |
//	+--------------+            +----------------+
//
// # Programs
//
// Compute programs are addressed by name rather than by shader source so
// that every backend can provide its own implementation:
//
//   - "blend/<mode>" composites a color texture over a base texture through
//     a mask. Bindings are [BlendBindingBase], [BlendBindingColor],
//     [BlendBindingMask] and [BlendBindingOut]; uniforms are [BlendParams].
//   - "tools/brush" stamps a soft elliptical dab into a mask texture.
//     The only binding is the mask; uniforms are [BrushParams].
//   - "filters/gaussian" runs one direction of a separable Gaussian blur
//     from [FilterBindingSrc] to [FilterBindingDst]; uniforms are
//     [GaussianParams].
//
// All programs run with a workgroup size of [WorkgroupSize] x
// [WorkgroupSize] pixels.
package gpucore
