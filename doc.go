// Package ggpaint is a layered raster editing workspace composited on a GPU
// compute device.
//
// # Overview
//
// A [Workspace] holds an ordered stack of equally sized layers. Each layer
// owns three textures on a [gpucore.Device]: its color (RGBA8, straight
// alpha), its mask (8-bit, 255 = full contribution) and its running total,
// the composite of every visible layer from the bottom up to and including
// it. Index 0 is the bottom of the stack.
//
// Mutations mark running totals stale from the lowest changed layer and
// recompute only from there, so editing near the top of a deep stack stays
// cheap.
//
// # Quick Start
//
//	dev, err := backend.Default()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Destroy()
//
//	ws, err := ggpaint.New(dev, 512, 512)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer ws.Close()
//
//	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
//	ws.CreateLayer(ggpaint.LayerSpec{Info: ggpaint.NewLayerInfo("Background"), Fill: &white})
//
//	ws.SetTool(ggpaint.NewPaintTool())
//	ws.HandleEvent(ggpaint.Event{Kind: ggpaint.PointerDown, Pos: vec.Vec2{X: 100, Y: 100}})
//	ws.HandleEvent(ggpaint.Event{Kind: ggpaint.PointerMove, Pos: vec.Vec2{X: 300, Y: 200}})
//	ws.HandleEvent(ggpaint.Event{Kind: ggpaint.PointerUp, Pos: vec.Vec2{X: 300, Y: 200}})
//
//	err = ws.SaveFile(ctx, "drawing.ggp")
//
// # Compositing
//
// For every visible layer, with a = opacity * mask / 255:
//
//	rgb   = base.rgb*(1-a) + mix(base.rgb, color.rgb)*a
//	alpha = base.a*(1-a) + color.a*a
//
// where mix is the layer's blend mode and base is the running total of the
// nearest visible layer below, or transparent black. Hidden layers are
// skipped. Blend modes are registered by name; see [BlendModes] and
// [RegisterBlendMode].
//
// [Workspace.ApplyFilter] runs a device filter such as [GaussianBlur] over
// a layer's color and recomposites from that layer.
//
// # Files
//
// [Workspace.Save] writes a length-prefixed TOML metadata block followed by
// a color PNG and a mask PNG per layer. [Load] validates the whole file
// before allocating anything on the device.
//
// # Devices
//
// Devices come from the backend package: "software" runs every program on
// the CPU and is always available; "vulkan" runs WGSL compute programs
// through gogpu/wgpu.
package ggpaint

// Version is the current version of the library.
const Version = "0.1.0"
