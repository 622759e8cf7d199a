package ggpaint

import "seehuhn.de/go/geom/vec"

// View is the presentation state of a workspace: the zoom factor and the
// workspace pixel shown at the center of the viewport. It is persisted but
// never affects compositing.
type View struct {
	Zoom   float32
	Center [2]float32
}

// DefaultView shows a width x height canvas at 1:1, centered.
func DefaultView(width, height int) View {
	return View{Zoom: 1, Center: [2]float32{float32(width) / 2, float32(height) / 2}}
}

// ToWorkspace maps a point in viewport coordinates to workspace pixel
// space. viewport is the viewport size.
func (v View) ToWorkspace(p, viewport vec.Vec2) vec.Vec2 {
	zoom := float64(v.Zoom)
	if zoom <= 0 {
		zoom = 1
	}
	center := vec.Vec2{X: float64(v.Center[0]), Y: float64(v.Center[1])}
	return center.Add(p.Sub(viewport.Mul(0.5)).Mul(1 / zoom))
}

// ToViewport maps a workspace point to viewport coordinates.
func (v View) ToViewport(p, viewport vec.Vec2) vec.Vec2 {
	zoom := float64(v.Zoom)
	if zoom <= 0 {
		zoom = 1
	}
	center := vec.Vec2{X: float64(v.Center[0]), Y: float64(v.Center[1])}
	return p.Sub(center).Mul(zoom).Add(viewport.Mul(0.5))
}

// ZoomAt scales the zoom by factor, keeping the workspace point under the
// viewport point anchor fixed.
func (v View) ZoomAt(factor float32, anchor, viewport vec.Vec2) View {
	if factor <= 0 {
		return v
	}
	fixed := v.ToWorkspace(anchor, viewport)
	out := v
	out.Zoom = v.Zoom * factor
	if out.Zoom <= 0 {
		out.Zoom = 1
	}
	moved := out.ToWorkspace(anchor, viewport)
	delta := fixed.Sub(moved)
	out.Center[0] += float32(delta.X)
	out.Center[1] += float32(delta.Y)
	return out
}
