package blend

import "math"

// builtins is indexed by Mode.
var builtins = [modeCount]Entry{
	Normal: {
		Name: "normal",
		Mix:  func(_, s float64) float64 { return s },
		WGSL: "return s;",
	},
	Multiply: {
		Name: "multiply",
		Mix:  func(b, s float64) float64 { return b * s },
		WGSL: "return b * s;",
	},
	Screen: {
		Name: "screen",
		Mix:  screen,
		WGSL: "return b + s - b * s;",
	},
	Overlay: {
		Name: "overlay",
		Mix:  func(b, s float64) float64 { return hardLight(s, b) },
		WGSL: "return select(s + (2.0 * b - 1.0) - s * (2.0 * b - 1.0), 2.0 * b * s, b <= vec3<f32>(0.5));",
	},
	Darken: {
		Name: "darken",
		Mix:  math.Min,
		WGSL: "return min(b, s);",
	},
	Lighten: {
		Name: "lighten",
		Mix:  math.Max,
		WGSL: "return max(b, s);",
	},
	ColorDodge: {
		Name: "color-dodge",
		Mix:  colorDodge,
		WGSL: `let q = min(vec3<f32>(1.0), b / max(vec3<f32>(1.0) - s, vec3<f32>(1e-6)));
	let r = select(q, vec3<f32>(1.0), s >= vec3<f32>(1.0));
	return select(r, vec3<f32>(0.0), b <= vec3<f32>(0.0));`,
	},
	ColorBurn: {
		Name: "color-burn",
		Mix:  colorBurn,
		WGSL: `let q = vec3<f32>(1.0) - min(vec3<f32>(1.0), (vec3<f32>(1.0) - b) / max(s, vec3<f32>(1e-6)));
	let r = select(q, vec3<f32>(0.0), s <= vec3<f32>(0.0));
	return select(r, vec3<f32>(1.0), b >= vec3<f32>(1.0));`,
	},
	HardLight: {
		Name: "hard-light",
		Mix:  hardLight,
		WGSL: "return select(b + (2.0 * s - 1.0) - b * (2.0 * s - 1.0), 2.0 * b * s, s <= vec3<f32>(0.5));",
	},
	SoftLight: {
		Name: "soft-light",
		Mix:  softLight,
		WGSL: `let d = select(sqrt(b), ((16.0 * b - 12.0) * b + 4.0) * b, b <= vec3<f32>(0.25));
	let lo = b - (vec3<f32>(1.0) - 2.0 * s) * b * (vec3<f32>(1.0) - b);
	let hi = b + (2.0 * s - 1.0) * (d - b);
	return select(hi, lo, s <= vec3<f32>(0.5));`,
	},
	Difference: {
		Name: "difference",
		Mix:  func(b, s float64) float64 { return math.Abs(b - s) },
		WGSL: "return abs(b - s);",
	},
	Exclusion: {
		Name: "exclusion",
		Mix:  func(b, s float64) float64 { return b + s - 2*b*s },
		WGSL: "return b + s - 2.0 * b * s;",
	},
	Add: {
		Name: "add",
		Mix:  func(b, s float64) float64 { return math.Min(1, b+s) },
		WGSL: "return min(vec3<f32>(1.0), b + s);",
	},
	Subtract: {
		Name: "subtract",
		Mix:  func(b, s float64) float64 { return math.Max(0, b-s) },
		WGSL: "return max(vec3<f32>(0.0), b - s);",
	},
}

func screen(b, s float64) float64 {
	return b + s - b*s
}

// hardLight: Multiply if s <= 0.5, Screen otherwise.
func hardLight(b, s float64) float64 {
	if s <= 0.5 {
		return 2 * b * s
	}
	return screen(b, 2*s-1)
}

func softLight(b, s float64) float64 {
	if s <= 0.5 {
		return b - (1-2*s)*b*(1-b)
	}
	var d float64
	if b <= 0.25 {
		d = ((16*b-12)*b + 4) * b
	} else {
		d = math.Sqrt(b)
	}
	return b + (2*s-1)*(d-b)
}

func colorDodge(b, s float64) float64 {
	switch {
	case b <= 0:
		return 0
	case s >= 1:
		return 1
	default:
		return math.Min(1, b/(1-s))
	}
}

func colorBurn(b, s float64) float64 {
	switch {
	case b >= 1:
		return 1
	case s <= 0:
		return 0
	default:
		return 1 - math.Min(1, (1-b)/s)
	}
}
