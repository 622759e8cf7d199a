package ggpaint

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInvalidColor is returned by [ParseColor] for malformed colors.
var ErrInvalidColor = errors.New("ggpaint: invalid color")

// Config is the settings file of the ggpaint command.
type Config struct {
	Canvas  CanvasConfig  `toml:"canvas"`
	Backend BackendConfig `toml:"backend"`
	Brush   BrushConfig   `toml:"brush"`
	Log     LogConfig     `toml:"log"`
}

// CanvasConfig sizes new workspaces.
type CanvasConfig struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
	// Background fills the bottom layer of a new workspace, "#rrggbb[aa]".
	Background string `toml:"background"`
	Thumbnails int    `toml:"thumbnails"`
}

// BackendConfig selects the device.
type BackendConfig struct {
	// Name is a registered backend name, empty for the best available.
	Name    string `toml:"name"`
	Workers int    `toml:"workers"`
}

// BrushConfig holds the paint tool settings.
type BrushConfig struct {
	Color     string  `toml:"color"`
	Radius    float64 `toml:"radius"`
	Hardness  float64 `toml:"hardness"`
	Rotation  float64 `toml:"rotation"`
	Aspect    float64 `toml:"aspect"`
	Flow      float64 `toml:"flow"`
	Spacing   float64 `toml:"spacing"`
	Opacity   float32 `toml:"opacity"`
	BlendMode string  `toml:"blend_mode"`
}

// LogConfig sets the log level: "debug", "info", "warn" or "error".
type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() Config {
	p := NewPaintTool()
	return Config{
		Canvas:  CanvasConfig{Width: 1024, Height: 768, Background: "#ffffff", Thumbnails: 64},
		Backend: BackendConfig{},
		Brush: BrushConfig{
			Color:     FormatColor(p.Color),
			Radius:    p.Radius,
			Hardness:  p.Hardness,
			Rotation:  p.Rotation,
			Aspect:    p.Aspect,
			Flow:      p.Flow,
			Spacing:   p.Spacing,
			Opacity:   p.Opacity,
			BlendMode: p.BlendMode,
		},
		Log: LogConfig{Level: "warn"},
	}
}

// LoadConfig reads a TOML settings file over [DefaultConfig]. Keys absent
// from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("ggpaint: read config: %w", err)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		return cfg, fmt.Errorf("ggpaint: read config %s: unknown keys %v", path, keys)
	}
	return cfg, cfg.Validate()
}

// WriteConfig writes cfg to path as TOML.
func WriteConfig(path string, cfg Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("ggpaint: encode config: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// Validate checks every value that would otherwise fail later.
func (c Config) Validate() error {
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, c.Canvas.Width, c.Canvas.Height)
	}
	if _, err := ParseColor(c.Canvas.Background); err != nil {
		return err
	}
	if _, err := c.Brush.PaintTool(); err != nil {
		return err
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// PaintTool returns a paint tool with these settings.
func (b BrushConfig) PaintTool() (*PaintTool, error) {
	c, err := ParseColor(b.Color)
	if err != nil {
		return nil, err
	}
	if b.Radius <= 0 || b.Spacing <= 0 {
		return nil, fmt.Errorf("%w: radius %g, spacing %g", ErrInvalidBrush, b.Radius, b.Spacing)
	}
	if _, err := (LayerInfo{BlendMode: b.BlendMode}).normalize(); err != nil {
		return nil, err
	}
	return &PaintTool{
		Color:     c,
		Radius:    b.Radius,
		Hardness:  b.Hardness,
		Rotation:  b.Rotation,
		Aspect:    b.Aspect,
		Flow:      b.Flow,
		Spacing:   b.Spacing,
		Opacity:   b.Opacity,
		BlendMode: b.BlendMode,
	}, nil
}

// SlogLevel parses the level name.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("ggpaint: log level: %w", err)
	}
	return lvl, nil
}

// ParseColor parses "#rrggbb" or "#rrggbbaa". Colors without alpha are
// opaque.
func ParseColor(s string) (color.NRGBA, error) {
	h, ok := strings.CutPrefix(s, "#")
	if !ok || (len(h) != 6 && len(h) != 8) {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	c := color.NRGBA{R: b[0], G: b[1], B: b[2], A: 255}
	if len(b) == 4 {
		c.A = b[3]
	}
	return c, nil
}

// FormatColor returns c as "#rrggbbaa".
func FormatColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
