// Command ggpaint builds or loads a layered workspace, paints strokes into
// it and saves or exports the result.
//
// Usage:
//
//	ggpaint [flags]
//
// Examples:
//
//	ggpaint -stroke "10,10 200,120 300,40" -save drawing.ggp -export drawing.png
//	ggpaint -load drawing.ggp -brush-color "#ff0000" -stroke "0,0 100,100" -save drawing.ggp
//	ggpaint -import photo.jpg -blur 2.5 -export soft.png
//	ggpaint -import photo.jpg -layers
//	ggpaint -write-config ggpaint.toml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"seehuhn.de/go/geom/vec"

	"github.com/gogpu/ggpaint"
	"github.com/gogpu/ggpaint/backend"
	"github.com/gogpu/ggpaint/gpucore"

	// Registers the Vulkan device unless built with -tags nogpu.
	_ "github.com/gogpu/ggpaint/backend/wgpu"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ggpaint: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	config      string
	writeConfig string
	backend     string
	load        string
	importPath  string
	stroke      string
	brushColor  string
	brushRadius float64
	blur        float64
	save        string
	export      string
	layers      bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("ggpaint", flag.ContinueOnError)
	fs.StringVar(&f.config, "config", "", "TOML settings `file`")
	fs.StringVar(&f.writeConfig, "write-config", "", "write the effective settings to `file` and exit")
	fs.StringVar(&f.backend, "backend", "", "device backend (overrides the settings file)")
	fs.StringVar(&f.load, "load", "", "load a workspace `file`")
	fs.StringVar(&f.importPath, "import", "", "start from an `image` file")
	fs.StringVar(&f.stroke, "stroke", "", "paint a stroke through space separated `x,y` points")
	fs.StringVar(&f.brushColor, "brush-color", "", "brush color, #rrggbb[aa]")
	fs.Float64Var(&f.brushRadius, "brush-radius", 0, "brush radius in pixels")
	fs.Float64Var(&f.blur, "blur", 0, "gaussian blur `radius` applied to the selected layer")
	fs.StringVar(&f.save, "save", "", "save the workspace to `file`")
	fs.StringVar(&f.export, "export", "", "export the composite to `file` (.png, .bmp, .tif)")
	fs.BoolVar(&f.layers, "layers", false, "print the layer stack")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.load != "" && f.importPath != "" {
		return f, errors.New("-load and -import are exclusive")
	}
	return f, nil
}

func run(ctx context.Context, args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	if f.writeConfig != "" {
		return ggpaint.WriteConfig(f.writeConfig, cfg)
	}

	level, _ := cfg.Log.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ggpaint.SetLogger(logger)

	dev, err := openDevice(cfg.Backend)
	if err != nil {
		return err
	}
	defer dev.Destroy()
	logger.Info("device opened", "backend", dev.Name())

	ws, err := openWorkspace(ctx, dev, f, cfg)
	if err != nil {
		return err
	}
	defer ws.Close()

	if f.stroke != "" {
		if err := paint(ws, cfg.Brush, f.stroke); err != nil {
			return err
		}
	}
	if f.blur != 0 {
		i := ws.Selected()
		if i < 0 {
			return errors.New("-blur: no layer selected")
		}
		if err := ws.ApplyFilter(i, ggpaint.GaussianBlur{Radius: f.blur}); err != nil {
			return err
		}
	}
	if f.layers {
		printLayers(ws)
	}
	if f.save != "" {
		if err := ws.SaveFile(ctx, f.save); err != nil {
			return err
		}
	}
	if f.export != "" {
		if err := ws.ExportFile(ctx, f.export); err != nil {
			return err
		}
	}
	return nil
}

// loadConfig applies the settings file, then flag overrides.
func loadConfig(f flags) (ggpaint.Config, error) {
	cfg := ggpaint.DefaultConfig()
	if f.config != "" {
		var err error
		if cfg, err = ggpaint.LoadConfig(f.config); err != nil {
			return cfg, err
		}
	}
	if f.backend != "" {
		cfg.Backend.Name = f.backend
	}
	if f.brushColor != "" {
		cfg.Brush.Color = f.brushColor
	}
	if f.brushRadius > 0 {
		cfg.Brush.Radius = f.brushRadius
	}
	return cfg, cfg.Validate()
}

func openDevice(cfg ggpaint.BackendConfig) (gpucore.Device, error) {
	switch cfg.Name {
	case "":
		return backend.Default()
	case backend.BackendSoftware:
		return backend.NewSoftwareDevice(backend.WithWorkers(cfg.Workers)), nil
	default:
		return backend.Get(cfg.Name)
	}
}

func openWorkspace(ctx context.Context, dev gpucore.Device, f flags, cfg ggpaint.Config) (*ggpaint.Workspace, error) {
	opts := []ggpaint.Option{ggpaint.WithThumbnailCache(cfg.Canvas.Thumbnails)}
	switch {
	case f.load != "":
		return ggpaint.LoadFile(ctx, dev, f.load, opts...)
	case f.importPath != "":
		return ggpaint.ImportImage(ctx, dev, f.importPath, opts...)
	}

	ws, err := ggpaint.New(dev, cfg.Canvas.Width, cfg.Canvas.Height, opts...)
	if err != nil {
		return nil, err
	}
	bg, _ := ggpaint.ParseColor(cfg.Canvas.Background)
	if _, err := ws.CreateLayer(ggpaint.LayerSpec{Info: ggpaint.NewLayerInfo("Background"), Fill: &bg}); err != nil {
		ws.Close()
		return nil, err
	}
	return ws, nil
}

func paint(ws *ggpaint.Workspace, brush ggpaint.BrushConfig, stroke string) error {
	pts, err := parsePoints(stroke)
	if err != nil {
		return err
	}
	tool, err := brush.PaintTool()
	if err != nil {
		return err
	}
	ws.SetTool(tool)
	defer ws.SetTool(nil)

	for i, p := range pts {
		kind := ggpaint.PointerMove
		if i == 0 {
			kind = ggpaint.PointerDown
		}
		if err := ws.HandleEvent(ggpaint.Event{Kind: kind, Pos: p}); err != nil {
			return err
		}
	}
	return ws.HandleEvent(ggpaint.Event{Kind: ggpaint.PointerUp, Pos: pts[len(pts)-1]})
}

// parsePoints parses "x,y x,y ...".
func parsePoints(s string) ([]vec.Vec2, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, errors.New("empty stroke")
	}
	pts := make([]vec.Vec2, 0, len(fields))
	for _, field := range fields {
		xs, ys, ok := strings.Cut(field, ",")
		if !ok {
			return nil, fmt.Errorf("stroke point %q: want x,y", field)
		}
		x, err := strconv.ParseFloat(xs, 64)
		if err != nil {
			return nil, fmt.Errorf("stroke point %q: %w", field, err)
		}
		y, err := strconv.ParseFloat(ys, 64)
		if err != nil {
			return nil, fmt.Errorf("stroke point %q: %w", field, err)
		}
		pts = append(pts, vec.Vec2{X: x, Y: y})
	}
	return pts, nil
}

func printLayers(ws *ggpaint.Workspace) {
	fmt.Printf("%dx%d, %d layers\n", ws.Width(), ws.Height(), ws.Len())
	for i := ws.Len() - 1; i >= 0; i-- {
		info := ws.Info(i)
		mark := " "
		if i == ws.Selected() {
			mark = "*"
		}
		vis := "visible"
		if !info.Visible {
			vis = "hidden"
		}
		fmt.Printf("%s %2d %-24s %-12s %3.0f%% %s\n", mark, i, info.Name, info.BlendMode, info.Opacity*100, vis)
	}
}
