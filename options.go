package ggpaint

// Option configures a Workspace during creation or loading.
//
// Example:
//
//	w, err := ggpaint.New(dev, 1024, 768,
//		ggpaint.WithView(ggpaint.View{Zoom: 2, Center: [2]float32{512, 384}}),
//		ggpaint.WithTool(ggpaint.NewPaintTool()),
//	)
type Option func(*options)

type options struct {
	view       *View
	tool       Tool
	thumbLimit int
}

func defaultOptions() options {
	return options{thumbLimit: 64}
}

// WithView sets the initial view. Load overrides it with the persisted view.
func WithView(v View) Option {
	return func(o *options) {
		o.view = &v
	}
}

// WithTool sets the initially active tool. The default is [SelectTool].
func WithTool(t Tool) Option {
	return func(o *options) {
		o.tool = t
	}
}

// WithThumbnailCache sets how many layer thumbnails are kept. Zero keeps
// every thumbnail until its layer changes.
func WithThumbnailCache(n int) Option {
	return func(o *options) {
		o.thumbLimit = n
	}
}
