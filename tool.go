package ggpaint

import (
	"seehuhn.de/go/geom/vec"
)

// EventKind identifies a pointer event.
type EventKind uint8

// Pointer event kinds.
const (
	PointerDown EventKind = iota + 1
	PointerMove
	PointerUp
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case PointerDown:
		return "down"
	case PointerMove:
		return "move"
	case PointerUp:
		return "up"
	default:
		return "unknown"
	}
}

// Event is a pointer event in workspace pixel space. Mapping from screen
// coordinates is the caller's job, see [View.ToWorkspace].
type Event struct {
	Kind EventKind
	Pos  vec.Vec2
}

// Mutation reports what a tool changed. When Dirty is set, running totals
// from layer From upward are stale.
type Mutation struct {
	Dirty bool
	From  int
}

// merge returns a mutation covering both m and o.
func (m Mutation) merge(o Mutation) Mutation {
	switch {
	case !o.Dirty:
		return m
	case !m.Dirty:
		return o
	default:
		return Mutation{Dirty: true, From: min(m.From, o.From)}
	}
}

// Tool turns pointer events into workspace mutations. Tools must not
// recompute: the workspace recomputes once per event from the returned
// mutation.
type Tool interface {
	Name() string
	Handle(w *Workspace, ev Event) (Mutation, error)
}

// Canceler is implemented by tools that hold state across events. Cancel
// discards an in-flight operation.
type Canceler interface {
	Cancel(w *Workspace) Mutation
}

// SelectTool ignores every event.
type SelectTool struct{}

// Name implements Tool.
func (SelectTool) Name() string { return "select" }

// Handle implements Tool.
func (SelectTool) Handle(*Workspace, Event) (Mutation, error) { return Mutation{}, nil }

// Tool returns the active tool.
func (w *Workspace) Tool() Tool { return w.tool }

// SetTool cancels any in-flight operation of the active tool and makes t
// active. A nil t selects [SelectTool].
func (w *Workspace) SetTool(t Tool) {
	w.CancelTool()
	if t == nil {
		t = SelectTool{}
	}
	w.tool = t
	w.log.Debug("ggpaint: tool changed", "tool", t.Name())
}

// CancelTool discards the in-flight operation of the active tool.
func (w *Workspace) CancelTool() {
	c, ok := w.tool.(Canceler)
	if !ok {
		return
	}
	m := c.Cancel(w)
	if m.Dirty {
		w.invalidate(m.From)
	}
	w.Flush()
}

// HandleEvent routes ev to the active tool and recomputes what it
// changed. The composite is brought up to date even when the tool
// returns an error.
func (w *Workspace) HandleEvent(ev Event) error {
	if w.closed {
		return ErrClosed
	}
	m, err := w.tool.Handle(w, ev)
	if m.Dirty {
		w.invalidate(m.From)
	}
	w.Flush()
	if err != nil {
		w.log.Warn("ggpaint: tool event failed", "tool", w.tool.Name(), "event", ev.Kind.String(), "err", err)
	}
	return err
}
