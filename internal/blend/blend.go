// Package blend implements the separable blend modes used to composite
// layers.
//
// A mode is a per-channel mix function B(base, src) on straight-alpha
// values in [0, 1]. Compositing mixes RGB as base*(1-a) + B(base, src)*a and
// alpha as base*(1-a) + src*a, where a is the layer's effective coverage.
//
// Built-in modes form a closed enum ([Mode]). Additional modes can be
// registered by name; they are addressed the same way as built-ins
// through [Lookup].
//
// References:
//   - W3C Compositing and Blending Level 1: https://www.w3.org/TR/compositing-1/
package blend

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Mode is a built-in blend mode.
type Mode uint8

// Built-in blend modes.
const (
	Normal     Mode = iota // B = S
	Multiply               // B = S * D
	Screen                 // B = 1 - (1-S)*(1-D)
	Overlay                // HardLight with swapped layers
	Darken                 // min(S, D)
	Lighten                // max(S, D)
	ColorDodge             // D / (1 - S)
	ColorBurn              // 1 - (1 - D) / S
	HardLight              // Multiply or Screen depending on source
	SoftLight              // Soft version of HardLight
	Difference             // |S - D|
	Exclusion              // S + D - 2*S*D
	Add                    // min(1, S + D)
	Subtract               // max(0, D - S)

	modeCount
)

// MixFunc mixes one channel of the base (backdrop) with the source.
// Inputs are in [0, 1]; results are clamped to [0, 1] by the caller.
type MixFunc func(base, src float64) float64

// Entry describes a registered blend mode.
type Entry struct {
	// Name is the persisted and program name (e.g., "multiply").
	Name string

	// Mix is the CPU implementation.
	Mix MixFunc

	// WGSL is the body of
	//
	//	fn blend_rgb(b: vec3<f32>, s: vec3<f32>) -> vec3<f32>
	//
	// used by GPU backends.
	WGSL string
}

// Registry errors.
var (
	ErrEmptyName     = errors.New("blend: empty mode name")
	ErrNilMix        = errors.New("blend: nil mix function")
	ErrEmptyWGSL     = errors.New("blend: empty WGSL body")
	ErrBuiltinExists = errors.New("blend: cannot replace built-in mode")
)

var (
	registryMu sync.RWMutex
	custom     = make(map[string]Entry)
	byName     = func() map[string]Mode {
		m := make(map[string]Mode, modeCount)
		for i := range modeCount {
			m[builtins[i].Name] = i
		}
		return m
	}()
)

// String returns the persisted name of the mode.
func (m Mode) String() string {
	if m < modeCount {
		return builtins[m].Name
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Entry returns the registry entry of a built-in mode.
func (m Mode) Entry() Entry {
	if m >= modeCount {
		panic(fmt.Sprintf("blend: invalid mode %d", uint8(m)))
	}
	return builtins[m]
}

// ParseMode resolves a built-in mode by name.
func ParseMode(name string) (Mode, bool) {
	m, ok := byName[name]
	return m, ok
}

// Lookup resolves a built-in or registered mode by name.
func Lookup(name string) (Entry, bool) {
	if m, ok := byName[name]; ok {
		return builtins[m], true
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := custom[name]
	return e, ok
}

// Register adds a blend mode. Registering a name twice replaces the
// earlier custom entry; built-in names cannot be replaced.
func Register(e Entry) error {
	switch {
	case e.Name == "":
		return ErrEmptyName
	case e.Mix == nil:
		return ErrNilMix
	case e.WGSL == "":
		return ErrEmptyWGSL
	}
	if _, ok := byName[e.Name]; ok {
		return fmt.Errorf("%w: %q", ErrBuiltinExists, e.Name)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	custom[e.Name] = e
	return nil
}

// Unregister removes a custom mode. This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(custom, name)
}

// Names returns every known mode name: built-ins in enum order, then
// custom modes sorted.
func Names() []string {
	names := make([]string, 0, int(modeCount))
	for i := range modeCount {
		names = append(names, builtins[i].Name)
	}
	registryMu.RLock()
	extra := make([]string, 0, len(custom))
	for name := range custom {
		extra = append(extra, name)
	}
	registryMu.RUnlock()
	sort.Strings(extra)
	return append(names, extra...)
}
