package blend

import (
	"errors"
	"slices"
	"testing"
)

func TestModeNamesRoundTrip(t *testing.T) {
	for m := range modeCount {
		name := m.String()
		got, ok := ParseMode(name)
		if !ok || got != m {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", name, got, ok, m)
		}
		if m.Entry().WGSL == "" {
			t.Errorf("%s: empty WGSL body", name)
		}
	}
	if _, ok := ParseMode("nope"); ok {
		t.Error("ParseMode accepted unknown name")
	}
}

func TestRegister(t *testing.T) {
	e := Entry{
		Name: "average",
		Mix:  func(b, s float64) float64 { return (b + s) / 2 },
		WGSL: "return (b + s) * 0.5;",
	}
	if err := Register(e); err != nil {
		t.Fatal(err)
	}
	defer Unregister("average")

	got, ok := Lookup("average")
	if !ok {
		t.Fatal("registered mode not found")
	}
	if v := got.Mix(0, 1); v != 0.5 {
		t.Errorf("Mix(0,1) = %v", v)
	}
	if !slices.Contains(Names(), "average") {
		t.Error("Names() missing custom mode")
	}
}

func TestRegisterErrors(t *testing.T) {
	mix := func(b, s float64) float64 { return s }
	tests := []struct {
		name string
		e    Entry
		want error
	}{
		{"empty name", Entry{Mix: mix, WGSL: "return s;"}, ErrEmptyName},
		{"nil mix", Entry{Name: "x", WGSL: "return s;"}, ErrNilMix},
		{"no wgsl", Entry{Name: "x", Mix: mix}, ErrEmptyWGSL},
		{"builtin", Entry{Name: "multiply", Mix: mix, WGSL: "return s;"}, ErrBuiltinExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Register(tt.e); !errors.Is(err, tt.want) {
				t.Errorf("Register() = %v, want %v", err, tt.want)
			}
		})
	}
}
