package ggpaint

import (
	"errors"
	"fmt"
)

// Workspace errors.
var (
	// ErrInvalidSize is returned for a non-positive canvas size.
	ErrInvalidSize = errors.New("ggpaint: invalid canvas size")

	// ErrUnknownBlendMode is returned when a layer names an unregistered
	// blend mode.
	ErrUnknownBlendMode = errors.New("ggpaint: unknown blend mode")

	// ErrInvalidOpacity is returned for a NaN layer opacity.
	ErrInvalidOpacity = errors.New("ggpaint: invalid opacity")

	// ErrInvalidFilter is returned for filter parameters out of range.
	ErrInvalidFilter = errors.New("ggpaint: invalid filter")

	// ErrClosed is returned by operations on a closed workspace.
	ErrClosed = errors.New("ggpaint: workspace closed")

	// ErrTruncated is returned when a workspace file ends early.
	ErrTruncated = errors.New("ggpaint: truncated data")

	// ErrTrailingData is returned when bytes follow the last layer block.
	ErrTrailingData = errors.New("ggpaint: trailing data after last layer")

	// ErrUnsupportedVersion is returned for a format version this package
	// cannot read.
	ErrUnsupportedVersion = errors.New("ggpaint: unsupported format version")

	// ErrSizeMismatch is returned when a layer bitmap does not match the
	// workspace dimensions.
	ErrSizeMismatch = errors.New("ggpaint: layer size mismatch")
)

// Step names the phase of loading that failed.
type Step string

// Load steps.
const (
	StepIO       Step = "io"
	StepMetadata Step = "metadata"
	StepDecode   Step = "decode"
	StepGPU      Step = "gpu"
)

// FormatError reports a failure to load a workspace file.
type FormatError struct {
	Step Step
	// Layer is the index of the layer block being read, or -1 for the
	// metadata block and the file as a whole.
	Layer int
	Err   error
}

func (e *FormatError) Error() string {
	if e.Layer >= 0 {
		return fmt.Sprintf("ggpaint: load %s: layer %d: %v", e.Step, e.Layer, e.Err)
	}
	return fmt.Sprintf("ggpaint: load %s: %v", e.Step, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

func formatError(step Step, layer int, err error) *FormatError {
	return &FormatError{Step: step, Layer: layer, Err: err}
}
