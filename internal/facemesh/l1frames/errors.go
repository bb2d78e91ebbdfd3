package l1frames

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the sentinel for invalid parameters. It is the only
// error class that stops a stage; everything else is recovered as a Warning.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports an invalid parameter for a named operation.
type ConfigurationError struct {
	Op     string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Op, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) match.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Configf builds a ConfigurationError with a formatted reason.
func Configf(op, format string, args ...interface{}) error {
	return &ConfigurationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// WarningKind classifies a recovered condition.
type WarningKind int

const (
	// DataMismatch: a frame's landmark count differs from its reference.
	DataMismatch WarningKind = iota
	// NumericalDegeneracy: a near-zero variance or similar was guarded.
	NumericalDegeneracy
	// UnknownFilter: a filter step named a kind that does not exist.
	UnknownFilter
	// StepFailed: a filter step was rejected and skipped.
	StepFailed
)

func (k WarningKind) String() string {
	switch k {
	case DataMismatch:
		return "data_mismatch"
	case NumericalDegeneracy:
		return "numerical_degeneracy"
	case UnknownFilter:
		return "unknown_filter"
	case StepFailed:
		return "step_failed"
	default:
		return "unknown"
	}
}

// Warning is a recovered, non-fatal condition. FrameIndex is -1 when the
// warning is not tied to a frame.
type Warning struct {
	Kind       WarningKind
	Step       string
	FrameIndex int
	Message    string
}

func (w Warning) String() string {
	if w.FrameIndex >= 0 {
		return fmt.Sprintf("%s [%s] frame %d: %s", w.Kind, w.Step, w.FrameIndex, w.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", w.Kind, w.Step, w.Message)
}

// MismatchWarning builds the DataMismatch warning used by every stage.
func MismatchWarning(step string, frameIndex, got, want int) Warning {
	return Warning{
		Kind:       DataMismatch,
		Step:       step,
		FrameIndex: frameIndex,
		Message:    fmt.Sprintf("landmark count %d does not match reference %d; frame passed through", got, want),
	}
}
