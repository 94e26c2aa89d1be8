// Package pipeerr classifies pipeline failures so a caller can tell which stage
// failed and which kind of invariant was violated.
package pipeerr

import (
	"errors"
	"fmt"
)

// Kind is the failure class of a pipeline error.
type Kind int

const (
	// Input covers missing or malformed files, wrong variable names and bad grids.
	Input Kind = iota + 1

	// Shape covers dimension mismatches between otherwise valid inputs.
	Shape

	// Domain covers interpolation targets outside the source wavelength range.
	Domain

	// Numeric covers degenerate statistics such as a zero-variance band.
	Numeric

	// Config covers unsupported or inconsistent configuration values.
	Config
)

// Sentinels matched by errors.Is against any *Error of the same Kind.
var (
	ErrInput   = errors.New("input error")
	ErrShape   = errors.New("shape error")
	ErrDomain  = errors.New("domain error")
	ErrNumeric = errors.New("numeric error")
	ErrConfig  = errors.New("config error")
)

func (k Kind) String() string {
	switch k {
	case Input:
		return "input"
	case Shape:
		return "shape"
	case Domain:
		return "domain"
	case Numeric:
		return "numeric"
	case Config:
		return "config"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case Input:
		return ErrInput
	case Shape:
		return ErrShape
	case Domain:
		return ErrDomain
	case Numeric:
		return ErrNumeric
	case Config:
		return ErrConfig
	default:
		return nil
	}
}

// Error is a failure raised by one pipeline stage.
type Error struct {
	// Stage names the component that failed, e.g. "resample" or "pad".
	Stage string

	// Kind is the failure class.
	Kind Kind

	// Err is the underlying cause.
	Err error
}

// New builds a stage error from a formatted message.
func New(stage string, kind Kind, format string, args ...any) *Error {
	return &Error{Stage: stage, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a stage and kind to an existing error. A nil err yields nil.
func Wrap(stage string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Stage: stage, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// StageOf returns the Stage of the first *Error in err's chain, or "".
func StageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}
