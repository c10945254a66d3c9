package refine

import (
	"errors"
	"fmt"

	"spriterefine/internal/pipeline"
)

// ErrorKind enumerates the semantic failure categories Process can raise.
type ErrorKind = pipeline.ErrorKind

const (
	InvalidInput        = pipeline.InvalidInput
	GridDetectionFailed = pipeline.GridDetectionFailed
	ContentNotFound     = pipeline.ContentNotFound
	UnknownPalette      = pipeline.UnknownPalette
	InternalInvariant   = pipeline.InternalInvariant
)

// Sentinel errors so callers can use errors.Is against a specific kind
// without unwrapping the structured Error.
var (
	ErrInvalidInput        = errors.New("refine: invalid input")
	ErrGridDetectionFailed = errors.New("refine: grid detection failed")
	ErrContentNotFound     = errors.New("refine: content not found")
	ErrUnknownPalette      = errors.New("refine: unknown palette")
	ErrInternalInvariant   = errors.New("refine: internal invariant violated")
)

func sentinelFor(k ErrorKind) error {
	switch k {
	case InvalidInput:
		return ErrInvalidInput
	case GridDetectionFailed:
		return ErrGridDetectionFailed
	case ContentNotFound:
		return ErrContentNotFound
	case UnknownPalette:
		return ErrUnknownPalette
	default:
		return ErrInternalInvariant
	}
}

// Error is the machine-readable error Process raises at its well-defined
// failure boundaries. Axis and Value are populated when the failure
// traces back to a specific option or coordinate.
type Error struct {
	Kind  ErrorKind
	Axis  string
	Value any
	Err   error
}

func (e *Error) Error() string {
	if e.Axis != "" {
		return fmt.Sprintf("refine: %s: %v (axis=%s, value=%v)", e.Kind, e.Err, e.Axis, e.Value)
	}
	return fmt.Sprintf("refine: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return sentinelFor(e.Kind)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		return &Error{Kind: pe.Kind, Axis: pe.Axis, Value: pe.Value, Err: errors.New(pe.Message)}
	}
	return &Error{Kind: InternalInvariant, Err: err}
}
