package convert

import (
	"errors"
	"fmt"
)

// Sentinel errors for the conversion engine. These enable callers to
// programmatically distinguish failure modes using errors.Is.
var (
	ErrNotNegotiated    = errors.New("convert: stream not negotiated")
	ErrStreamFailed     = errors.New("convert: stream failed, reset required")
	ErrUnknownSubplugin = errors.New("convert: unknown subplugin")
	ErrEmptyFrame       = errors.New("convert: empty media frame")
)

// ConfigError is a negotiation-time failure. The caller must fix the
// configuration or the upstream capability; the engine never retries.
// Field records which capability field or setting was being resolved.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("convert: configure %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// DataError is a per-unit failure. The offending unit is dropped whole
// and the stream enters the failed state until an external reset.
type DataError struct {
	Field string
	Err   error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("convert: process %s: %v", e.Field, e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func dataErrorf(field, format string, args ...any) error {
	return &DataError{Field: field, Err: fmt.Errorf(format, args...)}
}

// InvariantError signals a programming bug inside the engine, not a
// recoverable stream condition. It aborts the current stream instance.
type InvariantError struct {
	Check string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("convert: internal invariant violated: %s", e.Check)
}
