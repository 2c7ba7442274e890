// Package errors defines the error taxonomy shared by the generator, the
// producers and the worker pool. Every typed error unwraps both to a package
// sentinel and to its underlying cause, so callers can use errors.Is with the
// sentinel and errors.As with the concrete type.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedType = errors.New("unsupported field type")
	ErrSink            = errors.New("sink write failed")
	ErrStartup         = errors.New("worker startup failed")
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrUnknownDriver   = errors.New("unknown sink driver")
)

// UnsupportedTypeError reports a schema field whose type tag the synthesizer
// cannot dispatch on.
type UnsupportedTypeError struct {
	Field string
	Type  string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("%s: field %q declares %q", ErrUnsupportedType.Error(), e.Field, e.Type)
}

func (e *UnsupportedTypeError) Unwrap() error {
	return ErrUnsupportedType
}

// SinkError wraps a failed write with the worker and record attempt that
// produced it.
type SinkError struct {
	Worker  int
	Attempt int64
	Table   string
	Err     error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("%s: worker %d, attempt %d, table %s: %v", ErrSink.Error(), e.Worker, e.Attempt, e.Table, e.Err)
}

func (e *SinkError) Unwrap() []error {
	return []error{ErrSink, e.Err}
}

// StartupError reports a worker that could not acquire its sink connection.
type StartupError struct {
	Worker int
	Err    error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("%s: worker %d: %v", ErrStartup.Error(), e.Worker, e.Err)
}

func (e *StartupError) Unwrap() []error {
	return []error{ErrStartup, e.Err}
}

// WorkerError attaches worker context to a failure that is not a sink write,
// e.g. a record the synthesizer refused to build.
type WorkerError struct {
	Worker  int
	Attempt int64
	Err     error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker %d, attempt %d: %v", e.Worker, e.Attempt, e.Err)
}

func (e *WorkerError) Unwrap() error {
	return e.Err
}

func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// WorkerOf returns the worker index carried by err, or -1 when err carries
// none.
func WorkerOf(err error) int {
	var sinkErr *SinkError
	if errors.As(err, &sinkErr) {
		return sinkErr.Worker
	}
	var startErr *StartupError
	if errors.As(err, &startErr) {
		return startErr.Worker
	}
	var workerErr *WorkerError
	if errors.As(err, &workerErr) {
		return workerErr.Worker
	}
	return -1
}
