package pde

import (
	"errors"
	"fmt"
)

// Code classifies solver failures.
type Code string

const (
	// CodeConfiguration covers setup problems: no function, no halter,
	// inconsistent dimensionality, empty regions, no valid time step.
	CodeConfiguration Code = "CONFIGURATION"

	// CodeNumericalInstability is raised when a function reports a time step
	// that is not finite and positive.
	CodeNumericalInstability Code = "NUMERICAL_INSTABILITY"

	// CodeAllocation is raised when the output grid or update buffer cannot
	// be allocated to match the input.
	CodeAllocation Code = "ALLOCATION"

	// CodeCanceled is raised when the run's context is done at an iteration
	// boundary.
	CodeCanceled Code = "CANCELED"
)

// ErrNoValidTimeStep is wrapped by the configuration error returned when no
// partition reported a usable time step.
var ErrNoValidTimeStep = errors.New("no partition reported a valid time step")

// Error is a solver failure with a code, the operation that failed and an
// optional cause.
type Error struct {
	Code Code   // Machine-readable classification
	Op   string // Phase or operation, e.g. "copy input"
	Err  error  // Underlying cause
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pde: %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("pde: %s: %s", e.Op, e.Code)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

func wrapError(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
