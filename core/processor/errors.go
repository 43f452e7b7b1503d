package processor

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrInvalidThreshold is returned by AddWithBackPressure for a limit <= 0.
var ErrInvalidThreshold = errors.New("processor: back pressure limit must be greater than 0")

// PanicError carries a value recovered from a panicking task.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Unwrap exposes the panic value when it is an error itself.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Safe calls f and turns a panic into a *PanicError.
func Safe(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return f()
}
