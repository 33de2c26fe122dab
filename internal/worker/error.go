package worker

import (
	"errors"
	"fmt"
)

// ErrorRun is returned if the worker was started, but execution and/or
// flush failed.
type ErrorRun struct {
	ErrExec  error
	ErrFlush error
}

func (e *ErrorRun) Error() string {
	switch {
	case e.ErrExec != nil && e.ErrFlush != nil:
		return fmt.Sprintf("flush error: %v after execute error: %v", e.ErrFlush, e.ErrExec)
	case e.ErrExec != nil:
		return fmt.Sprintf("execute error: %v", e.ErrExec)
	case e.ErrFlush != nil:
		return fmt.Sprintf("flush error: %v", e.ErrFlush)
	}
	return ""
}

// Is checks if any of errors match provided sentinel error.
func (e *ErrorRun) Is(err error) bool {
	return errors.Is(e.ErrExec, err) || errors.Is(e.ErrFlush, err)
}

// Unwrap returns both errors.
func (e *ErrorRun) Unwrap() []error {
	return []error{e.ErrExec, e.ErrFlush}
}

// ret returns untyped nil if no error happened.
func (e *ErrorRun) ret() error {
	if e.ErrExec == nil && e.ErrFlush == nil {
		return nil
	}
	return e
}
