package cli

import (
	"errors"
	"fmt"
)

// Exit codes returned by bmadflow.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitError carries the process exit code out of a Cobra RunE function.
//
// Commands print their own diagnostics and then return an ExitError, so
// [RunWithConfig] can report the code in [ExecuteResult] and tests can
// assert on it without the process terminating. Only [Execute] calls
// os.Exit.
type ExitError struct {
	// Code is the exit code: [ExitFailure] for rejected operations and
	// invalid definitions, [ExitUsage] for malformed arguments.
	Code int

	// Err is the underlying cause, if any.
	Err error
}

// Error returns "exit status N", followed by the cause when there is one.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("exit status %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying cause.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an [ExitError] with the given code and no cause.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// usageError reports malformed arguments that Cobra's own validation did
// not catch, such as a step index that is not a number.
func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: ExitUsage, Err: fmt.Errorf(format, args...)}
}

// IsExitError reports whether err is, or wraps, an [ExitError] and returns
// its code. It returns (0, false) for nil and for any other error.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// fail prints err and converts it to an [ExitError]. An ExitError keeps its
// code; anything else exits with [ExitFailure].
func (app *App) fail(err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			app.Printer.Error("%v", exitErr.Err)
		}
		return exitErr
	}
	app.Printer.Error("%v", err)
	return &ExitError{Code: ExitFailure, Err: err}
}
