package cli

import "errors"

// Exit codes
const (
	ExitOK    = 0
	ExitUsage = 1
	ExitFatal = 2
)

// ExitError carries the process exit code for an error
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitWithCode wraps err with an exit code. A nil err stays nil.
func ExitWithCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{
		Code: code,
		Err:  err,
	}
}

// UsageError marks a bad command line argument
type UsageError struct{ error }

func (e *UsageError) Unwrap() error {
	return e.error
}

// ExitCode maps an error returned by a command to a process exit code.
// Errors without an explicit code, including cobra's own argument errors,
// are usage errors.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitUsage
}
