package cli

import (
	"errors"
	"fmt"
)

// Exit codes, grounded on the roach88-nysm CLI's exit code convention.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // a query was rejected or aborted
	ExitCommandError = 2 // bad flags, missing manifest, unknown dataset
)

// ExitError pairs an error with the process exit code it should produce.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// WrapExitError wraps err with an exit code and message.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code carried by err, or ExitFailure if err
// is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}
