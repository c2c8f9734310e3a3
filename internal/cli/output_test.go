package cli

import (
	"errors"
	"testing"
)

func TestExitError_ErrorMessage(t *testing.T) {
	e := WrapExitError(ExitCommandError, "loading manifest", errors.New("file not found"))
	if got, want := e.Error(), "loading manifest: file not found"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestExitError_NoWrappedCause(t *testing.T) {
	e := &ExitError{Code: ExitFailure, Message: "something went wrong"}
	if got, want := e.Error(), "something went wrong"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestGetExitCode_ExitError(t *testing.T) {
	e := WrapExitError(ExitCommandError, "bad flags", nil)
	if got := GetExitCode(e); got != ExitCommandError {
		t.Fatalf("GetExitCode = %d, want %d", got, ExitCommandError)
	}
}

func TestGetExitCode_WrappedExitError(t *testing.T) {
	inner := WrapExitError(ExitCommandError, "bad flags", nil)
	wrapped := errors.Join(inner)
	if got := GetExitCode(wrapped); got != ExitCommandError {
		t.Fatalf("GetExitCode(wrapped) = %d, want %d", got, ExitCommandError)
	}
}

func TestGetExitCode_PlainError(t *testing.T) {
	if got := GetExitCode(errors.New("boom")); got != ExitFailure {
		t.Fatalf("GetExitCode(plain) = %d, want %d", got, ExitFailure)
	}
}

func TestExitError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	e := WrapExitError(ExitFailure, "wrapped", cause)
	if !errors.Is(e, cause) {
		t.Fatal("errors.Is should see through ExitError.Unwrap to the cause")
	}
}
