package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestSupervisorError(t *testing.T) {
	t.Run("ErrorMessage", func(t *testing.T) {
		err := New(ErrCodeSessionNotFound, "session abc not found")
		if !strings.Contains(err.Error(), "SESSION_NOT_FOUND") {
			t.Errorf("expected code in message, got %q", err.Error())
		}
		if !strings.Contains(err.Error(), "session abc not found") {
			t.Errorf("expected message text, got %q", err.Error())
		}
	})

	t.Run("WrapPreservesCause", func(t *testing.T) {
		cause := fmt.Errorf("no such file")
		err := Wrap(cause, ErrCodeSpawnFailed, "failed to start worker")

		if !stderrors.Is(err, cause) {
			t.Error("expected errors.Is to reach the wrapped cause")
		}
		if !strings.Contains(err.Error(), "no such file") {
			t.Errorf("expected cause in message, got %q", err.Error())
		}
	})

	t.Run("IsMatchesCode", func(t *testing.T) {
		err := New(ErrCodeValidationFailed, "bad argv")
		if !Is(err, ErrCodeValidationFailed) {
			t.Error("expected Is to match the error code")
		}
		if Is(err, ErrCodeSpawnFailed) {
			t.Error("expected Is to reject a different code")
		}
		if Is(fmt.Errorf("plain"), ErrCodeValidationFailed) {
			t.Error("expected Is to reject plain errors")
		}
	})

	t.Run("IsMatchesWrappedCode", func(t *testing.T) {
		inner := New(ErrCodeSignalFailed, "no such process")
		outer := fmt.Errorf("stop session: %w", inner)
		if !Is(outer, ErrCodeSignalFailed) {
			t.Error("expected Is to unwrap to the coded error")
		}
	})

	t.Run("GetCode", func(t *testing.T) {
		if got := GetCode(New(ErrCodeWaitFailed, "wait")); got != ErrCodeWaitFailed {
			t.Errorf("expected WAIT_FAILED, got %s", got)
		}
		if got := GetCode(fmt.Errorf("plain")); got != ErrCodeInternal {
			t.Errorf("expected INTERNAL_ERROR for plain error, got %s", got)
		}
	})

	t.Run("WithContext", func(t *testing.T) {
		err := New(ErrCodeSessionNotFound, "not found").WithContext("session_id", "abc")
		if err.Context["session_id"] != "abc" {
			t.Errorf("expected context value, got %v", err.Context)
		}
	})
}
