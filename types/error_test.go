package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrInterpreterFailure, "kernel crashed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true)

	if GetErrorCode(err) != ErrInterpreterFailure {
		t.Fatalf("expected code %s, got %s", ErrInterpreterFailure, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got != "[INTERPRETER_FAILURE] kernel crashed: root" {
		t.Fatalf("unexpected error string %q", got)
	}
}

func TestError_WrappedLookup(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("step: %w", NewError(ErrSessionBusy, "busy"))
	if GetErrorCode(wrapped) != ErrSessionBusy {
		t.Fatalf("expected wrapped code lookup to succeed")
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatalf("plain errors are never retryable")
	}
	if GetErrorCode(errors.New("plain")) != "" {
		t.Fatalf("plain errors carry no code")
	}
}

func TestHTTPStatusFor(t *testing.T) {
	t.Parallel()

	cases := map[ErrorCode]int{
		ErrInvalidGraph:      http.StatusBadRequest,
		ErrWorkflowNotFound:  http.StatusNotFound,
		ErrSessionBusy:       http.StatusConflict,
		ErrVersionActive:     http.StatusConflict,
		ErrTraceTooLarge:     http.StatusUnprocessableEntity,
		ErrSessionLimit:      http.StatusTooManyRequests,
		ErrorCode("unknown"): http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := HTTPStatusFor(code); got != want {
			t.Errorf("HTTPStatusFor(%s) = %d, want %d", code, got, want)
		}
	}
}
