package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesSentinelByCode(t *testing.T) {
	cause := fmt.Errorf("boom")

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"resolution read", ResolutionRead("/app/config.js", cause), ErrResolutionRead},
		{"application init", ApplicationInit(cause), ErrApplicationInit},
		{"missing context", MissingContext(), ErrMissingContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Fatalf("expected %v to match %v", wrapped, tt.sentinel)
			}
			if errors.Is(wrapped, ErrFrozen) {
				t.Fatalf("did not expect %v to match ErrFrozen", wrapped)
			}
		})
	}
}

func TestApplicationInitUnwrapsToOriginal(t *testing.T) {
	cause := errors.New("syntax error")
	err := ApplicationInit(cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped error to unwrap to the original failure")
	}
	if !IsApplicationInit(err) {
		t.Fatal("expected IsApplicationInit to be true")
	}
	if IsResolutionRead(err) {
		t.Fatal("expected IsResolutionRead to be false")
	}
}

func TestErrorString(t *testing.T) {
	err := NewError("X", "message", nil)
	if got := err.Error(); got != "[X] message" {
		t.Fatalf("unexpected error string %q", got)
	}

	err = NewError("X", "message", errors.New("cause"))
	if got := err.Error(); got != "[X] message: cause" {
		t.Fatalf("unexpected error string %q", got)
	}
}
