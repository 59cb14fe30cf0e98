package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Is(t *testing.T) {
	err := NewError(KindNotFound, "Preço não encontrado para XYZ", nil)

	if !errors.Is(err, ErrNotFound) {
		t.Error("expected errors.Is to match ErrNotFound")
	}
	if errors.Is(err, ErrUpstreamUnavailable) {
		t.Error("did not expect errors.Is to match ErrUpstreamUnavailable")
	}

	wrapped := fmt.Errorf("building document: %w", err)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("expected wrapped error to match ErrNotFound")
	}
}

func TestError_Message(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"message wins", NewError(KindUpstreamUnavailable, "Yahoo indisponível", cause), "Yahoo indisponível"},
		{"cause when no message", ErrUpstreamUnavailable.WithError(cause), "connection refused"},
		{"kind when empty", &Error{Kind: KindInvalidInput}, "invalid_input"},
		{"WithMsg", ErrInvalidInput.WithMsg("Ticker não fornecido"), "Ticker não fornecido"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}

	if !errors.Is(ErrUpstreamUnavailable.WithError(cause), cause) {
		t.Error("expected Unwrap to expose the cause")
	}
	if ErrInvalidInput.Message != "" {
		t.Error("WithMsg must not modify the sentinel")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("boom"), KindInternal},
		{"typed", NewError(KindInvalidInput, "x", nil), KindInvalidInput},
		{"wrapped", fmt.Errorf("outer: %w", ErrUpstreamUnavailable.WithMsg("down")), KindUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}
