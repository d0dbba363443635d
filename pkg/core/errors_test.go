package core

import (
	"errors"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrInvalidQuantity", ErrInvalidQuantity, "invalid quantity"},
		{"ErrInvalidPrice", ErrInvalidPrice, "invalid price"},
		{"ErrInvalidArgument", ErrInvalidArgument, "invalid argument"},
		{"ErrOrderExists", ErrOrderExists, "order exists"},
		{"ErrNonexistentOrder", ErrNonexistentOrder, "nonexistent order"},
		{"ErrInsufficientQuantity", ErrInsufficientQuantity, "insufficient quantity"},
		{"ErrUnknownInstrument", ErrUnknownInstrument, "unknown instrument"},
		{"ErrDuplicateInstrument", ErrDuplicateInstrument, "duplicate instrument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatalf("%s is nil", tt.name)
			}
			if tt.err.Error() != tt.msg {
				t.Errorf("got message %q, want %q", tt.err.Error(), tt.msg)
			}
			if !errors.Is(tt.err, tt.err) {
				t.Errorf("%s does not match itself via errors.Is", tt.name)
			}
		})
	}
}

func TestRejectionUnwrap(t *testing.T) {
	r := &Rejection{OrderID: 7, Reason: "bad price", Err: ErrInvalidPrice}
	if !errors.Is(r, ErrInvalidPrice) {
		t.Error("Rejection should unwrap to its wrapped sentinel")
	}
	if r.Error() == "" {
		t.Error("Rejection.Error() should not be empty")
	}
}

func TestPhaseErrorMessage(t *testing.T) {
	err := &PhaseError{Phase: Closed, Operation: "Insert"}
	want := "operation Insert not permitted in phase CLOSED"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestInvariantViolationMessage(t *testing.T) {
	err := &InvariantViolation{Invariant: "I-TEST", Detail: "something impossible happened"}
	want := "invariant violated (I-TEST): something impossible happened"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
