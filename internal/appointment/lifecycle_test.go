package appointment

import (
	"errors"
	"testing"
)

func TestCanTransitionLegalEdges(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusCancelled},
		{StatusConfirmed, StatusCancelled},
		{StatusConfirmed, StatusCompleted},
	}
	for _, tc := range legal {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be legal", tc.from, tc.to)
		}
	}
}

func TestCanTransitionIllegalEdges(t *testing.T) {
	illegal := []struct{ from, to Status }{
		{StatusCompleted, StatusPending},
		{StatusCompleted, StatusConfirmed},
		{StatusCompleted, StatusCancelled},
		{StatusCancelled, StatusConfirmed},
		{StatusCancelled, StatusCompleted},
		{StatusPending, StatusCompleted},
		{StatusConfirmed, StatusPending},
	}
	for _, tc := range illegal {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be illegal", tc.from, tc.to)
		}
	}
}

func TestTerminalStatesReenterThemselves(t *testing.T) {
	// Duplicate cancel/complete calls must be treated as no-ops, so a
	// terminal state may transition to itself and nowhere else.
	if !CanTransition(StatusCancelled, StatusCancelled) {
		t.Error("cancelled -> cancelled should be a permitted no-op")
	}
	if !CanTransition(StatusCompleted, StatusCompleted) {
		t.Error("completed -> completed should be a permitted no-op")
	}
}

func TestTerminal(t *testing.T) {
	if Terminal(StatusPending) || Terminal(StatusConfirmed) {
		t.Error("pending/confirmed are not terminal")
	}
	if !Terminal(StatusCancelled) || !Terminal(StatusCompleted) {
		t.Error("cancelled/completed are terminal")
	}
}

func TestCheckTransition(t *testing.T) {
	if err := CheckTransition(StatusPending, StatusConfirmed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckTransition(StatusCompleted, StatusPending); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}
