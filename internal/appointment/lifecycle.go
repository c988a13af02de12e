package appointment

import "errors"

var ErrInvalidTransition = errors.New("invalid status transition")

// transitions is the full lifecycle graph. Cancellation is reachable from
// every non-terminal state so administrative overrides need no special
// casing.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
	StatusCancelled: {},
	StatusCompleted: {},
}

// Terminal reports whether no further transition is permitted from s.
func Terminal(s Status) bool {
	return s == StatusCancelled || s == StatusCompleted
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
// Re-entering the current terminal state is allowed so that duplicate
// cancel/complete calls are no-ops rather than errors.
func CanTransition(from, to Status) bool {
	if Terminal(from) {
		return from == to
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition when from -> to is illegal.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	return nil
}
