package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSlotNotFound = errors.New("slot not found")
	ErrNoOpenRegion = errors.New("no open region covers the requested range")
	ErrSlotConflict = errors.New("slot row changed concurrently")
)

// Repository contains the slot-table interactions needed by the index.
// All range arguments are half-open intervals [start, end).
type Repository interface {
	// ListLiveOverlapping returns booked slots and unexpired held slots
	// overlapping the range.
	ListLiveOverlapping(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, now time.Time) ([]Slot, error)

	// ListOverlapping returns slots of any state overlapping the range.
	ListOverlapping(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]Slot, error)

	// FindOpenCovering returns the open slot whose interval contains
	// [start, end), or ErrNoOpenRegion.
	FindOpenCovering(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) (*Slot, error)

	// CarveHold transitions [start, end) of the given open slot to held,
	// splitting off remainder open slots when the hold does not cover the
	// whole region. Returns the held slot.
	CarveHold(ctx context.Context, open Slot, start, end time.Time, token uuid.UUID, heldUntil time.Time) (*Slot, error)

	// CommitHold flips a held slot to booked iff it still carries token.
	// Returns ErrSlotConflict when the CAS misses.
	CommitHold(ctx context.Context, slotID, token, appointmentID uuid.UUID) (*Slot, error)

	// GetSlot loads a slot row by id.
	GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error)

	// ReleaseRange flips held/booked slots overlapping the range back to
	// open and coalesces adjacent open slots so the practitioner's index
	// stays non-overlapping and gapless across the released boundary.
	// Returns the number of slots released.
	ReleaseRange(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) (int, error)

	// ReleaseHold reverts one held slot to open iff it still carries the
	// token, then coalesces. Reports whether the slot was released; a
	// token mismatch is not an error, the slot belongs to someone else.
	ReleaseHold(ctx context.Context, slotID, token uuid.UUID) (bool, error)

	// ReleaseExpiredInRange releases held slots in the range whose lease
	// has passed. Called inside the hold critical section so an abandoned
	// hold does not starve the range until the reaper's next run.
	ReleaseExpiredInRange(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, now time.Time) (int, error)

	// ReleaseExpired releases every expired held slot. Reaper entry point.
	ReleaseExpired(ctx context.Context, now time.Time) (int, error)

	// CreateOpenSlot publishes a new open region for a practitioner.
	CreateOpenSlot(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) (*Slot, error)
}
