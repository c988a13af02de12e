package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/scheduling-core/internal/observability/metrics"
	redisclient "github.com/carebridge/scheduling-core/internal/redis"
)

var (
	ErrSlotUnavailable  = errors.New("slot unavailable")
	ErrPractitionerBusy = errors.New("practitioner calendar is busy, please retry")
	ErrInvalidRange     = errors.New("invalid time range")
	ErrHoldLost         = errors.New("hold no longer valid")
)

// Index owns all slot-state mutation for practitioner calendars. Every
// write goes through Hold, Commit, Release or Publish; no other component
// touches slot rows directly.
type Index struct {
	repo    Repository
	locker  redisclient.Locker
	metrics *metrics.BookingMetrics
	holdTTL time.Duration
	now     func() time.Time
}

func NewIndex(repo Repository, locker redisclient.Locker, m *metrics.BookingMetrics, holdTTL time.Duration) *Index {
	return &Index{
		repo:    repo,
		locker:  locker,
		metrics: m,
		holdTTL: holdTTL,
		now:     time.Now,
	}
}

// IsFree reports whether no booked or live-held slot overlaps [start, end).
func (ix *Index) IsFree(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) (bool, error) {
	if !start.Before(end) {
		return false, ErrInvalidRange
	}

	live, err := ix.repo.ListLiveOverlapping(ctx, practitionerID, start, end, ix.now())
	if err != nil {
		return false, fmt.Errorf("check overlap: %w", err)
	}
	return len(live) == 0, nil
}

// Hold atomically claims [start, end) of an open region for the lease
// window. Concurrent holds for overlapping ranges on the same practitioner
// are serialized by the distributed lock; the conflict re-check inside the
// critical section guarantees at most one of them succeeds.
func (ix *Index) Hold(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) (*Hold, error) {
	if !start.Before(end) {
		return nil, ErrInvalidRange
	}

	var hold *Hold

	err := ix.locker.WithPractitionerLock(ctx, practitionerID, func(lockCtx context.Context) error {
		now := ix.now()

		// Abandoned holds in the range are released here rather than
		// waiting for the reaper, so a crashed client cannot starve the
		// range for the rest of the lease window.
		if _, err := ix.repo.ReleaseExpiredInRange(lockCtx, practitionerID, start, end, now); err != nil {
			return fmt.Errorf("release expired holds: %w", err)
		}

		live, err := ix.repo.ListLiveOverlapping(lockCtx, practitionerID, start, end, now)
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if len(live) > 0 {
			return ErrSlotUnavailable
		}

		open, err := ix.repo.FindOpenCovering(lockCtx, practitionerID, start, end)
		if err != nil {
			if errors.Is(err, ErrNoOpenRegion) {
				return ErrSlotUnavailable
			}
			return fmt.Errorf("find open region: %w", err)
		}

		token := uuid.New()
		heldUntil := now.Add(ix.holdTTL)

		slot, err := ix.repo.CarveHold(lockCtx, *open, start, end, token, heldUntil)
		if err != nil {
			if errors.Is(err, ErrSlotConflict) {
				return ErrSlotUnavailable
			}
			return fmt.Errorf("carve hold: %w", err)
		}

		hold = &Hold{
			SlotID:         slot.ID,
			PractitionerID: practitionerID,
			StartAt:        start,
			EndAt:          end,
			Token:          token,
			HeldUntil:      heldUntil,
		}
		return nil
	})

	switch {
	case err == nil:
		ix.metrics.ObserveHold("success")
		return hold, nil
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		ix.metrics.ObserveHold("contended")
		return nil, ErrPractitionerBusy
	case errors.Is(err, ErrSlotUnavailable):
		ix.metrics.ObserveHold("conflict")
		return nil, err
	default:
		ix.metrics.ObserveHold("error")
		return nil, err
	}
}

// Commit flips a held slot to booked. Repeating the call after success is
// a no-op as long as the slot is still booked for the same appointment.
func (ix *Index) Commit(ctx context.Context, hold *Hold, appointmentID uuid.UUID) error {
	if hold == nil {
		return ErrHoldLost
	}

	_, err := ix.repo.CommitHold(ctx, hold.SlotID, hold.Token, appointmentID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrSlotConflict) {
		return fmt.Errorf("commit hold: %w", err)
	}

	// CAS missed: either a duplicate commit (fine) or the hold expired and
	// was claimed by someone else (not fine).
	slot, getErr := ix.repo.GetSlot(ctx, hold.SlotID)
	if getErr != nil {
		return ErrHoldLost
	}
	if slot.State == SlotBooked && slot.AppointmentID != nil && *slot.AppointmentID == appointmentID {
		return nil
	}
	return ErrHoldLost
}

// Release reverts held/booked slots in [start, end) to open. Idempotent:
// releasing an already-open range changes nothing.
func (ix *Index) Release(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, reason string) error {
	if !start.Before(end) {
		return ErrInvalidRange
	}

	n, err := ix.repo.ReleaseRange(ctx, practitionerID, start, end)
	if err != nil {
		return fmt.Errorf("release range: %w", err)
	}
	if n > 0 {
		ix.metrics.ObserveRelease(reason)
	}
	return nil
}

// ReleaseHold reverts a single held slot to open. The token guard means
// a hold that expired and was reclaimed by another booking is untouched:
// the reclaimed slot carries a different token.
func (ix *Index) ReleaseHold(ctx context.Context, hold *Hold, reason string) error {
	if hold == nil {
		return nil
	}

	released, err := ix.repo.ReleaseHold(ctx, hold.SlotID, hold.Token)
	if err != nil {
		return fmt.Errorf("release hold: %w", err)
	}
	if released {
		ix.metrics.ObserveRelease(reason)
	}
	return nil
}

// ReleaseExpiredHolds enforces the lease: every hold past its window is
// returned to open. Called periodically by the hold reaper.
func (ix *Index) ReleaseExpiredHolds(ctx context.Context) (int, error) {
	n, err := ix.repo.ReleaseExpired(ctx, ix.now())
	if err != nil {
		return 0, fmt.Errorf("release expired holds: %w", err)
	}
	for i := 0; i < n; i++ {
		ix.metrics.ObserveRelease("expired")
	}
	return n, nil
}

// Publish adds a new open region to a practitioner's calendar. The region
// must not overlap any existing slot.
func (ix *Index) Publish(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) (*Slot, error) {
	if !start.Before(end) {
		return nil, ErrInvalidRange
	}

	var slot *Slot

	err := ix.locker.WithPractitionerLock(ctx, practitionerID, func(lockCtx context.Context) error {
		existing, err := ix.repo.ListOverlapping(lockCtx, practitionerID, start, end)
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if len(existing) > 0 {
			return ErrSlotUnavailable
		}

		s, err := ix.repo.CreateOpenSlot(lockCtx, practitionerID, start, end)
		if err != nil {
			return fmt.Errorf("create open slot: %w", err)
		}
		slot = s
		return nil
	})

	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return nil, ErrPractitionerBusy
	}
	if err != nil {
		return nil, err
	}
	return slot, nil
}
