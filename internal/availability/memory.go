package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/scheduling-core/internal/timerange"
)

// MemoryRepository is an in-memory Repository with the same range
// semantics as the Postgres implementation. It backs unit tests and the
// simulator's local mode; it is not safe for multi-process use.
type MemoryRepository struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*Slot
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{slots: map[uuid.UUID]*Slot{}}
}

func (m *MemoryRepository) overlapping(practitionerID uuid.UUID, start, end time.Time) []*Slot {
	var out []*Slot
	for _, s := range m.slots {
		if s.PractitionerID == practitionerID && timerange.Overlaps(s.StartAt, s.EndAt, start, end) {
			out = append(out, s)
		}
	}
	return out
}

func (m *MemoryRepository) ListLiveOverlapping(_ context.Context, practitionerID uuid.UUID, start, end time.Time, now time.Time) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Slot
	for _, s := range m.overlapping(practitionerID, start, end) {
		if s.Live(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *MemoryRepository) ListOverlapping(_ context.Context, practitionerID uuid.UUID, start, end time.Time) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Slot
	for _, s := range m.overlapping(practitionerID, start, end) {
		out = append(out, *s)
	}
	return out, nil
}

func (m *MemoryRepository) FindOpenCovering(_ context.Context, practitionerID uuid.UUID, start, end time.Time) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.PractitionerID == practitionerID && s.State == SlotOpen &&
			!s.StartAt.After(start) && !s.EndAt.Before(end) {
			c := *s
			return &c, nil
		}
	}
	return nil, ErrNoOpenRegion
}

func (m *MemoryRepository) CarveHold(_ context.Context, open Slot, start, end time.Time, token uuid.UUID, heldUntil time.Time) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.slots[open.ID]
	if !ok || cur.State != SlotOpen {
		return nil, ErrSlotConflict
	}
	delete(m.slots, open.ID)

	held := &Slot{
		ID:             uuid.New(),
		PractitionerID: open.PractitionerID,
		StartAt:        start,
		EndAt:          end,
		State:          SlotHeld,
		HoldToken:      &token,
		HeldUntil:      &heldUntil,
	}
	m.slots[held.ID] = held

	if open.StartAt.Before(start) {
		s := &Slot{ID: uuid.New(), PractitionerID: open.PractitionerID, StartAt: open.StartAt, EndAt: start, State: SlotOpen}
		m.slots[s.ID] = s
	}
	if end.Before(open.EndAt) {
		s := &Slot{ID: uuid.New(), PractitionerID: open.PractitionerID, StartAt: end, EndAt: open.EndAt, State: SlotOpen}
		m.slots[s.ID] = s
	}

	c := *held
	return &c, nil
}

func (m *MemoryRepository) CommitHold(_ context.Context, slotID, token, appointmentID uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[slotID]
	if !ok || s.State != SlotHeld || s.HoldToken == nil || *s.HoldToken != token {
		return nil, ErrSlotConflict
	}
	s.State = SlotBooked
	s.AppointmentID = &appointmentID
	s.HoldToken = nil
	s.HeldUntil = nil
	c := *s
	return &c, nil
}

func (m *MemoryRepository) GetSlot(_ context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	c := *s
	return &c, nil
}

func (m *MemoryRepository) ReleaseRange(_ context.Context, practitionerID uuid.UUID, start, end time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, s := range m.overlapping(practitionerID, start, end) {
		if s.State == SlotHeld || s.State == SlotBooked {
			s.State = SlotOpen
			s.HoldToken = nil
			s.HeldUntil = nil
			s.AppointmentID = nil
			count++
		}
	}
	m.coalesce(practitionerID)
	return count, nil
}

func (m *MemoryRepository) ReleaseHold(_ context.Context, slotID, token uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[slotID]
	if !ok || s.State != SlotHeld || s.HoldToken == nil || *s.HoldToken != token {
		return false, nil
	}
	s.State = SlotOpen
	s.HoldToken = nil
	s.HeldUntil = nil
	m.coalesce(s.PractitionerID)
	return true, nil
}

func (m *MemoryRepository) ReleaseExpiredInRange(_ context.Context, practitionerID uuid.UUID, start, end time.Time, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, s := range m.overlapping(practitionerID, start, end) {
		if s.State == SlotHeld && s.HeldUntil != nil && !s.HeldUntil.After(now) {
			s.State = SlotOpen
			s.HoldToken = nil
			s.HeldUntil = nil
			count++
		}
	}
	if count > 0 {
		m.coalesce(practitionerID)
	}
	return count, nil
}

func (m *MemoryRepository) ReleaseExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	seen := map[uuid.UUID]struct{}{}
	for _, s := range m.slots {
		if s.State == SlotHeld && s.HeldUntil != nil && !s.HeldUntil.After(now) {
			s.State = SlotOpen
			s.HoldToken = nil
			s.HeldUntil = nil
			seen[s.PractitionerID] = struct{}{}
			count++
		}
	}
	for id := range seen {
		m.coalesce(id)
	}
	return count, nil
}

func (m *MemoryRepository) CreateOpenSlot(_ context.Context, practitionerID uuid.UUID, start, end time.Time) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Slot{ID: uuid.New(), PractitionerID: practitionerID, StartAt: start, EndAt: end, State: SlotOpen}
	m.slots[s.ID] = s
	c := *s
	return &c, nil
}

func (m *MemoryRepository) coalesce(practitionerID uuid.UUID) {
	for {
		merged := false
		var opens []*Slot
		for _, s := range m.slots {
			if s.PractitionerID == practitionerID && s.State == SlotOpen {
				opens = append(opens, s)
			}
		}
		sort.Slice(opens, func(i, j int) bool { return opens[i].StartAt.Before(opens[j].StartAt) })
		for i := 0; i+1 < len(opens); i++ {
			if opens[i].EndAt.Equal(opens[i+1].StartAt) {
				opens[i].EndAt = opens[i+1].EndAt
				delete(m.slots, opens[i+1].ID)
				merged = true
				break
			}
		}
		if !merged {
			return
		}
	}
}

// OpenSlots returns the practitioner's open intervals sorted by start.
func (m *MemoryRepository) OpenSlots(practitionerID uuid.UUID) []Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Slot
	for _, s := range m.slots {
		if s.PractitionerID == practitionerID && s.State == SlotOpen {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out
}
