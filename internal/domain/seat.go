package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatLocked    SeatStatus = "locked"
	SeatBooked    SeatStatus = "booked"
)

// Seat is one entry of a show's seat map document. BookingID and LockedAt
// are only set while the seat is locked or booked.
type Seat struct {
	Status    SeatStatus `json:"status"`
	BookingID *uuid.UUID `json:"booking_id,omitempty"`
	LockedAt  *time.Time `json:"locked_at,omitempty"`
}

// SeatMap is the occupancy document for one show. It is the single source
// of truth for seat ownership and the only shared mutable resource of the
// engine. Version is the optimistic concurrency token: every write must
// carry the version it read, and the store rejects the write if the map
// changed in between.
type SeatMap struct {
	ShowKey      ShowKey
	Seats        map[string]Seat
	Version      int64
	LastLockedAt *time.Time
}

// NewSeatMap seeds an all-available map for the given seat identifiers.
func NewSeatMap(key ShowKey, seatIDs []string) *SeatMap {
	seats := make(map[string]Seat, len(seatIDs))
	for _, id := range seatIDs {
		seats[id] = Seat{Status: SeatAvailable}
	}

	return &SeatMap{ShowKey: key, Seats: seats}
}

// EffectiveStatus evaluates a seat's status with lazy lock expiry: a lock
// older than ttl is reported as available regardless of what the document
// says, so a crashed client's lock never blocks a new booking. The owning
// booking ID is returned for locked and booked seats.
func (m *SeatMap) EffectiveStatus(seatID string, now time.Time, ttl time.Duration) (SeatStatus, uuid.UUID) {
	seat, ok := m.Seats[seatID]
	if !ok {
		return "", uuid.Nil
	}

	switch seat.Status {
	case SeatLocked:
		if seat.LockedAt == nil || now.Sub(*seat.LockedAt) > ttl {
			return SeatAvailable, uuid.Nil
		}
		return SeatLocked, *seat.BookingID
	case SeatBooked:
		return SeatBooked, *seat.BookingID
	default:
		return SeatAvailable, uuid.Nil
	}
}

// Lock validates and claims the given seats for bookingID in memory. It
// returns the identifiers that failed validation; the map is only mutated
// when the conflict list is empty. Seats already locked by the same booking
// are re-stamped, which makes retries idempotent. Unknown seat IDs are
// reported as conflicts rather than being created.
func (m *SeatMap) Lock(seatIDs []string, bookingID uuid.UUID, now time.Time, ttl time.Duration) []string {
	var conflicts []string

	for _, id := range seatIDs {
		if _, ok := m.Seats[id]; !ok {
			conflicts = append(conflicts, id)
			continue
		}

		status, owner := m.EffectiveStatus(id, now, ttl)
		if status == SeatAvailable {
			continue
		}

		if status == SeatLocked && owner == bookingID {
			continue
		}

		conflicts = append(conflicts, id)
	}

	if len(conflicts) > 0 {
		return conflicts
	}

	lockedAt := now
	for _, id := range seatIDs {
		m.Seats[id] = Seat{Status: SeatLocked, BookingID: &bookingID, LockedAt: &lockedAt}
	}
	m.LastLockedAt = &lockedAt

	return nil
}

// Release downgrades every listed seat currently locked by bookingID back
// to available and reports how many seats actually changed. Seats owned by
// another booking, already booked, or already available are left untouched,
// so Release is safe to call repeatedly from racing trigger paths.
func (m *SeatMap) Release(seatIDs []string, bookingID uuid.UUID) int {
	released := 0

	for _, id := range seatIDs {
		seat, ok := m.Seats[id]
		if !ok {
			continue
		}

		if seat.Status != SeatLocked || seat.BookingID == nil || *seat.BookingID != bookingID {
			continue
		}

		m.Seats[id] = Seat{Status: SeatAvailable}
		released++
	}

	return released
}

// LockedBy reports whether every listed seat is currently locked by
// bookingID and none of the locks has gone stale.
func (m *SeatMap) LockedBy(seatIDs []string, bookingID uuid.UUID, now time.Time, ttl time.Duration) bool {
	for _, id := range seatIDs {
		status, owner := m.EffectiveStatus(id, now, ttl)
		if status != SeatLocked || owner != bookingID {
			return false
		}
	}

	return true
}

// Book promotes the booking's locked seats to booked. It fails with
// ErrStaleLockExpired if any seat is no longer held by the booking, which
// is how a late payment confirmation is prevented from completing against
// seats that were released or taken over in the meantime.
func (m *SeatMap) Book(seatIDs []string, bookingID uuid.UUID, now time.Time, ttl time.Duration) error {
	if !m.LockedBy(seatIDs, bookingID, now, ttl) {
		return ErrStaleLockExpired
	}

	for _, id := range seatIDs {
		m.Seats[id] = Seat{Status: SeatBooked, BookingID: &bookingID}
	}

	return nil
}

type SeatMapRepository interface {
	// GetByShowKey returns ErrRecordNotFound when no map exists for the show.
	GetByShowKey(ctx context.Context, key ShowKey) (*SeatMap, error)

	// Create persists a freshly seeded map at version zero.
	Create(ctx context.Context, seatMap *SeatMap) error

	// Update writes the document conditionally on the version it was read
	// at and returns ErrEditConflict when the map was concurrently
	// modified. On success the in-memory version is advanced.
	Update(ctx context.Context, seatMap *SeatMap) error
}
