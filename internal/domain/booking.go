package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending         BookingStatus = "pending"
	BookingLocked          BookingStatus = "locked"
	BookingAwaitingPayment BookingStatus = "awaiting_payment"
	BookingCompleted       BookingStatus = "completed"
	BookingCancelled       BookingStatus = "cancelled"
	BookingExpired         BookingStatus = "expired"
)

// bookingTransitions is the full state machine. No transition leaves a
// terminal state; a retry after Cancelled or Expired creates a new booking.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:         {BookingLocked, BookingCancelled, BookingExpired},
	BookingLocked:          {BookingAwaitingPayment, BookingCancelled, BookingExpired},
	BookingAwaitingPayment: {BookingCompleted, BookingCancelled, BookingExpired},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled || s == BookingExpired
}

// PartyComposition is the ticket-type breakdown the user committed to.
type PartyComposition struct {
	Full    int `json:"full"`
	Student int `json:"student"`
}

func (p PartyComposition) Size() int {
	return p.Full + p.Student
}

type OwnerKind string

const (
	OwnerUser  OwnerKind = "user"
	OwnerGuest OwnerKind = "guest"
)

type GuestContact struct {
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
}

// OwnerRef is the tagged owner of a booking: an authenticated user ID or an
// inline guest contact, never both. The choice is fixed at creation time.
type OwnerRef struct {
	Kind   OwnerKind
	UserID int
	Guest  *GuestContact
}

func UserOwner(userID int) OwnerRef {
	return OwnerRef{Kind: OwnerUser, UserID: userID}
}

func GuestOwner(contact GuestContact) OwnerRef {
	return OwnerRef{Kind: OwnerGuest, Guest: &contact}
}

// ContactEmail is the receipt address for guest bookings. Authenticated
// users' contact details live with the identity provider, so this is empty
// for them.
func (o OwnerRef) ContactEmail() string {
	if o.Kind == OwnerGuest && o.Guest != nil {
		return o.Guest.Email
	}

	return ""
}

// Booking is one checkout attempt. It is exclusively owned by the session
// that created it until it reaches a terminal state, after which it is
// read-mostly history.
type Booking struct {
	ID             uuid.UUID
	ShowKey        ShowKey
	Status         BookingStatus
	Seats          []string
	Party          PartyComposition
	TotalPrice     decimal.Decimal
	Owner          OwnerRef
	CreatedAt      time.Time
	LockAcquiredAt *time.Time
}

func NewBooking(showKey ShowKey, party PartyComposition, price decimal.Decimal, owner OwnerRef) *Booking {
	return &Booking{
		ID:         uuid.New(),
		ShowKey:    showKey,
		Status:     BookingPending,
		Party:      party,
		TotalPrice: price,
		Owner:      owner,
	}
}

type BookingRepository interface {
	Create(ctx context.Context, booking *Booking) error

	// GetById returns ErrRecordNotFound when no such booking exists.
	GetById(ctx context.Context, id uuid.UUID) (*Booking, error)

	// Update persists the booking's mutable fields (status, seats,
	// lockAcquiredAt) guarded by the statuses the caller observed. When the
	// stored status matches none of them the write is rejected with
	// ErrEditConflict, which is how racing expiry triggers stay idempotent.
	Update(ctx context.Context, booking *Booking, from ...BookingStatus) error

	// Complete atomically flips the booking to Completed and writes the
	// seat map document carrying the LockedBy -> BookedBy promotion, in a
	// single transaction with the map's CAS precondition. Either both
	// records change or neither does.
	Complete(ctx context.Context, booking *Booking, seatMap *SeatMap) error

	// ListExpiryCandidates returns non-terminal bookings whose locks were
	// acquired before the cutoff, for the server-side sweep.
	ListExpiryCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*Booking, error)
}
