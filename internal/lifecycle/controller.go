// Package lifecycle drives a booking through its state machine:
//
//	Pending -> Locked -> AwaitingPayment -> Completed | Cancelled | Expired
//
// The controller is the only component allowed to mutate booking status;
// the lock manager and the stores report outcomes upward.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/metinatakli/cinema-booking-engine/internal/domain"
	"github.com/metinatakli/cinema-booking-engine/internal/locker"
	"github.com/metinatakli/cinema-booking-engine/internal/retry"
)

// SeatLocker is the slice of the lock manager the controller depends on.
type SeatLocker interface {
	TryLock(ctx context.Context, showKey domain.ShowKey, seatIDs []string, bookingID uuid.UUID) (*locker.LockResult, error)
	Verify(ctx context.Context, showKey domain.ShowKey, seatIDs []string, bookingID uuid.UUID) error
	Release(ctx context.Context, showKey domain.ShowKey, seatIDs []string, bookingID uuid.UUID) error
	TTL() time.Duration
}

// Publisher notifies seat map subscribers after occupancy changes.
type Publisher interface {
	SeatMapChanged(ctx context.Context, showKey domain.ShowKey) error
}

type Controller struct {
	bookings domain.BookingRepository
	seatMaps domain.SeatMapRepository
	catalog  domain.CatalogService
	payments domain.PaymentProvider
	locks    SeatLocker
	feed     Publisher
	logger   *slog.Logger

	now func() time.Time
}

func NewController(
	bookings domain.BookingRepository,
	seatMaps domain.SeatMapRepository,
	catalog domain.CatalogService,
	payments domain.PaymentProvider,
	locks SeatLocker,
	feed Publisher,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		bookings: bookings,
		seatMaps: seatMaps,
		catalog:  catalog,
		payments: payments,
		locks:    locks,
		feed:     feed,
		logger:   logger,
		now:      time.Now,
	}
}

// LockTTL is the advisory time-to-live of seat locks, exposed so callers
// can show the user a countdown that makes expiry unsurprising.
func (c *Controller) LockTTL() time.Duration {
	return c.locks.TTL()
}

// CreateBooking opens a Pending booking for the show, priced from the
// catalog's schedule. The show's seat map is seeded on first use from the
// hall layout.
func (c *Controller) CreateBooking(
	ctx context.Context,
	showKey domain.ShowKey,
	party domain.PartyComposition,
	owner domain.OwnerRef,
) (*domain.Booking, error) {
	if party.Size() == 0 {
		return nil, fmt.Errorf("party composition must contain at least one ticket")
	}

	show, err := c.catalog.GetShow(ctx, showKey)
	if err != nil {
		return nil, fmt.Errorf("resolving show %s: %w", showKey, err)
	}

	if err := c.ensureSeatMap(ctx, show); err != nil {
		return nil, err
	}

	booking := domain.NewBooking(showKey, party, show.Prices.TotalFor(party), owner)
	booking.CreatedAt = c.now()

	if err := c.bookings.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("creating booking: %w", err)
	}

	c.logger.Info("booking created", "booking_id", booking.ID, "show_key", showKey,
		"party_size", party.Size(), "owner_kind", booking.Owner.Kind)

	return booking, nil
}

func (c *Controller) GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	return c.bookings.GetById(ctx, bookingID)
}

// LockSeats attempts the atomic lock for the booking's seat selection and,
// on verified success, moves the booking to Locked. Contention is a
// structured result, not an error: the returned LockResult names every
// conflicting seat so the user can pick alternatives.
func (c *Controller) LockSeats(ctx context.Context, bookingID uuid.UUID, seatIDs []string) (*locker.LockResult, error) {
	booking, err := c.bookings.GetById(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	switch booking.Status {
	case domain.BookingPending, domain.BookingLocked:
	case domain.BookingExpired:
		return nil, domain.ErrStaleLockExpired
	default:
		return nil, domain.ErrInvalidTransition
	}

	if len(seatIDs) != booking.Party.Size() {
		return nil, fmt.Errorf("%w: selected %d seat(s) for a party of %d",
			domain.ErrPartySizeMismatch, len(seatIDs), booking.Party.Size())
	}

	result, err := c.locks.TryLock(ctx, booking.ShowKey, seatIDs, booking.ID)
	if err != nil {
		return nil, err
	}

	if !result.OK {
		return result, nil
	}

	previous := booking.Seats

	lockAcquiredAt := c.now()
	booking.Seats = seatIDs
	booking.LockAcquiredAt = &lockAcquiredAt
	booking.Status = domain.BookingLocked

	if err := c.bookings.Update(ctx, booking, domain.BookingPending, domain.BookingLocked); err != nil {
		// An expiry trigger won the race; give the seats back.
		c.releaseQuietly(ctx, booking)
		if errors.Is(err, domain.ErrEditConflict) {
			return nil, domain.ErrStaleLockExpired
		}
		return nil, err
	}

	c.publishChange(ctx, booking.ShowKey)

	if err := c.locks.Verify(ctx, booking.ShowKey, seatIDs, booking.ID); err != nil {
		// The verifier already released the disputed seats; the booking
		// falls back to Pending so the user can retry the selection.
		booking.Seats = nil
		booking.LockAcquiredAt = nil
		booking.Status = domain.BookingPending

		if updErr := c.bookings.Update(ctx, booking, domain.BookingLocked); updErr != nil {
			c.logger.Error("failed to rewind unverified booking", "error", updErr, "booking_id", booking.ID)
		}

		c.publishChange(ctx, booking.ShowKey)

		return nil, err
	}

	// A re-selection supersedes the previous hold; give those seats back
	// instead of letting them ride out the TTL.
	if stale := seatsNotIn(previous, seatIDs); len(stale) > 0 {
		if err := c.locks.Release(ctx, booking.ShowKey, stale, booking.ID); err != nil {
			c.logger.Error("failed to release superseded seats", "error", err, "booking_id", booking.ID)
		}
	}

	c.logger.Info("seats locked", "booking_id", booking.ID, "show_key", booking.ShowKey, "seats", seatIDs)

	return result, nil
}

func seatsNotIn(seats, keep []string) []string {
	var out []string

	for _, id := range seats {
		found := false
		for _, k := range keep {
			if id == k {
				found = true
				break
			}
		}
		if !found {
			out = append(out, id)
		}
	}

	return out
}

// ConfirmPayment charges the booking's total and, on success, performs the
// all-or-nothing Completed transition: the booking row and every seat's
// LockedBy -> BookedBy promotion commit in one transaction. A booking whose
// locks were expired or superseded in the meantime fails with
// ErrStaleLockExpired and is never silently completed.
func (c *Controller) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, paymentMethod string) (*domain.Booking, error) {
	booking, err := c.bookings.GetById(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	switch booking.Status {
	case domain.BookingLocked:
	case domain.BookingExpired:
		return nil, domain.ErrStaleLockExpired
	default:
		return nil, domain.ErrInvalidTransition
	}

	// Claiming AwaitingPayment closes the cancellation window: from here on
	// only the payment outcome or the TTL decides the booking's fate.
	booking.Status = domain.BookingAwaitingPayment
	if err := c.bookings.Update(ctx, booking, domain.BookingLocked); err != nil {
		if errors.Is(err, domain.ErrEditConflict) {
			return nil, domain.ErrStaleLockExpired
		}
		return nil, err
	}

	// The charge must never run against seats the booking no longer holds.
	seatMap, err := c.seatMaps.GetByShowKey(ctx, booking.ShowKey)
	if err != nil {
		return nil, err
	}

	if !seatMap.LockedBy(booking.Seats, booking.ID, c.now(), c.locks.TTL()) {
		c.expireBeforePayment(ctx, booking)
		return nil, domain.ErrStaleLockExpired
	}

	chargeResult, err := c.payments.Charge(ctx, domain.ChargeRequest{
		BookingID:     booking.ID,
		Amount:        booking.TotalPrice,
		Currency:      "USD",
		PaymentMethod: paymentMethod,
		CustomerEmail: booking.Owner.ContactEmail(),
		Description:   fmt.Sprintf("Cinema booking %s", booking.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("charging booking %s: %w", booking.ID, err)
	}

	if chargeResult.Outcome != domain.PaymentSucceeded {
		if err := c.terminate(ctx, booking, domain.BookingCancelled, domain.BookingAwaitingPayment); err != nil {
			c.logger.Error("failed to cancel booking after decline", "error", err, "booking_id", booking.ID)
		}

		c.logger.Info("payment declined", "booking_id", booking.ID, "reason", chargeResult.DeclineReason)

		return nil, fmt.Errorf("%w: %s", domain.ErrPaymentDeclined, chargeResult.DeclineReason)
	}

	if err := c.complete(ctx, booking, seatMap); err != nil {
		return nil, err
	}

	c.publishChange(ctx, booking.ShowKey)
	c.logger.Info("booking completed", "booking_id", booking.ID, "payment_ref", chargeResult.Reference)

	return booking, nil
}

// complete commits the Completed transition, retrying the read-book-write
// cycle when the seat map moved for an unrelated reason (another show
// seat's lock expiring, for example) between the pre-charge check and the
// transactional write.
func (c *Controller) complete(ctx context.Context, booking *domain.Booking, seatMap *domain.SeatMap) error {
	first := true

	err := retry.Do(ctx, 3, 25*time.Millisecond, func(err error) bool {
		return errors.Is(err, domain.ErrEditConflict)
	}, func(ctx context.Context) error {
		if !first {
			var err error
			seatMap, err = c.seatMaps.GetByShowKey(ctx, booking.ShowKey)
			if err != nil {
				return err
			}
		}
		first = false

		if err := seatMap.Book(booking.Seats, booking.ID, c.now(), c.locks.TTL()); err != nil {
			return err
		}

		booking.Status = domain.BookingCompleted
		return c.bookings.Complete(ctx, booking, seatMap)
	})

	if err != nil {
		if errors.Is(err, domain.ErrStaleLockExpired) {
			booking.Status = domain.BookingAwaitingPayment
			c.expireBeforePayment(ctx, booking)
			return domain.ErrStaleLockExpired
		}
		booking.Status = domain.BookingAwaitingPayment
		return fmt.Errorf("completing booking %s: %w", booking.ID, err)
	}

	return nil
}

// Cancel is the user-driven abandonment path (countdown expiry on the
// selection screen, tab close, explicit release). It is gated so a booking
// that has begun payment is never released out from under an in-flight
// charge, and it is idempotent against the other trigger paths.
func (c *Controller) Cancel(ctx context.Context, bookingID uuid.UUID) error {
	booking, err := c.bookings.GetById(ctx, bookingID)
	if err != nil {
		return err
	}

	if booking.Status.Terminal() {
		return nil
	}

	if booking.Status == domain.BookingAwaitingPayment {
		return domain.ErrInvalidTransition
	}

	return c.terminate(ctx, booking, domain.BookingCancelled, domain.BookingPending, domain.BookingLocked)
}

// Expire is the TTL path, fired by the fallback timer and the server-side
// sweep. Unlike Cancel it also reclaims AwaitingPayment bookings whose
// charge never confirmed, so a crashed client cannot pin seats forever.
func (c *Controller) Expire(ctx context.Context, bookingID uuid.UUID) error {
	booking, err := c.bookings.GetById(ctx, bookingID)
	if err != nil {
		return err
	}

	if booking.Status.Terminal() {
		return nil
	}

	return c.terminate(ctx, booking, domain.BookingExpired,
		domain.BookingPending, domain.BookingLocked, domain.BookingAwaitingPayment)
}

// terminate claims the terminal transition with a guarded status write,
// then releases the booking's seats. Losing the guarded write means a
// racing trigger already terminated the booking, which is fine.
func (c *Controller) terminate(ctx context.Context, booking *domain.Booking, to domain.BookingStatus, from ...domain.BookingStatus) error {
	if !booking.Status.CanTransitionTo(to) {
		return domain.ErrInvalidTransition
	}

	booking.Status = to

	if err := c.bookings.Update(ctx, booking, from...); err != nil {
		if errors.Is(err, domain.ErrEditConflict) {
			current, getErr := c.bookings.GetById(ctx, booking.ID)
			if getErr == nil && current.Status.Terminal() {
				return nil
			}
		}
		return err
	}

	if len(booking.Seats) > 0 {
		if err := c.locks.Release(ctx, booking.ShowKey, booking.Seats, booking.ID); err != nil {
			return err
		}
	}

	c.publishChange(ctx, booking.ShowKey)
	c.logger.Info("booking terminated", "booking_id", booking.ID, "status", to)

	return nil
}

// SeatMapSnapshot returns the show's seat map with lock staleness already
// evaluated, which is what UIs should render.
func (c *Controller) SeatMapSnapshot(ctx context.Context, showKey domain.ShowKey) (*domain.SeatMap, error) {
	seatMap, err := c.seatMaps.GetByShowKey(ctx, showKey)
	if err != nil {
		return nil, err
	}

	now := c.now()
	ttl := c.locks.TTL()

	for id := range seatMap.Seats {
		status, owner := seatMap.EffectiveStatus(id, now, ttl)
		seat := domain.Seat{Status: status}
		if status != domain.SeatAvailable {
			seat.BookingID = &owner
			seat.LockedAt = seatMap.Seats[id].LockedAt
		}
		seatMap.Seats[id] = seat
	}

	return seatMap, nil
}

func (c *Controller) expireBeforePayment(ctx context.Context, booking *domain.Booking) {
	if err := c.terminate(ctx, booking, domain.BookingExpired, domain.BookingAwaitingPayment); err != nil {
		c.logger.Error("failed to expire booking with lost locks", "error", err, "booking_id", booking.ID)
	}
}

func (c *Controller) ensureSeatMap(ctx context.Context, show *domain.ShowInfo) error {
	key := show.Show.Key()

	_, err := c.seatMaps.GetByShowKey(ctx, key)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrRecordNotFound) {
		return err
	}

	layout, err := c.catalog.GetHallSeatLayout(ctx, show.Show.HallID)
	if err != nil {
		return fmt.Errorf("resolving hall layout: %w", err)
	}

	seatMap := domain.NewSeatMap(key, seatIDsFromLayout(layout))

	if err := c.seatMaps.Create(ctx, seatMap); err != nil {
		// Another session seeded the map first.
		if errors.Is(err, domain.ErrEditConflict) {
			return nil
		}
		return err
	}

	return nil
}

func seatIDsFromLayout(layout *domain.HallLayout) []string {
	ids := make([]string, 0, layout.Rows*layout.Columns)

	for row := 0; row < layout.Rows; row++ {
		for col := 1; col <= layout.Columns; col++ {
			ids = append(ids, fmt.Sprintf("%c%d", 'A'+row, col))
		}
	}

	return ids
}

func (c *Controller) releaseQuietly(ctx context.Context, booking *domain.Booking) {
	if len(booking.Seats) == 0 {
		return
	}

	if err := c.locks.Release(ctx, booking.ShowKey, booking.Seats, booking.ID); err != nil {
		c.logger.Error("failed to release seats", "error", err, "booking_id", booking.ID)
	}
}

func (c *Controller) publishChange(ctx context.Context, showKey domain.ShowKey) {
	if c.feed == nil {
		return
	}

	if err := c.feed.SeatMapChanged(ctx, showKey); err != nil {
		c.logger.Error("failed to publish seat map change", "error", err, "show_key", showKey)
	}
}
