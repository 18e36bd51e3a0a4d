// Package locker implements the seat lock manager and the post-write
// conflict verifier on top of the seat map store's conditional writes.
package locker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/metinatakli/cinema-booking-engine/internal/domain"
	"github.com/metinatakli/cinema-booking-engine/internal/retry"
)

const (
	defaultLockTTL        = 15 * time.Minute
	defaultCASAttempts    = 5
	defaultCASBackoff     = 50 * time.Millisecond
	defaultVerifyAttempts = 3
	defaultVerifyBackoff  = 500 * time.Millisecond
)

type Config struct {
	LockTTL        time.Duration
	CASAttempts    int
	CASBackoff     time.Duration
	VerifyAttempts int
	VerifyBackoff  time.Duration
}

// Manager serializes concurrent seat claims through the seat map document's
// compare-and-swap write. It never mutates booking records; outcomes are
// reported upward to the lifecycle controller.
type Manager struct {
	seatMaps domain.SeatMapRepository
	logger   *slog.Logger
	cfg      Config

	now func() time.Time
}

func New(seatMaps domain.SeatMapRepository, logger *slog.Logger, cfg Config) *Manager {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	if cfg.CASAttempts <= 0 {
		cfg.CASAttempts = defaultCASAttempts
	}
	if cfg.CASBackoff <= 0 {
		cfg.CASBackoff = defaultCASBackoff
	}
	if cfg.VerifyAttempts <= 0 {
		cfg.VerifyAttempts = defaultVerifyAttempts
	}
	if cfg.VerifyBackoff <= 0 {
		cfg.VerifyBackoff = defaultVerifyBackoff
	}

	return &Manager{
		seatMaps: seatMaps,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// TTL is the lock time-to-live every reader uses for staleness evaluation.
func (m *Manager) TTL() time.Duration {
	return m.cfg.LockTTL
}

// LockResult is the structured outcome of a TryLock call. Expected
// contention is not an error: OK is false and Conflicts names the seats
// another booking holds.
type LockResult struct {
	OK        bool
	Conflicts []string
}

// TryLock runs the read-check-write cycle for the requested seats. The
// conditional write fails when the map changed since the read, in which
// case the whole cycle is retried a bounded number of times. Seats already
// locked by the same booking satisfy the request, so retries after an
// ambiguous outcome are idempotent.
func (m *Manager) TryLock(ctx context.Context, showKey domain.ShowKey, seatIDs []string, bookingID uuid.UUID) (*LockResult, error) {
	if len(seatIDs) == 0 {
		return nil, fmt.Errorf("no seats requested")
	}

	result := &LockResult{}

	err := retry.Do(ctx, m.cfg.CASAttempts, m.cfg.CASBackoff, isEditConflict, func(ctx context.Context) error {
		seatMap, err := m.seatMaps.GetByShowKey(ctx, showKey)
		if err != nil {
			return err
		}

		conflicts := seatMap.Lock(seatIDs, bookingID, m.now(), m.cfg.LockTTL)
		if len(conflicts) > 0 {
			result.OK = false
			result.Conflicts = conflicts
			return nil
		}

		if err := m.seatMaps.Update(ctx, seatMap); err != nil {
			return err
		}

		result.OK = true
		result.Conflicts = nil
		return nil
	})

	if err != nil {
		if errors.Is(err, domain.ErrEditConflict) {
			// The map kept changing under us for every attempt. Report the
			// contention as retryable rather than guessing at seat owners.
			m.logger.Warn("seat lock gave up after repeated write conflicts",
				"show_key", showKey, "booking_id", bookingID)
			return nil, fmt.Errorf("locking seats for booking %s: %w", bookingID, domain.ErrVerificationFailed)
		}
		return nil, fmt.Errorf("locking seats for booking %s: %w", bookingID, err)
	}

	return result, nil
}

// Verify re-reads the seat map after a successful TryLock and confirms
// every requested seat is exactly locked by the booking. The store's write
// can be a multi-step transaction whose visible effect lags, so the read is
// retried with a fixed backoff. If verification still fails, the disputed
// seats are released and ErrVerificationFailed is returned; the caller must
// never proceed to payment on an unverified lock.
func (m *Manager) Verify(ctx context.Context, showKey domain.ShowKey, seatIDs []string, bookingID uuid.UUID) error {
	var disputed []string

	err := retry.Do(ctx, m.cfg.VerifyAttempts, m.cfg.VerifyBackoff, isVerificationFailed, func(ctx context.Context) error {
		seatMap, err := m.seatMaps.GetByShowKey(ctx, showKey)
		if err != nil {
			return err
		}

		disputed = disputed[:0]
		now := m.now()

		for _, id := range seatIDs {
			status, owner := seatMap.EffectiveStatus(id, now, m.cfg.LockTTL)
			if status != domain.SeatLocked || owner != bookingID {
				disputed = append(disputed, id)
			}
		}

		if len(disputed) > 0 {
			return domain.ErrVerificationFailed
		}

		return nil
	})

	if err == nil {
		return nil
	}

	if errors.Is(err, domain.ErrVerificationFailed) {
		m.logger.Warn("seat lock verification failed, releasing disputed seats",
			"show_key", showKey, "booking_id", bookingID, "disputed", disputed)

		if relErr := m.Release(ctx, showKey, seatIDs, bookingID); relErr != nil {
			m.logger.Error("failed to release disputed seats", "error", relErr,
				"show_key", showKey, "booking_id", bookingID)
		}

		return fmt.Errorf("%w: %w", domain.ErrVerificationFailed,
			&domain.SeatConflictError{Seats: disputed})
	}

	return fmt.Errorf("verifying seat locks for booking %s: %w", bookingID, err)
}

// Release downgrades any of the given seats still locked by the booking
// back to available. It is best-effort and idempotent: seats owned by
// another booking or already available are skipped silently, and racing
// callers converge on the same end state. Release must stay safe to call
// from every cleanup trigger path concurrently.
func (m *Manager) Release(ctx context.Context, showKey domain.ShowKey, seatIDs []string, bookingID uuid.UUID) error {
	if len(seatIDs) == 0 {
		return nil
	}

	err := retry.Do(ctx, m.cfg.CASAttempts, m.cfg.CASBackoff, isEditConflict, func(ctx context.Context) error {
		seatMap, err := m.seatMaps.GetByShowKey(ctx, showKey)
		if err != nil {
			return err
		}

		if seatMap.Release(seatIDs, bookingID) == 0 {
			return nil
		}

		return m.seatMaps.Update(ctx, seatMap)
	})

	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("releasing seats for booking %s: %w", bookingID, err)
	}

	return nil
}

func isEditConflict(err error) bool {
	return errors.Is(err, domain.ErrEditConflict)
}

func isVerificationFailed(err error) bool {
	return errors.Is(err, domain.ErrVerificationFailed)
}
