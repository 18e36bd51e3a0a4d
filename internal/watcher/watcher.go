// Package watcher reclaims abandoned bookings. Expiry has three triggers
// that all converge on the same release path: the client-side countdown
// (reported through SessionEnded), a per-booking fallback timer armed when
// seats are locked, and a periodic sweep over the booking store that
// catches bookings whose timers were lost to a process restart.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/metinatakli/cinema-booking-engine/internal/domain"
)

// BookingTerminator is the slice of the lifecycle controller the watcher
// drives. Cancel refuses bookings that have begun payment; Expire does not.
type BookingTerminator interface {
	Cancel(ctx context.Context, bookingID uuid.UUID) error
	Expire(ctx context.Context, bookingID uuid.UUID) error
}

type Config struct {
	LockTTL       time.Duration
	TimerGrace    time.Duration
	SweepInterval time.Duration
	SweepLimit    int
}

type Watcher struct {
	bookings  domain.BookingRepository
	lifecycle BookingTerminator
	logger    *slog.Logger
	cfg       Config

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(bookings domain.BookingRepository, lifecycle BookingTerminator, logger *slog.Logger, cfg Config) *Watcher {
	if cfg.TimerGrace <= 0 {
		cfg.TimerGrace = 30 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.SweepLimit <= 0 {
		cfg.SweepLimit = 100
	}

	return &Watcher{
		bookings:  bookings,
		lifecycle: lifecycle,
		logger:    logger,
		cfg:       cfg,
		timers:    make(map[uuid.UUID]*time.Timer),
		done:      make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called.
func (w *Watcher) Start() {
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.cfg.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-w.done:
				return
			case <-ticker.C:
				w.sweep()
			}
		}
	}()
}

// Stop cancels the sweep loop and every armed fallback timer.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()

	for id, timer := range w.timers {
		timer.Stop()
		delete(w.timers, id)
	}
}

// Track arms the fallback timer for a booking that just acquired its seat
// locks. The timer fires a little after the advertised TTL so that a
// well-behaved client's own countdown always wins the race. Re-tracking a
// booking resets its timer.
func (w *Watcher) Track(bookingID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[bookingID]; ok {
		timer.Stop()
	}

	w.timers[bookingID] = time.AfterFunc(w.cfg.LockTTL+w.cfg.TimerGrace, func() {
		w.expire(bookingID)
	})
}

// Untrack disarms a booking's fallback timer once it reaches a terminal
// state through another path.
func (w *Watcher) Untrack(bookingID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[bookingID]; ok {
		timer.Stop()
		delete(w.timers, bookingID)
	}
}

// SessionEnded handles the client-reported abandonment paths: the seat
// selection countdown elapsing or the user's session closing. Bookings
// already paying are left alone for the fallback timer to judge.
func (w *Watcher) SessionEnded(ctx context.Context, bookingID uuid.UUID) error {
	w.Untrack(bookingID)

	err := w.lifecycle.Cancel(ctx, bookingID)
	if errors.Is(err, domain.ErrInvalidTransition) {
		return nil
	}

	return err
}

func (w *Watcher) expire(bookingID uuid.UUID) {
	w.Untrack(bookingID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.lifecycle.Expire(ctx, bookingID); err != nil {
		w.logger.Error("fallback expiry failed", "error", err, "booking_id", bookingID)
	}
}

// sweep expires every non-terminal booking whose lock window has passed.
// It is the safety net for timers lost to a restart, so it rearms nothing.
func (w *Watcher) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-w.cfg.LockTTL)

	candidates, err := w.bookings.ListExpiryCandidates(ctx, cutoff, w.cfg.SweepLimit)
	if err != nil {
		w.logger.Error("expiry sweep query failed", "error", err)
		return
	}

	for _, booking := range candidates {
		w.Untrack(booking.ID)

		if err := w.lifecycle.Expire(ctx, booking.ID); err != nil {
			w.logger.Error("sweep expiry failed", "error", err, "booking_id", booking.ID)
			continue
		}

		w.logger.Info("expired abandoned booking", "booking_id", booking.ID, "show_key", booking.ShowKey)
	}
}
