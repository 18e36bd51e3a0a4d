package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/cinema-booking-engine/internal/domain"
)

type PostgresBookingRepository struct {
	db *pgxpool.Pool
}

func NewPostgresBookingRepository(db *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{
		db: db,
	}
}

func (p *PostgresBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	query := `
		INSERT INTO bookings (
			id, show_key, status, seats, party_full, party_student, total_price,
			owner_kind, owner_user_id, guest_full_name, guest_email, guest_phone
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`

	var ownerUserID *int
	var guestName, guestEmail, guestPhone *string

	switch booking.Owner.Kind {
	case domain.OwnerUser:
		ownerUserID = &booking.Owner.UserID
	case domain.OwnerGuest:
		guestName = &booking.Owner.Guest.FullName
		guestEmail = &booking.Owner.Guest.Email
		guestPhone = &booking.Owner.Guest.PhoneNumber
	}

	err := p.db.QueryRow(
		ctx,
		query,
		booking.ID,
		string(booking.ShowKey),
		booking.Status,
		booking.Seats,
		booking.Party.Full,
		booking.Party.Student,
		booking.TotalPrice,
		booking.Owner.Kind,
		ownerUserID,
		guestName,
		guestEmail,
		guestPhone).Scan(&booking.CreatedAt)

	if err != nil {
		return translateStoreError(err)
	}

	return nil
}

func (p *PostgresBookingRepository) GetById(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	query := `
		SELECT id, show_key, status, seats, party_full, party_student, total_price,
			owner_kind, owner_user_id, guest_full_name, guest_email, guest_phone,
			created_at, lock_acquired_at
		FROM bookings
		WHERE id = $1
	`

	booking, err := scanBooking(p.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, translateStoreError(err)
	}

	return booking, nil
}

// Update writes the booking's mutable fields guarded by the set of statuses
// the caller observed. Zero rows touched means another trigger moved the
// booking first, reported as domain.ErrEditConflict.
func (p *PostgresBookingRepository) Update(ctx context.Context, booking *domain.Booking, from ...domain.BookingStatus) error {
	query := `
		UPDATE bookings
		SET status = $1, seats = $2, lock_acquired_at = $3, updated_at = NOW()
		WHERE id = $4 AND status = ANY($5)
	`

	tag, err := p.db.Exec(ctx, query,
		booking.Status,
		booking.Seats,
		booking.LockAcquiredAt,
		booking.ID,
		statusStrings(from))

	if err != nil {
		return translateStoreError(err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrEditConflict
	}

	return nil
}

// Complete commits the booking's Completed status and the seat map carrying
// the final seat promotions in one transaction. The seat map write keeps its
// version guard inside the transaction, so either both records change or
// the whole attempt fails with domain.ErrEditConflict and the caller
// re-reads and retries.
func (p *PostgresBookingRepository) Complete(ctx context.Context, booking *domain.Booking, seatMap *domain.SeatMap) error {
	return runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			UPDATE bookings
			SET status = $1, updated_at = NOW()
			WHERE id = $2 AND status = $3
		`

		tag, err := tx.Exec(ctx, query, domain.BookingCompleted, booking.ID, domain.BookingAwaitingPayment)
		if err != nil {
			return translateStoreError(err)
		}

		if tag.RowsAffected() == 0 {
			return domain.ErrEditConflict
		}

		seats, err := json.Marshal(seatMap.Seats)
		if err != nil {
			return err
		}

		query = `
			UPDATE seat_maps
			SET seats = $1, version = version + 1, updated_at = NOW()
			WHERE show_key = $2 AND version = $3
		`

		tag, err = tx.Exec(ctx, query, seats, string(seatMap.ShowKey), seatMap.Version)
		if err != nil {
			return translateStoreError(err)
		}

		if tag.RowsAffected() == 0 {
			return domain.ErrEditConflict
		}

		seatMap.Version++

		return nil
	})
}

func (p *PostgresBookingRepository) ListExpiryCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Booking, error) {
	query := `
		SELECT id, show_key, status, seats, party_full, party_student, total_price,
			owner_kind, owner_user_id, guest_full_name, guest_email, guest_phone,
			created_at, lock_acquired_at
		FROM bookings
		WHERE status = ANY($1) AND lock_acquired_at <= $2
		ORDER BY lock_acquired_at
		LIMIT $3
	`

	holding := statusStrings([]domain.BookingStatus{domain.BookingLocked, domain.BookingAwaitingPayment})

	rows, err := p.db.Query(ctx, query, holding, cutoff, limit)
	if err != nil {
		return nil, translateStoreError(err)
	}
	defer rows.Close()

	bookings := make([]*domain.Booking, 0)

	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}

		bookings = append(bookings, booking)
	}

	if err = rows.Err(); err != nil {
		return nil, translateStoreError(err)
	}

	return bookings, nil
}

func runInTx(ctx context.Context, db *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	var txOptions pgx.TxOptions

	tx, err := db.BeginTx(ctx, txOptions)
	if err != nil {
		return translateStoreError(err)
	}

	err = fn(tx)
	if err == nil {
		return tx.Commit(ctx)
	}

	rollbackErr := tx.Rollback(ctx)
	if rollbackErr != nil {
		return errors.Join(err, rollbackErr)
	}

	return err
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var booking domain.Booking
	var ownerUserID *int
	var guestName, guestEmail, guestPhone *string

	err := row.Scan(
		&booking.ID,
		&booking.ShowKey,
		&booking.Status,
		&booking.Seats,
		&booking.Party.Full,
		&booking.Party.Student,
		&booking.TotalPrice,
		&booking.Owner.Kind,
		&ownerUserID,
		&guestName,
		&guestEmail,
		&guestPhone,
		&booking.CreatedAt,
		&booking.LockAcquiredAt,
	)

	if err != nil {
		return nil, err
	}

	switch booking.Owner.Kind {
	case domain.OwnerUser:
		if ownerUserID != nil {
			booking.Owner.UserID = *ownerUserID
		}
	case domain.OwnerGuest:
		booking.Owner.Guest = &domain.GuestContact{}
		if guestName != nil {
			booking.Owner.Guest.FullName = *guestName
		}
		if guestEmail != nil {
			booking.Owner.Guest.Email = *guestEmail
		}
		if guestPhone != nil {
			booking.Owner.Guest.PhoneNumber = *guestPhone
		}
	}

	return &booking, nil
}

func statusStrings(statuses []domain.BookingStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}

	return out
}
