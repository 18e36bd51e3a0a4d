package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/cinema-booking-engine/internal/domain"
)

// PostgresSeatMapRepository stores one row per show: the seat occupancy
// document plus a version counter. Every write goes through the version
// guard, so two sessions can never both believe they locked the same seat.
type PostgresSeatMapRepository struct {
	db *pgxpool.Pool
}

func NewPostgresSeatMapRepository(db *pgxpool.Pool) *PostgresSeatMapRepository {
	return &PostgresSeatMapRepository{
		db: db,
	}
}

func (p *PostgresSeatMapRepository) Create(ctx context.Context, seatMap *domain.SeatMap) error {
	seats, err := json.Marshal(seatMap.Seats)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO seat_maps (show_key, seats, version)
		VALUES ($1, $2, 1)
		RETURNING version
	`

	err = p.db.QueryRow(ctx, query, string(seatMap.ShowKey), seats).Scan(&seatMap.Version)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.ErrEditConflict
		}

		return translateStoreError(err)
	}

	return nil
}

func (p *PostgresSeatMapRepository) GetByShowKey(ctx context.Context, showKey domain.ShowKey) (*domain.SeatMap, error) {
	query := `
		SELECT show_key, seats, version, last_locked_at
		FROM seat_maps
		WHERE show_key = $1
	`

	var seatMap domain.SeatMap
	var seats []byte

	err := p.db.QueryRow(ctx, query, string(showKey)).Scan(
		&seatMap.ShowKey,
		&seats,
		&seatMap.Version,
		&seatMap.LastLockedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, translateStoreError(err)
	}

	if err := json.Unmarshal(seats, &seatMap.Seats); err != nil {
		return nil, err
	}

	return &seatMap, nil
}

// Update writes the seat document only if the row still carries the version
// the caller read. A lost race surfaces as domain.ErrEditConflict and the
// caller re-reads and retries.
func (p *PostgresSeatMapRepository) Update(ctx context.Context, seatMap *domain.SeatMap) error {
	seats, err := json.Marshal(seatMap.Seats)
	if err != nil {
		return err
	}

	query := `
		UPDATE seat_maps
		SET seats = $1, last_locked_at = $2, version = version + 1, updated_at = NOW()
		WHERE show_key = $3 AND version = $4
	`

	tag, err := p.db.Exec(ctx, query, seats, seatMap.LastLockedAt, string(seatMap.ShowKey), seatMap.Version)
	if err != nil {
		return translateStoreError(err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrEditConflict
	}

	seatMap.Version++

	return nil
}

// translateStoreError maps infrastructure-level failures onto
// domain.ErrStoreUnavailable so callers can distinguish "the store said no"
// from "the store is gone".
func translateStoreError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgerrcode.IsConnectionException(pgErr.Code) {
		return errors.Join(domain.ErrStoreUnavailable, err)
	}

	return err
}
