package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/cinema-booking-engine/internal/domain"
)

// PostgresCatalogRepository is the read-only catalog view: movies, cinemas,
// halls and showtimes, owned by the surrounding application and only ever
// queried here.
type PostgresCatalogRepository struct {
	db *pgxpool.Pool
}

func NewPostgresCatalogRepository(db *pgxpool.Pool) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{
		db: db,
	}
}

func (p *PostgresCatalogRepository) GetShow(ctx context.Context, key domain.ShowKey) (*domain.ShowInfo, error) {
	movieID, cinemaID, showtime, err := domain.ParseShowKey(key)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT m.name, h.id, h.name, h.seat_rows * h.seat_columns,
			s.base_price, s.student_discount
		FROM showtimes s
		JOIN movies m ON s.movie_id = m.id
		JOIN halls h ON s.hall_id = h.id
		WHERE s.movie_id = $1 AND s.cinema_id = $2 AND s.start_time = $3
	`

	info := domain.ShowInfo{
		Show: domain.Show{
			MovieID:     movieID,
			CinemaID:    cinemaID,
			ShowtimeUTC: showtime,
		},
	}

	err = p.db.QueryRow(ctx, query, movieID, cinemaID, showtime).Scan(
		&info.MovieName,
		&info.Show.HallID,
		&info.HallName,
		&info.SeatCount,
		&info.Prices.BasePrice,
		&info.Prices.StudentDiscount,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, translateStoreError(err)
	}

	return &info, nil
}

func (p *PostgresCatalogRepository) GetHallSeatLayout(ctx context.Context, hallID int) (*domain.HallLayout, error) {
	query := `
		SELECT id, seat_rows, seat_columns
		FROM halls
		WHERE id = $1
	`

	var layout domain.HallLayout

	err := p.db.QueryRow(ctx, query, hallID).Scan(&layout.HallID, &layout.Rows, &layout.Columns)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, translateStoreError(err)
	}

	return &layout, nil
}
