package domain

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const showtimeKeyLayout = "20060102T1504Z"

// Show identifies one screening. It is created by the catalog service and
// immutable afterwards.
type Show struct {
	MovieID     int
	CinemaID    int
	HallID      int
	ShowtimeUTC time.Time
}

// ShowKey is the partition key of a show's seat map, derived as
// "movieId|cinemaId|showtimeEncoded".
type ShowKey string

func (s Show) Key() ShowKey {
	return ShowKey(fmt.Sprintf("%d|%d|%s", s.MovieID, s.CinemaID, s.ShowtimeUTC.UTC().Format(showtimeKeyLayout)))
}

func ParseShowKey(key ShowKey) (movieID, cinemaID int, showtime time.Time, err error) {
	parts := strings.Split(string(key), "|")
	if len(parts) != 3 {
		return 0, 0, time.Time{}, fmt.Errorf("malformed show key: %q", key)
	}

	movieID, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("malformed show key: %q", key)
	}

	cinemaID, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("malformed show key: %q", key)
	}

	showtime, err = time.Parse(showtimeKeyLayout, parts[2])
	if err != nil {
		return 0, 0, time.Time{}, fmt.Errorf("malformed show key: %q", key)
	}

	return movieID, cinemaID, showtime, nil
}

// PriceSchedule carries the catalog's pricing for one show. StudentDiscount
// is a fraction of the base price, e.g. 0.25 for a 25% discount.
type PriceSchedule struct {
	BasePrice       decimal.Decimal
	StudentDiscount decimal.Decimal
}

// TotalFor prices a party composition against the schedule.
func (p PriceSchedule) TotalFor(party PartyComposition) decimal.Decimal {
	fullTotal := p.BasePrice.Mul(decimal.NewFromInt(int64(party.Full)))

	studentPrice := p.BasePrice.Sub(p.BasePrice.Mul(p.StudentDiscount))
	studentTotal := studentPrice.Mul(decimal.NewFromInt(int64(party.Student)))

	return fullTotal.Add(studentTotal)
}

type ShowInfo struct {
	Show      Show
	MovieName string
	HallName  string
	SeatCount int
	Prices    PriceSchedule
}

// HallLayout is seat geometry, used only to render a seat map, never to
// decide locking.
type HallLayout struct {
	HallID  int
	Rows    int
	Columns int
}

// CatalogService is the read-only view of movies, halls and showtimes owned
// by the surrounding application.
type CatalogService interface {
	GetShow(ctx context.Context, key ShowKey) (*ShowInfo, error)
	GetHallSeatLayout(ctx context.Context, hallID int) (*HallLayout, error)
}
