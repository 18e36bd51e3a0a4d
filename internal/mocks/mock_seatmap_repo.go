package mocks

import (
	"context"

	"github.com/metinatakli/cinema-booking-engine/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockSeatMapRepo struct {
	mock.Mock
	domain.SeatMapRepository
}

func (m *MockSeatMapRepo) GetByShowKey(ctx context.Context, key domain.ShowKey) (*domain.SeatMap, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SeatMap), args.Error(1)
}

func (m *MockSeatMapRepo) Create(ctx context.Context, seatMap *domain.SeatMap) error {
	args := m.Called(ctx, seatMap)
	return args.Error(0)
}

func (m *MockSeatMapRepo) Update(ctx context.Context, seatMap *domain.SeatMap) error {
	args := m.Called(ctx, seatMap)
	return args.Error(0)
}
