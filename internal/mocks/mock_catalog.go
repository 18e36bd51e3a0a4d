package mocks

import (
	"context"

	"github.com/metinatakli/cinema-booking-engine/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockCatalog struct {
	mock.Mock
	domain.CatalogService
}

func (m *MockCatalog) GetShow(ctx context.Context, key domain.ShowKey) (*domain.ShowInfo, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShowInfo), args.Error(1)
}

func (m *MockCatalog) GetHallSeatLayout(ctx context.Context, hallID int) (*domain.HallLayout, error) {
	args := m.Called(ctx, hallID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.HallLayout), args.Error(1)
}
