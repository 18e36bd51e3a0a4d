package mocks

import (
	"context"

	"github.com/metinatakli/cinema-booking-engine/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) SeatMapChanged(ctx context.Context, showKey domain.ShowKey) error {
	args := m.Called(ctx, showKey)
	return args.Error(0)
}
