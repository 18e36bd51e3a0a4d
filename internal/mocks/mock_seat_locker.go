package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/metinatakli/cinema-booking-engine/internal/domain"
	"github.com/metinatakli/cinema-booking-engine/internal/locker"
	"github.com/stretchr/testify/mock"
)

type MockSeatLocker struct {
	mock.Mock
}

func (m *MockSeatLocker) TryLock(ctx context.Context, showKey domain.ShowKey, seatIDs []string, bookingID uuid.UUID) (*locker.LockResult, error) {
	args := m.Called(ctx, showKey, seatIDs, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*locker.LockResult), args.Error(1)
}

func (m *MockSeatLocker) Verify(ctx context.Context, showKey domain.ShowKey, seatIDs []string, bookingID uuid.UUID) error {
	args := m.Called(ctx, showKey, seatIDs, bookingID)
	return args.Error(0)
}

func (m *MockSeatLocker) Release(ctx context.Context, showKey domain.ShowKey, seatIDs []string, bookingID uuid.UUID) error {
	args := m.Called(ctx, showKey, seatIDs, bookingID)
	return args.Error(0)
}

func (m *MockSeatLocker) TTL() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}
