package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/metinatakli/cinema-booking-engine/api"
	"github.com/metinatakli/cinema-booking-engine/internal/domain"
	"github.com/metinatakli/cinema-booking-engine/internal/locker"
	"github.com/metinatakli/cinema-booking-engine/internal/validator"
	"github.com/stretchr/testify/mock"
)

type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) CreateBooking(ctx context.Context, showKey domain.ShowKey, party domain.PartyComposition, owner domain.OwnerRef) (*domain.Booking, error) {
	args := m.Called(ctx, showKey, party, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingService) GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingService) LockSeats(ctx context.Context, bookingID uuid.UUID, seatIDs []string) (*locker.LockResult, error) {
	args := m.Called(ctx, bookingID, seatIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*locker.LockResult), args.Error(1)
}

func (m *MockBookingService) ConfirmPayment(ctx context.Context, bookingID uuid.UUID, paymentMethod string) (*domain.Booking, error) {
	args := m.Called(ctx, bookingID, paymentMethod)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingService) Cancel(ctx context.Context, bookingID uuid.UUID) error {
	args := m.Called(ctx, bookingID)
	return args.Error(0)
}

func (m *MockBookingService) SeatMapSnapshot(ctx context.Context, showKey domain.ShowKey) (*domain.SeatMap, error) {
	args := m.Called(ctx, showKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SeatMap), args.Error(1)
}

func (m *MockBookingService) LockTTL() time.Duration {
	return 15 * time.Minute
}

// watcherRecorder records timer interactions without running any timers.
type watcherRecorder struct {
	tracked   []uuid.UUID
	untracked []uuid.UUID
}

func (w *watcherRecorder) Track(bookingID uuid.UUID) {
	w.tracked = append(w.tracked, bookingID)
}

func (w *watcherRecorder) Untrack(bookingID uuid.UUID) {
	w.untracked = append(w.untracked, bookingID)
}

func (w *watcherRecorder) SessionEnded(ctx context.Context, bookingID uuid.UUID) error {
	w.Untrack(bookingID)
	return nil
}

type noopFeed struct{}

func (noopFeed) Subscribe(ctx context.Context, handler func(ctx context.Context, showKey domain.ShowKey)) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestApplication(opts ...func(*Application)) *Application {
	app := &Application{
		config:         Config{Env: "test"},
		validator:      validator.NewValidator(),
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		sessionManager: scs.New(),
		metrics:        newMetrics(),
		watcher:        &watcherRecorder{},
		feed:           noopFeed{},
	}

	for _, opt := range opts {
		opt(app)
	}

	return app
}

func setupTestSession(t *testing.T, app *Application, r *http.Request) *http.Request {
	ctx, err := app.sessionManager.Load(r.Context(), "session")
	if err != nil {
		t.Errorf("Failed to load session: %v", err)
	}

	return r.WithContext(ctx)
}

func setActiveTestBooking(app *Application, r *http.Request, bookingID uuid.UUID) {
	app.sessionManager.Put(r.Context(), SessionKeyActiveBooking.String(), bookingID.String())
}

func executeRequest(t *testing.T, method, url string, body any) (*httptest.ResponseRecorder, *http.Request) {
	var reader io.Reader

	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(jsonData)
	}

	r := httptest.NewRequest(method, url, reader)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	return w, r
}

func checkErrorResponse(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantErrMessage string) {
	if wantStatus >= 200 && wantStatus < 300 {
		return
	}

	switch wantStatus {
	case http.StatusUnprocessableEntity:
		var validationResp api.ValidationErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&validationResp); err != nil {
			t.Fatalf("Failed to decode validation error response: %v", err)
		}

		errorSet := make(map[string]bool)
		for _, vErr := range validationResp.ValidationErrors {
			errorSet[vErr.Issue] = true
		}

		if wantErrMessage != "" && !errorSet[wantErrMessage] {
			t.Errorf("Expected validation error message '%s' not found in response", wantErrMessage)
		}

	default:
		var errorResp api.ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&errorResp); err != nil {
			t.Fatalf("Failed to decode error response: %v", err)
		}

		if wantErrMessage != "" && errorResp.Message != wantErrMessage {
			t.Errorf("Error message = %v, want %v", errorResp.Message, wantErrMessage)
		}
	}
}
