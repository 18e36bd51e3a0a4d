package integration_test

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/metinatakli/cinema-booking-engine/internal/app"
	"github.com/metinatakli/cinema-booking-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	dbName         = "cinema_booking"
	dbUser         = "test_user"
	dbPassword     = "test_password"
	cacheImageName = "redis:7"

	// Seeded by the migrations: movie 1 in hall 1 (4x5 seats) and movie 2
	// in hall 2 (2x3 seats).
	mainShowKey  = "1|1|20260901T2000Z"
	smallShowKey = "2|1|20260902T1830Z"

	declinedPaymentMethod = "pm_declined"
)

type TestApp struct {
	App      *app.Application
	Payments *fakePaymentProvider
	Cleanup  func()
}

// fakePaymentProvider stands in for the card gateway: every charge
// succeeds unless the declined test payment method is used.
type fakePaymentProvider struct{}

func (f *fakePaymentProvider) Charge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	if req.PaymentMethod == declinedPaymentMethod {
		return &domain.ChargeResult{
			Outcome:       domain.PaymentRejected,
			DeclineReason: "card_declined",
		}, nil
	}

	return &domain.ChargeResult{
		Outcome:   domain.PaymentSucceeded,
		Reference: "test_charge_" + req.BookingID.String(),
	}, nil
}

func newTestApp(cfg app.Config) (*TestApp, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	payments := &fakePaymentProvider{}

	application, cleanup, err := app.NewApplication(cfg, logger, app.WithPaymentProvider(payments))
	if err != nil {
		return nil, err
	}

	return &TestApp{
		App:      application,
		Payments: payments,
		Cleanup:  cleanup,
	}, nil
}

type BaseSuite struct {
	suite.Suite
	app            *TestApp
	dbContainer    *PostgresContainer
	cacheContainer *RedisContainer
	server         *httptest.Server
}

func (s *BaseSuite) SetupSuite() {
	ctx := context.Background()

	postgresContainer, err := getDbContainer(ctx)
	if err != nil {
		log.Printf("failed to start container: %s", err)
		return
	}

	redisContainer, err := getCacheContainer(ctx)
	if err != nil {
		log.Printf("failed to start container: %s", err)
		return
	}

	s.dbContainer = postgresContainer
	s.cacheContainer = redisContainer

	cfg := app.Config{
		Port: 3000,
		Env:  "test",
	}
	cfg.Db.Dsn = postgresContainer.ConnectionString
	cfg.Db.MaxOpenConns = 25
	cfg.Db.MaxIdleTime = 2 * time.Minute
	cfg.Redis.Url = redisContainer.ConnectionString
	cfg.Redis.MaxOpenConns = 10
	cfg.Redis.MaxIdleConns = 10
	cfg.Redis.MaxIdleTime = 2 * time.Minute
	cfg.Locks.TTL = 15 * time.Minute
	cfg.Locks.SweepInterval = time.Hour

	testApp, err := newTestApp(cfg)
	if err != nil {
		log.Printf("cannot initialize app: %s", err)
		return
	}

	s.app = testApp
	s.server = httptest.NewServer(testApp.App.Routes())
}

func (s *BaseSuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.app != nil {
		s.app.Cleanup()
	}
	if s.dbContainer != nil {
		if err := s.dbContainer.Container.Terminate(context.Background()); err != nil {
			log.Printf("failed to terminate container: %s", err)
		}
	}
	if s.cacheContainer != nil {
		if err := s.cacheContainer.Container.Terminate(context.Background()); err != nil {
			log.Printf("failed to terminate container: %s", err)
		}
	}
}

func (s *BaseSuite) SetupTest() {
	if s.app == nil {
		s.T().Skip("test environment unavailable")
	}

	s.resetBookingState()
}

type Scenario struct {
	Name             string
	Method           string
	URL              string
	Body             io.Reader
	Headers          map[string]string
	Cookies          []*http.Cookie
	ExpectedStatus   int
	ExpectedResponse string
	BeforeTestFunc   func(t testing.TB, app *TestApp)
	AfterTestFunc    func(t testing.TB, app *TestApp, res *http.Response)
}

func (s Scenario) Run(t *testing.T, testApp *TestApp) {
	t.Run(s.Name, func(t *testing.T) {
		req, err := prepareRequest(s.Method, s.URL, s.Body, s.Headers, s.Cookies)
		require.NoError(t, err)

		if s.BeforeTestFunc != nil {
			s.BeforeTestFunc(t, testApp)
		}

		rec := httptest.NewRecorder()
		testApp.App.Routes().ServeHTTP(rec, req)

		res := rec.Result()
		defer res.Body.Close()

		assert.Equal(t, s.ExpectedStatus, res.StatusCode)

		if s.ExpectedResponse != "" {
			compareResponse(t, res.Body, s.ExpectedResponse)
		}

		if s.AfterTestFunc != nil {
			s.AfterTestFunc(t, testApp, res)
		}
	})
}
