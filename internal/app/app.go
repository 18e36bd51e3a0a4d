package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/v2"
	"github.com/exaring/otelpgx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/cinema-booking-engine/internal/domain"
	"github.com/metinatakli/cinema-booking-engine/internal/feed"
	"github.com/metinatakli/cinema-booking-engine/internal/lifecycle"
	"github.com/metinatakli/cinema-booking-engine/internal/locker"
	"github.com/metinatakli/cinema-booking-engine/internal/payment"
	"github.com/metinatakli/cinema-booking-engine/internal/repository"
	appvalidator "github.com/metinatakli/cinema-booking-engine/internal/validator"
	"github.com/metinatakli/cinema-booking-engine/internal/vcs"
	"github.com/metinatakli/cinema-booking-engine/internal/watcher"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var (
	version = vcs.Version()
)

// BookingService is the slice of the lifecycle controller the HTTP layer
// drives.
type BookingService interface {
	CreateBooking(ctx context.Context, showKey domain.ShowKey, party domain.PartyComposition, owner domain.OwnerRef) (*domain.Booking, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)
	LockSeats(ctx context.Context, bookingID uuid.UUID, seatIDs []string) (*locker.LockResult, error)
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID, paymentMethod string) (*domain.Booking, error)
	Cancel(ctx context.Context, bookingID uuid.UUID) error
	SeatMapSnapshot(ctx context.Context, showKey domain.ShowKey) (*domain.SeatMap, error)
	LockTTL() time.Duration
}

// LockWatcher tracks fallback expiry timers for bookings holding seats.
type LockWatcher interface {
	Track(bookingID uuid.UUID)
	Untrack(bookingID uuid.UUID)
	SessionEnded(ctx context.Context, bookingID uuid.UUID) error
}

// FeedSubscriber delivers seat map change notifications until ctx is done.
type FeedSubscriber interface {
	Subscribe(ctx context.Context, handler func(ctx context.Context, showKey domain.ShowKey)) error
}

type Application struct {
	config         Config
	logger         *slog.Logger
	db             *pgxpool.Pool
	redis          redis.UniversalClient
	validator      *validator.Validate
	sessionManager *scs.SessionManager

	bookings BookingService
	watcher  LockWatcher
	feed     FeedSubscriber

	metrics *metrics
}

type Config struct {
	Port             int
	Env              string
	OtelCollectorUrl string

	Db struct {
		Dsn          string
		MaxOpenConns int
		MaxIdleTime  time.Duration
	}

	Redis struct {
		Url          string
		MaxOpenConns int
		MaxIdleConns int
		MaxIdleTime  time.Duration
	}

	Stripe struct {
		SecretKey string
	}

	Locks struct {
		TTL           time.Duration
		SweepInterval time.Duration
	}
}

func ParseFlags() Config {
	var cfg Config

	flag.IntVar(&cfg.Port, "port", 3000, "server port")
	flag.StringVar(&cfg.Env, "env", "dev", "Environment (dev|staging|prod)")
	flag.StringVar(&cfg.OtelCollectorUrl, "otel-collector-url", "", "OpenTelemetry collector URL")

	flag.StringVar(&cfg.Db.Dsn, "db-dsn", "", "PostgreSQL DSN")
	flag.IntVar(&cfg.Db.MaxOpenConns, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.DurationVar(&cfg.Db.MaxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max idle time for connections")

	flag.StringVar(&cfg.Redis.Url, "redis-url", "", "Redis URL")
	flag.IntVar(&cfg.Redis.MaxOpenConns, "redis-max-open-conns", 25, "Redis max open connections")
	flag.IntVar(&cfg.Redis.MaxIdleConns, "redis-max-idle-conns", 10, "Redis max idle connections")
	flag.DurationVar(&cfg.Redis.MaxIdleTime, "redis-max-idle-time", 2*time.Minute, "Redis max idle time for connections")

	flag.StringVar(&cfg.Stripe.SecretKey, "stripe-key", "", "Stripe secret key")

	flag.DurationVar(&cfg.Locks.TTL, "lock-ttl", 15*time.Minute, "Seat lock time-to-live")
	flag.DurationVar(&cfg.Locks.SweepInterval, "lock-sweep-interval", time.Minute, "Abandoned booking sweep interval")

	displayVersion := flag.Bool("version", false, "Display version and exit")

	flag.Parse()

	if *displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	return cfg
}

func Run(cfg Config) error {
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, nil)

	if cfg.OtelCollectorUrl != "" {
		handler = NewMultiHandler(handler, otelslog.NewHandler("cinema-booking-api"))
	}

	logger := slog.New(handler)

	app, cleanup, err := NewApplication(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	shutdownTelemetry, err := app.InitTelemetry()
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	return app.run()
}

// Option overrides a wired dependency, used by the integration tests to
// swap the external payment gateway for a deterministic one.
type Option func(*dependencies)

type dependencies struct {
	payments domain.PaymentProvider
}

func WithPaymentProvider(p domain.PaymentProvider) Option {
	return func(d *dependencies) {
		d.payments = p
	}
}

// NewApplication wires the full dependency graph. The returned cleanup
// closes the connection pools and stops the background watcher.
func NewApplication(cfg Config, logger *slog.Logger, opts ...Option) (*Application, func(), error) {
	db, err := newDatabasePool(cfg)
	if err != nil {
		return nil, nil, err
	}

	redisClient, err := newRedisClient(cfg)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	seatMapRepo := repository.NewPostgresSeatMapRepository(db)
	bookingRepo := repository.NewPostgresBookingRepository(db)
	catalogRepo := repository.NewPostgresCatalogRepository(db)

	deps := dependencies{
		payments: payment.NewStripePaymentProvider(cfg.Stripe.SecretKey),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	lockManager := locker.New(seatMapRepo, logger, locker.Config{LockTTL: cfg.Locks.TTL})

	seatMapFeed := feed.New(redisClient)

	controller := lifecycle.NewController(
		bookingRepo,
		seatMapRepo,
		catalogRepo,
		deps.payments,
		lockManager,
		seatMapFeed,
		logger,
	)

	lockWatcher := watcher.New(bookingRepo, controller, logger, watcher.Config{
		LockTTL:       cfg.Locks.TTL,
		SweepInterval: cfg.Locks.SweepInterval,
	})
	lockWatcher.Start()

	app := &Application{
		config:         cfg,
		logger:         logger,
		db:             db,
		redis:          redisClient,
		validator:      appvalidator.NewValidator(),
		sessionManager: newSessionManager(redisClient),
		bookings:       controller,
		watcher:        lockWatcher,
		feed:           seatMapFeed,
		metrics:        newMetrics(),
	}

	cleanup := func() {
		lockWatcher.Stop()
		redisClient.Close()
		db.Close()
	}

	return app, cleanup, nil
}

func newSessionManager(client *redis.Client) *scs.SessionManager {
	sessionManager := scs.New()

	sessionManager.Store = goredisstore.New(client)
	sessionManager.IdleTimeout = 20 * time.Minute
	sessionManager.Cookie.Name = "session_id"

	return sessionManager
}

func newRedisClient(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Redis.Url,
		MaxIdleConns:    cfg.Redis.MaxIdleConns,
		MaxActiveConns:  cfg.Redis.MaxOpenConns,
		ConnMaxIdleTime: cfg.Redis.MaxIdleTime,
	})

	if err := redisotel.InstrumentTracing(rdb); err != nil {
		return nil, err
	}

	if err := redisotel.InstrumentMetrics(rdb); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := rdb.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

func newDatabasePool(cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.Db.Dsn)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.Db.MaxIdleTime
	config.MaxConns = int32(cfg.Db.MaxOpenConns)
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *Application) run() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.config.Port),
		Handler:      app.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := srv.Shutdown(ctx)
		if err != nil {
			shutdownError <- err
		}

		shutdownError <- nil
	}()

	app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}

func (app *Application) Routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(app.notFoundResponse)

	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(app.recoverPanic)
	r.Use(app.requestLogger)
	r.Use(app.sessionManager.LoadAndSave)
	r.Use(app.ensureGuestUserSession)

	r.Get("/health", app.GetHealth)

	r.Route("/shows/{showKey}", func(r chi.Router) {
		r.Post("/bookings", app.CreateBookingHandler)
		r.Get("/seatmap", app.GetSeatMapHandler)
		r.Get("/seatmap/feed", app.SeatMapFeedHandler)
	})

	r.Route("/bookings/{bookingId}", func(r chi.Router) {
		r.Get("/", app.GetBookingHandler)
		r.Post("/seats", app.LockSeatsHandler)
		r.Post("/payment", app.ConfirmPaymentHandler)
		r.Delete("/", app.CancelBookingHandler)
	})

	return r
}
