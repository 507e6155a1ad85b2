package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	authrepo "github.com/AlibekovAA/videotube/backend/internal/auth/repository"
	"github.com/AlibekovAA/videotube/backend/internal/auth/replay"
	"github.com/AlibekovAA/videotube/backend/internal/auth/service"
	"github.com/AlibekovAA/videotube/backend/internal/common/clock"
	"github.com/AlibekovAA/videotube/backend/internal/common/config"
	"github.com/AlibekovAA/videotube/backend/internal/common/constants"
	commoncrypto "github.com/AlibekovAA/videotube/backend/internal/common/crypto"
	"github.com/AlibekovAA/videotube/backend/internal/common/db"
	"github.com/AlibekovAA/videotube/backend/internal/common/logger"
	"github.com/AlibekovAA/videotube/backend/internal/common/resilience"
	"github.com/AlibekovAA/videotube/backend/internal/media"
)

type AuthApp struct {
	Log      *logger.Logger
	Config   config.AuthConfig
	Pool     *pgxpool.Pool
	Clock    clock.Clock
	Sessions *authrepo.PgSessionStore
	Tracker  replay.Tracker
	Service  *service.AuthService

	closers []func() error
}

func NewAuthApp(ctx context.Context) (*AuthApp, error) {
	cfg, err := config.LoadAuthConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogDir, "auth", cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	app := &AuthApp{Log: log, Config: cfg, Clock: clock.NewRealClock()}

	pool, err := db.NewPool(ctx, log, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database pool: %w", err)
	}
	app.Pool = pool
	app.closers = append(app.closers, func() error {
		pool.Close()
		return nil
	})

	if err := db.RunMigrations(ctx, log, db.OpenSQL(pool)); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	db.StartPoolMetrics(ctx, pool, constants.DBPoolMetricsInterval)

	app.Sessions = authrepo.NewPgSessionStore(pool)
	app.Tracker = app.replayTracker(ctx)

	s3Client, err := media.NewS3Client(ctx, cfg.S3)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}

	hasher, err := commoncrypto.NewBcryptHasher(cfg.HashCost)
	if err != nil {
		app.Close()
		return nil, err
	}

	breaker := db.NewDBCircuitBreaker(
		int32(cfg.CircuitBreakerThreshold),
		cfg.CircuitBreakerTimeout,
		cfg.CircuitBreakerReset,
		log,
	).Ignore(service.StoreOutcomes...)

	app.Service = service.NewAuthService(
		app.Sessions,
		hasher,
		media.NewGuardedStore(media.NewS3Store(s3Client, cfg.S3), resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Threshold:  constants.MediaCircuitBreakerThreshold,
			Timeout:    constants.MediaCircuitBreakerTimeout,
			ResetAfter: constants.MediaCircuitBreakerReset,
			Name:       "media",
			Logger:     log,
			Ignore:     media.CallerErrors,
		})),
		app.Tracker,
		breaker,
		commoncrypto.NewUUIDGenerator(),
		app.Clock,
		service.Config{
			AccessTokenSecret:              cfg.AccessTokenSecret,
			RefreshTokenSecret:             cfg.RefreshTokenSecret,
			AccessTokenTTL:                 cfg.AccessTokenTTL,
			RefreshTokenTTL:                cfg.RefreshTokenTTL,
			RevokeSessionsOnPasswordChange: cfg.RevokeSessionsOnPasswordChange,
			ReplayAlertThreshold:           cfg.ReplayAlertThreshold,
		},
		log,
	)

	return app, nil
}

// replayTracker falls back to a no-op tracker when Redis is not configured
// or unreachable at startup.
func (a *AuthApp) replayTracker(ctx context.Context) replay.Tracker {
	if a.Config.RedisURL == "" {
		a.Log.Warn("REDIS_URL not set, refresh token reuse will not be counted")
		return replay.NoopTracker{}
	}

	tracker, err := replay.NewRedisTrackerFromURL(a.Config.RedisURL, a.Config.ReplayWindow)
	if err != nil {
		a.Log.Warnf("replay tracker disabled: %v", err)
		return replay.NoopTracker{}
	}
	if err := tracker.Ping(ctx); err != nil {
		a.Log.Warnf("replay tracker disabled: redis unreachable: %v", err)
		_ = tracker.Close()
		return replay.NoopTracker{}
	}
	a.closers = append(a.closers, tracker.Close)
	return tracker
}

// Close releases resources in reverse order of acquisition.
func (a *AuthApp) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Errorf("auth app: close failed: %v", err)
		}
	}
	a.closers = nil
}
