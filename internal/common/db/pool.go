package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/AlibekovAA/videotube/backend/internal/common/constants"
	"github.com/AlibekovAA/videotube/backend/internal/common/logger"
)

var connectPool = pgxpool.ConnectConfig

func NewPool(ctx context.Context, log *logger.Logger, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	cfg.MaxConns = constants.DBPoolMaxConns
	cfg.MinConns = constants.DBPoolMinConns
	cfg.MaxConnLifetime = constants.DBPoolConnMaxLifetime
	cfg.MaxConnIdleTime = constants.DBPoolConnMaxIdleTime
	cfg.HealthCheckPeriod = constants.DBPoolHealthCheck
	cfg.ConnConfig.ConnectTimeout = constants.DBPoolConnectTimeout
	cfg.ConnConfig.RuntimeParams = map[string]string{
		"application_name": "videotube-auth",
	}

	retry := RetryConfig{
		MaxAttempts:  constants.DBPoolMaxAttempts,
		InitialDelay: constants.DBPoolRetryDelay,
		MaxDelay:     constants.DBPoolRetryDelay,
		Multiplier:   1,
		Retryable:    func(error) bool { return true },
	}

	var pool *pgxpool.Pool
	err = RetryWithBackoff(ctx, log, retry, func() error {
		var connErr error
		pool, connErr = connectPool(ctx, cfg)
		return connErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Infof("database connection pool initialized: max=%d, min=%d", cfg.MaxConns, cfg.MinConns)
	return pool, nil
}
