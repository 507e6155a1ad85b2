package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/AlibekovAA/videotube/backend/internal/common/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// gooseUpContext is a seam for tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded goose migrations through a database/sql
// handle. Transient failures are retried.
func RunMigrations(ctx context.Context, log *logger.Logger, sqlDB *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	start := time.Now()
	err := RetryWithBackoff(ctx, log, DefaultRetryConfig, func() error {
		return gooseUpContext(ctx, sqlDB, "migrations")
	})
	if err := HandleExecError(err, "apply migrations", start); err != nil {
		return err
	}

	log.Infof("database migrations applied in %v", time.Since(start))
	return nil
}

// OpenSQL opens a database/sql view over the pool's connection config for
// tooling that needs it.
func OpenSQL(pool *pgxpool.Pool) *sql.DB {
	return stdlib.OpenDB(*pool.Config().ConnConfig)
}
