package db

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	commonerrors "github.com/AlibekovAA/videotube/backend/internal/common/errors"
	"github.com/AlibekovAA/videotube/backend/internal/common/logger"
	"github.com/AlibekovAA/videotube/backend/internal/observability/metrics"
)

const breakerName = "database"

// DBCircuitBreaker fails fast with ErrCircuitOpen after threshold consecutive
// failures until resetAfter has elapsed since the last one.
type DBCircuitBreaker struct {
	failures    atomic.Int32
	lastFailure atomic.Value
	threshold   int32
	timeout     time.Duration
	resetAfter  time.Duration
	ignored     []error
	now         func() time.Time
	log         *logger.Logger
}

func NewDBCircuitBreaker(threshold int32, timeout, resetAfter time.Duration, log *logger.Logger) *DBCircuitBreaker {
	cb := &DBCircuitBreaker{
		threshold:  threshold,
		timeout:    timeout,
		resetAfter: resetAfter,
		now:        time.Now,
		log:        log,
	}
	cb.lastFailure.Store(time.Time{})
	return cb
}

// Ignore marks errors that are business outcomes rather than database
// failures; they neither trip nor reset the breaker.
func (cb *DBCircuitBreaker) Ignore(errs ...error) *DBCircuitBreaker {
	cb.ignored = append(cb.ignored, errs...)
	return cb
}

func (cb *DBCircuitBreaker) isOpen() bool {
	if cb.failures.Load() < cb.threshold {
		metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
		return false
	}

	lastFailure := cb.lastFailure.Load().(time.Time)
	if lastFailure.IsZero() {
		metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
		return false
	}

	if cb.now().Sub(lastFailure) > cb.resetAfter {
		cb.reset()
		metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
		return false
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(1)
	return true
}

func (cb *DBCircuitBreaker) isIgnored(err error) bool {
	for _, target := range cb.ignored {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (cb *DBCircuitBreaker) recordFailure() {
	cb.failures.Add(1)
	cb.lastFailure.Store(cb.now())
	metrics.CircuitBreakerFailures.WithLabelValues(breakerName).Inc()
	cb.log.Warn("database circuit breaker: failure recorded")
}

func (cb *DBCircuitBreaker) reset() {
	cb.failures.Store(0)
	cb.lastFailure.Store(time.Time{})
}

func (cb *DBCircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if cb.isOpen() {
		cb.log.Warn("database circuit breaker: circuit is open, rejecting request")
		return commonerrors.ErrCircuitOpen
	}

	callCtx, cancel := context.WithTimeout(ctx, cb.timeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil {
		if cb.isIgnored(err) {
			return err
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return err
		}
		cb.recordFailure()
		return err
	}

	cb.reset()
	return nil
}
