package constants

import "time"

const (
	HandleMinLength    = 3
	HandleMaxLength    = 32
	PasswordMinLength  = 8
	PasswordMaxLength  = 72
	FullNameMaxLength  = 100
	JWTSecretMinLength = 32

	DefaultHashCost = 10

	DefaultMaxRequestSize = 12 << 20
	MaxJSONBodySize       = 40 << 10
	DefaultMaxUploadBytes = 5 << 20

	DBPoolMaxConns        = 25
	DBPoolMinConns        = 5
	DBPoolConnMaxLifetime = time.Hour
	DBPoolConnMaxIdleTime = 30 * time.Minute
	DBPoolHealthCheck     = time.Minute
	DBPoolConnectTimeout  = 5 * time.Second
	DBPoolMaxAttempts     = 10
	DBPoolRetryDelay      = time.Second
	DBPoolMetricsInterval = 30 * time.Second
	DBQueryTimeout        = 30 * time.Second

	ServerReadHeaderTimeout = 10 * time.Second
	ServerReadTimeout       = 30 * time.Second
	ServerWriteTimeout      = 30 * time.Second
	ServerIdleTimeout       = 120 * time.Second

	ShutdownTimeout = 30 * time.Second
	DrainTimeout    = 10 * time.Second

	DefaultAuthHTTPPort = "8000"

	DefaultCircuitBreakerThreshold = 20
	DefaultCircuitBreakerTimeout   = 5 * time.Second
	DefaultCircuitBreakerReset     = 10 * time.Second

	MediaCircuitBreakerThreshold = 5
	MediaCircuitBreakerTimeout   = 30 * time.Second
	MediaCircuitBreakerReset     = 30 * time.Second

	DefaultAuthRequestTimeout = 10 * time.Second
	DefaultAccessTokenTTL     = 15 * time.Minute
	DefaultRefreshTokenTTL    = 10 * 24 * time.Hour

	DefaultReplayWindow         = 24 * time.Hour
	DefaultReplayAlertThreshold = 3

	SessionCleanupInterval = time.Hour

	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	LoggerMaxSize    = 100
	LoggerMaxBackups = 3
	LoggerMaxAge     = 28
)

type TraceIDKeyType string

const TraceIDKey TraceIDKeyType = "trace_id"
