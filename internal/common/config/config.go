package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/AlibekovAA/videotube/backend/internal/common/constants"
)

var (
	ErrMissingRequiredEnv = errors.New("missing required environment variable")
	ErrInvalidJWTSecret   = errors.New("token secret must be at least 32 bytes")
	ErrSharedJWTSecret    = errors.New("access and refresh token secrets must differ")
	ErrInvalidHashCost    = errors.New("HASH_COST out of bcrypt range")
	ErrInvalidTTL         = errors.New("token expiry must be positive")
)

type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PublicURL string
}

type AuthConfig struct {
	HTTPPort                       string
	DatabaseURL                    string
	AccessTokenSecret              string
	RefreshTokenSecret             string
	AccessTokenTTL                 time.Duration
	RefreshTokenTTL                time.Duration
	HashCost                       int
	RequestTimeout                 time.Duration
	CORSOrigins                    []string
	CookieSecure                   bool
	RevokeSessionsOnPasswordChange bool
	RedisURL                       string
	ReplayWindow                   time.Duration
	ReplayAlertThreshold           int
	MaxUploadBytes                 int64
	CircuitBreakerThreshold        int
	CircuitBreakerTimeout          time.Duration
	CircuitBreakerReset            time.Duration
	LogDir                         string
	LogLevel                       string
	S3                             S3Config
}

// LoadAuthConfig reads the environment, after loading a .env file from the
// working directory when one exists.
func LoadAuthConfig() (AuthConfig, error) {
	_ = godotenv.Load()

	accessSecret, err := mustEnv("ACCESS_TOKEN_SECRET")
	if err != nil {
		return AuthConfig{}, err
	}
	refreshSecret, err := mustEnv("REFRESH_TOKEN_SECRET")
	if err != nil {
		return AuthConfig{}, err
	}
	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return AuthConfig{}, err
	}
	bucket, err := mustEnv("S3_BUCKET")
	if err != nil {
		return AuthConfig{}, err
	}
	accessKey, err := mustEnv("S3_ACCESS_KEY")
	if err != nil {
		return AuthConfig{}, err
	}
	secretKey, err := mustEnv("S3_SECRET_KEY")
	if err != nil {
		return AuthConfig{}, err
	}

	cfg := AuthConfig{
		HTTPPort:                       getEnv("AUTH_HTTP_PORT", constants.DefaultAuthHTTPPort),
		DatabaseURL:                    databaseURL,
		AccessTokenSecret:              accessSecret,
		RefreshTokenSecret:             refreshSecret,
		AccessTokenTTL:                 getDurationEnv("ACCESS_TOKEN_EXPIRY", constants.DefaultAccessTokenTTL),
		RefreshTokenTTL:                getDurationEnv("REFRESH_TOKEN_EXPIRY", constants.DefaultRefreshTokenTTL),
		HashCost:                       getIntEnv("HASH_COST", constants.DefaultHashCost),
		RequestTimeout:                 getDurationEnv("AUTH_REQUEST_TIMEOUT", constants.DefaultAuthRequestTimeout),
		CORSOrigins:                    getListEnv("CORS_ORIGIN", []string{"http://localhost:3000"}),
		CookieSecure:                   getBoolEnv("COOKIE_SECURE", true),
		RevokeSessionsOnPasswordChange: getBoolEnv("REVOKE_SESSIONS_ON_PASSWORD_CHANGE", true),
		RedisURL:                       getEnv("REDIS_URL", ""),
		ReplayWindow:                   getDurationEnv("REPLAY_WINDOW", constants.DefaultReplayWindow),
		ReplayAlertThreshold:           getIntEnv("REPLAY_ALERT_THRESHOLD", constants.DefaultReplayAlertThreshold),
		MaxUploadBytes:                 getInt64Env("MAX_UPLOAD_BYTES", constants.DefaultMaxUploadBytes),
		CircuitBreakerThreshold:        getIntEnv("DB_CIRCUIT_THRESHOLD", constants.DefaultCircuitBreakerThreshold),
		CircuitBreakerTimeout:          getDurationEnv("DB_CIRCUIT_TIMEOUT", constants.DefaultCircuitBreakerTimeout),
		CircuitBreakerReset:            getDurationEnv("DB_CIRCUIT_RESET", constants.DefaultCircuitBreakerReset),
		LogDir:                         getEnv("LOG_DIR", "/var/log/videotube"),
		LogLevel:                       getEnv("LOG_LEVEL", "INFO"),
		S3: S3Config{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			Region:    getEnv("S3_REGION", "us-east-1"),
			Bucket:    bucket,
			AccessKey: accessKey,
			SecretKey: secretKey,
			PublicURL: getEnv("S3_PUBLIC_URL", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return AuthConfig{}, err
	}
	return cfg, nil
}

func (c AuthConfig) Validate() error {
	if err := validateJWTSecret(c.AccessTokenSecret); err != nil {
		return fmt.Errorf("ACCESS_TOKEN_SECRET: %w", err)
	}
	if err := validateJWTSecret(c.RefreshTokenSecret); err != nil {
		return fmt.Errorf("REFRESH_TOKEN_SECRET: %w", err)
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return ErrSharedJWTSecret
	}
	if c.HashCost < bcrypt.MinCost || c.HashCost > bcrypt.MaxCost {
		return fmt.Errorf("%w: %d", ErrInvalidHashCost, c.HashCost)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return ErrInvalidTTL
	}
	return nil
}

func validateJWTSecret(secret string) error {
	if len(secret) < constants.JWTSecretMinLength {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidJWTSecret, len(secret))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func mustEnv(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingRequiredEnv, key)
	}
	return v, nil
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getIntEnv(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64Env(key string, fallback int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getBoolEnv(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getListEnv(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
