package config

import "time"

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"

	defaultSessionSecret = "dev-only-session-secret-change-me"
)

type SessionConfig interface {
	GetSessionSecret() string
	UsesDefaultSessionSecret() bool
	GetSessionStore() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetSessionCookieName() string
	GetSessionMaxAge() time.Duration
	GetTokenTTL() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

// GetSessionSecret returns the secret used to sign session cookies and seal stored records.
// The development default must be overridden in production.
func (Session) GetSessionSecret() string {
	return GetEnv("SESSION_SECRET", defaultSessionSecret)
}

// UsesDefaultSessionSecret is true while SESSION_SECRET has not been set.
func (s Session) UsesDefaultSessionSecret() bool {
	return s.GetSessionSecret() == defaultSessionSecret
}

func (Session) GetSessionStore() string {
	return GetEnv("SESSION_STORE", StoreMemory)
}

func (Session) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Session) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Session) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}

func (Session) GetSessionCookieName() string {
	return GetEnv("SESSION_COOKIE_NAME", "posport_session")
}

func (Session) GetSessionMaxAge() time.Duration {
	return 30 * 24 * time.Hour
}

// GetTokenTTL is the fixed lifetime of a stored token bundle, counted from issuance.
// The expiry the backend reports for its tokens is not used.
func (Session) GetTokenTTL() time.Duration {
	return time.Duration(GetEnvInt("TOKEN_TTL_MINUTES", 24*60)) * time.Minute
}
