package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	SessionConfig
	OAuthConfig
	RouteConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetBackendURL() string
	GetBackendTimeout() time.Duration
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Session
	OAuth
	Routes
}

func New() Config {
	return mainConfig{}
}
