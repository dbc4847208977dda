package config

import "time"

type OAuthConfig interface {
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetGoogleIssuer() string
	GetOAuthRedirectURL() string
	GetAuthFlowTimeout() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", "")
}

func (OAuth) GetGoogleClientSecret() string {
	return GetEnv("GOOGLE_CLIENT_SECRET", "")
}

func (OAuth) GetGoogleIssuer() string {
	return GetEnv("GOOGLE_ISSUER", "https://accounts.google.com")
}

func (OAuth) GetOAuthRedirectURL() string {
	return EnvVars{}.GetBaseURL() + "/auth/google/callback"
}

func (OAuth) GetAuthFlowTimeout() time.Duration {
	return 10 * time.Minute
}
