package config

type RouteConfig interface {
	GetWelcomePath() string
	GetCompanySelectionPath() string
	GetPublicPaths() []string
	GetTempOAuthTokenPrefix() string
}

type Routes struct{}

var _ RouteConfig = Routes{}

func (Routes) GetWelcomePath() string {
	return GetEnv("WELCOME_PATH", "/helloScreen")
}

func (Routes) GetCompanySelectionPath() string {
	return GetEnv("COMPANY_SELECTION_PATH", "/selectCompany")
}

// GetPublicPaths lists the pages rendered without a session.
func (r Routes) GetPublicPaths() []string {
	return GetEnvList("PUBLIC_PATHS", []string{r.GetWelcomePath(), "/login", "/signup"})
}

// GetTempOAuthTokenPrefix marks access tokens issued for an unfinished Google signup.
func (Routes) GetTempOAuthTokenPrefix() string {
	return GetEnv("TEMP_OAUTH_TOKEN_PREFIX", "temp_oauth_")
}
