package config

import (
	"fmt"
	"strings"
)

// Env names the deployment environment. Closed set, validated at load.
type Env string

const (
	EnvDevelopment Env = "development"
	EnvProduction  Env = "production"
	EnvTest        Env = "test"
)

// Config holds every setting the service reads from the process
// environment. Build one with Load; the zero value is not usable.
type Config struct {
	Env  Env
	Port int

	DatabaseURL string

	// Access and refresh tokens are signed with distinct secrets so a
	// leaked refresh secret cannot forge access tokens.
	JWTSecret             string
	JWTExpiresIn          string
	RefreshTokenSecret    string
	RefreshTokenExpiresIn string

	PaystackSecretKey string
	PaystackPublicKey string

	AllowedOrigins []string
	AdminEmail     string
	AppName        string
	LogLevel       string

	SentryDSN       string
	ReplitDevDomain string
	ReplitDomains   []string

	// Warnings are non-fatal findings from validation (e.g. an empty
	// origin allow-list in production). The caller decides where they
	// get logged.
	Warnings []string
}

func (c *Config) IsProduction() bool  { return c.Env == EnvProduction }
func (c *Config) IsDevelopment() bool { return c.Env == EnvDevelopment }
func (c *Config) IsTest() bool        { return c.Env == EnvTest }

// Error reports an unusable environment. Missing lists every absent
// required variable so an operator fixes them in one pass.
type Error struct {
	Missing []string
	Reason  string
}

func (e *Error) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("config: missing required environment variables: %s",
			strings.Join(e.Missing, ", "))
	}
	return "config: " + e.Reason
}

func invalidf(format string, args ...any) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}
