package config

import (
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Environment variables recognized by the service. The names predate
// this codebase (they are shared with the deployment manifests), so
// they are bound explicitly instead of derived from struct tags.
const (
	keyEnv                   = "NODE_ENV"
	keyPort                  = "PORT"
	keyDatabaseURL           = "DATABASE_URL"
	keyJWTSecret             = "JWT_SECRET"
	keyJWTExpiresIn          = "JWT_EXPIRES_IN"
	keyRefreshTokenSecret    = "REFRESH_TOKEN_SECRET"
	keyRefreshTokenExpiresIn = "REFRESH_TOKEN_EXPIRES_IN"
	keyPaystackSecretKey     = "PAYSTACK_SECRET_KEY"
	keyPaystackPublicKey     = "PAYSTACK_PUBLIC_KEY"
	keyAllowedOrigins        = "ALLOWED_ORIGINS"
	keyAdminEmail            = "ADMIN_EMAIL"
	keyAppName               = "APP_NAME"
	keyLogLevel              = "LOG_LEVEL"
	keySentryDSN             = "SENTRY_DSN"
	keyReplitDevDomain       = "REPLIT_DEV_DOMAIN"
	keyReplitDomains         = "REPLIT_DOMAINS"
)

var requiredKeys = []string{
	keyEnv,
	keyDatabaseURL,
	keyJWTSecret,
	keyRefreshTokenSecret,
	keyPaystackSecretKey,
	keyAdminEmail,
}

var (
	loadMu sync.Mutex
	loaded *Config
)

// Load reads and validates the process environment. The result is
// cached after the first successful load; every later call returns
// the same *Config.
func Load() (*Config, error) {
	loadMu.Lock()
	defer loadMu.Unlock()
	if loaded != nil {
		return loaded, nil
	}
	cfg, err := load(newViper())
	if err != nil {
		return nil, err
	}
	loaded = cfg
	return loaded, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	for _, k := range []string{
		keyEnv, keyPort, keyDatabaseURL,
		keyJWTSecret, keyJWTExpiresIn,
		keyRefreshTokenSecret, keyRefreshTokenExpiresIn,
		keyPaystackSecretKey, keyPaystackPublicKey,
		keyAllowedOrigins, keyAdminEmail, keyAppName, keyLogLevel,
		keySentryDSN, keyReplitDevDomain, keyReplitDomains,
	} {
		_ = v.BindEnv(k)
	}

	v.SetDefault(keyPort, 5000)
	v.SetDefault(keyJWTExpiresIn, "7d")
	v.SetDefault(keyRefreshTokenExpiresIn, "30d")
	v.SetDefault(keyAppName, "ParcelPeer")
	v.SetDefault(keyLogLevel, "info")
	return v
}

// load is the uncached core of Load, split out so tests can run it
// against a scratch viper without touching the package cache.
func load(v *viper.Viper) (*Config, error) {
	var missing []string
	for _, k := range requiredKeys {
		if strings.TrimSpace(v.GetString(k)) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, &Error{Missing: missing}
	}

	env := Env(v.GetString(keyEnv))
	switch env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return nil, invalidf("invalid %s %q: must be one of development, production, test", keyEnv, env)
	}

	port := v.GetInt(keyPort)
	if port < 1 || port > 65535 {
		return nil, invalidf("invalid %s %q: must be a valid port number", keyPort, v.GetString(keyPort))
	}

	level := v.GetString(keyLogLevel)
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return nil, invalidf("invalid %s %q: must be one of debug, info, warn, error", keyLogLevel, level)
	}

	cfg := &Config{
		Env:                   env,
		Port:                  port,
		DatabaseURL:           v.GetString(keyDatabaseURL),
		JWTSecret:             v.GetString(keyJWTSecret),
		JWTExpiresIn:          v.GetString(keyJWTExpiresIn),
		RefreshTokenSecret:    v.GetString(keyRefreshTokenSecret),
		RefreshTokenExpiresIn: v.GetString(keyRefreshTokenExpiresIn),
		PaystackSecretKey:     v.GetString(keyPaystackSecretKey),
		PaystackPublicKey:     v.GetString(keyPaystackPublicKey),
		AllowedOrigins:        splitList(v.GetString(keyAllowedOrigins)),
		AdminEmail:            v.GetString(keyAdminEmail),
		AppName:               v.GetString(keyAppName),
		LogLevel:              level,
		SentryDSN:             v.GetString(keySentryDSN),
		ReplitDevDomain:       v.GetString(keyReplitDevDomain),
		ReplitDomains:         splitList(v.GetString(keyReplitDomains)),
	}

	if len(cfg.AllowedOrigins) == 0 && cfg.IsProduction() {
		cfg.Warnings = append(cfg.Warnings, "ALLOWED_ORIGINS is empty in production")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
