package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/parcelpeer/authcore/internal/config"
	"github.com/parcelpeer/authcore/internal/domain/user"
)

var (
	// ErrTokenExpired is distinct from ErrTokenInvalid so handlers can
	// tell clients to refresh instead of re-authenticating.
	ErrTokenExpired = errors.New("auth: token expired")
	ErrTokenInvalid = errors.New("auth: invalid token")
)

// Claims are the identity fields carried inside a signed token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string    `json:"userId"`
	Email  string    `json:"email,omitempty"`
	Role   user.Role `json:"role,omitempty"`
}

// TokenPair is what a client receives after authenticating. Both
// tokens are stateless; revocation happens only through expiry or
// secret rotation.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Options configure a Manager. Now is injectable for expiry tests.
type Options struct {
	AccessSecret    []byte
	RefreshSecret   []byte
	AccessLifetime  string
	RefreshLifetime string
	Now             func() time.Time
}

// Manager signs and verifies access/refresh tokens. The two token
// kinds use distinct secrets; possession of one never validates the
// other.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	rawAccessTTL  string
	now           func() time.Time
}

func NewManager(o Options) (*Manager, error) {
	if len(o.AccessSecret) == 0 || len(o.RefreshSecret) == 0 {
		return nil, errors.New("auth: both signing secrets are required")
	}
	accessTTL, err := ParseLifetime(o.AccessLifetime)
	if err != nil {
		return nil, fmt.Errorf("access lifetime: %w", err)
	}
	refreshTTL, err := ParseLifetime(o.RefreshLifetime)
	if err != nil {
		return nil, fmt.Errorf("refresh lifetime: %w", err)
	}
	now := o.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Manager{
		accessSecret:  o.AccessSecret,
		refreshSecret: o.RefreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		rawAccessTTL:  o.AccessLifetime,
		now:           now,
	}, nil
}

// ManagerFromConfig wires a Manager from the loaded environment.
func ManagerFromConfig(cfg *config.Config) (*Manager, error) {
	return NewManager(Options{
		AccessSecret:    []byte(cfg.JWTSecret),
		RefreshSecret:   []byte(cfg.RefreshTokenSecret),
		AccessLifetime:  cfg.JWTExpiresIn,
		RefreshLifetime: cfg.RefreshTokenExpiresIn,
	})
}

func (m *Manager) IssueAccessToken(userID, email string, role user.Role) (string, error) {
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
		UserID: userID,
		Email:  email,
		Role:   role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken carries the user id only; anything else a handler
// needs gets re-fetched from the user store after refresh.
func (m *Manager) IssueRefreshToken(userID string) (string, error) {
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.refreshTTL)),
		},
		UserID: userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, nil
}

func (m *Manager) IssueTokenPair(userID, email string, role user.Role) (*TokenPair, error) {
	access, err := m.IssueAccessToken(userID, email, role)
	if err != nil {
		return nil, err
	}
	refresh, err := m.IssueRefreshToken(userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    LifetimeSeconds(m.rawAccessTTL),
	}, nil
}

// Verify checks signature and expiry against the secret selected by
// isRefresh. Failures are never downgraded: anything that is not a
// clean expiry comes back as ErrTokenInvalid.
func (m *Manager) Verify(token string, isRefresh bool) (*Claims, error) {
	secret := m.accessSecret
	if isRefresh {
		secret = m.refreshSecret
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// RefreshAccessToken validates the refresh token and mints a fresh
// access token for its user id alone.
func (m *Manager) RefreshAccessToken(refreshToken string) (string, error) {
	claims, err := m.Verify(refreshToken, true)
	if err != nil {
		return "", err
	}
	return m.IssueAccessToken(claims.UserID, "", "")
}

// DecodeUnverified parses the payload without checking the signature.
// Never use the result for an authorization decision; it exists for
// introspection only, e.g. telling a client its token is about to
// lapse.
func (m *Manager) DecodeUnverified(token string) (*Claims, bool) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// IsExpired reports whether the token's exp claim is in the past.
// Fail-closed: a token that cannot be decoded counts as expired.
// A token with no exp claim does not.
func (m *Manager) IsExpired(token string) bool {
	claims, ok := m.DecodeUnverified(token)
	if !ok {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Before(m.now())
}

// ExtractBearer pulls the token out of an Authorization header value.
// Only the exact form "Bearer <token>" is accepted.
func ExtractBearer(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

var lifetimePattern = regexp.MustCompile(`^(\d+)([dhms])$`)

// ParseLifetime converts a "7d"/"12h"/"30m"/"45s" style lifetime into
// a duration. The grammar is closed; anything else is an error.
func ParseLifetime(s string) (time.Duration, error) {
	match := lifetimePattern.FindStringSubmatch(s)
	if match == nil {
		return 0, fmt.Errorf("auth: invalid lifetime %q: want <number><d|h|m|s>", s)
	}
	n, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("auth: invalid lifetime %q: %w", s, err)
	}
	switch match[2] {
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	default:
		return time.Duration(n) * time.Second, nil
	}
}

// LifetimeSeconds is ParseLifetime with the documented fallback of
// 3600 seconds for strings outside the grammar. Used only for the
// advisory ExpiresIn field on a token pair.
func LifetimeSeconds(s string) int64 {
	d, err := ParseLifetime(s)
	if err != nil {
		return 3600
	}
	return int64(d / time.Second)
}
