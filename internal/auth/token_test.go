package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelpeer/authcore/internal/domain/user"
)

func testManager(t *testing.T, accessLifetime string) *Manager {
	t.Helper()
	m, err := NewManager(Options{
		AccessSecret:    []byte("access-secret"),
		RefreshSecret:   []byte("refresh-secret"),
		AccessLifetime:  accessLifetime,
		RefreshLifetime: "30d",
	})
	require.NoError(t, err)
	return m
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := testManager(t, "7d")

	token, err := m.IssueAccessToken("u1", "a@b.c", user.RoleCarrier)
	require.NoError(t, err)

	claims, err := m.Verify(token, false)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "a@b.c", claims.Email)
	assert.Equal(t, user.RoleCarrier, claims.Role)
	require.NotNil(t, claims.IssuedAt)
	require.NotNil(t, claims.ExpiresAt)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt.Time))
}

func TestCrossSecretRejection(t *testing.T) {
	m := testManager(t, "7d")

	refresh, err := m.IssueRefreshToken("u1")
	require.NoError(t, err)

	_, err = m.Verify(refresh, false)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	claims, err := m.Verify(refresh, true)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)

	access, err := m.IssueAccessToken("u1", "a@b.c", user.RoleUser)
	require.NoError(t, err)
	_, err = m.Verify(access, true)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyExpiredIsDistinct(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := testManager(t, "1s")
	m.now = func() time.Time { return base }

	token, err := m.IssueAccessToken("u1", "a@b.c", user.RoleUser)
	require.NoError(t, err)

	_, err = m.Verify(token, false)
	require.NoError(t, err, "fresh token must verify")

	m.now = func() time.Time { return base.Add(2 * time.Second) }
	_, err = m.Verify(token, false)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyGarbage(t *testing.T) {
	m := testManager(t, "7d")
	_, err := m.Verify("not.a.token", false)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestIsExpired(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := testManager(t, "1s")
	m.now = func() time.Time { return base }

	token, err := m.IssueAccessToken("u1", "", user.RoleUser)
	require.NoError(t, err)
	assert.False(t, m.IsExpired(token))

	m.now = func() time.Time { return base.Add(time.Hour) }
	assert.True(t, m.IsExpired(token))

	// Fail-closed on garbage.
	assert.True(t, m.IsExpired("garbage"))

	// No exp claim means not expired; such a token still fails Verify.
	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": "u1"})
	signed, err := noExp.SignedString([]byte("whatever"))
	require.NoError(t, err)
	assert.False(t, m.IsExpired(signed))
	_, err = m.Verify(signed, false)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRefreshAccessToken(t *testing.T) {
	m := testManager(t, "7d")

	refresh, err := m.IssueRefreshToken("u42")
	require.NoError(t, err)

	access, err := m.RefreshAccessToken(refresh)
	require.NoError(t, err)

	claims, err := m.Verify(access, false)
	require.NoError(t, err)
	assert.Equal(t, "u42", claims.UserID)
	assert.Empty(t, claims.Email)

	// An access token is not a refresh token.
	_, err = m.RefreshAccessToken(access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestIssueTokenPair(t *testing.T) {
	m := testManager(t, "12h")

	pair, err := m.IssueTokenPair("u1", "a@b.c", user.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, int64(12*3600), pair.ExpiresIn)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	_, err = m.Verify(pair.AccessToken, false)
	assert.NoError(t, err)
	_, err = m.Verify(pair.RefreshToken, true)
	assert.NoError(t, err)
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc123", "abc123", true},
		{"abc123", "", false},
		{"Basic abc123", "", false},
		{"", "", false},
		{"Bearer", "", false},
		{"Bearer a b", "", false},
		{"bearer abc123", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractBearer(tt.header)
		assert.Equal(t, tt.ok, ok, "header %q", tt.header)
		assert.Equal(t, tt.want, got, "header %q", tt.header)
	}
}

func TestParseLifetime(t *testing.T) {
	valid := map[string]time.Duration{
		"7d":  7 * 24 * time.Hour,
		"30d": 30 * 24 * time.Hour,
		"12h": 12 * time.Hour,
		"45m": 45 * time.Minute,
		"1s":  time.Second,
	}
	for in, want := range valid {
		got, err := ParseLifetime(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "7", "d", "7w", "7 d", "-7d", "7dd", "1.5h"} {
		_, err := ParseLifetime(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestLifetimeSecondsFallback(t *testing.T) {
	assert.Equal(t, int64(604800), LifetimeSeconds("7d"))
	assert.Equal(t, int64(3600), LifetimeSeconds("bogus"))
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(Options{
		AccessSecret:    []byte("a"),
		RefreshSecret:   []byte("r"),
		AccessLifetime:  "soon",
		RefreshLifetime: "30d",
	})
	assert.Error(t, err)

	_, err = NewManager(Options{
		AccessLifetime:  "7d",
		RefreshLifetime: "30d",
	})
	assert.Error(t, err, "missing secrets must fail")
}
