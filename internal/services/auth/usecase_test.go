package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	tokens "github.com/parcelpeer/authcore/internal/auth"
	"github.com/parcelpeer/authcore/internal/domain/user"
	"github.com/parcelpeer/authcore/internal/repository/postgres"
)

type fakeUserRepo struct {
	byEmail map[string]*user.User
	byID    map[string]*user.User
}

func newFakeUserRepo(users ...*user.User) *fakeUserRepo {
	r := &fakeUserRepo{byEmail: map[string]*user.User{}, byID: map[string]*user.User{}}
	for _, u := range users {
		r.byEmail[u.Email] = u
		r.byID[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	if u, ok := r.byEmail[email]; ok {
		return u, nil
	}
	return nil, postgres.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	if u, ok := r.byID[id]; ok {
		return u, nil
	}
	return nil, postgres.ErrNotFound
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id, hash string) error {
	u, ok := r.byID[id]
	if !ok {
		return postgres.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

// failingUserRepo simulates a storage layer that is down.
type failingUserRepo struct{ err error }

func (r *failingUserRepo) GetByEmail(context.Context, string) (*user.User, error) {
	return nil, r.err
}
func (r *failingUserRepo) GetByID(context.Context, string) (*user.User, error) {
	return nil, r.err
}
func (r *failingUserRepo) UpdatePassword(context.Context, string, string) error {
	return r.err
}

func testFixture(t *testing.T) (*Usecase, *fakeUserRepo, *tokens.SessionStore, *tokens.Manager) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := newFakeUserRepo(&user.User{
		ID:           "u1",
		Email:        "a@b.c",
		PasswordHash: string(hash),
		Role:         user.RoleCarrier,
	})

	tm, err := tokens.NewManager(tokens.Options{
		AccessSecret:    []byte("access-secret"),
		RefreshSecret:   []byte("refresh-secret"),
		AccessLifetime:  "7d",
		RefreshLifetime: "30d",
	})
	require.NoError(t, err)

	sessions := tokens.NewSessionStore()
	return NewUsecase(repo, tm, sessions, zap.NewNop()), repo, sessions, tm
}

func TestSignIn(t *testing.T) {
	uc, _, sessions, tm := testFixture(t)

	u, pair, sessionID, err := uc.SignIn(context.Background(), "a@b.c", "password123")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	require.NotEmpty(t, sessionID)

	uid, ok := sessions.Get(sessionID)
	assert.True(t, ok)
	assert.Equal(t, "u1", uid)

	claims, err := tm.Verify(pair.AccessToken, false)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, user.RoleCarrier, claims.Role)
}

func TestSignInWrongPassword(t *testing.T) {
	uc, _, sessions, _ := testFixture(t)

	_, _, _, err := uc.SignIn(context.Background(), "a@b.c", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 0, sessions.Len())
}

func TestSignInUnknownEmail(t *testing.T) {
	uc, _, _, _ := testFixture(t)

	_, _, _, err := uc.SignIn(context.Background(), "nobody@b.c", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignInPropagatesStorageErrors(t *testing.T) {
	_, _, sessions, tm := testFixture(t)
	uc := NewUsecase(&failingUserRepo{err: postgres.ErrAcquireTimeout}, tm, sessions, zap.NewNop())

	_, _, _, err := uc.SignIn(context.Background(), "a@b.c", "password123")
	assert.ErrorIs(t, err, postgres.ErrAcquireTimeout,
		"a storage outage must reach the handler intact")
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 0, sessions.Len())
}

func TestRefresh(t *testing.T) {
	uc, _, _, tm := testFixture(t)

	_, pair, _, err := uc.SignIn(context.Background(), "a@b.c", "password123")
	require.NoError(t, err)

	access, err := uc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	claims, err := tm.Verify(access, false)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)

	_, err = uc.Refresh(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, tokens.ErrTokenInvalid)
}

func TestLogout(t *testing.T) {
	uc, _, sessions, _ := testFixture(t)

	_, _, sessionID, err := uc.SignIn(context.Background(), "a@b.c", "password123")
	require.NoError(t, err)

	uc.Logout(sessionID)
	_, ok := sessions.Get(sessionID)
	assert.False(t, ok)

	uc.Logout(sessionID) // idempotent
}

func TestLogoutEverywhere(t *testing.T) {
	uc, _, sessions, _ := testFixture(t)

	for range 3 {
		_, _, _, err := uc.SignIn(context.Background(), "a@b.c", "password123")
		require.NoError(t, err)
	}
	sessions.Create("other", "u2")

	assert.Equal(t, 3, uc.LogoutEverywhere("u1"))
	assert.Equal(t, 1, sessions.Len())
}

func TestChangePassword(t *testing.T) {
	uc, repo, sessions, _ := testFixture(t)

	_, _, _, err := uc.SignIn(context.Background(), "a@b.c", "password123")
	require.NoError(t, err)

	err = uc.ChangePassword(context.Background(), "u1", "password123", "newpassword1")
	require.NoError(t, err)

	// Every session dies with the old password.
	assert.Equal(t, 0, sessions.Len())
	assert.NoError(t, bcrypt.CompareHashAndPassword(
		[]byte(repo.byID["u1"].PasswordHash), []byte("newpassword1")))

	err = uc.ChangePassword(context.Background(), "u1", "password123", "anotherpass1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = uc.ChangePassword(context.Background(), "u1", "newpassword1", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)
}
