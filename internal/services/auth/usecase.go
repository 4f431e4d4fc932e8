package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	tokens "github.com/parcelpeer/authcore/internal/auth"
	"github.com/parcelpeer/authcore/internal/domain/user"
	"github.com/parcelpeer/authcore/internal/repository/postgres"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password is too weak")
)

// Usecase ties credentials, token issuance, and the session registry
// together. Parcel matching, payments, and the rest of the app consume
// its outputs but live elsewhere.
type Usecase struct {
	users    user.Repo
	tokens   *tokens.Manager
	sessions *tokens.SessionStore
	log      *zap.Logger
}

func NewUsecase(users user.Repo, tm *tokens.Manager, ss *tokens.SessionStore, log *zap.Logger) *Usecase {
	if log == nil {
		log, _ = zap.NewProduction()
	}
	return &Usecase{users: users, tokens: tm, sessions: ss, log: log}
}

// SignIn checks the password, mints a token pair, and registers a
// session. The session id is the client's handle for logout.
func (u *Usecase) SignIn(ctx context.Context, email, password string) (*user.User, *tokens.TokenPair, string, error) {
	rec, err := u.users.GetByEmail(ctx, email)
	if err != nil {
		// Only an absent user is a credentials problem; storage
		// failures propagate so the handler can answer 5xx instead
		// of a misleading 401.
		if errors.Is(err, postgres.ErrNotFound) {
			return nil, nil, "", ErrInvalidCredentials
		}
		return nil, nil, "", fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) != nil {
		return nil, nil, "", ErrInvalidCredentials
	}

	pair, err := u.tokens.IssueTokenPair(rec.ID, rec.Email, rec.Role)
	if err != nil {
		return nil, nil, "", fmt.Errorf("issue tokens: %w", err)
	}

	sessionID := uuid.NewString()
	u.sessions.Create(sessionID, rec.ID)
	u.log.Info("auth.signin", zap.String("user_id", rec.ID))
	return rec, pair, sessionID, nil
}

// Refresh trades a valid refresh token for a new access token.
// Expiry and invalidity propagate distinctly so the handler can tell
// the client whether to re-authenticate.
func (u *Usecase) Refresh(ctx context.Context, refreshToken string) (string, error) {
	access, err := u.tokens.RefreshAccessToken(refreshToken)
	if err != nil {
		return "", err
	}
	u.log.Info("auth.refresh")
	return access, nil
}

// Logout drops one session. Idempotent; the stateless tokens stay
// valid until expiry.
func (u *Usecase) Logout(sessionID string) {
	u.sessions.Destroy(sessionID)
}

// LogoutEverywhere drops every session the user owns.
func (u *Usecase) LogoutEverywhere(userID string) int {
	n := u.sessions.DestroyAllForUser(userID)
	u.log.Info("auth.logout_everywhere", zap.String("user_id", userID), zap.Int("sessions", n))
	return n
}

// ChangePassword rotates the stored hash and evicts every session, so
// stolen sessions die with the old password.
func (u *Usecase) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < 8 {
		return ErrWeakPassword
	}
	rec, err := u.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := u.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}
	u.sessions.DestroyAllForUser(userID)
	return nil
}
