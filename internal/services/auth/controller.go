package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	tokens "github.com/parcelpeer/authcore/internal/auth"
	"github.com/parcelpeer/authcore/internal/obs"
)

// Controller exposes the auth lifecycle over JSON. Error codes in the
// body distinguish an expired access token (client should refresh)
// from an invalid one (client must re-authenticate).
type Controller struct {
	uc     *Usecase
	tokens *tokens.Manager
	log    *zap.Logger
}

func NewController(uc *Usecase, tm *tokens.Manager, log *zap.Logger) *Controller {
	if log == nil {
		log, _ = zap.NewProduction()
	}
	return &Controller{uc: uc, tokens: tm, log: log}
}

func (c *Controller) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/auth/sign-in", c.signIn)
	mux.HandleFunc("POST /v1/auth/refresh", c.refresh)
	mux.HandleFunc("POST /v1/auth/logout", c.logout)
	mux.HandleFunc("POST /v1/auth/logout-all", c.RequireAuth(c.logoutAll))
	mux.HandleFunc("POST /v1/auth/change-password", c.RequireAuth(c.changePassword))
	mux.HandleFunc("GET /v1/auth/sessions", c.RequireAuth(c.listSessions))
}

type ctxKey int

const claimsKey ctxKey = 1

// ClaimsFromCtx returns the verified claims RequireAuth stored.
func ClaimsFromCtx(ctx context.Context) (*tokens.Claims, bool) {
	cl, ok := ctx.Value(claimsKey).(*tokens.Claims)
	return cl, ok
}

// RequireAuth extracts and verifies the bearer token before the
// wrapped handler runs. Unverified decode output is never consulted
// here.
func (c *Controller) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := tokens.ExtractBearer(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, "MISSING_TOKEN", "missing bearer token")
			return
		}
		claims, err := c.tokens.Verify(raw, false)
		if err != nil {
			if errors.Is(err, tokens.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "access token expired")
				return
			}
			writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "invalid access token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Controller) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "email and password are required")
		return
	}

	u, pair, sessionID, err := c.uc.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
			return
		}
		c.serverError(r, w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":      u,
		"tokens":    pair,
		"sessionId": sessionID,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (c *Controller) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "refreshToken is required")
		return
	}

	access, err := c.uc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, tokens.ErrTokenExpired) {
			writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "refresh token expired")
			return
		}
		writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "invalid refresh token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"accessToken": access})
}

type logoutRequest struct {
	SessionID string `json:"sessionId"`
}

func (c *Controller) logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "sessionId is required")
		return
	}
	c.uc.Logout(req.SessionID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (c *Controller) logoutAll(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromCtx(r.Context())
	removed := c.uc.LogoutEverywhere(claims.UserID)
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (c *Controller) changePassword(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromCtx(r.Context())

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "currentPassword and newPassword are required")
		return
	}

	err := c.uc.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "current password is wrong")
	case errors.Is(err, ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "WEAK_PASSWORD", "password must be at least 8 characters")
	default:
		c.serverError(r, w, err)
	}
}

func (c *Controller) listSessions(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromCtx(r.Context())
	ids := c.uc.sessions.ListForUser(claims.UserID)
	writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

func (c *Controller) serverError(r *http.Request, w http.ResponseWriter, err error) {
	obs.WithTrace(r.Context(), c.log).Error("auth handler", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}
