package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/wrenfold/homedeck/internal/auth"
)

// loginRequest is the request body for POST /api/auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the success payload for a login.
type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      *auth.User `json:"user"`
}

// handleLogin verifies email/password credentials and issues an access token.
//
// Unknown emails, inactive accounts, and wrong passwords all return the
// same 401 so callers cannot probe which accounts exist.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	user, err := s.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("login lookup failed", "error", err)
		writeInternalError(w)
		return
	}
	if !user.IsActive {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	ttl := time.Duration(s.authCfg.JWT.AccessTokenTTL) * time.Minute
	token, err := auth.GenerateAccessToken(user, s.authCfg.JWT.Secret, ttl)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		writeInternalError(w)
		return
	}

	s.logger.Info("user logged in", "user_id", user.ID, "role", user.Role)

	writeSuccess(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(ttl),
		User:      user,
	})
}
