package http

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/docpack/docpack/pkg/domain/interfaces"
	"github.com/docpack/docpack/pkg/domain/types"
)

// SessionCookieName is the cookie carrying the admin session token
const SessionCookieName = "admin_token"

// AuthHandler handles admin login and logout
type AuthHandler struct {
	authUC       interfaces.AuthUseCase
	cookieSecure bool
	ttl          time.Duration
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authUC interfaces.AuthUseCase, cookieSecure bool, ttl time.Duration) *AuthHandler {
	return &AuthHandler{
		authUC:       authUC,
		cookieSecure: cookieSecure,
		ttl:          ttl,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password" masq:"secret"`
}

// Login checks the credentials and sets the session cookie
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		handleError(w, r, goerr.New("Email & Password required",
			goerr.V("decode_error", err.Error()), goerr.T(types.ErrTagBadRequest)))
		return
	}

	session, err := h.authUC.Login(ctx, req.Email, req.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}

	http.SetCookie(w, h.cookie(session.Token, int(h.ttl.Seconds())))
	writeJSON(ctx, w, http.StatusOK, map[string]string{
		"message": "Login successful",
		"token":   session.Token,
	})
}

// Logout clears the session cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.cookie("", -1))
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{
		"message": "Logged out successfully",
	})
}

// Session returns the current admin session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	if session == nil {
		writeError(w, goerr.New("Unauthorized"), http.StatusUnauthorized)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, session)
}

func (h *AuthHandler) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
