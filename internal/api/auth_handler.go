package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/duetapp/duet/internal/couple"
	"github.com/duetapp/duet/internal/localcache"
	"github.com/duetapp/duet/internal/metrics"
	"github.com/duetapp/duet/internal/session"
	"github.com/duetapp/duet/internal/user"
	"github.com/jackc/pgx/v5/pgconn"
)

// sessionCookieMaxAge matches the server-side session lifetime.
const sessionCookieMaxAge = 7 * 24 * time.Hour

// authHandler groups authentication HTTP handlers.
type authHandler struct {
	users    *user.Store
	couples  *couple.Store
	sessions *session.Service
	cache    *localcache.Cache
	metrics  *metrics.Metrics
}

func newAuthHandler(users *user.Store, couples *couple.Store, sessions *session.Service, cache *localcache.Cache, m *metrics.Metrics) *authHandler {
	return &authHandler{users: users, couples: couples, sessions: sessions, cache: cache, metrics: m}
}

func (h *authHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionCookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *authHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func sessionPayload(sess *session.Session, token string) map[string]interface{} {
	payload := map[string]interface{}{
		"user":    sess.User,
		"couple":  sess.Couple,
		"partner": sess.Partner,
	}
	if token != "" {
		payload["token"] = token
	}
	return payload
}

// Register handles POST /api/v1/auth/register. A new account gets a pending
// couple with a pairing code straight away, so the client can show it on the
// first screen.
func (h *authHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		Name        string `json:"name"`
		AvatarColor string `json:"avatar_color"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" || len(req.Password) < 8 {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "email, name and a password of at least 8 characters are required")
		return
	}

	u, err := h.users.Create(r.Context(), user.CreateUserInput{
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		AvatarColor: req.AvatarColor,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeError(w, http.StatusConflict, "email_taken", "an account with this email already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create account")
		return
	}

	if _, err := h.couples.Create(r.Context(), u.ID); err != nil {
		// The account exists; pairing can be retried from the couple screen.
		writeError(w, http.StatusInternalServerError, "internal_error", "account created but pairing setup failed; sign in and try again")
		return
	}

	token, sess, err := h.sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "account created but sign-in failed")
		return
	}

	if h.metrics != nil {
		h.metrics.IncAuthSuccess("register")
	}
	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, sessionPayload(sess, token))
}

// Login handles POST /api/v1/auth/login.
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "email and password are required")
		return
	}

	token, sess, err := h.sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if h.metrics != nil {
			h.metrics.IncAuthFailure("password")
		}
		if errors.Is(err, session.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "invalid email or password")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create session")
		return
	}

	if h.metrics != nil {
		h.metrics.IncAuthSuccess("password")
	}
	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, sessionPayload(sess, token))
}

// Logout handles POST /api/v1/auth/logout. Local state (mirrored collections
// and the cached session) is cleared before the remote session delete
// resolves.
func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess.Authenticated() && h.cache != nil {
		_ = h.cache.DeleteUser(r.Context(), sess.User.ID)
	}

	if token := session.TokenFromRequest(r); token != "" {
		h.sessions.SignOut(r.Context(), token)
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me.
func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "you must be signed in")
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(sess, ""))
}

// UpdateMe handles PUT /api/v1/auth/me.
func (h *authHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "you must be signed in")
		return
	}

	var in user.UpdateUserInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	updated, err := h.users.Update(r.Context(), sess.User.ID, in)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to update profile")
		return
	}

	// Drop the cached session so the next request sees the new profile.
	if token := session.TokenFromRequest(r); token != "" {
		h.sessions.Invalidate(token)
	}
	writeJSON(w, http.StatusOK, updated)
}
