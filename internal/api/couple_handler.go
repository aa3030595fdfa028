package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/duetapp/duet/internal/couple"
	"github.com/duetapp/duet/internal/session"
)

// coupleHandler groups pairing HTTP handlers.
type coupleHandler struct {
	couples  *couple.Store
	sessions *session.Service
}

func newCoupleHandler(couples *couple.Store, sessions *session.Service) *coupleHandler {
	return &coupleHandler{couples: couples, sessions: sessions}
}

// Get handles GET /api/v1/couple.
func (h *coupleHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "you must be signed in")
		return
	}

	c, err := h.couples.GetByUser(r.Context(), sess.User.ID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "remote_store_failure", "failed to load pairing state")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "not_found", "no couple record")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"couple":  c,
		"partner": sess.Partner,
	})
}

// Update handles PUT /api/v1/couple.
func (h *coupleHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "you must be signed in")
		return
	}

	var in couple.UpdateCoupleInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	c, err := h.couples.GetByUser(r.Context(), sess.User.ID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "remote_store_failure", "failed to load pairing state")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "not_found", "no couple record")
		return
	}

	updated, err := h.couples.Update(r.Context(), c.ID, in)
	if err != nil {
		writeError(w, http.StatusBadGateway, "remote_store_failure", "failed to update couple")
		return
	}

	sess.Couple = updated
	writeJSON(w, http.StatusOK, updated)
}

// Redeem handles POST /api/v1/couple/redeem. A valid code pairs the caller
// with the code's owner and activates the couple.
func (h *coupleHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "you must be signed in")
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if req.Code == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "a pairing code is required")
		return
	}

	c, err := h.couples.Redeem(r.Context(), req.Code, sess.User.ID)
	if err != nil {
		switch {
		case errors.Is(err, couple.ErrCodeNotFound):
			writeError(w, http.StatusNotFound, "code_not_found", "this pairing code is not valid")
		case errors.Is(err, couple.ErrSelfPairing):
			writeError(w, http.StatusUnprocessableEntity, "validation_error", "you cannot redeem your own pairing code")
		default:
			writeError(w, http.StatusBadGateway, "remote_store_failure", "failed to redeem pairing code")
		}
		return
	}

	// Force a fresh session resolve so the couple and partner show up
	// immediately.
	if token := session.TokenFromRequest(r); token != "" {
		h.sessions.Invalidate(token)
	}
	sess.Couple = c

	writeJSON(w, http.StatusOK, c)
}
