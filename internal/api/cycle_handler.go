package api

import (
	"net/http"

	"github.com/duetapp/duet/internal/cycle"
	"github.com/duetapp/duet/internal/entity"
	"github.com/duetapp/duet/internal/session"
)

type cycleHandler struct {
	cycle   *cycle.Store
	effects entity.Dispatcher
}

func newCycleHandler(store *cycle.Store, effects entity.Dispatcher) *cycleHandler {
	return &cycleHandler{cycle: store, effects: effects}
}

// Get handles GET /api/v1/cycle. By default it returns the signed-in user's
// own record; ?partner=true reads the partner's record instead, which is only
// visible when the partner has enabled sharing.
func (h *cycleHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
		return
	}

	if r.URL.Query().Get("partner") == "true" {
		if sess.Partner == nil {
			writeError(w, http.StatusNotFound, "not_found", "no partner linked")
			return
		}
		rec, err := h.cycle.Get(r.Context(), sess.Partner.ID)
		if err != nil {
			writeError(w, http.StatusBadGateway, "remote_store_failure", err.Error())
			return
		}
		if rec == nil || !rec.SharedWithPartner {
			writeError(w, http.StatusNotFound, "not_found", "no shared cycle data")
			return
		}
		writeJSON(w, http.StatusOK, rec)
		return
	}

	rec, err := h.cycle.Get(r.Context(), sess.User.ID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "remote_store_failure", err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "not_found", "no cycle data recorded")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Update handles PUT /api/v1/cycle, creating the record on first write.
func (h *cycleHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
		return
	}

	var in cycle.UpdateInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	rec, err := h.cycle.Upsert(r.Context(), sess.User.ID, in)
	if err != nil {
		writeError(w, http.StatusBadGateway, "remote_store_failure", err.Error())
		return
	}

	if rec.SharedWithPartner && sess.Partner != nil && h.effects != nil {
		h.effects.NotifyPartner(sess.Partner.ID, "cycle", sess.User.ID,
			"Cycle update", sess.User.Name+" updated their cycle tracking")
	}
	writeJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /api/v1/cycle.
func (h *cycleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
		return
	}

	if err := h.cycle.Delete(r.Context(), sess.User.ID); err != nil {
		writeError(w, http.StatusBadGateway, "remote_store_failure", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
