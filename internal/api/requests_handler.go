package api

import (
	"net/http"

	"github.com/duetapp/duet/internal/entity"
	"github.com/duetapp/duet/internal/session"
	"github.com/go-chi/chi/v5"
)

// requestsHandler groups partner request HTTP handlers.
type requestsHandler struct {
	engine *entity.Engine
}

func newRequestsHandler(engine *entity.Engine) *requestsHandler {
	return &requestsHandler{engine: engine}
}

// List handles GET /api/v1/requests.
func (h *requestsHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	requests, err := h.engine.ListRequests(r.Context(), sess)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}

// Create handles POST /api/v1/requests.
func (h *requestsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in entity.CreateRequestInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	sess := session.FromContext(r.Context())
	req, err := h.engine.CreateRequest(r.Context(), sess, in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// Update handles PUT /api/v1/requests/{id}.
func (h *requestsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in entity.UpdateRequestInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	sess := session.FromContext(r.Context())
	req, err := h.engine.UpdateRequest(r.Context(), sess, chi.URLParam(r, "id"), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// Delete handles DELETE /api/v1/requests/{id}.
func (h *requestsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if err := h.engine.DeleteRequest(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Approve handles POST /api/v1/requests/{id}/approve.
func (h *requestsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	req, err := h.engine.ApproveRequest(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// Reject handles POST /api/v1/requests/{id}/reject.
func (h *requestsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := readJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	sess := session.FromContext(r.Context())
	req, err := h.engine.RejectRequest(r.Context(), sess, chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
