package api

import (
	"net/http"

	"github.com/duetapp/duet/internal/entity"
	"github.com/duetapp/duet/internal/session"
	"github.com/go-chi/chi/v5"
)

// eventsHandler groups calendar event HTTP handlers.
type eventsHandler struct {
	engine *entity.Engine
}

func newEventsHandler(engine *entity.Engine) *eventsHandler {
	return &eventsHandler{engine: engine}
}

// List handles GET /api/v1/events.
func (h *eventsHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	events, err := h.engine.ListEvents(r.Context(), sess)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// Create handles POST /api/v1/events.
func (h *eventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in entity.CreateEventInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	sess := session.FromContext(r.Context())
	event, err := h.engine.CreateEvent(r.Context(), sess, in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// Update handles PUT /api/v1/events/{id}.
func (h *eventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in entity.UpdateEventInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	sess := session.FromContext(r.Context())
	event, err := h.engine.UpdateEvent(r.Context(), sess, chi.URLParam(r, "id"), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// Delete handles DELETE /api/v1/events/{id}.
func (h *eventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if err := h.engine.DeleteEvent(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
