package api

import (
	"net/http"

	"github.com/duetapp/duet/internal/entity"
	"github.com/duetapp/duet/internal/session"
	"github.com/go-chi/chi/v5"
)

// habitsHandler groups habit HTTP handlers.
type habitsHandler struct {
	engine *entity.Engine
}

func newHabitsHandler(engine *entity.Engine) *habitsHandler {
	return &habitsHandler{engine: engine}
}

// List handles GET /api/v1/habits.
func (h *habitsHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	habits, err := h.engine.ListHabits(r.Context(), sess)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, habits)
}

// Create handles POST /api/v1/habits.
func (h *habitsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in entity.CreateHabitInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	sess := session.FromContext(r.Context())
	habit, err := h.engine.CreateHabit(r.Context(), sess, in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, habit)
}

// Update handles PUT /api/v1/habits/{id}.
func (h *habitsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in entity.UpdateHabitInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	sess := session.FromContext(r.Context())
	habit, err := h.engine.UpdateHabit(r.Context(), sess, chi.URLParam(r, "id"), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

// Delete handles DELETE /api/v1/habits/{id}.
func (h *habitsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if err := h.engine.DeleteHabit(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Progress handles POST /api/v1/habits/{id}/progress, flipping completion
// for one day.
func (h *habitsHandler) Progress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	sess := session.FromContext(r.Context())
	habit, err := h.engine.UpdateHabitProgress(r.Context(), sess, chi.URLParam(r, "id"), req.Date)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}
