package api

import (
	"net/http"

	"github.com/duetapp/duet/internal/entity"
	"github.com/duetapp/duet/internal/session"
	"github.com/go-chi/chi/v5"
)

// tasksHandler groups task HTTP handlers.
type tasksHandler struct {
	engine *entity.Engine
}

func newTasksHandler(engine *entity.Engine) *tasksHandler {
	return &tasksHandler{engine: engine}
}

// List handles GET /api/v1/tasks.
func (h *tasksHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	tasks, err := h.engine.ListTasks(r.Context(), sess)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Create handles POST /api/v1/tasks.
func (h *tasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in entity.CreateTaskInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	sess := session.FromContext(r.Context())
	task, err := h.engine.CreateTask(r.Context(), sess, in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// Update handles PUT /api/v1/tasks/{id}.
func (h *tasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in entity.UpdateTaskInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	sess := session.FromContext(r.Context())
	task, err := h.engine.UpdateTask(r.Context(), sess, chi.URLParam(r, "id"), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Delete handles DELETE /api/v1/tasks/{id}.
func (h *tasksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if err := h.engine.DeleteTask(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Toggle handles POST /api/v1/tasks/{id}/toggle.
func (h *tasksHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	task, err := h.engine.ToggleTask(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
