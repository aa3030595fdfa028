package api

import (
	"net/http"

	"github.com/duetapp/duet/internal/entity"
	"github.com/duetapp/duet/internal/session"
	"github.com/go-chi/chi/v5"
)

// shoppingHandler groups shopping list HTTP handlers.
type shoppingHandler struct {
	engine *entity.Engine
}

func newShoppingHandler(engine *entity.Engine) *shoppingHandler {
	return &shoppingHandler{engine: engine}
}

// List handles GET /api/v1/shopping.
func (h *shoppingHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	items, err := h.engine.ListShoppingItems(r.Context(), sess)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Create handles POST /api/v1/shopping.
func (h *shoppingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in entity.CreateShoppingItemInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	sess := session.FromContext(r.Context())
	item, err := h.engine.CreateShoppingItem(r.Context(), sess, in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// Update handles PUT /api/v1/shopping/{id}.
func (h *shoppingHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in entity.UpdateShoppingItemInput
	if err := readJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to parse request body")
		return
	}

	sess := session.FromContext(r.Context())
	item, err := h.engine.UpdateShoppingItem(r.Context(), sess, chi.URLParam(r, "id"), in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// Delete handles DELETE /api/v1/shopping/{id}.
func (h *shoppingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if err := h.engine.DeleteShoppingItem(r.Context(), sess, chi.URLParam(r, "id")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Toggle handles POST /api/v1/shopping/{id}/toggle.
func (h *shoppingHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	item, err := h.engine.ToggleShoppingItem(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
