package api

import (
	"net/http"

	"github.com/duetapp/duet/internal/points"
	"github.com/duetapp/duet/internal/session"
)

type pointsHandler struct {
	points *points.Store
}

func newPointsHandler(store *points.Store) *pointsHandler {
	return &pointsHandler{points: store}
}

// Get handles GET /api/v1/points, returning the signed-in user's balance and
// level.
func (h *pointsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
		return
	}

	p, err := h.points.Get(r.Context(), sess.User.ID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "remote_store_failure", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Achievements handles GET /api/v1/achievements: the full catalog plus which
// ones the signed-in user has earned.
func (h *pointsHandler) Achievements(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
		return
	}

	catalog, err := h.points.ListAchievements(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "remote_store_failure", err.Error())
		return
	}
	earned, err := h.points.ListEarned(r.Context(), sess.User.ID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "remote_store_failure", err.Error())
		return
	}
	if catalog == nil {
		catalog = []*points.Achievement{}
	}
	if earned == nil {
		earned = []*points.UserAchievement{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"achievements": catalog,
		"earned":       earned,
	})
}
