package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/duetapp/duet/internal/metrics"
	"github.com/duetapp/duet/internal/notify"
	"github.com/duetapp/duet/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// streamHeartbeat keeps idle SSE connections from being dropped by proxies.
const streamHeartbeat = 25 * time.Second

type notificationsHandler struct {
	store   *notify.Store
	hub     *notify.Hub
	metrics *metrics.Metrics
}

func newNotificationsHandler(store *notify.Store, hub *notify.Hub, m *metrics.Metrics) *notificationsHandler {
	return &notificationsHandler{store: store, hub: hub, metrics: m}
}

// List handles GET /api/v1/notifications. Pass ?unread=true to filter to
// unread entries only. The unread count is always included.
func (h *notificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
		return
	}

	unreadOnly := r.URL.Query().Get("unread") == "true"
	list, err := h.store.ListByRecipient(r.Context(), sess.User.ID, unreadOnly)
	if err != nil {
		writeError(w, http.StatusBadGateway, "remote_store_failure", err.Error())
		return
	}
	count, err := h.store.CountUnread(r.Context(), sess.User.ID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "remote_store_failure", err.Error())
		return
	}
	if list == nil {
		list = []*notify.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": list,
		"unread_count":  count,
	})
}

// MarkRead handles POST /api/v1/notifications/{id}/read.
func (h *notificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
		return
	}

	err := h.store.MarkRead(r.Context(), chi.URLParam(r, "id"), sess.User.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "not_found", "notification not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "remote_store_failure", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /api/v1/notifications/read-all.
func (h *notificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
		return
	}

	if err := h.store.MarkAllRead(r.Context(), sess.User.ID); err != nil {
		writeError(w, http.StatusBadGateway, "remote_store_failure", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/notifications/{id}.
func (h *notificationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
		return
	}

	err := h.store.Delete(r.Context(), chi.URLParam(r, "id"), sess.User.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "not_found", "notification not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "remote_store_failure", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stream handles GET /api/v1/notifications/stream. It holds the connection
// open and pushes each new notification for the signed-in user as a
// server-sent event until the client disconnects.
func (h *notificationsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if !sess.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming is not supported on this connection")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events, cancel := h.hub.Subscribe(sess.User.ID)
	defer cancel()

	if h.metrics != nil {
		h.metrics.StreamSubscribers.Inc()
		defer h.metrics.StreamSubscribers.Dec()
	}

	// Tell the client the stream is live before the first event arrives.
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case n, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(n)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
