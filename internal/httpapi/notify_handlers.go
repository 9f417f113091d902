package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"chepochem.org/internal/rbac"
)

func (a *API) handleNotificationsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor := actorFrom(r)
	if actor.IsAnonymous() {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	items, err := a.notifications.ListFor(r.Context(), actor.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleNotificationResource routes POST /v1/notifications/{id}/read.
func (a *API) handleNotificationResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/notifications/")
	id, tail, _ := strings.Cut(path, "/")
	if id == "" || tail != "read" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor := actorFrom(r)
	if actor.IsAnonymous() {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.notifications.MarkRead(r.Context(), id, actor.ID); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StreamNotifications delivers the actor's notifications over Server-Sent
// Events. Moderators holding view_all_notifications receive every event.
func (a *API) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	if a.stream == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}
	actor := actorFrom(r)
	if actor.IsAnonymous() {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	seeAll := a.catalogAllows(r, rbac.CapViewAllNotifications)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.stream.Subscribe(ctx)

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for n := range ch {
		if !seeAll && n.UserID != actor.ID {
			continue
		}
		payload, err := json.Marshal(n)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

func (a *API) catalogAllows(r *http.Request, capability rbac.Capability) bool {
	return a.engine != nil && a.engine.Check(r.Context(), actorFrom(r), capability, "", "") == nil
}
