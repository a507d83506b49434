package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/harun/beacon/internal/observability"
	"github.com/harun/beacon/pkg/location"
	"github.com/harun/beacon/pkg/tracking"
)

func (h *Handler) initialize(w http.ResponseWriter, r *http.Request) {
	rec, err := h.tracking.Initialize(caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location": rec.Position,
		"message":  "Location started",
	})
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	pos, err := h.tracking.Generate(caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location": pos,
		"message":  "Generated mock location. Send this to /update endpoint",
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Location *location.Position `json:"location"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	rec, err := h.tracking.Update(caller(r), req.Location, tracking.SurfaceHTTP)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Location updated",
		"location":  rec.Position,
		"isSharing": rec.SharingEnabled,
	})
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	rec, err := h.tracking.Current(caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location":     rec.Position,
		"lastUpdate":   rec.LastUpdate,
		"isSharing":    rec.SharingEnabled,
		"allowedUsers": h.tracking.Viewers(rec),
	})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	rec, err := h.tracking.History(caller(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location": rec.Position,
		"history":  rec.History,
	})
}

func (h *Handler) startSharing(w http.ResponseWriter, r *http.Request) {
	h.setSharing(w, r, true, "Sharing started")
}

func (h *Handler) stopSharing(w http.ResponseWriter, r *http.Request) {
	h.setSharing(w, r, false, "Sharing stopped")
}

func (h *Handler) setSharing(w http.ResponseWriter, r *http.Request, enabled bool, msg string) {
	rec, err := h.tracking.SetSharing(caller(r), enabled)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	action := "stop_sharing"
	if enabled {
		action = "start_sharing"
	}
	observability.RecordSharingAudit(r.Context(), action, caller(r).String(), "")
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   msg,
		"isSharing": rec.SharingEnabled,
	})
}

func (h *Handler) allow(w http.ResponseWriter, r *http.Request) {
	viewer, ok := pathIdentity(r)
	if !ok {
		h.writeError(w, r, errBadRequest)
		return
	}

	rec, err := h.tracking.Allow(caller(r), viewer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	observability.RecordSharingAudit(r.Context(), "allow_viewer", caller(r).String(), viewer.String())
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      fmt.Sprintf("User %s can now see your location", viewer),
		"allowedUsers": h.tracking.Viewers(rec),
	})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	viewer, ok := pathIdentity(r)
	if !ok {
		h.writeError(w, r, errBadRequest)
		return
	}

	rec, err := h.tracking.Revoke(caller(r), viewer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	observability.RecordSharingAudit(r.Context(), "remove_viewer", caller(r).String(), viewer.String())
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      fmt.Sprintf("User %s removed", viewer),
		"allowedUsers": h.tracking.Viewers(rec),
	})
}

func (h *Handler) shared(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"locations": h.tracking.SharedWith(caller(r)),
	})
}

func pathIdentity(r *http.Request) (location.Identity, bool) {
	id := strings.TrimSpace(r.PathValue("userId"))
	return location.Identity(id), id != ""
}
