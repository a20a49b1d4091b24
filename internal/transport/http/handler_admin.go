package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	appdirectory "court-rotation/internal/app/directory"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type AdminHandlers struct {
	db        Pinger
	directory *appdirectory.Service
}

func NewAdminHandlers(db Pinger, directory *appdirectory.Service) *AdminHandlers {
	return &AdminHandlers{db: db, directory: directory}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "db": "down"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "db": "up"})
	}
}

func (h *AdminHandlers) Directory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.directory.Players(r.Context())
		if err != nil {
			WriteServiceError(w, r, err)
			return
		}
		writeJSON(w, resp)
	}
}

func (h *AdminHandlers) UpsertDirectory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Players []appdirectory.PlayerInput `json:"players"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		resp, err := h.directory.Upsert(r.Context(), body.Players)
		if err != nil {
			WriteServiceError(w, r, err)
			return
		}
		writeJSON(w, resp)
	}
}
