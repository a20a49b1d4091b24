package httptransport

import (
	"encoding/json"
	"net/http"
	"strconv"

	appsession "court-rotation/internal/app/session"
	"court-rotation/internal/rotation"

	"github.com/go-chi/chi/v5"
)

type SessionHandlers struct {
	sessions *appsession.Service
}

func NewSessionHandlers(sessions *appsession.Service) *SessionHandlers {
	return &SessionHandlers{sessions: sessions}
}

func (h *SessionHandlers) engine(w http.ResponseWriter, r *http.Request) (*rotation.Engine, bool) {
	eng, err := h.sessions.Engine(chi.URLParam(r, "session_id"))
	if err != nil {
		WriteServiceError(w, r, err)
		return nil, false
	}
	return eng, true
}

func courtParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "court"))
	if err != nil {
		WriteHTTPError(w, http.StatusBadRequest, "invalid_court")
		return 0, false
	}
	return n, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

// mutated finishes a mutation request with the post-resync view.
func mutated(w http.ResponseWriter, r *http.Request, eng *rotation.Engine, err error) {
	metricMutationTotal.Add(1)
	if err != nil {
		metricMutationErrors.Add(1)
		WriteServiceError(w, r, err)
		return
	}
	writeJSON(w, eng.View())
}

func (h *SessionHandlers) Select() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricSessionSelectTotal.Add(1)
		eng, err := h.sessions.Select(r.Context(), chi.URLParam(r, "session_id"))
		if err != nil {
			metricSessionSelectErrors.Add(1)
			WriteServiceError(w, r, err)
			return
		}
		writeJSON(w, eng.View())
	}
}

func (h *SessionHandlers) State() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng, ok := h.engine(w, r)
		if !ok {
			return
		}
		writeJSON(w, eng.View())
	}
}

func (h *SessionHandlers) Reload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng, ok := h.engine(w, r)
		if !ok {
			return
		}
		mutated(w, r, eng, eng.Reload(r.Context()))
	}
}

func (h *SessionHandlers) Assign() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng, ok := h.engine(w, r)
		if !ok {
			return
		}
		court, ok := courtParam(w, r)
		if !ok {
			return
		}
		var body struct {
			PlayerIDs []string `json:"player_ids"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		mutated(w, r, eng, eng.Assign(r.Context(), court, body.PlayerIDs))
	}
}

func (h *SessionHandlers) Unassign() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng, ok := h.engine(w, r)
		if !ok {
			return
		}
		court, ok := courtParam(w, r)
		if !ok {
			return
		}
		mutated(w, r, eng, eng.Unassign(r.Context(), court))
	}
}

func (h *SessionHandlers) Swap() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng, ok := h.engine(w, r)
		if !ok {
			return
		}
		court, ok := courtParam(w, r)
		if !ok {
			return
		}
		var body struct {
			PlayerOut string `json:"player_out"`
			PlayerIn  string `json:"player_in"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		if body.PlayerOut == "" || body.PlayerIn == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		mutated(w, r, eng, eng.Swap(r.Context(), court, body.PlayerOut, body.PlayerIn))
	}
}

func (h *SessionHandlers) CourtState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng, ok := h.engine(w, r)
		if !ok {
			return
		}
		court, ok := courtParam(w, r)
		if !ok {
			return
		}
		var body struct {
			State string `json:"state"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		mutated(w, r, eng, eng.SetCourtState(court, rotation.CourtState(body.State)))
	}
}

func (h *SessionHandlers) Queue() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng, ok := h.engine(w, r)
		if !ok {
			return
		}
		var body struct {
			PlayerIDs []string `json:"player_ids"`
			Enqueue   *bool    `json:"enqueue"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		enqueue := body.Enqueue == nil || *body.Enqueue
		mutated(w, r, eng, eng.CommitQueue(r.Context(), body.PlayerIDs, enqueue))
	}
}

func (h *SessionHandlers) Attendance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng, ok := h.engine(w, r)
		if !ok {
			return
		}
		var body struct {
			Updates []rotation.AttendanceUpdate `json:"updates"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		mutated(w, r, eng, eng.CommitAttendance(r.Context(), body.Updates))
	}
}

func (h *SessionHandlers) TogglePause() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng, ok := h.engine(w, r)
		if !ok {
			return
		}
		playerID := chi.URLParam(r, "player_id")
		metricMutationTotal.Add(1)
		paused, err := eng.TogglePaused(r.Context(), playerID)
		if err != nil {
			metricMutationErrors.Add(1)
			WriteServiceError(w, r, err)
			return
		}
		writeJSON(w, map[string]any{"player_id": playerID, "paused": paused})
	}
}

// RefreshControl pauses or resumes one periodic refresh item.
func (h *SessionHandlers) RefreshControl(pause bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng, ok := h.engine(w, r)
		if !ok {
			return
		}
		item, ok := rotation.ParseRefreshItem(chi.URLParam(r, "item"))
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_refresh_item")
			return
		}
		if pause {
			eng.PauseRefresh(item)
		} else {
			eng.ResumeRefresh(item)
		}
		writeJSON(w, eng.View())
	}
}
