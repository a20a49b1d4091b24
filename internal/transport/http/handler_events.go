package httptransport

import (
	"net/http"
	"time"

	appsession "court-rotation/internal/app/session"
	"court-rotation/internal/rotation"
	"court-rotation/internal/stream"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

var ssePingInterval = 15 * time.Second

func EventsSSEHandler(sessions *appsession.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "session_id")
		eng, err := sessions.Engine(sessionID)
		if err != nil {
			WriteServiceError(w, r, err)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteHTTPError(w, http.StatusInternalServerError, "stream_not_supported")
			return
		}
		buf := eng.Events()

		metricSSEConnectionsTotal.Add(1)
		metricSSEConnectionsActive.Add(1)
		defer metricSSEConnectionsActive.Add(-1)

		stream.SetSSEHeaders(w)
		log.Info().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("session_id", sessionID).
			Msg("sse stream opened")

		ch := buf.Subscribe()
		defer buf.Unsubscribe(ch)

		lastID := r.Header.Get("Last-Event-ID")
		if !buf.Covers(lastID) {
			// the missed moves are gone; the client has to refetch the view
			gap := stream.StreamEvent{
				Event:     rotation.EventViewsChanged,
				SessionID: sessionID,
				ServerTS:  time.Now().UnixMilli(),
			}
			if err := stream.WriteSSE(w, gap); err != nil {
				return
			}
			logSSEEvent(r, sessionID, "gap", gap)
		}
		for _, ev := range buf.ReplayAfter(lastID) {
			if err := stream.WriteSSE(w, ev); err != nil {
				return
			}
			logSSEEvent(r, sessionID, "replay", ev)
		}
		flusher.Flush()

		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				log.Info().
					Str("request_id", chimw.GetReqID(r.Context())).
					Str("session_id", sessionID).
					Err(r.Context().Err()).
					Msg("sse stream closed")
				return
			case ev, ok := <-ch:
				if !ok {
					log.Info().
						Str("request_id", chimw.GetReqID(r.Context())).
						Str("session_id", sessionID).
						Msg("sse stream channel closed")
					return
				}
				if err := stream.WriteSSE(w, ev); err != nil {
					return
				}
				logSSEEvent(r, sessionID, "live", ev)
				flusher.Flush()
			case <-ticker.C:
				ping := stream.StreamEvent{
					Event:     "ping",
					SessionID: sessionID,
					ServerTS:  time.Now().UnixMilli(),
				}
				if err := stream.WriteSSE(w, ping); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func logSSEEvent(r *http.Request, sessionID, source string, ev stream.StreamEvent) {
	log.Debug().
		Str("request_id", chimw.GetReqID(r.Context())).
		Str("session_id", sessionID).
		Str("event", ev.Event).
		Str("event_id", ev.EventID).
		Str("source", source).
		Msg("sse event sent")
}
