package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	appdirectory "court-rotation/internal/app/directory"
	appsession "court-rotation/internal/app/session"
	"court-rotation/internal/config"
	"court-rotation/internal/mcpserver"
	"court-rotation/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// RouterStore is what the HTTP layer needs from persistence directly; engine
// access goes through the session service.
type RouterStore interface {
	Pinger
	appdirectory.Store
}

func NewRouter(st RouterStore, cfg config.ServerConfig, sessions *appsession.Service) *chi.Mux {
	directorySvc := appdirectory.NewService(st)
	mcpSrv := mcpserver.New(sessions, directorySvc)
	wsSrv := ws.NewServer(sessions)

	sessionHandlers := NewSessionHandlers(sessions)
	adminHandlers := NewAdminHandlers(st, directorySvc)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	r.With(APILogMiddleware()).Get("/ws", wsSrv.Handler())
	r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
	})
	r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", mcpSrv.Handler())

	limit := RateLimitMiddleware(cfg.MutationRatePerSec, cfg.MutationBurst)

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/directory", adminHandlers.Directory())

		r.Route("/sessions/{session_id}", func(r chi.Router) {
			r.Get("/state", sessionHandlers.State())
			r.Get("/events", EventsSSEHandler(sessions))

			r.Group(func(r chi.Router) {
				r.Use(limit)
				r.Post("/select", sessionHandlers.Select())
				r.Post("/reload", sessionHandlers.Reload())
				r.Post("/courts/{court}/assign", sessionHandlers.Assign())
				r.Delete("/courts/{court}/players", sessionHandlers.Unassign())
				r.Post("/courts/{court}/swap", sessionHandlers.Swap())
				r.Put("/courts/{court}/state", sessionHandlers.CourtState())
				r.Post("/queue", sessionHandlers.Queue())
				r.Post("/attendance", sessionHandlers.Attendance())
				r.Post("/players/{player_id}/pause", sessionHandlers.TogglePause())
				r.Post("/refresh/{item}/pause", sessionHandlers.RefreshControl(true))
				r.Post("/refresh/{item}/resume", sessionHandlers.RefreshControl(false))
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Post("/admin/directory", adminHandlers.UpsertDirectory())

			r.Route("/debug", func(r chi.Router) {
				r.Use(BodyCaptureMiddleware(4096))
				r.Get("/vars", expvar.Handler().ServeHTTP)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		log.Debug().Str("path", r.URL.Path).Msg("route not found")
		WriteHTTPError(w, http.StatusNotFound, "not_found")
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 64)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
