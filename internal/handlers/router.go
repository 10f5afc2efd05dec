package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jwebster45206/branch-engine/internal/events"
	"github.com/jwebster45206/branch-engine/internal/middleware"
	"github.com/jwebster45206/branch-engine/internal/session"
	"github.com/jwebster45206/branch-engine/pkg/storage"
)

// Deps are the collaborators the HTTP API needs.
type Deps struct {
	Storage    storage.Storage
	Manager    *session.Manager
	Subscriber events.Subscriber
	Logger     *slog.Logger
}

// NewRouter wires every route.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(d.Logger))
	r.Use(chimiddleware.Recoverer)

	r.Method(http.MethodGet, "/health", NewHealthHandler(d.Storage, d.Logger))

	stories := NewStoryHandler(d.Storage, d.Logger)
	games := NewGameHandler(d.Manager, d.Logger)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/stories", stories.List)
		r.Get("/stories/{id}", stories.Get)

		r.Post("/games", games.Create)
		r.Route("/games/{id}", func(r chi.Router) {
			r.Get("/", games.Get)
			r.Delete("/", games.Reset)
			r.Post("/actions", games.Act)
			r.Method(http.MethodGet, "/events", NewEventsHandler(d.Subscriber, d.Logger))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, d.Logger, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, d.Logger, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}
