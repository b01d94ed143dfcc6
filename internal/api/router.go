package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kaushalacts/research-ai-platform/internal/api/middleware"
)

// RouterConfig wires handlers and authentication into the router.
type RouterConfig struct {
	Tasks     *TaskHandler
	Callbacks *CallbackHandler
	Services  *ServiceHandler

	// APIKeys guards every /api route except callbacks. Nil disables it.
	APIKeys middleware.KeyVerifier
	// CallbackTokens guards the callback route. Nil leaves the route
	// unregistered.
	CallbackTokens middleware.TokenVerifier

	Logger *slog.Logger
}

// NewRouter builds the HTTP handler for the service.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewTraceMiddleware(log))

	r.Route("/api", func(r chi.Router) {
		if cfg.CallbackTokens != nil && cfg.Callbacks != nil {
			r.With(middleware.RequireCallbackToken(cfg.CallbackTokens, "id")).
				Post("/callbacks/tasks/{id}", cfg.Callbacks.ReceiveResult)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAPIKey(cfg.APIKeys))

			r.Post("/tasks", cfg.Tasks.CreateTask)
			r.Get("/tasks", cfg.Tasks.ListTasks)
			r.Get("/tasks/{id}", cfg.Tasks.GetTask)
			r.Get("/tasks/{id}/events", cfg.Tasks.ListTaskEvents)
			r.Post("/tasks/{id}/cancel", cfg.Tasks.CancelTask)

			r.Get("/services", cfg.Services.ListServices)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
