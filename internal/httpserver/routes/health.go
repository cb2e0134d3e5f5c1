package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/presence/internal/httpserver/deps"
	"github.com/MrSnakeDoc/presence/internal/httpserver/handlers"
)

func init() { Register(registerHealth) }

func registerHealth(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
	r.Method("GET", "/metrics", handlers.Metrics(d))
}
