package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/presence/internal/httpserver/deps"
	"github.com/MrSnakeDoc/presence/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/presence/internal/httpserver/mw"
)

func init() { Register(registerStatus) }

func registerStatus(r chi.Router, d deps.Deps) {
	r.Group(func(r chi.Router) {
		r.Use(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
		r.Get("/status", handlers.Status(d))
		r.Get("/status/entities/{id}", handlers.Entity(d))
	})
}
