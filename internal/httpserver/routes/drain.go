package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/marksync/marksync/internal/httpserver/deps"
	"github.com/marksync/marksync/internal/httpserver/handlers"
	"github.com/marksync/marksync/internal/httpserver/mw"
)

func init() { Register(registerDrain) }

func registerDrain(r chi.Router, d deps.Deps) {
	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger), mw.EnforceHost(d.AllowedHosts, d.Logger)).Post("/api/queue/drain", handlers.Drain(d))
}
