package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/bitcoin-coordinator/coordinator/internal/api/handlers"
	"github.com/bitcoin-coordinator/coordinator/internal/api/middleware"
	"github.com/bitcoin-coordinator/coordinator/internal/config"
	"github.com/bitcoin-coordinator/coordinator/internal/coordinator"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewRouter creates and configures the Chi router exposing the
// coordinator's public operations over HTTP, so it can run as a
// sidecar process driven by an external scheduler's own clock.
func NewRouter(coord *coordinator.Coordinator, cfg *config.Config) chi.Router {
	r := chi.NewRouter()

	// Middleware stack (order matters)
	r.Use(middleware.RequestLogging)
	r.Use(middleware.HostCheck)
	r.Use(middleware.CORS)

	slog.Info("router initialized", "middleware", []string{"requestLogging", "hostCheck", "cors"})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.HealthHandler(cfg, coord, Version))
		r.Post("/tick", handlers.Tick(coord))

		r.Post("/dispatch", handlers.Dispatch(coord))
		r.Post("/monitor", handlers.Monitor(coord))
		r.Post("/funding", handlers.AddFunding(coord))

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/{txid}", handlers.GetTransaction(coord))
			r.Delete("/{txid}", handlers.Cancel(coord))
		})

		r.Route("/news", func(r chi.Router) {
			r.Get("/", handlers.GetNews(coord))
			r.Post("/ack", handlers.AckNews(coord))
		})

		r.Route("/speedups", func(r chi.Router) {
			r.Post("/fund", handlers.FundForSpeedup(coord))
		})
	})

	return r
}
