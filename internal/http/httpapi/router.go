package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"retouch/internal/http/handlers"
	"retouch/internal/infra"
	"retouch/internal/middleware"
)

// NewRouter assembles the HTTP surface with the shared middleware chain.
func NewRouter(app *handlers.App, cfg *infra.Config, logger infra.Logger, lookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		middleware.RequestID,
		middleware.Locale(cfg.DefaultLocale, lookup),
		middleware.Logger(logger),
		middleware.CORS(cfg.CORSAllowedOrigins),
		chimw.Recoverer,
	)

	r.Get("/healthz", app.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", app.Generate)
		r.Get("/generations", app.ListGenerations)
		r.Get("/generations/{id}", app.GetGeneration)
	})

	return r
}
