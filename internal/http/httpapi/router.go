package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"swiftapply/internal/http/handlers"
	"swiftapply/internal/middleware"
)

func NewRouter(app *handlers.App, lookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Config.AllowedOrigins),
		middleware.I18N(app.Config.DefaultLocale, lookup),
		middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute),
		middleware.OptionalAuth(app.Config.JWTSecret),
	)

	r.Get("/v1/healthz", app.Healthz)

	r.Route("/quota", func(r chi.Router) {
		r.Get("/check", app.QuotaCheck)
		r.Post("/use", app.QuotaUse)
	})

	r.Post("/generate/stream", app.GenerateStream)

	return r
}
