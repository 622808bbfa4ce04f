package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"photoenhance/internal/http/handlers"
	"photoenhance/internal/middleware"
)

// Options configures routing concerns that sit outside the handlers.
type Options struct {
	JWTSecret        string
	InternalAPIToken string
	RateLimitPerMin  int
	Logger           zerolog.Logger
	// Files, when set, serves locally stored images under /static/.
	Files stdhttp.Handler
}

func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer, middleware.Logger(opts.Logger))

	// Health
	r.Get("/v1/healthz", app.Health)

	if opts.Files != nil {
		r.Handle("/static/*", stdhttp.StripPrefix("/static/", opts.Files))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret, opts.InternalAPIToken))

		r.Get("/v1/me", app.Me)
		r.Get("/v1/photos/{photo_id}", app.PhotoStatus)

		r.With(middleware.RateLimit(rateLimit(opts.RateLimitPerMin), time.Minute)).
			Post("/v1/enhance", app.Enhance)
	})

	return r
}

func rateLimit(perMin int) int {
	if perMin <= 0 {
		return 30
	}
	return perMin
}
