package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"scribeflow/internal/http/handlers"
	"scribeflow/internal/middleware"
)

// Options tunes the router middleware.
type Options struct {
	CORSOrigins     []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		middleware.RequestID,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.CORSOrigins),
	)

	r.Get("/health", app.Health)
	r.Get("/static/*", app.Static)

	limit := opts.RateLimitPerMin
	if limit <= 0 {
		limit = 5
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/send-otp", app.SendOTP)
		r.Post("/auth/verify-otp", app.VerifyOTP)
		r.Get("/status/{jobID}", app.Status)
		r.Get("/public/blogs/{jobID}", app.PublicBlog)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(app.JWTSecret, app.Clock.Now))

			r.Get("/auth/me", app.Me)
			r.Patch("/auth/profile", app.UpdateProfile)
			r.With(middleware.RateLimit(limit, time.Minute, app.Clock)).Post("/generate", app.Generate)
			r.Get("/history", app.History)
			r.Patch("/blogs/{jobID}", app.UpdateBlog)
			r.Post("/publish/devto/{jobID}", app.PublishDevTo)
		})
	})

	return r
}
