package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aiinpocket/HomePage/internal/http/handlers"
	"github.com/aiinpocket/HomePage/internal/middleware"
)

// RouterOptions tunes the shared middleware stack.
type RouterOptions struct {
	CORSOrigins     []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.CORSOrigins),
		middleware.Owner,
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/metrics", app.Metrics)
	r.Get("/v1/preview/{result_id}", app.Preview)

	r.Route("/v1/jobs", func(r chi.Router) {
		if opts.RateLimitPerMin > 0 {
			r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/", app.JobsSubmit)
		} else {
			r.Post("/", app.JobsSubmit)
		}
		r.Get("/", app.JobsList)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.JobStatus)
			r.Delete("/", app.JobArchive)
			r.Post("/dispatch", app.JobDispatch)
			r.Post("/download", app.JobDownload)
			r.Post("/credential", app.JobCredential)
			r.Post("/regenerate", app.JobRegenerate)
		})
	})

	return r
}
