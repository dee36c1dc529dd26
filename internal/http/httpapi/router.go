package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"adflow/internal/http/handlers"
	"adflow/internal/infra"
	"adflow/internal/middleware"
)

// Options tune the router.
type Options struct {
	// RateLimitPerMin bounds the routes that start paid upstream work.
	RateLimitPerMin int
	// FilesDir is served under /files when set.
	FilesDir string
}

func NewRouter(app *handlers.App, logger infra.Logger, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(logger),
		chimw.Recoverer,
	)

	if opts.FilesDir != "" {
		r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(opts.FilesDir))))
	}

	work := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)

		r.Route("/image-jobs", func(r chi.Router) {
			r.Post("/", app.CreateImageJob)
			r.Get("/{id}", app.GetImageJob)
			r.Get("/{id}/archive", app.ExportImageJob)
			r.Delete("/{id}", app.DeleteImageJob)
			r.Post("/{id}/expand", app.StartExpansion)
			r.Post("/{id}/translate", app.StartTranslations)
			r.Post("/{id}/retry", app.RetryImageTranslations)
		})
		r.With(work).Post("/source-images/{id}/expand", app.ExpandSourceImage)
		r.Route("/image-translations/{id}", func(r chi.Router) {
			r.With(work).Post("/process", app.ProcessImageTranslation)
			r.Get("/versions", app.ListVersions)
			r.Post("/versions/{vid}/activate", app.ActivateVersion)
		})

		r.Route("/translations", func(r chi.Router) {
			r.Post("/", app.CreateTranslation)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", app.GetTranslation)
				r.Post("/retry", app.RetryTranslation)
				r.Post("/swap-image", app.SwapImage)
				r.Group(func(r chi.Router) {
					r.Use(work)
					r.Post("/translate", app.TranslatePage)
					r.Post("/analyze", app.AnalyzeTranslation)
					r.Post("/fix", app.FixTranslation)
					r.Post("/publish", app.PublishTranslation)
				})
			})
		})

		r.Route("/ab-tests", func(r chi.Router) {
			r.Post("/", app.CreateABTest)
			r.Post("/{id}/start", app.StartABTest)
			r.Post("/{id}/complete", app.CompleteABTest)
			r.Delete("/{id}", app.DeleteABTest)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", app.CreateCampaign)
			r.Get("/{id}", app.GetCampaign)
			r.With(work).Post("/{id}/push", app.PushCampaign)
		})

		r.With(work).Post("/sweep", app.Sweep)
	})

	return r
}
