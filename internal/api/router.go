package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/video-translate/backend/internal/api/handlers"
	"github.com/video-translate/backend/internal/api/middleware"
	"github.com/video-translate/backend/internal/auth"
	"github.com/video-translate/backend/internal/config"
	"github.com/video-translate/backend/internal/run"
	"github.com/video-translate/backend/internal/storage"
	"github.com/video-translate/backend/internal/translate"
)

func NewRouter(cfg *config.Config, store *run.Store, queue *run.Queue, uploads *storage.UploadStore, engines *translate.Registry, jwtService *auth.JWTService) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(middleware.CORSHandler(cfg.CORSOrigins)))
	r.Use(middleware.NewRateLimiter(10, 20).Handler)

	// Handlers
	runHandler := handlers.NewRunHandler(queue, store, uploads, engines, jwtService)
	downloadHandler := handlers.NewDownloadHandler(store)
	eventsHandler := handlers.NewEventsHandler(store)
	languagesHandler := handlers.NewLanguagesHandler(engines)

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Get("/health", handlers.Health)
		r.Get("/languages", languagesHandler.List)

		// Upload carries the whole video; everything else is small JSON.
		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(cfg.MaxUploadBytes))
			r.Post("/runs", runHandler.Create)
		})

		// Run-scoped routes require the token issued at run creation.
		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(1 << 20))
			r.Use(middleware.RunAuth(jwtService))

			r.Get("/runs/{id}", runHandler.Get)
			r.Delete("/runs/{id}", runHandler.Cancel)
			r.Get("/runs/{id}/events", eventsHandler.Stream)
			r.Get("/runs/{id}/transcript", downloadHandler.Transcript)
			r.Get("/runs/{id}/translations/{lang}", downloadHandler.Translation)
		})
	})

	return r
}
