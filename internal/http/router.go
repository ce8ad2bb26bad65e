package http

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mindpal-api/internal/handlers"
	"mindpal-api/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	DB             *sql.DB
	NoteService    service.NoteService
	PatientService service.PatientService
	TaskRunner     service.TaskRunner
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	noteHandler := handlers.NewNoteHandler(deps.NoteService, deps.TaskRunner)
	patientHandler := handlers.NewPatientHandler(deps.PatientService)
	renderHandler := handlers.NewRenderHandler(deps.NoteService)
	exportHandler := handlers.NewExportHandler(deps.NoteService)
	healthHandler := handlers.NewHealthHandler(deps.DB)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)

		// Everything below requires an authenticated identity.
		r.Group(func(r chi.Router) {
			r.Use(Identity)

			r.Route("/patients", func(r chi.Router) {
				r.Post("/", patientHandler.Create)
				r.Get("/", patientHandler.List)
			})

			r.Route("/notes", func(r chi.Router) {
				r.Get("/categories/defaults", noteHandler.DefaultCategories)

				r.Post("/", noteHandler.Create)
				r.Get("/", noteHandler.List)

				r.Route("/{noteID}", func(r chi.Router) {
					r.Get("/", noteHandler.Get)
					r.Put("/", noteHandler.Update)
					r.Delete("/", noteHandler.Delete)

					r.Get("/versions", noteHandler.ListVersions)
					r.Get("/versions/{versionNumber}", noteHandler.GetVersion)
					r.Post("/restore/{versionNumber}", noteHandler.Restore)

					r.Get("/splits", noteHandler.ListSplits)
					r.Post("/generate-splits", noteHandler.GenerateSplits)

					r.Method(http.MethodGet, "/page", renderHandler)
					r.Method(http.MethodGet, "/export.pdf", exportHandler)
				})
			})
		})
	})

	return r
}
