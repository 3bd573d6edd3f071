package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/herdworks/fieldsync/internal/services"
)

// Routes mounts the full API surface. Everything under /api except auth
// requires a valid session.
func Routes(
	auth *services.AuthService,
	authHandler *AuthHandler,
	animalHandler *AnimalHandler,
	recordsHandler *RecordsHandler,
	syncHandler *SyncHandler,
) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(auth))

			r.Get("/animals", animalHandler.List)
			r.Get("/animals/lookup/{code}", animalHandler.Lookup)
			r.Post("/animals", animalHandler.Create)
			r.Put("/animals/{id}", animalHandler.Update)
			r.Delete("/animals/{id}", animalHandler.Retire)

			r.Get("/attendance", recordsHandler.ListAttendance)
			r.Post("/attendance", recordsHandler.CreateAttendance)
			r.Get("/medical", recordsHandler.ListMedical)
			r.Post("/medical", recordsHandler.CreateMedical)
			r.Get("/breeding", recordsHandler.ListBreeding)
			r.Post("/breeding", recordsHandler.CreateBreeding)

			r.Post("/sync", syncHandler.Reconcile)
		})
	})

	return r
}
