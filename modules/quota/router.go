package quota

import (
	"github.com/go-chi/chi/v5"
)

// Router mounts the quota module endpoints.
//
// Example:
//
//	h := quota.NewHandler(gateSvc, recStore, quota.WithLogger(log))
//
//	r := chi.NewRouter()
//	r.Mount("/", quota.Router(h))
func Router(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Route("/quota/{subjectID}/{resource}", func(q chi.Router) {
		q.Get("/", h.getQuota)
		q.Post("/check", h.checkQuota)
	})

	r.Post("/usage/{subjectID}/{resource}/record", h.recordUsage)

	r.Route("/recommendations/{subjectID}", func(rec chi.Router) {
		rec.Get("/", h.getRecommendation)
		rec.Put("/status", h.updateRecommendationStatus)
	})

	return r
}
