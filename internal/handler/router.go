package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/leaveportal/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware портала.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)

	// promhttp сам сжимает ответ, поэтому /metrics обслуживается вне gzip.
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(custommiddleware.GzipMiddleware)
		r.Use(custommiddleware.Logger(h.logger))

		r.Get("/healthz", h.Healthz)

		r.Route("/api/leave", func(r chi.Router) {
			r.Post("/form", h.OpenForm)
			r.Get("/requests", h.ListRequests)

			r.Group(func(r chi.Router) {
				r.Use(h.session.Middleware)

				r.Get("/form", h.GetForm)
				r.Patch("/form", h.UpdateForm)
				r.Delete("/form", h.DiscardForm)

				r.Put("/form/attachment", h.UploadAttachment)
				r.Delete("/form/attachment", h.RemoveAttachment)

				r.Post("/form/submit", h.SubmitForm)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
