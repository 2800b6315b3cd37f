package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouteOptions carries the middleware owned by other packages. Nil
// middleware is skipped.
type RouteOptions struct {
	ParentAuth func(http.Handler) http.Handler
	TurnLimit  func(http.Handler) http.Handler

	// TrustProxy takes the client address from X-Forwarded-For and
	// X-Real-IP. Only set it behind a proxy that overwrites those headers.
	TrustProxy bool
}

// Routes builds the public HTTP API.
func (h *Handler) Routes(opts RouteOptions) http.Handler {
	r := chi.NewRouter()
	if opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(RequestID)

	r.Get("/healthz", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Get("/personas", h.Personas)

		r.Post("/sessions", h.StartSession)
		r.With(optional(opts.TurnLimit)...).Post("/sessions/{id}/messages", h.Turn)
		r.Post("/sessions/{id}/end", h.EndSession)

		r.Route("/parent", func(r chi.Router) {
			r.Use(optional(opts.ParentAuth)...)
			r.Get("/flags", h.ListFlags)
			r.Post("/flags/{id}/ack", h.AcknowledgeFlag)
			r.Get("/settings", h.ListSettings)
			r.Put("/settings/{key}", h.UpdateSetting)
			r.Get("/sessions", h.ListSessions)
			r.Get("/stats", h.Stats)
		})
	})
	return r
}

func optional(mw func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	if mw == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{mw}
}
