package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aldercy/wyrd/internal/graphservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *graphservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Object mutations and reads.
	r.Post("/objects", h.CreateObject)
	r.Get("/objects/{id}", h.GetObject)
	r.Patch("/objects/{id}", h.UpdateObject)
	r.Delete("/objects/{id}", h.DeleteObject)
	r.Get("/objects/{id}/cascade", h.PreviewCascade)
	r.Post("/objects/{id}/reparent", h.Reparent)

	// Link intents.
	r.Post("/links/{id}/reify", h.Reify)
	r.Post("/links/check", h.CheckLink)

	// Graph views.
	r.Get("/graph", h.Graph)
	r.Get("/graph/resolved", h.ResolvedGraph)

	// Context assembly and generation.
	r.Post("/context/assemble", h.Assemble)
	r.Post("/context/compose", h.Compose)

	// Snapshot document boundary.
	r.Get("/export", h.Export)
	r.Post("/import", h.Import)
	r.Post("/ingest", h.Ingest)

	// SSE endpoint (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
