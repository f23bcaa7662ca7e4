package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/jera/internal/taskservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *taskservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Tasks CRUD.
	r.Get("/tasks", h.ListTasks)
	r.Post("/tasks", h.CreateTask)
	r.Get("/tasks/{id}", h.GetTask)
	r.Patch("/tasks/{id}", h.UpdateTask)
	r.Delete("/tasks/{id}", h.DeleteTask)

	// Structural moves and status cycling.
	r.Post("/tasks/{id}/move", h.MoveTask)
	r.Post("/tasks/{id}/cycle", h.CycleStatus)
	r.Post("/tasks/{id}/duration", h.AdjustDuration)

	// Search.
	r.Get("/search", h.Search)

	// Project-level surfaces.
	r.Get("/warnings", h.Warnings)
	r.Get("/export/{format}", h.Export)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
