package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/jera/internal/apperr"
	"github.com/starford/jera/internal/export"
	"github.com/starford/jera/internal/taskservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *taskservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *taskservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListTasks handles GET /api/tasks.
//
//	@Summary		List tasks with optional status filter
//	@Tags			tasks
//	@Produce		json
//	@Param			status	query		string	false	"Filter by status"	Enums(TODO, IN_PROGRESS, DONE)
//	@Success		200		{object}	TaskListResponse
//	@Security		BearerAuth
//	@Router			/tasks [get]
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	tasks := h.svc.ListTasks(r.Context(), status)
	if tasks == nil {
		tasks = []TaskDetail{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"total": len(tasks),
	})
}

// GetTask handles GET /api/tasks/{id}.
//
//	@Summary		Get a single task by ID
//	@Tags			tasks
//	@Produce		json
//	@Param			id	path		string	true	"Task ID"
//	@Success		200	{object}	TaskDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id} [get]
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, err := h.svc.GetTask(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get task failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// CreateTask handles POST /api/tasks.
//
//	@Summary		Create a task under a parent or after a sibling
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateTaskRequest	true	"Task to create"
//	@Success		201		{object}	TaskDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks [post]
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}
	if (req.ParentID == "") == (req.AfterID == "") {
		writeJSON(w, http.StatusBadRequest, errorBody("exactly one of parent_id or after_id is required"))
		return
	}

	var (
		task *TaskDetail
		err  error
	)
	if req.ParentID != "" {
		task, err = h.svc.AddChild(r.Context(), req.ParentID, req.Title)
	} else {
		task, err = h.svc.AddSibling(r.Context(), req.AfterID, req.Title)
	}
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("anchor task not found"))
		} else {
			slog.Error("create task failed", slog.String("title", req.Title), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// UpdateTask handles PATCH /api/tasks/{id}.
//
//	@Summary		Patch task fields
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Task ID"
//	@Param			body	body		TaskPatch	true	"Fields to update"
//	@Success		200		{object}	TaskDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id} [patch]
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	id := chi.URLParam(r, "id")

	var patch TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	task, err := h.svc.UpdateTask(r.Context(), id, patch)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		default:
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		}
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// DeleteTask handles DELETE /api/tasks/{id}.
//
//	@Summary		Delete a task and its subtree
//	@Tags			tasks
//	@Param			id	path	string	true	"Task ID"
//	@Success		204	"Task deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id} [delete]
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteTask(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("delete task failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveTask handles POST /api/tasks/{id}/move.
//
//	@Summary		Move a task among siblings or across levels
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Task ID"
//	@Param			body	body		MoveTaskRequest	true	"Direction"
//	@Success		200		{object}	TaskDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id}/move [post]
func (h *Handler) MoveTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req MoveTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	var (
		task *TaskDetail
		err  error
	)
	switch req.Direction {
	case "up", "down":
		task, err = h.svc.MoveTask(r.Context(), id, req.Direction)
	case "indent":
		task, err = h.svc.Indent(r.Context(), id)
	case "outdent":
		task, err = h.svc.Outdent(r.Context(), id)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("direction must be up, down, indent, or outdent"))
		return
	}
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		}
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// CycleStatus handles POST /api/tasks/{id}/cycle.
//
//	@Summary		Advance a task's status (TODO → IN_PROGRESS → DONE → TODO)
//	@Tags			tasks
//	@Produce		json
//	@Param			id	path		string	true	"Task ID"
//	@Success		200	{object}	TaskDetail
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id}/cycle [post]
func (h *Handler) CycleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, err := h.svc.CycleStatus(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody(err.Error()))
		default:
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// AdjustDuration handles POST /api/tasks/{id}/duration.
//
//	@Summary		Adjust a task's duration by a delta in its own unit
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Task ID"
//	@Param			body	body		AdjustDurationRequest	true	"Delta"
//	@Success		200		{object}	TaskDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id}/duration [post]
func (h *Handler) AdjustDuration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req AdjustDurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Delta == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("delta must be non-zero"))
		return
	}

	task, err := h.svc.AdjustDuration(r.Context(), id, req.Delta)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		}
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across tasks
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// Warnings handles GET /api/warnings.
//
//	@Summary		List parse and validation warnings for the project
//	@Tags			project
//	@Produce		json
//	@Success		200	{object}	WarningsResponse
//	@Security		BearerAuth
//	@Router			/warnings [get]
func (h *Handler) Warnings(w http.ResponseWriter, r *http.Request) {
	warnings := h.svc.Warnings(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"warnings": warnings,
	})
}

// Export handles GET /api/export/{format}.
//
//	@Summary		Export the project (json, csv, mermaid, markdown)
//	@Tags			project
//	@Param			format	path	string	true	"Export format"	Enums(json, csv, mermaid, markdown)
//	@Success		200		"Exported document"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/export/{format} [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown export format"))
		return
	}
	w.Header().Set("Content-Type", export.ContentType(format))
	if err := h.svc.Export(r.Context(), w, format); err != nil {
		slog.Error("export failed", slog.String("format", string(format)), slog.String("error", err.Error()))
	}
}
