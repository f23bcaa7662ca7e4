package api

import (
	"github.com/starford/jera/internal/models"
	"github.com/starford/jera/internal/taskservice"
)

// CreateTaskRequest is the request body for creating a task. Exactly one
// of ParentID or AfterID selects placement: under a parent, or as the next
// sibling of an anchor.
type CreateTaskRequest struct {
	Title    string `json:"title" example:"Design review" validate:"required"`
	ParentID string `json:"parent_id,omitempty" example:"4f9c..."`
	AfterID  string `json:"after_id,omitempty" example:"8a21..."`
}

// MoveTaskRequest is the request body for moving a task.
// Direction is one of "up", "down", "indent", "outdent".
type MoveTaskRequest struct {
	Direction string `json:"direction" example:"up" validate:"required"`
}

// AdjustDurationRequest is the request body for bumping a task's duration.
// Delta is in the task's own unit: "3d" + 1 = "4d", "2w" - 1 = "1w".
type AdjustDurationRequest struct {
	Delta int `json:"delta" example:"1" validate:"required"`
}

// TaskDetail is the full task response type (aliased from the domain layer).
type TaskDetail = taskservice.TaskDetail

// TaskPatch is the PATCH body (aliased from the domain layer).
type TaskPatch = taskservice.TaskPatch

// TaskListResponse wraps task listings.
type TaskListResponse struct {
	Tasks []TaskDetail `json:"tasks" validate:"required"`
	Total int          `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	ID      string `json:"id" example:"4f9c..." validate:"required"`
	Path    string `json:"path" example:"plan.wbs.md" validate:"required"`
	Title   string `json:"title" example:"Design review" validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// WarningsResponse wraps project warnings.
type WarningsResponse struct {
	Warnings []models.Warning `json:"warnings" validate:"required"`
}
