// internal/app/features/sharedgroups/tasks.go
package sharedgroups

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/taskgroups/internal/app/collab"
	"github.com/dalemusser/taskgroups/internal/app/system/timeouts"
)

type addTaskRequest struct {
	Text  string     `json:"text"`
	DueAt *time.Time `json:"due_at"`
}

// HandleAddTask handles POST /groups/{id}/tasks.
func (h *Handler) HandleAddTask(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req addTaskRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	agg, err := h.Svc.AddTask(ctx, a, gid, req.Text, req.DueAt)
	if err != nil {
		h.fail(w, r, "add task", err)
		return
	}
	writeJSON(w, http.StatusCreated, agg)
}

type editTaskRequest struct {
	Text       *string    `json:"text"`
	DueAt      *time.Time `json:"due_at"`
	ClearDueAt bool       `json:"clear_due_at"`
}

// HandleEditTask handles PATCH /groups/{id}/tasks/{taskID}.
func (h *Handler) HandleEditTask(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	tid, ok := pathID(w, r, "taskID")
	if !ok {
		return
	}
	var req editTaskRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	agg, err := h.Svc.EditTask(ctx, a, gid, tid, collab.EditTaskInput{
		Text:       req.Text,
		DueAt:      req.DueAt,
		ClearDueAt: req.ClearDueAt,
	})
	if err != nil {
		h.fail(w, r, "edit task", err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// HandleCompleteTask handles POST /groups/{id}/tasks/{taskID}/complete.
func (h *Handler) HandleCompleteTask(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	tid, ok := pathID(w, r, "taskID")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	agg, err := h.Svc.CompleteTask(ctx, a, gid, tid)
	if err != nil {
		h.fail(w, r, "complete task", err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// HandleDeleteTask handles DELETE /groups/{id}/tasks/{taskID}.
func (h *Handler) HandleDeleteTask(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	tid, ok := pathID(w, r, "taskID")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	agg, err := h.Svc.DeleteTask(ctx, a, gid, tid)
	if err != nil {
		h.fail(w, r, "delete task", err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

type reorderRequest struct {
	TaskIDs []string `json:"task_ids"`
}

// HandleReorder handles PUT /groups/{id}/tasks/order.
func (h *Handler) HandleReorder(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	gid, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req reorderRequest
	if !decode(w, r, &req) {
		return
	}
	ids, err := parseIDs(req.TaskIDs)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	agg, err := h.Svc.ReorderTasks(ctx, a, gid, ids)
	if err != nil {
		h.fail(w, r, "reorder tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}
