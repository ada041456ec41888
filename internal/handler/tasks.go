package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/auth"
	"github.com/sakif/tasklist/internal/model"
)

// TaskService is the part of service.TaskService the task routes use.
type TaskService interface {
	List(ctx context.Context, callerID int64) ([]model.TaskView, error)
	Get(ctx context.Context, taskID, callerID int64) (*model.TaskView, error)
	Create(ctx context.Context, title string, callerID int64) (*model.TaskView, error)
	Update(ctx context.Context, taskID int64, title string, completed bool, callerID int64) error
	Delete(ctx context.Context, taskID, callerID int64) error
}

// TaskHandler serves /api/tasks. Every route sits behind auth.RequireAuth,
// and the caller's user ID is passed to the service on every call.
type TaskHandler struct {
	tasks  TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(tasks TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

type createTaskRequest struct {
	Title string `json:"title" validate:"required,min=3,max=100"`
}

type updateTaskRequest struct {
	Title     string `json:"title" validate:"required,min=3,max=100"`
	Completed bool   `json:"completed"`
}

// errNoSubject means a task route was mounted without RequireAuth.
var errNoSubject = errors.New("handler: no authenticated subject in request context")

// HandleList returns the caller's tasks.
//
// HTTP: GET /api/tasks
// RESPONSE: 200 [{"id":1,"title":"Buy milk","completed":false,"createdAt":"..."}]
func (h *TaskHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	views, err := h.tasks.List(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleGet returns one task.
//
// HTTP: GET /api/tasks/{id}
// RESPONSE: 200 task, or 404 when the id is unknown, not a number, or
// belongs to another user.
func (h *TaskHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	view, err := h.tasks.Get(r.Context(), id, caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleCreate adds a task.
//
// HTTP: POST /api/tasks
// REQUEST BODY: {"title": "Buy milk"}
// RESPONSE: 201 with the new task and a Location header.
func (h *TaskHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req createTaskRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	view, err := h.tasks.Create(r.Context(), req.Title, caller)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/tasks/%d", view.ID))
	writeJSON(w, http.StatusCreated, view)
}

// HandleUpdate replaces a task's title and completion flag.
//
// HTTP: PUT /api/tasks/{id}
// REQUEST BODY: {"title": "Buy oat milk", "completed": true}
// RESPONSE: 204, 400 for a bad title, 404 for a missing or foreign task.
func (h *TaskHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.tasks.Update(r.Context(), id, req.Title, req.Completed, caller); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete removes a task.
//
// HTTP: DELETE /api/tasks/{id}
// RESPONSE: 204, or 404 for a missing or foreign task.
func (h *TaskHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), id, caller); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) caller(w http.ResponseWriter, r *http.Request) (int64, bool) {
	sub, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		h.logger.Error("task route reached without authentication", slog.String("path", r.URL.Path))
		writeError(w, errNoSubject)
		return 0, false
	}
	return sub.UserID, true
}

// taskID parses {id}. Anything that is not a positive integer cannot name a
// task, so it is answered like an unknown id.
func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, apperror.NotFound("task", raw))
		return 0, false
	}
	return id, true
}
