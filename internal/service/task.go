// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces ownership, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// OWNERSHIP:
// Every TaskService method takes the caller's user ID as an explicit
// argument. A task that belongs to someone else is reported exactly like a
// task that does not exist (apperror.NotFound), so callers cannot probe for
// other users' task IDs.
//
// The repository already filters by owner in SQL. The service checks
// OwnerID again on whatever comes back and treats a mismatch as a miss.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/events"
	"github.com/sakif/tasklist/internal/model"
	"github.com/sakif/tasklist/internal/repository"
)

// Title length bounds, counted in characters after trimming.
const (
	MinTitleLength = 3
	MaxTitleLength = 100
)

// errNoCaller marks a call that reached the service without an authenticated
// caller. That is a wiring bug, not a client error, so it maps to 500.
var errNoCaller = errors.New("service: caller id must be positive")

// TaskService enforces per-user task ownership.
type TaskService struct {
	repo      repository.TaskRepository
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewTaskService creates a TaskService. A nil publisher disables events.
func NewTaskService(repo repository.TaskRepository, publisher events.Publisher, logger *slog.Logger) *TaskService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &TaskService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns the caller's tasks. It never returns nil on success.
func (s *TaskService) List(ctx context.Context, callerID int64) ([]model.TaskView, error) {
	if callerID <= 0 {
		return nil, errNoCaller
	}

	tasks, err := s.repo.ListByOwner(ctx, callerID)
	if err != nil {
		s.logger.Error("failed to list tasks",
			slog.Int64("callerID", callerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	owned := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.OwnerID != callerID {
			s.logger.Warn("repository returned a foreign task",
				slog.Int64("taskID", t.ID),
				slog.Int64("callerID", callerID),
			)
			continue
		}
		owned = append(owned, t)
	}
	return model.NewTaskViews(owned), nil
}

// Get returns one of the caller's tasks, or NotFound.
func (s *TaskService) Get(ctx context.Context, taskID, callerID int64) (*model.TaskView, error) {
	task, err := s.resolve(ctx, taskID, callerID)
	if err != nil {
		return nil, err
	}
	view := model.NewTaskView(*task)
	return &view, nil
}

// Create validates title and stores a new, not yet completed task owned by
// the caller.
func (s *TaskService) Create(ctx context.Context, title string, callerID int64) (*model.TaskView, error) {
	if callerID <= 0 {
		return nil, errNoCaller
	}
	title, err := validateTitle(title)
	if err != nil {
		return nil, err
	}

	task := &model.Task{
		Title:     title,
		Completed: false,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
		OwnerID:   callerID,
	}

	err = s.inUnit(ctx, func(unit repository.TaskUnit) error {
		return unit.Insert(ctx, task)
	})
	if err != nil {
		s.logger.Error("failed to create task",
			slog.Int64("callerID", callerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating task: %w", err)
	}

	s.logger.Info("task created",
		slog.Int64("taskID", task.ID),
		slog.Int64("callerID", callerID),
	)
	s.publish(ctx, events.TaskCreated, *task)

	view := model.NewTaskView(*task)
	return &view, nil
}

// Update overwrites Title and Completed of one of the caller's tasks.
//
// The title is validated before anything is read. A missing or foreign task
// returns NotFound without opening a unit of work.
func (s *TaskService) Update(ctx context.Context, taskID int64, title string, completed bool, callerID int64) error {
	if callerID <= 0 {
		return errNoCaller
	}
	title, err := validateTitle(title)
	if err != nil {
		return err
	}

	task, err := s.resolve(ctx, taskID, callerID)
	if err != nil {
		return err
	}
	task.Title = title
	task.Completed = completed

	err = s.inUnit(ctx, func(unit repository.TaskUnit) error {
		return unit.Update(ctx, task)
	})
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to update task",
			slog.Int64("taskID", taskID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("updating task: %w", err)
	}

	s.logger.Info("task updated",
		slog.Int64("taskID", taskID),
		slog.Int64("callerID", callerID),
	)
	s.publish(ctx, events.TaskUpdated, *task)
	return nil
}

// Delete removes one of the caller's tasks. Deleting the same task twice
// returns NotFound the second time.
func (s *TaskService) Delete(ctx context.Context, taskID, callerID int64) error {
	task, err := s.resolve(ctx, taskID, callerID)
	if err != nil {
		return err
	}

	err = s.inUnit(ctx, func(unit repository.TaskUnit) error {
		return unit.Delete(ctx, task)
	})
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to delete task",
			slog.Int64("taskID", taskID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("deleting task: %w", err)
	}

	s.logger.Info("task deleted",
		slog.Int64("taskID", taskID),
		slog.Int64("callerID", callerID),
	)
	s.publish(ctx, events.TaskDeleted, *task)
	return nil
}

// resolve loads taskID and confirms the caller owns it.
func (s *TaskService) resolve(ctx context.Context, taskID, callerID int64) (*model.Task, error) {
	if callerID <= 0 {
		return nil, errNoCaller
	}

	task, err := s.repo.FindByIDAndOwner(ctx, taskID, callerID)
	if err != nil {
		s.logger.Error("failed to load task",
			slog.Int64("taskID", taskID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("loading task: %w", err)
	}
	if task == nil || task.OwnerID != callerID {
		if task != nil {
			s.logger.Warn("repository returned a foreign task",
				slog.Int64("taskID", taskID),
				slog.Int64("callerID", callerID),
			)
		}
		return nil, apperror.NotFound("task", strconv.FormatInt(taskID, 10))
	}
	return task, nil
}

// inUnit runs stage inside a fresh unit of work and commits it.
//
// The unit itself lives on a context detached from ctx's cancellation.
// database/sql rolls a transaction back the moment its BeginTx context is
// cancelled, so a client hanging up after the writes are staged would
// otherwise lose them. Staging still uses ctx; Commit and Rollback do not.
// Rollback is always deferred and is a no-op after a successful commit.
func (s *TaskService) inUnit(ctx context.Context, stage func(repository.TaskUnit) error) error {
	unitCtx := context.WithoutCancel(ctx)

	unit, err := s.repo.Begin(unitCtx)
	if err != nil {
		return err
	}
	defer func() {
		if rbErr := unit.Rollback(unitCtx); rbErr != nil {
			s.logger.Error("rollback failed", slog.String("error", rbErr.Error()))
		}
	}()

	if err := stage(unit); err != nil {
		return err
	}
	return unit.Commit(unitCtx)
}

// publish sends a change event. Failure is logged; the change is already committed.
func (s *TaskService) publish(ctx context.Context, eventType string, task model.Task) {
	e := events.NewTaskEvent(eventType, task, s.now().UTC())
	if err := s.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Warn("failed to publish task event",
			slog.String("type", eventType),
			slog.Int64("taskID", task.ID),
			slog.String("error", err.Error()),
		)
	}
}

// validateTitle trims title and checks its length in characters.
func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	n := utf8.RuneCountInString(title)
	if n < MinTitleLength || n > MaxTitleLength {
		return "", apperror.ValidationFailed("title",
			fmt.Sprintf("title must be between %d and %d characters", MinTitleLength, MaxTitleLength))
	}
	return title, nil
}
