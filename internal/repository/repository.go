// Package repository declares the storage ports the service layer depends on.
// Implementations live in the sqlite and postgres subpackages.
package repository

import (
	"context"

	"github.com/sakif/tasklist/internal/model"
)

// UserRepository stores accounts.
//
// Create returns apperror.Conflict when the email is already taken.
// GetByEmail returns apperror.NotFound when no row matches.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// TaskRepository is the read side of task storage plus the entry point to a
// unit of work.
//
// Reads run outside any unit. The service reads, then opens a unit to write,
// so two concurrent updates of one task resolve as last-write-wins.
type TaskRepository interface {
	// ListByOwner returns the owner's tasks in insertion order.
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Task, error)
	// FindByIDAndOwner returns (nil, nil) when no task matches both keys.
	FindByIDAndOwner(ctx context.Context, id, ownerID int64) (*model.Task, error)
	// Begin opens a unit of work.
	Begin(ctx context.Context) (TaskUnit, error)
}

// TaskUnit stages writes and flushes them together on Commit.
//
// Callers defer Rollback right after Begin; Rollback after a successful
// Commit is a no-op.
type TaskUnit interface {
	// Insert stages a new task and sets its ID.
	Insert(ctx context.Context, task *model.Task) error
	// Update stages new Title and Completed values for the task's row.
	Update(ctx context.Context, task *model.Task) error
	// Delete stages removal of the task's row.
	Delete(ctx context.Context, task *model.Task) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
