package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/model"
	"github.com/sakif/tasklist/internal/repository"
)

var (
	_ repository.TaskRepository = (*TaskRepo)(nil)
	_ repository.TaskUnit       = (*taskUnit)(nil)
)

// TaskRepo implements repository.TaskRepository using PostgreSQL.
type TaskRepo struct{ db *DB }

// NewTaskRepo constructs a task repository.
func NewTaskRepo(db *DB) *TaskRepo { return &TaskRepo{db: db} }

// ListByOwner returns the owner's tasks ordered by id.
func (r *TaskRepo) ListByOwner(ctx context.Context, ownerID int64) ([]model.Task, error) {
	const q = `
SELECT id, title, completed, created_at, owner_id
FROM tasks WHERE owner_id=$1
ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Completed, &t.CreatedAt, &t.OwnerID); err != nil {
			return nil, fmt.Errorf("postgres: scanning task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating tasks: %w", err)
	}
	return tasks, nil
}

// FindByIDAndOwner selects one task by id and owner. A miss is (nil, nil).
func (r *TaskRepo) FindByIDAndOwner(ctx context.Context, id, ownerID int64) (*model.Task, error) {
	const q = `
SELECT id, title, completed, created_at, owner_id
FROM tasks WHERE id=$1 AND owner_id=$2`
	var t model.Task
	err := r.db.Pool.QueryRow(ctx, q, id, ownerID).
		Scan(&t.ID, &t.Title, &t.Completed, &t.CreatedAt, &t.OwnerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: getting task %d: %w", id, err)
	}
	return &t, nil
}

// Begin starts a transaction and returns it as a unit of work.
func (r *TaskRepo) Begin(ctx context.Context) (repository.TaskUnit, error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("postgres: beginning transaction: %w", err)
	}
	return &taskUnit{tx: tx}, nil
}

type taskUnit struct{ tx pgx.Tx }

// Insert stages the row and reads back the generated id.
func (u *taskUnit) Insert(ctx context.Context, t *model.Task) error {
	const q = `
INSERT INTO tasks (title, completed, created_at, owner_id)
VALUES ($1, $2, $3, $4)
RETURNING id`
	if err := u.tx.QueryRow(ctx, q, t.Title, t.Completed, t.CreatedAt, t.OwnerID).Scan(&t.ID); err != nil {
		return fmt.Errorf("postgres: inserting task: %w", err)
	}
	return nil
}

func (u *taskUnit) Update(ctx context.Context, t *model.Task) error {
	const q = `
UPDATE tasks SET title=$3, completed=$4
WHERE id=$1 AND owner_id=$2`
	tag, err := u.tx.Exec(ctx, q, t.ID, t.OwnerID, t.Title, t.Completed)
	if err != nil {
		return fmt.Errorf("postgres: updating task %d: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("task", strconv.FormatInt(t.ID, 10))
	}
	return nil
}

func (u *taskUnit) Delete(ctx context.Context, t *model.Task) error {
	const q = `DELETE FROM tasks WHERE id=$1 AND owner_id=$2`
	tag, err := u.tx.Exec(ctx, q, t.ID, t.OwnerID)
	if err != nil {
		return fmt.Errorf("postgres: deleting task %d: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("task", strconv.FormatInt(t.ID, 10))
	}
	return nil
}

func (u *taskUnit) Commit(ctx context.Context) error {
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: committing: %w", err)
	}
	return nil
}

func (u *taskUnit) Rollback(ctx context.Context) error {
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres: rolling back: %w", err)
	}
	return nil
}
