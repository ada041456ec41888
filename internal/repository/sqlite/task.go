package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/tasklist/internal/apperror"
	"github.com/sakif/tasklist/internal/model"
	"github.com/sakif/tasklist/internal/repository"
)

var (
	_ repository.TaskRepository = (*DB)(nil)
	_ repository.TaskUnit       = (*taskUnit)(nil)
)

// ListByOwner returns every task owned by ownerID, oldest first.
//
// The owner filter is part of the SQL. There is no query in this package
// that reads tasks without an owner_id condition.
func (db *DB) ListByOwner(ctx context.Context, ownerID int64) ([]model.Task, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, completed, created_at, owner_id
		 FROM tasks
		 WHERE owner_id = ?
		 ORDER BY id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tasks: %w", err)
	}
	// ALWAYS close rows, or the connection stays checked out of the pool.
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Completed, &t.CreatedAt, &t.OwnerID); err != nil {
			return nil, fmt.Errorf("sqlite: scanning task: %w", err)
		}
		tasks = append(tasks, t)
	}

	// rows.Err() reports errors that happened during iteration.
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tasks: %w", err)
	}

	return tasks, nil
}

// FindByIDAndOwner returns the task only if both id and owner match.
// A miss is (nil, nil); deciding what a miss means is the service's job.
func (db *DB) FindByIDAndOwner(ctx context.Context, id, ownerID int64) (*model.Task, error) {
	var t model.Task
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, title, completed, created_at, owner_id
		 FROM tasks
		 WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	).Scan(&t.ID, &t.Title, &t.Completed, &t.CreatedAt, &t.OwnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: getting task %d: %w", id, err)
	}
	return &t, nil
}

// Begin opens a transaction and returns it as a unit of work.
func (db *DB) Begin(ctx context.Context) (repository.TaskUnit, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	return &taskUnit{tx: tx}, nil
}

// taskUnit stages task writes inside a *sql.Tx.
type taskUnit struct {
	tx *sql.Tx
}

func (u *taskUnit) Insert(ctx context.Context, task *model.Task) error {
	res, err := u.tx.ExecContext(ctx,
		`INSERT INTO tasks (title, completed, created_at, owner_id) VALUES (?, ?, ?, ?)`,
		task.Title,
		task.Completed,
		task.CreatedAt,
		task.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading task id: %w", err)
	}
	task.ID = id
	return nil
}

// Update writes Title and Completed only. ID, CreatedAt and OwnerID never change.
func (u *taskUnit) Update(ctx context.Context, task *model.Task) error {
	res, err := u.tx.ExecContext(ctx,
		`UPDATE tasks SET title = ?, completed = ? WHERE id = ? AND owner_id = ?`,
		task.Title,
		task.Completed,
		task.ID,
		task.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating task %d: %w", task.ID, err)
	}
	return expectOneRow(res, task.ID)
}

func (u *taskUnit) Delete(ctx context.Context, task *model.Task) error {
	res, err := u.tx.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND owner_id = ?`,
		task.ID,
		task.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting task %d: %w", task.ID, err)
	}
	return expectOneRow(res, task.ID)
}

func (u *taskUnit) Commit(ctx context.Context) error {
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing: %w", err)
	}
	return nil
}

func (u *taskUnit) Rollback(ctx context.Context) error {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("sqlite: rolling back: %w", err)
	}
	return nil
}

// expectOneRow turns "0 rows affected" into NotFound. That happens when the
// row vanished between the service's read and this write.
func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("task", strconv.FormatInt(id, 10))
	}
	return nil
}
