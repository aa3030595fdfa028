package entity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const taskColumns = `id, title, description, priority, assigned_to, due_date, completed, completed_at,
	created_by, couple_id, is_personal, created_at, updated_at`

func scanTask(scan func(dest ...any) error) (*Task, error) {
	t := &Task{}
	err := scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.AssignedTo, &t.DueDate,
		&t.Completed, &t.CompletedAt, &t.CreatedBy, &t.CoupleID, &t.IsPersonal,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// InsertTask persists a new task and returns the stored row.
func (s *Store) InsertTask(ctx context.Context, t *Task) (*Task, error) {
	stored, err := scanTask(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO tasks (title, description, priority, assigned_to, due_date,
			                    created_by, couple_id, is_personal)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING `+taskColumns,
			t.Title, t.Description, t.Priority, t.AssignedTo, t.DueDate,
			t.CreatedBy, t.CoupleID, t.IsPersonal,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("inserting task: %w", err)
	}
	return stored, nil
}

// GetTask retrieves a task by primary key.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting task: %w", err)
	}
	return t, nil
}

// UpdateTask performs a partial update on the task with the given id.
func (s *Store) UpdateTask(ctx context.Context, id string, in UpdateTaskInput) (*Task, error) {
	var sc setClause
	if in.Title != nil {
		sc.add("title", *in.Title)
	}
	if in.Description != nil {
		sc.add("description", *in.Description)
	}
	if in.Priority != nil {
		sc.add("priority", *in.Priority)
	}
	if in.AssignedTo != nil {
		sc.add("assigned_to", *in.AssignedTo)
	}
	if in.DueDate != nil {
		sc.add("due_date", *in.DueDate)
	}
	if sc.empty() {
		return s.GetTask(ctx, id)
	}

	query, args := sc.query("tasks", taskColumns, id)
	t, err := scanTask(func(dest ...any) error {
		return s.pool.QueryRow(ctx, query, args...).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}
	return t, nil
}

// SetTaskCompleted flips the completion state and stamps completed_at.
func (s *Store) SetTaskCompleted(ctx context.Context, id string, completed bool) (*Task, error) {
	t, err := scanTask(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`UPDATE tasks
			 SET completed = $1,
			     completed_at = CASE WHEN $1 THEN now() ELSE NULL END,
			     updated_at = now()
			 WHERE id = $2
			 RETURNING `+taskColumns,
			completed, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("setting task completion: %w", err)
	}
	return t, nil
}

// DeleteTask removes a task by id.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	return nil
}

// ListTasks returns couple-scoped tasks for coupleID (when set) plus the
// user's personal tasks. Callers de-duplicate the union.
func (s *Store) ListTasks(ctx context.Context, coupleID *string, userID string) ([]*Task, error) {
	var out []*Task

	if coupleID != nil {
		rows, err := s.pool.Query(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE couple_id = $1 ORDER BY created_at DESC`, *coupleID)
		if err != nil {
			return nil, fmt.Errorf("listing couple tasks: %w", err)
		}
		shared, err := collectRows(rows, func(r pgx.Rows) (*Task, error) { return scanTask(r.Scan) })
		if err != nil {
			return nil, fmt.Errorf("scanning couple tasks: %w", err)
		}
		out = append(out, shared...)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE created_by = $1 AND is_personal ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing personal tasks: %w", err)
	}
	personal, err := collectRows(rows, func(r pgx.Rows) (*Task, error) { return scanTask(r.Scan) })
	if err != nil {
		return nil, fmt.Errorf("scanning personal tasks: %w", err)
	}
	return append(out, personal...), nil
}
