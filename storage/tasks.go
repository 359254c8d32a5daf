package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"taskquest/model"
)

func scanTask(s rowScanner) (model.Task, error) {
	var r TaskRow
	if err := s.Scan(r.scanArgs()...); err != nil {
		return model.Task{}, err
	}
	return TaskFromRow(r)
}

func queryTasks(ctx context.Context, q Querier, query string, args ...any) ([]model.Task, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func InsertTask(ctx context.Context, q Querier, t model.Task) error {
	r := TaskToRow(t)
	_, err := q.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.args()...)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// UpsertTask inserts or fully replaces a task. Used when pulling from the
// remote store.
func UpsertTask(ctx context.Context, q Querier, t model.Task) error {
	r := TaskToRow(t)
	_, err := q.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			priority = excluded.priority,
			status = excluded.status,
			points = excluded.points,
			category = excluded.category,
			tags = excluded.tags,
			due_date = excluded.due_date,
			completed_at = excluded.completed_at,
			recurrence = excluded.recurrence,
			updated_at = excluded.updated_at,
			synced_at = excluded.synced_at`,
		r.args()...)
	if err != nil {
		return fmt.Errorf("upsert task: %w", err)
	}
	return nil
}

// UpdateTask rewrites the editable fields. Status and completion are owned by
// the status functions below.
func UpdateTask(ctx context.Context, q Querier, t model.Task) error {
	r := TaskToRow(t)
	res, err := q.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, priority = ?, points = ?, category = ?,
			tags = ?, due_date = ?, recurrence = ?, updated_at = ?
		WHERE id = ?`,
		r.Title, r.Description, r.Priority, r.Points, r.Category,
		r.Tags, r.DueDate, r.Recurrence, r.UpdatedAt, r.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireAffected(res)
}

func GetTask(ctx context.Context, q Querier, id string) (model.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		return model.Task{}, notFound(err)
	}
	return t, nil
}

func ListTasks(ctx context.Context, q Querier, userID string) ([]model.Task, error) {
	return queryTasks(ctx, q,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
}

func ListTasksByStatus(ctx context.Context, q Querier, userID string, statuses ...model.TaskStatus) ([]model.Task, error) {
	if len(statuses) == 0 {
		return ListTasks(ctx, q, userID)
	}
	args := []any{userID}
	marks := make([]string, 0, len(statuses))
	for _, s := range statuses {
		args = append(args, string(s))
		marks = append(marks, "?")
	}
	return queryTasks(ctx, q,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? AND status IN (`+strings.Join(marks, ", ")+`)
		ORDER BY created_at DESC, id`, args...)
}

// ListUnsyncedTasks returns tasks never pushed or modified since the last push.
func ListUnsyncedTasks(ctx context.Context, q Querier, userID string) ([]model.Task, error) {
	return queryTasks(ctx, q,
		`SELECT `+taskColumns+` FROM tasks
		WHERE user_id = ? AND (synced_at IS NULL OR synced_at < updated_at)
		ORDER BY created_at`, userID)
}

func MarkTasksSynced(ctx context.Context, q Querier, ids []string, now time.Time) error {
	for _, id := range ids {
		if _, err := q.ExecContext(ctx, `UPDATE tasks SET synced_at = ? WHERE id = ?`, now.UTC(), id); err != nil {
			return fmt.Errorf("mark task synced: %w", err)
		}
	}
	return nil
}

func DeleteTask(ctx context.Context, q Querier, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireAffected(res)
}

// CompleteTaskRow flips an open task to COMPLETED. It reports false when the
// task exists but is already terminal.
func CompleteTaskRow(ctx context.Context, q Querier, id string, now time.Time) (bool, error) {
	now = now.UTC()
	res, err := q.ExecContext(ctx,
		`UPDATE tasks SET status = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?, ?)`,
		string(model.StatusCompleted), now, now, id,
		string(model.StatusPending), string(model.StatusInProgress), string(model.StatusOverdue))
	if err != nil {
		return false, fmt.Errorf("complete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetTaskStatus moves a task from one status to another. It reports false when
// the task is no longer in the expected status.
func SetTaskStatus(ctx context.Context, q Querier, id string, from, to model.TaskStatus, now time.Time) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), now.UTC(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("set task status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkOverdue flags open tasks whose due date has passed. An empty userID
// sweeps every user.
func MarkOverdue(ctx context.Context, q Querier, userID string, now time.Time) (int64, error) {
	now = now.UTC()
	query := `UPDATE tasks SET status = ?, updated_at = ?
		WHERE status IN (?, ?) AND due_date IS NOT NULL AND due_date < ?`
	args := []any{string(model.StatusOverdue), now, string(model.StatusPending), string(model.StatusInProgress), now}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	return res.RowsAffected()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
