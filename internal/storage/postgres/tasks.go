package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/storage"
)

// Подзадачи и напоминания хранятся в JSONB.
type subtaskJSON struct {
	Title  string `json:"title"`
	IsDone bool   `json:"isDone"`
}

type reminderJSON struct {
	Method string    `json:"method"`
	Time   time.Time `json:"time"`
}

const taskColumns = `id::text, title, description, project_id::text, assignee_id::text, creator_id::text,
    due_date, priority, labels, subtasks, reminders, is_completed, created_at, updated_at`

func encodeTaskJSON(t *models.Task) (subtasks, reminders []byte, err error) {
	st := make([]subtaskJSON, 0, len(t.Subtasks))
	for _, s := range t.Subtasks {
		st = append(st, subtaskJSON{Title: s.Title, IsDone: s.IsDone})
	}

	rm := make([]reminderJSON, 0, len(t.Reminders))
	for _, r := range t.Reminders {
		rm = append(rm, reminderJSON{Method: string(r.Method), Time: r.Time.UTC()})
	}

	if subtasks, err = json.Marshal(st); err != nil {
		return nil, nil, err
	}

	if reminders, err = json.Marshal(rm); err != nil {
		return nil, nil, err
	}

	return subtasks, reminders, nil
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var (
		t         models.Task
		priority  string
		due       *time.Time
		subtasks  []byte
		reminders []byte
	)

	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.ProjectID, &t.AssigneeID, &t.CreatorID,
		&due, &priority, &t.Labels, &subtasks, &reminders, &t.IsCompleted, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.Priority = models.Priority(priority)
	if due != nil {
		d := due.UTC()
		t.DueDate = &d
	}

	var st []subtaskJSON
	if err := json.Unmarshal(subtasks, &st); err != nil {
		return nil, fmt.Errorf("decode subtasks: %w", err)
	}
	for _, s := range st {
		t.Subtasks = append(t.Subtasks, models.Subtask{Title: s.Title, IsDone: s.IsDone})
	}

	var rm []reminderJSON
	if err := json.Unmarshal(reminders, &rm); err != nil {
		return nil, fmt.Errorf("decode reminders: %w", err)
	}
	for _, r := range rm {
		t.Reminders = append(t.Reminders, models.Reminder{Method: models.ReminderMethod(r.Method), Time: r.Time.UTC()})
	}

	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()

	return &t, nil
}

func dueOrNil(t *models.Task) *time.Time {
	if t.DueDate == nil {
		return nil
	}

	d := t.DueDate.UTC()
	return &d
}

func labelsOrEmpty(l []string) []string {
	if l == nil {
		return []string{}
	}

	return l
}

// SaveTask создаёт задачу. Отсутствующий проект — storage.ErrNotFound.
func (s *Storage) SaveTask(ctx context.Context, t *models.Task) (*models.Task, error) {
	const op = "storage.postgres.SaveTask"

	projectID, ok1 := parseID(t.ProjectID)
	assigneeID, ok2 := parseID(t.AssigneeID)
	creatorID, ok3 := parseID(t.CreatorID)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	subtasks, reminders, err := encodeTaskJSON(t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	row := s.db.QueryRow(ctx, `
        INSERT INTO tasks (id, title, description, project_id, assignee_id, creator_id, due_date,
                           priority, labels, subtasks, reminders, is_completed, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        RETURNING `+taskColumns,
		uuid.New(), t.Title, t.Description, projectID, assigneeID, creatorID, dueOrNil(t),
		string(t.Priority), labelsOrEmpty(t.Labels), subtasks, reminders, t.IsCompleted,
		t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)

	out, err := scanTask(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// TaskByID возвращает задачу по идентификатору.
func (s *Storage) TaskByID(ctx context.Context, id string) (*models.Task, error) {
	const op = "storage.postgres.TaskByID"

	tid, ok := parseID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	t, err := scanTask(s.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, tid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return t, nil
}

// ListTasks возвращает задачи исполнителя с необязательными фильтрами.
func (s *Storage) ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error) {
	const op = "storage.postgres.ListTasks"

	assignee, ok := parseID(f.AssigneeID)
	if !ok {
		return []models.Task{}, nil
	}

	where := []string{"assignee_id = $1"}
	args := []any{assignee}

	if strings.TrimSpace(f.ProjectID) != "" {
		pid, ok := parseID(f.ProjectID)
		if !ok {
			return []models.Task{}, nil
		}
		args = append(args, pid)
		where = append(where, fmt.Sprintf("project_id = $%d", len(args)))
	}

	if label := strings.TrimSpace(f.Label); label != "" {
		args = append(args, label)
		where = append(where, fmt.Sprintf("$%d = ANY(labels)", len(args)))
	}

	rows, err := s.db.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE `+strings.Join(where, " AND ")+
		` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// UpdateTask перезаписывает изменяемые поля задачи.
func (s *Storage) UpdateTask(ctx context.Context, t *models.Task) (*models.Task, error) {
	const op = "storage.postgres.UpdateTask"

	tid, ok1 := parseID(t.ID)
	projectID, ok2 := parseID(t.ProjectID)
	assigneeID, ok3 := parseID(t.AssigneeID)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	subtasks, reminders, err := encodeTaskJSON(t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	row := s.db.QueryRow(ctx, `
        UPDATE tasks
        SET title = $2, description = $3, project_id = $4, assignee_id = $5, due_date = $6,
            priority = $7, labels = $8, subtasks = $9, reminders = $10, is_completed = $11, updated_at = $12
        WHERE id = $1
        RETURNING `+taskColumns,
		tid, t.Title, t.Description, projectID, assigneeID, dueOrNil(t),
		string(t.Priority), labelsOrEmpty(t.Labels), subtasks, reminders, t.IsCompleted, t.UpdatedAt.UTC(),
	)

	out, err := scanTask(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// DeleteTask удаляет задачу.
func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteTask"

	tid, ok := parseID(id)
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, tid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// DeleteTasksByProject удаляет задачи проекта и возвращает их число.
func (s *Storage) DeleteTasksByProject(ctx context.Context, projectID string) (int64, error) {
	const op = "storage.postgres.DeleteTasksByProject"

	pid, ok := parseID(projectID)
	if !ok {
		return 0, nil
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM tasks WHERE project_id = $1`, pid)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}
