package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-task-manager/internal/models"
)

// SaveActivity добавляет запись в журнал.
func (s *Storage) SaveActivity(ctx context.Context, a *models.Activity) error {
	const op = "storage.postgres.SaveActivity"

	projectID, ok := parseID(a.ProjectID)
	if !ok {
		return fmt.Errorf("%s: invalid project id", op)
	}

	userID, ok := parseID(a.UserID)
	if !ok {
		return fmt.Errorf("%s: invalid user id", op)
	}

	var taskID *uuid.UUID
	if tid, ok := parseID(a.TaskID); ok {
		taskID = &tid
	}

	meta := a.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.db.Exec(ctx, `
        INSERT INTO activity_logs (id, task_id, project_id, user_id, action, metadata, ts)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, uuid.New(), taskID, projectID, userID, string(a.Action), metaJSON, a.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ActivityByProject возвращает последние limit записей проекта, новые первыми.
func (s *Storage) ActivityByProject(ctx context.Context, projectID string, limit int) ([]models.Activity, error) {
	const op = "storage.postgres.ActivityByProject"

	pid, ok := parseID(projectID)
	if !ok {
		return []models.Activity{}, nil
	}

	rows, err := s.db.Query(ctx, `
        SELECT id::text, COALESCE(task_id::text, ''), project_id::text, user_id::text, action, metadata, ts
        FROM activity_logs
        WHERE project_id = $1
        ORDER BY ts DESC, id DESC
        LIMIT $2
    `, pid, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []models.Activity{}
	for rows.Next() {
		var (
			a      models.Activity
			action string
			meta   []byte
		)
		if err := rows.Scan(&a.ID, &a.TaskID, &a.ProjectID, &a.UserID, &action, &meta, &a.Timestamp); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}

		a.Action = models.ActivityAction(action)
		a.Timestamp = a.Timestamp.UTC()
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &a.Metadata); err != nil {
				return nil, fmt.Errorf("%s: decode metadata: %w", op, err)
			}
		}
		out = append(out, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}
