package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/storage"
)

const projectSelect = `
    SELECT p.id::text, p.name, p.owner_id::text, p.created_at, p.updated_at,
           COALESCE(array_agg(m.user_id::text ORDER BY m.added_at) FILTER (WHERE m.user_id IS NOT NULL), '{}')
    FROM projects p
    LEFT JOIN project_members m ON m.project_id = p.id
`

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	if err := row.Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt, &p.MemberIDs); err != nil {
		return nil, err
	}

	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()

	return &p, nil
}

// SaveProject создаёт проект вместе с начальным списком участников.
func (s *Storage) SaveProject(ctx context.Context, p *models.Project) (*models.Project, error) {
	const op = "storage.postgres.SaveProject"

	owner, ok := parseID(p.OwnerID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	id := uuid.New()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
        INSERT INTO projects (id, name, owner_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
    `, id, p.Name, owner, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, m := range p.MemberIDs {
		mid, ok := parseID(m)
		if !ok {
			continue
		}
		if _, err := tx.Exec(ctx, `
            INSERT INTO project_members (project_id, user_id, added_at) VALUES ($1, $2, $3)
            ON CONFLICT DO NOTHING
        `, id, mid, p.CreatedAt.UTC()); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	out, err := scanProject(tx.QueryRow(ctx, projectSelect+` WHERE p.id = $1 GROUP BY p.id`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// ProjectByID возвращает проект с участниками.
func (s *Storage) ProjectByID(ctx context.Context, id string) (*models.Project, error) {
	const op = "storage.postgres.ProjectByID"

	pid, ok := parseID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	p, err := scanProject(s.db.QueryRow(ctx, projectSelect+` WHERE p.id = $1 GROUP BY p.id`, pid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

// ProjectsByUser возвращает проекты, где пользователь — владелец или участник.
func (s *Storage) ProjectsByUser(ctx context.Context, userID string) ([]models.Project, error) {
	const op = "storage.postgres.ProjectsByUser"

	uid, ok := parseID(userID)
	if !ok {
		return []models.Project{}, nil
	}

	rows, err := s.db.Query(ctx, projectSelect+`
        WHERE p.owner_id = $1
           OR EXISTS (SELECT 1 FROM project_members pm WHERE pm.project_id = p.id AND pm.user_id = $1)
        GROUP BY p.id
        ORDER BY p.created_at DESC, p.id DESC
    `, uid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// RenameProject меняет имя проекта.
func (s *Storage) RenameProject(ctx context.Context, id, name string, now time.Time) (*models.Project, error) {
	const op = "storage.postgres.RenameProject"

	pid, ok := parseID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	tag, err := s.db.Exec(ctx, `UPDATE projects SET name = $2, updated_at = $3 WHERE id = $1`, pid, name, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return s.ProjectByID(ctx, id)
}

// DeleteProject удаляет проект; участники и задачи удаляются каскадно.
func (s *Storage) DeleteProject(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteProject"

	pid, ok := parseID(id)
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, pid)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// AddProjectMember идемпотентно добавляет участника.
func (s *Storage) AddProjectMember(ctx context.Context, id, userID string, now time.Time) (*models.Project, error) {
	const op = "storage.postgres.AddProjectMember"

	return s.changeMembers(ctx, op, id, userID, now, true)
}

// RemoveProjectMember удаляет участника.
func (s *Storage) RemoveProjectMember(ctx context.Context, id, userID string, now time.Time) (*models.Project, error) {
	const op = "storage.postgres.RemoveProjectMember"

	return s.changeMembers(ctx, op, id, userID, now, false)
}

// changeMembers добавляет (add=true) или удаляет участника и обновляет updated_at проекта.
func (s *Storage) changeMembers(ctx context.Context, op, id, userID string, now time.Time, add bool) (*models.Project, error) {
	pid, ok := parseID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	mid, ok := parseID(userID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE projects SET updated_at = $2 WHERE id = $1`, pid, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if add {
		_, err = tx.Exec(ctx, `
            INSERT INTO project_members (project_id, user_id, added_at) VALUES ($1, $2, $3)
            ON CONFLICT DO NOTHING
        `, pid, mid, now.UTC())
	} else {
		_, err = tx.Exec(ctx, `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, pid, mid)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out, err := scanProject(tx.QueryRow(ctx, projectSelect+` WHERE p.id = $1 GROUP BY p.id`, pid))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}
