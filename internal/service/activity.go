package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/pkg/log"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// logActivity пишет запись журнала. Ошибка записи не прерывает операцию.
func (s *Service) logActivity(ctx context.Context, a models.Activity) {
	a.Timestamp = s.now()

	if err := s.storage.SaveActivity(ctx, &a); err != nil {
		log.From(ctx).Warn("activity_save_failed",
			slog.String("project_id", a.ProjectID),
			slog.String("action", string(a.Action)),
			slog.String("err", err.Error()),
		)
	}
}

// ListActivity возвращает журнал проекта, новые записи первыми.
// limit <= 0 означает значение по умолчанию, больше максимума — обрезается.
func (s *Service) ListActivity(ctx context.Context, userID, projectID string, limit int) ([]models.Activity, error) {
	const op = "service.activity.ListActivity"

	if _, err := s.accessibleProject(ctx, userID, projectID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case limit <= 0:
		limit = defaultActivityLimit
	case limit > maxActivityLimit:
		limit = maxActivityLimit
	}

	items, err := s.storage.ActivityByProject(ctx, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return items, nil
}
