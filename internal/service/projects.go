package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/storage"
)

const maxProjectNameLen = 100

// ListProjects возвращает проекты, где пользователь владелец или участник.
func (s *Service) ListProjects(ctx context.Context, userID string) ([]models.Project, error) {
	const op = "service.projects.ListProjects"

	items, err := s.storage.ProjectsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return items, nil
}

// GetProject возвращает проект, если пользователь владелец или участник.
func (s *Service) GetProject(ctx context.Context, userID, id string) (*models.Project, error) {
	const op = "service.projects.GetProject"

	p, err := s.accessibleProject(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

// CreateProject создаёт проект; создатель становится владельцем.
func (s *Service) CreateProject(ctx context.Context, userID, name string) (*models.Project, error) {
	const op = "service.projects.CreateProject"

	name, err := validateProjectName(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	p, err := s.storage.SaveProject(ctx, &models.Project{
		Name:      name,
		OwnerID:   userID,
		MemberIDs: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.logActivity(ctx, models.Activity{
		ProjectID: p.ID,
		UserID:    userID,
		Action:    models.ActionCreated,
		Metadata:  map[string]string{"name": p.Name},
	})

	return p, nil
}

// UpdateProject переименовывает проект. Только владелец. nil name — без изменений.
func (s *Service) UpdateProject(ctx context.Context, userID, id string, name *string) (*models.Project, error) {
	const op = "service.projects.UpdateProject"

	p, err := s.ownedProject(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if name == nil {
		return p, nil
	}

	newName, err := validateProjectName(*name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p, err = s.storage.RenameProject(ctx, id, newName, s.now())
	if err != nil {
		return nil, storageErr(op, err)
	}

	s.logActivity(ctx, models.Activity{
		ProjectID: p.ID,
		UserID:    userID,
		Action:    models.ActionUpdate,
		Metadata:  map[string]string{"name": p.Name},
	})

	return p, nil
}

// DeleteProject удаляет проект вместе с его задачами. Только владелец.
func (s *Service) DeleteProject(ctx context.Context, userID, id string) error {
	const op = "service.projects.DeleteProject"

	p, err := s.ownedProject(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.storage.DeleteTasksByProject(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.DeleteProject(ctx, id); err != nil {
		return storageErr(op, err)
	}

	s.logActivity(ctx, models.Activity{
		ProjectID: id,
		UserID:    userID,
		Action:    models.ActionDelete,
		Metadata:  map[string]string{"name": p.Name},
	})

	return nil
}

// AddMember добавляет участника (идемпотентно). Только владелец; участник должен существовать.
func (s *Service) AddMember(ctx context.Context, userID, id, memberID string) (*models.Project, error) {
	const op = "service.projects.AddMember"

	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, fmt.Errorf("%s: %w", op, invalidField("userId", "is required"))
	}

	if _, err := s.ownedProject(ctx, userID, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.storage.UserByID(ctx, memberID); err != nil {
		return nil, storageErr(op, err)
	}

	p, err := s.storage.AddProjectMember(ctx, id, memberID, s.now())
	if err != nil {
		return nil, storageErr(op, err)
	}

	s.logActivity(ctx, models.Activity{
		ProjectID: id,
		UserID:    userID,
		Action:    models.ActionUpdate,
		Metadata:  map[string]string{"member_added": memberID},
	})

	return p, nil
}

// RemoveMember исключает участника. Только владелец.
func (s *Service) RemoveMember(ctx context.Context, userID, id, memberID string) (*models.Project, error) {
	const op = "service.projects.RemoveMember"

	if _, err := s.ownedProject(ctx, userID, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p, err := s.storage.RemoveProjectMember(ctx, id, memberID, s.now())
	if err != nil {
		return nil, storageErr(op, err)
	}

	s.logActivity(ctx, models.Activity{
		ProjectID: id,
		UserID:    userID,
		Action:    models.ActionUpdate,
		Metadata:  map[string]string{"member_removed": memberID},
	})

	return p, nil
}

// accessibleProject загружает проект и проверяет, что userID владелец или участник.
func (s *Service) accessibleProject(ctx context.Context, userID, id string) (*models.Project, error) {
	p, err := s.storage.ProjectByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	if !p.HasAccess(userID) {
		return nil, ErrForbidden
	}

	return p, nil
}

// ownedProject загружает проект и проверяет, что userID его владелец.
func (s *Service) ownedProject(ctx context.Context, userID, id string) (*models.Project, error) {
	p, err := s.storage.ProjectByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	if p.OwnerID != userID {
		return nil, ErrForbidden
	}

	return p, nil
}

func validateProjectName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(name)
	if n < 1 || n > maxProjectNameLen {
		return "", invalidField("name", "must be between 1 and 100 characters")
	}

	return name, nil
}
