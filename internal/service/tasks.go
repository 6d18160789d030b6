package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/storage"
)

const maxTaskTitleLen = 200

// CreateTaskInput — данные новой задачи. Пустой AssigneeID — исполнитель сам автор,
// пустой Priority — low.
type CreateTaskInput struct {
	Title       string
	Description string
	ProjectID   string
	AssigneeID  string
	DueDate     *time.Time
	Priority    models.Priority
	Labels      []string
	Subtasks    []models.Subtask
	Reminders   []models.Reminder
}

// ListTasks возвращает задачи, назначенные пользователю, с необязательными фильтрами.
func (s *Service) ListTasks(ctx context.Context, userID string, f models.TaskFilter) ([]models.Task, error) {
	const op = "service.tasks.ListTasks"

	f.AssigneeID = userID

	items, err := s.storage.ListTasks(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return items, nil
}

// GetTask возвращает задачу автору, исполнителю или участнику её проекта.
func (s *Service) GetTask(ctx context.Context, userID, id string) (*models.Task, error) {
	const op = "service.tasks.GetTask"

	t, err := s.storage.TaskByID(ctx, id)
	if err != nil {
		return nil, storageErr(op, err)
	}

	if t.CanModify(userID) {
		return t, nil
	}

	p, err := s.storage.ProjectByID(ctx, t.ProjectID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	case !p.HasAccess(userID):
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	return t, nil
}

// CreateTask создаёт задачу в проекте, доступном пользователю.
func (s *Service) CreateTask(ctx context.Context, userID string, in CreateTaskInput) (*models.Task, error) {
	const op = "service.tasks.CreateTask"

	title := strings.TrimSpace(in.Title)
	projectID := strings.TrimSpace(in.ProjectID)
	if in.Priority == "" {
		in.Priority = models.PriorityLow
	}

	var v validator
	checkTitle(&v, title)
	v.check(projectID != "", "projectId", "is required")
	v.check(in.Priority.Valid(), "priority", "must be one of low, medium, high, urgent")
	checkSubtasks(&v, in.Subtasks)
	checkReminders(&v, in.Reminders)
	if err := v.err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.accessibleProject(ctx, userID, projectID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	assignee := strings.TrimSpace(in.AssigneeID)
	if assignee == "" {
		assignee = userID
	}
	if err := s.checkAssignee(ctx, userID, assignee); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	t, err := s.storage.SaveTask(ctx, &models.Task{
		Title:       title,
		Description: in.Description,
		ProjectID:   projectID,
		AssigneeID:  assignee,
		CreatorID:   userID,
		DueDate:     utcPtr(in.DueDate),
		Priority:    in.Priority,
		Labels:      nonNil(in.Labels),
		Subtasks:    nonNil(in.Subtasks),
		Reminders:   nonNil(in.Reminders),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, storageErr(op, err)
	}

	s.logActivity(ctx, models.Activity{
		TaskID:    t.ID,
		ProjectID: t.ProjectID,
		UserID:    userID,
		Action:    models.ActionCreated,
		Metadata:  map[string]string{"title": t.Title},
	})

	return t, nil
}

// UpdateTask применяет частичное обновление. Только автор или исполнитель;
// перенос в другой проект требует доступа к нему.
func (s *Service) UpdateTask(ctx context.Context, userID, id string, patch models.TaskPatch) (*models.Task, error) {
	const op = "service.tasks.UpdateTask"

	t, err := s.modifiableTask(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var v validator
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		checkTitle(&v, title)
		patch.Title = &title
	}
	if patch.ProjectID != nil {
		v.check(strings.TrimSpace(*patch.ProjectID) != "", "projectId", "must not be empty")
	}
	if patch.Priority != nil {
		v.check(patch.Priority.Valid(), "priority", "must be one of low, medium, high, urgent")
	}
	if patch.Subtasks != nil {
		checkSubtasks(&v, *patch.Subtasks)
	}
	if patch.Reminders != nil {
		checkReminders(&v, *patch.Reminders)
	}
	if err := v.err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if patch.ProjectID != nil && *patch.ProjectID != t.ProjectID {
		if _, err := s.accessibleProject(ctx, userID, *patch.ProjectID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if patch.AssigneeID != nil && *patch.AssigneeID != t.AssigneeID {
		if err := s.checkAssignee(ctx, userID, *patch.AssigneeID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	applyPatch(t, patch)
	t.UpdatedAt = s.now()

	updated, err := s.storage.UpdateTask(ctx, t)
	if err != nil {
		return nil, storageErr(op, err)
	}

	s.logActivity(ctx, models.Activity{
		TaskID:    updated.ID,
		ProjectID: updated.ProjectID,
		UserID:    userID,
		Action:    models.ActionUpdate,
		Metadata:  map[string]string{"title": updated.Title},
	})

	return updated, nil
}

// DeleteTask удаляет задачу. Только автор или исполнитель.
func (s *Service) DeleteTask(ctx context.Context, userID, id string) error {
	const op = "service.tasks.DeleteTask"

	t, err := s.modifiableTask(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.DeleteTask(ctx, id); err != nil {
		return storageErr(op, err)
	}

	s.logActivity(ctx, models.Activity{
		TaskID:    t.ID,
		ProjectID: t.ProjectID,
		UserID:    userID,
		Action:    models.ActionDelete,
		Metadata:  map[string]string{"title": t.Title},
	})

	return nil
}

// ToggleTask инвертирует признак выполнения. Только автор или исполнитель.
func (s *Service) ToggleTask(ctx context.Context, userID, id string) (*models.Task, error) {
	const op = "service.tasks.ToggleTask"

	t, err := s.modifiableTask(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	t.IsCompleted = !t.IsCompleted
	t.UpdatedAt = s.now()

	updated, err := s.storage.UpdateTask(ctx, t)
	if err != nil {
		return nil, storageErr(op, err)
	}

	action := models.ActionUpdate
	if updated.IsCompleted {
		action = models.ActionCompleted
	}
	s.logActivity(ctx, models.Activity{
		TaskID:    updated.ID,
		ProjectID: updated.ProjectID,
		UserID:    userID,
		Action:    action,
		Metadata:  map[string]string{"title": updated.Title},
	})

	return updated, nil
}

func (s *Service) modifiableTask(ctx context.Context, userID, id string) (*models.Task, error) {
	t, err := s.storage.TaskByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	if !t.CanModify(userID) {
		return nil, ErrForbidden
	}

	return t, nil
}

// checkAssignee проверяет, что исполнитель существует. Назначение себя не требует запроса.
func (s *Service) checkAssignee(ctx context.Context, userID, assignee string) error {
	if assignee == userID {
		return nil
	}

	if _, err := s.storage.UserByID(ctx, assignee); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return invalidField("assigneeId", "unknown user")
		}

		return err
	}

	return nil
}

func applyPatch(t *models.Task, p models.TaskPatch) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.ProjectID != nil {
		t.ProjectID = *p.ProjectID
	}
	if p.AssigneeID != nil {
		t.AssigneeID = *p.AssigneeID
	}
	switch {
	case p.ClearDue:
		t.DueDate = nil
	case p.DueDate != nil:
		t.DueDate = utcPtr(p.DueDate)
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Labels != nil {
		t.Labels = nonNil(*p.Labels)
	}
	if p.Subtasks != nil {
		t.Subtasks = nonNil(*p.Subtasks)
	}
	if p.Reminders != nil {
		t.Reminders = nonNil(*p.Reminders)
	}
	if p.IsCompleted != nil {
		t.IsCompleted = *p.IsCompleted
	}
}

func checkTitle(v *validator, title string) {
	n := utf8.RuneCountInString(title)
	v.check(n >= 1 && n <= maxTaskTitleLen, "title", "must be between 1 and 200 characters")
}

func checkSubtasks(v *validator, items []models.Subtask) {
	for i, st := range items {
		v.check(strings.TrimSpace(st.Title) != "", fmt.Sprintf("subtasks[%d].title", i), "is required")
	}
}

func checkReminders(v *validator, items []models.Reminder) {
	for i, r := range items {
		v.check(r.Method.Valid(), fmt.Sprintf("reminders[%d].method", i), "must be push or email")
		v.check(!r.Time.IsZero(), fmt.Sprintf("reminders[%d].time", i), "is required")
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	u := t.UTC()
	return &u
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
