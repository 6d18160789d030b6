// storage описывает контракты хранилища task-manager.
// Реализации: storage/mongo (по умолчанию) и storage/postgres.
// Некорректный по формату идентификатор трактуется реализациями как ErrNotFound.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pribylovaa/go-task-manager/internal/models"
)

var (
	// ErrNotFound — запись не найдена (пользователь/проект/задача/refresh-токен).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создаёт пользователя вместе с начальным реестром refresh-токенов
	// и возвращает его с присвоенным ID. Занятый email — ErrAlreadyExists.
	SaveUser(ctx context.Context, user *models.User) (*models.User, error)
	// UserByEmail находит пользователя по email (ожидается нижний регистр).
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id string) (*models.User, error)
	// UpdateAvatar сохраняет URL аватара.
	UpdateAvatar(ctx context.Context, id, avatarURL string, now time.Time) (*models.User, error)
}

// RefreshTokenStorage — реестр refresh-токенов, встроенный в запись пользователя.
type RefreshTokenStorage interface {
	// AppendRefreshToken добавляет запись в реестр, не трогая остальные.
	AppendRefreshToken(ctx context.Context, userID string, entry models.RefreshTokenEntry) error
	// RotateRefreshToken атомарно находит пользователя, у которого есть
	// действующая (ExpiresAt > now) запись с oldHash, удаляет все записи с этим
	// хэшем и добавляет next. Нет такой записи — ErrNotFound.
	// Из двух конкурентных вызовов с одним oldHash успешен ровно один.
	RotateRefreshToken(ctx context.Context, oldHash string, next models.RefreshTokenEntry, now time.Time) (*models.User, error)
	// RemoveRefreshToken удаляет запись с указанным хэшем. false — записи не было.
	RemoveRefreshToken(ctx context.Context, hash string) (bool, error)
	// DeleteExpiredTokens удаляет из всех реестров записи с ExpiresAt <= now.
	// Возвращает число пользователей, чей реестр изменился (не число записей).
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// ProjectStorage выполняет операции над проектами.
type ProjectStorage interface {
	SaveProject(ctx context.Context, p *models.Project) (*models.Project, error)
	ProjectByID(ctx context.Context, id string) (*models.Project, error)
	// ProjectsByUser возвращает проекты, где userID — владелец или участник.
	ProjectsByUser(ctx context.Context, userID string) ([]models.Project, error)
	RenameProject(ctx context.Context, id, name string, now time.Time) (*models.Project, error)
	DeleteProject(ctx context.Context, id string) error
	// AddProjectMember идемпотентно добавляет участника.
	AddProjectMember(ctx context.Context, id, userID string, now time.Time) (*models.Project, error)
	RemoveProjectMember(ctx context.Context, id, userID string, now time.Time) (*models.Project, error)
}

// TaskStorage выполняет операции над задачами.
type TaskStorage interface {
	SaveTask(ctx context.Context, t *models.Task) (*models.Task, error)
	TaskByID(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error)
	// UpdateTask перезаписывает изменяемые поля задачи по t.ID.
	UpdateTask(ctx context.Context, t *models.Task) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
	DeleteTasksByProject(ctx context.Context, projectID string) (int64, error)
}

// ActivityStorage — журнал действий.
type ActivityStorage interface {
	SaveActivity(ctx context.Context, a *models.Activity) error
	// ActivityByProject возвращает последние limit записей проекта, новые первыми.
	ActivityByProject(ctx context.Context, projectID string, limit int) ([]models.Activity, error)
}

// Storage задаёт контракт работы с БД.
type Storage interface {
	UserStorage
	RefreshTokenStorage
	ProjectStorage
	TaskStorage
	ActivityStorage
	Close(ctx context.Context) error
}
