package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	apierrors "github.com/pribylovaa/go-task-manager/internal/http/errors"
	"github.com/pribylovaa/go-task-manager/internal/http/middleware"
	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/service"
	"github.com/pribylovaa/go-task-manager/internal/storage"
)

// Service — операции бизнес-слоя, которые вызывают хендлеры.
// Реализуется *service.Service.
type Service interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, in service.LoginInput) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error

	Me(ctx context.Context, userID string) (*models.PublicUser, error)
	AvatarUploadURL(ctx context.Context, userID, contentType string, contentLength int64) (*storage.UploadInfo, error)
	ConfirmAvatar(ctx context.Context, userID, key string) (*models.PublicUser, error)

	ListProjects(ctx context.Context, userID string) ([]models.Project, error)
	GetProject(ctx context.Context, userID, id string) (*models.Project, error)
	CreateProject(ctx context.Context, userID, name string) (*models.Project, error)
	UpdateProject(ctx context.Context, userID, id string, name *string) (*models.Project, error)
	DeleteProject(ctx context.Context, userID, id string) error
	AddMember(ctx context.Context, userID, id, memberID string) (*models.Project, error)
	RemoveMember(ctx context.Context, userID, id, memberID string) (*models.Project, error)
	ListActivity(ctx context.Context, userID, projectID string, limit int) ([]models.Activity, error)

	ListTasks(ctx context.Context, userID string, f models.TaskFilter) ([]models.Task, error)
	GetTask(ctx context.Context, userID, id string) (*models.Task, error)
	CreateTask(ctx context.Context, userID string, in service.CreateTaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, userID, id string, patch models.TaskPatch) (*models.Task, error)
	DeleteTask(ctx context.Context, userID, id string) error
	ToggleTask(ctx context.Context, userID, id string) (*models.Task, error)
}

// Handlers агрегирует зависимости хендлеров.
type Handlers struct {
	svc Service
}

func New(svc Service) *Handlers {
	return &Handlers{svc: svc}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

// errMalformedBody — тело не разбирается как JSON нужной формы.
func errMalformedBody() error {
	return &service.ValidationError{Fields: []service.FieldError{
		{Field: "body", Message: "malformed JSON or unknown field"},
	}}
}

// currentUser достаёт пользователя, положенного AuthBearer. Без него — 401.
func currentUser(w http.ResponseWriter, r *http.Request) (*models.PublicUser, bool) {
	u, ok := middleware.UserFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrInvalidToken)
		return nil, false
	}
	return u, true
}
