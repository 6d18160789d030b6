// service содержит бизнес-логику task-manager:
// жизненный цикл сессии (регистрация, вход, ротация refresh-токенов, выход),
// проверку access-токенов, а также операции над проектами, задачами и журналом.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для конкурентного
//     использования при потокобезопасном хранилище (storage.Storage).
//   - Ошибки возвращаются сентинелами ниже и маппятся транспортом на HTTP-коды
//     (см. internal/http/errors).
package service

import (
	"errors"
	"time"

	"github.com/pribylovaa/go-task-manager/internal/cache"
	"github.com/pribylovaa/go-task-manager/internal/config"
	"github.com/pribylovaa/go-task-manager/internal/obs"
	"github.com/pribylovaa/go-task-manager/internal/storage"
)

var (
	// ErrInvalidCredentials — неизвестный email или неверный пароль (неразличимо). HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken — access/refresh токен не прошёл проверку: подпись, срок,
	// формат, отсутствие в реестре или повторное предъявление. HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrEmailTaken — email уже зарегистрирован (без учёта регистра). HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrForbidden — у пользователя нет прав на ресурс. HTTP 403.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound — ресурс не найден. HTTP 404.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable — необязательная зависимость (например, хранилище аватаров) не сконфигурирована. HTTP 503.
	ErrUnavailable = errors.New("unavailable")

	// ErrInvalidArgument — общая категория ошибок валидации (см. ValidationError). HTTP 400.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConfiguration — отсутствует секрет подписи или иная настройка.
	ErrConfiguration = config.ErrConfiguration
)

// Service описывает бизнес-логику task-manager.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
	rcache  cache.RefreshCache // может быть nil, если Redis не сконфигурирован
	avatars storage.Avatars    // может быть nil, если S3 не сконфигурирован
	metrics *obs.Metrics       // может быть nil
	now     func() time.Time
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetRefreshCache устанавливает кэш отозванных refresh-токенов (опционально).
func (s *Service) SetRefreshCache(c cache.RefreshCache) {
	s.rcache = c
}

// SetAvatars устанавливает хранилище аватаров (опционально).
func (s *Service) SetAvatars(a storage.Avatars) {
	s.avatars = a
}

// SetMetrics устанавливает метрики событий аутентификации (опционально).
func (s *Service) SetMetrics(m *obs.Metrics) {
	s.metrics = m
}
