package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFoundAvatar — объект (ключ) отсутствует в бакете.
	ErrNotFoundAvatar = errors.New("avatar not found")
	// ErrInvalidArgument — нарушены ограничения запроса (тип/размер/ключ).
	ErrInvalidArgument = errors.New("invalid argument")
)

// UploadInfo — информация для клиента о presigned PUT загрузке.
//   - UploadURL: конечная URL для PUT-запроса;
//   - AvatarKey: ключ будущего объекта в бакете;
//   - Expires: время жизни подписи;
//   - RequiredHeader: заголовки, которые клиент обязан передать при PUT.
type UploadInfo struct {
	UploadURL      string
	AvatarKey      string
	Expires        time.Duration
	RequiredHeader map[string]string
}

// Avatars — контракт генерации presigned URL и подтверждения факта загрузки.
type Avatars interface {
	AvatarUploadURL(ctx context.Context, userID, contentType string, contentLength int64) (*UploadInfo, error)
	// CheckAvatarUpload проверяет наличие, тип и размер объекта по key.
	// Возвращает публичный URL, если он сконфигурирован.
	CheckAvatarUpload(ctx context.Context, userID, key string) (publicURL string, err error)
}
