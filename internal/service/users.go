package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/storage"
)

// Me возвращает профиль текущего пользователя.
func (s *Service) Me(ctx context.Context, userID string) (*models.PublicUser, error) {
	const op = "service.users.Me"

	u, err := s.storage.UserByID(ctx, userID)
	if err != nil {
		return nil, storageErr(op, err)
	}

	return u.Public(), nil
}

// AvatarUploadURL выдаёт presigned PUT URL для загрузки аватара.
func (s *Service) AvatarUploadURL(ctx context.Context, userID, contentType string, contentLength int64) (*storage.UploadInfo, error) {
	const op = "service.users.AvatarUploadURL"

	if s.avatars == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnavailable)
	}

	info, err := s.avatars.AvatarUploadURL(ctx, userID, strings.TrimSpace(contentType), contentLength)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidArgument) {
			return nil, fmt.Errorf("%s: %w", op, &ValidationError{Fields: []FieldError{
				{Field: "contentType", Message: "unsupported content type or size"},
			}})
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return info, nil
}

// ConfirmAvatar подтверждает загрузку по ключу и сохраняет URL аватара в профиле.
// Без публичного базового URL в профиль записывается сам ключ.
func (s *Service) ConfirmAvatar(ctx context.Context, userID, key string) (*models.PublicUser, error) {
	const op = "service.users.ConfirmAvatar"

	if s.avatars == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUnavailable)
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%s: %w", op, invalidField("avatarKey", "is required"))
	}

	url, err := s.avatars.CheckAvatarUpload(ctx, userID, key)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFoundAvatar):
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		case errors.Is(err, storage.ErrInvalidArgument):
			return nil, fmt.Errorf("%s: %w", op, invalidField("avatarKey", "object is missing or violates upload limits"))
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if url == "" {
		url = key
	}

	u, err := s.storage.UpdateAvatar(ctx, userID, url, s.now())
	if err != nil {
		return nil, storageErr(op, err)
	}

	return u.Public(), nil
}
