package minio

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	mclient "github.com/minio/minio-go/v7"

	"github.com/pribylovaa/go-task-manager/internal/storage"
)

var extByContentType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// avatarKey строит ключ вида avatars/<userID>/<uuid>.<ext>.
func avatarKey(userID, contentType string) string {
	return path.Join("avatars", userID, uuid.NewString()+extByContentType[contentType])
}

// AvatarUploadURL генерирует presigned PUT URL для загрузки аватара.
// Тип и размер проверяются по конфигу; заголовки из RequiredHeader клиент обязан передать при PUT.
func (s *AvatarsStorage) AvatarUploadURL(ctx context.Context, userID, contentType string, contentLength int64) (*storage.UploadInfo, error) {
	const op = "storage/minio/AvatarUploadURL"

	if contentLength <= 0 || contentLength > s.limits.MaxSizeBytes {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrInvalidArgument)
	}

	if !slices.Contains(s.limits.AllowedContentTypes, contentType) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrInvalidArgument)
	}

	key := avatarKey(userID, contentType)

	u, err := s.client.PresignedPutObject(ctx, s.s3.Bucket, key, s.s3.PresignTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &storage.UploadInfo{
		UploadURL: u.String(),
		AvatarKey: key,
		Expires:   s.s3.PresignTTL,
		RequiredHeader: map[string]string{
			"Content-Type":   contentType,
			"Content-Length": strconv.FormatInt(contentLength, 10),
		},
	}, nil
}

// CheckAvatarUpload подтверждает загрузку по key: объект принадлежит пользователю,
// существует и удовлетворяет ограничениям. Возвращает публичный URL или пустую строку.
func (s *AvatarsStorage) CheckAvatarUpload(ctx context.Context, userID, key string) (string, error) {
	const op = "storage/minio/CheckAvatarUpload"

	if !strings.HasPrefix(key, "avatars/"+userID+"/") || strings.Contains(key, "..") {
		return "", fmt.Errorf("%s: %w", op, storage.ErrInvalidArgument)
	}

	info, err := s.client.StatObject(ctx, s.s3.Bucket, key, mclient.StatObjectOptions{})
	if err != nil {
		errResp := mclient.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.StatusCode == 404 {
			return "", fmt.Errorf("%s: %w", op, storage.ErrNotFoundAvatar)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	if info.Size <= 0 || info.Size > s.limits.MaxSizeBytes {
		return "", fmt.Errorf("%s: %w", op, storage.ErrInvalidArgument)
	}

	if ct := info.ContentType; ct != "" && !slices.Contains(s.limits.AllowedContentTypes, ct) {
		return "", fmt.Errorf("%s: %w", op, storage.ErrInvalidArgument)
	}

	if s.s3.PublicBaseURL == "" {
		return "", nil
	}

	return strings.TrimRight(s.s3.PublicBaseURL, "/") + "/" + key, nil
}
