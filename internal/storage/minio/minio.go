// minio реализует storage.Avatars на базе MinIO/S3:
//   - minio.go — конструктор клиента, нормализация endpoint и проверка бакета;
//   - avatars.go — presigned PUT и подтверждение загрузки.
package minio

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pribylovaa/go-task-manager/internal/config"
	"github.com/pribylovaa/go-task-manager/internal/storage"
)

// AvatarsStorage — адаптер MinIO для операций с аватарами.
type AvatarsStorage struct {
	s3     config.S3Config
	limits config.AvatarConfig
	client *mclient.Client
}

// New создает клиент MinIO и проверяет доступность бакета.
// Схема endpoint (http/https) определяет режим Secure.
func New(ctx context.Context, s3 config.S3Config, limits config.AvatarConfig) (*AvatarsStorage, error) {
	const op = "storage/minio/New"

	endpoint := s3.Endpoint
	secure := strings.HasPrefix(endpoint, "https://")

	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(s3.RootUser, s3.RootPassword, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, s3.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, s3.Bucket)
	}

	return &AvatarsStorage{s3: s3, limits: limits, client: client}, nil
}

var _ storage.Avatars = (*AvatarsStorage)(nil)
