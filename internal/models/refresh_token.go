package models

import "time"

// RefreshTokenEntry — запись реестра refresh-токенов пользователя.
// TokenHash — SHA-256 (base64url) от выданного клиенту токена; сам токен не хранится.
type RefreshTokenEntry struct {
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
