// Package models содержит доменные сущности task-manager.
// Идентификаторы — непрозрачные строки: для MongoDB это hex ObjectID,
// для PostgreSQL — UUID. Конвертация выполняется слоем storage.
package models

import "time"

// User — учётная запись пользователя вместе с реестром refresh-токенов.
//   - Email хранится в нижнем регистре и уникален;
//   - PasswordHash пуст у пользователей, пришедших через OAuth;
//   - RefreshTokens — активные сессии (по одной на устройство/вход).
type User struct {
	ID            string
	Email         string
	Name          string
	PasswordHash  string
	OAuthProvider string
	AvatarURL     string
	RefreshTokens []RefreshTokenEntry
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PublicUser — проекция пользователя без секретов. Только она покидает сервис.
type PublicUser struct {
	ID            string
	Email         string
	Name          string
	OAuthProvider string
	AvatarURL     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Public возвращает проекцию без хэша пароля и реестра токенов.
func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}

	return &PublicUser{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		OAuthProvider: u.OAuthProvider,
		AvatarURL:     u.AvatarURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}
