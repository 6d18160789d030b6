package models

import "time"

// TokenPair — пара токенов, выдаваемая при входе, регистрации и обновлении.
//   - AccessToken — короткоживущий JWT для доступа к API;
//   - RefreshToken — случайный одноразовый секрет для выпуска новой пары;
//   - AccessExpiresAt — момент истечения access-токена (UTC).
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessExpiresAt time.Time
}

// Identity — данные, извлечённые из проверенного access-токена.
// Имя и email могут отставать от хранилища не дольше, чем живёт access-токен.
type Identity struct {
	UserID    string
	Name      string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
