package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pribylovaa/go-task-manager/internal/models"
)

// refreshTokenBytes — энтропия refresh-токена; в hex это 80 символов.
const refreshTokenBytes = 40

// accessClaims — полезная нагрузка access-токена: ровно {id, name, email, iat, exp}.
// Остальные зарегистрированные claims остаются пустыми и не сериализуются.
type accessClaims struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// issueAccessToken подписывает access-токен пользователя (HS256).
func (s *Service) issueAccessToken(user *models.User, now time.Time) (string, time.Time, error) {
	const op = "service.token.issueAccessToken"

	if s.cfg.JWTSecret == "" {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, ErrConfiguration)
	}

	exp := now.Add(s.cfg.AccessTokenTTL)
	claims := accessClaims{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, exp, nil
}

// verifyAccessToken проверяет подпись, срок и форму полезной нагрузки.
// Любая ошибка проверки — ErrInvalidToken.
func (s *Service) verifyAccessToken(tokenStr string) (*models.Identity, error) {
	const op = "service.token.verifyAccessToken"

	if s.cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrConfiguration)
	}

	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (interface{}, error) {
			return []byte(s.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if claims.ID == "" || claims.Email == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return &models.Identity{
		UserID:    claims.ID,
		Name:      claims.Name,
		Email:     claims.Email,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

// mintRefreshToken генерирует новый refresh-токен и его хэш для реестра.
func mintRefreshToken() (plain, hash string, err error) {
	const op = "service.token.mintRefreshToken"

	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	plain = hex.EncodeToString(b)

	return plain, hashToken(plain), nil
}

// newRefreshEntry выпускает токен и запись реестра к нему.
func (s *Service) newRefreshEntry(now time.Time) (string, models.RefreshTokenEntry, error) {
	plain, hash, err := mintRefreshToken()
	if err != nil {
		return "", models.RefreshTokenEntry{}, err
	}

	return plain, models.RefreshTokenEntry{
		TokenHash: hash,
		CreatedAt: now,
		ExpiresAt: s.refreshExpiry(now),
	}, nil
}

func (s *Service) refreshExpiry(now time.Time) time.Time {
	return now.Add(s.cfg.RefreshTokenTTL)
}

// hashToken — SHA-256 в base64url без паддинга; в реестре хранится только он.
func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
