package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-task-manager/internal/cache"
	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/pkg/log"
	"github.com/pribylovaa/go-task-manager/internal/pkg/redact"
	"github.com/pribylovaa/go-task-manager/internal/storage"
)

const (
	minNameLen     = 2
	maxNameLen     = 50
	minPasswordLen = 6
	// maxPasswordLen — предел bcrypt в байтах; длиннее пароль не хэшируется.
	maxPasswordLen = 72
)

// RegisterInput — данные регистрации.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// LoginInput — данные входа.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult — результат регистрации/входа: пара токенов и публичный профиль.
type AuthResult struct {
	Tokens models.TokenPair
	User   *models.PublicUser
}

// Register регистрирует пользователя и открывает первую сессию.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	const op = "service.auth.Register"

	lg := log.From(ctx)

	email, emailOK := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	nameLen := utf8.RuneCountInString(name)

	var v validator
	v.check(emailOK, "email", "must be a valid email address")
	v.check(nameLen >= minNameLen && nameLen <= maxNameLen, "name", "must be between 2 and 50 characters")
	v.check(len(in.Password) >= minPasswordLen, "password", "must be at least 6 characters")
	v.check(len(in.Password) <= maxPasswordLen, "password", "must be at most 72 bytes")
	if err := v.err(); err != nil {
		s.metrics.AuthEvent("register", "invalid")
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err := s.storage.UserByEmail(ctx, email)
	if err == nil {
		s.metrics.AuthEvent("register", "conflict")
		return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	plain, entry, err := s.newRefreshEntry(now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.SaveUser(ctx, &models.User{
		Email:         email,
		Name:          name,
		PasswordHash:  hash,
		RefreshTokens: []models.RefreshTokenEntry{entry},
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			s.metrics.AuthEvent("register", "conflict")
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	access, exp, err := s.issueAccessToken(user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("user_registered",
		slog.String("user_id", user.ID),
		slog.String("email", redact.Email(email)),
	)
	s.metrics.AuthEvent("register", "ok")

	return &AuthResult{
		Tokens: models.TokenPair{AccessToken: access, RefreshToken: plain, AccessExpiresAt: exp},
		User:   user.Public(),
	}, nil
}

// Login проверяет email+пароль и добавляет новую сессию, не трогая существующие.
// Неизвестный email и неверный пароль дают одну и ту же ошибку.
func (s *Service) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	const op = "service.auth.Login"

	lg := log.From(ctx)

	email, emailOK := normalizeEmail(in.Email)

	var v validator
	v.check(emailOK, "email", "must be a valid email address")
	v.check(in.Password != "", "password", "is required")
	if err := v.err(); err != nil {
		s.metrics.AuthEvent("login", "invalid")
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("login_rejected", slog.String("email", redact.Email(email)))
			s.metrics.AuthEvent("login", "rejected")
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !checkPassword(user.PasswordHash, in.Password) {
		lg.Warn("login_rejected", slog.String("email", redact.Email(email)))
		s.metrics.AuthEvent("login", "rejected")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	now := s.now()
	plain, entry, err := s.newRefreshEntry(now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.AppendRefreshToken(ctx, user.ID, entry); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	access, exp, err := s.issueAccessToken(user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("user_logged_in", slog.String("user_id", user.ID))
	s.metrics.AuthEvent("login", "ok")

	return &AuthResult{
		Tokens: models.TokenPair{AccessToken: access, RefreshToken: plain, AccessExpiresAt: exp},
		User:   user.Public(),
	}, nil
}

// Refresh обменивает refresh-токен на новую пару. Предъявленный токен
// погашается атомарно вместе с выпуском нового: из конкурентных вызовов
// с одним токеном успешен ровно один. Неизвестный, просроченный и повторно
// предъявленный токены неразличимы для вызывающего.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	const op = "service.auth.Refresh"

	lg := log.From(ctx)

	if strings.TrimSpace(refreshToken) == "" {
		s.metrics.AuthEvent("refresh", "invalid")
		return nil, fmt.Errorf("%s: %w", op, invalidField("refreshToken", "is required"))
	}

	hash := hashToken(refreshToken)

	if s.rcache != nil {
		reason, revoked, err := s.rcache.Revoked(ctx, hash)
		switch {
		case err != nil:
			lg.Warn("refresh_cache_lookup_failed", slog.String("err", err.Error()))
		case revoked:
			lg.Warn("refresh_replayed",
				slog.String("token", redact.Fingerprint(hash)),
				slog.String("reason", reason),
			)
			s.metrics.AuthEvent("refresh", "rejected")
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}
	}

	now := s.now()
	plain, entry, err := s.newRefreshEntry(now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.RotateRefreshToken(ctx, hash, entry, now)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_rejected", slog.String("token", redact.Fingerprint(hash)))
			s.metrics.AuthEvent("refresh", "rejected")
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.tombstone(ctx, hash, cache.ReasonRotated)

	access, exp, err := s.issueAccessToken(user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("refresh_rotated", slog.String("user_id", user.ID))
	s.metrics.AuthEvent("refresh", "ok")

	return &models.TokenPair{AccessToken: access, RefreshToken: plain, AccessExpiresAt: exp}, nil
}

// Logout закрывает сессию, удаляя refresh-токен из реестра.
// Неизвестный токен не считается ошибкой.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	const op = "service.auth.Logout"

	if strings.TrimSpace(refreshToken) == "" {
		return fmt.Errorf("%s: %w", op, invalidField("refreshToken", "is required"))
	}

	hash := hashToken(refreshToken)

	removed, err := s.storage.RemoveRefreshToken(ctx, hash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if removed {
		s.tombstone(ctx, hash, cache.ReasonLogout)
		log.From(ctx).Info("user_logged_out", slog.String("token", redact.Fingerprint(hash)))
	}
	s.metrics.AuthEvent("logout", "ok")

	return nil
}

// Authenticate проверяет access-токен и возвращает профиль его владельца.
// Реестр refresh-токенов не используется: отзыв сессии вступает в силу
// не позже истечения уже выданного access-токена.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.PublicUser, error) {
	const op = "service.auth.Authenticate"

	id, err := s.verifyAccessToken(accessToken)
	if err != nil {
		s.metrics.AuthEvent("authenticate", "rejected")
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.UserByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.metrics.AuthEvent("authenticate", "rejected")
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user.Public(), nil
}

// PruneExpired удаляет просроченные записи из всех реестров и возвращает
// число затронутых пользователей.
func (s *Service) PruneExpired(ctx context.Context) (int64, error) {
	const op = "service.auth.PruneExpired"

	n, err := s.storage.DeleteExpiredTokens(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// RunRefreshJanitor периодически вызывает PruneExpired до отмены ctx.
// period <= 0 отключает очистку.
func (s *Service) RunRefreshJanitor(ctx context.Context, period time.Duration) {
	if period <= 0 {
		return
	}

	lg := log.From(ctx)

	t := time.NewTicker(period)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.PruneExpired(ctx)
			if err != nil {
				lg.Error("refresh_janitor_failed", slog.String("err", err.Error()))
				continue
			}
			if n > 0 {
				lg.Info("refresh_janitor_pruned", slog.Int64("users", n))
			}
		}
	}
}

// tombstone помечает хэш погашенным в кэше. Ошибки кэша не влияют на результат:
// источник истины — реестр в хранилище.
func (s *Service) tombstone(ctx context.Context, hash, reason string) {
	if s.rcache == nil {
		return
	}

	if err := s.rcache.MarkRevoked(ctx, hash, reason, s.cfg.RefreshTokenTTL); err != nil {
		log.From(ctx).Warn("refresh_cache_mark_failed", slog.String("err", err.Error()))
	}
}

func (s *Service) hashPassword(password string) (string, error) {
	const op = "service.auth.hashPassword"

	cost := s.cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(b), nil
}

// checkPassword сравнивает пароль с хэшем. Пустой хэш (OAuth-пользователь) не совпадает ни с чем.
func checkPassword(hash, password string) bool {
	if hash == "" || len(password) > maxPasswordLen {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// normalizeEmail обрезает пробелы, приводит к нижнему регистру и проверяет формат.
// Адреса с отображаемым именем ("Bob <bob@x.io>") не принимаются.
func normalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", false
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", false
	}

	return email, true
}
