package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/storage"
)

// querier — общий знаменатель пула и транзакции.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `id::text, email, name, password_hash, oauth_provider, avatar_url, created_at, updated_at`

// SaveUser создает пользователя вместе с начальным реестром в одной транзакции.
func (s *Storage) SaveUser(ctx context.Context, user *models.User) (*models.User, error) {
	const op = "storage.postgres.SaveUser"

	id := uuid.New()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
        INSERT INTO users (id, email, name, password_hash, oauth_provider, avatar_url, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `,
		id, user.Email, user.Name, user.PasswordHash, user.OAuthProvider, user.AvatarURL,
		user.CreatedAt.UTC(), user.UpdatedAt.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, e := range user.RefreshTokens {
		if err := insertRefreshToken(ctx, tx, id, e); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	out, err := loadUser(ctx, tx, `WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// UserByEmail находит пользователя по email.
func (s *Storage) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.postgres.UserByEmail"

	u, err := loadUser(ctx, s.db, `WHERE email = $1`, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	uid, ok := parseID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	u, err := loadUser(ctx, s.db, `WHERE id = $1`, uid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// UpdateAvatar сохраняет URL аватара.
func (s *Storage) UpdateAvatar(ctx context.Context, id, avatarURL string, now time.Time) (*models.User, error) {
	const op = "storage.postgres.UpdateAvatar"

	uid, ok := parseID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	tag, err := s.db.Exec(ctx, `UPDATE users SET avatar_url = $2, updated_at = $3 WHERE id = $1`, uid, avatarURL, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return s.UserByID(ctx, id)
}

// loadUser читает пользователя и его реестр refresh-токенов.
func loadUser(ctx context.Context, q querier, where string, args ...any) (*models.User, error) {
	var u models.User
	err := q.QueryRow(ctx, `SELECT `+userColumns+` FROM users `+where, args...).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.OAuthProvider, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}

	rows, err := q.Query(ctx, `
        SELECT token_hash, created_at, expires_at
        FROM refresh_tokens
        WHERE user_id = $1
        ORDER BY created_at
    `, u.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	u.RefreshTokens = []models.RefreshTokenEntry{}
	for rows.Next() {
		var e models.RefreshTokenEntry
		if err := rows.Scan(&e.TokenHash, &e.CreatedAt, &e.ExpiresAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		e.ExpiresAt = e.ExpiresAt.UTC()
		u.RefreshTokens = append(u.RefreshTokens, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()

	return &u, nil
}
