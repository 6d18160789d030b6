package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/storage"
)

func insertRefreshToken(ctx context.Context, q querier, userID uuid.UUID, e models.RefreshTokenEntry) error {
	_, err := q.Exec(ctx, `
        INSERT INTO refresh_tokens (token_hash, user_id, created_at, expires_at)
        VALUES ($1, $2, $3, $4)
    `, e.TokenHash, userID, e.CreatedAt.UTC(), e.ExpiresAt.UTC())

	return err
}

// AppendRefreshToken добавляет запись в реестр пользователя.
func (s *Storage) AppendRefreshToken(ctx context.Context, userID string, entry models.RefreshTokenEntry) error {
	const op = "storage.postgres.AppendRefreshToken"

	uid, ok := parseID(userID)
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if err := insertRefreshToken(ctx, s.db, uid, entry); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RotateRefreshToken удаляет действующую запись с oldHash и добавляет next
// в одной транзакции. Конкурентная транзакция с тем же oldHash ждёт блокировку
// строки и после фиксации первой не находит записи.
func (s *Storage) RotateRefreshToken(ctx context.Context, oldHash string, next models.RefreshTokenEntry, now time.Time) (*models.User, error) {
	const op = "storage.postgres.RotateRefreshToken"

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID uuid.UUID
	err = tx.QueryRow(ctx, `
        DELETE FROM refresh_tokens
        WHERE token_hash = $1 AND expires_at > $2
        RETURNING user_id
    `, oldHash, now.UTC()).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Просроченные дубликаты того же хэша тоже удаляются.
	if _, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, oldHash); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := insertRefreshToken(ctx, tx, userID, next); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET updated_at = $2 WHERE id = $1`, userID, now.UTC()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := loadUser(ctx, tx, `WHERE id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// RemoveRefreshToken удаляет запись с указанным хэшем.
func (s *Storage) RemoveRefreshToken(ctx context.Context, hash string) (bool, error) {
	const op = "storage.postgres.RemoveRefreshToken"

	tag, err := s.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, hash)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected() > 0, nil
}

// DeleteExpiredTokens удаляет все просроченные записи и возвращает число
// пользователей, у которых что-то удалено.
func (s *Storage) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredTokens"

	var n int64
	err := s.db.QueryRow(ctx, `
		WITH pruned AS (
			DELETE FROM refresh_tokens WHERE expires_at <= $1 RETURNING user_id
		)
		SELECT count(DISTINCT user_id) FROM pruned`, now.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}
