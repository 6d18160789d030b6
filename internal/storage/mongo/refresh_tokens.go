package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AppendRefreshToken добавляет запись в реестр через $push.
// Конкурентные входы одного пользователя не затирают друг друга.
func (m *Mongo) AppendRefreshToken(ctx context.Context, userID string, entry models.RefreshTokenEntry) error {
	const op = "storage/mongo/AppendRefreshToken"

	oid, ok := parseOID(userID)
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	res, err := m.users.UpdateByID(ctx, oid, bson.D{
		{Key: "$push", Value: bson.D{{Key: "refresh_tokens", Value: refreshDocFromModel(entry)}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: toMS(entry.CreatedAt)}}},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// RotateRefreshToken выполняет «удалить, если совпал, затем добавить» одной
// операцией FindOneAndUpdate: фильтр требует действующую запись с oldHash,
// а pipeline-обновление отфильтровывает её и дописывает next.
// Повторное предъявление того же токена фильтр уже не пропустит.
func (m *Mongo) RotateRefreshToken(ctx context.Context, oldHash string, next models.RefreshTokenEntry, now time.Time) (*models.User, error) {
	const op = "storage/mongo/RotateRefreshToken"

	filter := bson.D{{Key: "refresh_tokens", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
		{Key: "token", Value: oldHash},
		{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: toMS(now)}}},
	}}}}}

	nextDoc := refreshDocFromModel(next)

	update := mongodriver.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "refresh_tokens", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
				bson.D{{Key: "$filter", Value: bson.D{
					{Key: "input", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$refresh_tokens", bson.A{}}}}},
					{Key: "as", Value: "rt"},
					{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$rt.token", oldHash}}}},
				}}},
				bson.A{bson.D{
					{Key: "token", Value: bson.D{{Key: "$literal", Value: nextDoc.Token}}},
					{Key: "expires_at", Value: nextDoc.ExpiresAt},
					{Key: "created_at", Value: nextDoc.CreatedAt},
				}},
			}}}},
			{Key: "updated_at", Value: toMS(now)},
		}}},
	}

	var doc userDoc
	err := m.users.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return doc.toModel(), nil
}

// RemoveRefreshToken удаляет запись с указанным хэшем из реестра её владельца.
func (m *Mongo) RemoveRefreshToken(ctx context.Context, hash string) (bool, error) {
	const op = "storage/mongo/RemoveRefreshToken"

	res, err := m.users.UpdateOne(ctx,
		bson.D{{Key: "refresh_tokens.token", Value: hash}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "refresh_tokens", Value: bson.D{{Key: "token", Value: hash}}}}}},
	)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return res.ModifiedCount > 0, nil
}

// DeleteExpiredTokens вычищает просроченные записи у всех пользователей.
// Возвращает число затронутых пользователей.
func (m *Mongo) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage/mongo/DeleteExpiredTokens"

	cutoff := toMS(now)

	res, err := m.users.UpdateMany(ctx,
		bson.D{{Key: "refresh_tokens.expires_at", Value: bson.D{{Key: "$lte", Value: cutoff}}}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "refresh_tokens", Value: bson.D{
			{Key: "expires_at", Value: bson.D{{Key: "$lte", Value: cutoff}}},
		}}}}},
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return res.ModifiedCount, nil
}
