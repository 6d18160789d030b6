package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SaveUser вставляет пользователя. Нарушение уникального индекса email — storage.ErrAlreadyExists.
func (m *Mongo) SaveUser(ctx context.Context, user *models.User) (*models.User, error) {
	const op = "storage/mongo/SaveUser"

	doc := userDocFromModel(user)

	res, err := m.users.InsertOne(ctx, doc)
	if err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("%s: inserted id type", op)
	}

	doc.ID = oid
	return doc.toModel(), nil
}

// UserByEmail возвращает пользователя по email.
func (m *Mongo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage/mongo/UserByEmail"

	return m.findUser(ctx, op, bson.D{{Key: "email", Value: strings.TrimSpace(email)}})
}

// UserByID возвращает пользователя по идентификатору.
// Некорректный формат id трактуется как «нет такой записи».
func (m *Mongo) UserByID(ctx context.Context, id string) (*models.User, error) {
	const op = "storage/mongo/UserByID"

	oid, ok := parseOID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return m.findUser(ctx, op, bson.D{{Key: "_id", Value: oid}})
}

// UpdateAvatar сохраняет URL аватара и возвращает обновлённого пользователя.
func (m *Mongo) UpdateAvatar(ctx context.Context, id, avatarURL string, now time.Time) (*models.User, error) {
	const op = "storage/mongo/UpdateAvatar"

	oid, ok := parseOID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var doc userDoc
	err := m.users.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "avatar_url", Value: avatarURL},
			{Key: "updated_at", Value: toMS(now)},
		}}},
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

func (m *Mongo) findUser(ctx context.Context, op string, filter bson.D) (*models.User, error) {
	var doc userDoc
	if err := m.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return doc.toModel(), nil
}
