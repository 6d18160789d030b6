package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SaveProject создаёт проект. Участники с некорректным ID отбрасываются.
func (m *Mongo) SaveProject(ctx context.Context, p *models.Project) (*models.Project, error) {
	const op = "storage/mongo/SaveProject"

	owner, ok := parseOID(p.OwnerID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	doc := projectDoc{
		Name:      p.Name,
		OwnerID:   owner,
		MemberIDs: oidsFromHex(p.MemberIDs),
		CreatedAt: toMS(p.CreatedAt),
		UpdatedAt: toMS(p.UpdatedAt),
	}

	res, err := m.projects.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("%s: inserted id type", op)
	}

	doc.ID = oid
	return doc.toModel(), nil
}

// ProjectByID возвращает проект по идентификатору.
func (m *Mongo) ProjectByID(ctx context.Context, id string) (*models.Project, error) {
	const op = "storage/mongo/ProjectByID"

	oid, ok := parseOID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var doc projectDoc
	if err := m.projects.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return doc.toModel(), nil
}

// ProjectsByUser возвращает проекты, где пользователь — владелец или участник.
// Сортировка: created_at DESC.
func (m *Mongo) ProjectsByUser(ctx context.Context, userID string) ([]models.Project, error) {
	const op = "storage/mongo/ProjectsByUser"

	oid, ok := parseOID(userID)
	if !ok {
		return []models.Project{}, nil
	}

	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "owner_id", Value: oid}},
		bson.D{{Key: "member_ids", Value: oid}},
	}}}

	cur, err := m.projects.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", op, err)
	}
	defer cur.Close(ctx)

	out := []models.Project{}
	for cur.Next(ctx) {
		var doc projectDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}
		out = append(out, *doc.toModel())
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: cursor: %w", op, err)
	}

	return out, nil
}

// RenameProject меняет имя проекта.
func (m *Mongo) RenameProject(ctx context.Context, id, name string, now time.Time) (*models.Project, error) {
	const op = "storage/mongo/RenameProject"

	return m.updateProject(ctx, op, id, bson.D{
		{Key: "$set", Value: bson.D{{Key: "name", Value: name}, {Key: "updated_at", Value: toMS(now)}}},
	})
}

// DeleteProject удаляет проект. Задачи проекта удаляются отдельно (DeleteTasksByProject).
func (m *Mongo) DeleteProject(ctx context.Context, id string) error {
	const op = "storage/mongo/DeleteProject"

	oid, ok := parseOID(id)
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	res, err := m.projects.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// AddProjectMember добавляет участника через $addToSet (идемпотентно).
func (m *Mongo) AddProjectMember(ctx context.Context, id, userID string, now time.Time) (*models.Project, error) {
	const op = "storage/mongo/AddProjectMember"

	member, ok := parseOID(userID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return m.updateProject(ctx, op, id, bson.D{
		{Key: "$addToSet", Value: bson.D{{Key: "member_ids", Value: member}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: toMS(now)}}},
	})
}

// RemoveProjectMember удаляет участника через $pull.
func (m *Mongo) RemoveProjectMember(ctx context.Context, id, userID string, now time.Time) (*models.Project, error) {
	const op = "storage/mongo/RemoveProjectMember"

	member, ok := parseOID(userID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return m.updateProject(ctx, op, id, bson.D{
		{Key: "$pull", Value: bson.D{{Key: "member_ids", Value: member}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: toMS(now)}}},
	})
}

func (m *Mongo) updateProject(ctx context.Context, op, id string, update bson.D) (*models.Project, error) {
	oid, ok := parseOID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var doc projectDoc
	err := m.projects.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, update,
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
