package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SaveTask создаёт задачу.
func (m *Mongo) SaveTask(ctx context.Context, t *models.Task) (*models.Task, error) {
	const op = "storage/mongo/SaveTask"

	doc := taskDocFromModel(t)
	if doc.ProjectID.IsZero() || doc.CreatorID.IsZero() {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	res, err := m.tasks.InsertOne(ctx, doc)
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

// TaskByID возвращает задачу по идентификатору.
func (m *Mongo) TaskByID(ctx context.Context, id string) (*models.Task, error) {
	const op = "storage/mongo/TaskByID"

	oid, ok := parseOID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var doc taskDoc
	if err := m.tasks.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return doc.toModel(), nil
}

// ListTasks возвращает задачи исполнителя с необязательными фильтрами по проекту и метке.
// Сортировка: created_at DESC.
func (m *Mongo) ListTasks(ctx context.Context, f models.TaskFilter) ([]models.Task, error) {
	const op = "storage/mongo/ListTasks"

	assignee, ok := parseOID(f.AssigneeID)
	if !ok {
		return []models.Task{}, nil
	}

	filter := bson.D{{Key: "assignee_id", Value: assignee}}

	if strings.TrimSpace(f.ProjectID) != "" {
		project, ok := parseOID(f.ProjectID)
		if !ok {
			return []models.Task{}, nil
		}
		filter = append(filter, bson.E{Key: "project_id", Value: project})
	}

	if label := strings.TrimSpace(f.Label); label != "" {
		filter = append(filter, bson.E{Key: "labels", Value: label})
	}

	cur, err := m.tasks.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", op, err)
	}
	defer cur.Close(ctx)

	out := []models.Task{}
	for cur.Next(ctx) {
		var doc taskDoc
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

// UpdateTask перезаписывает изменяемые поля задачи.
func (m *Mongo) UpdateTask(ctx context.Context, t *models.Task) (*models.Task, error) {
	const op = "storage/mongo/UpdateTask"

	oid, ok := parseOID(t.ID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	doc := taskDocFromModel(t)

	var out taskDoc
	err := m.tasks.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "title", Value: doc.Title},
			{Key: "description", Value: doc.Description},
			{Key: "project_id", Value: doc.ProjectID},
			{Key: "assignee_id", Value: doc.AssigneeID},
			{Key: "due_date", Value: doc.DueDate},
			{Key: "priority", Value: doc.Priority},
			{Key: "labels", Value: doc.Labels},
			{Key: "subtasks", Value: doc.Subtasks},
			{Key: "reminders", Value: doc.Reminders},
			{Key: "is_completed", Value: doc.IsCompleted},
			{Key: "updated_at", Value: doc.UpdatedAt},
		}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out.toModel(), nil
}

// DeleteTask удаляет задачу.
func (m *Mongo) DeleteTask(ctx context.Context, id string) error {
	const op = "storage/mongo/DeleteTask"

	oid, ok := parseOID(id)
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	res, err := m.tasks.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// DeleteTasksByProject удаляет все задачи проекта и возвращает их число.
func (m *Mongo) DeleteTasksByProject(ctx context.Context, projectID string) (int64, error) {
	const op = "storage/mongo/DeleteTasksByProject"

	oid, ok := parseOID(projectID)
	if !ok {
		return 0, nil
	}

	res, err := m.tasks.DeleteMany(ctx, bson.D{{Key: "project_id", Value: oid}})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return res.DeletedCount, nil
}
