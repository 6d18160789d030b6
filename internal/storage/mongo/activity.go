package mongo

import (
	"context"
	"fmt"

	"github.com/pribylovaa/go-task-manager/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SaveActivity добавляет запись в журнал.
func (m *Mongo) SaveActivity(ctx context.Context, a *models.Activity) error {
	const op = "storage/mongo/SaveActivity"

	doc := activityDoc{
		Action:    string(a.Action),
		Metadata:  a.Metadata,
		Timestamp: toMS(a.Timestamp),
	}
	doc.TaskID, _ = parseOID(a.TaskID)
	doc.ProjectID, _ = parseOID(a.ProjectID)
	doc.UserID, _ = parseOID(a.UserID)

	if _, err := m.activity.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("%s: insert: %w", op, err)
	}

	return nil
}

// ActivityByProject возвращает последние limit записей проекта (timestamp DESC).
func (m *Mongo) ActivityByProject(ctx context.Context, projectID string, limit int) ([]models.Activity, error) {
	const op = "storage/mongo/ActivityByProject"

	oid, ok := parseOID(projectID)
	if !ok {
		return []models.Activity{}, nil
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := m.activity.Find(ctx, bson.D{{Key: "project_id", Value: oid}}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", op, err)
	}
	defer cur.Close(ctx)

	out := []models.Activity{}
	for cur.Next(ctx) {
		var doc activityDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}
		out = append(out, doc.toModel())
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: cursor: %w", op, err)
	}

	return out, nil
}
