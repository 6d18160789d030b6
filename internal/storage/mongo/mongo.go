// mongo — реализация storage.Storage поверх MongoDB.
//
// Пользователь хранится одним документом вместе с реестром refresh-токенов
// (поле refresh_tokens), поэтому ротация токена — это одна атомарная
// операция FindOneAndUpdate над одним документом.
package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pribylovaa/go-task-manager/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection    = "users"
	projectsCollection = "projects"
	tasksCollection    = "tasks"
	activityCollection = "activity_logs"
	defaultDBName      = "taskmanager"
)

// Mongo - тонкий адаптер для подключения и коллекций MongoDB.
type Mongo struct {
	client   *mongodriver.Client
	db       *mongodriver.Database
	users    *mongodriver.Collection
	projects *mongodriver.Collection
	tasks    *mongodriver.Collection
	activity *mongodriver.Collection
}

// New подключается к MongoDB, проверяет его, подготавливает коллекции и обеспечивает индексацию.
func New(ctx context.Context, uri string) (*Mongo, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo: empty database url")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := cli.Database(databaseFromURI(uri))

	m := &Mongo{
		client:   cli,
		db:       db,
		users:    db.Collection(usersCollection),
		projects: db.Collection(projectsCollection),
		tasks:    db.Collection(tasksCollection),
		activity: db.Collection(activityCollection),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close(ctx)
		return nil, err
	}

	return m, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// ensureIndexes создаёт индексы, необходимые для корректности и основных выборок:
//   - users: уникальный email, поиск по хэшу refresh-токена;
//   - projects: владелец и участники;
//   - tasks: исполнитель+проект, проект;
//   - activity_logs: проект + время (desc).
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	indexes := map[*mongodriver.Collection][]mongodriver.IndexModel{
		m.users: {
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetName("email_unique").SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "refresh_tokens.token", Value: 1}},
				Options: options.Index().SetName("refresh_token"),
			},
		},
		m.projects: {
			{Keys: bson.D{{Key: "owner_id", Value: 1}}, Options: options.Index().SetName("owner")},
			{Keys: bson.D{{Key: "member_ids", Value: 1}}, Options: options.Index().SetName("members")},
		},
		m.tasks: {
			{Keys: bson.D{{Key: "assignee_id", Value: 1}, {Key: "project_id", Value: 1}}, Options: options.Index().SetName("assignee_project")},
			{Keys: bson.D{{Key: "project_id", Value: 1}}, Options: options.Index().SetName("project")},
		},
		m.activity: {
			{Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "timestamp", Value: -1}}, Options: options.Index().SetName("project_ts_desc")},
		},
	}

	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo ensure indexes %s: %w", coll.Name(), err)
		}
	}

	return nil
}

// databaseFromURI извлекает имя базы данных из URI-пути mongodb.
// Если оно отсутствует или не поддается расшифровке, возвращает значение по умолчанию.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}

// toMS приводит время к точности MongoDB DateTime (миллисекунды, UTC).
func toMS(t time.Time) time.Time { return t.UTC().Truncate(time.Millisecond) }

var _ storage.Storage = (*Mongo)(nil)
