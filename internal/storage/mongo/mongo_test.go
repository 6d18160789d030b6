package mongo

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/storage"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Интеграционные тесты: MongoDB поднимается в контейнере один раз на пакет.
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/mongo -v -race -count=1

const testTimeout = 10 * time.Second

func TestMain(m *testing.M) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	mongoC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7.0",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start mongo testcontainer: %v\n", err)
		os.Exit(1)
	}

	host, err := mongoC.Host(ctx)
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}

	port, err := mongoC.MappedPort(ctx, "27017/tcp")
	if err != nil {
		_ = mongoC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get mapped port: %v\n", err)
		os.Exit(1)
	}

	_ = os.Setenv("DATABASE_URL", fmt.Sprintf("mongodb://%s:%s", host, port.Port()))

	code := m.Run()

	_ = mongoC.Terminate(context.Background())
	os.Exit(code)
}

// mustNewMongo создаёт подключение к отдельной тестовой БД и регистрирует её удаление.
func mustNewMongo(t *testing.T) *Mongo {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	uri := os.Getenv("DATABASE_URL") + "/tasks_test_" + uuid.NewString()

	m, err := New(ctx, uri)
	require.NoError(t, err, "DATABASE_URL=%s", uri)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		_ = m.db.Drop(ctx)
		_ = m.Close(ctx)
	})

	return m
}

func newTestUser(email string, now time.Time, entries ...models.RefreshTokenEntry) *models.User {
	return &models.User{
		Email:         email,
		Name:          "Tester",
		PasswordHash:  "$2a$10$hash",
		RefreshTokens: entries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func entry(hash string, now time.Time, ttl time.Duration) models.RefreshTokenEntry {
	return models.RefreshTokenEntry{TokenHash: hash, CreatedAt: now, ExpiresAt: now.Add(ttl)}
}

func TestDatabaseFromURI(t *testing.T) {
	t.Parallel()

	require.Equal(t, "tasks", databaseFromURI("mongodb://localhost:27017/tasks"))
	require.Equal(t, "tasks", databaseFromURI("mongodb://u:p@localhost:27017/tasks?authSource=admin"))
	require.Equal(t, defaultDBName, databaseFromURI("mongodb://localhost:27017"))
	require.Equal(t, defaultDBName, databaseFromURI("::bad::"))
}

func TestParseOID(t *testing.T) {
	t.Parallel()

	oid := primitive.NewObjectID()
	got, ok := parseOID(" " + oid.Hex() + " ")
	require.True(t, ok)
	require.Equal(t, oid, got)

	_, ok = parseOID("not-hex")
	require.False(t, ok)
	require.Empty(t, hexOrEmpty(primitive.NilObjectID))
}

func TestTaskDocRoundTrip_KeepsOptionalFields(t *testing.T) {
	t.Parallel()

	due := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)
	in := &models.Task{
		Title:     "t",
		ProjectID: primitive.NewObjectID().Hex(),
		CreatorID: primitive.NewObjectID().Hex(),
		DueDate:   &due,
		Priority:  models.PriorityHigh,
		Subtasks:  []models.Subtask{{Title: "s", IsDone: true}},
		Reminders: []models.Reminder{{Method: models.ReminderEmail, Time: due}},
	}

	doc := taskDocFromModel(in)
	require.Equal(t, []string{}, doc.Labels)
	require.True(t, doc.AssigneeID.IsZero())

	out := doc.toModel()
	require.Equal(t, in.ProjectID, out.ProjectID)
	require.Empty(t, out.AssigneeID)
	require.Equal(t, due.Truncate(time.Millisecond), *out.DueDate)
	require.Equal(t, in.Subtasks, out.Subtasks)
	require.Equal(t, models.ReminderEmail, out.Reminders[0].Method)
}

func TestUsers_SaveAndLookup(t *testing.T) {
	m := mustNewMongo(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	now := time.Now().UTC()
	u, err := m.SaveUser(ctx, newTestUser("alice@example.com", now, entry("h1", now, time.Hour)))
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	require.Len(t, u.RefreshTokens, 1)

	byEmail, err := m.UserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	byID, err := m.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", byID.Email)

	_, err = m.UserByID(ctx, "bad-id")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = m.UserByID(ctx, primitive.NewObjectID().Hex())
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = m.SaveUser(ctx, newTestUser("alice@example.com", now))
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	upd, err := m.UpdateAvatar(ctx, u.ID, "https://cdn/a.png", now)
	require.NoError(t, err)
	require.Equal(t, "https://cdn/a.png", upd.AvatarURL)
}

func TestRefreshTokens_AppendRotateRemove(t *testing.T) {
	m := mustNewMongo(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	now := time.Now().UTC()
	u, err := m.SaveUser(ctx, newTestUser("bob@example.com", now, entry("h1", now, time.Hour)))
	require.NoError(t, err)

	// Второй вход не затирает первую сессию.
	require.NoError(t, m.AppendRefreshToken(ctx, u.ID, entry("h2", now, time.Hour)))

	rotated, err := m.RotateRefreshToken(ctx, "h1", entry("h3", now, time.Hour), now)
	require.NoError(t, err)
	require.Equal(t, u.ID, rotated.ID)

	hashes := make([]string, 0, len(rotated.RefreshTokens))
	for _, e := range rotated.RefreshTokens {
		hashes = append(hashes, e.TokenHash)
	}
	require.ElementsMatch(t, []string{"h2", "h3"}, hashes)

	// Повторное предъявление h1 — отказ.
	_, err = m.RotateRefreshToken(ctx, "h1", entry("h4", now, time.Hour), now)
	require.ErrorIs(t, err, storage.ErrNotFound)

	removed, err := m.RemoveRefreshToken(ctx, "h2")
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = m.RemoveRefreshToken(ctx, "h2")
	require.NoError(t, err)
	require.False(t, removed)

	require.ErrorIs(t, m.AppendRefreshToken(ctx, primitive.NewObjectID().Hex(), entry("x", now, time.Hour)), storage.ErrNotFound)
}

func TestRefreshTokens_ExpiredIsNotRotated(t *testing.T) {
	m := mustNewMongo(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	now := time.Now().UTC()
	_, err := m.SaveUser(ctx, newTestUser("carol@example.com", now,
		entry("old", now.Add(-2*time.Hour), time.Hour),
		entry("older", now.Add(-3*time.Hour), time.Hour),
		entry("live", now, time.Hour),
	))
	require.NoError(t, err)

	_, err = m.RotateRefreshToken(ctx, "old", entry("new", now, time.Hour), now)
	require.ErrorIs(t, err, storage.ErrNotFound)

	// Счёт идёт по пользователям: две просроченные записи одного реестра — 1.
	n, err := m.DeleteExpiredTokens(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = m.DeleteExpiredTokens(ctx, now)
	require.NoError(t, err)
	require.Zero(t, n)

	u, err := m.UserByEmail(ctx, "carol@example.com")
	require.NoError(t, err)
	require.Len(t, u.RefreshTokens, 1)
	require.Equal(t, "live", u.RefreshTokens[0].TokenHash)
}

func TestRefreshTokens_ConcurrentRotation_SingleWinner(t *testing.T) {
	m := mustNewMongo(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	now := time.Now().UTC()
	_, err := m.SaveUser(ctx, newTestUser("dave@example.com", now, entry("shared", now, time.Hour)))
	require.NoError(t, err)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.RotateRefreshToken(ctx, "shared", entry(fmt.Sprintf("next-%d", i), now, time.Hour), now)
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, success)

	u, err := m.UserByEmail(ctx, "dave@example.com")
	require.NoError(t, err)
	require.Len(t, u.RefreshTokens, 1)
}

func TestProjectsTasksActivity(t *testing.T) {
	m := mustNewMongo(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	now := time.Now().UTC()
	owner := primitive.NewObjectID().Hex()
	member := primitive.NewObjectID().Hex()

	p, err := m.SaveProject(ctx, &models.Project{Name: "P", OwnerID: owner, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	require.Empty(t, p.MemberIDs)

	p, err = m.AddProjectMember(ctx, p.ID, member, now)
	require.NoError(t, err)
	p, err = m.AddProjectMember(ctx, p.ID, member, now)
	require.NoError(t, err)
	require.Equal(t, []string{member}, p.MemberIDs)

	list, err := m.ProjectsByUser(ctx, member)
	require.NoError(t, err)
	require.Len(t, list, 1)

	p, err = m.RenameProject(ctx, p.ID, "Renamed", now)
	require.NoError(t, err)
	require.Equal(t, "Renamed", p.Name)

	task, err := m.SaveTask(ctx, &models.Task{
		Title: "T", ProjectID: p.ID, CreatorID: owner, AssigneeID: member,
		Priority: models.PriorityLow, Labels: []string{"bug"}, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	tasks, err := m.ListTasks(ctx, models.TaskFilter{AssigneeID: member, Label: "bug"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	tasks, err = m.ListTasks(ctx, models.TaskFilter{AssigneeID: member, Label: "feature"})
	require.NoError(t, err)
	require.Empty(t, tasks)

	task.IsCompleted = true
	task.UpdatedAt = now
	upd, err := m.UpdateTask(ctx, task)
	require.NoError(t, err)
	require.True(t, upd.IsCompleted)

	require.NoError(t, m.SaveActivity(ctx, &models.Activity{
		TaskID: task.ID, ProjectID: p.ID, UserID: owner, Action: models.ActionCompleted, Timestamp: now,
	}))
	require.NoError(t, m.SaveActivity(ctx, &models.Activity{
		ProjectID: p.ID, UserID: owner, Action: models.ActionUpdate, Timestamp: now.Add(time.Second),
	}))

	acts, err := m.ActivityByProject(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, acts, 2)
	require.Equal(t, models.ActionUpdate, acts[0].Action)
	require.Empty(t, acts[0].TaskID)

	n, err := m.DeleteTasksByProject(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.NoError(t, m.DeleteProject(ctx, p.ID))
	require.ErrorIs(t, m.DeleteProject(ctx, p.ID), storage.ErrNotFound)
}
