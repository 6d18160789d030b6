package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pribylovaa/go-task-manager/internal/models"
	"github.com/pribylovaa/go-task-manager/internal/storage"
)

// Интеграционные тесты PostgreSQL-хранилища:
//   - поднимают postgres:16-alpine через testcontainers-go;
//   - применяют встроенные миграции goose (Migrate);
//   - проверяют реестр refresh-токенов, включая конкурентную ротацию.
//
// Запуск локально:
//   GO_TEST_INTEGRATION=1 go test ./internal/storage/postgres -v -race -count=1

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "user", "POSTGRES_PASSWORD": "pass", "POSTGRES_DB": "db"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "5432/tcp")
	dsn := fmt.Sprintf("postgres://user:pass@%s:%s/db?sslmode=disable", host, port.Port())

	require.NoError(t, Migrate(ctx, dsn))

	st, err := New(ctx, dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = st.Close(context.Background())
		_ = c.Terminate(context.Background())
	})

	return st
}

func entry(hash string, now time.Time, ttl time.Duration) models.RefreshTokenEntry {
	return models.RefreshTokenEntry{TokenHash: hash, CreatedAt: now, ExpiresAt: now.Add(ttl)}
}

func saveUser(t *testing.T, st *Storage, email string, entries ...models.RefreshTokenEntry) *models.User {
	t.Helper()
	now := time.Now().UTC()
	u, err := st.SaveUser(context.Background(), &models.User{
		Email: email, Name: "Tester", PasswordHash: "$2a$10$hash",
		RefreshTokens: entries, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	return u
}

func TestParseID(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	got, ok := parseID(id.String())
	require.True(t, ok)
	require.Equal(t, id, got)

	_, ok = parseID("nope")
	require.False(t, ok)
}

func TestPostgres_Users(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	u := saveUser(t, st, "alice@example.com", entry("h1", now, time.Hour))
	require.Len(t, u.RefreshTokens, 1)

	got, err := st.UserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = st.UserByID(ctx, "not-a-uuid")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.UserByID(ctx, uuid.NewString())
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.SaveUser(ctx, &models.User{Email: "alice@example.com", Name: "Dup", CreatedAt: now, UpdatedAt: now})
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	upd, err := st.UpdateAvatar(ctx, u.ID, "https://cdn/a.png", now)
	require.NoError(t, err)
	require.Equal(t, "https://cdn/a.png", upd.AvatarURL)
}

func TestPostgres_RefreshLedger(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	u := saveUser(t, st, "bob@example.com", entry("h1", now, time.Hour))
	require.NoError(t, st.AppendRefreshToken(ctx, u.ID, entry("h2", now, time.Hour)))
	require.ErrorIs(t, st.AppendRefreshToken(ctx, uuid.NewString(), entry("x", now, time.Hour)), storage.ErrNotFound)

	rotated, err := st.RotateRefreshToken(ctx, "h1", entry("h3", now, time.Hour), now)
	require.NoError(t, err)
	require.Equal(t, u.ID, rotated.ID)
	require.Len(t, rotated.RefreshTokens, 2)

	_, err = st.RotateRefreshToken(ctx, "h1", entry("h4", now, time.Hour), now)
	require.ErrorIs(t, err, storage.ErrNotFound)

	removed, err := st.RemoveRefreshToken(ctx, "h2")
	require.NoError(t, err)
	require.True(t, removed)

	saveUser(t, st, "old@example.com",
		entry("stale", now.Add(-2*time.Hour), time.Hour),
		entry("stale-2", now.Add(-3*time.Hour), time.Hour),
	)
	_, err = st.RotateRefreshToken(ctx, "stale", entry("fresh", now, time.Hour), now)
	require.ErrorIs(t, err, storage.ErrNotFound)

	// Две просроченные записи одного пользователя — один затронутый пользователь.
	n, err := st.DeleteExpiredTokens(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = st.DeleteExpiredTokens(ctx, now)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestPostgres_ConcurrentRotation_SingleWinner(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	saveUser(t, st, "carol@example.com", entry("shared", now, time.Hour))

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
			if _, err := st.RotateRefreshToken(ctx, "shared", entry(fmt.Sprintf("n-%d", i), now, time.Hour), now); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, success)

	u, err := st.UserByEmail(ctx, "carol@example.com")
	require.NoError(t, err)
	require.Len(t, u.RefreshTokens, 1)
}

func TestPostgres_ProjectsTasksActivity(t *testing.T) {
	st := startPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	owner, member := uuid.NewString(), uuid.NewString()

	p, err := st.SaveProject(ctx, &models.Project{Name: "P", OwnerID: owner, CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	require.Empty(t, p.MemberIDs)

	p, err = st.AddProjectMember(ctx, p.ID, member, now)
	require.NoError(t, err)
	p, err = st.AddProjectMember(ctx, p.ID, member, now)
	require.NoError(t, err)
	require.Equal(t, []string{member}, p.MemberIDs)

	list, err := st.ProjectsByUser(ctx, member)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = st.AddProjectMember(ctx, uuid.NewString(), member, now)
	require.ErrorIs(t, err, storage.ErrNotFound)

	due := now.Add(24 * time.Hour)
	task, err := st.SaveTask(ctx, &models.Task{
		Title: "T", ProjectID: p.ID, CreatorID: owner, AssigneeID: member, DueDate: &due,
		Priority: models.PriorityMedium, Labels: []string{"bug"},
		Subtasks:  []models.Subtask{{Title: "s1"}},
		Reminders: []models.Reminder{{Method: models.ReminderPush, Time: due}},
		CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	require.Equal(t, models.PriorityMedium, task.Priority)
	require.Len(t, task.Subtasks, 1)
	require.NotNil(t, task.DueDate)

	_, err = st.SaveTask(ctx, &models.Task{Title: "X", ProjectID: uuid.NewString(), CreatorID: owner, AssigneeID: owner,
		Priority: models.PriorityLow, CreatedAt: now, UpdatedAt: now})
	require.ErrorIs(t, err, storage.ErrNotFound)

	tasks, err := st.ListTasks(ctx, models.TaskFilter{AssigneeID: member, ProjectID: p.ID, Label: "bug"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	task.DueDate = nil
	task.IsCompleted = true
	upd, err := st.UpdateTask(ctx, task)
	require.NoError(t, err)
	require.True(t, upd.IsCompleted)
	require.Nil(t, upd.DueDate)

	require.NoError(t, st.SaveActivity(ctx, &models.Activity{
		TaskID: task.ID, ProjectID: p.ID, UserID: owner, Action: models.ActionCompleted,
		Metadata: map[string]string{"title": "T"}, Timestamp: now,
	}))
	acts, err := st.ActivityByProject(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	require.Equal(t, "T", acts[0].Metadata["title"])

	require.NoError(t, st.DeleteProject(ctx, p.ID))
	_, err = st.TaskByID(ctx, task.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}
