package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeAPI — минимальный сервер: /projects принимает только текущий access-токен,
// /auth/refresh меняет пару токенов (или отвечает 401, если fail).
type fakeAPI struct {
	mu      sync.Mutex
	access  string
	refresh string
	gen     int

	refreshCalls atomic.Int32
	fail         bool
	delay        time.Duration
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		time.Sleep(f.delay)

		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()

		if f.fail || body.RefreshToken != f.refresh {
			writeErr(w, http.StatusUnauthorized, "unauthenticated", "unauthorized")
			return
		}

		f.gen++
		f.access = "A" + string(rune('0'+f.gen))
		f.refresh = "R" + string(rune('0'+f.gen))
		_ = json.NewEncoder(w).Encode(authResponse{
			AccessToken: f.access, RefreshToken: f.refresh, AccessExpiresAt: time.Now().Add(time.Minute).Unix(),
		})
	})

	mux.HandleFunc("GET /api/projects", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		want := "Bearer " + f.access
		f.mu.Unlock()

		if r.Header.Get("Authorization") != want {
			writeErr(w, http.StatusUnauthorized, "unauthenticated", "unauthorized")
			return
		}
		_ = json.NewEncoder(w).Encode([]Project{{ID: "p1", Name: "Inbox"}})
	})

	mux.HandleFunc("POST /api/projects", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"invalid_argument","message":"validation failed","details":[{"field":"name","message":"must not be empty"}]}}`))
	})

	return mux
}

func writeErr(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"code": code, "message": msg}})
}

// setup: сервер уже считает текущим A1/R1, а у клиента устаревший A0 с действующим R1.
func setup(t *testing.T, fail bool) (*Client, *fakeAPI, TokenStore) {
	t.Helper()

	api := &fakeAPI{access: "A1", refresh: "R1", gen: 1, fail: fail, delay: 50 * time.Millisecond}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	store := NewMemoryStore()
	require.NoError(t, store.Save(Session{AccessToken: "A0", RefreshToken: "R1"}))

	return New(srv.URL+"/api", store), api, store
}

func TestClient_ConcurrentUnauthorized_SingleRefresh(t *testing.T) {
	c, api, store := setup(t, false)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.ListProjects(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, int32(1), api.refreshCalls.Load())

	s, ok := store.Load()
	require.True(t, ok)
	require.Equal(t, "A2", s.AccessToken)
	require.Equal(t, "R2", s.RefreshToken)
}

func TestClient_SharedRefreshFailure_FailsAllAndClears(t *testing.T) {
	c, api, store := setup(t, true)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.ListProjects(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, ErrUnauthenticated)
	}
	require.Equal(t, int32(1), api.refreshCalls.Load())

	_, ok := store.Load()
	require.False(t, ok)
}

func TestClient_APIErrorDecoded(t *testing.T) {
	c, _, _ := setup(t, false)

	_, err := c.CreateProject(context.Background(), "")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "invalid_argument", apiErr.Code)
	require.Len(t, apiErr.Details, 1)
	require.Equal(t, "name", apiErr.Details[0].Field)
}

func TestClient_NoSession(t *testing.T) {
	c := New("http://127.0.0.1:0/api", nil)

	_, err := c.Me(context.Background())
	require.ErrorIs(t, err, ErrNoSession)
	require.NoError(t, c.Logout(context.Background()))
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	fs := NewFileStore(path)
	_, ok := fs.Load()
	require.False(t, ok)

	want := Session{AccessToken: "a", RefreshToken: "r", AccessExpiresAt: time.Unix(1700000000, 0).UTC()}
	require.NoError(t, fs.Save(want))

	got, ok := NewFileStore(path).Load()
	require.True(t, ok)
	require.Equal(t, want, got)

	require.NoError(t, fs.Clear())
	_, ok = NewFileStore(path).Load()
	require.False(t, ok)
	require.NoError(t, fs.Clear())
}
