package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Session — пара токенов текущего входа.
type Session struct {
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

// TokenStore хранит сессию клиента между запросами (и, для FileStore, между запусками).
type TokenStore interface {
	Load() (Session, bool)
	Save(s Session) error
	Clear() error
}

// MemoryStore — потокобезопасное хранилище сессии в памяти.
type MemoryStore struct {
	mu sync.RWMutex
	s  *Session
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.s == nil {
		return Session{}, false
	}
	return *m.s, true
}

func (m *MemoryStore) Save(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = &s
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = nil
	return nil
}

// FileStore хранит сессию в JSON-файле с правами 0600.
// Кэширует содержимое в памяти; файл читается лениво при первом Load.
type FileStore struct {
	path string

	mu     sync.Mutex
	loaded bool
	mem    MemoryStore
}

func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

func (f *FileStore) Load() (Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.loaded {
		f.loaded = true
		data, err := os.ReadFile(f.path)
		if err == nil {
			var s Session
			if json.Unmarshal(data, &s) == nil && s.RefreshToken != "" {
				_ = f.mem.Save(s)
			}
		}
	}

	return f.mem.Load()
}

func (f *FileStore) Save(s Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("client: encode session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("client: session dir: %w", err)
	}

	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("client: write session: %w", err)
	}

	f.loaded = true
	return f.mem.Save(s)
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.loaded = true
	_ = f.mem.Clear()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("client: remove session: %w", err)
	}

	return nil
}
