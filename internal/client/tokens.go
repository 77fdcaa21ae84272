package client

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"artmarket/internal/domain"
)

// Tokens es la sesión persistida entre ejecuciones del cliente.
type Tokens struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	Identity     domain.Identity `json:"identity"`
}

// TokenStore persiste los tokens del cliente.
type TokenStore interface {
	Load() (Tokens, bool, error)
	Save(tokens Tokens) error
	Clear() error
}

// MemoryTokenStore guarda los tokens solo en memoria.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens *Tokens
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (m *MemoryTokenStore) Load() (Tokens, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		return Tokens{}, false, nil
	}
	return *m.tokens, true, nil
}

func (m *MemoryTokenStore) Save(tokens Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = &tokens
	return nil
}

func (m *MemoryTokenStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = nil
	return nil
}

// FileTokenStore guarda los tokens como JSON con permisos 0600.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// DefaultSessionFile es ~/.config/artmarket/session.json.
func DefaultSessionFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "artmarket", "session.json"), nil
}

func (f *FileTokenStore) Load() (Tokens, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Tokens{}, false, nil
	}
	if err != nil {
		return Tokens{}, false, err
	}
	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return Tokens{}, false, err
	}
	if tokens.AccessToken == "" && tokens.RefreshToken == "" {
		return Tokens{}, false, nil
	}
	return tokens, true, nil
}

func (f *FileTokenStore) Save(tokens Tokens) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileTokenStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
