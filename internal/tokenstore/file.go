package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fileContents is the on-disk layout of the session file
type fileContents struct {
	Token     string   `json:"token"`
	TokenType string   `json:"token_type,omitempty"`
	AuthFlag  authFlag `json:"auth-storage"`
	SavedAt   string   `json:"saved_at,omitempty"`
}

// FileStore keeps the session in a JSON file readable only by the owner
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the session file location
func (f *FileStore) Path() string {
	return f.path
}

// Load implements Store
func (f *FileStore) Load(ctx context.Context) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var contents fileContents
	if err := json.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("failed to decode session file: %w", err)
	}

	// Authentication is derived from the token alone, even if the flag was
	// edited by hand.
	if contents.Token == "" {
		return nil, nil
	}

	sess := &Session{
		AccessToken:   contents.Token,
		TokenType:     contents.TokenType,
		Authenticated: true,
	}
	if t, err := parseTime(contents.SavedAt); err == nil {
		sess.SavedAt = t
	}
	return sess, nil
}

// Save implements Store. The file is replaced atomically.
func (f *FileStore) Save(ctx context.Context, session Session) error {
	session = normalize(session)
	if !session.Authenticated {
		return f.Clear(ctx)
	}

	data, err := json.MarshalIndent(fileContents{
		Token:     session.AccessToken,
		TokenType: session.TokenType,
		AuthFlag:  authFlag{IsAuthenticated: true},
		SavedAt:   formatTime(session.SavedAt),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Clear implements Store
func (f *FileStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
