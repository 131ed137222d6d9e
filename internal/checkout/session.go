package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/imrishuroy/storybook-orderflow/internal/catalog"
)

// Draft is the arrangement chosen before an order exists.
type Draft struct {
	Title     string          `json:"title"`
	Subtitle  string          `json:"subtitle,omitempty"`
	Message   string          `json:"message,omitempty"`
	ProductID string          `json:"product_id"`
	Product   catalog.Product `json:"product"`
}

// Session is the customer's checkout state between CLI invocations.
// Staged maps a content fingerprint to the storage id of a confirmed upload.
type Session struct {
	Draft   *Draft            `json:"draft,omitempty"`
	OrderID string            `json:"order_id,omitempty"`
	Staged  map[string]string `json:"staged,omitempty"`
}

// Reset forgets the draft, the order and any staged uploads.
func (s *Session) Reset() {
	s.Draft = nil
	s.OrderID = ""
	s.Staged = nil
}

// SessionStore persists a Session as a JSON file.
type SessionStore struct {
	path string
}

func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// DefaultSessionPath is ~/.storybook/session.json.
func DefaultSessionPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".storybook", "session.json"), nil
}

func (s *SessionStore) Path() string { return s.path }

// Load returns an empty session when the file does not exist yet.
func (s *SessionStore) Load() (*Session, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", s.path, err)
	}
	return &sess, nil
}

// Save writes the session through a temp file so a crash never leaves a
// truncated session behind.
func (s *SessionStore) Save(sess *Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	raw, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}
