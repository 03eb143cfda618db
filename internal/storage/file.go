package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/drojas/tienda/internal/domain"
)

const stateFileName = "state.json"

// state is the on-disk shape. Carts are keyed by the owning account's
// email so that switching accounts on the same machine never leaks a cart
// between users.
type state struct {
	Token string                       `json:"token,omitempty"`
	Carts map[string][]domain.CartLine `json:"carts,omitempty"`
}

// FileStore keeps the state in a single JSON file under the state
// directory, loaded once at construction and flushed atomically (write to
// a temp file, then rename) on every mutation.
type FileStore struct {
	mu     sync.Mutex
	path   string
	state  state
	logger *slog.Logger
}

func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	s := &FileStore{
		path:   filepath.Join(dir, stateFileName),
		logger: logger.With("component", "file_store"),
	}

	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// first run
	case err != nil:
		return nil, fmt.Errorf("read state file: %w", err)
	default:
		if err := json.Unmarshal(raw, &s.state); err != nil {
			// A corrupt state file must never block startup; the worst
			// case is re-login and an empty cart.
			s.logger.Warn("state file corrupt, starting empty", "path", s.path, "error", err)
			s.state = state{}
		}
	}

	return s, nil
}

func (s *FileStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Token
}

func (s *FileStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Token = token
	return s.flush()
}

func (s *FileStore) ClearToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Token = ""
	return s.flush()
}

func (s *FileStore) LoadCart(owner string) ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines, ok := s.state.Carts[cartKey(owner)]
	if !ok {
		return nil, nil
	}
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out, nil
}

func (s *FileStore) SaveCart(owner string, lines []domain.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Carts == nil {
		s.state.Carts = make(map[string][]domain.CartLine)
	}
	stored := make([]domain.CartLine, len(lines))
	copy(stored, lines)
	s.state.Carts[cartKey(owner)] = stored
	return s.flush()
}

func (s *FileStore) ClearCart(owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Carts == nil {
		return nil
	}
	delete(s.state.Carts, cartKey(owner))
	return s.flush()
}

// flush must be called with the mutex held.
func (s *FileStore) flush() error {
	raw, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

func cartKey(owner string) string {
	return strings.ToLower(strings.TrimSpace(owner))
}
