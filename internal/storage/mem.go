package storage

import (
	"strings"
	"sync"

	"github.com/drojas/tienda/internal/domain"
)

// MemStore is an in-memory Store used by tests and by callers that want a
// throwaway session (nothing outlives the process).
type MemStore struct {
	mu    sync.Mutex
	token string
	carts map[string][]domain.CartLine
}

func NewMemStore() *MemStore {
	return &MemStore{carts: make(map[string][]domain.CartLine)}
}

func (s *MemStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *MemStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemStore) ClearToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

func (s *MemStore) LoadCart(owner string) ([]domain.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines, ok := s.carts[strings.ToLower(strings.TrimSpace(owner))]
	if !ok {
		return nil, nil
	}
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out, nil
}

func (s *MemStore) SaveCart(owner string, lines []domain.CartLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]domain.CartLine, len(lines))
	copy(stored, lines)
	s.carts[strings.ToLower(strings.TrimSpace(owner))] = stored
	return nil
}

func (s *MemStore) ClearCart(owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, strings.ToLower(strings.TrimSpace(owner)))
	return nil
}
