// Package cart holds the single source of truth for the shopping cart.
package cart

import (
	"log/slog"
	"sync"

	"github.com/drojas/tienda/internal/domain"
	"github.com/drojas/tienda/internal/metrics"
	"github.com/drojas/tienda/internal/storage"
)

// Store owns the cart lines and the cart panel flag. All mutations are
// purely local: persistence failures are logged, never surfaced, so cart
// operations cannot fail.
//
// While an owner account is attached, every mutation is persisted under
// that account's email. Anonymous carts live only in memory.
type Store struct {
	mu    sync.Mutex
	lines []domain.CartLine
	open  bool
	owner string

	storage storage.Store
	logger  *slog.Logger
}

func NewStore(st storage.Store, logger *slog.Logger) *Store {
	return &Store{
		storage: st,
		logger:  logger.With("component", "cart_store"),
	}
}

// Add inserts the product with quantity 1, or bumps the existing line's
// quantity by 1. Adding always opens the cart panel.
func (s *Store) Add(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i := range s.lines {
		if s.lines[i].ProductID == p.ID {
			s.lines[i].Quantity++
			found = true
			break
		}
	}
	if !found {
		s.lines = append(s.lines, p.CartLine())
	}
	s.open = true
	s.afterMutation()
}

// Remove deletes the line for the given product. Removing an absent
// product is a no-op.
func (s *Store) Remove(productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(productID)
	s.afterMutation()
}

// UpdateQuantity sets the line's quantity. A quantity of zero or less
// removes the line; it is never an error.
func (s *Store) UpdateQuantity(productID int64, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		s.removeLocked(productID)
		s.afterMutation()
		return
	}
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			s.lines[i].Quantity = quantity
			break
		}
	}
	s.afterMutation()
}

// Clear empties the cart and closes the panel. While an owner is
// attached, the persisted copy is cleared too.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = nil
	s.open = false
	if s.owner != "" {
		if err := s.storage.ClearCart(s.owner); err != nil {
			s.logger.Error("clear persisted cart", "error", err)
		}
	}
	s.updateGauges()
}

// TotalItems is the sum of quantities across all lines, derived on every
// call so it can never drift from the lines themselves.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked().TotalItems()
}

// TotalPrice is the cart's summed price.
func (s *Store) TotalPrice() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked().TotalPrice()
}

// Lines returns a copy of the cart lines in insertion order.
func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

// Panel visibility. Coupled to mutations (Add opens it) but otherwise
// pure UI state.

func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *Store) OpenPanel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
}

func (s *Store) ClosePanel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
}

func (s *Store) TogglePanel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = !s.open
}

// SetOwner attaches the signed-in account and starts persisting under its
// email. A cart built while anonymous is kept (and persisted); otherwise
// the account's stored cart is restored.
func (s *Store) SetOwner(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.owner = email
	if len(s.lines) == 0 {
		stored, err := s.storage.LoadCart(email)
		if err != nil {
			s.logger.Error("restore cart", "error", err)
		}
		s.lines = stored
	}
	s.afterMutation()
}

// Detach empties the in-memory cart and stops persisting, leaving the
// owner's stored cart intact so it is restored at the next sign-in.
// Wired to the auth store's logout hook.
func (s *Store) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.owner = ""
	s.lines = nil
	s.open = false
	s.updateGauges()
}

func (s *Store) removeLocked(productID int64) {
	kept := s.lines[:0]
	for _, l := range s.lines {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	s.lines = kept
}

func (s *Store) snapshotLocked() *domain.Cart {
	return &domain.Cart{Lines: s.lines, Open: s.open}
}

// afterMutation persists the cart for the attached owner and refreshes
// gauges. Must be called with the mutex held.
func (s *Store) afterMutation() {
	if s.owner != "" {
		if err := s.storage.SaveCart(s.owner, s.lines); err != nil {
			s.logger.Error("persist cart", "owner", s.owner, "error", err)
		}
	}
	s.updateGauges()
}

func (s *Store) updateGauges() {
	metrics.CartLines.Set(float64(len(s.lines)))
	metrics.CartItems.Set(float64(s.snapshotLocked().TotalItems()))
}
