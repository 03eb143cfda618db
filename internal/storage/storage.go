// Package storage is the single persistence boundary for everything the
// client keeps between runs: the bearer token and per-account carts.
// Nothing else in the codebase touches the state file directly, so the
// cart scoping key is defined in exactly one place.
package storage

import "github.com/drojas/tienda/internal/domain"

type Store interface {
	// Token returns the persisted bearer token, or "" when signed out.
	Token() string
	SetToken(token string) error
	ClearToken() error

	// LoadCart returns the cart persisted for the given account email,
	// or nil when none was saved.
	LoadCart(owner string) ([]domain.CartLine, error)
	SaveCart(owner string, lines []domain.CartLine) error
	ClearCart(owner string) error
}
