package cart_test

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/drojas/tienda/internal/cart"
	"github.com/drojas/tienda/internal/domain"
	"github.com/drojas/tienda/internal/storage"
)

func newStore(t *testing.T) (*cart.Store, *storage.MemStore) {
	t.Helper()
	mem := storage.NewMemStore()
	return cart.NewStore(mem, slog.New(slog.NewTextHandler(io.Discard, nil))), mem
}

func product(id int64, price float64) domain.Product {
	return domain.Product{ID: id, Name: "product", Price: price}
}

func TestAdd_SameProductTwice_AggregatesIntoOneLine(t *testing.T) {
	s, _ := newStore(t)

	s.Add(product(1, 9.99))
	s.Add(product(1, 9.99))

	lines := s.Lines()
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0].Quantity != 2 {
		t.Errorf("quantity = %d, want 2", lines[0].Quantity)
	}
}

func TestAdd_OpensPanel(t *testing.T) {
	s, _ := newStore(t)

	if s.IsOpen() {
		t.Fatal("panel open before any add")
	}
	s.Add(product(1, 1))
	if !s.IsOpen() {
		t.Error("panel not opened by add")
	}
}

func TestUpdateQuantity_ZeroOrNegativeRemovesLine(t *testing.T) {
	for _, qty := range []int{0, -3} {
		s, _ := newStore(t)
		s.Add(product(1, 1))

		s.UpdateQuantity(1, qty)

		if len(s.Lines()) != 0 {
			t.Errorf("qty %d: line not removed", qty)
		}
	}
}

func TestRemove_AbsentProduct_IsNoOp(t *testing.T) {
	s, _ := newStore(t)
	s.Add(product(1, 1))

	s.Remove(99)

	if len(s.Lines()) != 1 {
		t.Errorf("got %d lines, want 1", len(s.Lines()))
	}
}

func TestClear_EmptiesCartAndClosesPanel(t *testing.T) {
	s, _ := newStore(t)
	s.Add(product(1, 1))
	s.Add(product(2, 2))

	s.Clear()

	if s.TotalItems() != 0 {
		t.Errorf("total items = %d, want 0", s.TotalItems())
	}
	if s.IsOpen() {
		t.Error("panel still open after clear")
	}
}

// TotalItems must equal the sum of line quantities after any sequence of
// mutations; there is no counter to drift.
func TestTotalItems_NeverDriftsFromLines(t *testing.T) {
	s, _ := newStore(t)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 500; i++ {
		id := int64(rng.Intn(10) + 1)
		switch rng.Intn(4) {
		case 0:
			s.Add(product(id, 1))
		case 1:
			s.Remove(id)
		case 2:
			s.UpdateQuantity(id, rng.Intn(7)-1)
		case 3:
			if rng.Intn(20) == 0 {
				s.Clear()
			}
		}

		want := 0
		for _, l := range s.Lines() {
			if l.Quantity <= 0 {
				t.Fatalf("line %d has quantity %d", l.ProductID, l.Quantity)
			}
			want += l.Quantity
		}
		if got := s.TotalItems(); got != want {
			t.Fatalf("step %d: TotalItems() = %d, lines sum to %d", i, got, want)
		}
	}
}

func TestLines_PreserveInsertionOrder(t *testing.T) {
	s, _ := newStore(t)
	s.Add(product(3, 1))
	s.Add(product(1, 1))
	s.Add(product(2, 1))
	s.Add(product(1, 1)) // bump, must not reorder

	var got []int64
	for _, l := range s.Lines() {
		got = append(got, l.ProductID)
	}
	want := []int64{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestAnonymousCart_IsNotPersisted(t *testing.T) {
	s, mem := newStore(t)

	s.Add(product(1, 1))

	stored, err := mem.LoadCart("someone@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored != nil {
		t.Errorf("anonymous mutation was persisted: %v", stored)
	}
}

func TestSetOwner_RestoresStoredCart(t *testing.T) {
	s, mem := newStore(t)
	if err := mem.SaveCart("ana@example.com", []domain.CartLine{
		{ProductID: 7, Name: "stored", Quantity: 3},
	}); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	s.SetOwner("ana@example.com")

	if got := s.TotalItems(); got != 3 {
		t.Errorf("total items = %d, want 3", got)
	}
}

func TestSetOwner_KeepsCartBuiltWhileAnonymous(t *testing.T) {
	s, mem := newStore(t)
	s.Add(product(1, 1))

	s.SetOwner("ana@example.com")

	if got := s.TotalItems(); got != 1 {
		t.Fatalf("total items = %d, want 1", got)
	}
	stored, err := mem.LoadCart("ana@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("adopted cart not persisted: %v", stored)
	}
}

func TestDetach_EmptiesMemoryButKeepsStoredCart(t *testing.T) {
	s, mem := newStore(t)
	s.SetOwner("ana@example.com")
	s.Add(product(1, 1))

	s.Detach()

	if s.TotalItems() != 0 {
		t.Error("cart not cleared on detach")
	}
	if s.IsOpen() {
		t.Error("panel still open after detach")
	}
	stored, err := mem.LoadCart("ana@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("stored cart lost on detach: %v", stored)
	}
}

func TestCarts_AreScopedPerOwner(t *testing.T) {
	s, _ := newStore(t)
	s.SetOwner("ana@example.com")
	s.Add(product(1, 1))
	s.Detach()

	s.SetOwner("bob@example.com")
	if got := s.TotalItems(); got != 0 {
		t.Fatalf("bob sees ana's cart: %d items", got)
	}
	s.Detach()

	s.SetOwner("ana@example.com")
	if got := s.TotalItems(); got != 1 {
		t.Errorf("ana's cart not restored: %d items", got)
	}
}

func TestClear_AlsoClearsPersistedCopy(t *testing.T) {
	s, mem := newStore(t)
	s.SetOwner("ana@example.com")
	s.Add(product(1, 1))

	s.Clear()

	stored, err := mem.LoadCart("ana@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored != nil {
		t.Errorf("persisted cart survived clear: %v", stored)
	}
}
