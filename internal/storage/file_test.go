package storage_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/drojas/tienda/internal/domain"
	"github.com/drojas/tienda/internal/storage"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileStore_TokenSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := storage.NewFileStore(dir, discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := s.SetToken("tok-1"); err != nil {
		t.Fatalf("set token: %v", err)
	}

	reopened, err := storage.NewFileStore(dir, discard())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	if got := reopened.Token(); got != "tok-1" {
		t.Errorf("token = %q, want tok-1", got)
	}

	if err := reopened.ClearToken(); err != nil {
		t.Fatalf("clear token: %v", err)
	}
	third, err := storage.NewFileStore(dir, discard())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	if got := third.Token(); got != "" {
		t.Errorf("token after clear = %q, want empty", got)
	}
}

func TestFileStore_CartsAreIsolatedPerOwner(t *testing.T) {
	s, err := storage.NewFileStore(t.TempDir(), discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	anaCart := []domain.CartLine{{ProductID: 1, Name: "keyboard", Quantity: 2}}
	if err := s.SaveCart("ana@example.com", anaCart); err != nil {
		t.Fatalf("save cart: %v", err)
	}

	bob, err := s.LoadCart("bob@example.com")
	if err != nil {
		t.Fatalf("load cart: %v", err)
	}
	if bob != nil {
		t.Errorf("bob sees ana's cart: %v", bob)
	}

	ana, err := s.LoadCart("ana@example.com")
	if err != nil {
		t.Fatalf("load cart: %v", err)
	}
	if len(ana) != 1 || ana[0].Quantity != 2 {
		t.Errorf("ana's cart = %v", ana)
	}
}

func TestFileStore_CartKeyIgnoresCaseAndSpaces(t *testing.T) {
	s, err := storage.NewFileStore(t.TempDir(), discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	if err := s.SaveCart("Ana@Example.com ", []domain.CartLine{{ProductID: 1, Quantity: 1}}); err != nil {
		t.Fatalf("save cart: %v", err)
	}

	lines, err := s.LoadCart("ana@example.com")
	if err != nil {
		t.Fatalf("load cart: %v", err)
	}
	if len(lines) != 1 {
		t.Errorf("cart not found under normalized key: %v", lines)
	}
}

func TestFileStore_ClearCartRemovesOnlyThatOwner(t *testing.T) {
	s, err := storage.NewFileStore(t.TempDir(), discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	_ = s.SaveCart("ana@example.com", []domain.CartLine{{ProductID: 1, Quantity: 1}})
	_ = s.SaveCart("bob@example.com", []domain.CartLine{{ProductID: 2, Quantity: 1}})

	if err := s.ClearCart("ana@example.com"); err != nil {
		t.Fatalf("clear cart: %v", err)
	}

	ana, _ := s.LoadCart("ana@example.com")
	if ana != nil {
		t.Errorf("ana's cart survived clear: %v", ana)
	}
	bob, _ := s.LoadCart("bob@example.com")
	if len(bob) != 1 {
		t.Errorf("bob's cart lost: %v", bob)
	}
}

func TestFileStore_CorruptStateFile_StartsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "state.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	s, err := storage.NewFileStore(dir, discard())
	if err != nil {
		t.Fatalf("corrupt state blocked startup: %v", err)
	}
	if got := s.Token(); got != "" {
		t.Errorf("token = %q, want empty", got)
	}

	// The store must still be writable afterwards.
	if err := s.SetToken("tok-1"); err != nil {
		t.Errorf("set token after recovery: %v", err)
	}
}

func TestFileStore_SaveCartCopiesInput(t *testing.T) {
	s, err := storage.NewFileStore(t.TempDir(), discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	lines := []domain.CartLine{{ProductID: 1, Quantity: 1}}
	if err := s.SaveCart("ana@example.com", lines); err != nil {
		t.Fatalf("save cart: %v", err)
	}
	lines[0].Quantity = 99

	stored, err := s.LoadCart("ana@example.com")
	if err != nil {
		t.Fatalf("load cart: %v", err)
	}
	if stored[0].Quantity != 1 {
		t.Errorf("stored cart aliases caller slice: %v", stored)
	}
}
