// internal/storage/memory_test.go
// Package storage provides unit tests for the in-memory store.
package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/sellerhub/sellerhub-catalog-go/internal/model"
)

func seedEntry(t *testing.T, s Store, sellerID, sku, name string) *model.Entry {
	t.Helper()
	entry, err := s.Insert(context.Background(), model.Entry{SellerID: sellerID, SKU: sku, Name: name})
	if err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}
	return entry
}

// TestMemoryInsertAndGet verifies insert assigns identity and timestamps and
// the entry can be read back.
func TestMemoryInsertAndGet(t *testing.T) {
	s := NewMemory()

	inserted := seedEntry(t, s, "loja1", "SKU001", "Produto")
	if inserted.ID == "" {
		t.Error("expected id to be assigned")
	}
	if inserted.CreatedAt.IsZero() || inserted.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be assigned")
	}
	if !inserted.CreatedAt.Equal(inserted.UpdatedAt) {
		t.Error("expected created_at and updated_at to match on insert")
	}

	got, err := s.Get(context.Background(), "loja1", "SKU001")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.ID != inserted.ID {
		t.Errorf("get returned wrong entry: %q vs %q", got.ID, inserted.ID)
	}
}

// TestMemoryInsertConflict verifies the natural-key uniqueness rule.
func TestMemoryInsertConflict(t *testing.T) {
	s := NewMemory()
	seedEntry(t, s, "loja1", "SKU001", "Produto")

	_, err := s.Insert(context.Background(), model.Entry{SellerID: "loja1", SKU: "SKU001", Name: "Outro"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// Same SKU under a different seller is allowed.
	if _, err := s.Insert(context.Background(), model.Entry{SellerID: "loja2", SKU: "SKU001", Name: "Outro"}); err != nil {
		t.Fatalf("insert under different seller failed: %v", err)
	}
}

// TestMemoryGetMissing verifies the sentinel on a miss.
func TestMemoryGetMissing(t *testing.T) {
	s := NewMemory()

	_, err := s.Get(context.Background(), "loja1", "SKU404")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestMemoryReplace verifies the mutable fields change while identity and
// created_at are preserved.
func TestMemoryReplace(t *testing.T) {
	s := NewMemory()
	inserted := seedEntry(t, s, "loja1", "SKU001", "Produto")

	updated, err := s.Replace(context.Background(), "loja1", "SKU001", model.Entry{
		Name:        "Produto Novo",
		Description: "descrição",
	})
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if updated.Name != "Produto Novo" || updated.Description != "descrição" {
		t.Errorf("replace did not apply: %+v", updated)
	}
	if updated.ID != inserted.ID {
		t.Errorf("replace changed id: %q vs %q", updated.ID, inserted.ID)
	}
	if !updated.CreatedAt.Equal(inserted.CreatedAt) {
		t.Errorf("replace changed created_at")
	}

	_, err = s.Replace(context.Background(), "loja1", "SKU404", model.Entry{Name: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestMemoryPatch verifies only the supplied fields change.
func TestMemoryPatch(t *testing.T) {
	s := NewMemory()
	inserted := seedEntry(t, s, "loja1", "SKU001", "Produto")

	desc := "nova descrição"
	updated, err := s.Patch(context.Background(), "loja1", "SKU001", model.EntryPatch{Description: &desc})
	if err != nil {
		t.Fatalf("patch failed: %v", err)
	}
	if updated.Name != inserted.Name {
		t.Errorf("patch touched the name: %q", updated.Name)
	}
	if updated.Description != desc {
		t.Errorf("patch did not apply description: %q", updated.Description)
	}

	_, err = s.Patch(context.Background(), "loja1", "SKU404", model.EntryPatch{Description: &desc})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestMemoryDelete verifies the removed flag on both paths.
func TestMemoryDelete(t *testing.T) {
	s := NewMemory()
	seedEntry(t, s, "loja1", "SKU001", "Produto")

	removed, err := s.Delete(context.Background(), "loja1", "SKU001")
	if err != nil || !removed {
		t.Fatalf("expected removed=true, got %v %v", removed, err)
	}

	removed, err = s.Delete(context.Background(), "loja1", "SKU001")
	if err != nil || removed {
		t.Fatalf("expected removed=false on second delete, got %v %v", removed, err)
	}
}

// TestMemoryCountBySeller verifies per-seller counting.
func TestMemoryCountBySeller(t *testing.T) {
	s := NewMemory()
	seedEntry(t, s, "loja1", "SKU001", "Produto A")
	seedEntry(t, s, "loja1", "SKU002", "Produto B")
	seedEntry(t, s, "loja2", "SKU001", "Produto C")

	count, err := s.CountBySeller(context.Background(), "loja1")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("wrong count: got %d want 2", count)
	}

	count, _ = s.CountBySeller(context.Background(), "loja3")
	if count != 0 {
		t.Errorf("wrong count for unknown seller: got %d want 0", count)
	}
}

// TestMemoryList verifies filtering, sorting and pagination.
func TestMemoryList(t *testing.T) {
	s := NewMemory()
	seedEntry(t, s, "loja1", "SKU001", "Cafeteira Italiana")
	seedEntry(t, s, "loja1", "SKU002", "Chaleira Elétrica")
	seedEntry(t, s, "loja1", "SKU003", "Moedor de Café")
	seedEntry(t, s, "loja2", "SKU001", "Cafeteira Francesa")

	// Seller scoping.
	result, err := s.List(context.Background(), model.ListQuery{SellerID: "loja1"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if result.Total != 3 {
		t.Errorf("wrong total: got %d want 3", result.Total)
	}

	// Case-insensitive substring filter.
	result, _ = s.List(context.Background(), model.ListQuery{SellerID: "loja1", NameLike: "CAF"})
	if result.Total != 2 {
		t.Errorf("filter matched wrong count: got %d want 2", result.Total)
	}

	// Name sort descending.
	result, _ = s.List(context.Background(), model.ListQuery{SellerID: "loja1", Sort: model.SortNameDesc})
	if result.Entries[0].Name != "Moedor de Café" {
		t.Errorf("wrong first entry for -name sort: %q", result.Entries[0].Name)
	}

	// Pagination keeps the full total.
	result, _ = s.List(context.Background(), model.ListQuery{SellerID: "loja1", Limit: 2, Offset: 2, Sort: model.SortNameAsc})
	if result.Total != 3 || len(result.Entries) != 1 {
		t.Errorf("paginated list wrong: total %d entries %d", result.Total, len(result.Entries))
	}

	// Offset past the end returns an empty page, not an error.
	result, _ = s.List(context.Background(), model.ListQuery{SellerID: "loja1", Offset: 10})
	if result.Total != 3 || len(result.Entries) != 0 {
		t.Errorf("out-of-range offset wrong: total %d entries %d", result.Total, len(result.Entries))
	}
}
