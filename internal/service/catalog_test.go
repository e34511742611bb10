// internal/service/catalog_test.go
// Package service provides unit tests for the catalog business rules.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	errordefs "github.com/sellerhub/sellerhub-catalog-go/internal/errors"
	"github.com/sellerhub/sellerhub-catalog-go/internal/model"
	"github.com/sellerhub/sellerhub-catalog-go/internal/storage"
)

// recordingPublisher captures published event types for assertions.
type recordingPublisher struct {
	events []string
}

func (p *recordingPublisher) PublishEntryCreated(ctx context.Context, entry model.Entry) error {
	p.events = append(p.events, "created")
	return nil
}

func (p *recordingPublisher) PublishEntryUpdated(ctx context.Context, entry model.Entry) error {
	p.events = append(p.events, "updated")
	return nil
}

func (p *recordingPublisher) PublishEntryDeleted(ctx context.Context, sellerID, sku string) error {
	p.events = append(p.events, "deleted")
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// stubDescriber returns a fixed description or a fixed error.
type stubDescriber struct {
	description string
	err         error
}

func (d *stubDescriber) Describe(ctx context.Context, entry model.Entry) (string, error) {
	return d.description, d.err
}

func newTestCatalog() (*Catalog, *recordingPublisher) {
	pub := &recordingPublisher{}
	return New(storage.NewMemory(), nil, pub), pub
}

// mustCreate seeds an entry or fails the test.
func mustCreate(t *testing.T, c *Catalog, sellerID, sku, name string) *model.Entry {
	t.Helper()
	entry, err := c.Create(context.Background(), model.Entry{SellerID: sellerID, SKU: sku, Name: name})
	if err != nil {
		t.Fatalf("seed create failed: %v", err)
	}
	return entry
}

// TestCreateNormalizesFields verifies seller/sku/name normalization runs
// before validation and persistence.
func TestCreateNormalizesFields(t *testing.T) {
	c, pub := newTestCatalog()

	entry, err := c.Create(context.Background(), model.Entry{
		SellerID: "  LOJA1 ",
		SKU:      " SKU001 ",
		Name:     "  Produto Teste  ",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if entry.SellerID != "loja1" {
		t.Errorf("seller_id not normalized: got %q", entry.SellerID)
	}
	if entry.SKU != "SKU001" {
		t.Errorf("sku not trimmed: got %q", entry.SKU)
	}
	if entry.Name != "Produto Teste" {
		t.Errorf("name not trimmed: got %q", entry.Name)
	}
	if entry.ID == "" {
		t.Error("expected id to be assigned")
	}
	if len(pub.events) != 1 || pub.events[0] != "created" {
		t.Errorf("expected one created event, got %v", pub.events)
	}

	// Normalization is idempotent: looking up with the raw forms resolves
	// to the same entry.
	got, err := c.Get(context.Background(), "  LOJA1 ", " SKU001 ")
	if err != nil {
		t.Fatalf("get with raw key failed: %v", err)
	}
	if got.ID != entry.ID {
		t.Errorf("raw-key get resolved to a different entry: %q vs %q", got.ID, entry.ID)
	}
}

// TestCreateRejectsDuplicate verifies the uniqueness rule across normalized
// spellings of the same natural key.
func TestCreateRejectsDuplicate(t *testing.T) {
	c, _ := newTestCatalog()
	mustCreate(t, c, "loja1", "SKU001", "Produto")

	_, err := c.Create(context.Background(), model.Entry{SellerID: " LOJA1", SKU: "SKU001 ", Name: "Outro"})
	if !errors.Is(err, errordefs.ProductAlreadyExists()) {
		t.Fatalf("expected ProductAlreadyExists, got %v", err)
	}
}

// TestCreateValidation walks the per-field checks in their fixed order.
func TestCreateValidation(t *testing.T) {
	c, _ := newTestCatalog()

	cases := []struct {
		name    string
		entry   model.Entry
		wantErr *errordefs.Error
	}{
		{"empty seller", model.Entry{SellerID: "  ", SKU: "SKU001", Name: "Produto"}, errordefs.SellerIDInvalid()},
		{"seller bad charset", model.Entry{SellerID: "loja#1", SKU: "SKU001", Name: "Produto"}, errordefs.SellerIDInvalid()},
		{"sku too short", model.Entry{SellerID: "loja1", SKU: "A", Name: "Produto"}, errordefs.SKULengthInvalid()},
		{"sku bad charset", model.Entry{SellerID: "loja1", SKU: "SKU 001", Name: "Produto"}, errordefs.SKULengthInvalid()},
		{"name too short", model.Entry{SellerID: "loja1", SKU: "SKU001", Name: "x"}, errordefs.ProductNameLengthInvalid()},
		{"name too long", model.Entry{SellerID: "loja1", SKU: "SKU001", Name: strings.Repeat("a", 201)}, errordefs.ProductNameLengthInvalid()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Create(context.Background(), tc.entry)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("got %v want %v", err, tc.wantErr)
			}
		})
	}
}

// TestCreateWithEnrichment verifies the generated description is persisted.
func TestCreateWithEnrichment(t *testing.T) {
	pub := &recordingPublisher{}
	c := New(storage.NewMemory(), &stubDescriber{description: "Uma descrição gerada"}, pub)

	entry, err := c.Create(context.Background(), model.Entry{SellerID: "loja1", SKU: "SKU001", Name: "Produto"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if entry.Description != "Uma descrição gerada" {
		t.Errorf("description not enriched: got %q", entry.Description)
	}
}

// TestCreateEnrichmentFailureDegrades verifies an enrichment failure leaves
// the description empty without blocking creation.
func TestCreateEnrichmentFailureDegrades(t *testing.T) {
	pub := &recordingPublisher{}
	c := New(storage.NewMemory(), &stubDescriber{err: fmt.Errorf("model offline")}, pub)

	entry, err := c.Create(context.Background(), model.Entry{SellerID: "loja1", SKU: "SKU001", Name: "Produto"})
	if err != nil {
		t.Fatalf("create should not fail on enrichment error: %v", err)
	}
	if entry.Description != "" {
		t.Errorf("expected empty description, got %q", entry.Description)
	}
}

// TestGetMissing verifies a miss maps to the typed not-found condition.
func TestGetMissing(t *testing.T) {
	c, _ := newTestCatalog()

	_, err := c.Get(context.Background(), "loja1", "SKU404")
	if !errors.Is(err, errordefs.ProductNotExist()) {
		t.Fatalf("expected ProductNotExist, got %v", err)
	}
}

// TestUpdateSemantics verifies the full-replace rules.
func TestUpdateSemantics(t *testing.T) {
	c, pub := newTestCatalog()
	created := mustCreate(t, c, "loja1", "SKU001", "Produto Original")

	// A replace without a name is rejected before any lookup.
	_, err := c.Update(context.Background(), "loja1", "SKU001", model.UpdateEntryRequest{Name: "   "})
	if !errors.Is(err, errordefs.ProductNameMissing()) {
		t.Fatalf("expected ProductNameMissing, got %v", err)
	}

	// Replacing a missing entry fails.
	_, err = c.Update(context.Background(), "loja1", "SKU404", model.UpdateEntryRequest{Name: "Novo Nome"})
	if !errors.Is(err, errordefs.ProductNotExist()) {
		t.Fatalf("expected ProductNotExist, got %v", err)
	}

	updated, err := c.Update(context.Background(), "loja1", "SKU001", model.UpdateEntryRequest{
		Name:        "Produto Novo",
		Description: "nova descrição",
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != "Produto Novo" || updated.Description != "nova descrição" {
		t.Errorf("update did not apply: %+v", updated)
	}
	if updated.ID != created.ID {
		t.Errorf("update changed identity: %q vs %q", updated.ID, created.ID)
	}
	if !containsEvent(pub.events, "updated") {
		t.Errorf("expected updated event, got %v", pub.events)
	}
}

// TestPatchCheckOrder verifies the fixed ordering of patch failures: seller
// existence, target existence, no-op detection, then field validation.
func TestPatchCheckOrder(t *testing.T) {
	c, _ := newTestCatalog()
	mustCreate(t, c, "loja1", "SKU001", "Produto Original")

	// Unknown seller wins even when everything else is wrong too.
	_, err := c.Patch(context.Background(), "loja2", "SKU404", model.EntryPatch{})
	if !errors.Is(err, errordefs.SellerIDNotExist()) {
		t.Fatalf("expected SellerIDNotExist, got %v", err)
	}

	// Known seller, unknown target.
	_, err = c.Patch(context.Background(), "loja1", "SKU404", model.EntryPatch{})
	if !errors.Is(err, errordefs.ProductNotExist()) {
		t.Fatalf("expected ProductNotExist, got %v", err)
	}

	// Empty patch on an existing target.
	_, err = c.Patch(context.Background(), "loja1", "SKU001", model.EntryPatch{})
	if !errors.Is(err, errordefs.NoFieldsToUpdate()) {
		t.Fatalf("expected NoFieldsToUpdate for empty patch, got %v", err)
	}

	// Patch identical to stored state, including whitespace padding.
	name := "  Produto Original  "
	_, err = c.Patch(context.Background(), "loja1", "SKU001", model.EntryPatch{Name: &name})
	if !errors.Is(err, errordefs.NoFieldsToUpdate()) {
		t.Fatalf("expected NoFieldsToUpdate for identical patch, got %v", err)
	}

	// No-op detection runs before name validation; a changing but invalid
	// name surfaces the validation error.
	short := "x"
	_, err = c.Patch(context.Background(), "loja1", "SKU001", model.EntryPatch{Name: &short})
	if !errors.Is(err, errordefs.ProductNameLengthInvalid()) {
		t.Fatalf("expected ProductNameLengthInvalid, got %v", err)
	}
}

// TestPatchApplies verifies a valid partial update touches only the supplied
// fields.
func TestPatchApplies(t *testing.T) {
	c, pub := newTestCatalog()
	created := mustCreate(t, c, "loja1", "SKU001", "Produto Original")

	desc := "só a descrição muda"
	updated, err := c.Patch(context.Background(), "loja1", "SKU001", model.EntryPatch{Description: &desc})
	if err != nil {
		t.Fatalf("patch failed: %v", err)
	}
	if updated.Name != created.Name {
		t.Errorf("patch touched the name: got %q", updated.Name)
	}
	if updated.Description != desc {
		t.Errorf("patch did not apply description: got %q", updated.Description)
	}
	if updated.UpdatedAt.Before(created.UpdatedAt) {
		t.Errorf("updated_at went backwards")
	}
	if !containsEvent(pub.events, "updated") {
		t.Errorf("expected updated event, got %v", pub.events)
	}
}

// TestDeleteSemantics verifies delete reports removal and a second delete
// fails with not-found.
func TestDescriptionLengthCap(t *testing.T) {
	c, _ := newTestCatalog()
	mustCreate(t, c, "loja1", "SKU001", "Produto Original")

	// Accented text counts characters, not bytes: 300 runes must pass.
	atLimit := strings.Repeat("ç", 300)
	if _, err := c.Update(context.Background(), "loja1", "SKU001", model.UpdateEntryRequest{
		Name:        "Produto Original",
		Description: atLimit,
	}); err != nil {
		t.Fatalf("update at the limit failed: %v", err)
	}

	tooLong := strings.Repeat("ç", 301)
	_, err := c.Update(context.Background(), "loja1", "SKU001", model.UpdateEntryRequest{
		Name:        "Produto Original",
		Description: tooLong,
	})
	if !errors.Is(err, errordefs.ProductDescriptionLengthInvalid()) {
		t.Fatalf("expected ProductDescriptionLengthInvalid from update, got %v", err)
	}

	_, err = c.Patch(context.Background(), "loja1", "SKU001", model.EntryPatch{Description: &tooLong})
	if !errors.Is(err, errordefs.ProductDescriptionLengthInvalid()) {
		t.Fatalf("expected ProductDescriptionLengthInvalid from patch, got %v", err)
	}

	// The stored entry keeps the last valid description.
	entry, err := c.Get(context.Background(), "loja1", "SKU001")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if entry.Description != atLimit {
		t.Errorf("rejected write leaked into storage")
	}
}

func TestDeleteSemantics(t *testing.T) {
	c, pub := newTestCatalog()
	mustCreate(t, c, "loja1", "SKU001", "Produto")

	removed, err := c.Delete(context.Background(), "LOJA1", " SKU001 ")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !removed {
		t.Error("expected removed=true")
	}
	if !containsEvent(pub.events, "deleted") {
		t.Errorf("expected deleted event, got %v", pub.events)
	}

	_, err = c.Delete(context.Background(), "loja1", "SKU001")
	if !errors.Is(err, errordefs.ProductNotExist()) {
		t.Fatalf("expected ProductNotExist on second delete, got %v", err)
	}
}

// TestListNotFoundVariants verifies the two distinct empty-result errors.
func TestListNotFoundVariants(t *testing.T) {
	c, _ := newTestCatalog()
	mustCreate(t, c, "loja1", "SKU001", "Cafeteira")

	// Seller with no entries at all.
	_, err := c.List(context.Background(), model.ListQuery{SellerID: "loja2"})
	if !errors.Is(err, errordefs.SellerIDNotExist()) {
		t.Fatalf("expected SellerIDNotExist, got %v", err)
	}

	// Seller exists but the filter matches nothing.
	_, err = c.List(context.Background(), model.ListQuery{SellerID: "loja1", NameLike: "geladeira"})
	if !errors.Is(err, errordefs.LikeNotFound()) {
		t.Fatalf("expected LikeNotFound, got %v", err)
	}

	result, err := c.List(context.Background(), model.ListQuery{SellerID: "LOJA1", NameLike: "cafe"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if result.Total != 1 {
		t.Errorf("list matched wrong count: got %d", result.Total)
	}
}

func containsEvent(events []string, want string) bool {
	for _, e := range events {
		if e == want {
			return true
		}
	}
	return false
}
