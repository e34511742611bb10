// internal/service/catalog.go
// Package service owns the business rules for catalog entries: field
// normalization, uniqueness validation, update/patch semantics and the
// optional description enrichment. It holds no entry state across calls;
// the store exclusively owns persisted state.
package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sellerhub/sellerhub-catalog-go/internal/describe"
	errordefs "github.com/sellerhub/sellerhub-catalog-go/internal/errors"
	"github.com/sellerhub/sellerhub-catalog-go/internal/event"
	"github.com/sellerhub/sellerhub-catalog-go/internal/model"
	"github.com/sellerhub/sellerhub-catalog-go/internal/storage"
)

// Field invariants after normalization.
var (
	sellerIDPattern = regexp.MustCompile(`^[a-z0-9]+$`)
	skuPattern      = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

// maxDescriptionLen caps the description at 300 characters, counted in runes
// so accented text is measured the way callers see it.
const maxDescriptionLen = 300

// Catalog mediates between callers, the store and the cache. The store it
// receives is expected to already carry the cache-aside decoration, so this
// layer never touches cache keys directly.
type Catalog struct {
	store     storage.Store
	describer describe.Describer // nil when enrichment is not configured
	pub       event.Publisher
}

// New creates the catalog service. describer may be nil; pub must not be
// (use the no-op publisher instead).
func New(store storage.Store, describer describe.Describer, pub event.Publisher) *Catalog {
	return &Catalog{store: store, describer: describer, pub: pub}
}

// normalizeSeller lower-cases and trims a seller id.
func normalizeSeller(sellerID string) string {
	return strings.ToLower(strings.TrimSpace(sellerID))
}

// Create validates and persists a new entry, returning the stored entry with
// its assigned id and timestamps.
func (c *Catalog) Create(ctx context.Context, entry model.Entry) (*model.Entry, error) {
	entry.SellerID = normalizeSeller(entry.SellerID)
	entry.SKU = strings.TrimSpace(entry.SKU)
	entry.Name = strings.TrimSpace(entry.Name)

	if err := validateSellerID(entry.SellerID); err != nil {
		return nil, err
	}
	if err := validateSKU(entry.SKU); err != nil {
		return nil, err
	}
	if err := validateName(entry.Name); err != nil {
		return nil, err
	}
	if err := c.validateEntryAbsent(ctx, entry.SellerID, entry.SKU); err != nil {
		return nil, err
	}

	// Enrichment is best-effort: any failure leaves the description empty
	// and never blocks creation.
	if c.describer != nil {
		description, err := c.describer.Describe(ctx, entry)
		if err != nil {
			slog.Warn("description enrichment failed", "seller_id", entry.SellerID, "sku", entry.SKU, "error", err)
			description = ""
		}
		entry.Description = description
	}

	stored, err := c.store.Insert(ctx, entry)
	if err != nil {
		// The store's uniqueness constraint closes the window between the
		// existence check above and this insert.
		if errors.Is(err, storage.ErrConflict) {
			return nil, errordefs.ProductAlreadyExists()
		}
		return nil, err
	}

	if err := c.pub.PublishEntryCreated(ctx, *stored); err != nil {
		slog.Warn("failed to publish entry created event", "error", err)
	}

	return stored, nil
}

// Get returns the entry for (sellerID, sku). The cache path lives in the
// store decorator; a miss everywhere is ProductNotExist.
func (c *Catalog) Get(ctx context.Context, sellerID, sku string) (*model.Entry, error) {
	sellerID = normalizeSeller(sellerID)
	sku = strings.TrimSpace(sku)

	entry, err := c.store.Get(ctx, sellerID, sku)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errordefs.ProductNotExist()
		}
		return nil, err
	}
	return entry, nil
}

// Update replaces the mutable fields of an existing entry.
func (c *Catalog) Update(ctx context.Context, sellerID, sku string, replacement model.UpdateEntryRequest) (*model.Entry, error) {
	sellerID = normalizeSeller(sellerID)
	sku = strings.TrimSpace(sku)

	replacement.Name = strings.TrimSpace(replacement.Name)
	if replacement.Name == "" {
		return nil, errordefs.ProductNameMissing()
	}
	if err := validateName(replacement.Name); err != nil {
		return nil, err
	}
	if err := validateDescription(replacement.Description); err != nil {
		return nil, err
	}

	if _, err := c.store.Get(ctx, sellerID, sku); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errordefs.ProductNotExist()
		}
		return nil, err
	}

	updated, err := c.store.Replace(ctx, sellerID, sku, model.Entry{
		Name:        replacement.Name,
		Description: replacement.Description,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errordefs.ProductNotExist()
		}
		return nil, err
	}

	if err := c.pub.PublishEntryUpdated(ctx, *updated); err != nil {
		slog.Warn("failed to publish entry updated event", "error", err)
	}

	return updated, nil
}

// Patch applies only the supplied fields to an existing entry. Checks run in
// a fixed order: seller existence, target existence, then the no-op
// detection, then field validation.
func (c *Catalog) Patch(ctx context.Context, sellerID, sku string, patch model.EntryPatch) (*model.Entry, error) {
	sellerID = normalizeSeller(sellerID)
	sku = strings.TrimSpace(sku)

	count, err := c.store.CountBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errordefs.SellerIDNotExist()
	}

	current, err := c.store.Get(ctx, sellerID, sku)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errordefs.ProductNotExist()
		}
		return nil, err
	}

	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		patch.Name = &trimmed
	}

	if patch.IsEmpty() {
		return nil, errordefs.NoFieldsToUpdate()
	}
	if patch.MatchesEntry(*current) {
		return nil, errordefs.NoFieldsToUpdate()
	}

	if patch.Name != nil {
		if err := validateName(*patch.Name); err != nil {
			return nil, err
		}
	}
	if patch.Description != nil {
		if err := validateDescription(*patch.Description); err != nil {
			return nil, err
		}
	}

	updated, err := c.store.Patch(ctx, sellerID, sku, patch)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errordefs.ProductNotExist()
		}
		return nil, err
	}

	if err := c.pub.PublishEntryUpdated(ctx, *updated); err != nil {
		slog.Warn("failed to publish entry updated event", "error", err)
	}

	return updated, nil
}

// Delete removes an entry, reporting whether a row was actually removed.
func (c *Catalog) Delete(ctx context.Context, sellerID, sku string) (bool, error) {
	sellerID = normalizeSeller(sellerID)
	sku = strings.TrimSpace(sku)

	if _, err := c.store.Get(ctx, sellerID, sku); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, errordefs.ProductNotExist()
		}
		return false, err
	}

	removed, err := c.store.Delete(ctx, sellerID, sku)
	if err != nil {
		return false, err
	}

	if removed {
		if err := c.pub.PublishEntryDeleted(ctx, sellerID, sku); err != nil {
			slog.Warn("failed to publish entry deleted event", "error", err)
		}
	}

	return removed, nil
}

// List returns a seller's entries with optional case-insensitive name filter
// and pagination. An empty match set is an error: LikeNotFound when a name
// filter was active, SellerIDNotExist otherwise.
func (c *Catalog) List(ctx context.Context, query model.ListQuery) (*model.ListResult, error) {
	query.SellerID = normalizeSeller(query.SellerID)

	result, err := c.store.List(ctx, query)
	if err != nil {
		return nil, err
	}

	if result.Total == 0 {
		if query.NameLike != "" {
			return nil, errordefs.LikeNotFound()
		}
		return nil, errordefs.SellerIDNotExist()
	}

	return result, nil
}

// validateEntryAbsent treats a not-found lookup as the success path: only a
// hit means the (seller_id, sku) pair is already taken.
func (c *Catalog) validateEntryAbsent(ctx context.Context, sellerID, sku string) error {
	_, err := c.store.Get(ctx, sellerID, sku)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	return errordefs.ProductAlreadyExists()
}

func validateSellerID(sellerID string) error {
	if len(sellerID) < 2 || !sellerIDPattern.MatchString(sellerID) {
		return errordefs.SellerIDInvalid()
	}
	return nil
}

func validateSKU(sku string) error {
	if sku == "" || len(sku) < 2 || !skuPattern.MatchString(sku) {
		return errordefs.SKULengthInvalid()
	}
	return nil
}

func validateName(name string) error {
	if name == "" || len(name) < 2 || len(name) > 200 {
		return errordefs.ProductNameLengthInvalid()
	}
	return nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > maxDescriptionLen {
		return errordefs.ProductDescriptionLengthInvalid()
	}
	return nil
}
