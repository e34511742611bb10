// internal/storage/memory.go
// Package storage provides implementations of the Store interface
// for both in-memory and PostgreSQL storage backends.
package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sellerhub/sellerhub-catalog-go/internal/model"
)

// Standard errors returned by the storage layer
var (
	ErrNotFound = errors.New("not found") // Returned when an entry is not found
	ErrConflict = errors.New("conflict")  // Returned when an entry already exists
)

// Store defines the storage operations required by the catalog service.
// All operations are keyed by the (seller_id, sku) pair or by seller_id
// alone; the store assigns the surrogate id and timestamps on insert.
type Store interface {
	// Get returns the entry for (sellerID, sku) or ErrNotFound.
	Get(ctx context.Context, sellerID, sku string) (*model.Entry, error)
	// List scans a seller's entries with optional name filter and pagination.
	List(ctx context.Context, query model.ListQuery) (*model.ListResult, error)
	// Insert persists a new entry, assigning id and timestamps.
	// Returns ErrConflict when (seller_id, sku) is already taken.
	Insert(ctx context.Context, entry model.Entry) (*model.Entry, error)
	// Replace overwrites the mutable fields of an existing entry and stamps
	// updated_at. Returns ErrNotFound when the target does not exist.
	Replace(ctx context.Context, sellerID, sku string, entry model.Entry) (*model.Entry, error)
	// Patch applies only the supplied fields and stamps updated_at.
	// Returns ErrNotFound when the target does not exist.
	Patch(ctx context.Context, sellerID, sku string, patch model.EntryPatch) (*model.Entry, error)
	// Delete removes the entry, reporting whether a row was actually removed.
	Delete(ctx context.Context, sellerID, sku string) (bool, error)
	// CountBySeller returns how many entries the seller has.
	CountBySeller(ctx context.Context, sellerID string) (int, error)
}

// memory implements the Store interface using in-memory maps.
// It's intended for development and testing purposes.
type memory struct {
	mu      sync.RWMutex
	entries map[string]*model.Entry // keyed by sellerID + "/" + sku
}

// NewMemory creates a new in-memory storage implementation.
func NewMemory() Store {
	return &memory{entries: make(map[string]*model.Entry)}
}

func entryKey(sellerID, sku string) string {
	return sellerID + "/" + sku
}

func (m *memory) Get(ctx context.Context, sellerID, sku string) (*model.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.entries[entryKey(sellerID, sku)]
	if !exists {
		return nil, ErrNotFound
	}
	entryCopy := *entry
	return &entryCopy, nil
}

func (m *memory) Insert(ctx context.Context, entry model.Entry) (*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := entryKey(entry.SellerID, entry.SKU)
	if _, exists := m.entries[key]; exists {
		return nil, ErrConflict
	}

	now := time.Now().UTC()
	entry.ID = uuid.New().String()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	entryCopy := entry
	m.entries[key] = &entryCopy
	return &entry, nil
}

func (m *memory) Replace(ctx context.Context, sellerID, sku string, entry model.Entry) (*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.entries[entryKey(sellerID, sku)]
	if !exists {
		return nil, ErrNotFound
	}

	current.Name = entry.Name
	current.Description = entry.Description
	current.UpdatedAt = time.Now().UTC()

	entryCopy := *current
	return &entryCopy, nil
}

func (m *memory) Patch(ctx context.Context, sellerID, sku string, patch model.EntryPatch) (*model.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.entries[entryKey(sellerID, sku)]
	if !exists {
		return nil, ErrNotFound
	}

	if patch.Name != nil {
		current.Name = *patch.Name
	}
	if patch.Description != nil {
		current.Description = *patch.Description
	}
	current.UpdatedAt = time.Now().UTC()

	entryCopy := *current
	return &entryCopy, nil
}

func (m *memory) Delete(ctx context.Context, sellerID, sku string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := entryKey(sellerID, sku)
	if _, exists := m.entries[key]; !exists {
		return false, nil
	}
	delete(m.entries, key)
	return true, nil
}

func (m *memory) CountBySeller(ctx context.Context, sellerID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, entry := range m.entries {
		if entry.SellerID == sellerID {
			count++
		}
	}
	return count, nil
}

func (m *memory) List(ctx context.Context, query model.ListQuery) (*model.ListResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nameLike := strings.ToLower(query.NameLike)

	matched := make([]model.Entry, 0)
	for _, entry := range m.entries {
		if entry.SellerID != query.SellerID {
			continue
		}
		if nameLike != "" && !strings.Contains(strings.ToLower(entry.Name), nameLike) {
			continue
		}
		matched = append(matched, *entry)
	}

	sortEntries(matched, query.Sort)

	total := len(matched)

	offset := query.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return &model.ListResult{Entries: matched[offset:end], Total: total}, nil
}

// sortEntries orders the slice in place. With no sort requested, entries are
// still ordered by creation time so pagination stays stable across calls.
func sortEntries(entries []model.Entry, by string) {
	switch by {
	case model.SortNameAsc:
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	case model.SortNameDesc:
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name > entries[j].Name })
	case model.SortCreatedDesc:
		sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	default:
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
				return entries[i].SKU < entries[j].SKU
			}
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		})
	}
}
