// internal/model/catalog.go
// Package model defines the data structures used throughout the catalog service.
// These structures represent the core domain objects for catalog entries and
// their query/request shapes.
package model

import (
	"time"
)

// Entry represents one seller's catalog listing for one SKU.
// It is identified by the natural key (seller_id, sku) plus a surrogate id
// assigned by the store on creation.
// This corresponds to the entries table in storage.
type Entry struct {
	ID          string    `json:"id" db:"id"`                   // Surrogate identifier (UUID)
	SellerID    string    `json:"seller_id" db:"seller_id"`     // Tenant identifier (lowercase alphanumeric)
	SKU         string    `json:"sku" db:"sku"`                 // Stock-keeping unit, unique within a seller
	Name        string    `json:"name" db:"name"`               // Product name (2-200 chars)
	Description string    `json:"description" db:"description"` // Optional description, may be machine-generated
	CreatedAt   time.Time `json:"created_at" db:"created_at"`   // Set once at creation (UTC)
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`   // Set on every successful mutation (UTC)
}

// EntryPatch carries a partial update for an entry. Nil fields were not
// supplied by the caller and must be left untouched.
type EntryPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// IsEmpty reports whether the patch carries no fields at all.
func (p EntryPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil
}

// MatchesEntry reports whether every supplied field is pointwise identical to
// the current stored value, i.e. applying the patch would be a no-op.
func (p EntryPatch) MatchesEntry(e Entry) bool {
	if p.Name != nil && *p.Name != e.Name {
		return false
	}
	if p.Description != nil && *p.Description != e.Description {
		return false
	}
	return true
}

// Sort order values accepted by list queries.
const (
	SortNameAsc     = "name"
	SortNameDesc    = "-name"
	SortCreatedAsc  = "created_at"
	SortCreatedDesc = "-created_at"
)

// ListQuery represents the query parameters for listing catalog entries.
// SellerID is mandatory; the remaining fields refine the scan.
type ListQuery struct {
	SellerID string `json:"seller_id"` // Filter by seller (always applied)
	NameLike string `json:"name_like"` // Case-insensitive substring filter on name
	Limit    int    `json:"limit"`     // Maximum number of entries to return
	Offset   int    `json:"offset"`    // Number of entries to skip
	Sort     string `json:"sort"`      // One of the Sort* values, empty for no sort
}

// ListResult represents the result of listing catalog entries.
type ListResult struct {
	Entries []Entry `json:"entries"` // Entries matching the query
	Total   int     `json:"total"`   // Entries matched before limit/offset
}

// CreateEntryRequest represents the request body for creating an entry.
// The seller id arrives via header and is merged in by the boundary layer.
type CreateEntryRequest struct {
	SellerID string `json:"seller_id,omitempty"`
	SKU      string `json:"sku"`
	Name     string `json:"name"`
}

// UpdateEntryRequest represents the request body for a full replace.
type UpdateEntryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Claims is the decoded, verified payload of a bearer token. Constructed
// fresh per request and never persisted.
type Claims struct {
	Subject string   `json:"sub"`     // Token subject
	Issuer  string   `json:"iss"`     // Token issuer
	Sellers []string `json:"sellers"` // Sellers the bearer may operate on
}

// AllowsSeller reports whether the claims authorize operating on sellerID.
func (c Claims) AllowsSeller(sellerID string) bool {
	for _, s := range c.Sellers {
		if s == sellerID {
			return true
		}
	}
	return false
}
