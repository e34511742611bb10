// internal/oidc/provider.go
// Package oidc implements the trust chain for bearer tokens: it fetches and
// caches the identity provider's discovery document and signing-key set, and
// validates tokens against the resolved keys.
package oidc

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"
)

// DiscoveryDocument is the subset of the identity provider's OpenID metadata
// the service consumes.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kty string `json:"kty"` // Key type
	Kid string `json:"kid"` // Key ID
	Use string `json:"use"` // Public key use
	Alg string `json:"alg"` // Algorithm
	N   string `json:"n"`   // RSA modulus
	E   string `json:"e"`   // RSA public exponent
}

// PublicKey decodes the RSA key material.
func (k JWK) PublicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

// KeyProvider fetches and caches the discovery document and signing-key set.
// Both are fetched at most once per process lifetime unless Refresh is
// called; the fetched content is immutable per key id, so concurrent first
// requests racing to populate the cache are harmless.
type KeyProvider struct {
	wellKnownURL string
	httpClient   *http.Client

	mu        sync.RWMutex
	discovery *DiscoveryDocument
	keys      *JWKS
}

// NewKeyProvider creates a key provider for the given discovery document URL.
func NewKeyProvider(wellKnownURL string) *KeyProvider {
	return &KeyProvider{
		wellKnownURL: wellKnownURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewStaticKeyProvider creates a key provider preloaded with a fixed key set.
// It never reaches out to an identity provider; intended for tests.
func NewStaticKeyProvider(keys JWKS) *KeyProvider {
	return &KeyProvider{
		discovery: &DiscoveryDocument{},
		keys:      &keys,
	}
}

func (p *KeyProvider) fetchJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch of %s failed with status %d", url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}

	return nil
}

// Discovery returns the cached discovery document, fetching it on first use.
func (p *KeyProvider) Discovery(ctx context.Context) (*DiscoveryDocument, error) {
	p.mu.RLock()
	if p.discovery != nil {
		doc := p.discovery
		p.mu.RUnlock()
		return doc, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if p.discovery != nil {
		return p.discovery, nil
	}

	var doc DiscoveryDocument
	if err := p.fetchJSON(ctx, p.wellKnownURL, &doc); err != nil {
		return nil, err
	}

	p.discovery = &doc
	return p.discovery, nil
}

// Keys returns the cached signing-key set, fetching it on first use via the
// discovery document's jwks_uri.
func (p *KeyProvider) Keys(ctx context.Context) (*JWKS, error) {
	p.mu.RLock()
	if p.keys != nil {
		keys := p.keys
		p.mu.RUnlock()
		return keys, nil
	}
	p.mu.RUnlock()

	doc, err := p.Discovery(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.keys != nil {
		return p.keys, nil
	}

	var keys JWKS
	if err := p.fetchJSON(ctx, doc.JWKSURI, &keys); err != nil {
		return nil, err
	}

	p.keys = &keys
	return p.keys, nil
}

// KeyByID returns the key whose kid matches, or (nil, false) when the cached
// key set has no such entry.
func (p *KeyProvider) KeyByID(ctx context.Context, kid string) (*JWK, bool, error) {
	keys, err := p.Keys(ctx)
	if err != nil {
		return nil, false, err
	}

	for _, key := range keys.Keys {
		if key.Kid == kid {
			return &key, true, nil
		}
	}

	return nil, false, nil
}

// Refresh drops the cached discovery document and key set so the next use
// fetches fresh copies. Intended for key-rotation handling.
func (p *KeyProvider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	p.discovery = nil
	p.keys = nil
	p.mu.Unlock()

	_, err := p.Keys(ctx)
	return err
}
