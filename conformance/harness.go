// Package conformance provides a test harness for verifying catalog API
// compliance over real HTTP. It spins up the full mux against in-memory
// dependencies and drives it the way an external client would.
package conformance

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sellerhub/sellerhub-catalog-go/internal/event"
	"github.com/sellerhub/sellerhub-catalog-go/internal/oidc"
	"github.com/sellerhub/sellerhub-catalog-go/internal/server"
	"github.com/sellerhub/sellerhub-catalog-go/internal/service"
	"github.com/sellerhub/sellerhub-catalog-go/internal/storage"
)

// testIssuer is the issuer baked into harness-minted tokens.
const testIssuer = "https://idp.test/realms/catalog"

// Config holds configuration for the conformance test harness.
type Config struct {
	// RequireAuth enables bearer-token validation against a key pair the
	// harness generates; tokens are minted with MintToken.
	RequireAuth bool
}

// Harness drives a fully wired catalog API over a local HTTP server.
type Harness struct {
	server     *httptest.Server
	store      storage.Store
	signingKey *rsa.PrivateKey // nil unless RequireAuth
}

// NewHarness creates a conformance test harness backed by in-memory storage
// and a no-op event publisher.
func NewHarness(cfg Config) (*Harness, error) {
	store := storage.NewMemory()
	svc := service.New(store, nil, event.NewNoop())

	h := &Harness{store: store}

	var validator *oidc.Validator
	if cfg.RequireAuth {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
		h.signingKey = key

		keys := oidc.NewStaticKeyProvider(oidc.JWKS{Keys: []oidc.JWK{{
			Kty: "RSA",
			Kid: "conformance-key",
			Use: "sig",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
		validator = oidc.NewValidator(keys, testIssuer)
	}

	mux := server.NewMux(svc, store, validator, nil)
	h.server = httptest.NewServer(mux)
	return h, nil
}

// URL returns the base URL of the test server.
func (h *Harness) URL() string {
	return h.server.URL
}

// Close shuts down the test server.
func (h *Harness) Close() {
	h.server.Close()
}

// MintToken signs a bearer token covering the given sellers. Panics when the
// harness was built without RequireAuth.
func (h *Harness) MintToken(sellers string, expiresAt time.Time) (string, error) {
	if h.signingKey == nil {
		return "", fmt.Errorf("harness was built without RequireAuth")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub":     "conformance",
		"iss":     testIssuer,
		"exp":     expiresAt.Unix(),
		"sellers": sellers,
	})
	token.Header["kid"] = "conformance-key"
	return token.SignedString(h.signingKey)
}

// Response captures the pieces of an API reply conformance checks assert on.
type Response struct {
	Status int
	Data   json.RawMessage
	Error  struct {
		Code    string `json:"code"`
		Slug    string `json:"slug"`
		Message string `json:"message"`
	}
}

// Do performs a request with the seller header and optional bearer token,
// decoding the standard response envelope.
func (h *Harness) Do(method, path, seller, token string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, h.URL()+path, reader)
	if err != nil {
		return nil, err
	}
	if seller != "" {
		req.Header.Set("x-seller-id", seller)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &Response{Status: resp.StatusCode}
	if resp.StatusCode == http.StatusNoContent {
		return out, nil
	}

	var envelope struct {
		Data  json.RawMessage `json:"data"`
		Error json.RawMessage `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("malformed response envelope: %w", err)
	}
	out.Data = envelope.Data
	if envelope.Error != nil {
		if err := json.Unmarshal(envelope.Error, &out.Error); err != nil {
			return nil, fmt.Errorf("malformed error body: %w", err)
		}
	}
	return out, nil
}
