// internal/oidc/validator_test.go
// Package oidc provides unit tests for token validation against a static
// key set.
package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testIssuer = "https://idp.test/realms/catalog"

// newTestValidator returns a validator backed by a freshly generated RSA key
// published under kid "test-key".
func newTestValidator(t *testing.T) (*Validator, *rsa.PrivateKey) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	keys := NewStaticKeyProvider(JWKS{Keys: []JWK{{
		Kty: "RSA",
		Kid: "test-key",
		Use: "sig",
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(privateKey.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(privateKey.E)).Bytes()),
	}}})

	return NewValidator(keys, testIssuer), privateKey
}

// mintToken signs a token with the given overrides applied on top of a valid
// claim set.
func mintToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()

	base := jwt.MapClaims{
		"sub":     "user-1",
		"iss":     testIssuer,
		"exp":     time.Now().Add(time.Hour).Unix(),
		"sellers": "loja1,loja2",
	}
	for k, v := range claims {
		base[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, base)
	if kid != "" {
		token.Header["kid"] = kid
	}

	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

// TestValidateAcceptsGoodToken verifies the happy path including seller
// claim parsing.
func TestValidateAcceptsGoodToken(t *testing.T) {
	v, key := newTestValidator(t)

	claims, err := v.Validate(context.Background(), mintToken(t, key, "test-key", nil))
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("wrong subject: %q", claims.Subject)
	}
	if claims.Issuer != testIssuer {
		t.Errorf("wrong issuer: %q", claims.Issuer)
	}
	if len(claims.Sellers) != 2 || claims.Sellers[0] != "loja1" || claims.Sellers[1] != "loja2" {
		t.Errorf("wrong sellers: %v", claims.Sellers)
	}
}

// TestValidateExpiredToken verifies expiry maps to the dedicated sentinel,
// not the generic invalid-token error.
func TestValidateExpiredToken(t *testing.T) {
	v, key := newTestValidator(t)

	tokenString := mintToken(t, key, "test-key", jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	_, err := v.Validate(context.Background(), tokenString)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if errors.Is(err, ErrInvalidToken) {
		t.Fatal("expired token must not also match ErrInvalidToken")
	}
}

// TestValidateUnknownKid verifies an unresolvable key id names the kid in
// the error.
func TestValidateUnknownKid(t *testing.T) {
	v, key := newTestValidator(t)

	tokenString := mintToken(t, key, "rotated-key", nil)
	_, err := v.Validate(context.Background(), tokenString)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if !strings.Contains(err.Error(), "rotated-key") {
		t.Errorf("error should name the missing kid: %v", err)
	}
}

// TestValidateMissingKid verifies a header without kid is rejected.
func TestValidateMissingKid(t *testing.T) {
	v, key := newTestValidator(t)

	tokenString := mintToken(t, key, "", nil)
	_, err := v.Validate(context.Background(), tokenString)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

// TestValidateWrongIssuer verifies issuer mismatch rejection.
func TestValidateWrongIssuer(t *testing.T) {
	v, key := newTestValidator(t)

	tokenString := mintToken(t, key, "test-key", jwt.MapClaims{"iss": "https://outro.test"})
	_, err := v.Validate(context.Background(), tokenString)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

// TestValidateWrongSignature verifies a token signed by a different key is
// rejected even when the kid resolves.
func TestValidateWrongSignature(t *testing.T) {
	v, _ := newTestValidator(t)

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	tokenString := mintToken(t, otherKey, "test-key", nil)
	_, err = v.Validate(context.Background(), tokenString)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

// TestValidateGarbageToken verifies unparseable input is rejected up front.
func TestValidateGarbageToken(t *testing.T) {
	v, _ := newTestValidator(t)

	_, err := v.Validate(context.Background(), "not.a.token")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

// TestParseSellers verifies the comma-delimited claim parsing rules.
func TestParseSellers(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"loja1", []string{"loja1"}},
		{"loja1,loja2", []string{"loja1", "loja2"}},
		{" loja1 , loja2 ", []string{"loja1", "loja2"}},
		{"loja1,,loja2,", []string{"loja1", "loja2"}},
	}

	for _, tc := range cases {
		got := ParseSellers(tc.raw)
		if len(got) != len(tc.want) {
			t.Errorf("ParseSellers(%q) = %v, want %v", tc.raw, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("ParseSellers(%q) = %v, want %v", tc.raw, got, tc.want)
				break
			}
		}
	}
}
