// internal/oidc/validator.go
package oidc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sellerhub/sellerhub-catalog-go/internal/model"
)

// Typed validation failures. Callers match with errors.Is; the messages are
// the stable caller-visible text for each condition.
var (
	// ErrTokenExpired is returned when the token's exp claim is in the past.
	ErrTokenExpired = errors.New("Token expirado")
	// ErrInvalidToken covers malformed tokens, unresolvable keys and
	// signature or issuer failures.
	ErrInvalidToken = errors.New("Token inválido")
	// ErrOAuth is the catch-all for unexpected failures in the validation
	// flow, including identity-provider fetch errors.
	ErrOAuth = errors.New("Falha ao validar o token")
)

// Validator verifies a bearer token's signature, issuer and expiry against
// the provider's cached signing keys, returning claims or a typed failure.
type Validator struct {
	keys   *KeyProvider
	issuer string
}

// NewValidator creates a validator bound to a key provider and the expected
// issuer.
func NewValidator(keys *KeyProvider, issuer string) *Validator {
	return &Validator{keys: keys, issuer: issuer}
}

// Validate runs the full trust chain: read the unverified header, resolve
// the signing key by kid, verify signature/issuer/expiry and extract claims.
func (v *Validator) Validate(ctx context.Context, tokenString string) (model.Claims, error) {
	// Parse without verification to read kid and alg from the header.
	unverified, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return model.Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	kid, ok := unverified.Header["kid"].(string)
	if !ok || kid == "" {
		return model.Claims{}, fmt.Errorf("%w: cabeçalho sem 'kid'", ErrInvalidToken)
	}

	key, found, err := v.keys.KeyByID(ctx, kid)
	if err != nil {
		return model.Claims{}, fmt.Errorf("%w: %v", ErrOAuth, err)
	}
	if !found {
		return model.Claims{}, fmt.Errorf("%w: Chave '%s' não encontrada", ErrInvalidToken, kid)
	}

	publicKey, err := key.PublicKey()
	if err != nil {
		return model.Claims{}, fmt.Errorf("%w: %v", ErrOAuth, err)
	}

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return publicKey, nil
	}

	parsed, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, keyFunc,
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Claims{}, ErrTokenExpired
		}
		return model.Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !parsed.Valid {
		return model.Claims{}, ErrInvalidToken
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return model.Claims{}, ErrInvalidToken
	}

	return claimsFromToken(mapClaims), nil
}

// claimsFromToken maps the decoded payload onto the request identity model.
// The sellers claim arrives comma-delimited and is parsed to a list.
func claimsFromToken(mapClaims jwt.MapClaims) model.Claims {
	claims := model.Claims{}

	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Subject = sub
	}
	if iss, ok := mapClaims["iss"].(string); ok {
		claims.Issuer = iss
	}
	if sellers, ok := mapClaims["sellers"].(string); ok {
		claims.Sellers = ParseSellers(sellers)
	}

	return claims
}

// ParseSellers splits the comma-delimited seller-membership claim, trimming
// whitespace and dropping empty items.
func ParseSellers(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	sellers := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			sellers = append(sellers, s)
		}
	}
	return sellers
}
