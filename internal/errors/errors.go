// Package errors provides standardized error handling for the catalog service.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a standardized error code for the catalog service.
type ErrorCode string

const (
	// Validation errors
	CAT_VALIDATION  ErrorCode = "CAT_VALIDATION"  // Malformed seller_id/sku/name
	CAT_BAD_REQUEST ErrorCode = "CAT_BAD_REQUEST" // Bad request
	CAT_NO_OP       ErrorCode = "CAT_NO_OP"       // Patch payload empty or identical to stored state

	// Authentication/Authorization errors
	CAT_AUTHN ErrorCode = "CAT_AUTHN" // Authentication failed
	CAT_AUTHZ ErrorCode = "CAT_AUTHZ" // Caller not permitted for the requested seller

	// Resource errors
	CAT_NOT_FOUND ErrorCode = "CAT_NOT_FOUND" // Entry, seller, or filtered result absent
	CAT_CONFLICT  ErrorCode = "CAT_CONFLICT"  // Entry already exists for (seller_id, sku)

	// Server errors
	CAT_UPSTREAM    ErrorCode = "CAT_UPSTREAM"    // Upstream call failed (identity provider, enrichment)
	CAT_INTERNAL    ErrorCode = "CAT_INTERNAL"    // Internal server error
	CAT_UNAVAILABLE ErrorCode = "CAT_UNAVAILABLE" // Service unavailable
)

// Error represents a standardized error response. Slug and Message form the
// stable caller-visible pair; internal exceptions are never exposed directly.
type Error struct {
	Code          ErrorCode   `json:"code"`
	Slug          string      `json:"slug"`
	Message       string      `json:"message"`
	CorrelationID string      `json:"correlationId,omitempty"`
	Details       interface{} `json:"details,omitempty"`
	HTTPStatus    int         `json:"-"`
}

// New creates a new Error with the specified code, slug and message.
func New(code ErrorCode, slug, message string) *Error {
	return &Error{
		Code:       code,
		Slug:       slug,
		Message:    message,
		HTTPStatus: httpStatusCodeForCode(code),
	}
}

// WithCorrelationID returns a shallow copy carrying the correlation id.
func (e *Error) WithCorrelationID(id string) *Error {
	clone := *e
	clone.CorrelationID = id
	return &clone
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (details: %v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is enables errors.Is matching on the code/slug pair, so two instances of
// the same condition compare equal regardless of correlation id.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code && e.Slug == other.Slug
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// httpStatusCodeForCode maps error codes to HTTP status codes.
func httpStatusCodeForCode(code ErrorCode) int {
	switch code {
	case CAT_VALIDATION:
		return http.StatusUnprocessableEntity
	case CAT_BAD_REQUEST, CAT_NO_OP:
		return http.StatusBadRequest
	case CAT_AUTHN:
		return http.StatusUnauthorized
	case CAT_AUTHZ:
		return http.StatusForbidden
	case CAT_NOT_FOUND:
		return http.StatusNotFound
	case CAT_CONFLICT:
		return http.StatusConflict
	case CAT_UPSTREAM:
		return http.StatusBadGateway
	case CAT_UNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Catalog error conditions. Each carries the stable slug/message pair the
// API exposes for that condition.

// SellerIDInvalid is returned when the seller id fails length or charset
// validation.
func SellerIDInvalid() *Error {
	return New(CAT_VALIDATION, "422-seller-id-invalido", "Seller ID inválido")
}

// SKULengthInvalid is returned when the SKU fails length or charset
// validation.
func SKULengthInvalid() *Error {
	return New(CAT_VALIDATION, "422-tamanho-sku-nao-permitido", "SKU fora do tamanho permitido")
}

// ProductNameLengthInvalid is returned when the product name is blank or
// outside the 2-200 character range.
func ProductNameLengthInvalid() *Error {
	return New(CAT_VALIDATION, "422-tamanho-nome-produto-nao-permitido", "Nome do Produto fora do tamanho permitido")
}

// ProductDescriptionLengthInvalid is returned when the description exceeds
// the 300 character limit.
func ProductDescriptionLengthInvalid() *Error {
	return New(CAT_VALIDATION, "422-tamanho-descricao-nao-permitido", "Descrição do Produto fora do tamanho permitido")
}

// ProductNameMissing is returned when a full replace arrives without a name.
func ProductNameMissing() *Error {
	return New(CAT_VALIDATION, "422-nome-produto-obrigatorio", "Nome do Produto é obrigatório")
}

// SellerHeaderMissing is returned when neither seller header is present.
func SellerHeaderMissing() *Error {
	return New(CAT_VALIDATION, "422-seller-id-obrigatorio", "Identificador do seller é obrigatório")
}

// ProductAlreadyExists is returned when an entry already exists for the
// (seller_id, sku) pair.
func ProductAlreadyExists() *Error {
	return New(CAT_CONFLICT, "409-produto-ja-existe", "Este Produto já existe")
}

// ProductNotExist is returned when no entry exists for the (seller_id, sku)
// pair.
func ProductNotExist() *Error {
	return New(CAT_NOT_FOUND, "404-produto-nao-existe", "Este Produto não existe")
}

// SellerIDNotExist is returned when the seller has no entries at all.
func SellerIDNotExist() *Error {
	return New(CAT_NOT_FOUND, "404-seller-id-nao-encontrado", "SellerID não encontrado")
}

// LikeNotFound is returned when a name filter matched nothing.
func LikeNotFound() *Error {
	return New(CAT_NOT_FOUND, "404-produto-pesquisado-nao-encontrado", "Produto pesquisado não encontrado")
}

// NoFieldsToUpdate is returned when a patch carries no fields or only fields
// identical to the stored values.
func NoFieldsToUpdate() *Error {
	return New(CAT_NO_OP, "400-nenhum-campo-para-atualizar", "Nenhum campo válido para atualizar")
}

// Forbidden is returned when the authenticated caller may not operate on the
// requested seller.
func Forbidden() *Error {
	return New(CAT_AUTHZ, "403-seller-nao-autorizado", "Não autorizado para trabalhar com este seller")
}

// Unauthorized wraps an authentication failure with the stable slug the API
// exposes.
func Unauthorized(message string) *Error {
	return New(CAT_AUTHN, "401-nao-autenticado", message)
}
