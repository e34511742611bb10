// internal/server/mux.go
// Package server implements the HTTP handlers and routing for the catalog
// service. It provides RESTful endpoints for catalog entry operations with
// seller identification, optional bearer-token authentication and
// per-request correlation ids.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	errordefs "github.com/sellerhub/sellerhub-catalog-go/internal/errors"
	"github.com/sellerhub/sellerhub-catalog-go/internal/metrics"
	"github.com/sellerhub/sellerhub-catalog-go/internal/model"
	"github.com/sellerhub/sellerhub-catalog-go/internal/oidc"
	"github.com/sellerhub/sellerhub-catalog-go/internal/service"
	"github.com/sellerhub/sellerhub-catalog-go/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ContextKey is used for context values to avoid collisions
// when storing values in request context
type ContextKey string

const (
	// Context keys for storing request-scoped values
	ContextKeySellerID      ContextKey = "sellerId"      // Seller resolved from the request headers
	ContextKeyClaims        ContextKey = "claims"        // Verified token claims
	ContextKeyCorrelationID ContextKey = "correlationId" // Unique ID for request tracking

	// Default limits for list operations
	DefaultListLimit = 50  // Default number of entries to return
	MaxListLimit     = 100 // Maximum number of entries to return
)

// Mux handles HTTP requests for the catalog service.
type Mux struct {
	mux       *http.ServeMux
	svc       *service.Catalog
	store     storage.Store   // Used by the readiness probe
	validator *oidc.Validator // nil disables bearer-token authentication
	metrics   *metrics.Metrics

	// CORS configuration
	corsAllowedOrigins []string // Allowed origins for CORS (empty means deny all)
}

// NewMux creates a new HTTP mux with all catalog endpoints.
// Parameters:
//   - svc: Catalog service owning the business rules
//   - store: Storage used by the readiness probe
//   - validator: Bearer-token validator; nil falls back to header-only
//     seller identification
//   - corsAllowedOrigins: Allowed origins for CORS
func NewMux(svc *service.Catalog, store storage.Store, validator *oidc.Validator, corsAllowedOrigins []string) *http.ServeMux {
	m := &Mux{
		mux:                http.NewServeMux(),
		svc:                svc,
		store:              store,
		validator:          validator,
		metrics:            metrics.NewMetrics(),
		corsAllowedOrigins: corsAllowedOrigins,
	}

	// Register health endpoints
	m.mux.HandleFunc("/healthz", m.handleHealthz)
	m.mux.HandleFunc("/readyz", m.handleReadyz)
	m.mux.Handle("/metrics", promhttp.Handler())

	// Catalog endpoints; the trailing-slash pattern carries the SKU
	m.mux.HandleFunc("/catalog", m.withMiddleware("/catalog", m.handleCollection))
	m.mux.HandleFunc("/catalog/", m.withMiddleware("/catalog/{sku}", m.handleEntry))

	return m.mux
}

// resolveSeller reads the seller identification header. x-seller-id is the
// current header; seller-id is accepted for older clients.
func resolveSeller(r *http.Request) string {
	if seller := r.Header.Get("x-seller-id"); seller != "" {
		return seller
	}
	return r.Header.Get("seller-id")
}

// withMiddleware applies CORS, correlation id, seller identification,
// authentication/authorization, request logging and metrics to handlers.
func (m *Mux) withMiddleware(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Handle CORS preflight requests
		if r.Method == "OPTIONS" {
			if m.applyCORS(w, r) {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Correlation-Id, X-Seller-Id, Seller-Id")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}
			w.WriteHeader(http.StatusOK)
			return
		}

		m.applyCORS(w, r)

		// Add correlation ID if not present
		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		r = r.WithContext(context.WithValue(r.Context(), ContextKeyCorrelationID, correlationID))
		w.Header().Set("X-Correlation-Id", correlationID)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			duration := time.Since(start)
			status := strconv.Itoa(sw.status)
			m.metrics.HTTPRequestTotal.WithLabelValues(r.Method, route, status).Inc()
			m.metrics.HTTPRequestDuration.WithLabelValues(r.Method, route, status).Observe(duration.Seconds())
			m.logRequest(r, sw.status, duration, correlationID)
		}()

		// Every catalog operation is seller-scoped
		sellerID := resolveSeller(r)
		if sellerID == "" {
			m.writeErrorDef(sw, errordefs.SellerHeaderMissing().WithCorrelationID(correlationID))
			return
		}
		r = r.WithContext(context.WithValue(r.Context(), ContextKeySellerID, sellerID))

		// Bearer-token authentication when a validator is wired; the seller
		// claimed in the header must appear in the token's membership list.
		if m.validator != nil {
			claims, err := m.authenticate(r)
			if err != nil {
				m.metrics.TokenValidationTotal.WithLabelValues("failure").Inc()
				var errorDef *errordefs.Error
				if !errors.As(err, &errorDef) {
					errorDef = errordefs.Unauthorized(err.Error())
				}
				m.writeErrorDef(sw, errorDef.WithCorrelationID(correlationID))
				return
			}
			m.metrics.TokenValidationTotal.WithLabelValues("success").Inc()

			if !claims.AllowsSeller(strings.ToLower(strings.TrimSpace(sellerID))) {
				m.writeErrorDef(sw, errordefs.Forbidden().WithCorrelationID(correlationID))
				return
			}
			r = r.WithContext(context.WithValue(r.Context(), ContextKeyClaims, claims))
		}

		h(sw, r)
	}
}

// applyCORS sets the allow-origin header when the request origin is allowed,
// reporting whether it was.
func (m *Mux) applyCORS(w http.ResponseWriter, r *http.Request) bool {
	if len(m.corsAllowedOrigins) == 0 {
		return false
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	for _, allowedOrigin := range m.corsAllowedOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			return true
		}
	}
	return false
}

// authenticate validates the bearer token and returns its claims.
func (m *Mux) authenticate(r *http.Request) (model.Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return model.Claims{}, errordefs.Unauthorized("missing Authorization header")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return model.Claims{}, errordefs.Unauthorized("invalid Authorization header format")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	claims, err := m.validator.Validate(r.Context(), tokenString)
	if err != nil {
		return model.Claims{}, errordefs.Unauthorized(err.Error())
	}
	return claims, nil
}

// statusWriter captures the status code written by a handler so the
// middleware can log and record it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// writeSuccess writes a successful response
func (m *Mux) writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	if statusCode == http.StatusNoContent {
		w.WriteHeader(statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]interface{}{
		"data": data,
	}
	_ = json.NewEncoder(w).Encode(response)
}

// writeErrorDef writes an error response carrying the stable slug/message
// pair; internal details are never exposed.
func (m *Mux) writeErrorDef(w http.ResponseWriter, err *errordefs.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	response := map[string]interface{}{
		"error": err,
	}
	_ = json.NewEncoder(w).Encode(response)
}

// writeServiceError translates a service failure into an HTTP response.
// Typed catalog errors carry their own status; anything else is a 500.
func (m *Mux) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	correlationID, _ := r.Context().Value(ContextKeyCorrelationID).(string)

	var errorDef *errordefs.Error
	if !errors.As(err, &errorDef) {
		slog.Error("unhandled service error", "error", err, "correlation_id", correlationID)
		errorDef = errordefs.New(errordefs.CAT_INTERNAL, "500-erro-interno", "Erro interno")
	}
	m.writeErrorDef(w, errorDef.WithCorrelationID(correlationID))
}

// logRequest logs request details
func (m *Mux) logRequest(r *http.Request, status int, duration time.Duration, correlationID string) {
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("correlation_id", correlationID),
	}

	if sellerID, ok := r.Context().Value(ContextKeySellerID).(string); ok && sellerID != "" {
		attrs = append(attrs, slog.String("seller_id", sellerID))
	}

	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.LogAttrs(r.Context(), level, "request completed", attrs...)
}

// handleHealthz handles liveness health check requests
func (m *Mux) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz handles readiness health check requests
func (m *Mux) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// A count on an arbitrary seller exercises store connectivity; the
	// result does not matter, only that the query succeeds.
	if _, err := m.store.CountBySeller(ctx, "health-check"); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleCollection dispatches /catalog requests by method.
func (m *Mux) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		m.handleListEntries(w, r)
	case http.MethodPost:
		m.handleCreateEntry(w, r)
	default:
		m.writeErrorDef(w, errordefs.New(errordefs.CAT_BAD_REQUEST, "400-metodo-nao-permitido", "Método não permitido"))
	}
}

// handleEntry dispatches /catalog/{sku} requests by method.
func (m *Mux) handleEntry(w http.ResponseWriter, r *http.Request) {
	sku := strings.TrimPrefix(r.URL.Path, "/catalog/")
	if sku == "" || strings.Contains(sku, "/") {
		m.writeErrorDef(w, errordefs.New(errordefs.CAT_BAD_REQUEST, "400-sku-invalido", "SKU inválido no caminho"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		m.handleGetEntry(w, r, sku)
	case http.MethodPut:
		m.handleUpdateEntry(w, r, sku)
	case http.MethodPatch:
		m.handlePatchEntry(w, r, sku)
	case http.MethodDelete:
		m.handleDeleteEntry(w, r, sku)
	default:
		m.writeErrorDef(w, errordefs.New(errordefs.CAT_BAD_REQUEST, "400-metodo-nao-permitido", "Método não permitido"))
	}
}

// handleCreateEntry handles POST /catalog
func (m *Mux) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("catalog-service").Start(r.Context(), "handleCreateEntry")
	defer span.End()
	defer r.Body.Close()

	var req model.CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeServiceError(w, r, errordefs.New(errordefs.CAT_BAD_REQUEST, "400-json-invalido", "JSON inválido"))
		return
	}

	sellerID := ctx.Value(ContextKeySellerID).(string)
	span.SetAttributes(
		attribute.String("seller_id", sellerID),
		attribute.String("sku", req.SKU),
	)

	entry, err := m.svc.Create(ctx, model.Entry{
		SellerID: sellerID,
		SKU:      req.SKU,
		Name:     req.Name,
	})
	if err != nil {
		span.SetStatus(codes.Error, "create failed")
		m.writeServiceError(w, r, err)
		return
	}

	m.writeSuccess(w, http.StatusCreated, entry)
}

// handleListEntries handles GET /catalog
func (m *Mux) handleListEntries(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("catalog-service").Start(r.Context(), "handleListEntries")
	defer span.End()

	sellerID := ctx.Value(ContextKeySellerID).(string)

	limit := DefaultListLimit
	if limitStr := r.URL.Query().Get("_limit"); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil && v > 0 {
			limit = v
			if limit > MaxListLimit {
				limit = MaxListLimit
			}
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("_offset"); offsetStr != "" {
		if v, err := strconv.Atoi(offsetStr); err == nil && v > 0 {
			offset = v
		}
	}

	query := model.ListQuery{
		SellerID: sellerID,
		NameLike: r.URL.Query().Get("name_like"),
		Limit:    limit,
		Offset:   offset,
		Sort:     r.URL.Query().Get("_sort"),
	}

	span.SetAttributes(
		attribute.String("seller_id", sellerID),
		attribute.Bool("has_name_filter", query.NameLike != ""),
	)

	result, err := m.svc.List(ctx, query)
	if err != nil {
		span.SetStatus(codes.Error, "list failed")
		m.writeServiceError(w, r, err)
		return
	}

	m.writeSuccess(w, http.StatusOK, result)
}

// handleGetEntry handles GET /catalog/{sku}
func (m *Mux) handleGetEntry(w http.ResponseWriter, r *http.Request, sku string) {
	ctx, span := otel.Tracer("catalog-service").Start(r.Context(), "handleGetEntry")
	defer span.End()

	sellerID := ctx.Value(ContextKeySellerID).(string)
	span.SetAttributes(attribute.String("seller_id", sellerID), attribute.String("sku", sku))

	entry, err := m.svc.Get(ctx, sellerID, sku)
	if err != nil {
		span.SetStatus(codes.Error, "get failed")
		m.writeServiceError(w, r, err)
		return
	}

	m.writeSuccess(w, http.StatusOK, entry)
}

// handleUpdateEntry handles PUT /catalog/{sku}
func (m *Mux) handleUpdateEntry(w http.ResponseWriter, r *http.Request, sku string) {
	ctx, span := otel.Tracer("catalog-service").Start(r.Context(), "handleUpdateEntry")
	defer span.End()
	defer r.Body.Close()

	var req model.UpdateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeServiceError(w, r, errordefs.New(errordefs.CAT_BAD_REQUEST, "400-json-invalido", "JSON inválido"))
		return
	}

	sellerID := ctx.Value(ContextKeySellerID).(string)
	span.SetAttributes(attribute.String("seller_id", sellerID), attribute.String("sku", sku))

	entry, err := m.svc.Update(ctx, sellerID, sku, req)
	if err != nil {
		span.SetStatus(codes.Error, "update failed")
		m.writeServiceError(w, r, err)
		return
	}

	m.writeSuccess(w, http.StatusAccepted, entry)
}

// handlePatchEntry handles PATCH /catalog/{sku}
func (m *Mux) handlePatchEntry(w http.ResponseWriter, r *http.Request, sku string) {
	ctx, span := otel.Tracer("catalog-service").Start(r.Context(), "handlePatchEntry")
	defer span.End()
	defer r.Body.Close()

	var patch model.EntryPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		span.SetStatus(codes.Error, "invalid JSON")
		m.writeServiceError(w, r, errordefs.New(errordefs.CAT_BAD_REQUEST, "400-json-invalido", "JSON inválido"))
		return
	}

	sellerID := ctx.Value(ContextKeySellerID).(string)
	span.SetAttributes(attribute.String("seller_id", sellerID), attribute.String("sku", sku))

	entry, err := m.svc.Patch(ctx, sellerID, sku, patch)
	if err != nil {
		span.SetStatus(codes.Error, "patch failed")
		m.writeServiceError(w, r, err)
		return
	}

	m.writeSuccess(w, http.StatusAccepted, entry)
}

// handleDeleteEntry handles DELETE /catalog/{sku}
func (m *Mux) handleDeleteEntry(w http.ResponseWriter, r *http.Request, sku string) {
	ctx, span := otel.Tracer("catalog-service").Start(r.Context(), "handleDeleteEntry")
	defer span.End()

	sellerID := ctx.Value(ContextKeySellerID).(string)
	span.SetAttributes(attribute.String("seller_id", sellerID), attribute.String("sku", sku))

	if _, err := m.svc.Delete(ctx, sellerID, sku); err != nil {
		span.SetStatus(codes.Error, "delete failed")
		m.writeServiceError(w, r, err)
		return
	}

	m.writeSuccess(w, http.StatusNoContent, nil)
}
