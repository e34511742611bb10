// internal/event/nats.go
// Package event provides NATS JetStream implementation for event publishing.
// It streams catalog entry mutations so downstream consumers (search
// indexers, enrichment workers) can react without polling the store.
package event

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
	"github.com/sellerhub/sellerhub-catalog-go/internal/metrics"
	"github.com/sellerhub/sellerhub-catalog-go/internal/model"
)

// Publisher defines the event publishing operations required by the catalog
// service. Publishing is always best-effort: a failed publish never fails
// the originating request.
type Publisher interface {
	PublishEntryCreated(ctx context.Context, entry model.Entry) error
	PublishEntryUpdated(ctx context.Context, entry model.Entry) error
	PublishEntryDeleted(ctx context.Context, sellerID, sku string) error

	// Close closes the publisher connection
	Close() error
}

// noop is a no-op implementation of Publisher for when NATS is not
// configured. It allows the service to function without event streaming.
type noop struct{}

func (n *noop) Close() error { return nil }

func (n *noop) PublishEntryCreated(ctx context.Context, entry model.Entry) error { return nil }

func (n *noop) PublishEntryUpdated(ctx context.Context, entry model.Entry) error { return nil }

func (n *noop) PublishEntryDeleted(ctx context.Context, sellerID, sku string) error { return nil }

// NewNoop returns a publisher that discards every event.
func NewNoop() Publisher { return &noop{} }

// natsPub is the NATS JetStream implementation of Publisher.
type natsPub struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	metrics *metrics.Metrics
}

// observe records outcome and latency for one publish attempt.
func (p *natsPub) observe(eventType string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	p.metrics.EventPublishTotal.WithLabelValues(eventType, status).Inc()
	p.metrics.EventPublishDuration.WithLabelValues(eventType, status).Observe(time.Since(start).Seconds())
}

// NewPublisher connects to the given NATS URL and prepares the catalog
// stream. When url is empty or the connection fails, a no-op publisher is
// returned instead so the service starts regardless.
func NewPublisher(url string) Publisher {
	if url == "" {
		return &noop{}
	}

	nc, err := nats.Connect(url)
	if err != nil {
		slog.Warn("NATS connect failed, using noop publisher", "error", err)
		return &noop{}
	}

	js, err := nc.JetStream()
	if err != nil {
		slog.Warn("NATS JetStream context creation failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	if err := initStream(js); err != nil {
		slog.Warn("NATS stream initialization failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	return &natsPub{nc: nc, js: js, metrics: metrics.NewMetrics()}
}

// initStream creates the CATALOG_ENTRIES stream for entry mutation events.
func initStream(js nats.JetStreamContext) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      "CATALOG_ENTRIES",
		Subjects:  []string{"catalog.entries.*"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Discard:   nats.DiscardOld,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create CATALOG_ENTRIES stream: %w", err)
	}
	return nil
}

// Envelope is the standard wrapper for every published event. The event id
// is a ULID so consumers can order events lexicographically.
type Envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Version    string      `json:"version"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

// Close closes the NATS connection.
func (p *natsPub) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

func (p *natsPub) publish(ctx context.Context, eventType string, payload interface{}) (err error) {
	defer func(start time.Time) { p.observe(eventType, start, err) }(time.Now())

	entropy := ulid.Monotonic(rand.Reader, 0)
	envelope := Envelope{
		ID:         ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String(),
		Type:       eventType,
		Version:    "1.0.0",
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}

	b, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(eventType, b, nats.Context(ctx))
	return err
}

// PublishEntryCreated publishes an entry created event.
func (p *natsPub) PublishEntryCreated(ctx context.Context, entry model.Entry) error {
	return p.publish(ctx, "catalog.entries.created", entry)
}

// PublishEntryUpdated publishes an entry updated event.
func (p *natsPub) PublishEntryUpdated(ctx context.Context, entry model.Entry) error {
	return p.publish(ctx, "catalog.entries.updated", entry)
}

// PublishEntryDeleted publishes an entry deleted event carrying the natural
// key of the removed entry.
func (p *natsPub) PublishEntryDeleted(ctx context.Context, sellerID, sku string) error {
	payload := map[string]string{"seller_id": sellerID, "sku": sku}
	return p.publish(ctx, "catalog.entries.deleted", payload)
}
