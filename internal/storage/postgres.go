// internal/storage/postgres.go
// Package storage provides the PostgreSQL implementation of the Store interface.
// This implementation is intended for production use with persistent data storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sellerhub/sellerhub-catalog-go/internal/metrics"
	"github.com/sellerhub/sellerhub-catalog-go/internal/model"
)

// postgres provides persistent storage for catalog entries.
type postgres struct {
	db      *pgxpool.Pool
	metrics *metrics.Metrics
}

// observe records outcome and latency for one storage operation.
func (p *postgres) observe(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	p.metrics.StorageOperationTotal.WithLabelValues(op, status).Inc()
	p.metrics.StorageOperationDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}

// NewPostgres creates a new PostgreSQL storage implementation.
// It establishes a connection pool to the database and initializes the schema.
func NewPostgres(dsn string) (Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database DSN: %w", err)
	}

	// Connection pool tuning
	config.MaxConns = 20
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30
	config.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &postgres{db: pool, metrics: metrics.NewMetrics()}, nil
}

// initSchema initializes the database schema. The UNIQUE(seller_id, sku)
// constraint is what makes the service's check-then-insert pipeline safe
// under concurrent creates: the losing insert surfaces as ErrConflict.
func initSchema(ctx context.Context, db *pgxpool.Pool) error {
	schema := `
		CREATE TABLE IF NOT EXISTS entries (
		    id TEXT PRIMARY KEY,                     -- Surrogate identifier (UUID)
		    seller_id TEXT NOT NULL,                 -- Tenant identifier
		    sku TEXT NOT NULL,                       -- Stock-keeping unit
		    name TEXT NOT NULL,                      -- Product name
		    description TEXT NOT NULL DEFAULT '',    -- Optional description
		    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		    UNIQUE(seller_id, sku)                   -- Natural key uniqueness
		);

		CREATE INDEX IF NOT EXISTS idx_entries_seller_id ON entries(seller_id);
		CREATE INDEX IF NOT EXISTS idx_entries_seller_created_at ON entries(seller_id, created_at);
	`

	_, err := db.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool
func (p *postgres) Close() {
	p.db.Close()
}

const entryColumns = "id, seller_id, sku, name, description, created_at, updated_at"

func scanEntry(row pgx.Row) (*model.Entry, error) {
	var entry model.Entry
	err := row.Scan(
		&entry.ID,
		&entry.SellerID,
		&entry.SKU,
		&entry.Name,
		&entry.Description,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// Get retrieves an entry by its (seller_id, sku) pair.
func (p *postgres) Get(ctx context.Context, sellerID, sku string) (entry *model.Entry, err error) {
	defer func(start time.Time) { p.observe("get", start, err) }(time.Now())

	query := `SELECT ` + entryColumns + ` FROM entries WHERE seller_id = $1 AND sku = $2`

	entry, err = scanEntry(p.db.QueryRow(ctx, query, sellerID, sku))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

// Insert creates a new entry, assigning the surrogate id and timestamps.
func (p *postgres) Insert(ctx context.Context, entry model.Entry) (stored *model.Entry, err error) {
	defer func(start time.Time) { p.observe("insert", start, err) }(time.Now())

	now := time.Now().UTC()
	entry.ID = uuid.New().String()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	query := `INSERT INTO entries (id, seller_id, sku, name, description, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = p.db.Exec(ctx, query,
		entry.ID,
		entry.SellerID,
		entry.SKU,
		entry.Name,
		entry.Description,
		entry.CreatedAt,
		entry.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to insert entry: %w", err)
	}

	return &entry, nil
}

// Replace overwrites the mutable fields of an existing entry.
func (p *postgres) Replace(ctx context.Context, sellerID, sku string, entry model.Entry) (updated *model.Entry, err error) {
	defer func(start time.Time) { p.observe("replace", start, err) }(time.Now())

	query := `UPDATE entries SET name = $1, description = $2, updated_at = $3
	          WHERE seller_id = $4 AND sku = $5
	          RETURNING ` + entryColumns

	updated, err = scanEntry(p.db.QueryRow(ctx, query, entry.Name, entry.Description, time.Now().UTC(), sellerID, sku))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to replace entry: %w", err)
	}
	return updated, nil
}

// Patch applies only the supplied fields to an existing entry.
func (p *postgres) Patch(ctx context.Context, sellerID, sku string, patch model.EntryPatch) (updated *model.Entry, err error) {
	defer func(start time.Time) { p.observe("patch", start, err) }(time.Now())

	sets := []string{}
	args := []interface{}{}
	argIndex := 1

	if patch.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", argIndex))
		args = append(args, *patch.Name)
		argIndex++
	}
	if patch.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", argIndex))
		args = append(args, *patch.Description)
		argIndex++
	}

	sets = append(sets, fmt.Sprintf("updated_at = $%d", argIndex))
	args = append(args, time.Now().UTC())
	argIndex++

	query := fmt.Sprintf(`UPDATE entries SET %s WHERE seller_id = $%d AND sku = $%d RETURNING %s`,
		strings.Join(sets, ", "), argIndex, argIndex+1, entryColumns)
	args = append(args, sellerID, sku)

	updated, err = scanEntry(p.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to patch entry: %w", err)
	}
	return updated, nil
}

// Delete removes an entry, reporting whether a row was actually removed.
func (p *postgres) Delete(ctx context.Context, sellerID, sku string) (removed bool, err error) {
	defer func(start time.Time) { p.observe("delete", start, err) }(time.Now())

	result, err := p.db.Exec(ctx, `DELETE FROM entries WHERE seller_id = $1 AND sku = $2`, sellerID, sku)
	if err != nil {
		return false, fmt.Errorf("failed to delete entry: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// CountBySeller returns how many entries the seller has.
func (p *postgres) CountBySeller(ctx context.Context, sellerID string) (count int, err error) {
	defer func(start time.Time) { p.observe("count", start, err) }(time.Now())

	err = p.db.QueryRow(ctx, `SELECT COUNT(*) FROM entries WHERE seller_id = $1`, sellerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// List scans a seller's entries with optional case-insensitive name filter,
// pagination and sorting.
func (p *postgres) List(ctx context.Context, query model.ListQuery) (result *model.ListResult, err error) {
	defer func(start time.Time) { p.observe("list", start, err) }(time.Now())

	where := `WHERE seller_id = $1`
	args := []interface{}{query.SellerID}
	argIndex := 2

	if query.NameLike != "" {
		where += fmt.Sprintf(` AND name ILIKE '%%' || $%d || '%%'`, argIndex)
		args = append(args, query.NameLike)
		argIndex++
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM entries ` + where
	if err := p.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}

	orderBy := orderClause(query.Sort)

	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	listQuery := fmt.Sprintf(`SELECT %s FROM entries %s %s LIMIT $%d OFFSET $%d`,
		entryColumns, where, orderBy, argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := p.db.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.Entry, 0)
	for rows.Next() {
		var entry model.Entry
		err := rows.Scan(
			&entry.ID,
			&entry.SellerID,
			&entry.SKU,
			&entry.Name,
			&entry.Description,
			&entry.CreatedAt,
			&entry.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}

	return &model.ListResult{Entries: entries, Total: total}, nil
}

// orderClause maps the caller's sort value to a fixed ORDER BY clause. Only
// known values are mapped, which keeps the sort out of SQL injection reach.
func orderClause(sortBy string) string {
	switch sortBy {
	case model.SortNameAsc:
		return "ORDER BY name ASC"
	case model.SortNameDesc:
		return "ORDER BY name DESC"
	case model.SortCreatedDesc:
		return "ORDER BY created_at DESC"
	default:
		return "ORDER BY created_at ASC, sku ASC"
	}
}
