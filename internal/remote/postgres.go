package remote

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lib/pq"
)

// sqlStateInsufficientPrivilege is the Postgres SQLSTATE for a denied grant.
const sqlStateInsufficientPrivilege = "42501"

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresStore keeps documents in one JSONB table keyed by
// (tenant_id, collection, doc_id). The table is created on first use.
type PostgresStore struct {
	dsn    string
	table  string
	openDB sqlOpenFunc

	mu sync.Mutex
	db *sql.DB
}

// NewPostgresStore creates a store backed by the given DSN and table.
func NewPostgresStore(dsn, table string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("postgres DSN is required")
	}
	if strings.TrimSpace(table) == "" {
		table = "remote_documents"
	}
	return &PostgresStore{dsn: dsn, table: table, openDB: sql.Open}, nil
}

// ensureReady opens the pool and creates the table on first success. A
// failed attempt is not remembered, so the next call tries again.
func (s *PostgresStore) ensureReady(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	db, err := s.openDB("postgres", s.dsn)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			tenant_id  TEXT NOT NULL,
			collection TEXT NOT NULL,
			doc_id     TEXT NOT NULL,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (tenant_id, collection, doc_id)
		)`, pq.QuoteIdentifier(s.table))
	// The DDL outlives a caller that gives up halfway.
	if _, err := db.ExecContext(context.WithoutCancel(ctx), query); err != nil {
		_ = db.Close()
		return mapPostgresError(err)
	}
	s.db = db
	return nil
}

// FetchAll returns every document of a collection ordered by id.
func (s *PostgresStore) FetchAll(ctx context.Context, tenantID, collection string) ([]Document, error) {
	if err := s.ensureReady(ctx); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", collection, err)
	}
	query := fmt.Sprintf(`SELECT doc_id, data FROM %s WHERE tenant_id = $1 AND collection = $2 ORDER BY doc_id`,
		pq.QuoteIdentifier(s.table))
	rows, err := s.db.QueryContext(ctx, query, tenantID, collection)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", collection, mapPostgresError(err))
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan %s document: %w", collection, err)
		}
		fields, err := decodeFields(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		docs = append(docs, Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", collection, mapPostgresError(err))
	}
	return docs, nil
}

// Count returns the number of documents in a collection.
func (s *PostgresStore) Count(ctx context.Context, tenantID, collection string) (int64, error) {
	if err := s.ensureReady(ctx); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE tenant_id = $1 AND collection = $2`,
		pq.QuoteIdentifier(s.table))
	var n int64
	if err := s.db.QueryRowContext(ctx, query, tenantID, collection).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, mapPostgresError(err))
	}
	return n, nil
}

// Upsert writes one document, replacing its data.
func (s *PostgresStore) Upsert(ctx context.Context, tenantID, collection, id string, fields map[string]any) error {
	if err := s.ensureReady(ctx); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (tenant_id, collection, doc_id, data, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (tenant_id, collection, doc_id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`, pq.QuoteIdentifier(s.table))
	if _, err := s.db.ExecContext(ctx, query, tenantID, collection, id, string(payload)); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, mapPostgresError(err))
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// mapPostgresError wraps an insufficient_privilege error with
// ErrPermissionDenied and leaves everything else untouched.
func mapPostgresError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == sqlStateInsufficientPrivilege {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, pqErr.Message)
	}
	return err
}

func decodeFields(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	fields := map[string]any{}
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}
