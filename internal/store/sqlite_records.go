package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/entity"
)

// registered returns the kind as known to the registry. Table and column
// names are interpolated into SQL, so only registered descriptors are used.
func registered(kind entity.Kind) (entity.Kind, error) {
	k, err := entity.Lookup(kind.Name)
	if err != nil {
		return entity.Kind{}, fmt.Errorf("%w: %s", ErrUnknownTable, kind.Name)
	}
	return k, nil
}

// GetRecord returns one record of a kind for a tenant.
func (s *SQLiteStore) GetRecord(ctx context.Context, tenantID string, kind entity.Kind, key string) (entity.Record, error) {
	k, err := registered(kind)
	if err != nil {
		return nil, err
	}
	id, err := k.KeyValue(key)
	if err != nil {
		return nil, err
	}

	cols := k.Columns()
	query := fmt.Sprintf("SELECT %s FROM %s WHERE tenant_id = ? AND id = ?", strings.Join(cols, ", "), k.Name)

	dest := scanTargets(k)
	err = s.db.QueryRowContext(ctx, query, tenantID, id).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", k.Name, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", k.Name, key, err)
	}
	return recordFromScan(k, dest), nil
}

// InsertRecordIfAbsent inserts a record unless one with the same key already
// exists for the tenant. Reports whether a row was written.
func (s *SQLiteStore) InsertRecordIfAbsent(ctx context.Context, tenantID string, kind entity.Kind, rec entity.Record) (bool, error) {
	k, err := registered(kind)
	if err != nil {
		return false, err
	}
	cols, args, err := insertArgs(k, tenantID, rec)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(tenant_id, id) DO NOTHING",
		k.Name, strings.Join(cols, ", "), placeholders(len(cols)),
	)
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert %s %v: %w", k.Name, rec[entity.ColumnID], err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// OverwriteRecord replaces every field of an existing record.
// Returns ErrNotFound if the record does not exist.
func (s *SQLiteStore) OverwriteRecord(ctx context.Context, tenantID string, kind entity.Kind, rec entity.Record) error {
	k, err := registered(kind)
	if err != nil {
		return err
	}
	id, ok := rec[entity.ColumnID]
	if !ok {
		return fmt.Errorf("overwrite %s: %w", k.Name, entity.ErrMissingPrimaryKey)
	}

	sets := make([]string, 0, len(k.Fields))
	args := make([]any, 0, len(k.Fields)+2)
	for _, f := range k.Fields {
		v, err := toSQL(f, rec[f.Column])
		if err != nil {
			return fmt.Errorf("overwrite %s %v: %w", k.Name, id, err)
		}
		sets = append(sets, f.Column+" = ?")
		args = append(args, v)
	}
	args = append(args, tenantID, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE tenant_id = ? AND id = ?", k.Name, strings.Join(sets, ", "))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("overwrite %s %v: %w", k.Name, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", k.Name, id, ErrNotFound)
	}
	return nil
}

// SaveRecord inserts or fully updates a record. This is the business write
// path used by repositories.
func (s *SQLiteStore) SaveRecord(ctx context.Context, tenantID string, kind entity.Kind, rec entity.Record) error {
	k, err := registered(kind)
	if err != nil {
		return err
	}
	cols, args, err := insertArgs(k, tenantID, rec)
	if err != nil {
		return err
	}

	updates := make([]string, 0, len(k.Fields))
	for _, f := range k.Fields {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", f.Column, f.Column))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(tenant_id, id) DO UPDATE SET %s",
		k.Name, strings.Join(cols, ", "), placeholders(len(cols)), strings.Join(updates, ", "),
	)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save %s %v: %w", k.Name, rec[entity.ColumnID], err)
	}
	return nil
}

// CountRecords returns the number of records of a kind owned by a tenant.
func (s *SQLiteStore) CountRecords(ctx context.Context, tenantID string, kind entity.Kind) (int64, error) {
	k, err := registered(kind)
	if err != nil {
		return 0, err
	}
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE tenant_id = ?", k.Name)
	if err := s.db.QueryRowContext(ctx, query, tenantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", k.Name, err)
	}
	return count, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// insertArgs returns the column list and bound values for a full-row insert.
func insertArgs(k entity.Kind, tenantID string, rec entity.Record) ([]string, []any, error) {
	id, ok := rec[entity.ColumnID]
	if !ok || id == nil {
		return nil, nil, fmt.Errorf("insert %s: %w", k.Name, entity.ErrMissingPrimaryKey)
	}
	cols := append([]string{"tenant_id"}, k.Columns()...)
	args := make([]any, 0, len(cols))
	args = append(args, tenantID, id)
	for _, f := range k.Fields {
		v, err := toSQL(f, rec[f.Column])
		if err != nil {
			return nil, nil, fmt.Errorf("insert %s %v: %w", k.Name, id, err)
		}
		args = append(args, v)
	}
	return cols, args, nil
}

// toSQL converts a record value to its column representation. A nil value
// becomes the zero value of the field type so NOT NULL columns always hold.
func toSQL(f entity.Field, v any) (any, error) {
	if v == nil {
		v = entity.ZeroValue(f.Type)
	}
	switch f.Type {
	case entity.FieldString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case entity.FieldInt:
		if n, ok := v.(int64); ok {
			return n, nil
		}
	case entity.FieldFloat:
		if n, ok := v.(float64); ok {
			return n, nil
		}
	case entity.FieldBool:
		if b, ok := v.(bool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case entity.FieldTime:
		if t, ok := v.(time.Time); ok {
			return t.UnixMilli(), nil
		}
	case entity.FieldDecimal:
		if d, ok := v.(decimal.Decimal); ok {
			return d.String(), nil
		}
	}
	return nil, fmt.Errorf("column %s: %w: %T is not %s", f.Column, entity.ErrTypeMismatch, v, f.Type)
}

func scanTargets(k entity.Kind) []any {
	dest := make([]any, 0, len(k.Fields)+1)
	if k.KeyType == entity.KeyInt {
		dest = append(dest, new(int64))
	} else {
		dest = append(dest, new(string))
	}
	for _, f := range k.Fields {
		switch f.Type {
		case entity.FieldString, entity.FieldDecimal:
			dest = append(dest, new(sql.NullString))
		case entity.FieldFloat:
			dest = append(dest, new(sql.NullFloat64))
		default:
			dest = append(dest, new(sql.NullInt64))
		}
	}
	return dest
}

func recordFromScan(k entity.Kind, dest []any) entity.Record {
	rec := make(entity.Record, len(dest))
	switch id := dest[0].(type) {
	case *int64:
		rec[entity.ColumnID] = *id
	case *string:
		rec[entity.ColumnID] = *id
	}
	for i, f := range k.Fields {
		switch v := dest[i+1].(type) {
		case *sql.NullString:
			if f.Type == entity.FieldDecimal {
				d, err := decimal.NewFromString(v.String)
				if err != nil {
					d = decimal.Zero
				}
				rec[f.Column] = d
			} else {
				rec[f.Column] = v.String
			}
		case *sql.NullFloat64:
			rec[f.Column] = v.Float64
		case *sql.NullInt64:
			switch f.Type {
			case entity.FieldBool:
				rec[f.Column] = v.Int64 != 0
			case entity.FieldTime:
				rec[f.Column] = time.UnixMilli(v.Int64).UTC()
			default:
				rec[f.Column] = v.Int64
			}
		}
	}
	return rec
}
