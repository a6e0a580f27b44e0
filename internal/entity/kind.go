// Package entity describes the business record kinds that take part in
// synchronization. Every kind is a table-driven descriptor: the restore
// engine, the reconciliation auditor, the outbox drainer and the local store
// all operate on descriptors instead of per-kind code.
package entity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownKind indicates a collection name or entity type with no descriptor.
	ErrUnknownKind = errors.New("unknown entity kind")
	// ErrMissingPrimaryKey indicates a document whose primary key is absent or unparsable.
	ErrMissingPrimaryKey = errors.New("missing primary key")
	// ErrTypeMismatch indicates a remote value that cannot be coerced to the field type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// ColumnID is the primary key column of every local table.
const ColumnID = "id"

// FieldType is the local representation of a field.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt
	FieldFloat
	FieldBool
	FieldTime
	FieldDecimal
)

func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "string"
	case FieldInt:
		return "int"
	case FieldFloat:
		return "float"
	case FieldBool:
		return "bool"
	case FieldTime:
		return "time"
	case FieldDecimal:
		return "decimal"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// KeyType is the type of a kind's primary key.
type KeyType int

const (
	KeyInt KeyType = iota
	KeyString
)

// Field maps one local column to one remote document key.
type Field struct {
	Column string
	Remote string
	Type   FieldType

	// Default produces the value for a new record whose document lacks the
	// field. Nil means the zero value of Type (epoch for times).
	Default func(now time.Time) any
}

// DefaultValue returns the value used when the remote document omits the field
// and there is no existing local value to keep.
func (f Field) DefaultValue(now time.Time) any {
	if f.Default != nil {
		return f.Default(now)
	}
	return ZeroValue(f.Type)
}

// ZeroValue returns the zero value stored for a field type.
func ZeroValue(t FieldType) any {
	switch t {
	case FieldInt:
		return int64(0)
	case FieldFloat:
		return float64(0)
	case FieldBool:
		return false
	case FieldTime:
		return time.UnixMilli(0).UTC()
	case FieldDecimal:
		return decimal.Zero
	default:
		return ""
	}
}

// Record is a local row keyed by column name. Values are string, int64,
// float64, bool, time.Time or decimal.Decimal according to the field type;
// the "id" column holds int64 or string according to the key type.
type Record map[string]any

// Kind is the descriptor of one business record kind.
type Kind struct {
	// Name is both the remote collection and the local table name.
	Name string
	// EntityType is the tag written into outbox entries.
	EntityType  string
	DisplayName string
	KeyType     KeyType
	// KeyField is the remote document field carrying the primary key.
	KeyField string
	// UpdatedAt is the column holding the conflict-resolution clock.
	// Empty for kinds that are insert-if-absent only.
	UpdatedAt string
	Fields    []Field
}

// HasClock reports whether the kind carries an updatedAt clock.
func (k Kind) HasClock() bool {
	return k.UpdatedAt != ""
}

// Columns returns the local column names, primary key first.
func (k Kind) Columns() []string {
	cols := make([]string, 0, len(k.Fields)+1)
	cols = append(cols, ColumnID)
	for _, f := range k.Fields {
		cols = append(cols, f.Column)
	}
	return cols
}

// Field returns the field stored in the given column.
func (k Kind) Field(column string) (Field, bool) {
	for _, f := range k.Fields {
		if f.Column == column {
			return f, true
		}
	}
	return Field{}, false
}

// ClockField returns the updatedAt field of a kind that has one.
func (k Kind) ClockField() (Field, bool) {
	if !k.HasClock() {
		return Field{}, false
	}
	return k.Field(k.UpdatedAt)
}

// ParseKey normalizes a primary key value (as found in a remote document or
// an outbox entry) into its canonical string form.
func (k Kind) ParseKey(v any) (string, error) {
	if v == nil {
		return "", ErrMissingPrimaryKey
	}
	switch k.KeyType {
	case KeyInt:
		n, err := toInt(v)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMissingPrimaryKey, err)
		}
		return strconv.FormatInt(n, 10), nil
	default:
		s, err := toString(v)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMissingPrimaryKey, err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return "", ErrMissingPrimaryKey
		}
		return s, nil
	}
}

// KeyValue converts a canonical key into the value bound to the id column.
func (k Kind) KeyValue(key string) (any, error) {
	if k.KeyType == KeyInt {
		n, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s key %q: %w", k.Name, key, ErrMissingPrimaryKey)
		}
		return n, nil
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("%s key: %w", k.Name, ErrMissingPrimaryKey)
	}
	return key, nil
}

// Clock returns the updatedAt value of a record, or the epoch when the kind
// has no clock or the record carries none.
func (k Kind) Clock(rec Record) time.Time {
	if !k.HasClock() || rec == nil {
		return time.UnixMilli(0).UTC()
	}
	if t, ok := rec[k.UpdatedAt].(time.Time); ok {
		return t
	}
	return time.UnixMilli(0).UTC()
}
