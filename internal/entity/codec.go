package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentKey extracts the canonical primary key from a remote document.
// fallbackID is the document identifier assigned by the remote store, used
// when the body does not carry the key field.
func (k Kind) DocumentKey(fields map[string]any, fallbackID string) (string, error) {
	if raw, ok := fields[k.KeyField]; ok && raw != nil {
		return k.ParseKey(raw)
	}
	if fallbackID == "" {
		return "", ErrMissingPrimaryKey
	}
	return k.ParseKey(fallbackID)
}

// RemoteClock returns the updatedAt of a remote document. A document without
// a clock reports the epoch.
func (k Kind) RemoteClock(fields map[string]any) (time.Time, error) {
	f, ok := k.ClockField()
	if !ok {
		return time.UnixMilli(0).UTC(), nil
	}
	raw, present := fields[f.Remote]
	if !present || raw == nil {
		return time.UnixMilli(0).UTC(), nil
	}
	v, err := Coerce(FieldTime, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %s: %w", f.Remote, err)
	}
	return v.(time.Time), nil
}

// Decode maps a remote document onto a local record. Fields absent from the
// document keep the value from existing when it is non-nil, otherwise they
// take the field default.
func (k Kind) Decode(key string, fields map[string]any, existing Record, now time.Time) (Record, error) {
	id, err := k.KeyValue(key)
	if err != nil {
		return nil, err
	}
	rec := make(Record, len(k.Fields)+1)
	rec[ColumnID] = id
	for _, f := range k.Fields {
		if raw, present := fields[f.Remote]; present && raw != nil {
			v, err := Coerce(f.Type, raw)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Remote, err)
			}
			rec[f.Column] = v
			continue
		}
		if existing != nil {
			if v, ok := existing[f.Column]; ok && v != nil {
				rec[f.Column] = v
				continue
			}
		}
		rec[f.Column] = f.DefaultValue(now)
	}
	return rec, nil
}

// Encode renders a local record as a remote document body. Times become unix
// milliseconds and decimals become strings so no precision is lost in JSON.
func (k Kind) Encode(rec Record) map[string]any {
	doc := make(map[string]any, len(k.Fields)+1)
	if id, ok := rec[ColumnID]; ok {
		doc[k.KeyField] = id
	}
	for _, f := range k.Fields {
		v, ok := rec[f.Column]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case time.Time:
			doc[f.Remote] = x.UnixMilli()
		case decimal.Decimal:
			doc[f.Remote] = x.String()
		default:
			doc[f.Remote] = x
		}
	}
	return doc
}
