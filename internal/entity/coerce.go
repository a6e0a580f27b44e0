package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Coerce converts a remote document value into the local representation of
// the field type. Numbers may arrive as JSON numbers or numeric strings;
// times as unix milliseconds, RFC 3339 strings or {seconds, nanoseconds}
// objects; bools as bool, 0/1 or "true"/"false".
func Coerce(t FieldType, v any) (any, error) {
	var (
		out any
		err error
	)
	switch t {
	case FieldString:
		out, err = toString(v)
	case FieldInt:
		out, err = toInt(v)
	case FieldFloat:
		out, err = toFloat(v)
	case FieldBool:
		out, err = toBool(v)
	case FieldTime:
		out, err = toTime(v)
	case FieldDecimal:
		out, err = toDecimal(v)
	default:
		return nil, fmt.Errorf("%w: unsupported field type %s", ErrTypeMismatch, t)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func mismatch(want string, v any) error {
	return fmt.Errorf("%w: want %s, got %T", ErrTypeMismatch, want, v)
}

func toString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", mismatch("string", v)
	}
}

func wholeFloat(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f {
		return 0, fmt.Errorf("%w: %v is not a whole number", ErrTypeMismatch, f)
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%w: %v overflows int64", ErrTypeMismatch, f)
	}
	return int64(f), nil
}

func parseIntString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrTypeMismatch, s)
	}
	return wholeFloat(f)
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		return wholeFloat(x)
	case float32:
		return wholeFloat(float64(x))
	case json.Number:
		return parseIntString(x.String())
	case string:
		return parseIntString(x)
	default:
		return 0, mismatch("integer", v)
	}
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrTypeMismatch, x)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", ErrTypeMismatch, x)
		}
		return f, nil
	default:
		return 0, mismatch("number", v)
	}
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case int:
		return x != 0, nil
	case float64:
		return x != 0, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a bool", ErrTypeMismatch, x)
		}
		return f != 0, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a bool", ErrTypeMismatch, x)
		}
		return b, nil
	default:
		return false, mismatch("bool", v)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case int64:
		return time.UnixMilli(x).UTC(), nil
	case int:
		return time.UnixMilli(int64(x)).UTC(), nil
	case float64:
		ms, err := wholeFloat(math.Round(x))
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(ms).UTC(), nil
	case json.Number:
		ms, err := parseIntString(x.String())
		if err != nil {
			return time.Time{}, err
		}
		return time.UnixMilli(ms).UTC(), nil
	case string:
		s := strings.TrimSpace(x)
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q is not a timestamp", ErrTypeMismatch, x)
	case map[string]any:
		return timestampObject(x)
	default:
		return time.Time{}, mismatch("timestamp", v)
	}
}

// timestampObject accepts the {seconds, nanoseconds} shape document stores
// use when exporting native timestamps, with or without a leading underscore.
func timestampObject(m map[string]any) (time.Time, error) {
	secRaw, ok := m["seconds"]
	if !ok {
		secRaw, ok = m["_seconds"]
	}
	if !ok {
		return time.Time{}, fmt.Errorf("%w: timestamp object without seconds", ErrTypeMismatch)
	}
	sec, err := toInt(secRaw)
	if err != nil {
		return time.Time{}, err
	}
	var nsec int64
	nsRaw, ok := m["nanoseconds"]
	if !ok {
		nsRaw, ok = m["_nanoseconds"]
	}
	if ok {
		if nsec, err = toInt(nsRaw); err != nil {
			return time.Time{}, err
		}
	}
	return time.Unix(sec, nsec).UTC(), nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case json.Number:
		return parseDecimal(x.String())
	case string:
		return parseDecimal(x)
	default:
		return decimal.Zero, mismatch("decimal", v)
	}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a decimal", ErrTypeMismatch, s)
	}
	return d, nil
}
