// Package query compiles lookup query definitions from configuration and executes
// them as bounded single-record lookups.
package query

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"sqlplugin/internal/domain"
)

// ErrUnknownDataType is returned for a type name outside TEXT, NUMBER, TIMESTAMP.
var ErrUnknownDataType = errors.New("data type is not one of TEXT/NUMBER/TIMESTAMP")

// DataType is one member of the closed set TEXT, NUMBER, TIMESTAMP.
// Each member carries its own key parsing, key rendering and column extraction,
// so callers select behaviour once instead of switching on a name.
type DataType struct {
	name    domain.DataTypeName
	parse   func(raw string) (any, error)
	format  func(v any) string
	extract func(v any) (string, error)
}

var (
	Text = DataType{
		name:    domain.DataTypeText,
		parse:   func(raw string) (any, error) { return raw, nil },
		format:  func(v any) string { return v.(string) },
		extract: extractText,
	}
	Number = DataType{
		name:    domain.DataTypeNumber,
		parse:   parseNumber,
		format:  func(v any) string { return strconv.FormatInt(v.(int64), 10) },
		extract: extractNumber,
	}
	Timestamp = DataType{
		name:    domain.DataTypeTimestamp,
		parse:   func(raw string) (any, error) { return parseLocalDateTime(raw) },
		format:  func(v any) string { return FormatLocalDateTime(v.(time.Time)) },
		extract: extractTimestamp,
	}
)

// ParseDataType resolves a configured type name, ignoring case.
func ParseDataType(name string) (DataType, error) {
	switch domain.DataTypeName(strings.ToUpper(strings.TrimSpace(name))) {
	case domain.DataTypeText:
		return Text, nil
	case domain.DataTypeNumber:
		return Number, nil
	case domain.DataTypeTimestamp:
		return Timestamp, nil
	}
	return DataType{}, fmt.Errorf("%q: %w", name, ErrUnknownDataType)
}

// Name returns the canonical upper-case name.
func (t DataType) Name() domain.DataTypeName { return t.name }

func (t DataType) String() string { return string(t.name) }

// Valid reports whether t is one of the three members (the zero value is not).
func (t DataType) Valid() bool { return t.parse != nil }

// Is reports whether t and other are the same member.
func (t DataType) Is(other DataType) bool { return t.Valid() && t.name == other.name }

// ParseKey converts the string form of a lookup key into a typed Key.
func (t DataType) ParseKey(raw string) (Key, error) {
	if !t.Valid() {
		return Key{}, ErrUnknownDataType
	}
	v, err := t.parse(raw)
	if err != nil {
		return Key{}, fmt.Errorf("key %q is not a valid %s: %w", raw, t.name, err)
	}
	return Key{dataType: t, value: v}, nil
}

// Extract renders a driver value of a result column as a string.
func (t DataType) Extract(v any) (string, error) {
	if !t.Valid() {
		return "", ErrUnknownDataType
	}
	return t.extract(v)
}

// Key is a typed lookup key bound to a query's single positional parameter.
type Key struct {
	dataType DataType
	value    any
}

// TextKey builds a TEXT key.
func TextKey(s string) Key { return Key{dataType: Text, value: s} }

// NumberKey builds a NUMBER key.
func NumberKey(n int64) Key { return Key{dataType: Number, value: n} }

// TimestampKey builds a TIMESTAMP key.
func TimestampKey(t time.Time) Key { return Key{dataType: Timestamp, value: t} }

// Type returns the key's data type.
func (k Key) Type() DataType { return k.dataType }

// Value is the bind argument: string, int64 or time.Time.
func (k Key) Value() any { return k.value }

// String is the canonical string form echoed back as the record identifier.
func (k Key) String() string {
	if !k.dataType.Valid() {
		return ""
	}
	return k.dataType.format(k.value)
}

func parseNumber(raw string) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// localDateTimeLayouts are tried in order for TIMESTAMP keys and textual column values.
var localDateTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02",
}

func parseLocalDateTime(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range localDateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date-time %q", raw)
}

// FormatLocalDateTime renders the wall clock of t as an ISO-8601 local date-time:
// seconds are omitted when zero, and the fraction uses the shortest of 3, 6 or 9 digits.
func FormatLocalDateTime(t time.Time) string {
	s := t.Format("2006-01-02T15:04")
	sec, nanos := t.Second(), t.Nanosecond()
	if sec == 0 && nanos == 0 {
		return s
	}
	s += fmt.Sprintf(":%02d", sec)
	switch {
	case nanos == 0:
	case nanos%1_000_000 == 0:
		s += fmt.Sprintf(".%03d", nanos/1_000_000)
	case nanos%1_000 == 0:
		s += fmt.Sprintf(".%06d", nanos/1_000)
	default:
		s += fmt.Sprintf(".%09d", nanos)
	}
	return s
}

func extractText(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case []byte:
		return string(val), nil
	case time.Time:
		return FormatLocalDateTime(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		return fmt.Sprint(val), nil
	}
}

// extractNumber follows getLong semantics: NULL is 0 and fractions are truncated.
func extractNumber(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "0", nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int:
		return strconv.Itoa(val), nil
	case float64:
		return truncateFloat(val)
	case float32:
		return truncateFloat(float64(val))
	case bool:
		if val {
			return "1", nil
		}
		return "0", nil
	case []byte:
		return numberFromString(string(val))
	case string:
		return numberFromString(val)
	default:
		return "", fmt.Errorf("cannot convert %T to NUMBER", v)
	}
}

func numberFromString(s string) (string, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", fmt.Errorf("cannot convert %q to NUMBER", s)
	}
	return truncateFloat(f)
}

func truncateFloat(f float64) (string, error) {
	if math.IsNaN(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return "", fmt.Errorf("value %v out of NUMBER range", f)
	}
	return strconv.FormatInt(int64(f), 10), nil
}

func extractTimestamp(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case time.Time:
		return FormatLocalDateTime(val), nil
	case []byte:
		return timestampFromString(string(val))
	case string:
		return timestampFromString(val)
	default:
		return "", fmt.Errorf("cannot convert %T to TIMESTAMP", v)
	}
}

func timestampFromString(s string) (string, error) {
	t, err := parseLocalDateTime(s)
	if err != nil {
		return "", fmt.Errorf("cannot convert %q to TIMESTAMP", s)
	}
	return FormatLocalDateTime(t), nil
}
