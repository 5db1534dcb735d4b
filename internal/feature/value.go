package feature

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Value is a sealed interface over the four feature value variants.
// Only Int, Bool, Str, and Ref implement it.
type Value interface {
	// Kind reports which ledger the value belongs to.
	Kind() Kind
	// Storage returns the value as it is written to SQLite:
	// int64 for int and ref, 0/1 int64 for bool, string for str.
	Storage() any

	value() // sealed
}

// Int is an integer feature value.
type Int int64

func (Int) value()          {}
func (Int) Kind() Kind { return KindInt }
func (v Int) Storage() any { return int64(v) }

// Bool is a boolean feature value, stored as 0/1.
type Bool bool

func (Bool) value()     {}
func (Bool) Kind() Kind { return KindBool }
func (v Bool) Storage() any {
	if v {
		return int64(1)
	}
	return int64(0)
}

// Str is a text feature value. Construct through NewStr so the stored
// form is always NFC-normalized.
type Str string

func (Str) value()         {}
func (Str) Kind() Kind { return KindStr }
func (v Str) Storage() any { return string(v) }

// Ref is a reference feature value holding a foreign unit id.
// The id is interpreted by kind at read time; it is not a foreign key.
type Ref int64

func (Ref) value()         {}
func (Ref) Kind() Kind { return KindRef }
func (v Ref) Storage() any { return int64(v) }

// NewStr normalizes s to NFC before wrapping it. Transcriptions arrive
// from many sources (keyboards, OCR, imports) with mixed composition;
// normalizing on write keeps equal-looking strings comparable.
func NewStr(s string) Str {
	return Str(norm.NFC.String(s))
}

// Decode parses a raw JSON value against a declared kind. The value's
// JSON shape must match the kind exactly: strings for str, booleans for
// bool, integers for int and ref. Floats are rejected for integer kinds
// rather than truncated.
func Decode(raw json.RawMessage, kind Kind) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode %s value: %w", kind, err)
	}

	switch kind {
	case KindStr:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string for %s feature, got %s", kind, jsonTypeName(v))
		}
		return NewStr(s), nil

	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean for %s feature, got %s", kind, jsonTypeName(v))
		}
		return Bool(b), nil

	case KindInt, KindRef:
		num, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("expected integer for %s feature, got %s", kind, jsonTypeName(v))
		}
		s := num.String()
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("expected integer for %s feature, got float %s", kind, s)
		}
		n, err := num.Int64()
		if err != nil {
			return nil, fmt.Errorf("integer out of range for %s feature: %s", kind, s)
		}
		if kind == KindRef {
			return Ref(n), nil
		}
		return Int(n), nil
	}

	return nil, fmt.Errorf("unsupported value kind %q", kind)
}

// FromStorage reconstructs a Value from a scanned SQLite column.
// Integer ledgers scan into int64, the string ledger into string.
func FromStorage(kind Kind, intVal int64, strVal string) (Value, error) {
	switch kind {
	case KindInt:
		return Int(intVal), nil
	case KindBool:
		return Bool(intVal != 0), nil
	case KindStr:
		return Str(strVal), nil
	case KindRef:
		return Ref(intVal), nil
	}
	return nil, fmt.Errorf("unsupported value kind %q", kind)
}

// jsonTypeName names a decoded JSON value's type for error messages.
func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
