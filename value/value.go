package value

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Type identifies the storage class held by a Value.
type Type int

const (
	Null Type = iota
	Integer
	Real
	Text
	Blob
)

func (t Type) String() string {
	switch t {
	case Null:
		return "NULL"
	case Integer:
		return "INTEGER"
	case Real:
		return "REAL"
	case Text:
		return "TEXT"
	case Blob:
		return "BLOB"
	}
	return "Type(" + strconv.Itoa(int(t)) + ")"
}

// Value is an immutable SQL scalar. The zero Value is NULL.
type Value struct {
	typ Type
	i   int64
	f   float64
	s   string
	b   []byte
}

// NullValue returns the NULL value.
func NullValue() Value { return Value{} }

// IntegerValue returns an INTEGER value.
func IntegerValue(i int64) Value { return Value{typ: Integer, i: i} }

// RealValue returns a REAL value.
func RealValue(f float64) Value { return Value{typ: Real, f: f} }

// TextValue returns a TEXT value.
func TextValue(s string) Value { return Value{typ: Text, s: s} }

// BlobValue returns a BLOB value holding a copy of b. A nil slice yields an
// empty (not NULL) blob.
func BlobValue(b []byte) Value {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{typ: Blob, b: cp}
}

// Type returns the storage class of v.
func (v Value) Type() Type { return v.typ }

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool { return v.typ == Null }

// Int64 returns v as an integer, converting REAL and numeric TEXT the way
// SQLite's CAST does for the common cases. NULL and non-numeric values yield 0.
func (v Value) Int64() int64 {
	switch v.typ {
	case Integer:
		return v.i
	case Real:
		return int64(v.f)
	case Text:
		if n, err := strconv.ParseInt(v.s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(v.s, 64); err == nil {
			return int64(f)
		}
	}
	return 0
}

// Float64 returns v as a float. NULL and non-numeric values yield 0.
func (v Value) Float64() float64 {
	switch v.typ {
	case Integer:
		return float64(v.i)
	case Real:
		return v.f
	case Text:
		if f, err := strconv.ParseFloat(v.s, 64); err == nil {
			return f
		}
	}
	return 0
}

// Text returns the textual form of v. NULL yields "".
func (v Value) Text() string {
	switch v.typ {
	case Integer:
		return strconv.FormatInt(v.i, 10)
	case Real:
		return formatReal(v.f)
	case Text:
		return v.s
	case Blob:
		return string(v.b)
	}
	return ""
}

// Bytes returns a copy of the blob (or text) content of v.
func (v Value) Bytes() []byte {
	switch v.typ {
	case Blob:
		cp := make([]byte, len(v.b))
		copy(cp, v.b)
		return cp
	case Text:
		return []byte(v.s)
	case Integer, Real:
		return []byte(v.Text())
	}
	return nil
}

// Any returns v as a plain Go value: nil, int64, float64, string or []byte.
func (v Value) Any() any {
	switch v.typ {
	case Integer:
		return v.i
	case Real:
		return v.f
	case Text:
		return v.s
	case Blob:
		return v.Bytes()
	}
	return nil
}

// Equal reports whether v and o hold the same type and content.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case Integer:
		return v.i == o.i
	case Real:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case Text:
		return v.s == o.s
	case Blob:
		return bytes.Equal(v.b, o.b)
	}
	return true
}

// String implements fmt.Stringer; TEXT is quoted so that it can be told apart
// from numbers in log output.
func (v Value) String() string {
	switch v.typ {
	case Null:
		return "NULL"
	case Text:
		return strconv.Quote(v.s)
	case Blob:
		return fmt.Sprintf("x'%x'", v.b)
	}
	return v.Text()
}

// MarshalJSON encodes NULL as null, numbers as numbers, TEXT as a string and
// BLOB as a base64 string.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.typ {
	case Integer:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case Real:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return []byte("null"), nil
		}
		return []byte(formatReal(v.f)), nil
	case Text:
		return json.Marshal(v.s)
	case Blob:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.b))
	}
	return []byte("null"), nil
}

func formatReal(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
