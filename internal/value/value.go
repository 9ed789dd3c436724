// Package value provides the dynamic value model that generated codecs
// operate on.
//
// Value is a sealed interface: only the types in this file implement it.
// Two sentinels make absence explicit:
//   - Absent: an optional slot that carries no value
//   - Unset: a patch-record field the sender did not touch
//
// Absent and Unset are never equal to each other or to any zero value.
package value

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Value is a sealed interface representing runtime values.
type Value interface {
	value() // Sealed - only these types implement it
}

// Absent marks an optional value that is not present.
type Absent struct{}

func (Absent) value() {}

// Unset marks a patch field that must be left unchanged.
type Unset struct{}

func (Unset) value() {}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// Int is a signed or unsigned integer value.
// Unsigned 64-bit values above math.MaxInt64 are not representable.
type Int int64

func (Int) value() {}

// Float is a floating point value.
type Float float64

func (Float) value() {}

// String is a text value.
type String string

func (String) value() {}

// Bytes is an opaque binary value.
type Bytes []byte

func (Bytes) value() {}

// Atom is a symbolic value: enum member names, union singleton keys and
// atom-typed data all use it.
type Atom string

func (Atom) value() {}

// Raw holds a JSON document verbatim (compact form).
type Raw string

func (Raw) value() {}

// List is an ordered sequence.
type List []Value

func (List) value() {}

// Entry is one key/value pair of a Dict.
type Entry struct {
	Key   Value
	Value Value
}

// Dict is an ordered association list. Order is preserved on round trip.
type Dict []Entry

func (Dict) value() {}

// Record is an instance of a record form. Type names the concrete record
// (the leaf descendant for variant values).
type Record struct {
	Type   string
	Fields map[string]Value
}

func (*Record) value() {}

// NewRecord creates a record value from name/value pairs.
// Example: NewRecord("Point", F("x", Int(1)), F("y", Int(2)))
func NewRecord(typeName string, fields ...Field) *Record {
	r := &Record{Type: typeName, Fields: make(map[string]Value, len(fields))}
	for _, f := range fields {
		r.Fields[f.Name] = f.Value
	}
	return r
}

// Field is a name/value pair for record construction.
type Field struct {
	Name  string
	Value Value
}

// F is a shorthand for Field.
func F(name string, v Value) Field {
	return Field{Name: name, Value: v}
}

// Get returns the named field or Absent when it is missing.
func (r *Record) Get(name string) Value {
	if v, ok := r.Fields[name]; ok && v != nil {
		return v
	}
	return Absent{}
}

// SortedKeys returns the record's field names in byte order.
func (r *Record) SortedKeys() []string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// IsAbsent reports whether v is nil or Absent.
func IsAbsent(v Value) bool {
	switch v.(type) {
	case nil, Absent:
		return true
	}
	return false
}

// IsUnset reports whether v is the patch Unset sentinel.
func IsUnset(v Value) bool {
	_, ok := v.(Unset)
	return ok
}

// Equal reports structural equality. Record field maps compare by content;
// a missing record field equals an explicit Absent field.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case Absent:
		_, ok := b.(Absent)
		return ok
	case Unset:
		_, ok := b.(Unset)
		return ok
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Int:
		y, ok := b.(Int)
		return ok && x == y
	case Float:
		y, ok := b.(Float)
		if !ok {
			return false
		}
		if math.IsNaN(float64(x)) && math.IsNaN(float64(y)) {
			return true
		}
		return x == y
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Bytes:
		y, ok := b.(Bytes)
		return ok && bytes.Equal(x, y)
	case Atom:
		y, ok := b.(Atom)
		return ok && x == y
	case Raw:
		y, ok := b.(Raw)
		return ok && x == y
	case List:
		y, ok := b.(List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Dict:
		y, ok := b.(Dict)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i].Key, y[i].Key) || !Equal(x[i].Value, y[i].Value) {
				return false
			}
		}
		return true
	case *Record:
		y, ok := b.(*Record)
		if !ok || x.Type != y.Type {
			return false
		}
		for k, v := range x.Fields {
			if !Equal(v, y.Get(k)) {
				return false
			}
		}
		for k, v := range y.Fields {
			if _, seen := x.Fields[k]; !seen && !IsAbsent(v) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Format renders v for diagnostics and test failure messages.
func Format(v Value) string {
	var sb strings.Builder
	format(&sb, v)
	return sb.String()
}

func format(sb *strings.Builder, v Value) {
	switch x := v.(type) {
	case nil:
		sb.WriteString("<nil>")
	case Absent:
		sb.WriteString("<absent>")
	case Unset:
		sb.WriteString("<unset>")
	case Bool:
		sb.WriteString(strconv.FormatBool(bool(x)))
	case Int:
		sb.WriteString(strconv.FormatInt(int64(x), 10))
	case Float:
		sb.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 64))
	case String:
		sb.WriteString(strconv.Quote(string(x)))
	case Bytes:
		fmt.Fprintf(sb, "0x%x", []byte(x))
	case Atom:
		sb.WriteString("#" + string(x))
	case Raw:
		sb.WriteString("json(" + string(x) + ")")
	case List:
		sb.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, e)
		}
		sb.WriteByte(']')
	case Dict:
		sb.WriteByte('{')
		for i, e := range x {
			if i > 0 {
				sb.WriteString(", ")
			}
			format(sb, e.Key)
			sb.WriteString(": ")
			format(sb, e.Value)
		}
		sb.WriteByte('}')
	case *Record:
		sb.WriteString(x.Type)
		sb.WriteByte('{')
		for i, k := range x.SortedKeys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			format(sb, x.Fields[k])
		}
		sb.WriteByte('}')
	default:
		fmt.Fprintf(sb, "<unknown %T>", v)
	}
}
