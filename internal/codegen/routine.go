// Package codegen turns resolved tags into encode/decode routine
// descriptions for records, variants, unions and enums.
//
// A Routine is a signature plus an ordered list of operations. Encode and
// decode routines of one form share the same operation sequence; only the
// direction differs. The rendering layer (or the wire interpreter) decides
// what each operation means for a concrete target.
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/tag"
	"github.com/roach88/idlc/internal/value"
)

// Routine is one generated codec function.
type Routine struct {
	Name      string
	Form      *ir.Form
	Format    ir.Format
	Direction tag.Direction
	Params    []string // hook parameters of generic forms, e.g. "pack_T"
	Ops       []Op
}

// Signature renders the routine header, e.g. "Box.pack_json(pack_T)".
func (r *Routine) Signature() string {
	return r.Name + "(" + strings.Join(r.Params, ", ") + ")"
}

// Pair is the encode/decode routine pair of one (form, format).
type Pair struct {
	Encode *Routine
	Decode *Routine
}

// Op is a sealed interface over routine operations.
type Op interface {
	op() // Sealed
	String() string
}

// Presence classifies how a field's absence is handled.
type Presence int

const (
	// Required fields are always on the wire.
	Required Presence = iota
	// Optional fields may be absent; decode substitutes the default or
	// value.Absent.
	Optional
	// Patch fields are keyed by presence: absence decodes to value.Unset.
	Patch
)

func (p Presence) String() string {
	switch p {
	case Optional:
		return "optional"
	case Patch:
		return "patch"
	}
	return "required"
}

// Field reads or writes one record field with its tag.
type Field struct {
	Name     string
	Key      string
	Tag      tag.Tag
	Presence Presence
	Default  value.Value
	// Bit is the field's index in the presence bitmask, or -1 when the
	// field is not gated by one. A gated optional field carries its item
	// tag: the bitmask replaces the optional wrapper on the wire.
	Bit int
}

// Gated reports whether a bitmask bit controls the field.
func (f Field) Gated() bool { return f.Bit >= 0 }

func (Field) op() {}

func (f Field) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "field %s %s key=%q", f.Name, tag.Expr(f.Tag), f.Key)
	if f.Presence != Required {
		sb.WriteString(" " + f.Presence.String())
	}
	if f.Default != nil {
		sb.WriteString(" default=" + value.Format(f.Default))
	}
	if f.Gated() {
		sb.WriteString(" bit=" + strconv.Itoa(f.Bit))
	}
	return sb.String()
}

// Batch reads or writes a run of fixed-width fields as one literal.
type Batch struct {
	Fields []Field
	Width  int // total bytes
}

func (Batch) op() {}

func (b Batch) String() string {
	parts := make([]string, len(b.Fields))
	for i, f := range b.Fields {
		parts[i] = f.Name + ":" + tag.Expr(f.Tag)
	}
	return fmt.Sprintf("batch %d [%s]", b.Width, strings.Join(parts, " "))
}

// Bitmask reads or writes the leading presence bitmask of a binary record.
type Bitmask struct {
	Bytes  int
	Fields []string // one bit per name, in order
}

func (Bitmask) op() {}

func (b Bitmask) String() string {
	return fmt.Sprintf("bitmask %d [%s]", b.Bytes, strings.Join(b.Fields, " "))
}

// BitmaskBytes returns ceil(k/8).
func BitmaskBytes(k int) int {
	return (k + 7) / 8
}

// Case is one variant descendant.
type Case struct {
	Value   value.Value // discriminant constant
	Form    *ir.Form    // leaf record
	Payload tag.Tag
}

// Dispatch writes the constant discriminant of the value's descendant then
// its payload; decode reads the discriminant first and selects the case.
// There is no fallback case.
type Dispatch struct {
	Field string // discriminant field name
	Key   string
	Tag   tag.Tag
	Cases []Case
}

func (Dispatch) op() {}

func (d Dispatch) String() string {
	parts := make([]string, len(d.Cases))
	for i, c := range d.Cases {
		parts[i] = value.Format(c.Value) + " -> " + c.Form.Name
	}
	return fmt.Sprintf("dispatch %s %s key=%q {%s}", d.Field, tag.Expr(d.Tag), d.Key, strings.Join(parts, ", "))
}

// Clause is one union alternative.
type Clause struct {
	Key       string // literal key, "" for an untagged clause
	Singleton bool
	Tag       tag.Tag // nil for singletons
	Guard     Guard
}

// Match reports whether v selects this clause on encode.
func (c Clause) Match(v value.Value) bool {
	if c.Singleton {
		a, ok := v.(value.Atom)
		return ok && string(a) == c.Key
	}
	return c.Guard.Match(v)
}

// Alternatives tries clauses in declaration order on encode and picks the
// first whose guard matches. Overlapping clauses are not rejected.
type Alternatives struct {
	Clauses []Clause
}

func (Alternatives) op() {}

func (a Alternatives) String() string {
	parts := make([]string, len(a.Clauses))
	for i, c := range a.Clauses {
		key := c.Key
		if key == "" {
			key = "_"
		}
		if c.Singleton {
			parts[i] = key + ": singleton"
			continue
		}
		parts[i] = key + ": " + tag.Expr(c.Tag) + " guard=" + c.Guard.String()
	}
	return "alternatives {" + strings.Join(parts, ", ") + "}"
}

// Member is one enum value.
type Member struct {
	Name string
	Key  string
	Int  int64
}

// EnumMap converts enum members to and from their wire representation:
// the integer (binary) or the per-format key.
type EnumMap struct {
	Int     *tag.Primitive // nil when members travel as keys
	Members []Member
}

func (EnumMap) op() {}

func (e EnumMap) String() string {
	parts := make([]string, len(e.Members))
	for i, m := range e.Members {
		if e.Int != nil {
			parts[i] = m.Name + "=" + strconv.FormatInt(m.Int, 10)
		} else {
			parts[i] = m.Name + "=" + strconv.Quote(m.Key)
		}
	}
	kind := "key"
	if e.Int != nil {
		kind = e.Int.Prim.String()
	}
	return "enum " + kind + " {" + strings.Join(parts, ", ") + "}"
}

// ByName finds a member by name.
func (e EnumMap) ByName(name string) (Member, bool) {
	for _, m := range e.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// ByKey finds a member by wire key.
func (e EnumMap) ByKey(key string) (Member, bool) {
	for _, m := range e.Members {
		if m.Key == key {
			return m, true
		}
	}
	return Member{}, false
}

// ByInt finds a member by integer value.
func (e EnumMap) ByInt(n int64) (Member, bool) {
	for _, m := range e.Members {
		if m.Int == n {
			return m, true
		}
	}
	return Member{}, false
}
