package ir

import (
	"fmt"

	"github.com/roach88/idlc/internal/value"
)

// Pos is a source location. The zero Pos is "unknown".
type Pos struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// IsValid reports whether the position carries a file name.
func (p Pos) IsValid() bool {
	return p.File != ""
}

func (p Pos) String() string {
	if !p.IsValid() {
		return "-"
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Decl is anything attributes can be attached to: forms, record fields and
// enum values. Path is unique within a graph ("Point", "Point.x").
type Decl interface {
	Path() string
	Position() Pos
}

// FormKind enumerates nominal declaration kinds.
type FormKind int

const (
	KindEnum FormKind = iota
	KindRecord
	KindVariant
	KindUnion
	KindDefine
)

var formKindNames = [...]string{"enum", "record", "variant", "union", "define"}

func (k FormKind) String() string {
	if int(k) < len(formKindNames) {
		return formKindNames[k]
	}
	return fmt.Sprintf("FormKind(%d)", int(k))
}

// Form is a nominal top-level declaration.
type Form struct {
	Name   string
	Params []string // type parameters, empty for non-generic forms
	Pos    Pos
	Body   FormBody
}

// Path implements Decl.
func (f *Form) Path() string { return f.Name }

// Position implements Decl.
func (f *Form) Position() Pos { return f.Pos }

// Kind returns the declaration kind of the body.
func (f *Form) Kind() FormKind { return f.Body.Kind() }

// IsGeneric reports whether the form declares type parameters.
func (f *Form) IsGeneric() bool { return len(f.Params) > 0 }

// Open returns the form as a type whose parameters are left as
// GenericArgument placeholders.
func (f *Form) Open() Type {
	if !f.IsGeneric() {
		return UserType{Form: f}
	}
	args := make([]Type, len(f.Params))
	for i, p := range f.Params {
		args[i] = GenericArgument{Name: p}
	}
	return GenericInstance{Form: f, Args: args}
}

// Record returns the record body or nil.
func (f *Form) Record() *Record {
	r, _ := f.Body.(*Record)
	return r
}

// Variant returns the variant body or nil.
func (f *Form) Variant() *Variant {
	v, _ := f.Body.(*Variant)
	return v
}

// Union returns the union body or nil.
func (f *Form) Union() *Union {
	u, _ := f.Body.(*Union)
	return u
}

// Enum returns the enum body or nil.
func (f *Form) Enum() *Enum {
	e, _ := f.Body.(*Enum)
	return e
}

// Define returns the alias body or nil.
func (f *Form) Define() *Define {
	d, _ := f.Body.(*Define)
	return d
}

// FormBody is a sealed interface over declaration bodies.
type FormBody interface {
	formBody() // Sealed
	Kind() FormKind
}

// Enum is a closed set of named integer values.
type Enum struct {
	Values  []*EnumValue
	Backing Integer // integer used on binary wires
}

func (*Enum) formBody() {}
func (*Enum) Kind() FormKind { return KindEnum }

// Lookup finds a value by name.
func (e *Enum) Lookup(name string) *EnumValue {
	for _, v := range e.Values {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// EnumValue is one member of an Enum. Per-format keys come from attributes.
type EnumValue struct {
	Owner string
	Name  string
	Int   int64
	Pos   Pos
}

// Path implements Decl.
func (v *EnumValue) Path() string { return v.Owner + "." + v.Name }

// Position implements Decl.
func (v *EnumValue) Position() Pos { return v.Pos }

// Record is a product of named fields.
type Record struct {
	Fields      []*RecordField
	Ancestor    *Form // variant this record descends from, if any
	IsException bool
	IsPatch     bool
}

func (*Record) formBody() {}
func (*Record) Kind() FormKind { return KindRecord }

// TagField returns the discriminant field, or nil if the record has none.
func (r *Record) TagField() *RecordField {
	for _, f := range r.Fields {
		if f.IsTag {
			return f
		}
	}
	return nil
}

// Field finds a field by name.
func (r *Record) Field(name string) *RecordField {
	for _, f := range r.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// RecordField is one field of a Record.
type RecordField struct {
	Owner   string
	Name    string
	Type    Type
	Default value.Value // nil when the field has no default
	IsTag   bool
	Pos     Pos
}

// Path implements Decl.
func (f *RecordField) Path() string { return f.Owner + "." + f.Name }

// Position implements Decl.
func (f *RecordField) Position() Pos { return f.Pos }

// IsOptional reports whether the field's type is Optional.
func (f *RecordField) IsOptional() bool {
	_, ok := f.Type.(Optional)
	return ok
}

// HasDefault reports whether the field declares a default value.
func (f *RecordField) HasDefault() bool {
	return f.Default != nil
}

// Variant is a closed tagged union of record (or nested variant) descendants.
type Variant struct {
	Descendants []*Form
}

func (*Variant) formBody() {}
func (*Variant) Kind() FormKind { return KindVariant }

// Leaves flattens nested variants into their record descendants, preserving
// declaration order.
func (v *Variant) Leaves() []*Form {
	var out []*Form
	for _, d := range v.Descendants {
		if nested := d.Variant(); nested != nil {
			out = append(out, nested.Leaves()...)
			continue
		}
		out = append(out, d)
	}
	return out
}

// Union is an open alternation of unrelated clauses.
type Union struct {
	Clauses []*Clause
}

func (*Union) formBody() {}
func (*Union) Kind() FormKind { return KindUnion }

// Clause is one alternative of a Union. Tag is the literal key ("" for an
// untagged clause); Type is nil for a singleton clause.
type Clause struct {
	Tag  string
	Type Type
	Pos  Pos
}

// IsSingleton reports whether the clause has no payload.
func (c *Clause) IsSingleton() bool { return c.Type == nil }

// Define is a type alias.
type Define struct {
	Target Type
}

func (*Define) formBody() {}
func (*Define) Kind() FormKind { return KindDefine }
