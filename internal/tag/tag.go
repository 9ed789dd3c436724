// Package tag implements the serialization tag algebra.
//
// A Tag is the resolved, format-specific encoding strategy of a type. Tags
// are immutable values: the Resolver computes them on demand per
// (type, format, referrer) and nothing retains them except the optional
// memo Cache. A Tag handed to code emission must be closed (no Var).
//
// Tag is a sealed interface. Every switch over Tag in this module ends in a
// default case returning *diag.InternalError, never a silent fallback.
package tag

import (
	"fmt"

	"github.com/roach88/idlc/internal/ir"
)

// Tag is a sealed interface over encoding strategies.
type Tag interface {
	tag() // Sealed - only the types in this package implement it
	Kind() Kind
}

// Kind enumerates Tag variants.
type Kind int

const (
	KindPrimitive Kind = iota
	KindBool
	KindString
	KindBinary
	KindAtom
	KindJson
	KindList
	KindDict
	KindOptional
	KindFlags
	KindChoice
	KindVar
	KindCustom
	KindGenerated

	// binary
	KindEnum

	// xml
	KindElement
	KindContent
	KindSimpleType
	KindComplexType
	KindRepeated
	KindKVList
	KindPair
	KindAttribute
	KindSubelement

	// http query family
	KindFromJson
	KindQueryList
	KindCustomQuery
)

var kindNames = [...]string{
	"primitive", "bool", "string", "binary", "atom", "json", "list", "dict",
	"optional", "flags", "choice", "var", "custom", "generated", "enum",
	"element", "content", "simple", "complex", "repeated", "kvlist", "pair",
	"attribute", "subelement", "fromjson", "qlist", "customquery",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Primitive is a fixed-width number.
type Primitive struct {
	Prim PrimKind
}

// Bool is a boolean.
type Bool struct{}

// String is UTF-8 text.
type String struct{}

// Binary is an opaque byte string.
type Binary struct{}

// Atom is a symbol.
type Atom struct{}

// Json is a JSON document carried verbatim.
type Json struct{}

// List is a homogeneous sequence.
type List struct {
	Item Tag
}

// Dict is an association list.
type Dict struct {
	Key   Tag
	Value Tag
}

// Optional is Item or absent.
type Optional struct {
	Item Tag
}

// Flags is a set of Item values.
type Flags struct {
	Item Tag
}

// Choice is an anonymous alternation matched structurally in order.
type Choice struct {
	Items []Tag
}

// Var is an unresolved generic placeholder. It never reaches emission.
type Var struct {
	Name string
}

// Custom calls user-supplied pack/parse hooks. Args are the tags of the
// form's type arguments; instantiation rewrites Args only.
type Custom struct {
	Pack  string
	Parse string
	Args  []Tag
}

// Generated refers to the codec routines generated for Form in Format.
// Args are the tags of the form's type arguments.
type Generated struct {
	Form   *ir.Form
	Format ir.Format
	Args   []Tag
}

// Enum is the binary shape of an enum: its backing integer plus the
// routines mapping members to integers.
type Enum struct {
	Int   Primitive
	Pack  string
	Parse string
	Form  *ir.Form
}

// Element wraps Inner in a named XML element.
type Element struct {
	Name  string
	Inner Tag
}

// Content places Inner in the text content of the enclosing element.
type Content struct {
	Inner Tag
}

// SimpleType marks a text-only XML shape.
type SimpleType struct {
	Inner Tag
}

// ComplexType marks an XML shape with attributes and children.
type ComplexType struct {
	Inner Tag
}

// Repeated emits one Item per list member as siblings.
type Repeated struct {
	Item Tag
}

// KVList emits a dictionary as a sequence of Pair entries.
type KVList struct {
	Entry Tag
}

// Pair is one dictionary entry.
type Pair struct {
	Key   Tag
	Value Tag
}

// Attribute places Inner in an XML attribute.
type Attribute struct {
	Name  string
	Inner Tag
}

// Subelement places Inner in a named child element.
type Subelement struct {
	Name  string
	Inner Tag
}

// FromJson embeds the JSON encoding of Inner as a single parameter value.
type FromJson struct {
	Inner Tag
}

// QueryList encodes a list as query parameters. With Unfold the key repeats
// per item; with UnfoldIndex the key carries an index suffix; otherwise
// items are joined by Separator.
type QueryList struct {
	Item        Tag
	Unfold      bool
	UnfoldIndex bool
	Separator   string
}

// CustomQuery is Custom for the HTTP query family.
type CustomQuery struct {
	Pack  string
	Parse string
	Args  []Tag
}

func (Primitive) tag()   {}
func (Bool) tag()        {}
func (String) tag()      {}
func (Binary) tag()      {}
func (Atom) tag()        {}
func (Json) tag()        {}
func (List) tag()        {}
func (Dict) tag()        {}
func (Optional) tag()    {}
func (Flags) tag()       {}
func (Choice) tag()      {}
func (Var) tag()         {}
func (Custom) tag()      {}
func (Generated) tag()   {}
func (Enum) tag()        {}
func (Element) tag()     {}
func (Content) tag()     {}
func (SimpleType) tag()  {}
func (ComplexType) tag() {}
func (Repeated) tag()    {}
func (KVList) tag()      {}
func (Pair) tag()        {}
func (Attribute) tag()   {}
func (Subelement) tag()  {}
func (FromJson) tag()    {}
func (QueryList) tag()   {}
func (CustomQuery) tag() {}

func (Primitive) Kind() Kind   { return KindPrimitive }
func (Bool) Kind() Kind        { return KindBool }
func (String) Kind() Kind      { return KindString }
func (Binary) Kind() Kind      { return KindBinary }
func (Atom) Kind() Kind        { return KindAtom }
func (Json) Kind() Kind        { return KindJson }
func (List) Kind() Kind        { return KindList }
func (Dict) Kind() Kind        { return KindDict }
func (Optional) Kind() Kind    { return KindOptional }
func (Flags) Kind() Kind       { return KindFlags }
func (Choice) Kind() Kind      { return KindChoice }
func (Var) Kind() Kind         { return KindVar }
func (Custom) Kind() Kind      { return KindCustom }
func (Generated) Kind() Kind   { return KindGenerated }
func (Enum) Kind() Kind        { return KindEnum }
func (Element) Kind() Kind     { return KindElement }
func (Content) Kind() Kind     { return KindContent }
func (SimpleType) Kind() Kind  { return KindSimpleType }
func (ComplexType) Kind() Kind { return KindComplexType }
func (Repeated) Kind() Kind    { return KindRepeated }
func (KVList) Kind() Kind      { return KindKVList }
func (Pair) Kind() Kind        { return KindPair }
func (Attribute) Kind() Kind   { return KindAttribute }
func (Subelement) Kind() Kind  { return KindSubelement }
func (FromJson) Kind() Kind    { return KindFromJson }
func (QueryList) Kind() Kind   { return KindQueryList }
func (CustomQuery) Kind() Kind { return KindCustomQuery }

// PackRef names the generated encode routine of a form in a format.
func PackRef(form *ir.Form, f ir.Format) string {
	return form.Name + ".pack_" + string(f)
}

// ParseRef names the generated decode routine of a form in a format.
func ParseRef(form *ir.Form, f ir.Format) string {
	return form.Name + ".parse_" + string(f)
}

// StripOptional removes Optional layers.
func StripOptional(t Tag) Tag {
	for {
		o, ok := t.(Optional)
		if !ok {
			return t
		}
		t = o.Item
	}
}

// IsFixedWidth reports whether t has a fixed encoded size on the binary
// wire, which makes it eligible for bit-stream batching.
func IsFixedWidth(t Tag) bool {
	switch t.(type) {
	case Primitive, Bool, Enum:
		return true
	}
	return false
}

// FixedWidth returns the binary size in bytes of a fixed-width tag, or 0.
func FixedWidth(t Tag) int {
	switch x := t.(type) {
	case Primitive:
		return x.Prim.Size()
	case Bool:
		return 1
	case Enum:
		return x.Int.Prim.Size()
	}
	return 0
}
