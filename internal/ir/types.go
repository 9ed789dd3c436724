package ir

import (
	"fmt"
	"strings"
)

// Type is a sealed interface over the type-reference grammar.
// Only the types in this file implement it.
type Type interface {
	irType() // Sealed - only these types implement it
	String() string
}

// Bool is the boolean builtin.
type Bool struct{}

func (Bool) irType() {}
func (Bool) String() string { return "bool" }

// Integer is a fixed-width integer builtin. Width is in bits (8, 16, 32, 64).
type Integer struct {
	Width  int
	Signed bool
}

func (Integer) irType() {}

func (t Integer) String() string {
	if t.Signed {
		return fmt.Sprintf("int%d", t.Width)
	}
	return fmt.Sprintf("uint%d", t.Width)
}

// Float is a floating point builtin. Width is 32 or 64.
type Float struct {
	Width int
}

func (Float) irType() {}

func (t Float) String() string { return fmt.Sprintf("float%d", t.Width) }

// String is the text builtin.
type String struct{}

func (String) irType() {}
func (String) String() string { return "string" }

// Binary is the opaque byte-string builtin.
type Binary struct{}

func (Binary) irType() {}
func (Binary) String() string { return "binary" }

// Atom is the interned-symbol builtin.
type Atom struct{}

func (Atom) irType() {}
func (Atom) String() string { return "atom" }

// Json is an arbitrary JSON document carried verbatim.
type Json struct{}

func (Json) irType() {}
func (Json) String() string { return "json" }

// List is an ordered sequence of Item.
type List struct {
	Item Type
}

func (List) irType() {}

func (t List) String() string { return "list<" + t.Item.String() + ">" }

// Dict maps Key to Value.
type Dict struct {
	Key   Type
	Value Type
}

func (Dict) irType() {}

func (t Dict) String() string {
	return "dict<" + t.Key.String() + ", " + t.Value.String() + ">"
}

// Optional is Item or nothing.
type Optional struct {
	Item Type
}

func (Optional) irType() {}

func (t Optional) String() string { return "?" + t.Item.String() }

// Flags is a set of Item values (normally an enum).
type Flags struct {
	Item Type
}

func (Flags) irType() {}

func (t Flags) String() string { return "flags<" + t.Item.String() + ">" }

// OneOf is an anonymous alternation of Items, matched structurally in order.
type OneOf struct {
	Items []Type
}

func (OneOf) irType() {}

func (t OneOf) String() string {
	parts := make([]string, len(t.Items))
	for i, it := range t.Items {
		parts[i] = it.String()
	}
	return "oneof<" + strings.Join(parts, " | ") + ">"
}

// UserType references a declared form.
type UserType struct {
	Form *Form
}

func (UserType) irType() {}

func (t UserType) String() string { return t.Form.Name }

// GenericArgument is a type-parameter placeholder inside a generic form body.
type GenericArgument struct {
	Name string
}

func (GenericArgument) irType() {}

func (t GenericArgument) String() string { return "$" + t.Name }

// GenericInstance applies a generic form to concrete arguments.
type GenericInstance struct {
	Form *Form
	Args []Type
}

func (GenericInstance) irType() {}

func (t GenericInstance) String() string {
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return t.Form.Name + "<" + strings.Join(parts, ", ") + ">"
}

// Unwrap strips Optional layers and returns the innermost item.
func Unwrap(t Type) Type {
	for {
		opt, ok := t.(Optional)
		if !ok {
			return t
		}
		t = opt.Item
	}
}
