// Package attr defines the attribute accessor consumed by tag resolution.
//
// The front end owns attribute storage and inheritance; resolution only sees
// an Accessor. Descriptors give each attribute a name and a Go type so call
// sites read attributes as attr.Get(acc, decl, attr.Pack(f), "").
package attr

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/idlc/internal/ir"
)

// Accessor looks up a raw attribute value attached to a declaration.
// Implementations must be safe for concurrent reads.
type Accessor interface {
	Lookup(decl ir.Decl, name string) (any, bool)
}

// Descriptor names an attribute and fixes its value type.
type Descriptor[T any] struct {
	Name string
}

// Get reads a typed attribute, returning def when it is missing or has a
// different type. Integer attributes accept any Go integer kind.
func Get[T any](a Accessor, decl ir.Decl, d Descriptor[T], def T) T {
	if a == nil || decl == nil {
		return def
	}
	raw, ok := a.Lookup(decl, d.Name)
	if !ok {
		return def
	}
	if v, ok := raw.(T); ok {
		return v
	}
	if v, ok := convertInt[T](raw); ok {
		return v
	}
	return def
}

// Has reports whether the attribute is present at all.
func Has[T any](a Accessor, decl ir.Decl, d Descriptor[T]) bool {
	if a == nil || decl == nil {
		return false
	}
	_, ok := a.Lookup(decl, d.Name)
	return ok
}

func convertInt[T any](raw any) (T, bool) {
	var zero T
	var n int64
	switch v := raw.(type) {
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case float64:
		n = int64(v)
	default:
		return zero, false
	}
	out, ok := any(n).(T)
	return out, ok
}

// Per-format attribute descriptors. The attribute name is "<format>.<key>";
// the bare format name enables the format on a form.

// Enabled turns a format on for a form.
func Enabled(f ir.Format) Descriptor[bool] { return Descriptor[bool]{Name: string(f)} }

// Pack names a user-supplied encode hook for a form.
func Pack(f ir.Format) Descriptor[string] { return Descriptor[string]{Name: string(f) + ".pack"} }

// Parse names a user-supplied decode hook for a form.
func Parse(f ir.Format) Descriptor[string] { return Descriptor[string]{Name: string(f) + ".parse"} }

// Key overrides the wire key of a field or enum value.
func Key(f ir.Format) Descriptor[string] { return Descriptor[string]{Name: string(f) + ".key"} }

// Name is the deprecated spelling of Key.
func Name(f ir.Format) Descriptor[string] { return Descriptor[string]{Name: string(f) + ".name"} }

// Ignore removes a field from one format's codec.
func Ignore(f ir.Format) Descriptor[bool] { return Descriptor[bool]{Name: string(f) + ".ignore"} }

// Repr selects an alternative representation ("int" encodes an enum as its
// backing integer).
func Repr(f ir.Format) Descriptor[string] { return Descriptor[string]{Name: string(f) + ".repr"} }

// Unfold repeats the parameter key for every list item (k=a&k=b).
func Unfold(f ir.Format) Descriptor[bool] { return Descriptor[bool]{Name: string(f) + ".unfold"} }

// UnfoldIndex repeats the key with an index suffix (k[0]=a&k[1]=b).
func UnfoldIndex(f ir.Format) Descriptor[bool] {
	return Descriptor[bool]{Name: string(f) + ".unfold_index"}
}

// Separator joins folded list items (default ",").
func Separator(f ir.Format) Descriptor[string] {
	return Descriptor[string]{Name: string(f) + ".separator"}
}

// Format-specific structural options.
var (
	// BinaryBitmask groups optional-field presence into one leading bitmask.
	BinaryBitmask = Descriptor[bool]{Name: "binary.bitmask"}

	// XMLAttribute encodes a field as an XML attribute instead of a child.
	XMLAttribute = Descriptor[bool]{Name: "xml.attribute"}

	// XMLContent encodes a field as the text content of the record element.
	XMLContent = Descriptor[bool]{Name: "xml.content"}

	// XMLSimple requests a simple-type (text only) shape for a form.
	XMLSimple = Descriptor[bool]{Name: "xml.simple"}

	// XMLItem names the element wrapping each list item (default "item").
	XMLItem = Descriptor[string]{Name: "xml.item"}
)

// Known reports whether name is a recognised attribute. For deprecated
// attributes it also returns the replacement name.
func Known(name string) (replacement string, ok bool) {
	format, key, hasKey := strings.Cut(name, ".")
	if _, err := ir.ParseFormat(format); err != nil {
		return "", false
	}
	if !hasKey {
		return "", true
	}
	switch key {
	case "pack", "parse", "key", "ignore", "repr", "unfold", "unfold_index", "separator":
		return "", true
	case "name":
		return format + ".key", true
	}
	switch name {
	case BinaryBitmask.Name, XMLAttribute.Name, XMLContent.Name, XMLSimple.Name, XMLItem.Name:
		return "", true
	}
	return "", false
}

// Table is an in-memory Accessor keyed by declaration path.
// A Table must not be mutated once resolution starts.
type Table struct {
	entries map[string]map[string]any
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]map[string]any)}
}

// Set attaches an attribute to the declaration path.
func (t *Table) Set(path, name string, v any) *Table {
	m, ok := t.entries[path]
	if !ok {
		m = make(map[string]any)
		t.entries[path] = m
	}
	m[name] = v
	return t
}

// Lookup implements Accessor.
func (t *Table) Lookup(decl ir.Decl, name string) (any, bool) {
	m, ok := t.entries[decl.Path()]
	if !ok {
		return nil, false
	}
	v, ok := m[name]
	if !ok {
		return nil, false
	}
	return v, true
}

// Names returns the attribute names attached to a path, sorted.
func (t *Table) Names(path string) []string {
	m := t.entries[path]
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Paths returns every declaration path carrying attributes, sorted.
func (t *Table) Paths() []string {
	paths := make([]string, 0, len(t.entries))
	for p := range t.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Merge copies every entry of other into t, overwriting on conflict.
func (t *Table) Merge(other *Table) {
	for path, m := range other.entries {
		for name, v := range m {
			t.Set(path, name, v)
		}
	}
}

// Layered consults accessors in order and returns the first hit.
type Layered []Accessor

// Lookup implements Accessor.
func (l Layered) Lookup(decl ir.Decl, name string) (any, bool) {
	for _, a := range l {
		if a == nil {
			continue
		}
		if v, ok := a.Lookup(decl, name); ok {
			return v, true
		}
	}
	return nil, false
}

// String renders the table for debugging.
func (t *Table) String() string {
	var sb strings.Builder
	for _, p := range t.Paths() {
		for _, n := range t.Names(p) {
			fmt.Fprintf(&sb, "%s %s=%v\n", p, n, t.entries[p][n])
		}
	}
	return sb.String()
}
