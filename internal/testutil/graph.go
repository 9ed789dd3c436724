package testutil

import (
	"github.com/roach88/idlc/internal/attr"
	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/value"
)

// Common builtin types.
var (
	Int8    = ir.Integer{Width: 8, Signed: true}
	Int32   = ir.Integer{Width: 32, Signed: true}
	Int64   = ir.Integer{Width: 64, Signed: true}
	Uint8   = ir.Integer{Width: 8}
	Uint16  = ir.Integer{Width: 16}
	Float64 = ir.Float{Width: 64}
)

// Fixture is a small type graph plus its attribute table.
type Fixture struct {
	Graph *ir.Graph
	Attrs *attr.Table
}

// Form returns the named form or panics.
func (fx *Fixture) Form(name string) *ir.Form {
	f := fx.Graph.Lookup(name)
	if f == nil {
		panic("fixture has no form " + name)
	}
	return f
}

// Enable turns formats on for the named forms.
func (fx *Fixture) Enable(names []string, formats ...ir.Format) *Fixture {
	for _, n := range names {
		for _, f := range formats {
			fx.Attrs.Set(n, string(f), true)
		}
	}
	return fx
}

// Record builds a record form. Field owners are filled in.
func Record(name string, fields ...*ir.RecordField) *ir.Form {
	for i, f := range fields {
		f.Owner = name
		f.Pos = ir.Pos{File: name + ".cue", Line: i + 2, Column: 3}
	}
	return &ir.Form{Name: name, Pos: pos(name), Body: &ir.Record{Fields: fields}}
}

// Generic adds type parameters to a form.
func Generic(f *ir.Form, params ...string) *ir.Form {
	f.Params = params
	return f
}

// Patch marks a record form as a patch record.
func Patch(f *ir.Form) *ir.Form {
	f.Record().IsPatch = true
	return f
}

// Field builds a required field.
func Field(name string, t ir.Type) *ir.RecordField {
	return &ir.RecordField{Name: name, Type: t}
}

// Opt builds an optional field, with a default when def is non-nil.
func Opt(name string, t ir.Type, def value.Value) *ir.RecordField {
	return &ir.RecordField{Name: name, Type: ir.Optional{Item: t}, Default: def}
}

// Discriminant builds a variant tag field holding a constant.
func Discriminant(name string, t ir.Type, v value.Value) *ir.RecordField {
	return &ir.RecordField{Name: name, Type: t, Default: v, IsTag: true}
}

// Variant builds a variant and links descendants back to it.
func Variant(name string, descendants ...*ir.Form) *ir.Form {
	v := &ir.Form{Name: name, Pos: pos(name), Body: &ir.Variant{Descendants: descendants}}
	for _, d := range descendants {
		if r := d.Record(); r != nil {
			r.Ancestor = v
		}
	}
	return v
}

// Enum builds an enum with values numbered from 1.
func Enum(name string, backing ir.Integer, members ...string) *ir.Form {
	e := &ir.Enum{Backing: backing}
	for i, m := range members {
		e.Values = append(e.Values, &ir.EnumValue{Owner: name, Name: m, Int: int64(i + 1)})
	}
	return &ir.Form{Name: name, Pos: pos(name), Body: e}
}

// Union builds a union form.
func Union(name string, clauses ...*ir.Clause) *ir.Form {
	return &ir.Form{Name: name, Pos: pos(name), Body: &ir.Union{Clauses: clauses}}
}

// Define builds an alias form.
func Define(name string, target ir.Type) *ir.Form {
	return &ir.Form{Name: name, Pos: pos(name), Body: &ir.Define{Target: target}}
}

func pos(name string) ir.Pos {
	return ir.Pos{File: name + ".cue", Line: 1, Column: 1}
}

// Standard builds the graph shared by resolver, generator and runtime tests:
//
//	R{id: int64, name: ?string = "anon"}
//	Point{x: int32, y: int32}
//	Color enum {red, green, blue} backed by uint8
//	V variant {A{kind = 1, a: int32}, B{kind = 2, b: string}}
//	U union {none | num: int64 | string}
//	Box<T>{value: T, tags: list<T>}
//	Pair<K, V>{key: K, value: V}
//	Shape{origin: Point, color: ?Color, labels: dict<string, int32>, boxed: Box<Point>}
//	Delta patch {count: int32, note: ?string}
//	Bits{o1..o9: ?uint8, head: int32}
//	Alias = list<Point>
//
// JSON and binary are enabled on every form; XML and query on a subset.
func Standard() *Fixture {
	point := Record("Point", Field("x", Int32), Field("y", Int32))
	color := Enum("Color", Uint8, "red", "green", "blue")
	box := Generic(Record("Box",
		Field("value", ir.GenericArgument{Name: "T"}),
		Field("tags", ir.List{Item: ir.GenericArgument{Name: "T"}}),
	), "T")
	pair := Generic(Record("Pair",
		Field("key", ir.GenericArgument{Name: "K"}),
		Field("value", ir.GenericArgument{Name: "V"}),
	), "K", "V")

	a := Record("A", Discriminant("kind", Uint8, value.Int(1)), Field("a", Int32))
	b := Record("B", Discriminant("kind", Uint8, value.Int(2)), Field("b", ir.String{}))
	v := Variant("V", a, b)

	u := Union("U",
		&ir.Clause{Tag: "none"},
		&ir.Clause{Tag: "num", Type: Int64},
		&ir.Clause{Type: ir.String{}},
	)

	bits := []*ir.RecordField{}
	for _, n := range []string{"o1", "o2", "o3", "o4", "o5", "o6", "o7", "o8", "o9"} {
		bits = append(bits, Opt(n, Uint8, nil))
	}
	bits = append(bits, Field("head", Int32))

	g := ir.NewGraph().MustAdd(
		Record("R", Field("id", Int64), Opt("name", ir.String{}, value.String("anon"))),
		point,
		color,
		v, a, b,
		u,
		box,
		pair,
		Record("Shape",
			Field("origin", ir.UserType{Form: point}),
			Opt("color", ir.UserType{Form: color}, nil),
			Field("labels", ir.Dict{Key: ir.String{}, Value: Int32}),
			Field("boxed", ir.GenericInstance{Form: box, Args: []ir.Type{ir.UserType{Form: point}}}),
		),
		Patch(Record("Delta", Field("count", Int32), Opt("note", ir.String{}, nil))),
		Record("Bits", bits...),
		Define("Alias", ir.List{Item: ir.UserType{Form: point}}),
	)

	fx := &Fixture{Graph: g, Attrs: attr.NewTable()}
	all := make([]string, 0, g.Len())
	for _, f := range g.Forms() {
		all = append(all, f.Name)
	}
	fx.Enable(all, ir.FormatJSON, ir.FormatBinary)
	fx.Enable([]string{"R", "Point", "Color", "Box", "Shape", "V", "A", "B", "U", "Delta"}, ir.FormatXML)
	fx.Enable([]string{"R", "Point", "Color", "V", "A", "B", "U"}, ir.FormatQuery)
	return fx
}
