// Package compiler turns CUE declarations into the type graph and attribute
// table consumed by tag resolution.
//
// A schema is a set of top-level sections, one per declaration kind:
//
//	enum: Color: {backing: "uint8", values: {red: 1, green: 2}}
//	record: Point: {fields: {x: "int32", y: {type: "?int32", default: 0}}}
//	variant: Shape: {descendants: ["Circle", "Square"]}
//	union: Id: {clauses: [{tag: "none"}, {tag: "num", type: "int64"}, {type: "string"}]}
//	define: Points: {target: "list<Point>"}
//
// Every declaration, field and enum value may carry an attrs struct. Nested
// attribute structs flatten into dotted names: {xml: {attribute: true}} is
// "xml.attribute".
package compiler

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/idlc/internal/attr"
	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/value"
)

// Schema is a compiled set of declarations.
type Schema struct {
	Graph *ir.Graph
	Attrs *attr.Table
}

// Sections in the order they are read. Forms are added to the graph in
// source order regardless of section.
var sections = []struct {
	label string
	kind  ir.FormKind
}{
	{"enum", ir.KindEnum},
	{"record", ir.KindRecord},
	{"variant", ir.KindVariant},
	{"union", ir.KindUnion},
	{"define", ir.KindDefine},
}

// DefaultBacking is the enum backing integer when none is declared.
var DefaultBacking = ir.Integer{Width: 32, Signed: true}

type pending struct {
	form *ir.Form
	v    cue.Value
	cpos token.Pos
}

// Compile parses a CUE value holding the declaration sections.
func Compile(v cue.Value) (*Schema, error) {
	if err := v.Validate(); err != nil {
		return nil, formatCUEError(err)
	}

	// Forms are created first so type expressions can refer forward.
	var decls []pending
	for _, sec := range sections {
		secVal := v.LookupPath(cue.ParsePath(sec.label))
		if !secVal.Exists() {
			continue
		}
		iter, err := secVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			dv := iter.Value()
			form := &ir.Form{Name: nfc(iter.Label()), Pos: posOf(dv.Pos())}
			params, err := stringList(dv, "params")
			if err != nil {
				return nil, err
			}
			form.Params = params
			switch sec.kind {
			case ir.KindEnum:
				form.Body = &ir.Enum{}
			case ir.KindRecord:
				form.Body = &ir.Record{}
			case ir.KindVariant:
				form.Body = &ir.Variant{}
			case ir.KindUnion:
				form.Body = &ir.Union{}
			case ir.KindDefine:
				form.Body = &ir.Define{}
			}
			decls = append(decls, pending{form: form, v: dv, cpos: dv.Pos()})
		}
	}
	slices.SortStableFunc(decls, func(a, b pending) int {
		if c := cmp.Compare(a.cpos.Filename(), b.cpos.Filename()); c != 0 {
			return c
		}
		return cmp.Compare(a.cpos.Offset(), b.cpos.Offset())
	})

	s := &Schema{Graph: ir.NewGraph(), Attrs: attr.NewTable()}
	for _, d := range decls {
		if err := s.Graph.Add(d.form); err != nil {
			return nil, &CompileError{Field: d.form.Name, Message: err.Error(), Pos: d.cpos}
		}
	}

	c := &schemaCompiler{s: s}
	for _, d := range decls {
		if err := c.body(d.form, d.v); err != nil {
			return nil, err
		}
		if err := c.attrs(d.form.Path(), d.v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

type schemaCompiler struct {
	s *Schema
}

func (c *schemaCompiler) body(form *ir.Form, v cue.Value) error {
	switch b := form.Body.(type) {
	case *ir.Enum:
		return c.enum(form, b, v)
	case *ir.Record:
		return c.record(form, b, v)
	case *ir.Variant:
		return c.variant(form, b, v)
	case *ir.Union:
		return c.union(form, b, v)
	case *ir.Define:
		target, err := requiredString(v, "target", form.Name)
		if err != nil {
			return err
		}
		b.Target, err = c.typeOf(form, form.Name+".target", target, v.LookupPath(cue.ParsePath("target")).Pos())
		return err
	}
	return fmt.Errorf("compile %s: unexpected body %T", form.Name, form.Body)
}

func (c *schemaCompiler) typeOf(form *ir.Form, field, expr string, pos token.Pos) (ir.Type, error) {
	t, err := ParseType(expr, c.s.Graph, form.Params)
	if err != nil {
		return nil, &CompileError{Field: field, Message: err.Error(), Pos: pos}
	}
	return t, nil
}

func (c *schemaCompiler) enum(form *ir.Form, e *ir.Enum, v cue.Value) error {
	e.Backing = DefaultBacking
	if bv := v.LookupPath(cue.ParsePath("backing")); bv.Exists() {
		s, err := bv.String()
		if err != nil {
			return formatCUEError(err)
		}
		t, ok := scalarType(s)
		integer, isInt := t.(ir.Integer)
		if !ok || !isInt {
			return &CompileError{Field: form.Name + ".backing", Message: fmt.Sprintf("backing %q is not an integer type", s), Pos: bv.Pos()}
		}
		e.Backing = integer
	}

	vals := v.LookupPath(cue.ParsePath("values"))
	if !vals.Exists() {
		return &CompileError{Field: form.Name + ".values", Message: "enum values are required", Pos: v.Pos()}
	}
	iter, err := vals.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		mv := iter.Value()
		ev := &ir.EnumValue{Owner: form.Name, Name: nfc(iter.Label()), Pos: posOf(mv.Pos())}
		iv := mv
		if mv.IncompleteKind() == cue.StructKind {
			iv = mv.LookupPath(cue.ParsePath("value"))
			if err := c.attrs(ev.Path(), mv); err != nil {
				return err
			}
		}
		n, err := iv.Int64()
		if err != nil {
			return &CompileError{Field: ev.Path(), Message: "enum value must be an integer", Pos: mv.Pos()}
		}
		ev.Int = n
		e.Values = append(e.Values, ev)
	}
	return nil
}

func (c *schemaCompiler) record(form *ir.Form, r *ir.Record, v cue.Value) error {
	var err error
	if r.IsPatch, err = optionalBool(v, "patch"); err != nil {
		return err
	}
	if r.IsException, err = optionalBool(v, "exception"); err != nil {
		return err
	}
	fields := v.LookupPath(cue.ParsePath("fields"))
	if !fields.Exists() {
		return nil
	}
	iter, err := fields.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		fv := iter.Value()
		rf := &ir.RecordField{Owner: form.Name, Name: nfc(iter.Label()), Pos: posOf(fv.Pos())}
		if err := c.field(form, rf, fv); err != nil {
			return err
		}
		r.Fields = append(r.Fields, rf)
	}
	return nil
}

// field reads either a bare type expression or a struct with type,
// default, tag and attrs.
func (c *schemaCompiler) field(form *ir.Form, rf *ir.RecordField, v cue.Value) error {
	if s, err := v.String(); err == nil {
		t, err := c.typeOf(form, rf.Path(), s, v.Pos())
		rf.Type = t
		return err
	}
	expr, err := requiredString(v, "type", rf.Path())
	if err != nil {
		return err
	}
	if rf.Type, err = c.typeOf(form, rf.Path(), expr, v.Pos()); err != nil {
		return err
	}
	if rf.IsTag, err = optionalBool(v, "tag"); err != nil {
		return err
	}
	if dv := v.LookupPath(cue.ParsePath("default")); dv.Exists() {
		if rf.Default, err = defaultValue(rf.Type, dv); err != nil {
			return &CompileError{Field: rf.Path() + ".default", Message: err.Error(), Pos: dv.Pos()}
		}
	}
	if rf.IsTag && rf.Default == nil {
		return &CompileError{Field: rf.Path(), Message: "tag field needs a default discriminant value", Pos: v.Pos()}
	}
	return c.attrs(rf.Path(), v)
}

func (c *schemaCompiler) variant(form *ir.Form, vr *ir.Variant, v cue.Value) error {
	names, err := stringList(v, "descendants")
	if err != nil {
		return err
	}
	for _, n := range names {
		d := c.s.Graph.Lookup(n)
		if d == nil {
			return &CompileError{Field: form.Name + ".descendants", Message: fmt.Sprintf("unknown descendant %q", n), Pos: v.Pos()}
		}
		vr.Descendants = append(vr.Descendants, d)
		if r := d.Record(); r != nil {
			if r.Ancestor != nil {
				return &CompileError{
					Field:   form.Name + ".descendants",
					Message: fmt.Sprintf("%s already descends from %s", n, r.Ancestor.Name),
					Pos:     v.Pos(),
				}
			}
			r.Ancestor = form
		}
	}
	return nil
}

func (c *schemaCompiler) union(form *ir.Form, u *ir.Union, v cue.Value) error {
	clauses := v.LookupPath(cue.ParsePath("clauses"))
	if !clauses.Exists() {
		return &CompileError{Field: form.Name + ".clauses", Message: "union clauses are required", Pos: v.Pos()}
	}
	iter, err := clauses.List()
	if err != nil {
		return formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		cv := iter.Value()
		field := fmt.Sprintf("%s.clauses[%d]", form.Name, i)
		cl := &ir.Clause{Pos: posOf(cv.Pos())}
		if tv := cv.LookupPath(cue.ParsePath("tag")); tv.Exists() {
			s, err := tv.String()
			if err != nil {
				return formatCUEError(err)
			}
			cl.Tag = nfc(s)
		}
		if tv := cv.LookupPath(cue.ParsePath("type")); tv.Exists() {
			s, err := tv.String()
			if err != nil {
				return formatCUEError(err)
			}
			if cl.Type, err = c.typeOf(form, field, s, tv.Pos()); err != nil {
				return err
			}
		}
		if cl.Tag == "" && cl.Type == nil {
			return &CompileError{Field: field, Message: "clause needs a tag, a type or both", Pos: cv.Pos()}
		}
		u.Clauses = append(u.Clauses, cl)
	}
	return nil
}

// attrs flattens the attrs struct of v into the table under path.
func (c *schemaCompiler) attrs(path string, v cue.Value) error {
	av := v.LookupPath(cue.ParsePath("attrs"))
	if !av.Exists() {
		return nil
	}
	return c.flatten(path, "", av)
}

func (c *schemaCompiler) flatten(path, prefix string, v cue.Value) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		if prefix != "" {
			name = prefix + "." + name
		}
		av := iter.Value()
		switch av.IncompleteKind() {
		case cue.StructKind:
			if err := c.flatten(path, name, av); err != nil {
				return err
			}
			continue
		case cue.BoolKind:
			b, err := av.Bool()
			if err != nil {
				return formatCUEError(err)
			}
			c.s.Attrs.Set(path, name, b)
		case cue.IntKind:
			n, err := av.Int64()
			if err != nil {
				return formatCUEError(err)
			}
			c.s.Attrs.Set(path, name, n)
		case cue.StringKind:
			s, err := av.String()
			if err != nil {
				return formatCUEError(err)
			}
			if strings.HasSuffix(name, ".key") || strings.HasSuffix(name, ".name") {
				s = nfc(s)
			}
			c.s.Attrs.Set(path, name, s)
		default:
			return &CompileError{
				Field:   path + "@" + name,
				Message: fmt.Sprintf("attribute value must be a bool, integer or string, got %v", av.IncompleteKind()),
				Pos:     av.Pos(),
			}
		}
	}
	return nil
}

// defaultValue converts a CUE default to a value of type t.
func defaultValue(t ir.Type, v cue.Value) (value.Value, error) {
	switch x := t.(type) {
	case ir.Optional:
		if v.IncompleteKind() == cue.NullKind {
			return value.Absent{}, nil
		}
		return defaultValue(x.Item, v)
	case ir.Bool:
		b, err := v.Bool()
		return value.Bool(b), err
	case ir.Integer:
		n, err := v.Int64()
		return value.Int(n), err
	case ir.Float:
		f, err := v.Float64()
		return value.Float(f), err
	case ir.String:
		s, err := v.String()
		return value.String(s), err
	case ir.Atom:
		s, err := v.String()
		return value.Atom(s), err
	case ir.List:
		iter, err := v.List()
		if err != nil {
			return nil, err
		}
		out := value.List{}
		for iter.Next() {
			item, err := defaultValue(x.Item, iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case ir.UserType:
		switch body := x.Form.Body.(type) {
		case *ir.Enum:
			s, err := v.String()
			if err != nil {
				return nil, err
			}
			if body.Lookup(s) == nil {
				return nil, fmt.Errorf("%s has no member %q", x.Form.Name, s)
			}
			return value.Atom(s), nil
		case *ir.Define:
			return defaultValue(body.Target, v)
		}
	}
	return nil, fmt.Errorf("defaults are not supported for type %s", t)
}

func requiredString(v cue.Value, label, field string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(label))
	if !sv.Exists() {
		return "", &CompileError{Field: field, Message: label + " is required", Pos: v.Pos()}
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, label string) (bool, error) {
	bv := v.LookupPath(cue.ParsePath(label))
	if !bv.Exists() {
		return false, nil
	}
	b, err := bv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func stringList(v cue.Value, label string) ([]string, error) {
	lv := v.LookupPath(cue.ParsePath(label))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, nfc(s))
	}
	return out, nil
}

func nfc(s string) string {
	return norm.NFC.String(s)
}

func posOf(p token.Pos) ir.Pos {
	if !p.IsValid() {
		return ir.Pos{}
	}
	return ir.Pos{File: p.Filename(), Line: p.Line(), Column: p.Column()}
}

// CompileError is a compilation error with its CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
