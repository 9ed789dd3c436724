package compiler

import (
	"fmt"
	"math"

	"github.com/roach88/idlc/internal/attr"
	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/value"
)

// Schema validation error codes (E101-E199)
const (
	ErrDuplicateEnumValue = "E101" // two members share an integer
	ErrEnumRange          = "E102" // member integer does not fit the backing type
	ErrInvalidDescendant  = "E103" // variant descendant is not a concrete record or variant
	ErrDiscriminant       = "E104" // missing, mismatched or duplicate discriminant
	ErrDuplicateName      = "E105" // duplicate union clause tag
	ErrTagField           = "E106" // malformed tag field
	ErrAliasCycle         = "E107" // define or variant contains itself
	ErrFlagsItem          = "E108" // flags over a non-enum type
	ErrDictKey            = "E109" // dict key is not a scalar
	ErrRequiredDefault    = "E110" // default on a required field
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled schema against the structural rules.
// Returns all errors found (does not fail-fast).
func Validate(s *Schema) []ValidationError {
	v := &validator{}
	cyclic := make(map[string]bool)
	for _, c := range AliasCycles(s.Graph) {
		f := s.Graph.Lookup(c.Path[0])
		v.add(f, f.Name, ErrAliasCycle, "%s", c.Message)
		for _, n := range c.Path {
			cyclic[n] = true
		}
	}
	for _, f := range s.Graph.Forms() {
		if cyclic[f.Name] {
			continue
		}
		switch b := f.Body.(type) {
		case *ir.Enum:
			v.enum(f, b)
		case *ir.Record:
			v.record(f, b)
		case *ir.Variant:
			v.variant(f, b)
		case *ir.Union:
			v.union(f, b)
		case *ir.Define:
			v.types(f, f.Name+".target", b.Target)
		}
	}
	return v.errs
}

type validator struct {
	errs []ValidationError
}

func (v *validator) add(decl ir.Decl, field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
		Line:    decl.Position().Line,
	})
}

func (v *validator) enum(f *ir.Form, e *ir.Enum) {
	seen := make(map[int64]string)
	lo, hi := integerRange(e.Backing)
	for _, ev := range e.Values {
		if prev, dup := seen[ev.Int]; dup {
			v.add(ev, ev.Path(), ErrDuplicateEnumValue, "value %d already used by %s", ev.Int, prev)
		}
		seen[ev.Int] = ev.Name
		if ev.Int < lo || ev.Int > hi {
			v.add(ev, ev.Path(), ErrEnumRange, "value %d does not fit %s", ev.Int, e.Backing)
		}
	}
}

// integerRange returns the bounds of t clamped to int64.
func integerRange(t ir.Integer) (lo, hi int64) {
	if !t.Signed {
		if t.Width >= 64 {
			return 0, math.MaxInt64
		}
		return 0, int64(1)<<t.Width - 1
	}
	if t.Width >= 64 {
		return math.MinInt64, math.MaxInt64
	}
	return -(int64(1) << (t.Width - 1)), int64(1)<<(t.Width-1) - 1
}

func (v *validator) record(f *ir.Form, r *ir.Record) {
	tags := 0
	for _, rf := range r.Fields {
		v.types(rf, rf.Path(), rf.Type)
		if rf.IsTag {
			tags++
			if rf.IsOptional() {
				v.add(rf, rf.Path(), ErrTagField, "tag field cannot be optional")
			}
			if r.Ancestor == nil {
				v.add(rf, rf.Path(), ErrTagField, "tag field on %s, which is not a variant descendant", f.Name)
			}
			continue
		}
		if rf.HasDefault() && !rf.IsOptional() {
			v.add(rf, rf.Path(), ErrRequiredDefault, "default on required field; make the field optional")
		}
	}
	if tags > 1 {
		v.add(f, f.Name, ErrTagField, "record declares %d tag fields", tags)
	}
}

func (v *validator) variant(f *ir.Form, vr *ir.Variant) {
	for _, d := range vr.Descendants {
		switch {
		case d.Kind() != ir.KindRecord && d.Kind() != ir.KindVariant:
			v.add(f, f.Name+".descendants", ErrInvalidDescendant, "%s %s cannot be a variant descendant", d.Kind(), d.Name)
		case d.IsGeneric():
			v.add(f, f.Name+".descendants", ErrInvalidDescendant, "generic %s cannot be a variant descendant", d.Name)
		}
	}

	// Nested variants are checked from the outermost variant only.
	leaves := recordLeaves(vr, map[*ir.Variant]bool{})
	type discriminant struct {
		owner string
		v     value.Value
	}
	var tagName string
	var seen []discriminant
	for _, leaf := range leaves {
		tf := leaf.Record().TagField()
		if tf == nil {
			v.add(leaf, leaf.Name, ErrDiscriminant, "descendant of %s has no tag field", f.Name)
			continue
		}
		if tagName == "" {
			tagName = tf.Name
		} else if tf.Name != tagName {
			v.add(tf, tf.Path(), ErrDiscriminant, "tag field %q differs from %q used by the other descendants of %s", tf.Name, tagName, f.Name)
		}
		for _, prev := range seen {
			if value.Equal(prev.v, tf.Default) {
				v.add(tf, tf.Path(), ErrDiscriminant, "discriminant %s already used by %s", value.Format(tf.Default), prev.owner)
			}
		}
		seen = append(seen, discriminant{owner: leaf.Name, v: tf.Default})
	}
}

// recordLeaves is Variant.Leaves restricted to records. It stops at nested
// variants already visited.
func recordLeaves(vr *ir.Variant, seen map[*ir.Variant]bool) []*ir.Form {
	seen[vr] = true
	var out []*ir.Form
	for _, d := range vr.Descendants {
		switch b := d.Body.(type) {
		case *ir.Record:
			out = append(out, d)
		case *ir.Variant:
			if !seen[b] {
				out = append(out, recordLeaves(b, seen)...)
			}
		}
	}
	return out
}

func (v *validator) union(f *ir.Form, u *ir.Union) {
	seen := make(map[string]bool)
	for i, c := range u.Clauses {
		field := fmt.Sprintf("%s.clauses[%d]", f.Name, i)
		if c.Tag != "" {
			if seen[c.Tag] {
				v.add(f, field, ErrDuplicateName, "duplicate clause tag %q", c.Tag)
			}
			seen[c.Tag] = true
		}
		if c.Type != nil {
			v.types(f, field, c.Type)
		}
	}
}

// types checks the nested type constructors of t.
func (v *validator) types(decl ir.Decl, field string, t ir.Type) {
	switch x := t.(type) {
	case ir.Optional:
		v.types(decl, field, x.Item)
	case ir.List:
		v.types(decl, field, x.Item)
	case ir.Flags:
		if f := formOf(x.Item); f == nil || f.Kind() != ir.KindEnum {
			v.add(decl, field, ErrFlagsItem, "flags item %s is not an enum", x.Item)
		}
	case ir.Dict:
		if !isDictKey(x.Key, map[*ir.Form]bool{}) {
			v.add(decl, field, ErrDictKey, "dict key %s is not a scalar", x.Key)
		}
		v.types(decl, field, x.Key)
		v.types(decl, field, x.Value)
	case ir.OneOf:
		for _, it := range x.Items {
			v.types(decl, field, it)
		}
	case ir.GenericInstance:
		for _, a := range x.Args {
			v.types(decl, field, a)
		}
	}
}

// isDictKey reports whether t is a scalar. seen stops at alias cycles,
// which are reported separately.
func isDictKey(t ir.Type, seen map[*ir.Form]bool) bool {
	switch x := t.(type) {
	case ir.String, ir.Atom, ir.Integer, ir.Bool, ir.GenericArgument:
		return true
	case ir.UserType:
		if seen[x.Form] {
			return true
		}
		seen[x.Form] = true
		switch b := x.Form.Body.(type) {
		case *ir.Enum:
			return true
		case *ir.Define:
			return isDictKey(b.Target, seen)
		}
	}
	return false
}

// Decls indexes every attribute-bearing declaration of g by path.
func Decls(g *ir.Graph) map[string]ir.Decl {
	out := make(map[string]ir.Decl)
	for _, f := range g.Forms() {
		out[f.Path()] = f
		switch b := f.Body.(type) {
		case *ir.Record:
			for _, rf := range b.Fields {
				out[rf.Path()] = rf
			}
		case *ir.Enum:
			for _, ev := range b.Values {
				out[ev.Path()] = ev
			}
		}
	}
	return out
}

// Lint reports warnings for unknown and deprecated attribute names in each
// table, for attributes on paths that name no declaration, and for records
// that contain themselves.
func Lint(g *ir.Graph, sink *diag.Sink, tables ...*attr.Table) {
	decls := Decls(g)
	for _, t := range tables {
		for _, path := range t.Paths() {
			decl, ok := decls[path]
			if !ok {
				sink.Warnf(diag.CodeUnknownAttribute, nil, "attributes attached to %q, which names no declaration", path)
				continue
			}
			for _, name := range t.Names(path) {
				replacement, known := attr.Known(name)
				switch {
				case !known:
					sink.Warnf(diag.CodeUnknownAttribute, decl, "unknown attribute %q on %s", name, path)
				case replacement != "":
					sink.Warnf(diag.CodeDeprecatedAttr, decl, "attribute %q on %s is deprecated, use %q", name, path, replacement)
				}
			}
		}
	}
	for _, c := range ContainmentCycles(g) {
		sink.Warnf(diag.CodeRecursiveRecord, g.Lookup(c.Path[0]), "%s", c.Message)
	}
}
