// Package wire executes routine descriptions against dynamic values.
//
// The Machine is the reference interpreter of the codegen output: it
// resolves the tag of a type, looks up the generated encode/decode
// routines of every form the tag reaches and runs them for JSON, binary,
// XML, the HTTP key/value formats and the plain text formats. Rendering
// services emit code with the same behavior; the interpreter is what the
// round-trip tests and the CLI run.
package wire

import (
	"fmt"
	"math"
	"sync"

	"github.com/roach88/idlc/internal/codegen"
	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/tag"
	"github.com/roach88/idlc/internal/value"
)

// Machine encodes and decodes values. It is safe for concurrent use.
type Machine struct {
	gen   *codegen.Generator
	hooks *Hooks

	mu    sync.Mutex
	pairs map[pairKey]*codegen.Pair
}

type pairKey struct {
	form   string
	format ir.Format
}

// NewMachine creates a machine generating routines through gen. hooks may
// be nil when no custom codecs are used.
func NewMachine(gen *codegen.Generator, hooks *Hooks) *Machine {
	if hooks == nil {
		hooks = NewHooks()
	}
	return &Machine{
		gen:   gen,
		hooks: hooks,
		pairs: make(map[pairKey]*codegen.Pair),
	}
}

// Encode writes v as a value of type t in format f.
func (m *Machine) Encode(t ir.Type, f ir.Format, v value.Value) ([]byte, error) {
	tg, err := m.TagOf(t, f)
	if err != nil {
		return nil, err
	}
	switch {
	case f == ir.FormatJSON:
		return m.encodeJSON(tg, v)
	case f == ir.FormatBinary:
		return m.encodeBinary(tg, v)
	case f == ir.FormatXML:
		return m.encodeXML(rootName(t), tg, v)
	case f.IsKeyValue():
		return m.encodeQuery(f, tg, v)
	case f.IsText():
		return m.encodeText(f, tg, v)
	}
	return nil, fmt.Errorf("wire: unsupported format %q", f)
}

// Decode reads a value of type t from data in format f.
func (m *Machine) Decode(t ir.Type, f ir.Format, data []byte) (value.Value, error) {
	tg, err := m.TagOf(t, f)
	if err != nil {
		return nil, err
	}
	switch {
	case f == ir.FormatJSON:
		return m.decodeJSON(tg, data)
	case f == ir.FormatBinary:
		return m.decodeBinary(tg, data)
	case f == ir.FormatXML:
		return m.decodeXML(tg, data)
	case f.IsKeyValue():
		return m.decodeQuery(f, tg, data)
	case f.IsText():
		return m.decodeText(f, tg, data)
	}
	return nil, fmt.Errorf("wire: unsupported format %q", f)
}

// TagOf resolves the closed tag of t in f.
func (m *Machine) TagOf(t ir.Type, f ir.Format) (tag.Tag, error) {
	var ref ir.Decl
	switch x := t.(type) {
	case ir.UserType:
		ref = x.Form
	case ir.GenericInstance:
		ref = x.Form
	}
	tg, err := m.gen.Resolver().Resolve(t, f, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve %s in %s: %w", t, f, err)
	}
	if !tag.IsClosed(tg) {
		return nil, diag.Internalf("wire", "tag of %s in %s has free variables %v", t, f, tag.FreeVars(tg))
	}
	return tg, nil
}

func rootName(t ir.Type) string {
	switch x := t.(type) {
	case ir.UserType:
		return x.Form.Name
	case ir.GenericInstance:
		return x.Form.Name
	}
	return "value"
}

// program returns the routine of form in direction d and the substitution
// binding the form's parameters to args.
func (m *Machine) program(form *ir.Form, args []tag.Tag, f ir.Format, d tag.Direction) (*codegen.Routine, map[string]tag.Tag, error) {
	key := pairKey{form: form.Name, format: f}
	m.mu.Lock()
	p, ok := m.pairs[key]
	m.mu.Unlock()
	if !ok {
		var err error
		p, err = m.gen.Generate(form, f)
		if err != nil {
			return nil, nil, fmt.Errorf("generate %s in %s: %w", form.Name, f, err)
		}
		if p == nil {
			return nil, nil, diag.Internalf("wire", "%s has no %s routines", form.Name, f)
		}
		m.mu.Lock()
		m.pairs[key] = p
		m.mu.Unlock()
	}

	r := p.Encode
	if d == tag.Parse {
		r = p.Decode
	}
	var env map[string]tag.Tag
	if form.IsGeneric() {
		if len(args) != len(form.Params) {
			return nil, nil, diag.Internalf("wire", "%s expects %d type arguments, got %d", form.Name, len(form.Params), len(args))
		}
		env = tag.Substitution(form, args)
	}
	return r, env, nil
}

func bind(t tag.Tag, env map[string]tag.Tag) (tag.Tag, error) {
	if len(env) == 0 {
		return t, nil
	}
	return tag.Instantiate(t, env)
}

// enumMap returns the single operation of an enum routine.
func enumMap(r *codegen.Routine) (codegen.EnumMap, bool) {
	if len(r.Ops) != 1 {
		return codegen.EnumMap{}, false
	}
	em, ok := r.Ops[0].(codegen.EnumMap)
	return em, ok
}

// recordFields flattens the field operations of a record routine.
func recordFields(r *codegen.Routine) []codegen.Field {
	var out []codegen.Field
	for _, op := range r.Ops {
		switch x := op.(type) {
		case codegen.Field:
			out = append(out, x)
		case codegen.Batch:
			out = append(out, x.Fields...)
		}
	}
	return out
}

func recordOf(f ir.Format, path string, form *ir.Form, v value.Value) (*value.Record, error) {
	rec, ok := v.(*value.Record)
	if !ok {
		return nil, encodeErr(f, path, "expected %s record, got %s", form.Name, value.Format(v))
	}
	if rec.Type != form.Name {
		return nil, encodeErr(f, path, "expected %s record, got %s", form.Name, rec.Type)
	}
	return rec, nil
}

// written reports whether a field value goes on the wire.
func written(f ir.Format, path string, fd codegen.Field, v value.Value) (bool, error) {
	switch fd.Presence {
	case codegen.Patch:
		return !value.IsUnset(v), nil
	case codegen.Optional:
		if value.IsUnset(v) {
			return false, encodeErr(f, path, "unset is only valid in patch records")
		}
		return !value.IsAbsent(v), nil
	}
	if value.IsAbsent(v) || value.IsUnset(v) {
		return false, encodeErr(f, path, "missing required field")
	}
	return true, nil
}

// missing returns the decoded value of a field that is not on the wire.
func missing(f ir.Format, path string, fd codegen.Field) (value.Value, error) {
	switch {
	case fd.Presence == codegen.Patch:
		return value.Unset{}, nil
	case fd.Default != nil:
		return fd.Default, nil
	case fd.Presence == codegen.Optional:
		return value.Absent{}, nil
	}
	return nil, decodeErr(f, path, "missing required field %q", fd.Key)
}

// settle substitutes the default of an optional field decoded as absent.
func settle(fd codegen.Field, v value.Value) value.Value {
	if fd.Presence == codegen.Optional && value.IsAbsent(v) && fd.Default != nil {
		return fd.Default
	}
	return v
}

// dispatchCase finds the variant case of a record value.
func dispatchCase(d codegen.Dispatch, v value.Value) (codegen.Case, bool) {
	rec, ok := v.(*value.Record)
	if !ok {
		return codegen.Case{}, false
	}
	for _, c := range d.Cases {
		if c.Form.Name == rec.Type {
			return c, true
		}
	}
	return codegen.Case{}, false
}

// caseFor finds the variant case of a decoded discriminant.
func caseFor(d codegen.Dispatch, disc value.Value) (codegen.Case, bool) {
	for _, c := range d.Cases {
		if value.Equal(c.Value, disc) {
			return c, true
		}
	}
	return codegen.Case{}, false
}

// clauseFor picks the first union clause matching v.
func clauseFor(a codegen.Alternatives, v value.Value) (int, bool) {
	for i, c := range a.Clauses {
		if c.Match(v) {
			return i, true
		}
	}
	return -1, false
}

// choiceFor picks the first choice item whose shape matches v.
func choiceFor(c tag.Choice, v value.Value) (int, bool) {
	for i, it := range c.Items {
		if codegen.GuardFor(it).Match(v) {
			return i, true
		}
	}
	return -1, false
}

func intOf(f ir.Format, path string, p tag.PrimKind, v value.Value) (int64, error) {
	n, ok := v.(value.Int)
	if !ok {
		return 0, encodeErr(f, path, "expected %s, got %s", p, value.Format(v))
	}
	if !inRange(p, int64(n)) {
		return 0, encodeErr(f, path, "%d out of range for %s", n, p)
	}
	return int64(n), nil
}

func floatOf(f ir.Format, path string, p tag.PrimKind, v value.Value) (float64, error) {
	x, ok := v.(value.Float)
	if !ok {
		return 0, encodeErr(f, path, "expected %s, got %s", p, value.Format(v))
	}
	return float64(x), nil
}

func inRange(p tag.PrimKind, n int64) bool {
	switch p {
	case tag.Int8:
		return n >= math.MinInt8 && n <= math.MaxInt8
	case tag.Int16:
		return n >= math.MinInt16 && n <= math.MaxInt16
	case tag.Int32:
		return n >= math.MinInt32 && n <= math.MaxInt32
	case tag.Uint8:
		return n >= 0 && n <= math.MaxUint8
	case tag.Uint16:
		return n >= 0 && n <= math.MaxUint16
	case tag.Uint32:
		return n >= 0 && n <= math.MaxUint32
	case tag.Uint64:
		return n >= 0
	}
	return true
}

func stringOf(f ir.Format, path string, v value.Value) (string, error) {
	s, ok := v.(value.String)
	if !ok {
		return "", encodeErr(f, path, "expected string, got %s", value.Format(v))
	}
	return string(s), nil
}

func atomOf(f ir.Format, path string, v value.Value) (string, error) {
	a, ok := v.(value.Atom)
	if !ok {
		return "", encodeErr(f, path, "expected atom, got %s", value.Format(v))
	}
	return string(a), nil
}

func bytesOf(f ir.Format, path string, v value.Value) ([]byte, error) {
	b, ok := v.(value.Bytes)
	if !ok {
		return nil, encodeErr(f, path, "expected bytes, got %s", value.Format(v))
	}
	return b, nil
}

func boolOf(f ir.Format, path string, v value.Value) (bool, error) {
	b, ok := v.(value.Bool)
	if !ok {
		return false, encodeErr(f, path, "expected bool, got %s", value.Format(v))
	}
	return bool(b), nil
}

func listOf(f ir.Format, path string, v value.Value) (value.List, error) {
	l, ok := v.(value.List)
	if !ok {
		return nil, encodeErr(f, path, "expected list, got %s", value.Format(v))
	}
	return l, nil
}

func dictOf(f ir.Format, path string, v value.Value) (value.Dict, error) {
	d, ok := v.(value.Dict)
	if !ok {
		return nil, encodeErr(f, path, "expected dict, got %s", value.Format(v))
	}
	return d, nil
}

// customNames returns the hook names of a custom codec tag.
func customNames(t tag.Tag) (pack, parse string, ok bool) {
	switch x := t.(type) {
	case tag.Custom:
		return x.Pack, x.Parse, true
	case tag.CustomQuery:
		return x.Pack, x.Parse, true
	}
	return "", "", false
}

func (m *Machine) packCustom(f ir.Format, path, name string, v value.Value) (string, error) {
	fn, err := m.hooks.packFunc(name)
	if err != nil {
		return "", encodeErr(f, path, "%v", err)
	}
	s, err := fn(v)
	if err != nil {
		return "", encodeErr(f, path, "%s: %v", name, err)
	}
	return s, nil
}

func (m *Machine) parseCustom(f ir.Format, path, name, s string) (value.Value, error) {
	fn, err := m.hooks.parseFunc(name)
	if err != nil {
		return nil, decodeErr(f, path, "%v", err)
	}
	v, err := fn(s)
	if err != nil {
		return nil, decodeErr(f, path, "%s: %v", name, err)
	}
	return v, nil
}

func unhandled(op string, t tag.Tag) error {
	return diag.Internalf(op, "unhandled tag %s", tag.Expr(t))
}
