package codegen

import (
	"errors"

	"github.com/roach88/idlc/internal/attr"
	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/tag"
	"github.com/roach88/idlc/internal/value"
)

// Generator builds routine pairs. It is stateless apart from the resolver
// and may be shared by concurrent workers.
type Generator struct {
	r *tag.Resolver
}

// NewGenerator creates a generator resolving tags through r.
func NewGenerator(r *tag.Resolver) *Generator {
	return &Generator{r: r}
}

// Resolver returns the tag resolver.
func (g *Generator) Resolver() *tag.Resolver { return g.r }

// Generate returns the encode/decode routines of form in format f, or nil
// when the form's tag needs none (custom codecs, aliases, primitive
// representations, forms embedded as JSON). Errors are *diag.ConfigError
// (skip this form) or *diag.InternalError (abort the target).
func (g *Generator) Generate(form *ir.Form, f ir.Format) (*Pair, error) {
	t, err := g.r.FormTag(form, f, form)
	if err != nil {
		return nil, err
	}

	if e, ok := t.(tag.Enum); ok && form.Kind() == ir.KindEnum {
		return g.enum(form, f, &e.Int)
	}
	gen, ok := generatedOf(t)
	if !ok || gen.Form != form {
		return nil, nil
	}

	switch form.Kind() {
	case ir.KindRecord:
		return g.record(form, f)
	case ir.KindVariant:
		return g.variant(form, f)
	case ir.KindUnion:
		return g.union(form, f)
	case ir.KindEnum:
		return g.enum(form, f, nil)
	default:
		return nil, diag.Internalf("generate", "%s %s has a generated tag", form.Kind(), form.Name)
	}
}

// generatedOf unwraps XML type wrappers.
func generatedOf(t tag.Tag) (tag.Generated, bool) {
	switch x := t.(type) {
	case tag.Generated:
		return x, true
	case tag.ComplexType:
		return generatedOf(x.Inner)
	case tag.SimpleType:
		return generatedOf(x.Inner)
	}
	return tag.Generated{}, false
}

func (g *Generator) pair(form *ir.Form, f ir.Format, enc, dec []Op) *Pair {
	var packParams, parseParams []string
	for _, p := range form.Params {
		packParams = append(packParams, tag.Pack.String()+"_"+p)
		parseParams = append(parseParams, tag.Parse.String()+"_"+p)
	}
	return &Pair{
		Encode: &Routine{Name: tag.PackRef(form, f), Form: form, Format: f, Direction: tag.Pack, Params: packParams, Ops: enc},
		Decode: &Routine{Name: tag.ParseRef(form, f), Form: form, Format: f, Direction: tag.Parse, Params: parseParams, Ops: dec},
	}
}

// fields enumerates the serializable fields of a record in format f.
// Discriminants and fields ignored by f are skipped. Every field is
// resolved so that all configuration errors of the record get reported.
func (g *Generator) fields(form *ir.Form, f ir.Format) ([]Field, error) {
	rec := form.Record()
	acc := g.r.Accessor()

	var out []Field
	var firstErr error
	for _, rf := range rec.Fields {
		if rf.IsTag || attr.Get(acc, rf, attr.Ignore(f), false) {
			continue
		}
		ft, err := g.r.FieldTag(rf, f)
		if err != nil {
			if diag.IsInternal(err) {
				return nil, err
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fd := Field{
			Name:    rf.Name,
			Key:     tag.WireKey(acc, rf, rf.Name, f),
			Tag:     ft,
			Default: rf.Default,
			Bit:     -1,
		}
		switch {
		case rec.IsPatch:
			fd.Presence = Patch
		case rf.IsOptional():
			fd.Presence = Optional
		}
		out = append(out, fd)
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (g *Generator) record(form *ir.Form, f ir.Format) (*Pair, error) {
	fields, err := g.fields(form, f)
	if err != nil {
		return nil, err
	}
	if f != ir.FormatBinary {
		ops := make([]Op, len(fields))
		for i, fd := range fields {
			ops[i] = fd
		}
		return g.pair(form, f, ops, ops), nil
	}

	var bm Bitmask
	if attr.Get(g.r.Accessor(), form, attr.BinaryBitmask, true) {
		for i := range fields {
			fd := &fields[i]
			if fd.Presence == Required {
				continue
			}
			fd.Bit = len(bm.Fields)
			bm.Fields = append(bm.Fields, fd.Name)
			if opt, ok := fd.Tag.(tag.Optional); ok && fd.Presence == Optional {
				fd.Tag = opt.Item
			}
		}
		bm.Bytes = BitmaskBytes(len(bm.Fields))
	}

	build := func(mode tag.Direction) []Op {
		bs := NewBitStream(mode)
		if bm.Bytes > 0 {
			bs.Bitmask(bm)
		}
		for _, fd := range fields {
			bs.Field(fd)
		}
		return bs.Ops()
	}
	return g.pair(form, f, build(tag.Pack), build(tag.Parse)), nil
}

func (g *Generator) variant(form *ir.Form, f ir.Format) (*Pair, error) {
	leaves := form.Variant().Leaves()
	if len(leaves) == 0 {
		return nil, g.r.Sink().Errorf(diag.CodeInvalidDiscrim, form, "variant %s has no descendants", form.Name)
	}

	var d Dispatch
	var firstErr error
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}
	for _, leaf := range leaves {
		rec := leaf.Record()
		if rec == nil {
			return nil, diag.Internalf("generate", "variant %s leaf %s is not a record", form.Name, leaf.Name)
		}
		if rec.IsPatch {
			fail(g.r.Sink().Errorf(diag.CodePatchDescendant, leaf,
				"patch record %s cannot be a descendant of variant %s", leaf.Name, form.Name))
			continue
		}
		tf := rec.TagField()
		if tf == nil || tf.Default == nil {
			fail(g.r.Sink().Errorf(diag.CodeInvalidDiscrim, leaf,
				"descendant %s of variant %s has no discriminant constant", leaf.Name, form.Name))
			continue
		}
		if d.Tag == nil {
			dt, err := g.r.Resolve(tf.Type, f, tf)
			if err != nil {
				if diag.IsInternal(err) {
					return nil, err
				}
				fail(err)
				continue
			}
			d.Field = tf.Name
			d.Key = tag.WireKey(g.r.Accessor(), tf, tf.Name, f)
			d.Tag = dt
		}
		for _, c := range d.Cases {
			if value.Equal(c.Value, tf.Default) {
				fail(g.r.Sink().Errorf(diag.CodeInvalidDiscrim, leaf,
					"descendant %s of variant %s reuses discriminant %s of %s",
					leaf.Name, form.Name, value.Format(tf.Default), c.Form.Name))
			}
		}

		payload, err := g.r.FormTag(leaf, f, form)
		if err != nil {
			if diag.IsInternal(err) {
				return nil, err
			}
			fail(err)
			continue
		}
		if gen, ok := generatedOf(payload); ok {
			payload = gen
		}
		d.Cases = append(d.Cases, Case{Value: tf.Default, Form: leaf, Payload: payload})
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return g.pair(form, f, []Op{d}, []Op{d}), nil
}

func (g *Generator) union(form *ir.Form, f ir.Format) (*Pair, error) {
	var alts Alternatives
	var errs []error
	for _, c := range form.Union().Clauses {
		if c.IsSingleton() {
			alts.Clauses = append(alts.Clauses, Clause{Key: c.Tag, Singleton: true})
			continue
		}
		ct, err := g.r.Resolve(c.Type, f, form)
		if err != nil {
			if diag.IsInternal(err) {
				return nil, err
			}
			errs = append(errs, err)
			continue
		}
		alts.Clauses = append(alts.Clauses, Clause{Key: c.Tag, Tag: ct, Guard: GuardFor(ct)})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return g.pair(form, f, []Op{alts}, []Op{alts}), nil
}

func (g *Generator) enum(form *ir.Form, f ir.Format, backing *tag.Primitive) (*Pair, error) {
	em := EnumMap{Int: backing}
	seen := make(map[string]string)
	var firstErr error
	for _, v := range form.Enum().Values {
		key := tag.WireKey(g.r.Accessor(), v, v.Name, f)
		if prev, dup := seen[key]; dup && backing == nil && firstErr == nil {
			firstErr = g.r.Sink().Errorf(diag.CodeFormatMisuse, v,
				"enum %s: members %s and %s share %s key %q", form.Name, prev, v.Name, f, key)
		}
		seen[key] = v.Name
		em.Members = append(em.Members, Member{Name: v.Name, Key: key, Int: v.Int})
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return g.pair(form, f, []Op{em}, []Op{em}), nil
}
