package tag

import (
	"github.com/roach88/idlc/internal/attr"
	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
)

// DefaultBuilder produces the generated tag a form kind falls back to when
// no override applies.
type DefaultBuilder func(r *Resolver, form *ir.Form, f ir.Format) (Tag, error)

// ContainerHook shapes a container type in one format. A nil hook means the
// plain algebra (List, Dict, Flags, Choice of resolved children).
type ContainerHook[T ir.Type] func(r *Resolver, t T, f ir.Format, ref ir.Decl) (Tag, error)

// Policy is the format-specific part of the algebra: container shapes and
// the FormKind -> default-tag-builder strategy table.
type Policy struct {
	Format   ir.Format
	List     ContainerHook[ir.List]
	Dict     ContainerHook[ir.Dict]
	Flags    ContainerHook[ir.Flags]
	OneOf    ContainerHook[ir.OneOf]
	Defaults map[ir.FormKind]DefaultBuilder
}

func (p *Policy) list(r *Resolver, t ir.List, f ir.Format, ref ir.Decl) (Tag, error) {
	if p.List != nil {
		return p.List(r, t, f, ref)
	}
	item, err := r.Resolve(t.Item, f, ref)
	if err != nil {
		return nil, err
	}
	return List{Item: item}, nil
}

func (p *Policy) dict(r *Resolver, t ir.Dict, f ir.Format, ref ir.Decl) (Tag, error) {
	if p.Dict != nil {
		return p.Dict(r, t, f, ref)
	}
	k, v, err := resolvePair(r, t, f, ref)
	if err != nil {
		return nil, err
	}
	return Dict{Key: k, Value: v}, nil
}

func (p *Policy) flags(r *Resolver, t ir.Flags, f ir.Format, ref ir.Decl) (Tag, error) {
	if p.Flags != nil {
		return p.Flags(r, t, f, ref)
	}
	item, err := r.Resolve(t.Item, f, ref)
	if err != nil {
		return nil, err
	}
	return Flags{Item: item}, nil
}

func (p *Policy) oneOf(r *Resolver, t ir.OneOf, f ir.Format, ref ir.Decl) (Tag, error) {
	if p.OneOf != nil {
		return p.OneOf(r, t, f, ref)
	}
	items := make([]Tag, len(t.Items))
	for i, it := range t.Items {
		tt, err := r.Resolve(it, f, ref)
		if err != nil {
			return nil, err
		}
		items[i] = tt
	}
	return Choice{Items: items}, nil
}

func resolvePair(r *Resolver, t ir.Dict, f ir.Format, ref ir.Decl) (Tag, Tag, error) {
	k, err := r.Resolve(t.Key, f, ref)
	if err != nil {
		return nil, nil, err
	}
	v, err := r.Resolve(t.Value, f, ref)
	if err != nil {
		return nil, nil, err
	}
	return k, v, nil
}

// DefaultPolicies returns the built-in policy of every format.
func DefaultPolicies() map[ir.Format]*Policy {
	policies := map[ir.Format]*Policy{
		ir.FormatJSON:   jsonPolicy(),
		ir.FormatBinary: binaryPolicy(),
		ir.FormatXML:    xmlPolicy(),
	}
	for _, f := range []ir.Format{ir.FormatQuery, ir.FormatForm, ir.FormatURI, ir.FormatString} {
		policies[f] = queryPolicy(f)
	}
	return policies
}

func generated(_ *Resolver, form *ir.Form, f ir.Format) (Tag, error) {
	return Generated{Form: form, Format: f, Args: ParamVars(form)}, nil
}

// aliasTarget resolves a Define to its target's tag; the form's own
// parameters surface as Var inside the target.
func aliasTarget(r *Resolver, form *ir.Form, f ir.Format) (Tag, error) {
	d := form.Define()
	if d == nil {
		return nil, diag.Internalf("resolve", "%s is not a define", form.Name)
	}
	return r.Resolve(d.Target, f, form)
}

func jsonPolicy() *Policy {
	return &Policy{
		Format: ir.FormatJSON,
		Defaults: map[ir.FormKind]DefaultBuilder{
			ir.KindEnum:    generated,
			ir.KindRecord:  generated,
			ir.KindVariant: generated,
			ir.KindUnion:   generated,
			ir.KindDefine:  aliasTarget,
		},
	}
}

func binaryPolicy() *Policy {
	return &Policy{
		Format: ir.FormatBinary,
		Defaults: map[ir.FormKind]DefaultBuilder{
			ir.KindEnum:    binaryEnum,
			ir.KindRecord:  generated,
			ir.KindVariant: generated,
			ir.KindUnion:   generated,
			ir.KindDefine:  aliasTarget,
		},
	}
}

// binaryEnum encodes an enum as its backing integer through the generated
// member <-> integer routines.
func binaryEnum(_ *Resolver, form *ir.Form, f ir.Format) (Tag, error) {
	e := form.Enum()
	if e == nil {
		return nil, diag.Internalf("resolve", "%s is not an enum", form.Name)
	}
	p, err := PrimForInteger(e.Backing)
	if err != nil {
		return nil, diag.Internalf("resolve", "enum %s: %v", form.Name, err)
	}
	return Enum{Int: Primitive{Prim: p}, Pack: PackRef(form, f), Parse: ParseRef(form, f), Form: form}, nil
}

// DefaultXMLItem is the element name wrapping list items.
const DefaultXMLItem = "item"

func xmlPolicy() *Policy {
	complexType := func(r *Resolver, form *ir.Form, f ir.Format) (Tag, error) {
		if attr.Get(r.acc, form, attr.XMLSimple, false) {
			return nil, r.sink.Errorf(diag.CodeFormatMisuse, form,
				"xml.simple requested on generated composite %s %s", form.Kind(), form.Name)
		}
		return ComplexType{Inner: Generated{Form: form, Format: f, Args: ParamVars(form)}}, nil
	}
	simpleType := func(_ *Resolver, form *ir.Form, f ir.Format) (Tag, error) {
		return SimpleType{Inner: Generated{Form: form, Format: f, Args: ParamVars(form)}}, nil
	}
	return &Policy{
		Format: ir.FormatXML,
		List: func(r *Resolver, t ir.List, f ir.Format, ref ir.Decl) (Tag, error) {
			item, err := r.Resolve(t.Item, f, ref)
			if err != nil {
				return nil, err
			}
			return Repeated{Item: Element{Name: DefaultXMLItem, Inner: item}}, nil
		},
		Dict: func(r *Resolver, t ir.Dict, f ir.Format, ref ir.Decl) (Tag, error) {
			k, v, err := resolvePair(r, t, f, ref)
			if err != nil {
				return nil, err
			}
			return KVList{Entry: Pair{Key: k, Value: v}}, nil
		},
		Defaults: map[ir.FormKind]DefaultBuilder{
			ir.KindEnum:    simpleType,
			ir.KindRecord:  complexType,
			ir.KindVariant: complexType,
			ir.KindUnion:   complexType,
			ir.KindDefine:  aliasTarget,
		},
	}
}

// queryPolicy covers the HTTP query family. Parameters are flat strings:
// anything that is not a scalar travels as embedded JSON.
func queryPolicy(format ir.Format) *Policy {
	viaJSON := func(r *Resolver, form *ir.Form, _ ir.Format) (Tag, error) {
		inner, err := r.FormTag(form, ir.FormatJSON, form)
		if err != nil {
			return nil, err
		}
		return FromJson{Inner: inner}, nil
	}
	record := generated
	if format.IsText() {
		record = viaJSON
	}
	typeViaJSON := func(r *Resolver, t ir.Type, ref ir.Decl) (Tag, error) {
		inner, err := r.Resolve(t, ir.FormatJSON, ref)
		if err != nil {
			return nil, err
		}
		return FromJson{Inner: inner}, nil
	}
	return &Policy{
		Format: format,
		List: func(r *Resolver, t ir.List, f ir.Format, ref ir.Decl) (Tag, error) {
			item, err := r.Resolve(t.Item, f, ref)
			if err != nil {
				return nil, err
			}
			if !IsQueryScalar(item) {
				return typeViaJSON(r, t, ref)
			}
			return QueryList{Item: item, Separator: DefaultSeparator}, nil
		},
		Dict: func(r *Resolver, t ir.Dict, _ ir.Format, ref ir.Decl) (Tag, error) {
			return typeViaJSON(r, t, ref)
		},
		Flags: func(r *Resolver, t ir.Flags, f ir.Format, ref ir.Decl) (Tag, error) {
			item, err := r.Resolve(t.Item, f, ref)
			if err != nil {
				return nil, err
			}
			if !IsQueryScalar(item) {
				return typeViaJSON(r, t, ref)
			}
			return QueryList{Item: item, Separator: DefaultSeparator}, nil
		},
		OneOf: func(r *Resolver, t ir.OneOf, _ ir.Format, ref ir.Decl) (Tag, error) {
			return typeViaJSON(r, t, ref)
		},
		Defaults: map[ir.FormKind]DefaultBuilder{
			ir.KindEnum:    generated,
			ir.KindRecord:  record,
			ir.KindVariant: viaJSON,
			ir.KindUnion:   viaJSON,
			ir.KindDefine:  aliasTarget,
		},
	}
}

// DefaultSeparator joins folded query list items.
const DefaultSeparator = ","

// IsQueryScalar reports whether t renders as a single parameter string.
func IsQueryScalar(t Tag) bool {
	switch x := t.(type) {
	case Primitive, Bool, String, Binary, Atom, Json, Var, Custom, CustomQuery, FromJson:
		return true
	case Generated:
		return x.Form.Kind() == ir.KindEnum
	}
	return false
}
