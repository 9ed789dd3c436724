package tag

import (
	"github.com/roach88/idlc/internal/attr"
	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
)

// WireKey returns the key a field or enum value uses in format f: the
// <format>.key attribute, then the deprecated <format>.name, then name.
func WireKey(acc attr.Accessor, decl ir.Decl, name string, f ir.Format) string {
	if k := attr.Get(acc, decl, attr.Key(f), ""); k != "" {
		return k
	}
	if k := attr.Get(acc, decl, attr.Name(f), ""); k != "" {
		return k
	}
	return name
}

// FieldTag resolves the tag of a record field in format f and applies the
// field-level structural options of that format. The field is the referrer.
func (r *Resolver) FieldTag(field *ir.RecordField, f ir.Format) (Tag, error) {
	t, err := r.Resolve(field.Type, f, field)
	if err != nil {
		return nil, err
	}
	switch {
	case f == ir.FormatXML:
		return r.xmlField(field, t)
	case f.IsKeyValue():
		return r.queryField(field, t, f)
	}
	return t, nil
}

func rewrapOptional(orig, inner Tag) Tag {
	if _, ok := orig.(Optional); ok {
		return Optional{Item: inner}
	}
	return inner
}

func (r *Resolver) xmlField(field *ir.RecordField, t Tag) (Tag, error) {
	key := WireKey(r.acc, field, field.Name, ir.FormatXML)
	inner := StripOptional(t)

	if item := attr.Get(r.acc, field, attr.XMLItem, ""); item != "" {
		rep, ok := inner.(Repeated)
		if !ok {
			r.sink.Warnf(diag.CodeUnusedFormatFlags, field, "xml.item has no effect on non-list field %s", field.Path())
		} else if el, ok := rep.Item.(Element); ok {
			inner = Repeated{Item: Element{Name: item, Inner: el.Inner}}
		}
	}

	asAttr := attr.Get(r.acc, field, attr.XMLAttribute, false)
	asContent := attr.Get(r.acc, field, attr.XMLContent, false)
	switch {
	case asAttr && asContent:
		return nil, r.sink.Errorf(diag.CodeFormatMisuse, field,
			"field %s cannot be both xml.attribute and xml.content", field.Path())
	case asAttr, asContent:
		if !isXMLSimple(inner) {
			return nil, r.sink.Errorf(diag.CodeFormatMisuse, field,
				"field %s of composite type %s cannot be an XML attribute or content", field.Path(), field.Type)
		}
		if asAttr {
			return rewrapOptional(t, Attribute{Name: key, Inner: inner}), nil
		}
		return rewrapOptional(t, Content{Inner: inner}), nil
	}
	return rewrapOptional(t, Subelement{Name: key, Inner: inner}), nil
}

// isXMLSimple reports whether t renders as text without child elements.
func isXMLSimple(t Tag) bool {
	switch t.(type) {
	case Primitive, Bool, String, Binary, Atom, Json, SimpleType, Custom, Var:
		return true
	}
	return false
}

func (r *Resolver) queryField(field *ir.RecordField, t Tag, f ir.Format) (Tag, error) {
	inner := StripOptional(t)

	// A nested record cannot be flattened into the parameters of another.
	if g, ok := inner.(Generated); ok && g.Form.Kind() == ir.KindRecord {
		js, err := r.Resolve(ir.Unwrap(field.Type), ir.FormatJSON, field)
		if err != nil {
			return nil, err
		}
		return rewrapOptional(t, FromJson{Inner: js}), nil
	}

	unfold := attr.Get(r.acc, field, attr.Unfold(f), false)
	index := attr.Get(r.acc, field, attr.UnfoldIndex(f), false)
	hasSep := attr.Has(r.acc, field, attr.Separator(f))

	ql, ok := inner.(QueryList)
	if !ok {
		if unfold || index || hasSep {
			r.sink.Warnf(diag.CodeUnusedFormatFlags, field,
				"list folding options have no effect on field %s of type %s", field.Path(), field.Type)
		}
		return t, nil
	}
	if unfold && index {
		r.sink.Warnf(diag.CodeUnusedFormatFlags, field,
			"field %s sets both %s.unfold and %s.unfold_index; the indexed form is used", field.Path(), f, f)
		unfold = false
	}
	ql.Unfold = unfold
	ql.UnfoldIndex = index
	ql.Separator = attr.Get(r.acc, field, attr.Separator(f), DefaultSeparator)
	return rewrapOptional(t, ql), nil
}
