package wire

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math"
	"net/url"
	"strconv"

	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/tag"
	"github.com/roach88/idlc/internal/value"
)

// text renders a scalar tag as a single string. XML attributes and text
// content, HTTP parameters and the uri/string formats all use it.
func (m *Machine) text(f ir.Format, path string, t tag.Tag, v value.Value) (string, error) {
	switch x := t.(type) {
	case tag.Primitive:
		if x.Prim.IsFloat() {
			fl, err := floatOf(f, path, x.Prim, v)
			if err != nil {
				return "", err
			}
			if math.IsNaN(fl) || math.IsInf(fl, 0) {
				return "", encodeErr(f, path, "%v is not supported", fl)
			}
			return formatFloat(x.Prim, fl), nil
		}
		n, err := intOf(f, path, x.Prim, v)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	case tag.Bool:
		b, err := boolOf(f, path, v)
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(b), nil
	case tag.String:
		return stringOf(f, path, v)
	case tag.Atom:
		return atomOf(f, path, v)
	case tag.Binary:
		b, err := bytesOf(f, path, v)
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(b), nil
	case tag.Json:
		raw, ok := v.(value.Raw)
		if !ok {
			return "", encodeErr(f, path, "expected json document, got %s", value.Format(v))
		}
		var c bytes.Buffer
		if err := json.Compact(&c, []byte(raw)); err != nil {
			return "", encodeErr(f, path, "invalid json document: %v", err)
		}
		return c.String(), nil
	case tag.Custom, tag.CustomQuery:
		pack, _, _ := customNames(t)
		return m.packCustom(f, path, pack, v)
	case tag.SimpleType:
		return m.text(f, path, x.Inner, v)
	case tag.FromJson:
		data, err := m.encodeJSON(x.Inner, v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case tag.Generated:
		if x.Form.Kind() == ir.KindEnum {
			r, _, err := m.program(x.Form, x.Args, x.Format, tag.Pack)
			if err != nil {
				return "", err
			}
			if em, ok := enumMap(r); ok {
				name, err := atomOf(f, path, v)
				if err != nil {
					return "", err
				}
				mem, ok := em.ByName(name)
				if !ok {
					return "", encodeErr(f, path, "%s has no member %q", x.Form.Name, name)
				}
				return mem.Key, nil
			}
		}
		return "", encodeErr(f, path, "%s %s has no text representation", x.Form.Kind(), x.Form.Name)
	case tag.Var:
		return "", unhandled(string(f)+" text", t)
	}
	return "", encodeErr(f, path, "%s has no text representation", tag.Expr(t))
}

// parseText is the inverse of text.
func (m *Machine) parseText(f ir.Format, path string, t tag.Tag, s string) (value.Value, error) {
	switch x := t.(type) {
	case tag.Primitive:
		return parseNumber(f, path, x.Prim, s)
	case tag.Bool:
		switch s {
		case "true":
			return value.Bool(true), nil
		case "false":
			return value.Bool(false), nil
		}
		return nil, decodeErr(f, path, "invalid bool %q", s)
	case tag.String:
		return value.String(s), nil
	case tag.Atom:
		return value.Atom(s), nil
	case tag.Binary:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, decodeErr(f, path, "invalid base64: %v", err)
		}
		return value.Bytes(b), nil
	case tag.Json:
		if !json.Valid([]byte(s)) {
			return nil, decodeErr(f, path, "invalid json document")
		}
		var c bytes.Buffer
		// Valid input cannot fail to compact.
		_ = json.Compact(&c, []byte(s))
		return value.Raw(c.String()), nil
	case tag.Custom, tag.CustomQuery:
		_, parse, _ := customNames(t)
		return m.parseCustom(f, path, parse, s)
	case tag.SimpleType:
		return m.parseText(f, path, x.Inner, s)
	case tag.FromJson:
		v, err := m.decodeJSON(x.Inner, []byte(s))
		if err != nil {
			return nil, err
		}
		return v, nil
	case tag.Generated:
		if x.Form.Kind() == ir.KindEnum {
			r, _, err := m.program(x.Form, x.Args, x.Format, tag.Parse)
			if err != nil {
				return nil, err
			}
			if em, ok := enumMap(r); ok {
				mem, ok := em.ByKey(s)
				if !ok {
					return nil, decodeErr(f, path, "unknown %s member %q", x.Form.Name, s)
				}
				return value.Atom(mem.Name), nil
			}
		}
		return nil, decodeErr(f, path, "%s %s has no text representation", x.Form.Kind(), x.Form.Name)
	case tag.Var:
		return nil, unhandled(string(f)+" text", t)
	}
	return nil, decodeErr(f, path, "%s has no text representation", tag.Expr(t))
}

// encodeText writes a whole value as one string: a URI path segment or a
// plain string.
func (m *Machine) encodeText(f ir.Format, t tag.Tag, v value.Value) ([]byte, error) {
	s, err := m.text(f, "", t, v)
	if err != nil {
		return nil, err
	}
	if f == ir.FormatURI {
		s = url.PathEscape(s)
	}
	return []byte(s), nil
}

func (m *Machine) decodeText(f ir.Format, t tag.Tag, data []byte) (value.Value, error) {
	s := string(data)
	if f == ir.FormatURI {
		var err error
		if s, err = url.PathUnescape(s); err != nil {
			return nil, decodeErr(f, "", "invalid path segment: %v", err)
		}
	}
	return m.parseText(f, "", t, s)
}
