package wire

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/idlc/internal/codegen"
	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/tag"
	"github.com/roach88/idlc/internal/value"
)

// JSON layout:
//   - records are objects keyed by wire key in declaration order
//   - variants are [discriminant, payload] pairs
//   - union singletons are strings, keyed clauses single-member objects,
//     untagged clauses the bare payload
//   - dicts with string or atom keys are objects, other dicts arrays of
//     [key, value] pairs
//   - binary is standard base64

func (m *Machine) encodeJSON(t tag.Tag, v value.Value) ([]byte, error) {
	e := &jsonEncoder{m: m}
	if err := e.encode(t, v, ""); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

func (m *Machine) decodeJSON(t tag.Tag, data []byte) (value.Value, error) {
	n, err := parseJSON(data)
	if err != nil {
		return nil, decodeErr(ir.FormatJSON, "", "%v", err)
	}
	d := &jsonDecoder{m: m}
	return d.decode(t, n, "")
}

type jsonEncoder struct {
	m   *Machine
	buf bytes.Buffer
}

func (e *jsonEncoder) fail(path, format string, args ...any) error {
	return encodeErr(ir.FormatJSON, path, format, args...)
}

func (e *jsonEncoder) encode(t tag.Tag, v value.Value, path string) error {
	const f = ir.FormatJSON
	switch x := t.(type) {
	case tag.Primitive:
		if x.Prim.IsFloat() {
			fl, err := floatOf(f, path, x.Prim, v)
			if err != nil {
				return err
			}
			if math.IsNaN(fl) || math.IsInf(fl, 0) {
				return e.fail(path, "%v has no JSON representation", fl)
			}
			e.buf.WriteString(formatFloat(x.Prim, fl))
			return nil
		}
		n, err := intOf(f, path, x.Prim, v)
		if err != nil {
			return err
		}
		e.buf.WriteString(strconv.FormatInt(n, 10))
	case tag.Bool:
		b, err := boolOf(f, path, v)
		if err != nil {
			return err
		}
		e.buf.WriteString(strconv.FormatBool(b))
	case tag.String:
		s, err := stringOf(f, path, v)
		if err != nil {
			return err
		}
		writeJSONString(&e.buf, s)
	case tag.Atom:
		s, err := atomOf(f, path, v)
		if err != nil {
			return err
		}
		writeJSONString(&e.buf, s)
	case tag.Binary:
		b, err := bytesOf(f, path, v)
		if err != nil {
			return err
		}
		writeJSONString(&e.buf, base64.StdEncoding.EncodeToString(b))
	case tag.Json:
		raw, ok := v.(value.Raw)
		if !ok {
			return e.fail(path, "expected json document, got %s", value.Format(v))
		}
		if err := json.Compact(&e.buf, []byte(raw)); err != nil {
			return e.fail(path, "invalid json document: %v", err)
		}
	case tag.List:
		return e.list(x.Item, v, path)
	case tag.Flags:
		return e.list(x.Item, v, path)
	case tag.Dict:
		return e.dict(x, v, path)
	case tag.Optional:
		if value.IsAbsent(v) {
			e.buf.WriteString("null")
			return nil
		}
		return e.encode(x.Item, v, path)
	case tag.Choice:
		i, ok := choiceFor(x, v)
		if !ok {
			return e.fail(path, "no choice alternative accepts %s", value.Format(v))
		}
		return e.encode(x.Items[i], v, path)
	case tag.Custom, tag.CustomQuery:
		pack, _, _ := customNames(t)
		s, err := e.m.packCustom(f, path, pack, v)
		if err != nil {
			return err
		}
		writeJSONString(&e.buf, s)
	case tag.Generated:
		return e.generated(x, v, path)
	default:
		return unhandled("json encode", t)
	}
	return nil
}

func (e *jsonEncoder) list(item tag.Tag, v value.Value, path string) error {
	l, err := listOf(ir.FormatJSON, path, v)
	if err != nil {
		return err
	}
	e.buf.WriteByte('[')
	for i, it := range l {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := e.encode(item, it, index(path, i)); err != nil {
			return err
		}
	}
	e.buf.WriteByte(']')
	return nil
}

// objectKeyed reports whether dict keys of tag t are JSON object keys.
func objectKeyed(t tag.Tag) bool {
	switch t.(type) {
	case tag.String, tag.Atom:
		return true
	}
	return false
}

func (e *jsonEncoder) dict(x tag.Dict, v value.Value, path string) error {
	d, err := dictOf(ir.FormatJSON, path, v)
	if err != nil {
		return err
	}
	if objectKeyed(x.Key) {
		e.buf.WriteByte('{')
		for i, entry := range d {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			if err := e.encode(x.Key, entry.Key, index(path, i)); err != nil {
				return err
			}
			e.buf.WriteByte(':')
			if err := e.encode(x.Value, entry.Value, index(path, i)); err != nil {
				return err
			}
		}
		e.buf.WriteByte('}')
		return nil
	}
	e.buf.WriteByte('[')
	for i, entry := range d {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.buf.WriteByte('[')
		if err := e.encode(x.Key, entry.Key, index(path, i)); err != nil {
			return err
		}
		e.buf.WriteByte(',')
		if err := e.encode(x.Value, entry.Value, index(path, i)); err != nil {
			return err
		}
		e.buf.WriteByte(']')
	}
	e.buf.WriteByte(']')
	return nil
}

func (e *jsonEncoder) generated(g tag.Generated, v value.Value, path string) error {
	r, env, err := e.m.program(g.Form, g.Args, g.Format, tag.Pack)
	if err != nil {
		return err
	}
	if em, ok := enumMap(r); ok {
		name, err := atomOf(ir.FormatJSON, path, v)
		if err != nil {
			return err
		}
		mem, ok := em.ByName(name)
		if !ok {
			return e.fail(path, "%s has no member %q", g.Form.Name, name)
		}
		writeJSONString(&e.buf, mem.Key)
		return nil
	}
	if len(r.Ops) == 1 {
		switch op := r.Ops[0].(type) {
		case codegen.Dispatch:
			return e.dispatch(g.Form, op, env, v, path)
		case codegen.Alternatives:
			return e.alternatives(op, env, v, path)
		}
	}
	return e.record(g.Form, r, env, v, path)
}

func (e *jsonEncoder) record(form *ir.Form, r *codegen.Routine, env map[string]tag.Tag, v value.Value, path string) error {
	rec, err := recordOf(ir.FormatJSON, path, form, v)
	if err != nil {
		return err
	}
	e.buf.WriteByte('{')
	first := true
	for _, fd := range recordFields(r) {
		fp := join(path, fd.Name)
		fv := rec.Get(fd.Name)
		ok, err := written(ir.FormatJSON, fp, fd, fv)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		ft, err := bind(fd.Tag, env)
		if err != nil {
			return err
		}
		if !first {
			e.buf.WriteByte(',')
		}
		first = false
		writeJSONString(&e.buf, fd.Key)
		e.buf.WriteByte(':')
		if err := e.encode(ft, fv, fp); err != nil {
			return err
		}
	}
	e.buf.WriteByte('}')
	return nil
}

func (e *jsonEncoder) dispatch(form *ir.Form, d codegen.Dispatch, env map[string]tag.Tag, v value.Value, path string) error {
	c, ok := dispatchCase(d, v)
	if !ok {
		return e.fail(path, "%s is not a descendant of %s", value.Format(v), form.Name)
	}
	dt, err := bind(d.Tag, env)
	if err != nil {
		return err
	}
	pt, err := bind(c.Payload, env)
	if err != nil {
		return err
	}
	e.buf.WriteByte('[')
	if err := e.encode(dt, c.Value, join(path, d.Field)); err != nil {
		return err
	}
	e.buf.WriteByte(',')
	if err := e.encode(pt, v, path); err != nil {
		return err
	}
	e.buf.WriteByte(']')
	return nil
}

func (e *jsonEncoder) alternatives(a codegen.Alternatives, env map[string]tag.Tag, v value.Value, path string) error {
	i, ok := clauseFor(a, v)
	if !ok {
		return e.fail(path, "no union clause accepts %s", value.Format(v))
	}
	c := a.Clauses[i]
	if c.Singleton {
		writeJSONString(&e.buf, c.Key)
		return nil
	}
	ct, err := bind(c.Tag, env)
	if err != nil {
		return err
	}
	if c.Key == "" {
		return e.encode(ct, v, path)
	}
	e.buf.WriteByte('{')
	writeJSONString(&e.buf, c.Key)
	e.buf.WriteByte(':')
	if err := e.encode(ct, v, join(path, c.Key)); err != nil {
		return err
	}
	e.buf.WriteByte('}')
	return nil
}

// formatFloat always marks the literal as a float, so an integral value
// such as 2.0 never parses back through an integer clause.
func formatFloat(p tag.PrimKind, x float64) string {
	bits := 64
	if p == tag.Float32 {
		bits = 32
	}
	s := strconv.FormatFloat(x, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// writeJSONString writes s as a JSON string without HTML escaping.
func writeJSONString(buf *bytes.Buffer, s string) {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(s)
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
}

// jnode is a parsed JSON value that keeps object member order.
type jnode struct {
	kind jkind
	b    bool
	s    string // string value or number literal
	arr  []*jnode
	obj  []jmember
}

type jkind int

const (
	jNull jkind = iota
	jBool
	jNumber
	jString
	jArray
	jObject
)

var jkindNames = [...]string{"null", "bool", "number", "string", "array", "object"}

func (k jkind) String() string { return jkindNames[k] }

type jmember struct {
	key string
	val *jnode
}

func (n *jnode) member(key string) (*jnode, bool) {
	for _, m := range n.obj {
		if m.key == key {
			return m.val, true
		}
	}
	return nil, false
}

func parseJSON(data []byte) (*jnode, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	n, err := readJSON(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON document")
	}
	return n, nil
}

func readJSON(dec *json.Decoder) (*jnode, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch x := tok.(type) {
	case nil:
		return &jnode{kind: jNull}, nil
	case bool:
		return &jnode{kind: jBool, b: x}, nil
	case json.Number:
		return &jnode{kind: jNumber, s: string(x)}, nil
	case string:
		return &jnode{kind: jString, s: x}, nil
	case json.Delim:
		switch x {
		case '[':
			n := &jnode{kind: jArray}
			for dec.More() {
				child, err := readJSON(dec)
				if err != nil {
					return nil, err
				}
				n.arr = append(n.arr, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		case '{':
			n := &jnode{kind: jObject}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, errors.New("object key is not a string")
				}
				child, err := readJSON(dec)
				if err != nil {
					return nil, err
				}
				n.obj = append(n.obj, jmember{key: key, val: child})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		}
	}
	return nil, errors.New("unexpected JSON token")
}

// compact re-renders a parsed document.
func (n *jnode) compact(buf *bytes.Buffer) {
	switch n.kind {
	case jNull:
		buf.WriteString("null")
	case jBool:
		buf.WriteString(strconv.FormatBool(n.b))
	case jNumber:
		buf.WriteString(n.s)
	case jString:
		writeJSONString(buf, n.s)
	case jArray:
		buf.WriteByte('[')
		for i, c := range n.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			c.compact(buf)
		}
		buf.WriteByte(']')
	case jObject:
		buf.WriteByte('{')
		for i, m := range n.obj {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONString(buf, m.key)
			buf.WriteByte(':')
			m.val.compact(buf)
		}
		buf.WriteByte('}')
	}
}

type jsonDecoder struct {
	m *Machine
}

func (d *jsonDecoder) fail(path, format string, args ...any) error {
	return decodeErr(ir.FormatJSON, path, format, args...)
}

func (d *jsonDecoder) expect(n *jnode, k jkind, path string) error {
	if n.kind != k {
		return d.fail(path, "expected %s, got %s", k, n.kind)
	}
	return nil
}

func (d *jsonDecoder) decode(t tag.Tag, n *jnode, path string) (value.Value, error) {
	const f = ir.FormatJSON
	switch x := t.(type) {
	case tag.Primitive:
		if err := d.expect(n, jNumber, path); err != nil {
			return nil, err
		}
		return parseNumber(f, path, x.Prim, n.s)
	case tag.Bool:
		if err := d.expect(n, jBool, path); err != nil {
			return nil, err
		}
		return value.Bool(n.b), nil
	case tag.String:
		if err := d.expect(n, jString, path); err != nil {
			return nil, err
		}
		return value.String(n.s), nil
	case tag.Atom:
		if err := d.expect(n, jString, path); err != nil {
			return nil, err
		}
		return value.Atom(n.s), nil
	case tag.Binary:
		if err := d.expect(n, jString, path); err != nil {
			return nil, err
		}
		b, err := base64.StdEncoding.DecodeString(n.s)
		if err != nil {
			return nil, d.fail(path, "invalid base64: %v", err)
		}
		return value.Bytes(b), nil
	case tag.Json:
		var buf bytes.Buffer
		n.compact(&buf)
		return value.Raw(buf.String()), nil
	case tag.List:
		return d.list(x.Item, n, path)
	case tag.Flags:
		return d.list(x.Item, n, path)
	case tag.Dict:
		return d.dict(x, n, path)
	case tag.Optional:
		if n.kind == jNull {
			return value.Absent{}, nil
		}
		return d.decode(x.Item, n, path)
	case tag.Choice:
		for _, it := range x.Items {
			v, err := d.decode(it, n, path)
			if err == nil {
				return v, nil
			}
			if diag.IsInternal(err) {
				return nil, err
			}
		}
		return nil, d.fail(path, "no choice alternative accepts the %s", n.kind)
	case tag.Custom, tag.CustomQuery:
		if err := d.expect(n, jString, path); err != nil {
			return nil, err
		}
		_, parse, _ := customNames(t)
		return d.m.parseCustom(f, path, parse, n.s)
	case tag.Generated:
		return d.generated(x, n, path)
	}
	return nil, unhandled("json decode", t)
}

func (d *jsonDecoder) list(item tag.Tag, n *jnode, path string) (value.Value, error) {
	if err := d.expect(n, jArray, path); err != nil {
		return nil, err
	}
	out := make(value.List, 0, len(n.arr))
	for i, c := range n.arr {
		v, err := d.decode(item, c, index(path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *jsonDecoder) dict(x tag.Dict, n *jnode, path string) (value.Value, error) {
	out := value.Dict{}
	if objectKeyed(x.Key) {
		if err := d.expect(n, jObject, path); err != nil {
			return nil, err
		}
		for i, m := range n.obj {
			k, err := d.decode(x.Key, &jnode{kind: jString, s: m.key}, index(path, i))
			if err != nil {
				return nil, err
			}
			v, err := d.decode(x.Value, m.val, index(path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, value.Entry{Key: k, Value: v})
		}
		return out, nil
	}
	if err := d.expect(n, jArray, path); err != nil {
		return nil, err
	}
	for i, pair := range n.arr {
		p := index(path, i)
		if pair.kind != jArray || len(pair.arr) != 2 {
			return nil, d.fail(p, "expected [key, value] pair")
		}
		k, err := d.decode(x.Key, pair.arr[0], p)
		if err != nil {
			return nil, err
		}
		v, err := d.decode(x.Value, pair.arr[1], p)
		if err != nil {
			return nil, err
		}
		out = append(out, value.Entry{Key: k, Value: v})
	}
	return out, nil
}

func (d *jsonDecoder) generated(g tag.Generated, n *jnode, path string) (value.Value, error) {
	r, env, err := d.m.program(g.Form, g.Args, g.Format, tag.Parse)
	if err != nil {
		return nil, err
	}
	if em, ok := enumMap(r); ok {
		if err := d.expect(n, jString, path); err != nil {
			return nil, err
		}
		mem, ok := em.ByKey(n.s)
		if !ok {
			return nil, d.fail(path, "unknown %s member %q", g.Form.Name, n.s)
		}
		return value.Atom(mem.Name), nil
	}
	if len(r.Ops) == 1 {
		switch op := r.Ops[0].(type) {
		case codegen.Dispatch:
			return d.dispatch(g.Form, op, env, n, path)
		case codegen.Alternatives:
			return d.alternatives(g.Form, op, env, n, path)
		}
	}
	return d.record(g.Form, r, env, n, path)
}

func (d *jsonDecoder) record(form *ir.Form, r *codegen.Routine, env map[string]tag.Tag, n *jnode, path string) (value.Value, error) {
	if err := d.expect(n, jObject, path); err != nil {
		return nil, err
	}
	rec := value.NewRecord(form.Name)
	for _, fd := range recordFields(r) {
		fp := join(path, fd.Name)
		child, ok := n.member(fd.Key)
		if !ok {
			v, err := missing(ir.FormatJSON, fp, fd)
			if err != nil {
				return nil, err
			}
			rec.Fields[fd.Name] = v
			continue
		}
		ft, err := bind(fd.Tag, env)
		if err != nil {
			return nil, err
		}
		v, err := d.decode(ft, child, fp)
		if err != nil {
			return nil, err
		}
		rec.Fields[fd.Name] = settle(fd, v)
	}
	return rec, nil
}

func (d *jsonDecoder) dispatch(form *ir.Form, op codegen.Dispatch, env map[string]tag.Tag, n *jnode, path string) (value.Value, error) {
	if n.kind != jArray || len(n.arr) != 2 {
		return nil, d.fail(path, "expected [discriminant, payload] for variant %s", form.Name)
	}
	dt, err := bind(op.Tag, env)
	if err != nil {
		return nil, err
	}
	disc, err := d.decode(dt, n.arr[0], join(path, op.Field))
	if err != nil {
		return nil, err
	}
	c, ok := caseFor(op, disc)
	if !ok {
		return nil, d.fail(path, "unknown discriminant %s for variant %s", value.Format(disc), form.Name)
	}
	pt, err := bind(c.Payload, env)
	if err != nil {
		return nil, err
	}
	return d.decode(pt, n.arr[1], path)
}

func (d *jsonDecoder) alternatives(form *ir.Form, a codegen.Alternatives, env map[string]tag.Tag, n *jnode, path string) (value.Value, error) {
	if n.kind == jString {
		for _, c := range a.Clauses {
			if c.Singleton && c.Key == n.s {
				return value.Atom(c.Key), nil
			}
		}
	}
	if n.kind == jObject && len(n.obj) == 1 {
		m := n.obj[0]
		for _, c := range a.Clauses {
			if c.Singleton || c.Key == "" || c.Key != m.key {
				continue
			}
			ct, err := bind(c.Tag, env)
			if err != nil {
				return nil, err
			}
			return d.decode(ct, m.val, join(path, c.Key))
		}
	}
	for _, c := range a.Clauses {
		if c.Singleton || c.Key != "" {
			continue
		}
		ct, err := bind(c.Tag, env)
		if err != nil {
			return nil, err
		}
		v, err := d.decode(ct, n, path)
		if err == nil {
			return v, nil
		}
		if diag.IsInternal(err) {
			return nil, err
		}
	}
	return nil, d.fail(path, "no clause of union %s accepts the %s", form.Name, n.kind)
}

// parseNumber converts a numeric literal for primitive p.
func parseNumber(f ir.Format, path string, p tag.PrimKind, s string) (value.Value, error) {
	if p.IsFloat() {
		bits := 64
		if p == tag.Float32 {
			bits = 32
		}
		x, err := strconv.ParseFloat(s, bits)
		if err != nil {
			return nil, decodeErr(f, path, "invalid %s %q", p, s)
		}
		return value.Float(x), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, decodeErr(f, path, "invalid %s %q", p, s)
	}
	if !inRange(p, n) {
		return nil, decodeErr(f, path, "%d out of range for %s", n, p)
	}
	return value.Int(n), nil
}
