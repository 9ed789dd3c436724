package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"unicode/utf8"

	"github.com/roach88/idlc/internal/codegen"
	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/tag"
	"github.com/roach88/idlc/internal/value"
)

// Binary layout: fixed-width numbers little-endian, variable-length data
// prefixed by a uvarint length, optionals and ungated patch fields by a
// presence byte, variants by their discriminant, unions and choices by a
// one-byte alternative index. Gated fields are written only when their
// presence bit is set.

func (m *Machine) encodeBinary(t tag.Tag, v value.Value) ([]byte, error) {
	e := &binEncoder{m: m}
	if err := e.encode(t, v, ""); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

func (m *Machine) decodeBinary(t tag.Tag, data []byte) (value.Value, error) {
	d := &binDecoder{m: m, data: data}
	v, err := d.decode(t, "")
	if err != nil {
		return nil, err
	}
	if d.off != len(d.data) {
		return nil, d.fail("", "%d trailing bytes", len(d.data)-d.off)
	}
	return v, nil
}

type binEncoder struct {
	m   *Machine
	buf bytes.Buffer
}

func (e *binEncoder) fail(path, format string, args ...any) error {
	return encodeErr(ir.FormatBinary, path, format, args...)
}

func (e *binEncoder) uvarint(n uint64) {
	e.buf.Write(binary.AppendUvarint(nil, n))
}

func (e *binEncoder) blob(b []byte) {
	e.uvarint(uint64(len(b)))
	e.buf.Write(b)
}

func (e *binEncoder) prim(p tag.PrimKind, v value.Value, path string) error {
	const f = ir.FormatBinary
	var out []byte
	switch p {
	case tag.Float32, tag.Float64:
		x, err := floatOf(f, path, p, v)
		if err != nil {
			return err
		}
		if p == tag.Float32 {
			out = binary.LittleEndian.AppendUint32(nil, math.Float32bits(float32(x)))
		} else {
			out = binary.LittleEndian.AppendUint64(nil, math.Float64bits(x))
		}
	default:
		n, err := intOf(f, path, p, v)
		if err != nil {
			return err
		}
		switch p.Size() {
		case 1:
			out = []byte{byte(n)}
		case 2:
			out = binary.LittleEndian.AppendUint16(nil, uint16(n))
		case 4:
			out = binary.LittleEndian.AppendUint32(nil, uint32(n))
		default:
			out = binary.LittleEndian.AppendUint64(nil, uint64(n))
		}
	}
	e.buf.Write(out)
	return nil
}

func (e *binEncoder) encode(t tag.Tag, v value.Value, path string) error {
	const f = ir.FormatBinary
	switch x := t.(type) {
	case tag.Primitive:
		return e.prim(x.Prim, v, path)
	case tag.Bool:
		b, err := boolOf(f, path, v)
		if err != nil {
			return err
		}
		if b {
			e.buf.WriteByte(1)
		} else {
			e.buf.WriteByte(0)
		}
	case tag.String:
		s, err := stringOf(f, path, v)
		if err != nil {
			return err
		}
		e.blob([]byte(s))
	case tag.Atom:
		s, err := atomOf(f, path, v)
		if err != nil {
			return err
		}
		e.blob([]byte(s))
	case tag.Binary:
		b, err := bytesOf(f, path, v)
		if err != nil {
			return err
		}
		e.blob(b)
	case tag.Json:
		raw, ok := v.(value.Raw)
		if !ok {
			return e.fail(path, "expected json document, got %s", value.Format(v))
		}
		var c bytes.Buffer
		if err := json.Compact(&c, []byte(raw)); err != nil {
			return e.fail(path, "invalid json document: %v", err)
		}
		e.blob(c.Bytes())
	case tag.List:
		return e.list(x.Item, v, path)
	case tag.Flags:
		return e.list(x.Item, v, path)
	case tag.Dict:
		d, err := dictOf(f, path, v)
		if err != nil {
			return err
		}
		e.uvarint(uint64(len(d)))
		for i, entry := range d {
			if err := e.encode(x.Key, entry.Key, index(path, i)); err != nil {
				return err
			}
			if err := e.encode(x.Value, entry.Value, index(path, i)); err != nil {
				return err
			}
		}
	case tag.Optional:
		if value.IsAbsent(v) {
			e.buf.WriteByte(0)
			return nil
		}
		e.buf.WriteByte(1)
		return e.encode(x.Item, v, path)
	case tag.Choice:
		i, ok := choiceFor(x, v)
		if !ok {
			return e.fail(path, "no choice alternative accepts %s", value.Format(v))
		}
		e.buf.WriteByte(byte(i))
		return e.encode(x.Items[i], v, path)
	case tag.Custom, tag.CustomQuery:
		pack, _, _ := customNames(t)
		s, err := e.m.packCustom(f, path, pack, v)
		if err != nil {
			return err
		}
		e.blob([]byte(s))
	case tag.Enum:
		return e.enum(x, v, path)
	case tag.Generated:
		return e.generated(x, v, path)
	default:
		return unhandled("binary encode", t)
	}
	return nil
}

func (e *binEncoder) list(item tag.Tag, v value.Value, path string) error {
	l, err := listOf(ir.FormatBinary, path, v)
	if err != nil {
		return err
	}
	e.uvarint(uint64(len(l)))
	for i, it := range l {
		if err := e.encode(item, it, index(path, i)); err != nil {
			return err
		}
	}
	return nil
}

func (e *binEncoder) enum(x tag.Enum, v value.Value, path string) error {
	if x.Form == nil {
		return diag.Internalf("binary encode", "enum tag %s has no form", tag.Expr(x))
	}
	r, _, err := e.m.program(x.Form, nil, ir.FormatBinary, tag.Pack)
	if err != nil {
		return err
	}
	em, ok := enumMap(r)
	if !ok {
		return diag.Internalf("binary encode", "%s is not an enum routine", r.Name)
	}
	return e.member(x.Form, em, x.Int.Prim, v, path)
}

func (e *binEncoder) member(form *ir.Form, em codegen.EnumMap, p tag.PrimKind, v value.Value, path string) error {
	name, err := atomOf(ir.FormatBinary, path, v)
	if err != nil {
		return err
	}
	mem, ok := em.ByName(name)
	if !ok {
		return e.fail(path, "%s has no member %q", form.Name, name)
	}
	return e.prim(p, value.Int(mem.Int), path)
}

func (e *binEncoder) generated(g tag.Generated, v value.Value, path string) error {
	r, env, err := e.m.program(g.Form, g.Args, ir.FormatBinary, tag.Pack)
	if err != nil {
		return err
	}
	if em, ok := enumMap(r); ok {
		if em.Int == nil {
			return diag.Internalf("binary encode", "enum routine %s has no integer backing", r.Name)
		}
		return e.member(g.Form, em, em.Int.Prim, v, path)
	}
	if len(r.Ops) == 1 {
		switch op := r.Ops[0].(type) {
		case codegen.Dispatch:
			c, ok := dispatchCase(op, v)
			if !ok {
				return e.fail(path, "%s is not a descendant of %s", value.Format(v), g.Form.Name)
			}
			dt, err := bind(op.Tag, env)
			if err != nil {
				return err
			}
			pt, err := bind(c.Payload, env)
			if err != nil {
				return err
			}
			if err := e.encode(dt, c.Value, join(path, op.Field)); err != nil {
				return err
			}
			return e.encode(pt, v, path)
		case codegen.Alternatives:
			i, ok := clauseFor(op, v)
			if !ok {
				return e.fail(path, "no union clause accepts %s", value.Format(v))
			}
			e.buf.WriteByte(byte(i))
			c := op.Clauses[i]
			if c.Singleton {
				return nil
			}
			ct, err := bind(c.Tag, env)
			if err != nil {
				return err
			}
			return e.encode(ct, v, path)
		}
	}
	return e.record(g.Form, r, env, v, path)
}

func (e *binEncoder) record(form *ir.Form, r *codegen.Routine, env map[string]tag.Tag, v value.Value, path string) error {
	rec, err := recordOf(ir.FormatBinary, path, form, v)
	if err != nil {
		return err
	}
	byName := make(map[string]codegen.Field)
	for _, fd := range recordFields(r) {
		byName[fd.Name] = fd
	}
	for _, op := range r.Ops {
		switch x := op.(type) {
		case codegen.Bitmask:
			bits := make([]byte, x.Bytes)
			for i, name := range x.Fields {
				ok, err := written(ir.FormatBinary, join(path, name), byName[name], rec.Get(name))
				if err != nil {
					return err
				}
				if ok {
					bits[i/8] |= 1 << (i % 8)
				}
			}
			e.buf.Write(bits)
		case codegen.Field:
			if err := e.field(x, rec, env, path); err != nil {
				return err
			}
		case codegen.Batch:
			for _, fd := range x.Fields {
				if err := e.field(fd, rec, env, path); err != nil {
					return err
				}
			}
		default:
			return diag.Internalf("binary encode", "unexpected operation %s in %s", op, r.Name)
		}
	}
	return nil
}

func (e *binEncoder) field(fd codegen.Field, rec *value.Record, env map[string]tag.Tag, path string) error {
	fp := join(path, fd.Name)
	fv := rec.Get(fd.Name)
	ok, err := written(ir.FormatBinary, fp, fd, fv)
	if err != nil {
		return err
	}
	ft, err := bind(fd.Tag, env)
	if err != nil {
		return err
	}
	switch {
	case fd.Gated():
		if !ok {
			return nil
		}
	case fd.Presence == codegen.Patch:
		if !ok {
			e.buf.WriteByte(0)
			return nil
		}
		e.buf.WriteByte(1)
	}
	return e.encode(ft, fv, fp)
}

type binDecoder struct {
	m    *Machine
	data []byte
	off  int
}

func (d *binDecoder) fail(path, format string, args ...any) error {
	return decodeErr(ir.FormatBinary, path, format, args...)
}

func (d *binDecoder) take(n int, path string) ([]byte, error) {
	if n < 0 || len(d.data)-d.off < n {
		return nil, d.fail(path, "truncated input at offset %d", d.off)
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *binDecoder) readByte(path string) (byte, error) {
	b, err := d.take(1, path)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *binDecoder) uvarint(path string) (uint64, error) {
	n, size := binary.Uvarint(d.data[d.off:])
	if size <= 0 {
		return 0, d.fail(path, "invalid length at offset %d", d.off)
	}
	d.off += size
	return n, nil
}

func (d *binDecoder) blob(path string) ([]byte, error) {
	n, err := d.uvarint(path)
	if err != nil {
		return nil, err
	}
	if n > uint64(len(d.data)-d.off) {
		return nil, d.fail(path, "length %d exceeds remaining input", n)
	}
	return d.take(int(n), path)
}

// count reads a collection length. Every element takes at least one byte,
// which bounds allocations on hostile input.
func (d *binDecoder) count(path string) (int, error) {
	n, err := d.uvarint(path)
	if err != nil {
		return 0, err
	}
	if n > uint64(len(d.data)-d.off) {
		return 0, d.fail(path, "count %d exceeds remaining input", n)
	}
	return int(n), nil
}

func (d *binDecoder) prim(p tag.PrimKind, path string) (value.Value, error) {
	b, err := d.take(p.Size(), path)
	if err != nil {
		return nil, err
	}
	switch p {
	case tag.Float32:
		return value.Float(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case tag.Float64:
		return value.Float(math.Float64frombits(binary.LittleEndian.Uint64(b))), nil
	case tag.Int8:
		return value.Int(int8(b[0])), nil
	case tag.Int16:
		return value.Int(int16(binary.LittleEndian.Uint16(b))), nil
	case tag.Int32:
		return value.Int(int32(binary.LittleEndian.Uint32(b))), nil
	case tag.Int64:
		return value.Int(int64(binary.LittleEndian.Uint64(b))), nil
	case tag.Uint8:
		return value.Int(b[0]), nil
	case tag.Uint16:
		return value.Int(binary.LittleEndian.Uint16(b)), nil
	case tag.Uint32:
		return value.Int(binary.LittleEndian.Uint32(b)), nil
	}
	n := binary.LittleEndian.Uint64(b)
	if n > math.MaxInt64 {
		return nil, d.fail(path, "uint64 %d is not representable", n)
	}
	return value.Int(n), nil
}

func (d *binDecoder) decode(t tag.Tag, path string) (value.Value, error) {
	switch x := t.(type) {
	case tag.Primitive:
		return d.prim(x.Prim, path)
	case tag.Bool:
		b, err := d.readByte(path)
		if err != nil {
			return nil, err
		}
		switch b {
		case 0:
			return value.Bool(false), nil
		case 1:
			return value.Bool(true), nil
		}
		return nil, d.fail(path, "invalid bool byte %d", b)
	case tag.String:
		b, err := d.blob(path)
		if err != nil {
			return nil, err
		}
		if !utf8.Valid(b) {
			return nil, d.fail(path, "string is not valid UTF-8")
		}
		return value.String(b), nil
	case tag.Atom:
		b, err := d.blob(path)
		if err != nil {
			return nil, err
		}
		return value.Atom(b), nil
	case tag.Binary:
		b, err := d.blob(path)
		if err != nil {
			return nil, err
		}
		return value.Bytes(bytes.Clone(b)), nil
	case tag.Json:
		b, err := d.blob(path)
		if err != nil {
			return nil, err
		}
		if !json.Valid(b) {
			return nil, d.fail(path, "invalid json document")
		}
		return value.Raw(b), nil
	case tag.List:
		return d.list(x.Item, path)
	case tag.Flags:
		return d.list(x.Item, path)
	case tag.Dict:
		n, err := d.count(path)
		if err != nil {
			return nil, err
		}
		out := make(value.Dict, 0, n)
		for i := range n {
			k, err := d.decode(x.Key, index(path, i))
			if err != nil {
				return nil, err
			}
			v, err := d.decode(x.Value, index(path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, value.Entry{Key: k, Value: v})
		}
		return out, nil
	case tag.Optional:
		b, err := d.readByte(path)
		if err != nil {
			return nil, err
		}
		switch b {
		case 0:
			return value.Absent{}, nil
		case 1:
			return d.decode(x.Item, path)
		}
		return nil, d.fail(path, "invalid presence byte %d", b)
	case tag.Choice:
		b, err := d.readByte(path)
		if err != nil {
			return nil, err
		}
		if int(b) >= len(x.Items) {
			return nil, d.fail(path, "choice index %d out of range", b)
		}
		return d.decode(x.Items[b], path)
	case tag.Custom, tag.CustomQuery:
		b, err := d.blob(path)
		if err != nil {
			return nil, err
		}
		_, parse, _ := customNames(t)
		return d.m.parseCustom(ir.FormatBinary, path, parse, string(b))
	case tag.Enum:
		if x.Form == nil {
			return nil, diag.Internalf("binary decode", "enum tag %s has no form", tag.Expr(x))
		}
		r, _, err := d.m.program(x.Form, nil, ir.FormatBinary, tag.Parse)
		if err != nil {
			return nil, err
		}
		em, ok := enumMap(r)
		if !ok {
			return nil, diag.Internalf("binary decode", "%s is not an enum routine", r.Name)
		}
		return d.member(x.Form, em, x.Int.Prim, path)
	case tag.Generated:
		return d.generated(x, path)
	}
	return nil, unhandled("binary decode", t)
}

func (d *binDecoder) list(item tag.Tag, path string) (value.Value, error) {
	n, err := d.count(path)
	if err != nil {
		return nil, err
	}
	out := make(value.List, 0, n)
	for i := range n {
		v, err := d.decode(item, index(path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *binDecoder) member(form *ir.Form, em codegen.EnumMap, p tag.PrimKind, path string) (value.Value, error) {
	n, err := d.prim(p, path)
	if err != nil {
		return nil, err
	}
	mem, ok := em.ByInt(int64(n.(value.Int)))
	if !ok {
		return nil, d.fail(path, "unknown %s value %d", form.Name, n)
	}
	return value.Atom(mem.Name), nil
}

func (d *binDecoder) generated(g tag.Generated, path string) (value.Value, error) {
	r, env, err := d.m.program(g.Form, g.Args, ir.FormatBinary, tag.Parse)
	if err != nil {
		return nil, err
	}
	if em, ok := enumMap(r); ok {
		if em.Int == nil {
			return nil, diag.Internalf("binary decode", "enum routine %s has no integer backing", r.Name)
		}
		return d.member(g.Form, em, em.Int.Prim, path)
	}
	if len(r.Ops) == 1 {
		switch op := r.Ops[0].(type) {
		case codegen.Dispatch:
			dt, err := bind(op.Tag, env)
			if err != nil {
				return nil, err
			}
			disc, err := d.decode(dt, join(path, op.Field))
			if err != nil {
				return nil, err
			}
			c, ok := caseFor(op, disc)
			if !ok {
				return nil, d.fail(path, "unknown discriminant %s for variant %s", value.Format(disc), g.Form.Name)
			}
			pt, err := bind(c.Payload, env)
			if err != nil {
				return nil, err
			}
			return d.decode(pt, path)
		case codegen.Alternatives:
			b, err := d.readByte(path)
			if err != nil {
				return nil, err
			}
			if int(b) >= len(op.Clauses) {
				return nil, d.fail(path, "clause index %d out of range for union %s", b, g.Form.Name)
			}
			c := op.Clauses[b]
			if c.Singleton {
				return value.Atom(c.Key), nil
			}
			ct, err := bind(c.Tag, env)
			if err != nil {
				return nil, err
			}
			return d.decode(ct, path)
		}
	}
	return d.record(g.Form, r, env, path)
}

func (d *binDecoder) record(form *ir.Form, r *codegen.Routine, env map[string]tag.Tag, path string) (value.Value, error) {
	rec := value.NewRecord(form.Name)
	present := make(map[string]bool)
	for _, op := range r.Ops {
		switch x := op.(type) {
		case codegen.Bitmask:
			bits, err := d.take(x.Bytes, path)
			if err != nil {
				return nil, err
			}
			for i, name := range x.Fields {
				present[name] = bits[i/8]&(1<<(i%8)) != 0
			}
		case codegen.Field:
			if err := d.field(x, rec, present, env, path); err != nil {
				return nil, err
			}
		case codegen.Batch:
			for _, fd := range x.Fields {
				if err := d.field(fd, rec, present, env, path); err != nil {
					return nil, err
				}
			}
		default:
			return nil, diag.Internalf("binary decode", "unexpected operation %s in %s", op, r.Name)
		}
	}
	return rec, nil
}

func (d *binDecoder) field(fd codegen.Field, rec *value.Record, present map[string]bool, env map[string]tag.Tag, path string) error {
	fp := join(path, fd.Name)
	ft, err := bind(fd.Tag, env)
	if err != nil {
		return err
	}
	switch {
	case fd.Gated():
		if !present[fd.Name] {
			v, err := missing(ir.FormatBinary, fp, fd)
			if err != nil {
				return err
			}
			rec.Fields[fd.Name] = v
			return nil
		}
	case fd.Presence == codegen.Patch:
		b, err := d.readByte(fp)
		if err != nil {
			return err
		}
		switch b {
		case 0:
			rec.Fields[fd.Name] = value.Unset{}
			return nil
		case 1:
		default:
			return d.fail(fp, "invalid presence byte %d", b)
		}
	}
	v, err := d.decode(ft, fp)
	if err != nil {
		return err
	}
	rec.Fields[fd.Name] = settle(fd, v)
	return nil
}
