package wire

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"

	"github.com/roach88/idlc/internal/codegen"
	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/tag"
	"github.com/roach88/idlc/internal/value"
)

// XML layout: a value fills an element. Records place fields as
// subelements, attributes or text content; variants put the discriminant
// in an attribute named by the tag field's key; unions write singletons
// as text, keyed clauses as a child element named by the key and untagged
// clauses in place. Absent optionals inside an element are marked with
// nil="true".

const (
	xmlNilAttr  = "nil"
	xmlEntry    = "entry"
	xmlKey      = "key"
	xmlValue    = "value"
	xmlListItem = tag.DefaultXMLItem
)

// xnode is an element of the document tree.
type xnode struct {
	name     string
	attrs    []xml.Attr
	children []*xnode
	text     string
}

func (n *xnode) add(name string) *xnode {
	c := &xnode{name: name}
	n.children = append(n.children, c)
	return c
}

func (n *xnode) setAttr(name, val string) {
	n.attrs = append(n.attrs, xml.Attr{Name: xml.Name{Local: name}, Value: val})
}

func (n *xnode) attr(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n *xnode) isNil() bool {
	v, ok := n.attr(xmlNilAttr)
	return ok && v == "true"
}

func (n *xnode) child(name string) *xnode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (n *xnode) named(name string) []*xnode {
	var out []*xnode
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func (n *xnode) write(enc *xml.Encoder) error {
	start := xml.StartElement{Name: xml.Name{Local: n.name}, Attr: n.attrs}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if n.text != "" {
		if err := enc.EncodeToken(xml.CharData(n.text)); err != nil {
			return err
		}
	}
	for _, c := range n.children {
		if err := c.write(enc); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func parseXML(data []byte) (*xnode, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var stack []*xnode
	var root *xnode
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch x := tok.(type) {
		case xml.StartElement:
			n := &xnode{name: x.Name.Local}
			for _, a := range x.Attr {
				n.setAttr(a.Name.Local, a.Value)
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			} else if root != nil {
				return nil, errors.New("multiple root elements")
			} else {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(x)
			}
		}
	}
	if root == nil {
		return nil, errors.New("empty document")
	}
	return root, nil
}

func (m *Machine) encodeXML(root string, t tag.Tag, v value.Value) ([]byte, error) {
	x := &xmlCodec{m: m}
	el := &xnode{name: root}
	if err := x.fill(el, t, v, ""); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := el.write(enc); err != nil {
		return nil, encodeErr(ir.FormatXML, "", "%v", err)
	}
	if err := enc.Flush(); err != nil {
		return nil, encodeErr(ir.FormatXML, "", "%v", err)
	}
	return buf.Bytes(), nil
}

func (m *Machine) decodeXML(t tag.Tag, data []byte) (value.Value, error) {
	root, err := parseXML(data)
	if err != nil {
		return nil, decodeErr(ir.FormatXML, "", "%v", err)
	}
	x := &xmlCodec{m: m}
	return x.read(root, t, "")
}

type xmlCodec struct {
	m *Machine
}

func (x *xmlCodec) encFail(path, format string, args ...any) error {
	return encodeErr(ir.FormatXML, path, format, args...)
}

func (x *xmlCodec) decFail(path, format string, args ...any) error {
	return decodeErr(ir.FormatXML, path, format, args...)
}

// fill writes v into element el.
func (x *xmlCodec) fill(el *xnode, t tag.Tag, v value.Value, path string) error {
	const f = ir.FormatXML
	switch tt := t.(type) {
	case tag.Optional:
		if value.IsAbsent(v) {
			el.setAttr(xmlNilAttr, "true")
			return nil
		}
		return x.fill(el, tt.Item, v, path)
	case tag.ComplexType:
		return x.fill(el, tt.Inner, v, path)
	case tag.Generated:
		if tt.Form.Kind() == ir.KindEnum {
			s, err := x.m.text(f, path, tt, v)
			if err != nil {
				return err
			}
			el.text = s
			return nil
		}
		return x.generated(el, tt, v, path)
	case tag.Element:
		return x.fill(el.add(tt.Name), tt.Inner, v, path)
	case tag.Repeated:
		l, err := listOf(f, path, v)
		if err != nil {
			return err
		}
		for i, it := range l {
			if err := x.fill(el, tt.Item, it, index(path, i)); err != nil {
				return err
			}
		}
	case tag.List:
		return x.items(el, tt.Item, v, path)
	case tag.Flags:
		return x.items(el, tt.Item, v, path)
	case tag.KVList:
		p, ok := tt.Entry.(tag.Pair)
		if !ok {
			return unhandled("xml encode", t)
		}
		return x.entries(el, p.Key, p.Value, v, path)
	case tag.Dict:
		return x.entries(el, tt.Key, tt.Value, v, path)
	case tag.Choice:
		i, ok := choiceFor(tt, v)
		if !ok {
			return x.encFail(path, "no choice alternative accepts %s", value.Format(v))
		}
		return x.fill(el, tt.Items[i], v, path)
	case tag.Attribute, tag.Subelement, tag.Content:
		return x.put(el, t, v, path)
	default:
		s, err := x.m.text(f, path, t, v)
		if err != nil {
			return err
		}
		el.text = s
	}
	return nil
}

func (x *xmlCodec) items(el *xnode, item tag.Tag, v value.Value, path string) error {
	l, err := listOf(ir.FormatXML, path, v)
	if err != nil {
		return err
	}
	for i, it := range l {
		if err := x.fill(el.add(xmlListItem), item, it, index(path, i)); err != nil {
			return err
		}
	}
	return nil
}

func (x *xmlCodec) entries(el *xnode, kt, vt tag.Tag, v value.Value, path string) error {
	d, err := dictOf(ir.FormatXML, path, v)
	if err != nil {
		return err
	}
	for i, e := range d {
		entry := el.add(xmlEntry)
		if err := x.fill(entry.add(xmlKey), kt, e.Key, index(path, i)); err != nil {
			return err
		}
		if err := x.fill(entry.add(xmlValue), vt, e.Value, index(path, i)); err != nil {
			return err
		}
	}
	return nil
}

// put places a field value in el according to its placement tag.
func (x *xmlCodec) put(el *xnode, t tag.Tag, v value.Value, path string) error {
	const f = ir.FormatXML
	switch tt := t.(type) {
	case tag.Optional:
		if !value.IsAbsent(v) {
			return x.put(el, tt.Item, v, path)
		}
		if sub, ok := tt.Item.(tag.Subelement); ok {
			el.add(sub.Name).setAttr(xmlNilAttr, "true")
			return nil
		}
		return x.encFail(path, "absent value has no representation as %s", tag.Expr(tt.Item))
	case tag.Attribute:
		s, err := x.m.text(f, path, tt.Inner, v)
		if err != nil {
			return err
		}
		el.setAttr(tt.Name, s)
	case tag.Content:
		s, err := x.m.text(f, path, tt.Inner, v)
		if err != nil {
			return err
		}
		el.text = s
	case tag.Subelement:
		return x.fill(el.add(tt.Name), tt.Inner, v, path)
	default:
		return x.fill(el, t, v, path)
	}
	return nil
}

func (x *xmlCodec) generated(el *xnode, g tag.Generated, v value.Value, path string) error {
	r, env, err := x.m.program(g.Form, g.Args, ir.FormatXML, tag.Pack)
	if err != nil {
		return err
	}
	if len(r.Ops) == 1 {
		switch op := r.Ops[0].(type) {
		case codegen.Dispatch:
			c, ok := dispatchCase(op, v)
			if !ok {
				return x.encFail(path, "%s is not a descendant of %s", value.Format(v), g.Form.Name)
			}
			dt, err := bind(op.Tag, env)
			if err != nil {
				return err
			}
			disc, err := x.m.text(ir.FormatXML, join(path, op.Field), dt, c.Value)
			if err != nil {
				return err
			}
			el.setAttr(op.Key, disc)
			pt, err := bind(c.Payload, env)
			if err != nil {
				return err
			}
			return x.fill(el, pt, v, path)
		case codegen.Alternatives:
			i, ok := clauseFor(op, v)
			if !ok {
				return x.encFail(path, "no union clause accepts %s", value.Format(v))
			}
			c := op.Clauses[i]
			if c.Singleton {
				el.text = c.Key
				return nil
			}
			ct, err := bind(c.Tag, env)
			if err != nil {
				return err
			}
			if c.Key == "" {
				return x.fill(el, ct, v, path)
			}
			return x.fill(el.add(c.Key), ct, v, join(path, c.Key))
		}
	}

	rec, err := recordOf(ir.FormatXML, path, g.Form, v)
	if err != nil {
		return err
	}
	for _, fd := range recordFields(r) {
		fp := join(path, fd.Name)
		fv := rec.Get(fd.Name)
		ok, err := written(ir.FormatXML, fp, fd, fv)
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
		if err := x.put(el, ft, fv, fp); err != nil {
			return err
		}
	}
	return nil
}

// read decodes the value filling el.
func (x *xmlCodec) read(el *xnode, t tag.Tag, path string) (value.Value, error) {
	const f = ir.FormatXML
	switch tt := t.(type) {
	case tag.Optional:
		if el.isNil() {
			return value.Absent{}, nil
		}
		return x.read(el, tt.Item, path)
	case tag.ComplexType:
		return x.read(el, tt.Inner, path)
	case tag.Generated:
		if tt.Form.Kind() == ir.KindEnum {
			return x.m.parseText(f, path, tt, el.text)
		}
		return x.readGenerated(el, tt, path)
	case tag.Element:
		c := el.child(tt.Name)
		if c == nil {
			return nil, x.decFail(path, "missing element <%s>", tt.Name)
		}
		return x.read(c, tt.Inner, path)
	case tag.Repeated:
		item, ok := tt.Item.(tag.Element)
		if !ok {
			return nil, unhandled("xml decode", t)
		}
		out := value.List{}
		for i, c := range el.named(item.Name) {
			v, err := x.read(c, item.Inner, index(path, i))
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case tag.List:
		return x.readItems(el, tt.Item, path)
	case tag.Flags:
		return x.readItems(el, tt.Item, path)
	case tag.KVList:
		p, ok := tt.Entry.(tag.Pair)
		if !ok {
			return nil, unhandled("xml decode", t)
		}
		return x.readEntries(el, p.Key, p.Value, path)
	case tag.Dict:
		return x.readEntries(el, tt.Key, tt.Value, path)
	case tag.Choice:
		for _, it := range tt.Items {
			v, err := x.read(el, it, path)
			if err == nil {
				return v, nil
			}
			if diag.IsInternal(err) {
				return nil, err
			}
		}
		return nil, x.decFail(path, "no choice alternative accepts <%s>", el.name)
	case tag.Attribute, tag.Subelement, tag.Content:
		v, found, err := x.get(el, t, path)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, x.decFail(path, "missing value")
		}
		return v, nil
	}
	return x.m.parseText(f, path, t, el.text)
}

func (x *xmlCodec) readItems(el *xnode, item tag.Tag, path string) (value.Value, error) {
	out := value.List{}
	for i, c := range el.named(xmlListItem) {
		v, err := x.read(c, item, index(path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (x *xmlCodec) readEntries(el *xnode, kt, vt tag.Tag, path string) (value.Value, error) {
	out := value.Dict{}
	for i, entry := range el.named(xmlEntry) {
		p := index(path, i)
		kn, vn := entry.child(xmlKey), entry.child(xmlValue)
		if kn == nil || vn == nil {
			return nil, x.decFail(p, "entry without <key> and <value>")
		}
		k, err := x.read(kn, kt, p)
		if err != nil {
			return nil, err
		}
		v, err := x.read(vn, vt, p)
		if err != nil {
			return nil, err
		}
		out = append(out, value.Entry{Key: k, Value: v})
	}
	return out, nil
}

// get reads a field value from its placement in el. found is false when
// the field is not present.
func (x *xmlCodec) get(el *xnode, t tag.Tag, path string) (v value.Value, found bool, err error) {
	const f = ir.FormatXML
	switch tt := t.(type) {
	case tag.Optional:
		switch item := tt.Item.(type) {
		case tag.Subelement:
			if c := el.child(item.Name); c != nil && c.isNil() {
				return value.Absent{}, true, nil
			}
		case tag.Content:
			// Absent content is omitted on encode, leaving no text.
			if el.text == "" {
				return nil, false, nil
			}
		}
		return x.get(el, tt.Item, path)
	case tag.Attribute:
		s, ok := el.attr(tt.Name)
		if !ok {
			return nil, false, nil
		}
		v, err := x.m.parseText(f, path, tt.Inner, s)
		return v, err == nil, err
	case tag.Content:
		v, err := x.m.parseText(f, path, tt.Inner, el.text)
		return v, err == nil, err
	case tag.Subelement:
		c := el.child(tt.Name)
		if c == nil {
			return nil, false, nil
		}
		v, err := x.read(c, tt.Inner, path)
		return v, err == nil, err
	}
	v, err = x.read(el, t, path)
	return v, err == nil, err
}

func (x *xmlCodec) readGenerated(el *xnode, g tag.Generated, path string) (value.Value, error) {
	r, env, err := x.m.program(g.Form, g.Args, ir.FormatXML, tag.Parse)
	if err != nil {
		return nil, err
	}
	if len(r.Ops) == 1 {
		switch op := r.Ops[0].(type) {
		case codegen.Dispatch:
			s, ok := el.attr(op.Key)
			if !ok {
				return nil, x.decFail(path, "variant %s without %q attribute", g.Form.Name, op.Key)
			}
			dt, err := bind(op.Tag, env)
			if err != nil {
				return nil, err
			}
			disc, err := x.m.parseText(ir.FormatXML, join(path, op.Field), dt, s)
			if err != nil {
				return nil, err
			}
			c, ok := caseFor(op, disc)
			if !ok {
				return nil, x.decFail(path, "unknown discriminant %s for variant %s", value.Format(disc), g.Form.Name)
			}
			pt, err := bind(c.Payload, env)
			if err != nil {
				return nil, err
			}
			return x.read(el, pt, path)
		case codegen.Alternatives:
			return x.readAlternatives(el, g.Form, op, env, path)
		}
	}

	rec := value.NewRecord(g.Form.Name)
	for _, fd := range recordFields(r) {
		fp := join(path, fd.Name)
		ft, err := bind(fd.Tag, env)
		if err != nil {
			return nil, err
		}
		v, found, err := x.get(el, ft, fp)
		if err != nil {
			return nil, err
		}
		if !found {
			if v, err = missing(ir.FormatXML, fp, fd); err != nil {
				return nil, err
			}
			rec.Fields[fd.Name] = v
			continue
		}
		rec.Fields[fd.Name] = settle(fd, v)
	}
	return rec, nil
}

func (x *xmlCodec) readAlternatives(el *xnode, form *ir.Form, a codegen.Alternatives, env map[string]tag.Tag, path string) (value.Value, error) {
	if len(el.children) == 0 {
		for _, c := range a.Clauses {
			if c.Singleton && c.Key == el.text {
				return value.Atom(c.Key), nil
			}
		}
	}
	if len(el.children) == 1 {
		child := el.children[0]
		for _, c := range a.Clauses {
			if c.Singleton || c.Key == "" || c.Key != child.name {
				continue
			}
			ct, err := bind(c.Tag, env)
			if err != nil {
				return nil, err
			}
			return x.read(child, ct, join(path, c.Key))
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
		v, err := x.read(el, ct, path)
		if err == nil {
			return v, nil
		}
		if diag.IsInternal(err) {
			return nil, err
		}
	}
	return nil, x.decFail(path, "no clause of union %s accepts <%s>", form.Name, el.name)
}
