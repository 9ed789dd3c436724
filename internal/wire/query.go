package wire

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/roach88/idlc/internal/codegen"
	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/tag"
	"github.com/roach88/idlc/internal/value"
)

// Query and form bodies carry one record as flat parameters. Folded lists
// join their items with the separator; unfolded lists repeat the key, or
// suffix it with [i] when indexed. An absent field of a patch record is
// sent with an empty value; an untouched one is not sent.

func (m *Machine) encodeQuery(f ir.Format, t tag.Tag, v value.Value) ([]byte, error) {
	g, ok := t.(tag.Generated)
	if !ok || g.Form.Kind() != ir.KindRecord {
		return nil, encodeErr(f, "", "%s encodes records only, not %s", f, tag.Expr(t))
	}
	r, env, err := m.program(g.Form, g.Args, f, tag.Pack)
	if err != nil {
		return nil, err
	}
	rec, err := recordOf(f, "", g.Form, v)
	if err != nil {
		return nil, err
	}

	q := &queryCodec{m: m, f: f}
	vals := url.Values{}
	for _, fd := range recordFields(r) {
		fv := rec.Get(fd.Name)
		ok, err := written(f, fd.Name, fd, fv)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		ft, err := bind(fd.Tag, env)
		if err != nil {
			return nil, err
		}
		if value.IsAbsent(fv) {
			if _, opt := ft.(tag.Optional); fd.Presence == codegen.Patch && opt {
				vals.Set(fd.Key, "")
				continue
			}
		}
		if err := q.put(vals, fd.Key, ft, fv, fd.Name); err != nil {
			return nil, err
		}
	}
	return []byte(vals.Encode()), nil
}

func (m *Machine) decodeQuery(f ir.Format, t tag.Tag, data []byte) (value.Value, error) {
	g, ok := t.(tag.Generated)
	if !ok || g.Form.Kind() != ir.KindRecord {
		return nil, decodeErr(f, "", "%s decodes records only, not %s", f, tag.Expr(t))
	}
	vals, err := url.ParseQuery(string(data))
	if err != nil {
		return nil, decodeErr(f, "", "invalid parameters: %v", err)
	}
	r, env, err := m.program(g.Form, g.Args, f, tag.Parse)
	if err != nil {
		return nil, err
	}

	q := &queryCodec{m: m, f: f}
	rec := value.NewRecord(g.Form.Name)
	for _, fd := range recordFields(r) {
		ft, err := bind(fd.Tag, env)
		if err != nil {
			return nil, err
		}
		if _, opt := ft.(tag.Optional); opt && fd.Presence == codegen.Patch {
			if raw, ok := vals[fd.Key]; ok && len(raw) == 1 && raw[0] == "" {
				rec.Fields[fd.Name] = value.Absent{}
				continue
			}
		}
		v, found, err := q.get(vals, fd.Key, ft, fd.Name)
		if err != nil {
			return nil, err
		}
		if !found {
			if v, err = missing(f, fd.Name, fd); err != nil {
				return nil, err
			}
			rec.Fields[fd.Name] = v
			continue
		}
		rec.Fields[fd.Name] = settle(fd, v)
	}
	return rec, nil
}

type queryCodec struct {
	m *Machine
	f ir.Format
}

func indexedKey(key string, i int) string {
	return key + "[" + strconv.Itoa(i) + "]"
}

func (q *queryCodec) put(vals url.Values, key string, t tag.Tag, v value.Value, path string) error {
	switch x := t.(type) {
	case tag.Optional:
		return q.put(vals, key, x.Item, v, path)
	case tag.QueryList:
		l, err := listOf(q.f, path, v)
		if err != nil {
			return err
		}
		items := make([]string, len(l))
		for i, it := range l {
			s, err := q.m.text(q.f, index(path, i), x.Item, it)
			if err != nil {
				return err
			}
			if !x.Unfold && !x.UnfoldIndex {
				if x.Separator != "" && strings.Contains(s, x.Separator) {
					return encodeErr(q.f, index(path, i), "item %q contains the separator %q", s, x.Separator)
				}
				// A lone empty item folds to the empty parameter, which decodes as [].
				if s == "" && len(l) == 1 {
					return encodeErr(q.f, index(path, i), "a folded list cannot hold a single empty item")
				}
			}
			items[i] = s
		}
		switch {
		case x.UnfoldIndex:
			for i, s := range items {
				vals.Set(indexedKey(key, i), s)
			}
		case x.Unfold:
			vals[key] = items
		default:
			vals.Set(key, strings.Join(items, x.Separator))
		}
		return nil
	}
	s, err := q.m.text(q.f, path, t, v)
	if err != nil {
		return err
	}
	vals.Set(key, s)
	return nil
}

// get reads a parameter. Unfolded lists with no parameters decode as empty
// lists.
func (q *queryCodec) get(vals url.Values, key string, t tag.Tag, path string) (value.Value, bool, error) {
	switch x := t.(type) {
	case tag.Optional:
		return q.get(vals, key, x.Item, path)
	case tag.QueryList:
		var raw []string
		switch {
		case x.UnfoldIndex:
			for i := 0; ; i++ {
				s, ok := vals[indexedKey(key, i)]
				if !ok || len(s) == 0 {
					break
				}
				raw = append(raw, s[0])
			}
		case x.Unfold:
			raw = vals[key]
		default:
			s, ok := vals[key]
			if !ok || len(s) == 0 {
				return nil, false, nil
			}
			if s[0] != "" {
				raw = strings.Split(s[0], x.Separator)
			}
		}
		out := make(value.List, 0, len(raw))
		for i, s := range raw {
			v, err := q.m.parseText(q.f, index(path, i), x.Item, s)
			if err != nil {
				return nil, false, err
			}
			out = append(out, v)
		}
		return out, true, nil
	}
	s, ok := vals[key]
	if !ok || len(s) == 0 {
		return nil, false, nil
	}
	if len(s) > 1 {
		return nil, false, decodeErr(q.f, path, "parameter %q repeated %d times", key, len(s))
	}
	v, err := q.m.parseText(q.f, path, t, s[0])
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}
