package codegen

import (
	"strings"

	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/tag"
	"github.com/roach88/idlc/internal/value"
)

// GuardKind is the runtime shape a guard tests for.
type GuardKind int

const (
	GuardAny GuardKind = iota
	GuardBool
	GuardInt
	GuardFloat
	GuardString
	GuardBytes
	GuardAtom
	GuardList
	GuardDict
	GuardRecord
)

var guardNames = [...]string{"any", "bool", "int", "float", "string", "bytes", "atom", "list", "dict", "record"}

// Guard is a structural shape test used to pick union clauses and choice
// items on encode.
type Guard struct {
	Kind  GuardKind
	Types []string // accepted record type names for GuardRecord
}

func (g Guard) String() string {
	s := guardNames[g.Kind]
	if g.Kind == GuardRecord {
		s += "(" + strings.Join(g.Types, "|") + ")"
	}
	return s
}

// Match reports whether v has the guarded shape.
func (g Guard) Match(v value.Value) bool {
	switch g.Kind {
	case GuardAny:
		return !value.IsAbsent(v) && !value.IsUnset(v)
	case GuardBool:
		_, ok := v.(value.Bool)
		return ok
	case GuardInt:
		_, ok := v.(value.Int)
		return ok
	case GuardFloat:
		_, ok := v.(value.Float)
		return ok
	case GuardString:
		_, ok := v.(value.String)
		return ok
	case GuardBytes:
		_, ok := v.(value.Bytes)
		return ok
	case GuardAtom:
		_, ok := v.(value.Atom)
		return ok
	case GuardList:
		_, ok := v.(value.List)
		return ok
	case GuardDict:
		_, ok := v.(value.Dict)
		return ok
	case GuardRecord:
		r, ok := v.(*value.Record)
		if !ok {
			return false
		}
		for _, t := range g.Types {
			if t == r.Type {
				return true
			}
		}
		return false
	}
	return false
}

// GuardFor derives the shape guard of values carried by t.
func GuardFor(t tag.Tag) Guard {
	switch x := t.(type) {
	case tag.Primitive:
		if x.Prim.IsFloat() {
			return Guard{Kind: GuardFloat}
		}
		return Guard{Kind: GuardInt}
	case tag.Bool:
		return Guard{Kind: GuardBool}
	case tag.String:
		return Guard{Kind: GuardString}
	case tag.Binary:
		return Guard{Kind: GuardBytes}
	case tag.Atom, tag.Enum:
		return Guard{Kind: GuardAtom}
	case tag.List, tag.Flags, tag.Repeated, tag.QueryList:
		return Guard{Kind: GuardList}
	case tag.Dict, tag.KVList:
		return Guard{Kind: GuardDict}
	case tag.Optional:
		return GuardFor(x.Item)
	case tag.Element:
		return GuardFor(x.Inner)
	case tag.Subelement:
		return GuardFor(x.Inner)
	case tag.Attribute:
		return GuardFor(x.Inner)
	case tag.Content:
		return GuardFor(x.Inner)
	case tag.SimpleType:
		return GuardFor(x.Inner)
	case tag.ComplexType:
		return GuardFor(x.Inner)
	case tag.FromJson:
		return GuardFor(x.Inner)
	case tag.Generated:
		switch x.Form.Kind() {
		case ir.KindRecord:
			return Guard{Kind: GuardRecord, Types: []string{x.Form.Name}}
		case ir.KindVariant:
			leaves := x.Form.Variant().Leaves()
			names := make([]string, len(leaves))
			for i, l := range leaves {
				names[i] = l.Name
			}
			return Guard{Kind: GuardRecord, Types: names}
		case ir.KindEnum:
			return Guard{Kind: GuardAtom}
		}
	}
	// json, choice, unions, custom codecs and variables accept anything
	return Guard{Kind: GuardAny}
}
