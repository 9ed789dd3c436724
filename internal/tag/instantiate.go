package tag

import (
	"sort"

	"github.com/roach88/idlc/internal/diag"
)

// Rebuild reconstructs t with every direct child replaced by fn(child).
// Leaves are returned unchanged. Node identity (names, function
// references, flags) is preserved.
func Rebuild(t Tag, fn func(Tag) (Tag, error)) (Tag, error) {
	switch x := t.(type) {
	case Primitive, Bool, String, Binary, Atom, Json, Var, Enum:
		return t, nil
	case List:
		item, err := fn(x.Item)
		if err != nil {
			return nil, err
		}
		return List{Item: item}, nil
	case Dict:
		k, err := fn(x.Key)
		if err != nil {
			return nil, err
		}
		v, err := fn(x.Value)
		if err != nil {
			return nil, err
		}
		return Dict{Key: k, Value: v}, nil
	case Optional:
		item, err := fn(x.Item)
		if err != nil {
			return nil, err
		}
		return Optional{Item: item}, nil
	case Flags:
		item, err := fn(x.Item)
		if err != nil {
			return nil, err
		}
		return Flags{Item: item}, nil
	case Choice:
		items, err := rebuildAll(x.Items, fn)
		if err != nil {
			return nil, err
		}
		return Choice{Items: items}, nil
	case Custom:
		args, err := rebuildAll(x.Args, fn)
		if err != nil {
			return nil, err
		}
		return Custom{Pack: x.Pack, Parse: x.Parse, Args: args}, nil
	case Generated:
		args, err := rebuildAll(x.Args, fn)
		if err != nil {
			return nil, err
		}
		return Generated{Form: x.Form, Format: x.Format, Args: args}, nil
	case Element:
		inner, err := fn(x.Inner)
		if err != nil {
			return nil, err
		}
		return Element{Name: x.Name, Inner: inner}, nil
	case Content:
		inner, err := fn(x.Inner)
		if err != nil {
			return nil, err
		}
		return Content{Inner: inner}, nil
	case SimpleType:
		inner, err := fn(x.Inner)
		if err != nil {
			return nil, err
		}
		return SimpleType{Inner: inner}, nil
	case ComplexType:
		inner, err := fn(x.Inner)
		if err != nil {
			return nil, err
		}
		return ComplexType{Inner: inner}, nil
	case Repeated:
		item, err := fn(x.Item)
		if err != nil {
			return nil, err
		}
		return Repeated{Item: item}, nil
	case KVList:
		entry, err := fn(x.Entry)
		if err != nil {
			return nil, err
		}
		return KVList{Entry: entry}, nil
	case Pair:
		k, err := fn(x.Key)
		if err != nil {
			return nil, err
		}
		v, err := fn(x.Value)
		if err != nil {
			return nil, err
		}
		return Pair{Key: k, Value: v}, nil
	case Attribute:
		inner, err := fn(x.Inner)
		if err != nil {
			return nil, err
		}
		return Attribute{Name: x.Name, Inner: inner}, nil
	case Subelement:
		inner, err := fn(x.Inner)
		if err != nil {
			return nil, err
		}
		return Subelement{Name: x.Name, Inner: inner}, nil
	case FromJson:
		inner, err := fn(x.Inner)
		if err != nil {
			return nil, err
		}
		return FromJson{Inner: inner}, nil
	case QueryList:
		item, err := fn(x.Item)
		if err != nil {
			return nil, err
		}
		return QueryList{Item: item, Unfold: x.Unfold, UnfoldIndex: x.UnfoldIndex, Separator: x.Separator}, nil
	case CustomQuery:
		args, err := rebuildAll(x.Args, fn)
		if err != nil {
			return nil, err
		}
		return CustomQuery{Pack: x.Pack, Parse: x.Parse, Args: args}, nil
	default:
		return nil, diag.Internalf("rebuild", "unhandled tag variant %T", t)
	}
}

func rebuildAll(ts []Tag, fn func(Tag) (Tag, error)) ([]Tag, error) {
	if ts == nil {
		return nil, nil
	}
	out := make([]Tag, len(ts))
	for i, t := range ts {
		r, err := fn(t)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// Instantiate replaces every Var leaf of t with subst[name], rebuilding
// composite nodes with the same shape. A Var missing from subst is an
// internal error: the algebra only produces Vars for declared parameters.
func Instantiate(t Tag, subst map[string]Tag) (Tag, error) {
	if v, ok := t.(Var); ok {
		s, ok := subst[v.Name]
		if !ok {
			return nil, diag.Internalf("instantiate", "unbound generic variable %q", v.Name)
		}
		return s, nil
	}
	return Rebuild(t, func(child Tag) (Tag, error) {
		return Instantiate(child, subst)
	})
}

// FreeVars returns the sorted names of Vars occurring in t.
func FreeVars(t Tag) []string {
	set := make(map[string]bool)
	collectVars(t, set)
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func collectVars(t Tag, set map[string]bool) {
	if v, ok := t.(Var); ok {
		set[v.Name] = true
		return
	}
	// Rebuild with an identity visitor walks every child exactly once.
	_, _ = Rebuild(t, func(child Tag) (Tag, error) {
		collectVars(child, set)
		return child, nil
	})
}

// IsClosed reports whether t contains no Var.
func IsClosed(t Tag) bool {
	return len(FreeVars(t)) == 0
}
