package tag

import (
	"strconv"
	"strings"
)

// Expr renders the canonical form of t. Two tags are equal exactly when
// their Expr strings are equal, so Expr also feeds cache fingerprints and
// golden snapshots.
func Expr(t Tag) string {
	var sb strings.Builder
	writeExpr(&sb, t)
	return sb.String()
}

func writeExpr(sb *strings.Builder, t Tag) {
	switch x := t.(type) {
	case nil:
		sb.WriteString("<nil>")
	case Primitive:
		sb.WriteString(x.Prim.String())
	case Bool:
		sb.WriteString("bool")
	case String:
		sb.WriteString("string")
	case Binary:
		sb.WriteString("binary")
	case Atom:
		sb.WriteString("atom")
	case Json:
		sb.WriteString("json")
	case List:
		wrap(sb, "list", x.Item)
	case Dict:
		wrap(sb, "dict", x.Key, x.Value)
	case Optional:
		wrap(sb, "optional", x.Item)
	case Flags:
		wrap(sb, "flags", x.Item)
	case Choice:
		sb.WriteString("choice<")
		for i, it := range x.Items {
			if i > 0 {
				sb.WriteString(" | ")
			}
			writeExpr(sb, it)
		}
		sb.WriteByte('>')
	case Var:
		sb.WriteString("$" + x.Name)
	case Custom:
		sb.WriteString("custom<" + x.Pack + ", " + x.Parse + ">")
		writeArgs(sb, x.Args)
	case Generated:
		sb.WriteString(x.Form.Kind().String() + "<" + x.Form.Name + "@" + string(x.Format) + ">")
		writeArgs(sb, x.Args)
	case Enum:
		sb.WriteString("enum<" + x.Int.Prim.String() + "; " + x.Pack + ", " + x.Parse + ">")
	case Element:
		sb.WriteString("element<" + x.Name + ", ")
		writeExpr(sb, x.Inner)
		sb.WriteByte('>')
	case Content:
		wrap(sb, "content", x.Inner)
	case SimpleType:
		wrap(sb, "simple", x.Inner)
	case ComplexType:
		wrap(sb, "complex", x.Inner)
	case Repeated:
		wrap(sb, "repeated", x.Item)
	case KVList:
		wrap(sb, "kvlist", x.Entry)
	case Pair:
		wrap(sb, "pair", x.Key, x.Value)
	case Attribute:
		sb.WriteString("attribute<" + x.Name + ", ")
		writeExpr(sb, x.Inner)
		sb.WriteByte('>')
	case Subelement:
		sb.WriteString("subelement<" + x.Name + ", ")
		writeExpr(sb, x.Inner)
		sb.WriteByte('>')
	case FromJson:
		wrap(sb, "fromjson", x.Inner)
	case QueryList:
		sb.WriteString("qlist<")
		writeExpr(sb, x.Item)
		sb.WriteString("; unfold=" + strconv.FormatBool(x.Unfold))
		sb.WriteString(", index=" + strconv.FormatBool(x.UnfoldIndex))
		sb.WriteString(", sep=" + strconv.Quote(x.Separator) + ">")
	case CustomQuery:
		sb.WriteString("customquery<" + x.Pack + ", " + x.Parse + ">")
		writeArgs(sb, x.Args)
	default:
		sb.WriteString("<unknown>")
	}
}

func wrap(sb *strings.Builder, name string, children ...Tag) {
	sb.WriteString(name)
	sb.WriteByte('<')
	for i, c := range children {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeExpr(sb, c)
	}
	sb.WriteByte('>')
}

func writeArgs(sb *strings.Builder, args []Tag) {
	if len(args) == 0 {
		return
	}
	sb.WriteByte('[')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeExpr(sb, a)
	}
	sb.WriteByte(']')
}

// Direction selects the pack or parse half of a codec.
type Direction int

const (
	Pack Direction = iota
	Parse
)

func (d Direction) String() string {
	if d == Parse {
		return "parse"
	}
	return "pack"
}

// CallExpr renders the call-site expression a target emitter substitutes
// for a field of this tag, e.g. "list(Point.pack_json)".
func CallExpr(t Tag, d Direction) string {
	switch x := t.(type) {
	case Primitive:
		return x.Prim.String()
	case Bool, String, Binary, Atom, Json:
		return t.Kind().String()
	case List:
		return "list(" + CallExpr(x.Item, d) + ")"
	case Dict:
		return "dict(" + CallExpr(x.Key, d) + ", " + CallExpr(x.Value, d) + ")"
	case Optional:
		return "optional(" + CallExpr(x.Item, d) + ")"
	case Flags:
		return "flags(" + CallExpr(x.Item, d) + ")"
	case Choice:
		parts := make([]string, len(x.Items))
		for i, it := range x.Items {
			parts[i] = CallExpr(it, d)
		}
		return "choice(" + strings.Join(parts, ", ") + ")"
	case Var:
		return d.String() + "_" + x.Name
	case Custom:
		return call(pick(d, x.Pack, x.Parse), x.Args, d)
	case CustomQuery:
		return call(pick(d, x.Pack, x.Parse), x.Args, d)
	case Generated:
		return call(pick(d, PackRef(x.Form, x.Format), ParseRef(x.Form, x.Format)), x.Args, d)
	case Enum:
		return pick(d, x.Pack, x.Parse)
	case Element:
		return "element(" + strconv.Quote(x.Name) + ", " + CallExpr(x.Inner, d) + ")"
	case Content:
		return "content(" + CallExpr(x.Inner, d) + ")"
	case SimpleType:
		return "simple(" + CallExpr(x.Inner, d) + ")"
	case ComplexType:
		return "complex(" + CallExpr(x.Inner, d) + ")"
	case Repeated:
		return "repeated(" + CallExpr(x.Item, d) + ")"
	case KVList:
		return "kvlist(" + CallExpr(x.Entry, d) + ")"
	case Pair:
		return "pair(" + CallExpr(x.Key, d) + ", " + CallExpr(x.Value, d) + ")"
	case Attribute:
		return "attribute(" + strconv.Quote(x.Name) + ", " + CallExpr(x.Inner, d) + ")"
	case Subelement:
		return "subelement(" + strconv.Quote(x.Name) + ", " + CallExpr(x.Inner, d) + ")"
	case FromJson:
		return "fromjson(" + CallExpr(x.Inner, d) + ")"
	case QueryList:
		return "qlist(" + CallExpr(x.Item, d) + ")"
	default:
		return "<unknown>"
	}
}

func pick(d Direction, pack, parse string) string {
	if d == Parse {
		return parse
	}
	return pack
}

func call(fn string, args []Tag, d Direction) string {
	if len(args) == 0 {
		return fn
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = CallExpr(a, d)
	}
	return fn + "(" + strings.Join(parts, ", ") + ")"
}
