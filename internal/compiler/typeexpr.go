package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/idlc/internal/ir"
)

// TypeError reports a malformed type expression.
type TypeError struct {
	Expr    string
	Offset  int
	Message string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("type %q at offset %d: %s", e.Expr, e.Offset, e.Message)
}

// ParseType parses a type expression such as "?list<Box<int32>>" or
// "oneof<string | int64>". Names resolve to the type parameters in params
// first, then to builtins, then to forms of g.
func ParseType(expr string, g *ir.Graph, params []string) (ir.Type, error) {
	p := &typeParser{src: expr, g: g, params: params}
	p.next()
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf("unexpected %s after type", p.tok)
	}
	return t, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokLess
	tokGreater
	tokComma
	tokQuestion
	tokBar
	tokInvalid
)

type lexeme struct {
	kind tokKind
	text string
	off  int
}

func (t lexeme) String() string {
	switch t.kind {
	case tokEOF:
		return "end of expression"
	case tokIdent:
		return strconv.Quote(t.text)
	}
	return "'" + t.text + "'"
}

type typeParser struct {
	src    string
	pos    int
	tok    lexeme
	g      *ir.Graph
	params []string
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}

func (p *typeParser) next() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
	start := p.pos
	if p.pos >= len(p.src) {
		p.tok = lexeme{kind: tokEOF, off: start}
		return
	}
	c := p.src[p.pos]
	if isIdentByte(c, true) {
		for p.pos < len(p.src) && isIdentByte(p.src[p.pos], false) {
			p.pos++
		}
		p.tok = lexeme{kind: tokIdent, text: p.src[start:p.pos], off: start}
		return
	}
	p.pos++
	kinds := map[byte]tokKind{'<': tokLess, '>': tokGreater, ',': tokComma, '?': tokQuestion, '|': tokBar}
	k, ok := kinds[c]
	if !ok {
		k = tokInvalid
	}
	p.tok = lexeme{kind: k, text: string(c), off: start}
}

func (p *typeParser) errorf(format string, args ...any) error {
	return &TypeError{Expr: p.src, Offset: p.tok.off, Message: fmt.Sprintf(format, args...)}
}

func (p *typeParser) expect(k tokKind, what string) error {
	if p.tok.kind != k {
		return p.errorf("expected %s, got %s", what, p.tok)
	}
	p.next()
	return nil
}

func (p *typeParser) parseType() (ir.Type, error) {
	if p.tok.kind == tokQuestion {
		p.next()
		if p.tok.kind == tokQuestion {
			return nil, p.errorf("nested optional")
		}
		item, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return ir.Optional{Item: item}, nil
	}
	if p.tok.kind != tokIdent {
		return nil, p.errorf("expected type name, got %s", p.tok)
	}
	name := p.tok
	p.next()

	var args []ir.Type
	sep := tokComma
	if name.text == "oneof" {
		sep = tokBar
	}
	if p.tok.kind == tokLess {
		p.next()
		for {
			a, err := p.parseType()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if p.tok.kind != sep {
				break
			}
			p.next()
		}
		if err := p.expect(tokGreater, "'>'"); err != nil {
			return nil, err
		}
	}
	return p.named(name, args)
}

func (p *typeParser) named(name lexeme, args []ir.Type) (ir.Type, error) {
	fail := func(format string, a ...any) error {
		return &TypeError{Expr: p.src, Offset: name.off, Message: fmt.Sprintf(format, a...)}
	}
	arity := func(n int) error {
		if len(args) != n {
			return fail("%s takes %d type arguments, got %d", name.text, n, len(args))
		}
		return nil
	}

	for _, param := range p.params {
		if param == name.text {
			if err := arity(0); err != nil {
				return nil, err
			}
			return ir.GenericArgument{Name: param}, nil
		}
	}

	if t, ok := scalarType(name.text); ok {
		if err := arity(0); err != nil {
			return nil, err
		}
		return t, nil
	}
	switch name.text {
	case "list":
		if err := arity(1); err != nil {
			return nil, err
		}
		return ir.List{Item: args[0]}, nil
	case "dict":
		if err := arity(2); err != nil {
			return nil, err
		}
		return ir.Dict{Key: args[0], Value: args[1]}, nil
	case "flags":
		if err := arity(1); err != nil {
			return nil, err
		}
		return ir.Flags{Item: args[0]}, nil
	case "oneof":
		if len(args) < 2 {
			return nil, fail("oneof needs at least two alternatives")
		}
		return ir.OneOf{Items: args}, nil
	}

	form := p.g.Lookup(name.text)
	if form == nil {
		return nil, fail("unknown type %q", name.text)
	}
	if !form.IsGeneric() {
		if err := arity(0); err != nil {
			return nil, err
		}
		return ir.UserType{Form: form}, nil
	}
	if err := arity(len(form.Params)); err != nil {
		return nil, err
	}
	return ir.GenericInstance{Form: form, Args: args}, nil
}

// scalarType maps builtin scalar names. "int" and "uint" are 64 bits wide,
// "float" is float64.
func scalarType(name string) (ir.Type, bool) {
	switch name {
	case "bool":
		return ir.Bool{}, true
	case "string":
		return ir.String{}, true
	case "binary":
		return ir.Binary{}, true
	case "atom":
		return ir.Atom{}, true
	case "json":
		return ir.Json{}, true
	case "int":
		return ir.Integer{Width: 64, Signed: true}, true
	case "uint":
		return ir.Integer{Width: 64}, true
	case "float":
		return ir.Float{Width: 64}, true
	case "float32":
		return ir.Float{Width: 32}, true
	case "float64":
		return ir.Float{Width: 64}, true
	}
	for _, prefix := range []string{"uint", "int"} {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok {
			continue
		}
		switch rest {
		case "8", "16", "32", "64":
			w, _ := strconv.Atoi(rest)
			return ir.Integer{Width: w, Signed: prefix == "int"}, true
		}
		return nil, false
	}
	return nil, false
}
