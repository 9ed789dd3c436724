package tag

import (
	"github.com/roach88/idlc/internal/attr"
	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
)

// Resolver computes tags. It holds no per-call state: the accessor and the
// graph are read-only, the sink and cache are safe for concurrent use, so
// one Resolver may serve every generation worker.
type Resolver struct {
	acc      attr.Accessor
	sink     *diag.Sink
	cache    *Cache
	policies map[ir.Format]*Policy
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache enables memoization of form tags.
func WithCache(c *Cache) Option {
	return func(r *Resolver) {
		r.cache = c
	}
}

// WithPolicy replaces the policy of one format.
func WithPolicy(p *Policy) Option {
	return func(r *Resolver) {
		r.policies[p.Format] = p
	}
}

// NewResolver creates a resolver reading attributes from acc and reporting
// configuration errors to sink.
func NewResolver(acc attr.Accessor, sink *diag.Sink, opts ...Option) *Resolver {
	r := &Resolver{
		acc:      acc,
		sink:     sink,
		policies: DefaultPolicies(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Accessor returns the attribute accessor.
func (r *Resolver) Accessor() attr.Accessor { return r.acc }

// Sink returns the diagnostics sink.
func (r *Resolver) Sink() *diag.Sink { return r.sink }

// Enabled reports whether form enables format f.
func (r *Resolver) Enabled(form *ir.Form, f ir.Format) bool {
	return attr.Get(r.acc, form, attr.Enabled(f), false)
}

func (r *Resolver) policy(f ir.Format) (*Policy, error) {
	p, ok := r.policies[f]
	if !ok {
		return nil, diag.Internalf("resolve", "no policy registered for format %q", f)
	}
	return p, nil
}

// Resolve computes the tag of t in format f. ref is the declaration whose
// source contains the occurrence; configuration errors are reported at its
// position. Errors are either *diag.ConfigError (skip this occurrence) or
// *diag.InternalError (abort).
func (r *Resolver) Resolve(t ir.Type, f ir.Format, ref ir.Decl) (Tag, error) {
	switch x := t.(type) {
	case ir.Bool:
		return Bool{}, nil
	case ir.Integer:
		p, err := PrimForInteger(x)
		if err != nil {
			return nil, diag.Internalf("resolve", "%v", err)
		}
		return Primitive{Prim: p}, nil
	case ir.Float:
		p, err := PrimForFloat(x)
		if err != nil {
			return nil, diag.Internalf("resolve", "%v", err)
		}
		return Primitive{Prim: p}, nil
	case ir.String:
		return String{}, nil
	case ir.Binary:
		return Binary{}, nil
	case ir.Atom:
		return Atom{}, nil
	case ir.Json:
		return Json{}, nil
	case ir.List:
		pol, err := r.policy(f)
		if err != nil {
			return nil, err
		}
		return pol.list(r, x, f, ref)
	case ir.Dict:
		pol, err := r.policy(f)
		if err != nil {
			return nil, err
		}
		return pol.dict(r, x, f, ref)
	case ir.Optional:
		item, err := r.Resolve(x.Item, f, ref)
		if err != nil {
			return nil, err
		}
		return Optional{Item: item}, nil
	case ir.Flags:
		pol, err := r.policy(f)
		if err != nil {
			return nil, err
		}
		return pol.flags(r, x, f, ref)
	case ir.OneOf:
		pol, err := r.policy(f)
		if err != nil {
			return nil, err
		}
		return pol.oneOf(r, x, f, ref)
	case ir.UserType:
		if x.Form.IsGeneric() {
			return nil, diag.Internalf("resolve", "generic form %s referenced without arguments", x.Form.Name)
		}
		return r.FormTag(x.Form, f, ref)
	case ir.GenericArgument:
		return Var{Name: x.Name}, nil
	case ir.GenericInstance:
		return r.resolveInstance(x, f, ref)
	default:
		return nil, diag.Internalf("resolve", "unhandled type variant %T", t)
	}
}

// resolveInstance builds the substitution from the argument tags and
// instantiates the prototype's open tag with it.
func (r *Resolver) resolveInstance(x ir.GenericInstance, f ir.Format, ref ir.Decl) (Tag, error) {
	if len(x.Args) != len(x.Form.Params) {
		return nil, diag.Internalf("resolve", "%s expects %d type arguments, got %d",
			x.Form.Name, len(x.Form.Params), len(x.Args))
	}

	args := make([]Tag, len(x.Args))
	for i, a := range x.Args {
		t, err := r.Resolve(a, f, ref)
		if err != nil {
			return nil, err
		}
		args[i] = t
	}

	if t, ok := r.cache.get(x.Form, f, args); ok {
		return t, nil
	}

	open, err := r.FormTag(x.Form, f, ref)
	if err != nil {
		return nil, err
	}
	t, err := Instantiate(open, Substitution(x.Form, args))
	if err != nil {
		return nil, err
	}
	r.cache.put(x.Form, f, args, t)
	return t, nil
}

// Substitution zips a form's parameters with argument tags.
func Substitution(form *ir.Form, args []Tag) map[string]Tag {
	subst := make(map[string]Tag, len(form.Params))
	for i, p := range form.Params {
		if i < len(args) {
			subst[p] = args[i]
		}
	}
	return subst
}

// FormTag returns the tag of a form in format f. For generic forms the
// result is open: parameters appear as Var.
func (r *Resolver) FormTag(form *ir.Form, f ir.Format, ref ir.Decl) (Tag, error) {
	if ref == nil {
		ref = form
	}
	if !r.Enabled(form, f) {
		return nil, r.sink.Errorf(diag.CodeDisabledFormat, ref,
			"%s %s does not enable format %q", form.Kind(), form.Name, f)
	}

	if !form.IsGeneric() {
		if t, ok := r.cache.get(form, f, nil); ok {
			return t, nil
		}
	}

	t, err := r.formTag(form, f)
	if err != nil {
		return nil, err
	}
	if !form.IsGeneric() {
		r.cache.put(form, f, nil, t)
	}
	return t, nil
}

// formTag applies override resolution, then the primitive representation,
// then the per-kind default builder of the format's policy.
func (r *Resolver) formTag(form *ir.Form, f ir.Format) (Tag, error) {
	pack := attr.Get(r.acc, form, attr.Pack(f), "")
	parse := attr.Get(r.acc, form, attr.Parse(f), "")
	switch {
	case pack != "" && parse != "":
		args := ParamVars(form)
		if f.QueryFamily() {
			return CustomQuery{Pack: pack, Parse: parse, Args: args}, nil
		}
		return Custom{Pack: pack, Parse: parse, Args: args}, nil
	case pack != "":
		return nil, r.sink.Errorf(diag.CodeAsymmetricCodec, form,
			"asymmetric custom codec: %s declares %s.pack but no %s.parse", form.Name, f, f)
	case parse != "":
		return nil, r.sink.Errorf(diag.CodeAsymmetricCodec, form,
			"asymmetric custom codec: %s declares %s.parse but no %s.pack", form.Name, f, f)
	}

	if t, ok, err := r.primitiveRepr(form, f); ok || err != nil {
		return t, err
	}

	pol, err := r.policy(f)
	if err != nil {
		return nil, err
	}
	build, ok := pol.Defaults[form.Kind()]
	if !ok {
		return nil, diag.Internalf("resolve", "format %q has no default builder for %s", f, form.Kind())
	}
	return build(r, form, f)
}

// primitiveRepr handles forms representable as a primitive: an enum whose
// <format>.repr is "int" is its backing integer.
func (r *Resolver) primitiveRepr(form *ir.Form, f ir.Format) (Tag, bool, error) {
	repr := attr.Get(r.acc, form, attr.Repr(f), "")
	if repr == "" {
		return nil, false, nil
	}
	e := form.Enum()
	if repr != "int" || e == nil {
		return nil, false, r.sink.Errorf(diag.CodeFormatMisuse, form,
			"%s.repr %q is not supported on %s %s", f, repr, form.Kind(), form.Name)
	}
	p, err := PrimForInteger(e.Backing)
	if err != nil {
		return nil, false, diag.Internalf("resolve", "enum %s: %v", form.Name, err)
	}
	return Primitive{Prim: p}, true, nil
}

// ParamVars returns one Var per type parameter of form.
func ParamVars(form *ir.Form) []Tag {
	if !form.IsGeneric() {
		return nil
	}
	vars := make([]Tag, len(form.Params))
	for i, p := range form.Params {
		vars[i] = Var{Name: p}
	}
	return vars
}
