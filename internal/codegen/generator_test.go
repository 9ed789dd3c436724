package codegen

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idlc/internal/attr"
	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/tag"
	"github.com/roach88/idlc/internal/testutil"
	"github.com/roach88/idlc/internal/value"
)

func newGenerator(fx *testutil.Fixture, maxErrors int) (*Generator, *diag.Sink) {
	sink := diag.NewSink(maxErrors)
	r := tag.NewResolver(fx.Attrs, sink, tag.WithCache(tag.NewCache()))
	return NewGenerator(r), sink
}

func mustGenerate(t *testing.T, g *Generator, form *ir.Form, f ir.Format) *Pair {
	t.Helper()
	p, err := g.Generate(form, f)
	require.NoError(t, err)
	require.NotNil(t, p, "%s in %s", form.Name, f)
	return p
}

func TestGenerateGolden(t *testing.T) {
	fx := testutil.Standard()
	g, sink := newGenerator(fx, 0)

	cases := []struct {
		form   string
		format ir.Format
	}{
		{"R", ir.FormatJSON},
		{"R", ir.FormatBinary},
		{"Point", ir.FormatBinary},
		{"Bits", ir.FormatBinary},
		{"V", ir.FormatBinary},
		{"U", ir.FormatJSON},
		{"Color", ir.FormatBinary},
		{"Color", ir.FormatJSON},
		{"Box", ir.FormatJSON},
		{"Delta", ir.FormatBinary},
	}
	var routines []*Routine
	for _, c := range cases {
		p := mustGenerate(t, g, fx.Form(c.form), c.format)
		routines = append(routines, p.Encode, p.Decode)
	}
	require.False(t, sink.HasErrors())

	gd := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	gd.Assert(t, "standard_routines", []byte(Render(routines)))
}

func TestGenerateWriterAndReaderArePositionallyIdentical(t *testing.T) {
	fx := testutil.Standard()
	g, _ := newGenerator(fx, 0)

	for _, form := range fx.Graph.Forms() {
		for _, f := range ir.Formats {
			if !g.Resolver().Enabled(form, f) {
				continue
			}
			p, err := g.Generate(form, f)
			require.NoError(t, err, "%s in %s", form.Name, f)
			if p == nil {
				continue
			}
			require.Len(t, p.Decode.Ops, len(p.Encode.Ops))
			for i := range p.Encode.Ops {
				assert.Equal(t, p.Encode.Ops[i].String(), p.Decode.Ops[i].String(), "%s op %d", p.Encode.Name, i)
			}
			assert.Equal(t, tag.Pack, p.Encode.Direction)
			assert.Equal(t, tag.Parse, p.Decode.Direction)
		}
	}
}

func TestGenerateNoRoutinesForAliasesAndEmbeddedForms(t *testing.T) {
	fx := testutil.Standard()
	g, _ := newGenerator(fx, 0)

	for _, c := range []struct {
		form   string
		format ir.Format
	}{
		{"Alias", ir.FormatJSON},  // define
		{"V", ir.FormatQuery},     // embedded as JSON
		{"Color", ir.FormatQuery}, // atom
	} {
		p, err := g.Generate(fx.Form(c.form), c.format)
		require.NoError(t, err)
		assert.Nil(t, p, "%s in %s", c.form, c.format)
	}

	fx.Attrs.Set("Point", "json.pack", "packPoint").Set("Point", "json.parse", "parsePoint")
	g, _ = newGenerator(fx, 0)
	p, err := g.Generate(fx.Form("Point"), ir.FormatJSON)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGenerateBitmaskSizing(t *testing.T) {
	for _, k := range []int{1, 7, 8, 9, 16, 17} {
		fields := make([]*ir.RecordField, k)
		for i := range fields {
			fields[i] = testutil.Opt("f"+string(rune('a'+i)), testutil.Int32, nil)
		}
		form := testutil.Record("Opts", fields...)
		fx := &testutil.Fixture{Graph: ir.NewGraph().MustAdd(form), Attrs: attr.NewTable()}
		fx.Enable([]string{"Opts"}, ir.FormatBinary)
		g, _ := newGenerator(fx, 0)

		p := mustGenerate(t, g, form, ir.FormatBinary)
		bm, ok := p.Encode.Ops[0].(Bitmask)
		require.True(t, ok)
		assert.Equal(t, (k+7)/8, bm.Bytes, "k=%d", k)
		assert.Len(t, bm.Fields, k)
	}
}

func TestGenerateBitmaskDisabled(t *testing.T) {
	fx := testutil.Standard()
	fx.Attrs.Set("R", "binary.bitmask", false)
	g, _ := newGenerator(fx, 0)

	p := mustGenerate(t, g, fx.Form("R"), ir.FormatBinary)
	require.Len(t, p.Encode.Ops, 2)
	for _, op := range p.Encode.Ops {
		_, isMask := op.(Bitmask)
		assert.False(t, isMask)
	}
	name := p.Encode.Ops[1].(Field)
	assert.False(t, name.Gated())
	assert.Equal(t, "optional<string>", tag.Expr(name.Tag))
}

func TestGenerateIgnoreIsPerFormat(t *testing.T) {
	fx := testutil.Standard()
	fx.Attrs.Set("Point.y", "binary.ignore", true)
	g, _ := newGenerator(fx, 0)

	bin := mustGenerate(t, g, fx.Form("Point"), ir.FormatBinary)
	require.Len(t, bin.Encode.Ops, 1)
	assert.Equal(t, "x", bin.Encode.Ops[0].(Field).Name)

	js := mustGenerate(t, g, fx.Form("Point"), ir.FormatJSON)
	assert.Len(t, js.Encode.Ops, 2)
}

func TestGenerateDiscriminantIsNeverAField(t *testing.T) {
	fx := testutil.Standard()
	g, _ := newGenerator(fx, 0)

	p := mustGenerate(t, g, fx.Form("A"), ir.FormatJSON)
	require.Len(t, p.Encode.Ops, 1)
	assert.Equal(t, "a", p.Encode.Ops[0].(Field).Name)
}

func TestGenerateVariantErrors(t *testing.T) {
	t.Run("patch descendant", func(t *testing.T) {
		a := testutil.Record("PA", testutil.Discriminant("k", testutil.Uint8, value.Int(1)))
		b := testutil.Patch(testutil.Record("PB", testutil.Discriminant("k", testutil.Uint8, value.Int(2))))
		v := testutil.Variant("PV", a, b)
		fx := &testutil.Fixture{Graph: ir.NewGraph().MustAdd(v, a, b), Attrs: attr.NewTable()}
		fx.Enable([]string{"PV", "PA", "PB"}, ir.FormatJSON)
		g, sink := newGenerator(fx, 0)

		_, err := g.Generate(v, ir.FormatJSON)
		require.Error(t, err)
		assert.True(t, diag.IsSkipped(err))
		require.Len(t, sink.Diagnostics(), 1)
		assert.Equal(t, diag.CodePatchDescendant, sink.Diagnostics()[0].Code)
		assert.Equal(t, "PB", sink.Diagnostics()[0].Decl)
	})

	t.Run("missing and duplicate discriminants", func(t *testing.T) {
		a := testutil.Record("DA", testutil.Discriminant("k", testutil.Uint8, value.Int(1)))
		b := testutil.Record("DB", testutil.Discriminant("k", testutil.Uint8, value.Int(1)))
		c := testutil.Record("DC", testutil.Field("c", testutil.Int32))
		v := testutil.Variant("DV", a, b, c)
		fx := &testutil.Fixture{Graph: ir.NewGraph().MustAdd(v, a, b, c), Attrs: attr.NewTable()}
		fx.Enable([]string{"DV", "DA", "DB", "DC"}, ir.FormatBinary)
		g, sink := newGenerator(fx, 0)

		_, err := g.Generate(v, ir.FormatBinary)
		require.Error(t, err)
		diags := sink.Diagnostics()
		require.Len(t, diags, 2)
		assert.Equal(t, diag.CodeInvalidDiscrim, diags[0].Code)
		assert.Equal(t, "DB", diags[0].Decl)
		assert.Equal(t, diag.CodeInvalidDiscrim, diags[1].Code)
		assert.Equal(t, "DC", diags[1].Decl)
	})

	t.Run("descendant without the format", func(t *testing.T) {
		fx := testutil.Standard()
		g, sink := newGenerator(fx, 0)
		fx.Attrs.Set("B", "xml", false)

		_, err := g.Generate(fx.Form("V"), ir.FormatXML)
		require.Error(t, err)
		diags := sink.Diagnostics()
		require.Len(t, diags, 1)
		assert.Equal(t, diag.CodeDisabledFormat, diags[0].Code)
		assert.Equal(t, "V", diags[0].Decl)
	})
}

func TestGenerateRecordReportsEveryFieldError(t *testing.T) {
	fx := testutil.Standard()
	fx.Attrs.
		Set("Shape.origin", "xml.attribute", true).
		Set("Shape.labels", "xml.content", true)
	g, sink := newGenerator(fx, 0)

	_, err := g.Generate(fx.Form("Shape"), ir.FormatXML)
	require.Error(t, err)
	assert.Equal(t, 2, sink.ErrorCount())
}

func TestGenerateEnumDuplicateKeys(t *testing.T) {
	fx := testutil.Standard()
	fx.Attrs.Set("Color.green", "json.key", "red")
	g, sink := newGenerator(fx, 0)

	_, err := g.Generate(fx.Form("Color"), ir.FormatJSON)
	require.Error(t, err)
	assert.Equal(t, diag.CodeFormatMisuse, sink.Diagnostics()[0].Code)

	// Binary travels as integers and is unaffected.
	mustGenerate(t, g, fx.Form("Color"), ir.FormatBinary)
}

func TestUnionClauseMatchIsFirstDeclared(t *testing.T) {
	alts := Alternatives{Clauses: []Clause{
		{Key: "small", Tag: tag.Primitive{Prim: tag.Int32}, Guard: Guard{Kind: GuardInt}},
		{Key: "big", Tag: tag.Primitive{Prim: tag.Int64}, Guard: Guard{Kind: GuardInt}},
	}}
	for range 10 {
		idx := -1
		for i, c := range alts.Clauses {
			if c.Match(value.Int(5)) {
				idx = i
				break
			}
		}
		assert.Equal(t, 0, idx)
	}
}

func TestGuardFor(t *testing.T) {
	fx := testutil.Standard()
	point := fx.Form("Point")
	v := fx.Form("V")

	tests := []struct {
		tag   tag.Tag
		match value.Value
		miss  value.Value
	}{
		{tag.Primitive{Prim: tag.Int32}, value.Int(1), value.Float(1)},
		{tag.Primitive{Prim: tag.Float64}, value.Float(1), value.Int(1)},
		{tag.String{}, value.String("s"), value.Atom("s")},
		{tag.Binary{}, value.Bytes{1}, value.String("x")},
		{tag.List{Item: tag.Bool{}}, value.List{}, value.Dict{}},
		{tag.Generated{Form: point, Format: ir.FormatJSON}, value.NewRecord("Point"), value.NewRecord("A")},
		{tag.Generated{Form: v, Format: ir.FormatJSON}, value.NewRecord("B"), value.NewRecord("Point")},
		{tag.Json{}, value.Raw("{}"), value.Absent{}},
	}
	for _, tt := range tests {
		g := GuardFor(tt.tag)
		assert.True(t, g.Match(tt.match), "%s should match %s", g, value.Format(tt.match))
		assert.False(t, g.Match(tt.miss), "%s should not match %s", g, value.Format(tt.miss))
	}
}
