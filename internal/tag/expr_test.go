package tag

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idlc/internal/diag"
	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/testutil"
)

// TestStandardTagsGolden snapshots the form tag of every enabled
// (form, format) pair of the standard fixture plus the field tags of Shape.
func TestStandardTagsGolden(t *testing.T) {
	fx := testutil.Standard()
	r, sink := newResolver(fx)

	var sb strings.Builder
	for _, f := range ir.Formats {
		for _, form := range fx.Graph.Forms() {
			if !r.Enabled(form, f) {
				continue
			}
			tg, err := r.FormTag(form, f, nil)
			require.NoError(t, err, "%s in %s", form.Name, f)
			fmt.Fprintf(&sb, "%s %s %s\n", f, form.Name, Expr(tg))
		}
	}
	shape := fx.Form("Shape")
	for _, f := range []ir.Format{ir.FormatJSON, ir.FormatBinary, ir.FormatXML} {
		for _, field := range shape.Record().Fields {
			tg, err := r.FieldTag(field, f)
			require.NoError(t, err)
			fmt.Fprintf(&sb, "%s %s %s\n", f, field.Path(), Expr(tg))
		}
	}
	require.False(t, sink.HasErrors())

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "standard_tags", []byte(sb.String()))
}

func TestCallExpr(t *testing.T) {
	fx := testutil.Standard()
	point := fx.Form("Point")
	box := fx.Form("Box")

	tests := []struct {
		name  string
		tag   Tag
		pack  string
		parse string
	}{
		{"primitive", Primitive{Prim: Int32}, "int32", "int32"},
		{"string", String{}, "string", "string"},
		{"list of records", List{Item: Generated{Form: point, Format: ir.FormatJSON}}, "list(Point.pack_json)", "list(Point.parse_json)"},
		{"generic instance", Generated{Form: box, Format: ir.FormatJSON, Args: []Tag{Primitive{Prim: Int32}}}, "Box.pack_json(int32)", "Box.parse_json(int32)"},
		{"open generic", Generated{Form: box, Format: ir.FormatJSON, Args: []Tag{Var{Name: "T"}}}, "Box.pack_json(pack_T)", "Box.parse_json(parse_T)"},
		{"custom", Custom{Pack: "toWire", Parse: "fromWire"}, "toWire", "fromWire"},
		{"binary enum", Enum{Int: Primitive{Prim: Uint8}, Pack: "Color.pack_binary", Parse: "Color.parse_binary"}, "Color.pack_binary", "Color.parse_binary"},
		{"xml element", Element{Name: "item", Inner: String{}}, `element("item", string)`, `element("item", string)`},
		{"query", FromJson{Inner: Dict{Key: String{}, Value: Json{}}}, "fromjson(dict(string, json))", "fromjson(dict(string, json))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.pack, CallExpr(tt.tag, Pack))
			assert.Equal(t, tt.parse, CallExpr(tt.tag, Parse))
		})
	}
}

func TestInstantiateRebuildsEveryShape(t *testing.T) {
	v := Var{Name: "T"}
	in := Choice{Items: []Tag{
		List{Item: v},
		Dict{Key: String{}, Value: Optional{Item: v}},
		Repeated{Item: Element{Name: "item", Inner: v}},
		KVList{Entry: Pair{Key: v, Value: Subelement{Name: "s", Inner: Attribute{Name: "a", Inner: v}}}},
		ComplexType{Inner: SimpleType{Inner: Content{Inner: v}}},
		FromJson{Inner: QueryList{Item: v, Unfold: true, Separator: ";"}},
		CustomQuery{Pack: "p", Parse: "q", Args: []Tag{Flags{Item: v}}},
	}}
	assert.Equal(t, []string{"T"}, FreeVars(in))

	out, err := Instantiate(in, map[string]Tag{"T": Bool{}})
	require.NoError(t, err)
	assert.True(t, IsClosed(out))
	assert.Equal(t, strings.ReplaceAll(Expr(in), "$T", "bool"), Expr(out))
}

func TestInstantiateUnboundVarIsInternal(t *testing.T) {
	in := List{Item: Dict{Key: Var{Name: "K"}, Value: Var{Name: "V"}}}

	_, err := Instantiate(in, map[string]Tag{"K": String{}})
	require.Error(t, err)
	assert.True(t, diag.IsInternal(err))
	assert.Contains(t, err.Error(), `unbound generic variable "V"`)
}

func TestFixedWidth(t *testing.T) {
	assert.True(t, IsFixedWidth(Primitive{Prim: Float64}))
	assert.True(t, IsFixedWidth(Bool{}))
	assert.True(t, IsFixedWidth(Enum{Int: Primitive{Prim: Uint16}}))
	assert.False(t, IsFixedWidth(String{}))
	assert.False(t, IsFixedWidth(Optional{Item: Bool{}}))

	assert.Equal(t, 8, FixedWidth(Primitive{Prim: Float64}))
	assert.Equal(t, 1, FixedWidth(Bool{}))
	assert.Equal(t, 2, FixedWidth(Enum{Int: Primitive{Prim: Uint16}}))
	assert.Equal(t, 0, FixedWidth(List{Item: Bool{}}))
}
