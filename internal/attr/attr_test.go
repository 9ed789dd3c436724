package attr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idlc/internal/ir"
)

func TestGetTypedAndDefault(t *testing.T) {
	form := &ir.Form{Name: "Point", Body: &ir.Record{}}
	tbl := NewTable().
		Set("Point", "json", true).
		Set("Point", "json.pack", "packPoint")

	assert.True(t, Get(tbl, form, Enabled(ir.FormatJSON), false))
	assert.False(t, Get(tbl, form, Enabled(ir.FormatXML), false))
	assert.Equal(t, "packPoint", Get(tbl, form, Pack(ir.FormatJSON), ""))
	assert.Equal(t, "fallback", Get(tbl, form, Parse(ir.FormatJSON), "fallback"))
}

func TestGetWrongTypeFallsBack(t *testing.T) {
	form := &ir.Form{Name: "Point", Body: &ir.Record{}}
	tbl := NewTable().Set("Point", "json", "yes")
	assert.False(t, Get(tbl, form, Enabled(ir.FormatJSON), false))
}

func TestGetNilAccessor(t *testing.T) {
	form := &ir.Form{Name: "Point", Body: &ir.Record{}}
	assert.Equal(t, ",", Get(nil, form, Separator(ir.FormatQuery), ","))
}

func TestLayeredFirstHitWins(t *testing.T) {
	field := &ir.RecordField{Owner: "Point", Name: "x"}
	base := NewTable().Set("Point.x", "json.key", "x")
	overlay := NewTable().Set("Point.x", "json.key", "X")

	acc := Layered{overlay, base}
	assert.Equal(t, "X", Get(acc, field, Key(ir.FormatJSON), ""))
	assert.True(t, Has(acc, field, Key(ir.FormatJSON)))
	assert.False(t, Has(acc, field, Ignore(ir.FormatJSON)))
}

func TestKnown(t *testing.T) {
	_, ok := Known("json")
	assert.True(t, ok)
	_, ok = Known("binary.bitmask")
	assert.True(t, ok)
	_, ok = Known("query.unfold_index")
	assert.True(t, ok)

	repl, ok := Known("json.name")
	assert.True(t, ok)
	assert.Equal(t, "json.key", repl)

	_, ok = Known("json.colour")
	assert.False(t, ok)
	_, ok = Known("yaml")
	assert.False(t, ok)
}

func TestParseOverlay(t *testing.T) {
	tbl, err := ParseOverlay([]byte(`{
		// comments and trailing commas are accepted
		"Point": {"json": true, "binary": false},
		"Point.x": {"json.key": "X", "query.separator": ";"},
		"Level": {"binary.width": 16},
	}`))
	require.NoError(t, err)

	form := &ir.Form{Name: "Point", Body: &ir.Record{}}
	field := &ir.RecordField{Owner: "Point", Name: "x"}
	assert.True(t, Get(tbl, form, Enabled(ir.FormatJSON), false))
	assert.Equal(t, "X", Get(tbl, field, Key(ir.FormatJSON), ""))

	lvl := &ir.Form{Name: "Level", Body: &ir.Enum{}}
	assert.Equal(t, int64(16), Get(tbl, lvl, Descriptor[int64]{Name: "binary.width"}, 0))
}

func TestParseOverlayRejectsFloats(t *testing.T) {
	_, err := ParseOverlay([]byte(`{"P": {"x": 1.5}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-integral")
}
