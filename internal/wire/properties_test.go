package wire

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/tag"
	"github.com/roach88/idlc/internal/testutil"
	"github.com/roach88/idlc/internal/value"
)

func TestGenericInstanceEncodesLikeSubstitutedForm(t *testing.T) {
	fx := testutil.Standard()
	m := newMachine(fx, nil)
	box := fx.Form("Box")

	inst := ir.GenericInstance{Form: box, Args: []ir.Type{testutil.Int32}}
	closed, err := m.TagOf(inst, ir.FormatJSON)
	require.NoError(t, err)

	open, err := m.gen.Resolver().FormTag(box, ir.FormatJSON, box)
	require.NoError(t, err)
	arg, err := m.gen.Resolver().Resolve(testutil.Int32, ir.FormatJSON, box)
	require.NoError(t, err)
	bound, err := tag.Instantiate(open, tag.Substitution(box, []tag.Tag{arg}))
	require.NoError(t, err)
	assert.Equal(t, closed, bound, "%s != %s", tag.Expr(closed), tag.Expr(bound))

	v := value.NewRecord("Box", value.F("value", value.Int(1)), value.F("tags", value.List{value.Int(2), value.Int(3)}))
	data, back := roundTrip(t, m, inst, ir.FormatJSON, v)
	assert.Equal(t, `{"value":1,"tags":[2,3]}`, string(data))
	assert.True(t, value.Equal(v, back))

	pair := ir.GenericInstance{Form: fx.Form("Pair"), Args: []ir.Type{ir.String{}, ir.UserType{Form: fx.Form("Color")}}}
	pv := value.NewRecord("Pair", value.F("key", value.String("k")), value.F("value", value.Atom("red")))
	for _, f := range []ir.Format{ir.FormatJSON, ir.FormatBinary} {
		_, back := roundTrip(t, m, pair, f, pv)
		assert.True(t, value.Equal(pv, back), "%s: %s", f, value.Format(back))
	}
}

func TestBitmaskSizing(t *testing.T) {
	fx := testutil.Standard()
	m := newMachine(fx, nil)
	names := []string{"o1", "o2", "o3", "o4", "o5", "o6", "o7", "o8", "o9"}

	// Nine optional fields need two mask bytes; head is four more.
	for present := 0; present <= len(names); present++ {
		v := value.NewRecord("Bits", value.F("head", value.Int(0)))
		for _, n := range names[:present] {
			v.Fields[n] = value.Int(1)
		}
		data, back := roundTrip(t, m, user(fx, "Bits"), ir.FormatBinary, v)
		assert.Len(t, data, 2+present+4, "%d present", present)
		assert.True(t, value.Equal(v, back))
	}

	// Without the mask every optional carries its own presence byte.
	fx.Attrs.Set("Bits", "binary.bitmask", false)
	m = newMachine(fx, nil)
	data, err := m.Encode(user(fx, "Bits"), ir.FormatBinary, value.NewRecord("Bits", value.F("head", value.Int(0))))
	require.NoError(t, err)
	assert.Len(t, data, len(names)+4)
}

func TestVariantDispatchIsExhaustive(t *testing.T) {
	fx := testutil.Standard()
	m := newMachine(fx, nil)
	v := user(fx, "V")
	leaves := []value.Value{
		value.NewRecord("A", value.F("a", value.Int(-1))),
		value.NewRecord("B", value.F("b", value.String(""))),
	}

	for _, f := range []ir.Format{ir.FormatJSON, ir.FormatBinary, ir.FormatXML} {
		for _, leaf := range leaves {
			_, back := roundTrip(t, m, v, f, leaf)
			assert.True(t, value.Equal(leaf, back), "%s: %s", f, value.Format(back))
		}
	}

	// Only the declared discriminants decode.
	for b := range 256 {
		_, err := m.Decode(v, ir.FormatBinary, []byte{byte(b), 0, 0, 0, 0})
		switch b {
		case 1:
			assert.NoError(t, err)
		case 2:
			// B reads a zero-length string and leaves three bytes behind.
			var de *DecodeError
			assert.ErrorAs(t, err, &de)
		default:
			var de *DecodeError
			require.ErrorAs(t, err, &de, "discriminant %d", b)
			assert.Contains(t, de.Reason, fmt.Sprintf("unknown discriminant %d", b))
		}
	}
}

func overlapFixture() *testutil.Fixture {
	fx := testutil.Standard()
	fx.Graph.MustAdd(testutil.Union("Wide",
		&ir.Clause{Tag: "small", Type: testutil.Int32},
		&ir.Clause{Tag: "big", Type: testutil.Int64},
		&ir.Clause{Type: testutil.Int64},
	))
	fx.Enable([]string{"Wide"}, ir.FormatJSON, ir.FormatBinary, ir.FormatXML)
	return fx
}

func TestUnionPicksFirstMatchingClause(t *testing.T) {
	fx := overlapFixture()
	m := newMachine(fx, nil)
	wide := user(fx, "Wide")

	want := map[ir.Format]string{
		ir.FormatJSON: `{"small":5}`,
		ir.FormatXML:  `<Wide><small>5</small></Wide>`,
	}
	var wg sync.WaitGroup
	results := make([][]byte, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, err := m.Encode(wide, ir.FormatJSON, value.Int(5))
			assert.NoError(t, err)
			results[i] = data
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		assert.Equal(t, want[ir.FormatJSON], string(r))
	}

	data, err := m.Encode(wide, ir.FormatXML, value.Int(5))
	require.NoError(t, err)
	assert.Equal(t, want[ir.FormatXML], string(data))

	// Guards test shape only: a value too wide for the first integer
	// clause does not fall through to the next one.
	_, err = m.Encode(wide, ir.FormatBinary, value.Int(1<<40))
	var ee *EncodeError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, ee.Reason, "out of range for int32")

	// A bare number decodes through the untagged clause.
	got, err := m.Decode(wide, ir.FormatJSON, []byte(`7`))
	require.NoError(t, err)
	assert.Equal(t, value.Int(7), got)
}

func TestPatchFieldsAreIndependent(t *testing.T) {
	fx := testutil.Standard()
	m := newMachine(fx, nil)
	delta := user(fx, "Delta")

	counts := []value.Value{value.Unset{}, value.Int(0), value.Int(-3)}
	notes := []value.Value{value.Unset{}, value.Absent{}, value.String(""), value.String("n")}
	for _, f := range []ir.Format{ir.FormatJSON, ir.FormatBinary, ir.FormatXML} {
		for _, c := range counts {
			for _, n := range notes {
				v := value.NewRecord("Delta", value.F("count", c), value.F("note", n))
				_, back := roundTrip(t, m, delta, f, v)
				rec, ok := back.(*value.Record)
				require.True(t, ok)
				assert.True(t, value.Equal(c, rec.Get("count")), "%s count: %s", f, value.Format(back))
				assert.True(t, value.Equal(n, rec.Get("note")), "%s note: %s", f, value.Format(back))
			}
		}
	}
}

func TestPatchQueryParameters(t *testing.T) {
	fx := testutil.Standard()
	fx.Enable([]string{"Delta"}, ir.FormatQuery)
	m := newMachine(fx, nil)
	delta := user(fx, "Delta")

	data, back := roundTrip(t, m, delta, ir.FormatQuery,
		value.NewRecord("Delta", value.F("count", value.Unset{}), value.F("note", value.Absent{})))
	assert.Equal(t, "note=", string(data))
	rec := back.(*value.Record)
	assert.True(t, value.IsUnset(rec.Get("count")))
	assert.Equal(t, value.Value(value.Absent{}), rec.Fields["note"])

	data, back = roundTrip(t, m, delta, ir.FormatQuery,
		value.NewRecord("Delta", value.F("count", value.Int(4)), value.F("note", value.Unset{})))
	assert.Equal(t, "count=4", string(data))
	rec = back.(*value.Record)
	assert.Equal(t, value.Int(4), rec.Get("count"))
	assert.True(t, value.IsUnset(rec.Get("note")))
}

func TestIntegralFloatKeepsItsClause(t *testing.T) {
	fx := testutil.Standard()
	fx.Graph.MustAdd(testutil.Union("N",
		&ir.Clause{Type: testutil.Int32},
		&ir.Clause{Type: testutil.Float64},
	))
	fx.Enable([]string{"N"}, ir.FormatJSON, ir.FormatXML)
	m := newMachine(fx, nil)
	n := user(fx, "N")

	want := map[ir.Format]string{
		ir.FormatJSON: `2.0`,
		ir.FormatXML:  `<N>2.0</N>`,
	}
	for f, w := range want {
		data, back := roundTrip(t, m, n, f, value.Float(2))
		assert.Equal(t, w, string(data))
		assert.Equal(t, value.Float(2), back, "%s", f)

		_, back = roundTrip(t, m, n, f, value.Int(2))
		assert.Equal(t, value.Int(2), back, "%s", f)
	}
}
