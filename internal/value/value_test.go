package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualScalars(t *testing.T) {
	assert.True(t, Equal(Int(3), Int(3)))
	assert.False(t, Equal(Int(3), Float(3)))
	assert.True(t, Equal(Float(math.NaN()), Float(math.NaN())))
	assert.True(t, Equal(Bytes{1, 2}, Bytes{1, 2}))
	assert.False(t, Equal(String("a"), Atom("a")))
}

func TestEqualSentinelsAreDistinct(t *testing.T) {
	assert.False(t, Equal(Absent{}, Unset{}))
	assert.False(t, Equal(Unset{}, Int(0)))
	assert.False(t, Equal(Absent{}, String("")))
	assert.True(t, Equal(Unset{}, Unset{}))
}

func TestEqualRecordTreatsMissingAsAbsent(t *testing.T) {
	a := NewRecord("R", F("id", Int(1)), F("name", Absent{}))
	b := NewRecord("R", F("id", Int(1)))
	assert.True(t, Equal(a, b))
	assert.True(t, Equal(b, a))

	c := NewRecord("R", F("id", Int(1)), F("name", Unset{}))
	assert.False(t, Equal(b, c))
}

func TestEqualRecordComparesType(t *testing.T) {
	assert.False(t, Equal(NewRecord("A"), NewRecord("B")))
}

func TestEqualDictIsOrdered(t *testing.T) {
	a := Dict{{Key: String("x"), Value: Int(1)}, {Key: String("y"), Value: Int(2)}}
	b := Dict{{Key: String("y"), Value: Int(2)}, {Key: String("x"), Value: Int(1)}}
	assert.True(t, Equal(a, a))
	assert.False(t, Equal(a, b))
}

func TestFormat(t *testing.T) {
	r := NewRecord("R", F("id", Int(1)), F("tags", List{Atom("a"), String("b")}))
	assert.Equal(t, `R{id: 1, tags: [#a, "b"]}`, Format(r))
}
