package tag

import (
	"fmt"

	"github.com/roach88/idlc/internal/ir"
)

// PrimKind enumerates fixed-width numeric encodings.
type PrimKind int

const (
	Int8 PrimKind = iota
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
)

var primNames = [...]string{
	"int8", "int16", "int32", "int64",
	"uint8", "uint16", "uint32", "uint64",
	"float32", "float64",
}

func (p PrimKind) String() string {
	if int(p) < len(primNames) {
		return primNames[p]
	}
	return fmt.Sprintf("PrimKind(%d)", int(p))
}

// Size returns the encoded width in bytes.
func (p PrimKind) Size() int {
	switch p {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	default:
		return 8
	}
}

// IsFloat reports whether p is a floating point kind.
func (p PrimKind) IsFloat() bool {
	return p == Float32 || p == Float64
}

// IsSigned reports whether p is a signed integer kind.
func (p PrimKind) IsSigned() bool {
	return p <= Int64
}

// PrimForInteger maps an integer builtin to its PrimKind.
func PrimForInteger(t ir.Integer) (PrimKind, error) {
	base := Uint8
	if t.Signed {
		base = Int8
	}
	switch t.Width {
	case 8:
		return base, nil
	case 16:
		return base + 1, nil
	case 32:
		return base + 2, nil
	case 64:
		return base + 3, nil
	}
	return 0, fmt.Errorf("unsupported integer width %d", t.Width)
}

// PrimForFloat maps a float builtin to its PrimKind.
func PrimForFloat(t ir.Float) (PrimKind, error) {
	switch t.Width {
	case 32:
		return Float32, nil
	case 64:
		return Float64, nil
	}
	return 0, fmt.Errorf("unsupported float width %d", t.Width)
}
