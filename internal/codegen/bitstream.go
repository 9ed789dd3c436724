package codegen

import (
	"github.com/roach88/idlc/internal/tag"
)

// BitStream accumulates the operations of a binary record routine.
// Consecutive ungated fixed-width fields collapse into one Batch; anything
// else (gated, variable-length or nested) is flushed as its own Field op.
//
// The same calls in write mode and read mode yield positionally identical
// sequences: batching groups operations, it never reorders or drops them.
type BitStream struct {
	mode    tag.Direction
	ops     []Op
	pending []Field
}

// NewBitStream creates a builder in write (tag.Pack) or read (tag.Parse)
// mode.
func NewBitStream(mode tag.Direction) *BitStream {
	return &BitStream{mode: mode}
}

// Mode returns the builder direction.
func (b *BitStream) Mode() tag.Direction { return b.mode }

// Bitmask emits the presence bitmask. It must precede every field.
func (b *BitStream) Bitmask(bm Bitmask) {
	b.flush()
	b.ops = append(b.ops, bm)
}

// Field adds one field.
func (b *BitStream) Field(f Field) {
	if !f.Gated() && tag.IsFixedWidth(f.Tag) {
		b.pending = append(b.pending, f)
		return
	}
	b.flush()
	b.ops = append(b.ops, f)
}

func (b *BitStream) flush() {
	switch len(b.pending) {
	case 0:
		return
	case 1:
		b.ops = append(b.ops, b.pending[0])
	default:
		batch := Batch{Fields: b.pending}
		for _, f := range b.pending {
			batch.Width += tag.FixedWidth(f.Tag)
		}
		b.ops = append(b.ops, batch)
	}
	b.pending = nil
}

// Ops flushes pending fields and returns the operation sequence.
func (b *BitStream) Ops() []Op {
	b.flush()
	return b.ops
}
