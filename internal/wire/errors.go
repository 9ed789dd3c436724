package wire

import (
	"fmt"

	"github.com/roach88/idlc/internal/ir"
)

// DecodeError reports malformed or unexpected wire data: an unknown
// discriminant, a missing required field, a type mismatch, truncated input.
type DecodeError struct {
	Format ir.Format
	Path   string
	Reason string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("decode %s: %s", e.Format, e.Reason)
	}
	return fmt.Sprintf("decode %s: %s: %s", e.Format, e.Path, e.Reason)
}

// EncodeError reports a value that does not fit the tag it is written with.
type EncodeError struct {
	Format ir.Format
	Path   string
	Reason string
}

// Error implements the error interface.
func (e *EncodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("encode %s: %s", e.Format, e.Reason)
	}
	return fmt.Sprintf("encode %s: %s: %s", e.Format, e.Path, e.Reason)
}

func decodeErr(f ir.Format, path, format string, args ...any) *DecodeError {
	return &DecodeError{Format: f, Path: path, Reason: fmt.Sprintf(format, args...)}
}

func encodeErr(f ir.Format, path, format string, args ...any) *EncodeError {
	return &EncodeError{Format: f, Path: path, Reason: fmt.Sprintf(format, args...)}
}

func join(path, elem string) string {
	if path == "" {
		return elem
	}
	return path + "." + elem
}

func index(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
