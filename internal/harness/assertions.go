package harness

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/value"
	"github.com/roach88/idlc/internal/wire"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Format   string
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Format != "" {
		fmt.Fprintf(&buf, " (%s)", e.Format)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s\n", e.Expected, e.Actual)
	return buf.String()
}

// checker evaluates checks for one type and value.
type checker struct {
	m   *wire.Machine
	typ ir.Type
	v   value.Value
}

// expectEncoding encodes the value in d's format, compares it to d when d
// carries content, and decodes it back.
func (c *checker) expectEncoding(d Document) ([]byte, error) {
	f, err := ir.ParseFormat(d.Format)
	if err != nil {
		return nil, err
	}
	got, err := c.m.Encode(c.typ, f, c.v)
	if err != nil {
		return nil, &AssertionError{
			Type:     "encode",
			Format:   d.Format,
			Expected: "value encodes",
			Actual:   err.Error(),
		}
	}
	if d.HasContent() {
		want, err := d.Bytes()
		if err != nil {
			return got, err
		}
		if !bytes.Equal(got, want) {
			return got, &AssertionError{
				Type:     "encoding",
				Format:   d.Format,
				Expected: render(d.Format, want),
				Actual:   render(d.Format, got),
			}
		}
	}
	return got, c.decodesBack(f, got)
}

func (c *checker) decodesBack(f ir.Format, data []byte) error {
	back, err := c.m.Decode(c.typ, f, data)
	if err != nil {
		return &AssertionError{
			Type:     AssertRoundTrip,
			Format:   string(f),
			Expected: "encoding decodes",
			Actual:   err.Error(),
		}
	}
	if !value.Equal(c.v, back) {
		return &AssertionError{
			Type:     AssertRoundTrip,
			Format:   string(f),
			Expected: value.Format(c.v),
			Actual:   value.Format(back),
		}
	}
	return nil
}

// assertRoundTrip checks that the value survives every listed format.
func (c *checker) assertRoundTrip(a Assertion) error {
	for _, name := range a.Formats {
		f, err := ir.ParseFormat(name)
		if err != nil {
			return err
		}
		data, err := c.m.Encode(c.typ, f, c.v)
		if err != nil {
			return &AssertionError{Type: AssertRoundTrip, Format: name, Expected: "value encodes", Actual: err.Error()}
		}
		if err := c.decodesBack(f, data); err != nil {
			return err
		}
	}
	return nil
}

// assertStable checks that encoding is deterministic.
func (c *checker) assertStable(a Assertion) error {
	for _, name := range a.Formats {
		f, err := ir.ParseFormat(name)
		if err != nil {
			return err
		}
		first, err := c.m.Encode(c.typ, f, c.v)
		if err != nil {
			return &AssertionError{Type: AssertStable, Format: name, Expected: "value encodes", Actual: err.Error()}
		}
		second, err := c.m.Encode(c.typ, f, c.v)
		if err != nil {
			return &AssertionError{Type: AssertStable, Format: name, Expected: "value encodes", Actual: err.Error()}
		}
		if !bytes.Equal(first, second) {
			return &AssertionError{
				Type:     AssertStable,
				Format:   name,
				Expected: render(name, first),
				Actual:   render(name, second),
			}
		}
	}
	return nil
}

// assertDecodeError checks that malformed data is rejected with a
// *wire.DecodeError mentioning the expected message.
func (c *checker) assertDecodeError(a Assertion) error {
	f, err := ir.ParseFormat(a.Format)
	if err != nil {
		return err
	}
	data := []byte(a.Data)
	if a.Hex != "" {
		if data, err = hex.DecodeString(a.Hex); err != nil {
			return err
		}
	}

	v, err := c.m.Decode(c.typ, f, data)
	if err == nil {
		return &AssertionError{
			Type:     AssertDecodeError,
			Format:   a.Format,
			Expected: fmt.Sprintf("error containing %q", a.Message),
			Actual:   "decoded " + value.Format(v),
		}
	}
	var de *wire.DecodeError
	if !errors.As(err, &de) {
		return &AssertionError{
			Type:     AssertDecodeError,
			Format:   a.Format,
			Expected: "a decode error",
			Actual:   fmt.Sprintf("%T: %v", err, err),
		}
	}
	if !strings.Contains(de.Error(), a.Message) {
		return &AssertionError{
			Type:     AssertDecodeError,
			Format:   a.Format,
			Expected: fmt.Sprintf("error containing %q", a.Message),
			Actual:   de.Error(),
		}
	}
	return nil
}

// EvaluateAssertions runs every assertion and returns the failure messages.
// Returns an empty slice (not nil) if all assertions pass.
func (c *checker) EvaluateAssertions(assertions []Assertion) []string {
	errs := []string{}
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertRoundTrip:
			err = c.assertRoundTrip(a)
		case AssertStable:
			err = c.assertStable(a)
		case AssertDecodeError:
			err = c.assertDecodeError(a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
