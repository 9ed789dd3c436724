package harness

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/idlc/internal/ir"
)

// Scenario defines a round-trip scenario.
// A scenario decodes one input document into a value, then checks how that
// value encodes in other formats and that every encoding decodes back to it.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the path to the CUE schema (file or directory).
	// Relative paths are resolved from the scenario file location.
	// May be empty when the harness is given a schema directly.
	Schema string `yaml:"schema,omitempty"`

	// Type is the type expression under test (e.g. "Point", "list<?string>").
	Type string `yaml:"type"`

	// Input is the document the value is read from.
	Input Document `yaml:"input"`

	// Expect lists the encodings to check. A document without data or hex
	// is only round-tripped.
	Expect []Document `yaml:"expect"`

	// Assertions are additional checks on the type.
	// Supported types: round_trip, decode_error, stable
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Document is one encoded form of a value.
type Document struct {
	// Format is the wire format name (json, binary, xml, query, form, uri, string).
	Format string `yaml:"format"`

	// Data is the encoded text.
	Data string `yaml:"data,omitempty"`

	// Hex is the encoding as hex digits. Used for binary.
	Hex string `yaml:"hex,omitempty"`
}

// Bytes returns the document contents, decoding Hex when set.
func (d Document) Bytes() ([]byte, error) {
	if d.Hex != "" {
		b, err := hex.DecodeString(d.Hex)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid hex: %w", d.Format, err)
		}
		return b, nil
	}
	return []byte(d.Data), nil
}

// HasContent reports whether the document carries an expected encoding.
func (d Document) HasContent() bool {
	return d.Data != "" || d.Hex != ""
}

// Assertion is an extra check run after the expectations.
type Assertion struct {
	// Type specifies the assertion type:
	// - "round_trip": the input value survives encode/decode in every listed format
	// - "decode_error": decoding Input-like data fails with Message
	// - "stable": encoding the value twice yields identical bytes
	Type string `yaml:"type"`

	// Formats lists the formats to check (round_trip, stable).
	Formats []string `yaml:"formats,omitempty"`

	// Format is the format of Data or Hex (decode_error).
	Format string `yaml:"format,omitempty"`

	// Data is the malformed document (decode_error).
	Data string `yaml:"data,omitempty"`

	// Hex is the malformed document as hex digits (decode_error).
	Hex string `yaml:"hex,omitempty"`

	// Message must appear in the decode error (decode_error).
	Message string `yaml:"message,omitempty"`
}

// Assertion type constants.
const (
	AssertRoundTrip   = "round_trip"
	AssertDecodeError = "decode_error"
	AssertStable      = "stable"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative schema path is resolved from the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}
	if scenario.Schema != "" {
		if _, err := os.Stat(scenario.Schema); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: schema not found: %s", scenario.Schema)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Type == "" {
		return fmt.Errorf("type is required")
	}
	if err := validateDocument("input", s.Input, true); err != nil {
		return err
	}
	if len(s.Expect) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}
	for i, d := range s.Expect {
		if err := validateDocument(fmt.Sprintf("expect[%d]", i), d, false); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateDocument(where string, d Document, needContent bool) error {
	if d.Format == "" {
		return fmt.Errorf("%s: format is required", where)
	}
	if _, err := ir.ParseFormat(d.Format); err != nil {
		return fmt.Errorf("%s: %w", where, err)
	}
	if d.Data != "" && d.Hex != "" {
		return fmt.Errorf("%s: data and hex are exclusive", where)
	}
	if needContent && !d.HasContent() {
		return fmt.Errorf("%s: data or hex is required", where)
	}
	if _, err := d.Bytes(); err != nil {
		return fmt.Errorf("%s: %w", where, err)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRoundTrip, AssertStable:
		if len(a.Formats) == 0 {
			return fmt.Errorf("assertions[%d]: formats list is required for %s", index, a.Type)
		}
		for _, f := range a.Formats {
			if _, err := ir.ParseFormat(f); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertDecodeError:
		if a.Format == "" {
			return fmt.Errorf("assertions[%d]: format is required for decode_error", index)
		}
		if _, err := ir.ParseFormat(a.Format); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Message == "" {
			return fmt.Errorf("assertions[%d]: message is required for decode_error", index)
		}
		if a.Hex != "" {
			if _, err := hex.DecodeString(a.Hex); err != nil {
				return fmt.Errorf("assertions[%d]: invalid hex: %w", index, err)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
