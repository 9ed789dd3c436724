package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const validScenario = `
name: point
description: Point round trip
type: Point
input:
  format: json
  data: '{"x":1,"y":2}'
expect:
  - format: binary
    hex: "0100000002000000"
  - format: xml
assertions:
  - type: decode_error
    format: json
    data: '{}'
    message: missing required field
`

func TestParseScenario_Valid(t *testing.T) {
	s, err := ParseScenario([]byte(validScenario))
	require.NoError(t, err)

	assert.Equal(t, "point", s.Name)
	assert.Equal(t, "Point", s.Type)
	assert.Equal(t, Document{Format: "json", Data: `{"x":1,"y":2}`}, s.Input)
	require.Len(t, s.Expect, 2)
	assert.True(t, s.Expect[0].HasContent())
	assert.False(t, s.Expect[1].HasContent())

	b, err := s.Expect[0].Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 2, 0, 0, 0}, b)

	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertDecodeError, s.Assertions[0].Type)
}

func TestParseScenario_UnknownFieldRejected(t *testing.T) {
	_, err := ParseScenario([]byte(validScenario + "expects: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", `
description: d
type: Point
input: {format: json, data: '{}'}
expect: [{format: json}]`, "name is required"},
		{"missing description", `
name: n
type: Point
input: {format: json, data: '{}'}
expect: [{format: json}]`, "description is required"},
		{"missing type", `
name: n
description: d
input: {format: json, data: '{}'}
expect: [{format: json}]`, "type is required"},
		{"input without data", `
name: n
description: d
type: Point
input: {format: json}
expect: [{format: json}]`, "input: data or hex is required"},
		{"unknown input format", `
name: n
description: d
type: Point
input: {format: yaml, data: 'x'}
expect: [{format: json}]`, `unknown format "yaml"`},
		{"nothing to check", `
name: n
description: d
type: Point
input: {format: json, data: '{}'}`, "expect or assertions is required"},
		{"data and hex", `
name: n
description: d
type: Point
input: {format: json, data: '{}'}
expect: [{format: binary, data: 'x', hex: '00'}]`, "expect[0]: data and hex are exclusive"},
		{"bad hex", `
name: n
description: d
type: Point
input: {format: binary, hex: 'zz'}
expect: [{format: json}]`, "invalid hex"},
		{"unknown assertion", `
name: n
description: d
type: Point
input: {format: json, data: '{}'}
assertions: [{type: trace_order}]`, `unknown assertion type "trace_order"`},
		{"round trip without formats", `
name: n
description: d
type: Point
input: {format: json, data: '{}'}
assertions: [{type: round_trip}]`, "formats list is required for round_trip"},
		{"decode error without message", `
name: n
description: d
type: Point
input: {format: json, data: '{}'}
assertions: [{type: decode_error, format: json}]`, "message is required"},
		{"stable with bad format", `
name: n
description: d
type: Point
input: {format: json, data: '{}'}
assertions: [{type: stable, formats: [protobuf]}]`, `unknown format "protobuf"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_ResolvesSchemaPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "schema.cue"), `record: P: {fields: {x: "int32"}, attrs: {json: true}}`)
	path := filepath.Join(dir, "s.yaml")
	writeFile(t, path, validScenario+"schema: schema.cue\n")

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "schema.cue"), s.Schema)
}

func TestLoadScenario_MissingSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	writeFile(t, path, validScenario+"schema: nowhere.cue\n")

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema not found")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
