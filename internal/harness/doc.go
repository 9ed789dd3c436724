// Package harness runs round-trip scenarios against a compiled schema.
//
// A scenario decodes an input document into a value with the runtime
// interpreter, then checks how the value encodes in other formats and that
// each encoding decodes back to an equal value.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: point_formats
//	description: "Point encodes the same way in every enabled format"
//	schema: ../schema        # optional, relative to the scenario file
//	type: Point              # any type expression
//	input:
//	  format: json
//	  data: '{"x":3,"y":-4}'
//	expect:
//	  - format: xml
//	    data: '<Point><x>3</x><y>-4</y></Point>'
//	  - format: binary
//	    hex: "03000000fcffffff"
//	  - format: query        # no data: round trip only
//	assertions:
//	  - type: decode_error
//	    format: json
//	    data: '{"x":3}'
//	    message: missing required field
//
// # Assertion Types
//
//   - round_trip: the value survives encode and decode in every listed format
//   - decode_error: malformed data fails with a *wire.DecodeError containing message
//   - stable: encoding twice yields identical bytes
//
// # Golden Files
//
// RunWithGolden snapshots the decoded value and every produced encoding
// under testdata/golden, so wire layout changes show up as diffs.
package harness
