package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idlc/internal/attr"
	"github.com/roach88/idlc/internal/diag"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateStandardSchema(t *testing.T) {
	s := standardSchema(t)
	assert.Empty(t, Validate(s))
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		code  string
		field string
		msg   string
	}{
		{
			name:  "duplicate enum value",
			src:   `enum: E: {values: {a: 1, b: 1}}`,
			code:  ErrDuplicateEnumValue,
			field: "E.b",
			msg:   "value 1 already used by a",
		},
		{
			name:  "enum value above backing",
			src:   `enum: E: {backing: "uint8", values: {a: 256}}`,
			code:  ErrEnumRange,
			field: "E.a",
			msg:   "value 256 does not fit uint8",
		},
		{
			name:  "negative enum value on unsigned backing",
			src:   `enum: E: {backing: "uint16", values: {a: -1}}`,
			code:  ErrEnumRange,
			field: "E.a",
		},
		{
			name:  "enum value below signed backing",
			src:   `enum: E: {backing: "int8", values: {a: -129}}`,
			code:  ErrEnumRange,
			field: "E.a",
		},
		{
			name: "enum descendant",
			src: `
				enum: E: {values: {a: 1}}
				variant: V: {descendants: ["E"]}
			`,
			code:  ErrInvalidDescendant,
			field: "V.descendants",
			msg:   "enum E cannot be a variant descendant",
		},
		{
			name: "generic descendant",
			src: `
				record: G: {params: ["T"], fields: {kind: {type: "uint8", tag: true, default: 1}, v: "T"}}
				variant: V: {descendants: ["G"]}
			`,
			code:  ErrInvalidDescendant,
			field: "V.descendants",
			msg:   "generic G cannot be a variant descendant",
		},
		{
			name: "descendant without tag field",
			src: `
				record: A: {fields: {a: "int32"}}
				variant: V: {descendants: ["A"]}
			`,
			code:  ErrDiscriminant,
			field: "A",
			msg:   "descendant of V has no tag field",
		},
		{
			name: "tag field names differ",
			src: `
				record: A: {fields: {kind: {type: "uint8", tag: true, default: 1}}}
				record: B: {fields: {type: {type: "uint8", tag: true, default: 2}}}
				variant: V: {descendants: ["A", "B"]}
			`,
			code:  ErrDiscriminant,
			field: "B.type",
			msg:   `tag field "type" differs from "kind"`,
		},
		{
			name: "duplicate discriminant through nested variant",
			src: `
				record: A: {fields: {kind: {type: "uint8", tag: true, default: 1}}}
				record: B: {fields: {kind: {type: "uint8", tag: true, default: 1}}}
				variant: Inner: {descendants: ["B"]}
				variant: Outer: {descendants: ["A", "Inner"]}
			`,
			code:  ErrDiscriminant,
			field: "B.kind",
			msg:   "discriminant 1 already used by A",
		},
		{
			name:  "duplicate clause tag",
			src:   `union: U: {clauses: [{tag: "a"}, {tag: "a", type: "int32"}]}`,
			code:  ErrDuplicateName,
			field: "U.clauses[1]",
			msg:   `duplicate clause tag "a"`,
		},
		{
			name:  "tag field outside a variant",
			src:   `record: A: {fields: {kind: {type: "uint8", tag: true, default: 1}}}`,
			code:  ErrTagField,
			field: "A.kind",
			msg:   "not a variant descendant",
		},
		{
			name: "optional tag field",
			src: `
				record: A: {fields: {kind: {type: "?uint8", tag: true, default: 1}}}
				variant: V: {descendants: ["A"]}
			`,
			code:  ErrTagField,
			field: "A.kind",
			msg:   "tag field cannot be optional",
		},
		{
			name: "two tag fields",
			src: `
				record: A: {fields: {
					kind: {type: "uint8", tag: true, default: 1}
					sort: {type: "uint8", tag: true, default: 1}
				}}
				variant: V: {descendants: ["A"]}
			`,
			code:  ErrTagField,
			field: "A",
			msg:   "record declares 2 tag fields",
		},
		{
			name:  "flags over integers",
			src:   `define: F: {target: "flags<int32>"}`,
			code:  ErrFlagsItem,
			field: "F.target",
			msg:   "flags item int32 is not an enum",
		},
		{
			name: "dict keyed by a record",
			src: `
				record: P: {fields: {x: "int32"}}
				record: R: {fields: {m: "list<dict<P, int32>>"}}
			`,
			code:  ErrDictKey,
			field: "R.m",
			msg:   "dict key P is not a scalar",
		},
		{
			name:  "dict key inside a union clause",
			src:   `union: U: {clauses: [{tag: "m", type: "dict<float, int32>"}]}`,
			code:  ErrDictKey,
			field: "U.clauses[0]",
		},
		{
			name:  "default on required field",
			src:   `record: R: {fields: {x: {type: "int32", default: 1}}}`,
			code:  ErrRequiredDefault,
			field: "R.x",
		},
		{
			name: "alias cycle",
			src: `
				define: A: {target: "B"}
				define: B: {target: "list<A>"}
			`,
			code:  ErrAliasCycle,
			field: "A",
			msg:   "alias cycle: A -> B -> A",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(mustCompile(t, tt.src))
			require.NotEmpty(t, errs)
			var found *ValidationError
			for i := range errs {
				if errs[i].Code == tt.code && errs[i].Field == tt.field {
					found = &errs[i]
					break
				}
			}
			require.NotNil(t, found, "want %s on %s, got %v", tt.code, tt.field, errs)
			assert.Contains(t, found.Message, tt.msg)
			assert.Positive(t, found.Line)
		})
	}
}

func TestValidateAcceptsScalarDictKeys(t *testing.T) {
	s := mustCompile(t, `
		enum: E: {values: {a: 1}}
		define: Id: {target: "string"}
		record: R: {
			params: ["K"]
			fields: {
				a: "dict<E, int32>"
				b: "dict<Id, int32>"
				c: "dict<atom, bool>"
				d: "dict<uint8, string>"
				e: "dict<K, string>"
				f: "flags<E>"
			}
		}
	`)
	assert.Empty(t, Validate(s))
}

func TestValidateReportsEveryError(t *testing.T) {
	s := mustCompile(t, `
		enum: E: {backing: "uint8", values: {a: 1, b: 1, c: 300}}
		union: U: {clauses: [{tag: "x"}, {tag: "x"}]}
		define: F: {target: "flags<string>"}
	`)
	assert.Equal(t, []string{ErrDuplicateEnumValue, ErrEnumRange, ErrDuplicateName, ErrFlagsItem}, codes(Validate(s)))
}

func TestValidateSkipsCyclicForms(t *testing.T) {
	// The inner variant cycle would otherwise recurse through leaf checks.
	s := mustCompile(t, `
		variant: P: {descendants: ["Q"]}
		variant: Q: {descendants: ["P"]}
		define: D: {target: "dict<D, int32>"}
	`)
	assert.Equal(t, []string{ErrAliasCycle, ErrAliasCycle}, codes(Validate(s)))
}

func TestValidationErrorFormat(t *testing.T) {
	assert.Equal(t, "[E101] line 3: E.b: dup",
		ValidationError{Field: "E.b", Message: "dup", Code: ErrDuplicateEnumValue, Line: 3}.Error())
	assert.Equal(t, "[E107] A: cycle",
		ValidationError{Field: "A", Message: "cycle", Code: ErrAliasCycle}.Error())
}

func TestLintAttributes(t *testing.T) {
	s := mustCompile(t, `
		record: R: {
			fields: {
				id: {type: "int64", attrs: {"json.name": "ID"}}
			}
			attrs: {json: true, "json.bogus": true, yaml: true}
		}
	`)
	overlay := attr.NewTable().
		Set("Ghost", "json", true).
		Set("R.id", "binary.bitmask", false)

	sink := diag.NewSink(0)
	Lint(s.Graph, sink, s.Attrs, overlay)

	type hit struct {
		code diag.Code
		decl string
	}
	var got []hit
	for _, d := range sink.Diagnostics() {
		assert.Equal(t, diag.SeverityWarning, d.Severity)
		got = append(got, hit{d.Code, d.Decl})
	}
	assert.ElementsMatch(t, []hit{
		{diag.CodeUnknownAttribute, "R"},
		{diag.CodeUnknownAttribute, "R"},
		{diag.CodeDeprecatedAttr, "R.id"},
		{diag.CodeUnknownAttribute, ""},
	}, got)
	assert.False(t, sink.HasErrors())

	var messages []string
	for _, d := range sink.Diagnostics() {
		messages = append(messages, d.Message)
	}
	assert.Contains(t, messages, `attribute "json.name" on R.id is deprecated, use "json.key"`)
	assert.Contains(t, messages, `attributes attached to "Ghost", which names no declaration`)
	assert.Contains(t, messages, `unknown attribute "yaml" on R`)
}

func TestLintRecursiveRecords(t *testing.T) {
	s := mustCompile(t, `
		record: Node: {fields: {next: "Node", label: "string"}}
		record: List: {fields: {next: "?List", items: "list<List>"}}
	`)
	sink := diag.NewSink(0)
	Lint(s.Graph, sink)
	diags := sink.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, diag.CodeRecursiveRecord, diags[0].Code)
	assert.Equal(t, "Node", diags[0].Decl)
	assert.Equal(t, "record contains itself: Node -> Node", diags[0].Message)
}

func TestLintStandardSchemaIsClean(t *testing.T) {
	s := standardSchema(t)
	sink := diag.NewSink(0)
	Lint(s.Graph, sink, s.Attrs)
	assert.Empty(t, sink.Diagnostics())
}
