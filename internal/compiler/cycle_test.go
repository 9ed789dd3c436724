package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idlc/internal/ir"
	"github.com/roach88/idlc/internal/testutil"
)

func paths(cycles []Cycle) [][]string {
	out := make([][]string, len(cycles))
	for i, c := range cycles {
		out[i] = c.Path
	}
	return out
}

func TestAliasCycles_None(t *testing.T) {
	assert.Empty(t, AliasCycles(testutil.Standard().Graph))
	assert.Empty(t, AliasCycles(ir.NewGraph()))
}

func TestAliasCycles_SelfLoop(t *testing.T) {
	s := mustCompile(t, `define: D: {target: "?list<D>"}`)
	cycles := AliasCycles(s.Graph)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"D", "D"}, cycles[0].Path)
	assert.Equal(t, "alias cycle: D -> D", cycles[0].Message)
}

func TestAliasCycles_ThroughGenericArguments(t *testing.T) {
	s := mustCompile(t, `
		record: Box: {params: ["T"], fields: {v: "T"}}
		define: A: {target: "Box<dict<string, B>>"}
		define: B: {target: "oneof<int32 | C>"}
		define: C: {target: "A"}
	`)
	assert.Equal(t, [][]string{{"A", "B", "C", "A"}}, paths(AliasCycles(s.Graph)))
}

func TestAliasCycles_Variants(t *testing.T) {
	s := mustCompile(t, `
		variant: P: {descendants: ["Q"]}
		variant: Q: {descendants: ["P"]}
		variant: Ok: {descendants: ["Leaf"]}
		record: Leaf: {fields: {kind: {type: "uint8", tag: true, default: 1}}}
	`)
	assert.Equal(t, [][]string{{"P", "Q", "P"}}, paths(AliasCycles(s.Graph)))
}

func TestAliasCycles_MultipleIndependentCycles(t *testing.T) {
	s := mustCompile(t, `
		define: Z: {target: "Y"}
		define: Y: {target: "Z"}
		define: B: {target: "A"}
		define: A: {target: "B"}
		define: Free: {target: "A"}
	`)
	// Sorted by first node; Free reaches a cycle but is not on it.
	assert.Equal(t, [][]string{{"A", "B", "A"}, {"Y", "Z", "Y"}}, paths(AliasCycles(s.Graph)))
}

func TestContainmentCycles(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want [][]string
	}{
		{
			name: "direct",
			src:  `record: N: {fields: {next: "N"}}`,
			want: [][]string{{"N", "N"}},
		},
		{
			name: "optional breaks the chain",
			src:  `record: N: {fields: {next: "?N"}}`,
		},
		{
			name: "containers break the chain",
			src:  `record: N: {fields: {kids: "list<N>", byName: "dict<string, N>", any: "oneof<N | int32>"}}`,
		},
		{
			name: "mutual",
			src: `
				record: A: {fields: {b: "B"}}
				record: B: {fields: {a: "A", n: "int32"}}
			`,
			want: [][]string{{"A", "B", "A"}},
		},
		{
			name: "through define",
			src: `
				define: Ref: {target: "N"}
				record: N: {fields: {r: "Ref"}}
			`,
			want: [][]string{{"N", "N"}},
		},
		{
			name: "through single-leaf variant",
			src: `
				variant: Tree: {descendants: ["Leaf"]}
				record: Leaf: {fields: {kind: {type: "uint8", tag: true, default: 1}, up: "Tree"}}
			`,
			want: [][]string{{"Leaf", "Leaf"}},
		},
		{
			name: "variant with an escape",
			src: `
				variant: Tree: {descendants: ["Leaf", "Stop"]}
				record: Leaf: {fields: {kind: {type: "uint8", tag: true, default: 1}, up: "Tree"}}
				record: Stop: {fields: {kind: {type: "uint8", tag: true, default: 2}}}
			`,
		},
		{
			name: "generic instance",
			src: `
				record: Box: {params: ["T"], fields: {v: "T", self: "Box<T>"}}
			`,
			want: [][]string{{"Box", "Box"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cycles := ContainmentCycles(mustCompile(t, tt.src).Graph)
			if tt.want == nil {
				assert.Empty(t, cycles)
				return
			}
			assert.Equal(t, tt.want, paths(cycles))
		})
	}
}

func TestTarjanSCC_Deterministic(t *testing.T) {
	graph := dependencyGraph{
		"c": {"a"},
		"a": {"b"},
		"b": {"c"},
		"d": {},
	}
	for range 20 {
		sccs := tarjanSCC(graph)
		assert.Equal(t, [][]string{{"a", "b", "c"}, {"d"}}, sccs)
	}
	assert.Equal(t, []string{"a", "b", "c", "a"}, reconstructCyclePath([]string{"a", "b", "c"}, graph))
}
