package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/idlc/internal/ir"
)

// Cycle is a strongly connected group of declarations.
type Cycle struct {
	Path    []string `json:"path"` // ["A", "B", "A"]
	Message string   `json:"message"`
}

// AliasCycles finds defines and variants that contain themselves. Resolving
// such a form never terminates, so these are schema errors.
//
// Edges:
//   - define -> every define its target mentions, at any depth
//   - variant -> nested variant descendants
func AliasCycles(g *ir.Graph) []Cycle {
	graph := make(dependencyGraph)
	for _, f := range g.Forms() {
		switch b := f.Body.(type) {
		case *ir.Define:
			graph.node(f.Name)
			walkForms(b.Target, func(target *ir.Form) {
				if target.Kind() == ir.KindDefine {
					graph.edge(f.Name, target.Name)
				}
			})
		case *ir.Variant:
			graph.node(f.Name)
			for _, d := range b.Descendants {
				if d.Kind() == ir.KindVariant {
					graph.edge(f.Name, d.Name)
				}
			}
		}
	}
	return findCycles(graph, "alias cycle")
}

// ContainmentCycles finds records that require a value of their own type
// through required fields. No finite value of such a record exists. They
// are reported as warnings: generated routines are still well formed.
//
// Only required, non-container fields add edges; optional fields, lists
// and dicts break the chain.
func ContainmentCycles(g *ir.Graph) []Cycle {
	graph := make(dependencyGraph)
	for _, f := range g.Forms() {
		r := f.Record()
		if r == nil {
			continue
		}
		graph.node(f.Name)
		for _, rf := range r.Fields {
			for _, target := range requiredForms(rf.Type, map[*ir.Form]bool{}) {
				graph.edge(f.Name, target)
			}
		}
	}
	return findCycles(graph, "record contains itself")
}

// requiredForms returns the records a value of t must contain.
func requiredForms(t ir.Type, seen map[*ir.Form]bool) []string {
	f := formOf(t)
	if f == nil || seen[f] {
		return nil
	}
	seen[f] = true
	switch b := f.Body.(type) {
	case *ir.Record:
		return []string{f.Name}
	case *ir.Define:
		return requiredForms(b.Target, seen)
	case *ir.Variant:
		// Every alternative must contain the record for the chain to hold.
		leaves := recordLeaves(b, map[*ir.Variant]bool{})
		if len(leaves) == 1 {
			return []string{leaves[0].Name}
		}
	}
	return nil
}

// walkForms calls fn for every form mentioned in t.
func walkForms(t ir.Type, fn func(*ir.Form)) {
	switch x := t.(type) {
	case ir.UserType:
		fn(x.Form)
	case ir.GenericInstance:
		fn(x.Form)
		for _, a := range x.Args {
			walkForms(a, fn)
		}
	case ir.Optional:
		walkForms(x.Item, fn)
	case ir.List:
		walkForms(x.Item, fn)
	case ir.Flags:
		walkForms(x.Item, fn)
	case ir.Dict:
		walkForms(x.Key, fn)
		walkForms(x.Value, fn)
	case ir.OneOf:
		for _, it := range x.Items {
			walkForms(it, fn)
		}
	}
}

func formOf(t ir.Type) *ir.Form {
	switch x := t.(type) {
	case ir.UserType:
		return x.Form
	case ir.GenericInstance:
		return x.Form
	}
	return nil
}

// dependencyGraph maps a declaration to the declarations it depends on.
type dependencyGraph map[string][]string

func (g dependencyGraph) node(n string) {
	if g[n] == nil {
		g[n] = []string{}
	}
}

func (g dependencyGraph) edge(from, to string) {
	g.node(from)
	g.node(to)
	g[from] = append(g[from], to)
}

func findCycles(graph dependencyGraph, what string) []Cycle {
	var cycles []Cycle
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			path := reconstructCyclePath(scc, graph)
			cycles = append(cycles, Cycle{
				Path:    path,
				Message: fmt.Sprintf("%s: %s", what, strings.Join(path, " -> ")),
			})
		}
	}
	slices.SortFunc(cycles, func(a, b Cycle) int { return strings.Compare(a.Path[0], b.Path[0]) })
	return cycles
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so the result is deterministic.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	for _, n := range nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

// reconstructCyclePath walks edges inside the component from its first
// member until it returns there.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 1 {
		return []string{scc[0], scc[0]}
	}
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true
		var next string
		for _, w := range graph[current] {
			if members[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
