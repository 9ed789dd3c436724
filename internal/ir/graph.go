package ir

import "fmt"

// Graph is the set of declarations of one compilation, in declaration order.
// A Graph is immutable once handed to resolution.
type Graph struct {
	forms  []*Form
	byName map[string]*Form
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{byName: make(map[string]*Form)}
}

// Add registers a form. Names must be unique.
func (g *Graph) Add(f *Form) error {
	if _, dup := g.byName[f.Name]; dup {
		return fmt.Errorf("duplicate declaration %q", f.Name)
	}
	g.forms = append(g.forms, f)
	g.byName[f.Name] = f
	return nil
}

// MustAdd registers forms and panics on duplicates. Intended for fixtures.
func (g *Graph) MustAdd(forms ...*Form) *Graph {
	for _, f := range forms {
		if err := g.Add(f); err != nil {
			panic(err)
		}
	}
	return g
}

// Lookup finds a form by name.
func (g *Graph) Lookup(name string) *Form {
	return g.byName[name]
}

// Forms returns all forms in declaration order.
// The returned slice must not be modified.
func (g *Graph) Forms() []*Form {
	return g.forms
}

// Len returns the number of declarations.
func (g *Graph) Len() int {
	return len(g.forms)
}
