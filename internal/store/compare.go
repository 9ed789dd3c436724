package store

import (
	"context"
	"fmt"
	"sort"
)

// Change is one routine whose description differs between two runs.
type Change struct {
	Key  string `json:"key"`
	Base string `json:"base_digest"`
	Head string `json:"head_digest"`
}

// Comparison lists the routine differences between two runs. Keys are
// "<target>/<routine name>" and every list is sorted.
type Comparison struct {
	Base    string   `json:"base"`
	Head    string   `json:"head"`
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Changed []Change `json:"changed"`
}

// Identical reports whether both runs produced the same routines.
func (c *Comparison) Identical() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

// CompareRuns diffs the routines of two runs by digest. Generation is
// deterministic, so two runs over the same schema digest with the same
// generator version must compare identical.
func (s *Store) CompareRuns(ctx context.Context, base, head string) (*Comparison, error) {
	for _, id := range []string{base, head} {
		if _, err := s.ReadRun(ctx, id); err != nil {
			return nil, fmt.Errorf("compare runs: %w", err)
		}
	}
	baseRows, err := s.ReadRoutines(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("compare runs: %w", err)
	}
	headRows, err := s.ReadRoutines(ctx, head)
	if err != nil {
		return nil, fmt.Errorf("compare runs: %w", err)
	}

	before := make(map[string]string, len(baseRows))
	for _, r := range baseRows {
		before[r.Key()] = r.Digest
	}

	c := &Comparison{Base: base, Head: head, Added: []string{}, Removed: []string{}, Changed: []Change{}}
	seen := make(map[string]bool, len(headRows))
	for _, r := range headRows {
		k := r.Key()
		seen[k] = true
		prev, ok := before[k]
		switch {
		case !ok:
			c.Added = append(c.Added, k)
		case prev != r.Digest:
			c.Changed = append(c.Changed, Change{Key: k, Base: prev, Head: r.Digest})
		}
	}
	for _, r := range baseRows {
		if !seen[r.Key()] {
			c.Removed = append(c.Removed, r.Key())
		}
	}

	sort.Strings(c.Added)
	sort.Strings(c.Removed)
	sort.Slice(c.Changed, func(i, j int) bool { return c.Changed[i].Key < c.Changed[j].Key })
	return c, nil
}
