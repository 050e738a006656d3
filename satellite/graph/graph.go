// Package graph implements the in-memory typed multigraph from
// spec.md §4.2: node weights carry a resource variant, edge weights
// carry a relation type. All mutations are driven by the store via
// explicit insert calls inside a write transaction (satellite/store);
// the graph is never mutated independently of a corresponding store
// change, and a new generation is published atomically at commit so
// concurrent readers keep observing the generation current when their
// read began (spec.md §5).
package graph

import (
	"sync/atomic"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/store"
)

// Edge is one outbound or inbound adjacency entry.
type Edge struct {
	Node store.Idx
	Type resource.RelationType
}

// generation is an immutable snapshot of the graph. Graph.Publish
// swaps the pointer to a new generation atomically; readers that
// already hold a *generation keep seeing it regardless of later
// writes, matching spec.md §5's "readers hold shared references to the
// previous generation for the duration of their read."
type generation struct {
	variant map[store.Idx]resource.Variant
	out     map[store.Idx][]Edge
	in      map[store.Idx][]Edge
}

func newGeneration() *generation {
	return &generation{
		variant: make(map[store.Idx]resource.Variant),
		out:     make(map[store.Idx][]Edge),
		in:      make(map[store.Idx][]Edge),
	}
}

func (g *generation) clone() *generation {
	c := newGeneration()
	for k, v := range g.variant {
		c.variant[k] = v
	}
	for k, v := range g.out {
		c.out[k] = append([]Edge(nil), v...)
	}
	for k, v := range g.in {
		c.in[k] = append([]Edge(nil), v...)
	}
	return c
}

// Graph is the published, readable multigraph.
type Graph struct {
	gen atomic.Pointer[generation]
}

// New builds an empty graph.
func New() *Graph {
	g := &Graph{}
	g.gen.Store(newGeneration())
	return g
}

// Builder accumulates node/edge insertions against the generation
// current when Begin was called, for publishing as one atomic unit.
type Builder struct {
	g   *Graph
	gen *generation
}

// Begin starts a builder cloning the currently published generation.
// Call this inside the same write transaction that performs the
// corresponding store mutations.
func (g *Graph) Begin() *Builder {
	return &Builder{g: g, gen: g.gen.Load().clone()}
}

// InsertNode records idx's variant.
func (b *Builder) InsertNode(idx store.Idx, variant resource.Variant) {
	b.gen.variant[idx] = variant
}

// InsertEdge records an origin->target edge of the given type in both
// the outbound and inbound adjacency views.
func (b *Builder) InsertEdge(origin, target store.Idx, relType resource.RelationType) {
	b.gen.out[origin] = append(b.gen.out[origin], Edge{Node: target, Type: relType})
	b.gen.in[target] = append(b.gen.in[target], Edge{Node: origin, Type: relType})
}

// Publish atomically swaps the graph's current generation for the
// builder's, making every insertion visible to new readers at once.
func (b *Builder) Publish() {
	b.g.gen.Store(b.gen)
}

// snapshot returns the generation to read against.
func (g *Graph) snapshot() *generation {
	return g.gen.Load()
}

// Relations returns idx's edges in the given direction, optionally
// filtered to the given relation types (no filter if types is empty).
func (g *Graph) Relations(idx store.Idx, direction Direction, types ...resource.RelationType) []Edge {
	gen := g.snapshot()
	var all []Edge
	switch direction {
	case Outbound:
		all = gen.out[idx]
	case Inbound:
		all = gen.in[idx]
	}
	if len(types) == 0 {
		return append([]Edge(nil), all...)
	}
	var out []Edge
	for _, e := range all {
		if containsType(types, e.Type) {
			out = append(out, e)
		}
	}
	return out
}

// Direction selects which adjacency view Relations reads.
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

func containsType(types []resource.RelationType, t resource.RelationType) bool {
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

// HasRelation reports whether a has an outbound edge of one of the
// given types to b. An edge stored in the b->a direction does not count.
func (g *Graph) HasRelation(a, b store.Idx, types ...resource.RelationType) bool {
	for _, e := range g.Relations(a, Outbound, types...) {
		if e.Node == b {
			return true
		}
	}
	return false
}

// Variant returns the recorded variant for idx, and whether idx is known.
func (g *Graph) Variant(idx store.Idx) (resource.Variant, bool) {
	v, ok := g.snapshot().variant[idx]
	return v, ok
}

var structuralTypes = []resource.RelationType{resource.RelationHasPart, resource.RelationOwnsProject}

// Parent returns idx's unique inbound structural (HasPart/OwnsProject)
// edge source, failing loudly if there is not exactly one — spec.md §9's
// explicit "cycle/parent ambiguity" design note: an ambiguous parent is
// a data integrity error, never silently resolved by picking one.
func (g *Graph) Parent(idx store.Idx) (store.Idx, error) {
	inbound := g.Relations(idx, Inbound, structuralTypes...)
	if len(inbound) != 1 {
		return 0, apierr.NewInvalidParameterf("parent", "node %d has %d inbound structural edges, expected exactly 1", idx, len(inbound))
	}
	return inbound[0].Node, nil
}
