package graph

import (
	"aruna.io/aruna/pkg/resource"
	"aruna.io/aruna/satellite/store"
)

// RelatedUserOrGroups walks inbound HasPart/OwnsProject edges from
// resourceIdx up to the owning Group(s), matching spec.md §4.2's
// permission-propagation target computation. The walk does not stop at
// the first Group encountered: a resource may be reachable through more
// than one structural path, so every distinct Group ancestor is
// returned, each exactly once.
func (g *Graph) RelatedUserOrGroups(resourceIdx store.Idx) []store.Idx {
	gen := g.snapshot()
	seen := map[store.Idx]bool{resourceIdx: true}
	queue := []store.Idx{resourceIdx}
	var groups []store.Idx
	groupSeen := map[store.Idx]bool{}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, e := range gen.in[cur] {
			if !e.Type.IsStructural() {
				continue
			}
			if v, ok := gen.variant[e.Node]; ok && v == resource.VariantGroup {
				if !groupSeen[e.Node] {
					groupSeen[e.Node] = true
					groups = append(groups, e.Node)
				}
			}
			if !seen[e.Node] {
				seen[e.Node] = true
				queue = append(queue, e.Node)
			}
		}
	}
	return groups
}

// Hierarchy returns every node reachable downstream of root following
// only structural (HasPart/OwnsProject) edges — the tree the hierarchy
// query (spec.md §4.2) serves.
func (g *Graph) Hierarchy(root store.Idx) []store.Idx {
	gen := g.snapshot()
	seen := map[store.Idx]bool{root: true}
	queue := []store.Idx{root}
	var out []store.Idx

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range gen.out[cur] {
			if !e.Type.IsStructural() {
				continue
			}
			if seen[e.Node] {
				continue
			}
			seen[e.Node] = true
			out = append(out, e.Node)
			queue = append(queue, e.Node)
		}
	}
	return out
}
