package marker

import (
	"github.com/panbanda/deadwood/pkg/graph"
)

// repairConformances removes override and implementation edges that touch a
// member of a provably dead type. Left in place, a live protocol requirement
// or base method would keep members of an otherwise unused conformer alive.
// It returns the number of edges removed.
func repairConformances(g *graph.Graph) int {
	dead := map[graph.DeclID]bool{}
	for _, t := range g.Declarations(graph.ConcreteTypeKinds()...) {
		if provablyDead(g, t) {
			dead[t.ID] = true
		}
	}
	if len(dead) == 0 {
		return 0
	}
	inDeadType := func(d *graph.Declaration) bool {
		for _, a := range g.Ancestors(d) {
			if dead[a.ID] {
				return true
			}
		}
		return false
	}

	removed := 0
	for _, r := range g.AllReferences() {
		if !r.Related || !r.Role.IsLockstep() {
			continue
		}
		owner := g.OwnerOf(r)
		target := g.ExplicitDeclaration(r.Usr)
		if owner == nil || target == nil {
			continue
		}
		if inDeadType(owner) || inDeadType(target) {
			g.RemoveReference(r.ID)
			removed++
		}
	}
	return removed
}

// provablyDead reports whether nothing outside t's own subtree refers to t
// and no retention rule holds it.
func provablyDead(g *graph.Graph, t *graph.Declaration) bool {
	if g.IsRetainedByPolicy(t) {
		return false
	}
	for _, r := range g.ReferencesToDeclaration(t) {
		owner := g.OwnerOf(r)
		if owner == nil || (owner.ID != t.ID && !g.IsAncestor(t, owner)) {
			return false
		}
	}
	for _, d := range g.Descendants(t) {
		for _, r := range g.ReferencesToDeclaration(d) {
			owner := g.OwnerOf(r)
			if owner == nil {
				return false
			}
			if owner.ID == t.ID || g.IsAncestor(t, owner) {
				continue
			}
			// Witness and override edges are what is being repaired.
			if r.Related && r.Role.IsLockstep() {
				continue
			}
			return false
		}
	}
	return true
}
