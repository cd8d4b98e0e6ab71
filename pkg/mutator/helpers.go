package mutator

import (
	"slices"

	"github.com/panbanda/deadwood/pkg/graph"
)

var codableProtocols = []string{"Codable", "Encodable", "Decodable"}

// typeRelations returns the names a type inherits from or conforms to,
// including conformances already detached by inversion.
func typeRelations(g *graph.Graph, d *graph.Declaration) []*graph.Reference {
	refs := g.RelatedOf(d)
	return append(refs, g.ConformancesOf(d)...)
}

// inheritsFrom reports whether d, or any superclass of d in the graph, names one
// of names in its inheritance or conformance clause.
func inheritsFrom(g *graph.Graph, d *graph.Declaration, names ...string) bool {
	seen := map[graph.DeclID]bool{}
	for cur := d; cur != nil && !seen[cur.ID]; {
		seen[cur.ID] = true
		var next *graph.Declaration
		for _, r := range typeRelations(g, cur) {
			if r.Role == graph.RoleOverride || r.Role == graph.RoleImplementation {
				continue
			}
			if slices.Contains(names, r.Name) {
				return true
			}
			if target := g.ExplicitDeclaration(r.Usr); target != nil {
				if target.Kind == graph.KindClass && next == nil {
					next = target
				}
				if target.Kind == graph.KindProtocol && protocolRefines(g, target, names, map[graph.DeclID]bool{}) {
					return true
				}
			}
		}
		cur = next
	}
	return false
}

// protocolRefines reports whether protocol p refines a protocol named in names.
func protocolRefines(g *graph.Graph, p *graph.Declaration, names []string, seen map[graph.DeclID]bool) bool {
	if seen[p.ID] {
		return false
	}
	seen[p.ID] = true
	for _, r := range g.RelatedOf(p) {
		if slices.Contains(names, r.Name) {
			return true
		}
		if target := g.ExplicitDeclaration(r.Usr); target != nil && target.Kind == graph.KindProtocol {
			if protocolRefines(g, target, names, seen) {
				return true
			}
		}
	}
	return false
}

// superclasses returns the class inheritance chain of d within the graph, nearest first.
func superclasses(g *graph.Graph, d *graph.Declaration) []*graph.Declaration {
	var out []*graph.Declaration
	seen := map[graph.DeclID]bool{d.ID: true}
	cur := d
	for {
		var next *graph.Declaration
		for _, r := range g.RelatedOf(cur) {
			if r.Role == graph.RoleOverride || r.Role == graph.RoleImplementation {
				continue
			}
			if target := g.ExplicitDeclaration(r.Usr); target != nil && target.Kind == graph.KindClass {
				next = target
				break
			}
		}
		if next == nil || seen[next.ID] {
			return out
		}
		seen[next.ID] = true
		out = append(out, next)
		cur = next
	}
}

// conformedProtocols returns the protocols in the graph that d conforms to directly.
func conformedProtocols(g *graph.Graph, d *graph.Declaration) []*graph.Declaration {
	var out []*graph.Declaration
	for _, r := range typeRelations(g, d) {
		if target := g.ExplicitDeclaration(r.Usr); target != nil && target.Kind == graph.KindProtocol {
			if !slices.ContainsFunc(out, func(p *graph.Declaration) bool { return p.ID == target.ID }) {
				out = append(out, target)
			}
		}
	}
	return out
}

// isRequirement reports whether d is declared by a protocol body rather than a protocol extension.
func isRequirement(g *graph.Graph, d *graph.Declaration) bool {
	parent := g.Parent(d)
	return parent != nil && parent.Kind == graph.KindProtocol && !d.IsProtocolExtensionMember()
}

// childNamed returns the first child of d with the given name and, when kinds
// is non-empty, one of the kinds.
func childNamed(g *graph.Graph, d *graph.Declaration, name string, kinds ...graph.Kind) *graph.Declaration {
	for _, c := range g.Children(d) {
		if c.Name != name {
			continue
		}
		if len(kinds) == 0 || slices.Contains(kinds, c.Kind) {
			return c
		}
	}
	return nil
}

// synthesize adds a reference the index omits from owner to target.
func synthesize(g *graph.Graph, owner, target *graph.Declaration, related bool, role graph.Role) error {
	ref := &graph.Reference{
		Kind:        target.Kind,
		Usr:         target.FirstUsr(),
		Name:        target.Name,
		Location:    owner.Location,
		Related:     related,
		Role:        role,
		Synthesized: true,
	}
	_, err := g.AddReference(ref, owner.ID)
	return err
}

// references reports whether owner already has a plain reference to target.
func references(g *graph.Graph, owner, target *graph.Declaration) bool {
	for _, r := range g.ReferencesOf(owner) {
		if target.HasUsr(r.Usr) {
			return true
		}
	}
	return false
}

// retainWithDescendants retains d and everything beneath it.
func retainWithDescendants(g *graph.Graph, d *graph.Declaration) {
	g.Retain(d)
	for _, c := range g.Descendants(d) {
		g.Retain(c)
	}
}
