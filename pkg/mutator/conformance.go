package mutator

import (
	"slices"

	"github.com/panbanda/deadwood/pkg/graph"
)

// SuperclassConformanceLinker covers requirements a class satisfies through an
// inherited method. The index records no witness for them, so a related
// reference from the requirement to the superclass member is synthesized. It
// already points the right way and is left alone by inversion.
type SuperclassConformanceLinker struct{}

func (SuperclassConformanceLinker) Name() string { return "SuperclassConformanceLinker" }

func (SuperclassConformanceLinker) Run(g *graph.Graph) error {
	for _, class := range g.Declarations(graph.KindClass) {
		supers := superclasses(g, class)
		if len(supers) == 0 {
			continue
		}
		for _, proto := range conformedProtocols(g, class) {
			for _, req := range g.Children(proto) {
				if !isRequirement(g, req) || !req.Kind.IsMember() || implements(g, class, req) {
					continue
				}
				for _, super := range supers {
					impl := childNamed(g, super, req.Name, req.Kind)
					if impl == nil {
						continue
					}
					if !relatesTo(g, req, impl) {
						if err := synthesize(g, req, impl, true, graph.RoleImplementation); err != nil {
							return err
						}
					}
					break
				}
			}
		}
	}
	return nil
}

// implements reports whether a member of typ witnesses req.
func implements(g *graph.Graph, typ, req *graph.Declaration) bool {
	for _, m := range g.Children(typ) {
		for _, r := range g.RelatedOf(m) {
			if req.HasUsr(r.Usr) {
				return true
			}
		}
		if m.Name == req.Name && m.Kind == req.Kind {
			return true
		}
	}
	return false
}

func relatesTo(g *graph.Graph, owner, target *graph.Declaration) bool {
	for _, r := range g.RelatedOf(owner) {
		if target.HasUsr(r.Usr) {
			return true
		}
	}
	return false
}

// ProtocolConformanceInverter turns witness edges around. The index records a
// conforming member pointing at the requirement it satisfies; liveness must
// flow from the requirement to its implementations instead. Type-level
// conformances are detached from the related set: conforming to a protocol is
// not a use of it.
type ProtocolConformanceInverter struct{}

func (ProtocolConformanceInverter) Name() string { return "ProtocolConformanceInverter" }

func (p ProtocolConformanceInverter) Run(g *graph.Graph) error {
	for _, d := range g.Declarations() {
		for _, r := range g.RelatedOf(d) {
			if r.Synthesized {
				continue
			}
			target := g.ExplicitDeclaration(r.Usr)
			if target == nil {
				continue
			}

			if target.Kind == graph.KindProtocol && d.Kind != graph.KindProtocol && (d.Kind.IsType() || d.Kind.IsExtension()) {
				if r.Role == graph.RoleUnknown || r.Role == graph.RoleInheritedType {
					r.Role = graph.RoleConformedType
				}
				if err := g.DetachConformance(r.ID); err != nil {
					return err
				}
				continue
			}

			if !isRequirement(g, target) || d.IsProtocolExtensionMember() {
				continue
			}
			if parent := g.Parent(d); parent != nil && parent.Kind == graph.KindProtocol {
				// A refining protocol restating a requirement keeps its override edge.
				continue
			}
			if incompatibleWitness(target.Kind, d.Kind) {
				return graph.NewIntegrityError(p.Name(), d, "%s cannot witness requirement %s (%s)", d.Kind, target.Name, target.Kind)
			}

			g.RemoveReference(r.ID)
			inverted := &graph.Reference{
				Kind:        d.Kind,
				Usr:         d.FirstUsr(),
				Name:        d.Name,
				Location:    r.Location,
				Related:     true,
				Role:        graph.RoleImplementation,
				Synthesized: true,
			}
			if _, err := g.AddReference(inverted, target.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func incompatibleWitness(requirement, witness graph.Kind) bool {
	switch {
	case requirement == graph.KindAssociatedType:
		return witness.IsFunction() || witness.IsVariable()
	case requirement.IsFunction():
		return witness.IsVariable() || witness.IsType()
	case requirement.IsVariable():
		return witness.IsType()
	}
	return false
}

// ProtocolExtensionLinker ties protocol extension members to their protocol.
// A call to a default implementation uses the protocol, and a live requirement
// keeps the default implementation while some conforming type relies on it.
// With no indexed conformers the conformances are external and the link is kept.
type ProtocolExtensionLinker struct{}

func (ProtocolExtensionLinker) Name() string { return "ProtocolExtensionLinker" }

func (ProtocolExtensionLinker) Run(g *graph.Graph) error {
	for _, proto := range g.Declarations(graph.KindProtocol) {
		for _, m := range g.Children(proto) {
			if !m.IsProtocolExtensionMember() {
				continue
			}
			for _, r := range g.ReferencesToDeclaration(m) {
				if r.Related {
					continue
				}
				if owner := g.OwnerOf(r); owner != nil {
					if owner.ID != proto.ID && !references(g, owner, proto) {
						if err := synthesize(g, owner, proto, false, graph.RoleUnknown); err != nil {
							return err
						}
					}
				} else if g.IsRootReference(r) {
					g.AddRootReference(&graph.Reference{
						Kind: proto.Kind, Usr: proto.FirstUsr(), Name: proto.Name,
						Location: r.Location, Synthesized: true,
					})
				}
			}
			types := conformers(g, proto)
			for _, req := range requirementsNamed(g, proto, m.Name, m.Kind) {
				if len(types) > 0 && !slices.ContainsFunc(types, func(t *graph.Declaration) bool {
					return !implementsWithInheritance(g, t, req)
				}) {
					continue
				}
				if !references(g, req, m) {
					if err := synthesize(g, req, m, false, graph.RoleDefaultImplementation); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// conformers returns the types conforming to proto directly or through a
// refining protocol.
func conformers(g *graph.Graph, proto *graph.Declaration) []*graph.Declaration {
	var out []*graph.Declaration
	seen := map[graph.DeclID]bool{}
	queue := []*graph.Declaration{proto}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		for _, r := range g.ReferencesToDeclaration(p) {
			if !r.Related {
				continue
			}
			owner := g.OwnerOf(r)
			switch {
			case owner == nil || seen[owner.ID]:
			case owner.Kind == graph.KindProtocol:
				queue = append(queue, owner)
			case g.IsConformance(r):
				seen[owner.ID] = true
				out = append(out, owner)
			}
		}
	}
	return out
}

// implementsWithInheritance reports whether typ or one of its superclasses
// witnesses req.
func implementsWithInheritance(g *graph.Graph, typ, req *graph.Declaration) bool {
	if implements(g, typ, req) {
		return true
	}
	for _, super := range superclasses(g, typ) {
		if implements(g, super, req) {
			return true
		}
	}
	return false
}

// requirementsNamed finds requirements of proto, or of protocols it refines, matching name and kind.
func requirementsNamed(g *graph.Graph, proto *graph.Declaration, name string, kind graph.Kind) []*graph.Declaration {
	var out []*graph.Declaration
	seen := map[graph.DeclID]bool{}
	queue := []*graph.Declaration{proto}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		for _, c := range g.Children(p) {
			if c.Name == name && c.Kind == kind && isRequirement(g, c) {
				out = append(out, c)
			}
		}
		for _, r := range g.RelatedOf(p) {
			if target := g.ExplicitDeclaration(r.Usr); target != nil && target.Kind == graph.KindProtocol {
				queue = append(queue, target)
			}
		}
	}
	return out
}
