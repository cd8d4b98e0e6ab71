package results

import (
	"sort"

	"github.com/panbanda/deadwood/pkg/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// deadCycles groups dead declarations that keep each other referenced.
// A reference from anywhere inside a dead declaration to anywhere inside
// another counts as an edge between the two; only groups of two or more
// are returned, since a lone dead declaration is not a cycle.
func deadCycles(g *graph.Graph, dead []*graph.Declaration) [][]*graph.Declaration {
	if len(dead) < 2 {
		return nil
	}

	// Map every declaration inside a dead root onto that root.
	rootOf := make(map[graph.DeclID]graph.DeclID)
	for _, d := range dead {
		rootOf[d.ID] = d.ID
		for _, desc := range g.Descendants(d) {
			if _, ok := rootOf[desc.ID]; !ok {
				rootOf[desc.ID] = d.ID
			}
		}
	}

	dg := simple.NewDirectedGraph()
	for _, d := range dead {
		dg.AddNode(simple.Node(d.ID))
	}
	for _, d := range dead {
		sources := append([]*graph.Declaration{d}, g.Descendants(d)...)
		for _, src := range sources {
			for _, ref := range append(g.ReferencesOf(src), g.RelatedOf(src)...) {
				target := g.DeclarationForUsr(ref.Usr)
				if target == nil {
					continue
				}
				to, ok := rootOf[target.ID]
				// gonum simple graphs reject self-loops.
				if !ok || to == d.ID {
					continue
				}
				if !dg.HasEdgeFromTo(int64(d.ID), int64(to)) {
					dg.SetEdge(simple.Edge{F: simple.Node(d.ID), T: simple.Node(to)})
				}
			}
		}
	}

	var cycles [][]*graph.Declaration
	for _, scc := range topo.TarjanSCC(dg) {
		if len(scc) < 2 {
			continue
		}
		members := make([]*graph.Declaration, 0, len(scc))
		for _, node := range scc {
			members = append(members, g.Declaration(graph.DeclID(node.ID())))
		}
		sort.Slice(members, func(i, j int) bool { return members[i].Location.Less(members[j].Location) })
		cycles = append(cycles, members)
	}
	return cycles
}
