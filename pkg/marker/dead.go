package marker

import (
	"sort"

	"github.com/panbanda/deadwood/pkg/graph"
)

// Reportable reports whether d is the kind of declaration a dead-code result
// may name. Parameters, locals and generic parameters are covered by their
// own diagnostics or not at all; accessors are reported through their property.
func Reportable(d *graph.Declaration) bool {
	if d.Implicit || d.Kind.IsAccessor() || d.Kind.IsExtension() {
		return false
	}
	switch d.Kind {
	case graph.KindVarParameter, graph.KindVarLocal, graph.KindGenericTypeParam, graph.KindModule:
		return false
	}
	return true
}

// IsDead reports whether d is unreachable and not suppressed beneath a dead ancestor.
func IsDead(g *graph.Graph, d *graph.Declaration) bool {
	return !g.IsReachable(d) && !g.IsIgnored(d) && Reportable(d)
}

// Dead returns the reportable dead declarations in location order.
func Dead(g *graph.Graph) []*graph.Declaration {
	var out []*graph.Declaration
	for _, d := range g.UnreachableDeclarations() {
		if Reportable(d) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Location.Less(out[j].Location)
	})
	return out
}
