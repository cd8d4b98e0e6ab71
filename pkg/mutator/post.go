package mutator

import (
	"slices"

	"github.com/panbanda/deadwood/pkg/graph"
)

// RedundantProtocolMarker finds protocols that are never used as a type or
// constraint but still have conformances in live code. The conformances are
// redundant and the protocol can go with them.
type RedundantProtocolMarker struct{}

func (RedundantProtocolMarker) Name() string { return "RedundantProtocolMarker" }

func (RedundantProtocolMarker) Run(g *graph.Graph) error {
	for _, p := range g.Declarations(graph.KindProtocol) {
		if g.IsReachable(p) || g.IsIgnored(p) {
			continue
		}
		var live []graph.RefID
		for _, conf := range g.ConformancesTo(p) {
			if owner := g.OwnerOf(conf); owner != nil && g.IsReachable(owner) {
				live = append(live, conf.ID)
			}
		}
		if len(live) > 0 {
			g.MarkRedundantProtocol(p, live)
		}
	}
	return nil
}

// UnusedImportMarker reports imports of indexed modules that no reference in
// the importing file resolves into.
type UnusedImportMarker struct {
	// RetainModules lists modules whose imports are never reported.
	RetainModules []string
}

func (UnusedImportMarker) Name() string { return "UnusedImportMarker" }

func (u UnusedImportMarker) Run(g *graph.Graph) error {
	indexed := g.IndexedModules()
	used := u.modulesUsedByFile(g)
	reexports := exportedModules(g)
	for _, file := range g.Files() {
		if file.IgnoreAll {
			continue
		}
		for _, imp := range file.Imports {
			if imp.Exported || !indexed[imp.Module] || file.HasModule(imp.Module) {
				continue
			}
			if slices.Contains(u.RetainModules, imp.Module) || graph.HasCommand(imp.Commands, graph.CommandIgnore) {
				continue
			}
			if providesAny(imp.Module, used[file.Path], reexports) {
				continue
			}
			g.MarkUnusedImport(file.Path, imp)
		}
	}
	return nil
}

// modulesUsedByFile maps each file to the modules its references resolve into.
// A folded extension uses the modules of the type it extended, since folding
// removed the reference that recorded it.
func (UnusedImportMarker) modulesUsedByFile(g *graph.Graph) map[string]map[string]bool {
	used := map[string]map[string]bool{}
	use := func(path string, target *graph.Declaration) {
		if used[path] == nil {
			used[path] = map[string]bool{}
		}
		for _, m := range g.ModulesOf(target) {
			used[path][m] = true
		}
	}
	for _, r := range g.AllReferences() {
		target := g.ExplicitDeclaration(r.Usr)
		if target == nil {
			target = g.DeclarationForUsr(r.Usr)
		}
		if target != nil {
			use(r.Location.File, target)
		}
	}
	for _, ext := range g.FoldedExtensions() {
		if target := g.Declaration(ext.Extended); target != nil {
			use(ext.Location.File, target)
		}
	}
	return used
}

// exportedModules maps a module to the modules its files re-export with @_exported.
func exportedModules(g *graph.Graph) map[string][]string {
	out := map[string][]string{}
	for _, file := range g.Files() {
		for _, imp := range file.Imports {
			if !imp.Exported {
				continue
			}
			for _, m := range file.Modules {
				if !slices.Contains(out[m], imp.Module) {
					out[m] = append(out[m], imp.Module)
				}
			}
		}
	}
	return out
}

// providesAny reports whether importing module makes any of used visible,
// following re-exports transitively.
func providesAny(module string, used map[string]bool, reexports map[string][]string) bool {
	seen := map[string]bool{}
	queue := []string{module}
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]
		if seen[m] {
			continue
		}
		seen[m] = true
		if used[m] {
			return true
		}
		queue = append(queue, reexports[m]...)
	}
	return false
}
