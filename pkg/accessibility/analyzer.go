// Package accessibility reports access modifiers broader than the code needs.
//
// For each live declaration with a written modifier the analyzer derives the
// narrowest level that still admits every reference site, and every site of
// its members, and records the declaration when that level is narrower than
// the one written. It runs after marking and never changes liveness.
package accessibility

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/panbanda/deadwood/pkg/graph"
)

// Analyzer is the accessibility redundancy pass.
type Analyzer struct {
	logger    *slog.Logger
	publicAPI bool
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger for pass statistics.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// WithPublicAPI treats public and open declarations as library API whose
// clients are not indexed, so their levels are never reported.
func WithPublicAPI(enabled bool) Option {
	return func(a *Analyzer) {
		a.publicAPI = enabled
	}
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name implements the pipeline pass interface.
func (a *Analyzer) Name() string { return "AccessibilityAnalyzer" }

// Run records redundant accessibility on the graph.
func (a *Analyzer) Run(g *graph.Graph) error {
	r := &resolver{g: g, required: make(map[graph.DeclID]graph.AccessLevel), extendedFrom: extensionFiles(g)}
	found := 0
	for _, d := range g.Declarations() {
		if !a.analyzable(g, d) {
			continue
		}
		written := d.Accessibility.Level
		need := r.requiredLevel(d)
		// At file scope private and fileprivate mean the same thing.
		if g.Parent(d) == nil && need == graph.AccessPrivate && written == graph.AccessFilePrivate {
			continue
		}
		if need < written {
			g.MarkRedundantAccessibility(d, need)
			found++
		}
	}

	redundant := g.RedundantAccessibility()
	for i, ext := range g.FoldedExtensions() {
		if !ext.Accessibility.Explicit {
			continue
		}
		typ := g.Declaration(ext.Extended)
		if typ == nil || !g.IsReachable(typ) || g.IsIgnored(typ) {
			continue
		}
		if suggested, ok := redundant[typ.ID]; ok && ext.Accessibility.Level > suggested {
			g.MarkRedundantFoldedExtension(i, suggested)
			found++
		}
	}

	a.logger.Debug("accessibility analysis complete", slog.Int("redundant", found))
	return nil
}

// analyzable reports whether d has a written modifier whose necessity can be
// judged from the graph.
func (a *Analyzer) analyzable(g *graph.Graph, d *graph.Declaration) bool {
	if !d.Accessibility.Explicit || d.Accessibility.Level <= graph.AccessPrivate {
		return false
	}
	if !g.IsReachable(d) || g.IsIgnored(d) || g.IsRetainedByPolicy(d) || d.Implicit {
		return false
	}
	if a.publicAPI && d.Accessibility.IsAccessibleOutsideModule() {
		return false
	}
	switch d.Kind {
	case graph.KindVarParameter, graph.KindVarLocal, graph.KindGenericTypeParam, graph.KindModule, graph.KindEnumElement:
		return false
	}
	if d.Kind.IsAccessor() || d.Kind.IsExtension() {
		return false
	}
	if parent := g.Parent(d); parent != nil && parent.Kind == graph.KindProtocol {
		return false
	}
	if inTestModule(g, d) || hasWitnessObligation(g, d) {
		return false
	}
	return true
}

func inTestModule(g *graph.Graph, d *graph.Declaration) bool {
	return slices.ContainsFunc(g.ModulesOf(d), func(m string) bool {
		return strings.HasSuffix(m, "Tests")
	})
}

// hasWitnessObligation reports whether d overrides, is overridden, or takes
// part in a protocol conformance. Those levels are set by the other side.
func hasWitnessObligation(g *graph.Graph, d *graph.Declaration) bool {
	for _, r := range g.RelatedOf(d) {
		if r.Role.IsLockstep() {
			return true
		}
	}
	for _, r := range g.ReferencesToDeclaration(d) {
		if r.Related && r.Role.IsLockstep() {
			return true
		}
	}
	return false
}

// extensionFiles maps each type to the files of the extensions folded into it.
func extensionFiles(g *graph.Graph) map[graph.DeclID][]string {
	out := make(map[graph.DeclID][]string)
	for _, ext := range g.FoldedExtensions() {
		if !slices.Contains(out[ext.Extended], ext.Location.File) {
			out[ext.Extended] = append(out[ext.Extended], ext.Location.File)
		}
	}
	return out
}

// resolver memoizes the level each declaration needs.
type resolver struct {
	g            *graph.Graph
	required     map[graph.DeclID]graph.AccessLevel
	extendedFrom map[graph.DeclID][]string
}

// requiredLevel is the narrowest level admitting every reference to d or to
// any of its descendants, and every extension of d.
func (r *resolver) requiredLevel(d *graph.Declaration) graph.AccessLevel {
	if level, ok := r.required[d.ID]; ok {
		return level
	}
	// Provisional entry guards against cycles through nested declarations.
	r.required[d.ID] = graph.AccessPrivate

	need := graph.AccessPrivate
	for _, ref := range r.g.ReferencesToDeclaration(d) {
		need = graph.MaxAccessLevel(need, r.siteLevel(d, ref))
	}
	for _, file := range r.extendedFrom[d.ID] {
		need = graph.MaxAccessLevel(need, r.extensionLevel(d, file))
	}
	for _, c := range r.g.Children(d) {
		need = graph.MaxAccessLevel(need, r.requiredLevel(c))
	}
	need = graph.MinAccessLevel(need, graph.MaxAccessLevel(d.Accessibility.Level, graph.AccessPrivate))
	r.required[d.ID] = need
	return need
}

// siteLevel is the level d needs for one reference to be legal.
func (r *resolver) siteLevel(d *graph.Declaration, ref *graph.Reference) graph.AccessLevel {
	owner := r.g.OwnerOf(ref)
	need := graph.AccessPrivate

	// A declaration's signature cannot expose a type less visible than itself.
	if owner != nil && ref.Role.IsPubliclyExposable() {
		need = graph.MinAccessLevel(owner.Accessibility.Level, graph.AccessPublic)
	}

	site := ref.Location.File
	switch {
	case !r.sameModule(d, site):
		level := graph.AccessPublic
		if r.testableImport(d, site) {
			level = graph.AccessInternal
		} else if ref.Related && ref.Role == graph.RoleInheritedType {
			level = graph.AccessOpen
		}
		return graph.MaxAccessLevel(need, level)
	case site != d.Location.File:
		return graph.MaxAccessLevel(need, graph.AccessInternal)
	case owner == nil || !r.sharesPrivateScope(d, owner):
		return graph.MaxAccessLevel(need, graph.AccessFilePrivate)
	default:
		return need
	}
}

// extensionLevel is the level d needs to be extended from file. Extensions
// sit at file scope.
func (r *resolver) extensionLevel(d *graph.Declaration, file string) graph.AccessLevel {
	switch {
	case !r.sameModule(d, file):
		if r.testableImport(d, file) {
			return graph.AccessInternal
		}
		return graph.AccessPublic
	case file != d.Location.File:
		return graph.AccessInternal
	case r.g.Parent(d) != nil:
		return graph.AccessFilePrivate
	default:
		return graph.AccessPrivate
	}
}

func (r *resolver) sameModule(d *graph.Declaration, site string) bool {
	f := r.g.File(site)
	if f == nil {
		return true
	}
	for _, m := range r.g.ModulesOf(d) {
		if f.HasModule(m) {
			return true
		}
	}
	return false
}

func (r *resolver) testableImport(d *graph.Declaration, site string) bool {
	f := r.g.File(site)
	if f == nil {
		return false
	}
	for _, m := range r.g.ModulesOf(d) {
		if imp, ok := f.ImportsModule(m); ok && imp.Testable {
			return true
		}
	}
	return false
}

// sharesPrivateScope reports whether owner can see a private d: it sits in
// the declaration enclosing d. A private file-scope declaration is visible to
// the whole file.
func (r *resolver) sharesPrivateScope(d, owner *graph.Declaration) bool {
	scope := r.g.Parent(d)
	if scope == nil {
		return true
	}
	return owner.ID == scope.ID || r.g.IsAncestor(scope, owner)
}
