package mutator

import (
	"slices"
	"strings"

	"github.com/panbanda/deadwood/pkg/graph"
)

// AncestralReferenceEliminator removes plain references from a declaration to
// itself or to one of its ancestors. Such references cannot make the target
// live: the referencing code only runs when the target already is.
type AncestralReferenceEliminator struct{}

func (AncestralReferenceEliminator) Name() string { return "AncestralReferenceEliminator" }

func (AncestralReferenceEliminator) Run(g *graph.Graph) error {
	for _, d := range g.Declarations() {
		refs := g.ReferencesOf(d)
		if len(refs) == 0 {
			continue
		}
		scope := append([]*graph.Declaration{d}, g.Ancestors(d)...)
		for _, r := range refs {
			if slices.ContainsFunc(scope, func(a *graph.Declaration) bool { return a.HasUsr(r.Usr) }) {
				g.RemoveReference(r.ID)
			}
		}
	}
	return nil
}

// AssignOnlyPropertyReferenceEliminator drops the references to stored
// properties that are only ever written, so the marker reports them, and
// records each such property for the assign-only diagnostic.
type AssignOnlyPropertyReferenceEliminator struct {
	Disabled bool
	// ExemptedTypes lists declared types whose properties are never reported.
	ExemptedTypes []string
}

func (AssignOnlyPropertyReferenceEliminator) Name() string {
	return "AssignOnlyPropertyReferenceEliminator"
}

func (e AssignOnlyPropertyReferenceEliminator) Run(g *graph.Graph) error {
	if e.Disabled {
		return nil
	}
	for _, d := range g.Declarations(graph.PropertyKinds()...) {
		if !e.eligible(g, d) {
			continue
		}
		refs := g.ReferencesToDeclaration(d)
		if len(refs) == 0 {
			continue
		}
		writeOnly := true
		for _, r := range refs {
			if r.Related || !r.Write {
				writeOnly = false
				break
			}
		}
		if !writeOnly {
			continue
		}
		for _, r := range refs {
			g.RemoveReference(r.ID)
		}
		g.MarkAssignOnly(d)
	}
	return nil
}

func (e AssignOnlyPropertyReferenceEliminator) eligible(g *graph.Graph, d *graph.Declaration) bool {
	if d.Implicit || d.ObjcAccessible || len(d.Attributes) > 0 || d.IsOverride() {
		return false
	}
	if d.HasModifier("lazy") || d.HasModifier("weak") || d.HasModifier("dynamic") {
		return false
	}
	if isRequirement(g, d) {
		return false
	}
	for _, c := range g.Children(d) {
		if c.Kind.IsAccessor() && !c.Implicit {
			return false
		}
	}
	declared := strings.TrimSpace(d.DeclaredType)
	for _, t := range e.ExemptedTypes {
		if strings.TrimSpace(t) == declared {
			return false
		}
	}
	// Witnesses of protocol requirements are read through the protocol.
	for _, r := range g.ReferencesToDeclaration(d) {
		if r.Related && r.Role.IsLockstep() {
			return false
		}
	}
	return true
}
