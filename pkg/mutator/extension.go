package mutator

import (
	"slices"

	"github.com/panbanda/deadwood/pkg/graph"
)

// AccessibilityCascader gives members of extensions and protocols the
// accessibility written on their container when they have none of their own.
type AccessibilityCascader struct{}

func (AccessibilityCascader) Name() string { return "AccessibilityCascader" }

func (AccessibilityCascader) Run(g *graph.Graph) error {
	containers := g.Declarations(append(graph.ExtensionKinds(), graph.KindProtocol)...)
	for _, c := range containers {
		if !c.Accessibility.Explicit {
			continue
		}
		level := c.Accessibility.Level
		// Private at extension scope is file-private for the members.
		if level == graph.AccessPrivate && c.Kind.IsExtension() {
			level = graph.AccessFilePrivate
		}
		for _, m := range g.Children(c) {
			if m.Accessibility.Explicit {
				continue
			}
			m.Accessibility = graph.Accessibility{Level: level}
		}
	}
	return nil
}

// ExtensionFolder merges each extension into the declaration it extends and
// removes the extension node. Extensions of types outside the graph stay in
// place; a retention pass keeps them.
type ExtensionFolder struct{}

func (ExtensionFolder) Name() string { return "ExtensionFolder" }

func (f ExtensionFolder) Run(g *graph.Graph) error {
	for _, ext := range g.Declarations(graph.ExtensionKinds()...) {
		extended, err := f.extendedDeclaration(g, ext)
		if err != nil {
			return err
		}
		if extended == nil {
			continue
		}
		if err := f.fold(g, ext, extended); err != nil {
			return err
		}
	}
	return nil
}

// extendedDeclaration finds the type ext extends through the reference the
// index records from the extension to it.
func (f ExtensionFolder) extendedDeclaration(g *graph.Graph, ext *graph.Declaration) (*graph.Declaration, error) {
	want := ext.Kind.ExtendedKind()
	for _, r := range g.ReferencesOf(ext) {
		if r.Name != ext.Name {
			continue
		}
		if want != "" && r.Kind != want {
			continue
		}
		if want == "" && !r.Kind.IsType() {
			continue
		}
		target := g.ExplicitDeclaration(r.Usr)
		if target == nil {
			continue
		}
		if want != "" && target.Kind != want {
			return nil, graph.NewIntegrityError(f.Name(), ext, "extended declaration %s is a %s", target.Name, target.Kind)
		}
		return target, nil
	}
	return nil, nil
}

func (f ExtensionFolder) fold(g *graph.Graph, ext, extended *graph.Declaration) error {
	ignore := ext.HasCommand(graph.CommandIgnore)
	for _, child := range g.Children(ext) {
		g.SetParent(child.ID, extended.ID)
		if child.ExtensionOrigin == "" {
			child.ExtensionOrigin = ext.Kind
		}
		if ignore && !child.HasCommand(graph.CommandIgnore) {
			child.Commands = append(child.Commands, graph.CommentCommand{Kind: graph.CommandIgnore, Raw: string(graph.CommandIgnore)})
		}
	}

	for _, r := range append(g.ReferencesOf(ext), g.RelatedOf(ext)...) {
		// The extension's own reference to the type it extends is not a use.
		if !r.Related && extended.HasUsr(r.Usr) {
			g.RemoveReference(r.ID)
			continue
		}
		if err := g.MoveReference(r.ID, extended.ID); err != nil {
			return err
		}
	}
	for _, r := range g.ReferencesToDeclaration(ext) {
		g.RemoveReference(r.ID)
	}

	g.AddFoldedExtension(graph.FoldedExtension{
		Kind:          ext.Kind,
		Usrs:          slices.Clone(ext.Usrs),
		Location:      ext.Location,
		Accessibility: ext.Accessibility,
		Extended:      extended.ID,
		Commands:      slices.Clone(ext.Commands),
	})
	g.RemoveDeclaration(ext.ID)
	return nil
}
