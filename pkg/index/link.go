package index

import (
	"path/filepath"
	"sort"

	"github.com/panbanda/deadwood/pkg/graph"
	"github.com/panbanda/deadwood/pkg/syntax"
)

type linkStats struct {
	references int
	skipped    int
}

// linker performs phase B for one unit. It runs with the graph lock held and
// only uses WithoutLock mutators.
type linker struct {
	g         *graph.Graph
	unit      *Unit
	syntax    *syntax.File
	fallbacks []MatchFallback

	// created holds every reference this unit contributed, for role reclassification.
	created []*graph.Reference
	// owned holds references attached to a declaration, for nesting.
	owned []*graph.Reference
	stats linkStats
}

func (l *linker) link() (linkStats, error) {
	l.linkSymbols()
	if err := l.linkOccurrences(); err != nil {
		return l.stats, err
	}
	l.applyMetadata()
	l.applySyntax()
	reclassifyRoles(l.unit, l.created, l.fallbacks)
	l.stats.references = len(l.created)
	return l.stats, nil
}

// linkSymbols establishes parents and override edges declared by symbol relations.
func (l *linker) linkSymbols() {
	for _, sym := range l.unit.Symbols {
		d := l.g.DeclarationForUsr(sym.Usr)
		if d == nil {
			continue
		}
		for _, rel := range sym.Relations {
			switch rel.Role {
			case RelationChildOf:
				parent := l.g.DeclarationForUsr(rel.Usr)
				if parent != nil && d.Parent == 0 && parent.ID != d.ID {
					l.g.SetParentWithoutLock(d.ID, parent.ID)
				}
			case RelationOverrideOf:
				kind := d.Kind
				if base := l.g.DeclarationForUsr(rel.Usr); base != nil {
					kind = base.Kind
				}
				ref := &graph.Reference{
					Kind:     kind,
					Usr:      rel.Usr,
					Name:     d.Name,
					Location: d.Location,
					Related:  true,
					Role:     graph.RoleOverride,
				}
				if r, err := l.g.AddReferenceWithoutLock(ref, d.ID); err == nil {
					l.created = append(l.created, r)
				}
			}
		}
	}
}

// linkOccurrences attaches each reference to the declaration named by its
// relations, falling back to location based association.
func (l *linker) linkOccurrences() error {
	var unresolved []*graph.Reference
	for _, occ := range l.unit.Occurrences {
		kind, ok := mapKind(occ.Kind, occ.Subkind)
		if !ok {
			l.stats.skipped++
			continue
		}
		base := graph.Reference{
			Kind:        kind,
			Usr:         occ.Usr,
			Name:        occ.Name,
			Location:    l.unit.location(occ.Location),
			ReceiverUsr: occ.ReceiverUsr,
			Write:       occ.IsWriteOnly(),
		}

		attached := false
		for _, rel := range occ.Relations {
			ref := base
			switch rel.Role {
			case RelationBaseOf:
				ref.Related = true
				ref.Role = graph.RoleInheritedType
				if kind == graph.KindProtocol {
					ref.Role = graph.RoleConformedType
				}
			case RelationCalledBy, RelationContainedBy, RelationExtendedBy:
			default:
				continue
			}
			owner := l.g.DeclarationForUsr(rel.Usr)
			if owner == nil {
				continue
			}
			r, err := l.g.AddReferenceWithoutLock(&ref, owner.ID)
			if err != nil {
				return err
			}
			l.created = append(l.created, r)
			l.owned = append(l.owned, r)
			attached = true
		}
		if !attached {
			ref := base
			unresolved = append(unresolved, &ref)
		}
	}

	sort.SliceStable(unresolved, func(i, j int) bool {
		return unresolved[i].Location.Less(unresolved[j].Location)
	})
	for _, ref := range unresolved {
		r, err := l.associate(ref)
		if err != nil {
			return err
		}
		l.created = append(l.created, r)
	}
	return nil
}

// associate resolves a reference without relations: the explicit declaration at
// the same location, then the nearest preceding reference on the same line,
// then module scope for top-level code, else dangling.
func (l *linker) associate(ref *graph.Reference) (*graph.Reference, error) {
	if owner := l.declarationAt(ref.Location); owner != nil {
		r, err := l.g.AddReferenceWithoutLock(ref, owner.ID)
		if err == nil {
			l.owned = append(l.owned, r)
		}
		return r, err
	}
	if parent := l.precedingReference(ref.Location); parent != nil {
		return l.g.AddNestedReferenceWithoutLock(ref, parent.ID)
	}
	if l.hasTopLevelCode() {
		return l.g.AddRootReferenceWithoutLock(ref), nil
	}
	return l.g.AddDanglingReferenceWithoutLock(ref), nil
}

func (l *linker) declarationAt(loc graph.Location) *graph.Declaration {
	var best *graph.Declaration
	for _, d := range l.g.DeclarationsAt(loc) {
		if d.Implicit {
			continue
		}
		if d.Parent == 0 {
			return d
		}
		if best == nil {
			best = d
		}
	}
	return best
}

func (l *linker) precedingReference(loc graph.Location) *graph.Reference {
	var best *graph.Reference
	for _, r := range l.owned {
		if !r.Location.SameLine(loc) || r.Location.Column >= loc.Column {
			continue
		}
		if best == nil || r.Location.Column > best.Location.Column {
			best = r
		}
	}
	return best
}

func (l *linker) hasTopLevelCode() bool {
	if l.unit.TopLevelCode || filepath.Base(l.unit.File) == "main.swift" {
		return true
	}
	return l.syntax != nil && l.syntax.TopLevelCode
}

// applyMetadata copies syntax metadata onto the declarations at each location.
func (l *linker) applyMetadata() {
	for _, md := range l.unit.Metadata {
		for _, d := range l.g.DeclarationsAt(l.unit.location(md.Location)) {
			applyMetadata(d, md)
		}
	}
}

func applyMetadata(d *graph.Declaration, md Metadata) {
	if md.Accessibility != "" {
		if level, err := graph.ParseAccessLevel(md.Accessibility); err == nil {
			d.Accessibility = graph.Accessibility{Level: level, Explicit: md.Explicit}
		}
	}
	d.Attributes = appendUnique(d.Attributes, md.Attributes...)
	d.Modifiers = appendUnique(d.Modifiers, md.Modifiers...)
	for _, c := range md.Commands {
		d.Commands = appendCommand(d.Commands, graph.ParseCommentCommand(c))
	}
	if md.DeclaredType != "" {
		d.DeclaredType = md.DeclaredType
	}
	d.LetShorthandIdentifiers = appendUnique(d.LetShorthandIdentifiers, md.LetShorthandIdentifiers...)
	d.UnusedParameterNames = appendUnique(d.UnusedParameterNames, md.UnusedParameters...)
	d.GenericReturnType = d.GenericReturnType || md.HasGenericFunctionReturnType
}

// applySyntax merges what tree-sitter recovered from the source file.
func (l *linker) applySyntax() {
	if l.syntax == nil {
		return
	}
	file := &graph.SourceFile{Path: l.unit.File, TopLevelCode: l.syntax.TopLevelCode}
	if len(l.unit.Imports) == 0 {
		file.Imports = l.syntax.Imports
	}
	if graph.HasCommand(l.syntax.FileCommands, graph.CommandIgnoreAll) {
		file.IgnoreAll = true
	}
	merged := l.g.AddFileWithoutLock(file)
	// Commands trailing imports the unit already listed.
	for i, imp := range merged.Imports {
		for _, s := range l.syntax.Imports {
			if s.Module == imp.Module && s.Location.Line == imp.Location.Line {
				for _, c := range s.Commands {
					merged.Imports[i].Commands = appendCommand(merged.Imports[i].Commands, c)
				}
			}
		}
	}

	if len(l.syntax.Commands) == 0 {
		return
	}
	// Declarations are ordered by location; the first on a line is the one the comment precedes.
	seen := make(map[int]bool)
	for _, d := range l.g.DeclarationsInFile(l.unit.File) {
		if d.Implicit || d.Kind.IsAccessor() || d.Kind == graph.KindVarParameter || seen[d.Location.Line] {
			continue
		}
		seen[d.Location.Line] = true
		for _, c := range l.syntax.CommandsAt(d.Location.Line) {
			d.Commands = appendCommand(d.Commands, c)
		}
	}
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range dst {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

func appendCommand(dst []graph.CommentCommand, c graph.CommentCommand) []graph.CommentCommand {
	for _, existing := range dst {
		if existing.Raw == c.Raw {
			return dst
		}
	}
	return append(dst, c)
}
