package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/deadwood/pkg/graph"
)

func writeUnit(t *testing.T, dir, name string, u Unit) string {
	t.Helper()
	data, err := json.Marshal(u)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func pos(line, col int) Position { return Position{Line: line, Column: col} }

func ingest(t *testing.T, paths []string, opts ...Option) (*graph.Graph, Stats) {
	t.Helper()
	g := graph.New()
	stats, err := New(opts...).Ingest(context.Background(), g, paths)
	require.NoError(t, err)
	return g, stats
}

// classUnit describes:
//
//	class C {            // line 1
//	    func m() {}      // line 2
//	}
//	func f() { C().m() } // line 4
func classUnit() Unit {
	return Unit{
		File:    "Sources/App/C.swift",
		Modules: []string{"App"},
		Symbols: []Symbol{
			{Usr: "s:C", Kind: "class", Name: "C", Location: pos(1, 7)},
			{Usr: "s:C.m", Kind: "instanceMethod", Name: "m()", Location: pos(2, 10),
				Relations: []Relation{{Role: RelationChildOf, Usr: "s:C"}}},
			{Usr: "s:f", Kind: "function", Name: "f()", Location: pos(4, 6)},
		},
		Occurrences: []Occurrence{
			{Usr: "s:C", Kind: "class", Name: "C", Location: pos(4, 12), Roles: []string{OccurrenceReference},
				Relations: []Relation{{Role: RelationContainedBy, Usr: "s:f"}}},
			{Usr: "s:C.m", Kind: "instanceMethod", Name: "m()", Location: pos(4, 16), Roles: []string{OccurrenceReference},
				Relations: []Relation{{Role: RelationCalledBy, Usr: "s:f"}}},
		},
	}
}

func TestIngest_BuildsHierarchyAndReferences(t *testing.T) {
	dir := t.TempDir()
	g, stats := ingest(t, []string{writeUnit(t, dir, "c.json", classUnit())})

	c := g.DeclarationForUsr("s:C")
	m := g.DeclarationForUsr("s:C.m")
	f := g.DeclarationForUsr("s:f")
	require.NotNil(t, c)
	require.NotNil(t, m)
	require.NotNil(t, f)

	assert.Equal(t, graph.KindClass, c.Kind)
	assert.Equal(t, graph.KindMethodInstance, m.Kind)
	assert.Equal(t, c.ID, m.Parent)
	assert.Equal(t, []graph.DeclID{m.ID}, c.Children)

	refs := g.ReferencesOf(f)
	require.Len(t, refs, 2)
	assert.Equal(t, "s:C", refs[0].Usr)
	assert.Equal(t, "s:C.m", refs[1].Usr)

	assert.Equal(t, 1, stats.Units)
	assert.Equal(t, 3, stats.Declarations)
	assert.Equal(t, 2, stats.References)
	assert.Zero(t, stats.Dangling)
}

func TestIngest_SameFileInSeveralModulesMerges(t *testing.T) {
	dir := t.TempDir()
	a := classUnit()
	b := classUnit()
	b.Modules = []string{"AppTests"}

	g, _ := ingest(t, []string{writeUnit(t, dir, "a.json", a), writeUnit(t, dir, "b.json", b)})

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []string{"App", "AppTests"}, g.File("Sources/App/C.swift").Modules)
	assert.Len(t, g.ReferencesOf(g.DeclarationForUsr("s:f")), 2, "duplicate references collapse")
}

func TestIngest_CrossUnitParent(t *testing.T) {
	dir := t.TempDir()
	typeUnit := Unit{
		File: "T.swift", Modules: []string{"App"},
		Symbols: []Symbol{{Usr: "s:T", Kind: "struct", Name: "T", Location: pos(1, 8)}},
	}
	extUnit := Unit{
		File: "T+Ext.swift", Modules: []string{"App"},
		Symbols: []Symbol{
			{Usr: "s:e:T", Kind: "extension", Subkind: "swiftExtensionOfStruct", Name: "T", Location: pos(1, 11)},
			{Usr: "s:T.g", Kind: "instanceMethod", Name: "g()", Location: pos(2, 10),
				Relations: []Relation{{Role: RelationChildOf, Usr: "s:e:T"}}},
		},
		Occurrences: []Occurrence{
			{Usr: "s:T", Kind: "struct", Name: "T", Location: pos(1, 11), Roles: []string{OccurrenceReference},
				Relations: []Relation{{Role: RelationExtendedBy, Usr: "s:e:T"}}},
		},
	}
	g, _ := ingest(t, []string{writeUnit(t, dir, "ext.json", extUnit), writeUnit(t, dir, "type.json", typeUnit)})

	ext := g.DeclarationForUsr("s:e:T")
	require.NotNil(t, ext)
	assert.Equal(t, graph.KindExtensionStruct, ext.Kind)
	assert.Equal(t, ext.ID, g.DeclarationForUsr("s:T.g").Parent)
	refs := g.ReferencesOf(ext)
	require.Len(t, refs, 1)
	assert.Equal(t, "s:T", refs[0].Usr)
}

func TestIngest_OverrideAndConformanceRelations(t *testing.T) {
	dir := t.TempDir()
	u := Unit{
		File: "A.swift", Modules: []string{"App"},
		Symbols: []Symbol{
			{Usr: "s:P", Kind: "protocol", Name: "P", Location: pos(1, 10)},
			{Usr: "s:B", Kind: "class", Name: "B", Location: pos(2, 7)},
			{Usr: "s:B.f", Kind: "instanceMethod", Name: "f()", Location: pos(3, 10),
				Relations: []Relation{{Role: RelationChildOf, Usr: "s:B"}}},
			{Usr: "s:C", Kind: "class", Name: "C", Location: pos(5, 7)},
			{Usr: "s:C.f", Kind: "instanceMethod", Name: "f()", Location: pos(6, 19),
				Relations: []Relation{{Role: RelationChildOf, Usr: "s:C"}, {Role: RelationOverrideOf, Usr: "s:B.f"}}},
		},
		Occurrences: []Occurrence{
			{Usr: "s:B", Kind: "class", Name: "B", Location: pos(5, 11), Roles: []string{OccurrenceReference},
				Relations: []Relation{{Role: RelationBaseOf, Usr: "s:C"}}},
			{Usr: "s:P", Kind: "protocol", Name: "P", Location: pos(5, 14), Roles: []string{OccurrenceReference},
				Relations: []Relation{{Role: RelationBaseOf, Usr: "s:C"}}},
		},
	}
	g, _ := ingest(t, []string{writeUnit(t, dir, "a.json", u)})

	cf := g.RelatedOf(g.DeclarationForUsr("s:C.f"))
	require.Len(t, cf, 1)
	assert.Equal(t, "s:B.f", cf[0].Usr)
	assert.Equal(t, graph.RoleOverride, cf[0].Role)
	assert.Equal(t, graph.KindMethodInstance, cf[0].Kind)

	related := g.RelatedOf(g.DeclarationForUsr("s:C"))
	require.Len(t, related, 2)
	assert.Equal(t, graph.RoleInheritedType, related[0].Role)
	assert.Equal(t, graph.RoleConformedType, related[1].Role)
}

func TestIngest_UnresolvedReferences(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		topLevel bool
		wantRoot bool
	}{
		{name: "library file dangles", file: "Lib.swift"},
		{name: "main file is top level", file: "main.swift", wantRoot: true},
		{name: "flagged top level code", file: "Script.swift", topLevel: true, wantRoot: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			u := Unit{
				File: tt.file, Modules: []string{"App"}, TopLevelCode: tt.topLevel,
				Symbols: []Symbol{{Usr: "s:run", Kind: "function", Name: "run()", Location: pos(1, 6)}},
				Occurrences: []Occurrence{
					{Usr: "s:run", Kind: "function", Name: "run()", Location: pos(3, 1), Roles: []string{OccurrenceReference}},
				},
			}
			g, stats := ingest(t, []string{writeUnit(t, dir, "u.json", u)})
			if tt.wantRoot {
				assert.Len(t, g.RootReferences(), 1)
				assert.Zero(t, stats.Dangling)
			} else {
				assert.Empty(t, g.RootReferences())
				assert.Equal(t, 1, stats.Dangling)
			}
		})
	}
}

func TestIngest_AssociatesByLocationAndNesting(t *testing.T) {
	dir := t.TempDir()
	u := Unit{
		File: "A.swift", Modules: []string{"App"},
		Symbols: []Symbol{
			{Usr: "s:S", Kind: "struct", Name: "S", Location: pos(1, 8)},
			{Usr: "s:S.x", Kind: "instanceProperty", Name: "x", Location: pos(2, 9),
				Relations: []Relation{{Role: RelationChildOf, Usr: "s:S"}}},
			{Usr: "s:S.x.implicit", Kind: "instanceProperty", Name: "x", Implicit: true, Location: pos(2, 9)},
			{Usr: "s:T", Kind: "struct", Name: "T", Location: pos(4, 8)},
		},
		Occurrences: []Occurrence{
			// Declared type of x, reported at the declaration's own location.
			{Usr: "s:T", Kind: "struct", Name: "T", Location: pos(2, 9), Roles: []string{OccurrenceReference}},
			{Usr: "s:Gen", Kind: "struct", Name: "Gen", Location: pos(5, 3), Roles: []string{OccurrenceReference},
				Relations: []Relation{{Role: RelationContainedBy, Usr: "s:T"}}},
			// Generic argument of the Gen reference on the same line.
			{Usr: "s:S", Kind: "struct", Name: "S", Location: pos(5, 7), Roles: []string{OccurrenceReference}},
		},
	}
	g, _ := ingest(t, []string{writeUnit(t, dir, "a.json", u)})

	x := g.DeclarationForUsr("s:S.x")
	refs := g.ReferencesOf(x)
	require.Len(t, refs, 1, "explicit declaration at the same location owns the reference")
	assert.Equal(t, "s:T", refs[0].Usr)

	toS := g.ReferencesTo("s:S")
	require.Len(t, toS, 1)
	assert.NotZero(t, toS[0].ParentRef)
	assert.Same(t, g.DeclarationForUsr("s:T"), g.OwnerOf(toS[0]))
}

func TestIngest_MetadataAndRoles(t *testing.T) {
	dir := t.TempDir()
	u := Unit{
		File: "A.swift", Modules: []string{"App"},
		Symbols: []Symbol{
			{Usr: "s:C", Kind: "class", Name: "C", Location: pos(1, 14)},
			{Usr: "s:C.v", Kind: "instanceProperty", Name: "v", Location: pos(2, 9),
				Relations: []Relation{{Role: RelationChildOf, Usr: "s:C"}}},
			{Usr: "s:C.h", Kind: "instanceMethod", Name: "h(_:)", Location: pos(3, 10),
				Relations: []Relation{{Role: RelationChildOf, Usr: "s:C"}}},
		},
		Occurrences: []Occurrence{
			{Usr: "s:Int", Kind: "struct", Name: "Int", Location: pos(2, 12), Roles: []string{OccurrenceReference},
				Relations: []Relation{{Role: RelationContainedBy, Usr: "s:C.v"}}},
			{Usr: "s:Str", Kind: "struct", Name: "Str", Location: pos(3, 17), Roles: []string{OccurrenceReference},
				Relations: []Relation{{Role: RelationContainedBy, Usr: "s:C.h"}}},
			{Usr: "s:Bool", Kind: "struct", Name: "Bool", Location: pos(4, 5), Roles: []string{OccurrenceReference},
				Relations: []Relation{{Role: RelationContainedBy, Usr: "s:C.h"}}},
		},
		Metadata: []Metadata{
			{Location: pos(1, 14), Accessibility: "public", Explicit: true, Attributes: []string{"objc"}, Modifiers: []string{"final"},
				Commands: []string{"ignore"}},
			{Location: pos(3, 10), UnusedParameters: []string{"x"}, HasGenericFunctionReturnType: true},
		},
		ReferenceLocations: map[string][]Position{
			"variable_type":  {pos(2, 12)},
			"parameter_type": {pos(3, 15)},
			"return_type":    {pos(5, 1)},
		},
	}
	g, _ := ingest(t, []string{writeUnit(t, dir, "a.json", u)})

	c := g.DeclarationForUsr("s:C")
	assert.Equal(t, graph.Accessibility{Level: graph.AccessPublic, Explicit: true}, c.Accessibility)
	assert.True(t, c.HasAttribute("@objc"))
	assert.True(t, c.HasModifier("final"))
	assert.True(t, c.HasCommand(graph.CommandIgnore))

	h := g.DeclarationForUsr("s:C.h")
	assert.Equal(t, []string{"x"}, h.UnusedParameterNames)
	assert.True(t, h.GenericReturnType)

	assert.Equal(t, graph.RoleVariableType, g.ReferencesTo("s:Int")[0].Role, "exact match")
	assert.Equal(t, graph.RoleParameterType, g.ReferencesTo("s:Str")[0].Role, "same line fallback")
	assert.Equal(t, graph.RoleReturnType, g.ReferencesTo("s:Bool")[0].Role, "preceding line fallback")
}

func TestIngest_FallbacksDisabled(t *testing.T) {
	dir := t.TempDir()
	u := Unit{
		File: "A.swift", Modules: []string{"App"},
		Symbols: []Symbol{{Usr: "s:f", Kind: "function", Name: "f()", Location: pos(1, 6)}},
		Occurrences: []Occurrence{
			{Usr: "s:Int", Kind: "struct", Name: "Int", Location: pos(1, 20), Roles: []string{OccurrenceReference},
				Relations: []Relation{{Role: RelationContainedBy, Usr: "s:f"}}},
		},
		ReferenceLocations: map[string][]Position{"return_type": {pos(1, 18)}},
	}
	g, _ := ingest(t, []string{writeUnit(t, dir, "a.json", u)}, WithFallbacks())
	assert.Equal(t, graph.RoleUnknown, g.ReferencesTo("s:Int")[0].Role)
}

func TestIngest_WriteOnlyOccurrence(t *testing.T) {
	dir := t.TempDir()
	u := Unit{
		File: "A.swift", Modules: []string{"App"},
		Symbols: []Symbol{
			{Usr: "s:v", Kind: "variable", Name: "v", Location: pos(1, 5)},
			{Usr: "s:f", Kind: "function", Name: "f()", Location: pos(2, 6)},
		},
		Occurrences: []Occurrence{
			{Usr: "s:v", Kind: "variable", Name: "v", Location: pos(3, 3), Roles: []string{OccurrenceReference, OccurrenceWrite},
				Relations: []Relation{{Role: RelationContainedBy, Usr: "s:f"}}},
		},
	}
	g, _ := ingest(t, []string{writeUnit(t, dir, "a.json", u)})
	assert.True(t, g.ReferencesTo("s:v")[0].Write)
}

func TestIngest_UnknownKindsSkipped(t *testing.T) {
	dir := t.TempDir()
	u := Unit{
		File: "A.swift", Modules: []string{"App"},
		Symbols: []Symbol{
			{Usr: "s:x", Kind: "commentTag", Name: "x", Location: pos(1, 1)},
			{Usr: "s:f", Kind: "function", Name: "f()", Location: pos(2, 6)},
		},
	}
	g, stats := ingest(t, []string{writeUnit(t, dir, "a.json", u)})
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, 1, stats.SkippedKinds)
}

func TestIngest_FileCommandsAndImports(t *testing.T) {
	dir := t.TempDir()
	u := Unit{
		File: "A.swift", Modules: []string{"App"},
		FileCommands: []string{"ignore:all"},
		Imports:      []Import{{Module: "Foundation", Line: 1, Column: 1}, {Module: "Core", Testable: true, Line: 2, Column: 1, Commands: []string{"ignore"}}},
	}
	g, _ := ingest(t, []string{writeUnit(t, dir, "a.json", u)})

	f := g.File("A.swift")
	require.NotNil(t, f)
	assert.True(t, f.IgnoreAll)
	require.Len(t, f.Imports, 2)
	assert.True(t, f.Imports[1].Testable)
	assert.True(t, graph.HasCommand(f.Imports[1].Commands, graph.CommandIgnore))
}

func TestIngest_SchemaViolationAbortsBatch(t *testing.T) {
	dir := t.TempDir()
	good := writeUnit(t, dir, "good.json", classUnit())
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"file": "X.swift", "modules": [], "bogus": 1}`), 0o644))

	_, err := New().Ingest(context.Background(), graph.New(), []string{good, bad})
	require.Error(t, err)

	var ue *UnitError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, bad, ue.Path)
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestIngest_MalformedJSON(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"file": `), 0o644))

	_, err := New(WithSchemaValidation(false)).Ingest(context.Background(), graph.New(), []string{bad})
	require.ErrorIs(t, err, ErrMalformedUnit)
}

func TestIngest_NoUnits(t *testing.T) {
	_, err := New().Ingest(context.Background(), graph.New(), nil)
	require.ErrorIs(t, err, ErrNoUnits)
}

// snapshot renders a graph into a comparable form independent of IDs.
func snapshot(g *graph.Graph) []string {
	var out []string
	for _, d := range g.Declarations() {
		parent := ""
		if p := g.Parent(d); p != nil {
			parent = p.FirstUsr()
		}
		out = append(out, fmt.Sprintf("decl %v %s parent=%s", d.Usrs, d.Kind, parent))
		for _, r := range append(g.ReferencesOf(d), g.RelatedOf(d)...) {
			out = append(out, fmt.Sprintf("ref %s -> %s %s %s", d.FirstUsr(), r.Usr, r.Role, r.Location))
		}
	}
	for _, r := range g.RootReferences() {
		out = append(out, "root "+r.Usr)
	}
	sort.Strings(out)
	return out
}

func TestIngest_IndependentOfOrderAndWorkers(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 8; i++ {
		u := classUnit()
		u.File = fmt.Sprintf("F%d.swift", i)
		for j := range u.Symbols {
			u.Symbols[j].Usr = fmt.Sprintf("%s%d", u.Symbols[j].Usr, i)
			for k := range u.Symbols[j].Relations {
				u.Symbols[j].Relations[k].Usr = fmt.Sprintf("%s%d", u.Symbols[j].Relations[k].Usr, i)
			}
		}
		for j := range u.Occurrences {
			// Every unit calls into the first one.
			u.Occurrences[j].Usr += "0"
			for k := range u.Occurrences[j].Relations {
				u.Occurrences[j].Relations[k].Usr = fmt.Sprintf("%s%d", u.Occurrences[j].Relations[k].Usr, i)
			}
		}
		paths = append(paths, writeUnit(t, dir, fmt.Sprintf("u%d.json", i), u))
	}

	g1, _ := ingest(t, paths, WithWorkers(1))
	reversed := make([]string, len(paths))
	for i, p := range paths {
		reversed[len(paths)-1-i] = p
	}
	g2, _ := ingest(t, reversed, WithWorkers(8))

	assert.Equal(t, snapshot(g1), snapshot(g2))
}

func TestIngest_SourceParsingAddsCommands(t *testing.T) {
	dir := t.TempDir()
	src := "import Foundation\n\n// deadwood:ignore\nclass Kept {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Kept.swift"), []byte(src), 0o644))
	u := Unit{
		File: "Kept.swift", Modules: []string{"App"},
		Symbols: []Symbol{{Usr: "s:Kept", Kind: "class", Name: "Kept", Location: pos(4, 7)}},
	}
	g, _ := ingest(t, []string{writeUnit(t, dir, "k.json", u)}, WithSourceParsing(dir))

	assert.True(t, g.DeclarationForUsr("s:Kept").HasCommand(graph.CommandIgnore))
	f := g.File("Kept.swift")
	require.Len(t, f.Imports, 1)
	assert.Equal(t, "Foundation", f.Imports[0].Module)
}

func TestDecodeUnit_RequiresFileAndModules(t *testing.T) {
	_, err := DecodeUnit([]byte(`{"file": "", "modules": []}`), false)
	require.ErrorIs(t, err, ErrMalformedUnit)
}

func TestMapKind(t *testing.T) {
	tests := []struct {
		kind, subkind string
		want          graph.Kind
		ok            bool
	}{
		{"class", "", graph.KindClass, true},
		{"extension", "swiftExtensionOfProtocol", graph.KindExtensionProto, true},
		{"instanceMethod", "swiftAccessorGetter", graph.KindAccessorGetter, true},
		{"function", "swiftOperator", graph.KindOperator, true},
		{"function.method.static", "", graph.KindMethodStatic, true},
		{"commentTag", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.subkind, func(t *testing.T) {
			got, ok := mapKind(tt.kind, tt.subkind)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFallback(t *testing.T) {
	fb, err := ParseFallback("same_line")
	require.NoError(t, err)
	assert.Equal(t, FallbackSameLine, fb)

	_, err = ParseFallback("closest")
	assert.Error(t, err)
}
