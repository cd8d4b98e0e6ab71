package mutator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/deadwood/pkg/graph"
	"github.com/panbanda/deadwood/pkg/graph/graphtest"
	"github.com/panbanda/deadwood/pkg/mutator"
)

func TestAncestralReferenceEliminator(t *testing.T) {
	b := graphtest.New(t)
	typ := b.Decl(graph.KindClass, "Node")
	other := b.Decl(graph.KindClass, "Edge")
	method := b.Child(typ, graph.KindMethodInstance, "visit()")
	b.Ref(method, typ)
	b.Ref(method, method)
	b.Ref(method, other)
	base := b.Decl(graph.KindClass, "Base")
	b.Related(typ, base)

	require.NoError(t, mutator.AncestralReferenceEliminator{}.Run(b.G))

	assert.Equal(t, []string{other.FirstUsr()}, targets(b.G, method))
	assert.Len(t, b.G.RelatedOf(typ), 1)
}

func TestAssignOnlyPropertyReferenceEliminator(t *testing.T) {
	tests := []struct {
		name     string
		opts     []graphtest.DeclOption
		read     bool
		pass     mutator.AssignOnlyPropertyReferenceEliminator
		wantMark bool
	}{
		{name: "written only", wantMark: true},
		{name: "read as well", read: true},
		{name: "disabled", pass: mutator.AssignOnlyPropertyReferenceEliminator{Disabled: true}},
		{
			name: "exempted type",
			opts: []graphtest.DeclOption{graphtest.DeclaredType("Bool")},
			pass: mutator.AssignOnlyPropertyReferenceEliminator{ExemptedTypes: []string{"Bool"}},
		},
		{name: "attributed", opts: []graphtest.DeclOption{graphtest.Attributes("Published")}},
		{name: "objc", opts: []graphtest.DeclOption{graphtest.ObjC()}},
		{name: "weak", opts: []graphtest.DeclOption{graphtest.Modifiers("weak")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := graphtest.New(t)
			typ := b.Decl(graph.KindClass, "Counter")
			prop := b.Child(typ, graph.KindVarInstance, "count", tt.opts...)
			writer := b.Decl(graph.KindFunctionFree, "bump()")
			b.Ref(writer, prop, graphtest.Write())
			if tt.read {
				b.Ref(writer, prop)
			}

			require.NoError(t, tt.pass.Run(b.G))

			assert.Equal(t, tt.wantMark, b.G.IsAssignOnly(prop))
			if tt.wantMark {
				assert.Empty(t, b.G.ReferencesToDeclaration(prop))
			} else {
				assert.NotEmpty(t, b.G.ReferencesToDeclaration(prop))
			}
		})
	}
}

func TestAssignOnlyPropertyReferenceEliminator_SkipsComputedProperties(t *testing.T) {
	b := graphtest.New(t)
	typ := b.Decl(graph.KindClass, "Counter")
	prop := b.Child(typ, graph.KindVarInstance, "count")
	b.Child(prop, graph.KindAccessorSetter, "set")
	writer := b.Decl(graph.KindFunctionFree, "bump()")
	b.Ref(writer, prop, graphtest.Write())

	require.NoError(t, mutator.AssignOnlyPropertyReferenceEliminator{}.Run(b.G))

	assert.False(t, b.G.IsAssignOnly(prop))
}

func TestAssignOnlyPropertyReferenceEliminator_SkipsUnreferenced(t *testing.T) {
	b := graphtest.New(t)
	typ := b.Decl(graph.KindClass, "Counter")
	prop := b.Child(typ, graph.KindVarInstance, "count")

	require.NoError(t, mutator.AssignOnlyPropertyReferenceEliminator{}.Run(b.G))

	assert.False(t, b.G.IsAssignOnly(prop))
}
