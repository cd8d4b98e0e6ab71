package mutator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/deadwood/pkg/graph"
	"github.com/panbanda/deadwood/pkg/graph/graphtest"
	"github.com/panbanda/deadwood/pkg/mutator"
)

func TestAccessibilityCascader(t *testing.T) {
	tests := []struct {
		name      string
		container graph.Kind
		access    graph.AccessLevel
		want      graph.AccessLevel
	}{
		{name: "public extension", container: graph.KindExtensionStruct, access: graph.AccessPublic, want: graph.AccessPublic},
		{name: "private extension", container: graph.KindExtensionStruct, access: graph.AccessPrivate, want: graph.AccessFilePrivate},
		{name: "public protocol", container: graph.KindProtocol, access: graph.AccessPublic, want: graph.AccessPublic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := graphtest.New(t)
			c := b.Decl(tt.container, "Container", graphtest.Access(tt.access))
			inferred := b.Child(c, graph.KindMethodInstance, "run()")
			explicit := b.Child(c, graph.KindMethodInstance, "stop()", graphtest.Access(graph.AccessInternal))

			require.NoError(t, mutator.AccessibilityCascader{}.Run(b.G))

			assert.Equal(t, graph.Accessibility{Level: tt.want}, inferred.Accessibility)
			assert.Equal(t, graph.Accessibility{Level: graph.AccessInternal, Explicit: true}, explicit.Accessibility)
		})
	}
}

func TestAccessibilityCascader_SkipsInferredContainers(t *testing.T) {
	b := graphtest.New(t)
	ext := b.Decl(graph.KindExtensionStruct, "Container")
	m := b.Child(ext, graph.KindMethodInstance, "run()")

	require.NoError(t, mutator.AccessibilityCascader{}.Run(b.G))

	assert.Equal(t, graph.DefaultAccessibility(), m.Accessibility)
}

func TestExtensionFolder_FoldsIntoExtendedType(t *testing.T) {
	b := graphtest.New(t)
	proto := b.Decl(graph.KindProtocol, "Named")
	other := b.Decl(graph.KindStruct, "Other")
	foo := b.Decl(graph.KindStruct, "Foo")
	ext := b.Decl(graph.KindExtensionStruct, "Foo", graphtest.Usr("s:e:Foo"))
	bar := b.Child(ext, graph.KindMethodInstance, "bar()")
	b.Ref(ext, foo)
	b.Ref(ext, other)
	b.Related(ext, proto)
	user := b.Decl(graph.KindFunctionFree, "user()")
	b.Ref(user, ext)

	require.NoError(t, mutator.ExtensionFolder{}.Run(b.G))

	assert.Nil(t, b.G.Declaration(ext.ID))
	assert.Equal(t, foo.ID, bar.Parent)
	assert.Equal(t, graph.KindExtensionStruct, bar.ExtensionOrigin)

	refs := b.G.ReferencesOf(foo)
	require.Len(t, refs, 1)
	assert.Equal(t, other.FirstUsr(), refs[0].Usr)
	related := b.G.RelatedOf(foo)
	require.Len(t, related, 1)
	assert.Equal(t, proto.FirstUsr(), related[0].Usr)
	assert.Empty(t, b.G.ReferencesOf(user))

	folded := b.G.FoldedExtensions()
	require.Len(t, folded, 1)
	assert.Equal(t, foo.ID, folded[0].Extended)
	assert.Equal(t, []string{"s:e:Foo"}, folded[0].Usrs)
}

func TestExtensionFolder_LeavesExternalExtensions(t *testing.T) {
	b := graphtest.New(t)
	ext := b.Decl(graph.KindExtensionStruct, "String", graphtest.Usr("s:e:SS"))
	m := b.Child(ext, graph.KindMethodInstance, "shout()")
	b.RefUsr(ext, "s:SS", graph.KindStruct, "String")

	require.NoError(t, mutator.ExtensionFolder{}.Run(b.G))

	assert.NotNil(t, b.G.Declaration(ext.ID))
	assert.Equal(t, ext.ID, m.Parent)
	assert.Empty(t, b.G.FoldedExtensions())
}

func TestExtensionFolder_PropagatesIgnoreCommand(t *testing.T) {
	b := graphtest.New(t)
	foo := b.Decl(graph.KindClass, "Foo")
	ext := b.Decl(graph.KindExtensionClass, "Foo", graphtest.Usr("s:e:Foo"), graphtest.Commands("ignore"))
	m := b.Child(ext, graph.KindMethodInstance, "run()")
	b.Ref(ext, foo)

	require.NoError(t, mutator.ExtensionFolder{}.Run(b.G))

	assert.True(t, m.HasCommand(graph.CommandIgnore))
	assert.Equal(t, foo.ID, m.Parent)
}

func TestExtensionFolder_KindMismatchIsIntegrityError(t *testing.T) {
	b := graphtest.New(t)
	foo := b.Decl(graph.KindStruct, "Foo")
	ext := b.Decl(graph.KindExtensionClass, "Foo", graphtest.Usr("s:e:Foo"))
	b.RefUsr(ext, foo.FirstUsr(), graph.KindClass, "Foo")

	err := mutator.ExtensionFolder{}.Run(b.G)

	require.ErrorIs(t, err, graph.ErrIntegrity)
	var integrity *graph.IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, "ExtensionFolder", integrity.Pass)
}
