package mutator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/deadwood/pkg/graph"
	"github.com/panbanda/deadwood/pkg/graph/graphtest"
	"github.com/panbanda/deadwood/pkg/mutator"
)

func retained(g *graph.Graph) []string {
	var out []string
	for _, d := range g.RetainedDeclarations() {
		out = append(out, d.Name)
	}
	return out
}

func TestEntryPointRetainer(t *testing.T) {
	b := graphtest.New(t)
	app := b.Decl(graph.KindStruct, "App", graphtest.Attributes("main"))
	b.Child(app, graph.KindMethodStatic, "main()")
	b.Decl(graph.KindStruct, "Other")
	delegate := b.Decl(graph.KindClass, "AppDelegate", graphtest.Attributes("@UIApplicationMain"))

	require.NoError(t, mutator.EntryPointRetainer{}.Run(b.G))

	assert.ElementsMatch(t, []string{"App", "main()", "AppDelegate"}, retained(b.G))
	assert.True(t, b.G.IsRetained(delegate))
}

func TestTestRetainer(t *testing.T) {
	b := graphtest.New(t)
	suite := b.Decl(graph.KindClass, "LoginTests")
	b.RelatedUsr(suite, "c:objc(cs)XCTestCase", graph.KindClass, "XCTestCase")
	b.Child(suite, graph.KindMethodInstance, "testLogin()")
	b.Child(suite, graph.KindMethodInstance, "makeUser()")
	b.Child(suite, graph.KindMethodInstance, "testWith(user:)")
	sub := b.Decl(graph.KindClass, "AdminLoginTests")
	b.Related(sub, suite)
	b.Child(sub, graph.KindMethodInstance, "testAdmin()")
	spec := b.Decl(graph.KindClass, "CartSpec")
	b.RelatedUsr(spec, "s:CustomCase", graph.KindClass, "CustomCase")
	b.Decl(graph.KindFunctionFree, "checksTotals()", graphtest.Attributes("Test"))
	b.Decl(graph.KindStruct, "Suite", graphtest.Attributes("Suite"))

	pass := mutator.TestRetainer{ExternalTestCaseClasses: []string{"CustomCase"}}
	require.NoError(t, pass.Run(b.G))

	assert.ElementsMatch(t, []string{
		"LoginTests", "testLogin()", "AdminLoginTests", "testAdmin()", "CartSpec", "checksTotals()", "Suite",
	}, retained(b.G))
}

func TestFrameworkCallbackRetainer(t *testing.T) {
	for _, previews := range []bool{false, true} {
		b := graphtest.New(t)
		vc := b.Decl(graph.KindClass, "ViewController")
		b.Child(vc, graph.KindMethodInstance, "tapped(_:)", graphtest.Attributes("IBAction"))
		b.Child(vc, graph.KindVarInstance, "label", graphtest.Attributes("IBOutlet"))
		b.Child(vc, graph.KindMethodInstance, "plain()")
		preview := b.Decl(graph.KindStruct, "Preview")
		b.RelatedUsr(preview, "s:PreviewProvider", graph.KindProtocol, "PreviewProvider")
		b.Child(preview, graph.KindVarStatic, "previews")

		require.NoError(t, mutator.FrameworkCallbackRetainer{SwiftUIPreviews: previews}.Run(b.G))

		want := []string{"tapped(_:)", "label"}
		if previews {
			want = append(want, "Preview", "previews")
		}
		assert.ElementsMatch(t, want, retained(b.G))
	}
}

func TestObjcRetainer(t *testing.T) {
	tests := []struct {
		name string
		pass mutator.ObjcRetainer
		want []string
	}{
		{name: "disabled", want: nil},
		{name: "accessible", pass: mutator.ObjcRetainer{Accessible: true}, want: []string{"Bridge", "call()", "exposed()"}},
		{name: "annotated", pass: mutator.ObjcRetainer{Annotated: true}, want: []string{"Bridge", "call()", "exposed()"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := graphtest.New(t)
			bridge := b.Decl(graph.KindClass, "Bridge", graphtest.Attributes("objcMembers"), graphtest.ObjC())
			b.Child(bridge, graph.KindMethodInstance, "call()", graphtest.ObjC())
			b.Decl(graph.KindFunctionFree, "exposed()", graphtest.Attributes("objc"), graphtest.ObjC())
			b.Decl(graph.KindFunctionFree, "swiftOnly()")

			require.NoError(t, tt.pass.Run(b.G))

			assert.ElementsMatch(t, tt.want, retained(b.G))
		})
	}
}

func TestCodablePropertyRetainer(t *testing.T) {
	tests := []struct {
		name     string
		protocol string
		pass     mutator.CodablePropertyRetainer
		want     bool
	}{
		{name: "encodable", protocol: "Encodable", want: true},
		{name: "codable", protocol: "Codable", want: true},
		{name: "decodable", protocol: "Decodable", want: false},
		{name: "decodable with all", protocol: "Decodable", pass: mutator.CodablePropertyRetainer{All: true}, want: true},
		{name: "external", protocol: "Record", pass: mutator.CodablePropertyRetainer{ExternalCodableProtocols: []string{"Record"}}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := graphtest.New(t)
			typ := b.Decl(graph.KindStruct, "Payload")
			b.RelatedUsr(typ, "s:"+tt.protocol, graph.KindProtocol, tt.protocol)
			stored := b.Child(typ, graph.KindVarInstance, "id")
			computed := b.Child(typ, graph.KindVarInstance, "label")
			b.Child(computed, graph.KindAccessorGetter, "get")

			require.NoError(t, tt.pass.Run(b.G))

			assert.Equal(t, tt.want, b.G.IsRetained(stored))
			assert.False(t, b.G.IsRetained(computed))
		})
	}
}

func TestResultBuilderRetainer(t *testing.T) {
	b := graphtest.New(t)
	builder := b.Decl(graph.KindStruct, "HTMLBuilder", graphtest.Attributes("resultBuilder"))
	b.Child(builder, graph.KindMethodStatic, "buildBlock(_:)")
	b.Child(builder, graph.KindMethodStatic, "buildOptional(_:)")
	b.Child(builder, graph.KindMethodStatic, "helper()")

	require.NoError(t, mutator.ResultBuilderRetainer{}.Run(b.G))

	assert.ElementsMatch(t, []string{"buildBlock(_:)", "buildOptional(_:)"}, retained(b.G))
}

func TestPropertyWrapperRetainer(t *testing.T) {
	b := graphtest.New(t)
	wrapper := b.Decl(graph.KindStruct, "Clamped", graphtest.Attributes("propertyWrapper"))
	b.Child(wrapper, graph.KindVarInstance, "wrappedValue")
	b.Child(wrapper, graph.KindVarInstance, "projectedValue")
	b.Child(wrapper, graph.KindConstructor, "init(wrappedValue:range:)")
	b.Child(wrapper, graph.KindConstructor, "init(range:)")
	b.Child(wrapper, graph.KindVarInstance, "range")

	require.NoError(t, mutator.PropertyWrapperRetainer{}.Run(b.G))

	assert.ElementsMatch(t, []string{"wrappedValue", "projectedValue", "init(wrappedValue:range:)"}, retained(b.G))
}

func TestDynamicMemberRetainer(t *testing.T) {
	b := graphtest.New(t)
	lookup := b.Decl(graph.KindStruct, "Config", graphtest.Attributes("dynamicMemberLookup"))
	b.Child(lookup, graph.KindSubscript, "subscript(dynamicMember:)")
	b.Child(lookup, graph.KindSubscript, "subscript(_:)")
	callable := b.Decl(graph.KindStruct, "Command", graphtest.Attributes("dynamicCallable"))
	b.Child(callable, graph.KindMethodInstance, "dynamicallyCall(withArguments:)")

	require.NoError(t, mutator.DynamicMemberRetainer{}.Run(b.G))

	assert.ElementsMatch(t, []string{"subscript(dynamicMember:)", "dynamicallyCall(withArguments:)"}, retained(b.G))
}

func TestExternalOverrideRetainer(t *testing.T) {
	b := graphtest.New(t)
	base := b.Decl(graph.KindClass, "Base")
	baseRun := b.Child(base, graph.KindMethodInstance, "run()")
	sub := b.Decl(graph.KindClass, "Sub")
	subRun := b.Child(sub, graph.KindMethodInstance, "run()", graphtest.Modifiers("override"))
	b.Related(subRun, baseRun, graphtest.Role(graph.RoleOverride))
	viewDidLoad := b.Child(sub, graph.KindMethodInstance, "viewDidLoad()", graphtest.Modifiers("override"))
	b.RelatedUsr(viewDidLoad, "c:objc(cs)UIViewController(im)viewDidLoad", graph.KindMethodInstance, "viewDidLoad()",
		graphtest.Role(graph.RoleOverride))
	unlinked := b.Child(sub, graph.KindMethodInstance, "layout()", graphtest.Modifiers("override"))

	require.NoError(t, mutator.ExternalOverrideRetainer{}.Run(b.G))

	assert.False(t, b.G.IsRetained(subRun))
	assert.True(t, b.G.IsRetained(viewDidLoad))
	assert.True(t, b.G.IsRetained(unlinked))
}

func TestExternalExtensionRetainer(t *testing.T) {
	b := graphtest.New(t)
	ext := b.Decl(graph.KindExtensionStruct, "String", graphtest.Usr("s:e:SS"))
	member := b.Child(ext, graph.KindMethodInstance, "shout()")

	require.NoError(t, mutator.ExternalExtensionRetainer{}.Run(b.G))

	assert.True(t, b.G.IsRetained(ext))
	assert.False(t, b.G.IsRetained(member))
}

func unusedParams(names ...string) graphtest.DeclOption {
	return func(d *graph.Declaration) { d.UnusedParameterNames = names }
}

func paramNames(g *graph.Graph, fn *graph.Declaration) []string {
	var out []string
	for _, id := range fn.UnusedParameters {
		out = append(out, g.Declaration(id).Name)
	}
	return out
}

func TestUnusedParameterRetainer(t *testing.T) {
	tests := []struct {
		name string
		opts []graphtest.DeclOption
		want []string
	}{
		{name: "plain", want: []string{"a", "b"}},
		{name: "ignore all", opts: []graphtest.DeclOption{graphtest.Commands("ignore:parameters")}},
		{name: "ignore named", opts: []graphtest.DeclOption{graphtest.Commands("ignore:parameters=b")}, want: []string{"a"}},
		{name: "override", opts: []graphtest.DeclOption{graphtest.Modifiers("override")}},
		{name: "objc", opts: []graphtest.DeclOption{graphtest.Attributes("objc")}},
		{name: "ib action", opts: []graphtest.DeclOption{graphtest.Attributes("IBAction")}},
		{name: "generic return", opts: []graphtest.DeclOption{func(d *graph.Declaration) { d.GenericReturnType = true }}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := graphtest.New(t)
			opts := append([]graphtest.DeclOption{unusedParams("a", "b", "missing")}, tt.opts...)
			fn := b.Decl(graph.KindFunctionFree, "f(a:b:)", opts...)
			b.Child(fn, graph.KindVarParameter, "a")
			b.Child(fn, graph.KindVarParameter, "b")

			require.NoError(t, mutator.UnusedParameterRetainer{}.Run(b.G))

			assert.Equal(t, tt.want, paramNames(b.G, fn))
		})
	}
}

func TestUnusedParameterRetainer_ProtocolImplementations(t *testing.T) {
	tests := []struct {
		name         string
		secondUnused []string
		retainProto  bool
		wantFirst    []string
		wantSecond   []string
	}{
		{name: "unused everywhere", secondUnused: []string{"x"}, wantFirst: []string{"x"}, wantSecond: []string{"x"}},
		{name: "used by one implementation", secondUnused: nil},
		{name: "retained by option", secondUnused: []string{"x"}, retainProto: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := graphtest.New(t)
			proto := b.Decl(graph.KindProtocol, "Handler")
			req := b.Child(proto, graph.KindMethodInstance, "handle(x:)", unusedParams("x"))
			b.Child(req, graph.KindVarParameter, "x")
			first := b.Decl(graph.KindStruct, "First")
			firstImpl := b.Child(first, graph.KindMethodInstance, "handle(x:)", unusedParams("x"))
			b.Child(firstImpl, graph.KindVarParameter, "x")
			second := b.Decl(graph.KindStruct, "Second")
			secondImpl := b.Child(second, graph.KindMethodInstance, "handle(x:)", unusedParams(tt.secondUnused...))
			b.Child(secondImpl, graph.KindVarParameter, "x")
			b.Related(req, firstImpl, graphtest.Role(graph.RoleImplementation))
			b.Related(req, secondImpl, graphtest.Role(graph.RoleImplementation))

			require.NoError(t, mutator.UnusedParameterRetainer{RetainProtocolParams: tt.retainProto}.Run(b.G))

			assert.Equal(t, tt.wantFirst, paramNames(b.G, firstImpl))
			assert.Equal(t, tt.wantSecond, paramNames(b.G, secondImpl))
			assert.Empty(t, paramNames(b.G, req))
		})
	}
}

func TestPublicRetainer(t *testing.T) {
	for _, enabled := range []bool{false, true} {
		b := graphtest.New(t)
		b.Decl(graph.KindClass, "Client", graphtest.Access(graph.AccessPublic))
		b.Decl(graph.KindClass, "Base", graphtest.Access(graph.AccessOpen))
		b.Decl(graph.KindClass, "Internal")

		require.NoError(t, mutator.PublicRetainer{Enabled: enabled}.Run(b.G))

		if enabled {
			assert.ElementsMatch(t, []string{"Client", "Base"}, retained(b.G))
		} else {
			assert.Empty(t, retained(b.G))
		}
	}
}

func TestFileRetainer(t *testing.T) {
	b := graphtest.New(t)
	b.InFile("Sources/App/Main.swift", "App")
	b.Decl(graph.KindClass, "Main")
	b.InFile("Tests/AppTests/Fixtures.swift", "AppTests")
	b.Decl(graph.KindClass, "Fixture")
	b.Decl(graph.KindFunctionFree, "makeFixture()")

	require.NoError(t, mutator.FileRetainer{Globs: []string{"Tests/**/*.swift"}}.Run(b.G))

	assert.ElementsMatch(t, []string{"Fixture", "makeFixture()"}, retained(b.G))
}

func TestFileRetainer_InvalidGlob(t *testing.T) {
	b := graphtest.New(t)

	err := mutator.FileRetainer{Globs: []string{"Tests/[*.swift"}}.Run(b.G)

	assert.Error(t, err)
}

func TestCommentCommandRetainer(t *testing.T) {
	b := graphtest.New(t)
	kept := b.Decl(graph.KindClass, "Kept", graphtest.Commands("ignore"))
	b.Child(kept, graph.KindMethodInstance, "run()")
	b.Decl(graph.KindClass, "Plain")
	b.InFile("Generated.swift", "App")
	b.Decl(graph.KindStruct, "Generated")
	b.G.AddFile(&graph.SourceFile{Path: "Generated.swift", IgnoreAll: true})

	require.NoError(t, mutator.CommentCommandRetainer{}.Run(b.G))

	assert.ElementsMatch(t, []string{"Kept", "run()", "Generated"}, retained(b.G))
}
