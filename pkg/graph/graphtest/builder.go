// Package graphtest builds small declaration graphs for tests.
package graphtest

import (
	"testing"

	"github.com/panbanda/deadwood/pkg/graph"
)

// Builder adds declarations and references to a graph, assigning USRs and
// distinct locations so tests only state what matters.
type Builder struct {
	t     testing.TB
	G     *graph.Graph
	file  string
	lines map[string]int
}

// New returns a builder writing into a fresh graph, starting in App/File.swift.
func New(t testing.TB) *Builder {
	t.Helper()
	b := &Builder{t: t, G: graph.New(), lines: make(map[string]int)}
	b.InFile("File.swift", "App")
	return b
}

// InFile switches subsequent declarations to path, registering it in modules.
func (b *Builder) InFile(path string, modules ...string) *Builder {
	b.file = path
	b.G.AddFile(&graph.SourceFile{Path: path, Modules: modules})
	return b
}

// Import records an import statement in the current file.
func (b *Builder) Import(module string, opts ...func(*graph.ImportStatement)) graph.ImportStatement {
	imp := graph.ImportStatement{Module: module, Location: b.next()}
	for _, opt := range opts {
		opt(&imp)
	}
	b.G.AddFile(&graph.SourceFile{Path: b.file, Imports: []graph.ImportStatement{imp}})
	return imp
}

// TopLevelCode marks the current file as containing executable top-level statements.
func (b *Builder) TopLevelCode() *Builder {
	b.G.AddFile(&graph.SourceFile{Path: b.file, TopLevelCode: true})
	return b
}

func (b *Builder) next() graph.Location {
	b.lines[b.file]++
	return graph.Location{File: b.file, Line: b.lines[b.file], Column: 1}
}

// DeclOption customizes a declaration before insertion.
type DeclOption func(*graph.Declaration)

// Implicit marks the declaration compiler-synthesized.
func Implicit() DeclOption {
	return func(d *graph.Declaration) { d.Implicit = true }
}

// Access sets an explicit accessibility level.
func Access(level graph.AccessLevel) DeclOption {
	return func(d *graph.Declaration) { d.Accessibility = graph.Accessibility{Level: level, Explicit: true} }
}

// Attributes sets declaration attributes.
func Attributes(attrs ...string) DeclOption {
	return func(d *graph.Declaration) { d.Attributes = append(d.Attributes, attrs...) }
}

// Modifiers sets declaration modifiers.
func Modifiers(mods ...string) DeclOption {
	return func(d *graph.Declaration) { d.Modifiers = append(d.Modifiers, mods...) }
}

// Commands attaches parsed comment commands.
func Commands(cmds ...string) DeclOption {
	return func(d *graph.Declaration) {
		for _, c := range cmds {
			d.Commands = append(d.Commands, graph.ParseCommentCommand(c))
		}
	}
}

// Usr overrides the generated USR.
func Usr(usrs ...string) DeclOption {
	return func(d *graph.Declaration) { d.Usrs = usrs }
}

// ObjC marks the declaration visible to the Objective-C runtime.
func ObjC() DeclOption {
	return func(d *graph.Declaration) { d.ObjcAccessible = true }
}

// DeclaredType sets the declared type text.
func DeclaredType(typ string) DeclOption {
	return func(d *graph.Declaration) { d.DeclaredType = typ }
}

// Decl adds a top-level declaration.
func (b *Builder) Decl(kind graph.Kind, name string, opts ...DeclOption) *graph.Declaration {
	b.t.Helper()
	return b.add(nil, kind, name, opts)
}

// Child adds a declaration nested in parent.
func (b *Builder) Child(parent *graph.Declaration, kind graph.Kind, name string, opts ...DeclOption) *graph.Declaration {
	b.t.Helper()
	return b.add(parent, kind, name, opts)
}

func (b *Builder) add(parent *graph.Declaration, kind graph.Kind, name string, opts []DeclOption) *graph.Declaration {
	b.t.Helper()
	usr := "s:" + name
	if parent != nil {
		usr = parent.FirstUsr() + "." + name
	}
	d := &graph.Declaration{Kind: kind, Name: name, Usrs: []string{usr}, Location: b.next()}
	for _, opt := range opts {
		opt(d)
	}
	d, err := b.G.AddDeclaration(d)
	if err != nil {
		b.t.Fatalf("graphtest: add %s %s: %v", kind, name, err)
	}
	if parent != nil {
		b.G.SetParent(d.ID, parent.ID)
	}
	return d
}

// RefOption customizes a reference before insertion.
type RefOption func(*graph.Reference)

// Role sets the reference role.
func Role(role graph.Role) RefOption {
	return func(r *graph.Reference) { r.Role = role }
}

// Write marks the reference as an assignment.
func Write() RefOption {
	return func(r *graph.Reference) { r.Write = true }
}

// Receiver sets the receiver type USR.
func Receiver(usr string) RefOption {
	return func(r *graph.Reference) { r.ReceiverUsr = usr }
}

// Ref adds a reference from one declaration to another.
func (b *Builder) Ref(from, to *graph.Declaration, opts ...RefOption) *graph.Reference {
	b.t.Helper()
	return b.RefUsr(from, to.FirstUsr(), to.Kind, to.Name, opts...)
}

// RefUsr adds a reference from a declaration to an arbitrary, possibly external, USR.
func (b *Builder) RefUsr(from *graph.Declaration, usr string, kind graph.Kind, name string, opts ...RefOption) *graph.Reference {
	b.t.Helper()
	r := b.reference(usr, kind, name, false, opts)
	r, err := b.G.AddReference(r, from.ID)
	if err != nil {
		b.t.Fatalf("graphtest: reference %s: %v", usr, err)
	}
	return r
}

// Related adds a related (inheritance, conformance or override) reference.
func (b *Builder) Related(from, to *graph.Declaration, opts ...RefOption) *graph.Reference {
	b.t.Helper()
	r := b.reference(to.FirstUsr(), to.Kind, to.Name, true, opts)
	r, err := b.G.AddReference(r, from.ID)
	if err != nil {
		b.t.Fatalf("graphtest: related %s: %v", to.Name, err)
	}
	return r
}

// RelatedUsr adds a related reference to an arbitrary, possibly external, USR.
func (b *Builder) RelatedUsr(from *graph.Declaration, usr string, kind graph.Kind, name string, opts ...RefOption) *graph.Reference {
	b.t.Helper()
	r := b.reference(usr, kind, name, true, opts)
	r, err := b.G.AddReference(r, from.ID)
	if err != nil {
		b.t.Fatalf("graphtest: related %s: %v", usr, err)
	}
	return r
}

// RootRef adds a module-scope reference to a declaration.
func (b *Builder) RootRef(to *graph.Declaration, opts ...RefOption) *graph.Reference {
	b.t.Helper()
	return b.G.AddRootReference(b.reference(to.FirstUsr(), to.Kind, to.Name, false, opts))
}

func (b *Builder) reference(usr string, kind graph.Kind, name string, related bool, opts []RefOption) *graph.Reference {
	r := &graph.Reference{Usr: usr, Kind: kind, Name: name, Related: related, Location: b.next()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retain retains d by policy.
func (b *Builder) Retain(d *graph.Declaration) {
	b.G.Retain(d)
}
