package mutator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/panbanda/deadwood/pkg/graph"
)

var entryPointAttributes = []string{"main", "UIApplicationMain", "NSApplicationMain"}

// EntryPointRetainer retains program entry points.
type EntryPointRetainer struct{}

func (EntryPointRetainer) Name() string { return "EntryPointRetainer" }

func (EntryPointRetainer) Run(g *graph.Graph) error {
	for _, d := range g.Declarations() {
		if !slices.ContainsFunc(entryPointAttributes, d.HasAttribute) {
			continue
		}
		g.Retain(d)
		if m := childNamed(g, d, "main()", graph.KindMethodStatic); m != nil {
			g.Retain(m)
		}
	}
	return nil
}

var testCaseClasses = []string{"XCTestCase", "QuickSpec", "AsyncSpec"}

// TestRetainer retains test case classes and their test methods, which the
// test runner discovers at run time.
type TestRetainer struct {
	ExternalTestCaseClasses []string
}

func (TestRetainer) Name() string { return "TestRetainer" }

func (t TestRetainer) Run(g *graph.Graph) error {
	bases := append(slices.Clone(testCaseClasses), t.ExternalTestCaseClasses...)
	for _, class := range g.Declarations(graph.KindClass) {
		if !inheritsFrom(g, class, bases...) {
			continue
		}
		g.Retain(class)
		for _, m := range g.Children(class) {
			if m.Kind == graph.KindMethodInstance && isTestMethodName(m.Name) {
				g.Retain(m)
			}
		}
	}
	for _, d := range g.Declarations() {
		switch {
		case d.Kind.IsFunction() && d.HasAttribute("Test"):
			g.Retain(d)
		case d.Kind.IsType() && d.HasAttribute("Suite"):
			g.Retain(d)
		}
	}
	return nil
}

// isTestMethodName matches argument-less methods named test*.
func isTestMethodName(name string) bool {
	return strings.HasPrefix(name, "test") && strings.HasSuffix(name, "()")
}

var frameworkCallbackAttributes = []string{
	"IBAction", "IBOutlet", "IBInspectable", "IBSegueAction", "IBDesignable",
	"NSManaged", "GKInspectable",
}

// FrameworkCallbackRetainer retains members the UI frameworks call or bind by
// name, and optionally SwiftUI preview providers.
type FrameworkCallbackRetainer struct {
	SwiftUIPreviews bool
}

func (FrameworkCallbackRetainer) Name() string { return "FrameworkCallbackRetainer" }

func (f FrameworkCallbackRetainer) Run(g *graph.Graph) error {
	for _, d := range g.Declarations() {
		if slices.ContainsFunc(frameworkCallbackAttributes, d.HasAttribute) {
			g.Retain(d)
		}
	}
	if !f.SwiftUIPreviews {
		return nil
	}
	for _, d := range g.Declarations(graph.ConcreteTypeKinds()...) {
		if !inheritsFrom(g, d, "PreviewProvider") {
			continue
		}
		g.Retain(d)
		if p := childNamed(g, d, "previews", graph.KindVarStatic); p != nil {
			g.Retain(p)
		}
	}
	return nil
}

// ObjcRetainer retains declarations visible to the Objective-C runtime, which
// may be called dynamically.
type ObjcRetainer struct {
	// Accessible retains everything the index reports as Objective-C accessible.
	Accessible bool
	// Annotated retains only declarations written with @objc or @objcMembers.
	Annotated bool
}

func (ObjcRetainer) Name() string { return "ObjcRetainer" }

func (o ObjcRetainer) Run(g *graph.Graph) error {
	if !o.Accessible && !o.Annotated {
		return nil
	}
	for _, d := range g.Declarations() {
		switch {
		case o.Accessible && d.ObjcAccessible:
			g.Retain(d)
		case o.Annotated && d.HasAttribute("objcMembers"):
			g.Retain(d)
			for _, c := range g.Children(d) {
				if c.Kind.IsMember() {
					g.Retain(c)
				}
			}
		case o.Annotated && d.HasAttribute("objc"):
			g.Retain(d)
		}
	}
	return nil
}

// CodablePropertyRetainer retains stored properties of encodable types. The
// synthesized encoder reads them without an indexed occurrence.
type CodablePropertyRetainer struct {
	// All also retains properties of decode-only types.
	All                      bool
	ExternalCodableProtocols []string
}

func (CodablePropertyRetainer) Name() string { return "CodablePropertyRetainer" }

func (c CodablePropertyRetainer) Run(g *graph.Graph) error {
	encodable := append([]string{"Codable", "Encodable"}, c.ExternalCodableProtocols...)
	for _, typ := range g.Declarations(graph.ConcreteTypeKinds()...) {
		if !inheritsFrom(g, typ, encodable...) && !(c.All && inheritsFrom(g, typ, "Decodable")) {
			continue
		}
		for _, p := range g.Children(typ) {
			if p.Kind == graph.KindVarInstance && isStored(g, p) {
				g.Retain(p)
			}
		}
	}
	return nil
}

// isStored reports whether the property has no explicit getter, setter or observer.
func isStored(g *graph.Graph, d *graph.Declaration) bool {
	for _, c := range g.Children(d) {
		if c.Kind.IsAccessor() && !c.Implicit {
			return false
		}
	}
	return true
}

// ResultBuilderRetainer retains the static build methods of result builders.
type ResultBuilderRetainer struct{}

func (ResultBuilderRetainer) Name() string { return "ResultBuilderRetainer" }

func (ResultBuilderRetainer) Run(g *graph.Graph) error {
	for _, typ := range g.Declarations() {
		if !typ.HasAttribute("resultBuilder") {
			continue
		}
		for _, m := range g.Children(typ) {
			if m.Kind == graph.KindMethodStatic && strings.HasPrefix(m.Name, "build") {
				g.Retain(m)
			}
		}
	}
	return nil
}

// PropertyWrapperRetainer retains the members the compiler uses to expand a
// property wrapper.
type PropertyWrapperRetainer struct{}

func (PropertyWrapperRetainer) Name() string { return "PropertyWrapperRetainer" }

func (PropertyWrapperRetainer) Run(g *graph.Graph) error {
	for _, typ := range g.Declarations() {
		if !typ.HasAttribute("propertyWrapper") {
			continue
		}
		for _, m := range g.Children(typ) {
			switch {
			case m.Kind.IsVariable() && (m.Name == "wrappedValue" || m.Name == "projectedValue"):
				g.Retain(m)
			case m.Kind == graph.KindConstructor && strings.HasPrefix(m.Name, "init(wrappedValue:"):
				g.Retain(m)
			}
		}
	}
	return nil
}

// DynamicMemberRetainer retains dynamic member lookup subscripts and dynamic
// call methods, which are invoked through ordinary member syntax.
type DynamicMemberRetainer struct{}

func (DynamicMemberRetainer) Name() string { return "DynamicMemberRetainer" }

func (DynamicMemberRetainer) Run(g *graph.Graph) error {
	for _, typ := range g.Declarations() {
		lookup := typ.HasAttribute("dynamicMemberLookup")
		callable := typ.HasAttribute("dynamicCallable")
		if !lookup && !callable {
			continue
		}
		for _, m := range g.Children(typ) {
			switch {
			case lookup && m.Kind == graph.KindSubscript && strings.HasPrefix(m.Name, "subscript(dynamicMember:"):
				g.Retain(m)
			case callable && m.Kind.IsFunction() && m.BaseName() == "dynamicallyCall":
				g.Retain(m)
			}
		}
	}
	return nil
}

// ExternalOverrideRetainer retains overrides of declarations outside the
// graph. Their callers live in code that was not indexed.
type ExternalOverrideRetainer struct{}

func (ExternalOverrideRetainer) Name() string { return "ExternalOverrideRetainer" }

func (ExternalOverrideRetainer) Run(g *graph.Graph) error {
	for _, d := range g.Declarations() {
		overrides := false
		external := false
		for _, r := range g.RelatedOf(d) {
			if r.Role != graph.RoleOverride {
				continue
			}
			overrides = true
			if g.ExplicitDeclaration(r.Usr) == nil {
				external = true
				break
			}
		}
		if external || (d.IsOverride() && !overrides) {
			g.Retain(d)
		}
	}
	return nil
}

// ExternalExtensionRetainer retains extensions whose extended type is not in
// the graph and so could not be folded.
type ExternalExtensionRetainer struct{}

func (ExternalExtensionRetainer) Name() string { return "ExternalExtensionRetainer" }

func (ExternalExtensionRetainer) Run(g *graph.Graph) error {
	for _, ext := range g.Declarations(graph.ExtensionKinds()...) {
		g.Retain(ext)
	}
	return nil
}

// UnusedParameterRetainer resolves the unused parameter names reported by
// syntax analysis into parameter declarations, leaving out parameters whose
// signature is fixed by something other than the function body.
type UnusedParameterRetainer struct {
	// RetainProtocolParams skips protocol requirements and their implementations.
	RetainProtocolParams bool
}

func (UnusedParameterRetainer) Name() string { return "UnusedParameterRetainer" }

func (u UnusedParameterRetainer) Run(g *graph.Graph) error {
	for _, fn := range g.Declarations(graph.FunctionKinds()...) {
		if len(fn.UnusedParameterNames) == 0 || !u.analyzable(g, fn) {
			continue
		}
		names := slices.Clone(fn.UnusedParameterNames)
		if reqs := implementedRequirements(g, fn); len(reqs) > 0 {
			if u.RetainProtocolParams {
				continue
			}
			names = slices.DeleteFunc(names, func(name string) bool {
				return !unusedInAllImplementations(g, reqs, name)
			})
		}
		names = slices.DeleteFunc(names, func(name string) bool { return ignoredParameter(fn, name) })
		for _, name := range names {
			p := childNamed(g, fn, name, graph.KindVarParameter)
			// Syntax may name a parameter the index omitted, e.g. `_`.
			if p == nil {
				continue
			}
			if !slices.Contains(fn.UnusedParameters, p.ID) {
				fn.UnusedParameters = append(fn.UnusedParameters, p.ID)
			}
		}
	}
	return nil
}

func (u UnusedParameterRetainer) analyzable(g *graph.Graph, fn *graph.Declaration) bool {
	if fn.IsOverride() || fn.GenericReturnType || isRequirement(g, fn) {
		return false
	}
	if fn.HasAttribute("objc") || fn.HasAttribute("IBAction") || fn.HasAttribute("IBSegueAction") {
		return false
	}
	for _, r := range g.RelatedOf(fn) {
		if r.Role == graph.RoleOverride {
			return false
		}
	}
	return true
}

// ignoredParameter reports whether an ignore:parameters command covers name.
// The command without arguments covers every parameter.
func ignoredParameter(fn *graph.Declaration, name string) bool {
	for _, cmd := range fn.Commands {
		if cmd.Kind != graph.CommandIgnoreParameters {
			continue
		}
		if len(cmd.Args) == 0 || slices.Contains(cmd.Args, name) {
			return true
		}
	}
	return false
}

// implementedRequirements returns the protocol requirements fn satisfies.
func implementedRequirements(g *graph.Graph, fn *graph.Declaration) []*graph.Declaration {
	var out []*graph.Declaration
	for _, r := range g.ReferencesToDeclaration(fn) {
		if !r.Related || r.Role != graph.RoleImplementation {
			continue
		}
		if owner := g.OwnerOf(r); owner != nil && isRequirement(g, owner) {
			out = append(out, owner)
		}
	}
	return out
}

// unusedInAllImplementations reports whether every in-graph implementation of
// every requirement leaves the parameter unused.
func unusedInAllImplementations(g *graph.Graph, reqs []*graph.Declaration, name string) bool {
	for _, req := range reqs {
		for _, r := range g.RelatedOf(req) {
			if r.Role != graph.RoleImplementation {
				continue
			}
			impl := g.ExplicitDeclaration(r.Usr)
			if impl == nil || !slices.Contains(impl.UnusedParameterNames, name) {
				return false
			}
		}
	}
	return true
}

// PublicRetainer retains public and open declarations when the analyzed
// modules are libraries consumed from outside.
type PublicRetainer struct {
	Enabled bool
}

func (PublicRetainer) Name() string { return "PublicRetainer" }

func (p PublicRetainer) Run(g *graph.Graph) error {
	if !p.Enabled {
		return nil
	}
	for _, d := range g.Declarations() {
		if d.Accessibility.IsAccessibleOutsideModule() {
			g.Retain(d)
		}
	}
	return nil
}

// FileRetainer retains every declaration in files matching one of Globs.
type FileRetainer struct {
	Globs []string
}

func (FileRetainer) Name() string { return "FileRetainer" }

func (f FileRetainer) Run(g *graph.Graph) error {
	if len(f.Globs) == 0 {
		return nil
	}
	for _, pattern := range f.Globs {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid retain glob %q: %w", pattern, doublestar.ErrBadPattern)
		}
	}
	for _, file := range g.Files() {
		if !matchesAny(f.Globs, file.Path) {
			continue
		}
		for _, d := range g.DeclarationsInFile(file.Path) {
			g.Retain(d)
		}
	}
	return nil
}

func matchesAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}

// CommentCommandRetainer applies ignore commands written in source comments.
type CommentCommandRetainer struct{}

func (CommentCommandRetainer) Name() string { return "CommentCommandRetainer" }

func (CommentCommandRetainer) Run(g *graph.Graph) error {
	for _, file := range g.Files() {
		if !file.IgnoreAll {
			continue
		}
		for _, d := range g.DeclarationsInFile(file.Path) {
			g.Retain(d)
		}
	}
	for _, d := range g.Declarations() {
		if d.HasCommand(graph.CommandIgnore) {
			retainWithDescendants(g, d)
		}
	}
	return nil
}
