package mutator

import (
	"slices"

	"github.com/panbanda/deadwood/pkg/graph"
)

// CodingKeyEnumReferenceBuilder references a CodingKeys enum, and all of its
// cases, from the Codable type that owns it. Synthesized coding uses them.
type CodingKeyEnumReferenceBuilder struct {
	ExternalCodableProtocols []string
}

func (CodingKeyEnumReferenceBuilder) Name() string { return "CodingKeyEnumReferenceBuilder" }

func (b CodingKeyEnumReferenceBuilder) Run(g *graph.Graph) error {
	protocols := append(slices.Clone(codableProtocols), b.ExternalCodableProtocols...)
	for _, enum := range g.Declarations(graph.KindEnum) {
		if enum.Name != "CodingKeys" && !inheritsFrom(g, enum, "CodingKey") {
			continue
		}
		parent := g.Parent(enum)
		if parent == nil || !inheritsFrom(g, parent, protocols...) {
			continue
		}
		if !references(g, parent, enum) {
			if err := synthesize(g, parent, enum, false, graph.RoleUnknown); err != nil {
				return err
			}
		}
		if err := referenceCases(g, enum); err != nil {
			return err
		}
	}
	return nil
}

func referenceCases(g *graph.Graph, enum *graph.Declaration) error {
	for _, c := range g.Children(enum) {
		if c.Kind != graph.KindEnumElement || references(g, enum, c) {
			continue
		}
		if err := synthesize(g, enum, c, false, graph.RoleUnknown); err != nil {
			return err
		}
	}
	return nil
}

// DefaultConstructorReferenceBuilder references argument-less initializers and
// deinitializers from their type; the runtime calls them implicitly.
type DefaultConstructorReferenceBuilder struct{}

func (DefaultConstructorReferenceBuilder) Name() string { return "DefaultConstructorReferenceBuilder" }

func (DefaultConstructorReferenceBuilder) Run(g *graph.Graph) error {
	for _, typ := range g.Declarations(graph.ConcreteTypeKinds()...) {
		for _, c := range g.Children(typ) {
			isDefault := c.Kind == graph.KindConstructor && c.Name == "init()"
			if !isDefault && c.Kind != graph.KindDestructor {
				continue
			}
			if references(g, typ, c) {
				continue
			}
			if err := synthesize(g, typ, c, false, graph.RoleUnknown); err != nil {
				return err
			}
		}
	}
	return nil
}

var rawValueTypes = []string{
	"String", "Substring", "Character",
	"Int", "Int8", "Int16", "Int32", "Int64",
	"UInt", "UInt8", "UInt16", "UInt32", "UInt64",
	"Double", "Float", "Float80", "CGFloat",
}

// EnumCaseReferenceBuilder references every case of an enum that can be built
// from a raw value or enumerated, since any case may be produced at run time.
type EnumCaseReferenceBuilder struct{}

func (EnumCaseReferenceBuilder) Name() string { return "EnumCaseReferenceBuilder" }

func (EnumCaseReferenceBuilder) Run(g *graph.Graph) error {
	names := append(slices.Clone(rawValueTypes), "RawRepresentable", "CaseIterable")
	for _, enum := range g.Declarations(graph.KindEnum) {
		if !inheritsFrom(g, enum, names...) {
			continue
		}
		if err := referenceCases(g, enum); err != nil {
			return err
		}
	}
	return nil
}

// AssociatedTypeReferenceBuilder references the declaration a conforming type
// provides for each associated type of the protocol; the conformance needs it.
type AssociatedTypeReferenceBuilder struct{}

func (AssociatedTypeReferenceBuilder) Name() string { return "AssociatedTypeReferenceBuilder" }

func (AssociatedTypeReferenceBuilder) Run(g *graph.Graph) error {
	for _, proto := range g.Declarations(graph.KindProtocol) {
		var assocs []*graph.Declaration
		for _, c := range g.Children(proto) {
			if c.Kind == graph.KindAssociatedType {
				assocs = append(assocs, c)
			}
		}
		if len(assocs) == 0 {
			continue
		}
		for _, conf := range g.ConformancesTo(proto) {
			conformer := g.OwnerOf(conf)
			if conformer == nil {
				continue
			}
			for _, assoc := range assocs {
				impl := childNamed(g, conformer, assoc.Name)
				if impl == nil {
					continue
				}
				if !references(g, conformer, impl) {
					if err := synthesize(g, conformer, impl, false, graph.RoleUnknown); err != nil {
						return err
					}
				}
				if !references(g, assoc, impl) {
					if err := synthesize(g, assoc, impl, false, graph.RoleUnknown); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// LetShorthandReferenceBuilder resolves `if let name` shorthand bindings, which
// read a property without an indexed occurrence.
type LetShorthandReferenceBuilder struct{}

func (LetShorthandReferenceBuilder) Name() string { return "LetShorthandReferenceBuilder" }

func (LetShorthandReferenceBuilder) Run(g *graph.Graph) error {
	var globals []*graph.Declaration
	for _, d := range g.Declarations(graph.KindVarGlobal) {
		if d.Parent == 0 {
			globals = append(globals, d)
		}
	}
	for _, d := range g.Declarations() {
		for _, name := range d.LetShorthandIdentifiers {
			target := shorthandTarget(g, d, name, globals)
			if target == nil || target.ID == d.ID || references(g, d, target) {
				continue
			}
			if err := synthesize(g, d, target, false, graph.RoleUnknown); err != nil {
				return err
			}
		}
	}
	return nil
}

func shorthandTarget(g *graph.Graph, d *graph.Declaration, name string, globals []*graph.Declaration) *graph.Declaration {
	scopes := append([]*graph.Declaration{d}, g.Ancestors(d)...)
	for _, scope := range scopes {
		if v := childNamed(g, scope, name, graph.VariableKinds()...); v != nil {
			return v
		}
	}
	for _, v := range globals {
		if v.Name == name && v.Location.File == d.Location.File {
			return v
		}
	}
	for _, v := range globals {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// StringInterpolationReferenceBuilder references appendInterpolation overloads
// from their container; string interpolation calls them implicitly.
type StringInterpolationReferenceBuilder struct{}

func (StringInterpolationReferenceBuilder) Name() string {
	return "StringInterpolationReferenceBuilder"
}

func (StringInterpolationReferenceBuilder) Run(g *graph.Graph) error {
	for _, d := range g.Declarations(graph.FunctionKinds()...) {
		if d.BaseName() != "appendInterpolation" {
			continue
		}
		parent := g.Parent(d)
		if parent == nil || references(g, parent, d) {
			continue
		}
		if err := synthesize(g, parent, d, false, graph.RoleUnknown); err != nil {
			return err
		}
	}
	return nil
}

// ComplexPropertyAccessorReferenceBuilder references explicit accessors and
// observers from their property: using the property runs them.
type ComplexPropertyAccessorReferenceBuilder struct{}

func (ComplexPropertyAccessorReferenceBuilder) Name() string {
	return "ComplexPropertyAccessorReferenceBuilder"
}

func (ComplexPropertyAccessorReferenceBuilder) Run(g *graph.Graph) error {
	for _, v := range g.Declarations(graph.VariableKinds()...) {
		for _, acc := range g.Children(v) {
			if !acc.Kind.IsAccessor() || acc.Implicit || references(g, v, acc) {
				continue
			}
			if err := synthesize(g, v, acc, false, graph.RoleUnknown); err != nil {
				return err
			}
		}
	}
	return nil
}
