package graph

import (
	"slices"
	"strings"
)

// DeclID addresses a declaration in the graph arena. Zero is never a valid ID.
type DeclID uint32

// Declaration is a named or anonymous program entity.
//
// Identity is by USR membership: two raw records describing the same logical
// entity share one Declaration carrying both USRs.
type Declaration struct {
	ID       DeclID   `json:"id"`
	Kind     Kind     `json:"kind"`
	Usrs     []string `json:"usrs"`
	Name     string   `json:"name,omitempty"`
	Location Location `json:"location"`
	Implicit bool     `json:"implicit,omitempty"`
	// ObjcAccessible is set for declarations visible to the Objective-C runtime.
	ObjcAccessible bool             `json:"objc_accessible,omitempty"`
	Accessibility  Accessibility    `json:"accessibility"`
	Attributes     []string         `json:"attributes,omitempty"`
	Modifiers      []string         `json:"modifiers,omitempty"`
	Commands       []CommentCommand `json:"commands,omitempty"`
	DeclaredType   string           `json:"declared_type,omitempty"`
	// LetShorthandIdentifiers are names bound with `if let x` shorthand in the body.
	LetShorthandIdentifiers []string `json:"let_shorthand_identifiers,omitempty"`
	// UnusedParameterNames is reported by syntax analysis and resolved into UnusedParameters.
	UnusedParameterNames []string `json:"unused_parameter_names,omitempty"`
	// GenericReturnType is set for functions returning a generic parameter's metatype.
	GenericReturnType bool `json:"generic_return_type,omitempty"`

	Parent           DeclID   `json:"parent,omitempty"`
	Children         []DeclID `json:"children,omitempty"`
	References       []RefID  `json:"references,omitempty"`
	Related          []RefID  `json:"related,omitempty"`
	UnusedParameters []DeclID `json:"unused_parameters,omitempty"`

	// ExtensionOrigin is the kind of extension this declaration was folded out of.
	ExtensionOrigin Kind `json:"extension_origin,omitempty"`
}

// FirstUsr returns the primary USR.
func (d *Declaration) FirstUsr() string {
	if len(d.Usrs) == 0 {
		return ""
	}
	return d.Usrs[0]
}

// HasUsr reports whether usr identifies this declaration.
func (d *Declaration) HasUsr(usr string) bool {
	return slices.Contains(d.Usrs, usr)
}

// AddUsrs merges USRs, preserving order and uniqueness.
func (d *Declaration) AddUsrs(usrs ...string) {
	for _, u := range usrs {
		if u != "" && !d.HasUsr(u) {
			d.Usrs = append(d.Usrs, u)
		}
	}
}

// HasAttribute reports whether the attribute (without '@') is present.
func (d *Declaration) HasAttribute(name string) bool {
	name = strings.TrimPrefix(name, "@")
	for _, a := range d.Attributes {
		if strings.TrimPrefix(a, "@") == name {
			return true
		}
	}
	return false
}

// HasModifier reports whether the modifier keyword is present.
func (d *Declaration) HasModifier(name string) bool {
	return slices.Contains(d.Modifiers, name)
}

// HasCommand reports whether a comment command of kind is attached.
func (d *Declaration) HasCommand(kind CommandKind) bool {
	return HasCommand(d.Commands, kind)
}

// IsOverride reports whether the declaration carries the override modifier.
func (d *Declaration) IsOverride() bool {
	return d.HasModifier("override")
}

// IsProtocolExtensionMember reports whether this member was folded out of a protocol extension.
func (d *Declaration) IsProtocolExtensionMember() bool {
	return d.ExtensionOrigin == KindExtensionProto
}

// DisplayName returns the name or a kind placeholder for anonymous declarations.
func (d *Declaration) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return "<" + d.Kind.DisplayName() + ">"
}

// BaseName strips the argument list from function names: "f(a:)" becomes "f".
func (d *Declaration) BaseName() string {
	if i := strings.IndexByte(d.Name, '('); i >= 0 {
		return d.Name[:i]
	}
	return d.Name
}

func addID[T ~uint32](ids []T, id T) []T {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

func removeID[T ~uint32](ids []T, id T) []T {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}
