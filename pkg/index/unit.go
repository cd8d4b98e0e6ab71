package index

import (
	"slices"
)

// Unit is the fact record for one compiland: a source file compiled into one
// or more modules.
type Unit struct {
	File               string                `json:"file"`
	Modules            []string              `json:"modules"`
	TopLevelCode       bool                  `json:"top_level_code,omitempty"`
	Imports            []Import              `json:"imports,omitempty"`
	FileCommands       []string              `json:"file_commands,omitempty"`
	Symbols            []Symbol              `json:"symbols,omitempty"`
	Occurrences        []Occurrence          `json:"occurrences,omitempty"`
	Metadata           []Metadata            `json:"metadata,omitempty"`
	ReferenceLocations map[string][]Position `json:"reference_locations,omitempty"`
}

// Position is a one-based line and column within the unit's file.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Import is an import statement of the unit's file.
type Import struct {
	Module   string   `json:"module"`
	Testable bool     `json:"testable,omitempty"`
	Exported bool     `json:"exported,omitempty"`
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Commands []string `json:"commands,omitempty"`
}

// Relation roles understood by ingestion.
const (
	RelationChildOf     = "childOf"
	RelationOverrideOf  = "overrideOf"
	RelationBaseOf      = "baseOf"
	RelationCalledBy    = "calledBy"
	RelationExtendedBy  = "extendedBy"
	RelationContainedBy = "containedBy"
)

// Relation links a record to another symbol.
type Relation struct {
	Role string `json:"role"`
	Usr  string `json:"usr"`
}

// Symbol is a raw declaration record.
type Symbol struct {
	Usr            string     `json:"usr"`
	Kind           string     `json:"kind"`
	Subkind        string     `json:"subkind,omitempty"`
	Name           string     `json:"name,omitempty"`
	Implicit       bool       `json:"implicit,omitempty"`
	ObjcAccessible bool       `json:"objc_accessible,omitempty"`
	Location       Position   `json:"location"`
	Relations      []Relation `json:"relations,omitempty"`
}

// Occurrence roles understood by ingestion.
const (
	OccurrenceReference = "reference"
	OccurrenceImplicit  = "implicit"
	OccurrenceRead      = "read"
	OccurrenceWrite     = "write"
)

// Occurrence is a raw reference record.
type Occurrence struct {
	Usr         string     `json:"usr"`
	Kind        string     `json:"kind"`
	Subkind     string     `json:"subkind,omitempty"`
	Name        string     `json:"name,omitempty"`
	Location    Position   `json:"location"`
	Roles       []string   `json:"roles,omitempty"`
	ReceiverUsr string     `json:"receiver_usr,omitempty"`
	Relations   []Relation `json:"relations,omitempty"`
}

// HasRole reports whether the occurrence carries role.
func (o Occurrence) HasRole(role string) bool {
	return slices.Contains(o.Roles, role)
}

// IsWriteOnly reports whether the occurrence assigns without reading.
func (o Occurrence) IsWriteOnly() bool {
	return o.HasRole(OccurrenceWrite) && !o.HasRole(OccurrenceRead)
}

// Metadata is syntax-derived information about the declaration at Location.
type Metadata struct {
	Location                     Position `json:"location"`
	Accessibility                string   `json:"accessibility,omitempty"`
	Explicit                     bool     `json:"explicit,omitempty"`
	Attributes                   []string `json:"attributes,omitempty"`
	Modifiers                    []string `json:"modifiers,omitempty"`
	Commands                     []string `json:"commands,omitempty"`
	DeclaredType                 string   `json:"declared_type,omitempty"`
	LetShorthandIdentifiers      []string `json:"let_shorthand_identifiers,omitempty"`
	UnusedParameters             []string `json:"unused_parameters,omitempty"`
	HasGenericFunctionReturnType bool     `json:"has_generic_function_return_type,omitempty"`
}
