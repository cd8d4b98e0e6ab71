package graph

// RefID addresses a reference in the graph arena. Zero is never a valid ID.
type RefID uint32

// Role refines how a reference is used at its site.
type Role string

const (
	RoleUnknown                Role = ""
	RoleVariableType           Role = "variable_type"
	RoleReturnType             Role = "return_type"
	RoleParameterType          Role = "parameter_type"
	RoleGenericParameterType   Role = "generic_parameter_type"
	RoleGenericRequirementType Role = "generic_requirement_type"
	RoleInheritedType          Role = "inherited_type"
	RoleConformedType          Role = "conformed_type"
	RoleVariableInitCall       Role = "variable_init_call"
	RoleMetatypeArgument       Role = "metatype_argument"
	// RoleOverride is a related edge from an overriding member to its base.
	RoleOverride Role = "override"
	// RoleImplementation is a related edge from a protocol requirement to a member satisfying it.
	RoleImplementation Role = "implementation"
	// RoleDefaultImplementation links a requirement to a protocol extension member.
	RoleDefaultImplementation Role = "default_implementation"
)

// IsPubliclyExposable reports whether a reference in this role forces the
// referenced type to be at least as accessible as the referencing declaration.
func (r Role) IsPubliclyExposable() bool {
	switch r {
	case RoleVariableType, RoleReturnType, RoleParameterType, RoleGenericParameterType,
		RoleGenericRequirementType, RoleInheritedType, RoleConformedType:
		return true
	default:
		return false
	}
}

// IsLockstep reports whether liveness flows both ways along a related edge in this role.
func (r Role) IsLockstep() bool {
	return r == RoleOverride || r == RoleImplementation
}

// Reference is a directed edge from a using context to a symbol identifier.
// The target USR need not resolve to a declaration in the graph.
type Reference struct {
	ID       RefID    `json:"id"`
	Kind     Kind     `json:"kind"`
	Usr      string   `json:"usr"`
	Name     string   `json:"name,omitempty"`
	Location Location `json:"location"`
	// Related marks inheritance, conformance and override style edges.
	Related bool `json:"related,omitempty"`
	Role    Role `json:"role,omitempty"`
	// ReceiverUsr is the type of the receiver for method calls, when known.
	ReceiverUsr string `json:"receiver_usr,omitempty"`
	// Write is set when the occurrence only assigns the target.
	Write bool `json:"write,omitempty"`
	// Owner is the declaration the reference belongs to; zero for root and dangling references.
	Owner DeclID `json:"owner,omitempty"`
	// ParentRef is set for references nested inside another reference.
	ParentRef RefID `json:"parent_ref,omitempty"`
	// Synthesized marks references built by normalization passes.
	Synthesized bool `json:"synthesized,omitempty"`
}

// Clone returns a detached copy without an ID or owner.
func (r *Reference) Clone() *Reference {
	c := *r
	c.ID = 0
	c.Owner = 0
	c.ParentRef = 0
	return &c
}
