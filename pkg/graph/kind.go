package graph

// Kind classifies a declaration or the declaration a reference points at.
// Values mirror the compiler index vocabulary so they read naturally in reports.
type Kind string

const (
	KindAssociatedType  Kind = "associatedtype"
	KindClass           Kind = "class"
	KindEnum            Kind = "enum"
	KindEnumElement     Kind = "enumelement"
	KindExtension       Kind = "extension"
	KindExtensionClass  Kind = "extension.class"
	KindExtensionEnum   Kind = "extension.enum"
	KindExtensionProto  Kind = "extension.protocol"
	KindExtensionStruct Kind = "extension.struct"

	KindAccessorAddress        Kind = "function.accessor.address"
	KindAccessorDidSet         Kind = "function.accessor.didset"
	KindAccessorGetter         Kind = "function.accessor.getter"
	KindAccessorInit           Kind = "function.accessor.init"
	KindAccessorModify         Kind = "function.accessor.modify"
	KindAccessorMutableAddress Kind = "function.accessor.mutableaddress"
	KindAccessorRead           Kind = "function.accessor.read"
	KindAccessorSetter         Kind = "function.accessor.setter"
	KindAccessorWillSet        Kind = "function.accessor.willset"

	KindConstructor     Kind = "function.constructor"
	KindDestructor      Kind = "function.destructor"
	KindFunctionFree    Kind = "function.free"
	KindMethodClass     Kind = "function.method.class"
	KindMethodInstance  Kind = "function.method.instance"
	KindMethodStatic    Kind = "function.method.static"
	KindOperator        Kind = "function.operator"
	KindOperatorInfix   Kind = "function.operator.infix"
	KindOperatorPostfix Kind = "function.operator.postfix"
	KindOperatorPrefix  Kind = "function.operator.prefix"
	KindSubscript       Kind = "function.subscript"

	KindGenericTypeParam Kind = "generic_type_param"
	KindMacro            Kind = "macro"
	KindModule           Kind = "module"
	KindPrecedenceGroup  Kind = "precedencegroup"
	KindProtocol         Kind = "protocol"
	KindStruct           Kind = "struct"
	KindTypeAlias        Kind = "typealias"

	KindVarClass     Kind = "var.class"
	KindVarGlobal    Kind = "var.global"
	KindVarInstance  Kind = "var.instance"
	KindVarLocal     Kind = "var.local"
	KindVarParameter Kind = "var.parameter"
	KindVarStatic    Kind = "var.static"
)

// AllKinds lists every declaration kind.
var AllKinds = []Kind{
	KindAssociatedType, KindClass, KindEnum, KindEnumElement,
	KindExtension, KindExtensionClass, KindExtensionEnum, KindExtensionProto, KindExtensionStruct,
	KindAccessorAddress, KindAccessorDidSet, KindAccessorGetter, KindAccessorInit, KindAccessorModify,
	KindAccessorMutableAddress, KindAccessorRead, KindAccessorSetter, KindAccessorWillSet,
	KindConstructor, KindDestructor, KindFunctionFree, KindMethodClass, KindMethodInstance,
	KindMethodStatic, KindOperator, KindOperatorInfix, KindOperatorPostfix, KindOperatorPrefix,
	KindSubscript, KindGenericTypeParam, KindMacro, KindModule, KindPrecedenceGroup, KindProtocol,
	KindStruct, KindTypeAlias, KindVarClass, KindVarGlobal, KindVarInstance, KindVarLocal,
	KindVarParameter, KindVarStatic,
}

var (
	extensionKinds = []Kind{KindExtension, KindExtensionClass, KindExtensionEnum, KindExtensionProto, KindExtensionStruct}
	accessorKinds  = []Kind{
		KindAccessorAddress, KindAccessorDidSet, KindAccessorGetter, KindAccessorInit, KindAccessorModify,
		KindAccessorMutableAddress, KindAccessorRead, KindAccessorSetter, KindAccessorWillSet,
	}
	functionKinds = []Kind{
		KindConstructor, KindDestructor, KindFunctionFree, KindMethodClass, KindMethodInstance,
		KindMethodStatic, KindOperator, KindOperatorInfix, KindOperatorPostfix, KindOperatorPrefix,
		KindSubscript,
	}
	variableKinds      = []Kind{KindVarClass, KindVarGlobal, KindVarInstance, KindVarLocal, KindVarParameter, KindVarStatic}
	concreteTypeKinds  = []Kind{KindClass, KindStruct, KindEnum}
	memberKinds        = []Kind{KindMethodClass, KindMethodInstance, KindMethodStatic, KindSubscript, KindVarClass, KindVarInstance, KindVarStatic, KindConstructor, KindAssociatedType, KindTypeAlias, KindOperator, KindOperatorInfix, KindOperatorPostfix, KindOperatorPrefix}
	storedPropertyKind = []Kind{KindVarInstance, KindVarStatic, KindVarClass, KindVarGlobal}
)

// ExtensionKinds returns the kinds of extension declarations.
func ExtensionKinds() []Kind { return append([]Kind(nil), extensionKinds...) }

// AccessorKinds returns the kinds of property accessors.
func AccessorKinds() []Kind { return append([]Kind(nil), accessorKinds...) }

// FunctionKinds returns callable kinds, accessors excluded.
func FunctionKinds() []Kind { return append([]Kind(nil), functionKinds...) }

// VariableKinds returns the kinds of variables and properties.
func VariableKinds() []Kind { return append([]Kind(nil), variableKinds...) }

// ConcreteTypeKinds returns class, struct and enum.
func ConcreteTypeKinds() []Kind { return append([]Kind(nil), concreteTypeKinds...) }

// MemberKinds returns the kinds that may satisfy a protocol requirement or override.
func MemberKinds() []Kind { return append([]Kind(nil), memberKinds...) }

// PropertyKinds returns the kinds of properties that may be stored.
func PropertyKinds() []Kind { return append([]Kind(nil), storedPropertyKind...) }

func kindIn(k Kind, set []Kind) bool {
	for _, s := range set {
		if s == k {
			return true
		}
	}
	return false
}

// IsExtension reports whether k is an extension kind.
func (k Kind) IsExtension() bool { return kindIn(k, extensionKinds) }

// IsAccessor reports whether k is a property accessor.
func (k Kind) IsAccessor() bool { return kindIn(k, accessorKinds) }

// IsFunction reports whether k is callable (accessors excluded).
func (k Kind) IsFunction() bool { return kindIn(k, functionKinds) }

// IsVariable reports whether k is a variable or property.
func (k Kind) IsVariable() bool { return kindIn(k, variableKinds) }

// IsConcreteType reports whether k is a class, struct or enum.
func (k Kind) IsConcreteType() bool { return kindIn(k, concreteTypeKinds) }

// IsType reports whether k names a type.
func (k Kind) IsType() bool {
	return k.IsConcreteType() || k == KindProtocol || k == KindTypeAlias || k == KindAssociatedType
}

// IsMember reports whether k can satisfy a protocol requirement or override a base member.
func (k Kind) IsMember() bool { return kindIn(k, memberKinds) }

// IsProperty reports whether k is a non-local, non-parameter variable.
func (k Kind) IsProperty() bool { return kindIn(k, storedPropertyKind) }

// ExtendedKind returns the kind of declaration an extension kind extends.
// The generic extension kind extends an unknown kind and returns "".
func (k Kind) ExtendedKind() Kind {
	switch k {
	case KindExtensionClass:
		return KindClass
	case KindExtensionStruct:
		return KindStruct
	case KindExtensionEnum:
		return KindEnum
	case KindExtensionProto:
		return KindProtocol
	default:
		return ""
	}
}

// ExtensionKind returns the extension kind that extends k, or "" when k cannot be extended.
func (k Kind) ExtensionKind() Kind {
	switch k {
	case KindClass:
		return KindExtensionClass
	case KindStruct:
		return KindExtensionStruct
	case KindEnum:
		return KindExtensionEnum
	case KindProtocol:
		return KindExtensionProto
	default:
		return ""
	}
}

// DisplayName is the human readable noun used in reports.
func (k Kind) DisplayName() string {
	switch {
	case k == KindClass:
		return "class"
	case k == KindStruct:
		return "struct"
	case k == KindEnum:
		return "enum"
	case k == KindEnumElement:
		return "enum case"
	case k == KindProtocol:
		return "protocol"
	case k == KindTypeAlias:
		return "typealias"
	case k == KindAssociatedType:
		return "associatedtype"
	case k == KindConstructor:
		return "initializer"
	case k == KindDestructor:
		return "deinitializer"
	case k == KindFunctionFree:
		return "function"
	case k == KindSubscript:
		return "subscript"
	case k == KindVarParameter:
		return "parameter"
	case k == KindGenericTypeParam:
		return "generic type parameter"
	case k == KindPrecedenceGroup:
		return "precedence group"
	case k == KindMacro:
		return "macro"
	case k == KindModule:
		return "module"
	case k.IsExtension():
		return "extension"
	case k.IsAccessor():
		return "accessor"
	case k == KindMethodInstance || k == KindMethodClass || k == KindMethodStatic:
		return "function"
	case k == KindOperator || k == KindOperatorInfix || k == KindOperatorPostfix || k == KindOperatorPrefix:
		return "operator"
	case k.IsVariable():
		return "property"
	default:
		return string(k)
	}
}
