package index

import "github.com/panbanda/deadwood/pkg/graph"

// rawKinds maps compiler index symbol kinds to graph kinds. Subkinds refine
// accessors, extensions, operators and a few Swift specific entities.
var rawKinds = map[string]graph.Kind{
	"module":           graph.KindModule,
	"enum":             graph.KindEnum,
	"struct":           graph.KindStruct,
	"class":            graph.KindClass,
	"protocol":         graph.KindProtocol,
	"extension":        graph.KindExtension,
	"typealias":        graph.KindTypeAlias,
	"function":         graph.KindFunctionFree,
	"variable":         graph.KindVarGlobal,
	"field":            graph.KindVarInstance,
	"enumConstant":     graph.KindEnumElement,
	"instanceMethod":   graph.KindMethodInstance,
	"classMethod":      graph.KindMethodClass,
	"staticMethod":     graph.KindMethodStatic,
	"instanceProperty": graph.KindVarInstance,
	"classProperty":    graph.KindVarClass,
	"staticProperty":   graph.KindVarStatic,
	"constructor":      graph.KindConstructor,
	"destructor":       graph.KindDestructor,
	"parameter":        graph.KindVarParameter,
	"macro":            graph.KindMacro,
}

var rawSubkinds = map[string]graph.Kind{
	"swiftAccessorWillSet":          graph.KindAccessorWillSet,
	"swiftAccessorDidSet":           graph.KindAccessorDidSet,
	"swiftAccessorGetter":           graph.KindAccessorGetter,
	"swiftAccessorSetter":           graph.KindAccessorSetter,
	"swiftAccessorAddressor":        graph.KindAccessorAddress,
	"swiftAccessorMutableAddressor": graph.KindAccessorMutableAddress,
	"swiftAccessorRead":             graph.KindAccessorRead,
	"swiftAccessorModify":           graph.KindAccessorModify,
	"swiftAccessorInit":             graph.KindAccessorInit,
	"swiftExtensionOfStruct":        graph.KindExtensionStruct,
	"swiftExtensionOfClass":         graph.KindExtensionClass,
	"swiftExtensionOfEnum":          graph.KindExtensionEnum,
	"swiftExtensionOfProtocol":      graph.KindExtensionProto,
	"swiftPrefixOperator":           graph.KindOperatorPrefix,
	"swiftPostfixOperator":          graph.KindOperatorPostfix,
	"swiftInfixOperator":            graph.KindOperatorInfix,
	"swiftSubscript":                graph.KindSubscript,
	"swiftAssociatedType":           graph.KindAssociatedType,
	"swiftGenericTypeParam":         graph.KindGenericTypeParam,
	"swiftPrecedenceGroup":          graph.KindPrecedenceGroup,
}

// mapKind resolves a raw kind and subkind pair. Unknown pairs return false.
func mapKind(kind, subkind string) (graph.Kind, bool) {
	if k, ok := rawSubkinds[subkind]; ok {
		return k, true
	}
	k, ok := rawKinds[kind]
	if !ok {
		return "", false
	}
	switch {
	case k == graph.KindFunctionFree && subkind == "swiftOperator":
		return graph.KindOperator, true
	case k == graph.KindVarGlobal && subkind == "swiftLocalVariable":
		return graph.KindVarLocal, true
	}
	return k, true
}

func init() {
	// Graph kind names are accepted verbatim, so hand-written units can use them.
	for _, k := range graph.AllKinds {
		if _, ok := rawKinds[string(k)]; !ok {
			rawKinds[string(k)] = k
		}
	}
}
