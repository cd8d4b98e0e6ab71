package results

import (
	"fmt"
	"strings"
)

// Message is the one-line description shown to users.
func (r Result) Message() string {
	subject := fmt.Sprintf("%s '%s'", capitalize(r.Kind.DisplayName()), r.Name)
	var msg string
	switch r.Annotation {
	case AnnotationUnused:
		msg = subject + " is unused"
	case AnnotationAssignOnly:
		msg = subject + " is assigned, but never used"
	case AnnotationRedundantProtocol:
		msg = subject + " is redundant as it is never used as a type or constraint"
	case AnnotationRedundantAccessibility:
		msg = fmt.Sprintf("%s is declared %s", subject, r.Accessibility)
	case AnnotationUnusedParameter:
		msg = subject + " is unused"
	case AnnotationUnusedImport:
		msg = fmt.Sprintf("Module '%s' is imported but unused", r.Name)
	default:
		msg = subject
	}
	if r.Hint != "" {
		msg += "; " + r.Hint
	}
	return msg
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
