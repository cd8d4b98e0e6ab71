package index

import (
	"fmt"
	"sort"

	"github.com/panbanda/deadwood/pkg/graph"
)

// MatchFallback is a heuristic for matching a syntax-derived type location to an
// index reference when no reference sits at exactly that location. The
// heuristics cover known indexer gaps and are policy, not invariant.
type MatchFallback string

const (
	// FallbackSameLine matches the unclassified reference on the same line with the nearest column.
	FallbackSameLine MatchFallback = "same_line"
	// FallbackPrecedingLine matches on the nearest preceding line that has unclassified references.
	FallbackPrecedingLine MatchFallback = "preceding_line"
)

// DefaultFallbacks returns the fallbacks enabled when none are configured.
func DefaultFallbacks() []MatchFallback {
	return []MatchFallback{FallbackSameLine, FallbackPrecedingLine}
}

// ParseFallback validates a configured fallback name.
func ParseFallback(s string) (MatchFallback, error) {
	switch MatchFallback(s) {
	case FallbackSameLine, FallbackPrecedingLine:
		return MatchFallback(s), nil
	default:
		return "", fmt.Errorf("unknown role match fallback %q", s)
	}
}

// roleKeys maps reference location set names to roles, in application order.
var roleKeys = []struct {
	key  string
	role graph.Role
}{
	{"inherited_type", graph.RoleInheritedType},
	{"variable_type", graph.RoleVariableType},
	{"parameter_type", graph.RoleParameterType},
	{"return_type", graph.RoleReturnType},
	{"generic_parameter_type", graph.RoleGenericParameterType},
	{"generic_requirement_type", graph.RoleGenericRequirementType},
	{"variable_init_call", graph.RoleVariableInitCall},
	{"metatype_argument", graph.RoleMetatypeArgument},
}

// reclassifyRoles assigns roles to references whose location appears in one of
// the unit's classified location sets. References that already carry a role
// keep it, so running it again is a no-op.
func reclassifyRoles(u *Unit, refs []*graph.Reference, fallbacks []MatchFallback) {
	if len(u.ReferenceLocations) == 0 || len(refs) == 0 {
		return
	}
	byLocation := make(map[graph.Location][]*graph.Reference)
	byLine := make(map[int][]*graph.Reference)
	for _, r := range refs {
		byLocation[r.Location] = append(byLocation[r.Location], r)
		byLine[r.Location.Line] = append(byLine[r.Location.Line], r)
	}
	lines := make([]int, 0, len(byLine))
	for line := range byLine {
		lines = append(lines, line)
	}
	sort.Ints(lines)

	for _, rk := range roleKeys {
		for _, pos := range u.ReferenceLocations[rk.key] {
			loc := u.location(pos)
			if exact := byLocation[loc]; len(exact) > 0 {
				for _, r := range exact {
					assignRole(r, rk.role)
				}
				continue
			}
			for _, fb := range fallbacks {
				if r := fallbackMatch(fb, loc, byLine, lines); r != nil {
					assignRole(r, rk.role)
					break
				}
			}
		}
	}
}

func assignRole(r *graph.Reference, role graph.Role) {
	if r.Role == graph.RoleUnknown {
		r.Role = role
	}
}

func fallbackMatch(fb MatchFallback, loc graph.Location, byLine map[int][]*graph.Reference, lines []int) *graph.Reference {
	switch fb {
	case FallbackSameLine:
		return nearestUnclassified(byLine[loc.Line], loc.Column)
	case FallbackPrecedingLine:
		i := sort.SearchInts(lines, loc.Line)
		for i--; i >= 0; i-- {
			if r := nearestUnclassified(byLine[lines[i]], loc.Column); r != nil {
				return r
			}
		}
	}
	return nil
}

func nearestUnclassified(refs []*graph.Reference, column int) *graph.Reference {
	var best *graph.Reference
	bestDist := 0
	for _, r := range refs {
		if r.Role != graph.RoleUnknown || r.Related {
			continue
		}
		dist := r.Location.Column - column
		if dist < 0 {
			dist = -dist
		}
		if best == nil || dist < bestDist {
			best, bestDist = r, dist
		}
	}
	return best
}
