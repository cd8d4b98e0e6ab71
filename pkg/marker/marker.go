// Package marker computes liveness over the normalized graph.
//
// Marking is reference counted: each live declaration contributes one count to
// every distinct declaration it references, so a declaration reached along
// several paths carries one count per live source. After the sweep, everything
// beneath an unreachable declaration is ignored; when that withdraws a retained
// declaration, its counts are unwound along a decrement worklist, and cycles
// that only withdrawn code fed are released by trial deletion.
package marker

import (
	"log/slog"
	"slices"

	"github.com/panbanda/deadwood/pkg/graph"
)

// Marker is the reachability pass.
type Marker struct {
	logger *slog.Logger
}

// Option configures a Marker.
type Option func(*Marker)

// WithLogger sets the logger for pass statistics.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Marker) {
		m.logger = logger
	}
}

// New creates a Marker.
func New(opts ...Option) *Marker {
	m := &Marker{logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name implements the pipeline pass interface.
func (m *Marker) Name() string { return "Marker" }

// Run repairs conformance edges into provably dead types, then marks from the
// retained set and root references and prunes beneath unreachable declarations.
// Running it again over the same graph yields the same state.
func (m *Marker) Run(g *graph.Graph) error {
	removed := repairConformances(g)
	g.ResetMarks()

	s := newSweep(g)
	s.mark()
	s.prune()

	m.logger.Debug("marking complete",
		slog.Int("repaired_edges", removed),
		slog.Int("reachable", len(g.ReachableDeclarations())),
		slog.Int("ignored", len(g.IgnoredDeclarations())),
		slog.Int("unwound", s.unwound))
	return nil
}

// sweep holds the adjacency the mark runs over. Edges are deduplicated so a
// source contributes at most one count per target.
type sweep struct {
	g        *graph.Graph
	out      map[graph.DeclID][]graph.DeclID
	expanded map[graph.DeclID]bool
	unwound  int
}

func newSweep(g *graph.Graph) *sweep {
	s := &sweep{
		g:        g,
		out:      make(map[graph.DeclID][]graph.DeclID),
		expanded: make(map[graph.DeclID]bool),
	}
	for _, r := range g.AllReferences() {
		if g.IsConformance(r) || g.IsRootReference(r) {
			continue
		}
		owner := g.OwnerOf(r)
		target := g.ExplicitDeclaration(r.Usr)
		if owner == nil || target == nil || owner.ID == target.ID {
			continue
		}
		s.addEdge(owner.ID, target.ID)
		if r.Related {
			// Overrides and implementations live and die together.
			if r.Role.IsLockstep() {
				s.addEdge(target.ID, owner.ID)
			}
			continue
		}
		// Using a member uses the containers it is reached through.
		for _, a := range g.Ancestors(target) {
			if a.ID == owner.ID || g.IsAncestor(a, owner) {
				break
			}
			s.addEdge(owner.ID, a.ID)
		}
	}
	return s
}

// atModuleScope reports whether r is a root reference or nested beneath one.
func (s *sweep) atModuleScope(r *graph.Reference) bool {
	seen := map[graph.RefID]bool{}
	for r.ParentRef != 0 && !seen[r.ID] {
		seen[r.ID] = true
		parent := s.g.Reference(r.ParentRef)
		if parent == nil {
			return false
		}
		r = parent
	}
	return s.g.IsRootReference(r)
}

// rootTargets resolves a module-scope reference to its target and the
// target's containers.
func (s *sweep) rootTargets(r *graph.Reference) []*graph.Declaration {
	target := s.g.ExplicitDeclaration(r.Usr)
	if target == nil {
		return nil
	}
	return append([]*graph.Declaration{target}, s.g.Ancestors(target)...)
}

func (s *sweep) addEdge(from, to graph.DeclID) {
	if !slices.Contains(s.out[from], to) {
		s.out[from] = append(s.out[from], to)
	}
}

// mark expands from the roots breadth first.
func (s *sweep) mark() {
	var queue []graph.DeclID
	for _, d := range s.g.RetainedDeclarations() {
		queue = append(queue, d.ID)
	}
	for _, r := range s.g.AllReferences() {
		if !s.atModuleScope(r) {
			continue
		}
		for _, target := range s.rootTargets(r) {
			s.g.AddCount(target, 1)
			queue = append(queue, target.ID)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if s.expanded[id] {
			continue
		}
		s.expanded[id] = true
		for _, t := range s.out[id] {
			target := s.g.Declaration(t)
			if target == nil {
				continue
			}
			s.g.AddCount(target, 1)
			if !s.expanded[t] {
				queue = append(queue, t)
			}
		}
	}
}

// prune ignores every descendant of an unreachable declaration. An ignored
// declaration that was retained loses its retention and its contributions are
// unwound: whatever it alone kept alive becomes unreachable and is pruned in
// turn. Retention only shrinks, so the loop ends.
func (s *sweep) prune() {
	for {
		var withdrawn []graph.DeclID
		for _, d := range s.g.Declarations() {
			if s.g.IsReachable(d) || s.g.IsIgnored(d) {
				continue
			}
			for _, c := range s.g.Descendants(d) {
				if s.g.IsIgnored(c) {
					continue
				}
				s.g.Ignore(c)
				if s.g.IsRetained(c) {
					s.g.Unretain(c)
					s.unwound++
					withdrawn = append(withdrawn, c.ID)
				}
			}
		}
		if len(withdrawn) == 0 {
			return
		}
		s.unwind(withdrawn)
	}
}

// unwind decrements the counts contributed by declarations that became
// unreachable, transitively. Declarations that keep a positive count after a
// decrement may only be held by a cycle through withdrawn code; they are
// checked by collectCycles.
func (s *sweep) unwind(withdrawn []graph.DeclID) {
	var queue, suspects []graph.DeclID
	for _, id := range withdrawn {
		if d := s.g.Declaration(id); d != nil && !s.g.IsReachable(d) {
			queue = append(queue, id)
		} else {
			suspects = append(suspects, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if !s.expanded[id] {
			continue
		}
		s.expanded[id] = false
		for _, t := range s.out[id] {
			target := s.g.Declaration(t)
			if target == nil {
				continue
			}
			if s.g.AddCount(target, -1) == 0 && !s.g.IsRetained(target) {
				queue = append(queue, t)
			} else {
				suspects = append(suspects, t)
			}
		}
	}
	s.collectCycles(suspects)
}

// collectCycles is trial deletion over the region of live declarations
// reachable from suspects. Counts contributed from inside the region are
// subtracted; what keeps outside support, or is retained, stays live together
// with everything it reaches. The rest is only kept alive by itself and dies.
func (s *sweep) collectCycles(suspects []graph.DeclID) {
	trial := make(map[graph.DeclID]int32)
	var region []graph.DeclID
	visit := func(id graph.DeclID) {
		if _, seen := trial[id]; seen {
			return
		}
		d := s.g.Declaration(id)
		if d == nil || !s.g.IsReachable(d) {
			return
		}
		trial[id] = s.g.Count(d)
		region = append(region, id)
	}
	for _, id := range suspects {
		if d := s.g.Declaration(id); d != nil && !s.g.IsRetained(d) {
			visit(id)
		}
	}
	if len(region) == 0 {
		return
	}
	for i := 0; i < len(region); i++ {
		for _, t := range s.out[region[i]] {
			visit(t)
		}
	}
	for _, id := range region {
		for _, t := range s.out[id] {
			if _, ok := trial[t]; ok {
				trial[t]--
			}
		}
	}

	live := make(map[graph.DeclID]bool)
	var queue []graph.DeclID
	for _, id := range region {
		if trial[id] > 0 || s.g.IsRetained(s.g.Declaration(id)) {
			live[id] = true
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, t := range s.out[id] {
			if _, ok := trial[t]; ok && !live[t] {
				live[t] = true
				queue = append(queue, t)
			}
		}
	}

	// Every live target of a dead member is in the region, so only live
	// members need their counts corrected.
	for _, id := range region {
		if live[id] {
			continue
		}
		s.g.ClearCount(s.g.Declaration(id))
		s.expanded[id] = false
		for _, t := range s.out[id] {
			if live[t] {
				s.g.AddCount(s.g.Declaration(t), -1)
			}
		}
	}
}
