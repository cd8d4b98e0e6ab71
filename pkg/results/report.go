// Package results projects a marked graph into the findings a user acts on.
package results

import (
	"fmt"
	"sort"

	"github.com/panbanda/deadwood/pkg/graph"
	"github.com/panbanda/deadwood/pkg/marker"
)

// Annotation names the kind of finding.
type Annotation string

const (
	AnnotationUnused                 Annotation = "unused"
	AnnotationAssignOnly             Annotation = "assign_only"
	AnnotationRedundantProtocol      Annotation = "redundant_protocol"
	AnnotationRedundantAccessibility Annotation = "redundant_accessibility"
	AnnotationUnusedParameter        Annotation = "unused_parameter"
	AnnotationUnusedImport           Annotation = "unused_import"
)

// Result is one declaration-level finding.
type Result struct {
	Annotation    Annotation     `json:"annotation"`
	Name          string         `json:"name"`
	Kind          graph.Kind     `json:"kind"`
	Location      graph.Location `json:"location"`
	Usrs          []string       `json:"usrs,omitempty"`
	Accessibility string         `json:"accessibility,omitempty"`
	// Container is the display name of the enclosing declaration, if any.
	Container string `json:"container,omitempty"`
	Hint      string `json:"hint,omitempty"`
}

// AccessibilityResult is a declaration written more accessible than its uses need.
type AccessibilityResult struct {
	Result
	Written   graph.AccessLevel `json:"written"`
	Suggested graph.AccessLevel `json:"suggested"`
}

// ProtocolResult is an unused protocol whose conformances keep it alive.
type ProtocolResult struct {
	Result
	Conformances []graph.Location `json:"conformances"`
}

// Cycle is a group of dead declarations that only reference each other.
type Cycle struct {
	Members []Result `json:"members"`
}

// Summary aggregates the report.
type Summary struct {
	Dead                   int            `json:"dead"`
	AssignOnly             int            `json:"assign_only"`
	RedundantProtocols     int            `json:"redundant_protocols"`
	RedundantAccessibility int            `json:"redundant_accessibility"`
	UnusedParameters       int            `json:"unused_parameters"`
	UnusedImports          int            `json:"unused_imports"`
	DeadCycles             int            `json:"dead_cycles"`
	Declarations           int            `json:"declarations"`
	Files                  int            `json:"files"`
	ByFile                 map[string]int `json:"by_file"`
}

// NewSummary creates an initialized summary.
func NewSummary() Summary {
	return Summary{ByFile: make(map[string]int)}
}

// Total is the number of findings, not counting cycles which regroup dead results.
func (s Summary) Total() int {
	return s.Dead + s.AssignOnly + s.RedundantProtocols + s.RedundantAccessibility +
		s.UnusedParameters + s.UnusedImports
}

func (s *Summary) add(file string) {
	s.ByFile[file]++
}

// Report is the full set of findings for one scan.
type Report struct {
	Dead                   []Result                           `json:"dead"`
	AssignOnly             []Result                           `json:"assign_only"`
	RedundantProtocols     []ProtocolResult                   `json:"redundant_protocols"`
	RedundantAccessibility []AccessibilityResult              `json:"redundant_accessibility"`
	UnusedParameters       []Result                           `json:"unused_parameters"`
	UnusedImports          map[string][]graph.ImportStatement `json:"unused_imports"`
	DeadCycles             []Cycle                            `json:"dead_cycles"`
	Summary                Summary                            `json:"summary"`
}

// Options selects and scopes the findings.
type Options struct {
	// Include keeps only findings in files matching one of these globs, when set.
	Include []string
	Exclude []string
	// RelativeTo rewrites absolute file paths relative to this directory.
	RelativeTo             string
	RedundantAccessibility bool
	UnusedImports          bool
	UnusedParameters       bool
	DeadCycles             bool
}

// DefaultOptions reports every category.
func DefaultOptions() Options {
	return Options{
		RedundantAccessibility: true,
		UnusedImports:          true,
		UnusedParameters:       true,
		DeadCycles:             true,
	}
}

// Build projects a graph that has been through the full pipeline into a report.
func Build(g *graph.Graph, opts Options) (*Report, error) {
	f, err := newFilter(opts)
	if err != nil {
		return nil, err
	}

	r := &Report{
		UnusedImports: make(map[string][]graph.ImportStatement),
		Summary:       NewSummary(),
	}
	r.Summary.Declarations = g.Len()
	r.Summary.Files = len(g.Files())

	redundant := g.RedundantProtocols()
	var dead []*graph.Declaration
	for _, d := range marker.Dead(g) {
		if !f.keep(d.Location.File) {
			continue
		}
		conformances, isRedundant := redundant[d.ID]
		switch {
		case isRedundant:
			res := newResult(g, d, AnnotationRedundantProtocol, f)
			locs := conformanceLocations(g, conformances, f)
			res.Hint = fmt.Sprintf("conformed to at %d location(s)", len(locs))
			r.RedundantProtocols = append(r.RedundantProtocols, ProtocolResult{Result: res, Conformances: locs})
		case g.IsAssignOnly(d):
			r.AssignOnly = append(r.AssignOnly, newResult(g, d, AnnotationAssignOnly, f))
		default:
			r.Dead = append(r.Dead, newResult(g, d, AnnotationUnused, f))
			dead = append(dead, d)
		}
	}

	if opts.RedundantAccessibility {
		r.RedundantAccessibility = redundantAccessibility(g, f)
	}
	if opts.UnusedParameters {
		r.UnusedParameters = unusedParameters(g, f)
	}
	if opts.UnusedImports {
		for file, imports := range g.UnusedImports() {
			if !f.keep(file) {
				continue
			}
			rel := f.rel(file)
			for _, imp := range imports {
				imp.Location.File = f.rel(imp.Location.File)
				r.UnusedImports[rel] = append(r.UnusedImports[rel], imp)
			}
		}
	}
	if opts.DeadCycles {
		for _, members := range deadCycles(g, dead) {
			c := Cycle{}
			for _, d := range members {
				c.Members = append(c.Members, newResult(g, d, AnnotationUnused, f))
			}
			r.DeadCycles = append(r.DeadCycles, c)
		}
	}

	r.sort()
	r.summarize()
	return r, nil
}

func newResult(g *graph.Graph, d *graph.Declaration, a Annotation, f *filter) Result {
	res := Result{
		Annotation: a,
		Name:       d.DisplayName(),
		Kind:       d.Kind,
		Location:   d.Location,
		Usrs:       d.Usrs,
	}
	res.Location.File = f.rel(res.Location.File)
	if d.Accessibility.Explicit {
		res.Accessibility = d.Accessibility.Level.String()
	}
	if p := g.Parent(d); p != nil {
		res.Container = p.DisplayName()
	}
	return res
}

func conformanceLocations(g *graph.Graph, ids []graph.RefID, f *filter) []graph.Location {
	var out []graph.Location
	for _, id := range ids {
		ref := g.Reference(id)
		if ref == nil {
			continue
		}
		loc := ref.Location
		loc.File = f.rel(loc.File)
		out = append(out, loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func redundantAccessibility(g *graph.Graph, f *filter) []AccessibilityResult {
	var out []AccessibilityResult
	for id, suggested := range g.RedundantAccessibility() {
		d := g.Declaration(id)
		if d == nil || !f.keep(d.Location.File) {
			continue
		}
		res := newResult(g, d, AnnotationRedundantAccessibility, f)
		res.Hint = "could be " + suggested.String()
		out = append(out, AccessibilityResult{
			Result:    res,
			Written:   d.Accessibility.Level,
			Suggested: suggested,
		})
	}
	for _, ext := range g.FoldedExtensions() {
		if ext.Suggested == graph.AccessUnknown || !f.keep(ext.Location.File) {
			continue
		}
		res := Result{
			Annotation:    AnnotationRedundantAccessibility,
			Kind:          ext.Kind,
			Location:      ext.Location,
			Usrs:          ext.Usrs,
			Accessibility: ext.Accessibility.Level.String(),
			Hint:          "could be " + ext.Suggested.String(),
		}
		res.Location.File = f.rel(res.Location.File)
		if extended := g.Declaration(ext.Extended); extended != nil {
			res.Name = extended.DisplayName()
		}
		out = append(out, AccessibilityResult{
			Result:    res,
			Written:   ext.Accessibility.Level,
			Suggested: ext.Suggested,
		})
	}
	return out
}

// unusedParameters reports the unused parameters of functions that are
// themselves live; a dead function is reported whole.
func unusedParameters(g *graph.Graph, f *filter) []Result {
	var out []Result
	for _, fn := range g.Declarations(graph.FunctionKinds()...) {
		if len(fn.UnusedParameters) == 0 || !g.IsReachable(fn) || g.IsIgnored(fn) {
			continue
		}
		for _, id := range fn.UnusedParameters {
			p := g.Declaration(id)
			if p == nil || g.IsRetained(p) || !f.keep(p.Location.File) {
				continue
			}
			out = append(out, newResult(g, p, AnnotationUnusedParameter, f))
		}
	}
	return out
}

func byLocation(rs []Result) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Location.Less(rs[j].Location) })
}

func (r *Report) sort() {
	byLocation(r.Dead)
	byLocation(r.AssignOnly)
	byLocation(r.UnusedParameters)
	sort.SliceStable(r.RedundantProtocols, func(i, j int) bool {
		return r.RedundantProtocols[i].Location.Less(r.RedundantProtocols[j].Location)
	})
	sort.SliceStable(r.RedundantAccessibility, func(i, j int) bool {
		return r.RedundantAccessibility[i].Location.Less(r.RedundantAccessibility[j].Location)
	})
	for _, imports := range r.UnusedImports {
		sort.SliceStable(imports, func(i, j int) bool { return imports[i].Location.Less(imports[j].Location) })
	}
	for _, c := range r.DeadCycles {
		byLocation(c.Members)
	}
	sort.SliceStable(r.DeadCycles, func(i, j int) bool {
		return r.DeadCycles[i].Members[0].Location.Less(r.DeadCycles[j].Members[0].Location)
	})
}

func (r *Report) summarize() {
	s := &r.Summary
	for _, res := range r.Dead {
		s.Dead++
		s.add(res.Location.File)
	}
	for _, res := range r.AssignOnly {
		s.AssignOnly++
		s.add(res.Location.File)
	}
	for _, res := range r.RedundantProtocols {
		s.RedundantProtocols++
		s.add(res.Location.File)
	}
	for _, res := range r.RedundantAccessibility {
		s.RedundantAccessibility++
		s.add(res.Location.File)
	}
	for _, res := range r.UnusedParameters {
		s.UnusedParameters++
		s.add(res.Location.File)
	}
	for file, imports := range r.UnusedImports {
		s.UnusedImports += len(imports)
		s.ByFile[file] += len(imports)
	}
	s.DeadCycles = len(r.DeadCycles)
}

// Results flattens every declaration-level finding in location order.
func (r *Report) Results() []Result {
	var out []Result
	out = append(out, r.Dead...)
	out = append(out, r.AssignOnly...)
	for _, p := range r.RedundantProtocols {
		out = append(out, p.Result)
	}
	for _, a := range r.RedundantAccessibility {
		out = append(out, a.Result)
	}
	out = append(out, r.UnusedParameters...)
	for _, imports := range r.UnusedImports {
		for _, imp := range imports {
			out = append(out, importResult(imp))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location.Less(out[j].Location)
		}
		return out[i].Annotation < out[j].Annotation
	})
	return out
}

// Empty reports whether the scan found nothing.
func (r *Report) Empty() bool {
	return r.Summary.Total() == 0
}

// Without returns a copy of the report lacking every finding drop selects,
// with the summary recomputed. Cycles keep only their surviving members and
// disappear once fewer than two remain.
func (r *Report) Without(drop func(Result) bool) *Report {
	out := &Report{
		UnusedImports: make(map[string][]graph.ImportStatement),
		Summary:       NewSummary(),
	}
	out.Summary.Declarations = r.Summary.Declarations
	out.Summary.Files = r.Summary.Files
	keep := func(rs []Result) []Result {
		var kept []Result
		for _, res := range rs {
			if !drop(res) {
				kept = append(kept, res)
			}
		}
		return kept
	}
	out.Dead = keep(r.Dead)
	out.AssignOnly = keep(r.AssignOnly)
	out.UnusedParameters = keep(r.UnusedParameters)
	for _, p := range r.RedundantProtocols {
		if !drop(p.Result) {
			out.RedundantProtocols = append(out.RedundantProtocols, p)
		}
	}
	for _, a := range r.RedundantAccessibility {
		if !drop(a.Result) {
			out.RedundantAccessibility = append(out.RedundantAccessibility, a)
		}
	}
	for file, imports := range r.UnusedImports {
		for _, imp := range imports {
			if !drop(importResult(imp)) {
				out.UnusedImports[file] = append(out.UnusedImports[file], imp)
			}
		}
	}
	for _, c := range r.DeadCycles {
		if members := keep(c.Members); len(members) >= 2 {
			out.DeadCycles = append(out.DeadCycles, Cycle{Members: members})
		}
	}
	out.summarize()
	return out
}

func importResult(imp graph.ImportStatement) Result {
	return Result{
		Annotation: AnnotationUnusedImport,
		Name:       imp.Module,
		Kind:       graph.KindModule,
		Location:   imp.Location,
	}
}
