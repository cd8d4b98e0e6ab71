package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/panbanda/deadwood/pkg/graph"
	"github.com/panbanda/deadwood/pkg/results"
)

// ScanReport renders a scan's findings.
type ScanReport struct {
	Report *results.Report
}

// NewScanReport wraps a report for rendering.
func NewScanReport(r *results.Report) *ScanReport {
	return &ScanReport{Report: r}
}

func (s *ScanReport) RenderData() any {
	return s.Report
}

// tables returns one table per non-empty category, in report order.
func (s *ScanReport) tables() []*Table {
	r := s.Report
	var tables []*Table

	if len(r.Dead) > 0 {
		tables = append(tables, declarationTable("Unused Declarations", r.Dead))
	}
	if len(r.AssignOnly) > 0 {
		tables = append(tables, declarationTable("Assign-only Properties", r.AssignOnly))
	}
	if len(r.RedundantProtocols) > 0 {
		var rows [][]string
		for _, p := range r.RedundantProtocols {
			var locs []string
			for _, l := range p.Conformances {
				locs = append(locs, l.String())
			}
			rows = append(rows, []string{p.Location.String(), p.Name, strings.Join(locs, ", ")})
		}
		tables = append(tables, NewTable("Redundant Protocols",
			[]string{"Location", "Protocol", "Conformances"}, rows, nil, nil))
	}
	if len(r.RedundantAccessibility) > 0 {
		var rows [][]string
		for _, a := range r.RedundantAccessibility {
			rows = append(rows, []string{
				a.Location.String(), a.Kind.DisplayName(), a.Name,
				a.Written.String(), a.Suggested.String(),
			})
		}
		tables = append(tables, NewTable("Redundant Accessibility",
			[]string{"Location", "Kind", "Name", "Written", "Suggested"}, rows, nil, nil))
	}
	if len(r.UnusedParameters) > 0 {
		var rows [][]string
		for _, p := range r.UnusedParameters {
			rows = append(rows, []string{p.Location.String(), p.Container, p.Name})
		}
		tables = append(tables, NewTable("Unused Parameters",
			[]string{"Location", "Function", "Parameter"}, rows, nil, nil))
	}
	if imports := sortedImports(r.UnusedImports); len(imports) > 0 {
		var rows [][]string
		for _, imp := range imports {
			rows = append(rows, []string{imp.Location.String(), imp.Module})
		}
		tables = append(tables, NewTable("Unused Imports",
			[]string{"Location", "Module"}, rows, nil, nil))
	}
	if len(r.DeadCycles) > 0 {
		var rows [][]string
		for i, c := range r.DeadCycles {
			var names []string
			for _, m := range c.Members {
				names = append(names, m.Name)
			}
			rows = append(rows, []string{fmt.Sprint(i + 1), c.Members[0].Location.String(), strings.Join(names, " <-> ")})
		}
		tables = append(tables, NewTable("Dead Cycles",
			[]string{"#", "Location", "Members"}, rows, nil, nil))
	}
	return tables
}

func declarationTable(title string, rs []results.Result) *Table {
	var rows [][]string
	for _, res := range rs {
		rows = append(rows, []string{res.Location.String(), res.Kind.DisplayName(), res.Name, res.Container})
	}
	return NewTable(title, []string{"Location", "Kind", "Name", "Container"}, rows, nil, nil)
}

func sortedImports(byFile map[string][]graph.ImportStatement) []graph.ImportStatement {
	var out []graph.ImportStatement
	for _, imports := range byFile {
		out = append(out, imports...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Location.Less(out[j].Location) })
	return out
}

func (s *ScanReport) summaryLine() string {
	sum := s.Report.Summary
	return fmt.Sprintf("Summary: %d unused, %d assign-only, %d redundant protocols, "+
		"%d redundant accessibility, %d unused parameters, %d unused imports, %d dead cycles "+
		"(%d declarations in %d files)",
		sum.Dead, sum.AssignOnly, sum.RedundantProtocols, sum.RedundantAccessibility,
		sum.UnusedParameters, sum.UnusedImports, sum.DeadCycles, sum.Declarations, sum.Files)
}

func (s *ScanReport) RenderText(w io.Writer, colored bool) error {
	if s.Report.Empty() {
		msg := "No unused code found."
		if colored {
			color.New(color.FgGreen).Fprintln(w, msg)
		} else {
			fmt.Fprintln(w, msg)
		}
		return nil
	}
	for _, t := range s.tables() {
		if err := t.RenderText(w, colored); err != nil {
			return err
		}
	}
	line := s.summaryLine()
	if colored {
		color.New(color.Bold).Fprintln(w, line)
	} else {
		fmt.Fprintln(w, line)
	}
	return nil
}

func (s *ScanReport) RenderMarkdown(w io.Writer) error {
	fmt.Fprintf(w, "# Deadwood Report\n\n")
	if s.Report.Empty() {
		fmt.Fprintln(w, "No unused code found.")
		return nil
	}
	for _, t := range s.tables() {
		if err := t.RenderMarkdown(w); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "**%s**\n", s.summaryLine())
	return nil
}

// Diagnostics flattens every finding; all are warnings.
func (s *ScanReport) Diagnostics() []Diagnostic {
	var out []Diagnostic
	for _, res := range s.Report.Results() {
		out = append(out, Diagnostic{
			File:     res.Location.File,
			Line:     res.Location.Line,
			Column:   res.Location.Column,
			Severity: "warning",
			Rule:     string(res.Annotation),
			Message:  res.Message(),
		})
	}
	return out
}
