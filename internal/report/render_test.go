package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/panbanda/deadwood/pkg/graph"
	"github.com/panbanda/deadwood/pkg/results"
)

func sampleReport() *results.Report {
	orphan := results.Result{
		Annotation: results.AnnotationUnused,
		Name:       "Orphan",
		Kind:       graph.KindClass,
		Location:   graph.Location{File: "Sources/App/Model.swift", Line: 3, Column: 7},
	}
	helper := results.Result{
		Annotation: results.AnnotationUnused,
		Name:       "helper()",
		Kind:       graph.KindFunctionFree,
		Location:   graph.Location{File: "Sources/App/Util.swift", Line: 1, Column: 6},
	}
	r := &results.Report{
		Dead: []results.Result{orphan, helper},
		UnusedImports: map[string][]graph.ImportStatement{
			"Sources/App/View.swift": {{Module: "Net", Location: graph.Location{File: "Sources/App/View.swift", Line: 1, Column: 1}}},
		},
		DeadCycles: []results.Cycle{{Members: []results.Result{orphan, helper}}},
		Summary:    results.NewSummary(),
	}
	r.Summary.Dead = 2
	r.Summary.UnusedImports = 1
	r.Summary.DeadCycles = 1
	r.Summary.Declarations = 1234
	r.Summary.Files = 3
	r.Summary.ByFile["Sources/App/Model.swift"] = 1
	r.Summary.ByFile["Sources/App/Util.swift"] = 1
	r.Summary.ByFile["Sources/App/View.swift"] = 1
	return r
}

func TestNewRenderData(t *testing.T) {
	data := NewRenderData(sampleReport(), Metadata{Version: "1.0.0", Units: 3})

	if len(data.Sections) != 2 {
		t.Fatalf("Sections = %d, want 2", len(data.Sections))
	}
	if data.Sections[0].ID != "unused" || len(data.Sections[0].Rows) != 2 {
		t.Errorf("first section = %+v, want 2 unused rows", data.Sections[0])
	}
	if data.Sections[1].ID != "unused_import" {
		t.Errorf("second section = %q, want unused_import", data.Sections[1].ID)
	}
	if got := data.Sections[0].Rows[0].Location; got != "Sources/App/Model.swift:3:7" {
		t.Errorf("first row location = %q", got)
	}
	if len(data.TopFiles) != 3 || data.TopFiles[0].File != "Sources/App/Model.swift" {
		t.Errorf("TopFiles = %+v, want ties ordered by file", data.TopFiles)
	}
}

func TestRender(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error: %v", err)
	}

	var buf bytes.Buffer
	meta := Metadata{Version: "1.0.0", GeneratedAt: time.Date(2024, 12, 10, 9, 30, 0, 0, time.UTC), Units: 3}
	if err := r.Render(sampleReport(), meta, &buf); err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Generated 2024-12-10 09:30 by deadwood 1.0.0",
		"1,234 declarations",
		"Unused Declarations (2)",
		"Unused Imports (1)",
		"Class &#39;Orphan&#39; is unused",
		"Dead Cycles (1)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() output missing %q", want)
		}
	}
	if strings.Contains(out, "No unused code found.") {
		t.Error("non-empty report should not claim to be clean")
	}
}

func TestRenderEmpty(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error: %v", err)
	}

	empty := &results.Report{Summary: results.NewSummary()}
	path := filepath.Join(t.TempDir(), "report.html")
	if err := r.RenderToFile(empty, Metadata{GeneratedAt: time.Now()}, path); err != nil {
		t.Fatalf("RenderToFile() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "No unused code found.") {
		t.Error("empty report should say it is clean")
	}
}
