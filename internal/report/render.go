// Package report renders a scan as a standalone HTML page.
package report

import (
	"cmp"
	"embed"
	"encoding/json"
	"html/template"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/panbanda/deadwood/pkg/results"
)

//go:embed template.html
var templateFS embed.FS

// Metadata describes the scan that produced the report.
type Metadata struct {
	Version     string
	GeneratedAt time.Time
	Units       int
}

// Row is one finding as shown in a section table.
type Row struct {
	Location string
	Kind     string
	Name     string
	Message  string
}

// Section groups the findings of one annotation.
type Section struct {
	ID    string
	Title string
	Rows  []Row
}

// RenderData contains all data needed to render the report.
type RenderData struct {
	Metadata Metadata
	Summary  results.Summary
	Sections []Section
	Cycles   []results.Cycle
	// TopFiles lists the files with the most findings, most first.
	TopFiles []FileCount
}

// FileCount is the number of findings in one file.
type FileCount struct {
	File  string
	Count int
}

var sectionTitles = []struct {
	annotation results.Annotation
	title      string
}{
	{results.AnnotationUnused, "unused declarations"},
	{results.AnnotationAssignOnly, "assign-only properties"},
	{results.AnnotationRedundantProtocol, "redundant protocols"},
	{results.AnnotationRedundantAccessibility, "redundant accessibility"},
	{results.AnnotationUnusedParameter, "unused parameters"},
	{results.AnnotationUnusedImport, "unused imports"},
}

// Renderer handles HTML report generation.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer creates a new renderer with the embedded template.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"title": cases.Title(language.English).String,
		"truncatePath": func(s string, n int) string {
			if len(s) <= n {
				return s
			}
			parts := strings.Split(s, "/")
			if len(parts) <= 2 {
				return s[:n-3] + "..."
			}
			filename := parts[len(parts)-1]
			if len(filename) >= n-3 {
				return "..." + filename[len(filename)-n+3:]
			}
			remaining := max(n-len(filename)-4, 0)
			prefix := strings.Join(parts[:len(parts)-1], "/")
			if len(prefix) > remaining {
				prefix = prefix[len(prefix)-remaining:]
			}
			return ".../" + prefix + "/" + filename
		},
		"json": func(v any) template.JS {
			b, _ := json.Marshal(v)
			return template.JS(b)
		},
		"num": func(n int) string {
			return message.NewPrinter(language.English).Sprintf("%d", n)
		},
	}

	tmplContent, err := templateFS.ReadFile("template.html")
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("report").Funcs(funcMap).Parse(string(tmplContent))
	if err != nil {
		return nil, err
	}

	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the HTML report for r.
func (rd *Renderer) Render(r *results.Report, meta Metadata, w io.Writer) error {
	return rd.tmpl.Execute(w, NewRenderData(r, meta))
}

// RenderToFile writes the HTML report to a file.
func (rd *Renderer) RenderToFile(r *results.Report, meta Metadata, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	return rd.Render(r, meta, f)
}

// NewRenderData groups a report's findings into sections.
func NewRenderData(r *results.Report, meta Metadata) *RenderData {
	byAnnotation := make(map[results.Annotation][]Row)
	for _, res := range r.Results() {
		byAnnotation[res.Annotation] = append(byAnnotation[res.Annotation], Row{
			Location: res.Location.String(),
			Kind:     res.Kind.DisplayName(),
			Name:     res.Name,
			Message:  res.Message(),
		})
	}

	data := &RenderData{Metadata: meta, Summary: r.Summary, Cycles: r.DeadCycles}
	for _, s := range sectionTitles {
		if rows := byAnnotation[s.annotation]; len(rows) > 0 {
			data.Sections = append(data.Sections, Section{ID: string(s.annotation), Title: s.title, Rows: rows})
		}
	}

	for file, count := range r.Summary.ByFile {
		data.TopFiles = append(data.TopFiles, FileCount{File: file, Count: count})
	}
	slices.SortFunc(data.TopFiles, func(a, b FileCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.File, b.File)
	})
	if len(data.TopFiles) > 10 {
		data.TopFiles = data.TopFiles[:10]
	}
	return data
}
