package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"
)

type checkstyleReport struct {
	XMLName xml.Name         `xml:"checkstyle"`
	Version string           `xml:"version,attr"`
	Files   []checkstyleFile `xml:"file"`
}

type checkstyleFile struct {
	Name   string            `xml:"name,attr"`
	Errors []checkstyleError `xml:"error"`
}

type checkstyleError struct {
	Line     int    `xml:"line,attr"`
	Column   int    `xml:"column,attr,omitempty"`
	Severity string `xml:"severity,attr"`
	Message  string `xml:"message,attr"`
	Source   string `xml:"source,attr"`
}

// writeCheckstyle renders diagnostics as a Checkstyle XML document grouped by file.
func writeCheckstyle(w io.Writer, diags []Diagnostic) error {
	byFile := make(map[string][]checkstyleError)
	for _, d := range diags {
		byFile[d.File] = append(byFile[d.File], checkstyleError{
			Line:     d.Line,
			Column:   d.Column,
			Severity: d.Severity,
			Message:  d.Message,
			Source:   "deadwood." + d.Rule,
		})
	}
	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	report := checkstyleReport{Version: "4.3"}
	for _, f := range files {
		report.Files = append(report.Files, checkstyleFile{Name: f, Errors: byFile[f]})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

// writeGitHubActions renders diagnostics as workflow commands that annotate pull requests.
func writeGitHubActions(w io.Writer, diags []Diagnostic) error {
	for _, d := range diags {
		level := "warning"
		if d.Severity == "error" {
			level = "error"
		}
		_, err := fmt.Fprintf(w, "::%s file=%s,line=%d,col=%d,title=%s::%s\n",
			level, escapeProperty(d.File), d.Line, d.Column, escapeProperty(d.Rule), escapeData(d.Message))
		if err != nil {
			return err
		}
	}
	return nil
}

func escapeData(s string) string {
	r := strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")
	return r.Replace(s)
}

func escapeProperty(s string) string {
	r := strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A", ":", "%3A", ",", "%2C")
	return r.Replace(s)
}
