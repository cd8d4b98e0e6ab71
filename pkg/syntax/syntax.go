// Package syntax recovers import statements and comment commands from Swift
// source files with tree-sitter, for fact units that do not carry them.
package syntax

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/swift"

	"github.com/panbanda/deadwood/pkg/graph"
)

// declarationNodeTypes are node types whose leading or trailing comments carry commands.
var declarationNodeTypes = map[string]bool{
	"class_declaration":             true,
	"protocol_declaration":          true,
	"function_declaration":          true,
	"init_declaration":              true,
	"deinit_declaration":            true,
	"subscript_declaration":         true,
	"property_declaration":          true,
	"typealias_declaration":         true,
	"associatedtype_declaration":    true,
	"protocol_function_declaration": true,
	"protocol_property_declaration": true,
	"operator_declaration":          true,
	"precedence_group_declaration":  true,
	"enum_entry":                    true,
	"macro_declaration":             true,
	"parameter":                     false,
	"import_declaration":            false,
	"comment":                       false,
	"multiline_comment":             false,
	"shebang_line":                  false,
	"statements":                    false,
	"source_file":                   false,
	"ERROR":                         false,
}

// File is what syntax analysis recovered from one source file.
type File struct {
	Path    string
	Imports []graph.ImportStatement
	// FileCommands apply to the whole file (ignore:all).
	FileCommands []graph.CommentCommand
	// Commands maps a declaration line to the commands written next to it.
	Commands map[int][]graph.CommentCommand
	// TopLevelCode is set when the file contains executable statements at file scope.
	TopLevelCode bool
}

// CommandsAt returns the commands attached to the declaration on line.
func (f *File) CommandsAt(line int) []graph.CommentCommand {
	return f.Commands[line]
}

// Parser wraps a tree-sitter parser configured for Swift. It is not safe for
// concurrent use; create one per worker.
type Parser struct {
	parser *sitter.Parser
}

// New creates a new parser instance.
func New() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(swift.GetLanguage())
	return &Parser{parser: p}
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// ParseFile reads and parses a source file.
func (p *Parser) ParseFile(ctx context.Context, path string) (*File, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.Parse(ctx, path, source)
}

// Parse parses source and extracts imports, comment commands and top-level code.
func (p *Parser) Parse(ctx context.Context, path string, source []byte) (*File, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	defer tree.Close()

	f := &File{Path: path, Commands: make(map[int][]graph.CommentCommand)}
	root := tree.RootNode()

	type declSpan struct{ start, name int }
	var decls []declSpan
	type commentSpan struct {
		start, end int
		cmds       []graph.CommentCommand
	}
	var comments []commentSpan

	walk(root, func(node *sitter.Node, nodeType string) bool {
		switch {
		case nodeType == "import_declaration":
			imp := parseImport(nodeText(node, source))
			if imp.Module != "" {
				imp.Location = graph.Location{File: path, Line: int(node.StartPoint().Row) + 1, Column: int(node.StartPoint().Column) + 1}
				f.Imports = append(f.Imports, imp)
			}
			return false
		case nodeType == "comment" || nodeType == "multiline_comment":
			if cmds := graph.ParseCommentCommands(nodeText(node, source)); len(cmds) > 0 {
				comments = append(comments, commentSpan{
					start: int(node.StartPoint().Row) + 1,
					end:   int(node.EndPoint().Row) + 1,
					cmds:  cmds,
				})
			}
			return false
		case declarationNodeTypes[nodeType]:
			span := declSpan{start: int(node.StartPoint().Row) + 1}
			span.name = span.start
			if name := node.ChildByFieldName("name"); name != nil {
				span.name = int(name.StartPoint().Row) + 1
			}
			decls = append(decls, span)
		}
		return true
	})

	for i := range int(root.NamedChildCount()) {
		child := root.NamedChild(i)
		if _, known := declarationNodeTypes[child.Type()]; !known {
			f.TopLevelCode = true
			break
		}
	}

	sort.SliceStable(decls, func(i, j int) bool { return decls[i].start < decls[j].start })
	for _, c := range comments {
		var file, local []graph.CommentCommand
		for _, cmd := range c.cmds {
			if cmd.Kind == graph.CommandIgnoreAll {
				file = append(file, cmd)
			} else {
				local = append(local, cmd)
			}
		}
		f.FileCommands = append(f.FileCommands, file...)
		if len(local) == 0 {
			continue
		}
		for _, d := range decls {
			// Trailing comment on the declaration line, or a comment directly above it.
			if d.start == c.start || d.start == c.end+1 {
				f.Commands[d.name] = append(f.Commands[d.name], local...)
				break
			}
		}
	}

	// A command trailing an import applies to that import.
	for i, imp := range f.Imports {
		for _, c := range comments {
			if c.start == imp.Location.Line {
				f.Imports[i].Commands = append(f.Imports[i].Commands, c.cmds...)
			}
		}
	}
	return f, nil
}

// parseImport reads an import declaration such as "@testable import struct Foo.Bar".
func parseImport(text string) graph.ImportStatement {
	var imp graph.ImportStatement
	fields := strings.Fields(text)
	seenImport := false
	for _, field := range fields {
		switch {
		case field == "@testable":
			imp.Testable = true
		case field == "@_exported":
			imp.Exported = true
		case field == "import":
			seenImport = true
		case !seenImport:
			// Other attributes and modifiers.
		case isImportKind(field):
		default:
			module, _, _ := strings.Cut(field, ".")
			imp.Module = module
			return imp
		}
	}
	return imp
}

func isImportKind(s string) bool {
	switch s {
	case "typealias", "struct", "class", "enum", "protocol", "let", "var", "func", "actor":
		return true
	}
	return false
}

func walk(node *sitter.Node, visit func(*sitter.Node, string) bool) {
	if node == nil {
		return
	}
	if !visit(node, node.Type()) {
		return
	}
	for i := range int(node.ChildCount()) {
		walk(node.Child(i), visit)
	}
}

func nodeText(node *sitter.Node, source []byte) string {
	start, end := node.StartByte(), node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}
