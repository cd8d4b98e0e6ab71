package graph

import "sort"

// ImportStatement is an import written at the top of a source file.
type ImportStatement struct {
	Module   string           `json:"module"`
	Testable bool             `json:"testable"`
	Exported bool             `json:"exported"`
	Location Location         `json:"location"`
	Commands []CommentCommand `json:"commands,omitempty"`
}

// SourceFile describes a file whose facts were ingested.
type SourceFile struct {
	Path    string            `json:"path"`
	Modules []string          `json:"modules"`
	Imports []ImportStatement `json:"imports,omitempty"`
	// IgnoreAll is set by a file-level ignore:all command.
	IgnoreAll bool `json:"ignore_all,omitempty"`
	// TopLevelCode marks files whose module-scope statements execute (main.swift, scripts).
	TopLevelCode bool `json:"top_level_code,omitempty"`
}

// HasModule reports whether the file is compiled into module.
func (f *SourceFile) HasModule(module string) bool {
	for _, m := range f.Modules {
		if m == module {
			return true
		}
	}
	return false
}

// AddModules merges module names, keeping them sorted and unique.
func (f *SourceFile) AddModules(modules ...string) {
	for _, m := range modules {
		if m != "" && !f.HasModule(m) {
			f.Modules = append(f.Modules, m)
		}
	}
	sort.Strings(f.Modules)
}

// AddImports merges import statements, de-duplicating by module and location.
func (f *SourceFile) AddImports(imports ...ImportStatement) {
	for _, imp := range imports {
		dup := false
		for i, existing := range f.Imports {
			if existing.Module == imp.Module && existing.Location == imp.Location {
				f.Imports[i].Testable = existing.Testable || imp.Testable
				f.Imports[i].Exported = existing.Exported || imp.Exported
				dup = true
				break
			}
		}
		if !dup {
			f.Imports = append(f.Imports, imp)
		}
	}
	sort.SliceStable(f.Imports, func(i, j int) bool {
		return f.Imports[i].Location.Less(f.Imports[j].Location)
	})
}

// ImportsModule returns the import statement for module, if any.
func (f *SourceFile) ImportsModule(module string) (ImportStatement, bool) {
	for _, imp := range f.Imports {
		if imp.Module == module {
			return imp, true
		}
	}
	return ImportStatement{}, false
}
