package results

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// filter scopes findings by file path and rewrites displayed paths.
type filter struct {
	include    []string
	exclude    []string
	relativeTo string
}

func newFilter(opts Options) (*filter, error) {
	for _, pattern := range append(append([]string(nil), opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid report glob %q: %w", pattern, doublestar.ErrBadPattern)
		}
	}
	rel := opts.RelativeTo
	if rel != "" {
		rel = filepath.Clean(rel)
	}
	return &filter{include: opts.Include, exclude: opts.Exclude, relativeTo: rel}, nil
}

// keep reports whether findings in file survive the include and exclude globs.
// Patterns are tried against both the path as indexed and its relative form.
func (f *filter) keep(file string) bool {
	candidates := []string{filepath.ToSlash(file)}
	if rel := f.rel(file); rel != file {
		candidates = append(candidates, filepath.ToSlash(rel))
	}
	if len(f.include) > 0 && !matchAny(f.include, candidates) {
		return false
	}
	return !matchAny(f.exclude, candidates)
}

func (f *filter) rel(file string) string {
	if f.relativeTo == "" || !filepath.IsAbs(file) {
		return file
	}
	rel, err := filepath.Rel(f.relativeTo, file)
	if err != nil || strings.HasPrefix(rel, "..") {
		return file
	}
	return rel
}

func matchAny(patterns, paths []string) bool {
	for _, pattern := range patterns {
		for _, p := range paths {
			if ok, _ := doublestar.Match(pattern, p); ok {
				return true
			}
		}
	}
	return false
}
