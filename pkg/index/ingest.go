// Package index ingests compiler index facts into the declaration graph.
//
// Ingestion runs in two parallel phases separated by a barrier. Phase A
// decodes every fact unit and inserts its declarations. Phase B links
// hierarchy across units, attaches references, applies syntax metadata and
// reclassifies reference roles. Each unit takes the graph lock once per phase.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/panbanda/deadwood/internal/fileproc"
	"github.com/panbanda/deadwood/pkg/graph"
	"github.com/panbanda/deadwood/pkg/syntax"
)

// Stats summarizes an ingestion run.
type Stats struct {
	Units        int `json:"units"`
	Declarations int `json:"declarations"`
	References   int `json:"references"`
	Dangling     int `json:"dangling"`
	SkippedKinds int `json:"skipped_kinds"`
}

// Ingester loads fact units into a graph.
type Ingester struct {
	workers      int
	validate     bool
	parseSources bool
	sourceRoot   string
	fallbacks    []MatchFallback
	onProgress   func()
	logger       *slog.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithWorkers bounds ingestion concurrency. Zero means 2x NumCPU.
func WithWorkers(n int) Option {
	return func(in *Ingester) { in.workers = n }
}

// WithSchemaValidation toggles JSON schema validation of every unit.
func WithSchemaValidation(enabled bool) Option {
	return func(in *Ingester) { in.validate = enabled }
}

// WithSourceParsing parses the Swift sources named by units, relative to root,
// to recover imports and comment commands the units lack.
func WithSourceParsing(root string) Option {
	return func(in *Ingester) {
		in.parseSources = true
		in.sourceRoot = root
	}
}

// WithFallbacks sets the role reclassification fallbacks tried after an exact location match fails.
func WithFallbacks(fallbacks ...MatchFallback) Option {
	return func(in *Ingester) { in.fallbacks = fallbacks }
}

// WithProgress registers a callback invoked once per unit and phase.
func WithProgress(fn func()) Option {
	return func(in *Ingester) { in.onProgress = fn }
}

// WithLogger sets the logger used for best-effort gaps.
func WithLogger(l *slog.Logger) Option {
	return func(in *Ingester) { in.logger = l }
}

// New creates an Ingester with schema validation on and both role fallbacks enabled.
func New(opts ...Option) *Ingester {
	in := &Ingester{
		validate:  true,
		fallbacks: DefaultFallbacks(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// loadedUnit is a decoded unit carried from phase A to phase B.
type loadedUnit struct {
	path    string
	unit    *Unit
	skipped int
}

// LoadUnit reads and decodes a fact unit, validating it when validate is set.
func LoadUnit(path string, validate bool) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read unit: %w", err)
	}
	return DecodeUnit(data, validate)
}

// DecodeUnit decodes a fact unit from JSON.
func DecodeUnit(data []byte, validate bool) (*Unit, error) {
	if validate {
		if err := validateUnit(data); err != nil {
			return nil, err
		}
	}
	var u Unit
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUnit, err)
	}
	if u.File == "" || len(u.Modules) == 0 {
		return nil, fmt.Errorf("%w: file and modules are required", ErrMalformedUnit)
	}
	return &u, nil
}

// Ingest loads every unit in paths into g. The first failing unit aborts the
// batch; its *UnitError is returned.
func (in *Ingester) Ingest(ctx context.Context, g *graph.Graph, paths []string) (Stats, error) {
	paths = uniquePaths(paths)
	if len(paths) == 0 {
		return Stats{}, ErrNoUnits
	}
	opts := fileproc.Options{Workers: in.workers, OnProgress: in.onProgress}

	units, err := fileproc.ForEachFile(ctx, paths, opts, func(ctx context.Context, path string) (*loadedUnit, error) {
		return in.phaseA(g, path)
	})
	if err != nil {
		return Stats{}, unitError(err)
	}

	byPath := make(map[string]*loadedUnit, len(units))
	for _, lu := range units {
		byPath[lu.path] = lu
	}

	newParser := func() (*syntax.Parser, error) {
		if !in.parseSources {
			return nil, nil
		}
		return syntax.New(), nil
	}
	closeParser := func(p *syntax.Parser) {
		if p != nil {
			p.Close()
		}
	}
	linked, err := fileproc.ForEachFileWithResource(ctx, paths, opts, newParser, closeParser,
		func(ctx context.Context, p *syntax.Parser, path string) (linkStats, error) {
			return in.phaseB(ctx, g, p, byPath[path])
		})
	if err != nil {
		return Stats{}, unitError(err)
	}

	stats := Stats{Units: len(units), Declarations: g.Len()}
	for _, lu := range units {
		stats.SkippedKinds += lu.skipped
	}
	for _, ls := range linked {
		stats.References += ls.references
		stats.SkippedKinds += ls.skipped
	}
	stats.Dangling = len(g.DanglingReferences())

	if stats.SkippedKinds > 0 {
		in.logger.Warn("skipped records with unknown kinds", slog.Int("count", stats.SkippedKinds))
	}
	if stats.Dangling > 0 {
		in.logger.Debug("dangling references", slog.Int("count", stats.Dangling))
	}
	in.logger.Debug("ingested fact units",
		slog.Int("units", stats.Units),
		slog.Int("declarations", stats.Declarations),
		slog.Int("references", stats.References))
	return stats, nil
}

func (in *Ingester) phaseA(g *graph.Graph, path string) (*loadedUnit, error) {
	u, err := LoadUnit(path, in.validate)
	if err != nil {
		return nil, &UnitError{Path: path, Err: err}
	}
	lu := &loadedUnit{path: path, unit: u}

	decls := make([]*graph.Declaration, 0, len(u.Symbols))
	for _, sym := range u.Symbols {
		kind, ok := mapKind(sym.Kind, sym.Subkind)
		if !ok {
			lu.skipped++
			continue
		}
		decls = append(decls, &graph.Declaration{
			Kind:           kind,
			Usrs:           []string{sym.Usr},
			Name:           sym.Name,
			Location:       u.location(sym.Location),
			Implicit:       sym.Implicit,
			ObjcAccessible: sym.ObjcAccessible,
		})
	}

	file := &graph.SourceFile{
		Path:         u.File,
		Modules:      u.Modules,
		Imports:      u.imports(),
		TopLevelCode: u.TopLevelCode,
	}
	for _, c := range u.FileCommands {
		if graph.ParseCommentCommand(c).Kind == graph.CommandIgnoreAll {
			file.IgnoreAll = true
		}
	}

	var addErr error
	g.WithLock(func() {
		g.AddFileWithoutLock(file)
		for _, d := range decls {
			if _, err := g.AddDeclarationWithoutLock(d); err != nil {
				addErr = err
				return
			}
		}
	})
	if addErr != nil {
		return nil, &UnitError{Path: path, Err: addErr}
	}
	return lu, nil
}

func (in *Ingester) phaseB(ctx context.Context, g *graph.Graph, p *syntax.Parser, lu *loadedUnit) (linkStats, error) {
	var syn *syntax.File
	if p != nil {
		source := lu.unit.File
		if !filepath.IsAbs(source) && in.sourceRoot != "" {
			source = filepath.Join(in.sourceRoot, source)
		}
		f, err := p.ParseFile(ctx, source)
		if err != nil {
			in.logger.Warn("source unavailable for syntax analysis",
				slog.String("file", lu.unit.File), slog.String("error", err.Error()))
		} else {
			syn = f
		}
	}

	var stats linkStats
	var linkErr error
	g.WithLock(func() {
		l := &linker{g: g, unit: lu.unit, syntax: syn, fallbacks: in.fallbacks}
		stats, linkErr = l.link()
	})
	if linkErr != nil {
		return stats, &UnitError{Path: lu.path, Err: linkErr}
	}
	return stats, nil
}

func unitError(err error) error {
	var ue *UnitError
	if errors.As(err, &ue) {
		return ue
	}
	var pe fileproc.ProcessingError
	if errors.As(err, &pe) {
		return &UnitError{Path: pe.Path, Err: pe.Err}
	}
	return err
}

func uniquePaths(paths []string) []string {
	out := slices.Clone(paths)
	slices.Sort(out)
	return slices.Compact(out)
}

func (u *Unit) location(p Position) graph.Location {
	return graph.Location{File: u.File, Line: p.Line, Column: p.Column}
}

func (u *Unit) imports() []graph.ImportStatement {
	out := make([]graph.ImportStatement, 0, len(u.Imports))
	for _, imp := range u.Imports {
		stmt := graph.ImportStatement{
			Module:   imp.Module,
			Testable: imp.Testable,
			Exported: imp.Exported,
			Location: u.location(Position{Line: imp.Line, Column: imp.Column}),
		}
		for _, c := range imp.Commands {
			stmt.Commands = append(stmt.Commands, graph.ParseCommentCommand(c))
		}
		out = append(out, stmt)
	}
	return out
}
