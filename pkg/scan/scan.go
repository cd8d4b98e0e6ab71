// Package scan runs a whole dead-code scan: fact discovery, ingestion, the
// mutator pipeline and result projection, with an optional result cache.
package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/panbanda/deadwood/internal/cache"
	"github.com/panbanda/deadwood/internal/progress"
	"github.com/panbanda/deadwood/pkg/accessibility"
	"github.com/panbanda/deadwood/pkg/config"
	"github.com/panbanda/deadwood/pkg/graph"
	"github.com/panbanda/deadwood/pkg/index"
	"github.com/panbanda/deadwood/pkg/marker"
	"github.com/panbanda/deadwood/pkg/mutator"
	"github.com/panbanda/deadwood/pkg/results"
)

// Result is the outcome of one scan.
type Result struct {
	Report *results.Report `json:"report"`
	Stats  index.Stats     `json:"stats"`
	// Units are the fact files the scan read.
	Units []string `json:"-"`
	// Cached is set when the report came from the result cache.
	Cached bool `json:"-"`
}

// Scanner runs scans for one configuration.
type Scanner struct {
	cfg      *config.Config
	logger   *slog.Logger
	cache    *cache.Cache
	version  string
	progress io.Writer
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger passed to every stage.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithCache reuses reports for unchanged facts and settings.
func WithCache(c *cache.Cache) Option {
	return func(s *Scanner) { s.cache = c }
}

// WithVersion folds the tool version into cache keys.
func WithVersion(v string) Option {
	return func(s *Scanner) { s.version = v }
}

// WithProgress draws an ingestion progress bar to w. Nil disables it.
func WithProgress(w io.Writer) Option {
	return func(s *Scanner) { s.progress = w }
}

// New creates a Scanner for cfg.
func New(cfg *config.Config, opts ...Option) *Scanner {
	s := &Scanner{
		cfg:     cfg,
		logger:  slog.Default(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run discovers fact units under root and scans them. Empty patterns fall
// back to index.facts.
func (s *Scanner) Run(ctx context.Context, root string, patterns []string) (*Result, error) {
	units, err := s.Discover(root, patterns)
	if err != nil {
		return nil, err
	}
	return s.Scan(ctx, units)
}

// Discover expands fact globs relative to root, drops index.exclude matches
// and returns the sorted, deduplicated unit paths.
func (s *Scanner) Discover(root string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = s.cfg.Index.Facts
	}
	if root == "" {
		root = "."
	}

	var units []string
	for _, pattern := range patterns {
		matches, err := glob(root, pattern)
		if err != nil {
			return nil, fmt.Errorf("facts pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			rel := m
			if r, err := filepath.Rel(root, m); err == nil {
				rel = r
			}
			if s.cfg.IsFactExcluded(rel) {
				continue
			}
			units = append(units, m)
		}
	}
	slices.Sort(units)
	units = slices.Compact(units)
	if len(units) == 0 {
		return nil, fmt.Errorf("%w matching %s", index.ErrNoUnits, strings.Join(patterns, ", "))
	}
	return units, nil
}

func glob(root, pattern string) ([]string, error) {
	if filepath.IsAbs(pattern) {
		return doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	}
	matches, err := doublestar.Glob(os.DirFS(root), filepath.ToSlash(filepath.Clean(pattern)), doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	for i, m := range matches {
		matches[i] = filepath.Join(root, filepath.FromSlash(m))
	}
	return matches, nil
}

// Scan ingests units and projects the results.
func (s *Scanner) Scan(ctx context.Context, units []string) (*Result, error) {
	key, hit := s.lookup(units)
	if hit != nil {
		progress.NewTracker("Ingesting", 2*len(units), s.progressOptions()...).FinishSkipped("cached result")
		hit.Units = units
		return hit, nil
	}

	ingestOpts, err := s.ingestOptions()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	g := graph.New()
	tracker := progress.NewTracker("Ingesting", 2*len(units), s.progressOptions()...)
	stats, err := index.New(append(ingestOpts, index.WithProgress(tracker.Tick))...).Ingest(ctx, g, units)
	if err != nil {
		tracker.FinishError(err)
		return nil, err
	}
	tracker.FinishSuccess()

	if err := s.Pipeline().Run(ctx, g); err != nil {
		return nil, err
	}

	report, err := results.Build(g, ReportOptions(s.cfg))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("scan complete",
		slog.Int("units", stats.Units),
		slog.Int("declarations", stats.Declarations),
		slog.Int("results", report.Summary.Total()),
		slog.Duration("elapsed", time.Since(start)))

	res := &Result{Report: report, Stats: stats, Units: units}
	s.store(key, res)
	return res, nil
}

func (s *Scanner) progressOptions() []progress.Option {
	return []progress.Option{progress.WithWriter(s.progress), progress.Disabled(s.progress == nil)}
}

func (s *Scanner) ingestOptions() ([]index.Option, error) {
	fallbacks := make([]index.MatchFallback, 0, len(s.cfg.Matching.Fallbacks))
	for _, name := range s.cfg.Matching.Fallbacks {
		fb, err := index.ParseFallback(name)
		if err != nil {
			return nil, err
		}
		fallbacks = append(fallbacks, fb)
	}
	opts := []index.Option{
		index.WithWorkers(s.cfg.Index.Workers),
		index.WithSchemaValidation(s.cfg.Index.ValidateSchema),
		index.WithFallbacks(fallbacks...),
		index.WithLogger(s.logger),
	}
	if s.cfg.Index.Sources {
		opts = append(opts, index.WithSourceParsing(s.cfg.Index.SourceRoot))
	}
	return opts, nil
}

// Pipeline returns the ordered passes for the scanner's configuration:
// normalization, retention, then marking and the post-marker analyses.
func (s *Scanner) Pipeline() *mutator.Pipeline {
	opts := MutatorOptions(s.cfg)
	steps := mutator.NormalizationSteps(opts)
	steps = append(steps, mutator.RetentionSteps(opts)...)
	steps = append(steps,
		mutator.Step{Stage: mutator.StageAnalysis, Pass: marker.New(marker.WithLogger(s.logger))},
		mutator.Step{Stage: mutator.StageAnalysis, Pass: mutator.RedundantProtocolMarker{}},
		mutator.Step{Stage: mutator.StageAnalysis, Pass: accessibility.New(
			accessibility.WithLogger(s.logger),
			accessibility.WithPublicAPI(s.cfg.Retain.Public),
		)},
		mutator.Step{Stage: mutator.StageAnalysis, Pass: mutator.UnusedImportMarker{
			RetainModules: s.cfg.Retain.UnusedImportedModules,
		}},
	)
	return mutator.NewPipeline(s.logger, steps...)
}

// MutatorOptions maps the retain section onto pass options.
func MutatorOptions(cfg *config.Config) mutator.Options {
	r := cfg.Retain
	return mutator.Options{
		RetainPublic:                   r.Public,
		RetainObjcAccessible:           r.ObjcAccessible,
		RetainObjcAnnotated:            r.ObjcAnnotated,
		RetainFiles:                    r.Files,
		RetainAssignOnlyProperties:     r.AssignOnlyProperties,
		AssignOnlyPropertyTypes:        r.AssignOnlyPropertyTypes,
		RetainUnusedProtocolFuncParams: r.UnusedProtocolFuncParams,
		RetainCodableProperties:        r.CodableProperties,
		ExternalCodableProtocols:       r.ExternalCodableProtocols,
		ExternalTestCaseClasses:        r.ExternalTestCaseClasses,
		RetainUnusedImportedModules:    r.UnusedImportedModules,
		RetainSwiftUIPreviews:          r.SwiftUIPreviews,
	}
}

// ReportOptions maps the report section onto projection options.
func ReportOptions(cfg *config.Config) results.Options {
	r := cfg.Report
	return results.Options{
		Include:                r.Include,
		Exclude:                r.Exclude,
		RelativeTo:             r.RelativeTo,
		RedundantAccessibility: r.RedundantAccessibility,
		UnusedImports:          r.UnusedImports,
		UnusedParameters:       r.UnusedParameters,
		DeadCycles:             r.DeadCycles,
	}
}

// settings serializes every option that changes the report. Output and
// cache settings are left out.
func (s *Scanner) settings() ([]byte, error) {
	c := *s.cfg
	c.Output = config.OutputConfig{}
	c.Cache = config.CacheConfig{}
	return c.TOML()
}

// lookup returns the cache key and, on a hit, the cached result. Cache
// failures never fail the scan.
func (s *Scanner) lookup(units []string) (string, *Result) {
	if s.cache == nil {
		return "", nil
	}
	settings, err := s.settings()
	if err != nil {
		s.logger.Warn("cache disabled", slog.String("error", err.Error()))
		return "", nil
	}
	key, err := cache.Key(units, settings, s.version)
	if err != nil {
		s.logger.Warn("cache disabled", slog.String("error", err.Error()))
		return "", nil
	}
	data, ok := s.cache.Get(key)
	if !ok {
		return key, nil
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil || res.Report == nil {
		s.logger.Debug("ignoring unreadable cache entry", slog.String("key", key))
		return key, nil
	}
	res.Cached = true
	s.logger.Debug("cache hit", slog.String("key", key))
	return key, &res
}

func (s *Scanner) store(key string, res *Result) {
	if s.cache == nil || key == "" {
		return
	}
	data, err := json.Marshal(res)
	if err == nil {
		err = s.cache.Set(key, data)
	}
	if err != nil {
		s.logger.Warn("cache store failed", slog.String("error", err.Error()))
	}
}
