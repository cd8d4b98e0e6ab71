package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gotoml "github.com/pelletier/go-toml"
)

// Config holds all configuration options for deadwood.
type Config struct {
	// Fact discovery and ingestion
	Index IndexConfig `koanf:"index" toml:"index"`

	// Retention policy
	Retain RetainConfig `koanf:"retain" toml:"retain"`

	// Report scoping
	Report ReportConfig `koanf:"report" toml:"report"`

	// Role reclassification heuristics
	Matching MatchingConfig `koanf:"matching" toml:"matching"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`
}

// IndexConfig controls which fact units are ingested and how.
type IndexConfig struct {
	Facts          []string `koanf:"facts" toml:"facts"`
	Exclude        []string `koanf:"exclude" toml:"exclude"`
	Workers        int      `koanf:"workers" toml:"workers"` // 0 means 2x NumCPU
	ValidateSchema bool     `koanf:"validate_schema" toml:"validate_schema"`
	// Sources enables parsing Swift sources for imports and comment commands.
	Sources    bool   `koanf:"sources" toml:"sources"`
	SourceRoot string `koanf:"source_root" toml:"source_root"`
}

// RetainConfig controls which declarations are kept regardless of use.
type RetainConfig struct {
	Public                   bool     `koanf:"public" toml:"public"`
	ObjcAccessible           bool     `koanf:"objc_accessible" toml:"objc_accessible"`
	ObjcAnnotated            bool     `koanf:"objc_annotated" toml:"objc_annotated"`
	Files                    []string `koanf:"files" toml:"files"`
	AssignOnlyProperties     bool     `koanf:"assign_only_properties" toml:"assign_only_properties"`
	AssignOnlyPropertyTypes  []string `koanf:"assign_only_property_types" toml:"assign_only_property_types"`
	UnusedProtocolFuncParams bool     `koanf:"unused_protocol_func_params" toml:"unused_protocol_func_params"`
	CodableProperties        bool     `koanf:"codable_properties" toml:"codable_properties"`
	ExternalCodableProtocols []string `koanf:"external_codable_protocols" toml:"external_codable_protocols"`
	ExternalTestCaseClasses  []string `koanf:"external_test_case_classes" toml:"external_test_case_classes"`
	UnusedImportedModules    []string `koanf:"unused_imported_modules" toml:"unused_imported_modules"`
	SwiftUIPreviews          bool     `koanf:"swift_ui_previews" toml:"swift_ui_previews"`
}

// ReportConfig scopes and selects findings.
type ReportConfig struct {
	Include                []string `koanf:"include" toml:"include"`
	Exclude                []string `koanf:"exclude" toml:"exclude"`
	RedundantAccessibility bool     `koanf:"redundant_accessibility" toml:"redundant_accessibility"`
	UnusedImports          bool     `koanf:"unused_imports" toml:"unused_imports"`
	UnusedParameters       bool     `koanf:"unused_parameters" toml:"unused_parameters"`
	DeadCycles             bool     `koanf:"dead_cycles" toml:"dead_cycles"`
	RelativeTo             string   `koanf:"relative_to" toml:"relative_to"`
}

// MatchingConfig lists the fallbacks tried when a syntax type location has no
// reference at exactly that position: same_line, preceding_line.
type MatchingConfig struct {
	Fallbacks []string `koanf:"fallbacks" toml:"fallbacks"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format"`
	Color   bool   `koanf:"color" toml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose"`
}

// Formats lists the accepted output format names.
var Formats = []string{"text", "markdown", "json", "toon", "yaml", "checkstyle", "github-actions"}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Facts:          []string{".deadwood/facts/**/*.json"},
			ValidateSchema: true,
		},
		Retain: RetainConfig{
			ObjcAccessible:  true,
			SwiftUIPreviews: true,
		},
		Report: ReportConfig{
			RedundantAccessibility: true,
			UnusedImports:          true,
			UnusedParameters:       true,
			DeadCycles:             true,
		},
		Matching: MatchingConfig{
			Fallbacks: []string{"same_line", "preceding_line"},
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".deadwood/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
	}
}

// Validate rejects values no command can act on.
func (c *Config) Validate() error {
	var errs []error
	if c.Index.Workers < 0 {
		errs = append(errs, fmt.Errorf("index.workers must not be negative, got %d", c.Index.Workers))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative, got %d", c.Cache.TTL))
	}
	if !validFormat(c.Output.Format) {
		errs = append(errs, fmt.Errorf("output.format %q is not one of %s", c.Output.Format, strings.Join(Formats, ", ")))
	}
	for _, fb := range c.Matching.Fallbacks {
		if fb != "same_line" && fb != "preceding_line" {
			errs = append(errs, fmt.Errorf("matching.fallbacks: unknown fallback %q", fb))
		}
	}
	globs := []struct {
		key      string
		patterns []string
	}{
		{"index.facts", c.Index.Facts},
		{"index.exclude", c.Index.Exclude},
		{"retain.files", c.Retain.Files},
		{"report.include", c.Report.Include},
		{"report.exclude", c.Report.Exclude},
	}
	for _, g := range globs {
		for _, pattern := range g.patterns {
			if !doublestar.ValidatePattern(pattern) {
				errs = append(errs, fmt.Errorf("%s: bad glob %q", g.key, pattern))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func validFormat(format string) bool {
	for _, f := range Formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

// Load loads configuration from a file, layered over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// configNames are searched in order within each search directory.
var configNames = []string{
	"deadwood.toml",
	"deadwood.yaml",
	"deadwood.yml",
	"deadwood.json",
	".deadwood.toml",
	".deadwood.yaml",
	".deadwood.yml",
	".deadwood.json",
}

// Find returns the first config file under dir's standard locations, or "".
func Find(dir string) string {
	for _, sub := range []string{".", ".deadwood"} {
		for _, name := range configNames {
			path := filepath.Join(dir, sub, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadResult is a loaded configuration and the file it came from.
type LoadResult struct {
	Config *Config
	// Source is empty when no file was found and defaults apply.
	Source string
}

type loadOptions struct {
	path string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads an explicit file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) { o.path = path }
}

// LoadConfig loads an explicit file, or the first file in the standard
// locations, or the defaults. An explicit path that cannot be loaded is an
// error; so is a discovered file that fails to parse or validate.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	path := o.path
	if path == "" {
		path = Find(".")
	}
	if path == "" {
		return &LoadResult{Config: DefaultConfig()}, nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Config: cfg, Source: path}, nil
}

// TOML renders the config as a TOML document.
func (c *Config) TOML() ([]byte, error) {
	data, err := gotoml.Marshal(*c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// IsFactExcluded reports whether a discovered fact unit is excluded by index.exclude.
func (c *Config) IsFactExcluded(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range c.Index.Exclude {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return true
		}
	}
	return false
}
