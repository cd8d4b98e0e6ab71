package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	// Check index defaults
	if !cfg.Index.ValidateSchema {
		t.Error("Index.ValidateSchema should be true by default")
	}
	if cfg.Index.Workers != 0 {
		t.Errorf("Index.Workers = %d, want 0", cfg.Index.Workers)
	}
	if len(cfg.Index.Facts) == 0 {
		t.Error("Index.Facts should have a default glob")
	}

	// Check retention defaults
	if cfg.Retain.Public {
		t.Error("Retain.Public should be false by default")
	}
	if !cfg.Retain.ObjcAccessible {
		t.Error("Retain.ObjcAccessible should be true by default")
	}

	// Check report defaults
	if !cfg.Report.RedundantAccessibility || !cfg.Report.UnusedImports || !cfg.Report.UnusedParameters {
		t.Error("every report category should be enabled by default")
	}

	// Check cache defaults
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be true by default")
	}
	if cfg.Cache.TTL != 24 {
		t.Errorf("Cache.TTL = %d, want 24", cfg.Cache.TTL)
	}

	// Check output defaults
	if cfg.Output.Format != "text" {
		t.Errorf("Output.Format = %s, want text", cfg.Output.Format)
	}
	if !cfg.Output.Color {
		t.Error("Output.Color should be true by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() error: %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "deadwood.toml")

	content := `
[index]
facts = ["build/index/**/*.json"]
workers = 4

[retain]
public = true
files = ["Tests/**"]
external_codable_protocols = ["APIModel"]

[report]
exclude = ["**/Generated/**"]

[cache]
enabled = false

[output]
format = "json"
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if len(cfg.Index.Facts) != 1 || cfg.Index.Facts[0] != "build/index/**/*.json" {
		t.Errorf("Index.Facts = %v", cfg.Index.Facts)
	}
	if cfg.Index.Workers != 4 {
		t.Errorf("Index.Workers = %d, want 4", cfg.Index.Workers)
	}
	if !cfg.Retain.Public {
		t.Error("Retain.Public should be true")
	}
	if len(cfg.Retain.ExternalCodableProtocols) != 1 {
		t.Errorf("Retain.ExternalCodableProtocols = %v", cfg.Retain.ExternalCodableProtocols)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be false")
	}
	if cfg.Output.Format != "json" {
		t.Errorf("Output.Format = %s, want json", cfg.Output.Format)
	}
	// Unset keys keep their defaults.
	if !cfg.Index.ValidateSchema {
		t.Error("Index.ValidateSchema should keep its default")
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "deadwood.yaml")

	content := `
retain:
  objc_annotated: true
  assign_only_property_types: ["CancellationToken"]

report:
  relative_to: /src

output:
  format: markdown
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if !cfg.Retain.ObjcAnnotated {
		t.Error("Retain.ObjcAnnotated should be true")
	}
	if len(cfg.Retain.AssignOnlyPropertyTypes) != 1 {
		t.Errorf("Retain.AssignOnlyPropertyTypes = %v", cfg.Retain.AssignOnlyPropertyTypes)
	}
	if cfg.Report.RelativeTo != "/src" {
		t.Errorf("Report.RelativeTo = %s, want /src", cfg.Report.RelativeTo)
	}
	if cfg.Output.Format != "markdown" {
		t.Errorf("Output.Format = %s, want markdown", cfg.Output.Format)
	}
}

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "deadwood.json")

	content := `{
  "matching": {
    "fallbacks": ["same_line"]
  },
  "output": {
    "format": "checkstyle"
  }
}`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if len(cfg.Matching.Fallbacks) != 1 || cfg.Matching.Fallbacks[0] != "same_line" {
		t.Errorf("Matching.Fallbacks = %v", cfg.Matching.Fallbacks)
	}
	if cfg.Output.Format != "checkstyle" {
		t.Errorf("Output.Format = %s, want checkstyle", cfg.Output.Format)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/deadwood.toml")
	if err == nil {
		t.Error("Load() should return error for non-existent file")
	}
}

func TestLoadInvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "deadwood.toml")

	// Invalid TOML
	content := `[index
invalid toml`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() should return error for invalid config")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "deadwood.toml")

	content := `
[index]
workers = -1

[output]
format = "html"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("Load() error = %v, want ErrInvalid", err)
	}
	for _, want := range []string{"index.workers", "output.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "every format", mutate: func(c *Config) { c.Output.Format = "github-actions" }},
		{name: "format is case insensitive", mutate: func(c *Config) { c.Output.Format = "JSON" }},
		{name: "negative workers", mutate: func(c *Config) { c.Index.Workers = -2 }, wantErr: "index.workers"},
		{name: "negative ttl", mutate: func(c *Config) { c.Cache.TTL = -1 }, wantErr: "cache.ttl"},
		{name: "unknown format", mutate: func(c *Config) { c.Output.Format = "xml" }, wantErr: "output.format"},
		{name: "unknown fallback", mutate: func(c *Config) { c.Matching.Fallbacks = []string{"fuzzy"} }, wantErr: "fuzzy"},
		{name: "bad glob", mutate: func(c *Config) { c.Report.Exclude = []string{"Sources/[a"} }, wantErr: "report.exclude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	result, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if result.Source != "" {
		t.Errorf("Source = %q, want empty", result.Source)
	}
	if result.Config.Output.Format != "text" {
		t.Errorf("Output.Format = %s, want default", result.Config.Output.Format)
	}
}

func TestLoadConfigSearchesStandardLocations(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, ".deadwood"), 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(tmpDir, ".deadwood", "deadwood.yml")
	if err := os.WriteFile(path, []byte("cache:\n  ttl: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Chdir(tmpDir)
	result, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if want := filepath.Join(".deadwood", "deadwood.yml"); result.Source != want {
		t.Errorf("Source = %q, want %q", result.Source, want)
	}
	if result.Config.Cache.TTL != 2 {
		t.Errorf("Cache.TTL = %d, want 2", result.Config.Cache.TTL)
	}
}

func TestLoadConfigExplicitPathMustExist(t *testing.T) {
	_, err := LoadConfig(WithPath(filepath.Join(t.TempDir(), "missing.toml")))
	if err == nil {
		t.Error("LoadConfig() should fail for a missing explicit path")
	}
}

func TestTOMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retain.Files = []string{"Tests/**"}

	data, err := cfg.TOML()
	if err != nil {
		t.Fatalf("TOML() error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "deadwood.toml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() of rendered config error: %v", err)
	}
	if len(loaded.Retain.Files) != 1 || loaded.Retain.Files[0] != "Tests/**" {
		t.Errorf("Retain.Files = %v", loaded.Retain.Files)
	}
	if loaded.Cache.Dir != cfg.Cache.Dir {
		t.Errorf("Cache.Dir = %s, want %s", loaded.Cache.Dir, cfg.Cache.Dir)
	}
}

func TestIsFactExcluded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Index.Exclude = []string{"**/Pods/**", "*.tmp.json"}

	tests := []struct {
		path string
		want bool
	}{
		{"facts/Pods/Alamofire/Session.json", true},
		{"scratch.tmp.json", true},
		{"facts/App/Model.json", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := cfg.IsFactExcluded(tt.path); got != tt.want {
				t.Errorf("IsFactExcluded(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
