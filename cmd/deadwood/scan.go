package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/deadwood/internal/baseline"
	"github.com/panbanda/deadwood/internal/cache"
	"github.com/panbanda/deadwood/internal/output"
	"github.com/panbanda/deadwood/internal/report"
	"github.com/panbanda/deadwood/pkg/config"
	"github.com/panbanda/deadwood/pkg/scan"
	"github.com/panbanda/deadwood/pkg/watch"
)

func scanCmd() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Report unused code",
		ArgsUsage: "[facts-glob...]",
		Description: `Scans the fact units matched by the given globs, or by index.facts
when none are given, and reports every finding.

Examples:
  deadwood scan
  deadwood scan '.build/facts/**/*.json' -f json -o deadwood.json
  deadwood scan --write-baseline .deadwood/baseline.json
  deadwood scan --baseline .deadwood/baseline.json --strict`,
		Flags:  scanFlags(),
		Action: runScanCmd,
	}
}

func scanFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, markdown, json, toon, yaml, checkstyle, github-actions",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write output to file",
		},
		&cli.StringFlag{
			Name:  "html",
			Usage: "Also write a standalone HTML report to this file",
		},
		&cli.StringFlag{
			Name:  "baseline",
			Usage: "Suppress findings recorded in this baseline file",
		},
		&cli.StringFlag{
			Name:  "write-baseline",
			Usage: "Record every finding to this baseline file",
		},
		&cli.BoolFlag{
			Name:  "retain-public",
			Usage: "Treat public and open declarations as used",
		},
		&cli.BoolFlag{
			Name:  "strict",
			Usage: "Exit with status 1 when findings remain",
		},
		&cli.BoolFlag{
			Name:  "no-cache",
			Usage: "Disable the result cache",
		},
		&cli.BoolFlag{
			Name:  "clear-cache",
			Usage: "Drop cached results before scanning",
		},
		&cli.BoolFlag{
			Name:  "watch",
			Usage: "Rescan whenever fact units change",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Ingestion workers (0 = 2x NumCPU)",
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Only log errors and hide progress",
		},
	}
}

// applyScanFlags layers command-line overrides onto the loaded config.
func applyScanFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.IsSet("workers") {
		cfg.Index.Workers = c.Int("workers")
	}
	if c.Bool("retain-public") {
		cfg.Retain.Public = true
	}
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	if flagSet(c, "verbose") {
		cfg.Output.Verbose = true
	}
}

func runScanCmd(c *cli.Context) error {
	loaded, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg := loaded.Config
	applyScanFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	quiet := flagSet(c, "quiet")
	logger := newLogger(errWriter(c), cfg.Output.Verbose, quiet)
	if loaded.Source != "" {
		logger.Debug("loaded config", slog.String("path", loaded.Source))
	}

	opts := []scan.Option{scan.WithLogger(logger), scan.WithVersion(version)}
	format := output.ParseFormat(cfg.Output.Format)
	if !quiet && format == output.FormatText {
		opts = append(opts, scan.WithProgress(errWriter(c)))
	}
	if cfg.Cache.Enabled {
		resultCache, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, true)
		if err != nil {
			logger.Warn("result cache unavailable", slog.String("error", err.Error()))
		} else {
			if c.Bool("clear-cache") {
				if err := resultCache.Clear(); err != nil {
					return fmt.Errorf("failed to clear cache: %w", err)
				}
				logger.Debug("cleared result cache", slog.String("dir", cfg.Cache.Dir))
			}
			opts = append(opts, scan.WithCache(resultCache))
		}
	}
	scanner := scan.New(cfg, opts...)
	patterns := c.Args().Slice()

	if c.Bool("watch") {
		return watchScan(c, scanner, cfg, patterns, logger)
	}
	return scanOnce(c, scanner, cfg, patterns, logger)
}

func scanOnce(c *cli.Context, scanner *scan.Scanner, cfg *config.Config, patterns []string, logger *slog.Logger) error {
	result, err := scanner.Run(c.Context, ".", patterns)
	if err != nil {
		return err
	}
	findings := result.Report
	logger.Debug("scanned fact units",
		slog.Int("units", len(result.Units)),
		slog.Int("dangling", result.Stats.Dangling),
		slog.Bool("cached", result.Cached))

	if path := c.String("write-baseline"); path != "" {
		b := baseline.FromReport(findings)
		if err := b.Save(path); err != nil {
			return fmt.Errorf("failed to write baseline: %w", err)
		}
		status(c).Success("Recorded %d findings in %s", b.Len(), path)
	}
	if path := c.String("baseline"); path != "" {
		b, err := baseline.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load baseline: %w", err)
		}
		before := findings.Summary.Total()
		findings = b.Filter(findings)
		logger.Debug("applied baseline",
			slog.String("path", path),
			slog.Int("suppressed", before-findings.Summary.Total()))
	}

	if path := c.String("html"); path != "" {
		renderer, err := report.NewRenderer()
		if err != nil {
			return fmt.Errorf("failed to load HTML template: %w", err)
		}
		meta := report.Metadata{Version: version, GeneratedAt: time.Now(), Units: len(result.Units)}
		if err := renderer.RenderToFile(findings, meta, path); err != nil {
			return fmt.Errorf("failed to write HTML report: %w", err)
		}
		status(c).Success("HTML report written to %s", path)
	}

	formatter, err := output.NewFormatter(output.ParseFormat(cfg.Output.Format), c.String("output"), cfg.Output.Color && !color.NoColor)
	if err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}
	defer formatter.Close()

	if err := formatter.Output(output.NewScanReport(findings)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if path := c.String("output"); path != "" {
		status(c).Success("Report written to %s", path)
	}

	if c.Bool("strict") && !findings.Empty() {
		return cli.Exit(fmt.Sprintf("%d findings (strict mode)", findings.Summary.Total()), 1)
	}
	return nil
}

func watchScan(c *cli.Context, scanner *scan.Scanner, cfg *config.Config, patterns []string, logger *slog.Logger) error {
	rescan := func() {
		var exitErr cli.ExitCoder
		if err := scanOnce(c, scanner, cfg, patterns, logger); err != nil && !errors.As(err, &exitErr) {
			problems(c).Error("%v", err)
		}
	}

	w, err := watch.NewWatcher(".", cfg, patterns, 0)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()
	w.SetOutput(errWriter(c))
	w.SetCallback(func([]string) { rescan() })
	status(c).Info("Watching %d directories for fact unit changes", len(w.WatchedDirs()))

	rescan()
	if err := w.Start(c.Context); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
