package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/deadwood/internal/output"
	"github.com/panbanda/deadwood/pkg/config"
)

// flagSet reports whether a boolean flag is set on the command or any parent,
// so --verbose works before and after the command name.
func flagSet(c *cli.Context, name string) bool {
	for _, ctx := range c.Lineage() {
		if ctx.Bool(name) {
			return true
		}
	}
	return false
}

// loadConfig loads --config, or the first config file in the standard
// locations, or the defaults.
func loadConfig(c *cli.Context) (*config.LoadResult, error) {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	res, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return res, nil
}

// newLogger writes structured logs to w. Verbose lowers the level to debug;
// quiet raises it to error and wins over verbose.
func newLogger(w io.Writer, verbose, quiet bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func errWriter(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

func outWriter(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

// status prints status lines on stderr, or discards them under --quiet.
func status(c *cli.Context) *output.Formatter {
	if flagSet(c, "quiet") {
		return output.NewWriterFormatter(output.FormatText, io.Discard, false)
	}
	return problems(c)
}

// problems prints error lines on stderr regardless of --quiet.
func problems(c *cli.Context) *output.Formatter {
	return output.NewWriterFormatter(output.FormatText, errWriter(c), !color.NoColor)
}
