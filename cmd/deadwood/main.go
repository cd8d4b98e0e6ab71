package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp().RunContext(ctx, os.Args)
	stop()
	if err == nil {
		return
	}

	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		if msg := exitErr.Error(); msg != "" {
			color.Red("%s", msg)
		}
		os.Exit(exitErr.ExitCode())
	}
	color.Red("Error: %v", err)
	os.Exit(1)
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "deadwood",
		Usage:   "Whole-program dead code detection from compiler index facts",
		Version: version,
		Description: `Deadwood reads the index facts your compiler emits for a Swift project,
builds a whole-program declaration graph and reports what nothing reaches:
unused declarations, assign-only properties, redundant protocols and
accessibility, unused parameters and unused imports.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"DEADWOOD_CONFIG"},
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
		},
		// Exit codes are handled in main so commands stay testable.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			scanCmd(),
			validateCmd(),
			initCmd(),
			configCmd(),
		},
	}
}
