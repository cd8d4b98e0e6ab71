package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the effective configuration",
				Description: `Shows the merged configuration from defaults and config file.

Examples:
  deadwood config show                  # Show effective config
  deadwood -c deadwood.yml config show  # Show config from specific file`,
				Action: runConfigShowCmd,
			},
			{
				Name:   "validate",
				Usage:  "Validate a configuration file",
				Action: runConfigValidateCmd,
			},
		},
	}
}

func runConfigShowCmd(c *cli.Context) error {
	result, err := loadConfig(c)
	if err != nil {
		return err
	}

	w := outWriter(c)
	if result.Source != "" {
		fmt.Fprintf(w, "# Configuration from: %s\n\n", result.Source)
	} else {
		fmt.Fprintln(w, "# Default configuration (no config file found)")
	}

	content, err := result.Config.TOML()
	if err != nil {
		return err
	}
	_, err = w.Write(content)
	return err
}

func runConfigValidateCmd(c *cli.Context) error {
	result, err := loadConfig(c)
	if err != nil {
		return err
	}

	if result.Source != "" {
		status(c).Success("Configuration valid: %s", result.Source)
	} else {
		status(c).Warning("No config file found. Default configuration is valid.")
	}
	return nil
}
