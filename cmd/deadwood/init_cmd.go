package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/deadwood/pkg/config"
)

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create a deadwood.toml with the default settings",
		Description: `Creates a new deadwood.toml configuration file in the current directory
with sensible defaults. Use --output to specify a different location.

Examples:
  deadwood init                            # Creates deadwood.toml
  deadwood init -o .deadwood/deadwood.toml # Creates config in .deadwood directory
  deadwood init --force                    # Overwrite existing config file`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "deadwood.toml",
				Usage:   "Output file path",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite existing config file",
			},
		},
		Action: runInitCmd,
	}
}

func runInitCmd(c *cli.Context) error {
	outputPath := c.String("output")

	if _, err := os.Stat(outputPath); err == nil && !c.Bool("force") {
		return fmt.Errorf("config file %q already exists (use --force to overwrite)", outputPath)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}

	content, err := generateDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	status(c).Success("Created %s", outputPath)
	return nil
}

func generateDefaultConfig() (string, error) {
	content, err := config.DefaultConfig().TOML()
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	buf.WriteString("# Deadwood configuration\n")
	buf.WriteString("# Fact units are discovered with index.facts; findings are scoped with report.include/exclude.\n\n")
	buf.Write(content)
	return buf.String(), nil
}
