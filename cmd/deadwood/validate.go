package main

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/deadwood/internal/fileproc"
	"github.com/panbanda/deadwood/pkg/index"
	"github.com/panbanda/deadwood/pkg/scan"
)

func validateCmd() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Check fact units against the unit schema",
		ArgsUsage: "[facts-glob...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "print-schema",
				Usage: "Print the fact unit JSON schema and exit",
			},
		},
		Action: runValidateCmd,
	}
}

func runValidateCmd(c *cli.Context) error {
	if c.Bool("print-schema") {
		_, err := fmt.Fprintln(outWriter(c), string(index.UnitSchema()))
		return err
	}

	loaded, err := loadConfig(c)
	if err != nil {
		return err
	}
	cfg := loaded.Config

	units, err := scan.New(cfg).Discover(".", c.Args().Slice())
	if err != nil {
		return err
	}

	_, errs := fileproc.ForEachFileCollectErrors(c.Context, units, fileproc.Options{Workers: cfg.Index.Workers},
		func(_ context.Context, path string) (*index.Unit, error) {
			return index.LoadUnit(path, true)
		})
	if errs != nil {
		slices.SortFunc(errs.Errors, func(a, b fileproc.ProcessingError) int {
			return strings.Compare(a.Path, b.Path)
		})
		for _, e := range errs.Errors {
			problems(c).Error("%s", e.Error())
		}
		return cli.Exit(fmt.Sprintf("%d of %d fact units are invalid", len(errs.Errors), len(units)), 1)
	}

	status(c).Success("%d fact units are valid", len(units))
	return nil
}
