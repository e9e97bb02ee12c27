package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/capy-arena/game/config"
)

var ErrInvalidConfigFiles = errors.New("some configuration files are invalid")

// CheckResult captures the outcome of checking a single config file.
type CheckResult struct {
	File     string
	Valid    bool
	Problems []string
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "check or create relay config files",
		Commands: []*cli.Command{
			{
				Name:      "check",
				Usage:     "validate YAML or JSON config files",
				ArgsUsage: "FILE...",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() == 0 {
						return errors.New("at least one config file is required")
					}
					return checkConfigs(cmd.Root().Writer, cmd.Args().Slice())
				},
			},
			{
				Name:      "init",
				Usage:     "write the default configuration to FILE",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := cmd.Args().First()
					if path == "" {
						return errors.New("a target file is required")
					}
					if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
						return fmt.Errorf("%s already exists (use --force to overwrite)", path)
					}
					if err := config.Default().Save(path); err != nil {
						return err
					}
					fmt.Fprintf(cmd.Root().Writer, "Wrote default configuration to %s\n", path)
					return nil
				},
			},
		},
	}
}

func checkConfig(path string) CheckResult {
	result := CheckResult{File: path, Valid: true}

	cfg, err := config.Load(path)
	if err != nil {
		result.Valid = false
		result.Problems = append(result.Problems, err.Error())
		return result
	}

	for _, problem := range cfg.Problems() {
		result.Valid = false
		result.Problems = append(result.Problems, problem.Error())
	}
	return result
}

// checkConfigs prints a report for every file and fails if any is invalid.
func checkConfigs(w io.Writer, paths []string) error {
	allValid := true
	for _, path := range paths {
		result := checkConfig(path)

		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)
		if result.Valid {
			fmt.Fprintln(w, "VALID")
			continue
		}

		allValid = false
		fmt.Fprintln(w, "INVALID")
		for _, problem := range result.Problems {
			fmt.Fprintln(w, "  - "+problem)
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if !allValid {
		fmt.Fprintln(w, "Some configurations have errors")
		return ErrInvalidConfigFiles
	}
	fmt.Fprintln(w, "All configurations are valid")
	return nil
}
