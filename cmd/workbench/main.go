package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

var version = "dev"

// errConflicts makes the process exit with status 2.
var errConflicts = errors.New("sync conflicts need an explicit preference")

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "workbench",
		Usage:   "Manage Markdown work items and docs, and keep them in sync with GitHub issues",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "repo",
				Aliases: []string{"C"},
				Usage:   "Repository root (default: enclosing git work tree)",
				Sources: cli.EnvVars("WORKBENCH_REPO"),
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: ".workbench/config.yaml",
				Sources:     cli.EnvVars("WORKBENCH_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Sources: cli.EnvVars("WORKBENCH_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "github-token",
				Usage:   "GitHub token (overrides github.token)",
				Sources: cli.EnvVars("WORKBENCH_GITHUB_TOKEN", "GITHUB_TOKEN"),
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print results as JSON",
			},
		},
		Commands: []*cli.Command{
			itemCommand(),
			docCommand(),
			indexCommand(),
			doctorCommand(),
			serveCommand(),
			mcpCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, errConflicts) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
