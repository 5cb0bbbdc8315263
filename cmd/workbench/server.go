package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/starford/workbench/internal"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the read-only HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "HTTP port (overrides app.http.port)", Sources: cli.EnvVars("WORKBENCH_HTTP_PORT")},
			&cli.BoolFlag{Name: "watch", Value: true, Usage: "Keep the index current and stream changes at /api/events"},
		},
		Action: action(func(ctx context.Context, cmd *cli.Command, e *env) error {
			if port := int(cmd.Int("port")); port > 0 {
				e.cfg.App.HTTP.Port = port
				if err := e.cfg.App.HTTP.Validate(); err != nil {
					return err
				}
			}
			return internal.Run(ctx,
				internal.WithConfig(e.cfg),
				internal.WithRoot(e.root),
				internal.WithVersion(version),
				internal.WithWatch(cmd.Bool("watch")),
			)
		}),
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve work item tools to agents over MCP stdio",
		Action: action(func(ctx context.Context, _ *cli.Command, e *env) error {
			return internal.RunMCP(ctx,
				internal.WithConfig(e.cfg),
				internal.WithRoot(e.root),
				internal.WithVersion(version),
			)
		}),
	}
}
