package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

func docCommand() *cli.Command {
	return &cli.Command{
		Name:  "doc",
		Usage: "Maintain related links and locations of docs",
		Commands: []*cli.Command{
			linkCommand("link", "Add a related link to a doc", "<path> <link>", false),
			linkCommand("unlink", "Remove a related link from a doc", "<path> <link>", true),
			{
				Name:      "move",
				Usage:     "Move a doc and update every link to it",
				ArgsUsage: "<path> <new-path>",
				Flags:     []cli.Flag{dryRunFlag()},
				Action: action(func(_ context.Context, cmd *cli.Command, e *env) error {
					if err := requireArgs(cmd, 2); err != nil {
						return err
					}
					res, err := e.svc.MoveDocument(cmd.Args().Get(0), cmd.Args().Get(1), cmd.Bool("dry-run"))
					if err != nil {
						return err
					}
					return emitMove(e, res)
				}),
			},
			{
				Name:  "normalize",
				Usage: "Normalize the related lists of every doc",
				Flags: []cli.Flag{dryRunFlag()},
				Action: action(func(_ context.Context, cmd *cli.Command, e *env) error {
					changes, err := e.svc.NormalizeDocs(cmd.Bool("dry-run"))
					if err != nil {
						return err
					}
					return emitChanges(e, changes, cmd.Bool("dry-run"))
				}),
			},
		},
	}
}
