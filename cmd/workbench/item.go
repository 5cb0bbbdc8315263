package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/workbench/internal/document"
	"github.com/starford/workbench/internal/itemservice"
	"github.com/starford/workbench/internal/links"
	"github.com/starford/workbench/internal/models"
)

func dryRunFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "Show what would change without writing",
	}
}

func itemCommand() *cli.Command {
	return &cli.Command{
		Name:  "item",
		Usage: "Create, update and sync work items",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List work items",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Include items in the done directory"},
					&cli.StringFlag{Name: "status", Usage: "Only items with this status"},
					&cli.StringFlag{Name: "type", Usage: "Only items of this type"},
				},
				Action: action(itemList),
			},
			{
				Name:      "show",
				Usage:     "Print a work item",
				ArgsUsage: "<id>",
				Action:    action(itemShow),
			},
			{
				Name:      "new",
				Usage:     "Create a work item from the repository template",
				ArgsUsage: "<title>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Value: models.TypeTask, Usage: "task, bug or spike"},
					&cli.StringFlag{Name: "status", Usage: "Initial status"},
					&cli.StringFlag{Name: "priority", Usage: "Priority"},
					&cli.StringFlag{Name: "owner", Usage: "Owner"},
				},
				Action: action(itemNew),
			},
			{
				Name:      "status",
				Usage:     "Set a work item's status",
				ArgsUsage: "<id> <status>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "note", Aliases: []string{"n"}, Usage: "Note appended to the Notes section"},
				},
				Action: action(itemStatus),
			},
			{
				Name:      "close",
				Usage:     "Mark a work item done",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "move", Usage: "Move the file to the done directory"},
				},
				Action: action(itemClose),
			},
			{
				Name:      "move",
				Usage:     "Move a work item and update every link to it",
				ArgsUsage: "<id> <destination>",
				Flags:     []cli.Flag{dryRunFlag()},
				Action:    action(itemMove),
			},
			{
				Name:      "rename",
				Usage:     "Change a work item's title and file name",
				ArgsUsage: "<id> <title>",
				Flags:     []cli.Flag{dryRunFlag()},
				Action:    action(itemRename),
			},
			linkCommand("link", "Add a related link to a work item", "<id> <link>", false),
			linkCommand("unlink", "Remove a related link from a work item", "<id> <link>", true),
			{
				Name:  "normalize",
				Usage: "Normalize tags and related lists of every work item",
				Flags: []cli.Flag{
					dryRunFlag(),
					&cli.BoolFlag{Name: "include-done", Usage: "Include items in the done directory"},
				},
				Action: action(func(_ context.Context, cmd *cli.Command, e *env) error {
					changes, err := e.svc.NormalizeItems(cmd.Bool("include-done"), cmd.Bool("dry-run"))
					if err != nil {
						return err
					}
					return emitChanges(e, changes, cmd.Bool("dry-run"))
				}),
			},
			syncCommand(),
			importCommand(),
			prCommand(),
		},
	}
}

func itemList(_ context.Context, cmd *cli.Command, e *env) error {
	docs, err := e.svc.ListItems(cmd.Bool("all"))
	if err != nil {
		return err
	}
	status, typ := cmd.String("status"), cmd.String("type")
	filtered := make([]*models.Document, 0, len(docs))
	for _, d := range docs {
		if (status != "" && d.Status != status) || (typ != "" && d.Type != typ) {
			continue
		}
		filtered = append(filtered, d)
	}
	return e.out.Emit(filtered, func() { e.out.Items(filtered) })
}

func itemShow(_ context.Context, cmd *cli.Command, e *env) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	doc, err := e.svc.Resolve(cmd.Args().First())
	if err != nil {
		return err
	}
	return e.out.Emit(doc, func() {
		_, _ = os.Stdout.Write(document.Render(doc))
	})
}

func itemNew(_ context.Context, cmd *cli.Command, e *env) error {
	title := strings.Join(cmd.Args().Slice(), " ")
	doc, err := e.svc.CreateItem(itemservice.NewItem{
		Type:     cmd.String("type"),
		Title:    title,
		Status:   cmd.String("status"),
		Priority: cmd.String("priority"),
		Owner:    cmd.String("owner"),
	})
	if err != nil {
		return err
	}
	return e.out.Emit(doc, func() { e.out.Success("created %s: %s", doc.ID, doc.Path) })
}

func itemStatus(_ context.Context, cmd *cli.Command, e *env) error {
	if err := requireArgs(cmd, 2); err != nil {
		return err
	}
	doc, err := e.svc.UpdateStatus(cmd.Args().Get(0), cmd.Args().Get(1), cmd.String("note"))
	if err != nil {
		return err
	}
	return e.out.Emit(doc, func() { e.out.Success("%s: %s", doc.ID, doc.Status) })
}

func itemClose(_ context.Context, cmd *cli.Command, e *env) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	doc, moved, err := e.svc.Close(cmd.Args().First(), cmd.Bool("move"))
	if err != nil {
		return err
	}
	return e.out.Emit(map[string]any{"item": doc, "move": moved}, func() {
		e.out.Success("%s: %s", doc.ID, doc.Status)
		if moved != nil {
			e.out.Line("moved %s -> %s", moved.From, moved.To)
			e.out.Changes(moved.Changes, false)
		}
	})
}

func itemMove(_ context.Context, cmd *cli.Command, e *env) error {
	if err := requireArgs(cmd, 2); err != nil {
		return err
	}
	res, err := e.svc.Move(cmd.Args().Get(0), cmd.Args().Get(1), cmd.Bool("dry-run"))
	if err != nil {
		return err
	}
	return emitMove(e, res)
}

func itemRename(_ context.Context, cmd *cli.Command, e *env) error {
	if err := requireArgs(cmd, 2); err != nil {
		return err
	}
	title := strings.Join(cmd.Args().Slice()[1:], " ")
	doc, res, err := e.svc.Rename(cmd.Args().First(), title, cmd.Bool("dry-run"))
	if err != nil {
		return err
	}
	return e.out.Emit(map[string]any{"item": doc, "move": res}, func() {
		if !res.DryRun {
			e.out.Success("%s: %s", doc.ID, doc.Title)
		}
		printMove(e, res)
	})
}

// linkCommand builds the link/unlink commands for items and docs.
func linkCommand(name, usage, argsUsage string, remove bool) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: argsUsage,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "type",
				Aliases:  []string{"t"},
				Usage:    "Related list: " + strings.Join(models.RelatedKeys, ", "),
				Required: true,
			},
		},
		Action: action(func(_ context.Context, cmd *cli.Command, e *env) error {
			if err := requireArgs(cmd, 2); err != nil {
				return err
			}
			key := cmd.String("type")
			doc, changed, err := e.svc.UpdateLink(cmd.Args().Get(0), key, cmd.Args().Get(1), remove)
			if err != nil {
				return err
			}
			list := doc.Related.List(key)
			return e.out.Emit(map[string]any{"path": doc.Path, "changed": changed, key: *list}, func() {
				if !changed {
					e.out.Line("unchanged: %s", doc.Path)
					return
				}
				e.out.Success("updated %s", doc.Path)
			})
		}),
	}
}

func emitChanges(e *env, changes []links.FileChange, dryRun bool) error {
	paths := make([]string, 0, len(changes))
	for _, c := range changes {
		paths = append(paths, c.Path)
	}
	return e.out.Emit(map[string]any{"changed": paths, "dryRun": dryRun}, func() {
		e.out.Changes(changes, dryRun)
	})
}

func emitMove(e *env, res *itemservice.MoveResult) error {
	return e.out.Emit(res, func() { printMove(e, res) })
}

func printMove(e *env, res *itemservice.MoveResult) {
	verb := "moved"
	if res.DryRun {
		verb = "would move"
	}
	e.out.Line("%s %s -> %s", verb, res.From, res.To)
	e.out.Changes(res.Changes, res.DryRun)
}

// errorf is fmt.Errorf prefixed with the command name.
func errorf(cmd *cli.Command, format string, args ...any) error {
	return fmt.Errorf(cmd.Name+": "+format, args...)
}
