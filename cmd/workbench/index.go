package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/starford/workbench/internal"
	"github.com/starford/workbench/internal/index"
)

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Maintain and query the local search index",
		Commands: []*cli.Command{
			{
				Name:  "rebuild",
				Usage: "Bring the index up to date with the repository",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "reset", Usage: "Delete the index file first"},
				},
				Action: action(indexRebuild),
			},
			{
				Name:      "search",
				Usage:     "Full-text search through items and docs",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum results"},
				},
				Action: action(indexSearch),
			},
			{
				Name:   "watch",
				Usage:  "Keep the index current until interrupted",
				Action: action(indexWatch),
			},
		},
	}
}

func openIndex(e *env) (*index.DB, error) {
	db, err := internal.OpenIndex(e.cfg, e.root)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, fmt.Errorf("index is disabled: set index.path in %s", internal.DefaultConfigFile)
	}
	return db, nil
}

func indexRebuild(_ context.Context, cmd *cli.Command, e *env) error {
	if cmd.Bool("reset") && e.cfg.Index.Path != "" {
		p := e.cfg.Index.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(e.root, filepath.FromSlash(p))
		}
		for _, f := range []string{p, p + "-wal", p + "-shm"} {
			if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	db, err := openIndex(e)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := index.Sync(db, e.store, e.logger)
	if err != nil {
		return err
	}
	return e.out.Emit(stats, func() {
		e.out.Success("indexed %d, unchanged %d, removed %d, failed %d",
			stats.Indexed, stats.Unchanged, stats.Removed, stats.Failed)
	})
}

func indexSearch(_ context.Context, cmd *cli.Command, e *env) error {
	if err := requireArgs(cmd, 1); err != nil {
		return err
	}
	db, err := openIndex(e)
	if err != nil {
		return err
	}
	defer db.Close()
	if _, err := index.Sync(db, e.store, e.logger); err != nil {
		return err
	}

	results, err := db.Search(cmd.Args().First(), int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	return e.out.Emit(results, func() {
		if len(results) == 0 {
			e.out.Line("no matches")
			return
		}
		for _, r := range results {
			label := r.Path
			if r.ID != "" {
				label = r.ID + " " + r.Path
			}
			e.out.Line("%s  %s", label, r.Title)
			if r.Snippet != "" {
				e.out.Line("    %s", r.Snippet)
			}
		}
	})
}

func indexWatch(ctx context.Context, _ *cli.Command, e *env) error {
	db, err := openIndex(e)
	if err != nil {
		return err
	}
	defer db.Close()
	if _, err := index.Sync(db, e.store, e.logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return index.Watch(ctx, db, e.store, e.store.Root(), e.logger, func(kind, path string) {
		e.out.Line("%s %s", kind, path)
	})
}
