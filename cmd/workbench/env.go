package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/workbench/internal"
	"github.com/starford/workbench/internal/git"
	"github.com/starford/workbench/internal/github"
	"github.com/starford/workbench/internal/issuesync"
	"github.com/starford/workbench/internal/itemservice"
	"github.com/starford/workbench/internal/report"
	"github.com/starford/workbench/internal/storage"
	pkgconfig "github.com/starford/workbench/pkg/config"
)

// env is everything a command needs, built from the global flags.
type env struct {
	root   string
	cfg    *internal.Config
	logger *slog.Logger
	store  *storage.FS
	svc    *itemservice.Service
	out    *report.Printer
	git    *git.Repo
}

func loadEnv(ctx context.Context, cmd *cli.Command) (*env, error) {
	root, err := repoRoot(cmd.String("repo"))
	if err != nil {
		return nil, err
	}

	cfg := internal.NewDefaultConfig()
	configPath := cmd.String("config")
	if configPath == "" {
		configPath = filepath.Join(root, filepath.FromSlash(internal.DefaultConfigFile))
	}
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		if err := cfg.App.LogLevel.UnmarshalText([]byte(lvl)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", lvl, err)
		}
	}
	if token := cmd.String("github-token"); token != "" {
		cfg.GitHub.Token = token
	}

	logger := internal.NewLogger(os.Stderr, cfg.App.LogLevel, false)
	slog.SetDefault(logger)

	store, err := storage.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	logger.Debug("environment loaded", slog.String("root", root), slog.String("config", configPath))

	return &env{
		root:   root,
		cfg:    cfg,
		logger: logger,
		store:  store,
		svc:    itemservice.NewService(store, cfg.ItemServiceConfig(logger)),
		out:    report.New(os.Stdout, cmd.Bool("json")),
		git:    git.New(root, cfg.Git.Remote),
	}, nil
}

// repoRoot returns flagValue, or the enclosing git work tree, or the working
// directory.
func repoRoot(flagValue string) (string, error) {
	if flagValue != "" {
		return filepath.Abs(flagValue)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for dir := wd; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}
		if filepath.Dir(dir) == dir {
			return wd, nil
		}
	}
}

// githubRepo resolves the repository from the git remote, falling back to
// the configured owner and repository.
func (e *env) githubRepo(ctx context.Context) github.RepoRef {
	if remote := e.git.RemoteURL(ctx); remote != "" {
		if repo, ok := github.ParseRepoURL(remote); ok {
			return repo
		}
		e.logger.Debug("remote is not a GitHub repository", slog.String("remote", remote))
	}
	return github.RepoRef{Host: e.cfg.GitHub.Host, Owner: e.cfg.GitHub.Owner, Repo: e.cfg.GitHub.Repository}
}

func (e *env) tracker() *github.Client {
	client := github.NewClient(e.cfg.GitHub.Token)
	if e.cfg.GitHub.APIURL != "" {
		client = client.WithBaseURL(e.cfg.GitHub.APIURL)
	}
	return client
}

func (e *env) engine(ctx context.Context) *issuesync.Engine {
	return issuesync.New(e.tracker(), e.git, e.svc, issuesync.Config{
		Repo:       e.githubRepo(ctx),
		BaseBranch: e.cfg.Git.DefaultBaseBranch,
		Logger:     e.logger,
	})
}

// action adapts a command body that needs an env.
func action(fn func(ctx context.Context, cmd *cli.Command, e *env) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		e, err := loadEnv(ctx, cmd)
		if err != nil {
			return err
		}
		return fn(ctx, cmd, e)
	}
}

// requireArgs checks the positional argument count.
func requireArgs(cmd *cli.Command, n int) error {
	if cmd.NArg() < n {
		return fmt.Errorf("%s: expected %d argument(s): %s", cmd.FullName(), n, strings.TrimSpace(cmd.ArgsUsage))
	}
	return nil
}
