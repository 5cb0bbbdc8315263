package main

import (
	"context"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/starford/workbench/internal/git"
	"github.com/starford/workbench/internal/github"
)

func doctorCommand() *cli.Command {
	return &cli.Command{
		Name:   "doctor",
		Usage:  "Check git, the GitHub repository and token, and the work item directories",
		Action: action(doctor),
	}
}

type doctorReport struct {
	Root       string            `json:"root"`
	Git        github.AuthStatus `json:"git"`
	GitVersion string            `json:"gitVersion,omitempty"`
	Repository string            `json:"repository,omitempty"`
	GitHub     github.AuthStatus `json:"github"`
	Items      int               `json:"items"`
	Docs       int               `json:"docs"`
	Index      string            `json:"index"`
}

func doctor(ctx context.Context, _ *cli.Command, e *env) error {
	rep := doctorReport{Root: e.root, Git: github.AuthStatus{Status: github.AuthOK}, Index: "disabled"}

	if v, ok := git.Available(ctx); ok {
		rep.GitVersion = v
	} else {
		rep.Git = github.AuthStatus{Status: github.AuthWarn, Reason: "git is not installed; branch creation is unavailable."}
	}

	repo := e.githubRepo(ctx)
	if repo.IsZero() {
		rep.GitHub = github.AuthStatus{Status: github.AuthSkip, Reason: "No GitHub repository: no GitHub remote and github.owner/repository unset."}
	} else {
		rep.Repository = repo.Display()
		rep.GitHub = e.tracker().CheckAuth(ctx, repo)
	}

	items, err := e.svc.ListItems(true)
	if err != nil {
		return err
	}
	rep.Items = len(items)
	docs, err := e.svc.ListDocs()
	if err != nil {
		return err
	}
	rep.Docs = len(docs)
	if p := e.cfg.Index.Path; p != "" {
		rep.Index = filepath.ToSlash(p)
	}

	return e.out.Emit(rep, func() {
		e.out.Line("repository root: %s", rep.Root)
		gitName := "git"
		if rep.GitVersion != "" {
			gitName = rep.GitVersion
		}
		e.out.Auth(gitName, rep.Git)
		githubName := "github"
		if rep.Repository != "" {
			githubName = "github " + rep.Repository
		}
		e.out.Auth(githubName, rep.GitHub)
		e.out.Line("work items: %d, docs: %d, index: %s", rep.Items, rep.Docs, rep.Index)
	})
}
