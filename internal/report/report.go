// Package report renders command results for humans (coloured text) or
// machines (JSON).
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/starford/workbench/internal/github"
	"github.com/starford/workbench/internal/issuesync"
	"github.com/starford/workbench/internal/links"
	"github.com/starford/workbench/internal/models"
)

// Printer writes results to one stream.
type Printer struct {
	out  io.Writer
	json bool

	green, red, yellow, cyan, faint *color.Color
}

// New returns a printer for w. Colours are used only when w is a terminal
// and NO_COLOR is unset.
func New(w io.Writer, jsonMode bool) *Printer {
	colored := false
	if f, ok := w.(*os.File); ok && !color.NoColor {
		colored = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	p := &Printer{
		out:    w,
		json:   jsonMode,
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		cyan:   color.New(color.FgCyan, color.Bold),
		faint:  color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.green, p.red, p.yellow, p.cyan, p.faint} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// JSONMode reports whether the printer emits JSON.
func (p *Printer) JSONMode() bool {
	return p.json
}

// JSON writes v as indented JSON.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Emit writes v as JSON in JSON mode and calls text otherwise.
func (p *Printer) Emit(v any, text func()) error {
	if p.json {
		return p.JSON(v)
	}
	text()
	return nil
}

// Line writes one plain line.
func (p *Printer) Line(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Success writes a line prefixed with a green check mark.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", p.green.Sprint("✓"), fmt.Sprintf(format, args...))
}

// Warn writes a yellow warning line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", p.yellow.Sprint("!"), fmt.Sprintf(format, args...))
}

// Error writes a red error line.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", p.red.Sprint("✗"), fmt.Sprintf(format, args...))
}

// Items writes a table of work items.
func (p *Printer) Items(docs []*models.Document) {
	if len(docs) == 0 {
		p.Line("no work items")
		return
	}
	tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTYPE\tTITLE")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, p.status(d.Status), d.Type, d.Title)
	}
	tw.Flush()
}

func (p *Printer) status(s string) string {
	switch s {
	case models.StatusDone:
		return p.green.Sprint(s)
	case models.StatusBlocked:
		return p.red.Sprint(s)
	case models.StatusInProgress:
		return p.yellow.Sprint(s)
	}
	return s
}

// Changes lists changed files. On dry runs each file is followed by a line
// diff of its content.
func (p *Printer) Changes(changes []links.FileChange, dryRun bool) {
	verb := "updated"
	if dryRun {
		verb = "would update"
	}
	if len(changes) == 0 {
		p.Line("no changes")
		return
	}
	for _, c := range changes {
		p.Line("%s %s", verb, p.cyan.Sprint(c.Path))
		if dryRun {
			p.Diff(c.Before, c.After)
		}
	}
}

// Diff writes the changed lines between before and after with one line of
// context around each change.
func (p *Printer) Diff(before, after string) {
	lines := DiffLines(before, after)
	for i, l := range lines {
		if l.Op == OpEqual && !nearChange(lines, i) {
			continue
		}
		switch l.Op {
		case OpInsert:
			p.Line("%s", p.green.Sprint("+ "+l.Text))
		case OpDelete:
			p.Line("%s", p.red.Sprint("- "+l.Text))
		default:
			p.Line("%s", p.faint.Sprint("  "+l.Text))
		}
	}
}

func nearChange(lines []DiffLine, i int) bool {
	for _, j := range []int{i - 1, i + 1} {
		if j >= 0 && j < len(lines) && lines[j].Op != OpEqual {
			return true
		}
	}
	return false
}

// SyncResult writes the outcome of an issue sync run.
func (p *Printer) SyncResult(res *issuesync.Result) {
	prefix := ""
	if res.DryRun {
		prefix = "[dry-run] "
	}
	for _, e := range res.Imported {
		if e.ItemID == "" {
			p.Line("%swould import %s#%d %s", prefix, e.Repo, e.Number, e.Title)
		} else {
			p.Success("imported %s#%d as %s", e.Repo, e.Number, e.ItemID)
		}
	}
	for _, e := range res.IssuesCreated {
		if e.IssueURL == "" {
			p.Line("%swould create issue for %s", prefix, e.ItemID)
		} else {
			p.Success("created issue for %s: %s", e.ItemID, e.IssueURL)
		}
	}
	for _, e := range res.IssuesUpdated {
		p.Line("%sissue updated from %s: %s", prefix, e.ItemID, e.IssueURL)
	}
	for _, e := range res.ItemsUpdated {
		p.Line("%s%s updated from %s", prefix, e.ItemID, e.IssueURL)
	}
	for _, e := range res.BranchesCreated {
		p.Line("%sbranch %s created for %s", prefix, e.Branch, e.ItemID)
	}
	for _, c := range res.Conflicts {
		p.Error("%s (%s): %s", c.ItemID, c.IssueURL, c.Reason)
	}
	for _, w := range res.Warnings {
		p.Warn("%s", w)
	}
	c := res.Counts()
	p.Line("%simported %d, issues created %d, issues updated %d, items updated %d, branches %d, conflicts %d",
		prefix, c.Imported, c.IssuesCreated, c.IssuesUpdated, c.ItemsUpdated, c.BranchesCreated, c.Conflicts)
}

// Auth writes a tracker auth check line.
func (p *Printer) Auth(name string, st github.AuthStatus) {
	msg := name
	if st.Reason != "" {
		msg += ": " + st.Reason
	}
	switch st.Status {
	case github.AuthOK:
		p.Success("%s", msg)
	case github.AuthWarn:
		p.Warn("%s", msg)
	default:
		p.Line("%s %s", p.faint.Sprint("-"), msg)
	}
}
