package report

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Line diff operations.
const (
	OpEqual  = ' '
	OpInsert = '+'
	OpDelete = '-'
)

// DiffLine is one line of a line-level diff.
type DiffLine struct {
	Op   rune
	Text string
}

// DiffLines compares before and after line by line.
func DiffLines(before, after string) []DiffLine {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []DiffLine
	for _, d := range diffs {
		op := rune(OpEqual)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		}
		text := strings.TrimSuffix(d.Text, "\n")
		if text == "" && d.Text == "" {
			continue
		}
		for _, l := range strings.Split(text, "\n") {
			out = append(out, DiffLine{Op: op, Text: l})
		}
	}
	return out
}
