package frontmatter

import (
	"fmt"

	"github.com/starford/workbench/internal/apperr"
)

// ErrorKind classifies a FormatError.
type ErrorKind string

const (
	MissingDelimiter   ErrorKind = "missing delimiter"
	EmptyHeader        ErrorKind = "empty header"
	TabsNotSupported   ErrorKind = "tabs are not supported"
	IndentationError   ErrorKind = "invalid indentation"
	InvalidMapping     ErrorKind = "invalid mapping"
	UnexpectedListItem ErrorKind = "unexpected list item"
	InvalidListEntry   ErrorKind = "invalid list entry"
)

// FormatError reports malformed header text. Line is the 1-based line number
// in the source text, or 0 when the error is not tied to a line.
type FormatError struct {
	Kind   ErrorKind
	Line   int
	Detail string
}

func (e *FormatError) Error() string {
	msg := "frontmatter: " + string(e.Kind)
	if e.Detail != "" {
		msg += " " + e.Detail
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d)", e.Line)
	}
	return msg
}

// Is makes every FormatError match apperr.ErrFormat.
func (e *FormatError) Is(target error) bool {
	return target == apperr.ErrFormat
}
