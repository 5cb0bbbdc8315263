package document

import (
	"strings"
)

// Well-known body sections.
const (
	SectionSummary    = "Summary"
	SectionAcceptance = "Acceptance criteria"
	SectionNotes      = "Notes"
)

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

func findHeading(lines []string, heading string) int {
	want := "## " + heading
	for i, line := range lines {
		if strings.EqualFold(strings.TrimSpace(line), want) {
			return i
		}
	}
	return -1
}

func isSectionHeading(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), "## ")
}

// ExtractSection returns the trimmed text under "## heading" up to the next
// second-level heading, or "" when the section is missing.
func ExtractSection(body, heading string) string {
	lines := splitLines(body)
	start := findHeading(lines, heading)
	if start == -1 {
		return ""
	}
	var collected []string
	for _, line := range lines[start+1:] {
		if isSectionHeading(line) {
			break
		}
		collected = append(collected, line)
	}
	return strings.TrimSpace(strings.Join(collected, "\n"))
}

// ReplaceSection replaces the content of "## heading", appending the section
// when it does not exist yet.
func ReplaceSection(body, heading, content string) string {
	lines := splitLines(body)
	contentLines := splitLines(content)
	start := findHeading(lines, heading)
	if start == -1 {
		if len(lines) > 0 && !isBlank(lines[len(lines)-1]) {
			lines = append(lines, "")
		}
		lines = append(lines, "## "+heading)
		if !isBlank(content) {
			lines = append(lines, "")
			lines = append(lines, contentLines...)
		}
		return strings.Join(lines, "\n")
	}

	end := start + 1
	for end < len(lines) && !isSectionHeading(lines[end]) {
		end++
	}

	updated := make([]string, 0, len(lines)+len(contentLines)+2)
	updated = append(updated, lines[:start+1]...)
	if !isBlank(content) {
		updated = append(updated, "")
		updated = append(updated, contentLines...)
	}
	if end < len(lines) {
		if !isBlank(updated[len(updated)-1]) {
			updated = append(updated, "")
		}
		updated = append(updated, lines[end:]...)
	}
	return strings.Join(updated, "\n")
}

// ReplaceTitleHeading rewrites the first "# " heading that mentions id as
// "# <id> - <title>". Without an id the first "# " heading becomes "# <title>".
func ReplaceTitleHeading(body, id, title string) string {
	lines := splitLines(body)
	for i, line := range lines {
		if !strings.HasPrefix(line, "# ") {
			continue
		}
		if id != "" && !strings.Contains(strings.ToLower(line), strings.ToLower(id)) {
			continue
		}
		if id == "" {
			lines[i] = "# " + title
		} else {
			lines[i] = "# " + id + " - " + title
		}
		break
	}
	return strings.Join(lines, "\n")
}

// AppendNote adds "- note" at the top of the Notes section, creating it when
// missing.
func AppendNote(body, note string) string {
	lines := splitLines(body)
	idx := findHeading(lines, SectionNotes)
	if idx == -1 {
		if len(lines) > 0 && !isBlank(lines[len(lines)-1]) {
			lines = append(lines, "")
		}
		lines = append(lines, "## "+SectionNotes, "", "- "+note)
		return strings.Join(lines, "\n")
	}
	insert := idx + 1
	for insert < len(lines) && isBlank(lines[insert]) {
		insert++
	}
	lines = append(lines[:insert], append([]string{"- " + note}, lines[insert:]...)...)
	return strings.Join(lines, "\n")
}
