package frontmatter

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const delimiter = "---"

// Document is a parsed header block plus the text that follows it.
type Document struct {
	Header *Map
	Body   string
}

// Bytes serializes the document.
func (d *Document) Bytes() []byte {
	return []byte(Serialize(d.Header, d.Body))
}

// Parse splits text into header and body. The first line must be "---" and a
// later "---" line closes the header.
func Parse(text string) (*Document, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if strings.TrimSpace(lines[0]) != delimiter {
		return nil, &FormatError{Kind: MissingDelimiter, Detail: "start"}
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delimiter {
			end = i
			break
		}
	}
	switch end {
	case -1:
		return nil, &FormatError{Kind: MissingDelimiter, Detail: "end"}
	case 1:
		return nil, &FormatError{Kind: EmptyHeader, Line: 2}
	}

	p := &parser{lines: lines[1:end], offset: 2}
	header, err := p.parseMap(0)
	if err != nil {
		return nil, err
	}
	body := strings.TrimLeft(strings.Join(lines[end+1:], "\n"), "\n")
	return &Document{Header: header, Body: body}, nil
}

type parser struct {
	lines  []string
	index  int
	offset int // file line number of lines[0]
}

func (p *parser) lineNo(i int) int { return i + p.offset }

func (p *parser) fail(kind ErrorKind, i int) error {
	return &FormatError{Kind: kind, Line: p.lineNo(i)}
}

// next returns the index of the next non-blank line at or after i.
func (p *parser) next(i int) int {
	for i < len(p.lines) && strings.TrimSpace(p.lines[i]) == "" {
		i++
	}
	return i
}

func (p *parser) parseMap(indent int) (*Map, error) {
	m := NewMap()
	for {
		p.index = p.next(p.index)
		if p.index >= len(p.lines) {
			return m, nil
		}
		line := p.lines[p.index]
		if strings.Contains(line, "\t") {
			return nil, p.fail(TabsNotSupported, p.index)
		}
		cur := countIndent(line)
		if cur < indent {
			return m, nil
		}
		if cur > indent {
			return nil, p.fail(IndentationError, p.index)
		}

		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") || trimmed == "-" {
			return nil, p.fail(UnexpectedListItem, p.index)
		}
		colon := strings.Index(trimmed, ":")
		if colon <= 0 {
			return nil, p.fail(InvalidMapping, p.index)
		}
		key := strings.TrimSpace(trimmed[:colon])
		rest := strings.TrimLeft(trimmed[colon+1:], " ")
		p.index++

		if rest != "" {
			m.Set(key, parseScalar(rest))
			continue
		}

		n := p.next(p.index)
		if n >= len(p.lines) || countIndent(p.lines[n]) <= indent {
			m.Set(key, Null())
			continue
		}
		if strings.Contains(p.lines[n], "\t") {
			return nil, p.fail(TabsNotSupported, n)
		}
		if countIndent(p.lines[n]) != indent+2 {
			return nil, p.fail(IndentationError, n)
		}
		if strings.HasPrefix(strings.TrimLeft(p.lines[n], " "), "- ") {
			items, err := p.parseList(indent + 2)
			if err != nil {
				return nil, err
			}
			m.Set(key, List(items...))
			continue
		}
		nested, err := p.parseMap(indent + 2)
		if err != nil {
			return nil, err
		}
		m.Set(key, MapValue(nested))
	}
}

func (p *parser) parseList(indent int) ([]Value, error) {
	items := []Value{}
	for {
		p.index = p.next(p.index)
		if p.index >= len(p.lines) {
			return items, nil
		}
		line := p.lines[p.index]
		if strings.Contains(line, "\t") {
			return nil, p.fail(TabsNotSupported, p.index)
		}
		cur := countIndent(line)
		if cur < indent {
			return items, nil
		}
		if cur > indent {
			return nil, p.fail(IndentationError, p.index)
		}
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "- ") {
			return nil, p.fail(InvalidListEntry, p.index)
		}
		items = append(items, parseScalar(strings.TrimLeft(trimmed[2:], " ")))
		p.index++
	}
}

func countIndent(line string) int {
	n := 0
	for n < len(line) && line[n] == ' ' {
		n++
	}
	return n
}

func parseScalar(s string) Value {
	switch {
	case strings.EqualFold(s, "null"), s == "~":
		return Null()
	case s == "[]":
		return List()
	case s == "{}":
		return MapValue(nil)
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return String(unescapeDouble(s[1 : len(s)-1]))
	}
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return String(strings.ReplaceAll(s[1:len(s)-1], "''", "'"))
	}
	return String(s)
}

func unescapeDouble(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case 'n':
			b.WriteByte('\n')
			i++
		case 'r':
			b.WriteByte('\r')
			i++
		case 't':
			b.WriteByte('\t')
			i++
		case '"':
			b.WriteByte('"')
			i++
		case '\\':
			b.WriteByte('\\')
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Serialize renders header and body. The output always ends with exactly one
// newline and parses back to the same header and body.
func Serialize(header *Map, body string) string {
	var b strings.Builder
	b.WriteString(delimiter)
	b.WriteByte('\n')
	if header.Len() == 0 {
		b.WriteByte('\n')
	}
	writeMap(&b, header, 0)
	b.WriteString(delimiter)
	b.WriteString("\n\n")
	b.WriteString(strings.TrimLeft(body, "\n"))
	return strings.TrimRight(b.String(), " \t\r\n") + "\n"
}

func writeMap(b *strings.Builder, m *Map, indent int) {
	pad := strings.Repeat(" ", indent)
	for _, key := range m.Keys() {
		v, _ := m.Get(key)
		switch v.Kind() {
		case KindMap:
			nested, _ := v.AsMap()
			if nested.Len() == 0 {
				b.WriteString(pad + key + ": {}\n")
				continue
			}
			b.WriteString(pad + key + ":\n")
			writeMap(b, nested, indent+2)
		case KindList:
			items, _ := v.AsList()
			if len(items) == 0 {
				b.WriteString(pad + key + ": []\n")
				continue
			}
			b.WriteString(pad + key + ":\n")
			for _, item := range items {
				b.WriteString(pad + "  - " + scalarText(item) + "\n")
			}
		default:
			b.WriteString(pad + key + ": " + scalarText(v) + "\n")
		}
	}
}

// scalarText renders v on a single line. A non-empty container inside a list
// is written as its quoted flow text and reads back as that string.
func scalarText(v Value) string {
	switch v.Kind() {
	case KindNull:
		return "null"
	case KindBool, KindNumber:
		return v.Text()
	case KindList, KindMap:
		text := flowText(v)
		if text == "[]" || text == "{}" {
			return text
		}
		return stringText(text)
	}
	s, _ := v.AsString()
	return stringText(s)
}

// flowText renders a container as "[a, b]" or "{k: v}".
func flowText(v Value) string {
	switch v.Kind() {
	case KindList:
		items, _ := v.AsList()
		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, flowText(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		m, _ := v.AsMap()
		parts := make([]string, 0, m.Len())
		for _, key := range m.Keys() {
			item, _ := m.Get(key)
			parts = append(parts, key+": "+flowText(item))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return scalarText(v)
}

func stringText(s string) string {
	if s == "" {
		return `""`
	}
	if !needsQuoting(s) {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}

const specialChars = ":#[]{},&*?|>!%@"

func needsQuoting(s string) bool {
	first, _ := utf8.DecodeRuneInString(s)
	last, _ := utf8.DecodeLastRuneInString(s)
	if unicode.IsSpace(first) || unicode.IsSpace(last) {
		return true
	}
	if strings.HasPrefix(s, "- ") || s == "-" || strings.HasPrefix(s, "#") {
		return true
	}
	if strings.HasPrefix(s, `"`) || strings.HasPrefix(s, "'") {
		return true
	}
	if strings.EqualFold(s, "null") || s == "~" {
		return true
	}
	if strings.ContainsAny(s, "\n\r\t") {
		return true
	}
	return strings.ContainsAny(s, specialChars)
}
