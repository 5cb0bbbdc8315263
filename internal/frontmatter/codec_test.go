package frontmatter

import (
	"errors"
	"testing"

	"github.com/starford/workbench/internal/apperr"
)

const sampleItem = `---
id: TASK-0001
type: task
status: ready
title: "Ship it: part 1"
created: 2025-01-02
tags:
  - release
  - infra
related:
  specs:
    - /docs/10-product/feature.md
  adrs: []
  files: []
  prs: []
  issues:
    - "https://github.com/acme/widgets/issues/42"
  branches: []
owner: null
---

# TASK-0001 - Ship it

## Summary

Ship the thing.
`

func TestParse_HeaderAndBody(t *testing.T) {
	doc, err := Parse(sampleItem)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := doc.Header.GetString("id"); got != "TASK-0001" {
		t.Errorf("id = %q, want %q", got, "TASK-0001")
	}
	if got := doc.Header.GetString("title"); got != "Ship it: part 1" {
		t.Errorf("title = %q, want %q", got, "Ship it: part 1")
	}
	tags, _ := doc.Header.Get("tags")
	if got := tags.StringList(); len(got) != 2 || got[0] != "release" || got[1] != "infra" {
		t.Errorf("tags = %v, want [release infra]", got)
	}
	related, ok := doc.Header.GetMap("related")
	if !ok {
		t.Fatal("related is not a map")
	}
	adrs, _ := related.Get("adrs")
	if items, ok := adrs.AsList(); !ok || len(items) != 0 {
		t.Errorf("adrs = %v, want empty list", adrs)
	}
	owner, _ := doc.Header.Get("owner")
	if !owner.IsNull() {
		t.Errorf("owner kind = %v, want null", owner.Kind())
	}
	if doc.Body != "# TASK-0001 - Ship it\n\n## Summary\n\nShip the thing.\n" {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestSerialize_RoundTripIsExact(t *testing.T) {
	doc, err := Parse(sampleItem)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out := Serialize(doc.Header, doc.Body)
	if out != sampleItem {
		t.Errorf("serialize mismatch:\n got: %q\nwant: %q", out, sampleItem)
	}

	again, err := Parse(out)
	if err != nil {
		t.Fatalf("re-Parse: %v", err)
	}
	if !again.Header.Equal(doc.Header) {
		t.Error("header changed across round trip")
	}
	if again.Body != doc.Body {
		t.Errorf("body = %q, want %q", again.Body, doc.Body)
	}
}

func TestSerialize_QuotesWhenNeeded(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"", `""`},
		{" padded", `" padded"`},
		{"- dash", `"- dash"`},
		{"#hash", `"#hash"`},
		{"a: b", `"a: b"`},
		{"line1\nline2", `"line1\nline2"`},
		{`back\slash "q"`, `back\slash "q"`},
		{`say "hi": now`, `"say \"hi\": now"`},
		{"null", `"null"`},
		{"~", `"~"`},
		{"[]", `"[]"`},
		{"'single", `"'single"`},
	}
	for _, tc := range cases {
		if got := scalarText(String(tc.in)); got != tc.want {
			t.Errorf("scalarText(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestSerialize_StringsSurviveRoundTrip(t *testing.T) {
	values := []string{
		"", " lead", "trail ", "a: b", "#x", "- y", "multi\nline", `q"uote`, `\n literal`,
		"null", "NULL", "~", "{}", "[]", "'quoted'", `"dq"`, "tab\there", "100%",
	}
	for _, v := range values {
		m := NewMap()
		m.Set("k", String(v))
		doc, err := Parse(Serialize(m, ""))
		if err != nil {
			t.Fatalf("Parse(%q): %v", v, err)
		}
		got, _ := doc.Header.Get("k")
		if s, ok := got.AsString(); !ok || s != v {
			t.Errorf("round trip of %q = %v (%v)", v, s, got.Kind())
		}
	}
}

func TestSerialize_TypedScalars(t *testing.T) {
	m := NewMap()
	m.Set("draft", Bool(true))
	m.Set("count", Number(3))
	m.Set("ratio", Number(0.5))
	m.Set("gone", Null())
	m.Set("empty", MapValue(nil))
	m.Set("list", List())

	want := "---\ndraft: true\ncount: 3\nratio: 0.5\ngone: null\nempty: {}\nlist: []\n---\n"
	if got := Serialize(m, ""); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSerialize_EmptyHeader(t *testing.T) {
	out := Serialize(NewMap(), "body")
	if out != "---\n\n---\n\nbody\n" {
		t.Fatalf("out = %q", out)
	}
	doc, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Header.Len() != 0 || doc.Body != "body\n" {
		t.Errorf("header len = %d, body = %q", doc.Header.Len(), doc.Body)
	}
}

func TestParse_QuotedScalars(t *testing.T) {
	doc, err := Parse("---\na: \"x\\ny \\\"z\\\" \\\\\"\nb: 'it''s'\nc: ~\n---\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := doc.Header.GetString("a"); got != "x\ny \"z\" \\" {
		t.Errorf("a = %q", got)
	}
	if got := doc.Header.GetString("b"); got != "it's" {
		t.Errorf("b = %q", got)
	}
	if c, _ := doc.Header.Get("c"); !c.IsNull() {
		t.Errorf("c kind = %v, want null", c.Kind())
	}
}

func TestParse_KeyWithoutChildrenIsNull(t *testing.T) {
	doc, err := Parse("---\nowner:\nstatus: ready\n---\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	owner, ok := doc.Header.Get("owner")
	if !ok || !owner.IsNull() {
		t.Errorf("owner = %v, %v; want null", owner.Kind(), ok)
	}
	if got := doc.Header.GetString("status"); got != "ready" {
		t.Errorf("status = %q", got)
	}
}

func TestParse_CRLF(t *testing.T) {
	doc, err := Parse("---\r\nid: BUG-0002\r\n---\r\n\r\nbody\r\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := doc.Header.GetString("id"); got != "BUG-0002" {
		t.Errorf("id = %q", got)
	}
	if doc.Body != "body\n" {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		kind ErrorKind
		line int
	}{
		{"no start", "title: x\n---\n", MissingDelimiter, 0},
		{"no end", "---\ntitle: x\nbody\n", MissingDelimiter, 0},
		{"only a start line", "---\n", MissingDelimiter, 0},
		{"empty header", "---\n---\nbody\n", EmptyHeader, 2},
		{"tab", "---\ntitle: x\n\tbad: y\n---\n", TabsNotSupported, 3},
		{"too deep", "---\ntitle: x\n  nested: y\n---\n", IndentationError, 3},
		{"odd child indent", "---\nrelated:\n   specs: []\n---\n", IndentationError, 3},
		{"no colon", "---\njust text\n---\n", InvalidMapping, 2},
		{"leading colon", "---\n: value\n---\n", InvalidMapping, 2},
		{"list at map level", "---\n- item\n---\n", UnexpectedListItem, 2},
		{"non item in list", "---\ntags:\n  - a\n  b: c\n---\n", InvalidListEntry, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.in)
			if err == nil {
				t.Fatal("expected error")
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("error %T is not *FormatError", err)
			}
			if fe.Kind != tc.kind {
				t.Errorf("kind = %q, want %q", fe.Kind, tc.kind)
			}
			if fe.Line != tc.line {
				t.Errorf("line = %d, want %d", fe.Line, tc.line)
			}
			if !errors.Is(err, apperr.ErrFormat) {
				t.Error("error should match apperr.ErrFormat")
			}
		})
	}
}

func TestFromAny_LegacyMaps(t *testing.T) {
	v := FromAny(map[string]any{
		"title": "Legacy",
		"count": 2,
		"related": map[any]any{
			"specs": []any{"/a.md", "/b.md"},
		},
	})
	m, ok := v.AsMap()
	if !ok {
		t.Fatal("expected map")
	}
	if got := m.Keys(); len(got) != 3 || got[0] != "count" || got[1] != "related" || got[2] != "title" {
		t.Errorf("keys = %v", got)
	}
	related, _ := m.GetMap("related")
	specs, _ := related.Get("specs")
	if got := specs.StringList(); len(got) != 2 || got[1] != "/b.md" {
		t.Errorf("specs = %v", got)
	}
	if n, _ := m.Get("count"); n.Text() != "2" {
		t.Errorf("count = %q", n.Text())
	}
}

func TestParse_DelimiterErrorsNameTheRightLine(t *testing.T) {
	_, err := Parse("---\ntitle: x\n")
	var fe *FormatError
	if !errors.As(err, &fe) || fe.Detail != "end" {
		t.Errorf("unterminated header: err = %v", err)
	}
	_, err = Parse("---\n---\n")
	if !errors.As(err, &fe) || fe.Kind != EmptyHeader || fe.Detail == "end" {
		t.Errorf("empty header: err = %v", err)
	}
}

func TestFromAny_NestedContainersInLists(t *testing.T) {
	v := FromAny([]any{
		"plain",
		[]any{"a", "b"},
		map[string]any{"k": "v"},
		[]any{},
	})
	items, ok := v.AsList()
	if !ok || len(items) != 4 {
		t.Fatalf("items = %v", v)
	}
	if s, _ := items[1].AsString(); s != "[a, b]" {
		t.Errorf("nested list = %#v", items[1])
	}
	if s, _ := items[2].AsString(); s != "{k: v}" {
		t.Errorf("nested map = %#v", items[2])
	}
	if l, ok := items[3].AsList(); !ok || len(l) != 0 {
		t.Errorf("empty list = %#v", items[3])
	}

	m := NewMap()
	m.Set("notes", v)
	out := Serialize(m, "")
	want := "---\nnotes:\n  - plain\n  - \"[a, b]\"\n  - \"{k: v}\"\n  - []\n---\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
	doc, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !doc.Header.Equal(m) {
		t.Errorf("round trip changed the header: %q", Serialize(doc.Header, ""))
	}
}

func TestSerialize_NestedListItemsKeepTheirContent(t *testing.T) {
	m := NewMap()
	m.Set("matrix", List(List(String("a"), Number(1)), MapValue(nil)))
	want := "---\nmatrix:\n  - \"[a, 1]\"\n  - {}\n---\n"
	if got := Serialize(m, ""); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMap_SetKeepsPositionAndDelete(t *testing.T) {
	m := NewMap()
	m.Set("a", String("1"))
	m.Set("b", String("2"))
	m.Set("a", String("3"))
	m.Delete("b")
	m.Set("c", String("4"))
	keys := m.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "c" {
		t.Errorf("keys = %v, want [a c]", keys)
	}
	if got := m.GetString("a"); got != "3" {
		t.Errorf("a = %q", got)
	}
}
