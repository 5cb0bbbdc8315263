package links

import (
	"fmt"
	"sort"
	"testing"

	"github.com/starford/workbench/internal/models"
)

type memStore struct {
	files  map[string]string
	writes int
}

func (m *memStore) List(string) ([]models.FileMeta, error) {
	var out []models.FileMeta
	for p := range m.files {
		out = append(out, models.FileMeta{Path: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *memStore) Read(p string) ([]byte, error) {
	s, ok := m.files[p]
	if !ok {
		return nil, fmt.Errorf("missing %s", p)
	}
	return []byte(s), nil
}

func (m *memStore) Write(p string, content []byte) error {
	m.files[p] = string(content)
	m.writes++
	return nil
}

func TestRewriteLinks_AllShapes(t *testing.T) {
	cases := []struct {
		name, file, in, want string
	}{
		{"root relative", "notes/x.md", "[A](/docs/a.md)", "[A](/docs/sub/a.md)"},
		{"root relative anchor", "notes/x.md", "[A](/docs/a.md#part)", "[A](/docs/sub/a.md#part)"},
		{"file relative sibling", "docs/b.md", "[A](a.md)", "[A](sub/a.md)"},
		{"file relative parent", "notes/x.md", "[A](../docs/a.md?plain=1)", "[A](../docs/sub/a.md?plain=1)"},
		{"repo relative", "docs/deep/c.md", "[A](docs/a.md)", "[A](docs/sub/a.md)"},
		{"root file", "README.md", "see [A](docs/a.md).", "see [A](docs/sub/a.md)."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, changed := RewriteLinks(tc.in, tc.file, "docs/a.md", "docs/sub/a.md")
			if !changed {
				t.Fatal("expected change")
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRewriteLinks_LeavesOthersAlone(t *testing.T) {
	in := "[x](#a) [y](https://host/docs/a.md) [z](mailto:a@b) [w](docs/other.md) [v](/docs/a.mdx)"
	got, changed := RewriteLinks(in, "README.md", "docs/a.md", "docs/sub/a.md")
	if changed || got != in {
		t.Errorf("unexpected rewrite: %q", got)
	}
}

func TestPropagateRename(t *testing.T) {
	store := &memStore{files: map[string]string{
		"README.md":         "[A](docs/a.md) and [A again](/docs/a.md#top)\n",
		"docs/b.md":         "link: [A](./a.md)\n",
		"docs/c.md":         "nothing here\n",
		"docs/sub/a.md":     "# A\n",
		"notes/far/away.md": "[A](../../docs/a.md)\n",
	}}
	res, err := PropagateRename(store, "/docs/a.md", "docs/sub/a.md", RenameOptions{})
	if err != nil {
		t.Fatalf("PropagateRename: %v", err)
	}
	if res.FilesChanged != 3 {
		t.Errorf("FilesChanged = %d, want 3", res.FilesChanged)
	}
	want := map[string]string{
		"README.md":         "[A](docs/sub/a.md) and [A again](/docs/sub/a.md#top)\n",
		"docs/b.md":         "link: [A](sub/a.md)\n",
		"notes/far/away.md": "[A](../../docs/sub/a.md)\n",
	}
	for p, w := range want {
		if got := store.files[p]; got != w {
			t.Errorf("%s = %q, want %q", p, got, w)
		}
	}
	if store.files["docs/c.md"] != "nothing here\n" {
		t.Error("unrelated file changed")
	}
}

func TestPropagateRename_DryRunWritesNothing(t *testing.T) {
	store := &memStore{files: map[string]string{"README.md": "[A](docs/a.md)\n"}}
	res, err := PropagateRename(store, "docs/a.md", "docs/b.md", RenameOptions{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesChanged != 1 || !res.DryRun {
		t.Errorf("res = %+v", res)
	}
	if store.writes != 0 {
		t.Errorf("writes = %d, want 0", store.writes)
	}
	if res.Changes[0].After != "[A](docs/b.md)\n" {
		t.Errorf("after = %q", res.Changes[0].After)
	}
}

func TestTargets(t *testing.T) {
	content := "[a](/docs/a.md) [b](../specs/b.md#intro) [c](c.md) [web](https://x.y/z.md) [top](#top) [again](/docs/a.md)"
	got := Targets(content, "docs/guides/g.md")
	want := []string{"/docs/a.md", "/docs/specs/b.md", "/docs/guides/c.md"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Targets = %v, want %v", got, want)
	}
	if got := Targets("no links", "x.md"); len(got) != 0 {
		t.Errorf("Targets = %v, want none", got)
	}
}
