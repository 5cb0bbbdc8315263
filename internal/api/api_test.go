package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/workbench/internal/index"
	"github.com/starford/workbench/internal/itemservice"
	"github.com/starford/workbench/internal/testutil"
)

const (
	itemOne = "---\nid: TASK-0001\ntype: task\nstatus: ready\ncreated: 2026-01-01\ntitle: Login form\ntags:\n  - ui\n---\n\n# TASK-0001 - Login form\n\nuniqueword\n"
	itemTwo = "---\nid: BUG-0002\ntype: bug\nstatus: blocked\ncreated: 2026-01-02\ntitle: Crash\nrelated:\n  specs:\n    - /docs/specs/login.md\n---\n\n# BUG-0002 - Crash\n"
	specDoc = "---\ntype: spec\nstatus: active\ntitle: Login spec\n---\n\nSee [the task](/docs/items/TASK-0001-login-form.md).\n"
)

// testEnv sets up a temp repository, a synced index and the router.
func testEnv(t *testing.T, authToken string, withIndex bool) http.Handler {
	t.Helper()
	_, store := testutil.TestRepo(t, map[string]string{
		"docs/items/TASK-0001-login-form.md": itemOne,
		"docs/items/BUG-0002-crash.md":       itemTwo,
		"docs/specs/login.md":                specDoc,
	})
	svc := itemservice.NewService(store, itemservice.Config{ItemsDir: "docs/items", DoneDir: "docs/done", DocsDir: "docs"})

	var idx index.DocumentIndex
	if withIndex {
		db := testutil.TestDB(t)
		if _, err := index.Sync(db, store, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
			t.Fatalf("Sync: %v", err)
		}
		idx = db
	}
	return NewRouter(svc, idx, authToken != "", authToken)
}

func get(t *testing.T, h http.Handler, target string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if out != nil && w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s: %v (%s)", target, err, w.Body.String())
		}
	}
	return w.Code
}

func TestListItems(t *testing.T) {
	router := testEnv(t, "", false)

	var resp ItemListResponse
	if code := get(t, router, "/items", &resp); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}

	resp = ItemListResponse{}
	get(t, router, "/items?type=bug", &resp)
	if resp.Total != 1 || resp.Items[0].ID != "BUG-0002" {
		t.Errorf("bug filter = %+v", resp)
	}

	resp = ItemListResponse{}
	get(t, router, "/items?status=ready", &resp)
	if resp.Total != 1 || resp.Items[0].Tags[0] != "ui" {
		t.Errorf("status filter = %+v", resp)
	}
}

func TestGetItem_WithBacklinks(t *testing.T) {
	router := testEnv(t, "", true)

	var detail struct {
		ID        string       `json:"id"`
		Title     string       `json:"title"`
		Backlinks []index.Link `json:"backlinks"`
	}
	if code := get(t, router, "/items/TASK-0001", &detail); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if detail.ID != "TASK-0001" || detail.Title != "Login form" {
		t.Errorf("detail = %+v", detail)
	}
	if len(detail.Backlinks) != 1 || detail.Backlinks[0].Source != "docs/specs/login.md" {
		t.Errorf("backlinks = %+v", detail.Backlinks)
	}
}

func TestGetItem_NotFound(t *testing.T) {
	router := testEnv(t, "", false)
	if code := get(t, router, "/items/TASK-9999", nil); code != http.StatusNotFound {
		t.Errorf("missing item = %d, want 404", code)
	}
}

func TestGetDocument(t *testing.T) {
	router := testEnv(t, "", true)

	var detail struct {
		Path      string       `json:"path"`
		Type      string       `json:"type"`
		Backlinks []index.Link `json:"backlinks"`
	}
	if code := get(t, router, "/documents/docs%2Fspecs%2Flogin.md", &detail); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if detail.Type != "spec" || len(detail.Backlinks) != 1 || detail.Backlinks[0].Kind != "specs" {
		t.Errorf("detail = %+v", detail)
	}

	if code := get(t, router, "/documents/docs/nope.md", nil); code != http.StatusNotFound {
		t.Errorf("missing doc = %d, want 404", code)
	}
}

func TestListDocuments(t *testing.T) {
	router := testEnv(t, "", true)

	var resp DocumentListResponse
	if code := get(t, router, "/documents?type=spec", &resp); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if resp.Total != 1 || resp.Documents[0].Path != "docs/specs/login.md" {
		t.Errorf("documents = %+v", resp)
	}
}

func TestSearchEndpoint(t *testing.T) {
	router := testEnv(t, "", true)

	var resp SearchResponse
	if code := get(t, router, "/search?q=uniqueword", &resp); code != http.StatusOK {
		t.Fatalf("search status = %d", code)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "TASK-0001" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	router := testEnv(t, "", true)
	if code := get(t, router, "/search", nil); code != http.StatusBadRequest {
		t.Errorf("missing q = %d, want 400", code)
	}
}

func TestBacklinksEndpoint(t *testing.T) {
	router := testEnv(t, "", true)

	var resp BacklinksResponse
	if code := get(t, router, "/backlinks?target=docs/specs/login.md", &resp); code != http.StatusOK {
		t.Fatalf("backlinks status = %d", code)
	}
	if len(resp.Backlinks) != 1 || resp.Backlinks[0].Source != "docs/items/BUG-0002-crash.md" {
		t.Errorf("backlinks = %+v", resp.Backlinks)
	}
}

func TestIndexRoutesWithoutIndex(t *testing.T) {
	router := testEnv(t, "", false)
	for _, target := range []string{"/search?q=x", "/backlinks?target=x", "/documents"} {
		if code := get(t, router, target, nil); code != http.StatusServiceUnavailable {
			t.Errorf("%s = %d, want 503", target, code)
		}
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router := testEnv(t, "secret123", false)

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router := testEnv(t, "secret123", false)
	if code := get(t, router, "/items", nil); code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router := testEnv(t, "secret123", false)

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}
