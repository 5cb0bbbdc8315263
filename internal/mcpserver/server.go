// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes work item tools to agents via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/workbench/internal/document"
	"github.com/starford/workbench/internal/index"
	"github.com/starford/workbench/internal/itemservice"
)

const contractURI = "workbench://work-item-format"

// Server wraps the MCP server with workbench tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *itemservice.Service
	idx    index.DocumentIndex
	logger *slog.Logger
}

// New creates a new MCP server with all tools registered. idx may be nil; the
// search and backlink tools then report that the index is disabled.
func New(svc *itemservice.Service, idx index.DocumentIndex, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, idx: idx, logger: logger}

	s.mcp = server.NewMCPServer(
		"Workbench",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_items",
		mcp.WithDescription("List work items with their id, type, status and title."),
		mcp.WithString("status", mcp.Description("Only items with this status")),
		mcp.WithString("type", mcp.Description("Only items of this type (task, bug, spike)")),
		mcp.WithBoolean("include_done", mcp.Description("Include items in the done directory")),
	), s.listItems)

	s.mcp.AddTool(mcp.NewTool("show_item",
		mcp.WithDescription("Return the full Markdown file of a work item or doc."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Item id (TASK-0001) or repository path")),
	), s.showItem)

	s.mcp.AddTool(mcp.NewTool("create_item",
		mcp.WithDescription("Create a work item from the repository template. Returns its path."),
		mcp.WithString("type", mcp.Required(), mcp.Description("task, bug or spike")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Item title")),
		mcp.WithString("status", mcp.Description("Initial status; the template default when empty")),
	), s.createItem)

	s.mcp.AddTool(mcp.NewTool("update_status",
		mcp.WithDescription("Set a work item's status, stamp the updated date and optionally add a note."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Item id or path")),
		mcp.WithString("status", mcp.Required(), mcp.Description("New status")),
		mcp.WithString("note", mcp.Description("Note appended to the Notes section")),
	), s.updateStatus)

	s.mcp.AddTool(mcp.NewTool("add_link",
		mcp.WithDescription("Add an entry to a related list (specs, adrs, files, prs, issues, branches)."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Item id or document path")),
		mcp.WithString("list", mcp.Required(), mcp.Description("Related list key")),
		mcp.WithString("link", mcp.Required(), mcp.Description("Path or URL to add")),
	), s.addLink)

	s.mcp.AddTool(mcp.NewTool("remove_link",
		mcp.WithDescription("Remove an entry from a related list."),
		mcp.WithString("ref", mcp.Required(), mcp.Description("Item id or document path")),
		mcp.WithString("list", mcp.Required(), mcp.Description("Related list key")),
		mcp.WithString("link", mcp.Required(), mcp.Description("Path or URL to remove")),
	), s.removeLink)

	s.mcp.AddTool(mcp.NewTool("normalize_items",
		mcp.WithDescription("Normalize tags and related lists of every work item. Returns the changed paths."),
		mcp.WithBoolean("dry_run", mcp.Description("Report changes without writing")),
	), s.normalizeItems)

	s.mcp.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Full-text search through work items and docs."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.search)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find every document that links to the given path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Repository path of the target")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("get_item_contract",
		mcp.WithDescription("Returns the work item file format. Read it before editing items by hand."),
	), s.getItemContract)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Work Item Format",
			mcp.WithResourceDescription("Header keys, statuses and sections of a work item file."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// reindex keeps the index current after a tool wrote a file.
func (s *Server) reindex(paths ...string) {
	if s.idx == nil {
		return
	}
	for _, p := range paths {
		if err := index.Refresh(s.idx, s.svc.Store(), p); err != nil {
			s.logger.Warn("mcp: reindex failed", slog.String("path", p), slog.String("error", err.Error()))
		}
	}
}

type itemSummary struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Title  string `json:"title"`
	Path   string `json:"path"`
}

func (s *Server) listItems(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := req.GetString("status", "")
	typ := req.GetString("type", "")
	docs, err := s.svc.ListItems(req.GetBool("include_done", false))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := []itemSummary{}
	for _, d := range docs {
		if (status != "" && d.Status != status) || (typ != "" && d.Type != typ) {
			continue
		}
		out = append(out, itemSummary{ID: d.ID, Type: d.Type, Status: d.Status, Title: d.Title, Path: d.Path})
	}
	return jsonResult(out), nil
}

func (s *Server) showItem(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Resolve(ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", ref)), nil
	}
	return mcp.NewToolResultText(string(document.Render(doc))), nil
}

func (s *Server) createItem(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.CreateItem(itemservice.NewItem{Type: typ, Title: title, Status: req.GetString("status", "")})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.reindex(doc.Path)
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", doc.ID, doc.Path)), nil
}

func (s *Server) updateStatus(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, err := req.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.UpdateStatus(ref, status, req.GetString("note", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.reindex(doc.Path)
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", doc.ID, doc.Status)), nil
}

func (s *Server) addLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.updateLink(req, false)
}

func (s *Server) removeLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.updateLink(req, true)
}

func (s *Server) updateLink(req mcp.CallToolRequest, remove bool) (*mcp.CallToolResult, error) {
	ref, err := req.RequireString("ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := req.RequireString("list")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	link, err := req.RequireString("link")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, changed, err := s.svc.UpdateLink(ref, key, link, remove)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !changed {
		return mcp.NewToolResultText("unchanged: " + doc.Path), nil
	}
	s.reindex(doc.Path)
	return jsonResult(map[string]any{"path": doc.Path, key: *doc.Related.List(key)}), nil
}

func (s *Server) normalizeItems(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dryRun := req.GetBool("dry_run", false)
	changes, err := s.svc.NormalizeItems(true, dryRun)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths := make([]string, 0, len(changes))
	for _, c := range changes {
		paths = append(paths, c.Path)
	}
	if !dryRun {
		s.reindex(paths...)
	}
	return jsonResult(map[string]any{"changed": paths, "dryRun": dryRun}), nil
}

func (s *Server) search(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.idx == nil {
		return mcp.NewToolResultError("index disabled"), nil
	}
	results, err := s.idx.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getBacklinks(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.idx == nil {
		return mcp.NewToolResultError("index disabled"), nil
	}
	bl, err := s.idx.Backlinks(p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return jsonResult(bl), nil
}

func (s *Server) getItemContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(WorkItemContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     WorkItemContract,
		},
	}, nil
}
