package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/aldercy/wyrd/internal/graphservice"
	"github.com/aldercy/wyrd/internal/models"
	"github.com/aldercy/wyrd/internal/registry"
)

func testServer(t *testing.T) (*Server, *graphservice.Service) {
	t.Helper()
	svc := graphservice.NewService(registry.New(), nil, nil, nil, nil)
	return New(svc), svc
}

func seedNote(t *testing.T, svc *graphservice.Service, title string) models.Object {
	t.Helper()
	res, err := svc.Create(context.Background(), models.NewNote(title, title+" gist"))
	if err != nil {
		t.Fatal(err)
	}
	return res.Object
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handler functions
	// are exercised directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "get_object":
		result, err = srv.getObject(ctx, req)
	case "list_objects":
		result, err = srv.listObjects(ctx, req)
	case "assemble_context":
		result, err = srv.assembleContext(ctx, req)
	case "resolve_at":
		result, err = srv.resolveAt(ctx, req)
	case "preview_delete":
		result, err = srv.previewDelete(ctx, req)
	case "check_link":
		result, err = srv.checkLink(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestGetObjectTool(t *testing.T) {
	srv, svc := testServer(t)
	note := seedNote(t, svc, "Hollowmere")

	r := callTool(t, srv, "get_object", map[string]interface{}{"id": note.ID})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	var got models.Object
	if err := json.Unmarshal([]byte(resultText(r)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Title != "Hollowmere" {
		t.Errorf("title = %q", got.Title)
	}

	r = callTool(t, srv, "get_object", map[string]interface{}{"id": "ghost"})
	if !r.IsError {
		t.Error("expected error for missing id")
	}
}

func TestListObjectsToolKindFilter(t *testing.T) {
	srv, svc := testServer(t)
	a := seedNote(t, svc, "A")
	b := seedNote(t, svc, "B")
	if _, err := svc.Create(context.Background(),
		models.NewLink(a.ID, b.ID, "knows", "", models.LinkSemantic)); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "list_objects", map[string]interface{}{})
	if got := len(strings.Split(resultText(r), "\n")); got != 3 {
		t.Errorf("unfiltered lines = %d, want 3", got)
	}

	r = callTool(t, srv, "list_objects", map[string]interface{}{"kind": "link"})
	text := resultText(r)
	if got := len(strings.Split(text, "\n")); got != 1 || !strings.Contains(text, "link") {
		t.Errorf("filtered = %q", text)
	}

	r = callTool(t, srv, "list_objects", map[string]interface{}{"kind": "snapshot"})
	if resultText(r) != "no objects" {
		t.Errorf("empty filter = %q", resultText(r))
	}
}

func TestAssembleContextTool(t *testing.T) {
	srv, svc := testServer(t)
	note := seedNote(t, svc, "Muse")

	mentions, _ := json.Marshal([]map[string]interface{}{{"id": note.ID, "score": 9}})
	r := callTool(t, srv, "assemble_context", map[string]interface{}{
		"mentions": string(mentions),
		"budget":   3,
	})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "[IMP: 09] Muse") {
		t.Errorf("result = %q", resultText(r))
	}

	r = callTool(t, srv, "assemble_context", map[string]interface{}{
		"mentions": "{not an array",
		"budget":   3,
	})
	if !r.IsError {
		t.Error("expected error for malformed mentions")
	}
}

func TestResolveAtTool(t *testing.T) {
	srv, svc := testServer(t)
	city := models.NewNote("City", "")
	city.CreatedAt = time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := svc.Create(context.Background(), city)
	if err != nil {
		t.Fatal(err)
	}
	snap := models.NewSnapshot(res.Object.ID,
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), nil, "late era")
	snap.Title = "Ruined City"
	if _, err := svc.Create(context.Background(), snap); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "resolve_at", map[string]interface{}{"at": "2021-06-01T00:00:00Z"})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "Ruined City") {
		t.Errorf("resolved output missing sliced title: %q", resultText(r))
	}

	r = callTool(t, srv, "resolve_at", map[string]interface{}{"at": "yesterday"})
	if !r.IsError {
		t.Error("expected error for bad instant")
	}
}

func TestPreviewDeleteTool(t *testing.T) {
	srv, svc := testServer(t)
	parent := seedNote(t, svc, "Parent")
	child := seedNote(t, svc, "Child")
	if _, err := svc.Create(context.Background(),
		models.NewLink(parent.ID, child.ID, "contains", "", models.LinkHierarchical)); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "preview_delete", map[string]interface{}{
		"id": parent.ID, "profile": "structural_cascade",
	})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	if got := len(strings.Split(resultText(r), "\n")); got != 3 {
		t.Errorf("blast radius = %d lines, want 3", got)
	}

	r = callTool(t, srv, "preview_delete", map[string]interface{}{
		"id": parent.ID, "profile": "bogus",
	})
	if !r.IsError {
		t.Error("expected error for unknown profile")
	}
}

func TestCheckLinkTool(t *testing.T) {
	srv, svc := testServer(t)
	a := seedNote(t, svc, "A")
	b := seedNote(t, svc, "B")
	if _, err := svc.Create(context.Background(),
		models.NewLink(a.ID, b.ID, "knows", "", models.LinkSemantic)); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "check_link", map[string]interface{}{
		"source_id": a.ID, "target_id": b.ID, "verb": "knows", "link_kind": "semantic",
	})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "duplicate") {
		t.Errorf("analysis = %q", resultText(r))
	}
}

func TestObjectFormatResource(t *testing.T) {
	srv, _ := testServer(t)

	contents, err := srv.readObjectFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatal("expected text resource contents")
	}
	if !strings.Contains(tc.Text, "time_state") {
		t.Error("contract missing temporal section")
	}
}
