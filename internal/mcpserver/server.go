// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes Wyrd graph tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aldercy/wyrd/internal/assembler"
	"github.com/aldercy/wyrd/internal/cascade"
	"github.com/aldercy/wyrd/internal/graphservice"
	"github.com/aldercy/wyrd/internal/models"
)

// Server wraps the MCP server with Wyrd tools.
type Server struct {
	mcp *server.MCPServer
	svc *graphservice.Service
}

// New creates a new MCP server with all Wyrd tools registered.
func New(svc *graphservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Wyrd",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_object",
		mcp.WithDescription("Read one graph object (note, container, link, reified link, or snapshot) by id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Object id")),
	), s.getObject)

	s.mcp.AddTool(mcp.NewTool("list_objects",
		mcp.WithDescription("List objects in the graph, optionally filtered by kind."),
		mcp.WithString("kind", mcp.Description("Optional kind filter: note, link, reified_link, snapshot")),
	), s.listObjects)

	s.mcp.AddTool(mcp.NewTool("assemble_context",
		mcp.WithDescription("Build a bounded prompt context from weighted mentions. "+
			"mentions is a JSON array of {id, score, target_instant?, children?}; "+
			"see the wyrd://object-format resource for the object model."),
		mcp.WithString("mentions", mcp.Required(), mcp.Description("JSON array of mention objects")),
		mcp.WithNumber("budget", mcp.Required(), mcp.Description("Maximum number of context items")),
	), s.assembleContext)

	s.mcp.AddTool(mcp.NewTool("resolve_at",
		mcp.WithDescription("Materialize the graph at a point in time (RFC3339). "+
			"Identities keep their ids; content is swapped for the snapshot valid at that instant."),
		mcp.WithString("at", mcp.Required(), mcp.Description("Target instant, RFC3339")),
	), s.resolveAt)

	s.mcp.AddTool(mcp.NewTool("preview_delete",
		mcp.WithDescription("Compute the deletion blast radius for an object without deleting anything. "+
			"profile is one of structural_orphan, structural_cascade, temporal_causal, holistic."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Object id")),
		mcp.WithString("profile", mcp.Required(), mcp.Description("Deletion profile")),
	), s.previewDelete)

	s.mcp.AddTool(mcp.NewTool("check_link",
		mcp.WithDescription("Advisory integrity analysis for a proposed link between two objects."),
		mcp.WithString("source_id", mcp.Required(), mcp.Description("Source object id")),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("Target object id")),
		mcp.WithString("verb", mcp.Required(), mcp.Description("Forward verb label")),
		mcp.WithString("link_kind", mcp.Required(), mcp.Description("hierarchical or semantic")),
	), s.checkLink)

	// Resource: snapshot document contract.
	s.mcp.AddResource(
		mcp.NewResource("wyrd://object-format", "Object Format Contract",
			mcp.WithResourceDescription("Canonical JSON object model used by the registry snapshot document."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readObjectFormatResource,
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

func (s *Server) getObject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	obj, err := s.svc.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(obj, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listObjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := ""
	if k, err := req.RequireString("kind"); err == nil {
		kind = k
	}

	var lines []string
	for _, obj := range s.svc.Graph(ctx) {
		if kind != "" && string(obj.Kind) != kind {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", obj.ID, obj.Kind, obj.DisplayTitle()))
	}
	if len(lines) == 0 {
		return mcp.NewToolResultText("no objects"), nil
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) assembleContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("mentions")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	budget, err := req.RequireInt("budget")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var mentions []assembler.Mention
	if err := json.Unmarshal([]byte(raw), &mentions); err != nil {
		return mcp.NewToolResultError("mentions json: " + err.Error()), nil
	}
	res := s.svc.AssembleContext(ctx, mentions, budget)
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) resolveAt(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("at")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return mcp.NewToolResultError("invalid instant, want RFC3339: " + err.Error()), nil
	}
	objs, annotations := s.svc.ResolveAt(ctx, at)
	out, _ := json.MarshalIndent(map[string]any{
		"objects":     objs,
		"annotations": annotations,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) previewDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawProfile, err := req.RequireString("profile")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	profile := cascade.Profile(rawProfile)
	if !profile.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown profile: %s", rawProfile)), nil
	}
	removed, err := s.svc.PreviewDelete(ctx, id, profile)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	if len(removed) == 0 {
		return mcp.NewToolResultText("nothing to remove"), nil
	}
	return mcp.NewToolResultText(strings.Join(removed, "\n")), nil
}

func (s *Server) checkLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceID, err := req.RequireString("source_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	targetID, err := req.RequireString("target_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	verb, err := req.RequireString("verb")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := req.RequireString("link_kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	analysis := s.svc.AnalyzeLink(ctx, sourceID, targetID, verb, models.LinkKind(kind))
	out, _ := json.MarshalIndent(analysis, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readObjectFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "wyrd://object-format",
			MIMEType: "text/markdown",
			Text:     ObjectFormatContract,
		},
	}, nil
}
