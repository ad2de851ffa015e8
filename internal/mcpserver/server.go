// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes leveling queries for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/leveler/internal/apperr"
	"github.com/starford/leveler/internal/query"
)

// CurveURI is the resource URI of the XP curve.
const CurveURI = "leveler://curve"

// Server wraps the MCP server with leveling tools.
type Server struct {
	mcp     *server.MCPServer
	queries *query.Service
}

// New creates a new MCP server with all leveling tools registered.
func New(queries *query.Service, version string) *Server {
	s := &Server{queries: queries}

	s.mcp = server.NewMCPServer(
		"Leveler",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_rank",
		mcp.WithDescription("Get a member's level, XP and progress towards the next level."),
		mcp.WithString("community_id", mcp.Required(), mcp.Description("Community (server) identifier")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Member identifier")),
	), s.getRank)

	s.mcp.AddTool(mcp.NewTool("get_leaderboard",
		mcp.WithDescription("List the top members of a community by XP."),
		mcp.WithString("community_id", mcp.Required(), mcp.Description("Community (server) identifier")),
		mcp.WithNumber("limit", mcp.Description("Maximum entries (default 10, max 100)")),
	), s.getLeaderboard)

	s.mcp.AddTool(mcp.NewTool("get_levels",
		mcp.WithDescription("Returns the XP threshold of every level."),
	), s.getLevels)

	s.mcp.AddResource(
		mcp.NewResource(CurveURI, "XP Curve",
			mcp.WithResourceDescription("Level thresholds and the max-level rule."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readCurveResource,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getRank(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	community, err := req.RequireString("community_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	user, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rank, err := s.queries.RankOf(ctx, community, user)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("user not found: %s", user)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(rank)
}

func (s *Server) getLeaderboard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	community, err := req.RequireString("community_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", 0)

	recs, err := s.queries.Leaderboard(ctx, community, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(recs) == 0 {
		return mcp.NewToolResultText("no members ranked yet"), nil
	}
	return jsonResult(recs)
}

func (s *Server) getLevels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.queries.Levels())
}

func (s *Server) readCurveResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      CurveURI,
			MIMEType: "text/markdown",
			Text:     CurveMarkdown(s.queries.Levels(), s.queries.MaxLevel()),
		},
	}, nil
}
