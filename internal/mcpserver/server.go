// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the fsgate commands as tools over stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/fsgate/internal/command"
	"github.com/starford/fsgate/internal/gateway"
)

// CallerMCP is recorded in the audit log for tool calls.
const CallerMCP = "mcp"

const commandsURI = "fsgate://commands"

// Server wraps the MCP server with the fsgate tools.
type Server struct {
	mcp *server.MCPServer
	reg *command.Registry
}

// New creates a new MCP server with one tool per registered command.
func New(reg *command.Registry, version string) *Server {
	s := &Server{reg: reg}

	s.mcp = server.NewMCPServer(
		"fsgate",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool(string(gateway.OpCreateDir),
		mcp.WithDescription(s.describe(gateway.OpCreateDir)),
		mcp.WithString("path", mcp.Required(), mcp.Description("Directory to create, absolute or relative to the sandbox root")),
	), s.handler(gateway.OpCreateDir))

	s.mcp.AddTool(mcp.NewTool(string(gateway.OpReadFile),
		mcp.WithDescription(s.describe(gateway.OpReadFile)),
		mcp.WithString("path", mcp.Required(), mcp.Description("File to read, absolute or relative to the sandbox root")),
	), s.handler(gateway.OpReadFile))

	s.mcp.AddTool(mcp.NewTool(string(gateway.OpWriteFile),
		mcp.WithDescription(s.describe(gateway.OpWriteFile)),
		mcp.WithString("path", mcp.Required(), mcp.Description("File to replace or create; its directory must exist")),
		mcp.WithString("contents", mcp.Required(), mcp.Description("Full text of the file")),
	), s.handler(gateway.OpWriteFile))

	s.mcp.AddResource(
		mcp.NewResource(commandsURI, "Command Descriptors",
			mcp.WithResourceDescription("Names, descriptions and JSON parameter schemas of all commands."),
			mcp.WithMIMEType("application/json"),
		),
		s.readCommandsResource,
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

func (s *Server) describe(op gateway.Op) string {
	d, _ := s.reg.Lookup(string(op))
	return d.Description
}

// handler forwards the tool arguments to the registry unchanged, so MCP
// calls are validated exactly like HTTP ones.
func (s *Server) handler(op gateway.Op) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("InvalidArgument: %v", err)), nil
		}
		res := s.reg.Invoke(ctx, CallerMCP, string(op), raw)
		if !res.OK() {
			return mcp.NewToolResultError(fmt.Sprintf("%s: %s", res.Failure.Kind, res.Failure.Message())), nil
		}
		if res.Content != nil {
			return mcp.NewToolResultText(*res.Content), nil
		}
		return mcp.NewToolResultText("ok"), nil
	}
}

func (s *Server) readCommandsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	out, err := json.MarshalIndent(s.reg.Describe(), "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      commandsURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}
