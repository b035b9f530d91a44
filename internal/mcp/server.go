package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/joescharf/marie/internal/commands"
)

// ToolPrefix is prepended to every command name.
const ToolPrefix = "marie_"

// Server exposes the command table as MCP tools.
type Server struct {
	dispatcher *commands.Dispatcher
	version    string
	logger     *zap.Logger
}

// NewServer creates the MCP server wrapper over the dispatcher.
func NewServer(d *commands.Dispatcher, version string, logger *zap.Logger) *Server {
	if version == "" {
		version = "dev"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{dispatcher: d, version: version, logger: logger}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("marie", s.version, server.WithToolCapabilities(true))
	for _, t := range s.Tools() {
		srv.AddTool(t.Tool, t.Handler)
	}
	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// Tools builds one tool per command.
func (s *Server) Tools() []server.ServerTool {
	cmds := s.dispatcher.Commands()
	out := make([]server.ServerTool, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, server.ServerTool{Tool: toolFor(c), Handler: s.handlerFor(c.Name)})
	}
	return out
}

func toolFor(c *commands.Command) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(c.Description)}
	for _, p := range c.Params {
		props := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			props = append(props, mcp.Required())
		}
		switch p.Type {
		case "boolean":
			opts = append(opts, mcp.WithBoolean(p.Name, props...))
		case "number":
			opts = append(opts, mcp.WithNumber(p.Name, props...))
		case "object":
			opts = append(opts, mcp.WithObject(p.Name, props...))
		case "array":
			opts = append(opts, mcp.WithArray(p.Name, props...))
		default:
			opts = append(opts, mcp.WithString(p.Name, props...))
		}
	}
	return mcp.NewTool(ToolPrefix+c.Name, opts...)
}

// handlerFor passes the tool arguments through as the command's JSON args.
// Command failures become tool error results.
func (s *Server) handlerFor(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var raw json.RawMessage
		if args := request.GetArguments(); len(args) > 0 {
			data, err := json.Marshal(args)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid args: %v", err)), nil
			}
			raw = data
		}

		result, err := s.dispatcher.Invoke(ctx, name, raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if text, ok := result.(string); ok {
			return mcp.NewToolResultText(text), nil
		}
		data, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}
