package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mbocsi/teleop/control"
	teleop "github.com/mbocsi/teleop/server"
)

type MCPServer struct {
	Server *server.MCPServer
}

// NewMCPServer wraps a stdio MCP server exposing the controller's
// status and emergency stop as tools.
func NewMCPServer(transport *teleop.Transport, state *control.State) *MCPServer {
	s := &MCPServer{Server: server.NewMCPServer("Teleop Controller", "1.0.0")}

	status := mcp.NewTool("teleop_status", mcp.WithDescription("Get the controller endpoint's connection state and last emitted action"))
	s.Server.AddTool(status, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		meta := transport.Meta()
		res := map[string]any{
			"listening": meta.Connected,
			"address":   meta.Address,
			"local_ip":  meta.LocalIP,
			"connected": meta.PeerID != "",
			"peer_id":   meta.PeerID,
			"peer_addr": meta.PeerAddr,
			"action":    state.Snapshot(),
		}

		jsonBytes, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return nil, err
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: string(jsonBytes),
				},
			}}, nil
	})

	stop := mcp.NewTool("emergency_stop", mcp.WithDescription("Zero every velocity and emit one all-zero action immediately"))
	s.Server.AddTool(stop, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		state.EmergencyStop()
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: "stopped",
				},
			}}, nil
	})

	return s
}

func (s *MCPServer) Start() error {
	slog.Info("Started stdio MCP server")
	defer func() {
		slog.Info("Shut down stdio MCP server")
	}()
	return server.ServeStdio(s.Server)
}
