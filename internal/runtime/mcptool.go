package runtime

import (
	"context"
	"fmt"

	sdkclient "github.com/mark3labs/mcp-go/client"
	sdkmcp "github.com/mark3labs/mcp-go/mcp"
)

// MCPServerConfig names the one MCP server an MCPTool dispatches to. This
// exists purely to exercise the registry's `real` contract end to end; it
// still registers zero tools when no endpoint is configured, preserving
// the "fails to register if required credentials/dependencies are absent"
// rule from §4.9.
type MCPServerConfig struct {
	Name      string
	Transport string // "stdio" | "sse"
	Command   string
	Args      []string
	URL       string
}

// MCPTool is a `real`-mode Tool backed by an MCP server connection: its
// Invoke translates a step's argument into an MCP CallTool request and
// renders the text content back as ToolResult.Value.
type MCPTool struct {
	cfg      MCPServerConfig
	toolName string
	inner    sdkclient.MCPClient
}

// NewMCPTool connects to the configured MCP server and returns a Tool
// bound to toolName. It fails (rather than degrading to a stub) if the
// server cannot be reached or the handshake fails, per the registry's
// real-mode contract.
func NewMCPTool(ctx context.Context, cfg MCPServerConfig, toolName string) (*MCPTool, error) {
	var inner sdkclient.MCPClient
	switch cfg.Transport {
	case "stdio":
		cli, err := sdkclient.NewStdioMCPClient(cfg.Command, nil, cfg.Args...)
		if err != nil {
			return nil, fmt.Errorf("mcptool: start stdio server %q: %w", cfg.Name, err)
		}
		inner = cli
	case "sse":
		cli, err := sdkclient.NewSSEMCPClient(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("mcptool: create sse client %q: %w", cfg.Name, err)
		}
		if err := cli.Start(ctx); err != nil {
			return nil, fmt.Errorf("mcptool: start sse client %q: %w", cfg.Name, err)
		}
		inner = cli
	default:
		return nil, fmt.Errorf("mcptool: unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}

	if _, err := inner.Initialize(ctx, sdkmcp.InitializeRequest{
		Params: sdkmcp.InitializeParams{
			ProtocolVersion: sdkmcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      sdkmcp.Implementation{Name: "axon", Version: "0.1.0"},
		},
	}); err != nil {
		_ = inner.Close()
		return nil, fmt.Errorf("mcptool: initialize server %q: %w", cfg.Name, err)
	}

	return &MCPTool{cfg: cfg, toolName: toolName, inner: inner}, nil
}

func (t *MCPTool) Invoke(ctx context.Context, argument any, config map[string]any) (ToolResult, error) {
	args, _ := argument.(map[string]any)

	req := sdkmcp.CallToolRequest{}
	req.Params.Name = t.toolName
	req.Params.Arguments = args

	result, err := t.inner.CallTool(ctx, req)
	if err != nil {
		return ToolResult{}, fmt.Errorf("mcptool: call %q on %q: %w", t.toolName, t.cfg.Name, err)
	}

	var text string
	for _, content := range result.Content {
		if tc, ok := content.(sdkmcp.TextContent); ok {
			text += tc.Text
		}
	}
	if result.IsError {
		return ToolResult{OK: false, Value: text, Err: fmt.Errorf("mcptool: tool %q returned error", t.toolName)}, nil
	}
	return ToolResult{OK: true, Value: text}, nil
}

func (t *MCPTool) Close() error {
	return t.inner.Close()
}

// RegisterMCPTool connects to cfg and registers it into r as a real-mode
// entry. Called at registry assembly time; it returns an error (and
// registers nothing) if the server is unreachable, matching the "fails to
// register if required credentials/dependencies are absent" rule.
func RegisterMCPTool(ctx context.Context, r *Registry, name string, config map[string]any, cfg MCPServerConfig) error {
	if cfg.URL == "" && cfg.Command == "" {
		return fmt.Errorf("mcptool: no endpoint configured for %q, skipping registration", name)
	}
	tool, err := NewMCPTool(ctx, cfg, name)
	if err != nil {
		return err
	}
	r.Register(name, config, ModeReal, tool)
	return nil
}
