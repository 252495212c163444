package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer exposes every registered tool over MCP. Calls go through
// Registry.Execute, so MCP clients see the same text results the model does.
func NewMCPServer(registry *Registry, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"llm-gateway-tools",
		version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	for _, spec := range registry.Specs() {
		s.AddTool(spec, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			params := orderedParams(spec, request.GetArguments())
			return mcp.NewToolResultText(registry.Execute(ctx, spec.Name, params)), nil
		})
	}
	return s
}

// orderedParams flattens named MCP arguments into the positional form tools
// take: required properties in declaration order, then the rest by name.
func orderedParams(spec mcp.Tool, args map[string]any) []string {
	if len(args) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(args))
	params := make([]string, 0, len(args))
	for _, name := range spec.InputSchema.Required {
		if v, ok := args[name]; ok {
			params = append(params, fmt.Sprint(v))
			seen[name] = true
		}
	}

	var rest []string
	for name := range args {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		params = append(params, fmt.Sprint(args[name]))
	}
	return params
}
