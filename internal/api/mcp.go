package api

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aupadhyay/thoughts/internal/action"
)

const recentLimit = 10

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Registry *action.Registry
	Version  string
}

// NewMCPServer exposes every registered operation as an MCP tool whose input
// schema is rendered from the same descriptor the dispatcher validates with.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"thoughts",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("thoughts is a local quick-capture note log. Use the tools to capture, search and import thoughts."),
		server.WithRecovery(),
	)

	for _, op := range deps.Registry.Operations() {
		s.AddTool(toolFor(op), mcpInvoke(op))
	}

	if op, ok := deps.Registry.Lookup("getThoughts"); ok {
		s.AddResource(
			mcp.NewResource(
				"thoughts://recent",
				"Recent Thoughts",
				mcp.WithResourceDescription(fmt.Sprintf("Last %d captured thoughts", recentLimit)),
				mcp.WithMIMEType("application/json"),
			),
			mcpResourceRecent(op),
		)
	}

	return s
}

func toolFor(op action.Operation) mcp.Tool {
	schema, err := json.Marshal(op.Input().JSONSchema())
	if err != nil {
		// JSONSchema only produces maps, slices, strings and bools.
		panic(fmt.Sprintf("encoding input schema of %s: %v", op.Name(), err))
	}
	return mcp.NewToolWithRawSchema(op.Name(), op.Description(), schema)
}

func mcpInvoke(op action.Operation) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var raw json.RawMessage
		if args := req.GetRawArguments(); args != nil {
			b, err := json.Marshal(args)
			if err != nil {
				return mcpError(fmt.Sprintf("invalid arguments: %v", err)), nil
			}
			raw = b
		}

		out, err := op.Invoke(ctx, raw)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(string(out)), nil
	}
}

func mcpResourceRecent(op action.Operation) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		out, err := op.Invoke(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list thoughts: %w", err)
		}

		var thoughts []map[string]any
		if err := json.Unmarshal(out, &thoughts); err != nil {
			return nil, fmt.Errorf("failed to decode thoughts: %w", err)
		}
		if len(thoughts) > recentLimit {
			thoughts = thoughts[:recentLimit]
		}
		for _, t := range thoughts {
			if content, ok := t["content"].(string); ok && utf8.RuneCountInString(content) > 200 {
				t["content"] = string([]rune(content)[:200]) + "..."
			}
			delete(t, "metadata")
		}

		b, err := json.Marshal(thoughts)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal thoughts: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
