package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	mcp "github.com/Clockwork-Innovations/go-mcp-forge"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect the server's registered tools",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tools and their input schemas",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToolsList()
	},
}

func init() {
	toolsCmd.AddCommand(toolsListCmd)
	rootCmd.AddCommand(toolsCmd)
}

func runToolsList() error {
	server, err := buildServer()
	if err != nil {
		return err
	}

	tools := server.ListTools()
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(tools)
}

// registerBuiltinTools registers the small demo toolset mcpserver ships with
// out of the box: enough to exercise every transport and session backend
// without requiring an author to write Go code first. "lookup_doc" is marked
// Discoverable so it shows up only through tool_search/execute_tool, giving
// operators a live example of progressive disclosure alongside the two
// always-visible tools.
func registerBuiltinTools(server *mcp.Server) {
	server.RegisterTool(
		mcp.NewTool("ping", "Check that the server is reachable and report its uptime"),
		func(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
			return mcp.NewToolResponseText(fmt.Sprintf("pong (uptime %s)", time.Since(startTime).Round(time.Second))), nil
		},
	)

	server.RegisterTool(
		mcp.NewTool("echo", "Echo back the given text",
			mcp.String("text", "Text to echo back", mcp.Required()),
		),
		func(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
			text, err := req.String("text")
			if err != nil {
				return nil, err
			}
			return mcp.NewToolResponseText(text), nil
		},
	)

	server.RegisterTool(
		mcp.NewTool("lookup_doc", "Look up one of mcpserver's built-in reference docs by topic",
			mcp.String("topic", "Topic to look up: transports, sessions, or auth", mcp.Required()),
		).Discoverable("docs", "help", "reference", "topic"),
		lookupDocHandler,
	)
}

var builtinDocs = map[string]string{
	"transports": "mcpserver speaks MCP over stdio (--mode stdio) or streamable HTTP with SSE (--mode http, the default).",
	"sessions":   "session-backend selects how server-assigned session IDs are tracked: memory (process-local), jwt (stateless, signed), or redis (shared across replicas).",
	"auth":       "Set --bearer-token one or more times to require an Authorization: Bearer header on inbound HTTP requests.",
}

func lookupDocHandler(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	topic, err := req.String("topic")
	if err != nil {
		return nil, err
	}
	doc, ok := builtinDocs[topic]
	if !ok {
		return nil, mcp.NewToolErrorInvalidParams(fmt.Sprintf("unknown topic %q (want transports, sessions, or auth)", topic))
	}
	return mcp.NewToolResponseText(doc), nil
}

var startTime = time.Now()
