package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	mcp "github.com/Clockwork-Innovations/go-mcp-forge"
)

func main() {
	server := mcp.NewServer("example-mcp-server", "1.0.0")

	server.RegisterTool(
		mcp.NewTool("hello", "Say hello to someone",
			mcp.String("name", "The name to greet", mcp.Required()),
			mcp.String("greeting", "Custom greeting"),
			mcp.Output(
				mcp.String("message", "The greeting message", mcp.Required()),
			),
		),
		func(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
			name, err := req.String("name")
			if err != nil {
				return nil, err
			}
			greeting := req.StringOr("greeting", "Hello")
			out := map[string]interface{}{
				"message": fmt.Sprintf("%s, %s!", greeting, name),
			}
			return mcp.NewToolResponseStructured(out), nil
		},
	)

	server.RegisterTool(
		mcp.NewTool("hello2", "Say hello to someone again",
			mcp.String("name", "The name to greet", mcp.Required()),
			mcp.String("greeting", "Custom greeting"),
		),
		func(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
			name, err := req.String("name")
			if err != nil {
				return nil, err
			}
			greeting := req.StringOr("greeting", "Hello")
			return mcp.NewToolResponseMulti(
				mcp.NewToolResponseText(fmt.Sprintf("%s, %s!", greeting, name)),
				mcp.NewToolResponseText("A fixed line of text"),
			), nil
		},
	)

	err := server.AddResource(
		mcp.NewResource("file://example.txt", "Example Text File", "A simple example text file", "text/plain"),
		func(ctx context.Context, uri string) (*mcp.ResourceResponse, error) {
			return mcp.NewResourceResponseText(uri, "Hello from resource!", "text/plain"), nil
		},
	)
	if err != nil {
		log.Fatal(err)
	}

	err = server.AddResource(
		mcp.NewResource("config://app-settings", "Application Settings", "Current application configuration", "application/json"),
		func(ctx context.Context, uri string) (*mcp.ResourceResponse, error) {
			config := map[string]interface{}{
				"version": "1.0.0",
				"debug":   true,
				"port":    8000,
			}
			configJSON, _ := json.Marshal(config)
			return mcp.NewResourceResponseText(uri, string(configJSON), "application/json"), nil
		},
	)
	if err != nil {
		log.Fatal(err)
	}

	err = server.AddPrompt(
		mcp.NewPrompt("greeting-prompt", "Draft a greeting message",
			mcp.Arg("name", "Who to greet", true),
		),
		func(ctx context.Context, req *mcp.PromptRequest) (*mcp.GetPromptResult, error) {
			name := req.String("name")
			return &mcp.GetPromptResult{
				Description: "A friendly greeting",
				Messages: []mcp.PromptMessage{
					{Role: "user", Content: mcp.ToolContent{Type: "text", Text: "Write a short greeting for " + name}},
				},
			}, nil
		},
	)
	if err != nil {
		log.Fatal(err)
	}

	mux := mcp.NewHTTPMux(server)
	fmt.Println("MCP server starting on port 8000...")
	log.Fatal(http.ListenAndServe(":8000", mux))
}
