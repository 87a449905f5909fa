package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegisterRemoteServerAndCall(t *testing.T) {
	// remote server with one tool
	remote := NewServer("remote", "1")
	remote.RegisterTool(NewTool("rt", "remote tool", String("x", "x", Required())), func(ctx context.Context, req *ToolRequest) (*ToolResponse, error) {
		v, _ := req.String("x")
		return NewToolResponseText("r:" + v), nil
	})
	ts := httptest.NewServer(http.HandlerFunc(remote.HandleRequest))
	defer ts.Close()

	// host server registers remote under namespace
	host := NewServer("host", "1")
	client := NewClient(ts.URL, NewBearerTokenAuth("t"), "ns")
	if err := host.RegisterRemoteServer(client); err != nil {
		t.Fatalf("register remote: %v", err)
	}

	// List should include namespaced tool
	tools := host.ListTools()
	found := false
	for _, tl := range tools {
		if tl.Name == "ns/rt" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected namespaced tool in list, got %+v", tools)
	}

	// Call through host with namespace
	resp, err := host.CallTool(context.Background(), "ns/rt", map[string]any{"x": "y"})
	if err != nil {
		t.Fatalf("call namespaced: %v", err)
	}
	if len(resp.Content) == 0 || resp.Content[0].Text != "r:y" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRegisterRemoteServerDiscoverableHidesFromListButStaysCallable(t *testing.T) {
	remote := NewServer("remote", "1")
	remote.RegisterTool(NewTool("tool-x", "tool x"), func(ctx context.Context, req *ToolRequest) (*ToolResponse, error) {
		return NewToolResponseText("x"), nil
	})
	ts := httptest.NewServer(http.HandlerFunc(remote.HandleRequest))
	defer ts.Close()

	host := NewServer("host", "1")
	client := NewClient(ts.URL, NewBearerTokenAuth("t"), "ns")
	if err := host.RegisterRemoteServerDiscoverable(client); err != nil {
		t.Fatalf("register discoverable: %v", err)
	}

	if tools := host.ListTools(); len(tools) != 0 {
		t.Fatalf("expected discoverable remote tools to stay out of tools/list, got %+v", tools)
	}

	resp, err := host.CallTool(context.Background(), "ns/tool-x", nil)
	if err != nil {
		t.Fatalf("call discoverable remote tool: %v", err)
	}
	if len(resp.Content) == 0 || resp.Content[0].Text != "x" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRegisterRemoteServerFromTwoServersUsesDistinctNamespaces(t *testing.T) {
	remoteA := NewServer("remoteA", "1")
	remoteA.RegisterTool(NewTool("tool-a", "tool a"), func(ctx context.Context, req *ToolRequest) (*ToolResponse, error) {
		return NewToolResponseText("a"), nil
	})
	tsA := httptest.NewServer(http.HandlerFunc(remoteA.HandleRequest))
	defer tsA.Close()

	remoteB := NewServer("remoteB", "1")
	remoteB.RegisterTool(NewTool("tool-b", "tool b"), func(ctx context.Context, req *ToolRequest) (*ToolResponse, error) {
		return NewToolResponseText("b"), nil
	})
	tsB := httptest.NewServer(http.HandlerFunc(remoteB.HandleRequest))
	defer tsB.Close()

	host := NewServer("host", "1")
	if err := host.RegisterRemoteServer(NewClient(tsA.URL, NewBearerTokenAuth("t"), "a")); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := host.RegisterRemoteServer(NewClient(tsB.URL, NewBearerTokenAuth("t"), "b")); err != nil {
		t.Fatalf("register b: %v", err)
	}

	tools := host.ListTools()
	if len(tools) != 2 {
		t.Fatalf("expected both servers' tools listed under distinct namespaces, got %+v", tools)
	}

	respA, err := host.CallTool(context.Background(), "a/tool-a", nil)
	if err != nil || len(respA.Content) == 0 || respA.Content[0].Text != "a" {
		t.Fatalf("call a/tool-a: resp=%+v err=%v", respA, err)
	}
	respB, err := host.CallTool(context.Background(), "b/tool-b", nil)
	if err != nil || len(respB.Content) == 0 || respB.Content[0].Text != "b" {
		t.Fatalf("call b/tool-b: resp=%+v err=%v", respB, err)
	}
}
