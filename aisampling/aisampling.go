// Package aisampling implements mcp.SamplingBackend against an
// OpenAI-compatible /chat/completions endpoint, so a server can configure a
// non-interactive fallback for Context.Sample when the connected MCP client
// never declares sampling capability at initialize.
//
// This lives in its own leaf package rather than inside mcp so the root
// package never has to import an HTTP client or provider SDK of its own;
// aisampling imports mcp and is imported by nobody in it.
package aisampling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	mcp "github.com/Clockwork-Innovations/go-mcp-forge"
)

// Adapter calls an OpenAI-compatible chat-completions endpoint to satisfy
// mcp.SamplingBackend. It is deliberately narrow: one request shape, one
// response shape, no streaming, no tool-calling loop, no Responses API.
type Adapter struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// New builds an Adapter against baseURL (e.g. "https://api.openai.com/v1")
// using apiKey for bearer auth and model for every request. An http.Client
// with a generous default timeout is used if client is nil.
func New(baseURL, apiKey, model string, client *http.Client) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Adapter{baseURL: baseURL, apiKey: apiKey, model: model, http: client}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CreateMessage translates an mcp.SamplingRequest into a chat-completions
// call and translates the first choice back into an mcp.SamplingResult.
func (a *Adapter) CreateMessage(ctx context.Context, req mcp.SamplingRequest) (*mcp.SamplingResult, error) {
	messages := make([]chatMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	chatReq := chatCompletionRequest{Model: a.model, Messages: messages, MaxTokens: req.MaxTokens}
	if req.Temperature != 0 {
		temp := req.Temperature
		chatReq.Temperature = &temp
	}

	resp, err := a.doRequest(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("sampling fallback: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("sampling fallback: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("sampling fallback: empty response")
	}
	choice := resp.Choices[0]
	return &mcp.SamplingResult{
		Role:       "assistant",
		Content:    choice.Message.Content,
		Model:      resp.Model,
		StopReason: choice.FinishReason,
	}, nil
}

func (a *Adapter) doRequest(ctx context.Context, chatReq chatCompletionRequest) (*chatCompletionResponse, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	httpResp, err := a.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("decoding response (status %d): %w", httpResp.StatusCode, err)
	}
	if httpResp.StatusCode != http.StatusOK && chatResp.Error == nil {
		return nil, fmt.Errorf("unexpected status %d: %s", httpResp.StatusCode, string(respBody))
	}
	return &chatResp, nil
}
