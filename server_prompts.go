package mcp

import (
	"context"
	"net/http"
	"sort"
)

// AddPrompt registers a dynamic prompt backed by a handler.
func (s *Server) AddPrompt(decl *PromptBuilder, handler PromptHandler) error {
	return s.addPrompt(decl, handler)
}

// AddStaticPrompt registers a prompt whose only implementation is its
// literal Template — no handler is required. A prompt with an empty
// Template is rejected at call time with a ParseError.
func (s *Server) AddStaticPrompt(decl *PromptBuilder) error {
	if decl.template == "" {
		return newParseErrorWithHint(
			`use mcp.NewPrompt(...).Template("...") for a static prompt, or AddPrompt with a handler`,
			"prompt %q has no template and no handler: it is incomplete", decl.name)
	}
	return s.addPrompt(decl, decl.staticHandler())
}

func (s *Server) addPrompt(decl *PromptBuilder, handler PromptHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.prompts[decl.name]; exists {
		return newParseError("duplicate prompt name %q", decl.name)
	}

	visibility := ToolVisibilityNative
	if decl.discoverable {
		visibility = ToolVisibilityDiscoverable
		s.hasDiscoverableTools = true
		s.internalRegistry.RegisterPrompt(decl, handler)
	}

	s.prompts[decl.name] = &registeredPrompt{Decl: decl, Handler: handler, Visibility: visibility}
	return nil
}

// ListPrompts returns the prompts visible under normal (non-show-all) rules.
func (s *Server) ListPrompts() []MCPPrompt {
	return s.ListPromptsWithContext(context.Background())
}

// ListPromptsWithContext returns prompts, honoring show-all mode from the context.
func (s *Server) ListPromptsWithContext(ctx context.Context) []MCPPrompt {
	showAll := GetShowAllTools(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]MCPPrompt, 0, len(s.prompts))
	for _, rp := range s.prompts {
		if showAll || rp.Visibility == ToolVisibilityNative {
			wire := rp.Decl.toMCPPrompt()
			wire.Visibility = rp.Visibility
			result = append(result, wire)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// GetPrompt renders a prompt by name with the given arguments.
func (s *Server) GetPrompt(ctx context.Context, name string, args map[string]string) (*GetPromptResult, error) {
	s.mu.RLock()
	rp, exists := s.prompts[name]
	s.mu.RUnlock()

	if !exists {
		return nil, ErrUnknownTool
	}

	for _, a := range rp.Decl.arguments {
		if a.Required {
			if _, ok := args[a.Name]; !ok {
				return nil, NewToolErrorInvalidParams("missing required argument: " + a.Name)
			}
		}
	}

	return rp.Handler(ctx, NewPromptRequest(args))
}

func (s *Server) handlePromptsList(w http.ResponseWriter, r *http.Request, req *MCPRequest) {
	s.sendMCPResponse(w, req.ID, map[string]interface{}{"prompts": s.ListPromptsWithContext(r.Context())})
}

func (s *Server) handlePromptsGet(w http.ResponseWriter, r *http.Request, req *MCPRequest) {
	var params PromptGetParams
	if err := s.parseParams(req, &params); err != nil {
		s.sendMCPError(w, req.ID, ErrorCodeInvalidParams, "Invalid params", nil)
		return
	}

	result, err := s.GetPrompt(r.Context(), params.Name, params.Arguments)
	if err != nil {
		if err == ErrUnknownTool {
			s.sendMCPError(w, req.ID, ErrorCodeInvalidParams, "Unknown prompt: "+params.Name, nil)
			return
		}
		if toolErr, ok := err.(*ToolError); ok {
			s.sendMCPError(w, req.ID, toolErr.Code, toolErr.Message, toolErr.Data)
			return
		}
		s.sendMCPError(w, req.ID, ErrorCodeInternalError, "Prompt render failed: "+err.Error(), nil)
		return
	}

	s.sendMCPResponse(w, req.ID, result)
}
