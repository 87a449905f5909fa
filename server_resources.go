package mcp

import (
	"context"
	"net/http"
	"sort"
)

// AddResource registers a dynamic resource backed by a handler.
func (s *Server) AddResource(decl *ResourceBuilder, handler ResourceHandler) error {
	if err := decl.validateUIConstraints(true); err != nil {
		return err
	}
	return s.addResource(decl, handler)
}

// AddStaticResource registers a resource whose only implementation is its
// literal Text/Blob content.
func (s *Server) AddStaticResource(decl *ResourceBuilder) error {
	if !decl.hasLiteral {
		return newParseErrorWithHint(
			`use .Text(...) or .Blob(...) for a static resource, or AddResource with a handler`,
			"resource %q has no literal content and no handler: it is incomplete", decl.uri)
	}
	if err := decl.validateUIConstraints(false); err != nil {
		return err
	}
	return s.addResource(decl, decl.staticHandler())
}

func (s *Server) addResource(decl *ResourceBuilder, handler ResourceHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.resources[decl.uri]; exists {
		return newParseError("duplicate resource uri %q", decl.uri)
	}

	visibility := ToolVisibilityNative
	if decl.discoverable {
		visibility = ToolVisibilityDiscoverable
		s.hasDiscoverableTools = true
		s.internalRegistry.RegisterResource(decl, handler)
	}

	s.resources[decl.uri] = &registeredResource{Decl: decl, Handler: handler, Visibility: visibility}
	return nil
}

// ListResources returns resources visible under normal (non-show-all) rules.
func (s *Server) ListResources() []MCPResource {
	return s.ListResourcesWithContext(context.Background())
}

// ListResourcesWithContext returns resources, honoring show-all mode from the context.
func (s *Server) ListResourcesWithContext(ctx context.Context) []MCPResource {
	showAll := GetShowAllTools(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]MCPResource, 0, len(s.resources))
	for _, rr := range s.resources {
		if showAll || rr.Visibility == ToolVisibilityNative {
			wire := rr.Decl.toMCPResource()
			wire.Visibility = rr.Visibility
			result = append(result, wire)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].URI < result[j].URI })
	return result
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (*ResourceResponse, error) {
	s.mu.RLock()
	rr, exists := s.resources[uri]
	s.mu.RUnlock()

	if !exists {
		return nil, ErrUnknownTool
	}
	resp, err := rr.Handler(ctx, uri)
	if err != nil || resp == nil {
		return resp, err
	}
	for i := range resp.Contents {
		resp.Contents[i].Text = sanitizeIfHTML(resp.Contents[i].MimeType, resp.Contents[i].Text)
	}
	return resp, nil
}

func (s *Server) handleResourcesList(w http.ResponseWriter, r *http.Request, req *MCPRequest) {
	s.sendMCPResponse(w, req.ID, map[string]interface{}{"resources": s.ListResourcesWithContext(r.Context())})
}

func (s *Server) handleResourcesRead(w http.ResponseWriter, r *http.Request, req *MCPRequest) {
	var params ResourceReadParams
	if err := s.parseParams(req, &params); err != nil {
		s.sendMCPError(w, req.ID, ErrorCodeInvalidParams, "Invalid params", nil)
		return
	}

	result, err := s.ReadResource(r.Context(), params.URI)
	if err != nil {
		if err == ErrUnknownTool {
			s.sendMCPError(w, req.ID, ErrorCodeInvalidParams, "Unknown resource: "+params.URI, nil)
			return
		}
		if toolErr, ok := err.(*ToolError); ok {
			s.sendMCPError(w, req.ID, toolErr.Code, toolErr.Message, toolErr.Data)
			return
		}
		s.sendMCPError(w, req.ID, ErrorCodeInternalError, "Resource read failed: "+err.Error(), nil)
		return
	}

	s.sendMCPResponse(w, req.ID, result)
}
