package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ResourceHandler produces a ResourceResponse for a dynamic resource, given
// the exact URI the client requested (useful for templated resources sharing
// one handler across a URI prefix).
type ResourceHandler func(ctx context.Context, uri string) (*ResourceResponse, error)

// ResourceBuilder provides a fluent API for building resource declarations,
// generalizing the teacher's resource_response.go content helpers to the
// resources/list and resources/read verbs.
type ResourceBuilder struct {
	uri          string
	name         string
	description  string
	mimeType     string
	discoverable bool
	keywords     []string

	literalText string
	literalBlob []byte
	hasLiteral  bool
}

// NewResource declares a resource identified by uri.
func NewResource(uri, name, description, mimeType string) *ResourceBuilder {
	return &ResourceBuilder{uri: uri, name: name, description: description, mimeType: mimeType}
}

// Text attaches literal static text content, making the resource "static":
// complete without any handler at registration time.
func (r *ResourceBuilder) Text(text string) *ResourceBuilder {
	r.literalText = text
	r.hasLiteral = true
	return r
}

// Blob attaches literal static binary content.
func (r *ResourceBuilder) Blob(data []byte) *ResourceBuilder {
	r.literalBlob = data
	r.hasLiteral = true
	return r
}

// Discoverable marks the resource as discoverable via tool_search instead of
// appearing directly in resources/list.
func (r *ResourceBuilder) Discoverable(keywords ...string) *ResourceBuilder {
	r.discoverable = true
	r.keywords = keywords
	return r
}

// URI returns the resource's URI.
func (r *ResourceBuilder) URI() string { return r.uri }

// IsDiscoverable reports whether the resource was marked Discoverable.
func (r *ResourceBuilder) IsDiscoverable() bool { return r.discoverable }

// IsUI reports whether this is a `ui://` resource, which per §3.2 must carry
// a text/html (or text/uri-list) mime type and static content — the renderer
// is always a sandboxed iframe/worker fed from a single read, never a
// long-lived dynamic channel.
func (r *ResourceBuilder) IsUI() bool {
	return strings.HasPrefix(r.uri, "ui://")
}

// validateUIConstraints enforces §3.2 rule 6: a ui:// resource must be
// static (literal content, no handler) and must declare an html or
// uri-list mime type.
func (r *ResourceBuilder) validateUIConstraints(hasHandler bool) error {
	if !r.IsUI() {
		return nil
	}
	if hasHandler {
		return fmt.Errorf("resource %q: ui:// resources must be static (literal content), not handler-backed", r.uri)
	}
	if r.mimeType != "text/html" && r.mimeType != "text/uri-list" {
		return fmt.Errorf("resource %q: ui:// resources must declare mimeType text/html or text/uri-list, got %q", r.uri, r.mimeType)
	}
	return nil
}

func (r *ResourceBuilder) toMCPResource() MCPResource {
	visibility := ToolVisibilityNative
	if r.discoverable {
		visibility = ToolVisibilityDiscoverable
	}
	return MCPResource{URI: r.uri, Name: r.name, Description: r.description, MimeType: r.mimeType, Visibility: visibility}
}

// htmlSanitizer strips unsafe markup from any resource content whose mime
// type claims to be HTML before it is returned by ReadResource (and so over
// resources/read), so a dynamic resource handler can never smuggle a script
// tag to the client.
var htmlSanitizer = bluemonday.UGCPolicy()

func sanitizeIfHTML(mimeType, text string) string {
	if mimeType == "text/html" {
		return htmlSanitizer.Sanitize(text)
	}
	return text
}

// staticHandler returns a ResourceHandler that serves the builder's literal
// content, used when a resource is registered with AddStaticResource.
func (r *ResourceBuilder) staticHandler() ResourceHandler {
	if r.literalBlob != nil {
		data := r.literalBlob
		mimeType := r.mimeType
		uri := r.uri
		return func(ctx context.Context, _ string) (*ResourceResponse, error) {
			return NewResourceResponseBlob(uri, data, mimeType), nil
		}
	}
	text := r.literalText
	mimeType := r.mimeType
	uri := r.uri
	return func(ctx context.Context, _ string) (*ResourceResponse, error) {
		return NewResourceResponseText(uri, sanitizeIfHTML(mimeType, text), mimeType), nil
	}
}
