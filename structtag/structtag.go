// Package structtag is the Go-native equivalent of the TypeScript decorator
// metadata store described in SPEC_FULL.md §0/§4.9. TypeScript decorators
// attach metadata to a class method at class-definition time, before any
// instance exists; structtag does the same with package-level registration
// calls (typically made from an init() func) that name a method value and a
// parameter struct type, then defer binding until a live receiver and
// *mcp.Server are available via Bind.
//
// A parameter struct's field tags (mcp, description, enum, min, max,
// minLength, maxLength, required) play the role a decorator argument or
// JSDoc comment would play in TypeScript; they are turned into a JSON
// Schema by the schema package at Bind time, not at declaration time, so
// declaration order never matters.
package structtag

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	mcp "github.com/Clockwork-Innovations/go-mcp-forge"
	"github.com/Clockwork-Innovations/go-mcp-forge/schema"
)

type toolEntry struct {
	name         string
	description  string
	discoverable bool
	keywords     []string
	receiverType reflect.Type
	paramType    reflect.Type
	invoke       func(receiver interface{}, ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error)
}

type promptEntry struct {
	name         string
	description  string
	arguments    []mcp.PromptArgument
	discoverable bool
	receiverType reflect.Type
	invoke       func(receiver interface{}, ctx context.Context, req *mcp.PromptRequest) (*mcp.GetPromptResult, error)
}

type resourceEntry struct {
	uri          string
	name         string
	description  string
	mimeType     string
	discoverable bool
	receiverType reflect.Type
	invoke       func(receiver interface{}, ctx context.Context, uri string) (*mcp.ResourceResponse, error)
}

type routerEntry struct {
	name        string
	description string
	toolNames   []string
	flatten     bool
}

var (
	mu        sync.Mutex
	toolKeys  sync.Map // string -> *toolEntry
	prompts   sync.Map // string -> *promptEntry
	resources sync.Map // string -> *resourceEntry
	routers   = map[string]*routerEntry{}

	serverName    = "structtag-server"
	serverVersion = "0.0.0"
)

// registryKey interns a (receiver type, member name) pair into the string
// key the sync.Map registries are addressed by. Re-registering the same key
// overwrites the previous entry, so re-running an init() (e.g. in tests that
// import a package twice under different build tags) converges on one
// definition rather than erroring.
func registryKey(receiverType reflect.Type, name string) string {
	return receiverType.String() + "#" + name
}

// ToolOption customizes a Tool registration.
type ToolOption func(*toolEntry)

// Discoverable marks the struct-tag tool as discoverable-only, matching
// ToolBuilder.Discoverable.
func Discoverable(keywords ...string) ToolOption {
	return func(e *toolEntry) {
		e.discoverable = true
		e.keywords = keywords
	}
}

// Tool registers a method-shaped tool: method takes a receiver of type T and
// a parameter struct of type P, and its signature is the single source of
// truth for both the generated JSON Schema (via schema.FromStruct on P) and
// the dispatch logic. Call it from an init() func; Bind later supplies the
// live T value the method executes against.
func Tool[T any, P any](name, description string, method func(T, context.Context, P) (*mcp.ToolResponse, error), opts ...ToolOption) {
	recvType := reflect.TypeOf((*T)(nil)).Elem()
	paramType := reflect.TypeOf((*P)(nil)).Elem()

	e := &toolEntry{
		name:         name,
		description:  description,
		receiverType: recvType,
		paramType:    paramType,
		invoke: func(receiver interface{}, ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
			typedRecv, ok := receiver.(T)
			if !ok {
				return nil, fmt.Errorf("structtag: receiver %T is not assignable to %s for tool %q", receiver, recvType, name)
			}
			var params P
			if err := req.Decode(&params); err != nil {
				return nil, mcp.NewToolErrorInvalidParams(err.Error())
			}
			return method(typedRecv, ctx, params)
		},
	}
	for _, opt := range opts {
		opt(e)
	}

	toolKeys.Store(registryKey(recvType, name), e)
}

// PromptOption customizes a Prompt registration.
type PromptOption func(*promptEntry)

// PromptDiscoverable marks the struct-tag prompt as discoverable-only.
func PromptDiscoverable() PromptOption {
	return func(e *promptEntry) { e.discoverable = true }
}

// Prompt registers a method-shaped prompt handler, the struct-tag analogue
// of mcp.AddPrompt.
func Prompt[T any](name, description string, args []mcp.PromptArgument, method func(T, context.Context, *mcp.PromptRequest) (*mcp.GetPromptResult, error), opts ...PromptOption) {
	recvType := reflect.TypeOf((*T)(nil)).Elem()

	e := &promptEntry{
		name:         name,
		description:  description,
		arguments:    args,
		receiverType: recvType,
		invoke: func(receiver interface{}, ctx context.Context, req *mcp.PromptRequest) (*mcp.GetPromptResult, error) {
			typedRecv, ok := receiver.(T)
			if !ok {
				return nil, fmt.Errorf("structtag: receiver %T is not assignable to %s for prompt %q", receiver, recvType, name)
			}
			return method(typedRecv, ctx, req)
		},
	}
	for _, opt := range opts {
		opt(e)
	}

	prompts.Store(registryKey(recvType, name), e)
}

// ResourceOption customizes a Resource registration.
type ResourceOption func(*resourceEntry)

// ResourceDiscoverable marks the struct-tag resource as discoverable-only.
func ResourceDiscoverable() ResourceOption {
	return func(e *resourceEntry) { e.discoverable = true }
}

// Resource registers a method-shaped resource handler, the struct-tag
// analogue of mcp.AddResource.
func Resource[T any](uri, name, description, mimeType string, method func(T, context.Context, string) (*mcp.ResourceResponse, error), opts ...ResourceOption) {
	recvType := reflect.TypeOf((*T)(nil)).Elem()

	e := &resourceEntry{
		uri:          uri,
		name:         name,
		description:  description,
		mimeType:     mimeType,
		receiverType: recvType,
		invoke: func(receiver interface{}, ctx context.Context, resourceURI string) (*mcp.ResourceResponse, error) {
			typedRecv, ok := receiver.(T)
			if !ok {
				return nil, fmt.Errorf("structtag: receiver %T is not assignable to %s for resource %q", receiver, recvType, uri)
			}
			return method(typedRecv, ctx, resourceURI)
		},
	}
	for _, opt := range opts {
		opt(e)
	}

	resources.Store(registryKey(recvType, uri), e)
}

// RouterOption customizes a Router registration.
type RouterOption func(*routerEntry)

// FlattenRouter keeps a member tool's bare name listed alongside its
// router-namespaced alias, matching RouterBuilder.FlattenRouters(true).
func FlattenRouter() RouterOption {
	return func(e *routerEntry) { e.flatten = true }
}

// Router declares a router grouping already-declared tool names under a
// namespaced alias. Unlike Tool/Prompt/Resource, a router is not bound to a
// receiver: it only references tool names, resolved against whatever was
// bound into the server by the time Bind runs.
func Router(name, description string, toolNames []string, opts ...RouterOption) {
	mu.Lock()
	defer mu.Unlock()

	e := &routerEntry{name: name, description: description, toolNames: toolNames}
	for _, opt := range opts {
		opt(e)
	}
	routers[name] = e
}

// Server records the default name/version NewServerFromMetadata constructs
// with. It is the struct-tag analogue of a top-level @server(...) class
// decorator: informational metadata with no receiver of its own.
func Server(name, version string) {
	mu.Lock()
	defer mu.Unlock()
	serverName, serverVersion = name, version
}

// NewServerFromMetadata builds an *mcp.Server using the name/version most
// recently recorded by Server, or "structtag-server"/"0.0.0" if Server was
// never called.
func NewServerFromMetadata() *mcp.Server {
	mu.Lock()
	name, version := serverName, serverVersion
	mu.Unlock()
	return mcp.NewServer(name, version)
}

// Bind wires every Tool/Prompt/Resource entry registered against receiver's
// type into srv, inferring each tool's JSON Schema from its parameter struct
// via schema.FromStruct. Call it once per receiver instance, typically right
// after constructing both the receiver and the server. Routers are bound
// separately by BindRouters once every member tool across all receivers has
// been bound.
func Bind(srv *mcp.Server, receiver interface{}) error {
	recvType := reflect.TypeOf(receiver)

	var bindErr error
	toolKeys.Range(func(_, v interface{}) bool {
		e := v.(*toolEntry)
		if e.receiverType != recvType && !recvType.AssignableTo(e.receiverType) {
			return true
		}

		inputSchema, _ := schema.FromStruct(e.paramType)
		handler := func(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
			return e.invoke(receiver, ctx, req)
		}

		builder := mcp.NewTool(e.name, e.description).WithRawSchema(inputSchema)
		if e.discoverable {
			builder = builder.Discoverable(e.keywords...)
		}
		srv.RegisterTool(builder, handler)
		return true
	})
	if bindErr != nil {
		return bindErr
	}

	prompts.Range(func(_, v interface{}) bool {
		e := v.(*promptEntry)
		if e.receiverType != recvType && !recvType.AssignableTo(e.receiverType) {
			return true
		}

		decl := mcp.NewPrompt(e.name, e.description, e.arguments...)
		if e.discoverable {
			decl = decl.Discoverable()
		}
		handler := func(ctx context.Context, req *mcp.PromptRequest) (*mcp.GetPromptResult, error) {
			return e.invoke(receiver, ctx, req)
		}
		if err := srv.AddPrompt(decl, handler); err != nil {
			bindErr = err
			return false
		}
		return true
	})
	if bindErr != nil {
		return bindErr
	}

	resources.Range(func(_, v interface{}) bool {
		e := v.(*resourceEntry)
		if e.receiverType != recvType && !recvType.AssignableTo(e.receiverType) {
			return true
		}

		decl := mcp.NewResource(e.uri, e.name, e.description, e.mimeType)
		if e.discoverable {
			decl = decl.Discoverable()
		}
		handler := func(ctx context.Context, uri string) (*mcp.ResourceResponse, error) {
			return e.invoke(receiver, ctx, uri)
		}
		if err := srv.AddResource(decl, handler); err != nil {
			bindErr = err
			return false
		}
		return true
	})
	return bindErr
}

// BindRouters applies every Router declaration to srv. Call it after every
// receiver has been Bind-ed, since a router references tool names that must
// already be registered.
func BindRouters(srv *mcp.Server) error {
	mu.Lock()
	entries := make([]*routerEntry, 0, len(routers))
	for _, e := range routers {
		entries = append(entries, e)
	}
	mu.Unlock()

	for _, e := range entries {
		router := mcp.NewRouter(e.name, e.description, e.toolNames...)
		if e.flatten {
			router = router.FlattenRouters(true)
		}
		if err := srv.AddRouter(router); err != nil {
			return err
		}
	}
	return nil
}
