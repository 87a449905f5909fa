package mcp

import "strings"

// DefaultRouterSeparator joins a router's name to a member tool's name when
// building the namespaced alias. It differs from the "/" that Client uses
// for federated remote-server namespacing (DefaultNamespaceSeparator).
const DefaultRouterSeparator = "__"

// RouterBuilder groups a set of already-registered tool names under a named,
// namespaced umbrella — the Go-native equivalent of a @Router-decorated
// class bundling multiple @tool methods. Grouping is purely a naming and
// visibility concern: member tools keep their own schema and handler: the
// router just controls how they are addressed and listed.
type RouterBuilder struct {
	name        string
	description string
	toolNames   []string
	separator   string
	flatten     bool
}

// NewRouter declares a router bundling the given (already registered) tool names.
func NewRouter(name, description string, toolNames ...string) *RouterBuilder {
	return &RouterBuilder{
		name:        name,
		description: description,
		toolNames:   toolNames,
		separator:   DefaultRouterSeparator,
	}
}

// FlattenRouters, when set, causes member tools to be listed BOTH under
// their bare name AND under the router-namespaced alias. When unset
// (default) members are listed only under the namespaced alias, and their
// bare registration is hidden from tools/list (still directly callable by
// bare name via CallTool, matching how namespaced remote tools behave).
func (r *RouterBuilder) FlattenRouters(flatten bool) *RouterBuilder {
	r.flatten = flatten
	return r
}

// Separator overrides the default "__" joiner between router name and tool name.
func (r *RouterBuilder) Separator(sep string) *RouterBuilder {
	r.separator = sep
	return r
}

// Name returns the router's name.
func (r *RouterBuilder) Name() string { return r.name }

// aliasFor returns the namespaced alias for a member tool name.
func (r *RouterBuilder) aliasFor(toolName string) string {
	return r.name + r.separator + toolName
}

// stripAlias removes this router's namespace prefix from a dispatched name,
// returning the bare member tool name and whether the prefix matched.
func (r *RouterBuilder) stripAlias(name string) (string, bool) {
	prefix := r.name + r.separator
	if strings.HasPrefix(name, prefix) {
		return strings.TrimPrefix(name, prefix), true
	}
	return "", false
}
