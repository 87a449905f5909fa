package mcp

import (
	"context"
	"regexp"
)

// PromptArgument declares one named argument accepted by a prompt template.
type PromptArgument struct {
	Name        string
	Description string
	Required    bool
}

// Arg creates a PromptArgument for use with NewPrompt.
func Arg(name, description string, required bool) PromptArgument {
	return PromptArgument{Name: name, Description: description, Required: required}
}

// PromptRequest provides typed access to prompts/get arguments, which are
// always strings on the wire (§6.3).
type PromptRequest struct {
	args map[string]string
}

// NewPromptRequest creates a PromptRequest from raw arguments.
func NewPromptRequest(args map[string]string) *PromptRequest {
	if args == nil {
		args = map[string]string{}
	}
	return &PromptRequest{args: args}
}

// String returns the named argument, or empty string if absent.
func (r *PromptRequest) String(name string) string {
	return r.args[name]
}

// StringOr returns the named argument, or defaultValue if absent.
func (r *PromptRequest) StringOr(name, defaultValue string) string {
	if v, ok := r.args[name]; ok {
		return v
	}
	return defaultValue
}

// PromptHandler renders a dynamic prompt from its arguments.
type PromptHandler func(ctx context.Context, req *PromptRequest) (*GetPromptResult, error)

// PromptBuilder provides a fluent API for building prompt declarations,
// generalizing ToolBuilder (tool_builder.go) to the prompts/list and
// prompts/get verbs.
type PromptBuilder struct {
	name         string
	description  string
	arguments    []PromptArgument
	template     string
	discoverable bool
	keywords     []string
}

// NewPrompt creates a prompt declaration with the given name, description,
// and arguments.
func NewPrompt(name, description string, arguments ...PromptArgument) *PromptBuilder {
	return &PromptBuilder{name: name, description: description, arguments: arguments}
}

// Template attaches a literal template to the prompt. {{var}} is interpolated
// first, then {var}; either form may reference any declared argument. A
// prompt with only a template (no handler at registration time) is "static"
// and is considered complete without any external implementation.
func (p *PromptBuilder) Template(template string) *PromptBuilder {
	p.template = template
	return p
}

// Discoverable marks the prompt as discoverable via tool_search instead of
// appearing directly in prompts/list.
func (p *PromptBuilder) Discoverable(keywords ...string) *PromptBuilder {
	p.discoverable = true
	p.keywords = keywords
	return p
}

// Name returns the prompt's name.
func (p *PromptBuilder) Name() string { return p.name }

// IsDiscoverable reports whether the prompt was marked Discoverable.
func (p *PromptBuilder) IsDiscoverable() bool { return p.discoverable }

// toMCPPrompt converts the builder into its wire representation.
func (p *PromptBuilder) toMCPPrompt() MCPPrompt {
	wireArgs := make([]MCPPromptArgument, 0, len(p.arguments))
	for _, a := range p.arguments {
		wireArgs = append(wireArgs, MCPPromptArgument{Name: a.Name, Description: a.Description, Required: a.Required})
	}
	visibility := ToolVisibilityNative
	if p.discoverable {
		visibility = ToolVisibilityDiscoverable
	}
	return MCPPrompt{Name: p.name, Description: p.description, Arguments: wireArgs, Visibility: visibility}
}

var (
	doubleBraceVar = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)
	singleBraceVar = regexp.MustCompile(`\{\s*([a-zA-Z0-9_]+)\s*\}`)
)

// renderTemplate interpolates {{var}} then {var} placeholders against args.
// A placeholder with no matching argument is left in the output literally,
// per §6.3 ("missing vars preserved literally").
func renderTemplate(template string, args map[string]string) string {
	result := doubleBraceVar.ReplaceAllStringFunc(template, func(match string) string {
		name := doubleBraceVar.FindStringSubmatch(match)[1]
		if v, ok := args[name]; ok {
			return v
		}
		return match
	})
	result = singleBraceVar.ReplaceAllStringFunc(result, func(match string) string {
		name := singleBraceVar.FindStringSubmatch(match)[1]
		if v, ok := args[name]; ok {
			return v
		}
		return match
	})
	return result
}

// staticHandler returns a PromptHandler that renders the builder's literal
// template, used when a prompt is registered with AddStaticPrompt.
func (p *PromptBuilder) staticHandler() PromptHandler {
	template := p.template
	description := p.description
	return func(ctx context.Context, req *PromptRequest) (*GetPromptResult, error) {
		rendered := renderTemplate(template, req.args)
		return &GetPromptResult{
			Description: description,
			Messages: []PromptMessage{
				{Role: "user", Content: ToolContent{Type: "text", Text: rendered}},
			},
		}, nil
	}
}
