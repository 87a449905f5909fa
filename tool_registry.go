package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// SearchResult represents a discoverable member found via tool_search: a
// tool, prompt, or resource, since progressive disclosure applies uniformly
// across all three rather than tools alone.
type SearchResult struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Score       float64     `json:"score"`
	InputSchema interface{} `json:"input_schema,omitempty"`
	Kind        string      `json:"kind"`
}

// memberKind distinguishes what a discoverableMember's invoke closure
// actually runs: a tool call, a prompt render, or a resource read, each
// reported back through execute_tool as a uniform *ToolResponse.
type memberKind string

const (
	memberKindTool     memberKind = "tool"
	memberKindPrompt   memberKind = "prompt"
	memberKindResource memberKind = "resource"
)

// internalRegistry is the single index behind tool_search/execute_tool for
// every discoverable member a server exposes. The teacher's version of this
// registry only ever held tools; extended here to also hold prompts and
// resources marked .Discoverable(), since a client that searches for a
// capability shouldn't have to know in advance whether the match it wants is
// a tool, a prompt, or a resource.
type internalRegistry struct {
	mu      sync.RWMutex
	members map[string]*discoverableMember
}

// discoverableMember is one searchable entry, regardless of kind. invoke
// normalizes the three very different call shapes (ToolHandler,
// PromptHandler, ResourceHandler) into the one execute_tool needs.
type discoverableMember struct {
	kind        memberKind
	name        string
	description string
	keywords    []string
	inputSchema interface{}
	invoke      func(ctx context.Context, args map[string]interface{}) (*ToolResponse, error)
}

func newInternalRegistry() *internalRegistry {
	return &internalRegistry{members: make(map[string]*discoverableMember)}
}

func (r *internalRegistry) register(m *discoverableMember) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[m.name] = m
}

// RegisterTool registers a searchable tool.
func (r *internalRegistry) RegisterTool(tool *ToolBuilder, handler ToolHandler, keywords ...string) {
	schema := tool.BuildSchema()
	r.register(&discoverableMember{
		kind:        memberKindTool,
		name:        tool.Name(),
		description: tool.Description(),
		keywords:    keywords,
		inputSchema: schema,
		invoke: func(ctx context.Context, args map[string]interface{}) (*ToolResponse, error) {
			if err := validateRequiredParameters(schema, args); err != nil {
				return nil, err
			}
			return handler(ctx, NewToolRequest(args))
		},
	})
}

// RegisterMCPTool registers an already-built MCPTool, used for remote tools
// fetched from a discoverable remote server.
func (r *internalRegistry) RegisterMCPTool(tool *MCPTool, handler ToolHandler, keywords ...string) {
	allKeywords := append(append([]string{}, tool.Keywords...), keywords...)
	schema := tool.InputSchema
	r.register(&discoverableMember{
		kind:        memberKindTool,
		name:        tool.Name,
		description: tool.Description,
		keywords:    allKeywords,
		inputSchema: schema,
		invoke: func(ctx context.Context, args map[string]interface{}) (*ToolResponse, error) {
			if err := validateRequiredParameters(schema, args); err != nil {
				return nil, err
			}
			return handler(ctx, NewToolRequest(args))
		},
	})
}

// RegisterPrompt registers a searchable prompt. execute_tool on a prompt
// renders it and returns its messages as ordinary tool content, so a client
// that discovered the prompt through tool_search doesn't need a separate
// prompts/get round trip to use it.
func (r *internalRegistry) RegisterPrompt(decl *PromptBuilder, handler PromptHandler, keywords ...string) {
	allKeywords := append(append([]string{}, decl.keywords...), keywords...)
	arguments := decl.arguments
	r.register(&discoverableMember{
		kind:        memberKindPrompt,
		name:        decl.name,
		description: decl.description,
		keywords:    allKeywords,
		inputSchema: promptArgumentSchema(arguments),
		invoke: func(ctx context.Context, args map[string]interface{}) (*ToolResponse, error) {
			strArgs := stringifyArgs(args)
			for _, a := range arguments {
				if a.Required {
					if _, ok := strArgs[a.Name]; !ok {
						return nil, NewToolErrorInvalidParams("missing required argument: " + a.Name)
					}
				}
			}
			result, err := handler(ctx, NewPromptRequest(strArgs))
			if err != nil {
				return nil, err
			}
			return promptResultToToolResponse(result), nil
		},
	})
}

// RegisterResource registers a searchable resource. execute_tool on a
// resource reads it (optionally against an "uri" argument override, for a
// handler shared across a templated URI prefix) and returns its contents as
// ordinary tool content.
func (r *internalRegistry) RegisterResource(decl *ResourceBuilder, handler ResourceHandler, keywords ...string) {
	allKeywords := append(append([]string{}, decl.keywords...), keywords...)
	defaultURI := decl.uri
	r.register(&discoverableMember{
		kind:        memberKindResource,
		name:        decl.uri,
		description: decl.description,
		keywords:    allKeywords,
		inputSchema: resourceArgumentSchema(),
		invoke: func(ctx context.Context, args map[string]interface{}) (*ToolResponse, error) {
			uri := defaultURI
			if override, ok := args["uri"].(string); ok && override != "" {
				uri = override
			}
			result, err := handler(ctx, uri)
			if err != nil {
				return nil, err
			}
			return resourceResultToToolResponse(result), nil
		},
	})
}

// promptArgumentSchema builds a minimal JSON-Schema-shaped object describing
// a prompt's named arguments, so SearchResult.InputSchema gives a caller
// enough to construct a prompts/get (or execute_tool) call without a second
// round trip.
func promptArgumentSchema(arguments []PromptArgument) map[string]interface{} {
	properties := make(map[string]interface{}, len(arguments))
	var required []string
	for _, a := range arguments {
		properties[a.Name] = map[string]interface{}{"type": "string", "description": a.Description}
		if a.Required {
			required = append(required, a.Name)
		}
	}
	schema := map[string]interface{}{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// resourceArgumentSchema describes the one optional argument execute_tool
// accepts against a discoverable resource: a "uri" override for handlers
// shared across a templated prefix.
func resourceArgumentSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"uri": map[string]interface{}{"type": "string", "description": "overrides the resource's declared URI, for a handler shared across a templated prefix"},
		},
	}
}

func stringifyArgs(args map[string]interface{}) map[string]string {
	strArgs := make(map[string]string, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok {
			strArgs[k] = s
		} else {
			strArgs[k] = fmt.Sprintf("%v", v)
		}
	}
	return strArgs
}

func promptResultToToolResponse(result *GetPromptResult) *ToolResponse {
	content := make([]ToolContent, len(result.Messages))
	for i, m := range result.Messages {
		content[i] = m.Content
	}
	return &ToolResponse{Content: content}
}

func resourceResultToToolResponse(result *ResourceResponse) *ToolResponse {
	content := make([]ToolContent, len(result.Contents))
	for i := range result.Contents {
		c := result.Contents[i]
		content[i] = ToolContent{Type: "resource", Resource: &c}
	}
	return &ToolResponse{Content: content}
}

// Search finds members matching the query.
func (r *internalRegistry) Search(ctx context.Context, query string, maxResults int) []SearchResult {
	return r.SearchWithAdditionalTools(ctx, query, maxResults, nil)
}

// SearchWithAdditionalTools finds members matching the query, including
// additional tools passed in (typically discoverable tools from providers).
func (r *internalRegistry) SearchWithAdditionalTools(ctx context.Context, query string, maxResults int, additionalTools []MCPTool) []SearchResult {
	r.mu.RLock()
	membersCopy := make(map[string]*discoverableMember, len(r.members))
	for k, v := range r.members {
		membersCopy[k] = v
	}
	r.mu.RUnlock()

	var results []SearchResult
	queryLower := strings.ToLower(strings.TrimSpace(query))
	listAll := queryLower == ""
	seen := make(map[string]bool)

	for _, m := range membersCopy {
		var score float64
		if listAll {
			score = 1.0
		} else {
			score = calculateScore(queryLower, m.name, m.description, m.keywords)
		}
		if score > 0 {
			results = append(results, SearchResult{
				Name:        m.name,
				Description: m.description,
				Score:       score,
				InputSchema: m.inputSchema,
				Kind:        string(m.kind),
			})
			seen[m.name] = true
		}
	}

	// Additional tools (discoverable tools surfaced by providers) are always
	// kind "tool"; nothing else currently supplies members this way.
	for _, tool := range additionalTools {
		if seen[tool.Name] {
			continue
		}
		var score float64
		if listAll {
			score = 1.0
		} else {
			score = calculateScore(queryLower, tool.Name, tool.Description, tool.Keywords)
		}
		if score > 0 {
			results = append(results, SearchResult{
				Name:        tool.Name,
				Description: tool.Description,
				Score:       score,
				InputSchema: tool.InputSchema,
				Kind:        string(memberKindTool),
			})
			seen[tool.Name] = true
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Name < results[j].Name
	})

	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}

	return results
}

// CallTool invokes a registered member by name, falling back to context
// tool providers if nothing in the registry matches. This is the dispatch
// path execute_tool and Server.CallTool's own fallback use to reach
// discoverable prompts and resources, which (unlike discoverable tools)
// have no other direct-name lookup table.
func (r *internalRegistry) CallTool(ctx context.Context, name string, args map[string]interface{}) (*ToolResponse, error) {
	r.mu.RLock()
	m, exists := r.members[name]
	r.mu.RUnlock()

	if exists {
		return m.invoke(ctx, args)
	}

	return callToolFromProviders(ctx, name, args)
}

// Search scoring functions

func calculateScore(queryLower, name, description string, keywords []string) float64 {
	nameLower := strings.ToLower(name)
	descLower := strings.ToLower(description)

	if nameLower == queryLower {
		return 1.0
	}

	queryWords := strings.Fields(queryLower)
	if len(queryWords) <= 1 {
		return calculateSingleWordScore(queryLower, nameLower, descLower, keywords)
	}

	var totalScore float64
	matchedWords := 0

	for _, word := range queryWords {
		wordScore := calculateSingleWordScore(word, nameLower, descLower, keywords)
		if wordScore > 0 {
			matchedWords++
			totalScore += wordScore
		}
	}

	if matchedWords == 0 {
		return 0
	}

	avgScore := totalScore / float64(len(queryWords))
	matchRatio := float64(matchedWords) / float64(len(queryWords))

	if matchedWords == len(queryWords) {
		return avgScore * 0.9
	}

	return avgScore * matchRatio
}

func calculateSingleWordScore(word, nameLower, descLower string, keywords []string) float64 {
	var score float64

	if strings.HasPrefix(nameLower, word) {
		score = max(score, 0.9)
	}

	if strings.Contains(nameLower, word) {
		score = max(score, 0.8)
	}

	for _, kw := range keywords {
		kwLower := strings.ToLower(kw)
		if kwLower == word {
			score = max(score, 0.85)
		} else if strings.Contains(kwLower, word) {
			score = max(score, 0.7)
		}
	}

	if containsWord(descLower, word) {
		score = max(score, 0.6)
	} else if strings.Contains(descLower, word) {
		score = max(score, 0.5)
	}

	if score == 0 {
		if fuzzyScore := fuzzyMatch(word, nameLower); fuzzyScore > 0.6 {
			score = max(score, fuzzyScore*0.7)
		}

		for _, kw := range keywords {
			if fuzzyScore := fuzzyMatch(word, strings.ToLower(kw)); fuzzyScore > 0.6 {
				score = max(score, fuzzyScore*0.6)
			}
		}
	}

	return score
}

func containsWord(text, query string) bool {
	words := strings.Fields(text)
	for _, word := range words {
		word = strings.Trim(word, ".,;:!?()[]{}\"'")
		if strings.ToLower(word) == query {
			return true
		}
	}
	return false
}

func fuzzyMatch(query, target string) float64 {
	if len(query) == 0 || len(target) == 0 {
		return 0
	}

	distance := levenshteinDistance(query, target)
	maxLen := max(len(query), len(target))

	return 1.0 - float64(distance)/float64(maxLen)
}

func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,
				curr[j-1]+1,
				prev[j-1]+cost,
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

// validateRequiredParameters checks if all required parameters are present and non-empty.
func validateRequiredParameters(inputSchema interface{}, args map[string]interface{}) error {
	schema, ok := inputSchema.(map[string]interface{})
	if !ok {
		return nil
	}

	var required []string
	switch req := schema["required"].(type) {
	case []interface{}:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
	case []string:
		required = req
	default:
		return nil
	}

	for _, paramName := range required {
		val, exists := args[paramName]
		if !exists {
			return NewToolError(ErrorCodeInvalidParams, "missing required parameter: "+paramName, nil)
		}

		if strVal, ok := val.(string); ok && strVal == "" {
			return NewToolError(ErrorCodeInvalidParams, "required parameter cannot be empty: "+paramName, nil)
		}

		if val == nil {
			return NewToolError(ErrorCodeInvalidParams, "required parameter cannot be null: "+paramName, nil)
		}
	}

	return nil
}
