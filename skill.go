package mcp

import "context"

// SkillBuilder bundles a set of already-registered tools, prompts, and
// resources behind a single discoverable entry point together with a
// markdown document describing when and how to use them. This is the
// Go-native equivalent of an Anthropic "skill": an LLM discovers the skill
// via tool_search, reads its doc through execute_tool, and only then calls
// the member tools/prompts/resources it names — which remain independently
// addressable but are hidden from the default tools/list/prompts/list so
// they don't compete for context budget until the skill is actually relevant.
type SkillBuilder struct {
	name        string
	description string
	doc         string
	toolNames   []string
	promptNames []string
	resourceURIs []string
	keywords    []string
}

// NewSkill declares a skill with the given name and short description.
func NewSkill(name, description string) *SkillBuilder {
	return &SkillBuilder{name: name, description: description}
}

// Doc attaches the skill's markdown body, returned verbatim when the skill
// is invoked through execute_tool. It should describe the bundled
// tools/prompts/resources, when to reach for them, and any sequencing
// constraints between them.
func (s *SkillBuilder) Doc(markdown string) *SkillBuilder {
	s.doc = markdown
	return s
}

// Tools lists the already-registered tool names this skill bundles. Each
// must already exist in the server's registry (Rule 5, reference
// resolution) or registration fails.
func (s *SkillBuilder) Tools(names ...string) *SkillBuilder {
	s.toolNames = append(s.toolNames, names...)
	return s
}

// Prompts lists the already-registered prompt names this skill bundles.
func (s *SkillBuilder) Prompts(names ...string) *SkillBuilder {
	s.promptNames = append(s.promptNames, names...)
	return s
}

// Resources lists the already-registered resource URIs this skill bundles.
func (s *SkillBuilder) Resources(uris ...string) *SkillBuilder {
	s.resourceURIs = append(s.resourceURIs, uris...)
	return s
}

// Keywords improves tool_search relevance for the skill itself.
func (s *SkillBuilder) Keywords(keywords ...string) *SkillBuilder {
	s.keywords = append(s.keywords, keywords...)
	return s
}

// AddSkill registers a skill: it forces every referenced tool/prompt/
// resource to ToolVisibilityDiscoverable (hidden from the default list
// methods, per the Open Question decision in SPEC_FULL.md §6.2) and
// registers the skill itself as a discoverable meta-tool whose execution
// returns its markdown doc.
//
// AddSkill must be called after every tool/prompt/resource it references has
// already been registered (Rule 5: skill reference resolution) — an unknown
// reference returns a ParseError-equivalent wrapped error.
func (s *Server) AddSkill(skill *SkillBuilder) error {
	s.mu.Lock()
	for _, name := range skill.toolNames {
		tool, ok := s.tools[name]
		if !ok {
			s.mu.Unlock()
			return newParseError("skill %q references unknown tool %q", skill.name, name)
		}
		tool.Visibility = ToolVisibilityDiscoverable
	}
	s.rebuildNativeToolCacheLocked()
	s.hasDiscoverableTools = true
	s.mu.Unlock()

	for _, name := range skill.promptNames {
		if _, ok := s.prompts[name]; !ok {
			return newParseError("skill %q references unknown prompt %q", skill.name, name)
		}
		s.prompts[name].Visibility = ToolVisibilityDiscoverable
	}

	for _, uri := range skill.resourceURIs {
		if _, ok := s.resources[uri]; !ok {
			return newParseError("skill %q references unknown resource %q", skill.name, uri)
		}
		s.resources[uri].Visibility = ToolVisibilityDiscoverable
	}

	doc := skill.doc
	builder := NewTool(skill.name, skill.description).Discoverable(append(skill.keywords, "skill")...)
	s.RegisterTool(builder, func(ctx context.Context, req *ToolRequest) (*ToolResponse, error) {
		return NewToolResponseText(doc), nil
	})

	return nil
}

// SetToolHidden toggles a registered tool's visibility post-start without
// requiring a new declaration, per the Open Question #2 decision: ADD/REMOVE
// after start remains forbidden, but visibility toggling is allowed so a
// skill (or an operator) can reveal/hide tools dynamically.
func (s *Server) SetToolHidden(name string, hidden bool) error {
	s.mu.Lock()
	tool, ok := s.tools[name]
	if !ok {
		s.mu.Unlock()
		return newParseError("cannot set visibility: unknown tool %q", name)
	}
	if hidden {
		tool.Visibility = ToolVisibilityDiscoverable
	} else {
		tool.Visibility = ToolVisibilityNative
	}
	s.rebuildNativeToolCacheLocked()
	s.mu.Unlock()

	s.NotifyToolListChanged("")
	return nil
}
