package mcp

// ToolVisibility defines how a tool, prompt, or resource is exposed to clients.
// This controls whether an item appears in its list method or only via
// tool_search/execute_tool. The same visibility model applies uniformly to
// tools, prompts, and resources bundled into a Skill.
type ToolVisibility int

const (
	// ToolVisibilityNative means the item appears in tools/list (or
	// prompts/list, resources/list) and is directly callable/readable.
	// This is the standard MCP behavior - items are visible and can be
	// invoked by name.
	ToolVisibilityNative ToolVisibility = iota

	// ToolVisibilityDiscoverable means the item is only available via
	// tool_search and execute_tool. It does NOT appear in tools/list but can
	// be discovered and executed through the discovery meta-tools. This is
	// useful for:
	//   - Large tool sets where listing everything would overwhelm the LLM
	//   - Dynamic tools that should be discovered by keyword search
	//   - Tools that should only surface when specifically relevant
	//   - Skills, which hide their member tools/prompts/resources behind a
	//     single entry point
	ToolVisibilityDiscoverable
)

// String returns a human-readable name for the visibility level.
func (v ToolVisibility) String() string {
	switch v {
	case ToolVisibilityNative:
		return "native"
	case ToolVisibilityDiscoverable:
		return "discoverable"
	default:
		return "unknown"
	}
}
