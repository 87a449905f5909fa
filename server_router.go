package mcp

// AddRouter registers a router bundling already-registered tools under a
// namespaced alias (router.aliasFor). Per the Open Question #1 decision
// (SPEC_FULL.md §6.1), this reuses exactly the namespacing mechanism the
// teacher already applies to federated remote-server tools
// (registerRemoteServerWithVisibility): the namespaced alias is just
// another registeredTool sharing the member's schema and handler.
//
// When FlattenRouters(true) was set, the member's bare name remains listed
// alongside the alias. Otherwise the bare name is hidden (still directly
// callable via CallTool, matching how namespaced remote tools behave) and
// only the alias is listed.
func (s *Server) AddRouter(router *RouterBuilder) error {
	s.mu.Lock()
	for _, name := range router.toolNames {
		if _, ok := s.tools[name]; !ok {
			s.mu.Unlock()
			return newParseError("router %q references unknown tool %q", router.name, name)
		}
	}

	s.routers[router.name] = router

	for _, name := range router.toolNames {
		member := s.tools[name]
		alias := router.aliasFor(name)

		s.tools[alias] = &registeredTool{
			Name:         alias,
			Description:  member.Description,
			Schema:       member.Schema,
			OutputSchema: member.OutputSchema,
			Handler:      member.Handler,
			Visibility:   ToolVisibilityNative,
		}

		if !router.flatten {
			member.Visibility = ToolVisibilityDiscoverable
			s.hasDiscoverableTools = true
		}
	}

	s.rebuildNativeToolCacheLocked()
	s.mu.Unlock()
	return nil
}
