// Command mcpserver hosts an MCP server over stdio or HTTP, wiring
// command-line flags and config-file/env-var settings through viper into
// the mcp package's transport and session constructors.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
