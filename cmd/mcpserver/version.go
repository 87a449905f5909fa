package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// serverVersion is the version mcpserver reports in initialize and
// version. Set via -ldflags "-X main.serverVersion=..." at release build
// time; defaults to "dev" for local builds.
var serverVersion = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the mcpserver version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("mcpserver " + serverVersion)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
