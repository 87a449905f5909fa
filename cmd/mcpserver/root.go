package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "mcpserver",
	Short: "Host an MCP server over stdio or HTTP",
	Long: `mcpserver runs a Model Context Protocol server built on the
go-mcp-forge library. It loads its configuration from --config (a YAML
file), environment variables prefixed MCPSERVER_, and command-line flags,
in that order of increasing precedence.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./mcpserver.yaml)")
	rootCmd.PersistentFlags().String("listen", ":8000", "HTTP listen address (ignored in stdio mode)")
	rootCmd.PersistentFlags().String("mode", "http", "transport mode: http or stdio")
	rootCmd.PersistentFlags().String("session-backend", "memory", "session backend: memory, jwt, or redis")
	rootCmd.PersistentFlags().String("redis-addr", "localhost:6379", "Redis address (session-backend=redis)")
	rootCmd.PersistentFlags().Duration("session-ttl", 0, "session TTL (0 disables expiry) for jwt/redis backends")
	rootCmd.PersistentFlags().StringSlice("origin", nil, "additional allowed Origin hosts for HTTP mode (DNS-rebinding guard)")
	rootCmd.PersistentFlags().String("tls-cert", "", "TLS certificate file (enables HTTPS in http mode)")
	rootCmd.PersistentFlags().String("tls-key", "", "TLS private key file")
	rootCmd.PersistentFlags().StringSlice("bearer-token", nil, "accepted bearer token(s) for inbound auth (unset disables auth)")
	rootCmd.PersistentFlags().String("sampling-fallback-url", "", "OpenAI-compatible base URL for Context.Sample's non-interactive fallback (unset disables it)")
	rootCmd.PersistentFlags().String("sampling-fallback-key", "", "API key for --sampling-fallback-url")
	rootCmd.PersistentFlags().String("sampling-fallback-model", "gpt-4o-mini", "model name sent to --sampling-fallback-url")

	for _, name := range []string{"listen", "mode", "session-backend", "redis-addr", "session-ttl", "origin", "tls-cert", "tls-key", "bearer-token", "sampling-fallback-url", "sampling-fallback-key", "sampling-fallback-model"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("mcpserver")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("mcpserver")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "mcpserver: reading config: %v\n", err)
		}
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
