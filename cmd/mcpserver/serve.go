package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	mcp "github.com/Clockwork-Innovations/go-mcp-forge"
	"github.com/Clockwork-Innovations/go-mcp-forge/aisampling"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func buildServer() (*mcp.Server, error) {
	server := mcp.NewServer("mcpserver", serverVersion)

	registerBuiltinTools(server)

	switch backend := viper.GetString("session-backend"); backend {
	case "memory", "":
		// no SessionManager: HandleRequest serves sessionlessly.
	case "jwt":
		ttl := viper.GetDuration("session-ttl")
		if ttl == 0 {
			ttl = 30 * time.Minute
		}
		sm, err := mcp.NewJWTSessionManagerWithAutoKey(ttl)
		if err != nil {
			return nil, fmt.Errorf("creating JWT session manager: %w", err)
		}
		server.SetSessionManager(sm)
	case "redis":
		ttl := viper.GetDuration("session-ttl")
		if ttl == 0 {
			ttl = 30 * time.Minute
		}
		client := redis.NewClient(&redis.Options{Addr: viper.GetString("redis-addr")})
		server.SetSessionManager(mcp.NewRedisSessionManager(client, ttl))
	default:
		return nil, fmt.Errorf("unknown session-backend %q (want memory, jwt, or redis)", backend)
	}

	if tokens := viper.GetStringSlice("bearer-token"); len(tokens) > 0 {
		server.SetAuthProvider(mcp.NewBearerTokenServerAuth(tokens...))
	}

	if url := viper.GetString("sampling-fallback-url"); url != "" {
		server.SetSamplingFallback(aisampling.New(url, viper.GetString("sampling-fallback-key"), viper.GetString("sampling-fallback-model"), nil))
	}

	return server, nil
}

func runServe() error {
	server, err := buildServer()
	if err != nil {
		return err
	}

	switch mode := viper.GetString("mode"); mode {
	case "stdio":
		log.Printf("mcpserver: serving over stdio")
		return server.ServeStdio(context.Background())
	case "http", "":
		return runServeHTTP(server)
	default:
		return fmt.Errorf("unknown mode %q (want http or stdio)", mode)
	}
}

func runServeHTTP(server *mcp.Server) error {
	addr := viper.GetString("listen")
	origins := append(append([]string{}, mcp.DefaultAllowedOrigins...), viper.GetStringSlice("origin")...)
	mux := mcp.NewHTTPMux(server, mcp.WithAllowedOrigins(origins...))

	certFile := viper.GetString("tls-cert")
	keyFile := viper.GetString("tls-key")

	if certFile != "" && keyFile != "" {
		log.Printf("mcpserver: listening on https://%s", addr)
		return http.ListenAndServeTLS(addr, certFile, keyFile, mux)
	}

	log.Printf("mcpserver: listening on http://%s", addr)
	return http.ListenAndServe(addr, mux)
}
