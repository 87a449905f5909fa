package mcp

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAllowedOrigins is the origin allowlist applied by NewHTTPMux's DNS
// rebinding guard: only requests whose Origin header resolves to one of
// these hosts (or carries no Origin header at all, i.e. a non-browser
// client) are forwarded to the server. Per §4.8, anything else is rejected
// with HTTP 403 and a JSON-RPC -32000 body before it reaches HandleRequest.
var DefaultAllowedOrigins = []string{"localhost", "127.0.0.1", "::1"}

// HTTPOption customizes NewHTTPMux.
type HTTPOption func(*httpConfig)

type httpConfig struct {
	allowedOrigins []string
}

// WithAllowedOrigins overrides DefaultAllowedOrigins.
func WithAllowedOrigins(hosts ...string) HTTPOption {
	return func(c *httpConfig) { c.allowedOrigins = hosts }
}

// NewHTTPMux builds the server's HTTP surface: POST/GET/DELETE /mcp (via
// HandleRequest, origin-checked), GET /health, and GET /. This generalizes
// the teacher's bare `http.HandleFunc("/mcp", server.HandleRequest)` wiring
// (examples/server/main.go) into the full route set §4.8 names.
func NewHTTPMux(s *Server, opts ...HTTPOption) *http.ServeMux {
	cfg := &httpConfig{allowedOrigins: DefaultAllowedOrigins}
	for _, opt := range opts {
		opt(cfg)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", cfg.originCheck(s.HandleRequest))
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

// originCheck rejects cross-origin browser requests before they reach
// HandleRequest, guarding against DNS rebinding attacks against a
// locally-bound server. Requests without an Origin header (CLI clients,
// stdio-adjacent tooling proxied over HTTP) pass through unchecked.
func (c *httpConfig) originCheck(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next(w, r)
			return
		}

		u, err := url.Parse(origin)
		if err != nil || !hostAllowed(u.Hostname(), c.allowedOrigins) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(MCPResponse{
				JSONRPC: "2.0",
				Error: &MCPError{
					Code:    ErrorCodeImplementationErrorStart,
					Message: "Origin not allowed: " + origin,
				},
			})
			return
		}
		next(w, r)
	}
}

func hostAllowed(host string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(host, a) {
			return true
		}
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "ok",
		"server":    s.name,
		"version":   s.version,
		"time":      time.Now().UTC().Format(time.RFC3339),
		"protocols": supportedProtocolVersions,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(s.name + " " + s.version + " — MCP endpoint at /mcp\n"))
}
