package mcp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// sseHub fans server-initiated notifications out to any GET /mcp streams
// currently open for a session. Sessionless deployments (no SessionManager
// configured) publish under the "" key, which every unauthenticated stream
// subscribes to.
type sseHub struct {
	mu      sync.Mutex
	streams map[string][]chan MCPNotification
}

func newSSEHub() *sseHub {
	return &sseHub{streams: make(map[string][]chan MCPNotification)}
}

func (h *sseHub) subscribe(sessionID string) chan MCPNotification {
	ch := make(chan MCPNotification, 32)
	h.mu.Lock()
	h.streams[sessionID] = append(h.streams[sessionID], ch)
	h.mu.Unlock()
	return ch
}

func (h *sseHub) unsubscribe(sessionID string, ch chan MCPNotification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	chans := h.streams[sessionID]
	for i, c := range chans {
		if c == ch {
			h.streams[sessionID] = append(chans[:i], chans[i+1:]...)
			close(ch)
			return
		}
	}
}

// publish delivers n to every stream subscribed to sessionID. A full
// channel drops the notification rather than blocking the publisher,
// matching the "swallow and log transport errors" policy from §4.7: a slow
// or vanished reader never backs up request handling.
func (h *sseHub) publish(sessionID string, n MCPNotification) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	chans := h.streams[sessionID]
	if len(chans) == 0 {
		return false
	}
	for _, ch := range chans {
		select {
		case ch <- n:
		default:
		}
	}
	return true
}

// handleSSEStream serves the GET /mcp long-lived notification stream.
// sessionID is read from the MCP-Session-Id header, empty for sessionless
// deployments.
func (s *Server) handleSSEStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported by this ResponseWriter", http.StatusInternalServerError)
		return
	}

	sessionID := r.Header.Get("MCP-Session-Id")
	if sm := s.getSessionManager(); sm != nil {
		if sessionID == "" {
			http.Error(w, "MCP-Session-Id header required", http.StatusBadRequest)
			return
		}
		valid, err := sm.ValidateSession(r.Context(), sessionID)
		if err != nil || !valid {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.sse.subscribe(sessionID)
	defer s.sse.unsubscribe(sessionID, ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// NotifyProgress sends a notifications/progress message to sessionID's open
// stream (or to every sessionless stream when sessionID is "").
func (s *Server) NotifyProgress(sessionID string, progressToken interface{}, progress, total float64, message string) {
	params := map[string]interface{}{
		"progressToken": progressToken,
		"progress":      progress,
	}
	if total > 0 {
		params["total"] = total
	}
	if message != "" {
		params["message"] = message
	}
	s.sse.publish(sessionID, MCPNotification{JSONRPC: "2.0", Method: "notifications/progress", Params: params})
}

// NotifyMessage sends a notifications/message (logging) notification.
func (s *Server) NotifyMessage(sessionID, level, loggerName string, data interface{}) {
	params := map[string]interface{}{
		"level": level,
		"data":  data,
	}
	if loggerName != "" {
		params["logger"] = loggerName
	}
	s.sse.publish(sessionID, MCPNotification{JSONRPC: "2.0", Method: "notifications/message", Params: params})
}

// NotifyToolListChanged announces that tools/list results have changed,
// e.g. after SetToolHidden.
func (s *Server) NotifyToolListChanged(sessionID string) {
	s.sse.publish(sessionID, MCPNotification{JSONRPC: "2.0", Method: "notifications/tools/list_changed"})
}

// NotifyPromptListChanged announces that prompts/list results have changed.
func (s *Server) NotifyPromptListChanged(sessionID string) {
	s.sse.publish(sessionID, MCPNotification{JSONRPC: "2.0", Method: "notifications/prompts/list_changed"})
}

// NotifyResourceListChanged announces that resources/list results have changed.
func (s *Server) NotifyResourceListChanged(sessionID string) {
	s.sse.publish(sessionID, MCPNotification{JSONRPC: "2.0", Method: "notifications/resources/list_changed"})
}
