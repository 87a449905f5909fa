package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"sync/atomic"
	"time"
)

// ErrUnsupportedCapability is returned by Context.Sample when the connected
// client declared no sampling capability at initialize and the server has
// no fallback SamplingBackend configured. It is never silently substituted
// away: a handler that needs sampling must either check for it or accept
// the error, matching §4.7's "never a silent substitute for the protocol
// round-trip" rule.
var ErrUnsupportedCapability = errors.New("unsupported capability: sampling")

// SamplingBackend is the minimal interface an optional non-interactive
// fallback for Context.Sample must satisfy. It is deliberately independent
// of any concrete LLM client type, so a server author can plug in whatever
// provider they like (see the aisampling package for an OpenAI-compatible
// chat-completions implementation) without the root package importing an
// HTTP client or provider SDK itself.
type SamplingBackend interface {
	CreateMessage(ctx context.Context, req SamplingRequest) (*SamplingResult, error)
}

// LogSink is the pluggable destination for Logger output. The teacher
// solves this class of ambient, cross-cutting concern (SessionManager,
// HTTPPool) with a small interface rather than a logging framework; Logger
// follows the same idiom rather than introducing a third-party logging
// dependency the rest of the pack doesn't otherwise ground (see DESIGN.md).
type LogSink interface {
	Log(level, message string, fields map[string]interface{})
}

// writerLogSink formats log lines to an io.Writer (stderr by default).
type writerLogSink struct {
	w io.Writer
}

func (s writerLogSink) Log(level, message string, fields map[string]interface{}) {
	line := fmt.Sprintf("[%s] %s", level, message)
	for k, v := range fields {
		line += fmt.Sprintf(" %s=%v", k, v)
	}
	log.New(s.w, "", log.LstdFlags).Println(line)
}

// NewWriterLogSink wraps an io.Writer as a LogSink.
func NewWriterLogSink(w io.Writer) LogSink {
	return writerLogSink{w: w}
}

// Logger is the per-invocation structured logger handed to tool/prompt/
// resource handlers through Context.Logger. Every call is mirrored both to
// its LogSink (local output) and, when a session is attached, to the
// client via notifications/message (§4.7), so a handler gets one logging
// call site regardless of whether anyone is watching the SSE stream.
type Logger struct {
	sink    LogSink
	session *Session
	name    string
	fields  map[string]interface{}
}

// With returns a copy of the logger carrying additional fields merged into
// every subsequent call.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{sink: l.sink, session: l.session, name: l.name, fields: merged}
}

func (l *Logger) log(level, message string, fields map[string]interface{}) {
	all := l.fields
	if len(fields) > 0 {
		all = make(map[string]interface{}, len(l.fields)+len(fields))
		for k, v := range l.fields {
			all[k] = v
		}
		for k, v := range fields {
			all[k] = v
		}
	}
	if l.sink != nil {
		l.sink.Log(level, message, all)
	}
	if l.session != nil {
		var data interface{} = message
		if len(all) > 0 {
			data = map[string]interface{}{"message": message, "fields": all}
		}
		l.session.server.NotifyMessage(l.session.id, level, l.name, data)
	}
}

func (l *Logger) Debug(message string, fields map[string]interface{}) { l.log("debug", message, fields) }
func (l *Logger) Info(message string, fields map[string]interface{})  { l.log("info", message, fields) }
func (l *Logger) Warn(message string, fields map[string]interface{})  { l.log("warning", message, fields) }
func (l *Logger) Error(message string, fields map[string]interface{}) { l.log("error", message, fields) }

// Session is the live connection a tool/prompt/resource invocation is
// running within. Its Send* helpers push notifications back to the client
// over the GET /mcp SSE stream (or are silently dropped when no stream is
// open — transport errors are swallowed and logged, never propagated to
// the calling handler, per §4.7/§7).
type Session struct {
	id                     string
	server                 *Server
	clientSupportsSampling bool
}

// ID returns the MCP-Session-Id this invocation is running under, or "" for
// a sessionless deployment.
func (s *Session) ID() string { return s.id }

// SendProgress pushes a notifications/progress message.
func (s *Session) SendProgress(progressToken interface{}, progress, total float64, message string) {
	s.server.NotifyProgress(s.id, progressToken, progress, total, message)
}

// SendMessage pushes a notifications/message (logging) message directly,
// bypassing Logger.
func (s *Session) SendMessage(level string, data interface{}) {
	s.server.NotifyMessage(s.id, level, "", data)
}

// SendToolListChanged announces the tool list has changed.
func (s *Session) SendToolListChanged() { s.server.NotifyToolListChanged(s.id) }

// SendPromptListChanged announces the prompt list has changed.
func (s *Session) SendPromptListChanged() { s.server.NotifyPromptListChanged(s.id) }

// SendResourceListChanged announces the resource list has changed.
func (s *Session) SendResourceListChanged() { s.server.NotifyResourceListChanged(s.id) }

// SamplingMessage is one turn in a Sample() request/response.
type SamplingMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SamplingRequest describes a sampling/createMessage round trip.
type SamplingRequest struct {
	Messages     []SamplingMessage `json:"messages"`
	SystemPrompt string            `json:"systemPrompt,omitempty"`
	MaxTokens    int               `json:"maxTokens,omitempty"`
	Temperature  float64           `json:"temperature,omitempty"`
}

// SamplingResult is the model turn sampling produced, whether it came back
// over the protocol round-trip or from a configured fallback SamplingBackend.
type SamplingResult struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	Model      string `json:"model,omitempty"`
	StopReason string `json:"stopReason,omitempty"`
}

// Context is the per-invocation bundle handed to tool, prompt, and resource
// handlers that need more than their typed request: structured logging,
// sampling, progress/notification helpers, and resource re-reads, per
// §4.7. It embeds context.Context so handlers can pass it anywhere a plain
// context is expected.
type Context struct {
	context.Context
	Logger  *Logger
	Session *Session

	// ReadResource re-reads an already-registered resource by URI, letting a
	// tool compose another resource's content without going back out over
	// the wire.
	ReadResource func(uri string) (*ResourceResponse, error)

	fallback SamplingBackend
}

// NewContext builds a Context bound to sessionID (empty for sessionless
// deployments) and, optionally, a fallback SamplingBackend for Sample to use
// when the connected client never declared sampling support.
func (s *Server) NewContext(ctx context.Context, sessionID string, fallback SamplingBackend) *Context {
	supportsSampling, _ := s.clientSampling.Load(sessionID)
	session := &Session{id: sessionID, server: s, clientSupportsSampling: supportsSampling == true}
	return &Context{
		Context: ctx,
		Logger:  &Logger{sink: writerLogSink{w: logWriter}, session: session},
		Session: session,
		ReadResource: func(uri string) (*ResourceResponse, error) {
			return s.ReadResource(ctx, uri)
		},
		fallback: fallback,
	}
}

// SetSamplingFallback configures the SamplingBackend NewContext-derived
// Contexts fall back to when Sample is called against a client that never
// declared sampling capability.
func (s *Server) SetSamplingFallback(backend SamplingBackend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samplingFallback = backend
}

type contextKey struct{}

// attachContext enriches ctx with a *Context built for sessionID, letting
// ContextFrom recover it inside a ToolHandler/PromptHandler/ResourceHandler,
// whose signatures take a plain context.Context so they stay the same shape
// whether or not a handler needs logging/sampling/progress.
func (s *Server) attachContext(ctx context.Context, sessionID string) context.Context {
	s.mu.RLock()
	fallback := s.samplingFallback
	s.mu.RUnlock()
	mcpCtx := s.NewContext(ctx, sessionID, fallback)
	return context.WithValue(ctx, contextKey{}, mcpCtx)
}

// ContextFrom recovers the *Context attached to ctx by the server, or nil if
// none was attached (e.g. a handler invoked directly in a test without going
// through HandleRequest).
func ContextFrom(ctx context.Context) *Context {
	c, _ := ctx.Value(contextKey{}).(*Context)
	return c
}

// ReportProgress is shorthand for Session.SendProgress using nil as the
// progress token, for handlers that don't track one explicitly.
func (c *Context) ReportProgress(progress, total float64, message string) {
	c.Session.SendProgress(nil, progress, total, message)
}

// sampleTimeout bounds how long Sample waits for the client's
// sampling/createMessage reply before giving up.
const sampleTimeout = 60 * time.Second

// Sample issues a sampling/createMessage request back over the session's
// GET /mcp SSE stream and blocks for the matching response; the stdio
// transport has no channel for it. If the client never declared sampling
// capability and c.fallback is nil, it returns ErrUnsupportedCapability —
// sampling is never silently skipped or faked.
func (c *Context) Sample(req SamplingRequest) (*SamplingResult, error) {
	if !c.Session.clientSupportsSampling {
		if c.fallback == nil {
			return nil, ErrUnsupportedCapability
		}
		return c.fallback.CreateMessage(c.Context, req)
	}
	return c.Session.server.requestSampling(c.Context, c.Session.id, req)
}

// requestSampling sends a sampling/createMessage request notification over
// the SSE stream for sessionID and waits for the correlated response
// HandleRequest routes to resolvePendingSampling.
func (s *Server) requestSampling(ctx context.Context, sessionID string, req SamplingRequest) (*SamplingResult, error) {
	id := strconv.FormatUint(atomic.AddUint64(&s.samplingSeq, 1), 10)

	ch := make(chan MCPResponse, 1)
	s.pendingSampling.Store(id, ch)
	defer s.pendingSampling.Delete(id)

	delivered := s.sse.publish(sessionID, MCPNotification{
		JSONRPC: "2.0",
		Method:  "sampling/createMessage",
		Params:  map[string]interface{}{"_requestId": id, "request": req},
	})
	if !delivered {
		return nil, fmt.Errorf("sampling: no open stream for session %q", sessionID)
	}

	timeout := time.NewTimer(sampleTimeout)
	defer timeout.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout.C:
		return nil, fmt.Errorf("sampling: timed out waiting for client response")
	case resp := <-ch:
		if resp.Error != nil {
			return nil, fmt.Errorf("sampling: client returned error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		raw, err := reencodeResult(resp.Result)
		if err != nil {
			return nil, fmt.Errorf("sampling: decoding result: %w", err)
		}
		return raw, nil
	}
}

// resolvePendingSampling delivers an inbound client response to whichever
// requestSampling call is waiting on its ID, matched on the response's ID
// field (the server set it to the same string it sent as _requestId).
func (s *Server) resolvePendingSampling(resp MCPResponse) {
	id := fmt.Sprintf("%v", resp.ID)
	if v, ok := s.pendingSampling.Load(id); ok {
		ch := v.(chan MCPResponse)
		select {
		case ch <- resp:
		default:
		}
	}
}

func reencodeResult(result interface{}) (*SamplingResult, error) {
	m, ok := result.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected result shape %T", result)
	}
	out := &SamplingResult{}
	if v, ok := m["role"].(string); ok {
		out.Role = v
	}
	if v, ok := m["content"].(string); ok {
		out.Content = v
	}
	if v, ok := m["model"].(string); ok {
		out.Model = v
	}
	if v, ok := m["stopReason"].(string); ok {
		out.StopReason = v
	}
	return out, nil
}

// logWriter is the default sink target for Context loggers. Exposed as a
// var (not a hardcoded os.Stderr reference inside NewContext) so tests can
// redirect it.
var logWriter io.Writer = os.Stderr
