package mcp

import "fmt"

// ParseError reports a static registration-time problem: a duplicate prompt
// name or resource URI, a dangling skill/router reference, a static prompt or
// resource with no content, or hiding an unknown tool. It plays the role the spec's
// AST-based Validator would play in a language with structural interfaces;
// here the equivalent checks run at the Go call site instead of over parsed
// source (see SPEC_FULL.md §0).
type ParseError struct {
	Message string
	// Hint, when set, suggests the call-site forms that would make the
	// declaration valid (for an incomplete static prompt or resource: the
	// literal-content builder form or the handler-backed Add call). Other
	// ParseErrors leave it empty.
	Hint string
}

func (e *ParseError) Error() string {
	if e.Hint == "" {
		return e.Message
	}
	return e.Message + " (" + e.Hint + ")"
}

func newParseError(format string, args ...interface{}) error {
	return &ParseError{Message: fmt.Sprintf(format, args...)}
}

func newParseErrorWithHint(hint, format string, args ...interface{}) error {
	return &ParseError{Message: fmt.Sprintf(format, args...), Hint: hint}
}
