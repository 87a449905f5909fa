package mcp

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
)

// ServerAuthProvider validates inbound requests before HandleRequest
// dispatches them to a tool/prompt/resource handler. This is distinct from
// AuthProvider (client.go), which produces outbound Authorization headers
// for Client to send when calling a remote server — the two interfaces
// historically collided under the same name and signature in the teacher's
// tree (see DESIGN.md) despite serving opposite directions of a request.
type ServerAuthProvider interface {
	Authenticate(r *http.Request) error
}

// BearerTokenServerAuth validates the inbound Authorization header against a
// fixed set of accepted bearer tokens, e.g. static API keys issued to known
// clients. Comparison is constant-time to avoid leaking token contents
// through response-time side channels.
type BearerTokenServerAuth struct {
	tokens map[string]struct{}
}

// NewBearerTokenServerAuth builds a ServerAuthProvider accepting any of the
// given tokens.
func NewBearerTokenServerAuth(tokens ...string) *BearerTokenServerAuth {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return &BearerTokenServerAuth{tokens: set}
}

func (b *BearerTokenServerAuth) Authenticate(r *http.Request) error {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return fmt.Errorf("missing bearer token")
	}
	presented := []byte(strings.TrimPrefix(header, prefix))
	for token := range b.tokens {
		if subtle.ConstantTimeCompare(presented, []byte(token)) == 1 {
			return nil
		}
	}
	return fmt.Errorf("invalid bearer token")
}
