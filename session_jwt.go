package mcp

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SessionManager defines the interface for session storage and validation.
// Implement this interface to create custom session stores (Redis, Database, etc.)
type SessionManager interface {
	// CreateSession creates a new session and returns its ID.
	// showAll records whether this session was initialized in show-all
	// (progressive-disclosure-bypass) mode, per the X-MCP-Show-All header.
	CreateSession(ctx context.Context, protocolVersion string, showAll bool) (sessionID string, err error)

	// ValidateSession checks if a session exists and is valid.
	// Returns true if valid, updates lastUsed timestamp if applicable.
	ValidateSession(ctx context.Context, sessionID string) (valid bool, err error)

	// GetProtocolVersion returns the negotiated protocol version for a session.
	GetProtocolVersion(ctx context.Context, sessionID string) (version string, err error)

	// GetShowAll returns the show-all flag recorded at session creation.
	GetShowAll(ctx context.Context, sessionID string) (bool, error)

	// DeleteSession removes a session.
	DeleteSession(ctx context.Context, sessionID string) error

	// CleanupExpiredSessions removes sessions older than maxIdleTime.
	CleanupExpiredSessions(ctx context.Context, maxIdleTime time.Duration) error
}

// JWTSessionManager provides stateless session management using JWT tokens.
// This is the RECOMMENDED approach for production clusters as it:
//   - Requires no external storage (Redis, Database)
//   - Scales horizontally without coordination
//   - Works across all server instances
//   - Has zero infrastructure dependencies
//
// Trade-off: Sessions cannot be revoked before expiry (acceptable for most use cases).
// For revocable sessions, use RedisSessionManager instead (session_redis.go).
type JWTSessionManager struct {
	signingKey []byte
	ttl        time.Duration
}

type jwtClaims struct {
	Protocol  string `json:"protocol"`
	ShowAll   bool   `json:"show_all,omitempty"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// NewJWTSessionManager creates a new JWT-based session manager.
// signingKey should be a cryptographically secure random key (at least 32 bytes recommended).
// ttl is the session lifetime (e.g., 30 * time.Minute).
func NewJWTSessionManager(signingKey []byte, ttl time.Duration) *JWTSessionManager {
	return &JWTSessionManager{
		signingKey: signingKey,
		ttl:        ttl,
	}
}

// GenerateSigningKey creates a cryptographically secure random signing key.
func GenerateSigningKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return key, nil
}

// NewJWTSessionManagerWithAutoKey creates a JWT session manager with an auto-generated signing key.
// This is convenient for development or single-instance deployments.
//
// For production clusters with multiple instances, use NewJWTSessionManager with a
// persisted key so that all instances can validate each other's sessions.
func NewJWTSessionManagerWithAutoKey(ttl time.Duration) (*JWTSessionManager, error) {
	key, err := GenerateSigningKey()
	if err != nil {
		return nil, err
	}
	return NewJWTSessionManager(key, ttl), nil
}

// CreateSession generates a new JWT session token.
func (m *JWTSessionManager) CreateSession(ctx context.Context, protocolVersion string, showAll bool) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		Protocol:  protocolVersion,
		ShowAll:   showAll,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(m.ttl).Unix(),
	}

	header := map[string]string{
		"alg": "HS256",
		"typ": "JWT",
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("failed to marshal header: %w", err)
	}

	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}

	headerEncoded := base64.RawURLEncoding.EncodeToString(headerJSON)
	claimsEncoded := base64.RawURLEncoding.EncodeToString(claimsJSON)

	message := headerEncoded + "." + claimsEncoded
	signature := m.sign(message)

	token := message + "." + signature
	return token, nil
}

// ValidateSession validates a JWT session token.
func (m *JWTSessionManager) ValidateSession(ctx context.Context, sessionID string) (bool, error) {
	claims, ok := m.parse(sessionID)
	if !ok {
		return false, nil
	}
	if time.Now().Unix() > claims.ExpiresAt {
		return false, nil
	}
	return true, nil
}

// GetProtocolVersion extracts the protocol version from a JWT session token.
func (m *JWTSessionManager) GetProtocolVersion(ctx context.Context, sessionID string) (string, error) {
	claims, ok := m.parse(sessionID)
	if !ok {
		return "", fmt.Errorf("invalid token format")
	}
	return claims.Protocol, nil
}

// GetShowAll extracts the show-all flag from a JWT session token.
func (m *JWTSessionManager) GetShowAll(ctx context.Context, sessionID string) (bool, error) {
	claims, ok := m.parse(sessionID)
	if !ok {
		return false, fmt.Errorf("invalid token format")
	}
	return claims.ShowAll, nil
}

// DeleteSession is a no-op for JWT sessions (cannot revoke before expiry).
func (m *JWTSessionManager) DeleteSession(ctx context.Context, sessionID string) error {
	return nil
}

// CleanupExpiredSessions is a no-op for JWT sessions (tokens expire automatically).
func (m *JWTSessionManager) CleanupExpiredSessions(ctx context.Context, maxIdleTime time.Duration) error {
	return nil
}

// parse decodes and signature-verifies a token, without checking expiry.
func (m *JWTSessionManager) parse(sessionID string) (jwtClaims, bool) {
	parts := strings.Split(sessionID, ".")
	if len(parts) != 3 {
		return jwtClaims{}, false
	}

	message := parts[0] + "." + parts[1]
	if parts[2] != m.sign(message) {
		return jwtClaims{}, false
	}

	claimsJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return jwtClaims{}, false
	}

	var claims jwtClaims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return jwtClaims{}, false
	}
	return claims, true
}

// sign creates an HMAC-SHA256 signature.
func (m *JWTSessionManager) sign(message string) string {
	h := hmac.New(sha256.New, m.signingKey)
	h.Write([]byte(message))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
