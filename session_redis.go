package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessionManager provides distributed session storage using Redis.
//
// # When To Use Redis Sessions
//
// Use Redis sessions instead of JWTSessionManager when you need:
//   - Session revocation (logout, security incidents)
//   - Session listing (admin dashboards)
//   - Custom session metadata storage
//   - Strict session lifecycle control across a fleet of stateless servers
//     that all need to agree a session was explicitly terminated
//
// Sessions are stored as a handful of string keys per session ID, each with
// a TTL that is refreshed on every successful ValidateSession call, mirroring
// sliding-window expiry semantics.
type RedisSessionManager struct {
	client     *redis.Client
	sessionTTL time.Duration
}

// NewRedisSessionManager creates a new Redis-backed session manager.
func NewRedisSessionManager(client *redis.Client, sessionTTL time.Duration) *RedisSessionManager {
	return &RedisSessionManager{
		client:     client,
		sessionTTL: sessionTTL,
	}
}

func (m *RedisSessionManager) generateSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func sessionKey(sessionID string) string     { return fmt.Sprintf("mcp:session:%s", sessionID) }
func protocolKey(sessionID string) string    { return fmt.Sprintf("mcp:session:%s:protocol", sessionID) }
func showAllKey(sessionID string) string     { return fmt.Sprintf("mcp:session:%s:show_all", sessionID) }

// CreateSession creates a new session record in Redis with TTL.
func (m *RedisSessionManager) CreateSession(ctx context.Context, protocolVersion string, showAll bool) (string, error) {
	sessionID, err := m.generateSessionID()
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}

	pipe := m.client.Pipeline()
	pipe.Set(ctx, sessionKey(sessionID), time.Now().Unix(), m.sessionTTL)
	pipe.Set(ctx, protocolKey(sessionID), protocolVersion, m.sessionTTL)
	pipe.Set(ctx, showAllKey(sessionID), showAll, m.sessionTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to create session in redis: %w", err)
	}

	return sessionID, nil
}

// ValidateSession checks whether the session key exists and slides its TTL forward.
func (m *RedisSessionManager) ValidateSession(ctx context.Context, sessionID string) (bool, error) {
	exists, err := m.client.Exists(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	if exists == 0 {
		return false, nil
	}

	pipe := m.client.Pipeline()
	pipe.Set(ctx, sessionKey(sessionID), time.Now().Unix(), m.sessionTTL)
	pipe.Expire(ctx, protocolKey(sessionID), m.sessionTTL)
	pipe.Expire(ctx, showAllKey(sessionID), m.sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to refresh session: %w", err)
	}

	return true, nil
}

// GetProtocolVersion returns the protocol version negotiated at session creation.
func (m *RedisSessionManager) GetProtocolVersion(ctx context.Context, sessionID string) (string, error) {
	version, err := m.client.Get(ctx, protocolKey(sessionID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get protocol version: %w", err)
	}
	return version, nil
}

// GetShowAll returns the show-all flag recorded at session creation.
func (m *RedisSessionManager) GetShowAll(ctx context.Context, sessionID string) (bool, error) {
	val, err := m.client.Get(ctx, showAllKey(sessionID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get show-all flag: %w", err)
	}
	return strconv.ParseBool(val)
}

// DeleteSession removes all keys for a session, revoking it immediately.
func (m *RedisSessionManager) DeleteSession(ctx context.Context, sessionID string) error {
	pipe := m.client.Pipeline()
	pipe.Del(ctx, sessionKey(sessionID))
	pipe.Del(ctx, protocolKey(sessionID))
	pipe.Del(ctx, showAllKey(sessionID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CleanupExpiredSessions is a no-op: Redis expires keys by TTL automatically.
// Kept to satisfy SessionManager and to give operators an explicit hook for a
// future scan-based audit pass if sliding expiry alone proves insufficient.
func (m *RedisSessionManager) CleanupExpiredSessions(ctx context.Context, maxIdleTime time.Duration) error {
	return nil
}
