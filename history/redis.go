package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cargomesh/cargomesh/core"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a ConversationHistory backed by a Redis list per session.
// RPUSH serializes same-session appends on the server, different sessions
// use different keys, and the session TTL is refreshed on every append so
// idle sessions expire on their own.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	maxTurns int64
	prefix   string
}

// RedisOptions tune the store.
type RedisOptions struct {
	// TTL applied to each session key, refreshed on append. Zero disables
	// expiry.
	TTL time.Duration
	// MaxTurns bounds the per-session list length (0 = unbounded).
	MaxTurns int64
	// KeyPrefix namespaces the session keys.
	KeyPrefix string
}

// NewRedisStore constructs a Redis-backed history.
func NewRedisStore(client *redis.Client, optFns ...func(o *RedisOptions)) *RedisStore {
	opts := RedisOptions{
		TTL:       24 * time.Hour,
		MaxTurns:  100,
		KeyPrefix: "cargomesh:history:",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RedisStore{client: client, ttl: opts.TTL, maxTurns: opts.MaxTurns, prefix: opts.KeyPrefix}
}

func (s *RedisStore) key(sessionID string) string { return s.prefix + sessionID }

// Append implements ConversationHistory.
func (s *RedisStore) Append(ctx context.Context, turn core.ConversationTurn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}
	key := s.key(turn.SessionID)

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	if s.maxTurns > 0 {
		pipe.LTrim(ctx, key, -s.maxTurns, -1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Recent implements ConversationHistory.
func (s *RedisStore) Recent(ctx context.Context, sessionID string, n int) ([]core.ConversationTurn, error) {
	start := int64(0)
	if n > 0 {
		start = int64(-n)
	}
	raw, err := s.client.LRange(ctx, s.key(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	turns := make([]core.ConversationTurn, 0, len(raw))
	for _, item := range raw {
		var turn core.ConversationTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}
