package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
)

const keyPrefix = "weatherbot:"

var _ do.Shutdownable = (*RedisStore)(nil)

// RedisStore relies on key expiry for tokens, so Prune has nothing to do.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

func chatKey(chatID int64) string {
	return fmt.Sprintf("%schat:%d", keyPrefix, chatID)
}

func tokenKey(key string) string {
	return keyPrefix + "token:" + key
}

func (s *RedisStore) LoadChat(ctx context.Context, chatID int64) (ChatState, error) {
	data, err := s.client.Get(ctx, chatKey(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ChatState{Step: StepQuery}, nil
	}
	if err != nil {
		return ChatState{}, fmt.Errorf("failed to load chat state: %w", err)
	}

	var state ChatState
	if err = json.Unmarshal(data, &state); err != nil {
		return ChatState{}, fmt.Errorf("failed to parse chat state: %w", err)
	}

	return state, nil
}

func (s *RedisStore) SaveChat(ctx context.Context, chatID int64, state ChatState) error {
	state.UpdatedAt = time.Now()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal chat state: %w", err)
	}

	if err = s.client.Set(ctx, chatKey(chatID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save chat state: %w", err)
	}

	return nil
}

func (s *RedisStore) PutTokens(ctx context.Context, tokens []string) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(tokens))
	pipe := s.client.TxPipeline()
	for _, token := range tokens {
		key := uuid.NewString()
		pipe.Set(ctx, tokenKey(key), token, s.ttl)
		keys = append(keys, key)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to save tokens: %w", err)
	}

	return keys, nil
}

func (s *RedisStore) Token(ctx context.Context, key string) (string, error) {
	token, err := s.client.Get(ctx, tokenKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("token %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}

	return token, nil
}

func (s *RedisStore) Prune(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) Shutdown() error {
	return s.client.Close()
}
