package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vladimiradmaev/dosemate/internal/logger"
)

const (
	stateTTL  = 24 * time.Hour
	opTimeout = 3 * time.Second
)

// RedisManager manages user states using Redis. State is a plain key and
// temporary data a hash, both expiring after a day of inactivity.
type RedisManager struct {
	client *redis.Client
}

var _ StateManager = (*RedisManager)(nil)

// NewRedisManager creates a new Redis-based state manager
func NewRedisManager(redisHost, redisPort string) (*RedisManager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", redisHost, redisPort),
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisManager{client: client}, nil
}

func stateKey(userID int64) string { return fmt.Sprintf("dosemate:user:%d:state", userID) }
func tempKey(userID int64) string  { return fmt.Sprintf("dosemate:user:%d:temp", userID) }

func (m *RedisManager) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// SetUserState sets the state for a user with TTL
func (m *RedisManager) SetUserState(userID int64, state string) {
	ctx, cancel := m.ctx()
	defer cancel()

	var err error
	if state == None {
		err = m.client.Del(ctx, stateKey(userID)).Err()
	} else {
		err = m.client.Set(ctx, stateKey(userID), state, stateTTL).Err()
	}
	if err != nil {
		logger.Warn("Failed to store user state", "telegram_id", userID, "error", err)
	}
}

// GetUserState gets the state for a user
func (m *RedisManager) GetUserState(userID int64) string {
	ctx, cancel := m.ctx()
	defer cancel()

	state, err := m.client.Get(ctx, stateKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return None
	}
	if err != nil {
		logger.Warn("Failed to load user state", "telegram_id", userID, "error", err)
		return None
	}
	return state
}

// SetTempData sets temporary data for a user
func (m *RedisManager) SetTempData(userID int64, key, value string) {
	ctx, cancel := m.ctx()
	defer cancel()

	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, tempKey(userID), key, value)
		pipe.Expire(ctx, tempKey(userID), stateTTL)
		return nil
	})
	if err != nil {
		logger.Warn("Failed to store temp data", "telegram_id", userID, "key", key, "error", err)
	}
}

// GetTempData gets temporary data for a user
func (m *RedisManager) GetTempData(userID int64, key string) (string, bool) {
	ctx, cancel := m.ctx()
	defer cancel()

	value, err := m.client.HGet(ctx, tempKey(userID), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		logger.Warn("Failed to load temp data", "telegram_id", userID, "key", key, "error", err)
		return "", false
	}
	return value, true
}

// ClearTempData clears all temporary data for a user
func (m *RedisManager) ClearTempData(userID int64) {
	ctx, cancel := m.ctx()
	defer cancel()

	if err := m.client.Del(ctx, tempKey(userID)).Err(); err != nil {
		logger.Warn("Failed to clear temp data", "telegram_id", userID, "error", err)
	}
}

// Close closes the Redis connection
func (m *RedisManager) Close() error {
	return m.client.Close()
}
