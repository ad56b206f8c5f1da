package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the session in Redis so several machines can share it
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(host string, port int, password string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) key(name string) string {
	if r.prefix == "" {
		return name
	}
	return r.prefix + ":" + name
}

// Load implements Store
func (r *RedisStore) Load(ctx context.Context) (*Session, error) {
	values, err := r.client.HGetAll(ctx, r.key(TokenKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	token := values["access_token"]
	if token == "" {
		return nil, nil
	}

	sess := &Session{
		AccessToken:   token,
		TokenType:     values["token_type"],
		Authenticated: true,
	}
	if t, err := parseTime(values["saved_at"]); err == nil {
		sess.SavedAt = t
	}
	return sess, nil
}

// Save implements Store. Token and flag are written in one transaction.
func (r *RedisStore) Save(ctx context.Context, session Session) error {
	session = normalize(session)
	if !session.Authenticated {
		return r.Clear(ctx)
	}

	flag, err := json.Marshal(authFlag{IsAuthenticated: true})
	if err != nil {
		return fmt.Errorf("failed to marshal auth flag: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(TokenKey))
		pipe.HSet(ctx, r.key(TokenKey),
			"access_token", session.AccessToken,
			"token_type", session.TokenType,
			"saved_at", formatTime(session.SavedAt),
		)
		pipe.Set(ctx, r.key(AuthFlagKey), flag, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session to Redis: %w", err)
	}
	return nil
}

// Clear implements Store
func (r *RedisStore) Clear(ctx context.Context) error {
	err := r.client.Del(ctx, r.key(TokenKey), r.key(AuthFlagKey)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to clear session in Redis: %w", err)
	}
	return nil
}

// Ping checks the connection
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
