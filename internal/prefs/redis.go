package prefs

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jask/finledger/internal/category"
)

// RedisStore keeps the expand state in a hash, one field per open category.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to url and checks the connection.
func NewRedisStore(ctx context.Context, url string, userID int64) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, userID), nil
}

func NewRedisStoreWithClient(client *redis.Client, userID int64) *RedisStore {
	return &RedisStore{client: client, key: fmt.Sprintf("finledger:expanded:%d", userID)}
}

func (s *RedisStore) Load(ctx context.Context) (category.ExpandState, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load expand state: %w", err)
	}
	state := make(category.ExpandState, len(fields))
	for f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			continue
		}
		state[id] = true
	}
	return state, nil
}

// Save replaces the hash in one MULTI block.
func (s *RedisStore) Save(ctx context.Context, state category.ExpandState) error {
	ids := open(state)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.key)
		if len(ids) == 0 {
			return nil
		}
		values := make([]any, 0, 2*len(ids))
		for _, id := range ids {
			values = append(values, strconv.FormatInt(id, 10), "1")
		}
		p.HSet(ctx, s.key, values...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save expand state: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
