package prefs

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/finledger/internal/category"
)

// redisStore connects to FINLEDGER_TEST_REDIS, e.g. redis://localhost:6379/15.
func redisStore(t *testing.T, userID int64) *RedisStore {
	t.Helper()
	url := os.Getenv("FINLEDGER_TEST_REDIS")
	if url == "" {
		t.Skip("FINLEDGER_TEST_REDIS not set")
	}
	s, err := NewRedisStore(context.Background(), url, userID)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.client.Del(context.Background(), s.key).Err()
		_ = s.Close()
	})
	return s
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := redisStore(t, 9001)

	state, err := s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, state)

	require.NoError(t, s.Save(ctx, category.ExpandState{4: true, 12: true, 7: false}))
	state, err = s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, category.ExpandState{4: true, 12: true}, state)

	// a shrinking save replaces the hash
	require.NoError(t, s.Save(ctx, category.ExpandState{12: true}))
	state, err = s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, category.ExpandState{12: true}, state)

	require.NoError(t, s.Save(ctx, category.ExpandState{}))
	state, err = s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, state)
}

func TestRedisStoreKeysPerUser(t *testing.T) {
	ctx := context.Background()
	a, b := redisStore(t, 9002), redisStore(t, 9003)
	require.NoError(t, a.Save(ctx, category.ExpandState{1: true}))

	state, err := b.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, state)
}

func TestRedisStoreRejectsBadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "http://not-redis", 1)
	require.ErrorContains(t, err, "parse redis url")
}
