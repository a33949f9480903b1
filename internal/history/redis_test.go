package history

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammamikhairi/armate/internal/logger"
)

// setupRedis connects to the server named by ARMATE_TEST_REDIS and skips
// the test when none is configured or reachable.
func setupRedis(t *testing.T) *RedisFeed {
	t.Helper()
	addr := os.Getenv("ARMATE_TEST_REDIS")
	if addr == "" {
		t.Skip("ARMATE_TEST_REDIS not set")
	}
	key := "test:interactions:" + uuid.NewString()
	feed, err := NewRedisFeed(RedisConfig{Addr: addr}, logger.New(logger.LevelOff, nil), WithKey(key), WithMaxKept(30))
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() {
		feed.rdb.Del(context.Background(), key)
		_ = feed.Close()
	})
	return feed
}

func TestRedisFeedRecordAndSnapshot(t *testing.T) {
	feed := setupRedis(t)
	ctx := context.Background()

	base := time.Now().Truncate(time.Second)
	for i := 0; i < 25; i++ {
		require.NoError(t, feed.Record(ctx, interaction(i, base.Add(time.Duration(i)*time.Second))))
	}

	got, err := feed.Snapshot(ctx, DefaultLimit)
	require.NoError(t, err)
	require.Len(t, got, DefaultLimit)
	assert.Equal(t, "turn-24", got[0].ID)
	assert.Equal(t, "question 24", got[0].UserInput)
	assert.True(t, got[0].Timestamp.Equal(base.Add(24*time.Second)))
	assert.Equal(t, "turn-05", got[19].ID)
}

func TestRedisFeedLiveUpdates(t *testing.T) {
	feed := setupRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snaps, _, err := feed.Subscribe(ctx, DefaultLimit)
	require.NoError(t, err)
	assert.Empty(t, next(t, snaps))

	require.NoError(t, feed.Record(ctx, interaction(1, time.Now())))
	got := next(t, snaps)
	require.Len(t, got, 1)
	assert.Equal(t, "answer 1", got[0].ResponseText)
}
