package flowstate

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoshapihoff/bricks/authenticator/internal/domain"
)

func testFlow(state string) domain.Flow {
	return domain.Flow{
		State:     state,
		Launch:    domain.LaunchParams{RequestNewAccount: true},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// exerciseStore runs the behaviour every FlowStore must share
func exerciseStore(t *testing.T, store domain.FlowStore) {
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testFlow("s1"), time.Minute))

	flow, err := store.Take(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", flow.State)
	assert.True(t, flow.Launch.RequestNewAccount)
	assert.False(t, flow.Launch.ConfirmCredentials)

	_, err = store.Take(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)

	require.NoError(t, store.Save(ctx, testFlow("s2"), time.Minute))
	require.NoError(t, store.Delete(ctx, "s2"))
	_, err = store.Take(ctx, "s2")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "s2"), domain.ErrFlowNotFound)

	assert.Error(t, store.Save(ctx, testFlow(""), time.Minute))
	assert.Error(t, store.Save(ctx, testFlow("s3"), 0))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, testFlow("s"), time.Minute))

	now = now.Add(2 * time.Minute)
	_, err := store.Take(ctx, "s")
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestMemoryStoreSweepsOnSave(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, testFlow("old"), time.Second))
	now = now.Add(time.Minute)
	require.NoError(t, store.Save(ctx, testFlow("new"), time.Minute))

	assert.Len(t, store.entries, 1)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	exerciseStore(t, NewRedisStore(client))
}
