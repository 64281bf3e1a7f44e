package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeContract runs the behaviour every Store must share.
func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("get absent", func(t *testing.T) {
		s := newStore(t)
		got, err := s.Get(ctx, "ghost-"+uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("put then get", func(t *testing.T) {
		s := newStore(t)
		user := "alice-" + uuid.NewString()
		require.NoError(t, s.Put(ctx, user, "A1", "R1"))
		t.Cleanup(func() { _ = s.Delete(ctx, user) })

		got, err := s.Get(ctx, user)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user, got.Username)
		assert.Equal(t, "A1", got.AccessToken)
		assert.Equal(t, "R1", got.RefreshToken)
	})

	t.Run("put overwrites", func(t *testing.T) {
		s := newStore(t)
		user := "alice-" + uuid.NewString()
		require.NoError(t, s.Put(ctx, user, "A1", "R1"))
		require.NoError(t, s.Put(ctx, user, "A2", "R2"))
		t.Cleanup(func() { _ = s.Delete(ctx, user) })

		got, err := s.Get(ctx, user)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "A2", got.AccessToken)
		assert.Equal(t, "R2", got.RefreshToken)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := newStore(t)
		user := "bob-" + uuid.NewString()
		require.NoError(t, s.Put(ctx, user, "A", "R"))
		require.NoError(t, s.Delete(ctx, user))
		require.NoError(t, s.Delete(ctx, user))

		got, err := s.Get(ctx, user)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("empty username rejected on put", func(t *testing.T) {
		s := newStore(t)
		assert.Error(t, s.Put(ctx, "", "A", "R"))
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, newStore(t).Ping(ctx))
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	storeContract(t, func(*testing.T) Store { return NewMemoryStore(time.Hour) })
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(7 * 24 * time.Hour)
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.Put(ctx, "alice", "A", "R"))

	now = now.Add(7*24*time.Hour - time.Second)
	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.NotNil(t, got, "record must survive until ttl")

	now = now.Add(time.Second)
	got, err = s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got, "record must be gone at ttl")
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_PutRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Hour)
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.Put(ctx, "alice", "A1", "R"))
	now = now.Add(50 * time.Minute)
	require.NoError(t, s.Put(ctx, "alice", "A2", "R"))
	now = now.Add(50 * time.Minute)

	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "A2", got.AccessToken)
}

func TestMemoryStore_ConcurrentPutsLastWriterWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Put(ctx, "alice", uuid.NewString(), "R")
		}()
	}
	wg.Wait()
	got, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, s.Len())
}

func TestRedisStore_Contract(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping integration test")
	}
	rdb, err := NewRedisClient(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	storeContract(t, func(*testing.T) Store { return NewRedisStore(rdb, time.Minute) })
}

func TestRedisStore_StoresJSONWithTTL(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping integration test")
	}
	rdb, err := NewRedisClient(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	user := "carol-" + uuid.NewString()
	s := NewRedisStore(rdb, 0)
	require.NoError(t, s.Put(ctx, user, "A", "R"))
	t.Cleanup(func() { _ = s.Delete(ctx, user) })

	raw, err := rdb.Get(ctx, user).Result()
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"A","refresh_token":"R"}`, raw)

	ttl, err := rdb.TTL(ctx, user).Result()
	require.NoError(t, err)
	assert.InDelta(t, float64(604800), ttl.Seconds(), 5)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient("not a url")
	assert.Error(t, err)
}
