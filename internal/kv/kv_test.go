package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/rafaeljusto/redigomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, keys []string) (map[string]string, error) {
	args := m.Called(ctx, keys)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(map[string]string{KeyMapbox: "pk.test"})

	got, err := store.Get(ctx, []string{KeyMapbox, KeyAmap, KeyMapbox})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{KeyMapbox: "pk.test", KeyAmap: ""}, got)

	require.NoError(t, store.Put(ctx, map[string]string{KeyAmap: "amap"}))
	require.NoError(t, store.Delete(ctx, []string{KeyMapbox}))

	got, err = store.Get(ctx, []string{KeyMapbox, KeyAmap})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{KeyMapbox: "", KeyAmap: "amap"}, got)
}

func TestCachedStoreServesHitsFromCache(t *testing.T) {
	ctx := context.Background()
	keys := []string{KeyMapbox, KeyAmap}
	backing := &MockStore{}
	backing.On("Get", ctx, keys).Return(map[string]string{KeyMapbox: "pk", KeyAmap: ""}, nil).Once()

	cache := NewMemoCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	store := NewCachedStore(backing, cache, time.Minute)

	for i := 0; i < 3; i++ {
		got, err := store.Get(ctx, keys)
		require.NoError(t, err)
		assert.Equal(t, "pk", got[KeyMapbox])
		assert.Equal(t, "", got[KeyAmap])
	}
	backing.AssertNumberOfCalls(t, "Get", 1)

	now = now.Add(2 * time.Minute)
	backing.On("Get", ctx, keys).Return(map[string]string{KeyMapbox: "pk2", KeyAmap: "am"}, nil).Once()

	got, err := store.Get(ctx, keys)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{KeyMapbox: "pk2", KeyAmap: "am"}, got)
	backing.AssertExpectations(t)
}

func TestCachedStorePropagatesErrors(t *testing.T) {
	ctx := context.Background()
	backing := &MockStore{}
	backing.On("Get", ctx, []string{KeyMapbox}).Return(nil, errors.New("connection refused"))

	store := NewCachedStore(backing, NewMemoCache(), time.Minute)
	_, err := store.Get(ctx, []string{KeyMapbox})
	assert.Error(t, err)

	assert.ErrorIs(t, store.Put(ctx, map[string]string{KeyMapbox: "x"}), ErrReadOnly)
	assert.ErrorIs(t, store.Delete(ctx, []string{KeyMapbox}), ErrReadOnly)
}

func TestCachedStoreWriteInvalidates(t *testing.T) {
	ctx := context.Background()
	backing := NewMemoryStore(map[string]string{KeyMapbox: "old"})
	store := NewCachedStore(backing, NewMemoCache(), time.Hour)

	got, err := store.Get(ctx, []string{KeyMapbox})
	require.NoError(t, err)
	assert.Equal(t, "old", got[KeyMapbox])

	require.NoError(t, store.Put(ctx, map[string]string{KeyMapbox: "new"}))
	got, err = store.Get(ctx, []string{KeyMapbox})
	require.NoError(t, err)
	assert.Equal(t, "new", got[KeyMapbox])

	require.NoError(t, store.Delete(ctx, []string{KeyMapbox}))
	got, err = store.Get(ctx, []string{KeyMapbox})
	require.NoError(t, err)
	assert.Equal(t, "", got[KeyMapbox])
}

// pausedStore returns what its backing store held when Get began, but only
// after the test releases it.
type pausedStore struct {
	*MemoryStore
	read    chan struct{}
	release chan struct{}
}

func (s *pausedStore) Get(ctx context.Context, keys []string) (map[string]string, error) {
	values, err := s.MemoryStore.Get(ctx, keys)
	close(s.read)
	<-s.release
	return values, err
}

func TestCachedStoreReadOverlappingWriteIsNotCached(t *testing.T) {
	ctx := context.Background()
	backing := &pausedStore{
		MemoryStore: NewMemoryStore(map[string]string{KeyMapbox: "old"}),
		read:        make(chan struct{}),
		release:     make(chan struct{}),
	}
	cache := NewMemoCache()
	store := NewCachedStore(backing, cache, time.Hour)

	done := make(chan map[string]string)
	go func() {
		got, err := store.Get(ctx, []string{KeyMapbox})
		assert.NoError(t, err)
		done <- got
	}()

	<-backing.read
	require.NoError(t, store.Put(ctx, map[string]string{KeyMapbox: "new"}))
	close(backing.release)
	assert.Equal(t, "old", (<-done)[KeyMapbox])

	hits, missed := cache.GetMulti([]string{KeyMapbox})
	assert.Empty(t, hits)
	assert.Equal(t, []string{KeyMapbox}, missed)

	values, err := backing.MemoryStore.Get(ctx, []string{KeyMapbox})
	require.NoError(t, err)
	assert.Equal(t, "new", values[KeyMapbox])
}

func newMockPool(conn *redigomock.Conn) *redis.Pool {
	return &redis.Pool{
		Dial:    func() (redis.Conn, error) { return conn, nil },
		MaxIdle: 1,
	}
}

func TestRedisCacheGetMulti(t *testing.T) {
	conn := redigomock.NewConn()
	cache := NewRedisCache(newMockPool(conn), "kv:")

	cmd := conn.Command("MGET", "kv:config_MAPBOX", "kv:config_AMAP").
		Expect([]interface{}{[]byte("pk"), nil})

	hits, missed := cache.GetMulti([]string{KeyMapbox, KeyAmap})

	assert.Equal(t, map[string]string{KeyMapbox: "pk"}, hits)
	assert.Equal(t, []string{KeyAmap}, missed)
	assert.Equal(t, 1, conn.Stats(cmd))
}

func TestRedisCacheGetMultiError(t *testing.T) {
	conn := redigomock.NewConn()
	cache := NewRedisCache(newMockPool(conn), "kv:")
	conn.Command("MGET", "kv:config_MAPBOX").ExpectError(errors.New("LOADING"))

	hits, missed := cache.GetMulti([]string{KeyMapbox})

	assert.Empty(t, hits)
	assert.Equal(t, []string{KeyMapbox}, missed)
}

func TestRedisCacheSetAndDelete(t *testing.T) {
	conn := redigomock.NewConn()
	cache := NewRedisCache(newMockPool(conn), "kv:")

	set := conn.Command("SETEX", "kv:config_MAPBOX", 30, "pk").Expect("OK")
	require.NoError(t, cache.SetMulti(map[string]string{KeyMapbox: "pk"}, 30*time.Second))
	assert.Equal(t, 1, conn.Stats(set))

	short := conn.Command("SETEX", "kv:config_AMAP", 1, "am").Expect("OK")
	require.NoError(t, cache.SetMulti(map[string]string{KeyAmap: "am"}, 10*time.Millisecond))
	assert.Equal(t, 1, conn.Stats(short))

	del := conn.Command("DEL", "kv:config_MAPBOX", "kv:config_AMAP").Expect(int64(2))
	require.NoError(t, cache.Delete(KeyMapbox, KeyAmap))
	assert.Equal(t, 1, conn.Stats(del))
}
