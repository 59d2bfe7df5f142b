package idempotency

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	keys map[string]struct{}
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: map[string]struct{}{}}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = struct{}{}
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			delete(f.keys, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func newGuarded(rdb *fakeRedis, status int) (http.Handler, *int) {
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	})
	s := &Store{rdb: rdb, ttl: time.Minute}
	return s.Middleware(handler), &calls
}

func do(t *testing.T, h http.Handler, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareRejectsReplayedKey(t *testing.T) {
	h, calls := newGuarded(newFakeRedis(), http.StatusCreated)

	require.Equal(t, http.StatusCreated, do(t, h, "k-1").Code)
	require.Equal(t, http.StatusConflict, do(t, h, "k-1").Code)
	assert.Equal(t, 1, *calls)
}

func TestMiddlewareReleasesKeyOnServerError(t *testing.T) {
	rdb := newFakeRedis()
	h, calls := newGuarded(rdb, http.StatusServiceUnavailable)

	require.Equal(t, http.StatusServiceUnavailable, do(t, h, "k-1").Code)

	// The failed attempt must not poison the retry.
	require.Equal(t, http.StatusServiceUnavailable, do(t, h, "k-1").Code)
	assert.Equal(t, 2, *calls)
	assert.Empty(t, rdb.keys)
}

func TestMiddlewareKeepsKeyOnClientError(t *testing.T) {
	h, calls := newGuarded(newFakeRedis(), http.StatusBadRequest)

	require.Equal(t, http.StatusBadRequest, do(t, h, "k-1").Code)
	require.Equal(t, http.StatusConflict, do(t, h, "k-1").Code)
	assert.Equal(t, 1, *calls)
}

func TestMiddlewarePassesThroughWithoutKey(t *testing.T) {
	h, calls := newGuarded(newFakeRedis(), http.StatusCreated)

	require.Equal(t, http.StatusCreated, do(t, h, "").Code)
	require.Equal(t, http.StatusCreated, do(t, h, "").Code)
	assert.Equal(t, 2, *calls)
}

func TestMiddlewareFailsOpenWhenRedisDown(t *testing.T) {
	rdb := newFakeRedis()
	rdb.err = errors.New("connection refused")
	h, calls := newGuarded(rdb, http.StatusCreated)

	require.Equal(t, http.StatusCreated, do(t, h, "k-1").Code)
	require.Equal(t, http.StatusCreated, do(t, h, "k-1").Code)
	assert.Equal(t, 2, *calls)
}
