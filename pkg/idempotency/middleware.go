package idempotency

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// commands is the slice of redis used by the store. *redis.Client
// satisfies it.
type commands interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Store struct {
	rdb commands
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Seen registers the key and reports whether it was already present.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, "idem:"+key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Forget drops a previously registered key so the client may retry.
func (s *Store) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, "idem:"+key).Err()
}

// Middleware guards mutating endpoints against client retries. A request
// carrying an Idempotency-Key that was already accepted within the key's
// TTL is rejected with 409 instead of being executed twice. The key is
// registered up front so concurrent duplicates cannot slip through, but
// it is given back when the handler answers with a server error: a 5xx
// (a lock timeout, say) is retryable, and the retry must not be turned
// into a 409. Requests without the header pass through untouched.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		if key == "" || r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		seen, err := s.Seen(r.Context(), key)
		if err != nil {
			// Redis being down must not block order traffic.
			next.ServeHTTP(w, r)
			return
		}
		if seen {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"detail": "request with this Idempotency-Key was already processed",
			})
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.status >= http.StatusInternalServerError {
			_ = s.Forget(r.Context(), key)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
